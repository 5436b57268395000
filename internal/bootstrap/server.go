package bootstrap

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/krekz/maulocum-sub000/internal/api"
	"github.com/krekz/maulocum-sub000/internal/config"
	infragin "github.com/krekz/maulocum-sub000/internal/infra/gin"
	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
	infraredis "github.com/krekz/maulocum-sub000/internal/infra/redis"
	"github.com/krekz/maulocum-sub000/internal/metrics"
	"github.com/krekz/maulocum-sub000/internal/service"
)

// SetupHTTPServer creates and configures the HTTP server.
func SetupHTTPServer(
	cfg *config.Config,
	db *sqlx.DB,
	svc *service.BookingService,
	notifications *Notifications,
	m *metrics.Metrics,
	log infralogger.Logger,
) *infragin.Server {
	var outbox api.OutboxStats
	if notifications != nil && notifications.Dispatcher != nil {
		outbox = notifications.Dispatcher
	}
	handler := api.NewHandler(svc, outbox, log)

	builder := infragin.NewServerBuilder(ServiceName, cfg.Server.Port).
		WithLogger(log).
		WithHost(cfg.Server.Host).
		WithDebug(cfg.Debug).
		WithVersion(Version).
		WithCORSOrigins(cfg.Server.CORSOrigins).
		WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout).
		WithDatabaseHealthCheck(db.Ping)

	if notifications != nil && notifications.Redis != nil {
		builder = builder.WithRedisHealthCheck(infraredis.HealthCheck(notifications.Redis))
	}

	if m != nil {
		builder = builder.WithMiddleware(m.Middleware())
	}

	return builder.WithRoutes(func(router *gin.Engine) {
		if m != nil {
			router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		}
		api.RegisterRoutes(router, handler, cfg.Auth.JWTSecret)
	}).Build()
}
