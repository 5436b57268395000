package gin

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/krekz/maulocum-sub000/internal/infra/logger"
)

// ServerBuilder assembles a Server fluently.
type ServerBuilder struct {
	config      Config
	logger      logger.Logger
	middleware  []gin.HandlerFunc
	setupRoutes func(*gin.Engine)
	checks      map[string]HealthChecker
}

// NewServerBuilder starts a builder for serviceName listening on port.
func NewServerBuilder(serviceName string, port int) *ServerBuilder {
	return &ServerBuilder{
		config: Config{ServiceName: serviceName, Port: port},
		checks: make(map[string]HealthChecker),
	}
}

func (b *ServerBuilder) WithLogger(l logger.Logger) *ServerBuilder {
	b.logger = l
	return b
}

func (b *ServerBuilder) WithHost(host string) *ServerBuilder {
	b.config.Host = host
	return b
}

func (b *ServerBuilder) WithDebug(debug bool) *ServerBuilder {
	b.config.Debug = debug
	return b
}

func (b *ServerBuilder) WithVersion(version string) *ServerBuilder {
	b.config.ServiceVersion = version
	return b
}

func (b *ServerBuilder) WithCORSOrigins(origins []string) *ServerBuilder {
	b.config.CORS.AllowedOrigins = origins
	return b
}

func (b *ServerBuilder) WithTimeouts(read, write, idle time.Duration) *ServerBuilder {
	b.config.ReadTimeout = read
	b.config.WriteTimeout = write
	b.config.IdleTimeout = idle
	return b
}

// WithMiddleware appends middleware that runs after the standard chain.
func (b *ServerBuilder) WithMiddleware(mw ...gin.HandlerFunc) *ServerBuilder {
	b.middleware = append(b.middleware, mw...)
	return b
}

func (b *ServerBuilder) WithHealthCheck(name string, check HealthChecker) *ServerBuilder {
	b.checks[name] = check
	return b
}

func (b *ServerBuilder) WithDatabaseHealthCheck(ping func() error) *ServerBuilder {
	return b.WithHealthCheck("database", PingChecker("database", ping))
}

func (b *ServerBuilder) WithRedisHealthCheck(ping func() error) *ServerBuilder {
	return b.WithHealthCheck("redis", PingChecker("redis", ping))
}

func (b *ServerBuilder) WithRoutes(setup func(*gin.Engine)) *ServerBuilder {
	b.setupRoutes = setup
	return b
}

// Build creates the Server. Health routes are always registered.
func (b *ServerBuilder) Build() *Server {
	if b.logger == nil {
		b.logger = logger.NewNop()
	}

	cfg := b.config
	return NewServer(&cfg, b.logger, func(router *gin.Engine) {
		router.Use(b.middleware...)
		RegisterHealthRoutes(router, HealthOptions{
			ServiceName:    cfg.ServiceName,
			ServiceVersion: cfg.ServiceVersion,
			Checks:         b.checks,
		})
		if b.setupRoutes != nil {
			b.setupRoutes(router)
		}
	})
}
