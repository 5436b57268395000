// Package profiling starts optional pprof and Pyroscope profilers. Both are
// off unless enabled through the environment.
package profiling

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // bound to localhost only
	"os"
	"runtime"
	"time"

	"github.com/grafana/pyroscope-go"

	"github.com/krekz/maulocum-sub000/internal/infra/logger"
)

const pprofReadHeaderTimeout = 5 * time.Second

// StartPprofServer serves /debug/pprof on localhost:$PPROF_PORT (default 6060)
// when ENABLE_PROFILING=true.
func StartPprofServer(log logger.Logger) {
	if os.Getenv("ENABLE_PROFILING") != "true" {
		return
	}

	port := os.Getenv("PPROF_PORT")
	if port == "" {
		port = "6060"
	}
	addr := net.JoinHostPort("localhost", port)

	go func() {
		log.Info("pprof server listening", logger.String("address", addr))
		srv := &http.Server{Addr: addr, ReadHeaderTimeout: pprofReadHeaderTimeout}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("pprof server stopped", logger.Error(err))
		}
	}()
}

// Profiler is a running Pyroscope profiler. A nil *Profiler is valid and Stop is a no-op.
type Profiler struct {
	p *pyroscope.Profiler
}

// StartPyroscope starts continuous profiling when ENABLE_CONTINUOUS_PROFILING=true.
// It returns (nil, nil) when profiling is disabled.
func StartPyroscope(service, version string, log logger.Logger) (*Profiler, error) {
	if os.Getenv("ENABLE_CONTINUOUS_PROFILING") != "true" {
		return nil, nil //nolint:nilnil // disabled is not an error
	}

	server := envOr("PYROSCOPE_SERVER_URL", "http://pyroscope:4040")
	environment := envOr("PYROSCOPE_ENVIRONMENT", "development")
	host, _ := os.Hostname()

	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: service,
		ServerAddress:   server,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexCount,
		},
		Tags: map[string]string{
			"environment": environment,
			"version":     version,
			"hostname":    host,
			"go_version":  runtime.Version(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope: %w", err)
	}

	log.Info("Continuous profiling started",
		logger.String("server", server),
		logger.String("environment", environment),
	)
	return &Profiler{p: p}, nil
}

// Stop flushes and stops the profiler.
func (p *Profiler) Stop() error {
	if p == nil || p.p == nil {
		return nil
	}
	return p.p.Stop()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
