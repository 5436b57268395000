package bootstrap

import (
	"fmt"

	"github.com/krekz/maulocum-sub000/internal/config"
	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
)

// LoadConfig loads and validates the configuration at path.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// CreateLogger creates a logger instance from configuration.
func CreateLogger(cfg *config.Config, version string) (infralogger.Logger, error) {
	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	log, err := infralogger.ForService(infralogger.Config{
		Level:       level,
		Development: cfg.Debug,
	}, ServiceName, version)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}
