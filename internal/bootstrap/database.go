package bootstrap

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/krekz/maulocum-sub000/internal/config"
	"github.com/krekz/maulocum-sub000/internal/database"
	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
	"github.com/krekz/maulocum-sub000/internal/infra/retry"
)

// DatabaseConfig converts the service config into the connection config.
func DatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Host:            cfg.Database.Host,
		Port:            strconv.Itoa(cfg.Database.Port),
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
}

// SetupDatabase connects to Postgres, retrying while the database starts up.
func SetupDatabase(ctx context.Context, cfg *config.Config, log infralogger.Logger) (*sqlx.DB, error) {
	dbCfg := DatabaseConfig(cfg)

	retryCfg := retry.DefaultConfig()
	retryCfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Warn("Database not ready, retrying",
			infralogger.Int("attempt", attempt),
			infralogger.Duration("delay", delay),
			infralogger.Error(err),
		)
	}

	var db *sqlx.DB
	err := retry.Do(ctx, retryCfg, func(ctx context.Context) error {
		conn, connErr := database.NewPostgresConnection(ctx, dbCfg)
		if connErr != nil {
			return connErr
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Connected to database",
		infralogger.String("host", dbCfg.Host),
		infralogger.String("database", dbCfg.DBName),
	)
	return db, nil
}

func closeDatabase(db *sqlx.DB, log infralogger.Logger) {
	if err := database.Close(db); err != nil {
		log.Error("Failed to close database", infralogger.Error(err))
	}
}
