package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/krekz/maulocum-sub000/internal/domain"
	infraconfig "github.com/krekz/maulocum-sub000/internal/infra/config"
)

const (
	defaultServerPort       = 8060
	defaultServerTimeout    = 30
	defaultDatabasePort     = 5432
	defaultMaxOpenConns     = 25
	defaultMaxIdleConns     = 5
	defaultConnMaxLifetime  = 5
	defaultRedisAddress     = "localhost:6379"
	defaultStream           = "booking-notifications"
	defaultNATSURL          = "nats://localhost:4222"
	defaultSubjectPrefix    = "notifications"
	defaultTokenTTL         = 24 * time.Hour
	defaultPollInterval     = 5 * time.Second
	defaultBatchSize        = 50
	defaultPublishTimeout   = 10 * time.Second
	defaultMaxRetries       = 5
	defaultSweeperSchedule  = "5 * * * *"
	defaultPublicBaseURL    = "http://localhost:3000"
	minTokenSecretLength    = 32
	reasonLengthCeiling     = 2000
)

// Sink names accepted by notifications.sink.
const (
	SinkRedis = "redis"
	SinkNATS  = "nats"
	SinkLog   = "log"
)

// Config holds the bookings service configuration.
type Config struct {
	Debug         bool                `env:"APP_DEBUG" yaml:"debug"`
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Redis         RedisConfig         `yaml:"redis"`
	NATS          NATSConfig          `yaml:"nats"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Tokens        TokensConfig        `yaml:"tokens"`
	Cancellation  CancellationConfig  `yaml:"cancellation"`
	Outbox        OutboxConfig        `yaml:"outbox"`
	Sweeper       SweeperConfig       `yaml:"sweeper"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST"     yaml:"host"`
	Port         int           `env:"SERVER_PORT"     yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORSOrigins  []string      `env:"CORS_ORIGINS"    yaml:"cors_origins"`
	// PublicBaseURL is the frontend origin used in confirmation links.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" yaml:"public_base_url"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST"     yaml:"host"`
	Port            int           `env:"DB_PORT"     yaml:"port"`
	User            string        `env:"DB_USER"     yaml:"user"`
	Password        string        `env:"DB_PASSWORD" yaml:"password"`
	DBName          string        `env:"DB_NAME"     yaml:"dbname"`
	SSLMode         string        `env:"DB_SSLMODE"  yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
}

// RedisConfig is used by the stream sink and the health check.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
	Enabled  bool   `env:"REDIS_ENABLED"  yaml:"enabled"`
	Stream   string `env:"REDIS_STREAM"   yaml:"stream"`
}

type NATSConfig struct {
	URL           string        `env:"NATS_URL"            yaml:"url"`
	SubjectPrefix string        `env:"NATS_SUBJECT_PREFIX" yaml:"subject_prefix"`
	Enabled       bool          `env:"NATS_ENABLED"        yaml:"enabled"`
	ConnTimeout   time.Duration `yaml:"conn_timeout"`
}

// NotificationsConfig selects where the dispatcher delivers outbox entries.
type NotificationsConfig struct {
	Sink string `env:"NOTIFICATIONS_SINK" yaml:"sink"`
}

type TokensConfig struct {
	Secret string        `env:"CONFIRMATION_TOKEN_SECRET" yaml:"secret"`
	TTL    time.Duration `env:"CONFIRMATION_TOKEN_TTL"    yaml:"ttl"`
}

type CancellationConfig struct {
	MinReasonLength int `yaml:"min_reason_length"`
	MaxReasonLength int `yaml:"max_reason_length"`
}

type OutboxConfig struct {
	Enabled        bool          `env:"OUTBOX_ENABLED" yaml:"enabled"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	BatchSize      int           `yaml:"batch_size"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

type SweeperConfig struct {
	Enabled  bool   `env:"SWEEPER_ENABLED"  yaml:"enabled"`
	Schedule string `env:"SWEEPER_SCHEDULE" yaml:"schedule"`
}

type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" yaml:"enabled"`
}

// Validate checks required fields first, then the cross-field rules.
func (c *Config) Validate() error {
	checks := []error{
		infraconfig.ValidateRequired("server.host", c.Server.Host),
		infraconfig.ValidatePort("server.port", c.Server.Port),
		infraconfig.ValidateRequired("server.public_base_url", c.Server.PublicBaseURL),
		infraconfig.ValidateRequired("database.host", c.Database.Host),
		infraconfig.ValidatePort("database.port", c.Database.Port),
		infraconfig.ValidateRequired("database.user", c.Database.User),
		infraconfig.ValidateRequired("database.dbname", c.Database.DBName),
		infraconfig.ValidateRequired("auth.jwt_secret", c.Auth.JWTSecret),
		infraconfig.ValidateRange("cancellation.min_reason_length", c.Cancellation.MinReasonLength, 1, reasonLengthCeiling),
		infraconfig.ValidateRange("cancellation.max_reason_length",
			c.Cancellation.MaxReasonLength, c.Cancellation.MinReasonLength, reasonLengthCeiling),
	}
	if err := errors.Join(checks...); err != nil {
		return err
	}

	if len(c.Tokens.Secret) < minTokenSecretLength {
		return &infraconfig.ValidationError{
			Field:   "tokens.secret",
			Message: fmt.Sprintf("must be at least %d characters", minTokenSecretLength),
		}
	}
	if c.Tokens.TTL <= 0 {
		return &infraconfig.ValidationError{Field: "tokens.ttl", Message: "must be positive"}
	}

	switch c.Notifications.Sink {
	case SinkRedis:
		if !c.Redis.Enabled {
			return &infraconfig.ValidationError{Field: "notifications.sink", Message: "redis sink requires redis.enabled"}
		}
	case SinkNATS:
		if !c.NATS.Enabled {
			return &infraconfig.ValidationError{Field: "notifications.sink", Message: "nats sink requires nats.enabled"}
		}
	case SinkLog:
	default:
		return &infraconfig.ValidationError{
			Field:   "notifications.sink",
			Message: fmt.Sprintf("unknown sink %q (want redis, nats or log)", c.Notifications.Sink),
		}
	}

	if c.Sweeper.Enabled {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Sweeper.Schedule); err != nil {
			return &infraconfig.ValidationError{Field: "sweeper.schedule", Message: err.Error()}
		}
	}
	return nil
}

// Load reads path, applies defaults and env overrides, then validates.
func Load(path string) (*Config, error) {
	cfg, err := infraconfig.LoadWithDefaults(path, setDefaults)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultServerTimeout * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultServerTimeout * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 2 * defaultServerTimeout * time.Second
	}
	if cfg.Server.PublicBaseURL == "" {
		cfg.Server.PublicBaseURL = defaultPublicBaseURL
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{defaultPublicBaseURL}
	}

	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultDatabasePort
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = defaultConnMaxLifetime * time.Minute
	}

	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}
	if cfg.Redis.Stream == "" {
		cfg.Redis.Stream = defaultStream
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = defaultNATSURL
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = defaultSubjectPrefix
	}
	if cfg.Notifications.Sink == "" {
		switch {
		case cfg.Redis.Enabled:
			cfg.Notifications.Sink = SinkRedis
		case cfg.NATS.Enabled:
			cfg.Notifications.Sink = SinkNATS
		default:
			cfg.Notifications.Sink = SinkLog
		}
	}

	if cfg.Tokens.TTL == 0 {
		cfg.Tokens.TTL = defaultTokenTTL
	}
	if cfg.Cancellation.MinReasonLength == 0 {
		cfg.Cancellation.MinReasonLength = domain.MinCancellationReasonLength
	}
	if cfg.Cancellation.MaxReasonLength == 0 {
		cfg.Cancellation.MaxReasonLength = domain.MaxCancellationReasonLength
	}

	if cfg.Outbox.PollInterval == 0 {
		cfg.Outbox.PollInterval = defaultPollInterval
	}
	if cfg.Outbox.BatchSize == 0 {
		cfg.Outbox.BatchSize = defaultBatchSize
	}
	if cfg.Outbox.PublishTimeout == 0 {
		cfg.Outbox.PublishTimeout = defaultPublishTimeout
	}
	if cfg.Outbox.MaxRetries == 0 {
		cfg.Outbox.MaxRetries = defaultMaxRetries
	}
	if cfg.Sweeper.Schedule == "" {
		cfg.Sweeper.Schedule = defaultSweeperSchedule
	}
	// Note: outbox, sweeper and metrics default to disabled (feature flags)
}
