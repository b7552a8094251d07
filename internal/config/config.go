package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string        `mapstructure:"PORT"`
	Env           string        `mapstructure:"ENV"`
	DatabaseURL   string        `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema      string        `mapstructure:"DB_SCHEMA"`
	MigrationsDir string        `mapstructure:"MIGRATIONS_DIR"`
	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	JWTIssuer     string        `mapstructure:"JWT_ISSUER"`
	CORSOrigins   []string      `mapstructure:"CORS_ORIGINS"`
	RateLimit     int           `mapstructure:"RATE_LIMIT_REQUESTS"`
	RateWindow    time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`

	HeartbeatInterval  time.Duration `mapstructure:"HEARTBEAT_INTERVAL"`
	StreamWriteTimeout time.Duration `mapstructure:"STREAM_WRITE_TIMEOUT"`
	StreamSendBuffer   int           `mapstructure:"STREAM_SEND_BUFFER"`
	EventBufferSize    int           `mapstructure:"EVENT_BUFFER_SIZE"`
	PersistTimeout     time.Duration `mapstructure:"PERSIST_TIMEOUT"`

	PushGatewayURL     string        `mapstructure:"PUSH_GATEWAY_URL"`
	PushGatewaySecret  string        `mapstructure:"PUSH_GATEWAY_SECRET"`
	PushTimeout        time.Duration `mapstructure:"PUSH_TIMEOUT"`
	PushMaxConcurrency int           `mapstructure:"PUSH_MAX_CONCURRENCY"`

	ConferenceReuseWindow time.Duration `mapstructure:"CONFERENCE_REUSE_WINDOW"`
	SignalAnnounceDelay   time.Duration `mapstructure:"SIGNAL_ANNOUNCE_DELAY"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA",
	"MIGRATIONS_DIR", "JWT_SECRET", "JWT_ISSUER", "CORS_ORIGINS",
	"RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW",
	"HEARTBEAT_INTERVAL", "STREAM_WRITE_TIMEOUT", "STREAM_SEND_BUFFER", "EVENT_BUFFER_SIZE", "PERSIST_TIMEOUT",
	"PUSH_GATEWAY_URL", "PUSH_GATEWAY_SECRET", "PUSH_TIMEOUT", "PUSH_MAX_CONCURRENCY",
	"CONFERENCE_REUSE_WINDOW", "SIGNAL_ANNOUNCE_DELAY",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_REQUESTS", 75)
	v.SetDefault("RATE_LIMIT_WINDOW", "5m")
	v.SetDefault("HEARTBEAT_INTERVAL", "30s")
	v.SetDefault("STREAM_WRITE_TIMEOUT", "10s")
	v.SetDefault("STREAM_SEND_BUFFER", 64)
	v.SetDefault("EVENT_BUFFER_SIZE", 1024)
	v.SetDefault("PERSIST_TIMEOUT", "5s")
	v.SetDefault("PUSH_TIMEOUT", "10s")
	v.SetDefault("PUSH_MAX_CONCURRENCY", 8)
	v.SetDefault("CONFERENCE_REUSE_WINDOW", "30m")
	v.SetDefault("SIGNAL_ANNOUNCE_DELAY", "1s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	// Tighter limiter defaults for ENV=test; explicit env values still win.
	if v.GetString("ENV") == "test" {
		v.SetDefault("RATE_LIMIT_REQUESTS", 40)
		v.SetDefault("RATE_LIMIT_WINDOW", "1m")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 0 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// JWT_SECRET must be set so that real authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.RateLimit <= 0 || c.RateWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}
	if c.PushMaxConcurrency <= 0 {
		return fmt.Errorf("PUSH_MAX_CONCURRENCY must be positive")
	}
	if c.IsProduction() && c.PushGatewayURL != "" && c.PushGatewaySecret == "" {
		return fmt.Errorf("PUSH_GATEWAY_SECRET is required when PUSH_GATEWAY_URL is set in production")
	}
	return nil
}
