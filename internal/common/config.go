package common

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/joseph-ayodele/triplelock/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Policy   PolicyConfig
	Oracle   OracleConfig
	Transfer TransferConfig
	Auth     AuthConfig
	Retry    RetryConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres | sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string
	EventBuffer int
}

// PolicyConfig holds the verification policy knobs.
type PolicyConfig struct {
	VerificationThreshold float64
	RequiredQuorum        int
}

// OracleConfig holds the analysis oracle endpoint.
type OracleConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// TransferConfig holds the payment rail endpoint.
type TransferConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// AuthConfig holds the actor directory signing settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// RetryConfig holds the verification retry queue settings.
type RetryConfig struct {
	Workers       int
	QueueSize     int
	SweepInterval time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_URL", "")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_MAX_CONN_LIFETIME", 30*time.Minute)
	v.SetDefault("DB_MAX_CONN_IDLE_TIME", 5*time.Minute)
	v.SetDefault("DB_DIAL_TIMEOUT", 3*time.Second)
	v.SetDefault("DB_STATEMENT_TIMEOUT", time.Duration(0))
	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("EVENT_BUFFER", 256)
	v.SetDefault("VERIFICATION_THRESHOLD", constants.DefaultVerificationThreshold)
	v.SetDefault("REQUIRED_QUORUM", constants.DefaultRequiredQuorum)
	v.SetDefault("ORACLE_URL", "")
	v.SetDefault("ORACLE_API_KEY", "")
	v.SetDefault("ORACLE_TIMEOUT", 20*time.Second)
	v.SetDefault("TRANSFER_URL", "")
	v.SetDefault("TRANSFER_API_KEY", "")
	v.SetDefault("TRANSFER_TIMEOUT", 30*time.Second)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "triplelock")
	v.SetDefault("JWT_TTL", 24*time.Hour)
	v.SetDefault("RETRY_WORKERS", 2)
	v.SetDefault("RETRY_QUEUE_SIZE", 128)
	v.SetDefault("RETRY_SWEEP_INTERVAL", time.Minute)
	v.SetDefault("LOG_LEVEL", "info")
}

// LoadConfig loads configuration from defaults, an optional config file and
// environment variables (highest precedence).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:              v.GetString("DB_URL"),
			MaxConns:         v.GetInt32("DB_MAX_CONNS"),
			MinConns:         v.GetInt32("DB_MIN_CONNS"),
			MaxConnLifetime:  v.GetDuration("DB_MAX_CONN_LIFETIME"),
			MaxConnIdleTime:  v.GetDuration("DB_MAX_CONN_IDLE_TIME"),
			DialTimeout:      v.GetDuration("DB_DIAL_TIMEOUT"),
			StatementTimeout: v.GetDuration("DB_STATEMENT_TIMEOUT"),
		},
		Server: ServerConfig{
			GRPCAddr:    v.GetString("GRPC_ADDR"),
			EventBuffer: v.GetInt("EVENT_BUFFER"),
		},
		Policy: PolicyConfig{
			VerificationThreshold: v.GetFloat64("VERIFICATION_THRESHOLD"),
			RequiredQuorum:        v.GetInt("REQUIRED_QUORUM"),
		},
		Oracle: OracleConfig{
			URL:     v.GetString("ORACLE_URL"),
			APIKey:  v.GetString("ORACLE_API_KEY"),
			Timeout: v.GetDuration("ORACLE_TIMEOUT"),
		},
		Transfer: TransferConfig{
			URL:     v.GetString("TRANSFER_URL"),
			APIKey:  v.GetString("TRANSFER_API_KEY"),
			Timeout: v.GetDuration("TRANSFER_TIMEOUT"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
			Issuer:    v.GetString("JWT_ISSUER"),
			TokenTTL:  v.GetDuration("JWT_TTL"),
		},
		Retry: RetryConfig{
			Workers:       v.GetInt("RETRY_WORKERS"),
			QueueSize:     v.GetInt("RETRY_QUEUE_SIZE"),
			SweepInterval: v.GetDuration("RETRY_SWEEP_INTERVAL"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}, nil
}

// Validate checks the settings every binary needs.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrValidation, nil)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("DB_DRIVER %q is not supported", c.Database.Driver), ErrValidation, nil)
	}
	if c.Policy.VerificationThreshold <= 0 || c.Policy.VerificationThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "VERIFICATION_THRESHOLD must be in (0, 1]", ErrValidation, nil)
	}
	if c.Policy.RequiredQuorum < 1 {
		return NewAppError("CONFIG_ERROR", "REQUIRED_QUORUM must be at least 1", ErrValidation, nil)
	}
	if c.Oracle.Timeout <= 0 {
		return NewAppError("CONFIG_ERROR", "ORACLE_TIMEOUT must be positive", ErrValidation, nil)
	}
	return nil
}

// ValidateServer additionally checks what the daemon needs to serve traffic.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Auth.JWTSecret == "" {
		return NewAppError("CONFIG_ERROR", "JWT_SECRET is required", ErrValidation, nil)
	}
	if c.Oracle.URL == "" {
		return NewAppError("CONFIG_ERROR", "ORACLE_URL is required", ErrValidation, nil)
	}
	if c.Transfer.URL == "" {
		return NewAppError("CONFIG_ERROR", "TRANSFER_URL is required", ErrValidation, nil)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrValidation, nil)
	}
	return nil
}

// SlogLevel parses the configured log level, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
