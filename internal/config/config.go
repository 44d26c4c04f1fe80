package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	StoreGorm = "gorm"
	StorePgx  = "pgx"

	defaultDatabaseURL    = "sqlite:///tmp/hostel.db"
	defaultListenAddr     = ":8080"
	defaultSessionIssuer  = "tauth"
	defaultSessionCookie  = "app_session"
	defaultAMQPQueue      = "hostel.bookings"
	defaultAdminRole      = "admin"
	defaultLockTimeout    = 5 * time.Second
	defaultRequestTimeout = 10 * time.Second
	defaultReportCacheTTL = 30 * time.Second
	defaultSweepInterval  = time.Hour
	defaultSweepBatch     = 100
)

// Config aggregates runtime settings for hosteld.
type Config struct {
	DatabaseURL       string
	Store             string
	ListenAddr        string
	LockTimeout       time.Duration
	RequestTimeout    time.Duration
	AllowedOrigins    []string
	SessionSigningKey string
	SessionIssuer     string
	SessionCookieName string
	AdminRole         string
	RedisAddr         string
	ReportCacheTTL    time.Duration
	AMQPURL           string
	AMQPQueue         string
	SweepInterval     time.Duration
	SweepBatch        int
}

// Validate fills defaults and rejects unusable values. A zero SweepInterval disables the sweeper,
// so it only defaults when negative.
func (cfg *Config) Validate() error {
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	cfg.Store = strings.ToLower(defaultIfEmpty(cfg.Store, StoreGorm))
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.SessionIssuer = defaultIfEmpty(cfg.SessionIssuer, defaultSessionIssuer)
	cfg.SessionCookieName = defaultIfEmpty(cfg.SessionCookieName, defaultSessionCookie)
	cfg.AdminRole = defaultIfEmpty(cfg.AdminRole, defaultAdminRole)
	cfg.AMQPQueue = defaultIfEmpty(cfg.AMQPQueue, defaultAMQPQueue)
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = defaultLockTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ReportCacheTTL <= 0 {
		cfg.ReportCacheTTL = defaultReportCacheTTL
	}
	if cfg.SweepInterval < 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = defaultSweepBatch
	}
	switch cfg.Store {
	case StoreGorm:
	case StorePgx:
		if !IsPostgresURL(cfg.DatabaseURL) {
			return fmt.Errorf("store %q requires a postgres database url", StorePgx)
		}
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", cfg.Store, StoreGorm, StorePgx)
	}
	return nil
}

// ValidateServe validates like Validate and also requires session settings.
func (cfg *Config) ValidateServe() error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(cfg.SessionSigningKey) == 0 {
		return fmt.Errorf("jwt signing key is required")
	}
	return nil
}

// IsPostgresURL reports whether raw names a postgres database.
func IsPostgresURL(raw string) bool {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	return strings.HasPrefix(lowered, "postgres://") || strings.HasPrefix(lowered, "postgresql://")
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
