package gastronomy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nmezhenskyi/gastronomy-api/internal/audit"
	"github.com/nmezhenskyi/gastronomy-api/internal/jobs"
	"github.com/nmezhenskyi/gastronomy-api/internal/rate"
	"github.com/nmezhenskyi/gastronomy-api/internal/storage"
	"github.com/nmezhenskyi/gastronomy-api/jwt"
	"github.com/nmezhenskyi/gastronomy-api/password"
	"github.com/nmezhenskyi/gastronomy-api/session"
)

const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
	EnvironmentTest        = "test"
)

const (
	RateBackendMemory = "memory"
	RateBackendRedis  = "redis"
)

// Config is the full service configuration.
type Config struct {
	Environment string          `mapstructure:"environment"`
	HTTP        HTTPConfig      `mapstructure:"http"`
	Database    storage.Config  `mapstructure:"database"`
	JWT         JWTConfig       `mapstructure:"jwt"`
	Session     SessionConfig   `mapstructure:"session"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	Password    password.Config `mapstructure:"password"`
	Audit       audit.Config    `mapstructure:"audit"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	Log         LogConfig       `mapstructure:"log"`
}

// HTTPConfig configures the listener and cookie behavior.
type HTTPConfig struct {
	Address            string        `mapstructure:"address"`
	// ClientURL is the allowed CORS origin. Empty disables CORS headers.
	ClientURL          string        `mapstructure:"client_url"`
	// Documentation is returned by GET /.
	Documentation      string        `mapstructure:"documentation"`
	SecureCookies      bool          `mapstructure:"secure_cookies"`
	TrustProxyHeaders  bool          `mapstructure:"trust_proxy_headers"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size"`
}

// JWTConfig configures token signing.
type JWTConfig struct {
	Issuer        string        `mapstructure:"issuer"`
	AccessSecret  string        `mapstructure:"access_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	Leeway        time.Duration `mapstructure:"leeway"`
}

// SessionConfig configures refresh-token persistence and the cleanup sweep.
type SessionConfig struct {
	MaxTokensPerPrincipal int           `mapstructure:"max_tokens_per_principal"`
	CleanupRetention      time.Duration `mapstructure:"cleanup_retention"`
	// CleanupSchedule is a cron spec with a leading seconds field, in local time.
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
	CleanupEnabled  bool   `mapstructure:"cleanup_enabled"`
}

// RateLimitConfig configures the per-client request limiter.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Limit of zero selects the environment default.
	Limit         int           `mapstructure:"limit"`
	Window        time.Duration `mapstructure:"window"`
	Backend       string        `mapstructure:"backend"`
	RedisAddress  string        `mapstructure:"redis_address"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	FailOpen      bool          `mapstructure:"fail_open"`
}

// MetricsConfig controls in-process counters and their exporters.
type MetricsConfig struct {
	Enabled                 bool          `mapstructure:"enabled"`
	EnableLatencyHistograms bool          `mapstructure:"enable_latency_histograms"`
	Path                    string        `mapstructure:"path"`
	OTel                    bool          `mapstructure:"otel"`
	// OTelEndpoint is the OTLP/HTTP collector host:port.
	OTelEndpoint            string        `mapstructure:"otel_endpoint"`
	OTelInterval            time.Duration `mapstructure:"otel_interval"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultConfig returns development defaults. Secrets are left empty and must
// be supplied.
func DefaultConfig() Config {
	return Config{
		Environment: EnvironmentDevelopment,
		HTTP: HTTPConfig{
			Address:            ":8080",
			ReadHeaderTimeout:  5 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			MaxRequestBodySize: 1 << 20,
		},
		Database: storage.Config{
			Dialect:    storage.DialectSQLite,
			Datasource: "file:gastronomy.db?_fk=1",
			Migrate:    true,
		},
		JWT: JWTConfig{
			Issuer:     jwt.DefaultIssuer,
			AccessTTL:  jwt.DefaultAccessTTL,
			RefreshTTL: jwt.DefaultRefreshTTL,
		},
		Session: SessionConfig{
			MaxTokensPerPrincipal: session.DefaultMaxTokensPerPrincipal,
			CleanupRetention:      session.DefaultCleanupRetention,
			CleanupSchedule:       jobs.DefaultSchedule,
			CleanupEnabled:        true,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Window:   rate.DefaultWindow,
			Backend:  RateBackendMemory,
			FailOpen: true,
		},
		Password: password.DefaultConfig(),
		Audit: audit.Config{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
			Path:                    "/metrics",
			OTelEndpoint:            "localhost:4318",
			OTelInterval:            30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// IsProduction reports whether the production environment is selected.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvironmentProduction)
}

// EffectiveRateLimit resolves a zero limit to 50 in production and 15 elsewhere.
func (c *Config) EffectiveRateLimit() int {
	if c.RateLimit.Limit > 0 {
		return c.RateLimit.Limit
	}
	if c.IsProduction() {
		return rate.ProductionLimit
	}
	return rate.DevelopmentLimit
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Environment) {
	case EnvironmentDevelopment, EnvironmentProduction, EnvironmentTest:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}

	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return errors.New("jwt access_secret and refresh_secret are required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("jwt access_secret and refresh_secret must differ")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("jwt access_ttl and refresh_ttl must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("jwt leeway must be within [0, 2m]")
	}

	if c.Session.MaxTokensPerPrincipal < 1 {
		return errors.New("session max_tokens_per_principal must be >= 1")
	}
	if c.Session.CleanupRetention < 0 {
		return errors.New("session cleanup_retention must be >= 0")
	}
	if c.Session.CleanupEnabled {
		if _, err := jobs.ParseSchedule(c.Session.CleanupSchedule); err != nil {
			return err
		}
	}

	if _, err := storage.ParseDialect(c.Database.Dialect); err != nil {
		return err
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Limit < 0 {
			return errors.New("rate_limit limit must be >= 0")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("rate_limit window must be > 0")
		}
		switch c.RateLimit.Backend {
		case RateBackendMemory:
		case RateBackendRedis:
			if c.RateLimit.RedisAddress == "" {
				return errors.New("rate_limit redis_address is required for the redis backend")
			}
		default:
			return fmt.Errorf("unknown rate_limit backend %q", c.RateLimit.Backend)
		}
	}

	if err := c.Password.Validate(); err != nil {
		return err
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer_size must be > 0")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("metrics path must start with /")
	}
	if c.Metrics.OTel && (c.Metrics.OTelEndpoint == "" || c.Metrics.OTelInterval <= 0) {
		return errors.New("metrics otel_endpoint and a positive otel_interval are required for otel export")
	}
	return nil
}
