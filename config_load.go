package gastronomy

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. GASTRONOMY_JWT_ACCESS_SECRET.
const EnvPrefix = "GASTRONOMY"

// LoadConfig reads the YAML file at path, when path is non-empty, over
// DefaultConfig and applies environment overrides. The result is validated.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("environment", d.Environment)

	v.SetDefault("http.address", d.HTTP.Address)
	v.SetDefault("http.client_url", d.HTTP.ClientURL)
	v.SetDefault("http.documentation", d.HTTP.Documentation)
	v.SetDefault("http.secure_cookies", d.HTTP.SecureCookies)
	v.SetDefault("http.trust_proxy_headers", d.HTTP.TrustProxyHeaders)
	v.SetDefault("http.read_header_timeout", d.HTTP.ReadHeaderTimeout)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)
	v.SetDefault("http.max_request_body_size", d.HTTP.MaxRequestBodySize)

	v.SetDefault("database.dialect", d.Database.Dialect)
	v.SetDefault("database.datasource", d.Database.Datasource)
	v.SetDefault("database.migrate", d.Database.Migrate)
	v.SetDefault("database.sql_logging", d.Database.SQLLogging)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)

	v.SetDefault("jwt.issuer", d.JWT.Issuer)
	v.SetDefault("jwt.access_secret", d.JWT.AccessSecret)
	v.SetDefault("jwt.refresh_secret", d.JWT.RefreshSecret)
	v.SetDefault("jwt.access_ttl", d.JWT.AccessTTL)
	v.SetDefault("jwt.refresh_ttl", d.JWT.RefreshTTL)
	v.SetDefault("jwt.leeway", d.JWT.Leeway)

	v.SetDefault("session.max_tokens_per_principal", d.Session.MaxTokensPerPrincipal)
	v.SetDefault("session.cleanup_retention", d.Session.CleanupRetention)
	v.SetDefault("session.cleanup_schedule", d.Session.CleanupSchedule)
	v.SetDefault("session.cleanup_enabled", d.Session.CleanupEnabled)

	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.limit", d.RateLimit.Limit)
	v.SetDefault("rate_limit.window", d.RateLimit.Window)
	v.SetDefault("rate_limit.backend", d.RateLimit.Backend)
	v.SetDefault("rate_limit.redis_address", d.RateLimit.RedisAddress)
	v.SetDefault("rate_limit.redis_password", d.RateLimit.RedisPassword)
	v.SetDefault("rate_limit.redis_db", d.RateLimit.RedisDB)
	v.SetDefault("rate_limit.fail_open", d.RateLimit.FailOpen)

	v.SetDefault("password.memory", d.Password.Memory)
	v.SetDefault("password.time", d.Password.Time)
	v.SetDefault("password.parallelism", d.Password.Parallelism)
	v.SetDefault("password.salt_length", d.Password.SaltLength)
	v.SetDefault("password.key_length", d.Password.KeyLength)
	v.SetDefault("password.min_length", d.Password.MinLength)

	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.buffer_size", d.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", d.Audit.DropIfFull)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.enable_latency_histograms", d.Metrics.EnableLatencyHistograms)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("metrics.otel", d.Metrics.OTel)
	v.SetDefault("metrics.otel_endpoint", d.Metrics.OTelEndpoint)
	v.SetDefault("metrics.otel_interval", d.Metrics.OTelInterval)

	v.SetDefault("log.level", d.Log.Level)
}
