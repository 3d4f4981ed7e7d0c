package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/ecomstack/identity/pkg/config"
)

// Config holds all configuration for the identity service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"IDENTITY_HTTP_PORT" envDefault:"8001"`

	// PostgreSQL
	PostgresHost          string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort          int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser          string `env:"POSTGRES_USER" envDefault:"identity"`
	PostgresPass          string `env:"POSTGRES_PASSWORD" envDefault:"identity_secret"`
	PostgresDB            string `env:"IDENTITY_DB_NAME" envDefault:"identity_db"`
	PostgresSSL           string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns            int32  `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32  `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int    `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int    `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"30"`

	// Redis (rate limiting)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT
	JWTSecret       string `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTIssuer       string `env:"JWT_ISSUER" envDefault:"identity-service"`
	JWTAudience     string `env:"JWT_AUDIENCE" envDefault:"ecomstack"`
	JWTAccessExpiry string `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`

	// Token lifetimes
	RefreshTokenExpiry    string `env:"REFRESH_TOKEN_EXPIRY" envDefault:"240h"`
	VerificationCodeTTL   string `env:"VERIFICATION_CODE_TTL" envDefault:"1h"`
	PasswordResetTokenTTL string `env:"PASSWORD_RESET_TOKEN_TTL" envDefault:"1h"`

	// Rate limiting
	LoginRateLimit       int64 `env:"LOGIN_RATE_LIMIT" envDefault:"5"`
	LoginRateWindowSecs  int   `env:"LOGIN_RATE_WINDOW_SECS" envDefault:"300"`
	ResetRateLimit       int64 `env:"RESET_RATE_LIMIT" envDefault:"3"`
	ResetRateWindowSecs  int   `env:"RESET_RATE_WINDOW_SECS" envDefault:"900"`
	RateLimitingDisabled bool  `env:"RATE_LIMITING_DISABLED" envDefault:"false"`

	// Cart service
	CartServiceURL string `env:"CART_SERVICE_URL" envDefault:"http://localhost:8002"`

	// Password reset links
	ResetLinkWebBaseURL   string `env:"RESET_LINK_WEB_BASE_URL" envDefault:"http://localhost:3000"`
	ResetLinkMobileScheme string `env:"RESET_LINK_MOBILE_SCHEME" envDefault:"ecomstack"`
	ResetLinkPage         string `env:"RESET_LINK_PAGE" envDefault:"reset-password"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load identity config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}

	// In non-development environments, require an explicitly set, strong JWT secret.
	if cfg.Environment != "development" {
		if cfg.JWTSecret == "change-this-to-a-secure-secret" {
			return nil, fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", cfg.Environment)
		}
		if len(cfg.JWTSecret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(cfg.JWTSecret))
		}
	}

	for name, raw := range map[string]string{
		"JWT_ACCESS_TOKEN_EXPIRY":  cfg.JWTAccessExpiry,
		"REFRESH_TOKEN_EXPIRY":     cfg.RefreshTokenExpiry,
		"VERIFICATION_CODE_TTL":    cfg.VerificationCodeTTL,
		"PASSWORD_RESET_TOKEN_TTL": cfg.PasswordResetTokenTTL,
	} {
		if _, err := time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
	}

	return cfg, nil
}

// AccessExpiry returns the parsed JWT access token lifetime.
func (c *Config) AccessExpiry() time.Duration { return mustDuration(c.JWTAccessExpiry) }

// RefreshExpiry returns the parsed refresh token lifetime.
func (c *Config) RefreshExpiry() time.Duration { return mustDuration(c.RefreshTokenExpiry) }

// CodeTTL returns the parsed verification code lifetime.
func (c *Config) CodeTTL() time.Duration { return mustDuration(c.VerificationCodeTTL) }

// ResetTokenTTL returns the parsed password reset token lifetime.
func (c *Config) ResetTokenTTL() time.Duration { return mustDuration(c.PasswordResetTokenTTL) }

// mustDuration is safe after Load validated the raw values.
func mustDuration(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
