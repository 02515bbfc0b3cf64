package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
	AccessCookie   string
	CookieSecure   bool

	CORSAllowedOrigins []string

	// StoreTimeZone fixes the civil date promotions and sales reports use.
	StoreTimeZone string
	CartTTL       time.Duration
	CatalogTTL    time.Duration
	LockTTL       time.Duration
	// CartRateLimit is a ulule formatted rate, e.g. "60-M".
	CartRateLimit string
	MaxBodyBytes  int64

	WebpayCommerceCode string
	WebpayAPIKey       string
	WebpayBaseURL      string
	WebpaySandbox      bool
	PaymentReturnURL   string

	StaffEmail   string
	StoreName    string
	SMTPAddr     string
	SMTPFrom     string
	SMTPUser     string
	SMTPPassword string

	WorkerConcurrency int
	OTLPEndpoint      string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:      valueOrDefault(k.String("APP_ENV"), "development"),
		Port:        valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL: k.String("DATABASE_URL"),
		RedisURL:    k.String("REDIS_URL"),

		JWTSecret:      k.String("JWT_SECRET"),
		JWTIssuer:      valueOrDefault(k.String("JWT_ISSUER"), "pasteleria"),
		JWTAudience:    strings.TrimSpace(k.String("JWT_AUDIENCE")),
		AccessTokenTTL: parseDuration(k.String("ACCESS_TOKEN_TTL"), "15m"),
		AccessCookie:   valueOrDefault(k.String("ACCESS_COOKIE"), "access_token"),
		CookieSecure:   parseBool(k.String("COOKIE_SECURE")),

		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		StoreTimeZone: valueOrDefault(k.String("STORE_TIMEZONE"), "America/Santiago"),
		CartTTL:       parseDuration(k.String("CART_TTL"), "168h"),
		CatalogTTL:    parseDuration(k.String("CATALOG_CACHE_TTL"), "1m"),
		LockTTL:       parseDuration(k.String("CHECKOUT_LOCK_TTL"), "30s"),
		CartRateLimit: valueOrDefault(k.String("CART_RATE_LIMIT"), "60-M"),
		MaxBodyBytes:  k.Int64("MAX_BODY_BYTES"),

		WebpayCommerceCode: k.String("WEBPAY_COMMERCE_CODE"),
		WebpayAPIKey:       k.String("WEBPAY_API_KEY"),
		WebpayBaseURL:      strings.TrimSpace(k.String("WEBPAY_BASE_URL")),
		WebpaySandbox:      parseBoolDefault(k.String("WEBPAY_SANDBOX"), true),
		PaymentReturnURL:   k.String("PAYMENT_RETURN_URL"),

		StaffEmail:   strings.TrimSpace(k.String("STAFF_EMAIL")),
		StoreName:    valueOrDefault(k.String("STORE_NAME"), "Pasteleria"),
		SMTPAddr:     strings.TrimSpace(k.String("SMTP_ADDR")),
		SMTPFrom:     strings.TrimSpace(k.String("SMTP_FROM")),
		SMTPUser:     k.String("SMTP_USER"),
		SMTPPassword: k.String("SMTP_PASSWORD"),

		WorkerConcurrency: k.Int("WORKER_CONCURRENCY"),
		OTLPEndpoint:      strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 5
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if _, err := time.LoadLocation(cfg.StoreTimeZone); err != nil {
		return nil, fmt.Errorf("STORE_TIMEZONE: %w", err)
	}
	if !cfg.WebpaySandbox && (cfg.WebpayCommerceCode == "" || cfg.WebpayAPIKey == "") {
		return nil, errors.New("WEBPAY_COMMERCE_CODE and WEBPAY_API_KEY are required outside the sandbox")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// Location resolves StoreTimeZone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.StoreTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
