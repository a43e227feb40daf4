package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	AdminUsername      string
	AdminPasswordHash  string
	AccessTokenTTL     time.Duration
	CORSAllowedOrigins []string
	CurrencyCode       string

	CMSBaseURL      string
	CMSProjectID    string
	CMSDataset      string
	CMSAPIVersion   string
	CMSToken        string
	CatalogCacheTTL time.Duration

	CartTTL        time.Duration
	IdempotencyTTL time.Duration

	StripeSecretKey     string
	StripeWebhookSecret string

	ShippoAPIKey         string
	ShippoBaseURL        string
	ShippingWebhookToken string
	Origin               Address

	EmailAPIURL     string
	EmailServiceID  string
	EmailTemplateID string
	EmailUserID     string
	EmailFrom       string
	EmailCC         string

	OutboundTimeout    time.Duration
	RetryMaxAttempts   int
	RetryBaseBackoff   time.Duration
	CircuitFailures    int
	CircuitCooldown    time.Duration
	RateLimitPerMinute int
	LoginRateLimit     string

	WorkerConcurrency int
	AuditEnabled      bool
}

// Address is the warehouse ship-from address.
type Address struct {
	Name    string
	Street1 string
	City    string
	State   string
	Zip     string
	Country string
	Phone   string
	Email   string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		JWTSecret:          k.String("JWT_SECRET"),
		AdminUsername:      valueOrDefault(k.String("ADMIN_USERNAME"), "admin"),
		AdminPasswordHash:  strings.TrimSpace(k.String("ADMIN_PASSWORD_HASH")),
		AccessTokenTTL:     parseDuration(k.String("ACCESS_TOKEN_TTL"), "8h"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:       strings.ToLower(valueOrDefault(k.String("CURRENCY_CODE"), "usd")),

		CMSBaseURL:      strings.TrimRight(k.String("CMS_BASE_URL"), "/"),
		CMSProjectID:    k.String("CMS_PROJECT_ID"),
		CMSDataset:      valueOrDefault(k.String("CMS_DATASET"), "production"),
		CMSAPIVersion:   valueOrDefault(k.String("CMS_API_VERSION"), "2024-01-01"),
		CMSToken:        k.String("CMS_TOKEN"),
		CatalogCacheTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),

		CartTTL:        parseDuration(k.String("CART_TTL"), "168h"),
		IdempotencyTTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		StripeSecretKey:     k.String("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: k.String("STRIPE_WEBHOOK_SECRET"),

		ShippoAPIKey:  k.String("SHIPPO_API_KEY"),
		ShippoBaseURL: valueOrDefault(k.String("SHIPPO_BASE_URL"), "https://api.goshippo.com"),
		ShippingWebhookToken: k.String("SHIPPING_WEBHOOK_TOKEN"),
		Origin: Address{
			Name:    valueOrDefault(k.String("SHIPPING_ORIGIN_NAME"), "Warehouse"),
			Street1: valueOrDefault(k.String("SHIPPING_ORIGIN_STREET"), "123 Commerce St"),
			City:    valueOrDefault(k.String("SHIPPING_ORIGIN_CITY"), "Los Angeles"),
			State:   valueOrDefault(k.String("SHIPPING_ORIGIN_STATE"), "CA"),
			Zip:     valueOrDefault(k.String("SHIPPING_ORIGIN_ZIP"), "90210"),
			Country: valueOrDefault(k.String("SHIPPING_ORIGIN_COUNTRY"), "US"),
			Phone:   k.String("SHIPPING_ORIGIN_PHONE"),
			Email:   k.String("SHIPPING_ORIGIN_EMAIL"),
		},

		EmailAPIURL:     valueOrDefault(k.String("EMAIL_API_URL"), "https://api.emailjs.com/api/v1.0/email/send"),
		EmailServiceID:  k.String("EMAIL_SERVICE_ID"),
		EmailTemplateID: k.String("EMAIL_TEMPLATE_ID"),
		EmailUserID:     k.String("EMAIL_USER_ID"),
		EmailFrom:       k.String("EMAIL_FROM"),
		EmailCC:         k.String("EMAIL_CC"),

		OutboundTimeout:    parseDuration(k.String("OUTBOUND_TIMEOUT"), "10s"),
		RetryMaxAttempts:   parseInt(k.String("RETRY_MAX_ATTEMPTS"), 3),
		RetryBaseBackoff:   parseDuration(k.String("RETRY_BASE_BACKOFF"), "200ms"),
		CircuitFailures:    parseInt(k.String("CIRCUIT_FAILURE_THRESHOLD"), 5),
		CircuitCooldown:    parseDuration(k.String("CIRCUIT_COOLDOWN"), "30s"),
		RateLimitPerMinute: parseInt(k.String("RATE_LIMIT_PER_MINUTE"), 120),
		LoginRateLimit:     valueOrDefault(k.String("RATE_LIMIT_LOGIN"), "5-M"),

		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 5),
		AuditEnabled:      parseBool(k.String("AUDIT_ENABLED"), true),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.CMSBaseURL == "" && cfg.CMSProjectID != "" {
		cfg.CMSBaseURL = fmt.Sprintf("https://%s.api.sanity.io", cfg.CMSProjectID)
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

// UsePostgres reports whether orders are persisted in Postgres rather than memory.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
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

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	return fallback
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
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
