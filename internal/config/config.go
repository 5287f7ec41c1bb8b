package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// External clinic API (scheduling, invoicing, clinical notes, reports)
	ClinicAPIBaseURL string
	ClinicAPIToken   string
	ClinicAPITimeout time.Duration

	// Payment vendor (hosted checkout widget)
	VendorBaseURL     string
	VendorPublicKey   string
	VendorRedirectURL string

	// Checkout state machine
	CheckoutPollInterval time.Duration

	// Persistence for the checkout attempt journal
	DatabaseURL string

	// Wait-time report cache
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	WaitTimesTTL  time.Duration

	// Portal auth
	PortalJWTSecret string

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		ClinicAPIBaseURL: getEnv("CLINIC_API_BASE_URL", ""),
		ClinicAPIToken:   getEnv("CLINIC_API_TOKEN", ""),
		ClinicAPITimeout: getEnvAsDuration("CLINIC_API_TIMEOUT", 15*time.Second),

		VendorBaseURL:     getEnv("VENDOR_BASE_URL", "https://production.wompi.co"),
		VendorPublicKey:   getEnv("VENDOR_PUBLIC_KEY", ""),
		VendorRedirectURL: getEnv("VENDOR_REDIRECT_URL", ""),

		CheckoutPollInterval: getEnvAsDuration("CHECKOUT_POLL_INTERVAL", 3*time.Second),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		WaitTimesTTL:  getEnvAsDuration("WAIT_TIMES_TTL", time.Minute),

		PortalJWTSecret: getEnv("PORTAL_JWT_SECRET", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
