// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        // e.g. "8080"
	BackofficePort       string        // e.g. "8081"
	Env                  string        // "development" | "production"
	ReadTimeout          time.Duration // default 10s
	WriteTimeout         time.Duration // default 10s
	BackofficeAllowedIPs string        // comma-separated IPs; "" = allow all
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        // full postgres DSN
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// JWTConfig holds JWT signing settings.
type JWTConfig struct {
	AccessSecret  string        // must be set
	RefreshSecret string        // must be set
	AccessTTL     time.Duration // default 15m
	RefreshTTL    time.Duration // default 720h (30 days)
}

// PriceConfig holds exchange API settings.
type PriceConfig struct {
	BinanceURL   string        // default "https://api.binance.com"
	MexcURL      string        // default "https://api.mexc.com"
	FetchTimeout time.Duration // default 2s
	CacheTTL     time.Duration // default 1s
	MaxStaleness time.Duration // settlement refuses prices older than this
}

// PaymentsConfig holds payment-provider (IPN) settings.
type PaymentsConfig struct {
	APIBaseURL  string        // provider REST base URL
	APIKey      string        // provider API key
	IPNSecret   string        // shared secret for webhook HMAC verification
	CallbackURL string        // public URL the provider posts webhooks to
	HTTPTimeout time.Duration // default 10s
}

// MailerConfig holds transactional email settings.
type MailerConfig struct {
	APIBaseURL  string        // default "https://api.resend.com"
	APIKey      string        // provider API key; "" disables sending in dev
	FromAddress string        // e.g. "no-reply@nexbit.io"
	HTTPTimeout time.Duration // default 10s
}

// SettingsConfig controls the platform-settings snapshot refresh.
type SettingsConfig struct {
	RefreshInterval time.Duration // default 30s
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	JWT      JWTConfig
	Price    PriceConfig
	Payments PaymentsConfig
	Mailer   MailerConfig
	Settings SettingsConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// Returns the first validation error encountered.
func (c *Config) Validate() error {
	var errs []error

	// JWT secrets are mandatory
	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set"))
	}
	if c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET must be set"))
	}

	// In production, DB DSN and the IPN secret must be explicit
	if c.IsProd() && c.DB.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
	}
	if c.IsProd() && c.Payments.IPNSecret == "" {
		errs = append(errs, errors.New("PAYMENTS_IPN_SECRET must be set in production"))
	}

	if c.Price.MaxStaleness <= 0 {
		errs = append(errs, fmt.Errorf(
			"PRICE_MAX_STALENESS must be positive, got %v", c.Price.MaxStaleness))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:                 getEnv("SERVER_PORT", "8080"),
		BackofficePort:       getEnv("BACKOFFICE_PORT", "8081"),
		Env:                  getEnv("ENVIRONMENT", "development"),
		ReadTimeout:          getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:         getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		BackofficeAllowedIPs: getEnv("BACKOFFICE_ALLOWED_IPS", ""),
	}

	// ── Database ──────────────────────────────────────────────────────────────
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		// Build DSN from individual components for convenience in dev
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "nexbit_tradecore"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}

	cfg.DB = DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── JWT ───────────────────────────────────────────────────────────────────
	cfg.JWT = JWTConfig{
		AccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		RefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
		AccessTTL:     getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:    getDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
	}

	// ── Price ─────────────────────────────────────────────────────────────────
	cfg.Price = PriceConfig{
		BinanceURL:   getEnv("PRICE_BINANCE_URL", "https://api.binance.com"),
		MexcURL:      getEnv("PRICE_MEXC_URL", "https://api.mexc.com"),
		FetchTimeout: getDuration("PRICE_FETCH_TIMEOUT", 2*time.Second),
		CacheTTL:     getDuration("PRICE_CACHE_TTL", 1*time.Second),
		MaxStaleness: getDuration("PRICE_MAX_STALENESS", 10*time.Second),
	}

	// ── Payments ──────────────────────────────────────────────────────────────
	cfg.Payments = PaymentsConfig{
		APIBaseURL:  getEnv("PAYMENTS_API_BASE_URL", "https://api.nowpayments.io/v1"),
		APIKey:      getEnv("PAYMENTS_API_KEY", ""),
		IPNSecret:   getEnv("PAYMENTS_IPN_SECRET", ""),
		CallbackURL: getEnv("PAYMENTS_CALLBACK_URL", ""),
		HTTPTimeout: getDuration("PAYMENTS_HTTP_TIMEOUT", 10*time.Second),
	}

	// ── Mailer ────────────────────────────────────────────────────────────────
	cfg.Mailer = MailerConfig{
		APIBaseURL:  getEnv("MAILER_API_BASE_URL", "https://api.resend.com"),
		APIKey:      getEnv("MAILER_API_KEY", ""),
		FromAddress: getEnv("MAILER_FROM_ADDRESS", "no-reply@nexbit.io"),
		HTTPTimeout: getDuration("MAILER_HTTP_TIMEOUT", 10*time.Second),
	}

	// ── Settings snapshot ─────────────────────────────────────────────────────
	cfg.Settings = SettingsConfig{
		RefreshInterval: getDuration("SETTINGS_REFRESH_INTERVAL", 30*time.Second),
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Log warning and fall back to default; do not crash on parse error
		return defaultVal
	}
	return d
}
