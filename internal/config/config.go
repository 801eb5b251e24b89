package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string `json:"-"`
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	Migrate         bool
}

func (c PostgresConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// MigrateURL is the DSN understood by golang-migrate's pgx/v5 driver.
func (c PostgresConfig) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// PricingConfig is the checkout pricing policy. It can be overridden by a YAML file.
type PricingConfig struct {
	Currency string `yaml:"currency"`
	// TaxRateBasisPoints: 1200 means 12%.
	TaxRateBasisPoints int64 `yaml:"tax_rate_basis_points"`
	// Amounts in minor units.
	FlatShippingCents          int64 `yaml:"flat_shipping_cents"`
	FreeShippingThresholdCents int64 `yaml:"free_shipping_threshold_cents"`
}

type CheckoutConfig struct {
	StepTimeout            time.Duration
	StrictConfirmation     bool
	ConcurrentReservations bool
}

type Config struct {
	App struct {
		Port     string
		LogLevel zerolog.Level
	}
	Postgres PostgresConfig
	Redis    struct {
		URL     string `json:"-"`
		CartTTL time.Duration
	}
	RabbitMQ struct {
		URL           string `json:"-"`
		OrderExchange string
	}
	Auth struct {
		JWTSecret string `json:"-"`
		TokenTTL  time.Duration
	}
	Pricing  PricingConfig
	Checkout CheckoutConfig
}

var ErrMissingValue = errors.New("required configuration value is missing")

// NewConfig loads .env (if present) and then reads the environment.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	var err error

	cfg.App.Port = getEnv("APP_PORT", "8080")
	cfg.App.LogLevel, err = zerolog.ParseLevel(getEnv("LOG_LEVEL", "debug"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg.Postgres.Host = getEnv("DB_HOST", "localhost")
	cfg.Postgres.Port = getEnv("DB_PORT", "5432")
	cfg.Postgres.User = getEnv("DB_USER", "postgres")
	cfg.Postgres.Password = os.Getenv("DB_PASSWORD")
	cfg.Postgres.DBName = getEnv("DB_NAME", "nexoshop")
	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", "disable")
	if cfg.Postgres.MaxConns, err = getEnvInt32("DB_MAX_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.Postgres.MinConns, err = getEnvInt32("DB_MIN_CONNS", 2); err != nil {
		return nil, err
	}
	if cfg.Postgres.MaxConnLifetime, err = getEnvDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Postgres.Migrate, err = getEnvBool("DB_MIGRATE", true); err != nil {
		return nil, err
	}

	cfg.Redis.URL = getEnv("REDIS_URL", "redis://localhost:6379/0")
	if cfg.Redis.CartTTL, err = getEnvDuration("CART_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}

	cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
	cfg.RabbitMQ.OrderExchange = getEnv("ORDER_EXCHANGE", "orders_exchange")

	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.Auth.TokenTTL, err = getEnvDuration("JWT_TOKEN_TTL", 72*time.Hour); err != nil {
		return nil, err
	}

	if cfg.Checkout.StepTimeout, err = getEnvDuration("CHECKOUT_STEP_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.Checkout.StrictConfirmation, err = getEnvBool("CHECKOUT_STRICT_CONFIRMATION", false); err != nil {
		return nil, err
	}
	if cfg.Checkout.ConcurrentReservations, err = getEnvBool("CHECKOUT_CONCURRENT_RESERVATIONS", false); err != nil {
		return nil, err
	}

	cfg.Pricing = DefaultPricing()
	if path := os.Getenv("PRICING_FILE"); path != "" {
		if cfg.Pricing, err = LoadPricing(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Postgres.Password == "" {
		return fmt.Errorf("%w: DB_PASSWORD", ErrMissingValue)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: JWT_SECRET", ErrMissingValue)
	}
	return c.Pricing.Validate()
}

// DefaultPricing is 12% tax and free shipping.
func DefaultPricing() PricingConfig {
	return PricingConfig{
		Currency:           "USD",
		TaxRateBasisPoints: 1200,
	}
}

func LoadPricing(path string) (PricingConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return PricingConfig{}, fmt.Errorf("failed to open pricing file: %w", err)
	}
	defer file.Close()

	pricing := DefaultPricing()
	if err := yaml.NewDecoder(file).Decode(&pricing); err != nil {
		return PricingConfig{}, fmt.Errorf("invalid pricing file %s: %w", path, err)
	}

	if err := pricing.Validate(); err != nil {
		return PricingConfig{}, err
	}
	return pricing, nil
}

func (p PricingConfig) Validate() error {
	if p.TaxRateBasisPoints < 0 || p.TaxRateBasisPoints > 10000 {
		return fmt.Errorf("tax rate must be between 0 and 10000 basis points, got %d", p.TaxRateBasisPoints)
	}
	if p.FlatShippingCents < 0 || p.FreeShippingThresholdCents < 0 {
		return errors.New("shipping amounts cannot be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt32(key string, defaultValue int32) (int32, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return int32(v), nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
