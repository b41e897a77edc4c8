package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "BNC"

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App      AppConfig
	CORS     CORSConfig
	Square   SquareConfig
	Payments PaymentsConfig
	Sendgrid SendgridConfig
	Redis    RedisConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BNC_APP_ENV" default:"development"`
	Port         string `envconfig:"BNC_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type CORSConfig struct {
	// AllowedOrigins defaults to permissive when left empty.
	AllowedOrigins []string `envconfig:"BNC_CORS_ALLOWED_ORIGINS"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"BNC_SQUARE_ACCESS_TOKEN"`
	LocationID  string `envconfig:"BNC_SQUARE_LOCATION_ID"`
	Env         string `envconfig:"BNC_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type PaymentsConfig struct {
	AllowedCurrencies []string `envconfig:"BNC_PAYMENTS_ALLOWED_CURRENCIES" default:"USD"`
	MinAmountCents    int64    `envconfig:"BNC_PAYMENTS_MIN_AMOUNT_CENTS" default:"50"`
	MaxAmountCents    int64    `envconfig:"BNC_PAYMENTS_MAX_AMOUNT_CENTS" default:"1000000"`
	Debug             bool     `envconfig:"BNC_PAYMENTS_DEBUG" default:"false"`
}

// CurrencyAllowed reports whether code is on the configured allow-list.
func (p PaymentsConfig) CurrencyAllowed(code string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	for _, allowed := range p.AllowedCurrencies {
		if strings.ToUpper(strings.TrimSpace(allowed)) == normalized {
			return true
		}
	}
	return false
}

type SendgridConfig struct {
	APIKey      string `envconfig:"BNC_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"BNC_SENDGRID_FROM_EMAIL"`
}

type RedisConfig struct {
	URL          string `envconfig:"BNC_REDIS_URL"`
	Address      string `envconfig:"BNC_REDIS_ADDR"`
	Password     string `envconfig:"BNC_REDIS_PASSWORD"`
	DB           int    `envconfig:"BNC_REDIS_DB" default:"0"`
	PoolSize     int    `envconfig:"BNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int    `envconfig:"BNC_REDIS_MIN_IDLE_CONNS" default:"2"`
}

// Enabled reports whether a Redis endpoint was configured at all. The cart
// storage degrades to memory-only when it is absent.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}
