package config

import (
	"fmt"
	"strings"
	"time"

	"xstock-options/internal/pricing"

	"github.com/spf13/viper"
)

// Version is the venue build reported by the API and the CLI.
const Version = "0.1.0"

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	DatabaseDriver      string // postgres (default) or sqlite
	DatabaseURL         string
	RedisURL            string
	AdminKey            string // X-Admin-Key for feed creation, deposits and account registration
	RiskFreeRate        float64
	OracleStaleAfter    time.Duration
	LogLevel            string
	LogFile             string // empty disables the rotating file writer
	FrontendURLEndsWith string
	DevPassword         string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DATABASE_DRIVER", "postgres")
	viper.SetDefault("RISK_FREE_RATE", pricing.DefaultRiskFreeRate)
	viper.SetDefault("ORACLE_STALE_AFTER", "0s")
	viper.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Env:                 viper.GetString("APP_ENV"),
		Port:                viper.GetString("PORT"),
		DatabaseDriver:      strings.ToLower(viper.GetString("DATABASE_DRIVER")),
		DatabaseURL:         viper.GetString("DATABASE_URL"),
		RedisURL:            viper.GetString("REDIS_URL"),
		AdminKey:            viper.GetString("ADMIN_KEY"),
		RiskFreeRate:        viper.GetFloat64("RISK_FREE_RATE"),
		OracleStaleAfter:    viper.GetDuration("ORACLE_STALE_AFTER"),
		LogLevel:            viper.GetString("LOG_LEVEL"),
		LogFile:             viper.GetString("LOG_FILE"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.RiskFreeRate < 0 || c.RiskFreeRate > 1 {
		return fmt.Errorf("config: RISK_FREE_RATE %v out of range", c.RiskFreeRate)
	}
	if c.Env == "production" && c.AdminKey == "" {
		return fmt.Errorf("config: ADMIN_KEY is required in production")
	}
	return nil
}
