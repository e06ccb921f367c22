package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/segyhp/collection-ledger/internal/domain"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	NATS      NATSConfig      `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string `mapstructure:"SERVER_PORT"`
	Host         string `mapstructure:"SERVER_HOST"`
	Env          string `mapstructure:"ENV"`
	ReadTimeout  string `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout string `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int    `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime string `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	URL string `mapstructure:"REDIS_URL"`
}

type NATSConfig struct {
	URL string `mapstructure:"NATS_URL"`
}

type SchedulerConfig struct {
	OverdueSpec string `mapstructure:"SCHEDULER_OVERDUE_SPEC"`
	WeeklySpec  string `mapstructure:"SCHEDULER_WEEKLY_SPEC"`
	Timezone    string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	WeeklyRate           string `mapstructure:"WEEKLY_RATE"`
	DefaultLoanWeeks     int    `mapstructure:"DEFAULT_LOAN_WEEKS"`
	DefaultCollectionDay int    `mapstructure:"DEFAULT_COLLECTION_DAY"`
	CurrencyPrecision    int    `mapstructure:"CURRENCY_PRECISION"`
	CacheTTL             string `mapstructure:"CACHE_TTL"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

var keys = []string{
	"SERVER_PORT", "SERVER_HOST", "ENV", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT",
	"DATABASE_URL", "DATABASE_MAX_OPEN_CONNS", "DATABASE_MAX_IDLE_CONNS", "DATABASE_CONN_MAX_LIFETIME",
	"REDIS_URL", "NATS_URL",
	"SCHEDULER_OVERDUE_SPEC", "SCHEDULER_WEEKLY_SPEC", "SCHEDULER_TIMEZONE",
	"LOG_LEVEL", "LOG_FORMAT",
	"WEEKLY_RATE", "DEFAULT_LOAN_WEEKS", "DEFAULT_COLLECTION_DAY", "CURRENCY_PRECISION", "CACHE_TTL",
	"HEALTH_CHECK_TIMEOUT",
}

// Load reads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	// Don't fail if .env file doesn't exist
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "1h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("WEEKLY_RATE", "0.05")
	v.SetDefault("DEFAULT_LOAN_WEEKS", 24)
	v.SetDefault("DEFAULT_COLLECTION_DAY", 0)
	v.SetDefault("CURRENCY_PRECISION", 2)
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("SCHEDULER_OVERDUE_SPEC", "0 5 0 * * *")
	v.SetDefault("SCHEDULER_TIMEZONE", "Asia/Kolkata")
	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")

	// Read from environment variables
	v.AutomaticEnv()
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// The weekly report runs on the collection day unless scheduled explicitly
	if config.Scheduler.WeeklySpec == "" {
		config.Scheduler.WeeklySpec = fmt.Sprintf("0 0 18 * * %d", config.Business.DefaultCollectionDay)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate weekly rate
	rate, err := decimal.NewFromString(c.Business.WeeklyRate)
	if err != nil {
		return fmt.Errorf("WEEKLY_RATE must be a valid decimal: %w", err)
	}
	if !rate.IsPositive() {
		return fmt.Errorf("WEEKLY_RATE must be greater than 0")
	}

	if c.Business.DefaultLoanWeeks <= 0 {
		return fmt.Errorf("DEFAULT_LOAN_WEEKS must be greater than 0")
	}

	if c.Business.DefaultCollectionDay < 0 || c.Business.DefaultCollectionDay > 6 {
		return fmt.Errorf("DEFAULT_COLLECTION_DAY must be between 0 (Sunday) and 6 (Saturday)")
	}

	if c.Business.CurrencyPrecision < 0 || c.Business.CurrencyPrecision > 6 {
		return fmt.Errorf("CURRENCY_PRECISION must be between 0 and 6")
	}

	for name, value := range map[string]string{
		"SERVER_READ_TIMEOUT":        c.Server.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":       c.Server.WriteTimeout,
		"DATABASE_CONN_MAX_LIFETIME": c.Database.ConnMaxLifetime,
		"CACHE_TTL":                  c.Business.CacheTTL,
		"HEALTH_CHECK_TIMEOUT":       c.Health.Timeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s must be a valid duration: %w", name, err)
		}
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid IANA zone: %w", err)
	}

	return nil
}

// LedgerSettings returns the lending defaults as an explicit value for the services
func (c *Config) LedgerSettings() domain.LedgerSettings {
	rate, _ := decimal.NewFromString(c.Business.WeeklyRate)
	return domain.LedgerSettings{
		WeeklyRate:        rate,
		DefaultWeeks:      c.Business.DefaultLoanWeeks,
		CollectionDay:     time.Weekday(c.Business.DefaultCollectionDay),
		CurrencyPrecision: int32(c.Business.CurrencyPrecision),
	}
}

// GetCacheTTL returns the report cache TTL as duration
func (c *Config) GetCacheTTL() time.Duration {
	ttl, _ := time.ParseDuration(c.Business.CacheTTL)
	return ttl
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}

// GetReadTimeout returns the HTTP read timeout as duration
func (c *Config) GetReadTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Server.ReadTimeout)
	return timeout
}

// GetWriteTimeout returns the HTTP write timeout as duration
func (c *Config) GetWriteTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Server.WriteTimeout)
	return timeout
}

// GetConnMaxLifetime returns the pooled connection lifetime as duration
func (c *Config) GetConnMaxLifetime() time.Duration {
	lifetime, _ := time.ParseDuration(c.Database.ConnMaxLifetime)
	return lifetime
}

// GetSchedulerLocation returns the scheduler time zone
func (c *Config) GetSchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
