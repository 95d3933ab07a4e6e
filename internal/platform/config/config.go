package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName     string `env:"SERVICE_NAME" envDefault:"pqrsd"`
	HTTPPort        string `env:"HTTP_PORT" envDefault:"8080"`
	PostgresDSN     string `env:"POSTGRES_DSN"`
	StorageDriver   string `env:"STORAGE_DRIVER" envDefault:"memory"`
	MessagingDriver string `env:"MESSAGING_DRIVER" envDefault:"memory"`
	RedisURL        string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`

	Timezone            string   `env:"TIMEZONE" envDefault:"America/Bogota"`
	Holidays            []string `env:"HOLIDAYS" envSeparator:","`
	HolidayCalendarFile string   `env:"HOLIDAY_CALENDAR_FILE"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	OutboxPollInterval   time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize      int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	DeadlineScanInterval time.Duration `env:"DEADLINE_SCAN_INTERVAL" envDefault:"1h"`
	NotifyBuffer         int           `env:"NOTIFY_BUFFER" envDefault:"64"`

	EnableDeadlineMonitor bool `env:"ENABLE_DEADLINE_MONITOR" envDefault:"true"`
	EnableOutboxRelay     bool `env:"ENABLE_OUTBOX_RELAY" envDefault:"true"`
	EnableMetrics         bool `env:"ENABLE_METRICS" envDefault:"true"`
	EnableSwagger         bool `env:"ENABLE_SWAGGER" envDefault:"true"`
}

// Load reads optional .env files, then the process environment.
func Load() (Config, error) {
	if _, err := LoadEnvFiles([]string{".env", ".env.local"}); err != nil {
		return Config{}, err
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnvFiles loads the files that exist and reports how many were read.
// Variables already set in the environment win.
func LoadEnvFiles(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return 0, fmt.Errorf("load env files: %w", err)
	}
	return len(existing), nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case DriverMemory:
	case DriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when STORAGE_DRIVER is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be memory or postgres, got %q", c.StorageDriver))
	}
	switch c.MessagingDriver {
	case DriverMemory:
	case DriverRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			errs = append(errs, errors.New("REDIS_URL is required when MESSAGING_DRIVER is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("MESSAGING_DRIVER must be memory or redis, got %q", c.MessagingDriver))
	}
	if c.OutboxBatchSize < 0 {
		errs = append(errs, fmt.Errorf("OUTBOX_BATCH_SIZE must be non-negative, got %d", c.OutboxBatchSize))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err))
	}
	return errors.Join(errs...)
}

// Location resolves TIMEZONE, the zone in which "today" is evaluated for
// deadlines.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// HolidayDates merges HOLIDAYS with HOLIDAY_CALENDAR_FILE.
func (c Config) HolidayDates() ([]civil.Date, error) {
	dates, err := ParseHolidayList(c.Holidays)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.HolidayCalendarFile) != "" {
		fromFile, err := LoadHolidayFile(c.HolidayCalendarFile)
		if err != nil {
			return nil, err
		}
		dates = append(dates, fromFile...)
	}
	return dates, nil
}

func ParseHolidayList(raw []string) ([]civil.Date, error) {
	dates := make([]civil.Date, 0, len(raw))
	for _, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		date, err := civil.ParseDate(value)
		if err != nil {
			return nil, fmt.Errorf("parse holiday %q: %w", value, err)
		}
		dates = append(dates, date)
	}
	return dates, nil
}
