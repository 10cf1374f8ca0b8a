// Package config loads process configuration from the environment and the
// printer settings file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	PostgresURL      string        `mapstructure:"POSTGRES_URL"`
	Store            string        `mapstructure:"STORE"`
	KafkaBrokers     string        `mapstructure:"KAFKA_BROKERS"`
	LifecycleTopic   string        `mapstructure:"LIFECYCLE_TOPIC"`
	ConsumerGroup    string        `mapstructure:"CONSUMER_GROUP"`
	RedisAddr        string        `mapstructure:"REDIS_ADDR"`
	RedisChannel     string        `mapstructure:"REDIS_CHANNEL"`
	BusinessTimezone string        `mapstructure:"BUSINESS_TIMEZONE"`
	PrintersFile     string        `mapstructure:"PRINTERS_FILE"`
	PrintTimeout     time.Duration `mapstructure:"PRINT_TIMEOUT"`
	OTLPEndpoint     string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceVersion   string        `mapstructure:"SERVICE_VERSION"`
}

// Load reads the configuration from environment variables, falling back to
// defaults for anything unset.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("POSTGRES_URL", "")
	v.SetDefault("STORE", StorePostgres)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LIFECYCLE_TOPIC", "orders.lifecycle")
	v.SetDefault("CONSUMER_GROUP", "print-worker")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_CHANNEL", "tableside:notifications")
	v.SetDefault("BUSINESS_TIMEZONE", "UTC")
	v.SetDefault("PRINTERS_FILE", "printers.yaml")
	v.SetDefault("PRINT_TIMEOUT", "5s")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("SERVICE_VERSION", "0.1.0")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	switch cfg.Store {
	case StorePostgres:
		if cfg.PostgresURL == "" {
			return Config{}, fmt.Errorf("POSTGRES_URL is required when STORE=%s", StorePostgres)
		}
	case StoreMemory:
	default:
		return Config{}, fmt.Errorf("unknown STORE %q", cfg.Store)
	}

	return cfg, nil
}

// Brokers splits KAFKA_BROKERS. An empty list means no broker.
func (c Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Location is the zone the business day is counted in.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return nil, fmt.Errorf("load BUSINESS_TIMEZONE: %w", err)
	}
	return loc, nil
}
