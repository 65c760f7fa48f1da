// Package config содержит логику чтения конфигурации сервиса витрины.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса витрины.
type Config struct {
	RunAddress             string  `env:"RUN_ADDRESS"`
	DatabaseURI            string  `env:"DATABASE_URI"`
	ShippingTrackerAddress string  `env:"SHIPPING_TRACKER_ADDRESS"`
	AuthSecret             string  `env:"AUTH_SECRET"`
	CommissionRatePercent  float64 `env:"COMMISSION_RATE_PERCENT"`
	CommissionOrderLimit   int     `env:"COMMISSION_ORDER_LIMIT"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envTrackerAddress := cfg.ShippingTrackerAddress
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ShippingTrackerAddress, "t", "", "shipping tracker address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "auth cookie secret")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envTrackerAddress != "" {
		cfg.ShippingTrackerAddress = envTrackerAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}

// CommissionRate возвращает ставку комиссии в сотых долях процента или 0,
// если ставка не задана и должна использоваться ставка по умолчанию.
func (c *Config) CommissionRate() int64 {
	if c.CommissionRatePercent <= 0 {
		return 0
	}
	return int64(c.CommissionRatePercent * 100)
}
