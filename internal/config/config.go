// Package config содержит логику чтения конфигурации движка бронирования.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации движка бронирования.
type Config struct {
	RunAddress            string        `env:"RUN_ADDRESS"`
	DatabaseURI           string        `env:"DATABASE_URI"`
	PaymentGatewayAddress string        `env:"PAYMENT_GATEWAY_ADDRESS"`
	PaymentGatewayKey     string        `env:"PAYMENT_GATEWAY_KEY"`
	AMQPURL               string        `env:"AMQP_URL"`
	AuthSecret            string        `env:"AUTH_SECRET"`
	PendingBookingTTL     time.Duration `env:"PENDING_BOOKING_TTL"`
	SweepInterval         time.Duration `env:"SWEEP_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных
// окружения. Значения окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envGatewayAddress := cfg.PaymentGatewayAddress
	envAMQPURL := cfg.AMQPURL
	envPendingTTL := cfg.PendingBookingTTL
	envSweepInterval := cfg.SweepInterval

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PaymentGatewayAddress, "g", "", "payment gateway address")
	flag.StringVar(&cfg.AMQPURL, "q", "", "AMQP broker URL for notification fan-out (optional)")
	flag.DurationVar(&cfg.PendingBookingTTL, "t", 15*time.Minute, "TTL for abandoned pending bookings")
	flag.DurationVar(&cfg.SweepInterval, "s", time.Minute, "interval of the expiry sweep")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envGatewayAddress != "" {
		cfg.PaymentGatewayAddress = envGatewayAddress
	}
	if envAMQPURL != "" {
		cfg.AMQPURL = envAMQPURL
	}
	if envPendingTTL != 0 {
		cfg.PendingBookingTTL = envPendingTTL
	}
	if envSweepInterval != 0 {
		cfg.SweepInterval = envSweepInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "hotelogix-secret"
	}

	return cfg, nil
}
