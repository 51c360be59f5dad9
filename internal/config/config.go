// Package config reads the dispensary service configuration.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime parameters of the dispensary service.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`

	PosAddress  string `env:"POS_ADDRESS"`
	PosUsername string `env:"POS_USERNAME"`
	PosPassword string `env:"POS_PASSWORD"`

	SessionSecret string `env:"SESSION_SECRET"`

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL"`

	EmailSender  string `env:"EMAIL_SENDER"`
	EmailRegion  string `env:"EMAIL_REGION"`
	AWSAccessKey string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey string `env:"AWS_SECRET_ACCESS_KEY"`

	// Base64-encoded Firebase service account JSON.
	GoogleCredentials string `env:"GOOGLE_CREDENTIALS"`

	AppDeepLinkScheme string `env:"APP_DEEP_LINK_SCHEME"`
	PublicBaseURL     string `env:"PUBLIC_BASE_URL"`
}

// Parse reads configuration from command-line flags and environment
// variables. Environment values take precedence over flags.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envPosAddress := cfg.PosAddress
	envInterval := cfg.ReconcileInterval

	flag.StringVar(&cfg.RunAddress, "a", "localhost:3333", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PosAddress, "p", "https://app.alleaves.com/api", "POS system base address")
	flag.DurationVar(&cfg.ReconcileInterval, "i", 0, "background order reconciliation interval")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envPosAddress != "" {
		cfg.PosAddress = envPosAddress
	}
	if envInterval != 0 {
		cfg.ReconcileInterval = envInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:3333"
	}
	if cfg.ReconcileInterval == 0 {
		cfg.ReconcileInterval = time.Minute
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "dispensary-secret"
	}
	if cfg.AppDeepLinkScheme == "" {
		cfg.AppDeepLinkScheme = "flowerPower"
	}

	return cfg, nil
}
