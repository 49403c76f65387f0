// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Load reads configuration from environment variables.
// It attempts to load from .env file first (for local development),
// then parses environment variables into the Config struct.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	// In production (Docker/K8s), environment variables are injected directly
	if err := godotenv.Load(); err != nil {
		logrus.Warnf("no .env file found or error loading it: %v (this is normal in production)", err)
	} else {
		logrus.Infof("loaded environment variables from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}

	if cfg.WorkerID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "worker"
		}
		cfg.WorkerID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}

	return cfg, nil
}

// Validate performs custom validation on the configuration.
//
// ============================================================
// DEVELOPER: Add custom validation logic here.
// ============================================================
// This function is called after environment variables are parsed.
// Add validation for value ranges, cross-field constraints and
// formats (URLs, cron specs, etc.)
// ============================================================
func (c *Config) Validate() error {
	// Validate server ports
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid GRPC_PORT: %d (must be 1-65535)", c.GRPCPort)
	}

	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid METRICS_PORT: %d (must be 1-65535)", c.MetricsPort)
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if !strings.HasPrefix(c.DatabaseURL, "sqlite://") && !strings.HasPrefix(c.DatabaseURL, "postgres://") &&
		!strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		return fmt.Errorf("invalid DATABASE_URL: scheme must be sqlite or postgres")
	}

	// Validate scheduler settings
	if _, err := cron.ParseStandard(c.SchedulerSpec); err != nil {
		return fmt.Errorf("invalid SCHEDULER_SPEC %q: %w", c.SchedulerSpec, err)
	}
	if _, err := cron.ParseStandard(c.SchedulerRefreshSpec); err != nil {
		return fmt.Errorf("invalid SCHEDULER_REFRESH_SPEC %q: %w", c.SchedulerRefreshSpec, err)
	}
	if c.SchedulerBatchSize < 1 {
		return fmt.Errorf("invalid SCHEDULER_BATCH_SIZE: %d (must be positive)", c.SchedulerBatchSize)
	}
	if c.SchedulerClaimTTL <= 0 {
		return fmt.Errorf("invalid SCHEDULER_CLAIM_TTL: %s (must be positive)", c.SchedulerClaimTTL)
	}
	if c.DeliveryTimeout <= 0 || c.DeliveryTimeout >= c.SchedulerClaimTTL {
		return fmt.Errorf("invalid DELIVERY_TIMEOUT: %s (must be positive and below SCHEDULER_CLAIM_TTL %s)",
			c.DeliveryTimeout, c.SchedulerClaimTTL)
	}

	if c.AudienceCacheTTL < 0 {
		return fmt.Errorf("invalid AUDIENCE_CACHE_TTL: %s (must be non-negative)", c.AudienceCacheTTL)
	}
	if c.GrantConcurrency < 1 {
		return fmt.Errorf("invalid GRANT_CONCURRENCY: %d (must be positive)", c.GrantConcurrency)
	}

	return nil
}
