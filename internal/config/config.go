// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import "time"

// Config holds all application configuration loaded from environment variables.
// This struct uses github.com/caarlos0/env for automatic environment variable parsing.
//
// ============================================================
// DEVELOPER: Add new configuration fields here.
// ============================================================
// Use struct tags to define:
// - `env:"VAR_NAME"` - the environment variable name
// - `env:",required"` - make it required
// - `envDefault:"value"` - set a default value
//
// After adding fields here, update loader.go Validate() if custom
// validation is needed.
// ============================================================
type Config struct {
	// ============================================================
	// Server configuration
	// ============================================================
	GRPCPort    int    `env:"GRPC_PORT" envDefault:"6565"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"MarketingAutomation"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// ============================================================
	// Storage configuration
	// ============================================================
	// DatabaseURL selects the store: sqlite://path or postgres://...
	DatabaseURL string `env:"DATABASE_URL" envDefault:"sqlite://marketing.db"`

	// ============================================================
	// Redis configuration
	// ============================================================
	RedisHost       string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort       string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisMaxRetries int    `env:"REDIS_MAX_RETRIES" envDefault:"5"`

	// ============================================================
	// Catalog configuration
	// ============================================================
	CatalogPath string `env:"CATALOG_PATH" envDefault:"config/catalog.yaml"`

	// ============================================================
	// Scheduler configuration
	// ============================================================
	SchedulerSpec        string        `env:"SCHEDULER_SPEC" envDefault:"@every 30s"`
	SchedulerRefreshSpec string        `env:"SCHEDULER_REFRESH_SPEC" envDefault:"@every 5m"`
	SchedulerBatchSize   int           `env:"SCHEDULER_BATCH_SIZE" envDefault:"100"`
	SchedulerClaimTTL    time.Duration `env:"SCHEDULER_CLAIM_TTL" envDefault:"2m"`
	// DeliveryTimeout bounds one channel action's attempts on a delivery,
	// retries included. Ticks run deliveries inline, so it must stay below
	// SchedulerClaimTTL.
	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"10s"`
	// WorkerID identifies this process in participant claims. Defaults to the hostname.
	WorkerID string `env:"WORKER_ID"`

	// ============================================================
	// Audience and incentive configuration
	// ============================================================
	AudienceCacheTTL time.Duration `env:"AUDIENCE_CACHE_TTL" envDefault:"5m"`
	GrantConcurrency int           `env:"GRANT_CONCURRENCY" envDefault:"8"`
	GrantLockTTL     time.Duration `env:"GRANT_LOCK_TTL" envDefault:"30s"`

	// ============================================================
	// Message bus topics
	// ============================================================
	EventsTopic string `env:"EVENTS_TOPIC" envDefault:"marketing.events"`

	// ============================================================
	// Telemetry configuration
	// ============================================================
	OtelEnabled    bool   `env:"OTEL_ENABLED" envDefault:"true"`
	ZipkinEndpoint string `env:"ZIPKIN_ENDPOINT"`
}
