// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/AccelByte/extend-marketing-automation/internal/bootstrap"
	"github.com/AccelByte/extend-marketing-automation/internal/config"
	"github.com/AccelByte/extend-marketing-automation/internal/server"
	actionBuiltin "github.com/AccelByte/extend-marketing-automation/pkg/action/builtin"
	"github.com/AccelByte/extend-marketing-automation/pkg/catalog"
	"github.com/AccelByte/extend-marketing-automation/pkg/common"
	"github.com/AccelByte/extend-marketing-automation/pkg/incentive"
	"github.com/AccelByte/extend-marketing-automation/pkg/scheduler"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
	"github.com/AccelByte/extend-marketing-automation/pkg/signal"
	"github.com/AccelByte/extend-marketing-automation/pkg/state"
	"github.com/AccelByte/extend-marketing-automation/pkg/store/sqlstore"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// App holds all application dependencies and manages the application lifecycle.
type App struct {
	cfg               *config.Config
	grpcServer        *server.GRPCServer
	metricsServer     *server.MetricsServer
	redisClient       *redis.Client
	store             *sqlstore.Store
	bus               *gochannel.GoChannel
	runner            *scheduler.Runner
	listener          *signal.Listener
	stopListener      context.CancelFunc
	shutdownTelemetry func(context.Context) error

	// Exposed for embedding the engine in other processes and for tests.
	Scheduler  *scheduler.Scheduler
	Incentives *incentive.Engine
}

// New creates and initializes a new application instance.
//
// ============================================================
// DEVELOPER: Application initialization order
// ============================================================
// Components are initialized in dependency order:
// 1. Redis (attribute snapshots, audience cache, grant locks)
// 2. Database (segments, journeys, participants, incentives)
// 3. Catalog (YAML definitions seeded into the database)
// 4. Message bus (deliveries, platform commands, events)
// 5. Engine components (audience → actions → incentives → scheduler)
// 6. Event listener
// 7. Servers (gRPC health, metrics)
// 8. Telemetry (OpenTelemetry tracing)
//
// If you add new external dependencies, initialize them before
// step 5 and pass them to the bootstrap functions.
// ============================================================
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logrus.Info("initializing application...")

	app := &App{cfg: cfg}

	// ============================================================
	// Step 1: Initialize Redis
	// ============================================================
	redisClient, err := state.InitRedisClient(ctx, state.RedisConfig{
		Host:       cfg.RedisHost,
		Port:       cfg.RedisPort,
		Password:   cfg.RedisPassword,
		MaxRetries: cfg.RedisMaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	app.redisClient = redisClient

	// ============================================================
	// Step 2: Initialize the database
	// ============================================================
	st, err := sqlstore.Connect(cfg.DatabaseURL)
	if err != nil {
		app.closeConnections()
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	app.store = st
	logrus.Info("database initialized")

	// ============================================================
	// Step 3: Load and seed the catalog
	// ============================================================
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		app.closeConnections()
		return nil, fmt.Errorf("failed to load catalog from %s: %w", cfg.CatalogPath, err)
	}
	logrus.Infof("loaded catalog from %s", cfg.CatalogPath)

	audienceCache := state.NewRedisAudienceCache(redisClient)
	if _, err := catalog.Seed(ctx, st, cat, time.Now(), audienceCache); err != nil {
		app.closeConnections()
		return nil, fmt.Errorf("failed to seed catalog: %w", err)
	}

	// ============================================================
	// Step 4: Initialize the message bus
	// ============================================================
	// DEVELOPER: gochannel keeps messages in-process. To hand
	// deliveries to real senders, swap it for any watermill
	// Publisher/Subscriber pair (Kafka, AMQP, SQL, ...).
	// ============================================================
	app.bus = gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		common.NewWatermillLogger(logrus.StandardLogger()),
	)

	// ============================================================
	// Step 5: Bootstrap engine components
	// ============================================================
	snapshots := state.NewRedisSnapshotStore(redisClient)
	resolver := bootstrap.InitAudienceResolver(
		st,
		snapshots,
		audienceCache,
		cfg.AudienceCacheTTL,
	)

	executor, err := bootstrap.InitActionExecutor(cat, &actionBuiltin.Dependencies{
		Publisher: app.bus,
	}, cfg.DeliveryTimeout)
	if err != nil {
		app.closeConnections()
		return nil, fmt.Errorf("failed to init action executor: %w", err)
	}

	platform := service.NewPlatformCommands(app.bus, service.PlatformCommandsConfig{})
	app.Incentives = incentive.NewEngine(
		st,
		resolver,
		state.NewRedisLocker(redisClient, cfg.GrantLockTTL, cfg.GrantLockTTL),
		platform,
		platform,
		cfg.GrantConcurrency,
	)

	app.Scheduler, app.runner = bootstrap.InitScheduler(cfg, st, snapshots, resolver, executor,
		state.NewRedisMembership(redisClient), st, app.Incentives)

	// ============================================================
	// Step 6: Event listener
	// ============================================================
	app.listener = bootstrap.InitSignalListener(app.bus, snapshots, app.Scheduler, cfg.EventsTopic)

	// ============================================================
	// Step 7: Setup servers
	// ============================================================
	checker := state.NewHealthChecker().
		AddRedis(redisClient).
		Add("database", st.Ping)

	app.grpcServer = server.NewGRPCServer(cfg.GRPCPort, checker)
	if err := app.grpcServer.Setup(); err != nil {
		app.closeConnections()
		return nil, fmt.Errorf("failed to setup gRPC server: %w", err)
	}

	app.metricsServer = server.NewMetricsServer(cfg.MetricsPort, "/metrics")
	if err := app.metricsServer.Setup(); err != nil {
		app.closeConnections()
		return nil, fmt.Errorf("failed to setup metrics server: %w", err)
	}

	// ============================================================
	// Step 8: Setup telemetry
	// ============================================================
	if cfg.OtelEnabled {
		shutdownTelemetry, err := server.SetupTelemetry(ctx, cfg.ServiceName, cfg.Environment, 0, cfg.ZipkinEndpoint)
		if err != nil {
			app.closeConnections()
			return nil, fmt.Errorf("failed to setup telemetry: %w", err)
		}
		app.shutdownTelemetry = shutdownTelemetry
	}

	logrus.Info("application initialized successfully")

	return app, nil
}

// closeConnections releases the external connections opened so far.
func (a *App) closeConnections() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			logrus.Errorf("message bus close error: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logrus.Errorf("database close error: %v", err)
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			logrus.Errorf("Redis close error: %v", err)
		}
	}
}
