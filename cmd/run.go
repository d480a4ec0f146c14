package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"colorgame/adminapi"
	"colorgame/application"
	"colorgame/config"
	"colorgame/database"
	"colorgame/domain/entities"
	"colorgame/domain/interfaces"
	"colorgame/domain/services"
	"colorgame/infrastructure"
	"colorgame/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the game engine, blocking until ctx is cancelled
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	log.WithFields(log.Fields{
		"environment": cfg.Environment,
		"durations":   cfg.Durations,
		"backend":     cfg.EventBackend,
	}).Info("Starting colorgame engine")

	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully")

	eventPublisher, closePublisher, err := newEventPublisher(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer closePublisher()

	payout, err := services.NewPayoutCalculator(cfg.WinFee)
	if err != nil {
		return fmt.Errorf("invalid win fee: %w", err)
	}

	clock := services.SystemClock{}
	engine := application.NewGameEngine(
		infrastructure.NewUnitOfWorkFactory(db, eventPublisher, cfg.LockTimeout),
		services.NewOutcomeGenerator(entities.StandardColorRule{}, services.CryptoRandom{}),
		payout,
		services.NewManipulationPolicy(cfg.ManipulationEnabled),
		clock,
		metrics,
		application.EngineOptions{
			Durations:         cfg.Durations,
			SettlementRetries: cfg.SettlementRetries,
			ReconcileGrace:    cfg.ReconcileGrace,
		},
	)

	rounds, err := engine.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start rounds: %w", err)
	}
	for _, r := range rounds {
		log.WithFields(log.Fields{
			"roundID":  r.ID,
			"period":   r.Period,
			"duration": r.Duration,
			"endTime":  r.EndTime,
		}).Info("Round open")
	}

	worker := application.NewReconciliationWorker(engine, cfg.ReconcileSchedule, metrics)
	stopWorker, err := worker.Start(ctx)
	if err != nil {
		engine.Stop()
		return err
	}

	adminServer := adminapi.NewServer(engine, cfg.AdminAPIPort)
	adminServer.Start()

	log.Info("Engine is running")
	<-ctx.Done()

	log.Info("Shutting down engine...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Error shutting down admin API")
	}
	stopWorker()
	engine.Stop()

	if err := metrics.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Error shutting down metrics provider")
	}

	log.Info("Shutdown completed")
	return nil
}

// ConfigureLogging applies the configured logrus level and format
func ConfigureLogging(cfg *config.Config) {
	log.SetOutput(os.Stdout)

	if strings.EqualFold(cfg.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// newEventPublisher connects the configured notification sink. The returned
// close function is always safe to call.
func newEventPublisher(ctx context.Context, cfg *config.Config, metrics *observability.MetricsProvider) (interfaces.EventPublisher, func(), error) {
	mapper := infrastructure.NewEventSubjectMapper()

	switch cfg.EventBackend {
	case "nats":
		log.WithField("servers", cfg.NATSServers).Info("Connecting to NATS...")
		client := infrastructure.NewNATSClient(cfg.NATSServers)
		if err := client.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}

		publisher := infrastructure.NewNATSEventPublisher(client, mapper, metrics)
		if err := publisher.EnsureGameEventStream(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to ensure event stream: %w", err)
		}
		return publisher, func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Warn("Error closing NATS connection")
			}
		}, nil

	case "redis":
		log.WithField("addr", cfg.RedisAddr).Info("Connecting to Redis...")
		client, err := infrastructure.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return infrastructure.NewRedisEventPublisher(client, mapper, metrics), func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Warn("Error closing Redis connection")
			}
		}, nil

	case "none":
		log.Warn("Event backend disabled, events stay in process")
		return infrastructure.NewLogEventPublisher(metrics), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown event backend %q", cfg.EventBackend)
	}
}
