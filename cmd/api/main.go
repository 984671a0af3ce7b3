package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-ingest/internal/api/http"
	"github.com/spec-kit/ticket-ingest/internal/api/http/handlers"
	"github.com/spec-kit/ticket-ingest/internal/cache"
	"github.com/spec-kit/ticket-ingest/internal/config"
	"github.com/spec-kit/ticket-ingest/internal/confirm"
	"github.com/spec-kit/ticket-ingest/internal/domain"
	"github.com/spec-kit/ticket-ingest/internal/events"
	"github.com/spec-kit/ticket-ingest/internal/observability"
	"github.com/spec-kit/ticket-ingest/internal/persistence"
	"github.com/spec-kit/ticket-ingest/internal/pipeline"
	"github.com/spec-kit/ticket-ingest/internal/repository"
	"github.com/spec-kit/ticket-ingest/internal/scheduler"
	"github.com/spec-kit/ticket-ingest/internal/service"
	"github.com/spec-kit/ticket-ingest/internal/source"
	"github.com/spec-kit/ticket-ingest/internal/staging"
	"github.com/spec-kit/ticket-ingest/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	fetcher := source.NewHTTPFetcher(cfg.Source, logger)
	normalizer := pipeline.NewPipeline(cfg.Source)
	datasetCache := cache.NewDatasetCache(cfg.Cache, func(ctx context.Context) (*domain.Dataset, error) {
		table, err := fetcher.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		metrics.RecordFetch()
		dataset, err := normalizer.Run(table, 1)
		if err != nil {
			return nil, err
		}
		metrics.RecordReload()
		return dataset, nil
	}, logger)

	engine := confirm.NewEngine(cfg.Confirm, dispatcher, logger)
	ingestService := service.NewIngestService(service.IngestDependencies{
		Cache:      datasetCache,
		Engine:     engine,
		Fetcher:    fetcher,
		Pipeline:   normalizer,
		Store:      repository.NewGlobalStore(pg.PoolHandle()),
		Replica:    staging.NewReplicaStore(redis.Client, logger),
		Dispatcher: dispatcher,
		Logger:     logger,
		Location:   cfg.Source.Location(),
	})

	auditService := service.NewAuditService(dispatcher, logger)
	worker.StartAuditWorker(auditService)

	if cfg.Sync.Enabled {
		syncWorker, err := scheduler.NewWorker(cfg, ingestService, logger)
		if err != nil {
			logger.Fatal("failed to init scheduler", zap.Error(err))
		}
		go syncWorker.Run(ctx)
	}

	if err := datasetCache.ForceReload(ctx); err != nil {
		logger.Warn("initial dataset load failed; serving once a reload succeeds", zap.Error(err))
	}

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Queries: handlers.NewQueriesHandler(ingestService),
		Actions: handlers.NewActionsHandler(ingestService),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
