package scheduler

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ingest/internal/config"
	"github.com/spec-kit/ticket-ingest/internal/service"
)

// Worker runs the daily global sync task off the asynq queue, and its
// companion Scheduler enqueues that task at the configured time of day in
// the processing timezone.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	ingest    *service.IngestService
	logger    *zap.Logger
}

// NewWorker constructs the worker and registers the periodic daily sync.
func NewWorker(cfg *config.Config, ingest *service.IngestService, logger *zap.Logger) (*Worker, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		ingest: ingest,
		logger: logger,
	}
	mux.HandleFunc(TaskDailySync, w.handleDailySync)

	asynqScheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: cfg.Source.Location(),
	})
	task, err := NewDailySyncTask(DailySyncPayload{Trigger: "daily"})
	if err != nil {
		return nil, err
	}
	cronspec := fmt.Sprintf("%d %d * * *", cfg.Sync.Minute, cfg.Sync.Hour)
	if _, err := asynqScheduler.Register(cronspec, task); err != nil {
		return nil, err
	}
	w.scheduler = asynqScheduler

	return w, nil
}

// Run blocks serving tasks until the context is done.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		if err := w.scheduler.Run(); err != nil {
			w.logger.Error("scheduler stopped", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.scheduler.Shutdown()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.logger.Error("scheduler worker stopped", zap.Error(err))
	}
}

func (w *Worker) handleDailySync(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDailySyncPayload(task)
	if err != nil {
		return err
	}

	rows, err := w.ingest.SyncFromSource(ctx)
	if err != nil {
		w.logger.Error("daily sync failed",
			zap.String("trigger", payload.Trigger),
			zap.Error(err),
		)
		return err
	}

	w.logger.Info("daily sync complete",
		zap.String("trigger", payload.Trigger),
		zap.Int("rows", rows),
	)
	return nil
}
