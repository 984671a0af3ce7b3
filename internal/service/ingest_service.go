package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ingest/internal/cache"
	"github.com/spec-kit/ticket-ingest/internal/confirm"
	"github.com/spec-kit/ticket-ingest/internal/domain"
	"github.com/spec-kit/ticket-ingest/internal/events"
	"github.com/spec-kit/ticket-ingest/internal/importer"
	"github.com/spec-kit/ticket-ingest/internal/pipeline"
	"github.com/spec-kit/ticket-ingest/internal/query"
	"github.com/spec-kit/ticket-ingest/internal/repository"
	"github.com/spec-kit/ticket-ingest/internal/source"
	"github.com/spec-kit/ticket-ingest/internal/staging"
	apperrors "github.com/spec-kit/ticket-ingest/pkg/util"
)

// IngestService coordinates the ingestion core: cached queries and the
// confirmation-gated refresh/import workflows.
type IngestService struct {
	cache      *cache.DatasetCache
	engine     *confirm.Engine
	fetcher    source.Fetcher
	pipeline   *pipeline.Pipeline
	store      repository.GlobalStore
	replica    staging.ReplicaStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	loc        *time.Location
}

// IngestDependencies bundles collaborators for the ingest service.
type IngestDependencies struct {
	Cache      *cache.DatasetCache
	Engine     *confirm.Engine
	Fetcher    source.Fetcher
	Pipeline   *pipeline.Pipeline
	Store      repository.GlobalStore
	Replica    staging.ReplicaStore
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Location   *time.Location
}

// NewIngestService constructs the service and registers the confirmation
// effects for both action kinds.
func NewIngestService(deps IngestDependencies) *IngestService {
	s := &IngestService{
		cache:      deps.Cache,
		engine:     deps.Engine,
		fetcher:    deps.Fetcher,
		pipeline:   deps.Pipeline,
		store:      deps.Store,
		replica:    deps.Replica,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		loc:        deps.Location,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	s.engine.RegisterEffect(confirm.ActionRefresh, s.refreshEffect)
	s.engine.RegisterEffect(confirm.ActionImportSync, s.importSyncEffect)
	return s
}

// Dataset returns a fresh-enough snapshot. A failed TTL reload serves the
// stale snapshot silently, per the cache contract; with no snapshot at all
// the load error is surfaced.
func (s *IngestService) Dataset(ctx context.Context) (*domain.Dataset, error) {
	if err := s.cache.EnsureFresh(ctx); err != nil {
		s.logger.Warn("freshness check failed", zap.Error(err))
	}
	return s.cache.Get(ctx)
}

// TicketsByPriority lists records of one priority.
func (s *IngestService) TicketsByPriority(ctx context.Context, priority domain.TicketPriority) ([]domain.TicketRecord, error) {
	dataset, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return query.ByPriority(dataset, priority), nil
}

// TicketByID finds one record by ticket id.
func (s *IngestService) TicketByID(ctx context.Context, id string) (*domain.TicketRecord, error) {
	dataset, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return query.ByID(dataset, id)
}

// TicketsByRegion groups records per region.
func (s *IngestService) TicketsByRegion(ctx context.Context) (map[string][]domain.TicketRecord, error) {
	dataset, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return query.ByRegion(dataset), nil
}

// Summary returns dataset-wide counters.
func (s *IngestService) Summary(ctx context.Context) (query.SummaryStats, error) {
	dataset, err := s.Dataset(ctx)
	if err != nil {
		return query.SummaryStats{}, err
	}
	return query.Summary(dataset), nil
}

// RegionSummary returns per-region counters.
func (s *IngestService) RegionSummary(ctx context.Context) (map[string]query.RegionStats, error) {
	dataset, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return query.RegionSummary(dataset), nil
}

// Columns returns the raw columns observed in the last load.
func (s *IngestService) Columns(ctx context.Context) ([]string, error) {
	dataset, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return query.ColumnNames(dataset), nil
}

// CacheInfo reports cache statistics without triggering a reload.
func (s *IngestService) CacheInfo() cache.Info {
	return s.cache.Info()
}

// RequestRefresh opens a refresh confirmation for the conversation.
func (s *IngestService) RequestRefresh(ctx context.Context, conversationID string) (*confirm.PendingAction, error) {
	return s.engine.Request(ctx, conversationID, confirm.ActionRefresh, nil)
}

// RequestImport validates the uploaded table, stages it to the replica and
// opens an import-sync confirmation. The replica write happens immediately;
// the authoritative store is only touched on confirm.
func (s *IngestService) RequestImport(ctx context.Context, conversationID string, table *source.Table) (*confirm.PendingAction, error) {
	staged, err := importer.Validate(table)
	if err != nil {
		return nil, err
	}

	action, err := s.engine.Request(ctx, conversationID, confirm.ActionImportSync, staged)
	if err != nil {
		return nil, err
	}

	if err := s.replica.Stage(ctx, action.ID, staged); err != nil {
		_, _ = s.engine.Cancel(ctx, conversationID)
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.Event{
		Type:           events.EventImportStaged,
		ConversationID: conversationID,
		Payload:        events.ImportStagedPayload{ActionID: action.ID, Rows: len(staged.Rows)},
	})
	return action, nil
}

// Confirm executes the conversation's pending action.
func (s *IngestService) Confirm(ctx context.Context, conversationID string) (*confirm.PendingAction, error) {
	return s.engine.Confirm(ctx, conversationID)
}

// Cancel discards the conversation's pending action.
func (s *IngestService) Cancel(ctx context.Context, conversationID string) (*confirm.PendingAction, error) {
	return s.engine.Cancel(ctx, conversationID)
}

// SyncFromSource fetches the source, normalizes H-1 (falling back to H-2
// when H-1 is empty) and commits the result to the global store. Used by
// the daily job.
func (s *IngestService) SyncFromSource(ctx context.Context) (int, error) {
	table, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return 0, err
	}

	dataset, err := s.pipeline.Run(table, 1)
	if isEmptyResult(err) {
		dataset, err = s.pipeline.Run(table, 2)
	}
	if err != nil {
		return 0, err
	}

	today := time.Now().In(s.loc)
	records := repository.BuildDailyRecords(dataset, today)
	upserted, err := s.store.CommitSync(ctx, uuid.NewString(), records, today)
	if err != nil {
		return 0, err
	}

	s.logger.Info("global sync finished", zap.Int("rows", upserted))
	return upserted, nil
}

func (s *IngestService) refreshEffect(ctx context.Context, action *confirm.PendingAction) error {
	if err := s.cache.ForceReload(ctx); err != nil {
		s.publish(ctx, events.Event{
			Type:           events.EventReloadFailed,
			ConversationID: action.ConversationID,
			Payload:        events.ReloadFailedPayload{Reason: err.Error()},
		})
		return err
	}
	info := s.cache.Info()
	s.publish(ctx, events.Event{
		Type:           events.EventDatasetReloaded,
		ConversationID: action.ConversationID,
		Payload:        events.DatasetReloadedPayload{RawRows: info.RawCount, Records: info.FilteredCount},
	})
	return nil
}

func (s *IngestService) importSyncEffect(ctx context.Context, action *confirm.PendingAction) error {
	staged, ok := action.Payload.(*importer.StagedImport)
	if !ok || staged == nil {
		return apperrors.NewInvalidStateTransition("pending import has no staged payload")
	}

	today := time.Now().In(s.loc)
	upserted, err := s.store.CommitSync(ctx, action.ID, repository.StagedRecords(staged), today)
	if err != nil {
		return err
	}

	s.publish(ctx, events.Event{
		Type:           events.EventImportSynced,
		ConversationID: action.ConversationID,
		Payload:        events.ImportSyncedPayload{ActionID: action.ID, Upserted: upserted},
	})
	return nil
}

func (s *IngestService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func isEmptyResult(err error) bool {
	return apperrors.HasCode(err, "NO_MATCHING_DATE_COLUMN") || apperrors.HasCode(err, "NO_ROWS_AFTER_FILTER")
}
