package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ingest/internal/cache"
	"github.com/spec-kit/ticket-ingest/internal/config"
	"github.com/spec-kit/ticket-ingest/internal/confirm"
	"github.com/spec-kit/ticket-ingest/internal/domain"
	"github.com/spec-kit/ticket-ingest/internal/importer"
	"github.com/spec-kit/ticket-ingest/internal/pipeline"
	"github.com/spec-kit/ticket-ingest/internal/repository"
	"github.com/spec-kit/ticket-ingest/internal/source"
	"github.com/spec-kit/ticket-ingest/internal/staging"
	apperrors "github.com/spec-kit/ticket-ingest/pkg/util"
)

type stubFetcher struct {
	table *source.Table
	err   error
	calls int
}

func (f *stubFetcher) Fetch(ctx context.Context) (*source.Table, error) {
	f.calls++
	return f.table, f.err
}

type stubStore struct {
	actionIDs []string
	records   [][]repository.Record
	err       error
}

func (s *stubStore) CommitSync(ctx context.Context, actionID string, records []repository.Record, today time.Time) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.actionIDs = append(s.actionIDs, actionID)
	s.records = append(s.records, records)
	return len(records), nil
}

type stubReplica struct {
	actionID string
	staged   *importer.StagedImport
	err      error
}

func (r *stubReplica) Stage(ctx context.Context, actionID string, staged *importer.StagedImport) error {
	if r.err != nil {
		return r.err
	}
	r.actionID = actionID
	r.staged = staged
	return nil
}

func (r *stubReplica) Load(ctx context.Context) (*importer.StagedImport, error) {
	return r.staged, nil
}

var _ staging.ReplicaStore = (*stubReplica)(nil)

// h1Table carries one P1 row dated 2024-01-02, H-1 for the fixed clock.
func h1Table() *source.Table {
	return &source.Table{
		Header: []string{"SITEID", "DATE", "Prio", "NOP"},
		Rows:   [][]string{{"A", "01/02/24", "P1", "MEDAN"}},
	}
}

func serviceClock() time.Time {
	return time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc     *IngestService
	fetcher *stubFetcher
	store   *stubStore
	replica *stubReplica
}

func newFixture(t *testing.T, fetcher *stubFetcher) *fixture {
	t.Helper()
	logger := zap.NewNop()
	srcCfg := config.SourceConfig{ExcludedTransport: "FO TSEL", Timezone: "UTC"}
	pipe := pipeline.NewPipelineWithClock(srcCfg, serviceClock)

	loader := func(ctx context.Context) (*domain.Dataset, error) {
		table, err := fetcher.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return pipe.Run(table, 1)
	}
	datasetCache := cache.NewDatasetCache(config.CacheConfig{TTLSeconds: 300}, loader, logger)
	engine := confirm.NewEngine(config.ConfirmConfig{RefreshWindowSeconds: 0, ImportWindowSeconds: 0}, nil, logger)
	store := &stubStore{}
	replica := &stubReplica{}

	svc := NewIngestService(IngestDependencies{
		Cache:    datasetCache,
		Engine:   engine,
		Fetcher:  fetcher,
		Pipeline: pipe,
		Store:    store,
		Replica:  replica,
		Logger:   logger,
		Location: time.UTC,
	})
	return &fixture{svc: svc, fetcher: fetcher, store: store, replica: replica}
}

func TestDataset_ServesNormalizedRecords(t *testing.T) {
	f := newFixture(t, &stubFetcher{table: h1Table()})

	dataset, err := f.svc.Dataset(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dataset.Len() != 1 || dataset.Records[0].ID != "A20240102" {
		t.Fatalf("unexpected dataset: %+v", dataset)
	}

	summary, err := f.svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.P1Count != 1 || summary.NeedCloseCount != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if f.fetcher.calls != 1 {
		t.Fatalf("expected one fetch for both reads, got %d", f.fetcher.calls)
	}
}

func TestRefreshWorkflow_FetchesOnlyOnConfirm(t *testing.T) {
	f := newFixture(t, &stubFetcher{table: h1Table()})
	ctx := context.Background()

	if _, err := f.svc.Dataset(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.RequestRefresh(ctx, "conv-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.fetcher.calls != 1 {
		t.Fatalf("request alone must not fetch, got %d calls", f.fetcher.calls)
	}

	if _, err := f.svc.Confirm(ctx, "conv-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.fetcher.calls != 2 {
		t.Fatalf("expected confirm to force one reload, got %d calls", f.fetcher.calls)
	}
}

func TestRefreshWorkflow_CancelSkipsFetch(t *testing.T) {
	f := newFixture(t, &stubFetcher{table: h1Table()})
	ctx := context.Background()

	if _, err := f.svc.Dataset(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.RequestRefresh(ctx, "conv-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, "conv-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.fetcher.calls != 1 {
		t.Fatalf("cancel must not fetch, got %d calls", f.fetcher.calls)
	}
}

func TestImportWorkflow_StagesBeforeConfirmCommitsAfter(t *testing.T) {
	f := newFixture(t, &stubFetcher{table: h1Table()})
	ctx := context.Background()

	upload := &source.Table{
		Header: append([]string(nil), importer.CanonicalColumns...),
		Rows:   [][]string{{"HUAWEI", "01/02/24", "A"}},
	}
	action, err := f.svc.RequestImport(ctx, "conv-1", upload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.replica.actionID != action.ID {
		t.Fatalf("expected replica staged under the action id")
	}
	if len(f.store.actionIDs) != 0 {
		t.Fatalf("authoritative store must be untouched before confirm")
	}

	if _, err := f.svc.Confirm(ctx, "conv-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.store.actionIDs) != 1 || f.store.actionIDs[0] != action.ID {
		t.Fatalf("expected commit keyed by action id, got %v", f.store.actionIDs)
	}
	if len(f.store.records[0]) != 1 {
		t.Fatalf("expected 1 committed record, got %d", len(f.store.records[0]))
	}
}

func TestRequestImport_RejectsSchemaMismatch(t *testing.T) {
	f := newFixture(t, &stubFetcher{table: h1Table()})

	upload := &source.Table{Header: []string{"SITEID", "DATE"}}
	_, err := f.svc.RequestImport(context.Background(), "conv-1", upload)
	if !apperrors.HasCode(err, "SCHEMA_MISMATCH") {
		t.Fatalf("expected SCHEMA_MISMATCH, got %v", err)
	}
	if f.replica.staged != nil {
		t.Fatalf("rejected upload must not be staged")
	}
}

func TestRequestImport_ReplicaFailureReleasesPendingAction(t *testing.T) {
	f := newFixture(t, &stubFetcher{table: h1Table()})
	f.replica.err = errors.New("redis down")
	ctx := context.Background()

	upload := &source.Table{Header: append([]string(nil), importer.CanonicalColumns...)}
	if _, err := f.svc.RequestImport(ctx, "conv-1", upload); err == nil {
		t.Fatalf("expected staging failure to surface")
	}

	// conversation must be free to retry
	f.replica.err = nil
	if _, err := f.svc.RequestImport(ctx, "conv-1", upload); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestSyncFromSource_CommitsDailyRecords(t *testing.T) {
	f := newFixture(t, &stubFetcher{table: h1Table()})

	upserted, err := f.svc.SyncFromSource(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upserted != 1 {
		t.Fatalf("expected 1 upserted row, got %d", upserted)
	}
	if len(f.store.records) != 1 || f.store.records[0][0]["TiketID"] != "A20240102" {
		t.Fatalf("unexpected committed records: %+v", f.store.records)
	}
}

func TestSyncFromSource_FallsBackToPreviousDay(t *testing.T) {
	// rows dated H-2 only; the H-1 pass matches nothing
	table := &source.Table{
		Header: []string{"SITEID", "DATE", "Prio"},
		Rows:   [][]string{{"A", "01/01/24", "P1"}},
	}
	f := newFixture(t, &stubFetcher{table: table})

	upserted, err := f.svc.SyncFromSource(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upserted != 1 {
		t.Fatalf("expected 1 upserted row from the H-2 fallback, got %d", upserted)
	}
	if f.store.records[0][0]["TiketID"] != "A20240101" {
		t.Fatalf("expected the H-2 ticket, got %+v", f.store.records[0][0])
	}
}

func TestSyncFromSource_PropagatesFetchError(t *testing.T) {
	f := newFixture(t, &stubFetcher{err: apperrors.NewFetchError("source unreachable", nil)})

	_, err := f.svc.SyncFromSource(context.Background())
	if !apperrors.HasCode(err, "FETCH_FAILED") {
		t.Fatalf("expected FETCH_FAILED, got %v", err)
	}
	if len(f.store.actionIDs) != 0 {
		t.Fatalf("nothing must be committed on fetch failure")
	}
}
