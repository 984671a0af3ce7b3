package staging

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ingest/internal/importer"
)

const (
	replicaKey = "ticket-ingest:replica"
	replicaTTL = 7 * 24 * time.Hour
)

// ReplicaStore is the low-risk staging target. An accepted import is
// written here immediately; the authoritative store is only touched after
// confirmation. The write is safe to repeat.
type ReplicaStore interface {
	Stage(ctx context.Context, actionID string, staged *importer.StagedImport) error
	Load(ctx context.Context) (*importer.StagedImport, error)
}

type replicaStore struct {
	client *redis.Client
	logger *zap.Logger
}

type replicaDocument struct {
	ActionID string     `json:"action_id"`
	Columns  []string   `json:"columns"`
	Rows     [][]string `json:"rows"`
	StagedAt time.Time  `json:"staged_at"`
}

// NewReplicaStore constructs the Redis-backed replica.
func NewReplicaStore(client *redis.Client, logger *zap.Logger) ReplicaStore {
	return &replicaStore{client: client, logger: logger}
}

func (r *replicaStore) Stage(ctx context.Context, actionID string, staged *importer.StagedImport) error {
	if r.client == nil {
		return errors.New("replica store not configured")
	}
	doc := replicaDocument{
		ActionID: actionID,
		Columns:  staged.Columns,
		Rows:     staged.Rows,
		StagedAt: time.Now(),
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, replicaKey, payload, replicaTTL).Err(); err != nil {
		return err
	}
	r.logger.Info("import staged to replica",
		zap.String("action_id", actionID),
		zap.Int("rows", len(staged.Rows)),
	)
	return nil
}

func (r *replicaStore) Load(ctx context.Context) (*importer.StagedImport, error) {
	if r.client == nil {
		return nil, errors.New("replica store not configured")
	}
	payload, err := r.client.Get(ctx, replicaKey).Bytes()
	if err != nil {
		return nil, err
	}
	var doc replicaDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	return &importer.StagedImport{Columns: doc.Columns, Rows: doc.Rows}, nil
}
