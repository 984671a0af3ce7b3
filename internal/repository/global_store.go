package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-ingest/internal/domain"
	"github.com/spec-kit/ticket-ingest/internal/importer"
)

// Record is one authoritative-store row keyed by canonical column names.
type Record map[string]string

// GlobalStore persists the authoritative ticket database plus its history
// trail and sync-run bookkeeping.
type GlobalStore interface {
	// CommitSync upserts the records and appends them to history. The commit
	// is idempotent per action id: a repeated commit for the same action is
	// a no-op and reports the previously upserted count.
	CommitSync(ctx context.Context, actionID string, records []Record, today time.Time) (int, error)
}

// syncStore is the transactional surface one sync run drives. Claiming the
// run before any write keeps the commit idempotent per action id even when
// two commits race: the claim either wins or observes the prior run's count.
type syncStore interface {
	BeginRun(ctx context.Context, actionID string) (prior int, alreadyRan bool, err error)
	Existing(ctx context.Context, ticketID string) (Record, error)
	Upsert(ctx context.Context, ticketID string, merged Record, payload []byte) error
	AppendHistory(ctx context.Context, ticketID string, payload []byte) error
	FinishRun(ctx context.Context, actionID string, upserted int) error
}

type globalStore struct {
	pool *pgxpool.Pool
}

// NewGlobalStore instantiates the Postgres-backed store.
func NewGlobalStore(pool *pgxpool.Pool) GlobalStore {
	return &globalStore{pool: pool}
}

func (s *globalStore) CommitSync(ctx context.Context, actionID string, records []Record, today time.Time) (int, error) {
	if s.pool == nil {
		return 0, errors.New("global store not configured")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	upserted, alreadyRan, err := commitSync(ctx, &txSyncStore{tx: tx}, actionID, records, today)
	if err != nil {
		return 0, err
	}
	if alreadyRan {
		// nothing was written; the rollback discards the no-op claim
		return upserted, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return upserted, nil
}

// commitSync runs one sync: claim the action id, merge each record against
// the stored row, upsert it and append history, then record the final count.
func commitSync(ctx context.Context, store syncStore, actionID string, records []Record, today time.Time) (int, bool, error) {
	prior, alreadyRan, err := store.BeginRun(ctx, actionID)
	if err != nil {
		return 0, false, err
	}
	if alreadyRan {
		return prior, true, nil
	}

	upserted := 0
	for _, incoming := range records {
		ticketID := strings.TrimSpace(incoming["TiketID"])
		if ticketID == "" {
			continue
		}

		existing, err := store.Existing(ctx, ticketID)
		if err != nil {
			return 0, false, err
		}
		merged := mergeRecord(existing, incoming, today)

		payload, err := json.Marshal(merged)
		if err != nil {
			return 0, false, err
		}
		if err := store.Upsert(ctx, ticketID, merged, payload); err != nil {
			return 0, false, err
		}
		if err := store.AppendHistory(ctx, ticketID, payload); err != nil {
			return 0, false, err
		}
		upserted++
	}

	if err := store.FinishRun(ctx, actionID, upserted); err != nil {
		return 0, false, err
	}
	return upserted, false, nil
}

type txSyncStore struct {
	tx pgx.Tx
}

func (s *txSyncStore) BeginRun(ctx context.Context, actionID string) (int, bool, error) {
	// a concurrent claim blocks here until the winner commits, after which
	// DO NOTHING applies and the winner's count is visible
	tag, err := s.tx.Exec(ctx, `
        INSERT INTO sync_runs (action_id, rows_upserted, created_at)
        VALUES ($1, 0, NOW())
        ON CONFLICT (action_id) DO NOTHING`, actionID)
	if err != nil {
		return 0, false, err
	}
	if tag.RowsAffected() > 0 {
		return 0, false, nil
	}
	var prior int
	if err := s.tx.QueryRow(ctx, `SELECT rows_upserted FROM sync_runs WHERE action_id=$1`, actionID).Scan(&prior); err != nil {
		return 0, false, err
	}
	return prior, true, nil
}

func (s *txSyncStore) Existing(ctx context.Context, ticketID string) (Record, error) {
	var payload []byte
	err := s.tx.QueryRow(ctx, `SELECT payload FROM tickets_global WHERE ticket_id=$1`, ticketID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *txSyncStore) Upsert(ctx context.Context, ticketID string, merged Record, payload []byte) error {
	const upsert = `
        INSERT INTO tickets_global (ticket_id, site_id, priority, status, date_open, aging, payload, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
        ON CONFLICT (ticket_id) DO UPDATE SET
            site_id=EXCLUDED.site_id, priority=EXCLUDED.priority, status=EXCLUDED.status,
            date_open=EXCLUDED.date_open, aging=EXCLUDED.aging, payload=EXCLUDED.payload, updated_at=NOW()`
	_, err := s.tx.Exec(ctx, upsert,
		ticketID,
		merged["SITEID"],
		merged["Priority"],
		merged["Status"],
		merged["DateOpen"],
		parseAging(merged["Aging"]),
		payload,
	)
	return err
}

func (s *txSyncStore) AppendHistory(ctx context.Context, ticketID string, payload []byte) error {
	const appendHistory = `
        INSERT INTO tickets_history (ticket_id, payload, synced_at)
        VALUES ($1,$2,NOW())`
	_, err := s.tx.Exec(ctx, appendHistory, ticketID, payload)
	return err
}

func (s *txSyncStore) FinishRun(ctx context.Context, actionID string, upserted int) error {
	_, err := s.tx.Exec(ctx, `UPDATE sync_runs SET rows_upserted=$2 WHERE action_id=$1`, actionID, upserted)
	return err
}

// BuildDailyRecords maps a normalized dataset into canonical-store records,
// reading passthrough values from each record's raw row.
func BuildDailyRecords(dataset *domain.Dataset, today time.Time) []Record {
	records := make([]Record, 0, dataset.Len())
	todayStr := today.Format("20060102")
	for _, ticket := range dataset.Records {
		raw := func(keys ...string) string {
			for _, key := range keys {
				if v, ok := ticket.Raw[key]; ok && strings.TrimSpace(v) != "" {
					return strings.TrimSpace(v)
				}
			}
			return ""
		}
		dateRaw := raw("DATE", "Date")
		record := Record{
			"VENDOR":                  raw("VENDOR"),
			"DATE":                    dateRaw,
			"SITEID":                  ticket.SiteID,
			"Transport Type":          raw("Transport Type"),
			"NOP":                     ticket.Region,
			"Count of >0.9":           raw("Count of >0.9"),
			"Util FEGE %":             raw("Util FEGE %"),
			"Max Ethernet Port Daily": raw("Max Ethernet Port Daily"),
			"BW":                      raw("BW"),
			"Priority":                string(ticket.Priority),
			"Suspect":                 raw("Suspect"),
			"TiketID":                 ticket.ID,
			"Update12feb":             todayStr,
			"statusupdate12feb":       "Open",
			"DateOpen":                dateRaw,
			"Aging":                   "",
			"Status":                  "Open",
			"Updatetanggal":           todayStr,
			"closedby":                "",
			"Note":                    "",
			"CapSiteSimpul":           "",
			"CapIntermediateLink":     "",
			"OtherPelurusanDataBW":    "",
		}
		if record["DateOpen"] == "" {
			record["DateOpen"] = ticket.Date
		}
		records = append(records, record)
	}
	return records
}

// StagedRecords converts an accepted import into store records.
func StagedRecords(staged *importer.StagedImport) []Record {
	maps := staged.Records()
	records := make([]Record, 0, len(maps))
	for _, m := range maps {
		records = append(records, Record(m))
	}
	return records
}

// mergeRecord applies the upsert rules: an existing row keeps its DateOpen,
// aging is recomputed from it, and a closed/clear stored status flips the
// status update marker to ReOpen. New rows compute aging from their own
// DateOpen.
func mergeRecord(existing, incoming Record, today time.Time) Record {
	merged := make(Record, len(importer.CanonicalColumns))
	for _, col := range importer.CanonicalColumns {
		merged[col] = incoming[col]
	}
	todayStr := today.Format("20060102")
	merged["Update12feb"] = todayStr
	merged["Updatetanggal"] = todayStr
	merged["Status"] = "Open"
	merged["statusupdate12feb"] = "Open"

	if existing != nil {
		if strings.TrimSpace(existing["DateOpen"]) != "" {
			merged["DateOpen"] = existing["DateOpen"]
		}
		status := strings.ToLower(strings.TrimSpace(existing["Status"]))
		if status == "closed" || status == "clear" {
			merged["statusupdate12feb"] = "ReOpen"
		}
	}

	merged["Aging"] = strconv.Itoa(agingDays(parseDateToYYYYMMDD(merged["DateOpen"]), today))
	return merged
}

// parseDateToYYYYMMDD normalizes the date formats seen in source sheets.
func parseDateToYYYYMMDD(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for _, layout := range []string{"01/02/2006", "01/02/06", "2006-01-02", "02/01/2006", "02/01/06"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("20060102")
		}
	}
	digits := make([]rune, 0, len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) == 8 {
		return string(digits)
	}
	return ""
}

func agingDays(dateOpen string, today time.Time) int {
	if dateOpen == "" {
		return 0
	}
	open, err := time.Parse("20060102", dateOpen)
	if err != nil {
		return 0
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	delta := int(day.Sub(open).Hours() / 24)
	if delta < 0 {
		return 0
	}
	return delta
}

func parseAging(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return n
}
