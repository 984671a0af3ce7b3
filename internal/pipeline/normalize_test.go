package pipeline

import (
	"reflect"
	"testing"
	"time"

	"github.com/spec-kit/ticket-ingest/internal/config"
	"github.com/spec-kit/ticket-ingest/internal/domain"
	"github.com/spec-kit/ticket-ingest/internal/source"
	apperrors "github.com/spec-kit/ticket-ingest/pkg/util"
)

// fixedClock puts "now" at 2024-01-03 in UTC, so H-1 is 2024-01-02.
func fixedClock() time.Time {
	return time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
}

func testPipeline() *Pipeline {
	cfg := config.SourceConfig{ExcludedTransport: "FO TSEL", Timezone: "UTC"}
	return NewPipelineWithClock(cfg, fixedClock)
}

func table(header []string, rows ...[]string) *source.Table {
	return &source.Table{Header: header, Rows: rows}
}

func TestRun_KeepsP1DropsOtherPriorities(t *testing.T) {
	tbl := table(
		[]string{"SITEID", "DATE", "Prio"},
		[]string{"A", "01/02/24", "P1"},
		[]string{"B", "01/02/24", "P3"},
	)

	dataset, err := testPipeline().Run(tbl, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dataset.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", dataset.Len())
	}
	record := dataset.Records[0]
	if record.SiteID != "A" {
		t.Fatalf("expected site A, got %s", record.SiteID)
	}
	if record.ID != "A20240102" {
		t.Fatalf("expected id A20240102, got %s", record.ID)
	}
	if record.Priority != domain.TicketPriorityP1 {
		t.Fatalf("expected P1, got %s", record.Priority)
	}
}

func TestRun_IsDeterministic(t *testing.T) {
	tbl := table(
		[]string{"SITEID", "DATE", "Prio", "NOP", "Count of >0.9", "Max Ethernet Port Daily", "Suspect"},
		[]string{"A", "01/02/24", "P1", "MEDAN", "3", "812.5", "yes"},
		[]string{"B", "01/02/24", "P2", "", "", "", ""},
		[]string{"C", "01/01/24", "P1", "ACEH", "1", "10", "no"},
	)

	p := testPipeline()
	first, err := p.Run(tbl, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.Run(tbl, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalization not deterministic")
	}
}

func TestRun_PriorityAndIDInvariants(t *testing.T) {
	tbl := table(
		[]string{"SITEID", "DATE", "Prio"},
		[]string{"A", "01/02/24", "P1"},
		[]string{"B", "01/02/24", "p2"},
		[]string{"C", "01/02/24", "P2"},
		[]string{"D", "01/02/24", ""},
	)

	dataset, err := testPipeline().Run(tbl, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := map[string]bool{}
	for _, record := range dataset.Records {
		if record.Priority != domain.TicketPriorityP1 && record.Priority != domain.TicketPriorityP2 {
			t.Fatalf("record %s has priority %q", record.ID, record.Priority)
		}
		if record.ID == "" {
			t.Fatalf("record with empty id")
		}
		if seen[record.ID] {
			t.Fatalf("duplicate id %s", record.ID)
		}
		seen[record.ID] = true
	}
	if len(dataset.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(dataset.Records))
	}
}

func TestRun_DropsDuplicateIDsKeepingFirst(t *testing.T) {
	tbl := table(
		[]string{"SITEID", "DATE", "Prio", "NOP"},
		[]string{"A", "01/02/24", "P1", "MEDAN"},
		[]string{"A", "01/02/24", "P2", "ACEH"},
	)

	dataset, err := testPipeline().Run(tbl, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dataset.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", dataset.Len())
	}
	if dataset.Records[0].Region != "MEDAN" {
		t.Fatalf("expected first occurrence kept, got region %s", dataset.Records[0].Region)
	}
}

func TestRun_TransportExclusion(t *testing.T) {
	tbl := table(
		[]string{"SITEID", "DATE", "Prio", "Transport Type"},
		[]string{"A", "01/02/24", "P1", "FO TSEL"},
		[]string{"B", "01/02/24", "P1", ""},
		[]string{"C", "01/02/24", "P1", "fo tsel"},
		[]string{"D", "01/02/24", "P1", "MW"},
	)

	dataset, err := testPipeline().Run(tbl, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dataset.Len() != 1 || dataset.Records[0].SiteID != "D" {
		t.Fatalf("expected only site D to survive, got %d records", dataset.Len())
	}
}

func TestRun_IdentityFilterDropsBlankAndNA(t *testing.T) {
	tbl := table(
		[]string{"SITEID", "TiketID", "DATE", "Prio"},
		[]string{"", "N/A", "01/02/24", "P1"},
		[]string{"", "", "01/02/24", "P1"},
		[]string{"A", "", "01/02/24", "P1"},
	)

	dataset, err := testPipeline().Run(tbl, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dataset.Len() != 1 || dataset.Records[0].SiteID != "A" {
		t.Fatalf("expected only site A, got %d records", dataset.Len())
	}
}

func TestRun_PicksBestDateColumn(t *testing.T) {
	// "Updatetanggal" matches zero rows for H-1, "DATE" matches two.
	tbl := table(
		[]string{"SITEID", "Updatetanggal", "DATE", "Prio"},
		[]string{"A", "12/25/23", "01/02/24", "P1"},
		[]string{"B", "12/25/23", "01/02/24", "P2"},
		[]string{"C", "12/25/23", "01/01/24", "P1"},
	)

	dataset, err := testPipeline().Run(tbl, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dataset.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", dataset.Len())
	}
}

func TestRun_DateColumnTieBreakFirstInHeaderOrder(t *testing.T) {
	tbl := table(
		[]string{"SITEID", "DateOpen", "DATE", "Prio"},
		[]string{"A", "01/02/24", "01/01/24", "P1"},
	)

	dataset, err := testPipeline().Run(tbl, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// both candidates score 1; DateOpen comes first and wins
	if dataset.Len() != 1 || dataset.Records[0].Date != "20240102" {
		t.Fatalf("expected DateOpen to win the tie")
	}
}

func TestRun_NoMatchingDateColumn(t *testing.T) {
	tbl := table(
		[]string{"SITEID", "DATE", "Prio"},
		[]string{"A", "12/25/23", "P1"},
	)

	_, err := testPipeline().Run(tbl, 1)
	if !apperrors.HasCode(err, "NO_MATCHING_DATE_COLUMN") {
		t.Fatalf("expected NO_MATCHING_DATE_COLUMN, got %v", err)
	}
}

func TestRun_NoRowsAfterFilter(t *testing.T) {
	tbl := table(
		[]string{"SITEID", "DATE", "Prio"},
		[]string{"A", "01/02/24", "P4"},
	)

	_, err := testPipeline().Run(tbl, 1)
	if !apperrors.HasCode(err, "NO_ROWS_AFTER_FILTER") {
		t.Fatalf("expected NO_ROWS_AFTER_FILTER, got %v", err)
	}
}

func TestRun_DerivesFieldsAndUnknownRegion(t *testing.T) {
	tbl := table(
		[]string{"SITEID", "DATE", "Prio", "Count of >0.9", "Max Ethernet Port Daily", "Suspect", "NOP"},
		[]string{"A", "01/02/24", "P1", "7", "812.5", "yes", ""},
		[]string{"B", "01/02/24", "P2", "", "1,024.5", "no", "MEDAN"},
	)

	dataset, err := testPipeline().Run(tbl, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := dataset.Records[0]
	if a.Aging != 7 {
		t.Fatalf("expected aging 7, got %d", a.Aging)
	}
	if a.TrafficMax != 812.5 {
		t.Fatalf("expected traffic 812.5, got %f", a.TrafficMax)
	}
	if !a.NeedsClose {
		t.Fatalf("expected needs_close true")
	}
	if a.Status != domain.TicketStatusOpen {
		t.Fatalf("expected Open, got %s", a.Status)
	}
	if a.Region != domain.RegionUnknown {
		t.Fatalf("expected Unknown region, got %s", a.Region)
	}
	b := dataset.Records[1]
	if b.NeedsClose {
		t.Fatalf("expected needs_close false for site B")
	}
	if b.TrafficMax != 1024.5 {
		t.Fatalf("expected traffic 1024.5, got %f", b.TrafficMax)
	}
	if b.Region != "MEDAN" {
		t.Fatalf("expected MEDAN, got %s", b.Region)
	}
}

func TestRun_DaysAgoTwoSelectsHMinusTwo(t *testing.T) {
	tbl := table(
		[]string{"SITEID", "DATE", "Prio"},
		[]string{"A", "01/01/24", "P1"},
		[]string{"B", "01/02/24", "P1"},
	)

	dataset, err := testPipeline().Run(tbl, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dataset.Len() != 1 || dataset.Records[0].SiteID != "A" {
		t.Fatalf("expected H-2 row (site A) only")
	}
}

func TestRun_PreservesRawColumnsAndCount(t *testing.T) {
	header := []string{"SITEID", "DATE", "Prio", "BW"}
	tbl := table(header,
		[]string{"A", "01/02/24", "P1", "800"},
		[]string{"B", "01/02/24", "P3", "400"},
	)

	dataset, err := testPipeline().Run(tbl, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(dataset.Columns, header) {
		t.Fatalf("expected columns %v, got %v", header, dataset.Columns)
	}
	if dataset.RawCount != 2 {
		t.Fatalf("expected raw count 2, got %d", dataset.RawCount)
	}
	if dataset.Records[0].Raw["BW"] != "800" {
		t.Fatalf("expected raw BW passthrough")
	}
}
