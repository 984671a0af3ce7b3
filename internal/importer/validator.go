package importer

import (
	"sort"

	"github.com/spec-kit/ticket-ingest/internal/source"
	apperrors "github.com/spec-kit/ticket-ingest/pkg/util"
)

// CanonicalColumns is the replica sheet header. An uploaded dataset must
// carry exactly this column set to be accepted.
var CanonicalColumns = []string{
	"VENDOR",
	"DATE",
	"SITEID",
	"Transport Type",
	"NOP",
	"Count of >0.9",
	"Util FEGE %",
	"Max Ethernet Port Daily",
	"BW",
	"Priority",
	"Suspect",
	"TiketID",
	"Update12feb",
	"statusupdate12feb",
	"DateOpen",
	"Aging",
	"Status",
	"Updatetanggal",
	"closedby",
	"Note",
	"CapSiteSimpul",
	"CapIntermediateLink",
	"OtherPelurusanDataBW",
}

// StagedImport holds an accepted upload while its sync confirmation is open.
type StagedImport struct {
	Columns []string
	Rows    [][]string
}

// Validate checks the uploaded table's header against the canonical schema.
// Acceptance requires exact set equality with no repeated columns; mismatches
// name the missing, extra and duplicated columns and nothing is partially
// accepted. A repeated column would make its cells alias in Records.
func Validate(table *source.Table) (*StagedImport, error) {
	if table == nil || len(table.Header) == 0 {
		return nil, apperrors.NewValidationError("uploaded file has no header row", nil)
	}

	canonical := make(map[string]struct{}, len(CanonicalColumns))
	for _, col := range CanonicalColumns {
		canonical[source.NormalizeKey(col)] = struct{}{}
	}
	uploaded := make(map[string]struct{}, len(table.Header))
	duplicated := make([]string, 0)
	for _, col := range table.Header {
		key := source.NormalizeKey(col)
		if _, ok := uploaded[key]; ok {
			duplicated = append(duplicated, col)
			continue
		}
		uploaded[key] = struct{}{}
	}
	sort.Strings(duplicated)

	missing := make([]string, 0)
	for _, col := range CanonicalColumns {
		if _, ok := uploaded[source.NormalizeKey(col)]; !ok {
			missing = append(missing, col)
		}
	}
	extra := make([]string, 0)
	for _, col := range table.Header {
		if _, ok := canonical[source.NormalizeKey(col)]; !ok {
			extra = append(extra, col)
		}
	}
	sort.Strings(extra)

	if len(missing) > 0 || len(extra) > 0 || len(duplicated) > 0 {
		return nil, apperrors.NewSchemaMismatch(missing, extra, duplicated)
	}

	return &StagedImport{
		Columns: append([]string(nil), table.Header...),
		Rows:    table.Rows,
	}, nil
}

// Records converts staged rows into canonical-keyed maps, padding short rows.
func (s *StagedImport) Records() []map[string]string {
	records := make([]map[string]string, 0, len(s.Rows))
	for _, row := range s.Rows {
		record := make(map[string]string, len(s.Columns))
		for i, col := range s.Columns {
			record[col] = source.Cell(row, i)
		}
		records = append(records, record)
	}
	return records
}
