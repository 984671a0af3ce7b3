package source

import (
	"bytes"
	"encoding/csv"
	"strings"
	"unicode"
)

// Table holds raw tabular data: an ordered header plus data rows. Rows are
// padded or truncated to the header width during parsing.
type Table struct {
	Header []string
	Rows   [][]string
}

// NormalizeKey lowercases a column name and strips non-alphanumeric runes,
// so "Transport Type", "transport_type" and "TransportType" all match.
func NormalizeKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseCSV parses raw CSV bytes into a Table. Ragged rows are tolerated:
// short rows are padded with empty cells, long rows truncated.
func ParseCSV(data []byte) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Table{}, nil
	}

	header := make([]string, len(records[0]))
	for i, cell := range records[0] {
		header[i] = strings.TrimSpace(cell)
	}

	rows := make([][]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make([]string, len(header))
		for i := range header {
			if i < len(record) {
				row[i] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}

	return &Table{Header: header, Rows: rows}, nil
}

// IndexByNormalized returns the position of the first header column whose
// normalized name equals the normalized target, or -1.
func (t *Table) IndexByNormalized(name string) int {
	target := NormalizeKey(name)
	for i, col := range t.Header {
		if NormalizeKey(col) == target {
			return i
		}
	}
	return -1
}

// Cell returns the trimmed value at the given column index, empty when the
// index is out of range.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// RecordMap converts one row into a column-name → value map for passthrough
// display fields.
func (t *Table) RecordMap(row []string) map[string]string {
	record := make(map[string]string, len(t.Header))
	for i, col := range t.Header {
		record[col] = Cell(row, i)
	}
	return record
}
