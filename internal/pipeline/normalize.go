package pipeline

import (
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/ticket-ingest/internal/config"
	"github.com/spec-kit/ticket-ingest/internal/domain"
	"github.com/spec-kit/ticket-ingest/internal/source"
	apperrors "github.com/spec-kit/ticket-ingest/pkg/util"
)

// dateLayouts are accepted when matching and deriving dates. The two-digit
// month/day/year form is the primary source layout.
var dateLayouts = []string{"01/02/06", "01/02/2006", "2006-01-02"}

// dateColumnHints mark header names that may carry the authoritative date.
var dateColumnHints = []string{"date", "created", "update", "tanggal"}

// Pipeline turns a raw source table into a normalized Dataset for the
// target reporting day. It is deterministic relative to the injected clock.
type Pipeline struct {
	loc               *time.Location
	excludedTransport string
	now               func() time.Time
}

// NewPipeline constructs a pipeline using the wall clock.
func NewPipeline(cfg config.SourceConfig) *Pipeline {
	return NewPipelineWithClock(cfg, time.Now)
}

// NewPipelineWithClock constructs a pipeline with an explicit clock.
func NewPipelineWithClock(cfg config.SourceConfig, now func() time.Time) *Pipeline {
	return &Pipeline{
		loc:               cfg.Location(),
		excludedTransport: strings.ToUpper(strings.TrimSpace(cfg.ExcludedTransport)),
		now:               now,
	}
}

// Run normalizes the table for the day daysAgo days before now. Stages run
// in a fixed order: identity filter, transport exclusion, priority filter,
// empiric date-window filter, derivation. Input row order is preserved.
func (p *Pipeline) Run(table *source.Table, daysAgo int) (*domain.Dataset, error) {
	if table == nil || len(table.Header) == 0 {
		return nil, apperrors.NewNoRowsAfterFilter()
	}

	idIdx := table.IndexByNormalized("tiketid")
	siteIdx := table.IndexByNormalized("siteid")
	transportIdx := table.IndexByNormalized("transporttype")
	prioIdx := table.IndexByNormalized("prio")
	if prioIdx < 0 {
		prioIdx = table.IndexByNormalized("priority")
	}

	rows := make([][]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		if !hasIdentity(row, idIdx, siteIdx) {
			continue
		}
		if transportIdx >= 0 && p.transportExcluded(source.Cell(row, transportIdx)) {
			continue
		}
		if prioIdx < 0 || !domain.ValidPriority(normalizePriority(source.Cell(row, prioIdx))) {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewNoRowsAfterFilter()
	}

	target := p.targetDay(daysAgo)
	dateIdx, err := pickDateColumn(table, rows, target, p.loc)
	if err != nil {
		return nil, err
	}

	records := make([]domain.TicketRecord, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		day, ok := parseDay(source.Cell(row, dateIdx), p.loc)
		if !ok || !day.Equal(target) {
			continue
		}
		record := p.deriveRecord(table, row, day, idIdx, siteIdx, prioIdx)
		if record.ID == "" {
			continue
		}
		if _, dup := seen[record.ID]; dup {
			continue
		}
		seen[record.ID] = struct{}{}
		records = append(records, record)
	}

	return &domain.Dataset{
		Records:  records,
		Columns:  append([]string(nil), table.Header...),
		RawCount: len(table.Rows),
	}, nil
}

func (p *Pipeline) targetDay(daysAgo int) time.Time {
	now := p.now().In(p.loc)
	day := now.AddDate(0, 0, -daysAgo)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, p.loc)
}

func (p *Pipeline) transportExcluded(value string) bool {
	value = strings.ToUpper(strings.TrimSpace(value))
	return value == "" || value == p.excludedTransport
}

func hasIdentity(row []string, idIdx, siteIdx int) bool {
	id := source.Cell(row, idIdx)
	if id != "" && !strings.EqualFold(id, "N/A") {
		return true
	}
	site := source.Cell(row, siteIdx)
	return site != "" && !strings.EqualFold(site, "N/A")
}

// pickDateColumn scores every candidate date column by how many rows parse
// to the target day and returns the best one; earlier header position wins
// ties. Zero matches everywhere is an error so callers can tell "no tickets
// yesterday" from a broken date column.
func pickDateColumn(table *source.Table, rows [][]string, target time.Time, loc *time.Location) (int, error) {
	candidates := make([]int, 0, len(table.Header))
	names := make([]string, 0, len(table.Header))
	for i, col := range table.Header {
		lower := strings.ToLower(col)
		for _, hint := range dateColumnHints {
			if strings.Contains(lower, hint) {
				candidates = append(candidates, i)
				names = append(names, col)
				break
			}
		}
	}

	bestIdx := -1
	bestCount := 0
	for _, idx := range candidates {
		count := 0
		for _, row := range rows {
			if day, ok := parseDay(source.Cell(row, idx), loc); ok && day.Equal(target) {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			bestIdx = idx
		}
	}
	if bestIdx < 0 {
		return -1, apperrors.NewNoMatchingDateColumn(target.Format("2006-01-02"), names)
	}
	return bestIdx, nil
}

func (p *Pipeline) deriveRecord(table *source.Table, row []string, day time.Time, idIdx, siteIdx, prioIdx int) domain.TicketRecord {
	site := source.Cell(row, siteIdx)
	dateStr := day.Format("20060102")

	id := source.Cell(row, idIdx)
	if id == "" || strings.EqualFold(id, "N/A") {
		if site == "" {
			id = ""
		} else {
			id = site + dateStr
		}
	}

	record := domain.TicketRecord{
		ID:         id,
		SiteID:     site,
		Priority:   domain.TicketPriority(normalizePriority(source.Cell(row, prioIdx))),
		Date:       dateStr,
		Aging:      parseIntField(fieldValue(table, row, "aging", "countof09")),
		TrafficMax: parseFloatField(fieldValue(table, row, "trafmax", "maxethernetportdaily")),
		NeedsClose: coerceBool(fieldValue(table, row, "needclose", "suspect")),
		Status:     normalizeStatus(fieldValue(table, row, "status")),
		Region:     fieldValue(table, row, "nop"),
		Raw:        table.RecordMap(row),
	}
	if record.Region == "" {
		record.Region = domain.RegionUnknown
	}
	return record
}

// fieldValue returns the first non-empty value among the named columns,
// resolved by normalized header lookup.
func fieldValue(table *source.Table, row []string, names ...string) string {
	for _, name := range names {
		if idx := table.IndexByNormalized(name); idx >= 0 {
			if v := source.Cell(row, idx); v != "" {
				return v
			}
		}
	}
	return ""
}

func normalizePriority(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

func normalizeStatus(value string) domain.TicketStatus {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "closed", "clear":
		return domain.TicketStatusClosed
	default:
		return domain.TicketStatusOpen
	}
}

func parseDay(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true
		}
	}
	digits := digitsOnly(value)
	if len(digits) == 8 {
		if t, err := time.ParseInLocation("20060102", digits, loc); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true
		}
	}
	return time.Time{}, false
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseIntField(value string) int {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if value == "" {
		return 0
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return int(f)
	}
	return 0
}

func parseFloatField(value string) float64 {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	value = strings.TrimSuffix(value, "%")
	if value == "" {
		return 0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}

func coerceBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "no", "n", "false", "0", "-", "nan":
		return false
	default:
		return true
	}
}
