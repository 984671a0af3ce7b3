package query

import (
	"sort"
	"strings"

	"github.com/spec-kit/ticket-ingest/internal/domain"
	apperrors "github.com/spec-kit/ticket-ingest/pkg/util"
)

// SummaryStats aggregates dataset-wide counters. NeedCloseCount follows the
// source semantics: it counts P1 tickets, not the per-record NeedsClose flag.
type SummaryStats struct {
	Total          int
	OpenCount      int
	P1Count        int
	P2Count        int
	NeedCloseCount int
}

// RegionStats aggregates per-region counters for breakdown displays.
type RegionStats struct {
	Total   int
	P1Count int
}

// ByPriority returns records with the given priority, preserving order.
func ByPriority(dataset *domain.Dataset, priority domain.TicketPriority) []domain.TicketRecord {
	records := make([]domain.TicketRecord, 0)
	if dataset == nil {
		return records
	}
	for _, record := range dataset.Records {
		if record.Priority == priority {
			records = append(records, record)
		}
	}
	return records
}

// ByID finds one record by ticket id.
func ByID(dataset *domain.Dataset, id string) (*domain.TicketRecord, error) {
	if dataset != nil {
		for i := range dataset.Records {
			if dataset.Records[i].ID == id {
				return &dataset.Records[i], nil
			}
		}
	}
	return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
}

// ByRegion groups records per region; rows without a region land in the
// Unknown bucket.
func ByRegion(dataset *domain.Dataset) map[string][]domain.TicketRecord {
	grouped := make(map[string][]domain.TicketRecord)
	if dataset == nil {
		return grouped
	}
	for _, record := range dataset.Records {
		region := record.Region
		if region == "" {
			region = domain.RegionUnknown
		}
		grouped[region] = append(grouped[region], record)
	}
	return grouped
}

// Summary computes dataset-wide counters.
func Summary(dataset *domain.Dataset) SummaryStats {
	stats := SummaryStats{}
	if dataset == nil {
		return stats
	}
	stats.Total = dataset.Len()
	for _, record := range dataset.Records {
		switch record.Priority {
		case domain.TicketPriorityP1:
			stats.P1Count++
		case domain.TicketPriorityP2:
			stats.P2Count++
		}
	}
	stats.OpenCount = stats.P1Count + stats.P2Count
	stats.NeedCloseCount = stats.P1Count
	return stats
}

// RegionSummary computes per-region totals keyed by region name.
func RegionSummary(dataset *domain.Dataset) map[string]RegionStats {
	summary := make(map[string]RegionStats)
	for region, records := range ByRegion(dataset) {
		stats := RegionStats{Total: len(records)}
		for _, record := range records {
			if record.Priority == domain.TicketPriorityP1 {
				stats.P1Count++
			}
		}
		summary[region] = stats
	}
	return summary
}

// RegionNames returns region keys sorted case-insensitively, for stable
// breakdown rendering.
func RegionNames(summary map[string]RegionStats) []string {
	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

// ColumnNames returns the raw columns observed in the last load.
func ColumnNames(dataset *domain.Dataset) []string {
	if dataset == nil {
		return nil
	}
	return append([]string(nil), dataset.Columns...)
}
