package domain

// TicketPriority enumerates the priorities that survive normalization.
type TicketPriority string

const (
	TicketPriorityP1 TicketPriority = "P1"
	TicketPriorityP2 TicketPriority = "P2"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "Open"
	TicketStatusClosed TicketStatus = "Closed"
)

// RegionUnknown is the bucket for rows with an absent region value.
const RegionUnknown = "Unknown"

// ValidPriority reports whether the value is one of the kept priorities.
func ValidPriority(value string) bool {
	return value == string(TicketPriorityP1) || value == string(TicketPriorityP2)
}

// TicketRecord is one normalized ticket observation for the reporting day.
// Records are constructed only by the pipeline and never mutated afterwards;
// a reload replaces the whole dataset.
type TicketRecord struct {
	ID         string
	SiteID     string
	Priority   TicketPriority
	Date       string // YYYYMMDD, derived from the winning date column
	Aging      int
	TrafficMax float64
	NeedsClose bool
	Status     TicketStatus
	Region     string
	Raw        map[string]string
}

// Dataset is the ordered output of one normalization run plus the raw
// columns observed in the source.
type Dataset struct {
	Records  []TicketRecord
	Columns  []string
	RawCount int
}

// Len returns the number of normalized records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}
