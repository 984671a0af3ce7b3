package dto

import (
	"time"

	"github.com/spec-kit/ticket-ingest/internal/domain"
)

// TicketSummary response.
type TicketSummary struct {
	ID         string                `json:"id"`
	SiteID     string                `json:"site_id"`
	Priority   domain.TicketPriority `json:"priority"`
	Date       string                `json:"date"`
	Aging      int                   `json:"aging"`
	TrafficMax float64               `json:"traffic_max"`
	NeedsClose bool                  `json:"needs_close"`
	Status     domain.TicketStatus   `json:"status"`
	Region     string                `json:"region"`
}

// TicketDetailResponse provides the full record including passthrough fields.
type TicketDetailResponse struct {
	TicketSummary
	Raw map[string]string `json:"raw"`
}

// SummaryResponse carries dataset-wide counters.
type SummaryResponse struct {
	Total          int `json:"total"`
	OpenCount      int `json:"open_count"`
	P1Count        int `json:"p1_count"`
	P2Count        int `json:"p2_count"`
	NeedCloseCount int `json:"need_close_count"`
}

// RegionSummaryEntry is one region's breakdown line.
type RegionSummaryEntry struct {
	Region  string `json:"region"`
	Total   int    `json:"total"`
	P1Count int    `json:"p1_count"`
}

// CacheInfoResponse reports cache statistics.
type CacheInfoResponse struct {
	RawCount         int        `json:"raw_count"`
	FilteredCount    int        `json:"filtered_count"`
	FetchedAt        *time.Time `json:"fetched_at,omitempty"`
	TTLSeconds       int        `json:"ttl_seconds"`
	Valid            bool       `json:"valid"`
	ExpiresInSeconds int        `json:"expires_in_seconds"`
}

// ActionRequest identifies the conversation issuing a command.
type ActionRequest struct {
	ConversationID string `json:"conversation_id"`
}

// ActionOutcome reports a confirmation workflow transition.
type ActionOutcome struct {
	Status         string     `json:"status"`
	ActionID       string     `json:"action_id,omitempty"`
	Kind           string     `json:"kind,omitempty"`
	ConversationID string     `json:"conversation_id"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	RowsSynced     *int       `json:"rows_synced,omitempty"`
}
