package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDatasetReloaded EventType = "dataset_reloaded"
	EventReloadFailed    EventType = "reload_failed"
	EventImportStaged    EventType = "import_staged"
	EventImportSynced    EventType = "import_synced"
	EventActionRequested EventType = "action_requested"
	EventActionConfirmed EventType = "action_confirmed"
	EventActionCancelled EventType = "action_cancelled"
	EventActionExpired   EventType = "action_expired"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID             string      `json:"id"`
	Type           EventType   `json:"type"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
	Payload        interface{} `json:"payload"`
}

// DatasetReloadedPayload payload.
type DatasetReloadedPayload struct {
	RawRows int `json:"raw_rows"`
	Records int `json:"records"`
}

// ReloadFailedPayload payload.
type ReloadFailedPayload struct {
	Reason string `json:"reason"`
}

// ImportStagedPayload payload.
type ImportStagedPayload struct {
	ActionID string `json:"action_id"`
	Rows     int    `json:"rows"`
}

// ImportSyncedPayload payload.
type ImportSyncedPayload struct {
	ActionID string `json:"action_id"`
	Upserted int    `json:"upserted"`
}

// ActionPayload describes a confirmation lifecycle transition.
type ActionPayload struct {
	ActionID string `json:"action_id"`
	Kind     string `json:"kind"`
}
