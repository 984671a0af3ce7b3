package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ingest/internal/events"
)

// AuditService logs the ingestion core's domain events.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventDatasetReloaded,
		events.EventReloadFailed,
		events.EventImportStaged,
		events.EventImportSynced,
		events.EventActionRequested,
		events.EventActionConfirmed,
		events.EventActionCancelled,
		events.EventActionExpired,
	} {
		a.dispatcher.Subscribe(eventType, a.handleEvent)
	}
}

func (a *AuditService) handleEvent(ctx context.Context, event events.Event) error {
	a.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("conversation_id", event.ConversationID),
		zap.Any("payload", event.Payload),
	)
	return nil
}
