package confirm

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ingest/internal/config"
	"github.com/spec-kit/ticket-ingest/internal/events"
	apperrors "github.com/spec-kit/ticket-ingest/pkg/util"
)

// ActionKind enumerates the mutating workflows gated by confirmation.
type ActionKind string

const (
	ActionRefresh    ActionKind = "refresh"
	ActionImportSync ActionKind = "import_sync"
)

// PendingAction is one outstanding confirmation for a conversation. At most
// one exists per conversation at any instant.
type PendingAction struct {
	ID             string
	Kind           ActionKind
	ConversationID string
	Payload        any
	RequestedAt    time.Time
	ExpiresAt      time.Time // zero when the action waits for explicit confirm/cancel

	timer *time.Timer
}

// EffectFunc executes the confirmed action's side effect.
type EffectFunc func(ctx context.Context, action *PendingAction) error

// Engine is the per-conversation confirmation state machine. Request,
// confirm, cancel and expiry all funnel through one mutex, so a race
// between user-confirm and timer-expiry resolves first-writer-wins.
type Engine struct {
	windows    map[ActionKind]time.Duration
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	pending map[string]*PendingAction
	effects map[ActionKind]EffectFunc
}

// NewEngine constructs the engine with per-kind confirmation windows.
func NewEngine(cfg config.ConfirmConfig, dispatcher events.Dispatcher, logger *zap.Logger) *Engine {
	return &Engine{
		windows: map[ActionKind]time.Duration{
			ActionRefresh:    cfg.RefreshWindow(),
			ActionImportSync: cfg.ImportWindow(),
		},
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
		pending:    make(map[string]*PendingAction),
		effects:    make(map[ActionKind]EffectFunc),
	}
}

// RegisterEffect binds the side effect executed when a kind is confirmed.
func (e *Engine) RegisterEffect(kind ActionKind, effect EffectFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.effects[kind] = effect
}

// Request opens a pending action for the conversation. A second request
// while one is open is rejected.
func (e *Engine) Request(ctx context.Context, conversationID string, kind ActionKind, payload any) (*PendingAction, error) {
	e.mu.Lock()
	if _, exists := e.pending[conversationID]; exists {
		e.mu.Unlock()
		return nil, apperrors.NewDuplicatePendingAction(conversationID)
	}

	action := &PendingAction{
		ID:             uuid.NewString(),
		Kind:           kind,
		ConversationID: conversationID,
		Payload:        payload,
		RequestedAt:    e.now(),
	}
	if window := e.windows[kind]; window > 0 {
		action.ExpiresAt = action.RequestedAt.Add(window)
		action.timer = time.AfterFunc(window, func() {
			e.expire(conversationID, action.ID)
		})
	}
	e.pending[conversationID] = action
	e.mu.Unlock()

	e.publish(ctx, events.EventActionRequested, action)
	return action, nil
}

// Confirm claims the pending action and executes its effect. Valid only
// while one is pending.
func (e *Engine) Confirm(ctx context.Context, conversationID string) (*PendingAction, error) {
	action, effect, err := e.claim(conversationID)
	if err != nil {
		return nil, err
	}

	if effect != nil {
		if err := effect(ctx, action); err != nil {
			e.publish(ctx, events.EventActionCancelled, action)
			return action, err
		}
	}
	e.publish(ctx, events.EventActionConfirmed, action)
	return action, nil
}

// Cancel claims the pending action without executing anything.
func (e *Engine) Cancel(ctx context.Context, conversationID string) (*PendingAction, error) {
	action, _, err := e.claim(conversationID)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, events.EventActionCancelled, action)
	return action, nil
}

// Pending returns the open action for the conversation, if any.
func (e *Engine) Pending(conversationID string) (*PendingAction, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	action, ok := e.pending[conversationID]
	return action, ok
}

// claim removes the pending action under the mutex and stops its timer, so
// the caller owns the transition. The effect is resolved inside the lock
// but executed outside it; in-flight effects are not conversation-scoped.
func (e *Engine) claim(conversationID string) (*PendingAction, EffectFunc, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	action, ok := e.pending[conversationID]
	if !ok {
		return nil, nil, apperrors.NewInvalidStateTransition("no pending action for this conversation")
	}
	delete(e.pending, conversationID)
	if action.timer != nil {
		action.timer.Stop()
	}
	return action, e.effects[action.Kind], nil
}

// expire fires from the action's timer. Losing the race against a confirm
// or cancel makes it a no-op: the action id no longer matches.
func (e *Engine) expire(conversationID, actionID string) {
	e.mu.Lock()
	action, ok := e.pending[conversationID]
	if !ok || action.ID != actionID {
		e.mu.Unlock()
		return
	}
	delete(e.pending, conversationID)
	e.mu.Unlock()

	e.logger.Info("pending action expired",
		zap.String("conversation_id", conversationID),
		zap.String("kind", string(action.Kind)),
	)
	e.publish(context.Background(), events.EventActionExpired, action)
}

func (e *Engine) publish(ctx context.Context, eventType events.EventType, action *PendingAction) {
	if e.dispatcher == nil {
		return
	}
	_ = e.dispatcher.Publish(ctx, events.Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		ConversationID: action.ConversationID,
		Timestamp:      e.now(),
		Payload: events.ActionPayload{
			ActionID: action.ID,
			Kind:     string(action.Kind),
		},
	})
}
