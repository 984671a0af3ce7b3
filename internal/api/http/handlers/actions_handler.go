package handlers

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-ingest/internal/api/dto"
	"github.com/spec-kit/ticket-ingest/internal/confirm"
	"github.com/spec-kit/ticket-ingest/internal/service"
	"github.com/spec-kit/ticket-ingest/internal/source"
	apperrors "github.com/spec-kit/ticket-ingest/pkg/util"
)

// ActionsHandler mediates the confirmation-gated workflows.
type ActionsHandler struct {
	service *service.IngestService
}

// NewActionsHandler constructs handler.
func NewActionsHandler(ingestService *service.IngestService) *ActionsHandler {
	return &ActionsHandler{service: ingestService}
}

// RequestRefresh POST /actions/refresh.
func (h *ActionsHandler) RequestRefresh(c *fiber.Ctx) error {
	conversationID, err := conversationID(c)
	if err != nil {
		return err
	}
	action, err := h.service.RequestRefresh(c.UserContext(), conversationID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": actionOutcome("pending", action)})
}

// RequestImport POST /actions/import, multipart CSV upload.
func (h *ActionsHandler) RequestImport(c *fiber.Ctx) error {
	conversationID, err := conversationID(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file upload required", nil)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.NewValidationError("unable to open upload", nil)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return apperrors.NewValidationError("unable to read upload", nil)
	}

	table, err := source.ParseCSV(data)
	if err != nil {
		return apperrors.NewValidationError("upload is not valid CSV", map[string]any{"parse_error": err.Error()})
	}

	action, err := h.service.RequestImport(c.UserContext(), conversationID, table)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": actionOutcome("staged", action)})
}

// Confirm POST /actions/confirm.
func (h *ActionsHandler) Confirm(c *fiber.Ctx) error {
	conversationID, err := conversationID(c)
	if err != nil {
		return err
	}
	action, err := h.service.Confirm(c.UserContext(), conversationID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": actionOutcome("confirmed", action)})
}

// Cancel POST /actions/cancel.
func (h *ActionsHandler) Cancel(c *fiber.Ctx) error {
	conversationID, err := conversationID(c)
	if err != nil {
		return err
	}
	action, err := h.service.Cancel(c.UserContext(), conversationID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": actionOutcome("cancelled", action)})
}

func conversationID(c *fiber.Ctx) (string, error) {
	var req dto.ActionRequest
	if err := c.BodyParser(&req); err == nil && strings.TrimSpace(req.ConversationID) != "" {
		return strings.TrimSpace(req.ConversationID), nil
	}
	if v := strings.TrimSpace(c.FormValue("conversation_id")); v != "" {
		return v, nil
	}
	return "", apperrors.NewValidationError("conversation_id required", nil)
}

func actionOutcome(status string, action *confirm.PendingAction) dto.ActionOutcome {
	outcome := dto.ActionOutcome{
		Status:         status,
		ActionID:       action.ID,
		Kind:           string(action.Kind),
		ConversationID: action.ConversationID,
	}
	if !action.ExpiresAt.IsZero() {
		expiresAt := action.ExpiresAt
		outcome.ExpiresAt = &expiresAt
	}
	return outcome
}
