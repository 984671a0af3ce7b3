package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-ingest/internal/api/dto"
	"github.com/spec-kit/ticket-ingest/internal/domain"
	"github.com/spec-kit/ticket-ingest/internal/query"
	"github.com/spec-kit/ticket-ingest/internal/service"
	apperrors "github.com/spec-kit/ticket-ingest/pkg/util"
)

// QueriesHandler serves the read-only projections.
type QueriesHandler struct {
	service *service.IngestService
}

// NewQueriesHandler constructs handler.
func NewQueriesHandler(ingestService *service.IngestService) *QueriesHandler {
	return &QueriesHandler{service: ingestService}
}

// ListTickets GET /tickets.
func (h *QueriesHandler) ListTickets(c *fiber.Ctx) error {
	dataset, err := h.service.Dataset(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, dataset.Len())
	for i := range dataset.Records {
		items = append(items, ticketSummary(&dataset.Records[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListByPriority GET /tickets/priority/:priority.
func (h *QueriesHandler) ListByPriority(c *fiber.Ctx) error {
	priority := strings.ToUpper(c.Params("priority"))
	if !domain.ValidPriority(priority) {
		return apperrors.NewValidationError("priority must be P1 or P2", nil)
	}
	records, err := h.service.TicketsByPriority(c.UserContext(), domain.TicketPriority(priority))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(records))
	for i := range records {
		items = append(items, ticketSummary(&records[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *QueriesHandler) GetTicket(c *fiber.Ctx) error {
	record, err := h.service.TicketByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetailResponse{
		TicketSummary: ticketSummary(record),
		Raw:           record.Raw,
	}})
}

// ListByRegion GET /tickets/regions.
func (h *QueriesHandler) ListByRegion(c *fiber.Ctx) error {
	grouped, err := h.service.TicketsByRegion(c.UserContext())
	if err != nil {
		return err
	}
	data := make(map[string][]dto.TicketSummary, len(grouped))
	for region, records := range grouped {
		items := make([]dto.TicketSummary, 0, len(records))
		for i := range records {
			items = append(items, ticketSummary(&records[i]))
		}
		data[region] = items
	}
	return c.JSON(fiber.Map{"data": data})
}

// Summary GET /summary.
func (h *QueriesHandler) Summary(c *fiber.Ctx) error {
	stats, err := h.service.Summary(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SummaryResponse{
		Total:          stats.Total,
		OpenCount:      stats.OpenCount,
		P1Count:        stats.P1Count,
		P2Count:        stats.P2Count,
		NeedCloseCount: stats.NeedCloseCount,
	}})
}

// RegionSummary GET /regions.
func (h *QueriesHandler) RegionSummary(c *fiber.Ctx) error {
	summary, err := h.service.RegionSummary(c.UserContext())
	if err != nil {
		return err
	}
	entries := make([]dto.RegionSummaryEntry, 0, len(summary))
	for _, region := range query.RegionNames(summary) {
		stats := summary[region]
		entries = append(entries, dto.RegionSummaryEntry{
			Region:  region,
			Total:   stats.Total,
			P1Count: stats.P1Count,
		})
	}
	return c.JSON(fiber.Map{"data": entries})
}

// Columns GET /columns.
func (h *QueriesHandler) Columns(c *fiber.Ctx) error {
	columns, err := h.service.Columns(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": columns})
}

// Info GET /info.
func (h *QueriesHandler) Info(c *fiber.Ctx) error {
	info := h.service.CacheInfo()
	resp := dto.CacheInfoResponse{
		RawCount:         info.RawCount,
		FilteredCount:    info.FilteredCount,
		TTLSeconds:       int(info.TTL.Seconds()),
		Valid:            info.Valid,
		ExpiresInSeconds: int(info.ExpiresIn.Seconds()),
	}
	if !info.FetchedAt.IsZero() {
		fetchedAt := info.FetchedAt
		resp.FetchedAt = &fetchedAt
	}
	return c.JSON(fiber.Map{"data": resp})
}

func ticketSummary(record *domain.TicketRecord) dto.TicketSummary {
	return dto.TicketSummary{
		ID:         record.ID,
		SiteID:     record.SiteID,
		Priority:   record.Priority,
		Date:       record.Date,
		Aging:      record.Aging,
		TrafficMax: record.TrafficMax,
		NeedsClose: record.NeedsClose,
		Status:     record.Status,
		Region:     record.Region,
	}
}
