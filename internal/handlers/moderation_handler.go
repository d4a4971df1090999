package handlers

import (
	"errors"
	"strconv"

	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/store"
	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ModerationHandler struct {
	engine *services.ModerationEngine
}

func NewModerationHandler(engine *services.ModerationEngine) *ModerationHandler {
	return &ModerationHandler{engine: engine}
}

// statusForEngineError maps engine/store failures to HTTP codes: missing
// report 404, state-machine refusals and detected races 409, everything
// else is the caller's input.
func statusForEngineError(err error) int {
	switch {
	case errors.Is(err, store.ErrReportNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, store.ErrAlreadyTerminal),
		errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrConcurrentModification),
		errors.Is(err, store.ErrDuplicateActive):
		return fiber.StatusConflict
	default:
		return fiber.StatusBadRequest
	}
}

func engineError(c *fiber.Ctx, err error) error {
	return c.Status(statusForEngineError(err)).JSON(dto.ErrorResponse{
		Error: true, Message: err.Error(),
	})
}

func (h *ModerationHandler) FileReport(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	reporterID, err := tenant.GetActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var req dto.FileReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	report, coalesced, err := h.engine.FileReport(appID, reporterID, &req)
	if err != nil {
		return engineError(c, err)
	}

	status := fiber.StatusCreated
	if coalesced {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(dto.FileReportResponse{Coalesced: coalesced, Report: report})
}

func (h *ModerationHandler) ListReports(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if limit > 100 {
		limit = 100
	}

	filter := store.ReportFilter{
		Status:     models.Status(c.Query("status", "")),
		ReasonCode: models.ReasonCode(c.Query("reason", "")),
		Severity:   models.Severity(c.Query("severity", "")),
		Limit:      limit,
		Offset:     offset,
	}

	reports, total, err := h.engine.ListReports(appID, filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch reports",
		})
	}

	return c.JSON(fiber.Map{
		"reports": reports,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *ModerationHandler) GetReport(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	reportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid report ID",
		})
	}

	report, err := h.engine.GetReport(appID, reportID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(report)
}

func (h *ModerationHandler) GetAuditTrail(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	reportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid report ID",
		})
	}

	events, err := h.engine.GetAuditTrail(appID, reportID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(fiber.Map{"events": events, "chain_ok": models.VerifyChain(events)})
}

func (h *ModerationHandler) StartReview(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	actorID, err := tenant.GetActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	reportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid report ID",
		})
	}

	report, err := h.engine.StartReview(appID, reportID, actorID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(report)
}

func (h *ModerationHandler) Resolve(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	actorID, err := tenant.GetActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	reportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid report ID",
		})
	}

	var req dto.ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	report, err := h.engine.Resolve(appID, reportID, actorID, req.ActionTaken)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(report)
}

func (h *ModerationHandler) Dismiss(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	actorID, err := tenant.GetActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	reportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid report ID",
		})
	}

	report, err := h.engine.Dismiss(appID, reportID, actorID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(report)
}

func (h *ModerationHandler) GetAggregate(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	ref := models.ContentRef{
		Type: models.ContentType(c.Params("type")),
		ID:   c.Params("id"),
	}

	agg, err := h.engine.GetAggregate(appID, ref)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(agg)
}
