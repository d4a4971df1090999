package handlers

import (
	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

type PolicyHandler struct {
	engine *services.ModerationEngine
}

func NewPolicyHandler(engine *services.ModerationEngine) *PolicyHandler {
	return &PolicyHandler{engine: engine}
}

func (h *PolicyHandler) GetPolicy(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)

	policy, err := h.engine.GetPolicy(appID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch policy",
		})
	}
	return c.JSON(policy)
}

func (h *PolicyHandler) SetPolicy(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	actorID, err := tenant.GetActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var req dto.PolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	policy, err := h.engine.SetPolicy(appID, actorID, &req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}
	return c.JSON(policy)
}
