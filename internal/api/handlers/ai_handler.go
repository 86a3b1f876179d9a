package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/kee711/threads-saas-sub001/internal/service"
	"github.com/kee711/threads-saas-sub001/internal/transfer"
)

type AIHandler struct {
	s service.AIService
}

func NewAIHandler(service service.AIService) *AIHandler {
	return &AIHandler{s: service}
}

func (h *AIHandler) Generate(c *fiber.Ctx) error {
	var gr transfer.GenerateRequest
	if err := c.BodyParser(&gr); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if gr.Prompt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Prompt is required",
		})
	}

	content, err := h.s.GenerateThread(c.Context(), gr.Prompt, gr.Tone)
	if err != nil {
		slog.Error("generating thread draft", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Unable to generate draft",
		})
	}

	return c.Status(fiber.StatusOK).JSON(transfer.GenerateResponse{Content: content})
}
