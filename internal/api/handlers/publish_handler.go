package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/kee711/threads-saas-sub001/internal/publish"
)

type PublishHandler struct {
	runner *publish.Runner
}

func NewPublishHandler(runner *publish.Runner) *PublishHandler {
	return &PublishHandler{runner: runner}
}

// Tick runs a single scheduler pass on demand. The cron entry runs the
// same pass periodically, so this is mostly for operators and tests.
func (h *PublishHandler) Tick(c *fiber.Ctx) error {
	report := h.runner.RunTick(c.Context())
	slog.Info("publish tick",
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
	)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"attempted": report.Attempted,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	})
}
