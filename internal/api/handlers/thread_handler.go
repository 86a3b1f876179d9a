package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/kee711/threads-saas-sub001/internal/publish"
	"github.com/kee711/threads-saas-sub001/internal/queue"
	"github.com/kee711/threads-saas-sub001/internal/service"
	"github.com/kee711/threads-saas-sub001/internal/transfer"
)

type ThreadHandler struct {
	s           service.ThreadService
	cw          *publish.CreationWorker
	AsynqClient *asynq.Client
}

func NewThreadHandler(service service.ThreadService, cw *publish.CreationWorker, asynqClient *asynq.Client) *ThreadHandler {
	return &ThreadHandler{s: service, cw: cw, AsynqClient: asynqClient}
}

func (h *ThreadHandler) CreateThread(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var tc transfer.ThreadCreation
	if err := c.BodyParser(&tc); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	threadID, err := h.s.CreateThread(c.Context(), userID, &tc)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// Scheduled threads get the optimistic container-create attempt; the
	// periodic tick will pick the thread up regardless.
	if tc.ScheduledAt != "" {
		h.enqueueCreation(threadID, tc.ScheduledAt)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":      threadID,
		"message": "Thread saved successfully",
	})
}

func (h *ThreadHandler) ListThreads(c *fiber.Ctx) error {
	userID := GetUserID(c)
	threadID := c.QueryInt("id", 0)

	if threadID != 0 {
		thread, err := h.s.ThreadInfo(c.Context(), int64(threadID), userID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to get thread",
			})
		}
		return c.Status(fiber.StatusOK).JSON(thread)
	}

	threads, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list threads",
		})
	}

	return c.Status(fiber.StatusOK).JSON(threads)
}

func (h *ThreadHandler) UpdateThread(c *fiber.Ctx) error {
	userID := GetUserID(c)
	threadID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid thread id",
		})
	}

	var tu transfer.ThreadUpdate
	if err := c.BodyParser(&tu); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	err = h.s.UpdateBody(c.Context(), userID, int64(threadID), tu.Body)
	if errors.Is(err, service.ErrInvalidState) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Thread can no longer be edited",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to update thread",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *ThreadHandler) ScheduleThread(c *fiber.Ctx) error {
	userID := GetUserID(c)
	threadID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid thread id",
		})
	}

	var sr transfer.ScheduleRequest
	if err := c.BodyParser(&sr); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	scheduledAt, err := time.Parse("2006-01-02T15:04", sr.ScheduledAt)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid scheduled time format",
		})
	}

	err = h.s.Schedule(c.Context(), userID, int64(threadID), scheduledAt)
	if errors.Is(err, service.ErrInvalidState) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Thread cannot be scheduled from its current status",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to schedule thread",
		})
	}

	h.enqueueCreation(int64(threadID), sr.ScheduledAt)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Thread scheduled successfully",
	})
}

// CreateNow runs the optimistic container creation synchronously so the UI
// can confirm creation right after scheduling.
func (h *ThreadHandler) CreateNow(c *fiber.Ctx) error {
	userID := GetUserID(c)
	threadID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid thread id",
		})
	}

	if _, err := h.s.ThreadInfo(c.Context(), int64(threadID), userID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Thread doesn't exist",
		})
	}

	if err := h.cw.CreateNow(c.Context(), int64(threadID)); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Container creation failed, thread remains scheduled",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Container created",
	})
}

func (h *ThreadHandler) CancelThread(c *fiber.Ctx) error {
	userID := GetUserID(c)
	threadID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid thread id",
		})
	}

	err = h.s.Cancel(c.Context(), userID, int64(threadID))
	if errors.Is(err, service.ErrInvalidState) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Thread is no longer scheduled",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to cancel thread",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *ThreadHandler) RemoveThread(c *fiber.Ctx) error {
	userID := GetUserID(c)
	threadID := c.QueryInt("id", 0)

	err := h.s.Remove(c.Context(), userID, int64(threadID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove thread",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *ThreadHandler) ThreadHistory(c *fiber.Ctx) error {
	userID := GetUserID(c)
	threadID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid thread id",
		})
	}

	history, err := h.s.History(c.Context(), userID, int64(threadID))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list publish history",
		})
	}

	return c.Status(fiber.StatusOK).JSON(history)
}

func (h *ThreadHandler) enqueueCreation(threadID int64, scheduledAt string) {
	parsed, err := time.Parse("2006-01-02T15:04", scheduledAt)
	if err != nil {
		return
	}

	delay := time.Until(parsed)
	payload := queue.CreateContainerPayload{ThreadID: threadID}
	if err := queue.EnqueueCreation(h.AsynqClient, payload, delay); err != nil {
		slog.Error("enqueueing container creation", "thread_id", threadID, "error", err)
	}
}
