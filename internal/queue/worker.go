package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/kee711/threads-saas-sub001/internal/publish"
)

// Worker executes queued container-create tasks through the same
// CreationWorker the synchronous create-now endpoint uses.
type Worker struct {
	cw *publish.CreationWorker
}

func NewWorker(cw *publish.CreationWorker) *Worker {
	return &Worker{cw: cw}
}

func (w *Worker) HandleCreateContainerTask(ctx context.Context, task *asynq.Task) error {
	var payload CreateContainerPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	// Creation failures are not task failures: the thread stays scheduled
	// and the next tick retries, so asynq must not retry on its own.
	if err := w.cw.CreateNow(ctx, payload.ThreadID); err != nil {
		slog.Info("optimistic creation deferred to next tick",
			"thread_id", payload.ThreadID, "error", err)
	}

	return nil
}
