package publish

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kee711/threads-saas-sub001/internal/gateway"
	"github.com/kee711/threads-saas-sub001/internal/models"
	"github.com/kee711/threads-saas-sub001/internal/repository"
)

// CreationWorker performs container creation outside the tick, right after a
// user schedules a thread, so creation feedback is fast while publish
// confirmation still waits for the next tick and the grace window.
//
// Failure policy: this path never marks a thread failed. The thread stays
// scheduled and the next tick makes the authoritative attempt; only the tick
// path produces terminal failures.
type CreationWorker struct {
	tr    repository.ThreadRepository
	ph    repository.PublishHistoryRepository
	creds CredentialsSource
	gw    gateway.ThreadsGateway
	now   func() time.Time
}

func NewCreationWorker(
	tr repository.ThreadRepository,
	ph repository.PublishHistoryRepository,
	creds CredentialsSource,
	gw gateway.ThreadsGateway) *CreationWorker {
	return &CreationWorker{
		tr:    tr,
		ph:    ph,
		creds: creds,
		gw:    gw,
		now:   time.Now,
	}
}

// CreateNow attempts container creation for one scheduled thread. On success
// the thread moves to ready_to_publish with its creation id; on any failure
// it is left in scheduled for the next tick to retry.
func (w *CreationWorker) CreateNow(ctx context.Context, threadID int64) error {
	t, err := w.tr.GetByID(ctx, threadID)
	if err != nil {
		return err
	}
	if t == nil {
		return repository.ErrNotFound
	}
	if t.Status != models.ThreadStatusScheduled {
		slog.Info("create-now skipped, thread not scheduled", "thread_id", threadID, "status", t.Status)
		return nil
	}

	creds, err := w.creds.Credentials(ctx, t.AccountID)
	var creationID string
	if err == nil {
		creationID, err = w.gw.CreateContainer(ctx, creds, t.Body, t.MediaURLs)
	}
	if err != nil {
		gerr := gateway.AsError(err)
		w.recordFailure(ctx, t, gerr)
		slog.Warn("optimistic container creation failed, leaving thread scheduled",
			"thread_id", threadID, "kind", gerr.Kind)
		return gerr
	}

	patch := ApplyCreateResult(w.now(), creationID, nil)
	uerr := w.tr.ConditionalUpdate(ctx, t.ID, models.ThreadStatusScheduled, &patch)
	switch {
	case uerr == nil:
		return nil
	case errors.Is(uerr, repository.ErrConflict), errors.Is(uerr, repository.ErrNotFound):
		// A tick or a cancel got there first.
		slog.Info("create-now lost the race, skipping", "thread_id", threadID)
		return nil
	default:
		return uerr
	}
}

func (w *CreationWorker) recordFailure(ctx context.Context, t *models.Thread, gerr *gateway.Error) {
	ph := models.PublishHistory{
		UserID:      t.UserID,
		ThreadID:    t.ID,
		AccountID:   t.AccountID,
		Step:        stepCreateContainer,
		ErrorKind:   string(gerr.Kind),
		ErrorDetail: gerr.Detail,
	}
	if _, err := w.ph.Create(ctx, &ph); err != nil {
		slog.Error("saving publish history", "thread_id", t.ID, "error", err)
	}
}
