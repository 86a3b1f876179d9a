package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/kee711/threads-saas-sub001/internal/repository"
)

// CleanupJob bounds store growth by deleting posted threads older than the
// retention window. Failed threads are intentionally kept so users can
// inspect the error and reschedule.
type CleanupJob struct {
	tr        repository.ThreadRepository
	retention time.Duration
}

func NewCleanupJob(tr repository.ThreadRepository, retention time.Duration) *CleanupJob {
	return &CleanupJob{tr: tr, retention: retention}
}

func (c *CleanupJob) Run() {
	ctx := context.Background()

	cutoff := time.Now().Add(-c.retention)
	deleted, err := c.tr.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		slog.Error("cleanup: deleting posted threads", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("cleanup removed posted threads", "count", deleted)
	}
}
