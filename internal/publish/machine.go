package publish

import (
	"time"

	"github.com/kee711/threads-saas-sub001/internal/gateway"
	"github.com/kee711/threads-saas-sub001/internal/models"
	"github.com/kee711/threads-saas-sub001/internal/repository"
)

// Action is the next remote step for one thread. Pure decision logic lives in
// this file; the runner owns scheduling policy (grace window, concurrency)
// and all I/O.
type Action int

const (
	ActionNone Action = iota
	// ActionCreate creates the media container; publish waits for a later
	// tick so remote asset processing can settle.
	ActionCreate
	// ActionCreateAndPublish is the text-only degenerate path: no asset
	// processing to wait out, so both calls happen back to back.
	ActionCreateAndPublish
	ActionPublish
)

// PlanAction decides what a tick should do with t at instant now.
func PlanAction(t *models.Thread, now time.Time) Action {
	switch t.Status {
	case models.ThreadStatusScheduled:
		if t.ScheduledAt == nil || now.Before(*t.ScheduledAt) {
			return ActionNone
		}
		if len(t.MediaURLs) == 0 {
			return ActionCreateAndPublish
		}
		return ActionCreate
	case models.ThreadStatusReady:
		if t.CreationID == "" {
			// Broken row; never publish without a container.
			return ActionNone
		}
		return ActionPublish
	default:
		// draft, posted and failed threads are never touched automatically.
		return ActionNone
	}
}

// ApplyCreateResult maps a createContainer outcome to the fields to persist.
func ApplyCreateResult(now time.Time, creationID string, gerr *gateway.Error) repository.ThreadPatch {
	if gerr != nil {
		return failPatch(gerr)
	}

	status := models.ThreadStatusReady
	readyAt := now
	return repository.ThreadPatch{
		Status:          &status,
		CreationID:      &creationID,
		CreationReadyAt: &readyAt,
	}
}

// ApplyPublishResult maps a publishContainer outcome to the fields to persist.
func ApplyPublishResult(remoteMediaID string, gerr *gateway.Error) repository.ThreadPatch {
	if gerr != nil {
		return failPatch(gerr)
	}

	status := models.ThreadStatusPosted
	return repository.ThreadPatch{
		Status:        &status,
		RemoteMediaID: &remoteMediaID,
	}
}

// Any gateway failure is terminal for automatic processing; recovery is an
// explicit user reschedule.
func failPatch(gerr *gateway.Error) repository.ThreadPatch {
	status := models.ThreadStatusFailed
	kind := string(gerr.Kind)
	detail := gerr.Detail
	return repository.ThreadPatch{
		Status:      &status,
		ErrorKind:   &kind,
		ErrorDetail: &detail,
	}
}
