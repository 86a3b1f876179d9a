package publish

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kee711/threads-saas-sub001/internal/gateway"
	"github.com/kee711/threads-saas-sub001/internal/models"
)

func TestPlanActionScheduled(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name   string
		thread *models.Thread
		want   Action
	}{
		{
			name: "due text-only thread publishes in one pass",
			thread: &models.Thread{
				Status:      models.ThreadStatusScheduled,
				ScheduledAt: &past,
			},
			want: ActionCreateAndPublish,
		},
		{
			name: "due media thread only creates the container",
			thread: &models.Thread{
				Status:      models.ThreadStatusScheduled,
				ScheduledAt: &past,
				MediaURLs:   []string{"https://cdn.example.com/a.jpg"},
			},
			want: ActionCreate,
		},
		{
			name: "not yet due",
			thread: &models.Thread{
				Status:      models.ThreadStatusScheduled,
				ScheduledAt: &future,
			},
			want: ActionNone,
		},
		{
			name: "scheduled without a time is never picked up",
			thread: &models.Thread{
				Status: models.ThreadStatusScheduled,
			},
			want: ActionNone,
		},
		{
			name: "due exactly at now",
			thread: &models.Thread{
				Status:      models.ThreadStatusScheduled,
				ScheduledAt: &now,
			},
			want: ActionCreateAndPublish,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlanAction(tt.thread, now))
		})
	}
}

func TestPlanActionReady(t *testing.T) {
	now := time.Now()

	withID := &models.Thread{Status: models.ThreadStatusReady, CreationID: "c-1"}
	assert.Equal(t, ActionPublish, PlanAction(withID, now))

	withoutID := &models.Thread{Status: models.ThreadStatusReady}
	assert.Equal(t, ActionNone, PlanAction(withoutID, now))
}

func TestPlanActionTerminalStatuses(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	for _, status := range []string{
		models.ThreadStatusDraft,
		models.ThreadStatusPosted,
		models.ThreadStatusFailed,
	} {
		thread := &models.Thread{Status: status, ScheduledAt: &past}
		assert.Equal(t, ActionNone, PlanAction(thread, now), "status %s", status)
	}
}

func TestApplyCreateResult(t *testing.T) {
	now := time.Now()

	patch := ApplyCreateResult(now, "creation-123", nil)
	assert.Equal(t, models.ThreadStatusReady, *patch.Status)
	assert.Equal(t, "creation-123", *patch.CreationID)
	assert.Equal(t, now, *patch.CreationReadyAt)
	assert.Nil(t, patch.ErrorKind)

	gerr := &gateway.Error{Kind: gateway.KindTransient, Detail: "connection reset"}
	patch = ApplyCreateResult(now, "", gerr)
	assert.Equal(t, models.ThreadStatusFailed, *patch.Status)
	assert.Equal(t, "transient", *patch.ErrorKind)
	assert.Equal(t, "connection reset", *patch.ErrorDetail)
	assert.Nil(t, patch.CreationID)
}

func TestApplyPublishResult(t *testing.T) {
	patch := ApplyPublishResult("media-9", nil)
	assert.Equal(t, models.ThreadStatusPosted, *patch.Status)
	assert.Equal(t, "media-9", *patch.RemoteMediaID)
	assert.Nil(t, patch.ErrorKind)

	gerr := &gateway.Error{Kind: gateway.KindAuthExpired, Detail: "token expired"}
	patch = ApplyPublishResult("", gerr)
	assert.Equal(t, models.ThreadStatusFailed, *patch.Status)
	assert.Equal(t, "auth_expired", *patch.ErrorKind)
	assert.Nil(t, patch.RemoteMediaID)
}
