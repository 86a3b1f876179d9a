package publish

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kee711/threads-saas-sub001/internal/gateway"
	"github.com/kee711/threads-saas-sub001/internal/models"
	"github.com/kee711/threads-saas-sub001/internal/repository"
)

func newTestWorker(tr repository.ThreadRepository, ph repository.PublishHistoryRepository, gw gateway.ThreadsGateway) *CreationWorker {
	return NewCreationWorker(tr, ph, &fakeCreds{}, gw)
}

func TestCreateNowMovesThreadToReady(t *testing.T) {
	scheduledAt := time.Now().Add(time.Hour)
	repo := newFakeThreadRepo(&models.Thread{
		ID:          1,
		AccountID:   20,
		Body:        "early bird",
		Status:      models.ThreadStatusScheduled,
		ScheduledAt: &scheduledAt,
	})
	history := &fakeHistoryRepo{}
	gw := &fakeGateway{creationID: "c-early"}

	err := newTestWorker(repo, history, gw).CreateNow(context.Background(), 1)
	require.NoError(t, err)

	got := repo.get(1)
	assert.Equal(t, models.ThreadStatusReady, got.Status)
	assert.Equal(t, "c-early", got.CreationID)
	require.NotNil(t, got.CreationReadyAt)
	// Publish is never part of the optimistic path.
	assert.Equal(t, 0, gw.publishCalls)
	assert.Empty(t, history.entries)
}

func TestCreateNowFailureLeavesThreadScheduled(t *testing.T) {
	scheduledAt := time.Now().Add(time.Hour)
	repo := newFakeThreadRepo(&models.Thread{
		ID:          1,
		AccountID:   20,
		Body:        "flaky remote",
		Status:      models.ThreadStatusScheduled,
		ScheduledAt: &scheduledAt,
	})
	history := &fakeHistoryRepo{}
	gw := &fakeGateway{createErr: &gateway.Error{Kind: gateway.KindTransient, Detail: "remote status 503"}}

	err := newTestWorker(repo, history, gw).CreateNow(context.Background(), 1)

	var gerr *gateway.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, gateway.KindTransient, gerr.Kind)

	got := repo.get(1)
	assert.Equal(t, models.ThreadStatusScheduled, got.Status)
	assert.Empty(t, got.CreationID)
	assert.Empty(t, got.ErrorKind)

	entries := history.byStep(stepCreateContainer)
	require.Len(t, entries, 1)
	assert.Equal(t, "transient", entries[0].ErrorKind)
}

func TestCreateNowSkipsNonScheduledThread(t *testing.T) {
	repo := newFakeThreadRepo(&models.Thread{
		ID:     1,
		Status: models.ThreadStatusDraft,
	})
	history := &fakeHistoryRepo{}
	gw := &fakeGateway{creationID: "c-1"}

	err := newTestWorker(repo, history, gw).CreateNow(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 0, gw.createCalls)
	assert.Equal(t, models.ThreadStatusDraft, repo.get(1).Status)
}

func TestCreateNowMissingThread(t *testing.T) {
	repo := newFakeThreadRepo()
	history := &fakeHistoryRepo{}
	gw := &fakeGateway{}

	err := newTestWorker(repo, history, gw).CreateNow(context.Background(), 42)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateNowLosesRaceSilently(t *testing.T) {
	scheduledAt := time.Now().Add(time.Hour)
	repo := newFakeThreadRepo(&models.Thread{
		ID:          1,
		AccountID:   20,
		Body:        "contested",
		Status:      models.ThreadStatusScheduled,
		ScheduledAt: &scheduledAt,
	})
	history := &fakeHistoryRepo{}

	// The user cancels while the container call is in flight; the conditional
	// write loses and the cancellation wins.
	gw := &fakeGateway{creationID: "c-late"}
	gw.beforeCreate = func() {
		status := models.ThreadStatusDraft
		repo.ConditionalUpdate(context.Background(), 1, models.ThreadStatusScheduled, &repository.ThreadPatch{
			Status:           &status,
			ClearScheduledAt: true,
		})
	}

	err := newTestWorker(repo, history, gw).CreateNow(context.Background(), 1)
	require.NoError(t, err)

	got := repo.get(1)
	assert.Equal(t, models.ThreadStatusDraft, got.Status)
	assert.Empty(t, got.CreationID)
}
