package publish

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/kee711/threads-saas-sub001/configs"
	"github.com/kee711/threads-saas-sub001/internal/gateway"
	"github.com/kee711/threads-saas-sub001/internal/models"
	"github.com/kee711/threads-saas-sub001/internal/repository"
)

// fakeThreadRepo mirrors the conditional-write semantics of the Postgres
// repository: an update only lands when the row still has the expected status.
type fakeThreadRepo struct {
	mu      sync.Mutex
	threads map[int64]*models.Thread
}

func newFakeThreadRepo(threads ...*models.Thread) *fakeThreadRepo {
	r := &fakeThreadRepo{threads: make(map[int64]*models.Thread)}
	for _, t := range threads {
		r.threads[t.ID] = t
	}
	return r
}

func (r *fakeThreadRepo) Create(ctx context.Context, tx *sql.Tx, t *models.Thread) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads[t.ID] = t
	return t.ID, nil
}

func (r *fakeThreadRepo) GetByID(ctx context.Context, id int64) (*models.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *fakeThreadRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.Thread, error) {
	return nil, nil
}

func (r *fakeThreadRepo) ListByStatus(ctx context.Context, status string, dueBefore *time.Time) ([]*models.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Thread
	for _, t := range r.threads {
		if t.Status != status {
			continue
		}
		if dueBefore != nil && (t.ScheduledAt == nil || t.ScheduledAt.After(*dueBefore)) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeThreadRepo) ConditionalUpdate(ctx context.Context, id int64, expectedStatus string, patch *repository.ThreadPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok {
		return repository.ErrNotFound
	}
	if t.Status != expectedStatus {
		return repository.ErrConflict
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Body != nil {
		t.Body = *patch.Body
	}
	if patch.ScheduledAt != nil {
		t.ScheduledAt = patch.ScheduledAt
	}
	if patch.ClearScheduledAt {
		t.ScheduledAt = nil
	}
	if patch.CreationID != nil {
		t.CreationID = *patch.CreationID
	}
	if patch.CreationReadyAt != nil {
		t.CreationReadyAt = patch.CreationReadyAt
	}
	if patch.RemoteMediaID != nil {
		t.RemoteMediaID = *patch.RemoteMediaID
	}
	if patch.ErrorKind != nil {
		t.ErrorKind = *patch.ErrorKind
	}
	if patch.ErrorDetail != nil {
		t.ErrorDetail = *patch.ErrorDetail
	}
	if patch.ClearError {
		t.ErrorKind = ""
		t.ErrorDetail = ""
		t.CreationID = ""
		t.CreationReadyAt = nil
	}
	return nil
}

func (r *fakeThreadRepo) CheckByUserID(ctx context.Context, threadID, userID int64) (bool, error) {
	return true, nil
}

func (r *fakeThreadRepo) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.threads, id)
	return nil
}

func (r *fakeThreadRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeThreadRepo) get(id int64) *models.Thread {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.threads[id]
	return &cp
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*models.PublishHistory
}

func (r *fakeHistoryRepo) Create(ctx context.Context, ph *models.PublishHistory) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, ph)
	return int64(len(r.entries)), nil
}

func (r *fakeHistoryRepo) ListByThreadID(ctx context.Context, threadID int64) ([]*models.PublishHistory, error) {
	return nil, nil
}

func (r *fakeHistoryRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.PublishHistory, error) {
	return nil, nil
}

func (r *fakeHistoryRepo) byStep(step string) []*models.PublishHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PublishHistory
	for _, e := range r.entries {
		if e.Step == step {
			out = append(out, e)
		}
	}
	return out
}

type fakeCreds struct {
	err error
}

func (f *fakeCreds) Credentials(ctx context.Context, accountID int64) (gateway.Credentials, error) {
	if f.err != nil {
		return gateway.Credentials{}, f.err
	}
	return gateway.Credentials{ThreadsUserID: "tu-1", AccessToken: "token"}, nil
}

// fakeGateway returns programmed results and can run a hook before answering,
// which lets tests interleave a competing invocation mid-call.
type fakeGateway struct {
	mu sync.Mutex

	creationID string
	createErr  error
	mediaID    string
	publishErr error

	beforeCreate  func()
	beforePublish func()

	createCalls  int
	publishCalls int
}

func (g *fakeGateway) CreateContainer(ctx context.Context, creds gateway.Credentials, body string, mediaURLs []string) (string, error) {
	g.mu.Lock()
	g.createCalls++
	hook := g.beforeCreate
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	if g.createErr != nil {
		return "", g.createErr
	}
	return g.creationID, nil
}

func (g *fakeGateway) PublishContainer(ctx context.Context, creds gateway.Credentials, creationID string) (string, error) {
	g.mu.Lock()
	g.publishCalls++
	hook := g.beforePublish
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	if g.publishErr != nil {
		return "", g.publishErr
	}
	return g.mediaID, nil
}

func newTestRunner(tr repository.ThreadRepository, ph repository.PublishHistoryRepository, gw gateway.ThreadsGateway, now time.Time) *Runner {
	r := NewRunner(tr, ph, &fakeCreds{}, gw, config.Scheduler{
		GraceWindow:     30 * time.Second,
		TickConcurrency: 4,
	})
	r.now = func() time.Time { return now }
	return r
}

func TestRunTickTextOnlyPublishesInOnePass(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Minute)

	repo := newFakeThreadRepo(&models.Thread{
		ID:          1,
		UserID:      10,
		AccountID:   20,
		Body:        "hello threads",
		Status:      models.ThreadStatusScheduled,
		ScheduledAt: &due,
	})
	history := &fakeHistoryRepo{}
	gw := &fakeGateway{creationID: "c-1", mediaID: "m-1"}

	report := newTestRunner(repo, history, gw, now).RunTick(context.Background())

	got := repo.get(1)
	assert.Equal(t, models.ThreadStatusPosted, got.Status)
	assert.Equal(t, "c-1", got.CreationID)
	assert.Equal(t, "m-1", got.RemoteMediaID)

	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 0, report.Failed)

	require.Len(t, history.byStep(stepCreateContainer), 1)
	require.Len(t, history.byStep(stepPublishContainer), 1)
	assert.Empty(t, history.byStep(stepCreateContainer)[0].ErrorKind)
}

func TestRunTickMediaThreadWaitsForGrace(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	due := start.Add(-time.Minute)

	repo := newFakeThreadRepo(&models.Thread{
		ID:          1,
		AccountID:   20,
		Body:        "with picture",
		Status:      models.ThreadStatusScheduled,
		ScheduledAt: &due,
		MediaURLs:   []string{"https://cdn.example.com/a.jpg"},
	})
	history := &fakeHistoryRepo{}
	gw := &fakeGateway{creationID: "c-1", mediaID: "m-1"}

	// First tick: container created, publish deferred.
	report := newTestRunner(repo, history, gw, start).RunTick(context.Background())
	got := repo.get(1)
	assert.Equal(t, models.ThreadStatusReady, got.Status)
	assert.Equal(t, "c-1", got.CreationID)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 0, gw.publishCalls)

	// Second tick inside the grace window: nothing happens.
	report = newTestRunner(repo, history, gw, start.Add(10*time.Second)).RunTick(context.Background())
	assert.Equal(t, 0, report.Attempted)
	assert.Equal(t, models.ThreadStatusReady, repo.get(1).Status)
	assert.Equal(t, 0, gw.publishCalls)

	// Third tick after the grace window: published.
	report = newTestRunner(repo, history, gw, start.Add(time.Minute)).RunTick(context.Background())
	got = repo.get(1)
	assert.Equal(t, models.ThreadStatusPosted, got.Status)
	assert.Equal(t, "m-1", got.RemoteMediaID)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, gw.publishCalls)
}

func TestRunTickCreateFailureMarksFailed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Minute)

	repo := newFakeThreadRepo(&models.Thread{
		ID:          1,
		AccountID:   20,
		Body:        "rejected",
		Status:      models.ThreadStatusScheduled,
		ScheduledAt: &due,
	})
	history := &fakeHistoryRepo{}
	gw := &fakeGateway{createErr: &gateway.Error{Kind: gateway.KindAuthExpired, Detail: "token revoked"}}

	report := newTestRunner(repo, history, gw, now).RunTick(context.Background())

	got := repo.get(1)
	assert.Equal(t, models.ThreadStatusFailed, got.Status)
	assert.Equal(t, "auth_expired", got.ErrorKind)
	assert.Equal(t, "token revoked", got.ErrorDetail)

	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	entries := history.byStep(stepCreateContainer)
	require.Len(t, entries, 1)
	assert.Equal(t, "auth_expired", entries[0].ErrorKind)
}

func TestRunTickPublishFailureMarksFailed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	readyAt := now.Add(-time.Minute)

	repo := newFakeThreadRepo(&models.Thread{
		ID:              1,
		AccountID:       20,
		Status:          models.ThreadStatusReady,
		CreationID:      "c-1",
		CreationReadyAt: &readyAt,
	})
	history := &fakeHistoryRepo{}
	gw := &fakeGateway{publishErr: &gateway.Error{Kind: gateway.KindRemoteRejected, Detail: "container expired"}}

	report := newTestRunner(repo, history, gw, now).RunTick(context.Background())

	got := repo.get(1)
	assert.Equal(t, models.ThreadStatusFailed, got.Status)
	assert.Equal(t, "remote_rejected", got.ErrorKind)
	assert.Equal(t, 1, report.Failed)
}

func TestRunTickConcurrentClaimIsSkipped(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Minute)

	repo := newFakeThreadRepo(&models.Thread{
		ID:          1,
		AccountID:   20,
		Body:        "contested",
		Status:      models.ThreadStatusScheduled,
		ScheduledAt: &due,
		MediaURLs:   []string{"https://cdn.example.com/a.jpg"},
	})
	history := &fakeHistoryRepo{}

	// While the gateway call is in flight, a competing invocation claims the
	// thread. The conditional write must lose and the thread must not be
	// double-processed or marked failed.
	gw := &fakeGateway{creationID: "c-other"}
	gw.beforeCreate = func() {
		status := models.ThreadStatusReady
		creationID := "c-winner"
		repo.ConditionalUpdate(context.Background(), 1, models.ThreadStatusScheduled, &repository.ThreadPatch{
			Status:     &status,
			CreationID: &creationID,
		})
	}

	report := newTestRunner(repo, history, gw, now).RunTick(context.Background())

	got := repo.get(1)
	assert.Equal(t, models.ThreadStatusReady, got.Status)
	assert.Equal(t, "c-winner", got.CreationID)

	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Empty(t, history.entries)
}

func TestRunTickPublishClaimedConcurrentlyIsSkipped(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	readyAt := now.Add(-time.Minute)

	repo := newFakeThreadRepo(&models.Thread{
		ID:              1,
		AccountID:       20,
		Status:          models.ThreadStatusReady,
		CreationID:      "c-1",
		CreationReadyAt: &readyAt,
	})
	history := &fakeHistoryRepo{}

	// While this tick's publish call is in flight, a competing invocation
	// confirms the container first. The losing conditional write must leave
	// the winner's result untouched.
	gw := &fakeGateway{mediaID: "m-loser"}
	gw.beforePublish = func() {
		status := models.ThreadStatusPosted
		mediaID := "m-winner"
		repo.ConditionalUpdate(context.Background(), 1, models.ThreadStatusReady, &repository.ThreadPatch{
			Status:        &status,
			RemoteMediaID: &mediaID,
		})
	}

	report := newTestRunner(repo, history, gw, now).RunTick(context.Background())

	got := repo.get(1)
	assert.Equal(t, models.ThreadStatusPosted, got.Status)
	assert.Equal(t, "m-winner", got.RemoteMediaID)

	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Empty(t, history.entries)
}

func TestRunTickThreadRemovedMidTick(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Minute)

	repo := newFakeThreadRepo(&models.Thread{
		ID:          1,
		AccountID:   20,
		Body:        "going away",
		Status:      models.ThreadStatusScheduled,
		ScheduledAt: &due,
	})
	history := &fakeHistoryRepo{}
	gw := &fakeGateway{creationID: "c-1", mediaID: "m-1"}
	gw.beforeCreate = func() {
		repo.Remove(context.Background(), 1)
	}

	report := newTestRunner(repo, history, gw, now).RunTick(context.Background())

	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
}

func TestRunTickNothingDue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)

	repo := newFakeThreadRepo(
		&models.Thread{ID: 1, Status: models.ThreadStatusDraft},
		&models.Thread{ID: 2, Status: models.ThreadStatusScheduled, ScheduledAt: &future},
		&models.Thread{ID: 3, Status: models.ThreadStatusPosted},
		&models.Thread{ID: 4, Status: models.ThreadStatusFailed},
	)
	history := &fakeHistoryRepo{}
	gw := &fakeGateway{}

	report := newTestRunner(repo, history, gw, now).RunTick(context.Background())

	assert.Equal(t, 0, report.Attempted)
	assert.Equal(t, 0, gw.createCalls)
	assert.Equal(t, 0, gw.publishCalls)
	for id, status := range map[int64]string{
		1: models.ThreadStatusDraft,
		2: models.ThreadStatusScheduled,
		3: models.ThreadStatusPosted,
		4: models.ThreadStatusFailed,
	} {
		assert.Equal(t, status, repo.get(id).Status)
	}
}

func TestRunTickCredentialFailureMarksFailed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Minute)

	repo := newFakeThreadRepo(&models.Thread{
		ID:          1,
		AccountID:   20,
		Body:        "no account",
		Status:      models.ThreadStatusScheduled,
		ScheduledAt: &due,
	})
	history := &fakeHistoryRepo{}
	gw := &fakeGateway{creationID: "c-1"}

	r := NewRunner(repo, history, &fakeCreds{err: &gateway.Error{Kind: gateway.KindAuthExpired, Detail: "account disconnected"}}, gw, config.Scheduler{})
	r.now = func() time.Time { return now }

	report := r.RunTick(context.Background())

	got := repo.get(1)
	assert.Equal(t, models.ThreadStatusFailed, got.Status)
	assert.Equal(t, "auth_expired", got.ErrorKind)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, gw.createCalls)
}
