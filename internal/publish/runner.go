package publish

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	config "github.com/kee711/threads-saas-sub001/configs"
	"github.com/kee711/threads-saas-sub001/internal/gateway"
	"github.com/kee711/threads-saas-sub001/internal/models"
	"github.com/kee711/threads-saas-sub001/internal/repository"
)

// CredentialsSource resolves a connected account id into ready-to-use
// gateway credentials. Failures should be returned as *gateway.Error so the
// thread lands in failed with a useful kind.
type CredentialsSource interface {
	Credentials(ctx context.Context, accountID int64) (gateway.Credentials, error)
}

// TickReport summarizes one tick. Attempted counts threads a remote attempt
// was issued for; Succeeded counts threads whose successful transition was
// persisted; Failed counts threads marked failed. Threads skipped because
// another invocation claimed them first appear in none of the counts beyond
// Attempted.
type TickReport struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`

	mu sync.Mutex
}

func (tr *TickReport) add(attempted, succeeded, failed int) {
	tr.mu.Lock()
	tr.Attempted += attempted
	tr.Succeeded += succeeded
	tr.Failed += failed
	tr.mu.Unlock()
}

// Runner drives every due thread through the publish state machine once per
// tick. Ticks are stateless: all coordination between overlapping
// invocations happens through conditional writes on the thread rows.
type Runner struct {
	tr    repository.ThreadRepository
	ph    repository.PublishHistoryRepository
	creds CredentialsSource
	gw    gateway.ThreadsGateway

	grace       time.Duration
	concurrency int
	now         func() time.Time
}

func NewRunner(
	tr repository.ThreadRepository,
	ph repository.PublishHistoryRepository,
	creds CredentialsSource,
	gw gateway.ThreadsGateway,
	cfg config.Scheduler) *Runner {
	concurrency := cfg.TickConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Runner{
		tr:          tr,
		ph:          ph,
		creds:       creds,
		gw:          gw,
		grace:       cfg.GraceWindow,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// RunTick performs one pass over actionable threads. Ready threads are
// attempted before newly-due scheduled ones so work stuck mid-flight is
// bounded. Each thread is processed independently; one failure never aborts
// the rest of the tick.
func (r *Runner) RunTick(ctx context.Context) *TickReport {
	now := r.now()
	report := &TickReport{}

	// A thread appears at most once per tick; a fresh creation id is never
	// submitted for publish twice within the same invocation.
	seen := make(map[int64]struct{})

	ready, err := r.tr.ListByStatus(ctx, models.ThreadStatusReady, nil)
	if err != nil {
		slog.Error("tick: listing ready threads", "error", err)
		return report
	}

	var publishable []*models.Thread
	for _, t := range ready {
		// Containers need the grace window to settle before publish.
		if t.CreationReadyAt != nil && now.Sub(*t.CreationReadyAt) < r.grace {
			continue
		}
		seen[t.ID] = struct{}{}
		publishable = append(publishable, t)
	}

	r.forEach(publishable, func(t *models.Thread) {
		r.publishReady(ctx, t, report)
	})

	due, err := r.tr.ListByStatus(ctx, models.ThreadStatusScheduled, &now)
	if err != nil {
		slog.Error("tick: listing due threads", "error", err)
		return report
	}

	var creatable []*models.Thread
	for _, t := range due {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		creatable = append(creatable, t)
	}

	r.forEach(creatable, func(t *models.Thread) {
		r.createDue(ctx, t, now, report)
	})

	slog.Info("publish tick finished",
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", report.Failed)
	return report
}

// publishReady confirms one container that already passed the grace window.
func (r *Runner) publishReady(ctx context.Context, t *models.Thread, report *TickReport) {
	if PlanAction(t, r.now()) != ActionPublish {
		return
	}

	report.add(1, 0, 0)

	creds, err := r.creds.Credentials(ctx, t.AccountID)
	var remoteMediaID string
	if err == nil {
		remoteMediaID, err = r.gw.PublishContainer(ctx, creds, t.CreationID)
	}

	gerr := gateway.AsError(err)
	patch := ApplyPublishResult(remoteMediaID, gerr)

	uerr := r.tr.ConditionalUpdate(ctx, t.ID, models.ThreadStatusReady, &patch)
	if r.skippable(uerr, t.ID) {
		return
	}

	r.recordHistory(ctx, t, stepPublishContainer, gerr)
	if gerr != nil {
		report.add(0, 0, 1)
		slog.Warn("publish failed", "thread_id", t.ID, "kind", gerr.Kind)
		return
	}
	report.add(0, 1, 0)
}

// createDue starts a newly-due scheduled thread: container creation, and for
// text-only threads the immediate publish confirmation as well.
func (r *Runner) createDue(ctx context.Context, t *models.Thread, now time.Time, report *TickReport) {
	action := PlanAction(t, now)
	if action != ActionCreate && action != ActionCreateAndPublish {
		return
	}

	report.add(1, 0, 0)

	creds, err := r.creds.Credentials(ctx, t.AccountID)
	var creationID string
	if err == nil {
		creationID, err = r.gw.CreateContainer(ctx, creds, t.Body, t.MediaURLs)
	}

	gerr := gateway.AsError(err)
	patch := ApplyCreateResult(now, creationID, gerr)

	uerr := r.tr.ConditionalUpdate(ctx, t.ID, models.ThreadStatusScheduled, &patch)
	if r.skippable(uerr, t.ID) {
		return
	}

	r.recordHistory(ctx, t, stepCreateContainer, gerr)
	if gerr != nil {
		report.add(0, 0, 1)
		slog.Warn("container creation failed", "thread_id", t.ID, "kind", gerr.Kind)
		return
	}

	if action == ActionCreate {
		// Media thread: publish happens on a later tick, after the grace
		// window.
		report.add(0, 1, 0)
		return
	}

	// Text-only: no asset processing to wait for, publish immediately.
	remoteMediaID, perr := r.gw.PublishContainer(ctx, creds, creationID)
	pgerr := gateway.AsError(perr)
	ppatch := ApplyPublishResult(remoteMediaID, pgerr)

	uerr = r.tr.ConditionalUpdate(ctx, t.ID, models.ThreadStatusReady, &ppatch)
	if r.skippable(uerr, t.ID) {
		return
	}

	r.recordHistory(ctx, t, stepPublishContainer, pgerr)
	if pgerr != nil {
		report.add(0, 0, 1)
		slog.Warn("publish failed", "thread_id", t.ID, "kind", pgerr.Kind)
		return
	}
	report.add(0, 1, 0)
}

// skippable handles the conditional-write outcomes that end this thread's
// processing without counting it as a failure: a concurrent claim or a row
// deleted mid-tick.
func (r *Runner) skippable(uerr error, threadID int64) bool {
	switch {
	case uerr == nil:
		return false
	case errors.Is(uerr, repository.ErrConflict):
		slog.Info("thread claimed by another invocation, skipping", "thread_id", threadID)
		return true
	case errors.Is(uerr, repository.ErrNotFound):
		slog.Info("thread removed mid-tick, skipping", "thread_id", threadID)
		return true
	default:
		slog.Error("persisting thread transition", "thread_id", threadID, "error", uerr)
		return true
	}
}

const (
	stepCreateContainer  = "create_container"
	stepPublishContainer = "publish_container"
)

func (r *Runner) recordHistory(ctx context.Context, t *models.Thread, step string, gerr *gateway.Error) {
	ph := models.PublishHistory{
		UserID:    t.UserID,
		ThreadID:  t.ID,
		AccountID: t.AccountID,
		Step:      step,
	}
	if gerr != nil {
		ph.ErrorKind = string(gerr.Kind)
		ph.ErrorDetail = gerr.Detail
	}
	if _, err := r.ph.Create(ctx, &ph); err != nil {
		slog.Error("saving publish history", "thread_id", t.ID, "error", err)
	}
}

// forEach runs fn over threads with bounded concurrency. Threads are
// independent; nothing is ordered across them.
func (r *Runner) forEach(threads []*models.Thread, fn func(*models.Thread)) {
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, r.concurrency)

	for _, t := range threads {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(t *models.Thread) {
			defer wg.Done()
			defer func() { <-semaphore }()
			fn(t)
		}(t)
	}

	wg.Wait()
}
