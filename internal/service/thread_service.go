package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kee711/threads-saas-sub001/internal/models"
	"github.com/kee711/threads-saas-sub001/internal/repository"
	"github.com/kee711/threads-saas-sub001/internal/transfer"
)

var (
	// ErrInvalidState is returned when an operation does not apply to the
	// thread's current status, e.g. cancelling a thread that already
	// published.
	ErrInvalidState = errors.New("thread is not in a state that allows this operation")
)

type ThreadService interface {
	CreateThread(ctx context.Context, userID int64, tc *transfer.ThreadCreation) (int64, error)
	List(ctx context.Context, userID int64) ([]*models.Thread, error)
	ThreadInfo(ctx context.Context, threadID, userID int64) (*models.Thread, error)
	UpdateBody(ctx context.Context, userID, threadID int64, body string) error
	Schedule(ctx context.Context, userID, threadID int64, scheduledAt time.Time) error
	Cancel(ctx context.Context, userID, threadID int64) error
	Remove(ctx context.Context, userID, threadID int64) error
	History(ctx context.Context, userID, threadID int64) ([]*models.PublishHistory, error)
}

type threadService struct {
	db *sql.DB
	tr repository.ThreadRepository
	tm repository.ThreadMediaRepository
	ta repository.ThreadsAccountRepository
	ph repository.PublishHistoryRepository
}

func NewThreadService(
	db *sql.DB,
	tr repository.ThreadRepository,
	tm repository.ThreadMediaRepository,
	ta repository.ThreadsAccountRepository,
	ph repository.PublishHistoryRepository) ThreadService {
	return &threadService{
		db: db,
		tr: tr,
		tm: tm,
		ta: ta,
		ph: ph,
	}
}

func (s *threadService) CreateThread(ctx context.Context, userID int64, tc *transfer.ThreadCreation) (int64, error) {
	if tc == nil {
		err := errors.New("thread creation data is nil")
		slog.Error(err.Error())
		return 0, err
	}
	if tc.Body == "" && len(tc.MediaURLs) == 0 {
		err := errors.New("thread needs a body or media")
		slog.Info(err.Error())
		return 0, err
	}

	exists, err := s.ta.CheckByUserID(ctx, tc.AccountID, userID)
	if err != nil {
		return 0, fmt.Errorf("error checking account %d: %w", tc.AccountID, err)
	}
	if !exists {
		return 0, fmt.Errorf("account %d does not exist", tc.AccountID)
	}

	thread := models.Thread{
		UserID:    userID,
		AccountID: tc.AccountID,
		Body:      tc.Body,
		Status:    models.ThreadStatusDraft,
	}

	if tc.ScheduledAt != "" {
		scheduledAt, err := time.Parse("2006-01-02T15:04", tc.ScheduledAt)
		if err != nil {
			err = fmt.Errorf("invalid scheduled time format: %w", err)
			slog.Error(err.Error())
			return 0, err
		}
		thread.Status = models.ThreadStatusScheduled
		thread.ScheduledAt = &scheduledAt
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	threadID, err := s.tr.Create(ctx, tx, &thread)
	if err != nil {
		return 0, fmt.Errorf("error creating thread: %w", err)
	}

	for i, mediaURL := range tc.MediaURLs {
		tm := models.ThreadMedia{
			ThreadID:     threadID,
			MediaURL:     mediaURL,
			DisplayOrder: i,
		}
		if err = s.tm.Create(ctx, tx, &tm); err != nil {
			return 0, fmt.Errorf("error saving thread media: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return threadID, nil
}

func (s *threadService) List(ctx context.Context, userID int64) ([]*models.Thread, error) {
	threads, err := s.tr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Error getting threads")
	}
	return threads, nil
}

func (s *threadService) ThreadInfo(ctx context.Context, threadID, userID int64) (*models.Thread, error) {
	if err := s.checkOwnership(ctx, userID, threadID); err != nil {
		return nil, err
	}

	thread, err := s.tr.GetByID(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("Error getting thread info")
	}

	return thread, nil
}

// UpdateBody edits the text payload. Allowed only while the thread has not
// entered the publish pipeline.
func (s *threadService) UpdateBody(ctx context.Context, userID, threadID int64, body string) error {
	if body == "" {
		err := errors.New("body cannot be empty")
		slog.Info(err.Error())
		return err
	}
	if err := s.checkOwnership(ctx, userID, threadID); err != nil {
		return err
	}

	thread, err := s.tr.GetByID(ctx, threadID)
	if err != nil || thread == nil {
		return fmt.Errorf("Error getting thread info")
	}
	if thread.Status != models.ThreadStatusDraft && thread.Status != models.ThreadStatusScheduled {
		return ErrInvalidState
	}

	patch := repository.ThreadPatch{Body: &body}
	uerr := s.tr.ConditionalUpdate(ctx, threadID, thread.Status, &patch)
	if errors.Is(uerr, repository.ErrConflict) {
		return ErrInvalidState
	}
	return uerr
}

// Schedule attaches a publish time. Valid from draft, and from failed as the
// explicit user retry: rescheduling clears the previous error and container.
func (s *threadService) Schedule(ctx context.Context, userID, threadID int64, scheduledAt time.Time) error {
	if err := s.checkOwnership(ctx, userID, threadID); err != nil {
		return err
	}

	thread, err := s.tr.GetByID(ctx, threadID)
	if err != nil || thread == nil {
		return fmt.Errorf("Error getting thread info")
	}
	if thread.Status != models.ThreadStatusDraft && thread.Status != models.ThreadStatusFailed {
		return ErrInvalidState
	}

	status := models.ThreadStatusScheduled
	patch := repository.ThreadPatch{
		Status:      &status,
		ScheduledAt: &scheduledAt,
		ClearError:  true,
	}

	uerr := s.tr.ConditionalUpdate(ctx, threadID, thread.Status, &patch)
	if errors.Is(uerr, repository.ErrConflict) {
		return ErrInvalidState
	}
	return uerr
}

// Cancel reverts a scheduled thread to draft. If a tick claims the thread
// first, the conditional write loses and the caller gets ErrInvalidState.
func (s *threadService) Cancel(ctx context.Context, userID, threadID int64) error {
	if err := s.checkOwnership(ctx, userID, threadID); err != nil {
		return err
	}

	status := models.ThreadStatusDraft
	patch := repository.ThreadPatch{
		Status:           &status,
		ClearScheduledAt: true,
	}

	uerr := s.tr.ConditionalUpdate(ctx, threadID, models.ThreadStatusScheduled, &patch)
	if errors.Is(uerr, repository.ErrConflict) {
		return ErrInvalidState
	}
	return uerr
}

func (s *threadService) Remove(ctx context.Context, userID, threadID int64) error {
	if err := s.checkOwnership(ctx, userID, threadID); err != nil {
		return err
	}

	if err := s.tm.RemoveByThreadID(ctx, nil, threadID); err != nil {
		return fmt.Errorf("Error removing thread media")
	}
	if err := s.tr.Remove(ctx, threadID); err != nil {
		return fmt.Errorf("Error removing thread")
	}

	return nil
}

func (s *threadService) History(ctx context.Context, userID, threadID int64) ([]*models.PublishHistory, error) {
	if err := s.checkOwnership(ctx, userID, threadID); err != nil {
		return nil, err
	}
	return s.ph.ListByThreadID(ctx, threadID)
}

func (s *threadService) checkOwnership(ctx context.Context, userID, threadID int64) error {
	var err error

	if userID == 0 {
		err = errors.New("User is not valid")
		slog.Info(err.Error())
		return err
	}

	if threadID == 0 {
		err = errors.New("thread id is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.tr.CheckByUserID(ctx, threadID, userID)
	if err != nil {
		return err
	}

	if !isValid {
		err = errors.New("Thread doesn't exist")
		slog.Info(err.Error())
		return err
	}

	return nil
}
