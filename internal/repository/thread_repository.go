package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kee711/threads-saas-sub001/internal/models"
)

var (
	// ErrNotFound means the thread vanished between selection and update.
	ErrNotFound = errors.New("thread not found")
	// ErrConflict means the row's status no longer matches the expected
	// status; another invocation already claimed the thread.
	ErrConflict = errors.New("thread status changed concurrently")
)

// ThreadPatch lists the columns a conditional update may set. Nil pointer
// fields are left untouched; the Clear flags write explicit NULLs.
type ThreadPatch struct {
	Status           *string
	Body             *string
	ScheduledAt      *time.Time
	ClearScheduledAt bool
	CreationID       *string
	CreationReadyAt  *time.Time
	RemoteMediaID    *string
	ErrorKind        *string
	ErrorDetail      *string
	ClearError       bool
}

type ThreadRepository interface {
	Create(ctx context.Context, tx *sql.Tx, t *models.Thread) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Thread, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Thread, error)
	ListByStatus(ctx context.Context, status string, dueBefore *time.Time) ([]*models.Thread, error)
	ConditionalUpdate(ctx context.Context, id int64, expectedStatus string, patch *ThreadPatch) error
	CheckByUserID(ctx context.Context, threadID, userID int64) (bool, error)
	Remove(ctx context.Context, id int64) error
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type threadRepository struct {
	db *sql.DB
}

func NewThreadRepository(db *sql.DB) ThreadRepository {
	return &threadRepository{db: db}
}

const threadColumns = `id, user_id, account_id, body, status, scheduled_at, creation_id, creation_ready_at, remote_media_id, error_kind, error_detail, created_at, updated_at`

func (r *threadRepository) Create(ctx context.Context, tx *sql.Tx, t *models.Thread) (int64, error) {
	query := `
		INSERT INTO threads (user_id, account_id, body, status, scheduled_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, t.UserID, t.AccountID, t.Body, t.Status, t.ScheduledAt).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, t.UserID, t.AccountID, t.Body, t.Status, t.ScheduledAt).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *threadRepository) GetByID(ctx context.Context, id int64) (*models.Thread, error) {
	query := `SELECT ` + threadColumns + ` FROM threads WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	t, err := scanThread(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	if err := r.loadMediaURLs(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *threadRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Thread, error) {
	query := `SELECT ` + threadColumns + ` FROM threads WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return r.collectThreads(ctx, rows)
}

// ListByStatus returns threads in one status ordered by scheduled_at
// ascending. With dueBefore set, only threads whose scheduled_at has passed
// that instant are returned.
func (r *threadRepository) ListByStatus(ctx context.Context, status string, dueBefore *time.Time) ([]*models.Thread, error) {
	query := `SELECT ` + threadColumns + ` FROM threads WHERE status = $1`
	args := []interface{}{status}

	if dueBefore != nil {
		query += ` AND scheduled_at <= $2`
		args = append(args, *dueBefore)
	}
	query += ` ORDER BY scheduled_at ASC NULLS LAST`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return r.collectThreads(ctx, rows)
}

// ConditionalUpdate applies patch only if the row's current status still
// equals expectedStatus. A lost race surfaces as ErrConflict, a deleted row
// as ErrNotFound.
func (r *threadRepository) ConditionalUpdate(ctx context.Context, id int64, expectedStatus string, patch *ThreadPatch) error {
	sets := []string{}
	args := []interface{}{}
	n := 1

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, n))
		args = append(args, value)
		n++
	}

	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.Body != nil {
		add("body", *patch.Body)
	}
	if patch.ScheduledAt != nil {
		add("scheduled_at", *patch.ScheduledAt)
	} else if patch.ClearScheduledAt {
		sets = append(sets, "scheduled_at = NULL")
	}
	if patch.CreationID != nil {
		add("creation_id", *patch.CreationID)
	}
	if patch.CreationReadyAt != nil {
		add("creation_ready_at", *patch.CreationReadyAt)
	}
	if patch.RemoteMediaID != nil {
		add("remote_media_id", *patch.RemoteMediaID)
	}
	if patch.ErrorKind != nil {
		add("error_kind", *patch.ErrorKind)
	}
	if patch.ErrorDetail != nil {
		add("error_detail", *patch.ErrorDetail)
	}
	if patch.ClearError {
		sets = append(sets, "error_kind = ''", "error_detail = ''", "creation_id = ''", "creation_ready_at = NULL")
	}
	add("updated_at", time.Now())

	query := fmt.Sprintf(
		"UPDATE threads SET %s WHERE id = $%d AND status = $%d",
		strings.Join(sets, ", "), n, n+1,
	)
	args = append(args, id, expectedStatus)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 1 {
		return nil
	}

	// Distinguish a lost race from a deleted row.
	var one int
	err = r.db.QueryRowContext(ctx, "SELECT 1 FROM threads WHERE id = $1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return ErrConflict
}

func (r *threadRepository) CheckByUserID(ctx context.Context, threadID, userID int64) (bool, error) {
	query := "SELECT 1 FROM threads WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, threadID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *threadRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM threads WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// DeleteTerminalBefore removes posted threads whose last update is older than
// cutoff. Failed threads are kept so the owner can still read the error and
// reschedule.
func (r *threadRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM threads WHERE status = $1 AND updated_at < $2`
	result, err := r.db.ExecContext(ctx, query, models.ThreadStatusPosted, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return deleted, nil
}

func (r *threadRepository) collectThreads(ctx context.Context, rows *sql.Rows) ([]*models.Thread, error) {
	var threads []*models.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	for _, t := range threads {
		if err := r.loadMediaURLs(ctx, t); err != nil {
			return nil, err
		}
	}
	return threads, nil
}

func (r *threadRepository) loadMediaURLs(ctx context.Context, t *models.Thread) error {
	query := `SELECT media_url FROM thread_media WHERE thread_id = $1 ORDER BY display_order`
	rows, err := r.db.QueryContext(ctx, query, t.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var mediaURL string
		if err := rows.Scan(&mediaURL); err != nil {
			slog.Info(err.Error())
			return err
		}
		t.MediaURLs = append(t.MediaURLs, mediaURL)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanThread(row rowScanner) (*models.Thread, error) {
	var t models.Thread
	var scheduledAt, creationReadyAt sql.NullTime
	var creationID, remoteMediaID, errorKind, errorDetail sql.NullString

	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Body, &t.Status,
		&scheduledAt, &creationID, &creationReadyAt, &remoteMediaID,
		&errorKind, &errorDetail, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if scheduledAt.Valid {
		t.ScheduledAt = &scheduledAt.Time
	}
	if creationReadyAt.Valid {
		t.CreationReadyAt = &creationReadyAt.Time
	}
	t.CreationID = creationID.String
	t.RemoteMediaID = remoteMediaID.String
	t.ErrorKind = errorKind.String
	t.ErrorDetail = errorDetail.String

	return &t, nil
}
