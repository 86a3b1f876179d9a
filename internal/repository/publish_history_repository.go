package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/kee711/threads-saas-sub001/internal/models"
)

type PublishHistoryRepository interface {
	Create(ctx context.Context, ph *models.PublishHistory) (int64, error)
	ListByThreadID(ctx context.Context, threadID int64) ([]*models.PublishHistory, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.PublishHistory, error)
}

type publishHistoryRepository struct {
	db *sql.DB
}

func NewPublishHistoryRepository(db *sql.DB) PublishHistoryRepository {
	return &publishHistoryRepository{db: db}
}

func (r *publishHistoryRepository) Create(ctx context.Context, ph *models.PublishHistory) (int64, error) {
	query := `
		INSERT INTO publish_history (user_id, thread_id, account_id, step, error_kind, error_detail)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, ph.UserID, ph.ThreadID, ph.AccountID, ph.Step, ph.ErrorKind, ph.ErrorDetail).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

const publishHistoryColumns = `id, user_id, thread_id, account_id, step, error_kind, error_detail, created_at`

func (r *publishHistoryRepository) ListByThreadID(ctx context.Context, threadID int64) ([]*models.PublishHistory, error) {
	query := `SELECT ` + publishHistoryColumns + ` FROM publish_history WHERE thread_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, threadID)
}

func (r *publishHistoryRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.PublishHistory, error) {
	query := `SELECT ` + publishHistoryColumns + ` FROM publish_history WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *publishHistoryRepository) list(ctx context.Context, query string, arg interface{}) ([]*models.PublishHistory, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var phs []*models.PublishHistory
	for rows.Next() {
		var ph models.PublishHistory
		err := rows.Scan(&ph.ID, &ph.UserID, &ph.ThreadID, &ph.AccountID, &ph.Step, &ph.ErrorKind, &ph.ErrorDetail, &ph.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		phs = append(phs, &ph)
	}
	return phs, rows.Err()
}
