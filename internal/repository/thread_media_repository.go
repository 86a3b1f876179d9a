package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/kee711/threads-saas-sub001/internal/models"
)

type ThreadMediaRepository interface {
	Create(ctx context.Context, tx *sql.Tx, tm *models.ThreadMedia) error
	ListByThreadID(ctx context.Context, threadID int64) ([]*models.ThreadMedia, error)
	RemoveByThreadID(ctx context.Context, tx *sql.Tx, threadID int64) error
}

type threadMediaRepository struct {
	db *sql.DB
}

func NewThreadMediaRepository(db *sql.DB) ThreadMediaRepository {
	return &threadMediaRepository{db: db}
}

func (r *threadMediaRepository) Create(ctx context.Context, tx *sql.Tx, tm *models.ThreadMedia) error {
	var err error

	query := `
		INSERT INTO thread_media (thread_id, media_url, display_order)
		VALUES ($1, $2, $3)
	`
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, tm.ThreadID, tm.MediaURL, tm.DisplayOrder)
	} else {
		_, err = r.db.ExecContext(ctx, query, tm.ThreadID, tm.MediaURL, tm.DisplayOrder)
	}

	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *threadMediaRepository) ListByThreadID(ctx context.Context, threadID int64) ([]*models.ThreadMedia, error) {
	query := `
		SELECT thread_id, media_url, display_order
		FROM thread_media
		WHERE thread_id = $1
		ORDER BY display_order
	`

	rows, err := r.db.QueryContext(ctx, query, threadID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var medias []*models.ThreadMedia
	for rows.Next() {
		var tm models.ThreadMedia
		if err := rows.Scan(&tm.ThreadID, &tm.MediaURL, &tm.DisplayOrder); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		medias = append(medias, &tm)
	}

	if err = rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return medias, nil
}

func (r *threadMediaRepository) RemoveByThreadID(ctx context.Context, tx *sql.Tx, threadID int64) error {
	var err error

	query := `DELETE FROM thread_media WHERE thread_id = $1`
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, threadID)
	} else {
		_, err = r.db.ExecContext(ctx, query, threadID)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}
