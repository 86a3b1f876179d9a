package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/kee711/threads-saas-sub001/internal/models"
)

type ThreadsAccountRepository interface {
	Create(ctx context.Context, tx *sql.Tx, ta *models.ThreadsAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ThreadsAccount, error)
	ListInfoByUserID(ctx context.Context, userID int64) ([]*models.ThreadsAccount, error)
	ListByTimeInterval(ctx context.Context, initialTime, finalTime time.Time) ([]*models.ThreadsAccount, error)
	CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error)
	SetToken(ctx context.Context, accountID int64, accessToken string, expiresAt time.Time) error
	Remove(ctx context.Context, id int64) error
}

type threadsAccountRepository struct {
	db *sql.DB
}

func NewThreadsAccountRepository(db *sql.DB) ThreadsAccountRepository {
	return &threadsAccountRepository{db: db}
}

const threadsAccountColumns = `id, user_id, threads_user_id, username, profile_picture_url, access_token, token_expires_at, created_at, updated_at`

func (r *threadsAccountRepository) Create(ctx context.Context, tx *sql.Tx, ta *models.ThreadsAccount) (int64, error) {
	var err error
	var id int64

	insertQuery := `
		INSERT INTO threads_accounts(
			user_id,
			threads_user_id,
			username,
			profile_picture_url,
			access_token,
			token_expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	if tx != nil {
		err = tx.QueryRowContext(ctx, insertQuery,
			ta.UserID, ta.ThreadsUserID, ta.Username, ta.ProfilePicture, ta.AccessToken, ta.TokenExpiresAt,
		).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, insertQuery,
			ta.UserID, ta.ThreadsUserID, ta.Username, ta.ProfilePicture, ta.AccessToken, ta.TokenExpiresAt,
		).Scan(&id)
	}

	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *threadsAccountRepository) GetByID(ctx context.Context, id int64) (*models.ThreadsAccount, error) {
	query := `SELECT ` + threadsAccountColumns + ` FROM threads_accounts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var ta models.ThreadsAccount
	err := row.Scan(&ta.ID, &ta.UserID, &ta.ThreadsUserID, &ta.Username,
		&ta.ProfilePicture, &ta.AccessToken, &ta.TokenExpiresAt, &ta.CreatedAt, &ta.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &ta, nil
}

func (r *threadsAccountRepository) ListInfoByUserID(ctx context.Context, userID int64) ([]*models.ThreadsAccount, error) {
	query := `SELECT id, threads_user_id, username, profile_picture_url FROM threads_accounts WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.ThreadsAccount
	for rows.Next() {
		var ta models.ThreadsAccount
		err := rows.Scan(&ta.ID, &ta.ThreadsUserID, &ta.Username, &ta.ProfilePicture)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, &ta)
	}
	return accounts, nil
}

func (r *threadsAccountRepository) ListByTimeInterval(ctx context.Context, initialTime, finalTime time.Time) ([]*models.ThreadsAccount, error) {
	query := `SELECT ` + threadsAccountColumns + `
		FROM threads_accounts
		WHERE (token_expires_at BETWEEN $1 AND $2)
		OR (token_expires_at < $1)`
	rows, err := r.db.QueryContext(ctx, query, initialTime, finalTime)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.ThreadsAccount
	for rows.Next() {
		var ta models.ThreadsAccount
		err := rows.Scan(&ta.ID, &ta.UserID, &ta.ThreadsUserID, &ta.Username,
			&ta.ProfilePicture, &ta.AccessToken, &ta.TokenExpiresAt, &ta.CreatedAt, &ta.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, &ta)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return accounts, nil
}

func (r *threadsAccountRepository) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	query := "SELECT 1 FROM threads_accounts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, accountID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *threadsAccountRepository) SetToken(ctx context.Context, accountID int64, accessToken string, expiresAt time.Time) error {
	query := `
		UPDATE threads_accounts
		SET access_token = $2,
			token_expires_at = $3,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, accountID, accessToken, expiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		slog.Info("no rows affected; account may not exist")
		return errors.New("no rows affected; account may not exist")
	}
	return nil
}

func (r *threadsAccountRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM threads_accounts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
