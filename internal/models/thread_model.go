package models

import "time"

type Thread struct {
	ID              int64      `db:"id" json:"id"`
	UserID          int64      `db:"user_id" json:"user_id"`
	AccountID       int64      `db:"account_id" json:"account_id"`
	Body            string     `db:"body" json:"body"`
	Status          string     `db:"status" json:"status"` // draft, scheduled, ready_to_publish, posted, failed
	ScheduledAt     *time.Time `db:"scheduled_at" json:"scheduled_at"`
	CreationID      string     `db:"creation_id" json:"creation_id"`
	CreationReadyAt *time.Time `db:"creation_ready_at" json:"creation_ready_at"`
	RemoteMediaID   string     `db:"remote_media_id" json:"remote_media_id"`
	ErrorKind       string     `db:"error_kind" json:"error_kind"`
	ErrorDetail     string     `db:"error_detail" json:"error_detail"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	// Hosted media URLs in display order, loaded from thread_media.
	MediaURLs []string `db:"-" json:"media_urls"`
}

type ThreadMedia struct {
	ThreadID     int64     `db:"thread_id" json:"thread_id"`
	MediaURL     string    `db:"media_url" json:"media_url"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type MediaAsset struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	FileName  string    `db:"file_name" json:"file_name"`
	FileType  string    `db:"file_type" json:"file_type"`
	FileSize  int64     `db:"file_size" json:"file_size"`
	FileURL   string    `db:"file_url" json:"file_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	ThreadStatusDraft     = "draft"
	ThreadStatusScheduled = "scheduled"
	ThreadStatusReady     = "ready_to_publish"
	ThreadStatusPosted    = "posted"
	ThreadStatusFailed    = "failed"
)
