package models

import "time"

type PublishHistory struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	ThreadID    int64     `db:"thread_id" json:"thread_id"`
	AccountID   int64     `db:"account_id" json:"account_id"`
	Step        string    `db:"step" json:"step"` // create_container, publish_container
	ErrorKind   string    `db:"error_kind" json:"error_kind"`
	ErrorDetail string    `db:"error_detail" json:"error_detail"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
