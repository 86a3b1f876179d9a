package transfer

type ThreadCreation struct {
	AccountID   int64    `json:"account_id"`
	Body        string   `json:"body"`
	MediaURLs   []string `json:"media_urls"`
	ScheduledAt string   `json:"scheduled_at"` // 2006-01-02T15:04, empty for a draft
}

type ThreadUpdate struct {
	Body string `json:"body"`
}

type ScheduleRequest struct {
	ScheduledAt string `json:"scheduled_at"`
}
