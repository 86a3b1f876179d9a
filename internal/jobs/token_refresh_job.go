package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kee711/threads-saas-sub001/internal/models"
	"github.com/kee711/threads-saas-sub001/internal/repository"
	"github.com/kee711/threads-saas-sub001/internal/service"
)

type TokenRefreshJob struct {
	ta repository.ThreadsAccountRepository
	ts service.ThreadsAccountService
}

func NewTokenRefreshJob(ta repository.ThreadsAccountRepository, ts service.ThreadsAccountService) *TokenRefreshJob {
	return &TokenRefreshJob{
		ta: ta,
		ts: ts,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.ta.ListByTimeInterval(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.ThreadsAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.ts.RefreshToken(ctx, acc); err != nil {
				slog.Info("Unable to refresh Threads token", "account_id", acc.ID)
			}
		}(acc)
	}

	wg.Wait()
}
