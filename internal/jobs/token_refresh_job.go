package job

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/repository"
	"github.com/postdeckhq/postdeck/internal/service"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

const (
	sweepWindow      = 30 * time.Minute
	concurrencyLimit = 10
)

// TokenRefreshJob is the periodic sweep that renews credentials about to
// expire. Each credential refreshes independently; one provider being down
// never blocks the rest of the batch.
type TokenRefreshJob struct {
	cr      repository.CredentialRepository
	refresh service.RefreshService
}

func NewTokenRefreshJob(cr repository.CredentialRepository, refresh service.RefreshService) *TokenRefreshJob {
	return &TokenRefreshJob{
		cr:      cr,
		refresh: refresh,
	}
}

func (j *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	cutoff := time.Now().Add(sweepWindow)
	creds, err := j.cr.ListExpiringBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("list expiring credentials")
		return
	}
	if len(creds) == 0 {
		return
	}
	log.Info().Int("count", len(creds)).Msg("refresh sweep started")

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrencyLimit)

	var mu sync.Mutex
	tally := map[string]int{}

	for _, cred := range creds {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(cred *models.Credential) {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcome := j.refresh.RefreshCredential(ctx, cred)
			if outcome.Outcome == transfer.RefreshOutcomeFailed {
				log.Warn().
					Int64("user_id", cred.UserID).
					Str("platform", cred.Platform.String()).
					Str("detail", outcome.Detail).
					Msg("sweep refresh failed")
			}

			mu.Lock()
			tally[outcome.Outcome]++
			mu.Unlock()
		}(cred)
	}

	wg.Wait()
	log.Info().
		Int("refreshed", tally[transfer.RefreshOutcomeRefreshed]).
		Int("skipped", tally[transfer.RefreshOutcomeSkipped]).
		Int("failed", tally[transfer.RefreshOutcomeFailed]).
		Msg("refresh sweep finished")
}
