package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/tagvaultapp/tagvault-server/internal/errors"
)

// Run executes the background sync loop until ctx is cancelled. Every
// schedule interval it sweeps all repositories, syncing each through a
// bounded worker pool. An immediate sweep runs on startup.
func (s *Syncer) Run(ctx context.Context) {
	s.logger.Info("sync scheduler started",
		"interval", s.cfg.ScheduleInterval,
		"workers", s.cfg.Workers,
	)

	ticker := time.NewTicker(s.cfg.ScheduleInterval)
	defer ticker.Stop()

	s.SyncAll(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			s.SyncAll(ctx)
		}
	}
}

// SyncAll syncs every repository, at most cfg.Workers at a time. Individual
// failures are logged and do not stop the sweep.
func (s *Syncer) SyncAll(ctx context.Context) {
	repos, err := s.store.ListRepositories(ctx)
	if err != nil {
		s.logger.Error("failed to list repositories for sync sweep", "error", err)
		return
	}

	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for _, repo := range repos {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := s.Sync(ctx, id, Options{})
			switch {
			case err == nil, errors.Is(err, errors.ErrRateLimited):
			case ctx.Err() != nil:
			default:
				s.logger.Error("scheduled sync failed", "repository", id, "error", err)
			}
		}(repo.ID)
	}
	wg.Wait()
}
