package service

import (
	"context"
	"log/slog"

	"github.com/tagvaultapp/tagvault-server/internal/errors"
	"github.com/tagvaultapp/tagvault-server/internal/store"
	"github.com/tagvaultapp/tagvault-server/internal/syncer"
)

// SyncService exposes on-demand synchronization and status.
type SyncService struct {
	store  store.Store
	syncer *syncer.Syncer
	logger *slog.Logger
}

// NewSyncService creates a sync service.
func NewSyncService(st store.Store, sy *syncer.Syncer, logger *slog.Logger) *SyncService {
	return &SyncService{store: st, syncer: sy, logger: logger}
}

// Sync runs one synchronization of a repository. Force resyncs every
// document; the minimum check interval applies either way.
func (s *SyncService) Sync(ctx context.Context, repositoryID string, force bool) (*syncer.Report, error) {
	report, err := s.syncer.Sync(ctx, repositoryID, syncer.Options{Force: force})
	if err != nil && errors.Is(err, store.ErrNotFound) {
		return nil, errors.NotFound("no such repository")
	}
	return report, err
}

// Status returns the sync status of one repository.
func (s *SyncService) Status(ctx context.Context, repositoryID string) (*syncer.Status, error) {
	if _, err := s.store.GetRepository(ctx, repositoryID); err != nil {
		if err == store.ErrNotFound {
			return nil, errors.NotFound("no such repository")
		}
		return nil, err
	}
	status := s.syncer.Status(repositoryID)
	return &status, nil
}
