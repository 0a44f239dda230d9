package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/tagvaultapp/tagvault-server/internal/config"
	"github.com/tagvaultapp/tagvault-server/internal/gitsource"
	"github.com/tagvaultapp/tagvault-server/internal/logger"
	"github.com/tagvaultapp/tagvault-server/internal/syncer"
)

// ProvideGitClient provides the git source adapter.
func ProvideGitClient(i do.Injector) (*gitsource.Client, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return gitsource.NewClient(log.Logger)
}

// ProvideSyncer provides the repository sync orchestrator.
func ProvideSyncer(i do.Injector) (*syncer.Syncer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	git := do.MustInvoke[*gitsource.Client](i)

	return syncer.New(storeHandle.Store, git, indexHandle.Index, cfg.Sync, log.Logger), nil
}

// SchedulerHandle runs the background sync scheduler with lifecycle management.
type SchedulerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *SchedulerHandle) Shutdown() error {
	h.cancel()
	<-h.done
	return nil
}

// ProvideScheduler starts the background sync scheduler.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sy := do.MustInvoke[*syncer.Syncer](i)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sy.Run(ctx)
	}()

	log.Info("Sync scheduler started", "interval", cfg.Sync.ScheduleInterval)

	return &SchedulerHandle{cancel: cancel, done: done}, nil
}
