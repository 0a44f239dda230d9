// Package di provides dependency injection configuration for the TagVault server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/tagvaultapp/tagvault-server/internal/config"
	"github.com/tagvaultapp/tagvault-server/internal/di/providers"
	"github.com/tagvaultapp/tagvault-server/internal/gitsource"
	"github.com/tagvaultapp/tagvault-server/internal/logger"
	"github.com/tagvaultapp/tagvault-server/internal/service"
	"github.com/tagvaultapp/tagvault-server/internal/syncer"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Sync layer
	do.Provide(injector, providers.ProvideGitClient)
	do.Provide(injector, providers.ProvideSyncer)
	do.Provide(injector, providers.ProvideScheduler)

	// Business services
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideRepositoryService)
	do.Provide(injector, providers.ProvideSyncService)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap invokes all services to trigger initialization.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*gitsource.Client](injector)
	_ = do.MustInvoke[*syncer.Syncer](injector)

	// Business services
	_ = do.MustInvoke[*service.TagService](injector)
	_ = do.MustInvoke[*service.RepositoryService](injector)
	_ = do.MustInvoke[*service.SyncService](injector)

	// Server
	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Trigger search reindex if needed
	providers.TriggerSearchReindexIfNeeded(injector)

	// Background scheduler last, once everything is wired
	_ = do.MustInvoke[*providers.SchedulerHandle](injector)

	return nil
}
