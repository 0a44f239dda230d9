package providers

import (
	"github.com/samber/do/v2"

	"github.com/tagvaultapp/tagvault-server/internal/logger"
	"github.com/tagvaultapp/tagvault-server/internal/service"
	"github.com/tagvaultapp/tagvault-server/internal/syncer"
)

// ProvideTagService provides the guild tag query service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)

	return service.NewTagService(storeHandle.Store, indexHandle.Index, log.Logger), nil
}

// ProvideRepositoryService provides the repository management service.
func ProvideRepositoryService(i do.Injector) (*service.RepositoryService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sy := do.MustInvoke[*syncer.Syncer](i)

	return service.NewRepositoryService(storeHandle.Store, sy, indexHandle.Index, log.Logger), nil
}

// ProvideSyncService provides the on-demand sync service.
func ProvideSyncService(i do.Injector) (*service.SyncService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sy := do.MustInvoke[*syncer.Syncer](i)

	return service.NewSyncService(storeHandle.Store, sy, log.Logger), nil
}
