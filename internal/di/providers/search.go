package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/tagvaultapp/tagvault-server/internal/config"
	"github.com/tagvaultapp/tagvault-server/internal/logger"
	"github.com/tagvaultapp/tagvault-server/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the bleve full-text index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	indexPath := filepath.Join(cfg.Sync.DataDir, "search")
	index, err := search.NewIndex(search.Options{
		DataPath: indexPath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	log.Info("Search index opened", "path", indexPath)

	return &SearchIndexHandle{Index: index}, nil
}

// TriggerSearchReindexIfNeeded repopulates an empty index from the store.
// An index rebuilt after a mapping change starts empty while the store
// still holds tags; reindexing restores the search surface.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	log := do.MustInvoke[*logger.Logger](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	count, err := indexHandle.DocumentCount()
	if err != nil || count > 0 {
		return
	}

	ctx := context.Background()
	repos, err := storeHandle.ListRepositories(ctx)
	if err != nil {
		log.Warn("Reindex check failed", "error", err)
		return
	}

	var docs []*search.TagDocument
	for _, repo := range repos {
		tags, err := storeHandle.ListRepositoryTags(ctx, repo.ID)
		if err != nil {
			log.Warn("Reindex listing failed", "repository", repo.ID, "error", err)
			continue
		}
		for _, tag := range tags {
			detail, err := storeHandle.GetTagDetail(ctx, tag.ID)
			if err != nil {
				continue
			}
			docs = append(docs, search.NewTagDocument(detail.Tag, detail.Aliases, detail.Categories))
		}
	}

	if len(docs) == 0 {
		return
	}
	if err := indexHandle.IndexTags(docs); err != nil {
		log.Warn("Reindex failed", "error", err)
		return
	}
	log.Info("Search index repopulated", "documents", len(docs))
}
