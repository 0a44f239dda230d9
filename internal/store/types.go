package store

import (
	"context"
	"time"

	"github.com/tagvaultapp/tagvault-server/internal/domain"
)

// ReconcileBatch is one repository's set of changes from a sync run.
// It is applied as a single transaction: either every change is visible
// afterwards or none is.
type ReconcileBatch struct {
	// Documents are the parsed added and modified tag documents.
	Documents []domain.TagDocument
	// RemovedDocumentIDs identify tags whose source documents disappeared.
	RemovedDocumentIDs []string
	// ReplaceAll marks Documents as the repository's complete document set:
	// tags whose document id appears in neither Documents nor
	// RemovedDocumentIDs are deleted as well.
	ReplaceAll bool
}

// SkippedDocument records a document the reconciliation could not apply.
type SkippedDocument struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Reason     string `json:"reason"`
}

// ReconcileResult summarizes an applied batch.
type ReconcileResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
	// Tags are the rows created or updated, with their persisted ids.
	Tags []domain.Tag `json:"-"`
	// RemovedTagIDs are the ids of deleted tag rows.
	RemovedTagIDs []int64 `json:"-"`
	// Skipped lists documents rejected inside the batch (duplicate names).
	Skipped []SkippedDocument `json:"skipped,omitempty"`
}

// SubscribedRepository pairs a repository with a guild's subscription priority.
type SubscribedRepository struct {
	Repository domain.Repository `json:"repository"`
	Priority   int               `json:"priority"`
}

// TagDetail is a tag with its owned and linked entities.
type TagDetail struct {
	Tag        domain.Tag        `json:"tag"`
	Repository domain.Repository `json:"repository"`
	Aliases    []string          `json:"aliases"`
	Categories []string          `json:"categories"`
	Authors    []domain.Author   `json:"authors"`
	Meta       domain.TagMeta    `json:"meta"`
}

// Store is the persistence surface consumed by services and the syncer.
type Store interface {
	// Repositories.
	CreateRepository(ctx context.Context, repo *domain.Repository) error
	GetRepository(ctx context.Context, id string) (*domain.Repository, error)
	GetRepositoryByIdentifier(ctx context.Context, identifier string) (*domain.Repository, error)
	ListRepositories(ctx context.Context) ([]*domain.Repository, error)
	ListPublicRepositories(ctx context.Context) ([]*domain.Repository, error)
	DeleteRepository(ctx context.Context, id string) error
	GetRepositoryData(ctx context.Context, id string) (*domain.RepositoryData, error)
	GetRepositoryMeta(ctx context.Context, id string) (*domain.RepositoryMeta, error)
	UpdateRepositoryMeta(ctx context.Context, id string, meta domain.RepositoryMeta) error
	MarkRepositoryChecked(ctx context.Context, id string, checked time.Time) error
	MarkRepositorySynced(ctx context.Context, id, revision string, at time.Time) error

	// Subscriptions.
	Subscribe(ctx context.Context, guildID, repositoryID string, priority int) error
	Unsubscribe(ctx context.Context, guildID, repositoryID string) error
	ListSubscriptions(ctx context.Context, guildID string) ([]SubscribedRepository, error)

	// Guild tag queries.
	ResolveTagByID(ctx context.Context, guildID string, tagID int64) (*domain.Tag, error)
	ResolveTagByName(ctx context.Context, guildID, name string) (*domain.Tag, error)
	CompleteTags(ctx context.Context, guildID, value string) ([]domain.CompletedTag, error)
	RankingPage(ctx context.Context, guildID string, page, size int) ([]domain.RankedTag, error)
	RandomTag(ctx context.Context, guildID string) (*domain.Tag, error)
	CountTags(ctx context.Context, guildID string) (int, error)
	TagUsed(ctx context.Context, guildID string, tagID int64) error

	// Tag details and listings.
	GetTagDetail(ctx context.Context, tagID int64) (*TagDetail, error)
	ListRepositoryTags(ctx context.Context, repositoryID string) ([]*domain.Tag, error)

	// Reconciliation.
	Reconcile(ctx context.Context, repositoryID string, batch ReconcileBatch) (*ReconcileResult, error)
}
