package service

import (
	"context"
	"log/slog"

	"github.com/tagvaultapp/tagvault-server/internal/domain"
	"github.com/tagvaultapp/tagvault-server/internal/errors"
	"github.com/tagvaultapp/tagvault-server/internal/id"
	"github.com/tagvaultapp/tagvault-server/internal/search"
	"github.com/tagvaultapp/tagvault-server/internal/store"
	"github.com/tagvaultapp/tagvault-server/internal/syncer"
	"github.com/tagvaultapp/tagvault-server/internal/validation"
)

// defaultDirectory is where tag documents live when the identifier names no
// sub-path.
const defaultDirectory = "tags"

// RepositoryService manages tag repositories and guild subscriptions.
type RepositoryService struct {
	store     store.Store
	syncer    *syncer.Syncer
	index     *search.Index
	logger    *slog.Logger
	validator *validation.Validator
}

// NewRepositoryService creates a repository service.
func NewRepositoryService(st store.Store, sy *syncer.Syncer, index *search.Index, logger *slog.Logger) *RepositoryService {
	return &RepositoryService{
		store:     st,
		syncer:    sy,
		index:     index,
		logger:    logger,
		validator: validation.New(),
	}
}

// AddRepository registers a tag repository by its identifier. The identifier
// must name a known platform; the optional sub-path selects the directory
// holding tag documents. The repository is not synced yet.
func (s *RepositoryService) AddRepository(ctx context.Context, identifier string) (*domain.Repository, error) {
	ident, err := domain.ParseIdentifier(identifier)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}
	url, err := ident.CloneURL()
	if err != nil {
		return nil, errors.Validation(err.Error())
	}

	directory := ident.Path
	if directory == "" {
		directory = defaultDirectory
	}

	repoID, err := id.Generate("repo")
	if err != nil {
		return nil, errors.Internal("generate repository id", err)
	}

	repo := &domain.Repository{
		ID:         repoID,
		URL:        url,
		Identifier: ident,
		Directory:  directory,
	}
	if err := s.store.CreateRepository(ctx, repo); err != nil {
		if err == store.ErrAlreadyExists {
			return nil, errors.AlreadyExists("repository " + ident.String() + " is already registered")
		}
		return nil, err
	}

	s.logger.Info("repository registered", "id", repo.ID, "identifier", ident.String())
	return repo, nil
}

// GetRepository returns one repository by id.
func (s *RepositoryService) GetRepository(ctx context.Context, repositoryID string) (*domain.Repository, error) {
	repo, err := s.store.GetRepository(ctx, repositoryID)
	if err == store.ErrNotFound {
		return nil, errors.NotFound("no such repository")
	}
	return repo, err
}

// GetRepositoryByIdentifier returns one repository by its identifier string.
func (s *RepositoryService) GetRepositoryByIdentifier(ctx context.Context, identifier string) (*domain.Repository, error) {
	repo, err := s.store.GetRepositoryByIdentifier(ctx, identifier)
	if err == store.ErrNotFound {
		return nil, errors.NotFound("no such repository")
	}
	return repo, err
}

// ListRepositories returns all registered repositories.
func (s *RepositoryService) ListRepositories(ctx context.Context) ([]*domain.Repository, error) {
	return s.store.ListRepositories(ctx)
}

// ListPublicRepositories returns the repositories eligible for public
// discovery: flagged public with a description and language.
func (s *RepositoryService) ListPublicRepositories(ctx context.Context) ([]*domain.Repository, error) {
	return s.store.ListPublicRepositories(ctx)
}

// GetMeta returns a repository's descriptive metadata.
func (s *RepositoryService) GetMeta(ctx context.Context, repositoryID string) (*domain.RepositoryMeta, error) {
	meta, err := s.store.GetRepositoryMeta(ctx, repositoryID)
	if err == store.ErrNotFound {
		return nil, errors.NotFound("no such repository")
	}
	return meta, err
}

// GetData returns a repository's sync bookkeeping.
func (s *RepositoryService) GetData(ctx context.Context, repositoryID string) (*domain.RepositoryData, error) {
	data, err := s.store.GetRepositoryData(ctx, repositoryID)
	if err == store.ErrNotFound {
		return nil, errors.NotFound("no such repository")
	}
	return data, err
}

// ListTags returns all tags of one repository.
func (s *RepositoryService) ListTags(ctx context.Context, repositoryID string) ([]*domain.Tag, error) {
	if _, err := s.GetRepository(ctx, repositoryID); err != nil {
		return nil, err
	}
	return s.store.ListRepositoryTags(ctx, repositoryID)
}

// DeleteRepository removes a repository with its tags, subscriptions, local
// working copy, and search entries.
func (s *RepositoryService) DeleteRepository(ctx context.Context, repositoryID string) error {
	if err := s.store.DeleteRepository(ctx, repositoryID); err != nil {
		if err == store.ErrNotFound {
			return errors.NotFound("no such repository")
		}
		return err
	}

	if s.syncer != nil {
		if err := s.syncer.RemoveWorkingCopy(repositoryID); err != nil {
			s.logger.Warn("failed to remove working copy", "repository", repositoryID, "error", err)
		}
	}
	if s.index != nil {
		if err := s.index.DeleteRepository(repositoryID); err != nil {
			s.logger.Warn("failed to remove search entries", "repository", repositoryID, "error", err)
		}
	}

	s.logger.Info("repository deleted", "id", repositoryID)
	return nil
}

// SubscribeRequest parametrizes a guild subscription.
type SubscribeRequest struct {
	GuildID      string `json:"guild_id" validate:"required"`
	RepositoryID string `json:"repository_id" validate:"required"`
	Priority     int    `json:"priority" validate:"gte=1,lte=100"`
}

// Subscribe links a guild to a repository. Re-subscribing updates the
// priority.
func (s *RepositoryService) Subscribe(ctx context.Context, req SubscribeRequest) error {
	if req.Priority == 0 {
		req.Priority = 1
	}
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	err := s.store.Subscribe(ctx, req.GuildID, req.RepositoryID, req.Priority)
	if err == store.ErrNotFound {
		return errors.NotFound("no such repository")
	}
	if err != nil {
		return err
	}

	s.logger.Info("guild subscribed", "guild", req.GuildID, "repository", req.RepositoryID, "priority", req.Priority)
	return nil
}

// Unsubscribe removes a guild's subscription.
func (s *RepositoryService) Unsubscribe(ctx context.Context, guildID, repositoryID string) error {
	err := s.store.Unsubscribe(ctx, guildID, repositoryID)
	if err == store.ErrNotFound {
		return errors.NotFound("the guild is not subscribed to this repository")
	}
	return err
}

// Subscriptions lists a guild's subscribed repositories, highest priority
// first.
func (s *RepositoryService) Subscriptions(ctx context.Context, guildID string) ([]store.SubscribedRepository, error) {
	if guildID == "" {
		return nil, errors.Validation("guild id is required")
	}
	return s.store.ListSubscriptions(ctx, guildID)
}
