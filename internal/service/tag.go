// Package service orchestrates the application operations on top of the
// store, the syncer, and the search index.
package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/tagvaultapp/tagvault-server/internal/domain"
	"github.com/tagvaultapp/tagvault-server/internal/errors"
	"github.com/tagvaultapp/tagvault-server/internal/search"
	"github.com/tagvaultapp/tagvault-server/internal/store"
	"github.com/tagvaultapp/tagvault-server/internal/tagparse"
	"github.com/tagvaultapp/tagvault-server/internal/validation"
)

// Ranking page size bounds.
const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// TagService answers guild-scoped tag queries.
type TagService struct {
	store     store.Store
	index     *search.Index
	logger    *slog.Logger
	validator *validation.Validator
}

// NewTagService creates a tag service. The search index may be nil; Search
// then reports the feature as unavailable.
func NewTagService(st store.Store, index *search.Index, logger *slog.Logger) *TagService {
	return &TagService{
		store:     st,
		index:     index,
		logger:    logger,
		validator: validation.New(),
	}
}

// Resolve finds one tag for a guild. A numeric value is treated as a tag id
// (the form autocomplete produces); anything else resolves as an exact name
// or alias with priority ranking deciding collisions.
func (s *TagService) Resolve(ctx context.Context, guildID, value string) (*domain.Tag, error) {
	if guildID == "" || value == "" {
		return nil, errors.Validation("guild id and tag value are required")
	}

	if tagID, err := strconv.ParseInt(value, 10, 64); err == nil {
		tag, err := s.store.ResolveTagByID(ctx, guildID, tagID)
		if err == nil {
			return tag, nil
		}
		if err != store.ErrNotFound {
			return nil, err
		}
		// A tag could legitimately be named "42"; fall through to the
		// name lookup.
	}

	tag, err := s.store.ResolveTagByName(ctx, guildID, value)
	if err == store.ErrNotFound {
		return nil, errors.NotFound("no tag named " + strconv.Quote(value))
	}
	return tag, err
}

// RecordUsage counts one use of a tag by a guild.
func (s *TagService) RecordUsage(ctx context.Context, guildID string, tagID int64) error {
	return s.store.TagUsed(ctx, guildID, tagID)
}

// Complete returns autocomplete candidates for a partial tag name.
func (s *TagService) Complete(ctx context.Context, guildID, value string) ([]domain.CompletedTag, error) {
	if guildID == "" {
		return nil, errors.Validation("guild id is required")
	}
	return s.store.CompleteTags(ctx, guildID, value)
}

// Pages splits a tag's content on its page markers.
func (s *TagService) Pages(tag *domain.Tag) []string {
	return tagparse.SplitPages(tag.Content)
}

// Ranking returns one page of the guild's usage ranking.
func (s *TagService) Ranking(ctx context.Context, guildID string, page, size int) ([]domain.RankedTag, error) {
	if guildID == "" {
		return nil, errors.Validation("guild id is required")
	}
	if page < 0 {
		return nil, errors.Validation("page must not be negative")
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return s.store.RankingPage(ctx, guildID, page, size)
}

// Random returns a random tag visible to the guild.
func (s *TagService) Random(ctx context.Context, guildID string) (*domain.Tag, error) {
	tag, err := s.store.RandomTag(ctx, guildID)
	if err == store.ErrNotFound {
		return nil, errors.NotFound("the guild has no tags")
	}
	return tag, err
}

// Count returns the number of tags visible to the guild.
func (s *TagService) Count(ctx context.Context, guildID string) (int, error) {
	return s.store.CountTags(ctx, guildID)
}

// Detail returns a tag with its aliases, categories, authors, and meta,
// provided the guild can see it.
func (s *TagService) Detail(ctx context.Context, guildID string, tagID int64) (*store.TagDetail, error) {
	if _, err := s.store.ResolveTagByID(ctx, guildID, tagID); err != nil {
		if err == store.ErrNotFound {
			return nil, errors.NotFound("no such tag for this guild")
		}
		return nil, err
	}
	detail, err := s.store.GetTagDetail(ctx, tagID)
	if err == store.ErrNotFound {
		return nil, errors.NotFound("no such tag for this guild")
	}
	return detail, err
}

// SearchRequest parametrizes a full-text tag search.
type SearchRequest struct {
	GuildID    string   `json:"guild_id" validate:"required"`
	Query      string   `json:"query" validate:"required,min=1,max=200"`
	Categories []string `json:"categories"`
	Limit      int      `json:"limit" validate:"gte=0,lte=50"`
	Offset     int      `json:"offset" validate:"gte=0"`
}

// Search runs a full-text search over the tags visible to the guild.
func (s *TagService) Search(ctx context.Context, req SearchRequest) (*search.Result, error) {
	if s.index == nil {
		return nil, errors.Internal("search index is not configured", nil)
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	subs, err := s.store.ListSubscriptions(ctx, req.GuildID)
	if err != nil {
		return nil, err
	}
	repoIDs := make([]string, len(subs))
	for i, sub := range subs {
		repoIDs[i] = sub.Repository.ID
	}

	params := search.DefaultParams()
	params.Query = req.Query
	params.RepositoryIDs = repoIDs
	params.Categories = req.Categories
	if req.Limit > 0 {
		params.Limit = req.Limit
	}
	params.Offset = req.Offset

	return s.index.Search(ctx, params)
}
