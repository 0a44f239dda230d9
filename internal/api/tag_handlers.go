package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/tagvaultapp/tagvault-server/internal/service"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "resolveTag",
		Method:      http.MethodGet,
		Path:        "/api/v1/guilds/{guildID}/tags/{tag}",
		Summary:     "Resolve tag",
		Description: "Resolves a tag by id or name for a guild, honoring subscription priority",
		Tags:        []string{"Tags"},
	}, s.handleResolveTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTagDetail",
		Method:      http.MethodGet,
		Path:        "/api/v1/guilds/{guildID}/tags/{tag}/detail",
		Summary:     "Get tag detail",
		Description: "Returns a tag with its aliases, categories, authors, and metadata",
		Tags:        []string{"Tags"},
	}, s.handleGetTagDetail)

	huma.Register(s.api, huma.Operation{
		OperationID:   "recordTagUsage",
		Method:        http.MethodPost,
		Path:          "/api/v1/guilds/{guildID}/tags/{tag}/usage",
		Summary:       "Record tag usage",
		Description:   "Counts one use of a tag by a guild",
		Tags:          []string{"Tags"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleRecordTagUsage)

	huma.Register(s.api, huma.Operation{
		OperationID: "completeTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/guilds/{guildID}/tag-completions",
		Summary:     "Complete tags",
		Description: "Returns autocomplete candidates for a partial tag name",
		Tags:        []string{"Tags"},
	}, s.handleCompleteTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTagRanking",
		Method:      http.MethodGet,
		Path:        "/api/v1/guilds/{guildID}/tag-ranking",
		Summary:     "Get tag ranking",
		Description: "Returns one page of the guild's tag usage ranking",
		Tags:        []string{"Tags"},
	}, s.handleGetTagRanking)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRandomTag",
		Method:      http.MethodGet,
		Path:        "/api/v1/guilds/{guildID}/random-tag",
		Summary:     "Get random tag",
		Description: "Returns a random tag visible to the guild",
		Tags:        []string{"Tags"},
	}, s.handleGetRandomTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTagCount",
		Method:      http.MethodGet,
		Path:        "/api/v1/guilds/{guildID}/tag-count",
		Summary:     "Get tag count",
		Description: "Returns the number of tags visible to the guild",
		Tags:        []string{"Tags"},
	}, s.handleGetTagCount)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/guilds/{guildID}/tag-search",
		Summary:     "Search tags",
		Description: "Full-text search across the tags visible to the guild",
		Tags:        []string{"Tags"},
	}, s.handleSearchTags)
}

// === DTOs ===

// ResolveTagInput contains parameters for resolving a tag.
type ResolveTagInput struct {
	GuildID string `path:"guildID" doc:"Guild ID"`
	Tag     string `path:"tag" doc:"Tag id or name"`
}

// TagResponse contains resolved tag data in API responses.
type TagResponse struct {
	ID           int64    `json:"id" doc:"Tag ID"`
	RepositoryID string   `json:"repository_id" doc:"Owning repository ID"`
	Name         string   `json:"name" doc:"Tag name"`
	Content      string   `json:"content" doc:"Full tag content"`
	Pages        []string `json:"pages" doc:"Content split on page markers"`
}

// TagOutput wraps a tag response for Huma.
type TagOutput struct {
	Body TagResponse
}

// GetTagDetailInput contains parameters for the tag detail lookup.
type GetTagDetailInput struct {
	GuildID string `path:"guildID" doc:"Guild ID"`
	Tag     int64  `path:"tag" doc:"Tag ID"`
}

// AuthorResponse contains a contributor identity.
type AuthorResponse struct {
	Name string `json:"name" doc:"Author name"`
	Mail string `json:"mail" doc:"Author mail address"`
}

// TagDetailResponse contains a tag with its linked entities.
type TagDetailResponse struct {
	ID           int64            `json:"id" doc:"Tag ID"`
	RepositoryID string           `json:"repository_id" doc:"Owning repository ID"`
	Identifier   string           `json:"identifier" doc:"Owning repository identifier"`
	Name         string           `json:"name" doc:"Tag name"`
	Content      string           `json:"content" doc:"Full tag content"`
	Aliases      []string         `json:"aliases" doc:"Alternative names"`
	Categories   []string         `json:"categories" doc:"Category names"`
	Authors      []AuthorResponse `json:"authors" doc:"Contributors from version history"`
	Image        string           `json:"image,omitempty" doc:"Image URL"`
	CreatedAt    time.Time        `json:"created_at" doc:"First commit time"`
	CreatedBy    AuthorResponse   `json:"created_by" doc:"First commit author"`
	ModifiedAt   time.Time        `json:"modified_at" doc:"Last commit time"`
	ModifiedBy   AuthorResponse   `json:"modified_by" doc:"Last commit author"`
}

// TagDetailOutput wraps the tag detail response for Huma.
type TagDetailOutput struct {
	Body TagDetailResponse
}

// RecordTagUsageInput contains parameters for counting a tag use.
type RecordTagUsageInput struct {
	GuildID string `path:"guildID" doc:"Guild ID"`
	Tag     int64  `path:"tag" doc:"Tag ID"`
}

// CompleteTagsInput contains parameters for tag autocompletion.
type CompleteTagsInput struct {
	GuildID string `path:"guildID" doc:"Guild ID"`
	Query   string `query:"q" doc:"Partial tag name, case-insensitive"`
}

// CompletedTagResponse is one autocomplete candidate.
type CompletedTagResponse struct {
	ID   int64  `json:"id" doc:"Tag ID"`
	Name string `json:"name" doc:"Display name, qualified with the repository identifier on collisions"`
}

// CompleteTagsResponse contains autocomplete candidates.
type CompleteTagsResponse struct {
	Tags []CompletedTagResponse `json:"tags" doc:"Candidates, at most 25"`
}

// CompleteTagsOutput wraps the completion response for Huma.
type CompleteTagsOutput struct {
	Body CompleteTagsResponse
}

// GetTagRankingInput contains parameters for the usage ranking.
type GetTagRankingInput struct {
	GuildID string `path:"guildID" doc:"Guild ID"`
	Page    int    `query:"page" doc:"Zero-based page number"`
	Size    int    `query:"size" doc:"Page size, at most 50"`
}

// RankedTagResponse is one row of the usage ranking.
type RankedTagResponse struct {
	Rank  int    `json:"rank" doc:"Dense rank by views"`
	Name  string `json:"name" doc:"Tag name"`
	Views int    `json:"views" doc:"Recorded uses"`
}

// TagRankingResponse contains one ranking page.
type TagRankingResponse struct {
	Page int                 `json:"page" doc:"Requested page"`
	Tags []RankedTagResponse `json:"tags" doc:"Ranking rows"`
}

// TagRankingOutput wraps the ranking response for Huma.
type TagRankingOutput struct {
	Body TagRankingResponse
}

// GetRandomTagInput contains parameters for the random tag lookup.
type GetRandomTagInput struct {
	GuildID string `path:"guildID" doc:"Guild ID"`
}

// GetTagCountInput contains parameters for the tag count.
type GetTagCountInput struct {
	GuildID string `path:"guildID" doc:"Guild ID"`
}

// TagCountResponse contains the visible tag count.
type TagCountResponse struct {
	Count int `json:"count" doc:"Number of tags visible to the guild"`
}

// TagCountOutput wraps the count response for Huma.
type TagCountOutput struct {
	Body TagCountResponse
}

// SearchTagsInput contains parameters for full-text search.
type SearchTagsInput struct {
	GuildID    string   `path:"guildID" doc:"Guild ID"`
	Query      string   `query:"q" doc:"Search query"`
	Categories []string `query:"category" doc:"Restrict to these categories"`
	Limit      int      `query:"limit" doc:"Max hits per page, at most 50"`
	Offset     int      `query:"offset" doc:"Hits to skip"`
}

// SearchHitResponse is one full-text search hit.
type SearchHitResponse struct {
	TagID        int64             `json:"tag_id" doc:"Tag ID"`
	RepositoryID string            `json:"repository_id" doc:"Owning repository ID"`
	Score        float64           `json:"score" doc:"Relevance score"`
	Name         string            `json:"name" doc:"Tag name"`
	Categories   []string          `json:"categories,omitempty" doc:"Category names"`
	Highlights   map[string]string `json:"highlights,omitempty" doc:"Highlighted fragments by field"`
}

// SearchTagsResponse contains one page of search hits.
type SearchTagsResponse struct {
	Query  string              `json:"query" doc:"Echoed query"`
	Total  uint64              `json:"total" doc:"Total matching tags"`
	TookMs int64               `json:"took_ms" doc:"Search duration in milliseconds"`
	Hits   []SearchHitResponse `json:"hits" doc:"Matching tags"`
}

// SearchTagsOutput wraps the search response for Huma.
type SearchTagsOutput struct {
	Body SearchTagsResponse
}

// === Handlers ===

func (s *Server) handleResolveTag(ctx context.Context, input *ResolveTagInput) (*TagOutput, error) {
	tag, err := s.services.Tag.Resolve(ctx, input.GuildID, input.Tag)
	if err != nil {
		return nil, err
	}

	return &TagOutput{
		Body: TagResponse{
			ID:           tag.ID,
			RepositoryID: tag.RepositoryID,
			Name:         tag.Name,
			Content:      tag.Content,
			Pages:        s.services.Tag.Pages(tag),
		},
	}, nil
}

func (s *Server) handleGetTagDetail(ctx context.Context, input *GetTagDetailInput) (*TagDetailOutput, error) {
	detail, err := s.services.Tag.Detail(ctx, input.GuildID, input.Tag)
	if err != nil {
		return nil, err
	}

	authors := make([]AuthorResponse, len(detail.Authors))
	for i, a := range detail.Authors {
		authors[i] = AuthorResponse{Name: a.Name, Mail: a.Mail}
	}

	return &TagDetailOutput{
		Body: TagDetailResponse{
			ID:           detail.Tag.ID,
			RepositoryID: detail.Tag.RepositoryID,
			Identifier:   detail.Repository.Identifier.String(),
			Name:         detail.Tag.Name,
			Content:      detail.Tag.Content,
			Aliases:      detail.Aliases,
			Categories:   detail.Categories,
			Authors:      authors,
			Image:        detail.Meta.Image,
			CreatedAt:    detail.Meta.CreatedAt,
			CreatedBy:    AuthorResponse{Name: detail.Meta.CreatedBy.Name, Mail: detail.Meta.CreatedBy.Mail},
			ModifiedAt:   detail.Meta.ModifiedAt,
			ModifiedBy:   AuthorResponse{Name: detail.Meta.ModifiedBy.Name, Mail: detail.Meta.ModifiedBy.Mail},
		},
	}, nil
}

func (s *Server) handleRecordTagUsage(ctx context.Context, input *RecordTagUsageInput) (*struct{}, error) {
	if err := s.services.Tag.RecordUsage(ctx, input.GuildID, input.Tag); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleCompleteTags(ctx context.Context, input *CompleteTagsInput) (*CompleteTagsOutput, error) {
	completed, err := s.services.Tag.Complete(ctx, input.GuildID, input.Query)
	if err != nil {
		return nil, err
	}

	tags := make([]CompletedTagResponse, len(completed))
	for i, c := range completed {
		tags[i] = CompletedTagResponse{ID: c.ID, Name: c.Name}
	}

	return &CompleteTagsOutput{Body: CompleteTagsResponse{Tags: tags}}, nil
}

func (s *Server) handleGetTagRanking(ctx context.Context, input *GetTagRankingInput) (*TagRankingOutput, error) {
	ranked, err := s.services.Tag.Ranking(ctx, input.GuildID, input.Page, input.Size)
	if err != nil {
		return nil, err
	}

	tags := make([]RankedTagResponse, len(ranked))
	for i, r := range ranked {
		tags[i] = RankedTagResponse{Rank: r.Rank, Name: r.Name, Views: r.Views}
	}

	return &TagRankingOutput{Body: TagRankingResponse{Page: input.Page, Tags: tags}}, nil
}

func (s *Server) handleGetRandomTag(ctx context.Context, input *GetRandomTagInput) (*TagOutput, error) {
	tag, err := s.services.Tag.Random(ctx, input.GuildID)
	if err != nil {
		return nil, err
	}

	return &TagOutput{
		Body: TagResponse{
			ID:           tag.ID,
			RepositoryID: tag.RepositoryID,
			Name:         tag.Name,
			Content:      tag.Content,
			Pages:        s.services.Tag.Pages(tag),
		},
	}, nil
}

func (s *Server) handleGetTagCount(ctx context.Context, input *GetTagCountInput) (*TagCountOutput, error) {
	count, err := s.services.Tag.Count(ctx, input.GuildID)
	if err != nil {
		return nil, err
	}
	return &TagCountOutput{Body: TagCountResponse{Count: count}}, nil
}

func (s *Server) handleSearchTags(ctx context.Context, input *SearchTagsInput) (*SearchTagsOutput, error) {
	result, err := s.services.Tag.Search(ctx, service.SearchRequest{
		GuildID:    input.GuildID,
		Query:      input.Query,
		Categories: input.Categories,
		Limit:      input.Limit,
		Offset:     input.Offset,
	})
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHitResponse, len(result.Hits))
	for i, h := range result.Hits {
		hits[i] = SearchHitResponse{
			TagID:        h.TagID,
			RepositoryID: h.RepositoryID,
			Score:        h.Score,
			Name:         h.Name,
			Categories:   h.Categories,
			Highlights:   h.Highlights,
		}
	}

	return &SearchTagsOutput{
		Body: SearchTagsResponse{
			Query:  result.Query,
			Total:  result.Total,
			TookMs: result.TookMs,
			Hits:   hits,
		},
	}, nil
}
