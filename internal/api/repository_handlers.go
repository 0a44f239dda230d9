package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/tagvaultapp/tagvault-server/internal/domain"
)

func (s *Server) registerRepositoryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createRepository",
		Method:      http.MethodPost,
		Path:        "/api/v1/repositories",
		Summary:     "Add repository",
		Description: "Registers a tag repository by its identifier",
		Tags:        []string{"Repositories"},
	}, s.handleCreateRepository)

	huma.Register(s.api, huma.Operation{
		OperationID: "listRepositories",
		Method:      http.MethodGet,
		Path:        "/api/v1/repositories",
		Summary:     "List repositories",
		Description: "Returns all registered repositories",
		Tags:        []string{"Repositories"},
	}, s.handleListRepositories)

	huma.Register(s.api, huma.Operation{
		OperationID: "listPublicRepositories",
		Method:      http.MethodGet,
		Path:        "/api/v1/repositories/public",
		Summary:     "List public repositories",
		Description: "Returns repositories flagged public with a description and language",
		Tags:        []string{"Repositories"},
	}, s.handleListPublicRepositories)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRepository",
		Method:      http.MethodGet,
		Path:        "/api/v1/repositories/{id}",
		Summary:     "Get repository",
		Description: "Returns a repository with its metadata and sync bookkeeping",
		Tags:        []string{"Repositories"},
	}, s.handleGetRepository)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteRepository",
		Method:        http.MethodDelete,
		Path:          "/api/v1/repositories/{id}",
		Summary:       "Delete repository",
		Description:   "Removes a repository with its tags, subscriptions, and working copy",
		Tags:          []string{"Repositories"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteRepository)

	huma.Register(s.api, huma.Operation{
		OperationID: "listRepositoryTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/repositories/{id}/tags",
		Summary:     "List repository tags",
		Description: "Returns all tags owned by a repository",
		Tags:        []string{"Repositories"},
	}, s.handleListRepositoryTags)
}

// === DTOs ===

// CreateRepositoryRequest contains the repository registration payload.
type CreateRepositoryRequest struct {
	Identifier string `json:"identifier" doc:"Repository identifier, platform:user/repo[/path]"`
}

// CreateRepositoryInput wraps the registration payload for Huma.
type CreateRepositoryInput struct {
	Body CreateRepositoryRequest
}

// RepositoryResponse contains repository data in API responses.
type RepositoryResponse struct {
	ID         string `json:"id" doc:"Repository ID"`
	Identifier string `json:"identifier" doc:"Canonical identifier"`
	URL        string `json:"url" doc:"Clone URL"`
	Directory  string `json:"directory" doc:"Sub-path holding tag documents"`
}

// RepositoryOutput wraps a repository response for Huma.
type RepositoryOutput struct {
	Body RepositoryResponse
}

// RepositoryMetaResponse contains descriptive repository metadata.
type RepositoryMetaResponse struct {
	Name        string   `json:"name,omitempty" doc:"Display name"`
	Description string   `json:"description,omitempty" doc:"Description"`
	Public      bool     `json:"public" doc:"Flagged public by the repository owners"`
	Language    string   `json:"language,omitempty" doc:"Content language"`
	Categories  []string `json:"categories,omitempty" doc:"Repository-level categories"`
}

// RepositoryDataResponse contains sync bookkeeping.
type RepositoryDataResponse struct {
	Updated  time.Time `json:"updated" doc:"Last successful sync"`
	Checked  time.Time `json:"checked" doc:"Last check, successful or not"`
	Revision string    `json:"revision,omitempty" doc:"Last fully synced revision"`
}

// RepositoryDetailResponse contains a repository with metadata and sync state.
type RepositoryDetailResponse struct {
	RepositoryResponse
	Meta RepositoryMetaResponse `json:"meta" doc:"Descriptive metadata"`
	Data RepositoryDataResponse `json:"data" doc:"Sync bookkeeping"`
}

// RepositoryDetailOutput wraps the repository detail response for Huma.
type RepositoryDetailOutput struct {
	Body RepositoryDetailResponse
}

// ListRepositoriesResponse contains a list of repositories.
type ListRepositoriesResponse struct {
	Repositories []RepositoryResponse `json:"repositories" doc:"Registered repositories"`
}

// ListRepositoriesOutput wraps the repository list for Huma.
type ListRepositoriesOutput struct {
	Body ListRepositoriesResponse
}

// GetRepositoryInput contains parameters for single-repository lookups.
type GetRepositoryInput struct {
	ID string `path:"id" doc:"Repository ID"`
}

// RepositoryTagResponse is one tag owned by a repository.
type RepositoryTagResponse struct {
	ID   int64  `json:"id" doc:"Tag ID"`
	Name string `json:"name" doc:"Tag name"`
}

// ListRepositoryTagsResponse contains a repository's tags.
type ListRepositoryTagsResponse struct {
	Tags []RepositoryTagResponse `json:"tags" doc:"Tags owned by the repository"`
}

// ListRepositoryTagsOutput wraps the repository tag list for Huma.
type ListRepositoryTagsOutput struct {
	Body ListRepositoryTagsResponse
}

// === Handlers ===

func (s *Server) handleCreateRepository(ctx context.Context, input *CreateRepositoryInput) (*RepositoryOutput, error) {
	repo, err := s.services.Repository.AddRepository(ctx, input.Body.Identifier)
	if err != nil {
		return nil, err
	}

	return &RepositoryOutput{Body: repositoryResponse(repo)}, nil
}

func (s *Server) handleListRepositories(ctx context.Context, _ *struct{}) (*ListRepositoriesOutput, error) {
	repos, err := s.services.Repository.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}
	return &ListRepositoriesOutput{Body: ListRepositoriesResponse{Repositories: repositoryResponses(repos)}}, nil
}

func (s *Server) handleListPublicRepositories(ctx context.Context, _ *struct{}) (*ListRepositoriesOutput, error) {
	repos, err := s.services.Repository.ListPublicRepositories(ctx)
	if err != nil {
		return nil, err
	}
	return &ListRepositoriesOutput{Body: ListRepositoriesResponse{Repositories: repositoryResponses(repos)}}, nil
}

func (s *Server) handleGetRepository(ctx context.Context, input *GetRepositoryInput) (*RepositoryDetailOutput, error) {
	repo, err := s.services.Repository.GetRepository(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	meta, err := s.services.Repository.GetMeta(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	data, err := s.services.Repository.GetData(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &RepositoryDetailOutput{
		Body: RepositoryDetailResponse{
			RepositoryResponse: repositoryResponse(repo),
			Meta: RepositoryMetaResponse{
				Name:        meta.Name,
				Description: meta.Description,
				Public:      meta.Public,
				Language:    meta.Language,
				Categories:  meta.Categories,
			},
			Data: RepositoryDataResponse{
				Updated:  data.Updated,
				Checked:  data.Checked,
				Revision: data.Revision,
			},
		},
	}, nil
}

func (s *Server) handleDeleteRepository(ctx context.Context, input *GetRepositoryInput) (*struct{}, error) {
	if err := s.services.Repository.DeleteRepository(ctx, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleListRepositoryTags(ctx context.Context, input *GetRepositoryInput) (*ListRepositoryTagsOutput, error) {
	tags, err := s.services.Repository.ListTags(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	resp := make([]RepositoryTagResponse, len(tags))
	for i, t := range tags {
		resp[i] = RepositoryTagResponse{ID: t.ID, Name: t.Name}
	}

	return &ListRepositoryTagsOutput{Body: ListRepositoryTagsResponse{Tags: resp}}, nil
}

func repositoryResponse(repo *domain.Repository) RepositoryResponse {
	return RepositoryResponse{
		ID:         repo.ID,
		Identifier: repo.Identifier.String(),
		URL:        repo.URL,
		Directory:  repo.Directory,
	}
}

func repositoryResponses(repos []*domain.Repository) []RepositoryResponse {
	resp := make([]RepositoryResponse, len(repos))
	for i, r := range repos {
		resp[i] = repositoryResponse(r)
	}
	return resp
}
