package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRepositoryEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/repositories", map[string]any{
		"identifier": "github:example/tags",
	})
	require.Equal(t, 200, resp.Code)

	var body RepositoryResponse
	decodeBody(t, resp.Body.Bytes(), &body)
	assert.Equal(t, "github:example/tags", body.Identifier)
	assert.Equal(t, "https://github.com/example/tags.git", body.URL)
	assert.Equal(t, "tags", body.Directory)
	assert.NotEmpty(t, body.ID)

	// Registering the same identifier twice conflicts.
	resp = ts.api.Post("/api/v1/repositories", map[string]any{
		"identifier": "github:example/tags",
	})
	require.Equal(t, 409, resp.Code)

	var apiErr APIError
	decodeBody(t, resp.Body.Bytes(), &apiErr)
	assert.Equal(t, "ALREADY_EXISTS", apiErr.Code)

	// Malformed identifiers fail validation.
	resp = ts.api.Post("/api/v1/repositories", map[string]any{
		"identifier": "not-an-identifier",
	})
	assert.Equal(t, 400, resp.Code)
}

func TestListAndGetRepositoryEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	seedRepository(t, ts.store, "repo-1", "github:example/tags", "", 0)
	seedRepository(t, ts.store, "repo-2", "gitlab:example/docs", "", 0)

	resp := ts.api.Get("/api/v1/repositories")
	require.Equal(t, 200, resp.Code)

	var list ListRepositoriesResponse
	decodeBody(t, resp.Body.Bytes(), &list)
	assert.Len(t, list.Repositories, 2)

	resp = ts.api.Get("/api/v1/repositories/repo-1")
	require.Equal(t, 200, resp.Code)

	var detail RepositoryDetailResponse
	decodeBody(t, resp.Body.Bytes(), &detail)
	assert.Equal(t, "github:example/tags", detail.Identifier)
	assert.Empty(t, detail.Data.Revision, "no sync has run yet")

	resp = ts.api.Get("/api/v1/repositories/missing")
	assert.Equal(t, 404, resp.Code)
}

func TestListPublicRepositoriesEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	seedRepository(t, ts.store, "repo-1", "github:example/tags", "", 0)
	seedRepository(t, ts.store, "repo-2", "github:example/hidden", "", 0)

	require.NoError(t, ts.store.UpdateRepositoryMeta(t.Context(), "repo-1", repositoryMeta(true)))

	resp := ts.api.Get("/api/v1/repositories/public")
	require.Equal(t, 200, resp.Code)

	var list ListRepositoriesResponse
	decodeBody(t, resp.Body.Bytes(), &list)
	require.Len(t, list.Repositories, 1)
	assert.Equal(t, "repo-1", list.Repositories[0].ID)
}

func TestDeleteRepositoryEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	seedRepository(t, ts.store, "repo-1", "github:example/tags", "guild-1", 1)
	seedTag(t, ts.store, "repo-1", "doc-1", "greeting", "Hello!")

	resp := ts.api.Delete("/api/v1/repositories/repo-1")
	require.Equal(t, 204, resp.Code)

	resp = ts.api.Get("/api/v1/repositories/repo-1")
	assert.Equal(t, 404, resp.Code)

	resp = ts.api.Delete("/api/v1/repositories/repo-1")
	assert.Equal(t, 404, resp.Code)
}

func TestListRepositoryTagsEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	seedRepository(t, ts.store, "repo-1", "github:example/tags", "", 0)
	seedTag(t, ts.store, "repo-1", "doc-1", "greeting", "Hello!")
	seedTag(t, ts.store, "repo-1", "doc-2", "farewell", "Bye!")

	resp := ts.api.Get("/api/v1/repositories/repo-1/tags")
	require.Equal(t, 200, resp.Code)

	var list ListRepositoryTagsResponse
	decodeBody(t, resp.Body.Bytes(), &list)
	require.Len(t, list.Tags, 2)
	assert.Equal(t, "farewell", list.Tags[0].Name)
	assert.Equal(t, "greeting", list.Tags[1].Name)
}
