package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagvaultapp/tagvault-server/internal/domain"
	"github.com/tagvaultapp/tagvault-server/internal/search"
	"github.com/tagvaultapp/tagvault-server/internal/service"
	"github.com/tagvaultapp/tagvault-server/internal/store"
	"github.com/tagvaultapp/tagvault-server/internal/store/sqlite"
)

// testServer bundles the API server with its backing store for tests.
type testServer struct {
	*Server
	api   humatest.TestAPI
	store *sqlite.Store
	index *search.Index
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	index, err := search.NewIndex(search.Options{DataPath: t.TempDir(), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	services := &Services{
		Tag:        service.NewTagService(st, index, logger),
		Repository: service.NewRepositoryService(st, nil, index, logger),
		Sync:       nil,
	}

	s := NewServer(st, index, services, nil, logger)

	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, s.api),
		store:  st,
		index:  index,
	}
}

// seedRepository creates a repository and subscribes the guild to it.
func seedRepository(t *testing.T, st *sqlite.Store, id, identifier, guildID string, priority int) {
	t.Helper()

	ident, err := domain.ParseIdentifier(identifier)
	require.NoError(t, err)
	cloneURL, err := ident.CloneURL()
	require.NoError(t, err)

	require.NoError(t, st.CreateRepository(context.Background(), &domain.Repository{
		ID:         id,
		URL:        cloneURL,
		Identifier: ident,
		Directory:  "tags",
	}))
	if guildID != "" {
		require.NoError(t, st.Subscribe(context.Background(), guildID, id, priority))
	}
}

// seedTag reconciles one document into the repository and returns its id.
func seedTag(t *testing.T, st *sqlite.Store, repositoryID, documentID, name, content string) int64 {
	t.Helper()

	author := domain.Author{Name: "Lilly", Mail: "lilly@example.com"}
	when := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	result, err := st.Reconcile(context.Background(), repositoryID, store.ReconcileBatch{
		Documents: []domain.TagDocument{{
			DocumentID: documentID,
			Name:       name,
			Aliases:    []string{name + "-alias"},
			Categories: []string{"General"},
			Content:    content,
			Meta: domain.FileMeta{
				Created:      domain.CommitMeta{Author: author, When: when},
				Modified:     domain.CommitMeta{Author: author, When: when},
				Contributors: []domain.Author{author},
			},
		}},
	})
	require.NoError(t, err)
	require.Len(t, result.Tags, 1)
	return result.Tags[0].ID
}

func TestResolveTagEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	seedRepository(t, ts.store, "repo-1", "github:example/tags", "guild-1", 1)
	seedTag(t, ts.store, "repo-1", "doc-1", "greeting", "Hello!<new_page>Welcome!")

	resp := ts.api.Get("/api/v1/guilds/guild-1/tags/greeting")
	require.Equal(t, 200, resp.Code)

	var body TagResponse
	decodeBody(t, resp.Body.Bytes(), &body)
	assert.Equal(t, "greeting", body.Name)
	assert.Equal(t, "repo-1", body.RepositoryID)
	assert.Equal(t, []string{"Hello!", "Welcome!"}, body.Pages)

	// Aliases resolve too.
	resp = ts.api.Get("/api/v1/guilds/guild-1/tags/greeting-alias")
	assert.Equal(t, 200, resp.Code)

	// Unknown names are a 404 with a machine-readable code.
	resp = ts.api.Get("/api/v1/guilds/guild-1/tags/missing")
	require.Equal(t, 404, resp.Code)

	var apiErr APIError
	decodeBody(t, resp.Body.Bytes(), &apiErr)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)

	// Unsubscribed guilds see nothing.
	resp = ts.api.Get("/api/v1/guilds/guild-2/tags/greeting")
	assert.Equal(t, 404, resp.Code)
}

func TestTagDetailEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	seedRepository(t, ts.store, "repo-1", "github:example/tags", "guild-1", 1)
	tagID := seedTag(t, ts.store, "repo-1", "doc-1", "greeting", "Hello!")

	resp := ts.api.Get(fmt.Sprintf("/api/v1/guilds/guild-1/tags/%d/detail", tagID))
	require.Equal(t, 200, resp.Code)

	var body TagDetailResponse
	decodeBody(t, resp.Body.Bytes(), &body)
	assert.Equal(t, "greeting", body.Name)
	assert.Equal(t, "github:example/tags", body.Identifier)
	assert.Equal(t, []string{"greeting-alias"}, body.Aliases)
	assert.Equal(t, []string{"General"}, body.Categories)
	require.Len(t, body.Authors, 1)
	assert.Equal(t, "Lilly", body.Authors[0].Name)
	assert.Equal(t, "Lilly", body.CreatedBy.Name)
}

func TestTagUsageAndRankingEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	seedRepository(t, ts.store, "repo-1", "github:example/tags", "guild-1", 1)
	first := seedTag(t, ts.store, "repo-1", "doc-1", "greeting", "Hello!")
	seedTag(t, ts.store, "repo-1", "doc-2", "farewell", "Bye!")

	for range 3 {
		resp := ts.api.Post(fmt.Sprintf("/api/v1/guilds/guild-1/tags/%d/usage", first))
		require.Equal(t, 204, resp.Code)
	}

	resp := ts.api.Get("/api/v1/guilds/guild-1/tag-ranking")
	require.Equal(t, 200, resp.Code)

	var body TagRankingResponse
	decodeBody(t, resp.Body.Bytes(), &body)
	require.Len(t, body.Tags, 2)
	assert.Equal(t, RankedTagResponse{Rank: 1, Name: "greeting", Views: 3}, body.Tags[0])
	assert.Equal(t, RankedTagResponse{Rank: 2, Name: "farewell", Views: 0}, body.Tags[1])

	// Negative pages fail validation.
	resp = ts.api.Get("/api/v1/guilds/guild-1/tag-ranking?page=-1")
	assert.Equal(t, 400, resp.Code)
}

func TestCompleteTagsEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	seedRepository(t, ts.store, "repo-1", "github:example/tags", "guild-1", 1)
	seedTag(t, ts.store, "repo-1", "doc-1", "greeting", "Hello!")
	seedTag(t, ts.store, "repo-1", "doc-2", "farewell", "Bye!")

	resp := ts.api.Get("/api/v1/guilds/guild-1/tag-completions?q=gree")
	require.Equal(t, 200, resp.Code)

	var body CompleteTagsResponse
	decodeBody(t, resp.Body.Bytes(), &body)
	require.Len(t, body.Tags, 1)
	assert.Equal(t, "greeting", body.Tags[0].Name)
}

func TestTagCountAndRandomEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	seedRepository(t, ts.store, "repo-1", "github:example/tags", "guild-1", 1)
	seedTag(t, ts.store, "repo-1", "doc-1", "greeting", "Hello!")

	resp := ts.api.Get("/api/v1/guilds/guild-1/tag-count")
	require.Equal(t, 200, resp.Code)

	var count TagCountResponse
	decodeBody(t, resp.Body.Bytes(), &count)
	assert.Equal(t, 1, count.Count)

	resp = ts.api.Get("/api/v1/guilds/guild-1/random-tag")
	require.Equal(t, 200, resp.Code)

	var tag TagResponse
	decodeBody(t, resp.Body.Bytes(), &tag)
	assert.Equal(t, "greeting", tag.Name)

	// A guild without tags gets a 404 instead of an empty tag.
	resp = ts.api.Get("/api/v1/guilds/guild-2/random-tag")
	assert.Equal(t, 404, resp.Code)
}

func TestSearchTagsEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	seedRepository(t, ts.store, "repo-1", "github:example/tags", "guild-1", 1)
	tagID := seedTag(t, ts.store, "repo-1", "doc-1", "greeting", "A warm welcome for newcomers")

	require.NoError(t, ts.index.IndexTags([]*search.TagDocument{
		search.NewTagDocument(domain.Tag{
			ID:           tagID,
			RepositoryID: "repo-1",
			Name:         "greeting",
			Content:      "A warm welcome for newcomers",
		}, []string{"hi"}, []string{"General"}),
	}))

	resp := ts.api.Get("/api/v1/guilds/guild-1/tag-search?q=" + url.QueryEscape("welcome"))
	require.Equal(t, 200, resp.Code)

	var body SearchTagsResponse
	decodeBody(t, resp.Body.Bytes(), &body)
	require.Equal(t, uint64(1), body.Total)
	assert.Equal(t, tagID, body.Hits[0].TagID)
	assert.Equal(t, "greeting", body.Hits[0].Name)

	// Guilds without subscriptions find nothing.
	resp = ts.api.Get("/api/v1/guilds/guild-2/tag-search?q=welcome")
	require.Equal(t, 200, resp.Code)
	decodeBody(t, resp.Body.Bytes(), &body)
	assert.Equal(t, uint64(0), body.Total)

	// A missing query fails validation.
	resp = ts.api.Get("/api/v1/guilds/guild-1/tag-search")
	assert.Equal(t, 400, resp.Code)
}
