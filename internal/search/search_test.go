package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagvaultapp/tagvault-server/internal/domain"
)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()

	index, err := NewIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	return index
}

func indexTestTags(t *testing.T, index *Index) {
	t.Helper()

	err := index.IndexTags([]*TagDocument{
		NewTagDocument(domain.Tag{
			ID: 1, RepositoryID: "repo-a", Name: "greeting",
			Content: "Welcome to the server, have a look around.",
		}, []string{"hello", "hi"}, []string{"Social"}),
		NewTagDocument(domain.Tag{
			ID: 2, RepositoryID: "repo-a", Name: "rules",
			Content: "Be kind. No spam.",
		}, nil, []string{"Moderation"}),
		NewTagDocument(domain.Tag{
			ID: 3, RepositoryID: "repo-b", Name: "greeting",
			Content: "Hello from the other repository.",
		}, nil, nil),
	})
	require.NoError(t, err)
}

func TestNewIndex(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestIndexAndSearch(t *testing.T) {
	index := setupTestIndex(t)
	indexTestTags(t, index)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	result, err := index.Search(context.Background(), Params{
		Query:         "greeting",
		RepositoryIDs: []string{"repo-a", "repo-b"},
		Limit:         10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Total)

	// Scoping to one repository hides the other's tag.
	result, err = index.Search(context.Background(), Params{
		Query:         "greeting",
		RepositoryIDs: []string{"repo-b"},
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, int64(3), result.Hits[0].TagID)
	assert.Equal(t, "repo-b", result.Hits[0].RepositoryID)
}

func TestSearchMatchesAliasesAndContent(t *testing.T) {
	index := setupTestIndex(t)
	indexTestTags(t, index)

	result, err := index.Search(context.Background(), Params{
		Query:         "hello",
		RepositoryIDs: []string{"repo-a"},
		Limit:         10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, int64(1), result.Hits[0].TagID, "alias match should rank first")

	result, err = index.Search(context.Background(), Params{
		Query:         "spam",
		RepositoryIDs: []string{"repo-a"},
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "rules", result.Hits[0].Name)
}

func TestSearchNoSubscriptions(t *testing.T) {
	index := setupTestIndex(t)
	indexTestTags(t, index)

	result, err := index.Search(context.Background(), Params{
		Query: "greeting",
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), result.Total)
}

func TestSearchCategoryFilter(t *testing.T) {
	index := setupTestIndex(t)
	indexTestTags(t, index)

	result, err := index.Search(context.Background(), Params{
		RepositoryIDs: []string{"repo-a"},
		Categories:    []string{"Moderation"},
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "rules", result.Hits[0].Name)
}

func TestDeleteTags(t *testing.T) {
	index := setupTestIndex(t)
	indexTestTags(t, index)

	require.NoError(t, index.DeleteTags([]int64{1, 2}))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestDeleteRepository(t *testing.T) {
	index := setupTestIndex(t)
	indexTestTags(t, index)

	require.NoError(t, index.DeleteRepository("repo-a"))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	result, err := index.Search(context.Background(), Params{
		Query:         "greeting",
		RepositoryIDs: []string{"repo-a", "repo-b"},
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "repo-b", result.Hits[0].RepositoryID)
}

func TestReindexUpdatesDocument(t *testing.T) {
	index := setupTestIndex(t)
	indexTestTags(t, index)

	err := index.IndexTags([]*TagDocument{
		NewTagDocument(domain.Tag{
			ID: 2, RepositoryID: "repo-a", Name: "guidelines",
			Content: "Be kind.",
		}, nil, nil),
	})
	require.NoError(t, err)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count, "reindexing must not duplicate")

	result, err := index.Search(context.Background(), Params{
		Query:         "guidelines",
		RepositoryIDs: []string{"repo-a"},
		Limit:         10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, int64(2), result.Hits[0].TagID)
}
