package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a search query. RepositoryIDs scopes the search to the
// repositories a guild subscribes to; empty means nothing is visible.
type Params struct {
	Query         string
	RepositoryIDs []string
	Categories    []string

	Limit  int
	Offset int

	Highlight bool
}

// DefaultParams returns sensible defaults.
func DefaultParams() Params {
	return Params{
		Limit:     20,
		Offset:    0,
		Highlight: true,
	}
}

// Result holds one page of search hits.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// Hit is a single matching tag.
type Hit struct {
	TagID        int64             `json:"tag_id"`
	RepositoryID string            `json:"repository_id"`
	Score        float64           `json:"score"`
	Name         string            `json:"name"`
	Categories   []string          `json:"categories,omitempty"`
	Highlights   map[string]string `json:"highlights,omitempty"`
}

// Search executes a query against the tag index.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	searchQuery := buildSearchQuery(params)
	searchRequest := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)
	searchRequest.SortBy([]string{"-_score", "name"})
	searchRequest.Fields = []string{"id", "repository_id", "name", "categories"}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("name")
		searchRequest.Highlight.AddField("content")
	}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		h := Hit{Score: hit.Score}

		tagID, err := parseDocumentID(hit.ID)
		if err != nil {
			return nil, err
		}
		h.TagID = tagID

		if r, ok := hit.Fields["repository_id"].(string); ok {
			h.RepositoryID = r
		}
		if n, ok := hit.Fields["name"].(string); ok {
			h.Name = n
		}
		switch c := hit.Fields["categories"].(type) {
		case string:
			h.Categories = []string{c}
		case []interface{}:
			for _, v := range c {
				if name, ok := v.(string); ok {
					h.Categories = append(h.Categories, name)
				}
			}
		}

		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, h)
	}

	return result, nil
}

func parseDocumentID(id string) (int64, error) {
	raw, ok := strings.CutPrefix(id, "tag_")
	if !ok {
		return 0, fmt.Errorf("unexpected document id %q", id)
	}
	return strconv.ParseInt(raw, 10, 64)
}

// buildSearchQuery constructs the Bleve query from params. Name matches
// outrank alias matches, which outrank content matches; a fuzzy name query
// tolerates one typo.
func buildSearchQuery(params Params) query.Query {
	var queries []query.Query

	if params.Query != "" {
		textQueries := []query.Query{}

		nameMatch := bleve.NewMatchQuery(params.Query)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)
		textQueries = append(textQueries, nameMatch)

		aliasMatch := bleve.NewMatchQuery(params.Query)
		aliasMatch.SetField("aliases")
		aliasMatch.SetBoost(2.0)
		textQueries = append(textQueries, aliasMatch)

		contentMatch := bleve.NewMatchQuery(params.Query)
		contentMatch.SetField("content")
		textQueries = append(textQueries, contentMatch)

		fuzzyQuery := bleve.NewFuzzyQuery(params.Query)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("name")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		if len(params.Query) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefixQuery.SetField("name")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	// Guild scoping: only tags of subscribed repositories are visible.
	repoQueries := make([]query.Query, len(params.RepositoryIDs))
	for i, id := range params.RepositoryIDs {
		tq := bleve.NewTermQuery(id)
		tq.SetField("repository_id")
		repoQueries[i] = tq
	}
	if len(repoQueries) == 0 {
		// No subscriptions, nothing matches.
		return bleve.NewMatchNoneQuery()
	}
	queries = append(queries, bleve.NewDisjunctionQuery(repoQueries...))

	if len(params.Categories) > 0 {
		categoryQueries := make([]query.Query, len(params.Categories))
		for i, name := range params.Categories {
			cq := bleve.NewTermQuery(name)
			cq.SetField("categories")
			categoryQueries[i] = cq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(categoryQueries...))
	}

	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}
