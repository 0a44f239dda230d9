// Package search provides full-text search over tag documents using Bleve.
// It complements the exact name resolution of the store with fuzzy and
// content matching, scoped to the repositories a guild subscribes to.
package search

import (
	"strconv"

	"github.com/tagvaultapp/tagvault-server/internal/domain"
)

// TagDocument is the indexed form of a tag. Aliases and categories are
// denormalized into the document so one query covers them all.
type TagDocument struct {
	ID           string   `json:"id"`
	RepositoryID string   `json:"repository_id"`
	Name         string   `json:"name"`
	Aliases      []string `json:"aliases,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	Content      string   `json:"content,omitempty"`
}

// DocumentID renders the index key for a persisted tag id.
func DocumentID(tagID int64) string {
	return "tag_" + strconv.FormatInt(tagID, 10)
}

// NewTagDocument builds an index document from a persisted tag and its
// linked names.
func NewTagDocument(tag domain.Tag, aliases, categories []string) *TagDocument {
	return &TagDocument{
		ID:           DocumentID(tag.ID),
		RepositoryID: tag.RepositoryID,
		Name:         tag.Name,
		Aliases:      aliases,
		Categories:   categories,
		Content:      tag.Content,
	}
}

// ToMap converts the document to a map with lowercase field names so they
// match the index mapping. Bleve would otherwise use the capitalized Go
// field names.
func (d *TagDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":            d.ID,
		"repository_id": d.RepositoryID,
		"name":          d.Name,
	}
	if len(d.Aliases) > 0 {
		m["aliases"] = d.Aliases
	}
	if len(d.Categories) > 0 {
		m["categories"] = d.Categories
	}
	if d.Content != "" {
		m["content"] = d.Content
	}
	return m
}
