package domain

import "time"

// Tag is a persisted tag owned by exactly one repository.
type Tag struct {
	ID           int64  `json:"id"`
	RepositoryID string `json:"repository_id"`
	// DocumentID is the repository-scoped id declared in the document front matter.
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
}

// Author is a contributor identity derived from version history.
// Uniqueness is the exact (name, mail) pair.
type Author struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
	Mail string `json:"mail"`
}

// Category is a global, case-insensitively unique grouping name.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CommitMeta is the author and timestamp of one commit touching a document.
type CommitMeta struct {
	Author Author    `json:"author"`
	When   time.Time `json:"when"`
}

// FileMeta is creation/modification metadata derived from a document's
// commit history.
type FileMeta struct {
	Created      CommitMeta `json:"created"`
	Modified     CommitMeta `json:"modified"`
	Contributors []Author   `json:"contributors"`
}

// TagMeta is the per-tag metadata row.
type TagMeta struct {
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	CreatedBy  Author    `json:"created_by"`
	ModifiedAt time.Time `json:"modified_at"`
	ModifiedBy Author    `json:"modified_by"`
}

// TagDocument is a fully parsed tag document plus its resolved history,
// ready for reconciliation. It is transient and never persisted directly.
type TagDocument struct {
	DocumentID string   `json:"document_id"`
	Name       string   `json:"name"`
	Aliases    []string `json:"aliases,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Image      string   `json:"image,omitempty"`
	Content    string   `json:"content"`
	Meta       FileMeta `json:"meta"`
}

// RankedTag is one row of the guild usage ranking.
type RankedTag struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Views int    `json:"views"`
}

// CompletedTag is one autocomplete candidate. Name carries the repository
// qualifier for all but the top-ranked holder of a duplicated tag name.
type CompletedTag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
