// Package domain contains the core entities of the tagvault server.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Identifier names a tag repository as platform:user/repo with an optional
// sub-path, e.g. "github:chojoland/tags" or "github:chojoland/tags/docs".
type Identifier struct {
	Platform string
	User     string
	Repo     string
	Path     string
}

// ParseIdentifier parses an identifier string of the form
// platform:user/repo[/path]. The platform is lowercased, a leading slash on
// the path is stripped.
func ParseIdentifier(s string) (Identifier, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == '/' })
	// FieldsFunc collapses empty segments; require the original shape too.
	if !strings.Contains(s, ":") {
		return Identifier{}, fmt.Errorf("invalid identifier %q: missing platform separator", s)
	}
	switch len(parts) {
	case 3:
		return newIdentifier(parts[0], parts[1], parts[2], ""), nil
	case 4:
		return newIdentifier(parts[0], parts[1], parts[2], parts[3]), nil
	default:
		return Identifier{}, fmt.Errorf("invalid identifier %q: want platform:user/repo[/path]", s)
	}
}

func newIdentifier(platform, user, repo, path string) Identifier {
	return Identifier{
		Platform: strings.ToLower(platform),
		User:     user,
		Repo:     repo,
		Path:     strings.TrimPrefix(path, "/"),
	}
}

// String renders the canonical identifier form.
func (i Identifier) String() string {
	if i.Path != "" {
		return fmt.Sprintf("%s:%s/%s/%s", i.Platform, i.User, i.Repo, i.Path)
	}
	return fmt.Sprintf("%s:%s/%s", i.Platform, i.User, i.Repo)
}

// Name returns the short user/repo form used in qualified tag names.
func (i Identifier) Name() string {
	return fmt.Sprintf("%s/%s", i.User, i.Repo)
}

// CloneURL derives the anonymous https clone URL for known platforms.
func (i Identifier) CloneURL() (string, error) {
	switch i.Platform {
	case "github":
		return fmt.Sprintf("https://github.com/%s/%s.git", i.User, i.Repo), nil
	case "gitlab":
		return fmt.Sprintf("https://gitlab.com/%s/%s.git", i.User, i.Repo), nil
	case "codeberg":
		return fmt.Sprintf("https://codeberg.org/%s/%s.git", i.User, i.Repo), nil
	default:
		return "", fmt.Errorf("unknown platform %q", i.Platform)
	}
}

// Repository is a subscribed source of tag documents.
type Repository struct {
	ID         string     `json:"id"`
	URL        string     `json:"url"`
	Identifier Identifier `json:"identifier"`
	// Directory is the sub-path within the repository holding tag documents.
	Directory string `json:"directory"`
}

// RepositoryMeta is descriptive metadata parsed from the repository info file.
type RepositoryMeta struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Public      bool     `json:"public"`
	Language    string   `json:"language"`
	Categories  []string `json:"categories,omitempty"`
}

// PublicListable reports whether the repository qualifies for the public
// discovery listing: flagged public with a non-empty description and language.
func (m RepositoryMeta) PublicListable() bool {
	return m.Public && m.Description != "" && m.Language != ""
}

// RepositoryData tracks sync bookkeeping for a repository.
type RepositoryData struct {
	// Updated is when the last successful sync advanced the revision.
	Updated time.Time `json:"updated"`
	// Checked is when the repository was last checked, successful or not.
	Checked time.Time `json:"checked"`
	// Revision is the last fully synced revision; empty before the first sync.
	Revision string `json:"revision"`
}

// Subscription links a guild to a repository with a priority.
// Higher priority wins name collisions.
type Subscription struct {
	GuildID      string `json:"guild_id"`
	RepositoryID string `json:"repository_id"`
	Priority     int    `json:"priority"`
}
