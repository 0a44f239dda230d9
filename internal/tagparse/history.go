package tagparse

import (
	"github.com/tagvaultapp/tagvault-server/internal/domain"
)

// ResolveFileMeta derives creation and modification metadata from a
// document's commit history, ordered oldest to newest. The earliest entry
// becomes created, the latest modified, and every distinct (name, mail)
// author across the history is a contributor. An empty history means the
// file first appears in the revision being synced, so fallback (the
// metadata of that head commit) stands in for both ends.
func ResolveFileMeta(history []domain.CommitMeta, fallback domain.CommitMeta) domain.FileMeta {
	if len(history) == 0 {
		return domain.FileMeta{
			Created:      fallback,
			Modified:     fallback,
			Contributors: []domain.Author{fallback.Author},
		}
	}

	type identity struct{ name, mail string }
	seen := make(map[identity]bool, len(history))
	contributors := make([]domain.Author, 0, len(history))
	for _, c := range history {
		key := identity{c.Author.Name, c.Author.Mail}
		if !seen[key] {
			seen[key] = true
			contributors = append(contributors, c.Author)
		}
	}

	return domain.FileMeta{
		Created:      history[0],
		Modified:     history[len(history)-1],
		Contributors: contributors,
	}
}
