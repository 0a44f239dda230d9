// Package tagparse parses tag documents: a YAML front-matter block followed
// by body content, plus the derivation of file metadata from commit history.
package tagparse

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tagvaultapp/tagvault-server/internal/errors"
)

// PageMarker is the in-body token splitting long content into pages.
const PageMarker = "<new_page>"

// delimiter is a front-matter delimiter line.
const delimiter = "---"

// StringList decodes either a YAML scalar or a YAML sequence into a slice.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	case yaml.SequenceNode:
		var s []string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = StringList(s)
		return nil
	default:
		return fmt.Errorf("cannot decode %v node into string list", value.Kind)
	}
}

// RawTagMeta is the fixed front-matter schema of a tag document.
// Absent lists decode as empty lists, never nil checks for callers to make.
type RawTagMeta struct {
	ID       string     `yaml:"id"`
	Tag      string     `yaml:"tag"`
	Alias    StringList `yaml:"alias"`
	Category StringList `yaml:"category"`
	Image    string     `yaml:"image"`
}

// Document is a parsed tag document.
type Document struct {
	Meta    RawTagMeta
	Content string
}

// Parse parses raw file content into a document. The front-matter block must
// open on the first line and close on a subsequent line, both consisting of
// exactly three hyphens. Documents missing the block or the required id/tag
// fields fail with MalformedTagDocument.
func Parse(content string) (*Document, error) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delimiter {
		return nil, errors.MalformedDocument("id")
	}

	closing := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delimiter {
			closing = i
			break
		}
	}
	if closing == -1 {
		return nil, errors.ErrMalformedDocument.WithCause(fmt.Errorf("unterminated front matter block"))
	}

	var meta RawTagMeta
	block := strings.Join(lines[1:closing], "\n")
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return nil, errors.ErrMalformedDocument.WithCause(fmt.Errorf("decode front matter: %w", err))
	}

	meta.ID = strings.TrimSpace(meta.ID)
	meta.Tag = strings.TrimSpace(meta.Tag)
	if meta.ID == "" {
		return nil, errors.MalformedDocument("id")
	}
	if meta.Tag == "" {
		return nil, errors.MalformedDocument("tag")
	}
	meta.Alias = dedup(meta.Alias)
	if meta.Alias == nil {
		meta.Alias = StringList{}
	}
	if meta.Category == nil {
		meta.Category = StringList{}
	}

	// The body must never carry a delimiter line of its own.
	var body []string
	for _, line := range lines[closing+1:] {
		if strings.TrimSpace(line) == delimiter {
			continue
		}
		body = append(body, line)
	}

	return &Document{
		Meta:    meta,
		Content: strings.TrimSpace(strings.Join(body, "\n")),
	}, nil
}

// SplitPages splits body content on the page-break marker. Every returned
// segment is trimmed, non-empty, and free of the marker; a non-empty body
// without markers yields exactly one segment. A body that is empty, or
// blank around its markers, yields no segments at all.
func SplitPages(content string) []string {
	parts := strings.Split(content, PageMarker)
	pages := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			pages = append(pages, part)
		}
	}
	return pages
}

// dedup collapses duplicates while preserving first-occurrence order.
func dedup(values StringList) StringList {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
