package tagparse

import (
	"strings"
	"testing"

	"github.com/tagvaultapp/tagvault-server/internal/errors"
)

const testDocument = `---
id: test tag
tag: test
alias: [test1, test2]
category: [test]
image: https://avatars.example.com/u/46890129
---
This is example text for a text tag.
More text here.`

func TestParse(t *testing.T) {
	doc, err := Parse(testDocument)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if doc.Meta.ID != "test tag" {
		t.Errorf("ID: got %q, want %q", doc.Meta.ID, "test tag")
	}
	if doc.Meta.Tag != "test" {
		t.Errorf("Tag: got %q, want %q", doc.Meta.Tag, "test")
	}
	if len(doc.Meta.Alias) != 2 || doc.Meta.Alias[0] != "test1" || doc.Meta.Alias[1] != "test2" {
		t.Errorf("Alias: got %v", doc.Meta.Alias)
	}
	if len(doc.Meta.Category) != 1 || doc.Meta.Category[0] != "test" {
		t.Errorf("Category: got %v", doc.Meta.Category)
	}
	if doc.Meta.Image != "https://avatars.example.com/u/46890129" {
		t.Errorf("Image: got %q", doc.Meta.Image)
	}
	if !strings.Contains(doc.Content, "This is example text for a text tag") {
		t.Errorf("Content: got %q", doc.Content)
	}
}

func TestParseContentFreeOfDelimiters(t *testing.T) {
	doc, err := Parse(testDocument + "\n---\ntrailing")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for _, line := range strings.Split(doc.Content, "\n") {
		if strings.TrimSpace(line) == "---" {
			t.Errorf("content contains a delimiter line: %q", doc.Content)
		}
	}
	if !strings.Contains(doc.Content, "trailing") {
		t.Errorf("content after a stray delimiter should survive: %q", doc.Content)
	}
}

func TestParseScalarAlias(t *testing.T) {
	doc, err := Parse("---\nid: x\ntag: y\nalias: single\ncategory: cat\n---\nbody")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Meta.Alias) != 1 || doc.Meta.Alias[0] != "single" {
		t.Errorf("scalar alias: got %v", doc.Meta.Alias)
	}
	if len(doc.Meta.Category) != 1 || doc.Meta.Category[0] != "cat" {
		t.Errorf("scalar category: got %v", doc.Meta.Category)
	}
}

func TestParseDuplicateAliasesCollapsed(t *testing.T) {
	doc, err := Parse("---\nid: x\ntag: y\nalias: [b, a, b, a, c]\n---\nbody")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"b", "a", "c"}
	if len(doc.Meta.Alias) != len(want) {
		t.Fatalf("alias: got %v, want %v", doc.Meta.Alias, want)
	}
	for i := range want {
		if doc.Meta.Alias[i] != want[i] {
			t.Errorf("alias[%d]: got %q, want %q (order must be preserved)", i, doc.Meta.Alias[i], want[i])
		}
	}
}

func TestParseDefaultsToEmptyLists(t *testing.T) {
	doc, err := Parse("---\nid: x\ntag: y\n---\nbody")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Meta.Alias == nil || len(doc.Meta.Alias) != 0 {
		t.Errorf("absent alias should be an empty list, got %v", doc.Meta.Alias)
	}
	if doc.Meta.Category == nil || len(doc.Meta.Category) != 0 {
		t.Errorf("absent category should be an empty list, got %v", doc.Meta.Category)
	}
}

func TestParseMissingRequiredFields(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"no front matter", "just some text"},
		{"empty input", ""},
		{"missing id", "---\ntag: y\n---\nbody"},
		{"missing tag", "---\nid: x\n---\nbody"},
		{"blank id", "---\nid: \"  \"\ntag: y\n---\nbody"},
		{"unterminated block", "---\nid: x\ntag: y\nbody"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.input)
			if !errors.Is(err, errors.ErrMalformedDocument) {
				t.Errorf("expected MalformedTagDocument, got %v", err)
			}
		})
	}
}

func TestSplitPages(t *testing.T) {
	var sb strings.Builder
	for i := range 8 {
		if i > 0 {
			sb.WriteString("\n" + PageMarker + "\n")
		}
		sb.WriteString("page content ")
		sb.WriteByte(byte('a' + i))
	}

	pages := SplitPages(sb.String())
	if len(pages) != 8 {
		t.Fatalf("expected 8 pages, got %d", len(pages))
	}
	for i, page := range pages {
		if strings.Contains(page, PageMarker) {
			t.Errorf("page %d contains the marker: %q", i, page)
		}
		if page == "" {
			t.Errorf("page %d is empty", i)
		}
		if page != strings.TrimSpace(page) {
			t.Errorf("page %d is not trimmed: %q", i, page)
		}
	}
}

func TestSplitPagesNoMarker(t *testing.T) {
	pages := SplitPages("  a single page of content\n")
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if pages[0] != "a single page of content" {
		t.Errorf("got %q", pages[0])
	}
}

func TestSplitPagesEmptyBody(t *testing.T) {
	for _, content := range []string{"", "  \n", PageMarker, "\n" + PageMarker + "\n"} {
		if pages := SplitPages(content); len(pages) != 0 {
			t.Errorf("SplitPages(%q): expected no pages, got %q", content, pages)
		}
	}
}

func TestSplitPagesRoundTrip(t *testing.T) {
	original := "first page\n" + PageMarker + "\nsecond page\n" + PageMarker + "\nthird page"
	pages := SplitPages(original)

	rejoined := strings.Join(pages, "\n"+PageMarker+"\n")
	if rejoined != strings.TrimSpace(original) {
		t.Errorf("round trip mismatch:\n got %q\nwant %q", rejoined, original)
	}
}
