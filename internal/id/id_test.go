package id

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	got, err := Generate("repo")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(got, "repo-") {
		t.Errorf("expected repo- prefix, got %q", got)
	}
	if len(got) != len("repo-")+21 {
		t.Errorf("expected 21-char nanoid, got %q (len %d)", got, len(got))
	}
}

func TestGenerateUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := MustGenerate("repo")
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}
