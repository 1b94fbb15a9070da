package parser

import (
	"strings"
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	r := Parse("---\ntitle: Good day\nmood: 4\ntags:\n  - gratitude\n  - family\n---\nWalked with #family today.\n")
	if r.Title != "Good day" {
		t.Errorf("title = %q, want %q", r.Title, "Good day")
	}
	if len(r.Tags) != 2 || r.Tags[0] != "gratitude" || r.Tags[1] != "family" {
		t.Errorf("tags = %v, want [gratitude family]", r.Tags)
	}
	if r.Body != "Walked with #family today.\n" {
		t.Errorf("body = %q", r.Body)
	}
	if r.Frontmatter["mood"] != 4 {
		t.Errorf("mood = %v", r.Frontmatter["mood"])
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r := Parse("# Monday\nSome text.\n")
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Monday" {
		t.Errorf("title = %q, want %q", r.Title, "Monday")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	r := Parse("---\n: invalid: yaml: {{{\n---\nBody\n")
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
	if !strings.Contains(r.Body, "Body") {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_TitleFromFirstLine(t *testing.T) {
	r := Parse("\n\n  Finished the book club reading  \nmore text")
	if r.Title != "Finished the book club reading" {
		t.Errorf("title = %q", r.Title)
	}

	long := strings.Repeat("word ", 40)
	r = Parse(long)
	if n := len([]rune(r.Title)); n > maxTitleLen+1 {
		t.Errorf("title has %d runes", n)
	}
	if !strings.HasSuffix(r.Title, "…") {
		t.Errorf("long title not elided: %q", r.Title)
	}
}

func TestExtractRefs(t *testing.T) {
	refs := extractRefs("See [[2026-03-13]] and [[2026-03-13|yesterday]] and [[Trip plan]] and [[ ]]")
	want := []string{"2026-03-13", "Trip plan"}
	if len(refs) != len(want) {
		t.Fatalf("refs = %v, want %v", refs, want)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("refs[%d] = %q, want %q", i, refs[i], want[i])
		}
	}
}

func TestExtractTags(t *testing.T) {
	tags := extractTags("#run in the morning, then #work/deep and #run again. Not a tag: a#b #1x", nil)
	want := []string{"run", "work/deep"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, tags[i], want[i])
		}
	}
}
