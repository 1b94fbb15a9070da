//go:build sqlite_fts5

package index

import (
	"strings"
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM entries_fts`).Scan(&count); err != nil {
		t.Fatalf("entries_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	e := Entry{
		Kind:     KindNote,
		ID:       "2026-03-14",
		Date:     "2026-03-14",
		Title:    "Long run",
		Body:     "Ran along the river and felt powerful the whole way.",
		Tags:     []string{"running"},
		Checksum: "f1",
	}
	if err := db.Upsert(e, nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != "2026-03-14" || results[0].Date != "2026-03-14" {
		t.Errorf("result = %+v", results[0])
	}
	if !strings.Contains(results[0].Snippet, "<b>powerful</b>") {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
}

func TestFTS5_DeleteRemovesRow(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(Entry{Kind: KindTask, ID: "1", Title: "quarterly taxes", Checksum: "1"}, nil)
	_ = db.Delete(KindTask, "1")
	results, err := db.Search("quarterly", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("deleted entry still searchable: %+v", results)
	}
}
