package index

import (
	"os"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "lifeos-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM entries`).Scan(&count); err != nil {
		t.Fatalf("entries table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM refs`).Scan(&count); err != nil {
		t.Fatalf("refs table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	e := Entry{
		Kind:      KindNote,
		ID:        "2026-03-14",
		Date:      "2026-03-14",
		Title:     "Pi day",
		Body:      "Baked a pie.",
		Tags:      []string{"baking"},
		Checksum:  "abc123",
		UpdatedAt: time.Now(),
	}
	if err := db.Upsert(e, []string{"2026-03-13"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	cs, err := db.GetChecksum(KindNote, "2026-03-14")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
	if cs, _ := db.GetChecksum(KindTask, "2026-03-14"); cs != "" {
		t.Errorf("checksum leaked across kinds: %q", cs)
	}
}

func TestBacklinks(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(Entry{Kind: KindNote, ID: "2026-03-15", Date: "2026-03-15", Checksum: "1"}, []string{"2026-03-14"})
	_ = db.Upsert(Entry{Kind: KindCheckIn, ID: "2026-03-16", Date: "2026-03-16", Checksum: "2"}, []string{"2026-03-14"})

	bl, err := db.Backlinks("2026-03-14")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 2 {
		t.Fatalf("expected 2 backlinks, got %d", len(bl))
	}
	if bl[0].Kind != KindNote || bl[1].Kind != KindCheckIn {
		t.Errorf("backlinks = %+v", bl)
	}
}

func TestDelete(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(Entry{Kind: KindTask, ID: "1", Checksum: "x"}, []string{"target"})

	if err := db.Delete(KindTask, "1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	cs, _ := db.GetChecksum(KindTask, "1")
	if cs != "" {
		t.Errorf("deleted entry still has checksum %q", cs)
	}
	bl, _ := db.Backlinks("target")
	if len(bl) != 0 {
		t.Errorf("expected 0 backlinks after delete, got %d", len(bl))
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(Entry{Kind: KindNote, ID: "d", Title: "Old", Checksum: "1"}, []string{"x"})
	_ = db.Upsert(Entry{Kind: KindNote, ID: "d", Title: "New", Checksum: "2", Tags: []string{"new"}}, []string{"y"})

	cs, _ := db.GetChecksum(KindNote, "d")
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	if bl, _ := db.Backlinks("x"); len(bl) != 0 {
		t.Error("old ref should be removed on upsert")
	}
	if bl, _ := db.Backlinks("y"); len(bl) != 1 {
		t.Error("new ref should exist")
	}
	if n, _ := db.Count(); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(Entry{Kind: KindNote, ID: "2026-03-14", Date: "2026-03-14", Title: "Search Me", Checksum: "1", Body: "uniqueword appears here"}, nil)
	_ = db.Upsert(Entry{Kind: KindTask, ID: "7", Date: "2026-03-14", Title: "unrelated", Checksum: "2"}, nil)

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Kind != KindNote || results[0].ID != "2026-03-14" {
		t.Errorf("search results = %+v, want 1 note hit", results)
	}
}
