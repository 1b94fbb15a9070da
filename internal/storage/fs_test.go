package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempData(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestPutAndGet(t *testing.T) {
	s := tempData(t)
	content := []byte(`[{"id":"1"}]`)
	if err := s.Put("tasks", content); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get("tasks")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestGetMissingIsNotExist(t *testing.T) {
	s := tempData(t)
	_, err := s.Get("nothing")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempData(t)
	_ = s.Put("notes", []byte("[]"))
	if err := s.Delete("notes"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get("notes"); err == nil {
		t.Error("expected error reading deleted key")
	}
	if err := s.Delete("notes"); err != nil {
		t.Errorf("deleting a missing key should be a no-op: %v", err)
	}
}

func TestKeys(t *testing.T) {
	s := tempData(t)
	_ = s.Put("tasks", []byte("[]"))
	_ = s.Put("notes", []byte("[]"))
	_ = os.WriteFile(filepath.Join(s.root, "readme.txt"), []byte("not a key"), 0o644)
	_ = s.WriteAttachment("photo.png", []byte("png"))

	items, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2 (%+v)", len(items), items)
	}
	for _, it := range items {
		if it.Checksum == "" {
			t.Errorf("key %q has empty checksum", it.Key)
		}
	}
}

func TestInvalidKeysRejected(t *testing.T) {
	s := tempData(t)
	for _, k := range []string{"../escape", "a/b", "", "tasks.json", "/etc/passwd"} {
		if err := s.Put(k, []byte("x")); err == nil {
			t.Errorf("expected error for key %q", k)
		}
		if _, err := s.Get(k); err == nil {
			t.Errorf("expected error reading key %q", k)
		}
	}
}

func TestAttachmentTraversalBlocked(t *testing.T) {
	s := tempData(t)
	for _, name := range []string{"../secret.json", "../../etc/passwd", "a/b.png", ".hidden", ""} {
		if err := s.WriteAttachment(name, []byte("x")); err == nil {
			t.Errorf("expected error for attachment %q", name)
		}
	}
}

func TestAttachmentRoundTrip(t *testing.T) {
	s := tempData(t)
	if err := s.WriteAttachment("day.jpg", []byte("jpeg-bytes")); err != nil {
		t.Fatalf("WriteAttachment: %v", err)
	}
	got, err := s.ReadAttachment("day.jpg")
	if err != nil {
		t.Fatalf("ReadAttachment: %v", err)
	}
	if string(got) != "jpeg-bytes" {
		t.Errorf("content = %q", got)
	}
	p, _ := s.AttachmentPath("day.jpg")
	if filepath.Dir(p) != filepath.Join(s.root, attachmentDir) {
		t.Errorf("attachment stored at %q", p)
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempData(t)
	_ = s.Put("settings", []byte(`{"theme":"dark"}`))
	if err := s.Put("settings", []byte(`{"theme":"light"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, _ := s.Get("settings")
	if string(got) != `{"theme":"light"}` {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".lifeos-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestKeyFromPath(t *testing.T) {
	root := "/data"
	cases := []struct {
		path string
		key  string
		ok   bool
	}{
		{"/data/tasks.json", "tasks", true},
		{"/data/attachments/x.json", "", false},
		{"/data/.lifeos-tmp-123", "", false},
		{"/data/notes.txt", "", false},
	}
	for _, c := range cases {
		key, ok := KeyFromPath(root, c.path)
		if ok != c.ok || key != c.key {
			t.Errorf("KeyFromPath(%q) = (%q, %v), want (%q, %v)", c.path, key, ok, c.key, c.ok)
		}
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/lifeos-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "lifeos-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
