package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/lifeos/internal/checksum"
)

const (
	keySuffix     = ".json"
	attachmentDir = "attachments"
	tmpPattern    = ".lifeos-tmp-*"
)

var keyRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FS implements Provider backed by the local file system.
// Each key lives in <root>/<key>.json; attachments live in <root>/attachments.
type FS struct {
	root string // absolute path to data directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute data directory.
func (f *FS) Root() string {
	return f.root
}

// KeyFromPath maps a file path inside the data directory back to its key.
// ok is false for anything that is not a key file (attachments, temp files).
func KeyFromPath(root, path string) (key string, ok bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.Contains(rel, string(os.PathSeparator)) {
		return "", false
	}
	if !strings.HasSuffix(rel, keySuffix) {
		return "", false
	}
	key = strings.TrimSuffix(rel, keySuffix)
	return key, keyRe.MatchString(key)
}

func (f *FS) keyPath(key string) (string, error) {
	if !keyRe.MatchString(key) {
		return "", fmt.Errorf("storage: invalid key: %q", key)
	}
	return filepath.Join(f.root, key+keySuffix), nil
}

// AttachmentPath validates that name is a plain file name (no separators,
// no traversal) and returns its absolute path under the attachments dir.
func (f *FS) AttachmentPath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("storage: attachment name is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.HasPrefix(cleaned, ".") {
		return "", fmt.Errorf("storage: invalid attachment name: %s", name)
	}
	dir := filepath.Join(f.root, attachmentDir)
	abs := filepath.Join(dir, cleaned)
	if !strings.HasPrefix(abs, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes attachments directory: %s", name)
	}
	return abs, nil
}

// Keys lists every key file in the data directory.
func (f *FS) Keys() ([]KeyMetadata, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []KeyMetadata
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, ok := KeyFromPath(f.root, filepath.Join(f.root, e.Name()))
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("storage: stat %s: %w", key, err)
		}
		data, err := os.ReadFile(filepath.Join(f.root, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("storage: read %s: %w", key, err)
		}
		out = append(out, KeyMetadata{
			Key:       key,
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
	}
	return out, nil
}

// Get returns the bytes stored under key.
func (f *FS) Get(key string) ([]byte, error) {
	abs, err := f.keyPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

// Put atomically replaces the value stored under key.
func (f *FS) Put(key string, value []byte) error {
	abs, err := f.keyPath(key)
	if err != nil {
		return err
	}
	return writeAtomic(abs, value)
}

// Delete removes key. Deleting a missing key is not an error.
func (f *FS) Delete(key string) error {
	abs, err := f.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// ReadAttachment returns the bytes of a stored attachment.
func (f *FS) ReadAttachment(name string) ([]byte, error) {
	abs, err := f.AttachmentPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read attachment %s: %w", name, err)
	}
	return data, nil
}

// WriteAttachment atomically stores an attachment.
func (f *FS) WriteAttachment(name string, data []byte) error {
	abs, err := f.AttachmentPath(name)
	if err != nil {
		return err
	}
	return writeAtomic(abs, data)
}

// writeAtomic writes content: tmp file → fsync → rename.
func writeAtomic(abs string, content []byte) error {
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
