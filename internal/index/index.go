package index

// Index defines the search index operations used by the presentation layers.
type Index interface {
	Upsert(e Entry, refs []string) error
	Delete(kind Kind, id string) error
	GetChecksum(kind Kind, id string) (string, error)
	Checksums(kind Kind) (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Backlinks(target string) ([]EntryRef, error)
	Count() (int, error)
	Close() error
}

// Verify *DB satisfies Index at compile time.
var _ Index = (*DB)(nil)
