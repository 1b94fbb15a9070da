// Package storage defines the local persistence abstraction backing the LifeOS store.
package storage

import "time"

// KeyMetadata describes one stored key.
type KeyMetadata struct {
	Key       string    `json:"key"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is a key/value store for JSON documents plus a flat attachment area.
type Provider interface {
	// Keys returns metadata for every stored key.
	Keys() ([]KeyMetadata, error)
	// Get returns the raw bytes stored under key. Missing keys wrap os.ErrNotExist.
	Get(key string) ([]byte, error)
	// Put atomically replaces the value stored under key.
	Put(key string, value []byte) error
	// Delete removes key.
	Delete(key string) error
	// ReadAttachment returns the bytes of a stored attachment.
	ReadAttachment(name string) ([]byte, error)
	// WriteAttachment atomically stores an attachment.
	WriteAttachment(name string, data []byte) error
	// AttachmentPath returns the absolute path of an attachment.
	AttachmentPath(name string) (string, error)
}
