package store

import (
	"errors"
	"os"
)

// LoadCookies returns the persisted session cookie jar, or nil if none was saved.
func (s *Store) LoadCookies() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.provider.Get(KeyCookies)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// SaveCookies persists the session cookie jar. Cookie writes do not fire the
// change callback.
func (s *Store) SaveCookies(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(data) == 0 {
		return s.provider.Delete(KeyCookies)
	}
	return s.provider.Put(KeyCookies, data)
}
