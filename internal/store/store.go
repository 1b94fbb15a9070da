// Package store is the local, persisted mirror of LifeOS backend entities.
//
// Each entity class lives under one storage key as a JSON array. Reads and
// writes are synchronous; every mutation loads the collection, applies the
// change and persists it before returning, under a single mutex. When a Remote
// is configured, tasks, reminders and categories are mirrored to the backend and
// fall back to local-only records if the backend cannot be reached. Writes that
// only reached the cache survive reloads from the backend and are replayed by
// PushPending.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/starford/lifeos/internal/models"
	"github.com/starford/lifeos/internal/storage"
)

// Storage keys, one per entity class.
const (
	KeyTasks        = "tasks"
	KeyNotes        = "notes"
	KeyCheckIns     = "checkins"
	KeyReminders    = "reminders"
	KeyCategories   = "categories"
	KeyFocus        = "monthly_focus"
	KeyConversation = "conversation"
	KeySettings     = "settings"
	KeyCookies      = "session_cookies"
	// KeyTombstones holds ids deleted locally while the backend was unreachable.
	KeyTombstones = "tombstones"
)

// Date layouts used as keys.
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// Remote is the subset of the backend API the store reconciles against.
type Remote interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	UpdateTask(ctx context.Context, id string, fields map[string]any) (models.Task, error)
	MoveTask(ctx context.Context, id, newDate string) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error
	ListReminders(ctx context.Context) ([]models.Reminder, error)
	CreateReminder(ctx context.Context, r models.Reminder) (models.Reminder, error)
	UpdateReminder(ctx context.Context, id string, patch models.ReminderPatch) (models.Reminder, error)
	DeleteReminder(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, c models.Category) (models.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// ChangeFunc is called after a collection has been persisted.
type ChangeFunc func(key string)

// Option configures a Store.
type Option func(*Store)

// WithRemote enables backend mirroring for tasks, reminders and categories.
func WithRemote(r Remote) Option {
	return func(s *Store) { s.remote = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for degraded-mode warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithOnChange registers a callback fired after every persisted mutation.
func WithOnChange(fn ChangeFunc) Option {
	return func(s *Store) { s.onChange = fn }
}

// Store coordinates typed access to the persisted collections.
type Store struct {
	mu       sync.Mutex
	provider storage.Provider
	remote   Remote
	now      func() time.Time
	logger   *slog.Logger
	onChange ChangeFunc
	lastID   int64
}

// New creates a Store over provider.
func New(provider storage.Provider, opts ...Option) *Store {
	s := &Store{
		provider: provider,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the underlying storage provider.
func (s *Store) Provider() storage.Provider {
	return s.provider
}

// SetRemote attaches the backend after construction, for wiring where the
// remote itself depends on the store. Call it before the store is shared.
func (s *Store) SetRemote(r Remote) {
	s.remote = r
}

// HasRemote reports whether backend reconciliation is enabled.
func (s *Store) HasRemote() bool {
	return s.remote != nil
}

// newID returns a millisecond timestamp id, strictly increasing within the process.
// Callers must hold s.mu.
func (s *Store) newID() string {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

// load decodes the collection under key into out. A missing key leaves out untouched.
func (s *Store) load(key string, out any) error {
	data, err := s.provider.Get(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("store: decode %s: %w", key, err)
	}
	return nil
}

// save encodes v under key and fires the change callback.
func (s *Store) save(key string, v any) error {
	if err := s.persist(key, v); err != nil {
		return err
	}
	if s.onChange != nil {
		s.onChange(key)
	}
	return nil
}

// persist encodes v under key without notifying listeners.
func (s *Store) persist(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	return s.provider.Put(key, data)
}

// loadSlice is load for collection types; it never returns a nil slice.
func loadSlice[T any](s *Store, key string) ([]T, error) {
	var items []T
	if err := s.load(key, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func indexByID[T any](items []T, id string, idOf func(T) string) int {
	for i, it := range items {
		if idOf(it) == id {
			return i
		}
	}
	return -1
}

// removeAt deletes items[i] keeping the order of the rest.
func removeAt[T any](items []T, i int) []T {
	return append(items[:i], items[i+1:]...)
}
