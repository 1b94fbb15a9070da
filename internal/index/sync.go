package index

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/lifeos/internal/checksum"
	"github.com/starford/lifeos/internal/models"
	"github.com/starford/lifeos/internal/parser"
	"github.com/starford/lifeos/internal/store"
)

// Source is the read side of the local store.
type Source interface {
	Tasks() ([]models.Task, error)
	Notes() ([]models.DailyNote, error)
	CheckIns() ([]models.CheckIn, error)
	Reminders() ([]models.Reminder, error)
	MonthlyFocuses() ([]models.MonthlyFocus, error)
	Conversation() ([]models.ConversationMessage, error)
}

var _ Source = (*store.Store)(nil)

// kindOfKey maps storage keys to the entry kind they hold.
var kindOfKey = map[string]Kind{
	store.KeyTasks:        KindTask,
	store.KeyNotes:        KindNote,
	store.KeyCheckIns:     KindCheckIn,
	store.KeyReminders:    KindReminder,
	store.KeyFocus:        KindFocus,
	store.KeyConversation: KindMessage,
}

// KindForKey returns the entry kind stored under a storage key.
func KindForKey(key string) (Kind, bool) {
	k, ok := kindOfKey[key]
	return k, ok
}

type indexed struct {
	entry Entry
	refs  []string
}

// Sync brings every kind up to date with the store.
func Sync(db *DB, src Source, logger *slog.Logger) error {
	var errs []error
	for _, kind := range []Kind{KindTask, KindNote, KindCheckIn, KindReminder, KindFocus, KindMessage} {
		if _, err := SyncKind(db, src, kind, logger); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SyncKind reconciles one kind:
//   - new/changed records are upserted
//   - records gone from the store are deleted from the index
//
// It returns the number of entries that changed.
func SyncKind(db *DB, src Source, kind Kind, logger *slog.Logger) (int, error) {
	items, err := entriesOf(src, kind)
	if err != nil {
		return 0, fmt.Errorf("index: load %s: %w", kind, err)
	}
	checksums, err := db.Checksums(kind)
	if err != nil {
		return 0, err
	}

	changed := 0
	present := make(map[string]struct{}, len(items))
	for _, it := range items {
		present[it.entry.ID] = struct{}{}
		if checksums[it.entry.ID] == it.entry.Checksum {
			continue
		}
		if err := db.Upsert(it.entry, it.refs); err != nil {
			logger.Warn("sync: index failed",
				slog.String("kind", string(kind)),
				slog.String("id", it.entry.ID),
				slog.String("error", err.Error()))
			continue
		}
		changed++
		logger.Debug("sync: indexed", slog.String("kind", string(kind)), slog.String("id", it.entry.ID))
	}

	for id := range checksums {
		if _, ok := present[id]; ok {
			continue
		}
		if err := db.Delete(kind, id); err != nil {
			logger.Warn("sync: delete failed", slog.String("kind", string(kind)), slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		changed++
		logger.Debug("sync: removed stale", slog.String("kind", string(kind)), slog.String("id", id))
	}
	return changed, nil
}

func entriesOf(src Source, kind Kind) ([]indexed, error) {
	switch kind {
	case KindTask:
		tasks, err := src.Tasks()
		return build(tasks, err, taskEntry)
	case KindNote:
		notes, err := src.Notes()
		return build(notes, err, noteEntry)
	case KindCheckIn:
		items, err := src.CheckIns()
		return build(items, err, checkInEntry)
	case KindReminder:
		items, err := src.Reminders()
		return build(items, err, reminderEntry)
	case KindFocus:
		items, err := src.MonthlyFocuses()
		return build(items, err, focusEntry)
	case KindMessage:
		items, err := src.Conversation()
		return build(items, err, messageEntry)
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

func build[T any](items []T, err error, fn func(T) indexed) ([]indexed, error) {
	if err != nil {
		return nil, err
	}
	out := make([]indexed, 0, len(items))
	for _, it := range items {
		e := fn(it)
		cs, err := checksum.Of(it)
		if err != nil {
			return nil, err
		}
		e.entry.Checksum = cs
		out = append(out, e)
	}
	return out, nil
}

func taskEntry(t models.Task) indexed {
	var tags []string
	if t.Category != "" {
		tags = []string{t.Category}
	}
	return indexed{entry: Entry{Kind: KindTask, ID: t.ID, Date: t.Date, Title: t.Title, Tags: tags, UpdatedAt: t.CreatedAt}}
}

func noteEntry(n models.DailyNote) indexed {
	res := parser.Parse(n.Content)
	title := res.Title
	if title == "" {
		title = n.Date
	}
	return indexed{
		entry: Entry{Kind: KindNote, ID: n.Date, Date: n.Date, Title: title, Body: res.Body, Tags: res.Tags, UpdatedAt: n.UpdatedAt},
		refs:  res.Refs,
	}
}

func checkInEntry(c models.CheckIn) indexed {
	res := parser.Parse(c.Note)
	return indexed{
		entry: Entry{Kind: KindCheckIn, ID: c.Date, Date: c.Date, Title: "Check-in " + c.Date, Body: res.Body, Tags: res.Tags, UpdatedAt: c.Timestamp},
		refs:  res.Refs,
	}
}

func reminderEntry(r models.Reminder) indexed {
	date := ""
	if r.DueAt != nil {
		date = r.DueAt.Format(store.DateLayout)
	}
	return indexed{entry: Entry{Kind: KindReminder, ID: r.ID, Date: date, Title: r.Title, Tags: []string{r.Urgency}, UpdatedAt: r.CreatedAt}}
}

func focusEntry(f models.MonthlyFocus) indexed {
	return indexed{entry: Entry{Kind: KindFocus, ID: f.Month, Date: f.Month, Title: f.Title, Body: f.Description}}
}

func messageEntry(m models.ConversationMessage) indexed {
	title, _, _ := strings.Cut(strings.TrimSpace(m.Content), "\n")
	if r := []rune(title); len(r) > 80 {
		title = string(r[:80])
	}
	return indexed{entry: Entry{
		Kind:      KindMessage,
		ID:        m.ID,
		Date:      m.Timestamp.Format(store.DateLayout),
		Title:     title,
		Body:      m.Content,
		Tags:      []string{m.Role},
		UpdatedAt: m.Timestamp,
	}}
}
