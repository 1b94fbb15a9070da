package store

import (
	"context"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lifeos/internal/apperr"
	"github.com/starford/lifeos/internal/models"
)

// Outcome reports whether a remote-backed write reached the backend.
type Outcome int

const (
	// Local means no backend is configured or the record is local-only.
	Local Outcome = iota
	// Synced means the backend accepted the write.
	Synced
	// Degraded means the backend failed and the write only exists locally.
	Degraded
)

func (o Outcome) String() string {
	switch o {
	case Synced:
		return "synced"
	case Degraded:
		return "degraded"
	default:
		return "local"
	}
}

// Result carries the value of a remote-backed operation and how durable it is.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	// Cause is the backend error that forced a Degraded outcome.
	Cause error
}

// Durable reports whether the backend holds the result.
func (r Result[T]) Durable() bool { return r.Outcome == Synced }

// ReminderInput holds the fields accepted when creating a reminder.
type ReminderInput struct {
	Title   string     `json:"title"`
	Urgency string     `json:"urgency,omitempty"`
	DueAt   *time.Time `json:"dueAt,omitempty"`
	Repeat  string     `json:"repeat,omitempty"`
}

// Validate validates the reminder input.
func (in ReminderInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Urgency, validation.In(models.UrgencyLow, models.UrgencyMedium, models.UrgencyHigh)),
	)
}

func validReminderPatch(p models.ReminderPatch) error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&p.Urgency, validation.NilOrNotEmpty, validation.In(models.UrgencyLow, models.UrgencyMedium, models.UrgencyHigh)),
		validation.Field(&p.NotificationCount, validation.Min(0)),
	)
}

func reminderID(r models.Reminder) string { return r.ID }

// Reminders returns the locally cached reminders.
func (s *Store) Reminders() ([]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadSlice[models.Reminder](s, KeyReminders)
}

// LoadReminders refreshes the cache from the backend. Writes that have not
// reached the backend survive: local-only records are kept, pending edits win
// over the backend's copy and pending deletes stay deleted. When the backend
// fails the cached list is returned with a Degraded outcome.
func (s *Store) LoadReminders(ctx context.Context) (Result[[]models.Reminder], error) {
	if s.remote == nil {
		items, err := s.Reminders()
		return Result[[]models.Reminder]{Value: items, Outcome: Local}, err
	}

	remote, rerr := s.remote.ListReminders(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	local, err := loadSlice[models.Reminder](s, KeyReminders)
	if err != nil {
		return Result[[]models.Reminder]{}, err
	}
	if rerr != nil {
		s.degraded("list reminders", rerr)
		return Result[[]models.Reminder]{Value: local, Outcome: Degraded, Cause: rerr}, nil
	}

	t, err := s.loadTombstones()
	if err != nil {
		return Result[[]models.Reminder]{}, err
	}
	merged := reconcile(remote, local, t[KeyReminders], reminderID,
		func(r models.Reminder) bool { return r.LocalOnly },
		func(r models.Reminder) bool { return r.Pending })
	if err := s.save(KeyReminders, merged); err != nil {
		return Result[[]models.Reminder]{}, err
	}
	return Result[[]models.Reminder]{Value: merged, Outcome: Synced}, nil
}

// CreateReminder writes the reminder to the backend and caches the backend's
// record. If the backend fails, a local-only record is stored instead.
func (s *Store) CreateReminder(ctx context.Context, in ReminderInput) (Result[models.Reminder], error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Urgency == "" {
		in.Urgency = models.UrgencyMedium
	}
	if err := in.Validate(); err != nil {
		return Result[models.Reminder]{}, invalid(err)
	}

	r := models.Reminder{
		Title:     in.Title,
		Urgency:   in.Urgency,
		DueAt:     in.DueAt,
		Repeat:    in.Repeat,
		CreatedAt: s.now(),
	}

	out := Result[models.Reminder]{Outcome: Local}
	if s.remote != nil {
		created, err := s.remote.CreateReminder(ctx, r)
		if err == nil {
			r = created
			out.Outcome = Synced
		} else {
			s.degraded("create reminder", err)
			out.Outcome, out.Cause = Degraded, err
			r.LocalOnly = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := loadSlice[models.Reminder](s, KeyReminders)
	if err != nil {
		return Result[models.Reminder]{}, err
	}
	if r.ID == "" {
		r.ID = s.newID()
	}
	items = append(items, r)
	if err := s.save(KeyReminders, items); err != nil {
		return Result[models.Reminder]{}, err
	}
	out.Value = r
	return out, nil
}

// UpdateReminder merges patch into the reminder with id. Local-only reminders
// are only updated locally. If the backend fails the edit is kept as Pending.
func (s *Store) UpdateReminder(ctx context.Context, id string, patch models.ReminderPatch) (Result[models.Reminder], error) {
	if err := validReminderPatch(patch); err != nil {
		return Result[models.Reminder]{}, invalid(err)
	}

	cached, err := s.reminder(id)
	if err != nil {
		return Result[models.Reminder]{}, err
	}

	out := Result[models.Reminder]{Outcome: Local}
	next := cached
	patch.Apply(&next)
	if s.remote != nil && !cached.LocalOnly {
		send := patch
		if cached.Pending {
			send = fullPatch(next)
		}
		updated, err := s.remote.UpdateReminder(ctx, id, send)
		if err == nil {
			next = updated
			out.Outcome = Synced
		} else {
			s.degraded("update reminder", err)
			out.Outcome, out.Cause = Degraded, err
			next.Pending = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := loadSlice[models.Reminder](s, KeyReminders)
	if err != nil {
		return Result[models.Reminder]{}, err
	}
	i := indexByID(items, id, reminderID)
	if i < 0 {
		return Result[models.Reminder]{}, apperr.ErrNotFound
	}
	items[i] = next
	if err := s.save(KeyReminders, items); err != nil {
		return Result[models.Reminder]{}, err
	}
	out.Value = next
	return out, nil
}

// RecordNotification increments the notification count of a reminder.
func (s *Store) RecordNotification(ctx context.Context, id string) (Result[models.Reminder], error) {
	r, err := s.reminder(id)
	if err != nil {
		return Result[models.Reminder]{}, err
	}
	n := r.NotificationCount + 1
	return s.UpdateReminder(ctx, id, models.ReminderPatch{NotificationCount: &n})
}

// DeleteReminder removes the reminder from the backend and the cache. The
// local copy is removed even when the backend call fails; the delete is then
// queued for PushPending.
func (s *Store) DeleteReminder(ctx context.Context, id string) (Result[struct{}], error) {
	cached, err := s.reminder(id)
	if err != nil {
		return Result[struct{}]{}, err
	}

	out := Result[struct{}]{Outcome: Local}
	if s.remote != nil && !cached.LocalOnly {
		if err := s.remote.DeleteReminder(ctx, id); err != nil {
			s.degraded("delete reminder", err)
			out.Outcome, out.Cause = Degraded, err
		} else {
			out.Outcome = Synced
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := loadSlice[models.Reminder](s, KeyReminders)
	if err != nil {
		return Result[struct{}]{}, err
	}
	if out.Outcome == Degraded {
		if err := s.addTombstone(KeyReminders, id); err != nil {
			return Result[struct{}]{}, err
		}
	}
	if i := indexByID(items, id, reminderID); i >= 0 {
		if err := s.save(KeyReminders, removeAt(items, i)); err != nil {
			return Result[struct{}]{}, err
		}
	}
	return out, nil
}

func (s *Store) reminder(id string) (models.Reminder, error) {
	items, err := s.Reminders()
	if err != nil {
		return models.Reminder{}, err
	}
	i := indexByID(items, id, reminderID)
	if i < 0 {
		return models.Reminder{}, apperr.ErrNotFound
	}
	return items[i], nil
}

func (s *Store) degraded(op string, err error) {
	s.logger.Warn("backend unavailable, keeping local copy",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}
