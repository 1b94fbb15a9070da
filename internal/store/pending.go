package store

import (
	"context"
	"errors"
	"slices"

	"github.com/starford/lifeos/internal/apperr"
	"github.com/starford/lifeos/internal/models"
)

// tombstones maps a collection key to the ids deleted locally while the
// backend was unreachable.
type tombstones map[string][]string

// Callers must hold s.mu.
func (s *Store) loadTombstones() (tombstones, error) {
	t := tombstones{}
	if err := s.load(KeyTombstones, &t); err != nil {
		return nil, err
	}
	return t, nil
}

// Callers must hold s.mu.
func (s *Store) addTombstone(key, id string) error {
	t, err := s.loadTombstones()
	if err != nil {
		return err
	}
	if slices.Contains(t[key], id) {
		return nil
	}
	t[key] = append(t[key], id)
	return s.persist(KeyTombstones, t)
}

// Callers must hold s.mu.
func (s *Store) clearTombstones(key string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	t, err := s.loadTombstones()
	if err != nil {
		return err
	}
	t[key] = slices.DeleteFunc(t[key], func(id string) bool { return slices.Contains(ids, id) })
	if len(t[key]) == 0 {
		delete(t, key)
	}
	return s.persist(KeyTombstones, t)
}

// Deleted returns the ids of key's collection whose deletion has not reached
// the backend yet.
func (s *Store) Deleted(key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.loadTombstones()
	if err != nil {
		return nil, err
	}
	return slices.Clone(t[key]), nil
}

// reconcile merges a backend list into the cache. Ids deleted locally stay
// deleted, local edits marked pending win over the backend copy, and
// local-only records are appended.
func reconcile[T any](remote, local []T, deleted []string, idOf func(T) string, localOnly, pending func(T) bool) []T {
	edited := make(map[string]T)
	for _, it := range local {
		if pending(it) && !localOnly(it) {
			edited[idOf(it)] = it
		}
	}
	merged := make([]T, 0, len(remote)+len(local))
	for _, it := range remote {
		id := idOf(it)
		if slices.Contains(deleted, id) {
			continue
		}
		if e, ok := edited[id]; ok {
			it = e
		}
		merged = append(merged, it)
	}
	for _, it := range local {
		if localOnly(it) {
			merged = append(merged, it)
		}
	}
	return merged
}

// fullPatch sets every field of r, so a replay carries all local edits.
func fullPatch(r models.Reminder) models.ReminderPatch {
	title, urgency, repeat := r.Title, r.Urgency, r.Repeat
	done, count := r.Done, r.NotificationCount
	p := models.ReminderPatch{
		Title:             &title,
		Urgency:           &urgency,
		Repeat:            &repeat,
		Done:              &done,
		NotificationCount: &count,
	}
	if r.DueAt != nil {
		due := *r.DueAt
		p.DueAt = &due
	}
	return p
}

// PushPending replays writes that only reached the cache: queued deletes,
// pending edits of backend records, and local-only tasks, reminders and
// categories. It returns how many writes the backend accepted; failures are
// joined into the returned error and stay queued for the next call.
func (s *Store) PushPending(ctx context.Context) (int, error) {
	if s.remote == nil {
		return 0, nil
	}
	var (
		total int
		errs  []error
	)
	for _, push := range []func(context.Context) (int, error){s.pushTasks, s.pushReminders, s.pushCategories} {
		n, err := push(ctx)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

func (s *Store) pushTasks(ctx context.Context) (int, error) {
	deleted, err := s.Deleted(KeyTasks)
	if err != nil {
		return 0, err
	}
	cached, err := s.Tasks()
	if err != nil {
		return 0, err
	}

	var (
		errs    []error
		cleared []string
		dropped = make(map[string]bool)
		synced  = make(map[string]models.Task)
	)
	for _, id := range deleted {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := s.remote.DeleteTask(ctx, id); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		cleared = append(cleared, id)
	}
	for _, t := range cached {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		switch {
		case t.LocalOnly:
			send := t
			send.ID, send.LocalOnly, send.Pending = "", false, false
			created, err := s.remote.CreateTask(ctx, send)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			synced[t.ID] = created
		case t.Pending:
			updated, err := s.remote.UpdateTask(ctx, t.ID, taskFields(t))
			if errors.Is(err, apperr.ErrNotFound) {
				dropped[t.ID] = true
				continue
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
			synced[t.ID] = updated
		}
	}
	if len(cleared) == 0 && len(synced) == 0 && len(dropped) == 0 {
		return 0, errors.Join(errs...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.clearTombstones(KeyTasks, cleared); err != nil {
		return 0, err
	}
	items, err := loadSlice[models.Task](s, KeyTasks)
	if err != nil {
		return 0, err
	}
	kept := items[:0]
	for _, t := range items {
		if dropped[t.ID] {
			continue
		}
		if up, ok := synced[t.ID]; ok {
			t = up
		}
		kept = append(kept, t)
	}
	if err := s.save(KeyTasks, kept); err != nil {
		return 0, err
	}
	return len(cleared) + len(synced), errors.Join(errs...)
}

func (s *Store) pushReminders(ctx context.Context) (int, error) {
	deleted, err := s.Deleted(KeyReminders)
	if err != nil {
		return 0, err
	}
	cached, err := s.Reminders()
	if err != nil {
		return 0, err
	}

	var (
		errs    []error
		cleared []string
		dropped = make(map[string]bool)
		synced  = make(map[string]models.Reminder)
	)
	for _, id := range deleted {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := s.remote.DeleteReminder(ctx, id); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		cleared = append(cleared, id)
	}
	for _, r := range cached {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		switch {
		case r.LocalOnly:
			send := r
			send.ID, send.LocalOnly, send.Pending = "", false, false
			created, err := s.remote.CreateReminder(ctx, send)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			synced[r.ID] = created
		case r.Pending:
			updated, err := s.remote.UpdateReminder(ctx, r.ID, fullPatch(r))
			if errors.Is(err, apperr.ErrNotFound) {
				dropped[r.ID] = true
				continue
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
			synced[r.ID] = updated
		}
	}
	if len(cleared) == 0 && len(synced) == 0 && len(dropped) == 0 {
		return 0, errors.Join(errs...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.clearTombstones(KeyReminders, cleared); err != nil {
		return 0, err
	}
	items, err := loadSlice[models.Reminder](s, KeyReminders)
	if err != nil {
		return 0, err
	}
	kept := items[:0]
	for _, r := range items {
		if dropped[r.ID] {
			continue
		}
		if up, ok := synced[r.ID]; ok {
			r = up
		}
		kept = append(kept, r)
	}
	if err := s.save(KeyReminders, kept); err != nil {
		return 0, err
	}
	return len(cleared) + len(synced), errors.Join(errs...)
}

func (s *Store) pushCategories(ctx context.Context) (int, error) {
	deleted, err := s.Deleted(KeyCategories)
	if err != nil {
		return 0, err
	}
	cached, err := s.Categories()
	if err != nil {
		return 0, err
	}

	var (
		errs    []error
		cleared []string
		created = make(map[string]models.Category)
	)
	for _, id := range deleted {
		if err := s.remote.DeleteCategory(ctx, id); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		cleared = append(cleared, id)
	}
	for _, c := range cached {
		if !c.LocalOnly {
			continue
		}
		send := c
		send.ID, send.LocalOnly = "", false
		got, err := s.remote.CreateCategory(ctx, send)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		created[c.ID] = got
	}
	if len(cleared) == 0 && len(created) == 0 {
		return 0, errors.Join(errs...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.clearTombstones(KeyCategories, cleared); err != nil {
		return 0, err
	}
	items, err := loadSlice[models.Category](s, KeyCategories)
	if err != nil {
		return 0, err
	}
	for i, c := range items {
		if got, ok := created[c.ID]; ok {
			items[i] = got
		}
	}
	if err := s.save(KeyCategories, items); err != nil {
		return 0, err
	}
	return len(cleared) + len(created), errors.Join(errs...)
}
