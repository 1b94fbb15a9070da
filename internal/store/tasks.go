package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lifeos/internal/apperr"
	"github.com/starford/lifeos/internal/models"
)

const clockLayout = "15:04"

// TaskInput holds the fields accepted when creating a task.
type TaskInput struct {
	Title     string `json:"title"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime,omitempty"`
	Category  string `json:"category,omitempty"`
	Date      string `json:"date"`
}

// Validate validates the task input.
func (in TaskInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Date, validation.Required, validation.Date(DateLayout)),
		validation.Field(&in.StartTime, validation.Date(clockLayout)),
		validation.Field(&in.EndTime, validation.Date(clockLayout)),
	)
}

// TaskPatch holds a partial task update; nil fields are left unchanged.
type TaskPatch struct {
	Title     *string `json:"title,omitempty"`
	StartTime *string `json:"startTime,omitempty"`
	EndTime   *string `json:"endTime,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
	Category  *string `json:"category,omitempty"`
	Date      *string `json:"date,omitempty"`
}

// Validate validates the fields that are set. Titles are checked trimmed.
func (p TaskPatch) Validate() error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		p.Title = &title
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&p.Date, validation.NilOrNotEmpty, validation.Date(DateLayout)),
		validation.Field(&p.StartTime, validation.Date(clockLayout)),
		validation.Field(&p.EndTime, validation.Date(clockLayout)),
	)
}

func (p TaskPatch) apply(t *models.Task) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.StartTime != nil {
		t.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		t.EndTime = *p.EndTime
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
}

func taskID(t models.Task) string { return t.ID }

func invalid(err error) error {
	return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
}

// Tasks returns every task in insertion order.
func (s *Store) Tasks() ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadSlice[models.Task](s, KeyTasks)
}

// Task returns the task with id.
func (s *Store) Task(id string) (models.Task, error) {
	tasks, err := s.Tasks()
	if err != nil {
		return models.Task{}, err
	}
	i := indexByID(tasks, id, taskID)
	if i < 0 {
		return models.Task{}, apperr.ErrNotFound
	}
	return tasks[i], nil
}

// TasksForDate returns the tasks owned by date, ordered by start time.
func (s *Store) TasksForDate(date string) ([]models.Task, error) {
	return s.TasksInRange(date, date)
}

// TasksInRange returns tasks whose date lies in [from, to], ordered by date then start time.
func (s *Store) TasksInRange(from, to string) ([]models.Task, error) {
	all, err := s.Tasks()
	if err != nil {
		return nil, err
	}
	out := make([]models.Task, 0, len(all))
	for _, t := range all {
		if inRange(t.Date, from, to) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

// CreateTask validates in, assigns an id and appends the new task.
func (s *Store) CreateTask(in TaskInput) (models.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return models.Task{}, invalid(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := loadSlice[models.Task](s, KeyTasks)
	if err != nil {
		return models.Task{}, err
	}
	t := models.Task{
		ID:        s.newID(),
		Title:     in.Title,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Category:  in.Category,
		Date:      in.Date,
		CreatedAt: s.now(),
	}
	tasks = append(tasks, t)
	if err := s.save(KeyTasks, tasks); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// UpdateTask merges patch into the task with id.
func (s *Store) UpdateTask(id string, patch TaskPatch) (models.Task, error) {
	if err := patch.Validate(); err != nil {
		return models.Task{}, invalid(err)
	}
	return s.mutateTask(id, func(t *models.Task) { patch.apply(t) })
}

// ToggleTask flips the completion flag of the task with id.
func (s *Store) ToggleTask(id string) (models.Task, error) {
	return s.mutateTask(id, func(t *models.Task) { t.Completed = !t.Completed })
}

// MoveTask reschedules a task to newDate and records where it came from.
func (s *Store) MoveTask(id, newDate string) (models.Task, error) {
	if err := validation.Validate(newDate, validation.Required, validation.Date(DateLayout)); err != nil {
		return models.Task{}, invalid(err)
	}
	return s.mutateTask(id, func(t *models.Task) {
		if t.Date != newDate {
			t.MovedFrom = t.Date
			t.Date = newDate
		}
	})
}

// DeleteTask removes the task with id; the remaining tasks keep their order.
func (s *Store) DeleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := loadSlice[models.Task](s, KeyTasks)
	if err != nil {
		return err
	}
	i := indexByID(tasks, id, taskID)
	if i < 0 {
		return apperr.ErrNotFound
	}
	return s.save(KeyTasks, removeAt(tasks, i))
}

// PullTasks refreshes the cached tasks from the backend, keeping writes that
// have not reached it yet.
func (s *Store) PullTasks(ctx context.Context) ([]models.Task, error) {
	if s.remote == nil {
		return s.Tasks()
	}
	remote, err := s.remote.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	return s.mergeTasks(remote, func(models.Task) bool { return true })
}

// MergeTasksForDate reconciles the cached tasks of date with the backend's
// list for that date. Tasks of other dates are left alone.
func (s *Store) MergeTasksForDate(date string, remote []models.Task) ([]models.Task, error) {
	return s.mergeTasks(remote, func(t models.Task) bool { return t.Date == date })
}

// mergeTasks reconciles the cached tasks selected by in with remote.
func (s *Store) mergeTasks(remote []models.Task, in func(models.Task) bool) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, err := loadSlice[models.Task](s, KeyTasks)
	if err != nil {
		return nil, err
	}
	t, err := s.loadTombstones()
	if err != nil {
		return nil, err
	}
	onRemote := make(map[string]bool, len(remote))
	for _, task := range remote {
		onRemote[task.ID] = true
	}
	// A pending edit may have moved a backend task out of scope; it still
	// shadows the backend copy.
	var scoped, kept []models.Task
	for _, task := range cached {
		if in(task) || (task.Pending && onRemote[task.ID]) {
			scoped = append(scoped, task)
		} else {
			kept = append(kept, task)
		}
	}
	merged := reconcile(remote, scoped, t[KeyTasks], taskID,
		func(t models.Task) bool { return t.LocalOnly },
		func(t models.Task) bool { return t.Pending })
	if err := s.save(KeyTasks, append(kept, merged...)); err != nil {
		return nil, err
	}
	return merged, nil
}

// taskFields is the full state of t as sent to the backend.
func taskFields(t models.Task) map[string]any {
	return map[string]any{
		"title":     t.Title,
		"date":      t.Date,
		"startTime": t.StartTime,
		"endTime":   t.EndTime,
		"completed": t.Completed,
		"category":  t.Category,
		"movedFrom": t.MovedFrom,
	}
}

// PushNewTask sends a task created in the cache to the backend. On success
// the cached record takes the backend's id; otherwise it is kept local-only
// for PushPending.
func (s *Store) PushNewTask(ctx context.Context, t models.Task) (Result[models.Task], error) {
	if s.remote == nil {
		return Result[models.Task]{Value: t, Outcome: Local}, nil
	}
	send := t
	send.ID, send.LocalOnly, send.Pending = "", false, false
	out := Result[models.Task]{Outcome: Synced}
	next, err := s.remote.CreateTask(ctx, send)
	if err != nil {
		s.degraded("create task", err)
		out.Outcome, out.Cause = Degraded, err
		next = t
		next.LocalOnly = true
	}
	if out.Value, err = s.replaceTask(t.ID, next); err != nil {
		return Result[models.Task]{}, err
	}
	return out, nil
}

// PushTaskChange sends the cached state of t to the backend. A move without
// other pending edits uses the backend's move endpoint. If the backend fails
// the task is marked Pending. Local-only tasks wait for PushPending.
func (s *Store) PushTaskChange(ctx context.Context, t models.Task, moved bool) (Result[models.Task], error) {
	if s.remote == nil || t.LocalOnly {
		return Result[models.Task]{Value: t, Outcome: Local}, nil
	}
	var (
		next models.Task
		err  error
	)
	if moved && !t.Pending {
		next, err = s.remote.MoveTask(ctx, t.ID, t.Date)
	} else {
		next, err = s.remote.UpdateTask(ctx, t.ID, taskFields(t))
	}
	out := Result[models.Task]{Outcome: Synced}
	if err != nil {
		s.degraded("update task", err)
		out.Outcome, out.Cause = Degraded, err
		next = t
		next.Pending = true
	}
	if out.Value, err = s.replaceTask(t.ID, next); err != nil {
		return Result[models.Task]{}, err
	}
	return out, nil
}

// PushTaskDelete deletes a task, already removed from the cache, on the
// backend. If the backend fails the delete is queued for PushPending.
func (s *Store) PushTaskDelete(ctx context.Context, t models.Task) (Result[struct{}], error) {
	if s.remote == nil || t.LocalOnly {
		return Result[struct{}]{Outcome: Local}, nil
	}
	if err := s.remote.DeleteTask(ctx, t.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.degraded("delete task", err)
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.addTombstone(KeyTasks, t.ID); err != nil {
			return Result[struct{}]{}, err
		}
		return Result[struct{}]{Outcome: Degraded, Cause: err}, nil
	}
	return Result[struct{}]{Outcome: Synced}, nil
}

// replaceTask swaps the cached task with id for t, which may carry a new id.
func (s *Store) replaceTask(id string, t models.Task) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := loadSlice[models.Task](s, KeyTasks)
	if err != nil {
		return models.Task{}, err
	}
	i := indexByID(tasks, id, taskID)
	if i < 0 {
		return models.Task{}, apperr.ErrNotFound
	}
	tasks[i] = t
	if err := s.save(KeyTasks, tasks); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

func (s *Store) mutateTask(id string, fn func(*models.Task)) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := loadSlice[models.Task](s, KeyTasks)
	if err != nil {
		return models.Task{}, err
	}
	i := indexByID(tasks, id, taskID)
	if i < 0 {
		return models.Task{}, apperr.ErrNotFound
	}
	fn(&tasks[i])
	if err := s.save(KeyTasks, tasks); err != nil {
		return models.Task{}, err
	}
	return tasks[i], nil
}

// inRange compares YYYY-MM-DD strings; an empty bound is open.
func inRange(date, from, to string) bool {
	if from != "" && date < from {
		return false
	}
	if to != "" && date > to {
		return false
	}
	return true
}
