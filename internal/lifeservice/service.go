// Package lifeservice coordinates the local store, the search index and the
// assistant backend for the presentation surfaces (HTTP API, MCP, CLI).
package lifeservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/starford/lifeos/internal/apiclient"
	"github.com/starford/lifeos/internal/apperr"
	"github.com/starford/lifeos/internal/checksum"
	"github.com/starford/lifeos/internal/goalmatch"
	"github.com/starford/lifeos/internal/greeting"
	"github.com/starford/lifeos/internal/index"
	"github.com/starford/lifeos/internal/models"
	"github.com/starford/lifeos/internal/parser"
	"github.com/starford/lifeos/internal/store"
)

// historyTurns is how many earlier messages are sent along with a chat message.
const historyTurns = 10

// ErrNoAssistant is returned by Chat when no backend is configured.
var ErrNoAssistant = errors.New("assistant backend not configured")

// Assistant answers chat messages.
type Assistant interface {
	Chat(ctx context.Context, message string, history []apiclient.ChatTurn) (apiclient.ChatReply, error)
}

var _ Assistant = (*apiclient.Client)(nil)

// Backend mirrors daily notes, check-ins and the monthly focus.
type Backend interface {
	TasksForDate(ctx context.Context, date string) ([]models.Task, error)
	NoteForDate(ctx context.Context, date string) (models.DailyNote, error)
	SaveNote(ctx context.Context, date, content string) (models.DailyNote, error)
	UploadNotePhoto(ctx context.Context, date, filename string, content io.Reader) (models.DailyNote, error)
	CheckInForDate(ctx context.Context, date string) (models.CheckIn, error)
	SaveCheckIn(ctx context.Context, c models.CheckIn) (models.CheckIn, error)
	MonthlyFocus(ctx context.Context, month string) (models.MonthlyFocus, error)
	SaveMonthlyFocus(ctx context.Context, f models.MonthlyFocus) (models.MonthlyFocus, error)
}

var _ Backend = (*apiclient.Client)(nil)

// NoteDetail is the full representation of a daily note.
type NoteDetail struct {
	Date        string           `json:"date"`
	Title       string           `json:"title"`
	Content     string           `json:"content"`
	Photo       string           `json:"photo,omitempty"`
	Checksum    string           `json:"checksum"`
	Tags        []string         `json:"tags"`
	Frontmatter map[string]any   `json:"frontmatter,omitempty"`
	Backlinks   []index.EntryRef `json:"backlinks"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// DayView is everything shown for one date.
type DayView struct {
	Date      string               `json:"date"`
	Greeting  string               `json:"greeting"`
	Prompt    string               `json:"prompt"`
	Tasks     []models.Task        `json:"tasks"`
	Note      *models.DailyNote    `json:"note,omitempty"`
	CheckIn   *models.CheckIn      `json:"checkIn,omitempty"`
	Reminders []models.Reminder    `json:"reminders"`
	Stats     store.Stats          `json:"stats"`
	Backlinks []index.EntryRef     `json:"backlinks"`
	Focus     *models.MonthlyFocus `json:"focus,omitempty"`
}

// GoalMatch is the result of matching a task title against monthly goals.
type GoalMatch struct {
	Matched bool    `json:"matched"`
	GoalID  string  `json:"goalId,omitempty"`
	Goal    string  `json:"goal,omitempty"`
	Score   float64 `json:"score"`
}

// StatsView is a statistics summary with an encouragement line.
type StatsView struct {
	store.Stats
	Encouragement string `json:"encouragement"`
}

// Option configures a Service.
type Option func(*Service)

// WithAssistant enables Chat.
func WithAssistant(a Assistant) Option {
	return func(s *Service) { s.assistant = a }
}

// WithBackend mirrors note, check-in and focus writes to b.
func WithBackend(b Backend) Option {
	return func(s *Service) { s.backend = b }
}

// WithPicker sets the greeting picker.
func WithPicker(p *greeting.Picker) Option {
	return func(s *Service) { s.picker = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service coordinates store and index operations.
type Service struct {
	store     *store.Store
	db        *index.DB
	assistant Assistant
	backend   Backend
	picker    *greeting.Picker
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates a new service over st and db.
func NewService(st *store.Store, db *index.DB, opts ...Option) *Service {
	s := &Service{
		store:  st,
		db:     db,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.picker == nil {
		s.picker = greeting.NewPicker(nil)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() *store.Store {
	return s.store
}

// Today returns the current date in the service clock's location.
func (s *Service) Today() string {
	return s.now().Format(store.DateLayout)
}

// reindex brings one kind of the index up to date after a write. Index errors
// are logged, never returned: the store is the source of truth.
func (s *Service) reindex(kind index.Kind) {
	if _, err := index.SyncKind(s.db, s.store, kind, s.logger); err != nil {
		s.logger.Warn("service: reindex failed", slog.String("kind", string(kind)), slog.String("error", err.Error()))
	}
}

// Day assembles the view of date.
func (s *Service) Day(_ context.Context, date string) (*DayView, error) {
	if _, err := time.Parse(store.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", apperr.ErrInvalid)
	}
	tasks, err := s.store.TasksForDate(date)
	if err != nil {
		return nil, err
	}
	st := store.ComputeStats(tasks, nil, date, date)
	v := &DayView{
		Date:     date,
		Tasks:    tasks,
		Stats:    st,
		Greeting: s.Greeting(),
		Prompt:   s.picker.Encouragement(st.CompletionRate, st.Total),
	}
	if n, err := s.store.NoteForDate(date); err == nil {
		v.Note = &n
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if c, err := s.store.CheckInForDate(date); err == nil {
		v.CheckIn = &c
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if f, err := s.store.FocusForMonth(date[:7]); err == nil {
		v.Focus = &f
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	reminders, err := s.store.Reminders()
	if err != nil {
		return nil, err
	}
	v.Reminders = []models.Reminder{}
	for _, r := range reminders {
		if r.Done {
			continue
		}
		if r.DueAt == nil || r.DueAt.Format(store.DateLayout) <= date {
			v.Reminders = append(v.Reminders, r)
		}
	}

	if v.Backlinks, err = s.db.Backlinks(date); err != nil {
		return nil, err
	}
	v.Backlinks = nonNilSlice(v.Backlinks)
	return v, nil
}

// CreateTask creates a task, mirrors it to the backend and indexes it.
func (s *Service) CreateTask(ctx context.Context, in store.TaskInput) (models.Task, error) {
	t, err := s.store.CreateTask(in)
	if err != nil {
		return models.Task{}, err
	}
	res, err := s.store.PushNewTask(ctx, t)
	if err != nil {
		return models.Task{}, err
	}
	s.reindex(index.KindTask)
	return res.Value, nil
}

// pushTask mirrors a task edit; the cached edit stands even when the backend fails.
func (s *Service) pushTask(ctx context.Context, t models.Task, moved bool) (models.Task, error) {
	res, err := s.store.PushTaskChange(ctx, t, moved)
	if err != nil {
		return models.Task{}, err
	}
	s.reindex(index.KindTask)
	return res.Value, nil
}

// UpdateTask applies a partial update.
func (s *Service) UpdateTask(ctx context.Context, id string, patch store.TaskPatch) (models.Task, error) {
	t, err := s.store.UpdateTask(id, patch)
	if err != nil {
		return models.Task{}, err
	}
	return s.pushTask(ctx, t, patch.Date != nil)
}

// ToggleTask flips a task's completed flag.
func (s *Service) ToggleTask(ctx context.Context, id string) (models.Task, error) {
	t, err := s.store.ToggleTask(id)
	if err != nil {
		return models.Task{}, err
	}
	return s.pushTask(ctx, t, false)
}

// CompleteTask marks a task completed. Completing a completed task is a no-op.
func (s *Service) CompleteTask(ctx context.Context, id string) (models.Task, error) {
	done := true
	return s.UpdateTask(ctx, id, store.TaskPatch{Completed: &done})
}

// MoveTask reschedules a task to newDate.
func (s *Service) MoveTask(ctx context.Context, id, newDate string) (models.Task, error) {
	t, err := s.store.MoveTask(id, newDate)
	if err != nil {
		return models.Task{}, err
	}
	return s.pushTask(ctx, t, true)
}

// DeleteTask removes a task from the store, the backend and the index.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	t, err := s.store.Task(id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(id); err != nil {
		return err
	}
	s.reindex(index.KindTask)
	_, err = s.store.PushTaskDelete(ctx, t)
	return err
}

// GetNote reads the note for date, parses it, and enriches it with backlinks.
func (s *Service) GetNote(_ context.Context, date string) (*NoteDetail, error) {
	n, err := s.store.NoteForDate(date)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(n)
}

// SaveNote replaces the note for date. A non-empty ifMatch must equal the
// checksum of the current content.
func (s *Service) SaveNote(ctx context.Context, date, content, ifMatch string) (*NoteDetail, error) {
	if ifMatch != "" {
		existing, err := s.store.NoteForDate(date)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.ErrConflict
			}
			return nil, err
		}
		if checksum.Sum([]byte(existing.Content)) != ifMatch {
			return nil, apperr.ErrConflict
		}
	}
	n, err := s.store.SaveNote(date, content)
	if err != nil {
		return nil, err
	}
	s.reindex(index.KindNote)
	if s.backend != nil {
		if _, err := s.backend.SaveNote(ctx, date, content); err != nil {
			s.mirrorFailed("save note", err)
		}
	}
	return s.buildNoteDetail(n)
}

// DeleteNote removes the note for date from store and index.
func (s *Service) DeleteNote(_ context.Context, date string) error {
	if err := s.store.DeleteNote(date); err != nil {
		return err
	}
	s.reindex(index.KindNote)
	return nil
}

// SaveCheckIn records the review for a date, mirrors the tasks it completed
// or moved, and reindexes the tasks it touched.
func (s *Service) SaveCheckIn(ctx context.Context, in store.CheckInInput) (models.CheckIn, error) {
	c, err := s.store.SaveCheckIn(in)
	if err != nil {
		return models.CheckIn{}, err
	}
	touched := make(map[string]bool, len(c.Completed)+len(c.Moves))
	for _, id := range c.Completed {
		touched[id] = false
	}
	for _, m := range c.Moves {
		touched[m.TaskID] = true
	}
	for id, moved := range touched {
		t, err := s.store.Task(id)
		if err != nil {
			continue
		}
		if _, err := s.store.PushTaskChange(ctx, t, moved); err != nil {
			return models.CheckIn{}, err
		}
	}
	s.reindex(index.KindCheckIn)
	s.reindex(index.KindTask)
	if s.backend != nil {
		if _, err := s.backend.SaveCheckIn(ctx, c); err != nil {
			s.mirrorFailed("save check-in", err)
		}
	}
	return c, nil
}

// SaveFocus upserts the monthly focus.
func (s *Service) SaveFocus(ctx context.Context, in store.FocusInput) (models.MonthlyFocus, error) {
	f, err := s.store.SaveFocus(in)
	if err != nil {
		return models.MonthlyFocus{}, err
	}
	s.reindex(index.KindFocus)
	if s.backend != nil {
		if _, err := s.backend.SaveMonthlyFocus(ctx, f); err != nil {
			s.mirrorFailed("save monthly focus", err)
		}
	}
	return f, nil
}

// mirrorFailed logs a backend write that did not go through. Notes, check-ins
// and the focus are keyed by date, so the next save or PullDay reconciles them.
func (s *Service) mirrorFailed(op string, err error) {
	s.logger.Warn("service: backend write failed, kept locally",
		slog.String("op", op),
		slog.String("error", err.Error()))
}

// CreateReminder creates a reminder, backend first when one is configured.
func (s *Service) CreateReminder(ctx context.Context, in store.ReminderInput) (store.Result[models.Reminder], error) {
	res, err := s.store.CreateReminder(ctx, in)
	if err != nil {
		return res, err
	}
	s.reindex(index.KindReminder)
	return res, nil
}

// UpdateReminder applies a partial reminder update.
func (s *Service) UpdateReminder(ctx context.Context, id string, patch models.ReminderPatch) (store.Result[models.Reminder], error) {
	res, err := s.store.UpdateReminder(ctx, id, patch)
	if err != nil {
		return res, err
	}
	s.reindex(index.KindReminder)
	return res, nil
}

// DeleteReminder removes a reminder.
func (s *Service) DeleteReminder(ctx context.Context, id string) (store.Result[struct{}], error) {
	res, err := s.store.DeleteReminder(ctx, id)
	if err != nil {
		return res, err
	}
	s.reindex(index.KindReminder)
	return res, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	results, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(results), nil
}

// Backlinks returns the entries that reference target.
func (s *Service) Backlinks(_ context.Context, target string) ([]index.EntryRef, error) {
	bl, err := s.db.Backlinks(target)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(bl), nil
}

// Stats computes statistics for [from, to] with an encouragement line.
func (s *Service) Stats(_ context.Context, from, to string) (StatsView, error) {
	st, err := s.store.Stats(from, to)
	if err != nil {
		return StatsView{}, err
	}
	return StatsView{Stats: st, Encouragement: s.picker.Encouragement(st.CompletionRate, st.Total)}, nil
}

// MatchGoal finds the monthly focus a task title serves best.
func (s *Service) MatchGoal(_ context.Context, title string) (GoalMatch, error) {
	goals, err := s.store.Goals()
	if err != nil {
		return GoalMatch{}, err
	}
	g, score, ok := goalmatch.FindMatchingGoal(title, goals)
	if !ok {
		return GoalMatch{}, nil
	}
	return GoalMatch{Matched: true, GoalID: g.ID, Goal: g.Title, Score: score}, nil
}

// Greeting returns a time-of-day greeting addressed to the configured display name.
func (s *Service) Greeting() string {
	name := ""
	if set, err := s.store.Settings(); err == nil {
		name = set.DisplayName
	}
	return s.picker.Greeting(s.now(), name)
}

// Chat sends message to the assistant with the recent conversation as
// context. Both turns are appended to the local conversation once the reply
// arrives; a failed call leaves the conversation untouched.
func (s *Service) Chat(ctx context.Context, message string) (models.ConversationMessage, error) {
	if s.assistant == nil {
		return models.ConversationMessage{}, ErrNoAssistant
	}
	log, err := s.store.Conversation()
	if err != nil {
		return models.ConversationMessage{}, err
	}
	if len(log) > historyTurns {
		log = log[len(log)-historyTurns:]
	}
	history := make([]apiclient.ChatTurn, 0, len(log))
	for _, m := range log {
		history = append(history, apiclient.ChatTurn{Role: m.Role, Content: m.Content})
	}

	reply, err := s.assistant.Chat(ctx, message, history)
	if err != nil {
		return models.ConversationMessage{}, fmt.Errorf("service: chat: %w", err)
	}
	if _, err := s.store.AppendMessage(models.RoleUser, message); err != nil {
		return models.ConversationMessage{}, err
	}
	out, err := s.store.AppendMessage(models.RoleAssistant, reply.Reply, reply.Actions...)
	if err != nil {
		return models.ConversationMessage{}, err
	}
	s.reindex(index.KindMessage)
	return out, nil
}

// buildNoteDetail constructs a NoteDetail from a stored note.
func (s *Service) buildNoteDetail(n models.DailyNote) (*NoteDetail, error) {
	res := parser.Parse(n.Content)
	bl, err := s.db.Backlinks(n.Date)
	if err != nil {
		return nil, err
	}
	title := res.Title
	if title == "" {
		title = n.Date
	}
	return &NoteDetail{
		Date:        n.Date,
		Title:       title,
		Content:     n.Content,
		Photo:       n.Photo,
		Checksum:    checksum.Sum([]byte(n.Content)),
		Tags:        nonNilSlice(res.Tags),
		Frontmatter: res.Frontmatter,
		Backlinks:   nonNilSlice(bl),
		UpdatedAt:   n.UpdatedAt,
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// SyncReport summarizes a reconciliation with the backend.
type SyncReport struct {
	Pushed     int    `json:"pushed"`
	Tasks      int    `json:"tasks"`
	Reminders  int    `json:"reminders"`
	Categories int    `json:"categories"`
	Outcome    string `json:"outcome"`
}

// SyncRemote replays writes queued while offline, then pulls tasks, reminders and
// categories from the backend and reindexes. Backend failures degrade the
// outcome; only local storage errors are returned.
func (s *Service) SyncRemote(ctx context.Context) (SyncReport, error) {
	if !s.store.HasRemote() {
		return SyncReport{Outcome: store.Local.String()}, nil
	}
	rep := SyncReport{Outcome: store.Synced.String()}
	var err error
	if rep.Pushed, err = s.store.PushPending(ctx); err != nil {
		s.logger.Warn("service: push pending writes", slog.String("error", err.Error()))
		rep.Outcome = store.Degraded.String()
	}

	if tasks, err := s.store.PullTasks(ctx); err != nil {
		s.logger.Warn("service: pull tasks", slog.String("error", err.Error()))
		rep.Outcome = store.Degraded.String()
	} else {
		rep.Tasks = len(tasks)
	}

	reminders, err := s.store.LoadReminders(ctx)
	if err != nil {
		return rep, err
	}
	rep.Reminders = len(reminders.Value)
	if reminders.Outcome == store.Degraded {
		rep.Outcome = store.Degraded.String()
	}

	categories, err := s.store.LoadCategories(ctx)
	if err != nil {
		return rep, err
	}
	rep.Categories = len(categories.Value)
	if categories.Outcome == store.Degraded {
		rep.Outcome = store.Degraded.String()
	}

	if err := index.Sync(s.db, s.store, s.logger); err != nil {
		s.logger.Warn("service: reindex after sync", slog.String("error", err.Error()))
	}
	return rep, nil
}

