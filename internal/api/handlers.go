package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lifeos/internal/lifeservice"
	"github.com/starford/lifeos/internal/models"
	"github.com/starford/lifeos/internal/store"
)

// Handler holds API route handlers.
type Handler struct {
	svc *lifeservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *lifeservice.Service) *Handler {
	return &Handler{svc: svc}
}

// resultBody reports a remote-backed write together with its outcome.
type resultBody[T any] struct {
	Data    T      `json:"data"`
	Outcome string `json:"outcome"`
	Warning string `json:"warning,omitempty"`
}

func newResultBody[T any](r store.Result[T]) resultBody[T] {
	b := resultBody[T]{Data: r.Value, Outcome: r.Outcome.String()}
	if r.Cause != nil {
		b.Warning = "saved locally, backend unavailable: " + r.Cause.Error()
	}
	return b
}

// dateParam returns the {date} URL parameter, defaulting "today" to the current date.
func (h *Handler) dateParam(r *http.Request) string {
	d := chi.URLParam(r, "date")
	if d == "" || d == "today" {
		return h.svc.Today()
	}
	return d
}

// Day handles GET /api/day/{date}.
//
//	@Summary	Everything shown for one date
//	@Tags		day
//	@Produce	json
//	@Param		date	path		string	true	"YYYY-MM-DD or today"
//	@Success	200		{object}	lifeservice.DayView
//	@Security	BearerAuth
//	@Router		/day/{date} [get]
func (h *Handler) Day(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Day(r.Context(), h.dateParam(r))
	if err != nil {
		writeError(w, "day", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ListTasks handles GET /api/tasks?date=|from=&to=.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		tasks []models.Task
		err   error
	)
	switch {
	case q.Get("date") != "":
		tasks, err = h.svc.Store().TasksForDate(q.Get("date"))
	case q.Get("from") != "" || q.Get("to") != "":
		tasks, err = h.svc.Store().TasksInRange(q.Get("from"), q.Get("to"))
	default:
		tasks, err = h.svc.Store().Tasks()
	}
	if err != nil {
		writeError(w, "list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// CreateTask handles POST /api/tasks. The response carries the monthly goal
// the new task serves, if any.
//
//	@Summary	Create a task
//	@Tags		tasks
//	@Accept		json
//	@Produce	json
//	@Param		body	body		store.TaskInput	true	"Task to create"
//	@Success	201		{object}	map[string]any
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/tasks [post]
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var in store.TaskInput
	if !decodeJSON(w, r, &in) {
		return
	}
	task, err := h.svc.CreateTask(r.Context(), in)
	if err != nil {
		writeError(w, "create task", err)
		return
	}
	match, err := h.svc.MatchGoal(r.Context(), task.Title)
	if err != nil {
		writeError(w, "match goal", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"task": task, "goal": match})
}

// UpdateTask handles PATCH /api/tasks/{id}.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch store.TaskPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	task, err := h.svc.UpdateTask(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, "update task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ToggleTask handles POST /api/tasks/{id}/toggle.
func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.svc.ToggleTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "toggle task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// MoveTask handles POST /api/tasks/{id}/move.
func (h *Handler) MoveTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := h.svc.MoveTask(r.Context(), chi.URLParam(r, "id"), req.Date)
	if err != nil {
		writeError(w, "move task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /api/tasks/{id}.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetNote handles GET /api/notes/{date}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.GetNote(r.Context(), h.dateParam(r))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// SaveNote handles PUT /api/notes/{date}.
//
//	@Summary	Create or replace the note for a date
//	@Tags		notes
//	@Accept		json
//	@Produce	json
//	@Param		date		path		string	true	"YYYY-MM-DD"
//	@Param		If-Match	header		string	false	"SHA-256 checksum for optimistic concurrency"
//	@Success	200			{object}	lifeservice.NoteDetail
//	@Failure	409			{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{date} [put]
func (h *Handler) SaveNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	note, err := h.svc.SaveNote(r.Context(), h.dateParam(r), req.Content, ifMatch)
	if err != nil {
		writeError(w, "save note", err)
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{date}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteNote(r.Context(), h.dateParam(r)); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCheckIn handles GET /api/checkins/{date}.
func (h *Handler) GetCheckIn(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Store().CheckInForDate(h.dateParam(r))
	if err != nil {
		writeError(w, "get check-in", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// SaveCheckIn handles PUT /api/checkins/{date}.
func (h *Handler) SaveCheckIn(w http.ResponseWriter, r *http.Request) {
	var in store.CheckInInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.Date = h.dateParam(r)
	c, err := h.svc.SaveCheckIn(r.Context(), in)
	if err != nil {
		writeError(w, "save check-in", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListReminders handles GET /api/reminders. With ?refresh=1 the list is
// reconciled with the backend first.
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "" {
		items, err := h.svc.Store().Reminders()
		if err != nil {
			writeError(w, "list reminders", err)
			return
		}
		writeJSON(w, http.StatusOK, resultBody[[]models.Reminder]{Data: items, Outcome: store.Local.String()})
		return
	}
	res, err := h.svc.Store().LoadReminders(r.Context())
	if err != nil {
		writeError(w, "load reminders", err)
		return
	}
	writeJSON(w, http.StatusOK, newResultBody(res))
}

// CreateReminder handles POST /api/reminders.
func (h *Handler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	var in store.ReminderInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := h.svc.CreateReminder(r.Context(), in)
	if err != nil {
		writeError(w, "create reminder", err)
		return
	}
	writeJSON(w, http.StatusCreated, newResultBody(res))
}

// UpdateReminder handles PATCH /api/reminders/{id}.
func (h *Handler) UpdateReminder(w http.ResponseWriter, r *http.Request) {
	var patch models.ReminderPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	res, err := h.svc.UpdateReminder(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, "update reminder", err)
		return
	}
	writeJSON(w, http.StatusOK, newResultBody(res))
}

// DeleteReminder handles DELETE /api/reminders/{id}.
func (h *Handler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.DeleteReminder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "delete reminder", err)
		return
	}
	writeJSON(w, http.StatusOK, newResultBody(res))
}

// ListCategories handles GET /api/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Store().Categories()
	if err != nil {
		writeError(w, "list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": items})
}

// CreateCategory handles POST /api/categories.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
		Color string `json:"color"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Store().CreateCategory(r.Context(), req.Label, req.Color)
	if err != nil {
		writeError(w, "create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, newResultBody(res))
}

// DeleteCategory handles DELETE /api/categories/{id}.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Store().DeleteCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "delete category", err)
		return
	}
	writeJSON(w, http.StatusOK, newResultBody(res))
}

// GetFocus handles GET /api/focus/{month}.
func (h *Handler) GetFocus(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.Store().FocusForMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, "get focus", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// SaveFocus handles PUT /api/focus/{month}.
func (h *Handler) SaveFocus(w http.ResponseWriter, r *http.Request) {
	var in store.FocusInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.Month = chi.URLParam(r, "month")
	f, err := h.svc.SaveFocus(r.Context(), in)
	if err != nil {
		writeError(w, "save focus", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Conversation handles GET /api/conversation.
func (h *Handler) Conversation(w http.ResponseWriter, r *http.Request) {
	log, err := h.svc.Store().Conversation()
	if err != nil {
		writeError(w, "conversation", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": log})
}

// Chat handles POST /api/conversation.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("message is required"))
		return
	}
	reply, err := h.svc.Chat(r.Context(), req.Message)
	if err != nil {
		writeError(w, "chat", err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// ClearConversation handles DELETE /api/conversation.
func (h *Handler) ClearConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Store().ClearConversation(); err != nil {
		writeError(w, "clear conversation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Settings handles GET /api/settings.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Store().Settings()
	if err != nil {
		writeError(w, "settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateSettings handles PATCH /api/settings. Only fields present in the body change.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch struct {
		DisplayName   *string `json:"displayName"`
		Theme         *string `json:"theme"`
		Timezone      *string `json:"timezone"`
		Notifications *bool   `json:"notifications"`
	}
	if !decodeJSON(w, r, &patch) {
		return
	}
	s, err := h.svc.Store().UpdateSettings(func(s *models.Settings) {
		if patch.DisplayName != nil {
			s.DisplayName = *patch.DisplayName
		}
		if patch.Theme != nil {
			s.Theme = *patch.Theme
		}
		if patch.Timezone != nil {
			s.Timezone = *patch.Timezone
		}
		if patch.Notifications != nil {
			s.Notifications = *patch.Notifications
		}
	})
	if err != nil {
		writeError(w, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Stats handles GET /api/stats?from=&to=. Missing bounds default to today.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" && to == "" {
		from, to = h.svc.Today(), h.svc.Today()
	}
	v, err := h.svc.Stats(r.Context(), from, to)
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Match handles GET /api/match?title=.
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'title' is required"))
		return
	}
	m, err := h.svc.MatchGoal(r.Context(), title)
	if err != nil {
		writeError(w, "match", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Greeting handles GET /api/greeting.
func (h *Handler) Greeting(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"greeting": h.svc.Greeting()})
}

// Search handles GET /api/search.
//
//	@Summary	Full-text search across tasks, notes, check-ins and the conversation
//	@Tags		search
//	@Produce	json
//	@Param		q		query		string	true	"Search query"
//	@Param		limit	query		int		false	"Max results"
//	@Success	200		{object}	map[string]any
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// Backlinks handles GET /api/backlinks/{target}.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	bl, err := h.svc.Backlinks(r.Context(), chi.URLParam(r, "target"))
	if err != nil {
		writeError(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backlinks": bl})
}

// Sync handles POST /api/sync.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.SyncRemote(r.Context())
	if err != nil {
		writeError(w, "sync", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// SyncDay handles POST /api/sync/{date}.
func (h *Handler) SyncDay(w http.ResponseWriter, r *http.Request) {
	day, err := h.svc.PullDay(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, "sync day", err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}
