package apiclient

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/starford/lifeos/internal/models"
)

func itemPath(collection, id string) string {
	return "/" + collection + "/" + url.PathEscape(id)
}

// ListTasks returns every task of the user.
func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	var out []models.Task
	err := c.Request(ctx, http.MethodGet, "/tasks", &out)
	return out, err
}

// TasksForDate returns the tasks of one date.
func (c *Client) TasksForDate(ctx context.Context, date string) ([]models.Task, error) {
	var out []models.Task
	err := c.Request(ctx, http.MethodGet, "/tasks", &out, WithQuery(url.Values{"date": {date}}))
	return out, err
}

// CreateTask creates a task; the backend assigns the id.
func (c *Client) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	t.ID, t.LocalOnly, t.Pending = "", false, false
	var out models.Task
	err := c.Request(ctx, http.MethodPost, "/tasks", &out, WithJSON(t))
	return out, err
}

// UpdateTask sends a partial update for task id; fields are keyed by JSON name.
func (c *Client) UpdateTask(ctx context.Context, id string, patch map[string]any) (models.Task, error) {
	var out models.Task
	err := c.Request(ctx, http.MethodPatch, itemPath("tasks", id), &out, WithJSON(patch))
	return out, err
}

// MoveTask reschedules task id to newDate.
func (c *Client) MoveTask(ctx context.Context, id, newDate string) (models.Task, error) {
	var out models.Task
	err := c.Request(ctx, http.MethodPost, itemPath("tasks", id)+"/move", &out,
		WithJSON(map[string]string{"newDate": newDate}))
	return out, err
}

// DeleteTask deletes task id.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.Request(ctx, http.MethodDelete, itemPath("tasks", id), nil)
}

// NoteForDate returns the daily note of date.
func (c *Client) NoteForDate(ctx context.Context, date string) (models.DailyNote, error) {
	var out models.DailyNote
	err := c.Request(ctx, http.MethodGet, "/notes", &out, WithQuery(url.Values{"date": {date}}))
	return out, err
}

// SaveNote creates or replaces the daily note of date.
func (c *Client) SaveNote(ctx context.Context, date, content string) (models.DailyNote, error) {
	var out models.DailyNote
	err := c.Request(ctx, http.MethodPut, "/notes", &out,
		WithJSON(map[string]string{"date": date, "content": content}))
	return out, err
}

// UploadNotePhoto attaches a photo to the daily note of date.
func (c *Client) UploadNotePhoto(ctx context.Context, date, filename string, content io.Reader) (models.DailyNote, error) {
	var out models.DailyNote
	err := c.Request(ctx, http.MethodPost, "/notes/photo", &out,
		WithMultipart(map[string]string{"date": date}, FilePart{Field: "photo", Filename: filename, Content: content}))
	return out, err
}

// CheckInForDate returns the check-in of date.
func (c *Client) CheckInForDate(ctx context.Context, date string) (models.CheckIn, error) {
	var out models.CheckIn
	err := c.Request(ctx, http.MethodGet, "/checkins", &out, WithQuery(url.Values{"date": {date}}))
	return out, err
}

// SaveCheckIn records a check-in.
func (c *Client) SaveCheckIn(ctx context.Context, ci models.CheckIn) (models.CheckIn, error) {
	var out models.CheckIn
	err := c.Request(ctx, http.MethodPost, "/checkins", &out, WithJSON(ci))
	return out, err
}

// ListReminders returns the reminders of the user.
func (c *Client) ListReminders(ctx context.Context) ([]models.Reminder, error) {
	var out []models.Reminder
	err := c.Request(ctx, http.MethodGet, "/reminders", &out)
	return out, err
}

// CreateReminder creates a reminder; the backend assigns the id.
func (c *Client) CreateReminder(ctx context.Context, r models.Reminder) (models.Reminder, error) {
	r.ID, r.LocalOnly, r.Pending = "", false, false
	var out models.Reminder
	err := c.Request(ctx, http.MethodPost, "/reminders", &out, WithJSON(r))
	return out, err
}

// UpdateReminder sends a partial update for reminder id.
func (c *Client) UpdateReminder(ctx context.Context, id string, patch models.ReminderPatch) (models.Reminder, error) {
	var out models.Reminder
	err := c.Request(ctx, http.MethodPatch, itemPath("reminders", id), &out, WithJSON(patch))
	return out, err
}

// DeleteReminder deletes reminder id.
func (c *Client) DeleteReminder(ctx context.Context, id string) error {
	return c.Request(ctx, http.MethodDelete, itemPath("reminders", id), nil)
}

// ListCategories returns the task categories.
func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	err := c.Request(ctx, http.MethodGet, "/categories", &out)
	return out, err
}

// CreateCategory creates a category.
func (c *Client) CreateCategory(ctx context.Context, cat models.Category) (models.Category, error) {
	cat.ID, cat.LocalOnly = "", false
	var out models.Category
	err := c.Request(ctx, http.MethodPost, "/categories", &out, WithJSON(cat))
	return out, err
}

// DeleteCategory deletes category id.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.Request(ctx, http.MethodDelete, itemPath("categories", id), nil)
}

// MonthlyFocus returns the focus of month (YYYY-MM).
func (c *Client) MonthlyFocus(ctx context.Context, month string) (models.MonthlyFocus, error) {
	var out models.MonthlyFocus
	err := c.Request(ctx, http.MethodGet, "/monthly-focus", &out, WithQuery(url.Values{"month": {month}}))
	return out, err
}

// SaveMonthlyFocus creates or replaces the focus of f.Month.
func (c *Client) SaveMonthlyFocus(ctx context.Context, f models.MonthlyFocus) (models.MonthlyFocus, error) {
	var out models.MonthlyFocus
	err := c.Request(ctx, http.MethodPut, "/monthly-focus", &out, WithJSON(f))
	return out, err
}

// GlobalNotes returns the free-standing notes.
func (c *Client) GlobalNotes(ctx context.Context) ([]models.GlobalNote, error) {
	var out []models.GlobalNote
	err := c.Request(ctx, http.MethodGet, "/global-notes", &out)
	return out, err
}

// CreateGlobalNote creates a free-standing note.
func (c *Client) CreateGlobalNote(ctx context.Context, n models.GlobalNote) (models.GlobalNote, error) {
	var out models.GlobalNote
	err := c.Request(ctx, http.MethodPost, "/global-notes", &out, WithJSON(n))
	return out, err
}

// UpdateGlobalNote sends a partial update for note id.
func (c *Client) UpdateGlobalNote(ctx context.Context, id string, patch map[string]any) (models.GlobalNote, error) {
	var out models.GlobalNote
	err := c.Request(ctx, http.MethodPatch, itemPath("global-notes", id), &out, WithJSON(patch))
	return out, err
}

// DeleteGlobalNote deletes note id.
func (c *Client) DeleteGlobalNote(ctx context.Context, id string) error {
	return c.Request(ctx, http.MethodDelete, itemPath("global-notes", id), nil)
}
