// Package models defines the domain types for LifeOS.
package models

import "time"

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Reminder urgencies.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// Task is a scheduled item on a single day.
type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime,omitempty"`
	Completed bool      `json:"completed"`
	Category  string    `json:"category,omitempty"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
	MovedFrom string    `json:"movedFrom,omitempty"`
	// LocalOnly is set when the task was created while the backend was unreachable.
	LocalOnly bool `json:"localOnly,omitempty"`
	// Pending marks a backend task whose local edits have not reached the backend.
	Pending bool `json:"pending,omitempty"`
}

// DailyNote is the journal entry for one date. There is at most one per date.
type DailyNote struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Content   string    `json:"content"`
	Photo     string    `json:"photo,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TaskMove records a task rescheduled during a check-in.
type TaskMove struct {
	TaskID  string `json:"taskId"`
	NewDate string `json:"newDate"`
}

// CheckIn is the end-of-day review for one date. There is at most one per date.
type CheckIn struct {
	ID         string     `json:"id"`
	Date       string     `json:"date"`
	Completed  []string   `json:"completedTaskIds"`
	Incomplete []string   `json:"incompleteTaskIds"`
	Moves      []TaskMove `json:"movedTasks"`
	Note       string     `json:"note,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Reminder is a standalone nudge, usually owned by the backend.
type Reminder struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Urgency           string     `json:"urgency"`
	NotificationCount int        `json:"notificationCount"`
	CreatedAt         time.Time  `json:"createdAt"`
	DueAt             *time.Time `json:"dueAt,omitempty"`
	Repeat            string     `json:"repeat,omitempty"`
	Done              bool       `json:"done"`
	// LocalOnly is set when the record was written while the backend was unreachable.
	LocalOnly bool `json:"localOnly,omitempty"`
	// Pending marks a backend record whose local edits have not reached the backend.
	Pending bool `json:"pending,omitempty"`
}

// MonthlyFocus is the goal for a calendar month (YYYY-MM).
type MonthlyFocus struct {
	ID          string `json:"id"`
	Month       string `json:"month"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Progress    int    `json:"progress"`
}

// Category tags tasks with a label and display color.
type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
	// LocalOnly is set when the category was created while the backend was unreachable.
	LocalOnly bool `json:"localOnly,omitempty"`
}

// Action is a UI follow-up requested by the assistant.
type Action struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ConversationMessage is one entry of the assistant chat log.
type ConversationMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Actions   []Action  `json:"actions,omitempty"`
}

// Settings are device-local preferences.
type Settings struct {
	DisplayName   string `json:"displayName,omitempty"`
	Theme         string `json:"theme,omitempty"`
	Timezone      string `json:"timezone,omitempty"`
	Notifications bool   `json:"notifications"`
}

// GlobalNote is a free-standing note not tied to a date.
type GlobalNote struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Pinned    bool      `json:"pinned"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// User is the authenticated account as reported by the backend.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// ReminderPatch is a partial reminder update; nil fields are left unchanged.
type ReminderPatch struct {
	Title             *string    `json:"title,omitempty"`
	Urgency           *string    `json:"urgency,omitempty"`
	DueAt             *time.Time `json:"dueAt,omitempty"`
	Repeat            *string    `json:"repeat,omitempty"`
	Done              *bool      `json:"done,omitempty"`
	NotificationCount *int       `json:"notificationCount,omitempty"`
}

// Apply merges the set fields into r.
func (p ReminderPatch) Apply(r *Reminder) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Urgency != nil {
		r.Urgency = *p.Urgency
	}
	if p.DueAt != nil {
		due := *p.DueAt
		r.DueAt = &due
	}
	if p.Repeat != nil {
		r.Repeat = *p.Repeat
	}
	if p.Done != nil {
		r.Done = *p.Done
	}
	if p.NotificationCount != nil {
		r.NotificationCount = *p.NotificationCount
	}
}
