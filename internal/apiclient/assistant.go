package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/starford/lifeos/internal/models"
)

// ChatTurn is one prior message sent as chat context.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatReply is the assistant's answer to a chat message.
type ChatReply struct {
	Reply   string          `json:"reply"`
	Actions []models.Action `json:"actions,omitempty"`
}

// AssistantContext is returned when a chat session starts.
type AssistantContext struct {
	Greeting    string   `json:"greeting"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// TodaySummary is the assistant's view of the current day.
type TodaySummary struct {
	Date      string               `json:"date"`
	Tasks     []models.Task        `json:"tasks"`
	Reminders []models.Reminder    `json:"reminders"`
	Focus     *models.MonthlyFocus `json:"focus,omitempty"`
	Summary   string               `json:"summary,omitempty"`
}

// Briefing is the morning briefing text.
type Briefing struct {
	Text string `json:"text"`
}

// Chat sends a message with the recent history and returns the reply.
func (c *Client) Chat(ctx context.Context, message string, history []ChatTurn) (ChatReply, error) {
	var out ChatReply
	body := struct {
		Message string     `json:"message"`
		History []ChatTurn `json:"history,omitempty"`
	}{message, history}
	err := c.Request(ctx, http.MethodPost, "/assistant/chat", &out, WithJSON(body))
	return out, err
}

// AssistantBootstrap starts an assistant session.
func (c *Client) AssistantBootstrap(ctx context.Context) (AssistantContext, error) {
	var out AssistantContext
	err := c.Request(ctx, http.MethodGet, "/assistant/bootstrap", &out)
	return out, err
}

// Today returns the assistant's summary of today.
func (c *Client) Today(ctx context.Context) (TodaySummary, error) {
	var out TodaySummary
	err := c.Request(ctx, http.MethodGet, "/assistant/today", &out)
	return out, err
}

// ContextActions returns the actions the assistant suggests for a screen.
func (c *Client) ContextActions(ctx context.Context, screen string) ([]models.Action, error) {
	var out []models.Action
	err := c.Request(ctx, http.MethodGet, "/assistant/context-actions", &out, WithQuery(url.Values{"screen": {screen}}))
	return out, err
}

// MorningBriefing returns the morning briefing.
func (c *Client) MorningBriefing(ctx context.Context) (Briefing, error) {
	var out Briefing
	err := c.Request(ctx, http.MethodGet, "/assistant/morning-briefing", &out)
	return out, err
}
