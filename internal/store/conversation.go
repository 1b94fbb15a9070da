package store

import (
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lifeos/internal/apperr"
	"github.com/starford/lifeos/internal/goalmatch"
	"github.com/starford/lifeos/internal/models"
)

// Conversation returns the chat log in insertion order.
func (s *Store) Conversation() ([]models.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadSlice[models.ConversationMessage](s, KeyConversation)
}

// AppendMessage adds a message to the end of the chat log.
func (s *Store) AppendMessage(role, content string, actions ...models.Action) (models.ConversationMessage, error) {
	if err := validation.Validate(role, validation.Required, validation.In(models.RoleUser, models.RoleAssistant)); err != nil {
		return models.ConversationMessage{}, invalid(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log, err := loadSlice[models.ConversationMessage](s, KeyConversation)
	if err != nil {
		return models.ConversationMessage{}, err
	}
	m := models.ConversationMessage{
		ID:        s.newID(),
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
		Actions:   actions,
	}
	log = append(log, m)
	if err := s.save(KeyConversation, log); err != nil {
		return models.ConversationMessage{}, err
	}
	return m, nil
}

// ClearConversation empties the chat log.
func (s *Store) ClearConversation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(KeyConversation, []models.ConversationMessage{})
}

// Settings returns the device-local preferences.
func (s *Store) Settings() (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st models.Settings
	err := s.load(KeySettings, &st)
	return st, err
}

// UpdateSettings applies fn to the stored settings and persists the result.
func (s *Store) UpdateSettings(fn func(*models.Settings)) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st models.Settings
	if err := s.load(KeySettings, &st); err != nil {
		return models.Settings{}, err
	}
	fn(&st)
	if err := s.save(KeySettings, st); err != nil {
		return models.Settings{}, err
	}
	return st, nil
}

// FocusInput holds the fields of a monthly focus.
type FocusInput struct {
	Month       string `json:"month"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Progress    int    `json:"progress"`
}

// Validate validates the focus input.
func (in FocusInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Month, validation.Required, validation.Date(MonthLayout)),
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
	)
}

func focusMonth(f models.MonthlyFocus) string { return f.Month }

// MonthlyFocuses returns every stored focus.
func (s *Store) MonthlyFocuses() ([]models.MonthlyFocus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadSlice[models.MonthlyFocus](s, KeyFocus)
}

// FocusForMonth returns the focus for month (YYYY-MM).
func (s *Store) FocusForMonth(month string) (models.MonthlyFocus, error) {
	items, err := s.MonthlyFocuses()
	if err != nil {
		return models.MonthlyFocus{}, err
	}
	i := indexByID(items, month, focusMonth)
	if i < 0 {
		return models.MonthlyFocus{}, apperr.ErrNotFound
	}
	return items[i], nil
}

// SaveFocus creates or replaces the focus for in.Month. Progress is clamped to 0–100.
func (s *Store) SaveFocus(in FocusInput) (models.MonthlyFocus, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return models.MonthlyFocus{}, invalid(err)
	}
	in.Progress = min(max(in.Progress, 0), 100)

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := loadSlice[models.MonthlyFocus](s, KeyFocus)
	if err != nil {
		return models.MonthlyFocus{}, err
	}
	f := models.MonthlyFocus{
		Month:       in.Month,
		Title:       in.Title,
		Description: in.Description,
		Progress:    in.Progress,
	}
	if i := indexByID(items, in.Month, focusMonth); i >= 0 {
		f.ID = items[i].ID
		items[i] = f
	} else {
		f.ID = s.newID()
		items = append(items, f)
	}
	if err := s.save(KeyFocus, items); err != nil {
		return models.MonthlyFocus{}, err
	}
	return f, nil
}

// Goals returns the monthly focuses as match candidates, most recent month first.
func (s *Store) Goals() ([]goalmatch.Goal, error) {
	items, err := s.MonthlyFocuses()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Month > items[j].Month })
	goals := make([]goalmatch.Goal, 0, len(items))
	for _, f := range items {
		goals = append(goals, goalmatch.Goal{ID: f.ID, Title: f.Title, Description: f.Description})
	}
	return goals, nil
}
