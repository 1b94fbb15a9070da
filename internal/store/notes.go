package store

import (
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lifeos/internal/apperr"
	"github.com/starford/lifeos/internal/models"
)

func noteDate(n models.DailyNote) string  { return n.Date }
func checkInDate(c models.CheckIn) string { return c.Date }

func validDate(date string) error {
	if err := validation.Validate(date, validation.Required, validation.Date(DateLayout)); err != nil {
		return invalid(err)
	}
	return nil
}

// Notes returns every daily note ordered by date.
func (s *Store) Notes() ([]models.DailyNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notes, err := loadSlice[models.DailyNote](s, KeyNotes)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].Date < notes[j].Date })
	return notes, nil
}

// NoteForDate returns the note for date.
func (s *Store) NoteForDate(date string) (models.DailyNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notes, err := loadSlice[models.DailyNote](s, KeyNotes)
	if err != nil {
		return models.DailyNote{}, err
	}
	i := indexByID(notes, date, noteDate)
	if i < 0 {
		return models.DailyNote{}, apperr.ErrNotFound
	}
	return notes[i], nil
}

// SaveNote creates the note for date or replaces its content.
// There is never more than one note per date.
func (s *Store) SaveNote(date, content string) (models.DailyNote, error) {
	if err := validDate(date); err != nil {
		return models.DailyNote{}, err
	}
	return s.upsertNote(date, func(n *models.DailyNote) { n.Content = content })
}

// SetNotePhoto attaches a photo reference to the note for date, creating an empty note if needed.
func (s *Store) SetNotePhoto(date, photo string) (models.DailyNote, error) {
	if err := validDate(date); err != nil {
		return models.DailyNote{}, err
	}
	return s.upsertNote(date, func(n *models.DailyNote) { n.Photo = photo })
}

// DeleteNote removes the note for date.
func (s *Store) DeleteNote(date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	notes, err := loadSlice[models.DailyNote](s, KeyNotes)
	if err != nil {
		return err
	}
	i := indexByID(notes, date, noteDate)
	if i < 0 {
		return apperr.ErrNotFound
	}
	return s.save(KeyNotes, removeAt(notes, i))
}

func (s *Store) upsertNote(date string, fn func(*models.DailyNote)) (models.DailyNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := loadSlice[models.DailyNote](s, KeyNotes)
	if err != nil {
		return models.DailyNote{}, err
	}
	now := s.now()
	i := indexByID(notes, date, noteDate)
	if i < 0 {
		notes = append(notes, models.DailyNote{ID: s.newID(), Date: date, CreatedAt: now})
		i = len(notes) - 1
	}
	fn(&notes[i])
	notes[i].UpdatedAt = now
	if err := s.save(KeyNotes, notes); err != nil {
		return models.DailyNote{}, err
	}
	return notes[i], nil
}

// CheckInInput holds the fields of an end-of-day review.
type CheckInInput struct {
	Date       string            `json:"date"`
	Completed  []string          `json:"completedTaskIds"`
	Incomplete []string          `json:"incompleteTaskIds"`
	Moves      []models.TaskMove `json:"movedTasks"`
	Note       string            `json:"note,omitempty"`
}

// CheckIns returns every check-in ordered by date.
func (s *Store) CheckIns() ([]models.CheckIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := loadSlice[models.CheckIn](s, KeyCheckIns)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Date < items[j].Date })
	return items, nil
}

// CheckInForDate returns the check-in for date.
func (s *Store) CheckInForDate(date string) (models.CheckIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := loadSlice[models.CheckIn](s, KeyCheckIns)
	if err != nil {
		return models.CheckIn{}, err
	}
	i := indexByID(items, date, checkInDate)
	if i < 0 {
		return models.CheckIn{}, apperr.ErrNotFound
	}
	return items[i], nil
}

// SaveCheckIn records the review for in.Date, replacing any earlier one, and
// applies the listed moves and completions to the task list.
func (s *Store) SaveCheckIn(in CheckInInput) (models.CheckIn, error) {
	if err := validDate(in.Date); err != nil {
		return models.CheckIn{}, err
	}
	for _, m := range in.Moves {
		if err := validDate(m.NewDate); err != nil {
			return models.CheckIn{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := loadSlice[models.CheckIn](s, KeyCheckIns)
	if err != nil {
		return models.CheckIn{}, err
	}
	c := models.CheckIn{
		Date:       in.Date,
		Completed:  nonNil(in.Completed),
		Incomplete: nonNil(in.Incomplete),
		Moves:      nonNil(in.Moves),
		Note:       in.Note,
		Timestamp:  s.now(),
	}
	if i := indexByID(items, in.Date, checkInDate); i >= 0 {
		c.ID = items[i].ID
		items[i] = c
	} else {
		c.ID = s.newID()
		items = append(items, c)
	}

	if err := s.applyCheckIn(c); err != nil {
		return models.CheckIn{}, err
	}
	if err := s.save(KeyCheckIns, items); err != nil {
		return models.CheckIn{}, err
	}
	return c, nil
}

// applyCheckIn marks completions and reschedules moved tasks. Callers hold s.mu.
func (s *Store) applyCheckIn(c models.CheckIn) error {
	if len(c.Completed) == 0 && len(c.Moves) == 0 {
		return nil
	}
	tasks, err := loadSlice[models.Task](s, KeyTasks)
	if err != nil {
		return err
	}
	done := make(map[string]struct{}, len(c.Completed))
	for _, id := range c.Completed {
		done[id] = struct{}{}
	}
	moved := make(map[string]string, len(c.Moves))
	for _, m := range c.Moves {
		moved[m.TaskID] = m.NewDate
	}
	for i := range tasks {
		t := &tasks[i]
		if _, ok := done[t.ID]; ok {
			t.Completed = true
		}
		if nd, ok := moved[t.ID]; ok && nd != t.Date {
			t.MovedFrom = t.Date
			t.Date = nd
		}
	}
	return s.save(KeyTasks, tasks)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
