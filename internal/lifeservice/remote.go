package lifeservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/lifeos/internal/apperr"
	"github.com/starford/lifeos/internal/index"
	"github.com/starford/lifeos/internal/store"
)

// DayPull reports what PullDay took from the backend.
type DayPull struct {
	Date    string `json:"date"`
	Tasks   int    `json:"tasks"`
	Note    bool   `json:"note"`
	CheckIn bool   `json:"checkIn"`
	Focus   bool   `json:"focus"`
	Outcome string `json:"outcome"`
}

// PullDay fetches one date from the backend. The date's tasks are reconciled
// like a full task pull. The note replaces the local one only when it is newer;
// the check-in and the month's focus are filled in only when missing locally.
// Backend failures degrade the outcome; local storage errors are returned.
func (s *Service) PullDay(ctx context.Context, date string) (DayPull, error) {
	if _, err := time.Parse(store.DateLayout, date); err != nil {
		return DayPull{}, fmt.Errorf("%w: date must be YYYY-MM-DD", apperr.ErrInvalid)
	}
	rep := DayPull{Date: date, Outcome: store.Local.String()}
	if s.backend == nil {
		return rep, nil
	}
	rep.Outcome = store.Synced.String()
	degrade := func(op string, err error) {
		if errors.Is(err, apperr.ErrNotFound) {
			return
		}
		s.logger.Warn("service: pull day", slog.String("op", op), slog.String("date", date), slog.String("error", err.Error()))
		rep.Outcome = store.Degraded.String()
	}

	if tasks, err := s.backend.TasksForDate(ctx, date); err != nil {
		degrade("tasks", err)
	} else {
		merged, err := s.store.MergeTasksForDate(date, tasks)
		if err != nil {
			return rep, err
		}
		rep.Tasks = len(merged)
	}

	if remote, err := s.backend.NoteForDate(ctx, date); err != nil {
		degrade("note", err)
	} else {
		local, lerr := s.store.NoteForDate(date)
		switch {
		case lerr != nil && !errors.Is(lerr, apperr.ErrNotFound):
			return rep, lerr
		case lerr != nil || remote.UpdatedAt.After(local.UpdatedAt):
			if _, err := s.store.SaveNote(date, remote.Content); err != nil {
				return rep, err
			}
			rep.Note = true
		}
	}

	if _, err := s.store.CheckInForDate(date); errors.Is(err, apperr.ErrNotFound) {
		if c, err := s.backend.CheckInForDate(ctx, date); err != nil {
			degrade("check-in", err)
		} else {
			if _, err := s.store.SaveCheckIn(store.CheckInInput{
				Date: date, Note: c.Note, Completed: c.Completed, Incomplete: c.Incomplete, Moves: c.Moves,
			}); err != nil {
				return rep, err
			}
			rep.CheckIn = true
		}
	}

	month := date[:len(store.MonthLayout)]
	if _, err := s.store.FocusForMonth(month); errors.Is(err, apperr.ErrNotFound) {
		if f, err := s.backend.MonthlyFocus(ctx, month); err != nil {
			degrade("monthly focus", err)
		} else {
			if _, err := s.store.SaveFocus(store.FocusInput{
				Month: month, Title: f.Title, Description: f.Description, Progress: f.Progress,
			}); err != nil {
				return rep, err
			}
			rep.Focus = true
		}
	}

	if err := index.Sync(s.db, s.store, s.logger); err != nil {
		s.logger.Warn("service: reindex after pull", slog.String("error", err.Error()))
	}
	return rep, nil
}
