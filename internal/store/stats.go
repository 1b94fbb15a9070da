package store

import (
	"math"

	"github.com/starford/lifeos/internal/models"
)

// OtherCategory groups tasks that carry no category.
const OtherCategory = "other"

// CategoryStats counts tasks of one category.
type CategoryStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// Stats summarizes a date range.
type Stats struct {
	From           string                   `json:"from"`
	To             string                   `json:"to"`
	Total          int                      `json:"total"`
	Completed      int                      `json:"completed"`
	CompletionRate int                      `json:"completionRate"`
	CheckIns       int                      `json:"checkIns"`
	ByCategory     map[string]CategoryStats `json:"byCategory"`
}

// ComputeStats folds tasks and check-ins dated within [from, to]. An empty bound
// is open. CompletionRate is a rounded percentage, 0 when there are no tasks.
func ComputeStats(tasks []models.Task, checkIns []models.CheckIn, from, to string) Stats {
	st := Stats{From: from, To: to, ByCategory: make(map[string]CategoryStats)}
	for _, t := range tasks {
		if !inRange(t.Date, from, to) {
			continue
		}
		cat := t.Category
		if cat == "" {
			cat = OtherCategory
		}
		cs := st.ByCategory[cat]
		cs.Total++
		st.Total++
		if t.Completed {
			cs.Completed++
			st.Completed++
		}
		st.ByCategory[cat] = cs
	}
	for _, c := range checkIns {
		if inRange(c.Date, from, to) {
			st.CheckIns++
		}
	}
	if st.Total > 0 {
		st.CompletionRate = int(math.Round(float64(st.Completed) * 100 / float64(st.Total)))
	}
	return st
}

// Stats computes statistics over the stored tasks and check-ins.
func (s *Store) Stats(from, to string) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks, err := loadSlice[models.Task](s, KeyTasks)
	if err != nil {
		return Stats{}, err
	}
	checkIns, err := loadSlice[models.CheckIn](s, KeyCheckIns)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(tasks, checkIns, from, to), nil
}
