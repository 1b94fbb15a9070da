package store

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/lifeos/internal/apperr"
	"github.com/starford/lifeos/internal/models"
)

// DefaultCategoryColor is used when a category is created without a color.
const DefaultCategoryColor = "#7C3AED"

func categoryID(c models.Category) string { return c.ID }

// Categories returns the locally cached categories.
func (s *Store) Categories() ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadSlice[models.Category](s, KeyCategories)
}

// LoadCategories replaces the cache with the backend's list, keeping
// local-only categories and dropping ids whose delete is still queued. When
// the backend fails the cached list is returned with a Degraded outcome.
func (s *Store) LoadCategories(ctx context.Context) (Result[[]models.Category], error) {
	if s.remote == nil {
		items, err := s.Categories()
		return Result[[]models.Category]{Value: items, Outcome: Local}, err
	}
	remote, rerr := s.remote.ListCategories(ctx)
	if rerr != nil {
		s.degraded("list categories", rerr)
		items, err := s.Categories()
		return Result[[]models.Category]{Value: items, Outcome: Degraded, Cause: rerr}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	local, err := loadSlice[models.Category](s, KeyCategories)
	if err != nil {
		return Result[[]models.Category]{}, err
	}
	t, err := s.loadTombstones()
	if err != nil {
		return Result[[]models.Category]{}, err
	}
	merged := reconcile(remote, local, t[KeyCategories], categoryID,
		func(c models.Category) bool { return c.LocalOnly },
		func(models.Category) bool { return false })
	if err := s.save(KeyCategories, merged); err != nil {
		return Result[[]models.Category]{}, err
	}
	return Result[[]models.Category]{Value: merged, Outcome: Synced}, nil
}

// CreateCategory writes a category to the backend first, falling back to a
// local record. Labels are unique, case-insensitively.
func (s *Store) CreateCategory(ctx context.Context, label, color string) (Result[models.Category], error) {
	label = strings.TrimSpace(label)
	if color == "" {
		color = DefaultCategoryColor
	}
	if err := validation.Validate(label, validation.Required, validation.Length(1, 50)); err != nil {
		return Result[models.Category]{}, invalid(err)
	}
	if err := validation.Validate(color, is.HexColor); err != nil {
		return Result[models.Category]{}, invalid(err)
	}

	existing, err := s.Categories()
	if err != nil {
		return Result[models.Category]{}, err
	}
	for _, c := range existing {
		if strings.EqualFold(c.Label, label) {
			return Result[models.Category]{}, apperr.ErrAlreadyExists
		}
	}

	c := models.Category{Label: label, Color: color}
	out := Result[models.Category]{Outcome: Local}
	if s.remote != nil {
		created, err := s.remote.CreateCategory(ctx, c)
		if err == nil {
			c = created
			out.Outcome = Synced
		} else {
			s.degraded("create category", err)
			out.Outcome, out.Cause = Degraded, err
			c.LocalOnly = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := loadSlice[models.Category](s, KeyCategories)
	if err != nil {
		return Result[models.Category]{}, err
	}
	if c.ID == "" {
		c.ID = s.newID()
	}
	items = append(items, c)
	if err := s.save(KeyCategories, items); err != nil {
		return Result[models.Category]{}, err
	}
	out.Value = c
	return out, nil
}

// DeleteCategory removes a category from the backend and the cache. If the
// backend fails the delete is queued for PushPending.
func (s *Store) DeleteCategory(ctx context.Context, id string) (Result[struct{}], error) {
	items, err := s.Categories()
	if err != nil {
		return Result[struct{}]{}, err
	}
	i := indexByID(items, id, categoryID)
	if i < 0 {
		return Result[struct{}]{}, apperr.ErrNotFound
	}

	out := Result[struct{}]{Outcome: Local}
	if s.remote != nil && !items[i].LocalOnly {
		if err := s.remote.DeleteCategory(ctx, id); err != nil {
			s.degraded("delete category", err)
			out.Outcome, out.Cause = Degraded, err
		} else {
			out.Outcome = Synced
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if out.Outcome == Degraded {
		if err := s.addTombstone(KeyCategories, id); err != nil {
			return Result[struct{}]{}, err
		}
	}
	items, err = loadSlice[models.Category](s, KeyCategories)
	if err != nil {
		return Result[struct{}]{}, err
	}
	if i := indexByID(items, id, categoryID); i >= 0 {
		if err := s.save(KeyCategories, removeAt(items, i)); err != nil {
			return Result[struct{}]{}, err
		}
	}
	return out, nil
}
