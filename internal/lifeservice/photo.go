package lifeservice

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/lifeos/internal/apperr"
	"github.com/starford/lifeos/internal/models"
	"github.com/starford/lifeos/internal/store"
)

// MaxPhotoSize is the largest accepted note photo.
const MaxPhotoSize = 10 << 20

var (
	// MimeToExt maps accepted photo content types to file extensions.
	MimeToExt = map[string]string{
		"image/png":     ".png",
		"image/jpeg":    ".jpg",
		"image/gif":     ".gif",
		"image/webp":    ".webp",
		"image/svg+xml": ".svg",
	}

	allowedExtensions = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true,
		".gif": true, ".webp": true, ".svg": true,
	}

	safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// AttachPhoto validates and stores a photo, then sets it on the note for date,
// creating the note if needed, and mirrors it to the backend. The stored name
// is unique per upload.
func (s *Service) AttachPhoto(ctx context.Context, date, filename string, data []byte) (models.DailyNote, error) {
	if _, err := time.Parse(store.DateLayout, date); err != nil {
		return models.DailyNote{}, fmt.Errorf("%w: date must be YYYY-MM-DD", apperr.ErrInvalid)
	}
	if len(data) == 0 {
		return models.DailyNote{}, fmt.Errorf("%w: empty photo", apperr.ErrInvalid)
	}
	if len(data) > MaxPhotoSize {
		return models.DailyNote{}, fmt.Errorf("%w: photo too large: %d bytes (max %d)", apperr.ErrInvalid, len(data), MaxPhotoSize)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = MimeToExt[strings.Split(http.DetectContentType(data), ";")[0]]
	}
	if !allowedExtensions[ext] {
		return models.DailyNote{}, fmt.Errorf("%w: unsupported photo type %q (allowed: png, jpg, jpeg, gif, webp, svg)", apperr.ErrInvalid, ext)
	}
	if err := validateMagicBytes(data, ext); err != nil {
		return models.DailyNote{}, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	name := PhotoName(date, filename, ext)
	if err := s.store.Provider().WriteAttachment(name, data); err != nil {
		return models.DailyNote{}, fmt.Errorf("service: save photo: %w", err)
	}
	n, err := s.store.SetNotePhoto(date, name)
	if err != nil {
		return models.DailyNote{}, err
	}
	if s.backend != nil {
		if _, err := s.backend.UploadNotePhoto(ctx, date, name, bytes.NewReader(data)); err != nil {
			s.mirrorFailed("upload note photo", err)
		}
	}
	return n, nil
}

// PhotoPath resolves a stored photo name to a file path, rejecting traversal.
func (s *Service) PhotoPath(name string) (string, error) {
	abs, err := s.store.Provider().AttachmentPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return "", apperr.ErrNotFound
		}
		return "", err
	}
	return abs, nil
}

// PhotoName builds a unique attachment name for a note photo.
func PhotoName(date, filename, ext string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	stem = safeFilenameRe.ReplaceAllString(stem, "_")
	stem = strings.Trim(stem, "._")
	id := uuid.New().String()[:8]
	if stem == "" {
		return date + "-" + id + ext
	}
	return date + "-" + stem + "-" + id + ext
}

// validateMagicBytes verifies file content matches the declared extension.
func validateMagicBytes(data []byte, ext string) error {
	if ext == ".svg" {
		prefix := data
		if len(prefix) > 1024 {
			prefix = prefix[:1024]
		}
		if !bytes.Contains(prefix, []byte("<svg")) {
			return fmt.Errorf("content does not appear to be a valid SVG (missing <svg tag)")
		}
		return nil
	}

	detected := http.DetectContentType(data)
	got := MimeToExt[strings.Split(detected, ";")[0]]

	switch ext {
	case ".jpg", ".jpeg":
		if got != ".jpg" {
			return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
		}
	default:
		if got != ext {
			return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
		}
	}
	return nil
}
