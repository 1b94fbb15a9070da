package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lifeos/internal/lifeservice"
)

const maxUploadBytes = lifeservice.MaxPhotoSize + 1<<20

// UploadPhoto handles POST /api/notes/{date}/photo (multipart/form-data, field "photo").
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'photo' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	note, err := h.svc.AttachPhoto(r.Context(), h.dateParam(r), header.Filename, data)
	if err != nil {
		writeError(w, "upload photo", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"note": note,
		"size": len(data),
		"url":  "/api/attachments/" + note.Photo,
	})
}

// ServePhoto handles GET /api/attachments/{filename}.
func (h *Handler) ServePhoto(w http.ResponseWriter, r *http.Request) {
	abs, err := h.svc.PhotoPath(chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, "serve photo", err)
		return
	}
	http.ServeFile(w, r, abs)
}
