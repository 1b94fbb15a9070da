package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lifeos/internal/lifeservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *lifeservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/day/{date}", h.Day)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.ListTasks)
		r.Post("/", h.CreateTask)
		r.Patch("/{id}", h.UpdateTask)
		r.Delete("/{id}", h.DeleteTask)
		r.Post("/{id}/toggle", h.ToggleTask)
		r.Post("/{id}/move", h.MoveTask)
	})

	r.Route("/notes/{date}", func(r chi.Router) {
		r.Get("/", h.GetNote)
		r.Put("/", h.SaveNote)
		r.Delete("/", h.DeleteNote)
		r.Post("/photo", h.UploadPhoto)
	})
	r.Get("/attachments/{filename}", h.ServePhoto)

	r.Get("/checkins/{date}", h.GetCheckIn)
	r.Put("/checkins/{date}", h.SaveCheckIn)

	r.Route("/reminders", func(r chi.Router) {
		r.Get("/", h.ListReminders)
		r.Post("/", h.CreateReminder)
		r.Patch("/{id}", h.UpdateReminder)
		r.Delete("/{id}", h.DeleteReminder)
	})

	r.Get("/categories", h.ListCategories)
	r.Post("/categories", h.CreateCategory)
	r.Delete("/categories/{id}", h.DeleteCategory)

	r.Get("/focus/{month}", h.GetFocus)
	r.Put("/focus/{month}", h.SaveFocus)

	r.Get("/conversation", h.Conversation)
	r.Post("/conversation", h.Chat)
	r.Delete("/conversation", h.ClearConversation)

	r.Get("/settings", h.Settings)
	r.Patch("/settings", h.UpdateSettings)

	r.Get("/stats", h.Stats)
	r.Get("/match", h.Match)
	r.Get("/greeting", h.Greeting)
	r.Get("/search", h.Search)
	r.Get("/backlinks/{target}", h.Backlinks)
	r.Post("/sync", h.Sync)
	r.Post("/sync/{date}", h.SyncDay)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
