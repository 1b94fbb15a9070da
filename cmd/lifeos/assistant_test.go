package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/starford/lifeos/internal/models"
)

// fakeLifeOS serves the backend endpoints the assistant, memo and account
// commands call.
type fakeLifeOS struct {
	mu     sync.Mutex
	memos  []models.GlobalNote
	forgot []string
	avatar string
}

func (f *fakeLifeOS) handler() http.Handler {
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("GET /assistant/morning-briefing", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, map[string]string{"text": "Three tasks today; the dentist is at 10:00."})
	})
	mux.HandleFunc("GET /assistant/today", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, map[string]any{
			"date":    "2026-03-14",
			"summary": "A light Saturday.",
			"tasks":   []models.Task{{ID: "t1", Title: "Dentist", Date: "2026-03-14", StartTime: "10:00"}},
			"focus":   models.MonthlyFocus{Month: "2026-03", Title: "Sleep earlier", Progress: 40},
		})
	})
	mux.HandleFunc("GET /assistant/context-actions", func(w http.ResponseWriter, r *http.Request) {
		reply(w, []models.Action{{Type: "create_task", Payload: map[string]any{"title": "Plan " + r.URL.Query().Get("screen")}}})
	})
	mux.HandleFunc("POST /auth/signup", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		reply(w, map[string]any{"user": models.User{ID: "u1", Email: body["email"], Name: body["name"]}})
	})
	mux.HandleFunc("POST /auth/forgot-password", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.forgot = append(f.forgot, body["email"])
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /auth/avatar", func(w http.ResponseWriter, r *http.Request) {
		file, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		_, _ = io.Copy(io.Discard, file)
		f.mu.Lock()
		f.avatar = hdr.Filename
		f.mu.Unlock()
		reply(w, models.User{ID: "u1", Email: "ana@example.com"})
	})
	mux.HandleFunc("GET /global-notes", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		reply(w, f.memos)
	})
	mux.HandleFunc("POST /global-notes", func(w http.ResponseWriter, r *http.Request) {
		var n models.GlobalNote
		_ = json.NewDecoder(r.Body).Decode(&n)
		f.mu.Lock()
		n.ID = fmt.Sprintf("g%d", len(f.memos)+1)
		f.memos = append(f.memos, n)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		reply(w, n)
	})
	mux.HandleFunc("PATCH /global-notes/{id}", func(w http.ResponseWriter, r *http.Request) {
		var patch map[string]any
		_ = json.NewDecoder(r.Body).Decode(&patch)
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, n := range f.memos {
			if n.ID != r.PathValue("id") {
				continue
			}
			if v, ok := patch["pinned"].(bool); ok {
				f.memos[i].Pinned = v
			}
			if v, ok := patch["title"].(string); ok {
				f.memos[i].Title = v
			}
			reply(w, f.memos[i])
			return
		}
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})
	mux.HandleFunc("DELETE /global-notes/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, n := range f.memos {
			if n.ID == r.PathValue("id") {
				f.memos = append(f.memos[:i], f.memos[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})
	return mux
}

func newBackendCLIEnv(t *testing.T) (*cliEnv, *fakeLifeOS) {
	t.Helper()
	fake := &fakeLifeOS{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := "app:\n  log_level: error\ndata:\n  path: " + filepath.Join(dir, "data") +
		"\napi:\n  base_url: " + srv.URL + "\n  timezone: UTC\n"
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return &cliEnv{config: path}, fake
}

func TestAssistantCommands(t *testing.T) {
	env, _ := newBackendCLIEnv(t)

	got := env.mustRun(t, "brief")
	if !strings.Contains(got, "dentist is at 10:00") {
		t.Errorf("brief output = %q", got)
	}

	got = env.mustRun(t, "today")
	for _, want := range []string{"A light Saturday.", "Tasks for 2026-03-14", "Dentist", "Sleep earlier", "40%"} {
		if !strings.Contains(got, want) {
			t.Errorf("today output = %q, missing %q", got, want)
		}
	}

	got = env.mustRun(t, "suggest", "notes")
	if !strings.Contains(got, `create_task "Plan notes"`) {
		t.Errorf("suggest output = %q", got)
	}
}

func TestMemoCommands(t *testing.T) {
	env, fake := newBackendCLIEnv(t)

	env.mustRun(t, "memo", "add", "--text", "oat milk\neggs", "Groceries")
	env.mustRun(t, "memo", "add", "--pin", "Ideas")

	got := env.mustRun(t, "memo", "list")
	if strings.Index(got, "Ideas") > strings.Index(got, "Groceries") {
		t.Errorf("pinned note not listed first: %q", got)
	}
	if !strings.Contains(got, "oat milk") {
		t.Errorf("list output = %q", got)
	}

	got = env.mustRun(t, "memo", "edit", "--title", "Shopping", "g1")
	if !strings.Contains(got, "Shopping") {
		t.Errorf("edit output = %q", got)
	}
	if _, err := env.run(t, "memo", "edit", "g1"); err == nil {
		t.Error("expected error for an edit without changes")
	}

	env.mustRun(t, "memo", "rm", "g2")
	fake.mu.Lock()
	if len(fake.memos) != 1 || fake.memos[0].Title != "Shopping" {
		t.Errorf("memos = %+v", fake.memos)
	}
	fake.mu.Unlock()
	if _, err := env.run(t, "memo", "rm", "missing"); err == nil {
		t.Error("expected error deleting an unknown note")
	}
}

func TestAccountCommands(t *testing.T) {
	env, fake := newBackendCLIEnv(t)

	got := env.mustRun(t, "auth", "signup", "--email", "ana@example.com", "--password", "s3cret!", "--name", "Ana")
	if !strings.Contains(got, "Signed in as Ana <ana@example.com>") {
		t.Errorf("signup output = %q", got)
	}

	env.mustRun(t, "auth", "forgot", "ana@example.com")
	fake.mu.Lock()
	if len(fake.forgot) != 1 || fake.forgot[0] != "ana@example.com" {
		t.Errorf("forgot = %v", fake.forgot)
	}
	fake.mu.Unlock()

	avatar := filepath.Join(t.TempDir(), "me.png")
	if err := os.WriteFile(avatar, []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}
	got = env.mustRun(t, "auth", "avatar", avatar)
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if !strings.Contains(got, "Avatar updated") || fake.avatar != "me.png" {
		t.Errorf("avatar output = %q, uploaded %q", got, fake.avatar)
	}
}

func TestAssistantCommandsOffline(t *testing.T) {
	env := newCLIEnv(t)
	for _, args := range [][]string{
		{"brief"},
		{"today"},
		{"suggest"},
		{"memo", "list"},
		{"auth", "signup", "--email", "a@b.c", "--password", "x"},
		{"auth", "forgot", "a@b.c"},
		{"auth", "refresh"},
	} {
		if _, err := env.run(t, args...); !errors.Is(err, errNoBackend) {
			t.Errorf("lifeos %s err = %v, want errNoBackend", strings.Join(args, " "), err)
		}
	}
}
