package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/lifeos/internal/models"
)

type cliEnv struct {
	config string
	stdin  io.Reader
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := "app:\n  log_level: error\ndata:\n  path: " + filepath.Join(dir, "data") + "\n"
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return &cliEnv{config: path}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var buf bytes.Buffer
	root.Writer = &buf
	root.ErrWriter = io.Discard
	if e.stdin != nil {
		root.Reader = e.stdin
		e.stdin = nil
	}
	err := root.Run(context.Background(), append([]string{"lifeos", "--config", e.config}, args...))
	return buf.String(), err
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	got, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("lifeos %s: %v", strings.Join(args, " "), err)
	}
	return got
}

func TestTasksAddListSearch(t *testing.T) {
	env := newCLIEnv(t)

	got := env.mustRun(t, "tasks", "add", "--date", "2026-03-14", "--at", "07:00", "--category", "fitness", "Morning run")
	if !strings.Contains(got, "Morning run") || !strings.Contains(got, "07:00") {
		t.Errorf("add output = %q", got)
	}

	got = env.mustRun(t, "tasks", "list", "--date", "2026-03-14")
	if !strings.Contains(got, "Tasks for 2026-03-14") || !strings.Contains(got, "Morning run") {
		t.Errorf("list output = %q", got)
	}

	got = env.mustRun(t, "search", "morning")
	if !strings.Contains(got, "Morning run") {
		t.Errorf("search output = %q", got)
	}

	got = env.mustRun(t, "stats", "--from", "2026-03-01", "--to", "2026-03-31")
	if !strings.Contains(got, "0 of 1 tasks done (0%)") {
		t.Errorf("stats output = %q", got)
	}
}

func TestTasksAddRequiresTitle(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "tasks", "add", "--date", "2026-03-14"); err == nil {
		t.Error("expected error without a title")
	}
}

func TestNoteSaveAndShow(t *testing.T) {
	env := newCLIEnv(t)
	env.stdin = strings.NewReader("# Quiet day\nRead in the park #calm")
	got := env.mustRun(t, "note", "save", "2026-03-14")
	if !strings.Contains(got, "saved 2026-03-14") {
		t.Errorf("save output = %q", got)
	}

	got = env.mustRun(t, "note", "show", "2026-03-14")
	if !strings.Contains(got, "Quiet day") || !strings.Contains(got, "#calm") {
		t.Errorf("show output = %q", got)
	}

	env.stdin = strings.NewReader("overwrite")
	if _, err := env.run(t, "note", "save", "--if-match", "stale", "2026-03-14"); err == nil {
		t.Error("expected conflict with a stale checksum")
	}

	got = env.mustRun(t, "note", "show", "2026-01-01")
	if !strings.Contains(got, "no note for 2026-01-01") {
		t.Errorf("missing note output = %q", got)
	}
}

func TestFocusAndMatch(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "focus", "--month", "2026-03", "Read more books")

	got := env.mustRun(t, "match", "Finished reading chapter 3")
	if !strings.Contains(got, "Read more books") {
		t.Errorf("match output = %q", got)
	}
	got = env.mustRun(t, "match", "Fix the bug")
	if !strings.Contains(got, "no matching focus") {
		t.Errorf("match output = %q", got)
	}
}

func TestRemindersOffline(t *testing.T) {
	env := newCLIEnv(t)
	got := env.mustRun(t, "remind", "add", "--urgency", "high", "--due", "2026-03-20 18:00", "Pay rent")
	if !strings.Contains(got, "Pay rent") || !strings.Contains(got, "due 2026-03-20") {
		t.Errorf("add output = %q", got)
	}
	if strings.Contains(got, "Saved locally") {
		t.Errorf("offline writes should not warn: %q", got)
	}

	got = env.mustRun(t, "remind", "list")
	if !strings.Contains(got, "Pay rent") {
		t.Errorf("list output = %q", got)
	}

	if _, err := env.run(t, "remind", "add", "--urgency", "urgent", "Bad"); err == nil {
		t.Error("expected validation error for unknown urgency")
	}
}

func TestBackendCommandsOffline(t *testing.T) {
	env := newCLIEnv(t)

	got := env.mustRun(t, "sync")
	if !strings.Contains(got, "No backend configured") {
		t.Errorf("sync output = %q", got)
	}
	if _, err := env.run(t, "auth", "status"); !errors.Is(err, errNoBackend) {
		t.Errorf("auth status err = %v, want errNoBackend", err)
	}
	if _, err := env.run(t, "chat", "hello"); !errors.Is(err, errNoBackend) {
		t.Errorf("chat err = %v, want errNoBackend", err)
	}
}

func TestParseMoves(t *testing.T) {
	moves, err := parseMoves([]string{"17=2026-03-15", "18=2026-03-16"})
	if err != nil {
		t.Fatal(err)
	}
	if len(moves) != 2 || moves[1] != (models.TaskMove{TaskID: "18", NewDate: "2026-03-16"}) {
		t.Errorf("moves = %+v", moves)
	}
	if _, err := parseMoves([]string{"17"}); err == nil {
		t.Error("expected error without a date")
	}
}

func TestParseDue(t *testing.T) {
	loc := time.FixedZone("test", 3600)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-20 18:30", time.Date(2026, 3, 20, 18, 30, 0, 0, loc)},
		{"2026-03-20T07:00", time.Date(2026, 3, 20, 7, 0, 0, 0, loc)},
		{"2026-03-20", time.Date(2026, 3, 20, 9, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		got, err := parseDue(tt.in, loc)
		if err != nil {
			t.Fatalf("parseDue(%q): %v", tt.in, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseDue(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got, err := parseDue("", loc); got != nil || err != nil {
		t.Errorf("empty = %v, %v", got, err)
	}
	if _, err := parseDue("next friday", loc); err == nil {
		t.Error("expected error for free text")
	}
}

func TestTaskLine(t *testing.T) {
	line := taskLine(models.Task{ID: "42", Title: "Stretch", StartTime: "07:00", EndTime: "07:15", Category: "fitness", MovedFrom: "2026-03-13"})
	for _, want := range []string{"Stretch", "07:00-07:15", "#fitness", "moved from 2026-03-13", "42"} {
		if !strings.Contains(line, want) {
			t.Errorf("taskLine = %q, missing %q", line, want)
		}
	}
}
