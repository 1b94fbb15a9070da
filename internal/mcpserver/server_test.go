package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/lifeos/internal/lifeservice"
	"github.com/starford/lifeos/internal/store"
	"github.com/starford/lifeos/internal/testutil"
)

func testServer(t *testing.T) (*Server, *lifeservice.Service) {
	t.Helper()
	svc := lifeservice.NewService(testutil.TestStore(t), testutil.TestDB(t),
		lifeservice.WithClock(func() time.Time { return testutil.Now }),
		lifeservice.WithLogger(testutil.Logger()),
	)
	return New(svc), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	h, ok := srv.handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestToolsRegistered(t *testing.T) {
	srv, _ := testServer(t)
	for _, name := range []string{
		"list_tasks", "create_task", "complete_task", "read_note", "save_note",
		"attach_photo", "get_stats", "match_goal", "search", "get_backlinks", "get_conventions",
	} {
		if _, ok := srv.handlers[name]; !ok {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestCreateListCompleteTask(t *testing.T) {
	srv, svc := testServer(t)
	_, _ = svc.SaveFocus(context.Background(), store.FocusInput{Month: "2026-03", Title: "Get fit", Description: "workout and yoga"})

	r := callTool(t, srv, "create_task", map[string]any{
		"title":      "Morning yoga",
		"start_time": "07:00",
	})
	if r.IsError {
		t.Fatalf("create_task: %s", resultText(r))
	}
	var created struct {
		Task struct {
			ID   string `json:"id"`
			Date string `json:"date"`
		} `json:"task"`
		Goal lifeservice.GoalMatch `json:"goal"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &created); err != nil {
		t.Fatal(err)
	}
	if created.Task.Date != "2026-03-14" {
		t.Errorf("date = %q, want %q", created.Task.Date, "2026-03-14")
	}
	if !created.Goal.Matched || created.Goal.Goal != "Get fit" {
		t.Errorf("goal = %+v", created.Goal)
	}

	r = callTool(t, srv, "list_tasks", map[string]any{"date": "today"})
	if !strings.Contains(resultText(r), "Morning yoga") {
		t.Errorf("list_tasks = %q", resultText(r))
	}

	r = callTool(t, srv, "complete_task", map[string]any{"id": created.Task.ID})
	if got, want := resultText(r), "done: Morning yoga"; got != want {
		t.Errorf("complete_task = %q, want %q", got, want)
	}

	r = callTool(t, srv, "complete_task", map[string]any{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for unknown task")
	}
}

func TestCreateTaskMissingTitle(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_task", map[string]any{})
	if !r.IsError {
		t.Error("expected error without title")
	}
}

func TestSaveAndReadNote(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "save_note", map[string]any{
		"date":    "2026-03-14",
		"content": "# Saturday\nCalmer than [[2026-03-13]] #rest",
	})
	if got, want := resultText(r), "saved: 2026-03-14"; got != want {
		t.Errorf("save_note = %q, want %q", got, want)
	}

	r = callTool(t, srv, "read_note", map[string]any{"date": "2026-03-14"})
	var n lifeservice.NoteDetail
	if err := json.Unmarshal([]byte(resultText(r)), &n); err != nil {
		t.Fatal(err)
	}
	if n.Title != "Saturday" || len(n.Tags) != 1 || n.Tags[0] != "rest" {
		t.Errorf("note = %+v", n)
	}

	r = callTool(t, srv, "get_backlinks", map[string]any{"date": "2026-03-13"})
	if got, want := resultText(r), "note/2026-03-14"; got != want {
		t.Errorf("backlinks = %q, want %q", got, want)
	}

	r = callTool(t, srv, "search", map[string]any{"query": "calmer"})
	if !strings.Contains(resultText(r), "2026-03-14") {
		t.Errorf("search = %q", resultText(r))
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]any{"date": "2026-01-01"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestStatsAndMatch(t *testing.T) {
	srv, svc := testServer(t)
	ctx := context.Background()
	a, _ := svc.CreateTask(ctx, store.TaskInput{Title: "Run", Date: "2026-03-14", Category: "fitness"})
	_, _ = svc.CreateTask(ctx, store.TaskInput{Title: "Email", Date: "2026-03-14"})
	_, _ = svc.CompleteTask(ctx, a.ID)

	r := callTool(t, srv, "get_stats", map[string]any{})
	var v lifeservice.StatsView
	if err := json.Unmarshal([]byte(resultText(r)), &v); err != nil {
		t.Fatal(err)
	}
	if v.Total != 2 || v.Completed != 1 || v.CompletionRate != 50 {
		t.Errorf("stats = %+v", v)
	}

	r = callTool(t, srv, "match_goal", map[string]any{"title": "Fix the bug"})
	if got, want := resultText(r), "no matching focus"; got != want {
		t.Errorf("match_goal = %q, want %q", got, want)
	}
}

func TestAttachPhotoDataURI(t *testing.T) {
	srv, svc := testServer(t)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	r := callTool(t, srv, "attach_photo", map[string]any{"url": uri, "date": "2026-03-14"})
	if r.IsError {
		t.Fatalf("attach_photo: %s", resultText(r))
	}
	var res attachResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.Photo, "2026-03-14-photo-") || !strings.HasSuffix(res.Photo, ".png") {
		t.Errorf("photo = %q", res.Photo)
	}
	if res.URL != "/api/attachments/"+res.Photo {
		t.Errorf("url = %q", res.URL)
	}
	n, err := svc.Store().NoteForDate("2026-03-14")
	if err != nil || n.Photo != res.Photo {
		t.Errorf("note photo = %q, err = %v", n.Photo, err)
	}
}

func TestAttachPhotoRejected(t *testing.T) {
	srv, _ := testServer(t)
	tests := []struct {
		name string
		url  string
	}{
		{"loopback", "http://127.0.0.1/cat.png"},
		{"metadata", "http://169.254.169.254/latest/meta-data"},
		{"scheme", "file:///etc/passwd"},
		{"not base64", "data:image/png,rawbytes"},
		{"unsupported mime", "data:application/pdf;base64,JVBERi0="},
		{"content mismatch", "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("hello"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := callTool(t, srv, "attach_photo", map[string]any{"url": tt.url})
			if !r.IsError {
				t.Errorf("expected error, got %q", resultText(r))
			}
		})
	}
}

func TestFilenameFromURL(t *testing.T) {
	tests := []struct {
		url, ext, want string
	}{
		{"https://example.com/img/sunset.jpg?w=200", ".jpg", "sunset.jpg"},
		{"https://example.com/", ".png", "photo.png"},
		{"data:image/gif;base64,R0lG", ".gif", "photo.gif"},
	}
	for _, tt := range tests {
		if got := filenameFromURL(tt.url, tt.ext); got != tt.want {
			t.Errorf("filenameFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestConventionsResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readConventionsResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != conventionsURI || !strings.Contains(tc.Text, "[[YYYY-MM-DD]]") {
		t.Errorf("resource = %+v", contents[0])
	}

	r := callTool(t, srv, "get_conventions", nil)
	if resultText(r) != NoteConventions {
		t.Error("get_conventions does not return the conventions text")
	}
}
