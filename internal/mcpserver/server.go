// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes LifeOS tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/lifeos/internal/apperr"
	"github.com/starford/lifeos/internal/lifeservice"
	"github.com/starford/lifeos/internal/store"
)

const conventionsURI = "lifeos://conventions"

// Server wraps the MCP server with LifeOS tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *lifeservice.Service
	handlers map[string]server.ToolHandlerFunc
}

// New creates a new MCP server with all LifeOS tools registered.
func New(svc *lifeservice.Service) *Server {
	s := &Server{svc: svc, handlers: make(map[string]server.ToolHandlerFunc)}

	s.mcp = server.NewMCPServer(
		"LifeOS",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.addTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List the tasks scheduled for a day, ordered by start time."),
		mcp.WithString("date", mcp.Description("Day as YYYY-MM-DD (default: today)")),
	), s.listTasks)

	s.addTool(mcp.NewTool("create_task",
		mcp.WithDescription("Schedule a new task. The response includes the monthly focus the task serves, if any."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("date", mcp.Description("Day as YYYY-MM-DD (default: today)")),
		mcp.WithString("start_time", mcp.Description("Start time as HH:MM")),
		mcp.WithString("end_time", mcp.Description("End time as HH:MM")),
		mcp.WithString("category", mcp.Description("Category label (e.g. fitness, work)")),
	), s.createTask)

	s.addTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Mark a task as done."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task ID")),
	), s.completeTask)

	s.addTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the daily note for a day, with the entries that link to it."),
		mcp.WithString("date", mcp.Description("Day as YYYY-MM-DD (default: today)")),
	), s.readNote)

	s.addTool(mcp.NewTool("save_note",
		mcp.WithDescription("Replace the daily note for a day. Content SHOULD follow the LifeOS "+
			"note conventions; read them first via get_conventions or the "+conventionsURI+" resource."),
		mcp.WithString("date", mcp.Description("Day as YYYY-MM-DD (default: today)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown note content")),
	), s.saveNote)

	s.addTool(mcp.NewTool("attach_photo",
		mcp.WithDescription("Attach a photo to a daily note from an http(s) URL or a base64 data URI."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:image/...;base64,... URI")),
		mcp.WithString("date", mcp.Description("Day as YYYY-MM-DD (default: today)")),
		mcp.WithString("filename", mcp.Description("Optional file name hint (e.g. sunset.jpg)")),
	), s.attachPhoto)

	s.addTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Task completion statistics over a date range, with per-category counts."),
		mcp.WithString("from", mcp.Description("First day as YYYY-MM-DD (default: today)")),
		mcp.WithString("to", mcp.Description("Last day as YYYY-MM-DD (default: from)")),
	), s.getStats)

	s.addTool(mcp.NewTool("match_goal",
		mcp.WithDescription("Find the monthly focus a task title contributes to."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
	), s.matchGoal)

	s.addTool(mcp.NewTool("search",
		mcp.WithDescription("Full-text search across tasks, notes, check-ins, reminders, focuses and conversation."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.search)

	s.addTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find the entries that reference a day with a [[YYYY-MM-DD]] link."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Referenced day as YYYY-MM-DD")),
	), s.getBacklinks)

	s.addTool(mcp.NewTool("get_conventions",
		mcp.WithDescription("Returns the LifeOS daily note conventions. "+
			"Call this before writing notes so links and tags are indexed."),
	), s.getConventions)

	s.mcp.AddResource(
		mcp.NewResource(conventionsURI, "Daily Note Conventions",
			mcp.WithResourceDescription("Markdown conventions that LifeOS indexes in daily notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readConventionsResource,
	)

	return s
}

func (s *Server) addTool(tool mcp.Tool, h server.ToolHandlerFunc) {
	s.handlers[tool.Name] = h
	s.mcp.AddTool(tool, h)
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) date(req mcp.CallToolRequest, key string) string {
	if d := strings.TrimSpace(req.GetString(key, "")); d != "" && d != "today" {
		return d
	}
	return s.svc.Today()
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("the entry changed since it was read")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := s.svc.Store().TasksForDate(s.date(req, "date"))
	if err != nil {
		return errorResult(err), nil
	}
	if len(tasks) == 0 {
		return mcp.NewToolResultText("no tasks"), nil
	}
	return jsonResult(tasks)
}

func (s *Server) createTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := s.svc.CreateTask(ctx, store.TaskInput{
		Title:     title,
		Date:      s.date(req, "date"),
		StartTime: req.GetString("start_time", ""),
		EndTime:   req.GetString("end_time", ""),
		Category:  req.GetString("category", ""),
	})
	if err != nil {
		return errorResult(err), nil
	}
	goal, _ := s.svc.MatchGoal(ctx, task.Title)
	return jsonResult(map[string]any{"task": task, "goal": goal})
}

func (s *Server) completeTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := s.svc.CompleteTask(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("done: %s", task.Title)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date := s.date(req, "date")
	n, err := s.svc.GetNote(ctx, date)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no note for %s", date)), nil
		}
		return errorResult(err), nil
	}
	return jsonResult(n)
}

func (s *Server) saveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.SaveNote(ctx, s.date(req, "date"), content, "")
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s", n.Date)), nil
}

func (s *Server) getStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from := s.date(req, "from")
	to := req.GetString("to", "")
	if to == "" {
		to = from
	}
	v, err := s.svc.Stats(ctx, from, to)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(v)
}

func (s *Server) matchGoal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.MatchGoal(ctx, title)
	if err != nil {
		return errorResult(err), nil
	}
	if !m.Matched {
		return mcp.NewToolResultText("no matching focus"), nil
	}
	return jsonResult(m)
}

func (s *Server) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(results)
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, date)
	if err != nil {
		return errorResult(err), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	lines := make([]string, 0, len(bl))
	for _, ref := range bl {
		lines = append(lines, fmt.Sprintf("%s/%s", ref.Kind, ref.ID))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getConventions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteConventions), nil
}

func (s *Server) readConventionsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      conventionsURI,
			MIMEType: "text/markdown",
			Text:     NoteConventions,
		},
	}, nil
}
