package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/starford/lifeos/internal/index"
	"github.com/starford/lifeos/internal/lifeservice"
	"github.com/starford/lifeos/internal/models"
	"github.com/starford/lifeos/internal/store"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorDanger  = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	doneStyle    = lipgloss.NewStyle().Foreground(colorSuccess)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarning)
	dangerStyle  = lipgloss.NewStyle().Foreground(colorDanger)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorPrimary).Padding(0, 1)
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	replyStyle   = lipgloss.NewStyle().PaddingLeft(2)
	urgencyStyle = map[string]lipgloss.Style{
		models.UrgencyHigh:   dangerStyle,
		models.UrgencyMedium: warnStyle,
		models.UrgencyLow:    mutedStyle,
	}
)

func out(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return io.Discard
}

func renderTasks(w io.Writer, heading string, tasks []models.Task) {
	fmt.Fprintln(w, titleStyle.Render(heading))
	if len(tasks) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  nothing scheduled"))
		return
	}
	for _, t := range tasks {
		fmt.Fprintln(w, taskLine(t))
	}
}

func taskLine(t models.Task) string {
	box := "[ ]"
	title := t.Title
	if t.Completed {
		box = doneStyle.Render("[x]")
		title = doneStyle.Render(title)
	}
	when := t.StartTime
	if t.EndTime != "" {
		when += "-" + t.EndTime
	}
	var meta []string
	if t.Category != "" {
		meta = append(meta, "#"+t.Category)
	}
	if t.MovedFrom != "" {
		meta = append(meta, "moved from "+t.MovedFrom)
	}
	meta = append(meta, t.ID)
	return fmt.Sprintf("  %s %-11s %s %s", box, when, title, mutedStyle.Render(strings.Join(meta, " · ")))
}

func renderNote(w io.Writer, n *lifeservice.NoteDetail) {
	heading := n.Date
	if n.Title != "" {
		heading += "  " + n.Title
	}
	fmt.Fprintln(w, titleStyle.Render(heading))
	fmt.Fprintln(w, panelStyle.Render(strings.TrimRight(n.Content, "\n")))
	if n.Photo != "" {
		fmt.Fprintln(w, mutedStyle.Render("photo: "+n.Photo))
	}
	if len(n.Tags) > 0 {
		fmt.Fprintln(w, mutedStyle.Render("tags: #"+strings.Join(n.Tags, " #")))
	}
	for _, ref := range n.Backlinks {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("← %s %s", ref.Kind, ref.ID)))
	}
	fmt.Fprintln(w, mutedStyle.Render("checksum: "+n.Checksum))
}

func renderStats(w io.Writer, v lifeservice.StatsView) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s → %s", v.From, v.To)))
	fmt.Fprintf(w, "  %d of %d tasks done (%d%%), %d check-ins\n", v.Completed, v.Total, v.CompletionRate, v.CheckIns)
	cats := make([]string, 0, len(v.ByCategory))
	for c := range v.ByCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		cs := v.ByCategory[c]
		fmt.Fprintf(w, "  %-12s %d/%d\n", c, cs.Completed, cs.Total)
	}
	if v.Encouragement != "" {
		fmt.Fprintln(w, doneStyle.Render(v.Encouragement))
	}
}

func renderReminders(w io.Writer, reminders []models.Reminder) {
	fmt.Fprintln(w, titleStyle.Render("Reminders"))
	if len(reminders) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  none"))
		return
	}
	for _, r := range reminders {
		fmt.Fprintln(w, reminderLine(r))
	}
}

func reminderLine(r models.Reminder) string {
	box := "[ ]"
	if r.Done {
		box = doneStyle.Render("[x]")
	}
	style, ok := urgencyStyle[r.Urgency]
	if !ok {
		style = mutedStyle
	}
	line := fmt.Sprintf("  %s %s %s", box, style.Render(fmt.Sprintf("%-6s", r.Urgency)), r.Title)
	var meta []string
	if r.DueAt != nil {
		meta = append(meta, "due "+r.DueAt.Local().Format("2006-01-02 15:04"))
	}
	if r.Repeat != "" {
		meta = append(meta, "repeats "+r.Repeat)
	}
	if r.LocalOnly {
		meta = append(meta, "not synced")
	}
	meta = append(meta, r.ID)
	return line + " " + mutedStyle.Render(strings.Join(meta, " · "))
}

// renderOutcome warns when a remote-backed write only reached local storage.
func renderOutcome(w io.Writer, outcome store.Outcome, cause error) {
	if outcome != store.Degraded {
		return
	}
	msg := "Saved locally; the backend could not be reached."
	if cause != nil {
		msg += " (" + cause.Error() + ")"
	}
	fmt.Fprintln(w, warnStyle.Render(msg))
}

func renderSearch(w io.Writer, results []index.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no results"))
		return
	}
	for _, r := range results {
		label := r.Title
		if r.Date != "" {
			label = r.Date + "  " + label
		}
		fmt.Fprintf(w, "%s %s\n", mutedStyle.Render(fmt.Sprintf("%-8s", r.Kind)), label)
		if r.Snippet != "" {
			fmt.Fprintln(w, mutedStyle.Render("         "+r.Snippet))
		}
	}
}

func renderMessage(w io.Writer, m models.ConversationMessage) {
	if m.Role == models.RoleUser {
		fmt.Fprintln(w, userStyle.Render("you: ")+m.Content)
		return
	}
	fmt.Fprintln(w, replyStyle.Render(m.Content))
	for _, a := range m.Actions {
		fmt.Fprintln(w, mutedStyle.Render("  suggested: "+actionLabel(a)))
	}
}

func actionLabel(a models.Action) string {
	if title, ok := a.Payload["title"].(string); ok && title != "" {
		return fmt.Sprintf("%s %q", a.Type, title)
	}
	return a.Type
}
