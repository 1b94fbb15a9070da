package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/lifeos/internal"
	"github.com/starford/lifeos/internal/apiclient"
	"github.com/starford/lifeos/internal/models"
)

func briefCommand() *cli.Command {
	return &cli.Command{
		Name:   "brief",
		Usage:  "Show the assistant's morning briefing",
		Action: withClient(runBrief),
	}
}

func todayCommand() *cli.Command {
	return &cli.Command{
		Name:   "today",
		Usage:  "Show the assistant's summary of today",
		Action: withClient(runToday),
	}
}

func suggestCommand() *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "List the actions the assistant suggests for a screen",
		ArgsUsage: "[SCREEN]",
		Action:    withClient(runSuggest),
	}
}

func runBrief(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	b, err := app.Client.MorningBriefing(ctx)
	if err != nil {
		return err
	}
	w := out(cmd)
	fmt.Fprintln(w, titleStyle.Render("Good morning"))
	fmt.Fprintln(w, panelStyle.Render(strings.TrimSpace(b.Text)))
	return nil
}

func runToday(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	s, err := app.Client.Today(ctx)
	if err != nil {
		return err
	}
	renderToday(out(cmd), s)
	return nil
}

func renderToday(w io.Writer, s apiclient.TodaySummary) {
	if s.Summary != "" {
		fmt.Fprintln(w, panelStyle.Render(s.Summary))
	}
	renderTasks(w, "Tasks for "+s.Date, s.Tasks)
	if len(s.Reminders) > 0 {
		renderReminders(w, s.Reminders)
	}
	if s.Focus != nil {
		fmt.Fprintf(w, "%s %s %s\n", titleStyle.Render("Focus"), s.Focus.Title, mutedStyle.Render(fmt.Sprintf("%d%%", s.Focus.Progress)))
	}
}

func runSuggest(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	screen := strings.TrimSpace(cmd.Args().First())
	if screen == "" {
		screen = "today"
	}
	actions, err := app.Client.ContextActions(ctx, screen)
	if err != nil {
		return err
	}
	renderActions(out(cmd), actions)
	return nil
}

func renderActions(w io.Writer, actions []models.Action) {
	if len(actions) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no suggestions"))
		return
	}
	for _, a := range actions {
		fmt.Fprintln(w, "  "+actionLabel(a))
	}
}

// chatGreeting asks the backend to open an assistant session. Without a
// backend, or when it cannot be reached, the local greeting is used.
func chatGreeting(ctx context.Context, app *internal.App) (string, []string) {
	if app.Client != nil {
		ac, err := app.Client.AssistantBootstrap(ctx)
		if err == nil && ac.Greeting != "" {
			return ac.Greeting, ac.Suggestions
		}
	}
	return app.Service.Greeting(), nil
}
