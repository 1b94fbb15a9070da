package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/lifeos/internal"
	"github.com/starford/lifeos/internal/store"
)

func runStats(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	today := app.Service.Today()
	from, to := cmd.String("from"), cmd.String("to")
	if to == "" {
		to = today
	}
	if from == "" && len(to) >= len(store.MonthLayout) {
		from = to[:len(store.MonthLayout)] + "-01"
	}
	v, err := app.Service.Stats(ctx, from, to)
	if err != nil {
		return err
	}
	renderStats(out(cmd), v)
	return nil
}

func runMatch(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	title, err := requireArg(cmd, "title")
	if err != nil {
		return err
	}
	m, err := app.Service.MatchGoal(ctx, title)
	if err != nil {
		return err
	}
	if !m.Matched {
		fmt.Fprintln(out(cmd), mutedStyle.Render("no matching focus"))
		return nil
	}
	fmt.Fprintf(out(cmd), "%s %s\n", doneStyle.Render(m.Goal), mutedStyle.Render(fmt.Sprintf("score %.2f", m.Score)))
	return nil
}

func runSearch(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	query, err := requireArg(cmd, "query")
	if err != nil {
		return err
	}
	results, err := app.Service.Search(ctx, query, 20)
	if err != nil {
		return err
	}
	renderSearch(out(cmd), results)
	return nil
}

func runSync(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	rep, err := app.Service.SyncRemote(ctx)
	if err != nil {
		return err
	}
	w := out(cmd)
	switch rep.Outcome {
	case store.Local.String():
		fmt.Fprintln(w, mutedStyle.Render("No backend configured; nothing to sync."))
	case store.Degraded.String():
		fmt.Fprintln(w, warnStyle.Render("Sync incomplete: the backend could not be reached for every collection."))
	default:
		fmt.Fprintln(w, doneStyle.Render("Synced."))
	}
	fmt.Fprintf(w, "  %d tasks, %d reminders, %d categories, %d pushed\n", rep.Tasks, rep.Reminders, rep.Categories, rep.Pushed)

	date := cmd.String("date")
	if date == "" {
		return nil
	}
	if date == "today" {
		date = app.Service.Today()
	}
	day, err := app.Service.PullDay(ctx, date)
	if err != nil {
		return err
	}
	if day.Outcome == store.Local.String() {
		return nil
	}
	var pulled []string
	for _, p := range []struct {
		name string
		ok   bool
	}{{"note", day.Note}, {"check-in", day.CheckIn}, {"focus", day.Focus}} {
		if p.ok {
			pulled = append(pulled, p.name)
		}
	}
	if len(pulled) == 0 {
		pulled = []string{"nothing new"}
	}
	fmt.Fprintf(w, "  %s: %d tasks; %s\n", day.Date, day.Tasks, strings.Join(pulled, ", "))
	if day.Outcome == store.Degraded.String() {
		fmt.Fprintln(w, warnStyle.Render("  some of the day could not be fetched"))
	}
	return nil
}

func runGreet(_ context.Context, cmd *cli.Command, app *internal.App) error {
	fmt.Fprintln(out(cmd), titleStyle.Render(app.Service.Greeting()))
	return nil
}
