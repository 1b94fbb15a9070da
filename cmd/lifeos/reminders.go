package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/starford/lifeos/internal"
	"github.com/starford/lifeos/internal/models"
	"github.com/starford/lifeos/internal/store"
)

var dueLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04", store.DateLayout}

// parseDue reads a due time in the local zone. A bare date means 09:00.
func parseDue(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range dueLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		if layout == store.DateLayout {
			t = t.Add(9 * time.Hour)
		}
		return &t, nil
	}
	return nil, fmt.Errorf("invalid due time %q: want YYYY-MM-DD or YYYY-MM-DD HH:MM", s)
}

func remindCommand() *cli.Command {
	return &cli.Command{
		Name:  "remind",
		Usage: "Manage reminders",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List reminders",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "refresh", Aliases: []string{"r"}, Usage: "Reload from the backend first"},
					&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Include finished reminders"},
				},
				Action: withApp(listReminders),
			},
			{
				Name:      "add",
				Usage:     "Create a reminder",
				ArgsUsage: "TITLE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "urgency", Aliases: []string{"u"}, Value: models.UrgencyMedium, Usage: "low, medium or high"},
					&cli.StringFlag{Name: "due", Usage: "Due time, YYYY-MM-DD or YYYY-MM-DD HH:MM"},
					&cli.StringFlag{Name: "repeat", Usage: "Repeat rule (e.g. daily, weekly)"},
				},
				Action: withApp(addReminder),
			},
			{
				Name:      "done",
				Usage:     "Mark a reminder done",
				ArgsUsage: "ID",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					id, err := requireArg(cmd, "reminder id")
					if err != nil {
						return err
					}
					done := true
					res, err := app.Service.UpdateReminder(ctx, id, models.ReminderPatch{Done: &done})
					if err != nil {
						return err
					}
					fmt.Fprintln(out(cmd), reminderLine(res.Value))
					renderOutcome(out(cmd), res.Outcome, res.Cause)
					return nil
				}),
			},
			{
				Name:      "rm",
				Usage:     "Delete a reminder",
				ArgsUsage: "ID",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					id, err := requireArg(cmd, "reminder id")
					if err != nil {
						return err
					}
					res, err := app.Service.DeleteReminder(ctx, id)
					if err != nil {
						return err
					}
					fmt.Fprintln(out(cmd), mutedStyle.Render("deleted "+id))
					renderOutcome(out(cmd), res.Outcome, res.Cause)
					return nil
				}),
			},
		},
	}
}

func listReminders(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	var reminders []models.Reminder
	if cmd.Bool("refresh") {
		res, err := app.Store.LoadReminders(ctx)
		if err != nil {
			return err
		}
		reminders = res.Value
		defer renderOutcome(out(cmd), res.Outcome, res.Cause)
	} else {
		var err error
		if reminders, err = app.Store.Reminders(); err != nil {
			return err
		}
	}
	if !cmd.Bool("all") {
		open := reminders[:0:0]
		for _, r := range reminders {
			if !r.Done {
				open = append(open, r)
			}
		}
		reminders = open
	}
	renderReminders(out(cmd), reminders)
	return nil
}

func addReminder(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	title, err := requireArg(cmd, "title")
	if err != nil {
		return err
	}
	due, err := parseDue(cmd.String("due"), time.Local)
	if err != nil {
		return err
	}
	res, err := app.Service.CreateReminder(ctx, store.ReminderInput{
		Title:   title,
		Urgency: cmd.String("urgency"),
		DueAt:   due,
		Repeat:  cmd.String("repeat"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), reminderLine(res.Value))
	renderOutcome(out(cmd), res.Outcome, res.Cause)
	return nil
}
