package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/lifeos/internal"
	"github.com/starford/lifeos/internal/models"
	"github.com/starford/lifeos/internal/store"
)

func dateFlag(usage string) *cli.StringFlag {
	return &cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: usage}
}

// dayArg resolves a date from the flag, the first argument or today, in that order.
func dayArg(cmd *cli.Command, app *internal.App) string {
	if d := cmd.String("date"); d != "" && d != "today" {
		return d
	}
	if d := cmd.Args().First(); d != "" && d != "today" {
		return d
	}
	return app.Service.Today()
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}

func tasksCommand() *cli.Command {
	return &cli.Command{
		Name:    "tasks",
		Aliases: []string{"t"},
		Usage:   "Plan and complete tasks",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Aliases:   []string{"ls"},
				Usage:     "List tasks for a day or a range",
				ArgsUsage: "[DATE]",
				Flags: []cli.Flag{
					dateFlag("Day to list (default: today)"),
					&cli.StringFlag{Name: "from", Usage: "First day of a range"},
					&cli.StringFlag{Name: "to", Usage: "Last day of a range"},
				},
				Action: withApp(listTasks),
			},
			{
				Name:      "add",
				Usage:     "Schedule a task",
				ArgsUsage: "TITLE",
				Flags: []cli.Flag{
					dateFlag("Day (default: today)"),
					&cli.StringFlag{Name: "at", Usage: "Start time HH:MM"},
					&cli.StringFlag{Name: "until", Usage: "End time HH:MM"},
					&cli.StringFlag{Name: "category", Aliases: []string{"cat"}, Usage: "Category label"},
				},
				Action: withApp(addTask),
			},
			{
				Name:      "done",
				Usage:     "Mark a task completed",
				ArgsUsage: "ID",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					id, err := requireArg(cmd, "task id")
					if err != nil {
						return err
					}
					t, err := app.Service.CompleteTask(ctx, id)
					if err != nil {
						return err
					}
					fmt.Fprintln(out(cmd), taskLine(t))
					return nil
				}),
			},
			{
				Name:      "toggle",
				Usage:     "Flip a task between done and not done",
				ArgsUsage: "ID",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					id, err := requireArg(cmd, "task id")
					if err != nil {
						return err
					}
					t, err := app.Service.ToggleTask(ctx, id)
					if err != nil {
						return err
					}
					fmt.Fprintln(out(cmd), taskLine(t))
					return nil
				}),
			},
			{
				Name:      "rm",
				Usage:     "Delete a task",
				ArgsUsage: "ID",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					id, err := requireArg(cmd, "task id")
					if err != nil {
						return err
					}
					if err := app.Service.DeleteTask(ctx, id); err != nil {
						return err
					}
					fmt.Fprintln(out(cmd), mutedStyle.Render("deleted "+id))
					return nil
				}),
			},
			{
				Name:      "move",
				Usage:     "Move a task to another day",
				ArgsUsage: "ID DATE",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					if cmd.Args().Len() != 2 {
						return errors.New("usage: lifeos tasks move ID DATE")
					}
					t, err := app.Service.MoveTask(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
					if err != nil {
						return err
					}
					fmt.Fprintln(out(cmd), taskLine(t))
					return nil
				}),
			},
		},
	}
}

func listTasks(_ context.Context, cmd *cli.Command, app *internal.App) error {
	var (
		tasks   []models.Task
		heading string
		err     error
	)
	if from, to := cmd.String("from"), cmd.String("to"); from != "" || to != "" {
		tasks, err = app.Store.TasksInRange(from, to)
		heading = fmt.Sprintf("Tasks %s → %s", from, to)
	} else {
		day := dayArg(cmd, app)
		tasks, err = app.Store.TasksForDate(day)
		heading = "Tasks for " + day
	}
	if err != nil {
		return err
	}
	renderTasks(out(cmd), heading, tasks)
	return nil
}

func addTask(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	title, err := requireArg(cmd, "title")
	if err != nil {
		return err
	}
	day := cmd.String("date")
	if day == "" || day == "today" {
		day = app.Service.Today()
	}
	t, err := app.Service.CreateTask(ctx, store.TaskInput{
		Title:     title,
		Date:      day,
		StartTime: cmd.String("at"),
		EndTime:   cmd.String("until"),
		Category:  cmd.String("category"),
	})
	if err != nil {
		return err
	}
	w := out(cmd)
	fmt.Fprintln(w, taskLine(t))
	if m, err := app.Service.MatchGoal(ctx, t.Title); err == nil && m.Matched {
		fmt.Fprintln(w, doneStyle.Render("→ moves you toward "+m.Goal))
	}
	return nil
}
