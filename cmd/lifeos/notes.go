package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/lifeos/internal"
	"github.com/starford/lifeos/internal/apperr"
	"github.com/starford/lifeos/internal/models"
	"github.com/starford/lifeos/internal/store"
)

func noteCommand() *cli.Command {
	return &cli.Command{
		Name:  "note",
		Usage: "Read and write the daily journal",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Print the note for a day",
				ArgsUsage: "[DATE]",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					day := dayArg(cmd, app)
					n, err := app.Service.GetNote(ctx, day)
					if errors.Is(err, apperr.ErrNotFound) {
						fmt.Fprintln(out(cmd), mutedStyle.Render("no note for "+day))
						return nil
					}
					if err != nil {
						return err
					}
					renderNote(out(cmd), n)
					return nil
				}),
			},
			{
				Name:      "save",
				Usage:     "Replace the note for a day with text from a file or stdin",
				ArgsUsage: "[DATE]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read the note from this file (default: stdin)"},
					&cli.StringFlag{Name: "if-match", Usage: "Only save if the stored note still has this checksum"},
				},
				Action: withApp(saveNote),
			},
			{
				Name:      "photo",
				Usage:     "Attach a photo to the note for a day",
				ArgsUsage: "FILE",
				Flags:     []cli.Flag{dateFlag("Day (default: today)")},
				Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					path, err := requireArg(cmd, "photo file")
					if err != nil {
						return err
					}
					data, err := os.ReadFile(path)
					if err != nil {
						return err
					}
					day := cmd.String("date")
					if day == "" || day == "today" {
						day = app.Service.Today()
					}
					n, err := app.Service.AttachPhoto(ctx, day, filepath.Base(path), data)
					if err != nil {
						return err
					}
					fmt.Fprintln(out(cmd), doneStyle.Render("attached "+n.Photo+" to "+n.Date))
					return nil
				}),
			},
			{
				Name:      "rm",
				Usage:     "Delete the note for a day",
				ArgsUsage: "DATE",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					day, err := requireArg(cmd, "date")
					if err != nil {
						return err
					}
					if err := app.Service.DeleteNote(ctx, day); err != nil {
						return err
					}
					fmt.Fprintln(out(cmd), mutedStyle.Render("deleted note "+day))
					return nil
				}),
			},
		},
	}
}

func saveNote(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	var r io.Reader = cmd.Root().Reader
	if r == nil {
		r = os.Stdin
	}
	if path := cmd.String("file"); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	content, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return err
	}

	n, err := app.Service.SaveNote(ctx, dayArg(cmd, app), string(content), cmd.String("if-match"))
	if errors.Is(err, apperr.ErrConflict) {
		return errors.New("the note changed since you read it; run `lifeos note show` and retry")
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), doneStyle.Render(fmt.Sprintf("saved %s (%s)", n.Date, n.Checksum)))
	return nil
}

func checkInCommand() *cli.Command {
	return &cli.Command{
		Name:      "checkin",
		Usage:     "Close out a day: record what got done and move the rest",
		ArgsUsage: "[DATE]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "note", Aliases: []string{"n"}, Usage: "Reflection for the day"},
			&cli.StringSliceFlag{Name: "move", Usage: "Move an unfinished task, as ID=YYYY-MM-DD (repeatable)"},
		},
		Action: withApp(runCheckIn),
	}
}

func runCheckIn(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	day := dayArg(cmd, app)
	tasks, err := app.Store.TasksForDate(day)
	if err != nil {
		return err
	}
	moves, err := parseMoves(cmd.StringSlice("move"))
	if err != nil {
		return err
	}
	moved := make(map[string]bool, len(moves))
	for _, m := range moves {
		moved[m.TaskID] = true
	}

	in := store.CheckInInput{Date: day, Note: cmd.String("note"), Moves: moves}
	for _, t := range tasks {
		switch {
		case t.Completed:
			in.Completed = append(in.Completed, t.ID)
		case !moved[t.ID]:
			in.Incomplete = append(in.Incomplete, t.ID)
		}
	}

	c, err := app.Service.SaveCheckIn(ctx, in)
	if err != nil {
		return err
	}
	w := out(cmd)
	fmt.Fprintln(w, titleStyle.Render("Check-in "+c.Date))
	fmt.Fprintf(w, "  %d done, %d not done, %d moved\n", len(c.Completed), len(c.Incomplete), len(c.Moves))
	return nil
}

func parseMoves(specs []string) ([]models.TaskMove, error) {
	moves := make([]models.TaskMove, 0, len(specs))
	for _, s := range specs {
		id, date, ok := strings.Cut(s, "=")
		if !ok || id == "" || date == "" {
			return nil, fmt.Errorf("invalid move %q: want ID=YYYY-MM-DD", s)
		}
		moves = append(moves, models.TaskMove{TaskID: id, NewDate: date})
	}
	return moves, nil
}

func focusCommand() *cli.Command {
	return &cli.Command{
		Name:      "focus",
		Usage:     "Show or set the monthly focus",
		ArgsUsage: "[TITLE]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "month", Usage: "Month as YYYY-MM (default: this month)"},
			&cli.StringFlag{Name: "description", Aliases: []string{"desc"}, Usage: "What the focus involves"},
			&cli.StringFlag{Name: "progress", Usage: "Progress 0-100"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			month := cmd.String("month")
			if month == "" {
				month = app.Service.Today()[:7]
			}
			w := out(cmd)
			title := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			if title == "" {
				f, err := app.Store.FocusForMonth(month)
				if errors.Is(err, apperr.ErrNotFound) {
					fmt.Fprintln(w, mutedStyle.Render("no focus for "+month))
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s %s %s\n", titleStyle.Render(f.Month), f.Title, mutedStyle.Render(fmt.Sprintf("%d%%", f.Progress)))
				if f.Description != "" {
					fmt.Fprintln(w, mutedStyle.Render("  "+f.Description))
				}
				return nil
			}
			progress := 0
			if p := cmd.String("progress"); p != "" {
				v, err := strconv.Atoi(p)
				if err != nil {
					return fmt.Errorf("progress must be a number: %w", err)
				}
				progress = v
			}
			f, err := app.Service.SaveFocus(ctx, store.FocusInput{
				Month:       month,
				Title:       title,
				Description: cmd.String("description"),
				Progress:    progress,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(w, doneStyle.Render(fmt.Sprintf("focus for %s: %s", f.Month, f.Title)))
			return nil
		}),
	}
}
