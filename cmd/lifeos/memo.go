package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/lifeos/internal"
	"github.com/starford/lifeos/internal/models"
)

// memoCommand manages free-standing notes. They live on the backend only.
func memoCommand() *cli.Command {
	return &cli.Command{
		Name:  "memo",
		Usage: "Manage free-standing notes on the backend",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List notes, pinned first",
				Action: withClient(listMemos),
			},
			{
				Name:      "add",
				Usage:     "Create a note; the body is read from --text",
				ArgsUsage: "TITLE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Note body"},
					&cli.BoolFlag{Name: "pin", Usage: "Pin the note"},
				},
				Action: withClient(addMemo),
			},
			{
				Name:      "edit",
				Usage:     "Change a note's title, body or pin",
				ArgsUsage: "ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "New title"},
					&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "New body"},
					&cli.BoolFlag{Name: "pin", Usage: "Pin or unpin (--pin=false)"},
				},
				Action: withClient(editMemo),
			},
			{
				Name:      "rm",
				Usage:     "Delete a note",
				ArgsUsage: "ID",
				Action: withClient(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					id, err := requireArg(cmd, "id")
					if err != nil {
						return err
					}
					if err := app.Client.DeleteGlobalNote(ctx, id); err != nil {
						return err
					}
					fmt.Fprintln(out(cmd), mutedStyle.Render("deleted "+id))
					return nil
				}),
			},
		},
	}
}

func listMemos(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	notes, err := app.Client.GlobalNotes(ctx)
	if err != nil {
		return err
	}
	w := out(cmd)
	if len(notes) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no notes"))
		return nil
	}
	for _, pinned := range []bool{true, false} {
		for _, n := range notes {
			if n.Pinned == pinned {
				fmt.Fprintln(w, memoLine(n))
			}
		}
	}
	return nil
}

func memoLine(n models.GlobalNote) string {
	mark := "  "
	if n.Pinned {
		mark = warnStyle.Render("* ")
	}
	line := mark + n.Title
	if first, _, _ := strings.Cut(strings.TrimSpace(n.Content), "\n"); first != "" && first != n.Title {
		line += mutedStyle.Render("  " + first)
	}
	return line + mutedStyle.Render("  "+n.ID)
}

func addMemo(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	title, err := requireArg(cmd, "title")
	if err != nil {
		return err
	}
	n, err := app.Client.CreateGlobalNote(ctx, models.GlobalNote{
		Title:   title,
		Content: cmd.String("text"),
		Pinned:  cmd.Bool("pin"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), memoLine(n))
	return nil
}

func editMemo(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	patch := make(map[string]any)
	if cmd.IsSet("title") {
		title := strings.TrimSpace(cmd.String("title"))
		if title == "" {
			return errors.New("title must not be blank")
		}
		patch["title"] = title
	}
	if cmd.IsSet("text") {
		patch["content"] = cmd.String("text")
	}
	if cmd.IsSet("pin") {
		patch["pinned"] = cmd.Bool("pin")
	}
	if len(patch) == 0 {
		return errors.New("nothing to change: pass --title, --text or --pin")
	}
	n, err := app.Client.UpdateGlobalNote(ctx, id, patch)
	if err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), memoLine(n))
	return nil
}
