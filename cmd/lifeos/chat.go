package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"github.com/starford/lifeos/internal"
	"github.com/starford/lifeos/internal/lifeservice"
)

const chatHelp = `/history  show the conversation so far
/clear    forget the conversation
/quit     leave`

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:      "chat",
		Usage:     "Talk to the assistant; without a message, start an interactive session",
		ArgsUsage: "[MESSAGE]",
		Action:    withApp(runChat),
	}
}

func runChat(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	w := out(cmd)
	if msg := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " ")); msg != "" {
		return sendChat(ctx, w, app.Service, msg)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            userStyle.Render("you: "),
		HistoryFile:       filepath.Join(app.Config.Data.Path, "chat_history"),
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	defer rl.Close()

	greeting, suggestions := chatGreeting(ctx, app)
	fmt.Fprintln(w, titleStyle.Render(greeting))
	for _, s := range suggestions {
		fmt.Fprintln(w, mutedStyle.Render("  try: "+s))
	}
	fmt.Fprintln(w, mutedStyle.Render(chatHelp))
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch line = strings.TrimSpace(line); line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := app.Store.ClearConversation(); err != nil {
				return err
			}
			fmt.Fprintln(w, mutedStyle.Render("conversation cleared"))
			continue
		case "/history":
			log, err := app.Store.Conversation()
			if err != nil {
				return err
			}
			for _, m := range log {
				renderMessage(w, m)
			}
			continue
		}

		if err := sendChat(ctx, w, app.Service, line); err != nil {
			if errors.Is(err, errNoBackend) {
				return err
			}
			fmt.Fprintln(w, dangerStyle.Render(err.Error()))
		}
	}
}

func sendChat(ctx context.Context, w io.Writer, svc *lifeservice.Service, msg string) error {
	reply, err := svc.Chat(ctx, msg)
	if errors.Is(err, lifeservice.ErrNoAssistant) {
		return errNoBackend
	}
	if err != nil {
		return err
	}
	renderMessage(w, reply)
	return nil
}
