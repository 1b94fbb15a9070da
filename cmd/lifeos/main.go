package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/lifeos/internal"
	pkgconfig "github.com/starford/lifeos/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// openApp wires the client core for a one-shot command. Logs go to stderr so
// command output stays clean.
func openApp(cmd *cli.Command) (*internal.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	errOut := cmd.Root().ErrWriter
	if errOut == nil {
		errOut = os.Stderr
	}
	return internal.Open(
		internal.WithConfig(cfg),
		internal.WithLogOutput(errOut),
		internal.WithSessionExpired(func() {
			fmt.Fprintln(errOut, warnStyle.Render("Session expired. Run `lifeos auth login` to sign in again."))
		}),
	)
}

// withApp adapts a command body that needs the wired core.
func withApp(fn func(ctx context.Context, cmd *cli.Command, app *internal.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(ctx, cmd, app)
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stdout)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "lifeos",
		Usage: "Personal tasks, daily notes and check-ins with an AI assistant",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the companion HTTP server with live events",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve LifeOS tools to an LLM over MCP stdio",
				Action: serveMCP,
			},
			authCommand(),
			tasksCommand(),
			noteCommand(),
			checkInCommand(),
			focusCommand(),
			remindCommand(),
			{
				Name:  "stats",
				Usage: "Show completion statistics",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "First day (YYYY-MM-DD, default: first of this month)"},
					&cli.StringFlag{Name: "to", Usage: "Last day (YYYY-MM-DD, default: today)"},
				},
				Action: withApp(runStats),
			},
			{
				Name:      "match",
				Usage:     "Find the monthly focus a task title serves",
				ArgsUsage: "TITLE",
				Action:    withApp(runMatch),
			},
			{
				Name:      "search",
				Usage:     "Full-text search across tasks, notes and more",
				ArgsUsage: "QUERY",
				Action:    withApp(runSearch),
			},
			{
				Name:  "sync",
				Usage: "Push pending writes and pull tasks, reminders and categories",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Also pull the note, check-in and focus for this day (YYYY-MM-DD or today)"},
				},
				Action: withApp(runSync),
			},
			{
				Name:   "greet",
				Usage:  "Print a greeting for right now",
				Action: withApp(runGreet),
			},
			chatCommand(),
			briefCommand(),
			todayCommand(),
			suggestCommand(),
			memoCommand(),
		},
	}
}

func main() {
	if err := newRootCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
