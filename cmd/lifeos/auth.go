package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"github.com/starford/lifeos/internal"
	"github.com/starford/lifeos/internal/apiclient"
)

var errNoBackend = errors.New("no backend configured: set api.base_url in the config file")

// withClient is withApp for commands that need the backend.
func withClient(fn func(ctx context.Context, cmd *cli.Command, app *internal.App) error) cli.ActionFunc {
	return withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
		if app.Client == nil {
			return errNoBackend
		}
		return fn(ctx, cmd, app)
	})
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Sign in to the LifeOS backend",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Account email", Sources: cli.EnvVars("LIFEOS_EMAIL")},
					&cli.StringFlag{Name: "password", Usage: "Account password (prompted when empty)", Sources: cli.EnvVars("LIFEOS_PASSWORD")},
				},
				Action: withClient(login),
			},
			{
				Name:  "logout",
				Usage: "End the session and forget stored cookies",
				Action: withClient(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					if err := app.Client.Logout(ctx); err != nil {
						return err
					}
					fmt.Fprintln(out(cmd), mutedStyle.Render("Signed out."))
					return nil
				}),
			},
			{
				Name:   "status",
				Usage:  "Show the current session",
				Action: withClient(authStatus),
			},
			{
				Name:  "signup",
				Usage: "Create an account and sign in",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Account email", Sources: cli.EnvVars("LIFEOS_EMAIL")},
					&cli.StringFlag{Name: "password", Usage: "Account password (prompted when empty)", Sources: cli.EnvVars("LIFEOS_PASSWORD")},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Display name"},
				},
				Action: withClient(signup),
			},
			{
				Name:   "refresh",
				Usage:  "Renew the access token now",
				Action: withClient(refreshSession),
			},
			{
				Name:   "password",
				Usage:  "Change the password of the signed-in account",
				Action: withClient(changePassword),
			},
			{
				Name:      "forgot",
				Usage:     "Mail a password reset link",
				ArgsUsage: "EMAIL",
				Action:    withClient(forgotPassword),
			},
			{
				Name:  "reset",
				Usage: "Set a new password with a reset token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "token", Aliases: []string{"t"}, Usage: "Token from the reset email", Required: true},
				},
				Action: withClient(resetPassword),
			},
			{
				Name:      "avatar",
				Usage:     "Upload a new profile picture",
				ArgsUsage: "FILE",
				Action:    withClient(uploadAvatar),
			},
		},
	}
}

// prompter reads missing credentials from the terminal. The terminal is
// opened on first use.
type prompter struct {
	rl *readline.Instance
}

func (p *prompter) open() error {
	if p.rl != nil {
		return nil
	}
	rl, err := readline.New("")
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	p.rl = rl
	return nil
}

func (p *prompter) line(prompt, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	if err := p.open(); err != nil {
		return "", err
	}
	p.rl.SetPrompt(prompt)
	line, err := p.rl.Readline()
	return strings.TrimSpace(line), err
}

func (p *prompter) password(prompt, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	if err := p.open(); err != nil {
		return "", err
	}
	pw, err := p.rl.ReadPassword(prompt)
	return string(pw), err
}

func (p *prompter) Close() {
	if p.rl != nil {
		p.rl.Close()
	}
}

func login(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	var p prompter
	defer p.Close()
	email, err := p.line("email: ", cmd.String("email"))
	if err != nil {
		return err
	}
	password, err := p.password("password: ", cmd.String("password"))
	if err != nil {
		return err
	}

	user, err := app.Client.Login(ctx, strings.TrimSpace(email), password)
	if apiclient.IsKind(err, apiclient.KindAuth) {
		return errors.New("wrong email or password")
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), doneStyle.Render("Signed in as "+displayName(user.Name, user.Email)))
	return nil
}

func signup(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	var p prompter
	defer p.Close()
	email, err := p.line("email: ", cmd.String("email"))
	if err != nil {
		return err
	}
	password, err := p.password("password: ", cmd.String("password"))
	if err != nil {
		return err
	}
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}

	user, err := app.Client.Signup(ctx, strings.TrimSpace(email), password, strings.TrimSpace(cmd.String("name")))
	if err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), doneStyle.Render("Account created. Signed in as "+displayName(user.Name, user.Email)))
	return nil
}

func refreshSession(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	if err := app.Client.Refresh(ctx); err != nil {
		if errors.Is(err, apiclient.ErrSessionExpired) {
			return errors.New("session expired: run `lifeos auth login`")
		}
		return err
	}
	w := out(cmd)
	fmt.Fprintln(w, doneStyle.Render("Session renewed."))
	if exp, ok := app.Client.AccessTokenExpiry(); ok {
		fmt.Fprintln(w, mutedStyle.Render("access token expires at "+exp.Local().Format(time.DateTime)))
	}
	return nil
}

func changePassword(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	var p prompter
	defer p.Close()
	current, err := p.password("current password: ", "")
	if err != nil {
		return err
	}
	next, err := p.password("new password: ", "")
	if err != nil {
		return err
	}
	again, err := p.password("repeat new password: ", "")
	if err != nil {
		return err
	}
	if next != again {
		return errors.New("new passwords do not match")
	}
	if err := app.Client.ChangePassword(ctx, current, next); err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), doneStyle.Render("Password changed."))
	return nil
}

func forgotPassword(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	email, err := requireArg(cmd, "email")
	if err != nil {
		return err
	}
	if err := app.Client.ForgotPassword(ctx, strings.TrimSpace(email)); err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), mutedStyle.Render("If the account exists, a reset link is on its way."))
	return nil
}

func resetPassword(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	var p prompter
	defer p.Close()
	password, err := p.password("new password: ", "")
	if err != nil {
		return err
	}
	if err := app.Client.ResetPassword(ctx, cmd.String("token"), password); err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), doneStyle.Render("Password reset. Run `lifeos auth login` to sign in."))
	return nil
}

func uploadAvatar(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	path, err := requireArg(cmd, "file")
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	user, err := app.Client.UploadAvatar(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), doneStyle.Render("Avatar updated for "+displayName(user.Name, user.Email)))
	return nil
}

func authStatus(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	w := out(cmd)
	fmt.Fprintln(w, titleStyle.Render(app.Client.BaseURL()))
	fmt.Fprintln(w, mutedStyle.Render("timezone: "+app.Client.Timezone()))

	if !app.Client.HasSession() {
		fmt.Fprintln(w, "Not signed in.")
		return nil
	}
	if exp, ok := app.Client.AccessTokenExpiry(); ok {
		left := time.Until(exp).Round(time.Second)
		if left > 0 {
			fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("access token expires in %s", left)))
		} else {
			fmt.Fprintln(w, mutedStyle.Render("access token expired; it will be refreshed on the next request"))
		}
	}

	user, loggedIn, err := app.Client.Bootstrap(ctx)
	if err != nil {
		return err
	}
	if !loggedIn {
		fmt.Fprintln(w, warnStyle.Render("Session expired. Run `lifeos auth login`."))
		return nil
	}
	fmt.Fprintln(w, doneStyle.Render("Signed in as "+displayName(user.Name, user.Email)))
	return nil
}

func displayName(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}
