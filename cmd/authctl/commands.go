package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/goliatone/go-print"
	auth "github.com/goliatone/go-token-auth"
)

var errMissingCommand = errors.New("missing command")

type command struct {
	name string
	help string
	run  func(ctx context.Context, a *app, args []string, out io.Writer) error
}

var commands = map[string]command{}

func register(c command) {
	commands[c.name] = c
}

func init() {
	register(command{name: "migrate", help: "apply database migrations", run: runMigrate})
	register(command{name: "register", help: "create a local account", run: runRegister})
	register(command{name: "login", help: "log in with email and password", run: runLogin})
	register(command{name: "refresh", help: "rotate a session with its refresh token", run: runRefresh})
	register(command{name: "logout", help: "clear the session of an account", run: runLogout})
	register(command{name: "whoami", help: "describe the session of an access token", run: runWhoami})
	register(command{name: "forgot-password", help: "send a password reset token", run: runForgotPassword})
	register(command{name: "reset-password", help: "set a new password with a reset token", run: runResetPassword})
	register(command{name: "social-begin", help: "print the provider authorization url", run: runSocialBegin})
	register(command{name: "social-complete", help: "finish a provider login with code and state", run: runSocialComplete})
}

func writeJSON(out io.Writer, v any) error {
	_, err := fmt.Fprintln(out, print.MaybePrettyJSON(v))
	return err
}

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func required(fs *flag.FlagSet, names ...string) error {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for _, name := range names {
		if !set[name] {
			return fmt.Errorf("%s: -%s is required", fs.Name(), name)
		}
	}
	return nil
}

func runMigrate(ctx context.Context, a *app, args []string, out io.Writer) error {
	if err := a.repo.Migrate(ctx); err != nil {
		return err
	}
	return writeJSON(out, map[string]any{"migrated": true})
}

func runRegister(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("register")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	first := fs.String("first-name", "", "first name")
	last := fs.String("last-name", "", "last name")
	hashid := fs.Bool("hashid", false, "derive the account id from the email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "email", "password"); err != nil {
		return err
	}

	account, err := a.auther.Register(ctx, auth.RegisterAccountMessage{
		Email:     *email,
		Password:  *password,
		FirstName: *first,
		LastName:  *last,
		UseHashid: *hashid,
	})
	if err != nil {
		return err
	}

	return writeJSON(out, map[string]any{
		"id":    account.ID.String(),
		"email": account.Email,
	})
}

func runLogin(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "email", "password"); err != nil {
		return err
	}

	pair, err := a.auther.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	return writeJSON(out, pair)
}

func runRefresh(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("refresh")
	token := fs.String("token", "", "current refresh token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "token"); err != nil {
		return err
	}

	pair, err := a.auther.RefreshWithToken(ctx, *token)
	if err != nil {
		return err
	}
	return writeJSON(out, pair)
}

func runLogout(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("logout")
	accountID := fs.String("account", "", "account id")
	token := fs.String("token", "", "access token, used when -account is not set")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id := *accountID
	if id == "" {
		if *token == "" {
			return fmt.Errorf("logout: -account or -token is required")
		}
		session, err := a.auther.SessionFromToken(*token)
		if err != nil {
			return err
		}
		id = session.GetUserID()
	}

	if err := a.auther.Logout(ctx, id); err != nil {
		return err
	}
	return writeJSON(out, map[string]any{"account_id": id, "logged_out": true})
}

func runWhoami(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("whoami")
	token := fs.String("token", "", "access token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "token"); err != nil {
		return err
	}

	session, err := a.auther.SessionFromToken(*token)
	if err != nil {
		return err
	}

	account, err := a.auther.AccountFromSession(ctx, session)
	if err != nil {
		return err
	}

	return writeJSON(out, map[string]any{
		"account_id": account.ID.String(),
		"email":      account.Email,
		"expires_at": session.GetExpirationDate(),
	})
}

func runForgotPassword(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("forgot-password")
	email := fs.String("email", "", "account email")
	showToken := fs.Bool("show-token", false, "print the reset token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "email"); err != nil {
		return err
	}

	var resp *auth.InitializePasswordResetResponse
	err := a.auther.InitializePasswordReset(ctx, auth.InitializePasswordResetMessage{
		Email: *email,
		OnResponse: func(r *auth.InitializePasswordResetResponse) {
			resp = r
		},
	})
	if err != nil {
		return err
	}

	result := map[string]any{"requested": true}
	if resp != nil {
		result["expires_at"] = resp.ExpiresAt
		result["notified"] = resp.Notified
		if *showToken {
			result["token"] = resp.Token
		}
	}
	return writeJSON(out, result)
}

func runResetPassword(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("reset-password")
	token := fs.String("token", "", "password reset token")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "token", "password"); err != nil {
		return err
	}

	if err := a.auther.ResetPassword(ctx, *token, *password); err != nil {
		return err
	}
	return writeJSON(out, map[string]any{"reset": true})
}

func runSocialBegin(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("social-begin")
	provider := fs.String("provider", auth.ProviderGoogle, "provider name")
	redirect := fs.String("redirect", "", "url to return to after login")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if a.social == nil {
		return errSocialDisabled
	}

	res, err := a.social.BeginAuth(ctx, *provider, socialRedirect(*redirect)...)
	if err != nil {
		return err
	}
	return writeJSON(out, res)
}

func runSocialComplete(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("social-complete")
	provider := fs.String("provider", auth.ProviderGoogle, "provider name")
	code := fs.String("code", "", "authorization code")
	state := fs.String("state", "", "state returned by social-begin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "code", "state"); err != nil {
		return err
	}

	if a.social == nil {
		return errSocialDisabled
	}

	res, err := a.social.CompleteAuth(ctx, *provider, *code, *state)
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]any{
		"provider":     res.Provider,
		"email":        res.Profile.Email,
		"redirect_url": res.RedirectURL,
		"tokens":       res.Tokens,
	})
}
