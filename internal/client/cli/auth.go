package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/cloudbox/internal/client/client"
	"github.com/dmitrijs2005/cloudbox/internal/client/models"
	"github.com/dmitrijs2005/cloudbox/internal/shared"
	"github.com/dustin/go-humanize"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

type authFunc func(ctx context.Context, email, password string) (*models.Principal, error)

// Signup prompts for an email and a password, creates the account and
// starts a session for it.
func (a *App) Signup(ctx context.Context) error {
	return a.authenticate(ctx, "Signup", a.auth.Signup)
}

// Login prompts the user for credentials and starts a session.
//
// The session token is saved in the cache database, so later invocations
// resume it without asking again.
func (a *App) Login(ctx context.Context) error {
	return a.authenticate(ctx, "Login", a.auth.Login)
}

func (a *App) authenticate(ctx context.Context, action string, fn authFunc) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required: %w", client.ErrValidation)
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer shared.WipeByteArray(password)

	p, err := fn(ctx, email, string(password))
	a.observe(err)
	if err != nil {
		a.printf("%s unsuccessful: %s\n", action, err.Error())
		return err
	}

	a.setPrincipal(p)
	a.printf("%s successful, hello %s\n", action, p.Email)

	// a different account may have been cached before
	a.store.Clear()
	a.loaded = false
	return nil
}

// Logout ends the session and wipes the local cache.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	a.store.Clear()
	a.loaded = false
	a.setPrincipal(nil)
	a.println("Logged out")
	return nil
}

// Whoami prints the current principal. When the server is reachable the
// profile it returns is shown as well.
func (a *App) Whoami(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	p, err := a.auth.Principal(ctx)
	if err != nil {
		return err
	}

	a.printf("User:    %s\n", orDash(p.Email))
	a.printf("User ID: %s\n", orDash(p.UserID))
	if !p.ExpiresAt.IsZero() {
		a.printf("Expires: %s (%s)\n", p.ExpiresAt.Local().Format(time.DateTime), humanize.Time(p.ExpiresAt))
	}

	u, err := a.auth.Profile(ctx)
	a.observe(err)
	if err != nil {
		if errors.Is(err, client.ErrUnavailable) {
			a.println("Server:  unreachable")
			return nil
		}
		return err
	}
	if u.Name != "" {
		a.printf("Name:    %s\n", u.Name)
	}
	a.println("Server:  session valid")
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
