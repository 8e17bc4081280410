// Package services contains the application services of the CloudBox client:
// the file lifecycle store, the upload queue and the session service.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cloudbox/internal/client/client"
	"github.com/dmitrijs2005/cloudbox/internal/client/models"
	"github.com/dmitrijs2005/cloudbox/internal/client/repositories/files"
	"github.com/dmitrijs2005/cloudbox/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/cloudbox/internal/common"
	"github.com/dmitrijs2005/cloudbox/internal/dbx"
	"github.com/dmitrijs2005/cloudbox/internal/logging"
	"github.com/golang-jwt/jwt/v5"
)

// AuthService manages the session: it obtains an access token from the
// server, keeps it in the local cache database and exposes the current
// principal.
type AuthService struct {
	api client.AuthAPI
	db  *sql.DB
	log logging.Logger
	now func() time.Time
}

func NewAuthService(api client.AuthAPI, db *sql.DB, log logging.Logger) *AuthService {
	if log == nil {
		log = logging.Nop()
	}
	return &AuthService{api: api, db: db, log: log, now: time.Now}
}

// Login authenticates against the server and persists the session.
func (a *AuthService) Login(ctx context.Context, email, password string) (*models.Principal, error) {
	res, err := a.api.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return a.startSession(ctx, res, email)
}

// Signup creates an account and logs into it.
func (a *AuthService) Signup(ctx context.Context, email, password string) (*models.Principal, error) {
	res, err := a.api.Signup(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	return a.startSession(ctx, res, email)
}

func (a *AuthService) startSession(ctx context.Context, res *client.AuthResult, email string) (*models.Principal, error) {
	if res.User.Email != "" {
		email = res.User.Email
	}

	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, metadata.KeyAccessToken, []byte(res.AccessToken)); err != nil {
			return err
		}
		if err := repo.Set(ctx, metadata.KeyEmail, []byte(email)); err != nil {
			return err
		}
		return repo.Set(ctx, metadata.KeyUserID, []byte(res.User.ID))
	})
	if err != nil {
		return nil, fmt.Errorf("session saving error: %w", err)
	}

	a.api.SetAccessToken(res.AccessToken)
	a.log.Info(ctx, "logged in", "email", email)
	return a.Principal(ctx)
}

// Resume loads a saved session. It returns client.ErrLocalDataNotAvailable
// when nobody is logged in and client.ErrUnauthorized when the saved token
// has expired.
func (a *AuthService) Resume(ctx context.Context) (*models.Principal, error) {
	token, err := metadata.NewSQLiteRepository(a.db).Get(ctx, metadata.KeyAccessToken)
	if err != nil {
		return nil, err
	}
	if len(token) == 0 {
		return nil, client.ErrLocalDataNotAvailable
	}

	a.api.SetAccessToken(string(token))

	p, err := a.Principal(ctx)
	if err != nil {
		return nil, err
	}
	if p.Expired(a.now()) {
		return nil, fmt.Errorf("session expired at %s: %w", p.ExpiresAt.Format(time.RFC3339), client.ErrUnauthorized)
	}
	return p, nil
}

// Principal decodes the current access token. The signature is not checked:
// the server does that on every request, the client only reads who it is
// and when the token expires.
func (a *AuthService) Principal(ctx context.Context) (*models.Principal, error) {
	token := a.api.AccessToken()
	if token == "" {
		return nil, common.ErrorNotLoggedIn
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	p := &models.Principal{}
	switch sub := claims["sub"].(type) {
	case string:
		p.UserID = sub
	case float64:
		p.UserID = fmt.Sprintf("%.0f", sub)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Time.UTC()
	}
	if email, ok := claims["email"].(string); ok {
		p.Email = email
	}

	repo := metadata.NewSQLiteRepository(a.db)
	if p.Email == "" {
		if v, err := repo.Get(ctx, metadata.KeyEmail); err == nil {
			p.Email = string(v)
		}
	}
	if p.UserID == "" {
		if v, err := repo.Get(ctx, metadata.KeyUserID); err == nil {
			p.UserID = string(v)
		}
	}
	return p, nil
}

// Profile asks the server who the token belongs to.
func (a *AuthService) Profile(ctx context.Context) (*client.User, error) {
	return a.api.Profile(ctx)
}

// Logout invalidates the session: the token is forgotten and the cached
// collections and session metadata are wiped.
func (a *AuthService) Logout(ctx context.Context) error {
	a.api.SetAccessToken("")

	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := metadata.NewSQLiteRepository(tx).Clear(ctx); err != nil {
			return err
		}
		return files.NewSQLiteRepository(tx).Clear(ctx)
	})
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	a.log.Info(ctx, "logged out")
	return nil
}

// Ping checks that the server is reachable.
func (a *AuthService) Ping(ctx context.Context) error {
	return a.api.Ping(ctx)
}

// LoggedIn reports whether a token is held.
func (a *AuthService) LoggedIn() bool {
	return a.api.AccessToken() != ""
}

// IsAuthError reports whether err means the session must be renewed.
func IsAuthError(err error) bool {
	return errors.Is(err, client.ErrUnauthorized) ||
		errors.Is(err, common.ErrorNotLoggedIn) ||
		errors.Is(err, common.ErrInvalidToken)
}
