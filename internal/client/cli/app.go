package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/cloudbox/internal/client/client"
	"github.com/dmitrijs2005/cloudbox/internal/client/config"
	"github.com/dmitrijs2005/cloudbox/internal/client/models"
	"github.com/dmitrijs2005/cloudbox/internal/client/services"
	"github.com/dmitrijs2005/cloudbox/internal/common"
	"github.com/dmitrijs2005/cloudbox/internal/filex"
	"github.com/dmitrijs2005/cloudbox/internal/logging"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

const pingTimeout = 3 * time.Second

// ErrOffline is returned by commands that need the server while it is
// unreachable.
var ErrOffline = errors.New("server is unreachable; only cached listings are available")

type App struct {
	config  *config.Config
	log     logging.Logger
	out     io.Writer
	reader  *bufio.Reader
	db      *sql.DB
	api     client.Client
	auth    *services.AuthService
	store   *services.FileStore
	uploads *services.UploadQueue

	mu        sync.Mutex
	mode      Mode
	principal *models.Principal
	loaded    bool
}

// NewApp opens the cache database, builds the HTTP client and wires the
// services. The caller must Close the returned App.
func NewApp(ctx context.Context, c *config.Config, in io.Reader, out io.Writer, log logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := filex.EnsureParentDir(c.CachePath); err != nil {
		return nil, fmt.Errorf("error preparing cache directory: %w", err)
	}

	db, err := client.InitDatabase(ctx, c.CachePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	apiClient, err := client.NewHTTPClient(c.ServerURL,
		client.WithTimeout(c.RequestTimeout),
		client.WithLogger(log),
		client.WithAccessToken(c.AccessToken),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return newApp(c, apiClient, db, in, out, log), nil
}

func newApp(c *config.Config, api client.Client, db *sql.DB, in io.Reader, out io.Writer, log logging.Logger) *App {
	if log == nil {
		log = logging.Nop()
	}

	store := services.NewFileStore(api,
		services.WithCache(services.NewSQLiteCache(db)),
		services.WithParallelism(c.EmptyTrashParallelism),
		services.WithStoreLogger(log),
	)

	return &App{
		config:  c,
		log:     log,
		out:     out,
		reader:  bufio.NewReader(in),
		db:      db,
		api:     api,
		auth:    services.NewAuthService(api, db, log),
		store:   store,
		uploads: services.NewUploadQueue(api, store, log),
	}
}

// Close releases the HTTP client and the cache database.
func (a *App) Close() error {
	return errors.Join(a.api.Close(), a.db.Close())
}

// Bootstrap restores the session: an explicit token from the configuration
// wins over the one saved by the last login.
func (a *App) Bootstrap(ctx context.Context) error {
	if a.config.AccessToken != "" {
		a.api.SetAccessToken(a.config.AccessToken)
		p, err := a.auth.Principal(ctx)
		if err != nil {
			// the server is the judge of the token; the client only misses the name
			a.log.Warn(ctx, "cannot decode configured token", "err", err)
			return nil
		}
		a.setPrincipal(p)
		return nil
	}

	p, err := a.auth.Resume(ctx)
	switch {
	case err == nil:
		a.setPrincipal(p)
	case errors.Is(err, client.ErrLocalDataNotAvailable):
		a.log.Debug(ctx, "no saved session")
	case services.IsAuthError(err):
		a.log.Warn(ctx, "saved session is no longer valid", "err", err)
		a.api.SetAccessToken("")
	default:
		return err
	}
	return nil
}

func (a *App) setPrincipal(p *models.Principal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.principal = p
}

func (a *App) currentPrincipal() *models.Principal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.principal
}

func (a *App) isLoggedIn() bool {
	return a.auth.LoggedIn()
}

func (a *App) requireLogin() error {
	if !a.isLoggedIn() {
		return fmt.Errorf("%w: run `%s login` first", common.ErrorNotLoggedIn, common.AppName)
	}
	return nil
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	prev := a.mode
	a.mode = mode
	a.mu.Unlock()

	if changed && prev != "" {
		a.printf("Switched to %s mode\n", mode)
	}
}

// observe updates the mode from the outcome of a server call.
func (a *App) observe(err error) {
	switch {
	case err == nil:
		a.setMode(ModeOnline)
	case errors.Is(err, client.ErrUnavailable):
		a.setMode(ModeOffline)
	}
}

func (a *App) getStatus() string {
	s := ""
	if p := a.currentPrincipal(); p != nil && p.Email != "" {
		s = p.Email + " "
	}
	if m := a.Mode(); m != "" {
		s += string(m)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// StartOnlineStatusWatcher pings the server every interval and flips the
// mode between online and offline until ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := a.auth.Ping(pctx)
			cancel()

			if err != nil {
				if a.Mode() != ModeOffline {
					a.setMode(ModeOffline)
				}
			} else if a.Mode() != ModeOnline {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}
