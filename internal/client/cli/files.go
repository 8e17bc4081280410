package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/cloudbox/internal/client/client"
	"github.com/dmitrijs2005/cloudbox/internal/client/models"
	"github.com/dustin/go-humanize"
)

// load fills the file store from the server. When the server is unreachable
// the cached collections are shown instead and the mode switches to offline.
func (a *App) load(ctx context.Context, force bool) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if a.loaded && !force {
		return nil
	}

	err := a.store.Refresh(ctx)
	a.observe(err)
	if err == nil {
		a.loaded = true
		return nil
	}
	if !errors.Is(err, client.ErrUnavailable) {
		return err
	}

	if cerr := a.store.LoadCached(ctx); cerr != nil {
		return errors.Join(err, cerr)
	}
	a.log.Warn(ctx, "server unavailable, using cached listing", "err", err)
	a.loaded = true
	return nil
}

// online fails fast for commands that cannot work from the cache.
func (a *App) online() error {
	if a.Mode() == ModeOffline {
		return ErrOffline
	}
	return nil
}

// List prints the active files, filtered by term when it is not empty.
func (a *App) List(ctx context.Context, term string) error {
	if err := a.load(ctx, true); err != nil {
		return err
	}

	recs := a.store.Search(term)
	if len(recs) == 0 {
		if term != "" {
			a.printf("No files match %q\n", term)
		} else {
			a.println("No files")
		}
		return nil
	}

	a.offlineBanner()
	return writeActive(a.out, recs)
}

// ListTrash prints the trashed files and when each is purged automatically.
func (a *App) ListTrash(ctx context.Context) error {
	if err := a.load(ctx, true); err != nil {
		return err
	}

	recs := a.store.Trashed()
	if len(recs) == 0 {
		a.println("Trash is empty")
		return nil
	}

	a.offlineBanner()
	return writeTrashed(a.out, recs, time.Now())
}

func (a *App) offlineBanner() {
	if a.Mode() == ModeOffline {
		a.println("(offline: showing the last cached listing)")
	}
}

// Refresh reloads both collections and prints their sizes.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.load(ctx, true); err != nil {
		return err
	}
	a.offlineBanner()
	a.printf("%d file(s), %d in trash\n", len(a.store.Active()), len(a.store.Trashed()))
	return nil
}

// Rename gives the active file id a new name.
func (a *App) Rename(ctx context.Context, id, name string) error {
	if err := a.prepareMutation(ctx); err != nil {
		return err
	}
	err := a.store.Rename(ctx, id, name)
	a.observe(err)
	if err != nil {
		return err
	}
	a.printf("Renamed %s to %q\n", id, strings.TrimSpace(name))
	return nil
}

// Trash moves the file id to the trash.
func (a *App) Trash(ctx context.Context, id string) error {
	if err := a.prepareMutation(ctx); err != nil {
		return err
	}
	err := a.store.MoveToTrash(ctx, id)
	a.observe(err)
	if err != nil {
		return err
	}
	a.printf("Moved %s to trash; it is purged after %d days\n", id, int(models.TrashRetention.Hours()/24))
	return nil
}

// Restore brings the trashed file id back.
func (a *App) Restore(ctx context.Context, id string) error {
	if err := a.prepareMutation(ctx); err != nil {
		return err
	}
	err := a.store.Restore(ctx, id)
	a.observe(err)
	if err != nil {
		return err
	}
	a.printf("Restored %s\n", id)
	return nil
}

// Purge deletes the trashed file id permanently.
func (a *App) Purge(ctx context.Context, id string) error {
	if err := a.prepareMutation(ctx); err != nil {
		return err
	}
	err := a.store.Purge(ctx, id)
	a.observe(err)
	if err != nil {
		return err
	}
	a.printf("Purged %s\n", id)
	return nil
}

// EmptyTrash purges every trashed file.
func (a *App) EmptyTrash(ctx context.Context) error {
	if err := a.prepareMutation(ctx); err != nil {
		return err
	}
	n, err := a.store.EmptyTrash(ctx)
	a.observe(err)
	a.printf("Purged %d file(s)\n", n)
	return err
}

// PurgeExpired asks the server to drop files trashed longer than the
// retention period.
func (a *App) PurgeExpired(ctx context.Context) error {
	if err := a.prepareMutation(ctx); err != nil {
		return err
	}
	n, err := a.store.PurgeExpired(ctx)
	a.observe(err)
	if err != nil {
		return err
	}
	a.printf("Purged %d expired file(s)\n", n)
	return nil
}

// Share prints a public link for the file id.
func (a *App) Share(ctx context.Context, id string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	link, err := a.store.Share(ctx, id)
	a.observe(err)
	if err != nil {
		return err
	}
	a.println(link)
	return nil
}

// Link prints a short-lived download URL for the file id.
func (a *App) Link(ctx context.Context, id string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	u, err := a.store.SignedURL(ctx, id)
	a.observe(err)
	if err != nil {
		return err
	}
	a.println(u)
	return nil
}

func (a *App) prepareMutation(ctx context.Context) error {
	if err := a.load(ctx, false); err != nil {
		return err
	}
	return a.online()
}

func writeActive(w io.Writer, recs []models.FileRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tUPDATED")
	for _, f := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", idOrPending(f.ID), f.Filename, humanize.Bytes(uint64(max(f.Size, 0))), formatTime(f.UpdatedAt))
	}
	return tw.Flush()
}

func writeTrashed(w io.Writer, recs []models.FileRecord, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tTRASHED\tPURGED")
	for _, f := range recs {
		trashed := "-"
		if f.TrashedAt != nil {
			trashed = formatTime(*f.TrashedAt)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.ID, f.Filename, humanize.Bytes(uint64(max(f.Size, 0))), trashed, expiry(f, now))
	}
	return tw.Flush()
}

func expiry(f models.FileRecord, now time.Time) string {
	exp := f.ExpiresAt(models.TrashRetention)
	if exp.IsZero() {
		return "-"
	}
	if !exp.After(now) {
		return "due"
	}
	return humanize.RelTime(exp, now, "ago", "from now")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func idOrPending(id string) string {
	if id == "" {
		return "(pending)"
	}
	return id
}
