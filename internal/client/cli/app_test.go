package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/cloudbox/internal/client/client"
	"github.com/dmitrijs2005/cloudbox/internal/client/models"
	"github.com/dmitrijs2005/cloudbox/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0o600))
	return p
}

func TestGetStatus(t *testing.T) {
	a := &App{}
	assert.Equal(t, "", a.getStatus())

	a.principal = &models.Principal{Email: "ann@example.com"}
	assert.Equal(t, "(ann@example.com )", a.getStatus())

	a.mode = ModeOnline
	assert.Equal(t, "(ann@example.com online)", a.getStatus())
}

func TestLogin_SessionSurvivesRestart(t *testing.T) {
	env := newTestEnv(t)
	factory := env.factory(t)
	stubInputs(t, "ann@example.com", []byte("secret"))

	first, out := env.newApp(t, factory)
	require.False(t, first.isLoggedIn())
	require.NoError(t, first.Login(context.Background()))
	assert.Contains(t, out.String(), "Login successful, hello ann@example.com")
	assert.Equal(t, ModeOnline, first.Mode())

	second, _ := env.newApp(t, factory)
	assert.True(t, second.isLoggedIn())
	assert.Equal(t, "(ann@example.com )", second.getStatus())
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	stubInputs(t, "ann@example.com", []byte("wrong"))

	app, out := env.newApp(t, env.factory(t))
	err := app.Login(context.Background())
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Contains(t, out.String(), "Login unsuccessful")
	assert.False(t, app.isLoggedIn())
}

func TestLogin_EmptyEmail(t *testing.T) {
	env := newTestEnv(t)
	stubInputs(t, "  ", []byte("secret"))

	app, _ := env.newApp(t, env.factory(t))
	require.ErrorIs(t, app.Login(context.Background()), client.ErrValidation)
}

func TestCommands_RequireLogin(t *testing.T) {
	env := newTestEnv(t)
	app, _ := env.newApp(t, env.factory(t))
	ctx := context.Background()

	require.ErrorIs(t, app.List(ctx, ""), common.ErrorNotLoggedIn)
	require.ErrorIs(t, app.Trash(ctx, "f1"), common.ErrorNotLoggedIn)
	require.ErrorIs(t, app.Share(ctx, "f1"), common.ErrorNotLoggedIn)
	require.ErrorIs(t, app.Whoami(ctx), common.ErrorNotLoggedIn)
}

func TestList_PrintsTableAndFilters(t *testing.T) {
	env := newTestEnv(t)
	env.backend.add("f1", "Quarterly Report.pdf", 1000, false)
	env.backend.add("f2", "holiday.jpg", 2_500_000, false)
	env.backend.add("f3", "old.txt", 10, true)

	app, out := env.loggedInApp(t)
	ctx := context.Background()

	require.NoError(t, app.List(ctx, ""))
	assert.Contains(t, out.String(), "ID")
	assert.Contains(t, out.String(), "Quarterly Report.pdf")
	assert.Contains(t, out.String(), "1.0 kB")
	assert.Contains(t, out.String(), "2.5 MB")
	assert.NotContains(t, out.String(), "old.txt")

	out.Reset()
	require.NoError(t, app.List(ctx, "report"))
	assert.Contains(t, out.String(), "Quarterly Report.pdf")
	assert.NotContains(t, out.String(), "holiday.jpg")

	out.Reset()
	require.NoError(t, app.List(ctx, "nothing"))
	assert.Contains(t, out.String(), `No files match "nothing"`)
}

func TestListTrash_ShowsExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.backend.add("f3", "old.txt", 10, true)

	app, out := env.loggedInApp(t)
	require.NoError(t, app.ListTrash(context.Background()))
	assert.Contains(t, out.String(), "old.txt")
	assert.Contains(t, out.String(), "PURGED")
	assert.Contains(t, out.String(), "from now")
}

func TestList_OfflineFallsBackToCache(t *testing.T) {
	env := newTestEnv(t)
	env.backend.add("f1", "a.txt", 1, false)

	app, out := env.loggedInApp(t)
	ctx := context.Background()
	require.NoError(t, app.List(ctx, ""))

	env.backend.down.Store(true)
	out.Reset()
	require.NoError(t, app.List(ctx, ""))
	assert.Equal(t, ModeOffline, app.Mode())
	assert.Contains(t, out.String(), "offline")
	assert.Contains(t, out.String(), "a.txt")

	require.ErrorIs(t, app.Trash(ctx, "f1"), ErrOffline)
	assert.Empty(t, env.backend.callLog())
}

func TestLifecycle_TrashRestorePurge(t *testing.T) {
	env := newTestEnv(t)
	env.backend.add("f1", "a.txt", 1, false)

	app, out := env.loggedInApp(t)
	ctx := context.Background()

	require.NoError(t, app.Trash(ctx, "f1"))
	assert.Contains(t, out.String(), "Moved f1 to trash; it is purged after 30 days")
	assert.True(t, env.backend.snapshot()["f1"].IsDeleted)
	assert.Empty(t, app.store.Active())

	require.NoError(t, app.Restore(ctx, "f1"))
	assert.False(t, env.backend.snapshot()["f1"].IsDeleted)
	require.Len(t, app.store.Active(), 1)

	require.NoError(t, app.Trash(ctx, "f1"))
	require.NoError(t, app.Purge(ctx, "f1"))
	assert.NotContains(t, env.backend.snapshot(), "f1")
	assert.Empty(t, app.store.Trashed())

	require.ErrorIs(t, app.Restore(ctx, "f1"), client.ErrNotFound)
	assert.Equal(t, []string{"trash:f1", "restore:f1", "trash:f1", "purge:f1"}, env.backend.callLog())
}

func TestTrash_ServerFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	env.backend.add("f1", "a.txt", 1, false)
	env.backend.reject("trash:f1")

	app, _ := env.loggedInApp(t)
	err := app.Trash(context.Background(), "f1")
	require.ErrorIs(t, err, client.ErrTransport)

	require.Len(t, app.store.Active(), 1)
	assert.Empty(t, app.store.Trashed())
}

func TestRename(t *testing.T) {
	env := newTestEnv(t)
	env.backend.add("f1", "a.txt", 1, false)

	app, out := env.loggedInApp(t)
	ctx := context.Background()

	require.NoError(t, app.Rename(ctx, "f1", "  b.txt "))
	assert.Contains(t, out.String(), `Renamed f1 to "b.txt"`)
	assert.Equal(t, "b.txt", env.backend.snapshot()["f1"].Filename)
	assert.Equal(t, "b.txt", app.store.Active()[0].Filename)

	require.ErrorIs(t, app.Rename(ctx, "f1", " "), client.ErrValidation)
}

func TestShareAndLink(t *testing.T) {
	env := newTestEnv(t)
	app, out := env.loggedInApp(t)
	ctx := context.Background()

	require.NoError(t, app.Share(ctx, "f1"))
	require.NoError(t, app.Link(ctx, "f1"))
	assert.Equal(t, "https://cb.example/s/f1\nhttps://cdn.example/f1?sig=x\n", out.String())
}

func TestEmptyTrash_ReportsPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	env.backend.add("t1", "one.txt", 1, true)
	env.backend.add("t2", "two.txt", 1, true)
	env.backend.reject("purge:t2")

	app, out := env.loggedInApp(t)
	err := app.EmptyTrash(context.Background())
	require.Error(t, err)
	assert.Contains(t, out.String(), "Purged 1 file(s)")

	left := app.store.Trashed()
	require.Len(t, left, 1)
	assert.Equal(t, "t2", left[0].ID)
}

func TestPurgeExpired(t *testing.T) {
	env := newTestEnv(t)
	app, out := env.loggedInApp(t)

	require.NoError(t, app.PurgeExpired(context.Background()))
	assert.Contains(t, out.String(), "Purged 3 expired file(s)")
}

func TestUpload_AllSucceed(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	a := writeTempFile(t, dir, "a.txt", 100)
	b := writeTempFile(t, dir, "b.txt", 200)

	app, out := env.loggedInApp(t)
	require.NoError(t, app.Upload(context.Background(), []string{a, b}))

	assert.Contains(t, out.String(), "[1] a.txt: done")
	assert.Contains(t, out.String(), "[2] b.txt: done")
	assert.Contains(t, out.String(), "Uploaded 2 file(s), 0 failed")
	assert.Empty(t, app.uploads.Tasks(), "finished tasks are cleared")

	names := make([]string, 0, 2)
	for _, f := range app.store.Active() {
		names = append(names, f.Filename)
	}
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, names)
}

func TestUpload_FailureIsRetriedWithTheNextBatch(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	good := writeTempFile(t, dir, "good.txt", 10)
	bad := writeTempFile(t, dir, "bad.txt", 10)
	env.backend.reject("upload:bad.txt")

	app, out := env.loggedInApp(t)
	ctx := context.Background()

	err := app.Upload(ctx, []string{good, bad})
	require.ErrorIs(t, err, client.ErrTransport)
	assert.Contains(t, out.String(), "[2] bad.txt: failed")
	assert.Contains(t, out.String(), "Uploaded 1 file(s), 1 failed")

	tasks := app.uploads.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, models.UploadSuccess, tasks[0].Status)
	assert.Equal(t, models.UploadError, tasks[1].Status)

	env.backend.allow("upload:bad.txt")
	third := writeTempFile(t, dir, "third.txt", 10)
	out.Reset()
	require.NoError(t, app.Upload(ctx, []string{third}))
	assert.Contains(t, out.String(), "[2] bad.txt: done")
	assert.Contains(t, out.String(), "[3] third.txt: done")
	assert.Empty(t, app.uploads.Tasks())
}

func TestUpload_MissingPath(t *testing.T) {
	env := newTestEnv(t)
	app, _ := env.loggedInApp(t)

	err := app.Upload(context.Background(), []string{filepath.Join(t.TempDir(), "nope")})
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, app.uploads.Tasks())
}

func TestWhoami(t *testing.T) {
	env := newTestEnv(t)
	app, out := env.loggedInApp(t)

	require.NoError(t, app.Whoami(context.Background()))
	assert.Contains(t, out.String(), "User:    ann@example.com")
	assert.Contains(t, out.String(), "User ID: 42")
	assert.Contains(t, out.String(), "Name:    Ann")
	assert.Contains(t, out.String(), "Server:  session valid")

	env.backend.down.Store(true)
	out.Reset()
	require.NoError(t, app.Whoami(context.Background()))
	assert.Contains(t, out.String(), "Server:  unreachable")
}

func TestLogout_ForgetsEverything(t *testing.T) {
	env := newTestEnv(t)
	env.backend.add("f1", "a.txt", 1, false)

	app, _ := env.loggedInApp(t)
	ctx := context.Background()
	require.NoError(t, app.List(ctx, ""))

	require.NoError(t, app.Logout(ctx))
	assert.False(t, app.isLoggedIn())
	assert.Empty(t, app.store.Active())
	require.NoError(t, app.store.LoadCached(ctx))
	assert.Empty(t, app.store.Active())
}

func TestBootstrap_ConfiguredTokenWins(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.AccessToken = env.backend.token

	app, _ := env.newApp(t, env.factory(t))
	assert.True(t, app.isLoggedIn())
	assert.Equal(t, "(ann@example.com )", app.getStatus())
}

func TestBootstrap_ExpiredSessionIsDropped(t *testing.T) {
	env := newTestEnv(t)
	factory := env.factory(t)
	env.backend.token = signTestToken(t, map[string]any{"sub": "42", "exp": 1})
	stubInputs(t, "ann@example.com", []byte("secret"))

	first, _ := env.newApp(t, factory)
	require.NoError(t, first.Login(context.Background()))

	second, _ := env.newApp(t, factory)
	assert.False(t, second.isLoggedIn())
}

func TestOnlineStatusWatcher_FlipsMode(t *testing.T) {
	env := newTestEnv(t)
	app, _ := env.loggedInApp(t)
	require.Equal(t, ModeOnline, app.Mode())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		app.StartOnlineStatusWatcher(ctx, 20*time.Millisecond)
	}()

	env.backend.down.Store(true)
	require.Eventually(t, func() bool { return app.Mode() == ModeOffline }, 2*time.Second, 10*time.Millisecond)

	env.backend.down.Store(false)
	require.Eventually(t, func() bool { return app.Mode() == ModeOnline }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
