package cli

import (
	"bufio"
	"context"
)

// Shell runs the interactive mode until the user quits or ctx is done.
// A background watcher keeps the online/offline mode current.
func (a *App) Shell(ctx context.Context) error {
	a.println("Welcome to CloudBox CLI (type 'help' for commands)")

	if a.isLoggedIn() {
		report(a.load(ctx, true))
	} else {
		report(a.Login(ctx))
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.StartOnlineStatusWatcher(wctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
	return nil
}
