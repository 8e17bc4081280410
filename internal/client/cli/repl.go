package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Signup(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	List(ctx context.Context, term string) error
	ListTrash(ctx context.Context) error
	Refresh(ctx context.Context) error
	Upload(ctx context.Context, paths []string) error
	Uploads(ctx context.Context) error
	Rename(ctx context.Context, id, name string) error
	Share(ctx context.Context, id string) error
	Link(ctx context.Context, id string) error
	Trash(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) error
	EmptyTrash(ctx context.Context) error
	PurgeExpired(ctx context.Context) error
}

const (
	helpLoggedOut = "Available commands: signup, login, exit"
	helpLoggedIn  = "Available commands: (l)s [term], trash, upload <path>..., uploads, rename <id> <name>, " +
		"share <id>, link <id>, rm <id>, restore <id>, purge <id>, empty-trash, purge-expired, " +
		"refresh, whoami, logout, exit"
)

// runREPL starts a simple read-eval-print loop for the CloudBox CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command and the rest as its arguments, and dispatches to methods on 'a'.
// Unknown commands are reported back to the user. The loop exits on scanner
// EOF, when ctx is done or when the user types "exit" or "quit".
//
// Errors returned by command handlers are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}

		printlnFn(fmt.Sprintf("cb %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "exit", "quit":
			printlnFn("Bye!")
			return

		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}
			continue

		case "signup":
			report(a.Signup(ctx))
			continue

		case "login":
			report(a.Login(ctx))
			continue
		}

		if !a.isLoggedIn() {
			if _, known := loggedInCommands[cmd]; known {
				printlnFn("Please login first")
			} else {
				printlnFn("Unknown command:", cmd)
			}
			continue
		}

		switch cmd {
		case "l", "ls", "list":
			report(a.List(ctx, strings.Join(args, " ")))

		case "trash":
			report(a.ListTrash(ctx))

		case "refresh":
			report(a.Refresh(ctx))

		case "upload":
			if len(args) == 0 {
				printlnFn("Usage: upload <path>...")
				continue
			}
			report(a.Upload(ctx, args))

		case "uploads":
			report(a.Uploads(ctx))

		case "rename":
			if len(args) < 2 {
				printlnFn("Usage: rename <id> <new name>")
				continue
			}
			report(a.Rename(ctx, args[0], strings.Join(args[1:], " ")))

		case "share", "link", "rm", "restore", "purge":
			if len(args) != 1 {
				printlnFn(fmt.Sprintf("Usage: %s <id>", cmd))
				continue
			}
			report(byID(a, cmd)(ctx, args[0]))

		case "empty-trash":
			report(a.EmptyTrash(ctx))

		case "purge-expired":
			report(a.PurgeExpired(ctx))

		case "whoami":
			report(a.Whoami(ctx))

		case "logout":
			report(a.Logout(ctx))

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

var loggedInCommands = map[string]struct{}{
	"l": {}, "ls": {}, "list": {}, "trash": {}, "refresh": {}, "upload": {}, "uploads": {},
	"rename": {}, "share": {}, "link": {}, "rm": {}, "restore": {}, "purge": {},
	"empty-trash": {}, "purge-expired": {}, "whoami": {}, "logout": {},
}

func byID(a execIface, cmd string) func(context.Context, string) error {
	switch cmd {
	case "share":
		return a.Share
	case "link":
		return a.Link
	case "rm":
		return a.Trash
	case "restore":
		return a.Restore
	default:
		return a.Purge
	}
}

func report(err error) {
	if err != nil {
		printlnFn("Error:", err)
	}
}
