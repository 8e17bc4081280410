// Package cli provides the CloudBox command-line client.
//
// It wires configuration, the local cache database, the HTTP client and the
// services, and exposes them both as one-shot cobra commands and as an
// interactive REPL that tracks online/offline mode.
//
// Key features:
//   - Signup / Login / Logout, with the session saved between runs
//   - List active and trashed files, with an offline fallback to the cache
//   - Upload files sequentially with per-file progress
//   - Rename, share, trash, restore, purge and empty the trash
//
// Running the binary without a subcommand starts the REPL, see App.Shell,
// StartOnlineStatusWatcher and runREPL for details.
package cli
