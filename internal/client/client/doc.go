// Package client contains the transport layer of the CloudBox CLI.
//
// # Overview
//
// The package provides:
//  1. The API contract the services depend on (FileAPI, AuthAPI and Client).
//  2. HTTPClient, a JSON/REST implementation that sends the bearer token,
//     streams multipart uploads with progress reporting and maps HTTP status
//     codes to sentinel errors.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Failures are exposed as sentinel errors matched with errors.Is:
// ErrTransport (with its refinements ErrUnavailable and ErrUnauthorized),
// ErrNotFound, ErrValidation, ErrConflict and ErrLocalDataNotAvailable.
// Non-2xx responses are returned as *APIError, which unwraps to one of them.
//
// All operations accept context.Context and honor cancellation and timeouts.
// HTTPClient is safe for concurrent use.
package client
