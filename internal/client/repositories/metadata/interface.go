// Package metadata stores small session values (access token, account email,
// last sync times) in the local cache database.
package metadata

import (
	"context"
)

// Well-known keys.
const (
	KeyAccessToken = "access_token"
	KeyEmail       = "email"
	KeyUserID      = "user_id"
)

// SyncKey names the entry holding the last successful refresh time of a view.
func SyncKey(view string) string {
	return "synced_at:" + view
}

type Repository interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
