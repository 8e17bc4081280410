package client

import (
	"context"

	"github.com/dmitrijs2005/cloudbox/internal/client/models"
)

// FileAPI is the remote file service: one method per backend action, no
// retries and no caching.
type FileAPI interface {
	ListActive(ctx context.Context) ([]models.FileRecord, error)
	ListTrashed(ctx context.Context) ([]models.FileRecord, error)
	// Upload transmits the payload. onProgress (may be nil) receives
	// non-decreasing percentages and is never called after Upload returns.
	Upload(ctx context.Context, payload models.Payload, onProgress func(percent int)) (models.FileRecord, error)
	Rename(ctx context.Context, id, newName string) (models.FileRecord, error)
	Share(ctx context.Context, id string) (string, error)
	Trash(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) error
	PurgeExpired(ctx context.Context) (int, error)
	SignedURL(ctx context.Context, id string) (string, error)
}

// AuthAPI is the session bootstrap collaborator.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Signup(ctx context.Context, email, password string) (*AuthResult, error)
	Profile(ctx context.Context) (*User, error)
	Ping(ctx context.Context) error
	SetAccessToken(token string)
	AccessToken() string
}

// Client is everything the CLI needs from the backend.
type Client interface {
	FileAPI
	AuthAPI
	Close() error
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type AuthResult struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}
