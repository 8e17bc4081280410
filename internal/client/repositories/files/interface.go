package files

import (
	"context"

	"github.com/dmitrijs2005/cloudbox/internal/client/models"
)

// View identifies one cached listing.
type View string

const (
	ViewActive  View = "active"
	ViewTrashed View = "trashed"
)

type Repository interface {
	// ReplaceView drops the stored rows of view and writes records in order.
	ReplaceView(ctx context.Context, view View, records []models.FileRecord) error

	// GetView returns the stored records of view in their original order.
	// An empty view yields an empty, non-nil slice.
	GetView(ctx context.Context, view View) ([]models.FileRecord, error)

	// Clear removes every cached row.
	Clear(ctx context.Context) error
}
