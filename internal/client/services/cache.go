package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/cloudbox/internal/client/models"
	"github.com/dmitrijs2005/cloudbox/internal/client/repositories/files"
	"github.com/dmitrijs2005/cloudbox/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/cloudbox/internal/dbx"
)

// CollectionCache keeps the last fetched collections between runs.
type CollectionCache interface {
	SaveView(ctx context.Context, view files.View, recs []models.FileRecord) error
	LoadView(ctx context.Context, view files.View) ([]models.FileRecord, error)
}

type sqliteCache struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteCache stores collections in the local cache database.
func NewSQLiteCache(db *sql.DB) CollectionCache {
	return &sqliteCache{db: db, now: time.Now}
}

// SaveView replaces the stored view and records the sync time in one
// transaction.
func (c *sqliteCache) SaveView(ctx context.Context, view files.View, recs []models.FileRecord) error {
	return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := files.NewSQLiteRepository(tx).ReplaceView(ctx, view, recs); err != nil {
			return err
		}
		stamp := c.now().UTC().Format(time.RFC3339)
		return metadata.NewSQLiteRepository(tx).Set(ctx, metadata.SyncKey(string(view)), []byte(stamp))
	})
}

func (c *sqliteCache) LoadView(ctx context.Context, view files.View) ([]models.FileRecord, error) {
	return files.NewSQLiteRepository(c.db).GetView(ctx, view)
}
