package files

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cloudbox/internal/client/models"
	"github.com/dmitrijs2005/cloudbox/internal/dbx"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) ReplaceView(ctx context.Context, view View, records []models.FileRecord) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE view = ?`, string(view)); err != nil {
		return fmt.Errorf("failed to clear view %s: %w", view, err)
	}

	query := `INSERT INTO files (id, view, position, filename, size, created_at, updated_at, is_deleted, trashed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(view, id) DO UPDATE SET position = excluded.position,
			filename = excluded.filename,
			size = excluded.size,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			is_deleted = excluded.is_deleted,
			trashed_at = excluded.trashed_at`

	for i, f := range records {
		// provisional upload records have no id yet; the next refresh brings them in
		if f.ID == "" {
			continue
		}
		var trashedAt sql.NullString
		if f.TrashedAt != nil {
			trashedAt = sql.NullString{String: f.TrashedAt.UTC().Format(timeLayout), Valid: true}
		}
		_, err := r.db.ExecContext(ctx, query,
			f.ID, string(view), i, f.Filename, f.Size,
			f.CreatedAt.UTC().Format(timeLayout),
			f.UpdatedAt.UTC().Format(timeLayout),
			f.IsDeleted, trashedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to store file %s in view %s: %w", f.ID, view, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) GetView(ctx context.Context, view View) ([]models.FileRecord, error) {
	query := `SELECT id, filename, size, created_at, updated_at, is_deleted, trashed_at
		FROM files WHERE view = ? ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, string(view))
	if err != nil {
		return nil, fmt.Errorf("failed to query view %s: %w", view, err)
	}
	defer rows.Close()

	result := make([]models.FileRecord, 0)
	for rows.Next() {
		var (
			f                    models.FileRecord
			createdAt, updatedAt string
			trashedAt            sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Filename, &f.Size, &createdAt, &updatedAt, &f.IsDeleted, &trashedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		if f.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if f.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		if trashedAt.Valid {
			t, err := parseTime(trashedAt.String)
			if err != nil {
				return nil, err
			}
			f.TrashedAt = &t
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate file rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM files`); err != nil {
		return fmt.Errorf("failed to clear files: %w", err)
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse cached time %q: %w", s, err)
	}
	return t, nil
}
