// Package models defines the client-side data models of the CloudBox client.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TrashRetention is how long the backend keeps a trashed file before it is
// purged automatically.
const TrashRetention = 30 * 24 * time.Hour

// FileRecord is the server-owned metadata of one uploaded file.
//
// Invariant: IsDeleted == false implies TrashedAt == nil, and
// IsDeleted == true implies TrashedAt != nil.
type FileRecord struct {
	ID        string     `json:"id"`
	Filename  string     `json:"filename"`
	Size      int64      `json:"size"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	IsDeleted bool       `json:"is_deleted"`
	TrashedAt *time.Time `json:"trashed_at,omitempty"`
}

// Clone returns a deep copy, so callers never share TrashedAt with the store.
func (f FileRecord) Clone() FileRecord {
	if f.TrashedAt != nil {
		t := *f.TrashedAt
		f.TrashedAt = &t
	}
	return f
}

// MarkTrashed sets the deletion flag and the trash timestamp.
func (f *FileRecord) MarkTrashed(now time.Time) {
	f.IsDeleted = true
	f.TrashedAt = &now
	f.UpdatedAt = now
}

// MarkRestored clears the deletion flag and the trash timestamp.
func (f *FileRecord) MarkRestored(now time.Time) {
	f.IsDeleted = false
	f.TrashedAt = nil
	f.UpdatedAt = now
}

// ExpiresAt reports when a trashed record is purged automatically.
// The zero time is returned for records that are not in the trash.
func (f FileRecord) ExpiresAt(retention time.Duration) time.Time {
	if !f.IsDeleted || f.TrashedAt == nil {
		return time.Time{}
	}
	return f.TrashedAt.Add(retention)
}

// Valid reports whether the deletion flag and the trash timestamp agree.
func (f FileRecord) Valid() bool {
	return f.IsDeleted == (f.TrashedAt != nil)
}

// fileRecordJSON is the wire shape. Timestamps stay strings because the
// backend mixes RFC 3339 values with naive ISO-8601 ones.
type fileRecordJSON struct {
	ID        string  `json:"id"`
	Filename  string  `json:"filename"`
	Size      int64   `json:"size"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	IsDeleted bool    `json:"is_deleted"`
	TrashedAt *string `json:"trashed_at"`
}

func (f *FileRecord) UnmarshalJSON(b []byte) error {
	var w fileRecordJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	created, err := ParseTimestamp(w.CreatedAt)
	if err != nil {
		return fmt.Errorf("created_at: %w", err)
	}
	updated, err := ParseTimestamp(w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updated_at: %w", err)
	}

	*f = FileRecord{
		ID:        w.ID,
		Filename:  w.Filename,
		Size:      w.Size,
		CreatedAt: created,
		UpdatedAt: updated,
		IsDeleted: w.IsDeleted,
	}

	if w.TrashedAt != nil && *w.TrashedAt != "" {
		trashed, err := ParseTimestamp(*w.TrashedAt)
		if err != nil {
			return fmt.Errorf("trashed_at: %w", err)
		}
		f.TrashedAt = &trashed
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses the timestamp formats produced by the backend.
// Values without a zone are taken as UTC. An empty string is the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", s)
}
