package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/cloudbox/internal/client/client"
	"github.com/dmitrijs2005/cloudbox/internal/client/models"
	"github.com/dmitrijs2005/cloudbox/internal/client/repositories/files"
	"github.com/dmitrijs2005/cloudbox/internal/logging"
	"golang.org/x/sync/errgroup"
)

const defaultEmptyTrashParallelism = 4

// FileStore is the client-side projection of the user's files, split into
// the active and trashed collections. Every lifecycle change is applied
// locally first and rolled back from its snapshot if the server rejects it.
//
// All methods are safe for concurrent use. Local state changes happen under
// one mutex; remote calls are made without it.
type FileStore struct {
	api         client.FileAPI
	cache       CollectionCache
	log         logging.Logger
	now         func() time.Time
	parallelism int

	saveMu sync.Mutex

	mu      sync.Mutex
	active  []models.FileRecord
	trashed []models.FileRecord
	lastErr map[files.View]error
	pending map[string]*mutation
}

type FileStoreOption func(*FileStore)

// WithCache persists the collections after every successful refresh and
// after every settled mutation.
func WithCache(c CollectionCache) FileStoreOption {
	return func(s *FileStore) { s.cache = c }
}

func WithStoreLogger(l logging.Logger) FileStoreOption {
	return func(s *FileStore) { s.log = l }
}

// WithClock overrides time.Now for trash timestamps.
func WithClock(now func() time.Time) FileStoreOption {
	return func(s *FileStore) { s.now = now }
}

// WithParallelism bounds concurrent purges in EmptyTrash.
func WithParallelism(n int) FileStoreOption {
	return func(s *FileStore) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

func NewFileStore(api client.FileAPI, opts ...FileStoreOption) *FileStore {
	s := &FileStore{
		api:         api,
		log:         logging.Nop(),
		now:         time.Now,
		parallelism: defaultEmptyTrashParallelism,
		lastErr:     make(map[files.View]error),
		pending:     make(map[string]*mutation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Active returns a copy of the active collection in server order.
func (s *FileStore) Active() []models.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.active)
}

// Trashed returns a copy of the trashed collection.
func (s *FileStore) Trashed() []models.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.trashed)
}

// Search returns active records whose filename contains term, ignoring case.
// An empty term matches everything.
func (s *FileStore) Search(term string) []models.FileRecord {
	term = strings.ToLower(strings.TrimSpace(term))

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.FileRecord, 0, len(s.active))
	for _, f := range s.active {
		if term == "" || strings.Contains(strings.ToLower(f.Filename), term) {
			out = append(out, f.Clone())
		}
	}
	return out
}

// LastError returns the error of the latest failed refresh of view, or nil
// once a later refresh succeeded.
func (s *FileStore) LastError(view files.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr[view]
}

func (s *FileStore) RefreshActive(ctx context.Context) error {
	return s.refresh(ctx, files.ViewActive, s.api.ListActive)
}

func (s *FileStore) RefreshTrashed(ctx context.Context) error {
	return s.refresh(ctx, files.ViewTrashed, s.api.ListTrashed)
}

// Refresh reloads both collections and joins their errors.
func (s *FileStore) Refresh(ctx context.Context) error {
	return errors.Join(s.RefreshActive(ctx), s.RefreshTrashed(ctx))
}

func (s *FileStore) refresh(ctx context.Context, view files.View, list func(context.Context) ([]models.FileRecord, error)) error {
	recs, err := list(ctx)
	if err != nil {
		err = fmt.Errorf("refresh %s: %w", view, err)
		s.mu.Lock()
		s.lastErr[view] = err
		s.mu.Unlock()
		s.log.Warn(ctx, "refresh failed, keeping previous collection", "view", view, "err", err)
		return err
	}

	s.mu.Lock()
	if view == files.ViewTrashed {
		s.trashed = cloneRecords(recs)
	} else {
		s.active = cloneRecords(recs)
	}
	delete(s.lastErr, view)
	s.mu.Unlock()

	s.log.Debug(ctx, "collection refreshed", "view", view, "count", len(recs))

	if s.cache != nil {
		if err := s.cache.SaveView(ctx, view, recs); err != nil {
			s.log.Warn(ctx, "cache save failed", "view", view, "err", err)
		}
	}
	return nil
}

// LoadCached fills both collections from the local cache so the client can
// show the last known state while offline.
func (s *FileStore) LoadCached(ctx context.Context) error {
	if s.cache == nil {
		return client.ErrLocalDataNotAvailable
	}

	active, err := s.cache.LoadView(ctx, files.ViewActive)
	if err != nil {
		return fmt.Errorf("load cached %s: %w", files.ViewActive, err)
	}
	trashed, err := s.cache.LoadView(ctx, files.ViewTrashed)
	if err != nil {
		return fmt.Errorf("load cached %s: %w", files.ViewTrashed, err)
	}

	s.mu.Lock()
	s.active = active
	s.trashed = trashed
	s.mu.Unlock()
	return nil
}

// Clear drops both collections, e.g. when the session ends.
func (s *FileStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
	s.trashed = nil
	s.lastErr = make(map[files.View]error)
}

// AddUploaded hands a freshly uploaded record to the active collection.
// A record with a known id replaces the existing entry.
func (s *FileStore) AddUploaded(rec models.FileRecord) {
	rec = rec.Clone()
	rec.IsDeleted = false
	rec.TrashedAt = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID != "" {
		if cur := s.locate(rec.ID); cur.loc != locNone {
			s.place(rec.ID, placement{loc: locActive, index: cur.index, rec: rec})
			return
		}
	}
	s.active = append(s.active, rec)
}

// Rename changes the filename optimistically. An unchanged name is a no-op.
func (s *FileStore) Rename(ctx context.Context, id, newName string) error {
	name := strings.TrimSpace(newName)
	if name == "" {
		return fmt.Errorf("%w: new name must not be empty", client.ErrValidation)
	}

	return s.mutate(ctx, "rename", id,
		func(cur placement) (placement, bool, error) {
			if cur.loc != locActive {
				return cur, false, fmt.Errorf("rename %s: %w", id, client.ErrNotFound)
			}
			if cur.rec.Filename == name {
				return cur, true, nil
			}
			next := clonePlacement(cur)
			next.rec.Filename = name
			next.rec.UpdatedAt = s.now().UTC()
			return next, false, nil
		},
		func(ctx context.Context) (func(), error) {
			rec, err := s.api.Rename(ctx, id, name)
			if err != nil {
				return nil, fmt.Errorf("rename %s: %w", id, err)
			}
			return func() { s.mergeRenamed(id, rec) }, nil
		},
	)
}

// mergeRenamed takes the server's view of the renamed record when it sent
// one. Must be called with s.mu held.
func (s *FileStore) mergeRenamed(id string, rec models.FileRecord) {
	cur := s.locate(id)
	if cur.loc != locActive {
		return
	}
	if rec.Filename != "" {
		cur.rec.Filename = rec.Filename
	}
	if !rec.UpdatedAt.IsZero() {
		cur.rec.UpdatedAt = rec.UpdatedAt
	}
	s.place(id, cur)
}

// MoveToTrash moves an active record to the trash. A record that is already
// trashed locally counts as success without a request.
func (s *FileStore) MoveToTrash(ctx context.Context, id string) error {
	return s.mutate(ctx, "trash", id,
		func(cur placement) (placement, bool, error) {
			switch cur.loc {
			case locTrashed:
				return cur, true, nil
			case locNone:
				return cur, false, fmt.Errorf("trash %s: %w", id, client.ErrNotFound)
			}
			next := placement{loc: locTrashed, index: -1, rec: cur.rec.Clone()}
			next.rec.MarkTrashed(s.now().UTC())
			return next, false, nil
		},
		func(ctx context.Context) (func(), error) {
			if err := s.api.Trash(ctx, id); err != nil && !errors.Is(err, client.ErrConflict) {
				return nil, fmt.Errorf("trash %s: %w", id, err)
			}
			return nil, nil
		},
	)
}

// Restore is the inverse of MoveToTrash. Restoring an id that is neither
// trashed nor active fails with client.ErrNotFound.
func (s *FileStore) Restore(ctx context.Context, id string) error {
	return s.mutate(ctx, "restore", id,
		func(cur placement) (placement, bool, error) {
			switch cur.loc {
			case locActive:
				return cur, true, nil
			case locNone:
				return cur, false, fmt.Errorf("restore %s: %w", id, client.ErrNotFound)
			}
			next := placement{loc: locActive, index: -1, rec: cur.rec.Clone()}
			next.rec.MarkRestored(s.now().UTC())
			return next, false, nil
		},
		func(ctx context.Context) (func(), error) {
			if err := s.api.Restore(ctx, id); err != nil && !errors.Is(err, client.ErrConflict) {
				return nil, fmt.Errorf("restore %s: %w", id, err)
			}
			return nil, nil
		},
	)
}

// Purge removes a trashed record for good. On failure the record goes back
// into the trashed collection.
func (s *FileStore) Purge(ctx context.Context, id string) error {
	return s.mutate(ctx, "purge", id,
		func(cur placement) (placement, bool, error) {
			if cur.loc != locTrashed {
				return cur, false, fmt.Errorf("purge %s: %w", id, client.ErrNotFound)
			}
			return placement{loc: locNone}, false, nil
		},
		func(ctx context.Context) (func(), error) {
			if err := s.api.Purge(ctx, id); err != nil {
				return nil, fmt.Errorf("purge %s: %w", id, err)
			}
			return nil, nil
		},
	)
}

// Share returns a public link for id. It does not touch local state.
func (s *FileStore) Share(ctx context.Context, id string) (string, error) {
	link, err := s.api.Share(ctx, id)
	if err != nil {
		return "", fmt.Errorf("share %s: %w", id, err)
	}
	return link, nil
}

// SignedURL returns a short-lived download link for id.
func (s *FileStore) SignedURL(ctx context.Context, id string) (string, error) {
	u, err := s.api.SignedURL(ctx, id)
	if err != nil {
		return "", fmt.Errorf("signed url %s: %w", id, err)
	}
	return u, nil
}

// EmptyTrash purges every trashed record, at most s.parallelism at a time.
// Each purge is its own optimistic mutation; failures are joined.
func (s *FileStore) EmptyTrash(ctx context.Context) (int, error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.trashed))
	for _, f := range s.trashed {
		ids = append(ids, f.ID)
	}
	s.mu.Unlock()

	var (
		g      errgroup.Group
		mu     sync.Mutex
		purged int
		errs   []error
	)
	g.SetLimit(s.parallelism)

	for _, id := range ids {
		g.Go(func() error {
			err := s.Purge(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			purged++
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info(ctx, "trash emptied", "purged", purged, "failed", len(errs))
	return purged, errors.Join(errs...)
}

// PurgeExpired asks the server to drop records trashed longer than the
// retention period, then reloads the trashed collection.
func (s *FileStore) PurgeExpired(ctx context.Context) (int, error) {
	n, err := s.api.PurgeExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	return n, s.RefreshTrashed(ctx)
}

func cloneRecords(in []models.FileRecord) []models.FileRecord {
	out := make([]models.FileRecord, len(in))
	for i, f := range in {
		out[i] = f.Clone()
	}
	return out
}
