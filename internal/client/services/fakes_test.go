package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/cloudbox/internal/client/client"
	"github.com/dmitrijs2005/cloudbox/internal/client/models"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return t0 }

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func activeRec(id, name string) models.FileRecord {
	return models.FileRecord{ID: id, Filename: name, Size: 1024, CreatedAt: t0.Add(-time.Hour), UpdatedAt: t0.Add(-time.Hour)}
}

func trashedRec(id, name string) models.FileRecord {
	r := activeRec(id, name)
	at := t0.Add(-30 * time.Minute)
	r.IsDeleted = true
	r.TrashedAt = &at
	return r
}

// fakeFiles is a scriptable client.Client. Calls are recorded as "op:id";
// errors and gates are consumed per call, in order.
type fakeFiles struct {
	client.Client

	mu      sync.Mutex
	active  []models.FileRecord
	trashed []models.FileRecord
	listErr error
	errs    map[string][]error
	gates   map[string][]chan struct{}
	calls   []string
	started chan string

	purgedExpired int
	shareLink     string
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{
		errs:      make(map[string][]error),
		gates:     make(map[string][]chan struct{}),
		shareLink: "https://cloudbox.test/files/public/tok",
	}
}

func (f *fakeFiles) failNext(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[key] = append(f.errs[key], err)
}

func (f *fakeFiles) succeedNext(key string) {
	f.failNext(key, nil)
}

func (f *fakeFiles) gateNext(key string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[key] = append(f.gates[key], g)
	return g
}

func (f *fakeFiles) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeFiles) hit(op, id string) error {
	key := op + ":" + id

	f.mu.Lock()
	f.calls = append(f.calls, key)
	var err error
	if q := f.errs[key]; len(q) > 0 {
		err, f.errs[key] = q[0], q[1:]
	}
	var gate chan struct{}
	if q := f.gates[key]; len(q) > 0 {
		gate, f.gates[key] = q[0], q[1:]
	}
	started := f.started
	f.mu.Unlock()

	if started != nil {
		started <- key
	}
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeFiles) ListActive(ctx context.Context) ([]models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.FileRecord(nil), f.active...), nil
}

func (f *fakeFiles) ListTrashed(ctx context.Context) ([]models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.FileRecord(nil), f.trashed...), nil
}

func (f *fakeFiles) Rename(ctx context.Context, id, newName string) (models.FileRecord, error) {
	if err := f.hit("rename", id); err != nil {
		return models.FileRecord{}, err
	}
	return models.FileRecord{ID: id, Filename: newName}, nil
}

func (f *fakeFiles) Share(ctx context.Context, id string) (string, error) {
	if err := f.hit("share", id); err != nil {
		return "", err
	}
	return f.shareLink, nil
}

func (f *fakeFiles) SignedURL(ctx context.Context, id string) (string, error) {
	if err := f.hit("signed", id); err != nil {
		return "", err
	}
	return "https://storage.test/" + id + "?sig=1", nil
}

func (f *fakeFiles) Trash(ctx context.Context, id string) error   { return f.hit("trash", id) }
func (f *fakeFiles) Restore(ctx context.Context, id string) error { return f.hit("restore", id) }
func (f *fakeFiles) Purge(ctx context.Context, id string) error   { return f.hit("purge", id) }

func (f *fakeFiles) PurgeExpired(ctx context.Context) (int, error) {
	if err := f.hit("purge_expired", ""); err != nil {
		return 0, err
	}
	return f.purgedExpired, nil
}

// newStore builds a FileStore over fake with the given local collections.
func newStore(t *testing.T, fake *fakeFiles, active, trashed []models.FileRecord, opts ...FileStoreOption) *FileStore {
	t.Helper()
	fake.mu.Lock()
	fake.active = active
	fake.trashed = trashed
	fake.mu.Unlock()

	opts = append([]FileStoreOption{WithClock(fixedClock)}, opts...)
	s := NewFileStore(fake, opts...)
	require.NoError(t, s.Refresh(context.Background()))
	return s
}
