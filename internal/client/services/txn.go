package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/cloudbox/internal/client/client"
	"github.com/dmitrijs2005/cloudbox/internal/client/models"
	"github.com/dmitrijs2005/cloudbox/internal/client/repositories/files"
)

type location int

const (
	locNone location = iota
	locActive
	locTrashed
)

func (l location) String() string {
	switch l {
	case locActive:
		return "active"
	case locTrashed:
		return "trashed"
	default:
		return "none"
	}
}

// placement is where one record sits in the local projection and what it
// looks like there. It is the snapshot a failed mutation rolls back to.
type placement struct {
	loc   location
	index int
	rec   models.FileRecord
}

// mutation is one optimistic change waiting for the server. Mutations on the
// same id form a chain: each one calls the remote only after its predecessor
// resolved.
type mutation struct {
	id     string
	op     string
	before placement
	done   chan struct{}
	next   *mutation
}

// change computes the optimistic state of a record from its current one.
// skip=true means the call is already satisfied locally and nothing is sent.
type change func(cur placement) (next placement, skip bool, err error)

// remoteCall performs the network side of a mutation. onSuccess, when set,
// runs under the store lock if the mutation is still the newest on its id.
type remoteCall func(ctx context.Context) (onSuccess func(), err error)

// mutate is the single choke point for lifecycle changes:
// snapshot, apply locally, wait for earlier mutations on the same id,
// call the server, then confirm or roll back.
//
// A failed mutation restores its snapshot only when no later mutation on the
// id was applied after it. Otherwise the snapshot is handed to the successor,
// so a later rollback lands on the state before both.
func (s *FileStore) mutate(ctx context.Context, op, id string, apply change, call remoteCall) error {
	// provisional upload records have no id and cannot be addressed
	if id == "" {
		return fmt.Errorf("%s: empty file id: %w", op, client.ErrNotFound)
	}

	s.mu.Lock()
	cur := s.locate(id)
	next, skip, err := apply(cur)
	if err != nil || skip {
		s.mu.Unlock()
		return err
	}

	m := &mutation{id: id, op: op, before: clonePlacement(cur), done: make(chan struct{})}
	prev := s.pending[id]
	if prev != nil {
		prev.next = m
	}
	s.pending[id] = m
	s.place(id, next)
	s.mu.Unlock()

	if prev != nil {
		<-prev.done
	}

	onSuccess, callErr := call(ctx)

	settled := s.resolve(ctx, m, onSuccess, callErr)
	if settled {
		s.persist(ctx)
	}
	return callErr
}

// resolve finishes m after its remote call. It reports whether m was the last
// mutation queued for its id, i.e. whether local state for it has settled.
func (s *FileStore) resolve(ctx context.Context, m *mutation, onSuccess func(), callErr error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(m.done)

	if s.pending[m.id] == m {
		delete(s.pending, m.id)
	}

	if callErr == nil {
		if onSuccess != nil && m.next == nil {
			onSuccess()
		}
		return m.next == nil
	}

	if m.next != nil {
		m.next.before = m.before
		s.log.Debug(ctx, "mutation failed, snapshot handed to successor",
			"op", m.op, "id", m.id, "successor", m.next.op, "err", callErr)
		return false
	}

	s.place(m.id, m.before)
	s.log.Info(ctx, "mutation rolled back", "op", m.op, "id", m.id, "restored_to", m.before.loc.String(), "err", callErr)
	return true
}

// persist writes both collections to the cache so an offline start shows the
// outcome of settled mutations. Saves are serialized and each one snapshots
// the state current at that moment.
func (s *FileStore) persist(ctx context.Context) {
	if s.cache == nil {
		return
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	active := cloneRecords(s.active)
	trashed := cloneRecords(s.trashed)
	s.mu.Unlock()

	for view, recs := range map[files.View][]models.FileRecord{files.ViewActive: active, files.ViewTrashed: trashed} {
		if err := s.cache.SaveView(ctx, view, recs); err != nil {
			s.log.Warn(ctx, "cache save failed", "view", view, "err", err)
		}
	}
}

// locate must be called with s.mu held.
func (s *FileStore) locate(id string) placement {
	for i, f := range s.active {
		if f.ID == id {
			return placement{loc: locActive, index: i, rec: f.Clone()}
		}
	}
	for i, f := range s.trashed {
		if f.ID == id {
			return placement{loc: locTrashed, index: i, rec: f.Clone()}
		}
	}
	return placement{loc: locNone}
}

// place moves the record to p, keeping its index when it stays in the same
// collection. Must be called with s.mu held.
func (s *FileStore) place(id string, p placement) {
	cur := s.locate(id)
	if cur.loc == p.loc && p.loc != locNone {
		s.collection(p.loc)[cur.index] = p.rec.Clone()
		return
	}

	switch cur.loc {
	case locActive:
		s.active = removeAt(s.active, cur.index)
	case locTrashed:
		s.trashed = removeAt(s.trashed, cur.index)
	}

	switch p.loc {
	case locActive:
		s.active = insertAt(s.active, p.index, p.rec.Clone())
	case locTrashed:
		s.trashed = insertAt(s.trashed, p.index, p.rec.Clone())
	}
}

func (s *FileStore) collection(l location) []models.FileRecord {
	if l == locTrashed {
		return s.trashed
	}
	return s.active
}

func clonePlacement(p placement) placement {
	p.rec = p.rec.Clone()
	return p
}

func removeAt(list []models.FileRecord, i int) []models.FileRecord {
	return append(list[:i:i], list[i+1:]...)
}

// insertAt clamps i, so a snapshot index that went stale still lands inside
// the collection.
func insertAt(list []models.FileRecord, i int, rec models.FileRecord) []models.FileRecord {
	if i < 0 || i > len(list) {
		i = len(list)
	}
	out := make([]models.FileRecord, 0, len(list)+1)
	out = append(out, list[:i]...)
	out = append(out, rec)
	return append(out, list[i:]...)
}
