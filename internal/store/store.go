// Package store is the shared, ordered work item collection every dashboard
// reads from. Mutations go through Apply only.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/storage"
)

var ErrNotFound = errors.New("work item not found")

// Snapshot is an immutable view of the collection at one version.
type Snapshot struct {
	Version int64
	Items   []domain.WorkItem
}

// Find returns the item with id.
func (s Snapshot) Find(id string) (domain.WorkItem, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return domain.WorkItem{}, false
}

// Filter returns the items for which keep is true, in store order.
func (s Snapshot) Filter(keep func(domain.WorkItem) bool) []domain.WorkItem {
	var res []domain.WorkItem
	for _, it := range s.Items {
		if keep(it) {
			res = append(res, it)
		}
	}
	return res
}

type Mutation func(items []domain.WorkItem) ([]domain.WorkItem, error)

type Store struct {
	backend storage.Backend

	writeMu sync.Mutex

	mu     sync.RWMutex
	snap   Snapshot
	subs   map[int]func(Snapshot)
	nextID int
}

func New(backend storage.Backend) *Store {
	return &Store{backend: backend, subs: map[int]func(Snapshot){}}
}

// Load replaces the in-memory view with what the backend holds.
func (s *Store) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	items, err := s.backend.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load work items: %w", err)
	}
	s.commit(items)
	return nil
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Store) Get(id string) (domain.WorkItem, error) {
	it, ok := s.Snapshot().Find(id)
	if !ok {
		return domain.WorkItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return it, nil
}

// Apply runs mutate on a private copy of the collection, persists the result
// and only then publishes it. Any error leaves the visible state unchanged.
func (s *Store) Apply(ctx context.Context, mutate Mutation) (Snapshot, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	cur := s.Snapshot()
	next, err := mutate(slices.Clone(cur.Items))
	if err != nil {
		return cur, err
	}
	if err := s.backend.Put(ctx, next); err != nil {
		return cur, fmt.Errorf("persist work items: %w", err)
	}
	return s.commit(next), nil
}

// Reset clears the backend and the in-memory view.
func (s *Store) Reset(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.backend.Clear(ctx); err != nil {
		return err
	}
	s.commit(nil)
	return nil
}

func (s *Store) commit(items []domain.WorkItem) Snapshot {
	s.mu.Lock()
	s.snap = Snapshot{Version: s.snap.Version + 1, Items: items}
	snap := s.snap
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
	return snap
}

// Subscribe registers fn to run after every committed change. The returned
// func removes it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
