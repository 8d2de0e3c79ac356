// Package session keeps the per-originator state that lives until a batch is
// forwarded: the works held locally and the active CR cycle.
package session

import (
	"slices"
	"sync"
	"time"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/crcycle"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/patrickmn/go-cache"
)

type Session struct {
	UserID string

	mu    sync.Mutex
	local []domain.WorkItem
	cycle crcycle.Tracker
}

// State is what Do exposes while the session lock is held.
type State struct {
	Local []domain.WorkItem
	Cycle *crcycle.Tracker
}

// Do runs fn under the session lock. Changes fn makes to st.Local are kept
// only when fn returns nil.
func (s *Session) Do(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &State{Local: slices.Clone(s.local), Cycle: &s.cycle}
	if err := fn(st); err != nil {
		return err
	}
	s.local = st.Local
	return nil
}

func (s *Session) Local() []domain.WorkItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.local)
}

func (s *Session) Cycle() (crcycle.Cycle, bool) {
	return s.cycle.Active()
}

// Registry maps user ids to sessions that expire after a period of inactivity.
type Registry struct {
	mu    sync.Mutex
	cache *cache.Cache
	ttl   time.Duration
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Registry{cache: cache.New(ttl, time.Minute), ttl: ttl}
}

// Get returns the session for userID, creating it when missing. Every call
// extends the session's lifetime.
func (r *Registry) Get(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache.Get(userID); ok {
		s := v.(*Session)
		r.cache.Set(userID, s, cache.DefaultExpiration)
		return s
	}
	s := &Session{UserID: userID}
	r.cache.Set(userID, s, cache.DefaultExpiration)
	return s
}

func (r *Registry) Drop(userID string) {
	r.cache.Delete(userID)
}

func (r *Registry) Len() int {
	return r.cache.ItemCount()
}
