package session

import (
	"errors"
	"testing"
	"time"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ReturnsSameSession(t *testing.T) {
	r := NewRegistry(time.Hour)
	a := r.Get("u1")
	assert.Same(t, a, r.Get("u1"))
	assert.NotSame(t, a, r.Get("u2"))
	assert.Equal(t, 2, r.Len())

	r.Drop("u1")
	assert.NotSame(t, a, r.Get("u1"))
}

func TestRegistry_Expires(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	a := r.Get("u1")
	time.Sleep(40 * time.Millisecond)
	assert.NotSame(t, a, r.Get("u1"))
}

func TestSession_DoKeepsChangesOnlyOnSuccess(t *testing.T) {
	s := &Session{UserID: "u"}
	require.NoError(t, s.Do(func(st *State) error {
		st.Local = append(st.Local, domain.WorkItem{ID: "a"})
		st.Cycle.OpenOrUpdate(2, "CR-1", "2024-01-01")
		return nil
	}))
	assert.Len(t, s.Local(), 1)

	boom := errors.New("boom")
	err := s.Do(func(st *State) error {
		st.Local = append(st.Local, domain.WorkItem{ID: "b"})
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, s.Local(), 1)

	c, ok := s.Cycle()
	require.True(t, ok)
	assert.Equal(t, "CR-1", c.CRNumber)
}
