// Package storage persists the shared work item collection. Every backend
// stores the whole ordered collection; Put replaces it.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
)

var ErrQuotaExceeded = errors.New("storage quota exceeded")

type Backend interface {
	Name() string
	Put(ctx context.Context, items []domain.WorkItem) error
	GetAll(ctx context.Context) ([]domain.WorkItem, error)
	Clear(ctx context.Context) error
}

const (
	KindSQLite = "sqlite"
	KindMemory = "memory"
)

// Select orders the two backends by the configured primary kind.
func Select(primary string, sqlite, memory Backend) (Backend, Backend, error) {
	switch primary {
	case "", KindSQLite:
		return sqlite, memory, nil
	case KindMemory:
		return memory, sqlite, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", primary)
}
