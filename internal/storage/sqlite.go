package storage

import (
	"context"
	"fmt"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/repo"
)

// SQLite is the large-quota backend.
type SQLite struct {
	Repo repo.Repo
}

func NewSQLite(r repo.Repo) *SQLite {
	return &SQLite{Repo: r}
}

func (s *SQLite) Name() string { return KindSQLite }

func (s *SQLite) Put(ctx context.Context, items []domain.WorkItem) error {
	if err := s.Repo.ReplaceWorkItems(ctx, items); err != nil {
		return fmt.Errorf("sqlite put: %w", err)
	}
	return nil
}

func (s *SQLite) GetAll(ctx context.Context) ([]domain.WorkItem, error) {
	items, err := s.Repo.ListWorkItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w", err)
	}
	return items, nil
}

func (s *SQLite) Clear(ctx context.Context) error {
	return s.Repo.ClearWorkItems(ctx)
}
