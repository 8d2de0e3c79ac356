package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/patrickmn/go-cache"
)

const (
	memoryKey = "work_items"

	// DefaultMemoryQuota mirrors the few megabytes a browser grants local storage.
	DefaultMemoryQuota = 5 << 20
)

// Memory is the small-quota backend. The collection is kept as one JSON
// payload so the quota applies to the serialized size.
type Memory struct {
	cache *cache.Cache
	quota int
}

func NewMemory(quota int) *Memory {
	if quota <= 0 {
		quota = DefaultMemoryQuota
	}
	return &Memory{cache: cache.New(cache.NoExpiration, 0), quota: quota}
}

func (m *Memory) Name() string { return KindMemory }

func (m *Memory) Put(_ context.Context, items []domain.WorkItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("memory put: %w", err)
	}
	if len(data) > m.quota {
		return fmt.Errorf("%w: %d bytes over a %d byte quota", ErrQuotaExceeded, len(data), m.quota)
	}
	m.cache.Set(memoryKey, data, cache.NoExpiration)
	return nil
}

func (m *Memory) GetAll(_ context.Context) ([]domain.WorkItem, error) {
	v, ok := m.cache.Get(memoryKey)
	if !ok {
		return nil, nil
	}
	var items []domain.WorkItem
	if err := json.Unmarshal(v.([]byte), &items); err != nil {
		return nil, fmt.Errorf("memory get: %w", err)
	}
	return items, nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.cache.Delete(memoryKey)
	return nil
}
