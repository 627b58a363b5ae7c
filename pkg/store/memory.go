package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/internal/types"
	"github.com/xhad/hybridrag/pkg/ranker"
)

// MemoryStore is a process-local store with exhaustive cosine search.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) Create(_ context.Context, name string, dim int) (types.Collection, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		if c.dim != dim {
			return nil, fmt.Errorf("%w: collection %s has %d, requested %d", ErrDimensionMismatch, name, c.dim, dim)
		}
		return c, nil
	}

	c := &memoryCollection{
		name:    name,
		dim:     dim,
		records: make(map[string]int),
	}
	s.collections[name] = c
	return c, nil
}

func (s *MemoryStore) Get(_ context.Context, name string) (types.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}

func (s *MemoryStore) Close() {}

type memoryCollection struct {
	mu      sync.RWMutex
	name    string
	dim     int
	rows    []models.IndexedRecord
	records map[string]int // id -> position in rows
}

func (c *memoryCollection) Name() string { return c.name }

func (c *memoryCollection) Upsert(_ context.Context, records []models.IndexedRecord) error {
	for _, r := range records {
		if len(r.Vector) != c.dim {
			return fmt.Errorf("%w: record %s has %d, collection %d", ErrDimensionMismatch, r.ID, len(r.Vector), c.dim)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		r.Vector = slices.Clone(r.Vector)
		if i, ok := c.records[r.ID]; ok {
			c.rows[i] = r
			continue
		}
		c.records[r.ID] = len(c.rows)
		c.rows = append(c.rows, r)
	}
	return nil
}

func (c *memoryCollection) Query(_ context.Context, vector []float32, k int) ([]models.Candidate, error) {
	if len(vector) != c.dim {
		return nil, fmt.Errorf("%w: query has %d, collection %d", ErrDimensionMismatch, len(vector), c.dim)
	}
	if k <= 0 {
		k = DefaultTopK
	}

	c.mu.RLock()
	candidates := make([]models.Candidate, len(c.rows))
	for i, r := range c.rows {
		candidates[i] = models.Candidate{ID: r.ID, Score: ranker.Cosine(vector, r.Vector), Raw: r.Raw}
	}
	c.mu.RUnlock()

	slices.SortStableFunc(candidates, func(a, b models.Candidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}
