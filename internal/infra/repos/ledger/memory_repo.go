package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/mmrzaf/bondgen/internal/domain"
)

// MemoryRepository keeps the ledger in process memory. Used by tests and
// the memory store, where nothing outlives the process anyway.
type MemoryRepository struct {
	mu      sync.Mutex
	batches map[domain.EntityID][][]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{batches: make(map[domain.EntityID][][]string)}
}

func (r *MemoryRepository) Append(_ context.Context, entity domain.EntityID, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[entity] = append(r.batches[entity], append([]string(nil), ids...))
	return nil
}

func (r *MemoryRepository) Batches(_ context.Context, entity domain.EntityID) ([][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneBatches(r.batches[entity]), nil
}

func (r *MemoryRepository) PopLast(_ context.Context, entity domain.EntityID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.batches[entity]
	if len(b) == 0 {
		return nil, nil
	}
	last := b[len(b)-1]
	if len(b) == 1 {
		delete(r.batches, entity)
	} else {
		r.batches[entity] = b[:len(b)-1]
	}
	return last, nil
}

func (r *MemoryRepository) Clear(_ context.Context, entity domain.EntityID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.batches, entity)
	return nil
}

func (r *MemoryRepository) Entities(_ context.Context) ([]domain.EntityID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.batches), nil
}

func (r *MemoryRepository) Close() error { return nil }

func sortedKeys(m map[domain.EntityID][][]string) []domain.EntityID {
	out := make([]domain.EntityID, 0, len(m))
	for k, v := range m {
		if len(v) > 0 {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
