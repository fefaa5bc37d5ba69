package pipeline

import (
	"sync"
	"sync/atomic"

	"coin-price-etl/models"
)

// Snapshot holds the most recent in-memory extraction result. Readers (API
// handlers) load the current slice lock-free; writers swap in a fresh slice
// under a small mutex and never mutate a published one.
type Snapshot struct {
	mu sync.Mutex
	v  atomic.Pointer[[]*models.Product]
}

func NewSnapshot() *Snapshot {
	s := &Snapshot{}
	empty := make([]*models.Product, 0)
	s.v.Store(&empty)
	return s
}

// Get returns the current snapshot. The returned slice must not be modified.
func (s *Snapshot) Get() []*models.Product {
	return *s.v.Load()
}

// Replace swaps the snapshot for the given products.
func (s *Snapshot) Replace(products []*models.Product) {
	cp := make([]*models.Product, len(products))
	copy(cp, products)
	s.mu.Lock()
	s.v.Store(&cp)
	s.mu.Unlock()
}

// Merge appends products to a copy of the current snapshot and swaps it in.
// Used by the ingest endpoint so pushed records appear alongside the last
// scraped batch.
func (s *Snapshot) Merge(products []*models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := *s.v.Load()
	merged := make([]*models.Product, 0, len(cur)+len(products))
	merged = append(merged, cur...)
	merged = append(merged, products...)
	s.v.Store(&merged)
}
