package storage

import (
	"context"
	"sync"

	"coin-price-etl/models"
)

// MemoryStore is an in-process Store used by tests and DB-less deployments.
// It applies the same per-record validation and append-only semantics as
// the PostgreSQL backend.
type MemoryStore struct {
	mu       sync.RWMutex
	products []*models.Product
	byID     map[string]struct{}
	stats    []*models.Stats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]struct{})}
}

func (s *MemoryStore) InitSchema(ctx context.Context) error {
	return nil
}

// Reset clears all data. Mirrors the PostgreSQL explicit-reset operation.
func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = nil
	s.stats = nil
	s.byID = make(map[string]struct{})
	return nil
}

func (s *MemoryStore) AppendRaw(ctx context.Context, products []*models.Product) (*AppendReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &AppendReport{}
	for _, p := range products {
		if recErr := validateProduct(p); recErr != nil {
			report.Rejected = append(report.Rejected, recErr)
			continue
		}
		if _, dup := s.byID[p.ProductID]; dup {
			continue
		}
		s.byID[p.ProductID] = struct{}{}
		cp := *p
		s.products = append(s.products, &cp)
		report.Written++
	}
	return report, nil
}

func (s *MemoryStore) AppendStats(ctx context.Context, st *models.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	s.stats = append(s.stats, &cp)
	return nil
}

func (s *MemoryStore) RawByDate(ctx context.Context, date string) ([]*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Product
	for _, p := range s.products {
		if p.Date == date {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) AllRaw(ctx context.Context) ([]*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Product, 0, len(s.products))
	for _, p := range s.products {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) AllStats(ctx context.Context) ([]*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Stats, 0, len(s.stats))
	for _, st := range s.stats {
		cp := *st
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
