package storage

import (
	"context"
	"strings"

	"coin-price-etl/models"
)

// Store is the persistence boundary: append-only, date-partitioned storage
// for products and derived stats. Implementations must make InitSchema safe
// to call on every start (create-if-absent, never destructive).
type Store interface {
	InitSchema(ctx context.Context) error
	AppendRaw(ctx context.Context, products []*models.Product) (*AppendReport, error)
	AppendStats(ctx context.Context, stats *models.Stats) error
	RawByDate(ctx context.Context, date string) ([]*models.Product, error)
	AllRaw(ctx context.Context) ([]*models.Product, error)
	AllStats(ctx context.Context) ([]*models.Stats, error)
	Close() error
}

// AppendReport summarizes one AppendRaw call. Invalid records are rejected
// one by one; the valid remainder is still written.
type AppendReport struct {
	Written  int
	Rejected []*models.RecordError
}

// validateProduct guards the storage invariants regardless of which backend
// is in use. The cleaner normally catches these earlier; pushed records can
// arrive through other paths.
func validateProduct(p *models.Product) *models.RecordError {
	switch {
	case p == nil:
		return &models.RecordError{Field: "record", Reason: "nil product"}
	case p.ProductID == "":
		return &models.RecordError{Field: "product_id", Reason: "missing identifier", Title: p.Title}
	case p.Date == "":
		return &models.RecordError{Field: "date", Reason: "missing partition date", Title: p.Title}
	case p.Price <= 0:
		return &models.RecordError{Field: "price", Reason: "non-positive price", Title: p.Title}
	case isUnavailable(p.Title) && isUnavailable(p.Link):
		return &models.RecordError{Field: "title", Reason: "neither title nor link present", Title: p.Title}
	}
	return nil
}

func isUnavailable(s string) bool {
	return strings.TrimSpace(s) == "" || s == models.Unavailable
}
