package services

import (
	"strings"
	"testing"
	"time"

	"coin-price-etl/models"
	"coin-price-etl/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLogger() }

const testDate = "2025-08-30"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"€1.234,56", 1234.56, false},
		{"$1,234.56", 1234.56, false},
		{"€ 245.00", 245, false},
		{"£99", 99, false},
		{"1.234", 1234, false},
		{"12,5", 12.5, false},
		{"2.345.678", 2345678, false},
		{"120", 120, false},
		{"", 0, true},
		{"No price", 0, true},
		{"free", 0, true},
		{"0", 0, true},
	}

	for _, tt := range tests {
		got, err := ParsePrice(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePrice(%q) = %.2f; want error", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePrice(%q) returned error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePrice(%q) = %.2f; want %.2f", tt.raw, got, tt.want)
		}
	}
}

func TestCleanAssignsIdentityAndDate(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []*models.RawItem{
		{Title: "Tetradrachm", RawPrice: "€120,50", Metal: "Silver", Link: "https://example.com/1", ScrapedAt: time.Now()},
	}

	products, rejected := c.Clean(testDate, raw)
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejections: %v", rejected)
	}
	if len(products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(products))
	}
	p := products[0]
	if p.ProductID == "" {
		t.Error("ProductID should be assigned at cleaning time")
	}
	if p.Date != testDate {
		t.Errorf("Date: got %q, want %q", p.Date, testDate)
	}
	if p.Price != 120.50 {
		t.Errorf("Price: got %.2f, want 120.50", p.Price)
	}
}

func TestCleanUnavailableMarkers(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []*models.RawItem{
		{Title: "Obol", RawPrice: "€45", Metal: "No metal", Link: "https://example.com/2", Image: ""},
	}

	products, _ := c.Clean(testDate, raw)
	if len(products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(products))
	}
	if products[0].Metal != models.Unavailable {
		t.Errorf("Metal: got %q, want %q", products[0].Metal, models.Unavailable)
	}
	if products[0].Image != models.Unavailable {
		t.Errorf("Image: got %q, want %q", products[0].Image, models.Unavailable)
	}
}

func TestCleanNormalizesImageURL(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []*models.RawItem{
		{Title: "Stater", RawPrice: "€300", Link: "https://example.com/3",
			Image: "https://cdn.example.com/coins/stater_50x50.jpg"},
	}

	products, _ := c.Clean(testDate, raw)
	if len(products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(products))
	}
	if strings.Contains(products[0].Image, "_50x50") {
		t.Errorf("thumbnail suffix not stripped: %q", products[0].Image)
	}
}

func TestCleanRejectsBadPriceIndividually(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []*models.RawItem{
		{Title: "A", RawPrice: "€10", Link: "https://example.com/a"},
		{Title: "B", RawPrice: "No price", Link: "https://example.com/b"},
		{Title: "C", RawPrice: "€30", Link: "https://example.com/c"},
	}

	products, rejected := c.Clean(testDate, raw)
	if len(products) != 2 {
		t.Errorf("expected 2 valid products, got %d", len(products))
	}
	if len(rejected) != 1 {
		t.Fatalf("expected exactly 1 rejection, got %d", len(rejected))
	}
	if rejected[0].Field != "price" {
		t.Errorf("rejection field: got %q, want %q", rejected[0].Field, "price")
	}
}

func TestCleanRejectsUnusableItem(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []*models.RawItem{
		{Title: "", RawPrice: "€10", Link: ""},
	}

	products, rejected := c.Clean(testDate, raw)
	if len(products) != 0 {
		t.Errorf("expected 0 products, got %d", len(products))
	}
	if len(rejected) != 1 {
		t.Errorf("expected 1 rejection, got %d", len(rejected))
	}
}

func TestCleanDeduplicatesLinksWithinBatch(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []*models.RawItem{
		{Title: "A", RawPrice: "€10", Link: "https://example.com/same"},
		{Title: "B", RawPrice: "€20", Link: "https://example.com/same"},
	}

	products, rejected := c.Clean(testDate, raw)
	if len(products) != 1 {
		t.Errorf("expected 1 product after dedup, got %d", len(products))
	}
	if len(rejected) != 0 {
		t.Errorf("duplicates are dropped, not rejected; got %d rejections", len(rejected))
	}
}

func TestCleanAccumulatesAcrossBatches(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []*models.RawItem{
		{Title: "A", RawPrice: "€10", Link: "https://example.com/same"},
	}

	first, _ := c.Clean(testDate, raw)
	second, _ := c.Clean(testDate, raw)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("dedup must not span batches: got %d and %d", len(first), len(second))
	}
	if first[0].ProductID == second[0].ProductID {
		t.Error("each batch must generate fresh identifiers")
	}
}
