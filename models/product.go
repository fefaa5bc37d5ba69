package models

import (
	"strings"
	"time"
)

// Unavailable is the explicit marker stored for optional fields the source
// did not provide. Absence is never represented by an empty string.
const Unavailable = "unavailable"

// DateFormat is the calendar-date layout used as the partition key.
const DateFormat = "2006-01-02"

// RawItem holds one unprocessed product straight from the extraction step.
// Price is the source's localized text form ("€1.234,56") and is parsed
// during cleaning, not here.
type RawItem struct {
	Title     string    `json:"title"`
	RawPrice  string    `json:"price"`
	Metal     string    `json:"metal"`
	Link      string    `json:"link"`
	Image     string    `json:"image"`
	Source    string    `json:"source"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Usable reports whether the item carries enough text to identify a product.
func (r *RawItem) Usable() bool {
	return strings.TrimSpace(r.Title) != "" || strings.TrimSpace(r.Link) != ""
}

// Product is the cleaned, validated record ready for storage.
// (Date, ProductID) uniquely identifies it; repeated cycles on the same date
// accumulate new records rather than overwriting old ones.
type Product struct {
	ProductID string    `json:"product_id"`
	Date      string    `json:"date"`
	Title     string    `json:"title"`
	Metal     string    `json:"metal"`
	Link      string    `json:"link"`
	Image     string    `json:"image"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}
