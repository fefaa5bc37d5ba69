package models

import "time"

// TotalStatsTitle labels the aggregate row covering every product of a date,
// as opposed to the per-metal breakdown rows.
const TotalStatsTitle = "Total"

// Stats is one derived summary over the products sharing its Date.
// Records are append-only: every transform run writes fresh rows with new
// StatIDs, so a date that is processed twice keeps both generations.
type Stats struct {
	StatID       string    `json:"stat_id"`
	Date         string    `json:"date"`
	Title        string    `json:"title"`
	Total        int       `json:"total"`
	MinPrice     float64   `json:"min_price"`
	MaxPrice     float64   `json:"max_price"`
	AveragePrice float64   `json:"average_price"`
	MedianPrice  float64   `json:"median_price"`
	CreatedAt    time.Time `json:"created_at"`
}
