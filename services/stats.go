package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"coin-price-etl/models"
	"coin-price-etl/utils"
)

// StatsService derives price statistics from one date's persisted products.
// It produces an overall "Total" record followed by one record per metal.
type StatsService struct {
	logger *utils.Logger
}

func NewStatsService(logger *utils.Logger) *StatsService {
	return &StatsService{logger: logger}
}

// Transform aggregates the products captured on date. The input must not be
// empty; the zero-record case is the caller's policy decision.
func (s *StatsService) Transform(ctx context.Context, date string, products []*models.Product) ([]*models.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("transform: no products for %s", date)
	}

	results := []*models.Stats{s.summarize(date, models.TotalStatsTitle, products)}

	byMetal := make(map[string][]*models.Product)
	var metals []string
	for _, p := range products {
		if p.Metal == models.Unavailable {
			continue
		}
		if _, ok := byMetal[p.Metal]; !ok {
			metals = append(metals, p.Metal)
		}
		byMetal[p.Metal] = append(byMetal[p.Metal], p)
	}
	sort.Strings(metals)

	for _, metal := range metals {
		results = append(results, s.summarize(date, metal, byMetal[metal]))
	}

	s.logger.Info("[stats] %s: %d products → %d stats records (%d metals)",
		date, len(products), len(results), len(metals))
	return results, nil
}

func (s *StatsService) summarize(date, title string, products []*models.Product) *models.Stats {
	prices := make([]float64, 0, len(products))
	var sum float64
	for _, p := range products {
		prices = append(prices, p.Price)
		sum += p.Price
	}
	sort.Float64s(prices)

	return &models.Stats{
		StatID:       uuid.NewString(),
		Date:         date,
		Title:        title,
		Total:        len(prices),
		MinPrice:     round2(prices[0]),
		MaxPrice:     round2(prices[len(prices)-1]),
		AveragePrice: round2(sum / float64(len(prices))),
		MedianPrice:  round2(median(prices)),
		CreatedAt:    time.Now(),
	}
}

// median expects prices to be sorted.
func median(prices []float64) float64 {
	n := len(prices)
	if n%2 == 1 {
		return prices[n/2]
	}
	return (prices[n/2-1] + prices[n/2]) / 2
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
