package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"coin-price-etl/models"
	"coin-price-etl/utils"
)

var (
	// numberRegexp captures the numeric body of a localized price string.
	numberRegexp = regexp.MustCompile(`\d[\d.,]*`)
	// thumbSuffixRegexp matches the thumbnail size suffix in image URLs.
	thumbSuffixRegexp = regexp.MustCompile(`_\d+x\d+`)
)

// Cleaner transforms RawItems into validated Products ready for storage.
// Records that cannot be normalized are rejected individually; one bad item
// never drops the batch.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean normalizes a batch scraped (or pushed) on the given date. It returns
// the valid products plus one RecordError per rejected item. Duplicate links
// inside the batch are dropped; across batches no dedup happens, so repeated
// cycles on one date accumulate records.
func (c *Cleaner) Clean(date string, raw []*models.RawItem) ([]*models.Product, []*models.RecordError) {
	seen := utils.NewURLSet()
	products := make([]*models.Product, 0, len(raw))
	var rejected []*models.RecordError

	for _, r := range raw {
		if !r.Usable() {
			rejected = append(rejected, &models.RecordError{
				Field:  "title",
				Reason: "neither title nor link present",
				Title:  r.Title,
			})
			continue
		}

		link := strings.TrimSpace(r.Link)
		if link != "" && !seen.Add(link) {
			c.logger.Debug("[cleaner] Duplicate link skipped: %s", link)
			continue
		}

		price, err := ParsePrice(r.RawPrice)
		if err != nil {
			rejected = append(rejected, &models.RecordError{
				Field:  "price",
				Reason: err.Error(),
				Title:  r.Title,
			})
			continue
		}

		products = append(products, &models.Product{
			ProductID: uuid.NewString(),
			Date:      date,
			Title:     orUnavailable(r.Title),
			Metal:     orUnavailable(r.Metal),
			Link:      orUnavailable(link),
			Image:     orUnavailable(normalizeImageURL(r.Image)),
			Price:     price,
			CreatedAt: time.Now(),
		})
	}

	c.logger.Info("[cleaner] Cleaned %d → %d products (rejected %d)",
		len(raw), len(products), len(rejected))
	return products, rejected
}

// ParsePrice converts a localized price string to a positive amount.
// Both "€1.234,56" and "$1,234.56" forms are handled: when both separators
// appear the rightmost one is the decimal mark; a lone separator followed by
// one or two digits is a decimal mark, otherwise a thousands separator.
func ParsePrice(raw string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)

	match := numberRegexp.FindString(cleaned)
	if match == "" {
		return 0, fmt.Errorf("no numeric value in %q", raw)
	}

	lastDot := strings.LastIndex(match, ".")
	lastComma := strings.LastIndex(match, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			match = strings.ReplaceAll(match, ".", "")
			match = strings.Replace(match, ",", ".", 1)
		} else {
			match = strings.ReplaceAll(match, ",", "")
		}
	case lastComma >= 0:
		if isDecimalMark(match, lastComma) {
			match = strings.Replace(match, ",", ".", 1)
		} else {
			match = strings.ReplaceAll(match, ",", "")
		}
	case lastDot >= 0:
		if !isDecimalMark(match, lastDot) {
			match = strings.ReplaceAll(match, ".", "")
		}
	}

	price, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable price %q", raw)
	}
	if price <= 0 {
		return 0, fmt.Errorf("non-positive price %.2f", price)
	}
	return price, nil
}

// isDecimalMark reports whether the single separator at idx is followed by a
// one- or two-digit fraction, i.e. is a decimal mark rather than a
// thousands separator.
func isDecimalMark(s string, idx int) bool {
	frac := len(s) - idx - 1
	return frac >= 1 && frac <= 2 && strings.Count(s, string(s[idx])) == 1
}

// normalizeImageURL strips thumbnail size suffixes so the original image is
// referenced ("..._50x50.jpg" → "....jpg").
func normalizeImageURL(raw string) string {
	return thumbSuffixRegexp.ReplaceAllString(strings.TrimSpace(raw), "")
}

// orUnavailable substitutes the explicit unavailable marker for blank or
// placeholder source values.
func orUnavailable(s string) string {
	s = normalizeText(s)
	if s == "" || strings.HasPrefix(strings.ToLower(s), "no ") {
		return models.Unavailable
	}
	return s
}

// normalizeText strips leading/trailing whitespace and collapses internal whitespace.
func normalizeText(s string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(s), unicode.IsSpace)
	return strings.Join(fields, " ")
}
