package utils

import (
	"fmt"
	"time"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *Logger
}

// Do executes fn, retrying with exponential back-off. The page scraper and
// the database ping are the two retried operations; pipeline cycles are
// never retried here — the next scheduled cycle is their retry.
func (r *RetryConfig) Do(operation string, fn func() error) error {
	delay := r.BaseDelay

	var err error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == r.MaxAttempts {
			break
		}
		r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v — retrying in %v",
			operation, attempt, r.MaxAttempts, err, delay)
		time.Sleep(delay)
		delay *= 2
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, r.MaxAttempts, err)
}
