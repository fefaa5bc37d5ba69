package models

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable signals that the persistence layer could not be
// reached. The current cycle's persist step aborts; the next scheduled
// cycle retries naturally.
var ErrStoreUnavailable = errors.New("store unavailable")

// RecordError describes why a single record was rejected. One bad record
// never fails the batch it arrived in.
type RecordError struct {
	Field  string
	Reason string
	Title  string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("invalid record %q: %s: %s", e.Title, e.Field, e.Reason)
}
