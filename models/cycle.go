package models

import "time"

// CycleStatus classifies the outcome of one extract→transform→load attempt.
type CycleStatus string

const (
	CycleSuccess        CycleStatus = "success"
	CyclePartialFailure CycleStatus = "partial_failure"
	CycleTotalFailure   CycleStatus = "total_failure"
	// CycleSkipped is returned when a trigger fires while another cycle is
	// still running. The trigger is dropped, never queued.
	CycleSkipped CycleStatus = "skipped"
)

// Cycle phases, used to report where a failure happened.
const (
	PhaseExtraction = "extraction"
	PhasePersist    = "persist"
	PhaseTransform  = "transform"
	PhaseLoad       = "load"
)

// CycleResult summarizes one pipeline cycle.
type CycleResult struct {
	Status       CycleStatus
	Phase        string
	Err          error
	Extracted    int
	Persisted    int
	Rejected     int
	StatsWritten int
	Duration     time.Duration
}

// Failed reports whether any phase of the cycle went wrong.
func (r CycleResult) Failed() bool {
	return r.Status == CyclePartialFailure || r.Status == CycleTotalFailure
}
