package domain

import (
	"time"
)

// RunStatus represents the lifecycle status of a snapshot run.
type RunStatus string

const (
	StatusDraft       RunStatus = "DRAFT"
	StatusValidated   RunStatus = "VALIDATED"
	StatusCalculating RunStatus = "CALCULATING"
	StatusCalculated  RunStatus = "CALCULATED"
	StatusApproved    RunStatus = "APPROVED"
	StatusFailed      RunStatus = "FAILED"
)

// Frequency is the regulatory calculation cadence for a run.
type Frequency string

const (
	FrequencyPeriodic Frequency = "PERIODIC"
	FrequencyMonthly  Frequency = "MONTHLY"
	FrequencyAnnual   Frequency = "ANNUAL"
)

// ParseFrequency validates and converts a frequency string.
func ParseFrequency(s string) (Frequency, bool) {
	switch Frequency(s) {
	case FrequencyPeriodic, FrequencyMonthly, FrequencyAnnual:
		return Frequency(s), true
	}
	return "", false
}

// allowedTransitions defines the one-way status graph. FAILED is reachable
// from every non-terminal state; no state is ever revisited.
var allowedTransitions = map[RunStatus][]RunStatus{
	StatusDraft:       {StatusValidated, StatusFailed},
	StatusValidated:   {StatusCalculating, StatusFailed},
	StatusCalculating: {StatusCalculated, StatusFailed},
	StatusCalculated:  {StatusApproved, StatusFailed},
	StatusApproved:    {},
	StatusFailed:      {},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to RunStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if to == allowed {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status admits no further transitions.
func (s RunStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// SnapshotRun is one regulatory calculation run over a frozen snapshot.
// Created once at pipeline start, mutated only at stage boundaries, never
// deleted. A failed run is superseded by a new run, not resumed.
type SnapshotRun struct {
	ID            int64      `json:"snapshot_id"`
	ReportingDate time.Time  `json:"reporting_date"`
	Frequency     Frequency  `json:"frequency"`
	Status        RunStatus  `json:"status"`
	InitiatedBy   string     `json:"initiated_by"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ValidatedAt   *time.Time `json:"validated_at,omitempty"`
	CalculatedAt  *time.Time `json:"calculated_at,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
}
