// Package regerrors defines the error taxonomy of the calculation pipeline.
//
// ValidationError and OrderingError abort the run and mark it FAILED.
// ComputationError marks a single malformed loan; the engines skip the loan
// with a warning unless it is the only one in the snapshot.
package regerrors

import "fmt"

// ValidationError reports missing or empty required snapshot data.
type ValidationError struct {
	SnapshotID int64
	Stage      string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed at %s for snapshot %d: %s", e.Stage, e.SnapshotID, e.Reason)
}

// OrderingError reports a rule engine invoked before its prerequisite
// aggregate exists.
type OrderingError struct {
	SnapshotID int64
	Stage      string
	Requires   string
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("%s invoked for snapshot %d before prerequisite %s exists", e.Stage, e.SnapshotID, e.Requires)
}

// ComputationError reports malformed numeric input on a single loan.
type ComputationError struct {
	SnapshotID int64
	LoanID     int64
	Stage      string
	Reason     string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s cannot process loan %d in snapshot %d: %s", e.Stage, e.LoanID, e.SnapshotID, e.Reason)
}
