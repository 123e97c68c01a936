package types

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports malformed input with field-level detail
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Suggestion is a best-effort candidate offered when resolution fails
type Suggestion struct {
	TripID     int64   `json:"trip_id"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug,omitempty"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// NotFoundError is returned when every resolution stage is exhausted.
// It always carries suggestions (possibly empty) and at least one alternative.
type NotFoundError struct {
	Query        string
	Suggestions  []Suggestion
	Alternatives []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("no trip matches %q", e.Query)
	if len(e.Suggestions) > 0 {
		names := make([]string, 0, len(e.Suggestions))
		for _, s := range e.Suggestions {
			names = append(names, s.Name)
		}
		msg += "; closest: " + strings.Join(names, ", ")
	}
	if len(e.Alternatives) > 0 {
		msg += "; try: " + e.Alternatives[0]
	}
	return msg
}

// ConsistencyError reports divergence between the normalized assignment rows
// and the embedded client list. It is non-fatal.
type ConsistencyError struct {
	TripID  int64
	Missing []AssignmentKey // In the normalized table but not embedded
	Extra   []AssignmentKey // Embedded but not in the normalized table
	Cause   error
}

func (e *ConsistencyError) Error() string {
	msg := fmt.Sprintf("trip %d: embedded client list diverges from assignments", e.TripID)
	if len(e.Missing) > 0 || len(e.Extra) > 0 {
		msg += fmt.Sprintf(" (%d missing, %d extra)", len(e.Missing), len(e.Extra))
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg + "; run reconcile_trip with repair to fix"
}

func (e *ConsistencyError) Unwrap() error {
	return e.Cause
}

// ComplexityError reports that a query exceeds a matching stage's limits.
// The resolver escalates to the next stage instead of failing.
type ComplexityError struct {
	Stage  string
	Limit  int
	Actual int
}

func (e *ComplexityError) Error() string {
	return fmt.Sprintf("%s stage: query has %d terms, limit is %d", e.Stage, e.Actual, e.Limit)
}

// TimeoutError reports that a bounded stage ran out of its budget.
// Completed counts the units of work finished before the budget ran out.
type TimeoutError struct {
	Stage     string
	Budget    time.Duration
	Completed int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded its %s budget after %d items; partial result returned", e.Stage, e.Budget, e.Completed)
}
