package model

import "fmt"

// FetchError reports a transport, auth or rate-limit failure of a source.
type FetchError struct {
	Series string
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s: %v", e.Series, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedObservationError reports input that cannot be aggregated.
type MalformedObservationError struct {
	Series string
	Period Quarter
	Reason string
}

func (e *MalformedObservationError) Error() string {
	return fmt.Sprintf("malformed observations in %s for %s: %s", e.Series, e.Period, e.Reason)
}

// NonNumericValueError reports a cell that is neither numeric nor a sentinel.
type NonNumericValueError struct {
	Series string
	Period Quarter
	Value  string
}

func (e *NonNumericValueError) Error() string {
	return fmt.Sprintf("non-numeric value %q in %s for %s", e.Value, e.Series, e.Period)
}

// InsufficientDataError reports that there is not enough history to proceed.
type InsufficientDataError struct {
	Series string
	Reason string
}

func (e *InsufficientDataError) Error() string {
	if e.Series == "" {
		return "insufficient data: " + e.Reason
	}
	return fmt.Sprintf("insufficient data in %s: %s", e.Series, e.Reason)
}

// EmptyIntersectionError reports that the merged series share no quarter.
type EmptyIntersectionError struct {
	Columns []string
}

func (e *EmptyIntersectionError) Error() string {
	return fmt.Sprintf("no common quarters across columns %v", e.Columns)
}

// ColumnConflictError reports two tables mapping to the same column.
type ColumnConflictError struct {
	Column string
	First  string
	Second string
}

func (e *ColumnConflictError) Error() string {
	return fmt.Sprintf("column %q declared by both %s and %s", e.Column, e.First, e.Second)
}

// ModelFitError wraps a failure of the forecaster to estimate a model.
type ModelFitError struct {
	Order Order
	Err   error
}

func (e *ModelFitError) Error() string {
	return fmt.Sprintf("fit ARIMA%s: %v", e.Order, e.Err)
}

func (e *ModelFitError) Unwrap() error { return e.Err }
