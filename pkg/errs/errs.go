// Package errs defines the failure kinds shared by every stage of the clustering pipeline.
//
// Stages wrap one of the sentinel errors so callers can branch with errors.Is and report
// a stable kind string through Kind.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned when a stage needs pairwise comparisons but has
	// fewer than two documents.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInsufficientFeatures is returned when vectorization yields an empty feature space.
	ErrInsufficientFeatures = errors.New("insufficient features")

	// ErrParameterRange is returned when a parameter violates an algorithm's bounds.
	ErrParameterRange = errors.New("parameter out of range")

	// ErrDegenerateClustering is returned when quality metrics are requested on a partition
	// with fewer than two clusters or only singleton clusters.
	ErrDegenerateClustering = errors.New("degenerate clustering")
)

// Kind names used in reports and JSON payloads.
const (
	KindInsufficientData     = "insufficient_data"
	KindInsufficientFeatures = "insufficient_features"
	KindParameterRange       = "parameter_range"
	KindDegenerateClustering = "degenerate_clustering"
	KindInternal             = "internal"
)

// ParameterRangeError describes a rejected parameter value.
type ParameterRangeError struct {
	Algorithm  string
	Param      string
	Value      any
	Constraint string
}

func (e *ParameterRangeError) Error() string {
	if e.Algorithm == "" {
		return fmt.Sprintf("parameter out of range: %s=%v (want %s)", e.Param, e.Value, e.Constraint)
	}
	return fmt.Sprintf("%s: parameter out of range: %s=%v (want %s)", e.Algorithm, e.Param, e.Value, e.Constraint)
}

func (e *ParameterRangeError) Unwrap() error { return ErrParameterRange }

// Range builds a ParameterRangeError.
func Range(algorithm, param string, value any, constraint string) error {
	return &ParameterRangeError{
		Algorithm:  algorithm,
		Param:      param,
		Value:      value,
		Constraint: constraint,
	}
}

// InsufficientData wraps ErrInsufficientData with a formatted detail.
func InsufficientData(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInsufficientData, fmt.Sprintf(format, args...))
}

// InsufficientFeatures wraps ErrInsufficientFeatures with a formatted detail.
func InsufficientFeatures(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInsufficientFeatures, fmt.Sprintf(format, args...))
}

// Degenerate wraps ErrDegenerateClustering with a formatted detail.
func Degenerate(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDegenerateClustering, fmt.Sprintf(format, args...))
}

// Kind returns the stable kind string for err, or KindInternal for anything unrecognized.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientData):
		return KindInsufficientData
	case errors.Is(err, ErrInsufficientFeatures):
		return KindInsufficientFeatures
	case errors.Is(err, ErrParameterRange):
		return KindParameterRange
	case errors.Is(err, ErrDegenerateClustering):
		return KindDegenerateClustering
	default:
		return KindInternal
	}
}

// IsUserError reports whether err is one of the typed precondition failures, as opposed
// to an unexpected internal error.
func IsUserError(err error) bool {
	k := Kind(err)
	return k != "" && k != KindInternal
}
