package domain

import (
	"errors"
	"fmt"
	"math"
)

// Kind is the machine-readable class of an engine error
type Kind string

const (
	// KindData covers missing, non-positive or misaligned price/return data
	KindData Kind = "data"
	// KindValidation covers structurally invalid parameters, detected before solving
	KindValidation Kind = "validation"
	// KindOptimization is raised when every solver stage failed
	KindOptimization Kind = "optimization"
	// KindNumeric marks degenerate arithmetic resolved to a sentinel
	KindNumeric Kind = "numeric"
)

// Error is the single error type returned by the engines.
type Error struct {
	Kind  Kind
	Op    string // operation that failed, e.g. "optimize"
	Field string // offending parameter, validation errors only
	Err   error
}

func (e *Error) Error() string {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Field != "" && e.Op != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Field, msg)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	default:
		return msg
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message is the human-readable cause without the op/field prefix
func (e *Error) Message() string {
	if e.Err == nil {
		return string(e.Kind) + " error"
	}
	return e.Err.Error()
}

// DataError reports unusable input data
func DataError(op, format string, args ...interface{}) error {
	return &Error{Kind: KindData, Op: op, Err: fmt.Errorf(format, args...)}
}

// ValidationError reports an invalid parameter
func ValidationError(op, field, format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Err: fmt.Errorf(format, args...)}
}

// OptimizationError reports that all solver stages failed
func OptimizationError(op string, err error) error {
	return &Error{Kind: KindOptimization, Op: op, Err: err}
}

// NumericError describes a degenerate computation. These are logged, not returned.
func NumericError(op, format string, args ...interface{}) error {
	return &Error{Kind: KindNumeric, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
