// Package loadtext reads delimited text into dense, typed numeric arrays.
// It is a faster, schema-driven replacement for generic "loadtxt"-style
// loaders: the caller supplies the output element type up front and the
// reader streams rows straight into a contiguous byte buffer.
package loadtext

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors returned by [Reader]. Conversion failures wrap these so
// callers can classify with [errors.Is].
var (
	ErrFieldCount  = errors.New("wrong number of fields")
	ErrColumnRange = errors.New("column index out of range")
	ErrBadToken    = errors.New("invalid token")
	ErrOverflow    = errors.New("value out of range for target type")
)

// ParseError reports a failure while reading rows, with enough location
// context to find the offending input.
type ParseError struct {
	Row    int   // 1-based data row (skipped and comment lines excluded)
	Column int   // 1-based input column; 0 when the error is not column-specific
	Type   Kind  // target type of the failed conversion; KindNone otherwise
	Err    error // underlying cause
}

// Error returns a formatted string describing the error location and cause.
func (e *ParseError) Error() string {
	switch {
	case e.Column > 0 && e.Type != KindNone:
		return fmt.Sprintf("parse error at row %d, column %d: converting to %s: %v",
			e.Row, e.Column, e.Type, e.Err)
	case e.Column > 0:
		return fmt.Sprintf("parse error at row %d, column %d: %v", e.Row, e.Column, e.Err)
	default:
		return fmt.Sprintf("parse error at row %d: %v", e.Row, e.Err)
	}
}

// Unwrap returns the underlying error for use with [errors.Is] and [errors.As].
func (e *ParseError) Unwrap() error {
	return e.Err
}
