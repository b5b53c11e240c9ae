// Package errors provides panic recovery utilities.
//
// The numeric core deliberately panics on internal invariant violations
// (spec'd shapes that can only break through programmer error). Recover
// converts those panics into structured errors at the public API boundary so
// callers always see an error return.
package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError is an error created from a recovered panic. It carries the
// original panic value and the stack trace at the time of panic.
type PanicError struct {
	PanicValue interface{}
	StackTrace string
	Operation  string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// String provides detailed information including the stack trace.
func (e *PanicError) String() string {
	return fmt.Sprintf("panic in %s: %v\nStack trace:\n%s",
		e.Operation, e.PanicValue, e.StackTrace)
}

// NewPanicError creates a PanicError for the given operation and panic value.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover converts a panic into an error. Use with defer and a pointer to
// the function's error return value:
//
//	func (m *LinReg) Fit(...) (err error) {
//	    defer errors.Recover(&err, "LinReg.Fit")
//	    ...
//	}
func Recover(err *error, operation string) {
	if r := recover(); r != nil {
		panicErr := NewPanicError(operation, r)

		if *err != nil {
			*err = fmt.Errorf("panic in %s: %v (original error: %w)",
				operation, r, *err)
		} else {
			*err = panicErr
		}
	}
}

// SafeExecute runs fn and converts any panic into an error.
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
