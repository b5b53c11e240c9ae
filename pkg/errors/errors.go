// Package errors provides structured error handling for the secure-mice
// imputation engine.
//
// The package distinguishes configuration errors (unknown optimizer or
// imputation mode tags), shape violations, and model-state errors. All
// constructors attach a stack trace via cockroachdb/errors, and the
// structured types implement zerolog's object marshaler so they render as
// structured fields rather than flat strings.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// NotFittedError is returned when Predict, Loss or Impute is called on a
// model that has not been fitted yet.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("secure-mice: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds structured error information to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with an attached stack trace.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError is returned when input data does not have the expected
// shape, e.g. a prediction vector whose length differs from the number of
// missing rows it is written into.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("secure-mice: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds structured error information to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with an attached stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ConfigError is returned for invalid static configuration: an unknown
// optimizer tag, an unknown imputation mode, or a non-positive factor.
// Configuration errors are fatal and never retried.
type ConfigError struct {
	ParamName string
	Value     interface{}
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("secure-mice: invalid configuration for '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds structured error information to a zerolog event.
func (e *ConfigError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ConfigError")
}

// NewConfigError creates a ConfigError with an attached stack trace.
func NewConfigError(param string, value interface{}, reason string) error {
	err := &ConfigError{ParamName: param, Value: value, Reason: reason}
	return errors.WithStack(err)
}

// ValueError is returned when an argument value is invalid for the
// requested operation, e.g. a negative column index.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("secure-mice: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with an attached stack trace.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError is a general error raised while fitting or predicting.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("secure-mice: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("secure-mice: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError with an attached stack trace.
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an existing error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an existing error with a format string.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates err with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// Mark associates err with a reference sentinel, so Is matches the
// sentinel without changing err's message or type.
func Mark(err error, reference error) error {
	return errors.Mark(err, reference)
}

// ===========================================================================
//
//	Shared sentinel errors
//
// ===========================================================================

var (
	// ErrEmptyData is returned when an empty matrix is passed where data is required.
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix is returned when the closed-form solve meets a singular normal matrix.
	ErrSingularMatrix = New("singular matrix")

	// ErrUnknownOptimizer marks the ConfigError returned for optimizer tags
	// other than "bgd" and "mbgd".
	ErrUnknownOptimizer = New("unknown optimizer")

	// ErrUnknownMode marks the ConfigError returned for imputation modes
	// other than "stochastic" and "batched".
	ErrUnknownMode = New("unknown imputation mode")
)
