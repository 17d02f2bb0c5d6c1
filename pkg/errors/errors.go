// Package errors provides the coded error type used across vrsindex.
// Every failure carries a Code so the processor can decide whether it is
// scoped to one record (skip and continue) or fatal to the run.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Code identifies an error class for programmatic handling.
type Code string

const (
	// Extraction errors (1xx)
	CodeFieldMissing    Code = "E101"
	CodeTypeMismatch    Code = "E102"
	CodeNullElement     Code = "E103"
	CodeMalformedNumber Code = "E104"

	// Alignment and encoding errors (2xx)
	CodeLengthMismatch            Code = "E201"
	CodeUnrecognizedVariationType Code = "E202"

	// Output errors (3xx)
	CodeIoFailure     Code = "E301"
	CodeCorruptOutput Code = "E302"

	// Run errors (4xx)
	CodeMalformedInput Code = "E401"
	CodeCanceled       Code = "E402"
	CodeConfig         Code = "E403"
	CodeCheckpoint     Code = "E404"

	// Unknown
	CodeUnknown Code = "E999"
)

var codeNames = map[Code]string{
	CodeFieldMissing:              "FieldMissing",
	CodeTypeMismatch:              "TypeMismatch",
	CodeNullElement:               "NullElement",
	CodeMalformedNumber:           "MalformedNumber",
	CodeLengthMismatch:            "LengthMismatch",
	CodeUnrecognizedVariationType: "UnrecognizedVariationType",
	CodeIoFailure:                 "IoFailure",
	CodeCorruptOutput:             "CorruptOutput",
	CodeMalformedInput:            "MalformedInput",
	CodeCanceled:                  "Canceled",
	CodeConfig:                    "Config",
	CodeCheckpoint:                "Checkpoint",
}

// Name returns the symbolic name of the code, e.g. "LengthMismatch".
func (c Code) Name() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "Unknown"
}

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrFieldMissing              = &Error{Code: CodeFieldMissing}
	ErrTypeMismatch              = &Error{Code: CodeTypeMismatch}
	ErrNullElement               = &Error{Code: CodeNullElement}
	ErrMalformedNumber           = &Error{Code: CodeMalformedNumber}
	ErrLengthMismatch            = &Error{Code: CodeLengthMismatch}
	ErrUnrecognizedVariationType = &Error{Code: CodeUnrecognizedVariationType}
	ErrIoFailure                 = &Error{Code: CodeIoFailure}
	ErrCorruptOutput             = &Error{Code: CodeCorruptOutput}
	ErrMalformedInput            = &Error{Code: CodeMalformedInput}
	ErrCanceled                  = &Error{Code: CodeCanceled}
	ErrConfig                    = &Error{Code: CodeConfig}
	ErrCheckpoint                = &Error{Code: CodeCheckpoint}
)

// Error is the base error type for all vrsindex errors.
type Error struct {
	Code       Code
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace []Frame
}

// Frame represents a stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code.Name(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new Error.
func New(code Code, message string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StackTrace: captureStack(2),
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		StackTrace: captureStack(2),
	}
}

// Wrap wraps an existing error with a code and message.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	pcs = pcs[:n]

	cf := runtime.CallersFrames(pcs)
	for {
		frame, more := cf.Next()
		frames = append(frames, Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}

// FormatStack returns a formatted stack trace.
func (e *Error) FormatStack() string {
	var sb strings.Builder
	for _, f := range e.StackTrace {
		sb.WriteString(fmt.Sprintf("  at %s\n    %s:%d\n", f.Function, f.File, f.Line))
	}
	return sb.String()
}

// --- Convenience constructors ---

// FieldMissing reports an annotation field that is absent from a record.
func FieldMissing(field string) *Error {
	return New(CodeFieldMissing, "annotation field not present").WithContext("field", field)
}

// TypeMismatch reports a field whose shape or element type is not the expected one.
func TypeMismatch(field, want, got string) *Error {
	return New(CodeTypeMismatch, "unexpected annotation value shape").
		WithContext("field", field).
		WithContext("want", want).
		WithContext("got", got)
}

// NullElement reports a missing element in a numeric array.
func NullElement(field string, index int) *Error {
	return New(CodeNullElement, "null element in numeric field").
		WithContext("field", field).
		WithContext("index", index)
}

// MalformedNumber reports integer text that could not be parsed.
func MalformedNumber(field, text string, cause error) *Error {
	return Wrapf(cause, CodeMalformedNumber, "malformed number %q", text).
		WithContext("field", field)
}

// IoFailure wraps a write or sync failure on the output file.
func IoFailure(op string, cause error) *Error {
	return Wrap(cause, CodeIoFailure, op)
}

// Canceled reports that an operation stopped because its context ended.
func Canceled(operation string, cause error) *Error {
	return Wrap(cause, CodeCanceled, "operation canceled").WithContext("operation", operation)
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the error code from an error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsRecoverable reports whether err is scoped to a single record. Such errors
// are handled by the error policy; everything else ends the run.
func IsRecoverable(err error) bool {
	switch CodeOf(err) {
	case CodeFieldMissing, CodeTypeMismatch, CodeNullElement, CodeMalformedNumber,
		CodeLengthMismatch, CodeUnrecognizedVariationType:
		return true
	default:
		return false
	}
}

// MultiError collects multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(m.Errors)))
	for i, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add appends a non-nil error.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// ErrorOrNil returns nil when nothing was collected.
func (m *MultiError) ErrorOrNil() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}
