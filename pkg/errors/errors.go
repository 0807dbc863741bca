// Package errors provides structured error handling for cqlload.
//
// Errors carry a Type that decides how the loader reacts to them: read-path
// failures (configuration, source access, decoding) abort the run, while
// write-path failures (conversion, schema mismatch, driver errors) only fail
// the batch they belong to.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"

	"go.uber.org/zap/zapcore"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeInternal ErrorType = "internal"
	ErrorTypeConfig   ErrorType = "config"
	// ErrorTypeSource covers opening or reading the record source.
	ErrorTypeSource ErrorType = "source"
	// ErrorTypeDecode is a line that could not be turned into a record.
	ErrorTypeDecode ErrorType = "decode"
	// ErrorTypeConnection covers the store and object storage clients.
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeConversion is a value with no column binding.
	ErrorTypeConversion ErrorType = "conversion"
	// ErrorTypeSchema is a failed derivation or a field-set mismatch.
	ErrorTypeSchema ErrorType = "schema"
	// ErrorTypeWrite is a batch rejected by the store.
	ErrorTypeWrite ErrorType = "write"
)

// Fatal reports whether errors of this type end the run.
func (t ErrorType) Fatal() bool {
	switch t {
	case ErrorTypeConversion, ErrorTypeSchema, ErrorTypeWrite:
		return false
	default:
		return true
	}
}

// Error is a typed error with optional cause, details and creation stack.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame is one frame of the stack captured at creation.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error and returns it.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// MarshalLogObject lets zap.Error-style fields carry the type and details
// of the error, e.g. zap.Object("error_detail", err).
func (e *Error) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("type", string(e.Type))
	enc.AddString("message", e.Message)
	if e.Cause != nil {
		enc.AddString("cause", e.Cause.Error())
	}

	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := enc.AddReflected(k, e.Details[k]); err != nil {
			return err
		}
	}
	return nil
}

// New creates an error of the given type.
func New(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message, Stack: captureStack(3)}
}

// Newf creates an error with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: errType, Message: fmt.Sprintf(format, args...), Stack: captureStack(3)}
}

// Wrap returns nil for a nil err. When err already is an *Error its stack
// is kept, so the trace points at where the failure first surfaced.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	wrapped := &Error{Type: errType, Message: message, Cause: err}
	var inner *Error
	if errors.As(err, &inner) {
		wrapped.Stack = inner.Stack
	} else {
		wrapped.Stack = captureStack(3)
	}
	return wrapped
}

// IsType reports whether the outermost *Error in err's chain has the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == errType
}

// IsFatal reports whether err must terminate the run. Errors that are not
// *Error values are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return true
	}
	return e.Type.Fatal()
}

// Detail looks key up in every *Error along err's chain, outermost first.
func Detail(err error, key string) (interface{}, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if v, ok := e.Details[key]; ok {
				return v, true
			}
		}
		err = errors.Unwrap(err)
	}
	return nil, false
}

// Is and As re-export the standard library helpers so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]StackFrame, 0, n)
	for {
		f, more := frames.Next()
		stack = append(stack, StackFrame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			break
		}
	}
	return stack
}
