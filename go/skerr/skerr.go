// Package skerr provides error wrapping that records where in the call
// stack the error was wrapped, so that errors bubbling up through several
// layers still point at the code that produced them.
package skerr

import (
	"fmt"
	"runtime"
)

// ErrorWithContext annotates an underlying error with an optional message
// and the file:line of the call site that performed the wrapping.
type ErrorWithContext struct {
	// Wrapped is the underlying error, or nil for errors created with Fmt.
	Wrapped error
	// Message is an optional additional message.
	Message string
	// File and Line identify the call site that created this error.
	File string
	Line int
}

// Error implements the error interface.
func (e *ErrorWithContext) Error() string {
	msg := e.Message
	if e.Wrapped != nil {
		if msg != "" {
			msg = fmt.Sprintf("%s: %s", msg, e.Wrapped.Error())
		} else {
			msg = e.Wrapped.Error()
		}
	}
	return fmt.Sprintf("%s. At %s:%d", msg, e.File, e.Line)
}

// Unwrap returns the underlying error, supporting errors.Is and errors.As.
func (e *ErrorWithContext) Unwrap() error {
	return e.Wrapped
}

func callerOf(depth int) (string, int) {
	_, file, line, ok := runtime.Caller(depth + 1)
	if !ok {
		return "???", 0
	}
	return file, line
}

// Wrap returns an error that annotates err with the caller's location.
// Returns nil if err is nil, so it is safe to wrap the direct result of
// another call.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	file, line := callerOf(1)
	return &ErrorWithContext{
		Wrapped: err,
		File:    file,
		Line:    line,
	}
}

// Wrapf is like Wrap but adds a formatted message in front of err.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	file, line := callerOf(1)
	return &ErrorWithContext{
		Wrapped: err,
		Message: fmt.Sprintf(format, args...),
		File:    file,
		Line:    line,
	}
}

// Fmt creates a new error from a format string, annotated with the
// caller's location.
func Fmt(format string, args ...interface{}) error {
	file, line := callerOf(1)
	return &ErrorWithContext{
		Message: fmt.Sprintf(format, args...),
		File:    file,
		Line:    line,
	}
}

// Unwrap returns the innermost error of a chain of wrapped errors, or err
// itself if it is not an *ErrorWithContext.
func Unwrap(err error) error {
	for {
		wrapper, ok := err.(*ErrorWithContext)
		if !ok || wrapper.Wrapped == nil {
			return err
		}
		err = wrapper.Wrapped
	}
}
