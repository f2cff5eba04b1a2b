// Package skerr provides functions for wrapping errors with a call stack so
// the site of a failure can be identified from the error text alone.
package skerr

import (
	"fmt"
	"runtime"
	"strings"
)

// StackTrace identifies a filename (base filename only) and line number.
type StackTrace struct {
	File string
	Line int
}

func (st StackTrace) String() string {
	return fmt.Sprintf("%s:%d", st.File, st.Line)
}

// ErrorWithContext is an error that can carry a wrapped error, a message, and
// the call stack at the point the error was created.
type ErrorWithContext struct {
	// Wrapped is the error being annotated, if any.
	Wrapped error

	// CallStack is the stack at the point Wrap/Wrapf/Fmt was called. The
	// first element is the immediate caller.
	CallStack []StackTrace

	// Message is the additional context, if any.
	Message string
}

// Error implements the error interface.
func (err *ErrorWithContext) Error() string {
	var sb strings.Builder
	if err.Message != "" {
		sb.WriteString(err.Message)
	}
	if err.Wrapped != nil {
		if err.Message != "" {
			sb.WriteString(": ")
		}
		sb.WriteString(err.Wrapped.Error())
	}
	if len(err.CallStack) > 0 {
		sb.WriteString(". At")
		for _, st := range err.CallStack {
			sb.WriteString(" ")
			sb.WriteString(st.String())
		}
	}
	return sb.String()
}

// Unwrap supports errors.Is and errors.As.
func (err *ErrorWithContext) Unwrap() error {
	return err.Wrapped
}

// callStack returns the call stack, skipping the given number of frames.
func callStack(skip int) []StackTrace {
	ret := []StackTrace{}
	for i := skip; ; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		parts := strings.Split(file, "/")
		ret = append(ret, StackTrace{
			File: parts[len(parts)-1],
			Line: line,
		})
	}
	return ret
}

// Wrap adds the current call stack to err. Returns nil if err is nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return &ErrorWithContext{
		Wrapped:   err,
		CallStack: callStack(2),
	}
}

// Wrapf adds a formatted message and the current call stack to err. Returns
// nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &ErrorWithContext{
		Wrapped:   err,
		CallStack: callStack(2),
		Message:   fmt.Sprintf(format, args...),
	}
}

// Fmt creates a new error with a formatted message and the current call stack.
func Fmt(format string, args ...interface{}) error {
	return &ErrorWithContext{
		CallStack: callStack(2),
		Message:   fmt.Sprintf(format, args...),
	}
}

// Unwrap returns the innermost error in a chain of ErrorWithContext.
func Unwrap(err error) error {
	for {
		withContext, ok := err.(*ErrorWithContext)
		if !ok || withContext.Wrapped == nil {
			return err
		}
		err = withContext.Wrapped
	}
}
