package library

import (
	"errors"
	"fmt"
)

// ErrResolution reports that a library object does not expose a usable
// capability set.
var ErrResolution = errors.New("cannot resolve library")

// InvocationError is returned when calling into a library fails.
// Error reports the underlying failure's own message, never a wrapper text.
type InvocationError struct {
	Op      string // run_keyword, get_keyword_names, ...
	Keyword string
	Err     error
	Trace   string
}

func (e *InvocationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Op)
	}
	return e.Err.Error()
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// PanicError carries a value recovered from a panicking keyword.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Trace returns the recorded stack of an invocation failure, if any.
func Trace(err error) string {
	var inv *InvocationError
	if errors.As(err, &inv) {
		return inv.Trace
	}
	return ""
}

// IsContinuable reports whether a keyword failure lets the test continue.
func IsContinuable(err error) bool {
	var c interface{ Continuable() bool }
	return errors.As(err, &c) && c.Continuable()
}

// IsFatal reports whether a keyword failure should stop the whole run.
func IsFatal(err error) bool {
	var f interface{ Fatal() bool }
	return errors.As(err, &f) && f.Fatal()
}

// ContinuableError marks err as a failure that does not end the test.
func ContinuableError(err error) error {
	return &flaggedError{err: err, continuable: true}
}

// FatalError marks err as a failure that ends the whole execution.
func FatalError(err error) error {
	return &flaggedError{err: err, fatal: true}
}

type flaggedError struct {
	err         error
	continuable bool
	fatal       bool
}

func (e *flaggedError) Error() string     { return e.err.Error() }
func (e *flaggedError) Unwrap() error     { return e.err }
func (e *flaggedError) Continuable() bool { return e.continuable }
func (e *flaggedError) Fatal() bool       { return e.fatal }
