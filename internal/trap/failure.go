// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package trap

import (
	"errors"
	"runtime"
)

// Failure is an unhandled failure caught by the Trap.
type Failure struct {
	// Err is the failure error, if the failure carried one.
	Err error
	// Payload is the raw panic value when it is not an error.
	Payload any
	// Frames is the stack captured where the failure was caught, innermost first.
	Frames []Frame
	// Fatal reports whether the failure is going to terminate the process.
	Fatal bool
}

// Frame is a single stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// ownedError is an error that names the category it belongs to.
type ownedError struct {
	category string
	err      error
}

func (e *ownedError) Error() string { return e.err.Error() }
func (e *ownedError) Unwrap() error { return e.err }
func (e *ownedError) Category() string { return e.category }

// Own marks err as belonging to category: a failure carrying it is attributed to category
// without looking at the stack.
func Own(category string, err error) error {
	if err == nil {
		return nil
	}
	return &ownedError{category: category, err: err}
}

func failureFromPanic(value any, frames []Frame, fatal bool) Failure {
	failure := Failure{Frames: frames, Fatal: fatal}
	if err, ok := value.(error); ok {
		failure.Err = err
		return failure
	}

	failure.Payload = value
	return failure
}

// callers returns the stack of the caller, skipping skip frames above it.
func callers(skip int) []Frame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs)
	return framesOf(pcs[:n])
}

func framesOf(pcs []uintptr) []Frame {
	if len(pcs) == 0 {
		return nil
	}

	frames := make([]Frame, 0, len(pcs))
	iterator := runtime.CallersFrames(pcs)
	for {
		frame, more := iterator.Next()
		frames = append(frames, Frame{Function: frame.Function, File: frame.File, Line: frame.Line})
		if !more {
			break
		}
	}
	return frames
}

// errorFrames returns the stack recorded by the first error in the chain exposing one.
func errorFrames(err error) []Frame {
	var traced interface{ StackTrace() []uintptr }
	if !errors.As(err, &traced) {
		return nil
	}
	return framesOf(traced.StackTrace())
}

// errorCategory returns the category declared by the first error in the chain naming one.
func errorCategory(err error) string {
	var owned interface{ Category() string }
	if !errors.As(err, &owned) {
		return ""
	}
	return owned.Category()
}
