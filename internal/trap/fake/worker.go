// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"errors"
	"runtime"
)

var ErrWorker = errors.New("worker failure")

// Worker fails in every way a background job can fail.
type Worker struct{}

// Panic panics with ErrWorker.
func (w *Worker) Panic() error {
	panic(ErrWorker)
}

// PanicValue panics with a value that is not an error.
func (w Worker) PanicValue() error {
	panic("worker gave up")
}

// Fail returns ErrWorker without any stack information.
func (w *Worker) Fail() error {
	return ErrWorker
}

// FailWithStack returns an error recording the stack where it was created.
func (w *Worker) FailWithStack() error {
	return NewStackError("worker failure with stack")
}

// Nested panics from a closure defined inside a method.
func (w *Worker) Nested() error {
	run := func() {
		panic(ErrWorker)
	}
	run()
	return nil
}

// Explode panics from a plain function.
func Explode() error {
	panic(ErrWorker)
}

// StackError is an error carrying the program counters of its creation site.
type StackError struct {
	message string
	pcs     []uintptr
}

// NewStackError returns a StackError recording the stack of its caller.
func NewStackError(message string) *StackError {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	return &StackError{message: message, pcs: pcs[:n]}
}

func (e *StackError) Error() string {
	return e.message
}

func (e *StackError) StackTrace() []uintptr {
	return e.pcs
}
