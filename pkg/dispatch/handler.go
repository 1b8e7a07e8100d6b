// Package dispatch routes payloads to application handlers, with two
// composable strategies: [Composite] invokes all of its handlers
// concurrently, and [Switching] invokes at most one handler, selected by
// a key that is extracted from the payload. [Narrowed] lets a handler in
// a [Composite] skip payloads that aren't addressed to it.
//
// Handlers are built lazily by factories, at most once per request
// (see [request.Instance]), so they may hold request-scoped state.
package dispatch

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/tzrikka/socketmode/pkg/request"
)

// Handler processes payloads of type P, without a response.
type Handler[P any] interface {
	Handle(rc *request.Context, p P) error
}

// HandlerFunc adapts an ordinary function to a [Handler].
type HandlerFunc[P any] func(rc *request.Context, p P) error

func (f HandlerFunc[P]) Handle(rc *request.Context, p P) error {
	return f(rc, p)
}

// ResponseHandler processes payloads of type P, and returns a response.
type ResponseHandler[P, R any] interface {
	Handle(rc *request.Context, p P) (R, error)
}

// ResponseHandlerFunc adapts an ordinary function to a [ResponseHandler].
type ResponseHandlerFunc[P, R any] func(rc *request.Context, p P) (R, error)

func (f ResponseHandlerFunc[P, R]) Handle(rc *request.Context, p P) (R, error) {
	return f(rc, p)
}

// Factory builds a handler for a specific request.
type Factory[H any] func(rc *request.Context) H

// Singleton returns a factory that always returns the same handler.
func Singleton[H any](h H) Factory[H] {
	return func(*request.Context) H {
		return h
	}
}

// Noop returns a response handler that does nothing, and returns the zero value of R.
func Noop[P, R any]() ResponseHandler[P, R] {
	return noop[P, R]{}
}

type noop[P, R any] struct{}

func (noop[P, R]) Handle(*request.Context, P) (R, error) {
	var zero R
	return zero, nil
}

// Introspector is implemented by handlers that contain other handlers.
// It reports which leaf handlers would run for the given payload, without
// running them. An empty result means that no handler would run.
type Introspector[P any] interface {
	Handlers(rc *request.Context, p P) []any
}

// Handlers returns the leaf handlers that h would run for p: the result of
// h's [Introspector] implementation, or h itself if it doesn't implement it.
func Handlers[P any](rc *request.Context, h any, p P) []any {
	if h == nil {
		return nil
	}
	if i, ok := h.(Introspector[P]); ok {
		return i.Handlers(rc, p)
	}
	return []any{h}
}

// Describe returns a human-readable list of handler types, for logging.
func Describe(hs []any) string {
	if len(hs) == 0 {
		return "<none>"
	}

	names := make([]string, len(hs))
	for i, h := range hs {
		names[i] = fmt.Sprintf("%T", h)
	}
	return strings.Join(names, ", ")
}

// Protect calls f, and converts a panic into an error with a stack trace.
func Protect(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("handler panicked: %v", r)
		}
	}()
	return f()
}
