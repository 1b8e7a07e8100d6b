// Package request implements short-lived, per-envelope request contexts:
// a bag of state that exists only while a single inbound envelope is
// processed, with listeners that observe its beginning and end, completion
// callbacks, and a cache of handler instances that are built on demand.
package request

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Context is the state of a single request. It is also a [context.Context],
// so handlers can pass it to any blocking call that they make.
type Context struct {
	context.Context

	SocketID   int
	EnvelopeID string
	RequestID  string

	mu        sync.Mutex
	values    map[any]any
	instances map[any]any
	callbacks []func()
	listeners []Listener
	endOnce   sync.Once
}

// Listener observes the beginning and end of every request. Listeners are
// notified in registration order when a request begins, and in reverse order
// when it ends. OnBegin may modify the request (e.g. with [Context.WithContext]
// or [Context.Set]) before any handler sees it.
type Listener interface {
	OnBegin(rc *Context)
	OnEnd(rc *Context)
}

// ListenerFuncs adapts a pair of functions (either may be nil) to a [Listener].
type ListenerFuncs struct {
	Begin func(rc *Context)
	End   func(rc *Context)
}

func (l ListenerFuncs) OnBegin(rc *Context) {
	if l.Begin != nil {
		l.Begin(rc)
	}
}

func (l ListenerFuncs) OnEnd(rc *Context) {
	if l.End != nil {
		l.End(rc)
	}
}

// Begin starts a new request, and notifies the given listeners about it.
// The caller must call [Context.End] exactly once when the request is done,
// typically with defer, so it runs even if request handling panics.
func Begin(ctx context.Context, socketID int, envelopeID, requestID string, listeners ...Listener) *Context {
	rc := &Context{
		SocketID:   socketID,
		EnvelopeID: envelopeID,
		RequestID:  requestID,
		values:     map[any]any{},
		instances:  map[any]any{},
		listeners:  listeners,
	}

	l := zerolog.Ctx(ctx).With().Int("socket_id", socketID).Str("request_id", requestID)
	if envelopeID != "" {
		l = l.Str("envelope_id", envelopeID)
	}
	rc.Context = l.Logger().WithContext(ctx)

	for _, lis := range listeners {
		lis.OnBegin(rc)
	}

	return rc
}

// WithContext replaces the request's underlying [context.Context], e.g.
// to attach a tracing span. It is meant to be called by listeners.
func (rc *Context) WithContext(ctx context.Context) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.Context = ctx
}

// Logger returns the request-scoped logger.
func (rc *Context) Logger() *zerolog.Logger {
	return zerolog.Ctx(rc.Context)
}

// Set stores an arbitrary value in the request, for cross-cutting concerns.
func (rc *Context) Set(key, value any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.values[key] = value
}

// Get retrieves a value that was stored with [Context.Set].
func (rc *Context) Get(key any) (any, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	v, ok := rc.values[key]
	return v, ok
}

// OnComplete registers a function to run when the request ends. Functions
// run in reverse registration order (last registered runs first).
func (rc *Context) OnComplete(f func()) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.callbacks = append(rc.callbacks, f)
}

// End runs all the completion callbacks, clears the request's handler
// cache, and then notifies the listeners (in reverse order) that the
// request ended. Only the first call has any effect.
//
// A panicking callback doesn't prevent the others from running,
// but End re-panics after the listeners are notified.
func (rc *Context) End() {
	rc.endOnce.Do(func() {
		rc.mu.Lock()
		callbacks := rc.callbacks
		rc.callbacks = nil
		rc.mu.Unlock()

		var recovered any
		for i := len(callbacks) - 1; i >= 0; i-- {
			func() {
				defer func() {
					if r := recover(); r != nil && recovered == nil {
						recovered = r
					}
				}()
				callbacks[i]()
			}()
		}

		rc.mu.Lock()
		clear(rc.instances)
		rc.mu.Unlock()

		for i := len(rc.listeners) - 1; i >= 0; i-- {
			rc.listeners[i].OnEnd(rc)
		}

		if recovered != nil {
			panic(recovered)
		}
	})
}
