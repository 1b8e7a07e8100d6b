package dispatch

import "github.com/tzrikka/socketmode/pkg/request"

// Switching is a [ResponseHandler] that invokes at most one handler: the
// one registered with the key that it extracts from the payload, or
// a fallback handler if there isn't one (by default, [Noop]).
// Register all handlers before calling [Switching.Handle].
type Switching[P, R any] struct {
	key      func(P) string
	entries  map[string]*entry[ResponseHandler[P, R]]
	fallback ResponseHandler[P, R]
}

// NewSwitching creates a [Switching] handler with the given key extraction
// function. If fallback is nil, unmatched payloads get an empty response.
func NewSwitching[P, R any](key func(P) string, fallback ResponseHandler[P, R]) *Switching[P, R] {
	return &Switching[P, R]{
		key:      key,
		entries:  map[string]*entry[ResponseHandler[P, R]]{},
		fallback: fallback,
	}
}

// Register associates a handler factory with a key. Registering
// the same key more than once replaces the previous factory.
func (s *Switching[P, R]) Register(key string, f Factory[ResponseHandler[P, R]]) {
	s.entries[key] = &entry[ResponseHandler[P, R]]{factory: f}
}

// RegisterFunc associates a stateless handler function with a key.
func (s *Switching[P, R]) RegisterFunc(key string, f func(rc *request.Context, p P) (R, error)) {
	s.Register(key, Singleton[ResponseHandler[P, R]](ResponseHandlerFunc[P, R](f)))
}

// Len returns the number of registered keys.
func (s *Switching[P, R]) Len() int {
	return len(s.entries)
}

func (s *Switching[P, R]) match(rc *request.Context, p P) ResponseHandler[P, R] {
	if e, ok := s.entries[s.key(p)]; ok {
		return request.Instance(rc, e, e.factory)
	}
	return s.fallback
}

func (s *Switching[P, R]) Handle(rc *request.Context, p P) (R, error) {
	h := s.match(rc, p)
	if h == nil {
		var zero R
		return zero, nil
	}
	return h.Handle(rc, p)
}

// Handlers implements the [Introspector] interface.
func (s *Switching[P, R]) Handlers(rc *request.Context, p P) []any {
	h := s.match(rc, p)
	if h == nil {
		return nil
	}
	if _, ok := h.(noop[P, R]); ok {
		return nil
	}
	return Handlers(rc, h, p)
}
