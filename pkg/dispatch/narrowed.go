package dispatch

import "github.com/tzrikka/socketmode/pkg/request"

// Narrowed is a [Handler] decorator that invokes its inner handler only
// for payloads that satisfy a predicate, and silently skips all others.
// This lets several independently-registered handlers share a single
// [Composite], where each one handles only the payloads addressed to it.
//
// The inner handler is built only for payloads that satisfy the
// predicate, at most once per request (see [request.Instance]).
type Narrowed[P any] struct {
	pred    func(P) bool
	factory Factory[Handler[P]]
}

// Narrow decorates an existing handler.
func Narrow[P any](pred func(P) bool, inner Handler[P]) *Narrowed[P] {
	return NarrowFactory(pred, Singleton(inner))
}

// NarrowFactory decorates a handler factory, which is called only when needed.
func NarrowFactory[P any](pred func(P) bool, f Factory[Handler[P]]) *Narrowed[P] {
	return &Narrowed[P]{pred: pred, factory: f}
}

func (n *Narrowed[P]) inner(rc *request.Context) Handler[P] {
	return request.Instance(rc, n, n.factory)
}

func (n *Narrowed[P]) Handle(rc *request.Context, p P) error {
	if !n.pred(p) {
		return nil
	}
	return n.inner(rc).Handle(rc, p)
}

// Handlers implements the [Introspector] interface: it reports nothing
// for skipped payloads, so they are distinguishable from handled ones.
func (n *Narrowed[P]) Handlers(rc *request.Context, p P) []any {
	if !n.pred(p) {
		return nil
	}
	return Handlers(rc, n.inner(rc), p)
}
