package dispatch

import (
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/tzrikka/socketmode/pkg/request"
)

// Composite is a [Handler] that invokes all of its registered handlers,
// concurrently, and waits for all of them to finish.
//
// A failing (or panicking) handler doesn't prevent the others from
// running to completion, but the composite fails if any of them did.
// Register all handlers before calling [Composite.Handle].
type Composite[P any] struct {
	entries []*entry[Handler[P]]
}

type entry[H any] struct {
	factory Factory[H]
}

func NewComposite[P any](factories ...Factory[Handler[P]]) *Composite[P] {
	c := &Composite[P]{}
	for _, f := range factories {
		c.Add(f)
	}
	return c
}

// Add registers an unconditional handler factory.
func (c *Composite[P]) Add(f Factory[Handler[P]]) {
	c.entries = append(c.entries, &entry[Handler[P]]{factory: f})
}

// AddFunc registers a stateless handler function.
func (c *Composite[P]) AddFunc(f func(rc *request.Context, p P) error) {
	c.Add(Singleton[Handler[P]](HandlerFunc[P](f)))
}

// AddFiltered registers a handler factory that is built and run only
// for payloads that satisfy the given predicate (see [NarrowFactory]).
func (c *Composite[P]) AddFiltered(pred func(P) bool, f Factory[Handler[P]]) {
	c.Add(Singleton[Handler[P]](NarrowFactory(pred, f)))
}

// Len returns the number of registered handlers.
func (c *Composite[P]) Len() int {
	return len(c.entries)
}

func (c *Composite[P]) resolve(rc *request.Context) []Handler[P] {
	hs := make([]Handler[P], len(c.entries))
	for i, e := range c.entries {
		hs[i] = request.Instance(rc, e, e.factory)
	}
	return hs
}

func (c *Composite[P]) Handle(rc *request.Context, p P) error {
	hs := c.resolve(rc)
	errs := make([]error, len(hs))

	var g errgroup.Group
	for i, h := range hs {
		g.Go(func() error {
			errs[i] = Protect(func() error { return h.Handle(rc, p) })
			return nil
		})
	}
	_ = g.Wait()

	return multierr.Combine(errs...)
}

// Handlers implements the [Introspector] interface.
func (c *Composite[P]) Handlers(rc *request.Context, p P) []any {
	var leaves []any
	for _, h := range c.resolve(rc) {
		leaves = append(leaves, Handlers(rc, h, p)...)
	}
	return leaves
}
