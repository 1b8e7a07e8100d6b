// Package multicast fans out values from any number of concurrent
// publishers to any number of independent subscribers.
package multicast

import "sync"

// Hub delivers every published value to all of its current subscribers.
// Subscribers see only values published after they subscribe (no replay).
//
// Publishing is serialized, so values from concurrent publishers are
// delivered whole and in the same order to all subscribers. A slow
// subscriber applies back-pressure to publishers, up to its buffer size.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[*subscription[T]]struct{}
	closed bool

	quit     chan struct{}
	quitOnce sync.Once
}

type subscription[T any] struct {
	c    chan T
	done chan struct{}
	once sync.Once
}

func New[T any]() *Hub[T] {
	return &Hub[T]{subs: map[*subscription[T]]struct{}{}, quit: make(chan struct{})}
}

// Subscribe returns a channel of published values, and a function to cancel
// the subscription. The channel is closed when the subscription is canceled
// or when the hub is closed. Canceling more than once is safe.
func (h *Hub[T]) Subscribe(buffer int) (<-chan T, func()) {
	s := &subscription[T]{c: make(chan T, buffer), done: make(chan struct{})}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(s.c)
		return s.c, func() {}
	}

	h.subs[s] = struct{}{}
	return s.c, func() { h.unsubscribe(s) }
}

func (h *Hub[T]) unsubscribe(s *subscription[T]) {
	// Unblock a concurrent Publish call that waits for this subscriber.
	s.once.Do(func() { close(s.done) })

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.c)
	}
}

// Publish delivers v to all current subscribers, and reports whether
// the hub is still open. It blocks while any subscriber's buffer is full.
func (h *Hub[T]) Publish(v T) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	for s := range h.subs {
		select {
		case s.c <- v:
		case <-s.done:
		case <-h.quit:
			return false
		}
	}
	return true
}

// Len returns the number of current subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes all subscriber channels. Subsequent calls to
// [Hub.Publish] are no-ops, and new subscriptions are closed immediately.
func (h *Hub[T]) Close() {
	// Unblock a concurrent Publish call that waits for a slow subscriber.
	h.quitOnce.Do(func() { close(h.quit) })

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for s := range h.subs {
		s.once.Do(func() { close(s.done) })
		close(s.c)
	}
	clear(h.subs)
}
