package dispatch

import (
	"errors"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tzrikka/socketmode/pkg/request"
)

type action struct {
	ActionID string
}

// recorder is a handler that records the payloads it handles.
type recorder struct {
	name string
	mu   *sync.Mutex
	log  *[]string
	err  error
}

func (r *recorder) Handle(_ *request.Context, p action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.log = append(*r.log, r.name+":"+p.ActionID)
	return r.err
}

func newRecorders() (func(name string, err error) Factory[Handler[action]], func() []string) {
	mu := &sync.Mutex{}
	log := &[]string{}

	factory := func(name string, err error) Factory[Handler[action]] {
		return func(*request.Context) Handler[action] {
			return &recorder{name: name, mu: mu, log: log, err: err}
		}
	}
	logged := func() []string {
		mu.Lock()
		defer mu.Unlock()
		got := append([]string{}, *log...)
		sort.Strings(got)
		return got
	}

	return factory, logged
}

func actionIs(id string) func(action) bool {
	return func(a action) bool { return a.ActionID == id }
}

func TestCompositeWithNarrowedHandler(t *testing.T) {
	tests := []struct {
		name         string
		actionID     string
		want         []string
		wantHandlers int
	}{
		{
			name:         "unaddressed",
			actionID:     "Y",
			want:         []string{"h1:Y"},
			wantHandlers: 1,
		},
		{
			name:         "addressed",
			actionID:     "X",
			want:         []string{"h1:X", "h2:X"},
			wantHandlers: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, logged := newRecorders()
			c := NewComposite(factory("h1", nil))
			c.AddFiltered(actionIs("X"), factory("h2", nil))

			rc := request.Begin(t.Context(), 1, "", "request")
			defer rc.End()

			p := action{ActionID: tt.actionID}
			if got := Handlers(rc, c, p); len(got) != tt.wantHandlers {
				t.Errorf("Handlers() = %s, want %d handlers", Describe(got), tt.wantHandlers)
			}
			if err := c.Handle(rc, p); err != nil {
				t.Fatalf("Composite.Handle() error = %v", err)
			}
			if got := logged(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("handled = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompositeFailTogether(t *testing.T) {
	factory, logged := newRecorders()
	err1, err2 := errors.New("error 1"), errors.New("error 2")

	c := NewComposite(factory("h1", err1), factory("h2", nil), factory("h3", err2))
	c.AddFunc(func(*request.Context, action) error { panic("boom") })

	rc := request.Begin(t.Context(), 1, "", "request")
	defer rc.End()

	err := c.Handle(rc, action{ActionID: "a"})
	if !errors.Is(err, err1) || !errors.Is(err, err2) {
		t.Errorf("Composite.Handle() error = %v, want both %v and %v", err, err1, err2)
	}
	want := []string{"h1:a", "h2:a", "h3:a"}
	if got := logged(); !reflect.DeepEqual(got, want) {
		t.Errorf("handled = %v, want %v", got, want)
	}
}

func TestCompositeEmpty(t *testing.T) {
	c := NewComposite[action]()
	rc := request.Begin(t.Context(), 1, "", "request")
	defer rc.End()

	if err := c.Handle(rc, action{}); err != nil {
		t.Errorf("Composite.Handle() error = %v", err)
	}
	if got := Describe(Handlers(rc, c, action{})); got != "<none>" {
		t.Errorf("Describe(Handlers()) = %q, want %q", got, "<none>")
	}
}

func TestCompositeOfComposites(t *testing.T) {
	factory, logged := newRecorders()
	inner := NewComposite(factory("inner", nil))
	inner.AddFiltered(actionIs("Z"), factory("never", nil))
	outer := NewComposite(factory("outer", nil), Singleton[Handler[action]](inner))

	rc := request.Begin(t.Context(), 1, "", "request")
	defer rc.End()

	leaves := Handlers(rc, outer, action{ActionID: "a"})
	if len(leaves) != 2 {
		t.Fatalf("Handlers() = %s, want 2 leaf handlers", Describe(leaves))
	}
	for _, h := range leaves {
		if _, ok := h.(*recorder); !ok {
			t.Errorf("leaf handler type = %T, want *recorder", h)
		}
	}
	if got := Describe(leaves); got != "*dispatch.recorder, *dispatch.recorder" {
		t.Errorf("Describe() = %q", got)
	}

	if err := outer.Handle(rc, action{ActionID: "a"}); err != nil {
		t.Fatalf("Composite.Handle() error = %v", err)
	}
	if got, want := logged(), []string{"inner:a", "outer:a"}; !reflect.DeepEqual(got, want) {
		t.Errorf("handled = %v, want %v", got, want)
	}
}

func TestCompositeBuildsOncePerRequest(t *testing.T) {
	var built atomic.Int32
	c := NewComposite(func(*request.Context) Handler[action] {
		built.Add(1)
		return HandlerFunc[action](func(*request.Context, action) error { return nil })
	})

	rc := request.Begin(t.Context(), 1, "", "request 1")
	_ = Handlers(rc, c, action{})
	_ = c.Handle(rc, action{})
	_ = c.Handle(rc, action{})
	rc.End()

	if n := built.Load(); n != 1 {
		t.Errorf("handler built %d times in one request, want 1", n)
	}

	rc = request.Begin(t.Context(), 1, "", "request 2")
	_ = c.Handle(rc, action{})
	rc.End()

	if n := built.Load(); n != 2 {
		t.Errorf("handler built %d times in two requests, want 2", n)
	}
}

func TestCompositeBuildsNarrowedHandlersOnDemand(t *testing.T) {
	var built atomic.Int32
	c := NewComposite[action]()
	c.AddFiltered(actionIs("X"), func(*request.Context) Handler[action] {
		built.Add(1)
		return HandlerFunc[action](func(*request.Context, action) error { return nil })
	})

	rc := request.Begin(t.Context(), 1, "", "request 1")
	if hs := Handlers(rc, c, action{ActionID: "Y"}); len(hs) != 0 {
		t.Errorf("Handlers(Y) = %s, want none", Describe(hs))
	}
	if err := c.Handle(rc, action{ActionID: "Y"}); err != nil {
		t.Fatalf("Composite.Handle(Y) error = %v", err)
	}
	if n := built.Load(); n != 0 {
		t.Errorf("skipped handler built %d times, want 0", n)
	}

	_ = c.Handle(rc, action{ActionID: "X"})
	_ = c.Handle(rc, action{ActionID: "X"})
	rc.End()
	if n := built.Load(); n != 1 {
		t.Errorf("addressed handler built %d times in one request, want 1", n)
	}

	rc = request.Begin(t.Context(), 1, "", "request 2")
	_ = c.Handle(rc, action{ActionID: "X"})
	rc.End()
	if n := built.Load(); n != 2 {
		t.Errorf("addressed handler built %d times in two requests, want 2", n)
	}
}

type command struct {
	Command string
}

func TestSwitching(t *testing.T) {
	var calls []string
	s := NewSwitching[command, string](func(c command) string { return c.Command }, nil)
	s.RegisterFunc("matching", func(_ *request.Context, c command) (string, error) {
		calls = append(calls, c.Command)
		return "response", nil
	})

	rc := request.Begin(t.Context(), 1, "", "request")
	defer rc.End()

	got, err := s.Handle(rc, command{Command: "other"})
	if err != nil || got != "" {
		t.Errorf("Switching.Handle(other) = (%q, %v), want empty response", got, err)
	}
	if len(calls) != 0 {
		t.Errorf("handler invoked for unmatched key: %v", calls)
	}
	if hs := Handlers(rc, s, command{Command: "other"}); len(hs) != 0 {
		t.Errorf("Handlers(other) = %s, want none", Describe(hs))
	}

	got, err = s.Handle(rc, command{Command: "matching"})
	if err != nil || got != "response" {
		t.Errorf("Switching.Handle(matching) = (%q, %v), want %q", got, err, "response")
	}
	if !reflect.DeepEqual(calls, []string{"matching"}) {
		t.Errorf("calls = %v", calls)
	}
	if hs := Handlers(rc, s, command{Command: "matching"}); len(hs) != 1 {
		t.Errorf("Handlers(matching) = %s, want 1 handler", Describe(hs))
	}
}

func TestSwitchingFallback(t *testing.T) {
	fallback := ResponseHandlerFunc[command, string](func(*request.Context, command) (string, error) {
		return "default", nil
	})
	s := NewSwitching[command, string](func(c command) string { return c.Command }, fallback)

	rc := request.Begin(t.Context(), 1, "", "request")
	defer rc.End()

	if got, _ := s.Handle(rc, command{Command: "unknown"}); got != "default" {
		t.Errorf("Switching.Handle() = %q, want %q", got, "default")
	}
	if hs := Handlers(rc, s, command{Command: "unknown"}); len(hs) != 1 {
		t.Errorf("Handlers() = %s, want the fallback handler", Describe(hs))
	}

	s = NewSwitching(func(c command) string { return c.Command }, Noop[command, string]())
	if hs := Handlers(rc, s, command{Command: "unknown"}); len(hs) != 0 {
		t.Errorf("Handlers() = %s, want none for a no-op fallback", Describe(hs))
	}
}

func TestProtect(t *testing.T) {
	wantErr := errors.New("error")
	if err := Protect(func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Errorf("Protect() error = %v, want %v", err, wantErr)
	}
	if err := Protect(func() error { panic("boom") }); err == nil {
		t.Error("Protect() error = nil after panic")
	}
}
