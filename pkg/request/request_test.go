package request

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
)

type ctxKey struct{}

func TestBeginAndEnd(t *testing.T) {
	var events []string
	l1 := ListenerFuncs{
		Begin: func(rc *Context) {
			events = append(events, "begin 1")
			rc.WithContext(context.WithValue(rc.Context, ctxKey{}, "scope"))
		},
		End: func(*Context) { events = append(events, "end 1") },
	}
	l2 := ListenerFuncs{
		Begin: func(*Context) { events = append(events, "begin 2") },
		End:   func(*Context) { events = append(events, "end 2") },
	}

	rc := Begin(t.Context(), 2, "envelope", "request", l1, l2)
	if rc.SocketID != 2 || rc.EnvelopeID != "envelope" || rc.RequestID != "request" {
		t.Errorf("Begin() = %d %q %q", rc.SocketID, rc.EnvelopeID, rc.RequestID)
	}
	if got := rc.Value(ctxKey{}); got != "scope" {
		t.Errorf("Context.Value() = %v, want %q", got, "scope")
	}

	rc.OnComplete(func() { events = append(events, "callback 1") })
	rc.OnComplete(func() { events = append(events, "callback 2") })
	rc.End()
	rc.End() // Only the first call has any effect.

	want := []string{"begin 1", "begin 2", "callback 2", "callback 1", "end 2", "end 1"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestEndAfterPanic(t *testing.T) {
	ran := 0
	ended := false
	process := func() {
		rc := Begin(t.Context(), 1, "", "request", ListenerFuncs{End: func(*Context) { ended = true }})
		defer rc.End()

		rc.OnComplete(func() { ran++ })
		panic("handler failure")
	}

	func() {
		defer func() { _ = recover() }()
		process()
	}()

	if ran != 1 {
		t.Errorf("completion callbacks ran %d times, want 1", ran)
	}
	if !ended {
		t.Error("listener wasn't notified about the request's end")
	}
}

func TestEndWithPanickingCallback(t *testing.T) {
	ran := false
	rc := Begin(t.Context(), 1, "", "request")
	rc.OnComplete(func() { ran = true })
	rc.OnComplete(func() { panic("callback failure") })

	defer func() {
		if r := recover(); r != "callback failure" {
			t.Errorf("recovered %v, want %q", r, "callback failure")
		}
		if !ran {
			t.Error("panicking callback prevented other callbacks from running")
		}
	}()
	rc.End()
}

func TestValues(t *testing.T) {
	rc := Begin(t.Context(), 1, "", "request")
	defer rc.End()

	if _, ok := rc.Get("key"); ok {
		t.Error("Context.Get() found a value before Context.Set()")
	}
	rc.Set("key", 123)
	if v, ok := rc.Get("key"); !ok || v != 123 {
		t.Errorf("Context.Get() = (%v, %v), want (123, true)", v, ok)
	}
	if rc.Logger() == nil {
		t.Error("Context.Logger() = nil")
	}
}

type handler struct{ n int }

func TestInstance(t *testing.T) {
	var built atomic.Int32
	newHandler := func(*Context) *handler {
		return &handler{n: int(built.Add(1))}
	}

	rc := Begin(t.Context(), 1, "", "request")

	var wg sync.WaitGroup
	got := make([]*handler, 10)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = Instance(rc, "key", newHandler)
		}()
	}
	wg.Wait()

	for _, h := range got {
		if h != got[0] {
			t.Fatal("Instance() returned different instances for the same key")
		}
	}
	if other := Instance(rc, "other", newHandler); other == got[0] {
		t.Error("Instance() returned the same instance for different keys")
	}
	rc.End()

	rc = Begin(t.Context(), 1, "", "request 2")
	defer rc.End()
	if h := Instance(rc, "key", newHandler); h == got[0] {
		t.Error("Instance() reused an instance from a different request")
	}
}
