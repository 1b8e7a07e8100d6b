package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tzrikka/socketmode/pkg/request"
	"github.com/tzrikka/socketmode/pkg/websocket"
)

func TestHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	h := m.Hooks()

	h.OnEnvelope(0, "events_api")
	h.OnEnvelope(1, "events_api")
	h.OnEnvelope(0, "hello")
	h.OnAck(0, "event", nil)
	h.OnAck(0, "slash_command", errors.New("not connected"))
	h.OnHandlerError("block_actions", errors.New("error"))
	h.OnState(1, websocket.StateOpen)
	h.OnRetry(1, 1, time.Second, errors.New("closed"))
	h.OnRetry(1, 2, 6*time.Second, errors.New("closed"))

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"events", m.envelopes.WithLabelValues("events_api"), 2},
		{"hellos", m.envelopes.WithLabelValues("hello"), 1},
		{"acks_ok", m.acks.WithLabelValues("event", "ok"), 1},
		{"acks_error", m.acks.WithLabelValues("slash_command", "error"), 1},
		{"failures", m.handlerFailures.WithLabelValues("block_actions"), 1},
		{"state", m.connectionState.WithLabelValues("1"), float64(websocket.StateOpen)},
		{"reconnects", m.reconnects.WithLabelValues("1"), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.c); got != tt.want {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListener(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	rc := request.Begin(t.Context(), 0, "1", "request", m.Listener())
	rc.End()

	if n := testutil.CollectAndCount(m.dispatchDuration); n != 1 {
		t.Errorf("histogram series = %d, want 1", n)
	}

	if n := testutil.CollectAndCount(m.handlerFailures); n != 0 {
		t.Errorf("handler failure series = %d, want 0", n)
	}
}
