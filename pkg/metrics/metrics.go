// Package metrics exposes Prometheus instruments for Socket Mode clients:
// envelopes, acknowledgements, handler failures, reconnections, connection
// states, and dispatch durations.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tzrikka/socketmode/pkg/request"
	"github.com/tzrikka/socketmode/pkg/socketmode"
	"github.com/tzrikka/socketmode/pkg/websocket"
)

const (
	DefaultNamespace = "socketmode"
)

type Metrics struct {
	envelopes        *prometheus.CounterVec
	acks             *prometheus.CounterVec
	handlerFailures  *prometheus.CounterVec
	reconnects       *prometheus.CounterVec
	connectionState  *prometheus.GaugeVec
	dispatchDuration *prometheus.HistogramVec
}

// New registers the instruments with the given registerer
// (e.g. [prometheus.DefaultRegisterer]).
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		envelopes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: DefaultNamespace,
			Name:      "envelopes_received_total",
			Help:      "Total number of received Socket Mode envelopes",
		}, []string{"type"}),

		acks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: DefaultNamespace,
			Name:      "acks_sent_total",
			Help:      "Total number of Socket Mode envelope acknowledgements",
		}, []string{"payload_type", "status"}),

		handlerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: DefaultNamespace,
			Name:      "handler_failures_total",
			Help:      "Total number of failed (or panicked) payload dispatches",
		}, []string{"payload_type"}),

		reconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: DefaultNamespace,
			Name:      "reconnect_attempts_total",
			Help:      "Total number of WebSocket reconnection attempts",
		}, []string{"socket_id"}),

		connectionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: DefaultNamespace,
			Name:      "connection_state",
			Help:      "Current state of each WebSocket connection (0=none, 1=connecting, 2=open, 3=closed)",
		}, []string{"socket_id"}),

		dispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: DefaultNamespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of Socket Mode envelope processing, from dispatch to acknowledgement",
			Buckets:   prometheus.DefBuckets,
		}, []string{"payload_type"}),
	}
}

// Hooks returns Socket Mode client hooks that update the instruments.
func (m *Metrics) Hooks() socketmode.Hooks {
	return socketmode.Hooks{
		OnEnvelope: func(_ int, envelopeType string) {
			m.envelopes.WithLabelValues(envelopeType).Inc()
		},
		OnAck: func(_ int, payloadKind string, err error) {
			status := "ok"
			if err != nil {
				status = "error"
			}
			m.acks.WithLabelValues(payloadKind, status).Inc()
		},
		OnHandlerError: func(payloadKind string, _ error) {
			m.handlerFailures.WithLabelValues(payloadKind).Inc()
		},
		OnState: func(socketID int, s websocket.State) {
			m.connectionState.WithLabelValues(strconv.Itoa(socketID)).Set(float64(s))
		},
		OnRetry: func(socketID, _ int, _ time.Duration, _ error) {
			m.reconnects.WithLabelValues(strconv.Itoa(socketID)).Inc()
		},
	}
}

type startKey struct{}

// Listener returns a request listener that measures the
// duration of each request, labeled by its payload type.
func (m *Metrics) Listener() request.Listener {
	return request.ListenerFuncs{
		Begin: func(rc *request.Context) {
			rc.Set(startKey{}, time.Now())
		},
		End: func(rc *request.Context) {
			v, ok := rc.Get(startKey{})
			if !ok {
				return
			}
			d := time.Since(v.(time.Time))
			m.dispatchDuration.WithLabelValues(socketmode.PayloadKind(rc)).Observe(d.Seconds())
		},
	}
}
