// Package relay republishes Slack event callbacks, which are received over
// Socket Mode, to NATS subjects, so other services can consume them without
// their own Slack connections.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tzrikka/socketmode/pkg/request"
	"github.com/tzrikka/socketmode/pkg/socketmode"
)

const (
	DefaultSubjectPrefix = "slack.events"
)

// Connect creates a NATS connection to the given URL. The connection
// reconnects on its own, and reports its state changes to the logger in ctx.
func Connect(ctx context.Context, url, name string) (*nats.Conn, error) {
	l := zerolog.Ctx(ctx).With().Str("nats_url", url).Logger()

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			l.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			l.Info().Str("connected_url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			l.Info().Msg("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	l.Info().Str("connected_url", nc.ConnectedUrl()).Msg("connected to NATS")
	return nc, nil
}

// Publisher is an event handler that publishes every event callback
// to the subject "<prefix>.<event type>", as JSON.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

func NewPublisher(nc *nats.Conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{nc: nc, prefix: strings.TrimSuffix(prefix, ".")}
}

func (p *Publisher) Handle(rc *request.Context, e *socketmode.EventCallback) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	subject := p.Subject(e.EventType)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	rc.Logger().Debug().Str("subject", subject).Str("event_id", e.EventID).Msg("relayed Slack event to NATS")
	return nil
}

// Subject returns the NATS subject of the given event type.
func (p *Publisher) Subject(eventType string) string {
	if eventType == "" {
		eventType = "unknown"
	}
	// NATS subject tokens can't contain wildcards, separators, or whitespace.
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		default:
			return r
		}
	}, eventType)
	return p.prefix + "." + token
}
