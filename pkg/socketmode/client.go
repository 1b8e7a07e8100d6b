package socketmode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tzrikka/socketmode/internal/multicast"
	"github.com/tzrikka/socketmode/pkg/backoff"
	"github.com/tzrikka/socketmode/pkg/dispatch"
	"github.com/tzrikka/socketmode/pkg/request"
	"github.com/tzrikka/socketmode/pkg/websocket"
)

const (
	DefaultConnections = 1
	DefaultQueueSize   = 64
)

var ErrInvalidSocket = errors.New("invalid socket ID")

// Deduplicator detects redeliveries of envelopes that were already received.
// Seen records the envelope ID, and reports whether it was recorded before.
type Deduplicator interface {
	Seen(ctx context.Context, envelopeID string) (bool, error)
}

// Hooks are optional callbacks for observability. They are
// called synchronously, so they must not block.
type Hooks struct {
	OnEnvelope     func(socketID int, envelopeType string)
	OnAck          func(socketID int, payloadKind string, err error)
	OnHandlerError func(payloadKind string, err error)
	OnState        func(socketID int, s websocket.State)
	OnRetry        func(socketID, attempt int, delay time.Duration, err error)
}

type Config struct {
	// URL returns a new single-use WebSocket URL for every connection attempt.
	URL websocket.URLFunc
	// Connections is the number of parallel WebSocket connections.
	Connections int
	Backoff     backoff.Config
	DialOpts    []websocket.DialOpt
	// QueueSize is the buffer size of the merged inbound message stream.
	QueueSize int

	Handlers  Handlers
	Listeners []request.Listener
	Dedup     Deduplicator
	Hooks     Hooks
}

// Client receives Socket Mode envelopes over one or more independently
// reconnecting WebSocket connections, dispatches their payloads according
// to its [Handlers], and acknowledges every envelope exactly once, on
// the same connection that it arrived on.
//
// Envelopes are processed concurrently, each in its own goroutine and
// [request.Context], so they may complete in any order.
type Client struct {
	cfg     Config
	logger  zerolog.Logger
	sockets []*websocket.Client
	msgs    *multicast.Hub[websocket.Message]
	envs    *multicast.Hub[Envelope]

	mu      sync.RWMutex
	state   websocket.State
	started bool
	closed  bool

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewClient(cfg Config) *Client {
	if cfg.Connections < 1 {
		cfg.Connections = DefaultConnections
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = DefaultQueueSize
	}

	c := &Client{
		cfg:    cfg,
		logger: zerolog.Nop(),
		msgs:   multicast.New[websocket.Message](),
		envs:   multicast.New[Envelope](),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	for i := range cfg.Connections {
		c.sockets = append(c.sockets, websocket.NewClient(cfg.URL,
			websocket.WithSocketID(i),
			websocket.WithBackoff(cfg.Backoff),
			websocket.WithDialOpts(cfg.DialOpts...),
			websocket.WithStateListener(c.stateChanged),
			websocket.WithRetryListener(c.retrying),
		))
	}

	return c
}

// Connect opens all the client's connections concurrently, and returns when
// they are all open. If any of them fails, or if ctx is canceled before they
// open, Connect closes the client and returns the first error.
//
// After a successful call, each connection reconnects on its own whenever it's
// closed, until [Client.Close] is called. The logger in ctx (see [zerolog.Ctx])
// is used for the entire lifetime of the client.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return websocket.ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return websocket.ErrAlreadyStarted
	}
	c.started = true
	c.logger = *zerolog.Ctx(ctx)
	c.mu.Unlock()

	// Subscribe before connecting, to not miss any message.
	in, _ := c.msgs.Subscribe(c.cfg.QueueSize)
	for _, s := range c.sockets {
		ch, _ := s.Messages(c.cfg.QueueSize)
		c.wg.Add(1)
		go c.merge(ch)
	}
	c.wg.Add(1)
	go c.receive(in)

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range c.sockets {
		g.Go(func() error {
			return s.Connect(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		c.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	c.logger.Info().Int("connections", len(c.sockets)).Msg("Socket Mode client connected")
	return nil
}

// merge relays the messages of a single connection to the merged stream.
func (c *Client) merge(ch <-chan websocket.Message) {
	defer c.wg.Done()
	for msg := range ch {
		c.msgs.Publish(msg)
	}
}

func (c *Client) receive(in <-chan websocket.Message) {
	defer c.wg.Done()
	for msg := range in {
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg websocket.Message) {
	l := c.logger.With().Int("socket_id", msg.SocketID).Str("request_id", msg.ID).Logger()
	if msg.Opcode != websocket.OpcodeText {
		l.Warn().Int("length", len(msg.Data)).Msg("dropped non-text Socket Mode message")
		return
	}

	env, err := Classify(msg.Data)
	if err != nil {
		l.Error().Err(err).Str("data", string(msg.Data)).Msg("failed to classify Socket Mode message")
		return
	}

	h := env.Meta()
	h.SocketID = msg.SocketID
	h.RequestID = msg.ID
	if f := c.cfg.Hooks.OnEnvelope; f != nil {
		f(h.SocketID, h.Type)
	}
	c.envs.Publish(env)

	switch e := env.(type) {
	case *Hello:
		l.Debug().Int("num_connections", e.NumConnections).Str("host", e.DebugInfo.Host).
			Int("approximate_connection_time", e.DebugInfo.ApproximateConnectionTime).
			Msg("received Socket Mode hello")
	case *Disconnect:
		c.disconnect(l, e)
	default:
		c.wg.Add(1)
		go c.process(env)
	}
}

// disconnect handles a server's notice that a connection is about to be
// closed. The connection is replaced before that happens, if possible.
func (c *Client) disconnect(l zerolog.Logger, d *Disconnect) {
	l = l.With().Str("reason", d.Reason).Logger()
	switch d.Reason {
	case ReasonWarning, ReasonRefreshRequested:
		l.Info().Msg("Socket Mode connection is about to be closed, refreshing it")
		c.sockets[d.SocketID].Refresh()
	case ReasonLinkDisabled:
		l.Error().Msg("Socket Mode was disabled for this app")
	default:
		l.Warn().Msg("unrecognized Socket Mode disconnect reason")
	}
}

// process handles a single envelope, from its dispatch to its acknowledgement.
// Events are acknowledged before they are dispatched, because they can't have
// a response, and their handlers may take longer than Slack's ack deadline.
// All other envelopes are acknowledged after dispatching, with the response.
//
// Panics anywhere in the request's lifecycle (listeners and completion
// callbacks too, not just handlers) are logged and reported like handler
// errors, and the envelope is still acknowledged exactly once.
func (c *Client) process(env Envelope) {
	defer c.wg.Done()

	h := env.Meta()
	kind := payloadKind(env)

	acked := false
	err := dispatch.Protect(func() error {
		c.serve(env, kind, &acked)
		return nil
	})
	if err == nil {
		return
	}

	l := c.logger.With().Int("socket_id", h.SocketID).Str("request_id", h.RequestID).
		Str("envelope_id", h.EnvelopeID).Str("payload_type", kind).Logger()
	l.Error().Stack().Err(err).Msg("Socket Mode request failed")
	if f := c.cfg.Hooks.OnHandlerError; f != nil {
		f(kind, err)
	}
	if !acked {
		c.ack(&l, h, kind, nil)
	}
}

// serve runs a single envelope's request, and sets acked
// as soon as the envelope's acknowledgement is sent.
func (c *Client) serve(env Envelope, kind string, acked *bool) {
	h := env.Meta()
	rc := request.Begin(c.logger.WithContext(c.ctx), h.SocketID, h.EnvelopeID, h.RequestID, c.cfg.Listeners...)
	defer rc.End()
	rc.Set(payloadKindKey{}, kind)

	lc := rc.Logger().With().Str("envelope_type", h.Type).Str("payload_type", kind)
	if h.RetryAttempt > 0 {
		lc = lc.Int("retry_attempt", h.RetryAttempt).Str("retry_reason", h.RetryReason)
	}
	l := lc.Logger()
	rc.WithContext(l.WithContext(rc.Context))

	ack := func(resp any) {
		*acked = true
		c.ack(rc.Logger(), h, kind, resp)
	}

	if c.redelivered(rc, h) {
		l.Info().Msg("skipping redelivered Socket Mode envelope")
		ack(nil)
		return
	}

	if _, ok := env.(*EventsAPI); ok {
		ack(nil)
		c.dispatch(rc, env, kind)
		return
	}

	ack(c.dispatch(rc, env, kind))
}

// dispatch never panics: handler panics are converted into errors,
// which are logged and discarded along with any partial response.
func (c *Client) dispatch(rc *request.Context, env Envelope, kind string) any {
	var resp any
	err := dispatch.Protect(func() (err error) {
		resp, err = route(rc, c.cfg.Handlers, env)
		return err
	})
	if err != nil {
		rc.Logger().Error().Stack().Err(err).Msg("Socket Mode handler failed")
		if f := c.cfg.Hooks.OnHandlerError; f != nil {
			f(kind, err)
		}
		return nil
	}
	return resp
}

func (c *Client) redelivered(rc *request.Context, h *Header) bool {
	if c.cfg.Dedup == nil || !h.RequiresAck() {
		return false
	}

	seen, err := c.cfg.Dedup.Seen(rc, h.EnvelopeID)
	if err != nil {
		rc.Logger().Warn().Err(err).Msg("failed to check Socket Mode envelope redelivery")
		return false
	}
	return seen
}

func (c *Client) ack(l *zerolog.Logger, h *Header, kind string, resp any) {
	if !h.RequiresAck() {
		return
	}

	a := Ack{EnvelopeID: h.EnvelopeID}
	if resp != nil {
		if h.AcceptsResponsePayload {
			a.Payload = resp
		} else {
			l.Warn().Msg("dropped handler response: envelope doesn't accept a response payload")
		}
	}

	err := c.sendJSON(h.SocketID, a)
	if err != nil {
		l.Error().Err(err).Msg("failed to acknowledge Socket Mode envelope")
	} else {
		l.Debug().Bool("with_payload", a.Payload != nil).Msg("acknowledged Socket Mode envelope")
	}

	if f := c.cfg.Hooks.OnAck; f != nil {
		f(h.SocketID, kind, err)
	}
}

func (c *Client) sendJSON(socketID int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize JSON: %w", err)
	}
	return c.Send(socketID, data)
}

// Send sends a text message over a specific connection.
func (c *Client) Send(socketID int, data []byte) error {
	if socketID < 0 || socketID >= len(c.sockets) {
		return fmt.Errorf("%w: %d", ErrInvalidSocket, socketID)
	}
	return c.sockets[socketID].Send(data)
}

// Envelopes subscribes to the envelopes that all the client's connections
// receive, after they are classified. Frames that fail classification are
// logged and dropped, so they never reach subscribers. Only envelopes that
// are received after subscribing are published, and a subscriber whose
// buffer is full delays the processing of subsequent envelopes. The channel
// is closed when the client is closed, or when the returned cancellation
// function is called.
func (c *Client) Envelopes(buffer int) (<-chan Envelope, func()) {
	return c.envs.Subscribe(buffer)
}

func (c *Client) stateChanged(id int, s websocket.State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()

	if f := c.cfg.Hooks.OnState; f != nil {
		f(id, s)
	}
}

func (c *Client) retrying(id, attempt int, d time.Duration, err error) {
	if f := c.cfg.Hooks.OnRetry; f != nil {
		f(id, attempt, d, err)
	}
}

// State returns the state of whichever connection changed last.
// Use [Client.OpenConnections] to check the client's health.
func (c *Client) State() websocket.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// OpenConnections returns the number of connections that are currently open.
func (c *Client) OpenConnections() int {
	n := 0
	for _, s := range c.sockets {
		if s.State() == websocket.StateOpen {
			n++
		}
	}
	return n
}

// Close closes all the client's connections, stops their reconnection
// attempts, and returns after all in-flight envelopes are processed.
// Handlers of in-flight envelopes see that their request is canceled.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.cancel()
		for _, s := range c.sockets {
			s.Close()
		}
		c.msgs.Close()
		c.envs.Close()
		c.wg.Wait()

		c.logger.Info().Msg("Socket Mode client closed")
	})
}
