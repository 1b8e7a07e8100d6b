package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"

	"github.com/tzrikka/socketmode/internal/multicast"
	"github.com/tzrikka/socketmode/pkg/backoff"
)

var (
	ErrNotConnected   = errors.New("WebSocket client is not connected")
	ErrAlreadyStarted = errors.New("WebSocket client was already started")
)

// State is the connection state of a [Client].
type State int

const (
	StateNone State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "none"
	}
}

// URLFunc returns a WebSocket URL. It is called before every connection
// attempt, so it may return single-use URLs.
type URLFunc func(ctx context.Context) (string, error)

// Message is a data message that a [Client] received,
// tagged with the client's ID and a unique message ID.
type Message struct {
	SocketID int
	ID       string
	Opcode   Opcode
	Data     []byte
}

// Client is a long-running wrapper of connections to the same WebSocket
// server with the same credentials. It usually manages a single [Conn],
// except when it gets disconnected, or is about to be (see [Client.Refresh]),
// in which case the client automatically opens another [Conn] and switches
// to it, to prevent/minimize downtime during reconnections.
//
// Reconnection attempts are spaced out by a [backoff] delay, and
// continue indefinitely until [Client.Close] is called.
type Client struct {
	id       int
	logger   zerolog.Logger
	url      URLFunc
	dialOpts []DialOpt
	backoff  backoff.Config
	timer    backoff.Timer
	onState  func(id int, s State)
	onRetry  func(id, attempt int, delay time.Duration, err error)

	mu      sync.RWMutex
	conn    *Conn
	state   State
	started bool
	closed  bool

	msgs    *multicast.Hub[Message]
	refresh chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// ClientOpt customizes [NewClient].
type ClientOpt func(*Client)

// WithSocketID sets the ID that tags all the messages received by the client.
func WithSocketID(id int) ClientOpt {
	return func(c *Client) {
		c.id = id
	}
}

// WithBackoff sets the delays between reconnection attempts.
func WithBackoff(cfg backoff.Config) ClientOpt {
	return func(c *Client) {
		c.backoff = cfg
	}
}

// WithDialOpts sets options for every connection that the client opens.
func WithDialOpts(opts ...DialOpt) ClientOpt {
	return func(c *Client) {
		c.dialOpts = append(c.dialOpts, opts...)
	}
}

// WithStateListener registers a callback for every state change.
func WithStateListener(f func(id int, s State)) ClientOpt {
	return func(c *Client) {
		c.onState = f
	}
}

// WithRetryListener registers a callback for every failed reconnection attempt.
func WithRetryListener(f func(id, attempt int, delay time.Duration, err error)) ClientOpt {
	return func(c *Client) {
		c.onRetry = f
	}
}

// withTimer is used in unit tests to avoid real waiting.
func withTimer(t backoff.Timer) ClientOpt {
	return func(c *Client) {
		c.timer = t
	}
}

func NewClient(url URLFunc, opts ...ClientOpt) *Client {
	c := &Client{
		logger:  zerolog.Nop(),
		url:     url,
		backoff: backoff.DefaultConfig(),
		msgs:    multicast.New[Message](),
		refresh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// ID returns the client's socket ID.
func (c *Client) ID() int {
	return c.id
}

// Connect opens the client's first connection, and returns when it's open.
// It fails if ctx is canceled before that (with the context's error, without
// retrying), or if the client can't get a URL or open a connection.
//
// After a successful call, the client reconnects automatically whenever
// the connection is closed, until [Client.Close] is called. The logger
// in ctx (see [zerolog.Ctx]) is used for the entire lifetime of the client.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.logger = zerolog.Ctx(ctx).With().Int("socket_id", c.id).Logger()
	c.mu.Unlock()

	c.setState(StateConnecting)
	conn, err := c.dial(c.logger.WithContext(ctx))
	if err != nil {
		c.setState(StateClosed)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close(StatusGoingAway)
		return ErrClosed
	}
	c.wg.Add(1)
	c.mu.Unlock()

	c.activate(conn)
	go c.maintain(conn)

	return nil
}

func (c *Client) dial(ctx context.Context) (*Conn, error) {
	url, err := c.url(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to get WebSocket URL: %w", err)
	}

	return Dial(ctx, url, c.dialOpts...)
}

// activate makes the given connection the one that [Client.Send] uses.
func (c *Client) activate(conn *Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setState(StateOpen)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if changed {
		c.logger.Debug().Str("state", s.String()).Msg("WebSocket client state changed")
		if c.onState != nil {
			c.onState(c.id, s)
		}
	}
}

// State returns the client's current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// maintain runs as a [Client] goroutine, to relay messages from the active
// connection, and to replace it whenever it's closed, with backoff.
func (c *Client) maintain(first *Conn) {
	defer c.wg.Done()

	ctx := c.logger.WithContext(c.ctx)
	next := first

	op := func(ctx context.Context, emit func(*Conn)) error {
		conn := next
		next = nil
		if conn == nil {
			c.setState(StateConnecting)
			var err error
			if conn, err = c.dial(ctx); err != nil {
				return err
			}
			c.activate(conn)
			c.logger.Info().Msg("WebSocket client reconnected")
		}

		emit(conn)
		return c.relayMessages(ctx, conn)
	}

	opts := []backoff.Option{backoff.WithOnRetry(c.retrying)}
	if c.timer != nil {
		opts = append(opts, backoff.WithTimer(c.timer))
	}

	// Returns only when the client is closed.
	_ = backoff.Run(ctx, c.backoff, op, nil, opts...)

	// In case the client was closed before the first relay started.
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn != nil {
		conn.Close(StatusNormalClosure)
	}
}

func (c *Client) retrying(attempt int, d time.Duration, err error) {
	c.setState(StateClosed)
	c.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", d).
		Msg("WebSocket connection lost, reconnecting")
	if c.onRetry != nil {
		c.onRetry(c.id, attempt, d, err)
	}
}

// relayMessages routes data messages from the given connection to the
// client's subscribers, until the connection is closed (which is reported
// as an error, to trigger a reconnection) or the client is closed.
func (c *Client) relayMessages(ctx context.Context, conn *Conn) error {
	for {
		select {
		case msg, ok := <-conn.IncomingMessages():
			if !ok {
				s, reason := conn.CloseStatus()
				return fmt.Errorf("connection closed: %s %s", s, reason)
			}
			c.publish(msg)

		case <-c.refresh:
			conn = c.replaceConn(ctx, conn)

		case <-ctx.Done():
			conn.Close(StatusNormalClosure)
			return ctx.Err()
		}
	}
}

// replaceConn opens a new connection before closing the given one. If that
// fails, it keeps the given connection, and the normal reconnection flow
// will take over when the server closes it.
func (c *Client) replaceConn(ctx context.Context, old *Conn) *Conn {
	conn, err := c.dial(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to open a replacement WebSocket connection")
		return old
	}

	c.activate(conn)
	c.logger.Info().Msg("switched to a new WebSocket connection")

	c.wg.Add(1)
	go c.drain(old)

	return conn
}

// drain runs as a [Client] goroutine, to close a replaced connection,
// while still relaying any messages that it receives before it's closed.
func (c *Client) drain(conn *Conn) {
	defer c.wg.Done()

	go conn.Close(StatusGoingAway)
	for msg := range conn.IncomingMessages() {
		c.publish(msg)
	}
}

func (c *Client) publish(msg DataMessage) {
	c.msgs.Publish(Message{
		SocketID: c.id,
		ID:       shortuuid.New(),
		Opcode:   msg.Opcode,
		Data:     msg.Data,
	})
}

// Messages subscribes to the data messages that the client receives, from
// all of its connections over time. Only messages that are received after
// subscribing are published. The channel is closed when the client is
// closed, or when the returned cancellation function is called.
func (c *Client) Messages(buffer int) (<-chan Message, func()) {
	return c.msgs.Subscribe(buffer)
}

// Send sends a text message over the client's active connection.
// It returns [ErrNotConnected] if the client is between connections,
// and [ErrClosed] if the client is closed.
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	conn, state, closed := c.conn, c.state, c.closed
	c.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if conn == nil || state != StateOpen {
		return ErrNotConnected
	}

	return <-conn.SendTextMessage(data)
}

// Refresh asks the client to replace its active connection with a new one.
// This is useful when the server warns that it's about to disconnect.
func (c *Client) Refresh() {
	select {
	case c.refresh <- struct{}{}:
	default: // Already pending.
	}
}

// Close closes the client's connections, stops any pending reconnection
// attempts, and closes all the subscription channels. It returns
// after all of the client's goroutines are done.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.cancel()
		c.msgs.Close()
		c.wg.Wait()

		c.setState(StateClosed)
	})
}
