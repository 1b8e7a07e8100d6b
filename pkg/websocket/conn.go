package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	closeTimeout = 3 * time.Second
	writeTimeout = 10 * time.Second
)

// Opcode is the type of a WebSocket data message.
type Opcode int

const (
	OpcodeText   Opcode = websocket.TextMessage
	OpcodeBinary Opcode = websocket.BinaryMessage
)

func (o Opcode) String() string {
	switch o {
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Conn respresents the configuration and state of
// an open client connection to a WebSocket server.
type Conn struct {
	// Initialized before the actual handshake.
	logger    *zerolog.Logger
	dialer    *websocket.Dialer
	headers   http.Header
	readLimit int64

	// Initialized after the actual handshake.
	ws     *websocket.Conn
	readC  chan DataMessage
	writeC chan internalMessage
	done   chan struct{}

	closeMu     sync.Mutex
	closeSent   bool
	closeStatus StatusCode
	closeReason string
	finishOnce  sync.Once
}

type DataMessage struct {
	Opcode Opcode
	Data   []byte
}

// internalMessage is used to serialize concurrent writes to the underlying
// connection, which supports only one concurrent writer.
type internalMessage struct {
	opcode Opcode
	data   []byte
	err    chan<- error
}

// IncomingMessages returns the connection's channel that publishes data
// messages as they are received from the server. The channel is closed
// when the connection is closed, for any reason.
func (c *Conn) IncomingMessages() <-chan DataMessage {
	return c.readC
}

// Done returns a channel that is closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// CloseStatus returns the reason that the connection was closed.
// It is meaningful only after the channel returned by [Conn.Done] is closed.
func (c *Conn) CloseStatus() (StatusCode, string) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closeStatus, c.closeReason
}

func (c *Conn) start() {
	c.readC = make(chan DataMessage)
	c.writeC = make(chan internalMessage)
	c.done = make(chan struct{})

	if c.readLimit > 0 {
		c.ws.SetReadLimit(c.readLimit)
	}

	go c.readMessages()
	go c.writeMessages()
}

// readMessages runs as a [Conn] goroutine, to read data messages continuously
// and publish them to the subscriber of this connection. Control frames
// (ping and close) are answered by the underlying connection.
func (c *Conn) readMessages() {
	defer close(c.readC)
	defer c.finish()

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			s, reason := closeStatus(err)
			c.setCloseStatus(s, reason)
			if s == StatusClosedAbnormally {
				c.logger.Warn().Err(err).Msg("WebSocket connection closed abnormally")
			} else {
				c.logger.Debug().Str("close_status", s.String()).Str("close_reason", reason).
					Msg("received WebSocket close control frame")
			}
			return
		}

		c.logger.Trace().Str("opcode", Opcode(mt).String()).Int("length", len(data)).
			Msg("received WebSocket data message")

		select {
		case c.readC <- DataMessage{Opcode: Opcode(mt), Data: data}:
		case <-c.done:
			return
		}
	}
}

// writeMessages runs as a [Conn] goroutine, to serialize concurrent
// calls to [Conn.SendTextMessage] and [Conn.SendBinaryMessage].
func (c *Conn) writeMessages() {
	for {
		select {
		case msg := <-c.writeC:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			msg.err <- c.ws.WriteMessage(int(msg.opcode), msg.data)
			// The message's error channel can be used at most once.
			close(msg.err)
		case <-c.done:
			return
		}
	}
}

// finish releases the connection's resources, exactly once.
func (c *Conn) finish() {
	c.finishOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *Conn) setCloseStatus(s StatusCode, reason string) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	// A status that we sent takes precedence over the server's echo of it.
	if c.closeStatus == 0 {
		c.closeStatus = s
		c.closeReason = reason
	}
}
