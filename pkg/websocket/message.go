package websocket

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is reported when sending a message on a closed connection.
var ErrClosed = errors.New("WebSocket connection is closed")

// SendTextMessage sends a [UTF-8 text] message to the server.
//
// This is done asynchronously, to manage [isolation or safe multiplexing]
// of multiple concurrent calls. Despite that, this function enables the
// caller to block and/or handle errors, with the returned channel.
//
// [UTF-8 text]: https://datatracker.ietf.org/doc/html/rfc6455#section-5.6
// [isolation or safe multiplexing]: https://datatracker.ietf.org/doc/html/rfc6455#section-5.4
func (c *Conn) SendTextMessage(data []byte) <-chan error {
	return c.send(OpcodeText, data)
}

// SendBinaryMessage sends a [binary] message to the server,
// in the same way as [Conn.SendTextMessage].
//
// [binary]: https://datatracker.ietf.org/doc/html/rfc6455#section-5.6
func (c *Conn) SendBinaryMessage(data []byte) <-chan error {
	return c.send(OpcodeBinary, data)
}

func (c *Conn) send(opcode Opcode, data []byte) <-chan error {
	err := make(chan error, 1)
	select {
	case c.writeC <- internalMessage{opcode: opcode, data: data, err: err}:
	case <-c.done:
		err <- ErrClosed
		close(err)
	}
	return err
}

// Close initiates the WebSocket closing handshake, and blocks until the
// server responds, or until a timeout expires, whichever comes first.
// Calling it more than once, or after the server closed the connection, is safe.
func (c *Conn) Close(s StatusCode) {
	c.sendCloseControlFrame(s, "")

	select {
	case <-c.done:
	case <-time.After(closeTimeout):
		c.logger.Warn().Str("close_status", s.String()).
			Msg("timeout while waiting for WebSocket close control frame")
		c.finish()
	}
}

func (c *Conn) sendCloseControlFrame(s StatusCode, reason string) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	// "If an endpoint receives a Close frame and did not previously send
	// a Close frame, the endpoint MUST send a Close frame in response."
	// The underlying connection already does that, so this is our own.
	if c.closeSent || c.closeStatus != 0 {
		return // No op.
	}

	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}

	payload := websocket.FormatCloseMessage(int(s), reason)
	if err := c.ws.WriteControl(websocket.CloseMessage, payload, time.Now().Add(writeTimeout)); err != nil {
		c.logger.Err(err).Str("close_status", s.String()).Str("close_reason", reason).
			Msg("failed to send WebSocket close control frame")
	} else {
		c.logger.Trace().Str("close_status", s.String()).Str("close_reason", reason).
			Msg("sent WebSocket close control frame")
	}

	c.closeSent = true
	c.closeStatus = s
	c.closeReason = reason
}

// IsClosed reports whether the connection is completely closed.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// IsClosing reports whether we sent a close control frame,
// but the connection is not completely closed yet.
func (c *Conn) IsClosing() bool {
	c.closeMu.Lock()
	sent := c.closeSent
	c.closeMu.Unlock()

	return sent && !c.IsClosed()
}
