// Package websocket implements long-running WebSocket client connections:
// [Conn] is a single connection, and [Client] keeps reconnecting to the
// same server (with single-use URLs and backoff delays) until it's closed.
package websocket
