// Package socketmode implements a client for Slack's [Socket Mode]: it
// receives [envelopes] over one or more long-running WebSocket connections,
// classifies them, dispatches their payloads to application handlers, and
// acknowledges each one on the connection that it arrived on.
//
// [Socket Mode]: https://docs.slack.dev/apis/events-api/using-socket-mode
// [envelopes]: https://docs.slack.dev/apis/events-api/using-socket-mode#events
package socketmode
