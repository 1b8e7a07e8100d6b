// Package slack bootstraps [Socket Mode] connections: it generates the
// temporary WebSocket URLs that Slack apps connect to, using an app-level
// token, and defines the CLI flags that configure this.
//
// [Socket Mode]: https://docs.slack.dev/apis/events-api/using-socket-mode
package slack
