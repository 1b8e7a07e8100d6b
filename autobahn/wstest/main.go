// wstest runs the [WebSocket connection layer] of the Socket Mode client
// as an echo agent against the [Autobahn Testsuite] fuzzing server.
//
// [WebSocket connection layer]: https://pkg.go.dev/github.com/tzrikka/socketmode/pkg/websocket
// [Autobahn Testsuite]: https://github.com/crossbario/autobahn-testsuite
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tzrikka/socketmode/pkg/websocket"
)

const (
	base  = "ws://127.0.0.1:9001"
	agent = "socketmode"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05.000",
	}).With().Caller().Logger()
	ctx := log.Logger.WithContext(context.Background())

	msg, ok := <-dial(ctx, "/getCaseCount").IncomingMessages()
	if !ok {
		log.Fatal().Msg("connection closed before receiving the case count")
	}
	n, err := strconv.Atoi(string(msg.Data))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid test case count")
	}
	log.Info().Int("n", n).Msg("case count")

	// Excluded in the fuzzing server's configuration:
	// - 6.4.*: fail-fast on invalid UTF-8 frames
	// - 12.* and 13.*: compression
	for i := range n {
		echo(ctx, i+1)
	}

	log.Info().Msg("updating reports")
	<-dial(ctx, "/updateReports?agent="+agent).Done()
}

func dial(ctx context.Context, path string) *websocket.Conn {
	conn, err := websocket.Dial(ctx, base+path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to connect to the fuzzing server")
	}
	return conn
}

// echo sends back every data message of a single test case, until the server closes the connection.
func echo(ctx context.Context, i int) {
	l := log.With().Int("case", i).Logger()
	l.Info().Msg("starting test")

	conn := dial(ctx, fmt.Sprintf("/runCase?case=%d&agent=%s", i, agent))
	for msg := range conn.IncomingMessages() {
		l.Debug().Str("opcode", msg.Opcode.String()).Int("length", len(msg.Data)).Msg("received message")

		var err error
		switch msg.Opcode {
		case websocket.OpcodeText:
			err = <-conn.SendTextMessage(msg.Data)
		case websocket.OpcodeBinary:
			err = <-conn.SendBinaryMessage(msg.Data)
		}
		if err != nil {
			l.Err(err).Msg("echo error")
			conn.Close(websocket.StatusNormalClosure)
		}
	}

	s, reason := conn.CloseStatus()
	l.Debug().Str("status", s.String()).Str("reason", reason).Msg("connection closed")
}
