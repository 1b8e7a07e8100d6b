// Package app runs a Socket Mode client as a long-running service,
// based on CLI flags, environment variables, and a configuration file.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/socketmode/pkg/dedup"
	"github.com/tzrikka/socketmode/pkg/dispatch"
	"github.com/tzrikka/socketmode/pkg/http"
	"github.com/tzrikka/socketmode/pkg/metrics"
	"github.com/tzrikka/socketmode/pkg/relay"
	"github.com/tzrikka/socketmode/pkg/request"
	"github.com/tzrikka/socketmode/pkg/slack"
	"github.com/tzrikka/socketmode/pkg/socketmode"
	"github.com/tzrikka/socketmode/pkg/thrippy"
	"github.com/tzrikka/socketmode/pkg/tracing"
)

// Start initializes logging, connects to Slack over Socket Mode,
// and runs until the process receives an interrupt or termination signal.
func Start(ctx context.Context, cmd *cli.Command) error {
	initLog(cmd.Bool("dev"))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	token, err := appToken(cmd)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	registry := socketmode.NewRegistry()
	registry.OnEvent("", dispatch.Singleton[dispatch.Handler[*socketmode.EventCallback]](
		dispatch.HandlerFunc[*socketmode.EventCallback](logEvent)))

	closeRelay, err := wireRelay(ctx, cmd, registry)
	if err != nil {
		return err
	}
	defer closeRelay()

	d, closeDedup, err := newDedup(cmd)
	if err != nil {
		return err
	}
	defer closeDedup()

	urls := &slack.URLGenerator{
		Token:           token,
		BaseURL:         cmd.String("slack-api-base-url"),
		DebugReconnects: cmd.Bool("slack-debug-reconnects"),
	}

	c := socketmode.NewClient(socketmode.Config{
		URL:         urls.Generate,
		Connections: cmd.Int("connections"),
		Backoff:     socketmode.BackoffConfig(cmd),
		Handlers:    registry.Handlers(),
		Listeners:   []request.Listener{m.Listener(), tracing.Listener(nil)},
		Dedup:       d,
		Hooks:       m.Hooks(),
	})
	defer c.Close()

	if err := c.Connect(ctx); err != nil {
		log.Err(err).Msg("failed to connect to Slack")
		return err
	}

	if port := cmd.Int("http-port"); port > 0 {
		healthy := func() bool { return c.OpenConnections() > 0 }
		go func() {
			if err := http.NewServer(port, healthy, reg).Run(ctx); err != nil {
				stop()
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	return nil
}

// initLog initializes the global logger, based
// on whether it's running in development mode or not.
func initLog(devMode bool) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if !devMode {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
		return
	}

	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05.000",
	}).With().Caller().Logger()

	log.Warn().Msg("********** DEV MODE - UNSAFE IN PRODUCTION! **********")
}

// appToken returns the source of the Slack app-level token:
// a Thrippy link if one is configured, or a static token.
func appToken(cmd *cli.Command) (slack.TokenFunc, error) {
	if id := cmd.String("thrippy-link-id"); id != "" {
		creds, err := thrippy.SecureCreds(cmd)
		if err != nil {
			return nil, err
		}
		return thrippy.AppToken(cmd.String("thrippy-server-addr"), creds, id), nil
	}

	if t := cmd.String("slack-app-token"); t != "" {
		return slack.StaticToken(t), nil
	}

	return nil, errors.New("missing Slack app token or Thrippy link ID")
}

func newDedup(cmd *cli.Command) (socketmode.Deduplicator, func(), error) {
	ttl := cmd.Duration("dedup-ttl")

	switch s := cmd.String("dedup-store"); s {
	case dedup.StoreNone, "":
		return nil, func() {}, nil
	case dedup.StoreMemory:
		return dedup.NewMemory(ttl), func() {}, nil
	case dedup.StoreEtcd:
		c, err := dedup.NewEtcdClient(cmd.StringSlice("etcd-endpoint-urls"))
		if err != nil {
			return nil, nil, err
		}
		return dedup.NewEtcd(c, dedup.DefaultKeyPrefix, ttl), func() { _ = c.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("invalid dedup store: %q", s)
	}
}

// wireRelay registers a NATS relay for all events, if a NATS URL is configured.
func wireRelay(ctx context.Context, cmd *cli.Command, r *socketmode.Registry) (func(), error) {
	url := cmd.String("nats-url")
	if url == "" {
		return func() {}, nil
	}

	nc, err := relay.Connect(ctx, url, cmd.Name)
	if err != nil {
		return nil, err
	}

	p := relay.NewPublisher(nc, cmd.String("nats-subject-prefix"))
	r.OnEvent("", dispatch.Singleton[dispatch.Handler[*socketmode.EventCallback]](p))

	return func() {
		_ = nc.Drain()
	}, nil
}

func logEvent(rc *request.Context, e *socketmode.EventCallback) error {
	rc.Logger().Info().Str("event_type", e.EventType).Str("event_id", e.EventID).
		Str("team_id", e.TeamID).Msg("received Slack event")
	return nil
}
