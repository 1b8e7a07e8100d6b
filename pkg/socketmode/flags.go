package socketmode

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/socketmode/pkg/backoff"
)

// Flags defines CLI flags to configure a Socket Mode client. These flags can also
// be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "connections",
			Usage: "number of parallel Socket Mode connections (Slack allows up to 10)",
			Value: DefaultConnections,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SOCKET_MODE_CONNECTIONS"),
				toml.TOML("socket_mode.connections", configFilePath),
			),
		},
		&cli.DurationFlag{
			Name:  "backoff-initial",
			Usage: "delay before the first reconnection attempt",
			Value: backoff.DefaultInitial,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SOCKET_MODE_BACKOFF_INITIAL"),
				toml.TOML("socket_mode.backoff_initial", configFilePath),
			),
		},
		&cli.DurationFlag{
			Name:  "backoff-increment",
			Usage: "delay added after each consecutive failed reconnection attempt",
			Value: backoff.DefaultIncrement,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SOCKET_MODE_BACKOFF_INCREMENT"),
				toml.TOML("socket_mode.backoff_increment", configFilePath),
			),
		},
		&cli.DurationFlag{
			Name:  "backoff-max",
			Usage: "maximum delay between reconnection attempts",
			Value: backoff.DefaultMax,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SOCKET_MODE_BACKOFF_MAX"),
				toml.TOML("socket_mode.backoff_max", configFilePath),
			),
		},
	}
}

// BackoffConfig returns the reconnection delays that are configured by [Flags].
func BackoffConfig(cmd *cli.Command) backoff.Config {
	return backoff.Config{
		Initial:   cmd.Duration("backoff-initial"),
		Increment: cmd.Duration("backoff-increment"),
		Max:       cmd.Duration("backoff-max"),
	}
}
