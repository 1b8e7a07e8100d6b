package relay

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

// Flags defines CLI flags to configure the NATS relay of Slack events. These flags can
// also be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "nats-url",
			Usage: "NATS server URL to relay Slack events to (optional)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("NATS_URL"),
				toml.TOML("nats.url", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "nats-subject-prefix",
			Usage: "prefix of NATS subjects for relayed Slack events",
			Value: DefaultSubjectPrefix,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("NATS_SUBJECT_PREFIX"),
				toml.TOML("nats.subject_prefix", configFilePath),
			),
		},
	}
}
