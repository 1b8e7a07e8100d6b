package slack

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

// Flags defines CLI flags to configure Slack Socket Mode connections. These flags can
// also be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "slack-app-token",
			Usage: "Slack app-level token with the \"connections:write\" scope (ignored if a Thrippy link ID is set)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_APP_TOKEN"),
				toml.TOML("slack.app_token", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "slack-api-base-url",
			Usage: "Slack API base URL",
			Value: DefaultAPIBaseURL,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_API_BASE_URL"),
				toml.TOML("slack.api_base_url", configFilePath),
			),
		},
		&cli.BoolFlag{
			Name:  "slack-debug-reconnects",
			Usage: "ask Slack to disconnect frequently, to exercise reconnections",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_DEBUG_RECONNECTS"),
				toml.TOML("slack.debug_reconnects", configFilePath),
			),
		},
	}
}
