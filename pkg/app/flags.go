package app

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/socketmode/pkg/dedup"
	"github.com/tzrikka/socketmode/pkg/http"
	"github.com/tzrikka/socketmode/pkg/relay"
	"github.com/tzrikka/socketmode/pkg/slack"
	"github.com/tzrikka/socketmode/pkg/socketmode"
	"github.com/tzrikka/socketmode/pkg/thrippy"
)

// Flags returns the CLI flags of all the application's components.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "dev",
			Usage: "simple setup, but unsafe for production",
		},
	}
	flags = append(flags, slack.Flags(configFilePath)...)
	flags = append(flags, socketmode.Flags(configFilePath)...)
	flags = append(flags, thrippy.Flags(configFilePath)...)
	flags = append(flags, dedup.Flags(configFilePath)...)
	flags = append(flags, relay.Flags(configFilePath)...)
	flags = append(flags, http.Flags(configFilePath)...)
	return flags
}
