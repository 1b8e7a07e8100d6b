package dedup

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

const (
	DefaultEndpoint = "http://localhost:2379"

	StoreNone   = "none"
	StoreMemory = "memory"
	StoreEtcd   = "etcd"
)

// Flags defines CLI flags to configure the detection of redelivered envelopes. These
// flags can also be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "dedup-store",
			Usage: `store of recently seen envelope IDs: "none", "memory", or "etcd"`,
			Value: StoreMemory,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("DEDUP_STORE"),
				toml.TOML("dedup.store", configFilePath),
			),
		},
		&cli.DurationFlag{
			Name:  "dedup-ttl",
			Usage: "how long to remember envelope IDs",
			Value: DefaultTTL,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("DEDUP_TTL"),
				toml.TOML("dedup.ttl", configFilePath),
			),
		},
		&cli.StringSliceFlag{
			Name:  "etcd-endpoint-urls",
			Usage: "one or more etcd server endpoint URLs",
			Value: []string{DefaultEndpoint},
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ETCD_ENDPOINTS"),
				toml.TOML("etcd.endpoint_urls", configFilePath),
			),
		},
	}
}
