// Package cli implements the snapcache command-line tool: inspect and
// modify cache entries in a Redis cluster (or a local store) through the
// same compressed serialization pipeline applications use.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/snapcache"
)

// NewRootCmd returns a fresh command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "snapcache",
		Short: "inspect a compressed Redis cluster cache",
		Long: fmt.Sprintf(`snapcache (v%s)

Reads and writes cache entries through the compressed serialization
pipeline: values are serialized, compressed and stored in a Redis cluster.`, snapcache.Version()),
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", WrapString("config file (yaml, json or toml); settings can also come from SNAPCACHE_* environment variables"))
	flags.Bool("local", false, WrapString("use an in-process store instead of Redis (only lives as long as the command)"))
	flags.String("local-store", localRistretto, WrapString("in-process store for --local (ristretto, bigcache)"))
	flags.Bool("embedded", false, WrapString("connect to the first configured node only, without cluster discovery"))
	flags.String("driver", driverGoRedis, WrapString("redis client (go-redis, rueidis)"))
	flags.String("compression", "", WrapString("override the configured compression (snappy, s2, lz4, zstd, brotli, gzip, none)"))
	flags.String("serializer", "", WrapString("override the configured serializer (serial, fallback, json, msgpack, cbor)"))
	flags.BoolP("verbose", "v", false, WrapString("debug logging"))

	root.AddCommand(
		newGetCmd(),
		newSetCmd(),
		newDelCmd(),
		newPingCmd(),
		newCachesCmd(),
		newRoundtripCmd(),
		newEmbeddedCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of snapcache",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "snapcache v%s\n", snapcache.Version())
		},
	}
}
