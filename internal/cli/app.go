package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/snapcache"
	"github.com/unkn0wn-root/snapcache/cluster"
	"github.com/unkn0wn-root/snapcache/codec"
	"github.com/unkn0wn-root/snapcache/compress"
	"github.com/unkn0wn-root/snapcache/config"
	zaplog "github.com/unkn0wn-root/snapcache/log/zap"
	pr "github.com/unkn0wn-root/snapcache/provider"
	bcprov "github.com/unkn0wn-root/snapcache/provider/bigcache"
	redisprov "github.com/unkn0wn-root/snapcache/provider/redis"
	rtprov "github.com/unkn0wn-root/snapcache/provider/ristretto"
	rueidisprov "github.com/unkn0wn-root/snapcache/provider/rueidis"
)

const (
	driverGoRedis = "go-redis"
	driverRueidis = "rueidis"

	localRistretto = "ristretto"
	localBigcache  = "bigcache"
)

// app is what a command runs against, built once per invocation.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store pr.Provider
	codec *codec.Compressed
	table *snapcache.Table[any]
}

func (a *app) Close(ctx context.Context) {
	if a.table != nil {
		if err := a.table.Close(ctx); err != nil {
			a.log.Warn("close store", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.DisableStacktrace = true
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return zc.Build()
}

// loadConfig reads the config file and applies flag overrides. A local
// store needs no nodes, so --local without a config file starts from the
// defaults.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, error) {
	path := v.GetString("config")
	var cfg *config.Config
	if v.GetBool("local") && path == "" {
		cfg = config.Default()
		cfg.Nodes = []string{"localhost:6379"}
	} else {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("embedded") {
		cfg.Embedded = v.GetBool("embedded")
	}
	if cmd.Flags().Changed("compression") {
		cfg.Compression = v.GetString("compression")
	}
	if cmd.Flags().Changed("serializer") {
		cfg.Serializer = v.GetString("serializer")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newCodec(cfg *config.Config) (*codec.Compressed, error) {
	inner, err := codec.ByName(cfg.Serializer)
	if err != nil {
		return nil, err
	}
	comp, err := compress.ByName(cfg.Compression)
	if err != nil {
		return nil, err
	}
	return codec.NewCompressed(codec.WithInner(inner), codec.WithCompressor(comp)), nil
}

func newStore(ctx context.Context, v *viper.Viper, cfg *config.Config) (pr.Provider, error) {
	if v.GetBool("local") {
		switch store := v.GetString("local-store"); store {
		case localRistretto:
			rc := rtprov.DefaultConfig(64 << 20)
			rc.SyncWrites = true
			return rtprov.New(rc)
		case localBigcache:
			return bcprov.New(ctx, bcprov.Config{
				LifeWindow:         cfg.DefaultTTL(),
				CleanWindow:        time.Minute,
				Shards:             64,
				MaxEntriesInWindow: 10_000,
				MaxEntrySize:       1024,
				HardMaxCacheSizeMB: 64,
			})
		default:
			return nil, fmt.Errorf("unknown local store %q", store)
		}
	}

	switch driver := v.GetString("driver"); driver {
	case driverGoRedis:
		rdb, err := cluster.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return redisprov.New(redisprov.Config{Client: rdb, CloseClient: true})
	case driverRueidis:
		client, err := cluster.NewRueidisClient(cfg)
		if err != nil {
			return nil, err
		}
		return rueidisprov.New(rueidisprov.Config{Client: client, CloseClient: true})
	default:
		return nil, fmt.Errorf("unknown driver %q", driver)
	}
}

// setup builds the app for commands that talk to a store.
func setup(cmd *cobra.Command) (*app, error) {
	v, err := newViper(cmd)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(v.GetBool("verbose"))
	if err != nil {
		return nil, err
	}
	a := &app{log: log}

	if a.cfg, err = loadConfig(cmd, v); err != nil {
		return nil, err
	}
	if a.codec, err = newCodec(a.cfg); err != nil {
		return nil, err
	}
	if a.store, err = newStore(cmd.Context(), v, a.cfg); err != nil {
		return nil, err
	}
	if v.GetBool("local") {
		log.Debug("using local store", zap.String("store", v.GetString("local-store")))
	} else {
		log.Debug("connecting", zap.String("target", cluster.Describe(a.cfg)), zap.String("driver", v.GetString("driver")))
	}

	a.table, err = snapcache.NewTable[any](a.cfg, snapcache.Options[any]{
		Provider: a.store,
		Codec:    codec.NewTyped[any](a.codec),
		Logger:   zaplog.New(log),
	})
	if err != nil {
		_ = a.store.Close(cmd.Context())
		return nil, err
	}
	return a, nil
}
