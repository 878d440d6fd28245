// Package cluster builds the Redis client a snapcache process talks to from
// a config.Config: a cluster client over every configured node, or a plain
// client to the first node when the config is in embedded mode. Both
// go-redis and rueidis clients are supported.
package cluster

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/redis/rueidis"

	"github.com/unkn0wn-root/snapcache/config"
)

const (
	ConnectTimeout = 5 * time.Second
	CommandTimeout = 15 * time.Second
)

var ErrNoNodes = errors.New("cluster: no nodes configured")

// NewClient returns a *redis.ClusterClient, or a *redis.Client when
// cfg.Embedded is set. The client is not connected until first use.
func NewClient(cfg *config.Config) (redis.UniversalClient, error) {
	if cfg == nil {
		return nil, errors.New("cluster: nil config")
	}
	addrs, err := cfg.Addrs()
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, ErrNoNodes
	}
	if cfg.Embedded {
		return redis.NewClient(StandaloneOptions(cfg, addrs[0])), nil
	}
	return redis.NewClusterClient(ClusterOptions(cfg, addrs)), nil
}

func ClusterOptions(cfg *config.Config, addrs []string) *redis.ClusterOptions {
	return &redis.ClusterOptions{
		Addrs:        addrs,
		MaxRedirects: cfg.Redirects,
		Password:     cfg.Password,
		DialTimeout:  ConnectTimeout,
		ReadTimeout:  CommandTimeout,
		WriteTimeout: CommandTimeout,
	}
}

func StandaloneOptions(cfg *config.Config, addr string) *redis.Options {
	return &redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DialTimeout:  ConnectTimeout,
		ReadTimeout:  CommandTimeout,
		WriteTimeout: CommandTimeout,
	}
}

// Describe is a one-line summary of where a client built from cfg connects,
// for startup logs. The password is never included.
func Describe(cfg *config.Config) string {
	if cfg.Embedded && len(cfg.Nodes) > 0 {
		return fmt.Sprintf("standalone %s", cfg.Nodes[0])
	}
	return fmt.Sprintf("cluster %v (max redirects %d)", cfg.Nodes, cfg.Redirects)
}

// RueidisOptions maps cfg onto a rueidis client option. Embedded mode forces
// a single-node client on the first node.
func RueidisOptions(cfg *config.Config) (rueidis.ClientOption, error) {
	addrs, err := cfg.Addrs()
	if err != nil {
		return rueidis.ClientOption{}, err
	}
	if len(addrs) == 0 {
		return rueidis.ClientOption{}, ErrNoNodes
	}
	opt := rueidis.ClientOption{
		InitAddress:      addrs,
		Password:         cfg.Password,
		Dialer:           net.Dialer{Timeout: ConnectTimeout},
		ConnWriteTimeout: CommandTimeout,
		// Values are compressed blobs read once per Get; client-side
		// caching would only duplicate them in memory.
		DisableCache: true,
	}
	if cfg.Embedded {
		opt.InitAddress = addrs[:1]
		opt.ForceSingleClient = true
	}
	return opt, nil
}

// NewRueidisClient connects a rueidis client for cfg. Unlike NewClient it
// dials immediately.
func NewRueidisClient(cfg *config.Config) (rueidis.Client, error) {
	opt, err := RueidisOptions(cfg)
	if err != nil {
		return nil, err
	}
	return rueidis.NewClient(opt)
}
