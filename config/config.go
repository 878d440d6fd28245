// Package config loads the cluster and cache settings a snapcache process
// runs with: the Redis node list, redirect limit, default entry TTL and the
// per-cache TTL overrides.
//
// Settings come from a yaml/json/toml file, then the environment
// (SNAPCACHE_NODES, SNAPCACHE_TTL, ...), with .env and .env.local loaded
// into the environment first.
//
//	nodes: ["10.0.0.1:7000", "10.0.0.2:7000", "10.0.0.3:7000"]
//	redirects: 3
//	ttl: 600          # seconds, 0 = no expiry
//	caches:
//	  sessions: {ttl: 1800}
//	  prices:   {ttl: 30}
package config

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/snapcache/codec"
	"github.com/unkn0wn-root/snapcache/compress"
)

const (
	DefaultRedirects   = 3
	DefaultTTLSeconds  = 600
	DefaultCompression = compress.NameSnappy
	DefaultSerializer  = codec.NameSerial
)

type Config struct {
	Nodes       []string             `mapstructure:"nodes"`
	Redirects   int                  `mapstructure:"redirects"`
	TTL         int                  `mapstructure:"ttl"` // seconds
	Password    string               `mapstructure:"password"`
	Embedded    bool                 `mapstructure:"embedded"`
	Compression string               `mapstructure:"compression"`
	Serializer  string               `mapstructure:"serializer"`
	Caches      map[string]CacheSpec `mapstructure:"caches"`
}

// CacheSpec overrides settings for one cache name.
type CacheSpec struct {
	TTL int `mapstructure:"ttl"` // seconds, 0 = no expiry
}

// CacheEntrySpec is the resolved TTL of one named cache. TTL 0 means the
// entries do not expire.
type CacheEntrySpec struct {
	Name string
	TTL  time.Duration
}

func Default() *Config {
	return &Config{
		Redirects:   DefaultRedirects,
		TTL:         DefaultTTLSeconds,
		Compression: DefaultCompression,
		Serializer:  DefaultSerializer,
	}
}

// Endpoint is one cluster node.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string { return net.JoinHostPort(e.Host, strconv.Itoa(e.Port)) }

// ParseEndpoint parses "host:port".
func ParseEndpoint(s string) (Endpoint, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return Endpoint{}, fmt.Errorf("config: node %q: %w", s, err)
	}
	if host == "" {
		return Endpoint{}, fmt.Errorf("config: node %q: empty host", s)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return Endpoint{}, fmt.Errorf("config: node %q: invalid port %q", s, port)
	}
	return Endpoint{Host: host, Port: p}, nil
}

func (c *Config) Endpoints() ([]Endpoint, error) {
	out := make([]Endpoint, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		e, err := ParseEndpoint(n)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Addrs returns the nodes as "host:port" strings for go-redis.
func (c *Config) Addrs() ([]string, error) {
	eps, err := c.Endpoints()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(eps))
	for i, e := range eps {
		out[i] = e.String()
	}
	return out, nil
}

func (c *Config) DefaultTTL() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// TTLFor returns the TTL for a cache: its override when one is configured,
// the default TTL otherwise. Names are matched case-insensitively.
func (c *Config) TTLFor(name string) time.Duration {
	if s, ok := c.Caches[strings.ToLower(name)]; ok {
		return time.Duration(s.TTL) * time.Second
	}
	for k, s := range c.Caches {
		if strings.EqualFold(k, name) {
			return time.Duration(s.TTL) * time.Second
		}
	}
	return c.DefaultTTL()
}

// Specs lists the configured caches sorted by name.
func (c *Config) Specs() []CacheEntrySpec {
	out := make([]CacheEntrySpec, 0, len(c.Caches))
	for name, s := range c.Caches {
		out = append(out, CacheEntrySpec{Name: strings.ToLower(name), TTL: time.Duration(s.TTL) * time.Second})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.Nodes) == 0 {
		errs = append(errs, errors.New("config: at least one node is required"))
	}
	if _, err := c.Endpoints(); err != nil {
		errs = append(errs, err)
	}
	if c.Redirects < 0 {
		errs = append(errs, fmt.Errorf("config: redirects must be >= 0, got %d", c.Redirects))
	}
	if c.TTL < 0 {
		errs = append(errs, fmt.Errorf("config: ttl must be >= 0, got %d", c.TTL))
	}
	folded := make(map[string]string, len(c.Caches))
	for name, s := range c.Caches {
		if s.TTL < 0 {
			errs = append(errs, fmt.Errorf("config: cache %q: ttl must be >= 0, got %d", name, s.TTL))
		}
		lower := strings.ToLower(name)
		if prev, ok := folded[lower]; ok {
			errs = append(errs, fmt.Errorf("config: caches %q and %q differ only in case", prev, name))
		}
		folded[lower] = name
	}
	if _, err := compress.ByName(c.Compression); err != nil {
		errs = append(errs, err)
	}
	if _, err := codec.ByName(c.Serializer); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
