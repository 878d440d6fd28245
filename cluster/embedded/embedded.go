// Package embedded runs in-process Redis servers (miniredis) on the node
// addresses of a config.Config, for development and tests without a real
// cluster. Pair it with an embedded-mode config: the client then talks to
// the first node only.
package embedded

import (
	"fmt"
	"sync"

	"github.com/alicebob/miniredis/v2"

	"github.com/unkn0wn-root/snapcache/config"
)

type Cluster struct {
	mu      sync.Mutex
	servers []*miniredis.Miniredis
}

// Start binds one server per configured node. On failure the servers
// already started are stopped.
func Start(cfg *config.Config) (*Cluster, error) {
	eps, err := cfg.Endpoints()
	if err != nil {
		return nil, err
	}
	c := &Cluster{}
	for _, ep := range eps {
		m := miniredis.NewMiniRedis()
		if cfg.Password != "" {
			m.RequireAuth(cfg.Password)
		}
		if err := m.StartAddr(ep.String()); err != nil {
			c.Stop()
			return nil, fmt.Errorf("embedded: start %s: %w", ep, err)
		}
		c.servers = append(c.servers, m)
	}
	return c, nil
}

// Addrs returns the bound addresses in config order.
func (c *Cluster) Addrs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.servers))
	for i, m := range c.servers {
		out[i] = m.Addr()
	}
	return out
}

// Server returns the i-th server, for tests that inspect or fast-forward it.
func (c *Cluster) Server(i int) *miniredis.Miniredis {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.servers[i]
}

// Stop shuts every server down. It is safe to call more than once.
func (c *Cluster) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.servers {
		m.Close()
	}
	c.servers = nil
}
