package snapcache

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/unkn0wn-root/snapcache/config"
	pr "github.com/unkn0wn-root/snapcache/provider"
)

// Table hands out one Cache per cache name, all sharing base's provider,
// codec, logger and hooks. Each cache takes its TTL from the config: the
// per-name override when there is one, the default TTL otherwise; a TTL of
// 0 in the config means entries never expire.
type Table[V any] struct {
	cfg  *config.Config
	base Options[V]
	prov pr.Provider

	mu     sync.Mutex
	caches map[string]Cache[V]
	closed bool
}

var errTableClosed = errors.New("snapcache: table is closed")

func NewTable[V any](cfg *config.Config, base Options[V]) (*Table[V], error) {
	if cfg == nil {
		return nil, errors.New("snapcache: config is required")
	}
	if base.Provider == nil {
		return nil, errors.New("snapcache: provider is required")
	}
	t := &Table[V]{
		cfg:    cfg,
		base:   base,
		prov:   base.Provider,
		caches: make(map[string]Cache[V]),
	}
	// Caches must not close the provider they share.
	t.base.Provider = sharedProvider{base.Provider}
	return t, nil
}

// Cache returns the cache for name, building it on first use. Names are
// case-insensitive.
func (t *Table[V]) Cache(name string) (Cache[V], error) {
	name = strings.ToLower(name)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, errTableClosed
	}
	if c, ok := t.caches[name]; ok {
		return c, nil
	}
	opts := t.base
	opts.Name = name
	opts.TTL = t.ttlFor(name)
	c, err := New[V](opts)
	if err != nil {
		return nil, err
	}
	t.caches[name] = c
	return c, nil
}

func (t *Table[V]) ttlFor(name string) time.Duration {
	if ttl := t.cfg.TTLFor(name); ttl > 0 {
		return ttl
	}
	return -1
}

// Names lists the configured cache names and any other names handed out so
// far, sorted.
func (t *Table[V]) Names() []string {
	seen := make(map[string]struct{})
	for _, s := range t.cfg.Specs() {
		seen[s.Name] = struct{}{}
	}
	t.mu.Lock()
	for name := range t.caches {
		seen[name] = struct{}{}
	}
	t.mu.Unlock()

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close closes the shared provider once. Caches obtained from the table
// must not be used afterwards.
func (t *Table[V]) Close(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.caches = nil
	return t.prov.Close(ctx)
}

type sharedProvider struct {
	pr.Provider
}

func (sharedProvider) Close(context.Context) error { return nil }
