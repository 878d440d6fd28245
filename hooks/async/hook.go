// Package asynchook moves Hooks calls off the cache's hot path onto a small
// worker pool. Events are dropped, never blocked on, when the queue is full.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{CodecFailureEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := snapcache.New[any](snapcache.Options[any]{
//	    Provider: provider,
//	    Hooks:    hooks, // or raw if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/snapcache"
)

type Hooks struct {
	inner   snapcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ snapcache.Hooks = (*Hooks)(nil)

func New(inner snapcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped counts events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) CodecFailure(c, k, op string, err error) {
	h.try(func() { h.inner.CodecFailure(c, k, op, err) })
}
func (h *Hooks) CorruptDropped(c, k string)      { h.try(func() { h.inner.CorruptDropped(c, k) }) }
func (h *Hooks) ProviderSetRejected(c, k string) { h.try(func() { h.inner.ProviderSetRejected(c, k) }) }
func (h *Hooks) ProviderError(c, op string, err error) {
	h.try(func() { h.inner.ProviderError(c, op, err) })
}
