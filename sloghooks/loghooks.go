// Package sloghooks reports snapcache Hooks events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/snapcache"
	"github.com/unkn0wn-root/snapcache/serial"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	CodecFailureEvery  uint64
	ProviderErrorEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	codecCtr    atomic.Uint64
	providerCtr atomic.Uint64
}

var _ snapcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CodecFailure(cache, storageKey, op string, err error) {
	if h.l == nil || !sample(h.opts.CodecFailureEvery, &h.codecCtr) {
		return
	}
	h.l.Warn("snapcache.codec_failure",
		"cache", cache,
		"key", h.redact(storageKey),
		"op", op,
		"kind", serial.KindOf(err).String(),
		"err", err)
}

func (h *Hooks) CorruptDropped(cache, storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Info("snapcache.corrupt_dropped",
		"cache", cache,
		"key", h.redact(storageKey))
}

func (h *Hooks) ProviderSetRejected(cache, storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("snapcache.provider_set_rejected",
		"cache", cache,
		"key", h.redact(storageKey))
}

func (h *Hooks) ProviderError(cache, op string, err error) {
	if h.l == nil || !sample(h.opts.ProviderErrorEvery, &h.providerCtr) {
		return
	}
	h.l.Error("snapcache.provider_error",
		"cache", cache,
		"op", op,
		"err", err)
}
