// Package rueidis stores cache values in Redis through a rueidis client.
// It is the alternative to package redis for deployments that already run
// rueidis; the stored bytes are identical.
package rueidis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/rueidis"

	pr "github.com/unkn0wn-root/snapcache/provider"
)

var ErrNilClient = errors.New("rueidis provider: nil client")

type Rueidis struct {
	client      rueidis.Client
	closeClient bool
}

var (
	_ pr.Provider = (*Rueidis)(nil)
	_ pr.Pinger   = (*Rueidis)(nil)
)

type Config struct {
	Client      rueidis.Client
	CloseClient bool // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Rueidis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Rueidis{client: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (p *Rueidis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.client.Do(ctx, p.client.B().Get().Key(key).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Rueidis) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	cmd := p.client.B().Set().Key(key).Value(rueidis.BinaryString(value))
	var err error
	if ms := ttl.Milliseconds(); ms > 0 {
		err = p.client.Do(ctx, cmd.PxMilliseconds(ms).Build()).Error()
	} else {
		err = p.client.Do(ctx, cmd.Build()).Error()
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Rueidis) Del(ctx context.Context, key string) error {
	return p.client.Do(ctx, p.client.B().Del().Key(key).Build()).Error()
}

func (p *Rueidis) Ping(ctx context.Context) error {
	return p.client.Do(ctx, p.client.B().Ping().Build()).Error()
}

// Close closes the client only when this provider owns it.
func (p *Rueidis) Close(context.Context) error {
	if p.closeClient {
		p.client.Close()
	}
	return nil
}
