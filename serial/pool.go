package serial

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

const defaultMaxBufferSize = 1 << 20

// Pool hands out Instances to concurrent callers. Borrowing never blocks: an
// idle Instance is reused when there is one, otherwise a new one is built.
// Idle Instances may be dropped by the runtime under memory pressure.
type Pool struct {
	reg       *Registry
	maxDepth  int
	maxBuffer int

	pool sync.Pool

	created   atomic.Int64
	borrowed  atomic.Int64
	returned  atomic.Int64
	discarded atomic.Int64
}

type Option func(*Pool)

// WithMaxDepth bounds how deeply nested a graph may be.
func WithMaxDepth(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.maxDepth = n
		}
	}
}

// WithMaxBufferSize discards returned Instances whose scratch buffer grew
// past n bytes instead of keeping them idle.
func WithMaxBufferSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.maxBuffer = n
		}
	}
}

// WithRegistry binds the pool's Instances to reg.
func WithRegistry(reg *Registry) Option {
	return func(p *Pool) {
		if reg != nil {
			p.reg = reg
		}
	}
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Created   int64
	Borrowed  int64
	Returned  int64
	Discarded int64
}

func NewPool(opts ...Option) *Pool {
	p := &Pool{
		reg:       defaultRegistry,
		maxDepth:  defaultMaxDepth,
		maxBuffer: defaultMaxBufferSize,
	}
	for _, o := range opts {
		o(p)
	}
	p.pool.New = func() any {
		p.created.Add(1)
		return newInstance(p.reg, p.maxDepth)
	}
	return p
}

func (p *Pool) get() *Instance {
	in := p.pool.Get().(*Instance)
	in.inUse = true
	p.borrowed.Add(1)
	return in
}

func (p *Pool) put(in *Instance) {
	if !in.inUse {
		return
	}
	in.inUse = false
	in.reset()
	p.returned.Add(1)
	if in.buf.Cap() > p.maxBuffer {
		p.discarded.Add(1)
		return
	}
	p.pool.Put(in)
}

// Run borrows an Instance for the duration of fn. The Instance goes back to
// the pool when fn returns, fails or panics; fn must not retain it.
func (p *Pool) Run(fn func(*Instance) error) (err error) {
	in := p.get()
	defer p.put(in)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("serial: panic in pooled call: %v", r)
		}
	}()
	return fn(in)
}

func (p *Pool) Serialize(v any) ([]byte, error) {
	in := p.get()
	defer p.put(in)
	return in.Serialize(v)
}

func (p *Pool) Deserialize(b []byte) (any, error) {
	in := p.get()
	defer p.put(in)
	return in.Deserialize(b)
}

// DeepCopy returns a structurally independent clone of v's exported state.
// Unexported struct fields are copied as they are, so pointers, maps and
// slices held in them stay shared with v.
func (p *Pool) DeepCopy(v any) (any, error) {
	in := p.get()
	defer p.put(in)
	return in.Copy(v)
}

func (p *Pool) Registry() *Registry { return p.reg }

// RegisterType makes t, and the named types reachable from it, readable by
// the pool's Instances before any value of t has been written.
func (p *Pool) RegisterType(t reflect.Type) error { return p.reg.RegisterType(t) }

func (p *Pool) Stats() Stats {
	return Stats{
		Created:   p.created.Load(),
		Borrowed:  p.borrowed.Load(),
		Returned:  p.returned.Load(),
		Discarded: p.discarded.Load(),
	}
}

var defaultPool = NewPool()

// Default returns the process-wide pool behind the package functions.
func Default() *Pool { return defaultPool }

func Serialize(v any) ([]byte, error) { return defaultPool.Serialize(v) }

func Deserialize(b []byte) (any, error) { return defaultPool.Deserialize(b) }

func DeepCopy(v any) (any, error) { return defaultPool.DeepCopy(v) }

// Decode deserializes b with p (the default pool when nil) and asserts the
// result to T. A payload holding another type fails with ErrTypeMismatch.
func Decode[T any](p *Pool, b []byte) (T, error) {
	var zero T
	if p == nil {
		p = defaultPool
	}
	v, err := p.Deserialize(b)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %s", ErrTypeMismatch, v, reflect.TypeFor[T]())
	}
	return t, nil
}

// Copy deep-copies v with p (the default pool when nil). See Pool.DeepCopy
// for what is shared between v and the copy.
func Copy[T any](p *Pool, v T) (T, error) {
	var zero T
	if p == nil {
		p = defaultPool
	}
	c, err := p.DeepCopy(v)
	if err != nil || c == nil {
		return zero, err
	}
	return c.(T), nil
}
