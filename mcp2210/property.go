package mcp2210

import (
	"context"
	"sync"
)

// Property is a locally cached mirror of a setting that lives on the chip.
//
// Get fetches the value on first use and serves the cache afterwards. Set is
// write-through: it stores the value and pushes it to the chip without reading
// it back. The cache is only dropped by Invalidate or by a failed Set.
//
// Property is safe for concurrent use; Get, Set and Update are atomic with
// respect to each other.
type Property[T any] struct {
	mu     sync.Mutex
	name   string
	value  T
	cached bool
	fetch  func(context.Context) (T, error)
	push   func(context.Context, T) error
}

func newProperty[T any](name string, fetch func(context.Context) (T, error), push func(context.Context, T) error) *Property[T] {
	return &Property[T]{name: name, fetch: fetch, push: push}
}

// Name returns the property name used in logs.
func (p *Property[T]) Name() string {
	return p.name
}

// Get returns the cached value, fetching it from the chip on first use.
func (p *Property[T]) Get(ctx context.Context) (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load(ctx)
}

func (p *Property[T]) load(ctx context.Context) (T, error) {
	if p.cached {
		return p.value, nil
	}
	v, err := p.fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	p.value = v
	p.cached = true
	return v, nil
}

// Set stores v in the cache and writes it to the chip.
// If the write fails the cache is dropped, so the next Get reads the chip again.
func (p *Property[T]) Set(ctx context.Context, v T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store(ctx, v)
}

func (p *Property[T]) store(ctx context.Context, v T) error {
	p.value = v
	p.cached = true
	if err := p.push(ctx, v); err != nil {
		var zero T
		p.value = zero
		p.cached = false
		return err
	}
	return nil
}

// Update performs a read-modify-write: it loads the value (from cache or
// chip), applies fn and writes the result through. Returns the new value.
func (p *Property[T]) Update(ctx context.Context, fn func(T) T) (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, err := p.load(ctx)
	if err != nil {
		return v, err
	}
	v = fn(v)
	if err := p.store(ctx, v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// Cached returns the cached value without contacting the chip.
// ok is false when nothing is cached.
func (p *Property[T]) Cached() (v T, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.cached
}

// Invalidate drops the cached value.
func (p *Property[T]) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	var zero T
	p.value = zero
	p.cached = false
}
