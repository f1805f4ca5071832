// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"context"
	"runtime"
	"time"

	"github.com/samber/oops"
	"golang.org/x/sync/semaphore"
)

// ContextHasher is a PasswordHasher whose calls can be abandoned while
// waiting for capacity.
type ContextHasher interface {
	HashContext(ctx context.Context, password string) ([]byte, error)
	VerifyContext(ctx context.Context, encoded []byte, password string) (VerifyResult, error)
}

// PooledHasher bounds the number of concurrent hash computations.
// The bound is independent of how many requests are in flight, so slow key
// derivation cannot starve the rest of the process of CPU.
type PooledHasher struct {
	hasher  PasswordHasher
	sem     *semaphore.Weighted
	size    int
	metrics *Metrics
}

// PooledHasherOption configures a PooledHasher.
type PooledHasherOption func(*PooledHasher)

// WithPoolMetrics records queue wait and hash durations.
func WithPoolMetrics(m *Metrics) PooledHasherOption {
	return func(p *PooledHasher) {
		p.metrics = m
	}
}

// NewPooledHasher wraps hasher with a pool of size workers.
// A non-positive size uses runtime.NumCPU().
func NewPooledHasher(hasher PasswordHasher, workers int, opts ...PooledHasherOption) *PooledHasher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &PooledHasher{
		hasher: hasher,
		sem:    semaphore.NewWeighted(int64(workers)),
		size:   workers,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the maximum number of concurrent hash computations.
func (p *PooledHasher) Size() int {
	return p.size
}

// Hash implements PasswordHasher.
func (p *PooledHasher) Hash(password string) ([]byte, error) {
	return p.HashContext(context.Background(), password)
}

// Verify implements PasswordHasher.
func (p *PooledHasher) Verify(encoded []byte, password string) (VerifyResult, error) {
	return p.VerifyContext(context.Background(), encoded, password)
}

// HashContext waits for a free slot, then hashes password.
func (p *PooledHasher) HashContext(ctx context.Context, password string) ([]byte, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	start := time.Now()
	encoded, err := p.hasher.Hash(password)
	p.metrics.observeHash("hash", time.Since(start))
	return encoded, err
}

// VerifyContext waits for a free slot, then verifies password.
func (p *PooledHasher) VerifyContext(ctx context.Context, encoded []byte, password string) (VerifyResult, error) {
	if err := p.acquire(ctx); err != nil {
		return VerifyFailed, err
	}
	defer p.sem.Release(1)

	start := time.Now()
	result, err := p.hasher.Verify(encoded, password)
	p.metrics.observeHash("verify", time.Since(start))
	return result, err
}

func (p *PooledHasher) acquire(ctx context.Context) error {
	start := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return oops.Code("AUTH_HASHER_UNAVAILABLE").
			With("pool_size", p.size).
			Wrap(err)
	}
	p.metrics.observeQueueWait(time.Since(start))
	return nil
}

var (
	_ PasswordHasher = (*PooledHasher)(nil)
	_ ContextHasher  = (*PooledHasher)(nil)
)
