// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/authkeep/authkeep/internal/auth"
)

// blockingHasher counts concurrent calls and blocks until released.
type blockingHasher struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	release  chan struct{}
}

func (h *blockingHasher) enter() {
	n := h.inFlight.Add(1)
	for {
		p := h.peak.Load()
		if n <= p || h.peak.CompareAndSwap(p, n) {
			break
		}
	}
	<-h.release
	h.inFlight.Add(-1)
}

func (h *blockingHasher) Hash(password string) ([]byte, error) {
	h.enter()
	return []byte(password), nil
}

func (h *blockingHasher) Verify(_ []byte, _ string) (auth.VerifyResult, error) {
	h.enter()
	return auth.VerifySuccess, nil
}

func TestPooledHasher_BoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	inner := &blockingHasher{release: make(chan struct{})}
	pool := auth.NewPooledHasher(inner, 2)
	require.Equal(t, 2, pool.Size())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.HashContext(context.Background(), "pw")
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return inner.inFlight.Load() == 2 }, time.Second, time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.Equal(t, int32(2), inner.peak.Load())
}

func TestPooledHasher_ContextCancelledWhileQueued(t *testing.T) {
	defer goleak.VerifyNone(t)

	inner := &blockingHasher{release: make(chan struct{})}
	pool := auth.NewPooledHasher(inner, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = pool.Hash("holder")
	}()
	require.Eventually(t, func() bool { return inner.inFlight.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	result, err := pool.VerifyContext(ctx, []byte("x"), "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, auth.VerifyFailed, result)

	close(inner.release)
	<-done
}

func TestPooledHasher_DefaultSize(t *testing.T) {
	pool := auth.NewPooledHasher(fastArgon2(t), 0)
	assert.Positive(t, pool.Size())
}

func TestPooledHasher_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := auth.NewMetrics(reg)
	pool := auth.NewPooledHasher(fastArgon2(t), 1, auth.WithPoolMetrics(metrics))

	hash, err := pool.Hash("pw")
	require.NoError(t, err)
	_, err = pool.Verify(hash, "pw")
	require.NoError(t, err)

	assert.Equal(t, 2, testutil.CollectAndCount(metrics.HashDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.QueueWait))
}
