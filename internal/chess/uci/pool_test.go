package uci

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolRejectsMissingBinary(t *testing.T) {
	_, err := NewPool(PoolConfig{BinaryPath: filepath.Join(t.TempDir(), "nope"), Options: Options{HashMB: 16}})
	assert.Error(t, err)

	_, err = NewPool(PoolConfig{})
	assert.Error(t, err)
}

func TestPoolReusesHealthySessionAndReplacesBrokenOne(t *testing.T) {
	bin := writeFakeEngine(t)
	pool, err := NewPool(PoolConfig{BinaryPath: bin, Capacity: 1, Options: Options{HashMB: 16, SkillLevel: 20}})
	require.NoError(t, err)
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(first, nil)

	again, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, first, again)

	pool.Release(again, errors.New("search failed"))

	fresh, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
	pool.Release(fresh, nil)
}

func TestPoolAcquireWaitsAtCapacity(t *testing.T) {
	bin := writeFakeEngine(t)
	pool, err := NewPool(PoolConfig{BinaryPath: bin, Capacity: 1, Options: Options{HashMB: 16, SkillLevel: 20}})
	require.NoError(t, err)
	defer pool.Close()

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pool.Release(held, nil)
}

func TestDefaultCapacityIsClamped(t *testing.T) {
	c := DefaultCapacity()
	assert.GreaterOrEqual(t, c, 2)
	assert.LessOrEqual(t, c, 4)
}
