package conc

import (
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool(t *testing.T) {
	var pre atomic.Int32
	pool := NewPool[int](4, WithPreAlloc(true), WithPreHandler(func() { pre.Add(1) }))
	defer pool.Release()

	assert.Equal(t, 4, pool.Cap())

	futures := make([]*Future[int], 0, 16)
	for i := 0; i < 16; i++ {
		i := i
		futures = append(futures, pool.Submit(func() (int, error) {
			return i * i, nil
		}))
	}
	require.NoError(t, AwaitAll(futures...))
	for i, f := range futures {
		v, err := f.Await()
		assert.NoError(t, err)
		assert.Equal(t, i*i, v)
		assert.True(t, f.OK())
	}
	assert.EqualValues(t, 16, pre.Load())
}

func TestPoolError(t *testing.T) {
	pool := NewPool[string](0)
	defer pool.Release()
	assert.GreaterOrEqual(t, pool.Cap(), 1)

	boom := errors.New("boom")
	ok := pool.Submit(func() (string, error) { return "ok", nil })
	bad := pool.Submit(func() (string, error) { return "", boom })

	err := AwaitAll(ok, bad)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "ok", ok.Value())
	assert.ErrorIs(t, bad.Err(), boom)
	<-bad.Done()
}

func TestPoolConcealPanic(t *testing.T) {
	var handled atomic.Bool
	pool := NewPool[int](1, WithConcealPanic(true), WithPanicHandler(func(any) { handled.Store(true) }))
	defer pool.Release()

	f := pool.Submit(func() (int, error) { panic("oops") })
	assert.Error(t, f.Err())
	assert.False(t, f.OK())
}

func TestPoolReleased(t *testing.T) {
	pool := NewPool[int](1)
	pool.Release()

	f := pool.Submit(func() (int, error) { return 1, nil })
	assert.Error(t, f.Err())
}
