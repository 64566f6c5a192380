package spscring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingRoundsCapacityUpToPowerOfTwo(t *testing.T) {
	r := New[int](1500)
	assert.Equal(t, 2048, r.Cap())

	r2 := New[int](1)
	assert.Equal(t, MinCapacity, r2.Cap())
}

func TestRingPushPopFIFO(t *testing.T) {
	r := New[int](8)
	for i := 0; i < 5; i++ {
		require.True(t, r.Push(i))
	}
	for i := 0; i < 5; i++ {
		v, ok := r.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := r.Pop()
	assert.False(t, ok)
}

func TestRingPushFailsWhenFull(t *testing.T) {
	r := New[int](MinCapacity)
	for i := 0; i < r.Cap(); i++ {
		require.True(t, r.Push(i))
	}
	assert.False(t, r.Push(999))

	v, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, 0, v)
	assert.True(t, r.Push(999))
}

func TestRingDrainReturnsEverythingAvailable(t *testing.T) {
	r := New[string](MinCapacity)
	want := []string{"a", "b", "c"}
	for _, v := range want {
		require.True(t, r.Push(v))
	}
	got := r.Drain(nil)
	assert.Equal(t, want, got)

	_, ok := r.Pop()
	assert.False(t, ok)
}

func TestRingConcurrentProducersPreserveCount(t *testing.T) {
	r := New[int](4096)
	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !r.Push(i) {
					// ring sized large enough relative to total volume that
					// this should not spin meaningfully in practice; retry
					// to avoid flaking the count assertion below.
				}
			}
		}()
	}
	wg.Wait()

	count := 0
	for {
		_, ok := r.Pop()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, producers*perProducer, count)
}
