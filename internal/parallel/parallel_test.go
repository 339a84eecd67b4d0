package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestForBatch(t *testing.T) {
	cfg := DefaultConfig()

	batch, channels := 4, 8
	results := make([][]bool, batch)
	for b := range results {
		results[b] = make([]bool, channels)
	}

	ForBatch(batch, channels, func(b, c int) {
		results[b][c] = true
	}, cfg)

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			assert.True(t, results[b][c], "missing result at [%d][%d]", b, c)
		}
	}
}

func TestFor_Sequential(t *testing.T) {
	var order []int
	For(5, func(i int) {
		order = append(order, i)
	}, Sequential())

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestOrdered_PreservesOrder(t *testing.T) {
	// Later indices finish first; output must still be in index order.
	seq := Ordered(context.Background(), 20, 4, 8, func(i int) (int, error) {
		time.Sleep(time.Duration(20-i) * 100 * time.Microsecond)
		return i * i, nil
	})

	var got []int
	for v, err := range seq {
		require.NoError(t, err)
		got = append(got, v)
	}

	require.Len(t, got, 20)
	for i, v := range got {
		assert.Equal(t, i*i, v)
	}
}

func TestOrdered_BoundedWindow(t *testing.T) {
	var inFlight, peak int64
	window := 3

	seq := Ordered(context.Background(), 30, 4, window, func(i int) (int, error) {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if cur <= p || atomic.CompareAndSwapInt64(&peak, p, cur) {
				break
			}
		}
		return i, nil
	})

	for _, err := range seq {
		require.NoError(t, err)
		// The consumer owns the value now; it no longer counts as buffered.
		atomic.AddInt64(&inFlight, -1)
		time.Sleep(50 * time.Microsecond)
	}

	// Window is raised to the worker count (4). One extra value may be
	// produced while the consumer is still inside its loop body.
	assert.LessOrEqual(t, peak, int64(5))
}

func TestOrdered_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	seq := Ordered(context.Background(), 10, 2, 2, func(i int) (int, error) {
		if i == 3 {
			return 0, boom
		}
		return i, nil
	})

	var got []int
	var gotErr error
	for v, err := range seq {
		if err != nil {
			gotErr = err
			continue
		}
		got = append(got, v)
	}

	assert.ErrorIs(t, gotErr, boom)
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestOrdered_EarlyBreak(t *testing.T) {
	var produced int64
	seq := Ordered(context.Background(), 1000, 4, 4, func(i int) (int, error) {
		atomic.AddInt64(&produced, 1)
		return i, nil
	})

	for v := range seq {
		if v == 2 {
			break
		}
	}

	// Workers are joined before the iterator returns, so the count is final.
	assert.Less(t, atomic.LoadInt64(&produced), int64(1000))
}

func TestOrdered_Empty(t *testing.T) {
	calls := 0
	for range Ordered(context.Background(), 0, 2, 2, func(int) (int, error) {
		calls++
		return 0, nil
	}) {
		t.Fatal("unexpected value")
	}
	assert.Zero(t, calls)
}

func TestOrdered_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var errs []error
	for _, err := range Ordered(ctx, 10, 2, 2, func(i int) (int, error) {
		return i, nil
	}) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(j int) {
				atomic.AddInt64(&sum, int64(j))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(j int) {
				atomic.AddInt64(&sum, int64(j))
			}, Sequential())
		}
	})
}
