package parallel

import (
	"context"
	"iter"
	"sync"
)

// Ordered runs produce(i) for i in [0, n) on a pool of `workers` goroutines
// and yields the results strictly in index order.
//
// At most `window` results are produced ahead of the consumer, so memory use
// is bounded regardless of n. Iteration stops at the first error (which is
// yielded unchanged), when ctx is cancelled (ctx.Err() is yielded) or when
// the consumer stops ranging. Every worker has exited by the time the
// iterator returns.
func Ordered[T any](ctx context.Context, n, workers, window int, produce func(i int) (T, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		if n <= 0 {
			return
		}
		workers = max(workers, 1)
		window = max(window, workers)

		type result struct {
			val T
			err error
		}

		ctx, cancel := context.WithCancel(ctx)
		var wg sync.WaitGroup
		defer func() {
			cancel()
			wg.Wait()
		}()

		slots := make([]chan result, n)
		for i := range slots {
			slots[i] = make(chan result, 1) // never blocks the producing worker
		}
		jobs := make(chan int)
		tokens := make(chan struct{}, window)

		// Dispatcher: admits a job only when a window slot is free.
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(jobs)
			for i := 0; i < n; i++ {
				select {
				case tokens <- struct{}{}:
				case <-ctx.Done():
					return
				}
				select {
				case jobs <- i:
				case <-ctx.Done():
					return
				}
			}
		}()

		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					val, err := produce(i)
					slots[i] <- result{val: val, err: err}
				}
			}()
		}

		var zero T
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			var r result
			select {
			case r = <-slots[i]:
			case <-ctx.Done():
				yield(zero, ctx.Err())
				return
			}
			<-tokens
			if !yield(r.val, r.err) || r.err != nil {
				return
			}
		}
	}
}
