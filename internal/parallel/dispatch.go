package parallel

// DefaultGrain is the smallest number of elements handed to one work item
// by Run. Below this, closure and queue overhead dominates a per-element
// kernel such as a vertex transform or a sample clear.
const DefaultGrain = 256

// chunksPerWorker oversubscribes the pool so work stealing can even out
// stages whose per-element cost varies (rasterization).
const chunksPerWorker = 8

// Dispatcher launches data-parallel stages on a WorkerPool.
//
// A stage is a kernel over the element range [0, n). The dispatcher splits
// the range into contiguous chunks, runs them on the pool and returns only
// after every element has been processed.
type Dispatcher struct {
	pool *WorkerPool
}

// NewDispatcher returns a dispatcher backed by pool.
// A nil pool runs every stage on the calling goroutine.
func NewDispatcher(pool *WorkerPool) *Dispatcher {
	return &Dispatcher{pool: pool}
}

// Run calls kernel(lo, hi) over disjoint ranges covering [0, n) and waits
// for all of them. Ranges hold at least DefaultGrain elements.
func (d *Dispatcher) Run(n int, kernel func(lo, hi int)) {
	d.RunGrain(n, DefaultGrain, kernel)
}

// RunGrain is Run with a stage-specific minimum range size. Stages whose
// elements are expensive and uneven, such as rasterizing one primitive,
// use a grain of 1 so every element can land on its own work item.
func (d *Dispatcher) RunGrain(n, grain int, kernel func(lo, hi int)) {
	if n <= 0 {
		return
	}
	grain = max(grain, 1)
	if d == nil || d.pool == nil || !d.pool.IsRunning() || n <= grain {
		kernel(0, n)
		return
	}

	chunk := ChunkSize(n, d.pool.Workers(), grain)
	work := make([]func(), 0, (n+chunk-1)/chunk)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		work = append(work, func() { kernel(lo, hi) })
	}
	d.pool.ExecuteAll(work)
}

// ForEach calls kernel(i) for every i in [0, n).
func (d *Dispatcher) ForEach(n int, kernel func(i int)) {
	d.Run(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			kernel(i)
		}
	})
}

// Workers returns the parallelism available to stages.
func (d *Dispatcher) Workers() int {
	if d == nil || d.pool == nil {
		return 1
	}
	return d.pool.Workers()
}

// ChunkSize returns the number of elements per work item for a stage of n
// elements on the given number of workers, never below grain.
func ChunkSize(n, workers, grain int) int {
	if workers <= 0 {
		workers = 1
	}
	chunk := (n + workers*chunksPerWorker - 1) / (workers * chunksPerWorker)
	return max(chunk, grain, 1)
}
