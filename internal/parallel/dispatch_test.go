package parallel

import (
	"sync/atomic"
	"testing"
)

func TestDispatcher_RunCoversRange(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()
	d := NewDispatcher(pool)

	tests := []struct {
		name string
		n    int
	}{
		{"empty", 0},
		{"single", 1},
		{"below chunk", DefaultGrain - 1},
		{"exact chunk", DefaultGrain},
		{"uneven", DefaultGrain*7 + 13},
		{"large", 1 << 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := make([]atomic.Int32, tt.n)
			d.Run(tt.n, func(lo, hi int) {
				for i := lo; i < hi; i++ {
					hits[i].Add(1)
				}
			})
			for i := range hits {
				if got := hits[i].Load(); got != 1 {
					t.Fatalf("element %d visited %d times, want 1", i, got)
				}
			}
		})
	}
}

func TestDispatcher_ForEach(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Close()
	d := NewDispatcher(pool)

	out := make([]int, 5000)
	d.ForEach(len(out), func(i int) { out[i] = i * 2 })

	for i, v := range out {
		if v != i*2 {
			t.Fatalf("out[%d] = %d, want %d", i, v, i*2)
		}
	}
}

func TestDispatcher_NilPool(t *testing.T) {
	var calls int
	NewDispatcher(nil).Run(10000, func(lo, hi int) {
		calls++
		if lo != 0 || hi != 10000 {
			t.Errorf("Run range = [%d,%d), want [0,10000)", lo, hi)
		}
	})
	if calls != 1 {
		t.Errorf("kernel calls = %d, want 1", calls)
	}

	var nilDispatcher *Dispatcher
	if nilDispatcher.Workers() != 1 {
		t.Errorf("nil Dispatcher Workers() = %d, want 1", nilDispatcher.Workers())
	}
}

func TestChunkSize(t *testing.T) {
	tests := []struct {
		n, workers, grain int
		want              int
	}{
		{100, 4, DefaultGrain, DefaultGrain},
		{1 << 20, 4, DefaultGrain, (1<<20 + 31) / 32},
		{1 << 20, 0, DefaultGrain, (1 << 20) / chunksPerWorker},
		{12, 4, 1, 1},
		{100, 4, 1, 4},
		{12, 4, 0, 1},
	}
	for _, tt := range tests {
		if got := ChunkSize(tt.n, tt.workers, tt.grain); got != tt.want {
			t.Errorf("ChunkSize(%d, %d, %d) = %d, want %d", tt.n, tt.workers, tt.grain, got, tt.want)
		}
	}
}

func TestDispatcher_RunGrainSplitsSmallStages(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()
	d := NewDispatcher(pool)

	// 12 elements with grain 1 on 4 workers: one work item per element.
	var items atomic.Int32
	hits := make([]atomic.Int32, 12)
	d.RunGrain(len(hits), 1, func(lo, hi int) {
		items.Add(1)
		if hi-lo != 1 {
			t.Errorf("range [%d,%d) holds %d elements, want 1", lo, hi, hi-lo)
		}
		for i := lo; i < hi; i++ {
			hits[i].Add(1)
		}
	})

	if got := items.Load(); got != 12 {
		t.Errorf("work items = %d, want 12", got)
	}
	for i := range hits {
		if got := hits[i].Load(); got != 1 {
			t.Errorf("element %d visited %d times, want 1", i, got)
		}
	}

	// The same stage under the default grain stays on one work item.
	items.Store(0)
	d.Run(len(hits), func(lo, hi int) { items.Add(1) })
	if got := items.Load(); got != 1 {
		t.Errorf("default grain work items = %d, want 1", got)
	}
}
