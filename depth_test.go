package g3d

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
)

func TestQuantizeDepth(t *testing.T) {
	tests := []struct {
		name string
		z    float32
		want uint32
	}{
		{"near plane", -1, 0},
		{"far plane", 1, MaxDepthKey},
		{"before near", -3, 0},
		{"beyond far", 7, MaxDepthKey},
		{"NaN", float32(math.NaN()), MaxDepthKey},
		{"+Inf", float32(math.Inf(1)), MaxDepthKey},
		{"-Inf", float32(math.Inf(-1)), 0},
		{"middle", 0, MaxDepthKey / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuantizeDepth(tt.z); got != tt.want {
				t.Errorf("QuantizeDepth(%g) = %d, want %d", tt.z, got, tt.want)
			}
		})
	}
}

func TestQuantizeDepthMonotonic(t *testing.T) {
	prev := QuantizeDepth(-1)
	for i := 1; i <= 4096; i++ {
		z := -1 + 2*float32(i)/4096
		k := QuantizeDepth(z)
		if k < prev {
			t.Fatalf("QuantizeDepth(%g) = %d < previous %d", z, k, prev)
		}
		if k == ClearedDepthKey {
			t.Fatalf("QuantizeDepth(%g) produced the cleared sentinel", z)
		}
		prev = k
	}
}

func TestCompositeKeyOrdering(t *testing.T) {
	if compositeKey(10, 99) >= compositeKey(11, 0) {
		t.Error("depth must dominate the primitive ID")
	}
	if compositeKey(10, 1) >= compositeKey(10, 2) {
		t.Error("equal depths must order by primitive ID")
	}
	if compositeKey(MaxDepthKey, math.MaxUint32) >= clearedSlotKey {
		t.Error("every covered key must be below the cleared sentinel")
	}
}

func TestAtomicMinUint64(t *testing.T) {
	var a atomic.Uint64
	a.Store(clearedSlotKey)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 1000 {
				atomicMinUint64(&a, uint64(1000+g*1000+i))
			}
		}()
	}
	wg.Wait()

	if got := a.Load(); got != 1000 {
		t.Errorf("minimum = %d, want 1000", got)
	}
	if got := atomicMinUint64(&a, 5000); got != 1000 {
		t.Errorf("atomicMinUint64 with a larger value = %d, want current 1000", got)
	}
}

func TestDepthPolicyString(t *testing.T) {
	tests := []struct {
		p    DepthPolicy
		want string
	}{
		{DepthStrict, "strict"},
		{DepthBestEffort, "best-effort"},
		{DepthPolicy(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("DepthPolicy(%d).String() = %q, want %q", tt.p, got, tt.want)
		}
	}
}
