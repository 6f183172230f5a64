package g3d

import (
	"math"
	"sync/atomic"
)

// Depth keys are 32-bit fixed-point encodings of NDC z. Smaller keys are
// closer to the camera.
const (
	// ClearedDepthKey marks a sample no primitive has covered.
	ClearedDepthKey uint32 = math.MaxUint32

	// MaxDepthKey is the largest key a covered sample can hold.
	MaxDepthKey uint32 = math.MaxUint32 - 1
)

// clearedSlotKey is the 64-bit sample key after clear.
const clearedSlotKey = math.MaxUint64

// QuantizeDepth maps NDC z in [-1, 1] (near plane at -1) to a depth key in
// [0, MaxDepthKey]. Values outside the range clamp to the nearest end and
// NaN maps to MaxDepthKey, so the key never wraps.
func QuantizeDepth(z float32) uint32 {
	if z != z || z >= 1 {
		return MaxDepthKey
	}
	if z <= -1 {
		return 0
	}
	t := (float64(z) + 1) * 0.5
	k := t * float64(MaxDepthKey)
	if k >= float64(MaxDepthKey) {
		return MaxDepthKey
	}
	return uint32(k)
}

// DepthPolicy selects how concurrent writers to a sample are resolved.
type DepthPolicy uint8

const (
	// DepthStrict resolves the winning primitive per sample with an atomic
	// minimum on (depthKey, primitiveID), then lets only the winner write
	// attributes in a second pass. Frames are deterministic: attributes always
	// belong to the primitive holding the minimum key, and equal depths are
	// broken by the lower primitive ID.
	DepthStrict DepthPolicy = iota

	// DepthBestEffort lowers the depth key atomically and writes attributes
	// if a re-read still matches. The key is always the true minimum, but
	// attributes may come from a tied or since-beaten writer.
	DepthBestEffort
)

// String returns the policy name.
func (p DepthPolicy) String() string {
	switch p {
	case DepthStrict:
		return "strict"
	case DepthBestEffort:
		return "best-effort"
	default:
		return "unknown"
	}
}

// compositeKey packs a depth key above a primitive ID.
func compositeKey(depth, primID uint32) uint64 {
	return uint64(depth)<<32 | uint64(primID)
}

// atomicMinUint64 lowers *a to v if v is smaller and returns the value held
// after the operation.
func atomicMinUint64(a *atomic.Uint64, v uint64) uint64 {
	for {
		cur := a.Load()
		if v >= cur {
			return cur
		}
		if a.CompareAndSwap(cur, v) {
			return v
		}
	}
}
