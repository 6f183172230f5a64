package g3d

import (
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/g3d/internal/parallel"
)

// DefaultRasterMargin is the number of samples added to each side of a
// primitive's bounding box before the coverage test, so rounding at the
// NDC-to-grid conversion never drops edge samples.
const DefaultRasterMargin = 2

// barycentricEpsilon rejects triangles whose doubled squared area is too
// small to invert reliably.
const barycentricEpsilon = 1e-12

// triangleSetup holds the per-primitive constants of the coverage test.
type triangleSetup struct {
	ax, ay   float64
	v0x, v0y float64
	v1x, v1y float64
	d00, d01 float64
	d11      float64
	invDenom float64
	invW     [3]float32
	i0, i1   int
	j0, j1   int
}

// setupTriangle prepares p for a gridW x gridH sample grid. It returns false when the
// primitive is degenerate or its padded bounding box misses the grid.
func setupTriangle(p *Primitive, gridW, gridH, margin int) (triangleSetup, bool) {
	var t triangleSetup
	if p.Degenerate() {
		return t, false
	}

	a, b, c := p.NDC[0], p.NDC[1], p.NDC[2]
	for _, v := range [...]mgl32.Vec3{a, b, c} {
		if !finite(v[0]) || !finite(v[1]) || !finite(v[2]) {
			return t, false
		}
	}

	// A triangle wholly beyond the far plane or in front of the near plane
	// lies outside the frustum even when its XY footprint is on screen.
	if outsideDepthRange(a[2], b[2], c[2]) {
		return t, false
	}

	if !t.setBasis(a, b, c) {
		return t, false
	}
	for k := range 3 {
		t.invW[k] = 1 / p.V[k].W
	}

	minX := float64(min(a[0], b[0], c[0]))
	maxX := float64(max(a[0], b[0], c[0]))
	minY := float64(min(a[1], b[1], c[1]))
	maxY := float64(max(a[1], b[1], c[1]))

	dx := 2 / float64(gridW)
	dy := 2 / float64(gridH)

	// Sample (i, j) has centre (-1+(i+0.5)dx, 1-(j+0.5)dy).
	var ok bool
	if t.i0, t.i1, ok = sampleRange((minX+1)/dx-0.5, (maxX+1)/dx-0.5, gridW, margin); !ok {
		return t, false
	}
	if t.j0, t.j1, ok = sampleRange((1-maxY)/dy-0.5, (1-minY)/dy-0.5, gridH, margin); !ok {
		return t, false
	}
	return t, true
}

func outsideDepthRange(z0, z1, z2 float32) bool {
	return min(z0, z1, z2) > 1 || max(z0, z1, z2) < -1
}

// sampleRange converts a continuous sample-index interval to an inclusive
// integer range padded by margin and clamped to [0, n).
func sampleRange(lo, hi float64, n, margin int) (int, int, bool) {
	lo = math.Floor(lo) - float64(margin)
	hi = math.Ceil(hi) + float64(margin)
	if hi < 0 || lo > float64(n-1) {
		return 0, 0, false
	}
	return int(max(lo, 0)), int(min(hi, float64(n-1))), true
}

// setBasis computes the barycentric basis of triangle (a, b, c) in the XY
// plane. It returns false for zero-area triangles.
func (t *triangleSetup) setBasis(a, b, c mgl32.Vec3) bool {
	t.ax, t.ay = float64(a[0]), float64(a[1])
	t.v0x, t.v0y = float64(b[0])-t.ax, float64(b[1])-t.ay
	t.v1x, t.v1y = float64(c[0])-t.ax, float64(c[1])-t.ay
	t.d00 = t.v0x*t.v0x + t.v0y*t.v0y
	t.d01 = t.v0x*t.v1x + t.v0y*t.v1y
	t.d11 = t.v1x*t.v1x + t.v1y*t.v1y
	denom := t.d00*t.d11 - t.d01*t.d01
	if math.Abs(denom) < barycentricEpsilon {
		return false
	}
	t.invDenom = 1 / denom
	return true
}

func finite(v float32) bool {
	return !math.IsInf(float64(v), 0) && !math.IsNaN(float64(v))
}

// Barycentric returns the weights (u, v, w) of point (px, py) with respect
// to triangle (a, b, c) in the XY plane. ok is false for degenerate
// triangles.
func Barycentric(a, b, c mgl32.Vec3, px, py float32) (u, v, w float32, ok bool) {
	var t triangleSetup
	if !t.setBasis(a, b, c) {
		return 0, 0, 0, false
	}
	u, v, w = t.weights(float64(px), float64(py))
	return u, v, w, true
}

func (t *triangleSetup) weights(px, py float64) (u, v, w float32) {
	v2x, v2y := px-t.ax, py-t.ay
	d20 := v2x*t.v0x + v2y*t.v0y
	d21 := v2x*t.v1x + v2y*t.v1y
	bv := (t.d11*d20 - t.d01*d21) * t.invDenom
	bw := (t.d00*d21 - t.d01*d20) * t.invDenom
	return float32(1 - bv - bw), float32(bv), float32(bw)
}

// depthAt interpolates NDC z. The conversions pin the rounding so both
// strict passes compute the same key for a sample.
func depthAt(p *Primitive, u, v, w float32) float32 {
	return float32(u*p.NDC[0][2]) + float32(v*p.NDC[1][2]) + float32(w*p.NDC[2][2])
}

func covered(u, v, w float32) bool {
	return u >= 0 && u <= 1 && v >= 0 && v <= 1 && w >= 0 && w <= 1
}

// walk calls fn for every covered sample of the primitive.
func (t *triangleSetup) walk(gridW, gridH int, fn func(i, j int, x, y, u, v, w float32)) {
	dx := 2 / float64(gridW)
	dy := 2 / float64(gridH)
	for j := t.j0; j <= t.j1; j++ {
		y := 1 - (float64(j)+0.5)*dy
		for i := t.i0; i <= t.i1; i++ {
			x := -1 + (float64(i)+0.5)*dx
			u, v, w := t.weights(x, y)
			if covered(u, v, w) {
				fn(i, j, float32(x), float32(y), u, v, w)
			}
		}
	}
}

// interpolate builds the fragment of p at a covered sample. Depth and NDC
// are linear in screen space; the remaining attributes are interpolated
// perspective-correctly using 1/w.
func (t *triangleSetup) interpolate(p *Primitive, x, y, u, v, w float32) Fragment {
	z := depthAt(p, u, v, w)

	pu, pv, pw := u*t.invW[0], v*t.invW[1], w*t.invW[2]
	if s := pu + pv + pw; s > 0 {
		pu, pv, pw = pu/s, pv/s, pw/s
	} else {
		pu, pv, pw = u, v, w
	}
	mix := func(a, b, c mgl32.Vec3) mgl32.Vec3 {
		return a.Mul(pu).Add(b.Mul(pv)).Add(c.Mul(pw))
	}
	a, b, c := &p.V[0], &p.V[1], &p.V[2]

	return Fragment{
		DepthKey: QuantizeDepth(z),
		Depth:    z,
		Color:    mix(a.Color, b.Color, c.Color),
		Normal:   mix(a.Normal, b.Normal, c.Normal),
		Object:   mix(a.Object, b.Object, c.Object),
		World:    mix(a.World, b.World, c.World),
		NDC:      mgl32.Vec3{x, y, z},
	}
}

// RasterStats counts the work done by one raster stage.
type RasterStats struct {
	// Primitives is the number of primitives that reached the grid.
	Primitives int64

	// Covered is the number of (primitive, sample) coverage hits.
	Covered int64

	// Written is the number of attribute writes that landed.
	Written int64
}

// primitiveGrain lets small scenes spread one primitive per work item.
const primitiveGrain = 1

// RasterStage scan-converts prims into fb under the given depth policy.
// Work items hold as few as one primitive. fb must be cleared.
func RasterStage(d *parallel.Dispatcher, prims []Primitive, fb *Framebuffer, policy DepthPolicy, margin int) RasterStats {
	var primitives, hits, written atomic.Int64
	gridW, gridH := fb.GridSize()

	switch policy {
	case DepthBestEffort:
		d.RunGrain(len(prims), primitiveGrain, func(lo, hi int) {
			var np, nc, nw int64
			for k := lo; k < hi; k++ {
				p := &prims[k]
				t, ok := setupTriangle(p, gridW, gridH, margin)
				if !ok {
					continue
				}
				np++
				t.walk(gridW, gridH, func(i, j int, x, y, u, v, w float32) {
					nc++
					frag := t.interpolate(p, x, y, u, v, w)
					key := compositeKey(frag.DepthKey, 0)
					slot := fb.slot(i, j)
					atomicMinUint64(&slot.key, key)
					if slot.key.Load() == key {
						slot.write(&frag)
						nw++
					}
				})
			}
			primitives.Add(np)
			hits.Add(nc)
			written.Add(nw)
		})

	default:
		// Pass 1: resolve the winning (depth, primitive) per sample.
		d.RunGrain(len(prims), primitiveGrain, func(lo, hi int) {
			var np, nc int64
			for k := lo; k < hi; k++ {
				p := &prims[k]
				t, ok := setupTriangle(p, gridW, gridH, margin)
				if !ok {
					continue
				}
				np++
				t.walk(gridW, gridH, func(i, j int, x, y, u, v, w float32) {
					nc++
					key := compositeKey(QuantizeDepth(depthAt(p, u, v, w)), p.ID)
					atomicMinUint64(&fb.slot(i, j).key, key)
				})
			}
			primitives.Add(np)
			hits.Add(nc)
		})

		// Pass 2: only the winner writes attributes.
		d.RunGrain(len(prims), primitiveGrain, func(lo, hi int) {
			var nw int64
			for k := lo; k < hi; k++ {
				p := &prims[k]
				t, ok := setupTriangle(p, gridW, gridH, margin)
				if !ok {
					continue
				}
				t.walk(gridW, gridH, func(i, j int, x, y, u, v, w float32) {
					frag := t.interpolate(p, x, y, u, v, w)
					slot := fb.slot(i, j)
					if slot.key.Load() == compositeKey(frag.DepthKey, p.ID) {
						slot.write(&frag)
						nw++
					}
				})
			}
			written.Add(nw)
		})
	}

	return RasterStats{
		Primitives: primitives.Load(),
		Covered:    hits.Load(),
		Written:    written.Load(),
	}
}
