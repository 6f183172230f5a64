package g3d

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/bits"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/g3d/internal/parallel"
)

// Attribute layout of a sample slot, in float32 words.
const (
	attrDepth  = 0
	attrColor  = 1
	attrNormal = 4
	attrObject = 7
	attrWorld  = 10
	attrNDC    = 13
	slotAttrs  = 16
)

// sampleSlot is one cell of the supersampled grid.
//
// key is the only field used for ordering between writers. Attributes are
// stored as float bits in atomics so concurrent best-effort writes are not
// data races; their consistency with key is governed by the DepthPolicy.
type sampleSlot struct {
	key  atomic.Uint64
	attr [slotAttrs]atomic.Uint32
}

func (s *sampleSlot) clear() {
	s.key.Store(clearedSlotKey)
	for i := range s.attr {
		s.attr[i].Store(0)
	}
}

func (s *sampleSlot) loadFloat(off int) float32 {
	return math.Float32frombits(s.attr[off].Load())
}

func (s *sampleSlot) storeFloat(off int, v float32) {
	s.attr[off].Store(math.Float32bits(v))
}

func (s *sampleSlot) loadVec3(off int) mgl32.Vec3 {
	return mgl32.Vec3{s.loadFloat(off), s.loadFloat(off + 1), s.loadFloat(off + 2)}
}

func (s *sampleSlot) storeVec3(off int, v mgl32.Vec3) {
	s.storeFloat(off, v[0])
	s.storeFloat(off+1, v[1])
	s.storeFloat(off+2, v[2])
}

// write stores a fragment's attributes. The key is not touched.
func (s *sampleSlot) write(f *Fragment) {
	s.storeFloat(attrDepth, f.Depth)
	s.storeVec3(attrColor, f.Color)
	s.storeVec3(attrNormal, f.Normal)
	s.storeVec3(attrObject, f.Object)
	s.storeVec3(attrWorld, f.World)
	s.storeVec3(attrNDC, f.NDC)
}

func (s *sampleSlot) snapshot() Fragment {
	return Fragment{
		DepthKey: uint32(s.key.Load() >> 32),
		Depth:    s.loadFloat(attrDepth),
		Color:    s.loadVec3(attrColor),
		Normal:   s.loadVec3(attrNormal),
		Object:   s.loadVec3(attrObject),
		World:    s.loadVec3(attrWorld),
		NDC:      s.loadVec3(attrNDC),
	}
}

// Fragment is a copy of one sample's state.
type Fragment struct {
	// DepthKey is the quantized depth, ClearedDepthKey if uncovered.
	DepthKey uint32

	// Depth is the interpolated NDC z.
	Depth float32

	Color  mgl32.Vec3
	Normal mgl32.Vec3
	Object mgl32.Vec3
	World  mgl32.Vec3
	NDC    mgl32.Vec3
}

// Covered reports whether any primitive reached the sample.
func (f Fragment) Covered() bool {
	return f.DepthKey != ClearedDepthKey
}

// Framebuffer holds the supersampled sample grid and the resolved colors.
//
// Sample (i, j) is column i, row j of a (Width*S) x (Height*S) grid; row 0
// is the top of the image. Pixel (x, y) covers samples [x*S, x*S+S) x
// [y*S, y*S+S).
type Framebuffer struct {
	width, height int
	ss            int
	samples       []sampleSlot
	color         []mgl32.Vec3
}

// newFramebuffer allocates a framebuffer. maxSamples <= 0 disables the
// budget check.
func newFramebuffer(width, height, ss, maxSamples int) (*Framebuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: framebuffer %dx%d", ErrInvalidSize, width, height)
	}
	if ss <= 0 {
		return nil, fmt.Errorf("%w: supersample factor %d", ErrInvalidSize, ss)
	}
	n, ok := sampleCount(width, height, ss)
	if !ok {
		return nil, fmt.Errorf("%w: %dx%d at %dx supersampling overflows", ErrAllocation, width, height, ss)
	}
	if maxSamples > 0 && n > maxSamples {
		return nil, fmt.Errorf("%w: %d samples exceeds budget of %d", ErrAllocation, n, maxSamples)
	}

	fb := &Framebuffer{
		width:   width,
		height:  height,
		ss:      ss,
		samples: make([]sampleSlot, n),
		color:   make([]mgl32.Vec3, width*height),
	}
	for i := range fb.samples {
		fb.samples[i].key.Store(clearedSlotKey)
	}
	return fb, nil
}

// sampleCount returns width*height*ss*ss, or false if it overflows int.
func sampleCount(width, height, ss int) (int, bool) {
	n := uint64(1)
	for _, f := range []int{width, height, ss, ss} {
		hi, lo := bits.Mul64(n, uint64(f))
		if hi != 0 || lo > math.MaxInt {
			return 0, false
		}
		n = lo
	}
	return int(n), true
}

// Width returns the output width in pixels.
func (fb *Framebuffer) Width() int { return fb.width }

// Height returns the output height in pixels.
func (fb *Framebuffer) Height() int { return fb.height }

// Supersample returns the samples per pixel side.
func (fb *Framebuffer) Supersample() int { return fb.ss }

// GridSize returns the sample grid dimensions.
func (fb *Framebuffer) GridSize() (w, h int) {
	return fb.width * fb.ss, fb.height * fb.ss
}

// SampleCount returns the number of samples in the grid.
func (fb *Framebuffer) SampleCount() int { return len(fb.samples) }

func (fb *Framebuffer) slot(i, j int) *sampleSlot {
	return &fb.samples[j*fb.width*fb.ss+i]
}

// Sample returns a copy of sample (i, j).
func (fb *Framebuffer) Sample(i, j int) Fragment {
	return fb.slot(i, j).snapshot()
}

// DepthKey returns the depth key of sample (i, j).
func (fb *Framebuffer) DepthKey(i, j int) uint32 {
	return uint32(fb.slot(i, j).key.Load() >> 32)
}

// Color returns the resolved color of pixel (x, y).
func (fb *Framebuffer) Color(x, y int) mgl32.Vec3 {
	return fb.color[y*fb.width+x]
}

// clear resets every sample to the far sentinel with zero attributes and
// the resolved colors to black.
func (fb *Framebuffer) clear(d *parallel.Dispatcher) {
	d.Run(len(fb.samples), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			fb.samples[i].clear()
		}
	})
	d.Run(len(fb.color), func(lo, hi int) {
		clear(fb.color[lo:hi])
	})
}

// Image converts the resolved colors to 8-bit RGBA. Channels are clamped
// to [0, 1]; alpha is opaque.
func (fb *Framebuffer) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
	fb.CopyTo(img)
	return img
}

// CopyTo writes the resolved colors into img starting at its origin.
// Pixels outside img's bounds are skipped.
func (fb *Framebuffer) CopyTo(img *image.RGBA) {
	b := img.Bounds()
	w := min(fb.width, b.Dx())
	h := min(fb.height, b.Dy())
	for y := range h {
		for x := range w {
			c := fb.color[y*fb.width+x]
			img.SetRGBA(b.Min.X+x, b.Min.Y+y, color.RGBA{
				R: toByte(c[0]), G: toByte(c[1]), B: toByte(c[2]), A: 0xff,
			})
		}
	}
}

func toByte(v float32) uint8 {
	if v != v || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(v*255 + 0.5)
}
