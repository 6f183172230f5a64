package g3d

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gogpu/g3d/internal/parallel"
	"github.com/gogpu/g3d/render"
)

// Backend names reported in Stats.
const (
	BackendCPU = "cpu"
)

// Stats describes the most recent frame.
type Stats struct {
	// Frame is the index of the frame, starting at 0.
	Frame uint64

	// Backend is BackendCPU or the accelerator name.
	Backend string

	Vertices   int
	Primitives int
	Samples    int

	// Raster is only populated by the CPU backend.
	Raster RasterStats

	Elapsed time.Duration
}

// Pipeline is a forward triangle rasterizer and the owner of every buffer
// it uses.
//
// Buffers are sized by LoadScene (vertex, index and primitive buffers) and
// Resize (sample and color buffers) and reused across frames. Each frame
// runs clear, instance transforms, vertex, assembly, raster, shade and
// resolve in order, with a full barrier between stages.
//
// Thread safety: methods may be called from multiple goroutines; frames are
// serialized.
type Pipeline struct {
	mu sync.Mutex

	opts     options
	pool     *parallel.WorkerPool
	dispatch *parallel.Dispatcher

	scene   *Scene
	verts   []TransformedVertex
	indices []uint32
	prims   []Primitive

	fb *Framebuffer

	frame  uint64
	stats  Stats
	closed bool
}

// New creates a pipeline. Invalid options are reported as ErrInvalidSize.
func New(opts ...Option) (*Pipeline, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.supersample <= 0 {
		return nil, fmt.Errorf("%w: supersample factor %d", ErrInvalidSize, o.supersample)
	}
	if o.instances <= 0 {
		return nil, fmt.Errorf("%w: instance count %d", ErrInvalidSize, o.instances)
	}

	p := &Pipeline{opts: o}
	if o.workers != 1 {
		p.pool = parallel.NewWorkerPool(o.workers)
	}
	p.dispatch = parallel.NewDispatcher(p.pool)

	Logger().Debug("g3d: pipeline created",
		"supersample", o.supersample,
		"workers", p.dispatch.Workers(),
		"policy", o.policy.String(),
		"instances", o.instances)
	return p, nil
}

// LoadScene sizes the vertex, index and primitive buffers for s and the
// configured instance count. The previous scene is released.
func (p *Pipeline) LoadScene(s *Scene) error {
	if s == nil {
		return fmt.Errorf("%w: nil scene", ErrInvalidScene)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	k := p.opts.instances
	nv, ni := s.VertexCount(), len(s.Indices())

	// Remapped indices must stay representable as uint32, and primitive
	// IDs share the low 32 bits of the depth key.
	elems := max(uint64(nv), uint64(ni)) * uint64(k)
	if elems > math.MaxUint32 {
		return fmt.Errorf("%w: %d vertices and %d indices across %d instances", ErrAllocation, nv, ni, k)
	}
	if limit := p.opts.maxElements; limit > 0 && elems > uint64(limit) {
		return fmt.Errorf("%w: %d instanced elements exceeds budget of %d", ErrAllocation, elems, limit)
	}

	p.scene = s
	p.verts = make([]TransformedVertex, nv*k)
	p.indices = make([]uint32, ni*k)
	p.prims = make([]Primitive, ni*k/3)

	Logger().Info("g3d: scene loaded",
		"vertices", nv,
		"triangles", s.TriangleCount(),
		"instances", k)
	return nil
}

// Resize reallocates the sample and color buffers for a width x height
// output. On failure the previous framebuffer is kept.
func (p *Pipeline) Resize(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	return p.resizeLocked(width, height)
}

func (p *Pipeline) resizeLocked(width, height int) error {
	fb, err := newFramebuffer(width, height, p.opts.supersample, p.opts.maxSamples)
	if err != nil {
		return err
	}
	p.fb = fb
	Logger().Debug("g3d: framebuffer resized",
		"width", width,
		"height", height,
		"samples", fb.SampleCount())
	return nil
}

// Render renders one frame for cam and presents it into target.
// The framebuffer is resized to the camera's output size if needed. The
// context is checked once before the frame starts; a started frame always
// runs to completion. The frame is presented before the next one starts.
func (p *Pipeline) Render(ctx context.Context, target render.RenderTarget, cam Camera) error {
	if target == nil {
		return errors.New("g3d: nil render target")
	}
	if err := checkFrame(ctx, cam); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.renderFrameLocked(cam); err != nil {
		return err
	}
	if err := render.Present(target, p.fb.Image()); err != nil {
		return fmt.Errorf("g3d: present: %w", err)
	}
	return nil
}

// RenderFrame renders one frame for cam and returns the framebuffer. The
// returned framebuffer is owned by the pipeline and is overwritten by the
// next frame; use Render to present a frame while no other frame can run.
// When a GPU accelerator renders the frame only the resolved colors are
// updated; per-sample state stays on the device.
func (p *Pipeline) RenderFrame(ctx context.Context, cam Camera) (*Framebuffer, error) {
	if err := checkFrame(ctx, cam); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.renderFrameLocked(cam); err != nil {
		return nil, err
	}
	return p.fb, nil
}

func checkFrame(ctx context.Context, cam Camera) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return cam.Validate()
}

// renderFrameLocked runs every stage for cam into p.fb. p.mu must be held.
func (p *Pipeline) renderFrameLocked(cam Camera) error {
	if p.closed {
		return ErrClosed
	}
	if p.scene == nil {
		return ErrNoScene
	}
	if p.fb == nil || p.fb.width != cam.Width || p.fb.height != cam.Height {
		if err := p.resizeLocked(cam.Width, cam.Height); err != nil {
			return err
		}
	}

	start := time.Now()
	frame := p.frame
	transforms := BuildInstanceTransforms(cam, Placements(p.opts.rule, p.opts.instances, frame))

	stats := Stats{
		Frame:      frame,
		Vertices:   len(p.verts),
		Primitives: len(p.prims),
		Samples:    p.fb.SampleCount(),
	}

	if name, ok := p.renderAccelerated(transforms); ok {
		stats.Backend = name
	} else {
		stats.Backend = BackendCPU
		stats.Raster = p.renderCPU(transforms)
	}

	stats.Elapsed = time.Since(start)
	p.stats = stats
	p.frame++

	Logger().Debug("g3d: frame rendered",
		"frame", frame,
		"backend", stats.Backend,
		"covered", stats.Raster.Covered,
		"elapsed", stats.Elapsed)
	return nil
}

// renderAccelerated tries the registered GPU accelerator. It reports false
// when the frame must be rendered on the CPU.
func (p *Pipeline) renderAccelerated(transforms []InstanceTransform) (string, bool) {
	if p.opts.cpuOnly {
		return "", false
	}
	a := Accelerator()
	if a == nil {
		return "", false
	}
	in := &FrameInput{
		Vertices:    p.scene.Vertices(),
		Indices:     p.scene.Indices(),
		Transforms:  transforms,
		Light:       p.opts.light,
		Width:       p.fb.width,
		Height:      p.fb.height,
		Supersample: p.fb.ss,
		Policy:      p.opts.policy,
		Margin:      p.opts.margin,
		Filter:      p.opts.filter,
	}
	if !a.CanAccelerate(in) {
		return "", false
	}
	if err := a.RenderFrame(in, p.fb.color); err != nil {
		if !errors.Is(err, ErrFallbackToCPU) {
			Logger().Warn("g3d: GPU frame failed, falling back to CPU", "accelerator", a.Name(), "err", err)
		}
		return "", false
	}
	return a.Name(), true
}

func (p *Pipeline) renderCPU(transforms []InstanceTransform) RasterStats {
	d := p.dispatch
	p.fb.clear(d)
	VertexStage(d, p.scene.Vertices(), p.scene.Indices(), transforms, p.verts, p.indices)
	AssembleStage(d, p.verts, p.indices, p.prims)
	rs := RasterStage(d, p.prims, p.fb, p.opts.policy, p.opts.margin)
	ShadeStage(d, p.fb, p.opts.light)
	ResolveStage(d, p.fb, p.opts.filter)
	return rs
}

// Framebuffer returns the current framebuffer, or nil before the first
// Resize or frame.
func (p *Pipeline) Framebuffer() *Framebuffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fb
}

// Frame returns the number of frames rendered so far.
func (p *Pipeline) Frame() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame
}

// Stats returns statistics for the most recent frame.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Close releases every buffer and stops the workers. Close is safe to call
// multiple times.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.pool != nil {
		p.pool.Close()
	}
	p.scene = nil
	p.verts = nil
	p.indices = nil
	p.prims = nil
	p.fb = nil
	Logger().Debug("g3d: pipeline closed", "frames", p.frame)
	return nil
}
