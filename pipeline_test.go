package g3d

import (
	"context"
	"errors"
	"image/color"
	"math"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/g3d/render"
)

// testTriangleScene returns one large triangle at object depth z facing
// +Z. Under DefaultCamera it maps to NDC (-1,-1), (1,-1), (0,1).
func testTriangleScene(t *testing.T, c mgl32.Vec3, z float32) *Scene {
	t.Helper()
	s, err := NewSceneFromVertices(triangleVerts(c, z, 2), []uint32{0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func triangleVerts(c mgl32.Vec3, z, size float32) []Vertex {
	n := mgl32.Vec3{0, 0, 1}
	return []Vertex{
		{Position: mgl32.Vec3{-size, -size, z}, Normal: n, Color: c},
		{Position: mgl32.Vec3{size, -size, z}, Normal: n, Color: c},
		{Position: mgl32.Vec3{0, size, z}, Normal: n, Color: c},
	}
}

// overlapScene builds many overlapping triangles at assorted depths.
func overlapScene(tb testing.TB, count int) *Scene {
	tb.Helper()
	var verts []Vertex
	var idx []uint32
	for k := range count {
		f := float32(k)
		cx := float32(math.Sin(float64(f)*0.7)) * 0.8
		cy := float32(math.Cos(float64(f)*1.3)) * 0.8
		z := float32(math.Sin(float64(f)*2.1)) * 0.5
		c := mgl32.Vec3{float32(k%3) / 2, float32(k%5) / 4, 1 - float32(k%7)/6}
		base := uint32(len(verts))
		for _, v := range triangleVerts(c, z, 0.6) {
			v.Position = v.Position.Add(mgl32.Vec3{cx, cy, 0})
			verts = append(verts, v)
		}
		idx = append(idx, base, base+1, base+2)
	}
	s, err := NewSceneFromVertices(verts, idx)
	if err != nil {
		tb.Fatal(err)
	}
	return s
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	if err := p.LoadScene(testTriangleScene(t, mgl32.Vec3{1, 0, 0}, 0)); err != nil {
		t.Fatalf("LoadScene() error = %v", err)
	}
	return p
}

func renderTestFrame(t *testing.T, p *Pipeline, cam Camera) *Framebuffer {
	t.Helper()
	fb, err := p.RenderFrame(context.Background(), cam)
	if err != nil {
		t.Fatalf("RenderFrame() error = %v", err)
	}
	return fb
}

func TestPipeline_SingleTriangle(t *testing.T) {
	p := newTestPipeline(t, WithCPUOnly())
	fb := renderTestFrame(t, p, DefaultCamera(8, 8))

	centre := fb.Color(3, 4)
	if centre.X() < 0.9 || centre.Y() != 0 || centre.Z() != 0 {
		t.Errorf("centre pixel = %v, want lit red", centre)
	}
	for _, px := range [][2]int{{0, 0}, {7, 0}} {
		if c := fb.Color(px[0], px[1]); c != (mgl32.Vec3{}) {
			t.Errorf("corner pixel %v = %v, want black", px, c)
		}
	}

	st := p.Stats()
	if st.Backend != BackendCPU || st.Frame != 0 {
		t.Errorf("Stats = %+v", st)
	}
	if st.Raster.Primitives != 1 || st.Raster.Covered == 0 || st.Raster.Covered != st.Raster.Written {
		t.Errorf("Raster stats = %+v", st.Raster)
	}
	if st.Samples != 16*16 {
		t.Errorf("Samples = %d, want 256", st.Samples)
	}
}

func TestPipeline_NearerTriangleWins(t *testing.T) {
	red, green := mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}
	near := triangleVerts(red, 0.5, 1)
	far := triangleVerts(green, -0.5, 2)

	for _, policy := range []DepthPolicy{DepthStrict, DepthBestEffort} {
		for _, order := range []string{"near-first", "far-first"} {
			t.Run(policy.String()+"/"+order, func(t *testing.T) {
				verts := append(append([]Vertex{}, near...), far...)
				idx := []uint32{0, 1, 2, 3, 4, 5}
				if order == "far-first" {
					idx = []uint32{3, 4, 5, 0, 1, 2}
				}
				s, err := NewSceneFromVertices(verts, idx)
				if err != nil {
					t.Fatal(err)
				}
				p, err := New(WithCPUOnly(), WithDepthPolicy(policy))
				if err != nil {
					t.Fatal(err)
				}
				defer p.Close()
				if err := p.LoadScene(s); err != nil {
					t.Fatal(err)
				}
				fb := renderTestFrame(t, p, DefaultCamera(16, 16))

				c := fb.Color(8, 9)
				if c.X() < 0.9 || c.Y() != 0 {
					t.Errorf("centre = %v, want the nearer red triangle", c)
				}
				// Only the far triangle reaches below the near one.
				if c := fb.Color(8, 14); c.Y() == 0 || c.X() != 0 {
					t.Errorf("lower centre = %v, want the far green triangle", c)
				}
			})
		}
	}
}

func TestPipeline_StrictIsDeterministic(t *testing.T) {
	scene := overlapScene(t, 600)
	cam := DefaultCamera(32, 24)

	var ref []Fragment
	for _, workers := range []int{1, 4, 4, 0} {
		p, err := New(WithCPUOnly(), WithWorkers(workers), WithSupersample(3))
		if err != nil {
			t.Fatal(err)
		}
		if err := p.LoadScene(scene); err != nil {
			t.Fatal(err)
		}
		fb := renderTestFrame(t, p, cam)

		gw, gh := fb.GridSize()
		got := make([]Fragment, 0, gw*gh)
		for j := range gh {
			for i := range gw {
				got = append(got, fb.Sample(i, j))
			}
		}
		p.Close()

		if ref == nil {
			ref = got
			continue
		}
		for i := range ref {
			if ref[i] != got[i] {
				t.Fatalf("workers=%d: sample %d = %+v, want %+v", workers, i, got[i], ref[i])
			}
		}
	}
}

func TestPipeline_BestEffortKeepsMinimumDepth(t *testing.T) {
	scene := overlapScene(t, 600)
	cam := DefaultCamera(32, 24)

	keys := func(policy DepthPolicy) []uint32 {
		p, err := New(WithCPUOnly(), WithWorkers(4), WithDepthPolicy(policy))
		if err != nil {
			t.Fatal(err)
		}
		defer p.Close()
		if err := p.LoadScene(scene); err != nil {
			t.Fatal(err)
		}
		fb := renderTestFrame(t, p, cam)
		gw, gh := fb.GridSize()
		out := make([]uint32, 0, gw*gh)
		for j := range gh {
			for i := range gw {
				out = append(out, fb.DepthKey(i, j))
			}
		}
		return out
	}

	strict, best := keys(DepthStrict), keys(DepthBestEffort)
	for i := range strict {
		if strict[i] != best[i] {
			t.Fatalf("sample %d: best-effort key %d, strict key %d", i, best[i], strict[i])
		}
	}
}

func TestPipeline_Instances(t *testing.T) {
	p := newTestPipeline(t, WithCPUOnly(), WithInstances(4, GridRule(4, 3)))
	renderTestFrame(t, p, DefaultCamera(16, 16))

	st := p.Stats()
	if st.Vertices != 12 || st.Primitives != 4 {
		t.Errorf("Vertices=%d Primitives=%d, want 12 and 4", st.Vertices, st.Primitives)
	}
}

func TestPipeline_FrameCounterDrivesPlacement(t *testing.T) {
	var frames []uint64
	rule := func(_ int, frame uint64) Placement {
		frames = append(frames, frame)
		return Placement{}
	}
	p := newTestPipeline(t, WithCPUOnly(), WithInstances(1, rule))
	for range 3 {
		renderTestFrame(t, p, DefaultCamera(4, 4))
	}
	if p.Frame() != 3 {
		t.Errorf("Frame() = %d, want 3", p.Frame())
	}
	for i, f := range frames {
		if f != uint64(i) {
			t.Errorf("rule call %d saw frame %d", i, f)
		}
	}
}

func TestPipeline_AutoResize(t *testing.T) {
	p := newTestPipeline(t, WithCPUOnly())
	renderTestFrame(t, p, DefaultCamera(8, 8))
	fb := renderTestFrame(t, p, DefaultCamera(12, 6))
	if fb.Width() != 12 || fb.Height() != 6 {
		t.Errorf("framebuffer %dx%d, want 12x6", fb.Width(), fb.Height())
	}
}

func TestPipeline_Errors(t *testing.T) {
	t.Run("no scene", func(t *testing.T) {
		p, err := New()
		if err != nil {
			t.Fatal(err)
		}
		defer p.Close()
		if _, err := p.RenderFrame(context.Background(), DefaultCamera(4, 4)); !errors.Is(err, ErrNoScene) {
			t.Errorf("RenderFrame() = %v, want ErrNoScene", err)
		}
	})

	t.Run("closed", func(t *testing.T) {
		p := newTestPipeline(t)
		if err := p.Close(); err != nil {
			t.Fatal(err)
		}
		if err := p.Close(); err != nil {
			t.Errorf("second Close() = %v, want nil", err)
		}
		if _, err := p.RenderFrame(context.Background(), DefaultCamera(4, 4)); !errors.Is(err, ErrClosed) {
			t.Errorf("RenderFrame() = %v, want ErrClosed", err)
		}
		if err := p.Resize(4, 4); !errors.Is(err, ErrClosed) {
			t.Errorf("Resize() = %v, want ErrClosed", err)
		}
		if err := p.LoadScene(testTriangleScene(t, mgl32.Vec3{1, 1, 1}, 0)); !errors.Is(err, ErrClosed) {
			t.Errorf("LoadScene() = %v, want ErrClosed", err)
		}
	})

	t.Run("sample budget", func(t *testing.T) {
		p := newTestPipeline(t, WithMaxSamples(100))
		if _, err := p.RenderFrame(context.Background(), DefaultCamera(8, 8)); !errors.Is(err, ErrAllocation) {
			t.Errorf("RenderFrame() = %v, want ErrAllocation", err)
		}
	})

	t.Run("element budget", func(t *testing.T) {
		// 3 vertices across 2^20 instances is 3M elements, far below the
		// uint32 limit but above a 1M budget.
		p, err := New(WithInstances(1<<20, nil), WithMaxElements(1<<20))
		if err != nil {
			t.Fatal(err)
		}
		defer p.Close()
		if err := p.LoadScene(testTriangleScene(t, mgl32.Vec3{1, 1, 1}, 0)); !errors.Is(err, ErrAllocation) {
			t.Errorf("LoadScene() = %v, want ErrAllocation", err)
		}
		if _, err := p.RenderFrame(context.Background(), DefaultCamera(4, 4)); !errors.Is(err, ErrNoScene) {
			t.Errorf("RenderFrame() after failed load = %v, want ErrNoScene", err)
		}
	})

	t.Run("default element budget", func(t *testing.T) {
		p, err := New(WithInstances(DefaultMaxElements, nil))
		if err != nil {
			t.Fatal(err)
		}
		defer p.Close()
		if err := p.LoadScene(testTriangleScene(t, mgl32.Vec3{1, 1, 1}, 0)); !errors.Is(err, ErrAllocation) {
			t.Errorf("LoadScene() = %v, want ErrAllocation", err)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		p := newTestPipeline(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := p.RenderFrame(ctx, DefaultCamera(4, 4)); !errors.Is(err, context.Canceled) {
			t.Errorf("RenderFrame() = %v, want context.Canceled", err)
		}
		if p.Frame() != 0 {
			t.Error("canceled frame should not advance the counter")
		}
	})

	t.Run("invalid camera", func(t *testing.T) {
		p := newTestPipeline(t)
		if _, err := p.RenderFrame(context.Background(), DefaultCamera(0, 4)); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("RenderFrame() = %v, want ErrInvalidSize", err)
		}
	})

	t.Run("nil scene", func(t *testing.T) {
		p, err := New()
		if err != nil {
			t.Fatal(err)
		}
		defer p.Close()
		if err := p.LoadScene(nil); !errors.Is(err, ErrInvalidScene) {
			t.Errorf("LoadScene(nil) = %v, want ErrInvalidScene", err)
		}
	})
}

func TestPipeline_ResizeFailureKeepsFramebuffer(t *testing.T) {
	p := newTestPipeline(t, WithMaxSamples(1024))
	if err := p.Resize(8, 8); err != nil {
		t.Fatal(err)
	}
	if err := p.Resize(64, 64); !errors.Is(err, ErrAllocation) {
		t.Fatalf("Resize() = %v, want ErrAllocation", err)
	}
	if fb := p.Framebuffer(); fb == nil || fb.Width() != 8 {
		t.Error("failed Resize should keep the previous framebuffer")
	}
}

func TestPipeline_RenderToPixmapTarget(t *testing.T) {
	p := newTestPipeline(t, WithCPUOnly())
	target := render.NewPixmapTarget(8, 8)
	if err := p.Render(context.Background(), target, DefaultCamera(8, 8)); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	r, g, b, a := target.GetPixel(3, 4).RGBA()
	if r>>8 < 0xe0 || g != 0 || b != 0 || a != 0xffff {
		t.Errorf("centre pixel = %v, want opaque red", target.GetPixel(3, 4))
	}
	if got := target.GetPixel(0, 0); got != (color.RGBA{A: 0xff}) {
		t.Errorf("corner pixel = %v, want opaque black", got)
	}

	if err := p.Render(context.Background(), nil, DefaultCamera(8, 8)); err == nil {
		t.Error("Render(nil target) should fail")
	}
}

func TestPipeline_ConcurrentRenderPresentsOwnFrame(t *testing.T) {
	p := newTestPipeline(t, WithCPUOnly(), WithWorkers(2))

	facing := DefaultCamera(8, 8)
	away := DefaultCamera(8, 8)
	away.Target = mgl32.Vec3{0, 0, 4}

	const rounds = 50
	var wg sync.WaitGroup
	for _, tc := range []struct {
		name string
		cam  Camera
		lit  bool
	}{
		{"facing", facing, true},
		{"away", away, false},
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			target := render.NewPixmapTarget(8, 8)
			for n := range rounds {
				if err := p.Render(context.Background(), target, tc.cam); err != nil {
					t.Errorf("%s: Render() error = %v", tc.name, err)
					return
				}
				r, _, _, _ := target.GetPixel(3, 4).RGBA()
				if lit := r>>8 >= 0xe0; lit != tc.lit {
					t.Errorf("%s: round %d presented centre red = %d, want lit=%v", tc.name, n, r>>8, tc.lit)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := p.Frame(); got != 2*rounds {
		t.Errorf("Frame() = %d, want %d", got, 2*rounds)
	}
}

func TestPipeline_UnitTriangleFacingCamera(t *testing.T) {
	n := mgl32.Vec3{0, 0, 1}
	c := mgl32.Vec3{1, 1, 1}
	s, err := NewSceneFromVertices([]Vertex{
		{Position: mgl32.Vec3{-0.5, -0.5, -1}, Normal: n, Color: c},
		{Position: mgl32.Vec3{0.5, -0.5, -1}, Normal: n, Color: c},
		{Position: mgl32.Vec3{0, 0.5, -1}, Normal: n, Color: c},
	}, []uint32{0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(WithCPUOnly(), WithLight(Light{Kind: PointLight}))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if err := p.LoadScene(s); err != nil {
		t.Fatal(err)
	}

	cam := DefaultCamera(32, 32)
	cam.Eye = mgl32.Vec3{}
	cam.Target = mgl32.Vec3{0, 0, -1}
	fb := renderTestFrame(t, p, cam)

	var peak float32
	var px, py int
	for y := range 32 {
		for x := range 32 {
			if l := fb.Color(x, y).X(); l > peak {
				peak, px, py = l, x, y
			}
		}
	}
	if peak < 0.9 {
		t.Errorf("peak brightness = %g, want close to 1", peak)
	}
	// Centroid (0, -1/6, -1) projects to pixel (16, 18.7).
	if dx, dy := float64(px-16), float64(py)-18.7; math.Hypot(dx, dy) > 5 {
		t.Errorf("peak at (%d,%d), want near the triangle centre", px, py)
	}
	for _, corner := range [][2]int{{0, 0}, {31, 0}, {0, 31}, {31, 31}} {
		if c := fb.Color(corner[0], corner[1]); c != (mgl32.Vec3{}) {
			t.Errorf("pixel %v = %v, want zero outside the triangle", corner, c)
		}
	}
}
