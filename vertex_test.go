package g3d

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/g3d/internal/parallel"
)

func TestTransformVertex(t *testing.T) {
	cam := DefaultCamera(16, 16)
	xf := NewInstanceTransform(cam.ViewProjection(), Placement{Translation: mgl32.Vec3{0.5, 0, 0}})

	in := Vertex{
		Position: mgl32.Vec3{0.25, -0.5, 0.1},
		Normal:   mgl32.Vec3{0, 0, 3},
		Color:    mgl32.Vec3{0.2, 0.4, 0.6},
	}
	out := TransformVertex(in, &xf)

	clip := xf.MVP.Mul4x1(in.Position.Vec4(1))
	wantNDC := clip.Vec3().Mul(1 / clip.W())
	if !out.NDC.ApproxEqualThreshold(wantNDC, 1e-6) {
		t.Errorf("NDC = %v, want %v", out.NDC, wantNDC)
	}
	if out.W != clip.W() {
		t.Errorf("W = %g, want %g", out.W, clip.W())
	}
	if !out.World.ApproxEqual(mgl32.Vec3{0.75, -0.5, 0.1}) {
		t.Errorf("World = %v", out.World)
	}
	if out.Object != in.Position || out.Color != in.Color {
		t.Error("object position and color must pass through unchanged")
	}
	if !out.Normal.ApproxEqual(mgl32.Vec3{0, 0, 1}) {
		t.Errorf("Normal = %v, want unit +Z", out.Normal)
	}
	if out.Degenerate() {
		t.Error("vertex in front of the camera reported degenerate")
	}
}

func TestTransformVertex_BehindEye(t *testing.T) {
	cam := DefaultCamera(16, 16)
	xf := NewInstanceTransform(cam.ViewProjection(), Placement{})

	for _, z := range []float32{2, 3} {
		out := TransformVertex(Vertex{Position: mgl32.Vec3{0, 0, z}}, &xf)
		if !out.Degenerate() {
			t.Errorf("z=%g: W = %g, want degenerate", z, out.W)
		}
		if out.NDC != degenerateNDC {
			t.Errorf("z=%g: NDC = %v, want +Inf sentinel", z, out.NDC)
		}
	}
}

func TestVertexStage_InstanceLayout(t *testing.T) {
	verts := make([]Vertex, 300)
	for i := range verts {
		verts[i].Position = mgl32.Vec3{float32(i) / 300, 0, 0}
	}
	indices := make([]uint32, 900)
	for i := range indices {
		indices[i] = uint32(i % len(verts))
	}
	cam := DefaultCamera(8, 8)
	xfs := BuildInstanceTransforms(cam, Placements(GridRule(3, 1), 3, 0))

	pool := parallel.NewWorkerPool(4)
	defer pool.Close()
	d := parallel.NewDispatcher(pool)

	outVerts := make([]TransformedVertex, len(verts)*3)
	outIdx := make([]uint32, len(indices)*3)
	VertexStage(d, verts, indices, xfs, outVerts, outIdx)

	for k := range xfs {
		for i := range verts {
			want := TransformVertex(verts[i], &xfs[k])
			if outVerts[i+k*len(verts)] != want {
				t.Fatalf("instance %d vertex %d mismatch", k, i)
			}
		}
		for i, idx := range indices {
			if got, want := outIdx[i+k*len(indices)], idx+uint32(k*len(verts)); got != want {
				t.Fatalf("instance %d index %d = %d, want %d", k, i, got, want)
			}
		}
	}
}

func TestAssembleStage(t *testing.T) {
	verts := []TransformedVertex{
		{NDC: mgl32.Vec3{0, 0, 0}, W: 1},
		{NDC: mgl32.Vec3{1, 0, 0}, W: 1},
		{NDC: mgl32.Vec3{0, 1, 0}, W: 1},
		{NDC: degenerateNDC, W: 0},
	}
	indices := []uint32{2, 1, 0, 0, 3, 1}
	prims := make([]Primitive, 2)
	AssembleStage(nil, verts, indices, prims)

	if prims[0].ID != 0 || prims[1].ID != 1 {
		t.Errorf("IDs = %d, %d, want 0, 1", prims[0].ID, prims[1].ID)
	}
	if prims[0].NDC[0] != verts[2].NDC || prims[0].NDC[2] != verts[0].NDC {
		t.Error("primitive 0 does not follow index order")
	}
	if prims[0].Degenerate() {
		t.Error("primitive 0 should not be degenerate")
	}
	if !prims[1].Degenerate() {
		t.Error("primitive with a degenerate vertex should be degenerate")
	}
}
