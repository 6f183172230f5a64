package g3d

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/g3d/internal/parallel"
)

// wEpsilon is the smallest clip-space w accepted by the perspective divide.
// Vertices at or behind the eye plane (w <= wEpsilon) are marked degenerate.
const wEpsilon = 1e-6

// TransformedVertex is a vertex after the vertex stage.
type TransformedVertex struct {
	// Object is the untransformed object-space position.
	Object mgl32.Vec3

	// World is the position after the instance model matrix.
	World mgl32.Vec3

	// NDC is the post-divide position. Degenerate vertices hold +Inf.
	NDC mgl32.Vec3

	// W is the clip-space w before the divide.
	W float32

	Normal mgl32.Vec3
	Color  mgl32.Vec3
}

// Degenerate reports whether the vertex failed the perspective divide.
func (v *TransformedVertex) Degenerate() bool {
	return v.W <= wEpsilon
}

var degenerateNDC = mgl32.Vec3{
	float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1)),
}

// TransformVertex runs one input vertex through one instance transform.
func TransformVertex(in Vertex, xf *InstanceTransform) TransformedVertex {
	pos := in.Position.Vec4(1)
	clip := xf.MVP.Mul4x1(pos)
	out := TransformedVertex{
		Object: in.Position,
		World:  xf.Model.Mul4x1(pos).Vec3(),
		W:      clip.W(),
		Normal: normalizeOrZero(xf.Normal.Mul3x1(in.Normal)),
		Color:  in.Color,
	}
	if out.W <= wEpsilon {
		out.NDC = degenerateNDC
	} else {
		inv := 1 / out.W
		out.NDC = mgl32.Vec3{clip.X() * inv, clip.Y() * inv, clip.Z() * inv}
	}
	return out
}

// VertexStage transforms every input vertex for every instance.
//
// Instance k writes its vertices to slots [k*len(verts), (k+1)*len(verts))
// of outVerts, and its index copy, offset by k*len(verts), to
// [k*len(indices), (k+1)*len(indices)) of outIdx. One work item handles one
// input vertex across all instances; one work item handles one index entry.
func VertexStage(d *parallel.Dispatcher, verts []Vertex, indices []uint32,
	transforms []InstanceTransform, outVerts []TransformedVertex, outIdx []uint32) {
	nv, ni := len(verts), len(indices)

	d.ForEach(nv, func(i int) {
		in := verts[i]
		for k := range transforms {
			outVerts[i+k*nv] = TransformVertex(in, &transforms[k])
		}
	})

	d.ForEach(ni, func(i int) {
		idx := indices[i]
		for k := range transforms {
			outIdx[i+k*ni] = idx + uint32(k*nv)
		}
	})
}
