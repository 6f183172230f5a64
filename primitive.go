package g3d

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/g3d/internal/parallel"
)

// Primitive is an assembled triangle ready for scan conversion.
type Primitive struct {
	V [3]TransformedVertex

	// NDC duplicates V[i].NDC for the raster loop.
	NDC [3]mgl32.Vec3

	// ID is the primitive's slot, used to break depth ties.
	ID uint32
}

// Degenerate reports whether any vertex failed the perspective divide.
func (p *Primitive) Degenerate() bool {
	return p.V[0].Degenerate() || p.V[1].Degenerate() || p.V[2].Degenerate()
}

// AssembleStage gathers index triples into primitives. Primitive p reads
// indices[3p : 3p+3].
func AssembleStage(d *parallel.Dispatcher, verts []TransformedVertex, indices []uint32, out []Primitive) {
	d.ForEach(len(out), func(p int) {
		prim := &out[p]
		for c := range 3 {
			prim.V[c] = verts[indices[3*p+c]]
			prim.NDC[c] = prim.V[c].NDC
		}
		prim.ID = uint32(p)
	})
}
