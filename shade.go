package g3d

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/g3d/internal/parallel"
)

// ShadeFragment applies the diffuse term to one fragment color.
// Background fragments (exactly zero color) are returned unchanged. The
// absolute value of the cosine lights back faces as brightly as front
// faces.
func ShadeFragment(f *Fragment, light Light) mgl32.Vec3 {
	if f.Color == (mgl32.Vec3{}) {
		return f.Color
	}
	n := normalizeOrZero(f.Normal)
	l := light.directionTo(f.World)
	return f.Color.Mul(abs32(n.Dot(l)))
}

// ShadeStage lights every sample in place. One work item handles one
// sample.
func ShadeStage(d *parallel.Dispatcher, fb *Framebuffer, light Light) {
	d.Run(len(fb.samples), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			s := &fb.samples[i]
			c := s.loadVec3(attrColor)
			if c == (mgl32.Vec3{}) {
				continue
			}
			f := Fragment{
				Color:  c,
				Normal: s.loadVec3(attrNormal),
				World:  s.loadVec3(attrWorld),
			}
			s.storeVec3(attrColor, ShadeFragment(&f, light))
		}
	})
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
