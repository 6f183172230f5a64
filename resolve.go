package g3d

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/g3d/internal/parallel"
)

// Filter supplies the reconstruction weights used to resolve an S x S block
// of samples into one pixel.
type Filter interface {
	// Weights returns s*s weights in row-major order summing to 1.
	Weights(s int) []float32
}

// BoxFilter weights every sample of a pixel equally.
type BoxFilter struct{}

// Weights returns s*s copies of 1/s².
func (BoxFilter) Weights(s int) []float32 {
	w := make([]float32, s*s)
	v := 1 / float32(s*s)
	for i := range w {
		w[i] = v
	}
	return w
}

// TentFilter weights samples by a separable tent centred on the pixel, so
// samples near the pixel centre count more than those at its edges.
type TentFilter struct{}

// Weights returns normalized tent weights.
func (TentFilter) Weights(s int) []float32 {
	axis := make([]float32, s)
	var sum float32
	for i := range axis {
		// Offset of the sample centre from the pixel centre, in [-0.5, 0.5].
		d := (float32(i)+0.5)/float32(s) - 0.5
		axis[i] = 1 - abs32(d)
		sum += axis[i]
	}
	w := make([]float32, s*s)
	for j := range s {
		for i := range s {
			w[j*s+i] = axis[i] * axis[j] / (sum * sum)
		}
	}
	return w
}

// ResolveStage averages each pixel's samples into fb's color buffer using
// the filter weights. One work item handles one pixel.
func ResolveStage(d *parallel.Dispatcher, fb *Framebuffer, filter Filter) {
	ss := fb.ss
	var weights []float32
	if filter != nil {
		weights = filter.Weights(ss)
	}
	if len(weights) != ss*ss {
		weights = BoxFilter{}.Weights(ss)
	}

	gridW := fb.width * ss
	d.Run(len(fb.color), func(lo, hi int) {
		for px := lo; px < hi; px++ {
			x, y := px%fb.width, px/fb.width
			var acc mgl32.Vec3
			for sj := range ss {
				row := (y*ss + sj) * gridW
				for si := range ss {
					c := fb.samples[row+x*ss+si].loadVec3(attrColor)
					acc = acc.Add(c.Mul(weights[sj*ss+si]))
				}
			}
			fb.color[px] = acc
		}
	})
}
