package g3d

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Placement positions one mesh instance in the world.
// A zero Scale is treated as unit scale and a zero Axis as +Y.
type Placement struct {
	Translation mgl32.Vec3
	Axis        mgl32.Vec3
	Angle       float32
	Scale       mgl32.Vec3
}

// Model returns Translate * Rotate * Scale.
func (p Placement) Model() mgl32.Mat4 {
	scale := p.Scale
	if scale == (mgl32.Vec3{}) {
		scale = mgl32.Vec3{1, 1, 1}
	}
	axis := p.Axis
	if axis.Len() == 0 {
		axis = mgl32.Vec3{0, 1, 0}
	}
	return mgl32.Translate3D(p.Translation.X(), p.Translation.Y(), p.Translation.Z()).
		Mul4(mgl32.HomogRotate3D(p.Angle, axis.Normalize())).
		Mul4(mgl32.Scale3D(scale.X(), scale.Y(), scale.Z()))
}

// PlacementRule derives the placement of an instance for a frame.
// Rules must be deterministic in (instance, frame).
type PlacementRule func(instance int, frame uint64) Placement

// IdentityRule places every instance at the origin, unrotated.
func IdentityRule(int, uint64) Placement { return Placement{} }

// GridRule lays instances out on a square grid in the XY plane, centred on
// the origin, each rotated about +Y by an angle derived from its index.
func GridRule(count int, spacing float32) PlacementRule {
	side := int(math.Ceil(math.Sqrt(float64(max(count, 1)))))
	offset := float32(side-1) * spacing / 2
	return func(instance int, _ uint64) Placement {
		col, row := instance%side, instance/side
		return Placement{
			Translation: mgl32.Vec3{float32(col)*spacing - offset, offset - float32(row)*spacing, 0},
			Axis:        mgl32.Vec3{0, 1, 0},
			Angle:       float32(instance) * math.Pi / 8,
		}
	}
}

// SpinRule wraps a rule so every instance additionally spins about +Y by
// radiansPerFrame each frame.
func SpinRule(base PlacementRule, radiansPerFrame float32) PlacementRule {
	return func(instance int, frame uint64) Placement {
		p := base(instance, frame)
		if p.Axis.Len() == 0 {
			p.Axis = mgl32.Vec3{0, 1, 0}
		}
		p.Angle += radiansPerFrame * float32(frame)
		return p
	}
}

// InstanceTransform holds the per-instance matrices consumed by the vertex
// stage.
type InstanceTransform struct {
	Model mgl32.Mat4
	MVP   mgl32.Mat4

	// Normal is the inverse-transpose of Model's upper-left 3x3, so normals
	// stay perpendicular to surfaces under non-uniform scale.
	Normal mgl32.Mat3
}

// NewInstanceTransform computes the matrices for one placement under a
// view-projection matrix.
func NewInstanceTransform(viewProj mgl32.Mat4, p Placement) InstanceTransform {
	model := p.Model()
	return InstanceTransform{
		Model:  model,
		MVP:    viewProj.Mul4(model),
		Normal: normalMatrix(model),
	}
}

// BuildInstanceTransforms computes one InstanceTransform per placement.
func BuildInstanceTransforms(cam Camera, placements []Placement) []InstanceTransform {
	viewProj := cam.ViewProjection()
	out := make([]InstanceTransform, len(placements))
	for k, p := range placements {
		out[k] = NewInstanceTransform(viewProj, p)
	}
	return out
}

// Placements evaluates rule for instances [0, count) at frame.
func Placements(rule PlacementRule, count int, frame uint64) []Placement {
	if rule == nil {
		rule = IdentityRule
	}
	out := make([]Placement, count)
	for k := range out {
		out[k] = rule(k, frame)
	}
	return out
}

// normalMatrix returns the inverse-transpose of m's linear part. A singular
// model (zero scale on an axis) yields the zero matrix, which collapses
// normals to zero and leaves those fragments unlit.
func normalMatrix(m mgl32.Mat4) mgl32.Mat3 {
	return m.Mat3().Inv().Transpose()
}
