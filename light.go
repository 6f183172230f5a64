package g3d

import "github.com/go-gl/mathgl/mgl32"

// LightKind selects how the light direction is derived for a fragment.
type LightKind uint8

const (
	// PointLight radiates from Position.
	PointLight LightKind = iota

	// DirectionalLight shines along Direction everywhere.
	DirectionalLight
)

// String returns the light kind name.
func (k LightKind) String() string {
	switch k {
	case PointLight:
		return "point"
	case DirectionalLight:
		return "directional"
	default:
		return "unknown"
	}
}

// Light is the single light of a frame. Intensity is fixed at 1.0.
type Light struct {
	Kind      LightKind
	Position  mgl32.Vec3
	Direction mgl32.Vec3
}

// DefaultLight returns a point light in front of the origin on +Z.
func DefaultLight() Light {
	return Light{Kind: PointLight, Position: mgl32.Vec3{0, 0, 5}}
}

// directionTo returns the normalized light-to-surface direction for a
// surface point. A zero vector means the direction is undefined.
func (l Light) directionTo(surface mgl32.Vec3) mgl32.Vec3 {
	var d mgl32.Vec3
	if l.Kind == DirectionalLight {
		d = l.Direction
	} else {
		d = surface.Sub(l.Position)
	}
	return normalizeOrZero(d)
}

// normalizeOrZero normalizes v, mapping zero-length vectors to zero instead
// of NaN.
func normalizeOrZero(v mgl32.Vec3) mgl32.Vec3 {
	n := v.Len()
	if n == 0 {
		return mgl32.Vec3{}
	}
	return v.Mul(1 / n)
}
