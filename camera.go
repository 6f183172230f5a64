package g3d

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera describes the viewer for one frame.
//
// Width and Height are the output size in final pixels, not samples.
// FovY is the vertical field of view in radians. An Aspect of zero is
// derived from Width/Height.
type Camera struct {
	Eye    mgl32.Vec3
	Target mgl32.Vec3
	Up     mgl32.Vec3

	FovY   float32
	Aspect float32
	Near   float32
	Far    float32

	Width  int
	Height int
}

// DefaultCamera returns a camera at (0,0,2) looking down -Z with a 90°
// vertical field of view.
func DefaultCamera(width, height int) Camera {
	return Camera{
		Eye:    mgl32.Vec3{0, 0, 2},
		Target: mgl32.Vec3{0, 0, 0},
		Up:     mgl32.Vec3{0, 1, 0},
		FovY:   mgl32.DegToRad(90),
		Near:   0.1,
		Far:    100,
		Width:  width,
		Height: height,
	}
}

// AspectRatio returns the effective aspect ratio.
func (c Camera) AspectRatio() float32 {
	if c.Aspect > 0 {
		return c.Aspect
	}
	if c.Height <= 0 {
		return 1
	}
	return float32(c.Width) / float32(c.Height)
}

// View returns the world-to-eye matrix.
func (c Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye, c.Target, c.Up)
}

// Projection returns the eye-to-clip matrix. NDC z is -1 at the near plane
// and +1 at the far plane.
func (c Camera) Projection() mgl32.Mat4 {
	return mgl32.Perspective(c.FovY, c.AspectRatio(), c.Near, c.Far)
}

// ViewProjection returns Projection * View.
func (c Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}

// Validate reports whether the camera can drive a frame.
func (c Camera) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: camera output %dx%d", ErrInvalidSize, c.Width, c.Height)
	}
	if c.Near <= 0 || c.Far <= c.Near {
		return fmt.Errorf("g3d: camera near/far planes %g/%g are not ordered", c.Near, c.Far)
	}
	if c.FovY <= 0 {
		return fmt.Errorf("g3d: camera field of view %g must be positive", c.FovY)
	}
	if c.Eye.Sub(c.Target).Len() == 0 {
		return fmt.Errorf("g3d: camera eye and target coincide")
	}
	return nil
}
