// Package g3d provides a data-parallel forward triangle rasterizer for Go.
//
// # Overview
//
// g3d turns an indexed triangle mesh, a camera and a light into a shaded
// color buffer every frame. It is the classic forward pipeline:
// instance transforms, vertex transform, primitive assembly, scan conversion
// with a depth test, per-fragment diffuse shading, supersample resolve and
// present. Every stage launches one logical work item per element (vertex,
// primitive, sample or pixel) on a work-stealing pool, with a full barrier
// between stages.
//
// # Quick Start
//
//	import "github.com/gogpu/g3d"
//
//	scene, err := g3d.NewScene(indices, positions, normals, colors)
//	p, err := g3d.New(g3d.WithSupersample(4))
//	defer p.Close()
//
//	p.LoadScene(scene)
//	target := render.NewPixmapTarget(800, 600)
//	err = p.Render(ctx, target, g3d.DefaultCamera(800, 600))
//
// # Depth Test
//
// Many primitives may cover the same sample concurrently. The depth key is
// a 32-bit fixed-point encoding of NDC z and the only field used to order
// writers. Two policies are available:
//   - DepthStrict (default): a two-pass resolve on (depth, primitive ID).
//     Attributes always belong to the winning primitive and frames are
//     bit-identical across runs.
//   - DepthBestEffort: atomic minimum then re-check. The key is exact but
//     attributes may come from a tied writer.
//
// # Coordinate System
//
//   - NDC x and y in [-1, 1], y up; NDC z is -1 at the near plane
//   - Sample row 0 and pixel row 0 are at the top of the image
//   - Supersample factor S gives S x S samples per output pixel
//
// # GPU Acceleration
//
// Importing github.com/gogpu/g3d/gpu registers a wgpu compute
// implementation of the stages. If no adapter is available, or the frame
// exceeds the device's buffer limits, rendering stays on the CPU.
package g3d

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
