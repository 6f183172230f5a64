//go:build !nogpu

// Package gpu provides a Pure Go GPU implementation of the g3d pipeline.
//
// This is an internal package used by the g3d library for GPU rendering.
// It runs every frame stage as a WGSL compute shader through gogpu/wgpu/hal
// (zero CGO), on the Vulkan backend.
//
// # Kernels
//
// A frame is one command encoder holding one compute pass per kernel, so
// every stage observes the complete output of the previous one:
//
//	clear -> vertex -> assemble -> raster_depth -> raster_winner -> raster_write -> shade -> resolve
//
// The strict depth policy resolves the winner per sample in three passes:
// atomicMin on the depth key, then atomicMin on the primitive ID among
// primitives matching that key, then an attribute write by the winner only.
// The best-effort policy skips the first two and runs raster_write with an
// atomicMin-then-reload test.
//
// # Buffers
//
// Frame buffers are created on the first frame of a given layout (element
// counts and grid size) and reused until the layout changes. Inputs are
// re-uploaded every frame; only the resolved colors are read back.
package gpu
