package g3d

import "errors"

var (
	// ErrInvalidScene reports malformed scene input: an index count not
	// divisible by 3, attribute arrays of mismatched length, or an empty scene.
	ErrInvalidScene = errors.New("g3d: invalid scene")

	// ErrIndexOutOfRange reports an index outside [0, vertexCount).
	ErrIndexOutOfRange = errors.New("g3d: index out of range")

	// ErrInvalidSize reports a non-positive framebuffer dimension or
	// supersample factor.
	ErrInvalidSize = errors.New("g3d: invalid size")

	// ErrAllocation reports that a buffer could not be sized: the request
	// exceeds the configured sample budget, overflows int, or the device
	// refused the allocation.
	ErrAllocation = errors.New("g3d: buffer allocation failed")

	// ErrNoScene is returned by Render before a scene has been loaded.
	ErrNoScene = errors.New("g3d: no scene loaded")

	// ErrClosed is returned by operations on a pipeline after Close.
	ErrClosed = errors.New("g3d: pipeline closed")

	// ErrFallbackToCPU indicates the GPU accelerator cannot run this frame.
	// The pipeline transparently falls back to the CPU stages.
	ErrFallbackToCPU = errors.New("g3d: falling back to CPU rendering")
)
