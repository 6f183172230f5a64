//go:build !nogpu

// Package gpu registers the wgpu compute accelerator for the g3d pipeline.
//
// Importing this package runs every pipeline stage as a WGSL compute
// kernel when a GPU is available. If GPU initialization fails (no Vulkan
// adapter), the accelerator stays registered but reports that it cannot
// accelerate, and frames render on the CPU.
//
// Usage:
//
//	import _ "github.com/gogpu/g3d/gpu" // enable GPU rasterization
package gpu

import (
	"github.com/gogpu/g3d"
	gpuimpl "github.com/gogpu/g3d/internal/gpu"
)

func init() {
	if err := g3d.RegisterAccelerator(&gpuimpl.RasterAccelerator{}); err != nil {
		g3d.Logger().Warn("GPU accelerator not available", "err", err)
	}
}

// SetDeviceProvider configures the GPU accelerator to use a shared GPU device
// from an external provider (e.g., gogpu). This avoids creating a separate
// GPU instance.
//
// The provider should be a gpucontext.DeviceProvider that also exposes
// HalDevice and HalQueue for direct HAL access.
func SetDeviceProvider(provider any) error {
	return g3d.SetAcceleratorDeviceProvider(provider)
}
