// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// DeviceHandle provides GPU device access from the host application.
//
// The host (e.g., gogpu.App) implements DeviceHandle and passes it to g3d.
// The GPU accelerator may share the device; presentation uses its surface
// format to lay out pixels.
//
// DeviceHandle is an alias for gpucontext.DeviceProvider, providing a
// g3d-specific name for the interface while maintaining full compatibility
// with the gpucontext ecosystem.
type DeviceHandle = gpucontext.DeviceProvider

// NullDeviceHandle is a DeviceHandle that provides nil implementations.
// Used for CPU-only rendering where no GPU is available.
type NullDeviceHandle struct{}

// Device returns nil for the null device.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns undefined format for the null device.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// Ensure NullDeviceHandle implements DeviceHandle.
var _ DeviceHandle = NullDeviceHandle{}

// PreferredFormat returns the host's surface format if presentation
// supports it, and RGBA8Unorm otherwise.
func PreferredFormat(h DeviceHandle) gputypes.TextureFormat {
	if h == nil {
		return gputypes.TextureFormatRGBA8Unorm
	}
	if f := h.SurfaceFormat(); SupportedFormat(f) {
		return f
	}
	return gputypes.TextureFormatRGBA8Unorm
}
