// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render presents frames produced by g3d to their destination.
//
// The pipeline itself produces a floating-point color buffer. This package
// is the thin adapter that turns the converted 8-bit image into whatever
// the host expects: an *image.RGBA for offscreen use, or a byte buffer in
// the surface format of a host GPU context.
//
// # Key Principle
//
// g3d RECEIVES a device from the host application, it does NOT create one.
// DeviceHandle is an alias for gpucontext.DeviceProvider, so any gogpu host
// can hand its device to g3d and have frames delivered in its surface
// format.
//
// # RenderTarget Implementations
//
//   - PixmapTarget: CPU-backed *image.RGBA target
//   - BufferTarget: raw RGBA8 or BGRA8 pixels, e.g. a surface staging buffer
//
// # Usage
//
//	target := render.NewPixmapTarget(800, 600)
//	if err := pipeline.Render(ctx, target, cam); err != nil {
//	    return err
//	}
//	png.Encode(f, target.Image())
//
// Delivering to a host surface:
//
//	target := render.NewProviderTarget(app.DeviceProvider(), w, h)
//	pipeline.Render(ctx, target, cam)
//	upload(target.Pixels())
package render
