// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"image"
	"image/color"

	"github.com/gogpu/gputypes"
)

// RenderTarget defines where a presented frame goes.
//
// Targets expose CPU-accessible pixels in one of the formats reported by
// SupportedFormat, laid out row by row with the given Stride.
type RenderTarget interface {
	// Width returns the target width in pixels.
	Width() int

	// Height returns the target height in pixels.
	Height() int

	// Format returns the pixel format of the target.
	Format() gputypes.TextureFormat

	// Pixels returns direct access to pixel data, 4 bytes per pixel.
	Pixels() []byte

	// Stride returns the number of bytes per row.
	// This is typically Width * 4, but may include padding.
	Stride() int
}

// PixmapTarget is a CPU-backed render target using *image.RGBA.
//
// Example:
//
//	target := render.NewPixmapTarget(800, 600)
//	pipeline.Render(ctx, target, cam)
//	img := target.Image()
type PixmapTarget struct {
	img *image.RGBA
}

// NewPixmapTarget creates a new CPU-backed render target.
func NewPixmapTarget(width, height int) *PixmapTarget {
	return &PixmapTarget{
		img: image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// NewPixmapTargetFromImage wraps an existing *image.RGBA as a render target.
// The image is used directly without copying.
func NewPixmapTargetFromImage(img *image.RGBA) *PixmapTarget {
	return &PixmapTarget{img: img}
}

// Width returns the target width in pixels.
func (t *PixmapTarget) Width() int {
	return t.img.Bounds().Dx()
}

// Height returns the target height in pixels.
func (t *PixmapTarget) Height() int {
	return t.img.Bounds().Dy()
}

// Format returns the pixel format (RGBA8).
func (t *PixmapTarget) Format() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// Pixels returns direct access to the pixel data.
func (t *PixmapTarget) Pixels() []byte {
	return t.img.Pix
}

// Stride returns the number of bytes per row.
func (t *PixmapTarget) Stride() int {
	return t.img.Stride
}

// Image returns the underlying *image.RGBA.
// The returned image shares memory with the target.
func (t *PixmapTarget) Image() *image.RGBA {
	return t.img
}

// GetPixel returns the color at the given coordinates.
func (t *PixmapTarget) GetPixel(x, y int) color.Color {
	return t.img.At(x, y)
}

// Resize creates a new target with the given dimensions.
// The contents are not preserved.
func (t *PixmapTarget) Resize(width, height int) {
	t.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Ensure PixmapTarget implements RenderTarget.
var _ RenderTarget = (*PixmapTarget)(nil)

// BufferTarget is a tightly packed pixel buffer in an arbitrary supported
// format, typically the staging memory of a host surface.
type BufferTarget struct {
	width  int
	height int
	format gputypes.TextureFormat
	pix    []byte
}

// NewBufferTarget creates a buffer target. Unsupported formats fall back to
// RGBA8Unorm.
func NewBufferTarget(width, height int, format gputypes.TextureFormat) *BufferTarget {
	if !SupportedFormat(format) {
		format = gputypes.TextureFormatRGBA8Unorm
	}
	return &BufferTarget{
		width:  width,
		height: height,
		format: format,
		pix:    make([]byte, width*height*4),
	}
}

// NewProviderTarget creates a buffer target in the host's surface format.
func NewProviderTarget(h DeviceHandle, width, height int) *BufferTarget {
	return NewBufferTarget(width, height, PreferredFormat(h))
}

// Width returns the target width in pixels.
func (t *BufferTarget) Width() int { return t.width }

// Height returns the target height in pixels.
func (t *BufferTarget) Height() int { return t.height }

// Format returns the pixel format.
func (t *BufferTarget) Format() gputypes.TextureFormat { return t.format }

// Pixels returns the pixel buffer.
func (t *BufferTarget) Pixels() []byte { return t.pix }

// Stride returns Width * 4.
func (t *BufferTarget) Stride() int { return t.width * 4 }

// Ensure BufferTarget implements RenderTarget.
var _ RenderTarget = (*BufferTarget)(nil)
