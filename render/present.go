// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"
)

var (
	// ErrUnsupportedFormat is returned when a target's pixel format cannot
	// be written.
	ErrUnsupportedFormat = errors.New("render: unsupported target format")

	// ErrNoPixels is returned when a target exposes no CPU-accessible pixels.
	ErrNoPixels = errors.New("render: target has no pixel buffer")
)

// SupportedFormat reports whether Present can write the format.
func SupportedFormat(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		return true
	default:
		return false
	}
}

func isBGRA(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatBGRA8Unorm || f == gputypes.TextureFormatBGRA8UnormSrgb
}

// Present writes src into dst, converting to dst's format. If the sizes
// differ, src is scaled bilinearly to fill dst.
func Present(dst RenderTarget, src *image.RGBA) error {
	if dst == nil || src == nil {
		return errors.New("render: nil target or source")
	}
	f := dst.Format()
	if !SupportedFormat(f) {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, f)
	}
	w, h, stride := dst.Width(), dst.Height(), dst.Stride()
	pix := dst.Pixels()
	if pix == nil {
		return ErrNoPixels
	}
	if w <= 0 || h <= 0 {
		return nil
	}
	if stride < w*4 || len(pix) < (h-1)*stride+w*4 {
		return fmt.Errorf("render: target buffer too small for %dx%d (stride %d, len %d)", w, h, stride, len(pix))
	}

	if sb := src.Bounds(); sb.Dx() != w || sb.Dy() != h {
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, sb, draw.Src, nil)
		src = scaled
	}

	swap := isBGRA(f)
	origin := src.Bounds().Min
	for y := range h {
		srcRow := src.Pix[src.PixOffset(origin.X, origin.Y+y):][:w*4]
		dstRow := pix[y*stride:][:w*4]
		if !swap {
			copy(dstRow, srcRow)
			continue
		}
		for x := 0; x < w*4; x += 4 {
			dstRow[x+0] = srcRow[x+2]
			dstRow[x+1] = srcRow[x+1]
			dstRow[x+2] = srcRow[x+0]
			dstRow[x+3] = srcRow[x+3]
		}
	}
	return nil
}
