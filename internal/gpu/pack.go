//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/g3d"
)

// Byte sizes of the host-shared WGSL structs.
const (
	paramsSize    = 80
	inVertexSize  = 48
	instanceSize  = 176
	outVertexSize = 64
	primSize      = 3 * outVertexSize
	sampleSize    = 48
	colorSize     = 16
)

// maxBindingSize is the WebGPU default maxStorageBufferBindingSize.
const maxBindingSize = 128 << 20

// frameLayout holds the element counts of one frame.
type frameLayout struct {
	vertexCount   uint32
	indexCount    uint32
	instanceCount uint32
	primCount     uint32
	ss            uint32
	gridW, gridH  uint32
	samples       uint32
	pixels        uint32
}

// newFrameLayout computes element counts and reports false when a buffer
// would exceed the binding size limit.
func newFrameLayout(in *g3d.FrameInput) (frameLayout, bool) {
	nv := uint64(len(in.Vertices))
	ni := uint64(len(in.Indices))
	k := uint64(len(in.Transforms))
	ss := uint64(in.Supersample)
	gw := uint64(in.Width) * ss
	gh := uint64(in.Height) * ss

	sizes := []uint64{
		nv * inVertexSize,
		k * instanceSize,
		nv * k * outVertexSize,
		ni * k * 4,
		ni * k / 3 * primSize,
		gw * gh * sampleSize,
		uint64(in.Width) * uint64(in.Height) * colorSize,
	}
	for _, s := range sizes {
		if s > maxBindingSize {
			return frameLayout{}, false
		}
	}
	if in.Width <= 0 || in.Height <= 0 || ss == 0 || nv == 0 || ni == 0 || k == 0 {
		return frameLayout{}, false
	}

	return frameLayout{
		vertexCount:   uint32(nv),
		indexCount:    uint32(ni),
		instanceCount: uint32(k),
		primCount:     uint32(ni * k / 3),
		ss:            uint32(ss),
		gridW:         uint32(gw),
		gridH:         uint32(gh),
		samples:       uint32(gw * gh),
		pixels:        uint32(in.Width * in.Height),
	}, true
}

type byteWriter struct {
	buf []byte
}

func (w *byteWriter) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *byteWriter) f32(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *byteWriter) vec4(v mgl32.Vec3, last float32) {
	w.f32(v[0])
	w.f32(v[1])
	w.f32(v[2])
	w.f32(last)
}

// mat4 writes a column-major 4x4 matrix.
func (w *byteWriter) mat4(m mgl32.Mat4) {
	for _, v := range m {
		w.f32(v)
	}
}

// mat3 writes a column-major 3x3 matrix with each column padded to 16
// bytes.
func (w *byteWriter) mat3(m mgl32.Mat3) {
	for c := range 3 {
		w.vec4(m.Col(c), 0)
	}
}

func packParams(in *g3d.FrameInput, l frameLayout) []byte {
	w := byteWriter{buf: make([]byte, 0, paramsSize)}
	policy := uint32(0)
	if in.Policy == g3d.DepthBestEffort {
		policy = 1
	}
	lightKind := uint32(0)
	if in.Light.Kind == g3d.DirectionalLight {
		lightKind = 1
	}
	for _, v := range []uint32{
		uint32(in.Width), uint32(in.Height), uint32(in.Supersample), l.gridW,
		l.gridH, l.vertexCount, l.indexCount, l.instanceCount,
		l.primCount, uint32(max(in.Margin, 0)), policy, lightKind,
	} {
		w.u32(v)
	}
	w.vec4(in.Light.Position, 1)
	w.vec4(in.Light.Direction, 0)
	return w.buf
}

func packVertices(verts []g3d.Vertex) []byte {
	w := byteWriter{buf: make([]byte, 0, len(verts)*inVertexSize)}
	for i := range verts {
		w.vec4(verts[i].Position, 1)
		w.vec4(verts[i].Normal, 0)
		w.vec4(verts[i].Color, 0)
	}
	return w.buf
}

func packInstances(xfs []g3d.InstanceTransform) []byte {
	w := byteWriter{buf: make([]byte, 0, len(xfs)*instanceSize)}
	for i := range xfs {
		w.mat4(xfs[i].MVP)
		w.mat4(xfs[i].Model)
		w.mat3(xfs[i].Normal)
	}
	return w.buf
}

func packU32s(vs []uint32) []byte {
	w := byteWriter{buf: make([]byte, 0, len(vs)*4)}
	for _, v := range vs {
		w.u32(v)
	}
	return w.buf
}

func packF32s(vs []float32) []byte {
	w := byteWriter{buf: make([]byte, 0, len(vs)*4)}
	for _, v := range vs {
		w.f32(v)
	}
	return w.buf
}

// unpackColors decodes vec4<f32> colors into out, dropping alpha.
func unpackColors(data []byte, out []mgl32.Vec3) {
	n := min(len(out), len(data)/colorSize)
	for i := range n {
		b := data[i*colorSize:]
		out[i] = mgl32.Vec3{
			math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
			math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
			math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
		}
	}
}
