// Package mesh generates procedural triangle meshes for g3d scenes.
package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/g3d"
)

// Mesh is an indexed triangle mesh with flat attribute arrays holding 3
// floats per vertex.
type Mesh struct {
	Positions []float32
	Normals   []float32
	Colors    []float32
	Indices   []uint32
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Positions) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Scene validates the mesh and converts it to a g3d scene.
func (m *Mesh) Scene() (*g3d.Scene, error) {
	return g3d.NewScene(m.Indices, m.Positions, m.Normals, m.Colors)
}

func (m *Mesh) add(pos, normal, color mgl32.Vec3) uint32 {
	idx := uint32(len(m.Positions) / 3)
	m.Positions = append(m.Positions, pos[0], pos[1], pos[2])
	m.Normals = append(m.Normals, normal[0], normal[1], normal[2])
	m.Colors = append(m.Colors, color[0], color[1], color[2])
	return idx
}

// Triangle returns a single triangle with a shared face normal.
func Triangle(a, b, c, color mgl32.Vec3) *Mesh {
	n := b.Sub(a).Cross(c.Sub(a)).Normalize()
	m := &Mesh{}
	m.Indices = append(m.Indices, m.add(a, n, color), m.add(b, n, color), m.add(c, n, color))
	return m
}

// Plane returns a size x size quad in the XY plane facing +Z.
func Plane(size float32, color mgl32.Vec3) *Mesh {
	h := size / 2
	n := mgl32.Vec3{0, 0, 1}
	m := &Mesh{}
	i0 := m.add(mgl32.Vec3{-h, -h, 0}, n, color)
	i1 := m.add(mgl32.Vec3{h, -h, 0}, n, color)
	i2 := m.add(mgl32.Vec3{h, h, 0}, n, color)
	i3 := m.add(mgl32.Vec3{-h, h, 0}, n, color)
	m.Indices = append(m.Indices, i0, i1, i2, i0, i2, i3)
	return m
}

// cubeFaces lists each face's normal and the two in-plane axes whose cross
// product is the normal.
var cubeFaces = [6][3]mgl32.Vec3{
	{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
	{{-1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
	{{0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
	{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
	{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
	{{0, 0, -1}, {-1, 0, 0}, {0, 1, 0}},
}

// Cube returns an axis-aligned cube centred on the origin with 4 vertices
// per face, so every face has a flat normal. colors supplies one color per
// face, cycled if shorter than 6; nil means white.
func Cube(size float32, colors ...mgl32.Vec3) *Mesh {
	if len(colors) == 0 {
		colors = []mgl32.Vec3{{1, 1, 1}}
	}
	h := size / 2
	m := &Mesh{}
	for f, face := range cubeFaces {
		n, u, v := face[0], face[1], face[2]
		c := colors[f%len(colors)]
		center := n.Mul(h)
		var idx [4]uint32
		for k, s := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			p := center.Add(u.Mul(s[0] * h)).Add(v.Mul(s[1] * h))
			idx[k] = m.add(p, n, c)
		}
		m.Indices = append(m.Indices, idx[0], idx[1], idx[2], idx[0], idx[2], idx[3])
	}
	return m
}

// Icosphere returns a unit-radius sphere built by subdividing an
// icosahedron. Each subdivision quadruples the triangle count.
func Icosphere(subdivisions int, color mgl32.Vec3) *Mesh {
	t := float32((1 + math.Sqrt(5)) / 2)
	points := []mgl32.Vec3{
		{-1, t, 0}, {1, t, 0}, {-1, -t, 0}, {1, -t, 0},
		{0, -1, t}, {0, 1, t}, {0, -1, -t}, {0, 1, -t},
		{t, 0, -1}, {t, 0, 1}, {-t, 0, -1}, {-t, 0, 1},
	}
	for i := range points {
		points[i] = points[i].Normalize()
	}
	faces := [][3]uint32{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}

	for range max(subdivisions, 0) {
		mid := make(map[[2]uint32]uint32)
		midpoint := func(a, b uint32) uint32 {
			key := [2]uint32{min(a, b), max(a, b)}
			if i, ok := mid[key]; ok {
				return i
			}
			i := uint32(len(points))
			points = append(points, points[a].Add(points[b]).Normalize())
			mid[key] = i
			return i
		}
		next := make([][3]uint32, 0, len(faces)*4)
		for _, f := range faces {
			ab, bc, ca := midpoint(f[0], f[1]), midpoint(f[1], f[2]), midpoint(f[2], f[0])
			next = append(next,
				[3]uint32{f[0], ab, ca},
				[3]uint32{f[1], bc, ab},
				[3]uint32{f[2], ca, bc},
				[3]uint32{ab, bc, ca})
		}
		faces = next
	}

	m := &Mesh{}
	for _, p := range points {
		m.add(p, p, color)
	}
	for _, f := range faces {
		m.Indices = append(m.Indices, f[0], f[1], f[2])
	}
	return m
}
