package g3d

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is an input vertex in object space.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Color    mgl32.Vec3
}

// Scene is an immutable indexed triangle mesh shared by every instance.
//
// A Scene is validated on construction: the index count is a multiple of 3
// and every index lies in [0, len(Vertices)). Malformed input is rejected
// here so no stage ever sees an out-of-range index.
type Scene struct {
	vertices []Vertex
	indices  []uint32
}

// NewScene builds a scene from a flat index array and parallel attribute
// arrays holding 3 components per vertex.
func NewScene(indices []uint32, positions, normals, colors []float32) (*Scene, error) {
	if len(positions)%3 != 0 {
		return nil, fmt.Errorf("%w: %d position components is not a multiple of 3", ErrInvalidScene, len(positions))
	}
	if len(normals) != len(positions) || len(colors) != len(positions) {
		return nil, fmt.Errorf("%w: attribute lengths differ (positions=%d normals=%d colors=%d)",
			ErrInvalidScene, len(positions), len(normals), len(colors))
	}

	vertices := make([]Vertex, len(positions)/3)
	for i := range vertices {
		j := i * 3
		vertices[i] = Vertex{
			Position: mgl32.Vec3{positions[j], positions[j+1], positions[j+2]},
			Normal:   mgl32.Vec3{normals[j], normals[j+1], normals[j+2]},
			Color:    mgl32.Vec3{colors[j], colors[j+1], colors[j+2]},
		}
	}
	return NewSceneFromVertices(vertices, indices)
}

// NewSceneFromVertices builds a scene from vertex records. The slices are
// copied.
func NewSceneFromVertices(vertices []Vertex, indices []uint32) (*Scene, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, fmt.Errorf("%w: scene has %d vertices and %d indices", ErrInvalidScene, len(vertices), len(indices))
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: index count %d is not a multiple of 3", ErrInvalidScene, len(indices))
	}
	n := uint64(len(vertices))
	for i, idx := range indices {
		if uint64(idx) >= n {
			return nil, fmt.Errorf("%w: indices[%d] = %d, vertex count %d", ErrIndexOutOfRange, i, idx, n)
		}
	}

	return &Scene{
		vertices: append([]Vertex(nil), vertices...),
		indices:  append([]uint32(nil), indices...),
	}, nil
}

// Vertices returns the scene's vertices. The slice must not be modified.
func (s *Scene) Vertices() []Vertex { return s.vertices }

// Indices returns the scene's triangle indices. The slice must not be modified.
func (s *Scene) Indices() []uint32 { return s.indices }

// VertexCount returns the number of input vertices.
func (s *Scene) VertexCount() int { return len(s.vertices) }

// TriangleCount returns the number of triangles per instance.
func (s *Scene) TriangleCount() int { return len(s.indices) / 3 }
