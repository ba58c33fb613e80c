// Package mesh holds indexed triangle meshes and the value-keyed vertex
// deduplication used to build them.
package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is one shader input record. Field order matches the vertex input
// attribute locations 0, 1 and 2.
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

// Mesh is a deduplicated vertex list and the triangle list indexing it.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// Builder accumulates vertices, giving field-equal vertices a single slot.
// The zero value is ready to use.
type Builder struct {
	slots map[Vertex]uint32
	mesh  Mesh
}

// Add appends v to the index list, reusing the slot of an equal vertex when
// one was added before.
func (b *Builder) Add(v Vertex) uint32 {
	if b.slots == nil {
		b.slots = make(map[Vertex]uint32)
	}

	index, exists := b.slots[v]
	if !exists {
		index = uint32(len(b.mesh.Vertices))
		b.mesh.Vertices = append(b.mesh.Vertices, v)
		b.slots[v] = index
	}

	b.mesh.Indices = append(b.mesh.Indices, index)
	return index
}

// Mesh returns what has been built so far.
func (b *Builder) Mesh() Mesh {
	return b.mesh
}

// Deduplicate builds a mesh from a flat triangle-vertex list, three records
// per triangle.
func Deduplicate(triangles []Vertex) Mesh {
	var b Builder
	for _, v := range triangles {
		b.Add(v)
	}
	return b.Mesh()
}

// Reindex deduplicates an already indexed mesh. Applying it to its own output
// returns the same vertices and indices.
func Reindex(vertices []Vertex, indices []uint32) Mesh {
	var b Builder
	for _, index := range indices {
		b.Add(vertices[index])
	}
	return b.Mesh()
}

// Expand returns the flat triangle-vertex list the mesh describes.
func (m Mesh) Expand() []Vertex {
	out := make([]Vertex, 0, len(m.Indices))
	for _, index := range m.Indices {
		out = append(out, m.Vertices[index])
	}
	return out
}

// Empty reports whether the mesh has nothing to draw.
func (m Mesh) Empty() bool {
	return len(m.Indices) == 0
}
