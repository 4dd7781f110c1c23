package scene

import "sync/atomic"

// GeometryKind identifies a geometry's source
type GeometryKind int

const (
	GeometryBox GeometryKind = iota
	GeometryCylinder
	GeometrySphere
	GeometryPlane
	GeometryImported
)

func (k GeometryKind) String() string {
	switch k {
	case GeometryBox:
		return "box"
	case GeometryCylinder:
		return "cylinder"
	case GeometrySphere:
		return "sphere"
	case GeometryPlane:
		return "plane"
	default:
		return "imported"
	}
}

// Geometry holds mesh shape data. Dispose releases it; a disposed geometry
// must not be rendered again.
type Geometry struct {
	Kind   GeometryKind
	Params []float64
	Bounds Box

	disposed atomic.Bool
}

// Dispose releases the geometry
func (g *Geometry) Dispose() {
	g.disposed.Store(true)
}

// Disposed reports whether Dispose was called
func (g *Geometry) Disposed() bool {
	return g.disposed.Load()
}

// Material is a standard surface material
type Material struct {
	Color             Color
	Emissive          Color
	EmissiveIntensity float64
	Roughness         float64
	Metalness         float64
	Transparent       bool
	Opacity           float64

	disposed atomic.Bool
}

func newMaterial(c Color) *Material {
	return &Material{Color: c, Roughness: 0.7, Metalness: 0.1, Opacity: 1}
}

// Dispose releases the material
func (m *Material) Dispose() {
	m.disposed.Store(true)
}

// Disposed reports whether Dispose was called
func (m *Material) Disposed() bool {
	return m.disposed.Load()
}

// Mesh is a geometry drawn with a material
type Mesh struct {
	Name          string
	Geometry      *Geometry
	Material      *Material
	Position      Vec3
	Rotation      Vec3
	Scale         Vec3
	CastShadow    bool
	ReceiveShadow bool
}

func newMesh(name string, g *Geometry, m *Material, pos Vec3) *Mesh {
	return &Mesh{Name: name, Geometry: g, Material: m, Position: pos, Scale: One}
}

// Node groups meshes and child nodes under one transform
type Node struct {
	Name     string
	Position Vec3
	Rotation Vec3
	Scale    Vec3
	Meshes   []*Mesh
	Children []*Node
}

// NewNode creates an empty node with identity scale
func NewNode(name string) *Node {
	return &Node{Name: name, Scale: One}
}

// Add appends meshes to the node
func (n *Node) Add(meshes ...*Mesh) {
	n.Meshes = append(n.Meshes, meshes...)
}

// Walk calls fn for every mesh in the subtree
func (n *Node) Walk(fn func(*Mesh)) {
	for _, m := range n.Meshes {
		fn(m)
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Dispose releases every geometry and material in the subtree
func (n *Node) Dispose() {
	n.Walk(func(m *Mesh) {
		if m.Geometry != nil {
			m.Geometry.Dispose()
		}
		if m.Material != nil {
			m.Material.Dispose()
		}
	})
}

// MeshCount returns the number of meshes in the subtree
func (n *Node) MeshCount() int {
	count := 0
	n.Walk(func(*Mesh) { count++ })
	return count
}

// Scene is the root collection of nodes. It is not safe for concurrent use;
// the Renderer serializes access.
type Scene struct {
	nodes []*Node
}

// Add puts a node in the scene
func (s *Scene) Add(n *Node) {
	s.nodes = append(s.nodes, n)
}

// Remove takes a node out of the scene. It reports whether n was present.
func (s *Scene) Remove(n *Node) bool {
	for i, existing := range s.nodes {
		if existing == n {
			s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
			return true
		}
	}
	return false
}

// Nodes returns the top-level nodes
func (s *Scene) Nodes() []*Node {
	return append([]*Node(nil), s.nodes...)
}

// MeshCount returns the number of meshes in the scene
func (s *Scene) MeshCount() int {
	count := 0
	for _, n := range s.nodes {
		count += n.MeshCount()
	}
	return count
}
