package scene

import "github.com/iksnae/hdt-console/internal"

// Role and stress band colors
const (
	ColorSoftwareEngineer Color = 0x4a90e2
	ColorOfficeWorker     Color = 0x50c878
	ColorFactoryWorker    Color = 0xff8c00
	ColorDefault          Color = 0x888888

	ColorCalm    Color = 0x4ade80
	ColorWarning Color = 0xfbbf24
	ColorAlert   Color = 0xef4444
)

// RoleColor returns the avatar color for a role
func RoleColor(role internal.Role) Color {
	switch role {
	case internal.RoleSoftwareEngineer:
		return ColorSoftwareEngineer
	case internal.RoleOfficeWorker:
		return ColorOfficeWorker
	case internal.RoleFactoryWorker:
		return ColorFactoryWorker
	}
	return ColorDefault
}

// BandColor returns the emissive color of a stress band
func BandColor(band internal.StressBand) Color {
	switch band {
	case internal.BandWarning:
		return ColorWarning
	case internal.BandAlert:
		return ColorAlert
	}
	return ColorCalm
}

// AvatarHeight is the height every avatar is normalized to
const AvatarHeight = 1.8

// fallbackAvatar builds a procedural humanoid colored by role: torso, head,
// four limbs and a translucent glow shell
func fallbackAvatar(role internal.Role) *Node {
	color := RoleColor(role)
	body := func() *Material { return newMaterial(color) }

	root := NewNode("fallback-avatar:" + string(role))
	root.Add(
		newMesh("torso", &Geometry{Kind: GeometryCylinder, Params: []float64{0.25, 0.3, 0.7}}, body(), Vec3{0, 1.15, 0}),
		newMesh("head", &Geometry{Kind: GeometrySphere, Params: []float64{0.18}}, body(), Vec3{0, 1.68, 0}),
		newMesh("arm-left", &Geometry{Kind: GeometryCylinder, Params: []float64{0.06, 0.06, 0.6}}, body(), Vec3{-0.35, 1.15, 0}),
		newMesh("arm-right", &Geometry{Kind: GeometryCylinder, Params: []float64{0.06, 0.06, 0.6}}, body(), Vec3{0.35, 1.15, 0}),
		newMesh("leg-left", &Geometry{Kind: GeometryCylinder, Params: []float64{0.08, 0.08, 0.8}}, body(), Vec3{-0.12, 0.4, 0}),
		newMesh("leg-right", &Geometry{Kind: GeometryCylinder, Params: []float64{0.08, 0.08, 0.8}}, body(), Vec3{0.12, 0.4, 0}),
	)

	glow := newMaterial(color)
	glow.Transparent = true
	glow.Opacity = 0.2
	glow.Emissive = color
	glow.EmissiveIntensity = internal.MinEmissiveIntensity
	root.Add(newMesh("glow", &Geometry{Kind: GeometrySphere, Params: []float64{1.1}}, glow, Vec3{0, 0.9, 0}))

	root.Walk(func(m *Mesh) {
		if m.Name != "glow" {
			m.CastShadow = true
		}
	})
	return root
}

// environmentPrimitives are the substitutes used without an environment
// loader: a floor plane and a desk block
func environmentPrimitives() []*Node {
	floor := NewNode("floor")
	floorMesh := newMesh("floor", &Geometry{Kind: GeometryPlane, Params: []float64{10, 10}}, newMaterial(0x3a3a3a), Vec3{})
	floorMesh.Rotation = Vec3{X: -1.5707963267948966}
	floorMesh.ReceiveShadow = true
	floor.Add(floorMesh)

	desk := NewNode("desk")
	deskMesh := newMesh("desk", &Geometry{Kind: GeometryBox, Params: []float64{1.4, 0.75, 0.7}}, newMaterial(0x8b5a2b), Vec3{0, 0.375, -0.9})
	deskMesh.CastShadow = true
	deskMesh.ReceiveShadow = true
	desk.Add(deskMesh)

	return []*Node{floor, desk}
}

// environmentPieces are the assets tried by an environment loader, with
// their placement next to the avatar
var environmentPieces = []struct {
	Name     string
	Position Vec3
}{
	{"chair", Vec3{0.6, 0, 0.2}},
	{"desk", Vec3{0, 0, -0.9}},
	{"monitor", Vec3{0, 0.75, -1.0}},
}
