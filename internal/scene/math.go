// Package scene keeps a headless 3D scene for the digital twin: the avatar,
// its environment and a render loop that presents snapshots to a surface.
package scene

import (
	"fmt"
	"math"
)

// Vec3 is a point or direction in scene units
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v+o
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Scale returns v*s
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// One is the identity scale
var One = Vec3{1, 1, 1}

// Color is a 24-bit RGB color
type Color uint32

// Hex formats c as #rrggbb
func (c Color) Hex() string {
	return fmt.Sprintf("#%06x", uint32(c)&0xffffff)
}

// ColorFromRGB builds a Color from components in [0,1]
func ColorFromRGB(r, g, b float64) Color {
	ch := func(v float64) uint32 {
		return uint32(math.Round(math.Max(0, math.Min(1, v)) * 255))
	}
	return Color(ch(r)<<16 | ch(g)<<8 | ch(b))
}

// Box is an axis-aligned bounding box
type Box struct {
	Min, Max Vec3
	set      bool
}

// Extend grows b to include p
func (b *Box) Extend(p Vec3) {
	if !b.set {
		b.Min, b.Max, b.set = p, p, true
		return
	}
	b.Min = Vec3{math.Min(b.Min.X, p.X), math.Min(b.Min.Y, p.Y), math.Min(b.Min.Z, p.Z)}
	b.Max = Vec3{math.Max(b.Max.X, p.X), math.Max(b.Max.Y, p.Y), math.Max(b.Max.Z, p.Z)}
}

// Empty reports whether nothing was added to b
func (b Box) Empty() bool {
	return !b.set
}

// Size returns the extent on each axis
func (b Box) Size() Vec3 {
	return Vec3{b.Max.X - b.Min.X, b.Max.Y - b.Min.Y, b.Max.Z - b.Min.Z}
}

// Center returns the box midpoint
func (b Box) Center() Vec3 {
	return Vec3{(b.Min.X + b.Max.X) / 2, (b.Min.Y + b.Max.Y) / 2, (b.Min.Z + b.Max.Z) / 2}
}

// Size is a surface size in cells or pixels
type Size struct {
	Width, Height int
}

// Camera is a perspective camera looking at the avatar
type Camera struct {
	FOV      float64
	Aspect   float64
	Near     float64
	Far      float64
	Position Vec3
	Target   Vec3
}

func defaultCamera() Camera {
	return Camera{
		FOV:      45,
		Aspect:   1,
		Near:     0.1,
		Far:      1000,
		Position: Vec3{0, 1.6, 3},
		Target:   Vec3{0, 1, 0},
	}
}
