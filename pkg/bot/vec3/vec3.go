// Package vec3 provides the 3D vector and axis-aligned bounding box types
// shared by the mesh model, the spatial index, and the shading code, so
// they agree on one arithmetic representation instead of each rolling its
// own.
package vec3

import "math"

// Vec3 is a point or vector in the caller's linear units.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Length() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns v scaled to unit length, or v unchanged if it is the
// zero vector.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

func (v Vec3) Negate() Vec3 { return Vec3{-v.X, -v.Y, -v.Z} }

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max Vec3
}

// FromPoint returns the degenerate box containing only p.
func FromPoint(p Vec3) AABB { return AABB{Min: p, Max: p} }

// UnionPoint returns the smallest box containing b and p.
func (b AABB) UnionPoint(p Vec3) AABB {
	return AABB{
		Min: Vec3{math.Min(b.Min.X, p.X), math.Min(b.Min.Y, p.Y), math.Min(b.Min.Z, p.Z)},
		Max: Vec3{math.Max(b.Max.X, p.X), math.Max(b.Max.Y, p.Y), math.Max(b.Max.Z, p.Z)},
	}
}

// Union returns the smallest box containing both b and o.
func (b AABB) Union(o AABB) AABB {
	return b.UnionPoint(o.Min).UnionPoint(o.Max)
}

// Centroid returns the box's midpoint.
func (b AABB) Centroid() Vec3 {
	return Vec3{
		X: (b.Min.X + b.Max.X) / 2,
		Y: (b.Min.Y + b.Max.Y) / 2,
		Z: (b.Min.Z + b.Max.Z) / 2,
	}
}

// MaxExtentAxis returns the index (0=X, 1=Y, 2=Z) of the box's longest axis.
func (b AABB) MaxExtentAxis() int {
	ex := b.Max.X - b.Min.X
	ey := b.Max.Y - b.Min.Y
	ez := b.Max.Z - b.Min.Z
	if ex > ey && ex > ez {
		return 0
	}
	if ey > ez {
		return 1
	}
	return 2
}

// FromTriangle returns the bounding box of three points.
func FromTriangle(a, b, c Vec3) AABB {
	return FromPoint(a).UnionPoint(b).UnionPoint(c)
}

// Centroid3 returns the arithmetic mean of three points.
func Centroid3(a, b, c Vec3) Vec3 {
	return Vec3{
		X: (a.X + b.X + c.X) / 3,
		Y: (a.Y + b.Y + c.Y) / 3,
		Z: (a.Z + b.Z + c.Z) / 3,
	}
}
