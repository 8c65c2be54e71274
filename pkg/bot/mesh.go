// Package bot implements the Bag-of-Triangles mesh primitive: its data
// model, an HLBVH spatial index over its triangles, the ray/triangle
// intersection kernel, and the orientation/mode-aware segment synthesis
// that turns a ray's raw hits into ordered in/out solid segments.
package bot

import "github.com/chazu/librt/pkg/bot/vec3"

// Vec3 and AABB are shared with the spatial index and shading code so the
// whole package agrees on one vector representation.
type Vec3 = vec3.Vec3
type AABB = vec3.AABB

// Orientation describes the winding convention a mesh's faces follow.
type Orientation int

const (
	Unoriented Orientation = iota
	CCW
	CW
)

// Mode selects the surface semantics applied when turning raw hits into
// segments.
type Mode int

const (
	Surface Mode = iota
	Solid
	Plate
	PlateNoCos
)

// FaceMode is the per-face bit plate modes carry alongside thickness.
type FaceMode int

const (
	Centered FaceMode = iota
	Appended
)

// Face is a triangle, a triple of indices into a Mesh's Vertices.
type Face [3]int

// Mesh is the caller-built description of a bag-of-triangles solid. Prep
// consumes it to build a Prepped index; Mesh itself is never touched by a
// concurrent ray query.
type Mesh struct {
	Vertices []Vec3
	Faces    []Face

	Orientation Orientation
	Mode        Mode

	// Thickness and FaceModes are required (len == len(Faces)) when Mode is
	// Plate or PlateNoCos, and ignored otherwise.
	Thickness []float64
	FaceModes []FaceMode

	// Normals and FaceNormals are optional per-vertex smooth-normal data.
	// UseNormals gates whether Prep honors them even when present.
	Normals     []Vec3
	FaceNormals []Face
	UseNormals  bool

	// UVs and FaceUVs are an analogous optional per-vertex UV table. Only
	// UV reads it, interpolating it barycentrically at a hit (§4.G).
	UVs     [][2]float64
	FaceUVs []Face
}

// validate checks the structural invariants Prep requires before it will
// build an index over m. It does not check numeric degeneracy; that is a
// warn-and-skip concern handled during triangle precompute.
func (m *Mesh) validate() error {
	if len(m.Vertices) == 0 || len(m.Faces) == 0 {
		return newError(Empty, "mesh has %d vertices and %d faces", len(m.Vertices), len(m.Faces))
	}
	for i, f := range m.Faces {
		for _, vi := range f {
			if vi < 0 || vi >= len(m.Vertices) {
				return newError(InvalidIndex, "face %d references vertex index %d, have %d vertices", i, vi, len(m.Vertices))
			}
		}
	}
	if m.Mode == Plate || m.Mode == PlateNoCos {
		if len(m.Thickness) != len(m.Faces) || len(m.FaceModes) != len(m.Faces) {
			return newError(Inconsistent, "plate mesh has %d faces but %d thickness and %d face-mode entries",
				len(m.Faces), len(m.Thickness), len(m.FaceModes))
		}
	}
	return nil
}

// hasUsableSmoothNormals reports whether face f's normal-index triple is
// in range; an out-of-range triple causes that face's smooth normals to be
// dropped with a warning rather than failing Prep.
func (m *Mesh) hasUsableSmoothNormals(f Face) bool {
	if !m.UseNormals || len(m.Normals) == 0 || len(m.FaceNormals) == 0 {
		return false
	}
	for _, ni := range f {
		if ni < 0 || ni >= len(m.Normals) {
			return false
		}
	}
	return true
}

// normalizeCW rewrites a CW-declared mesh to CCW in place by swapping each
// face's 2nd and 3rd vertex (and, in lockstep, its normal and UV index
// triples so they still line up with the rewritten winding).
func (m *Mesh) normalizeCW() {
	if m.Orientation != CW {
		return
	}
	for i := range m.Faces {
		m.Faces[i][1], m.Faces[i][2] = m.Faces[i][2], m.Faces[i][1]
		if i < len(m.FaceNormals) {
			m.FaceNormals[i][1], m.FaceNormals[i][2] = m.FaceNormals[i][2], m.FaceNormals[i][1]
		}
		if i < len(m.FaceUVs) {
			m.FaceUVs[i][1], m.FaceUVs[i][2] = m.FaceUVs[i][2], m.FaceUVs[i][1]
		}
	}
	m.Orientation = CCW
}

// BBox returns the mesh's vertex bounding box, with zero-thickness axes
// nudged outward by tol so a flat mesh stays hittable (§4.A step 5).
func BBox(m *Mesh, tol float64) (min, max Vec3) {
	if len(m.Vertices) == 0 {
		return Vec3{}, Vec3{}
	}
	box := vec3.FromPoint(m.Vertices[0])
	for _, v := range m.Vertices[1:] {
		box = box.UnionPoint(v)
	}
	if box.Max.X-box.Min.X == 0 {
		box.Min.X -= tol
		box.Max.X += tol
	}
	if box.Max.Y-box.Min.Y == 0 {
		box.Min.Y -= tol
		box.Max.Y += tol
	}
	if box.Max.Z-box.Min.Z == 0 {
		box.Min.Z -= tol
		box.Max.Z += tol
	}
	return box.Min, box.Max
}
