package bot

import "testing"

func TestValidateRejectsEmptyMesh(t *testing.T) {
	m := &Mesh{}
	err := m.validate()
	if err == nil {
		t.Fatal("expected an error for an empty mesh")
	}
	botErr, ok := err.(*Error)
	if !ok || botErr.Kind != Empty {
		t.Fatalf("got %v, want *Error{Kind: Empty}", err)
	}
}

func TestValidateRejectsOutOfRangeFaceIndex(t *testing.T) {
	m := &Mesh{
		Vertices: []Vec3{{}, {X: 1}, {Y: 1}},
		Faces:    []Face{{0, 1, 5}},
	}
	err := m.validate()
	botErr, ok := err.(*Error)
	if !ok || botErr.Kind != InvalidIndex {
		t.Fatalf("got %v, want *Error{Kind: InvalidIndex}", err)
	}
}

func TestValidateRejectsInconsistentPlateData(t *testing.T) {
	m := &Mesh{
		Vertices: []Vec3{{}, {X: 1}, {Y: 1}},
		Faces:    []Face{{0, 1, 2}},
		Mode:     Plate,
	}
	err := m.validate()
	botErr, ok := err.(*Error)
	if !ok || botErr.Kind != Inconsistent {
		t.Fatalf("got %v, want *Error{Kind: Inconsistent}", err)
	}
}

func TestNormalizeCWSwapsSecondAndThirdVertex(t *testing.T) {
	m := &Mesh{
		Vertices:    []Vec3{{}, {X: 1}, {Y: 1}},
		Faces:       []Face{{0, 1, 2}},
		FaceNormals: []Face{{0, 1, 2}},
		Orientation: CW,
	}
	m.normalizeCW()
	if m.Orientation != CCW {
		t.Fatalf("Orientation = %v, want CCW", m.Orientation)
	}
	if m.Faces[0] != (Face{0, 2, 1}) {
		t.Fatalf("Faces[0] = %v, want {0,2,1}", m.Faces[0])
	}
	if m.FaceNormals[0] != (Face{0, 2, 1}) {
		t.Fatalf("FaceNormals[0] = %v, want {0,2,1}", m.FaceNormals[0])
	}
}

func TestNormalizeCWNoopOnCCW(t *testing.T) {
	m := &Mesh{
		Vertices:    []Vec3{{}, {X: 1}, {Y: 1}},
		Faces:       []Face{{0, 1, 2}},
		Orientation: CCW,
	}
	m.normalizeCW()
	if m.Faces[0] != (Face{0, 1, 2}) {
		t.Fatalf("CCW mesh should be untouched, got %v", m.Faces[0])
	}
}

func TestBBoxNudgesZeroThicknessAxis(t *testing.T) {
	m := &Mesh{Vertices: []Vec3{{X: -1, Y: -1, Z: 0}, {X: 1, Y: 1, Z: 0}}}
	min, max := BBox(m, 0.01)
	if max.Z-min.Z != 0.02 {
		t.Fatalf("flat Z axis not nudged: min=%v max=%v", min, max)
	}
	if max.X-min.X != 2 || max.Y-min.Y != 2 {
		t.Fatalf("non-flat axes should be untouched: min=%v max=%v", min, max)
	}
}

func TestHasUsableSmoothNormals(t *testing.T) {
	m := &Mesh{
		Normals:     []Vec3{{X: 1}, {Y: 1}},
		FaceNormals: []Face{{0, 1, 5}},
		UseNormals:  true,
	}
	if m.hasUsableSmoothNormals(m.FaceNormals[0]) {
		t.Fatal("out-of-range normal index should be unusable")
	}
	m.FaceNormals[0] = Face{0, 1, 0}
	if !m.hasUsableSmoothNormals(m.FaceNormals[0]) {
		t.Fatal("in-range normal index should be usable")
	}
	m.UseNormals = false
	if m.hasUsableSmoothNormals(m.FaceNormals[0]) {
		t.Fatal("UseNormals=false should disable smoothing")
	}
}
