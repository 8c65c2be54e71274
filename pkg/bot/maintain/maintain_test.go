package maintain

import (
	"testing"

	"github.com/chazu/librt/pkg/bot"
)

// twoTriMesh returns two CCW +Z-facing triangles sharing the edge (0,2),
// forming a unit square split along its diagonal.
func twoTriMesh() *bot.Mesh {
	return &bot.Mesh{
		Vertices: []bot.Vec3{
			{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
		},
		Faces:       []bot.Face{{0, 1, 2}, {0, 2, 3}},
		Orientation: bot.CCW,
		Mode:        bot.Solid,
	}
}

func TestFuseVerticesMergesNearDuplicates(t *testing.T) {
	m := &bot.Mesh{
		Vertices: []bot.Vec3{
			{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1},
			{X: 1 + 1e-9, Y: 1}, // near-duplicate of vertex 2
			{X: 0, Y: 1},
		},
		Faces:       []bot.Face{{0, 1, 2}, {0, 3, 4}},
		Orientation: bot.CCW,
		Mode:        bot.Solid,
	}
	FuseVertices(m, 1e-6)

	if len(m.Vertices) != 4 {
		t.Fatalf("got %d vertices, want 4 after fusing the near-duplicate", len(m.Vertices))
	}
	// Both faces must now reference the same vertex for the merged corner.
	if m.Faces[0][2] != m.Faces[1][1] {
		t.Fatalf("faces %v/%v do not share the fused vertex", m.Faces[0], m.Faces[1])
	}
}

func TestFuseVerticesLeavesDistinctVerticesAlone(t *testing.T) {
	m := twoTriMesh()
	before := len(m.Vertices)
	FuseVertices(m, 1e-9)
	if len(m.Vertices) != before {
		t.Fatalf("got %d vertices, want unchanged %d", len(m.Vertices), before)
	}
}

func TestCondenseDropsUnreferencedVertex(t *testing.T) {
	m := &bot.Mesh{
		Vertices: []bot.Vec3{{X: 0}, {X: 1}, {X: 2}, {X: 99}}, // vertex 3 unused
		Faces:    []bot.Face{{0, 1, 2}},
	}
	Condense(m)
	if len(m.Vertices) != 3 {
		t.Fatalf("got %d vertices, want 3", len(m.Vertices))
	}
	if m.Faces[0] != (bot.Face{0, 1, 2}) {
		t.Fatalf("face indices shifted unexpectedly: %v", m.Faces[0])
	}
}

func TestFuseFacesRemovesUnorientedPermutationDuplicate(t *testing.T) {
	m := &bot.Mesh{
		Vertices:    []bot.Vec3{{X: 0}, {X: 1}, {X: 2}},
		Faces:       []bot.Face{{0, 1, 2}, {1, 2, 0}}, // same triangle, rotated
		Orientation: bot.Unoriented,
		Mode:        bot.Solid,
	}
	FuseFaces(m)
	if len(m.Faces) != 1 {
		t.Fatalf("got %d faces, want 1 after fusing the permutation duplicate", len(m.Faces))
	}
}

func TestFuseFacesKeepsDistinctOrientedWindings(t *testing.T) {
	m := &bot.Mesh{
		Vertices:    []bot.Vec3{{X: 0}, {X: 1}, {X: 2}},
		Faces:       []bot.Face{{0, 1, 2}, {0, 2, 1}}, // opposite windings
		Orientation: bot.CCW,
		Mode:        bot.Solid,
	}
	FuseFaces(m)
	if len(m.Faces) != 2 {
		t.Fatalf("got %d faces, want 2: opposite windings are not duplicates for an oriented mesh", len(m.Faces))
	}
}

func TestFuseFacesRequiresMatchingPlateData(t *testing.T) {
	m := &bot.Mesh{
		Vertices:    []bot.Vec3{{X: 0}, {X: 1}, {X: 2}},
		Faces:       []bot.Face{{0, 1, 2}, {0, 1, 2}},
		Orientation: bot.CCW,
		Mode:        bot.Plate,
		Thickness:   []float64{1, 2},
		FaceModes:   []bot.FaceMode{bot.Centered, bot.Centered},
	}
	FuseFaces(m)
	if len(m.Faces) != 2 {
		t.Fatalf("got %d faces, want 2: differing thickness must not be fused away", len(m.Faces))
	}
}

func TestReorderFacesIsAPermutation(t *testing.T) {
	m := twoTriMesh()
	orig := append([]bot.Face(nil), m.Faces...)
	ReorderFaces(m, 2)
	if len(m.Faces) != len(orig) {
		t.Fatalf("got %d faces, want %d", len(m.Faces), len(orig))
	}
	seen := make(map[bot.Face]bool)
	for _, f := range m.Faces {
		seen[f] = true
	}
	for _, f := range orig {
		if !seen[f] {
			t.Fatalf("face %v lost during reorder", f)
		}
	}
}

func TestFlipIsInvolution(t *testing.T) {
	m := twoTriMesh()
	orig := append([]bot.Face(nil), m.Faces...)
	Flip(m)
	for i, f := range m.Faces {
		if f == orig[i] {
			t.Fatalf("face %d unchanged after one flip: %v", i, f)
		}
	}
	Flip(m)
	for i, f := range m.Faces {
		if f != orig[i] {
			t.Fatalf("flip twice should be the identity, got %v want %v", f, orig[i])
		}
	}
}

func TestDecimateLeavesMeshWithoutShortEdgesUnchanged(t *testing.T) {
	// A flat quad split along its diagonal (0,2), all points coplanar (Z=0).
	// The only edge shared by two faces is that diagonal, far longer than
	// minEdgeLen; vertex 4 is referenced by no face.
	m := &bot.Mesh{
		Vertices: []bot.Vec3{
			{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10},
			{X: 5, Y: 5 + 1e-7}, // near-duplicate of an interior split point
		},
		Faces:       []bot.Face{{0, 1, 2}, {0, 2, 3}},
		Orientation: bot.CCW,
		Mode:        bot.Solid,
	}
	beforeFaces := len(m.Faces)
	Decimate(m, 1e-3, 0.5, 1e-9)
	// Nothing here shares an edge with use-count 2 below minEdgeLen, so this
	// should be a no-op; Decimate must not corrupt a mesh with nothing to do.
	if len(m.Faces) != beforeFaces {
		t.Fatalf("got %d faces, want unchanged %d", len(m.Faces), beforeFaces)
	}
}

func TestSyncFlipsDisagreeingNeighbor(t *testing.T) {
	m := twoTriMesh()
	// Face 0 is (0,1,2): it traverses its shared edge with face 1 as 2->0.
	// Swapping face 1's first two vertices ({0,2,3} -> {2,0,3}) makes it
	// traverse that same edge 2->0 too, an orientation disagreement Sync
	// should repair.
	m.Faces[1][0], m.Faces[1][1] = m.Faces[1][1], m.Faces[1][0]

	if err := Sync(m); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !sharedEdgeOppositeDirectionNow(m) {
		t.Fatalf("faces %v/%v still disagree after Sync", m.Faces[0], m.Faces[1])
	}
}

func sharedEdgeOppositeDirectionNow(m *bot.Mesh) bool {
	_, faceOf := buildEdgeTable(m)
	return !sharedEdgeSameDirection(m, faceOf, 0, 1)
}

func TestSplitSeparatesDisjointComponents(t *testing.T) {
	m := &bot.Mesh{
		Vertices: []bot.Vec3{
			{X: 0}, {X: 1}, {X: 2}, // component A
			{X: 100}, {X: 101}, {X: 102}, // component B, no shared vertices or edges
		},
		Faces:       []bot.Face{{0, 1, 2}, {3, 4, 5}},
		Orientation: bot.CCW,
		Mode:        bot.Solid,
	}
	parts := Split(m)
	if len(parts) != 2 {
		t.Fatalf("got %d components, want 2", len(parts))
	}
	for _, p := range parts {
		if len(p.Faces) != 1 {
			t.Fatalf("each component should keep exactly one face, got %d", len(p.Faces))
		}
	}
}

func TestInsideOutDetectsOutwardCube(t *testing.T) {
	m := unitCube()
	cls, err := InsideOut(m, 1e-6)
	if err != nil {
		t.Fatalf("InsideOut: %v", err)
	}
	if cls != Normal {
		t.Fatalf("got %v, want Normal for an outward-wound cube", cls)
	}
}

func TestInsideOutDetectsFlippedCube(t *testing.T) {
	m := unitCube()
	Flip(m)
	cls, err := InsideOut(m, 1e-6)
	if err != nil {
		t.Fatalf("InsideOut: %v", err)
	}
	if cls != Flipped {
		t.Fatalf("got %v, want Flipped after reversing every face's winding", cls)
	}
}

func unitCube() *bot.Mesh {
	v := []bot.Vec3{
		{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}, {X: 1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: -1},
		{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: 1},
	}
	faces := []bot.Face{
		{0, 2, 1}, {0, 3, 2},
		{4, 5, 6}, {4, 6, 7},
		{0, 1, 5}, {0, 5, 4},
		{3, 6, 2}, {3, 7, 6},
		{0, 4, 7}, {0, 7, 3},
		{1, 6, 5}, {1, 2, 6},
	}
	return &bot.Mesh{Vertices: v, Faces: faces, Orientation: bot.CCW, Mode: bot.Solid}
}
