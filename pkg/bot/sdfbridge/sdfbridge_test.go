package sdfbridge

import (
	"testing"

	"github.com/chazu/librt/pkg/bot"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func TestFromSDF3ProducesPreppableMesh(t *testing.T) {
	box, err := sdf.Box3D(v3.Vec{X: 2, Y: 2, Z: 2}, 0)
	if err != nil {
		t.Fatalf("sdf.Box3D: %v", err)
	}

	m, err := FromSDF3(box, 20, 1e-4)
	if err != nil {
		t.Fatalf("FromSDF3: %v", err)
	}
	if len(m.Faces) == 0 {
		t.Fatal("expected at least one triangle from marching cubes")
	}

	if _, err := bot.Prep(m, 1e-4); err != nil {
		t.Fatalf("Prep on tessellated mesh: %v", err)
	}
}

func TestFromSDF3DefaultsCellsWhenNonPositive(t *testing.T) {
	box, err := sdf.Box3D(v3.Vec{X: 1, Y: 1, Z: 1}, 0)
	if err != nil {
		t.Fatalf("sdf.Box3D: %v", err)
	}
	if _, err := FromSDF3(box, 0, 1e-4); err != nil {
		t.Fatalf("FromSDF3 with cells=0 should fall back to DefaultCells, got error: %v", err)
	}
}
