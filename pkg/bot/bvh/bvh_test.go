package bvh

import (
	"testing"

	"github.com/chazu/librt/pkg/bot/vec3"
)

func unitCubePrims() []Primitive {
	// Eight unit boxes arranged on a line along X, centroids at
	// 0,2,4,...,14 — enough to force several levels of the radix split.
	prims := make([]Primitive, 8)
	for i := range prims {
		x := float64(i) * 2
		prims[i] = Primitive{
			Bounds:   vec3.AABB{Min: vec3.Vec3{X: x}, Max: vec3.Vec3{X: x + 1, Y: 1, Z: 1}},
			Centroid: vec3.Vec3{X: x + 0.5, Y: 0.5, Z: 0.5},
		}
	}
	return prims
}

func TestBuildEmpty(t *testing.T) {
	flat, ordered := Build(nil, 8)
	if flat != nil || ordered != nil {
		t.Fatalf("expected nil, nil for empty input, got %v, %v", flat, ordered)
	}
}

func TestBuildOrderedIsPermutation(t *testing.T) {
	prims := unitCubePrims()
	_, ordered := Build(prims, 2)
	if len(ordered) != len(prims) {
		t.Fatalf("ordered has %d entries, want %d", len(ordered), len(prims))
	}
	seen := make(map[int]bool)
	for _, idx := range ordered {
		if idx < 0 || idx >= len(prims) {
			t.Fatalf("ordered index %d out of range", idx)
		}
		if seen[idx] {
			t.Fatalf("ordered index %d repeated", idx)
		}
		seen[idx] = true
	}
}

func TestBuildLeavesRespectMaxPrims(t *testing.T) {
	prims := unitCubePrims()
	flat, _ := Build(prims, 2)
	for i := range flat {
		n := &flat[i]
		if n.IsLeaf() && n.NPrimitives > 2 {
			t.Errorf("leaf %d has %d primitives, want <= 2", i, n.NPrimitives)
		}
	}
}

func TestBuildSingleLeafWhenMaxCoversAll(t *testing.T) {
	prims := unitCubePrims()
	flat, ordered := Build(prims, len(prims))
	if len(flat) != 1 {
		t.Fatalf("expected a single root leaf, got %d nodes", len(flat))
	}
	if !flat[0].IsLeaf() || flat[0].NPrimitives != len(prims) {
		t.Fatalf("root is not a single leaf covering all primitives: %+v", flat[0])
	}
	if len(ordered) != len(prims) {
		t.Fatalf("ordered length %d, want %d", len(ordered), len(prims))
	}
}

func TestRootBoundsCoverAllPrimitives(t *testing.T) {
	prims := unitCubePrims()
	flat, _ := Build(prims, 2)
	root := flat[0].Bounds
	for _, p := range prims {
		if p.Bounds.Min.X < root.Min.X || p.Bounds.Max.X > root.Max.X {
			t.Fatalf("root bounds %+v do not cover primitive bounds %+v", root, p.Bounds)
		}
	}
}

func TestTraverseVisitsAllPrimitivesAlongHitRay(t *testing.T) {
	prims := unitCubePrims()
	flat, ordered := Build(prims, 2)

	visited := make(map[int]bool)
	Traverse(flat, vec3.Vec3{X: -5, Y: 0.5, Z: 0.5}, vec3.Vec3{X: 1, Y: 0, Z: 0}, func(first, n int) {
		for i := 0; i < n; i++ {
			visited[ordered[first+i]] = true
		}
	})

	for i := range prims {
		if !visited[i] {
			t.Errorf("primitive %d not visited by a ray that passes through its box", i)
		}
	}
}

func TestTraverseMissesDisjointRay(t *testing.T) {
	prims := unitCubePrims()
	flat, _ := Build(prims, 2)

	calls := 0
	Traverse(flat, vec3.Vec3{X: -5, Y: 100, Z: 100}, vec3.Vec3{X: 1, Y: 0, Z: 0}, func(first, n int) {
		calls++
	})
	if calls != 0 {
		t.Fatalf("expected no leaf visits for a disjoint ray, got %d", calls)
	}
}

func TestTraverseEmptyTree(t *testing.T) {
	// Must not panic.
	Traverse(nil, vec3.Vec3{}, vec3.Vec3{X: 1}, func(first, n int) {
		t.Fatal("visit should never be called on an empty tree")
	})
}

func TestStackOverflowIsRecoverable(t *testing.T) {
	defer func() {
		r := recover()
		if r != ErrStackOverflow {
			t.Fatalf("expected panic(ErrStackOverflow), got %v", r)
		}
	}()
	var s traverseStack
	for i := 0; i <= traverseStackSize; i++ {
		s.push(i)
	}
	t.Fatal("push should have panicked before reaching here")
}
