// Package bvh builds and traverses a Hierarchical Linear Bounding Volume
// Hierarchy (HLBVH) over a caller-supplied set of primitive bounds and
// centroids. It knows nothing about triangles or rays as geometric objects
// beyond their bounding boxes; callers adapt their own primitive and ray
// types at the package boundary.
package bvh

import (
	"sort"

	"github.com/chazu/librt/pkg/bot/vec3"
)

// Primitive is one entry the builder indexes, identified implicitly by its
// position in the slice passed to Build.
type Primitive struct {
	Bounds   vec3.AABB
	Centroid vec3.Vec3
}

// FlatNode is the pre-order-serialized form of a build node, used for
// cache-friendly single-ray traversal.
type FlatNode struct {
	Bounds vec3.AABB

	// NPrimitives > 0 marks a leaf; FirstPrimOffset then indexes into the
	// ordered permutation returned alongside the flat array by Build.
	NPrimitives     int
	FirstPrimOffset int

	// SecondChildOffset is the index of the right child in the flat array.
	// The left child, for an interior node, is always the next slot.
	SecondChildOffset int
	SplitAxis         int
}

// IsLeaf reports whether n is a leaf node.
func (n *FlatNode) IsLeaf() bool { return n.NPrimitives > 0 }

type buildNode struct {
	bounds                       vec3.AABB
	left, right                  *buildNode
	firstPrimOffset, nPrimitives int
	splitAxis                    int
}

// arena owns every buildNode allocated during one construction. Nodes are
// appended by value and referenced by pointer into the backing slice;
// after Build flattens the tree it retains no pointer into the arena, so
// it becomes unreachable and is reclaimed by the garbage collector in one
// step, the Go equivalent of the design's single-lifetime arena release.
type arena struct {
	nodes []buildNode
}

func newArena(capacity int) *arena {
	return &arena{nodes: make([]buildNode, 0, capacity)}
}

func (a *arena) alloc() *buildNode {
	a.nodes = append(a.nodes, buildNode{})
	return &a.nodes[len(a.nodes)-1]
}

const mortonBits = 30
const mortonRes = 1 << (mortonBits / 3) // 1024 (10 bits/axis)

type mortonPrim struct {
	idx  int
	code uint32
}

// expandBits spaces out the low 10 bits of v so they occupy every third
// bit, the standard building block of a 3D Morton (Z-order) code.
func expandBits(v uint32) uint32 {
	v = (v * 0x00010001) & 0xFF0000FF
	v = (v * 0x00000101) & 0x0F00F00F
	v = (v * 0x00000011) & 0xC30C30C3
	v = (v * 0x00000005) & 0x49249249
	return v
}

func mortonCode3(x, y, z uint32) uint32 {
	return expandBits(x) | (expandBits(y) << 1) | (expandBits(z) << 2)
}

func quantizeAxis(d, extent float64) uint32 {
	if extent <= 0 {
		return 0
	}
	v := d / extent * float64(mortonRes)
	if v < 0 {
		v = 0
	}
	if v > float64(mortonRes-1) {
		v = float64(mortonRes - 1)
	}
	return uint32(v)
}

func quantizeCentroid(p vec3.Vec3, bounds vec3.AABB) uint32 {
	qx := quantizeAxis(p.X-bounds.Min.X, bounds.Max.X-bounds.Min.X)
	qy := quantizeAxis(p.Y-bounds.Min.Y, bounds.Max.Y-bounds.Min.Y)
	qz := quantizeAxis(p.Z-bounds.Min.Z, bounds.Max.Z-bounds.Min.Z)
	return mortonCode3(qx, qy, qz)
}

// buildTree constructs the HLBVH over prims via Morton-code radix
// partitioning. It returns the root, the permutation of primitive indices
// referenced by leaf ranges, and the total node count (for the flattener's
// preallocation).
func buildTree(prims []Primitive, maxPrimsInNode int) (*buildNode, []int, int) {
	n := len(prims)
	ar := newArena(2*n + 1)

	centroidBounds := vec3.FromPoint(prims[0].Centroid)
	for _, p := range prims[1:] {
		centroidBounds = centroidBounds.UnionPoint(p.Centroid)
	}

	morton := make([]mortonPrim, n)
	for i, p := range prims {
		morton[i] = mortonPrim{idx: i, code: quantizeCentroid(p.Centroid, centroidBounds)}
	}
	sort.Slice(morton, func(i, j int) bool { return morton[i].code < morton[j].code })

	ordered := make([]int, 0, n)
	root := emitRadix(ar, prims, morton, 0, n, mortonBits-1, maxPrimsInNode, &ordered)
	return root, ordered, len(ar.nodes)
}

func emitRadix(ar *arena, prims []Primitive, morton []mortonPrim, start, end, bit, maxLeaf int, ordered *[]int) *buildNode {
	count := end - start
	if count <= maxLeaf || bit < 0 {
		return makeLeaf(ar, prims, morton, start, end, ordered)
	}

	mask := uint32(1) << uint(bit)
	split := start + sort.Search(count, func(i int) bool {
		return morton[start+i].code&mask != 0
	})

	if split == start || split == end {
		// Every primitive in range shares this bit; descend without
		// spending a node on a split that wouldn't partition anything.
		return emitRadix(ar, prims, morton, start, end, bit-1, maxLeaf, ordered)
	}

	left := emitRadix(ar, prims, morton, start, split, bit-1, maxLeaf, ordered)
	right := emitRadix(ar, prims, morton, split, end, bit-1, maxLeaf, ordered)

	node := ar.alloc()
	node.left, node.right = left, right
	node.bounds = left.bounds.Union(right.bounds)
	node.splitAxis = node.bounds.MaxExtentAxis()
	return node
}

func makeLeaf(ar *arena, prims []Primitive, morton []mortonPrim, start, end int, ordered *[]int) *buildNode {
	node := ar.alloc()
	node.firstPrimOffset = len(*ordered)
	node.nPrimitives = end - start

	first := morton[start].idx
	node.bounds = prims[first].Bounds
	*ordered = append(*ordered, first)
	for i := start + 1; i < end; i++ {
		pi := morton[i].idx
		*ordered = append(*ordered, pi)
		node.bounds = node.bounds.Union(prims[pi].Bounds)
	}
	return node
}

func flattenRecurse(n *buildNode, flat *[]FlatNode) int {
	my := len(*flat)
	*flat = append(*flat, FlatNode{Bounds: n.bounds, SplitAxis: n.splitAxis})
	if n.nPrimitives > 0 {
		(*flat)[my].NPrimitives = n.nPrimitives
		(*flat)[my].FirstPrimOffset = n.firstPrimOffset
		return my
	}
	flattenRecurse(n.left, flat)
	second := flattenRecurse(n.right, flat)
	(*flat)[my].SecondChildOffset = second
	return my
}

// Build constructs an HLBVH over prims and flattens it into a single
// contiguous array. It returns the flattened nodes together with the
// permutation of primitive indices consumed by leaf ranges; callers must
// reorder their own per-primitive data (e.g. precomputed triangle records)
// to match ordered before indexing FlatNode.FirstPrimOffset against it.
//
// maxPrimsInNode bounds leaf size; Build treats values <= 0 as 1.
func Build(prims []Primitive, maxPrimsInNode int) (flat []FlatNode, ordered []int) {
	if len(prims) == 0 {
		return nil, nil
	}
	if maxPrimsInNode <= 0 {
		maxPrimsInNode = 1
	}
	root, ord, nodeCount := buildTree(prims, maxPrimsInNode)
	flat = make([]FlatNode, 0, nodeCount)
	flattenRecurse(root, &flat)
	return flat, ord
}
