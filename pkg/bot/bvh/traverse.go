package bvh

import (
	"errors"
	"math"

	"github.com/chazu/librt/pkg/bot/vec3"
)

// ErrStackOverflow is panicked by Traverse when the fixed-size traversal
// stack is exceeded. A tree built by Build never triggers this for a
// well-formed input; it indicates a pathological or malformed tree.
// Callers should recover at a query boundary rather than handle it inline.
var ErrStackOverflow = errors.New("bvh: traversal stack exceeded capacity")

const traverseStackSize = 256

type traverseStack struct {
	data [traverseStackSize]int
	sp   int
}

func (s *traverseStack) push(v int) {
	if s.sp >= traverseStackSize {
		panic(ErrStackOverflow)
	}
	s.data[s.sp] = v
	s.sp++
}

func (s *traverseStack) pop() int {
	s.sp--
	return s.data[s.sp]
}

func (s *traverseStack) empty() bool { return s.sp == 0 }

// safeInv returns 1/d, relying on IEEE 754 division to produce a signed
// infinity for d == 0 rather than trapping; the slab test below handles
// infinities correctly without special-casing them further.
func safeInv(d float64) float64 {
	return 1 / d
}

func slabAxis(mn, mx, o, invD float64, t0, t1 *float64) bool {
	ta := (mn - o) * invD
	tb := (mx - o) * invD
	if ta > tb {
		ta, tb = tb, ta
	}
	if ta > *t0 {
		*t0 = ta
	}
	if tb < *t1 {
		*t1 = tb
	}
	return *t0 <= *t1
}

func slabHit(b vec3.AABB, origin, invDir vec3.Vec3) bool {
	t0, t1 := 0.0, math.MaxFloat64
	if !slabAxis(b.Min.X, b.Max.X, origin.X, invDir.X, &t0, &t1) {
		return false
	}
	if !slabAxis(b.Min.Y, b.Max.Y, origin.Y, invDir.Y, &t0, &t1) {
		return false
	}
	if !slabAxis(b.Min.Z, b.Max.Z, origin.Z, invDir.Z, &t0, &t1) {
		return false
	}
	return true
}

// Traverse walks flat starting at the root (index 0), testing the ray
// against each node's bounds with a slab test, and calls visit with the
// primitive range of every leaf whose box the ray passes. visit is
// responsible for running the triangle kernel over
// [firstPrimOffset, firstPrimOffset+nPrimitives) in the caller's own
// per-primitive data and recording any hits; Traverse does not interpret
// hits itself.
func Traverse(flat []FlatNode, origin, dir vec3.Vec3, visit func(firstPrimOffset, nPrimitives int)) {
	if len(flat) == 0 {
		return
	}
	invDir := vec3.Vec3{X: safeInv(dir.X), Y: safeInv(dir.Y), Z: safeInv(dir.Z)}
	dirNeg := [3]bool{dir.X < 0, dir.Y < 0, dir.Z < 0}

	var stack traverseStack
	current := 0
	for {
		node := &flat[current]
		if slabHit(node.Bounds, origin, invDir) {
			if node.IsLeaf() {
				visit(node.FirstPrimOffset, node.NPrimitives)
				if stack.empty() {
					return
				}
				current = stack.pop()
				continue
			}
			if dirNeg[node.SplitAxis] {
				stack.push(current + 1)
				current = node.SecondChildOffset
			} else {
				stack.push(node.SecondChildOffset)
				current++
			}
			continue
		}
		if stack.empty() {
			return
		}
		current = stack.pop()
	}
}
