package bot

import (
	"log"
	"os"
	"strconv"

	"github.com/chazu/librt/pkg/bot/bvh"
	"github.com/chazu/librt/pkg/bot/vec3"
)

const defaultMaxPrimsInNode = 8

// Prepped is the opaque handle returned by Prep: the flat BVH, the
// reordered triangle array, and the mesh's overall bounds. It is read-only
// for the rest of its lifetime, which is what lets many goroutines call
// Shot against the same Prepped concurrently (§5).
type Prepped struct {
	mesh *Mesh

	flat  []bvh.FlatNode
	tris  []triangle // indexed in the order bvh.Build's ordered permutation yields
	tol   float64

	min, max Vec3
}

// resolveMaxPrimsInNode returns the configured HLBVH leaf-size bound,
// honoring LIBRT_BOT_MAX_PRIMS_IN_NODE when it parses as a positive
// integer, and falling back to defaultMaxPrimsInNode otherwise.
func resolveMaxPrimsInNode() int {
	v := os.Getenv("LIBRT_BOT_MAX_PRIMS_IN_NODE")
	if v == "" {
		return defaultMaxPrimsInNode
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("bot: ignoring invalid LIBRT_BOT_MAX_PRIMS_IN_NODE=%q", v)
		return defaultMaxPrimsInNode
	}
	return n
}

// Prep builds a Prepped index over mesh: it validates invariants,
// normalizes CW orientation to CCW, precomputes every triangle, builds the
// HLBVH, and computes the mesh's bounds. mesh must not be mutated while
// any Prepped built from it is in use.
func Prep(mesh *Mesh, tol float64) (*Prepped, error) {
	if err := mesh.validate(); err != nil {
		return nil, err
	}
	mesh.normalizeCW()

	prims := make([]bvh.Primitive, len(mesh.Faces))
	for i, f := range mesh.Faces {
		a, b, c := mesh.Vertices[f[0]], mesh.Vertices[f[1]], mesh.Vertices[f[2]]
		prims[i] = bvh.Primitive{
			Bounds:   vec3.FromTriangle(a, b, c),
			Centroid: vec3.Centroid3(a, b, c),
		}
	}

	flat, ordered := bvh.Build(prims, resolveMaxPrimsInNode())

	tris := make([]triangle, len(ordered))
	for slot, origIdx := range ordered {
		f := mesh.Faces[origIdx]
		a, b, c := mesh.Vertices[f[0]], mesh.Vertices[f[1]], mesh.Vertices[f[2]]

		var smooth *[3]Vec3
		if origIdx < len(mesh.FaceNormals) && mesh.hasUsableSmoothNormals(mesh.FaceNormals[origIdx]) {
			fn := mesh.FaceNormals[origIdx]
			s := [3]Vec3{mesh.Normals[fn[0]], mesh.Normals[fn[1]], mesh.Normals[fn[2]]}
			smooth = &s
		} else if mesh.UseNormals && len(mesh.Normals) > 0 && origIdx < len(mesh.FaceNormals) {
			log.Printf("bot: face %d has an out-of-range normal index, dropping its smooth normals", origIdx)
		}

		tr, ok := buildTriangle(a, b, c, origIdx, tol, smooth)
		if !ok {
			log.Printf("bot: degenerate triangle at face %d, keeping geometry but dropping smoothing", origIdx)
		}
		tris[slot] = tr
	}

	min, max := BBox(mesh, tol)

	return &Prepped{
		mesh: mesh,
		flat: flat,
		tris: tris,
		tol:  tol,
		min:  min,
		max:  max,
	}, nil
}
