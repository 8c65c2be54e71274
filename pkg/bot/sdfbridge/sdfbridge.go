// Package sdfbridge tessellates an sdfx signed-distance solid into a BoT
// mesh via marching cubes.
package sdfbridge

import (
	"github.com/chazu/librt/pkg/bot"
	"github.com/chazu/librt/pkg/bot/maintain"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
)

// DefaultCells is the marching-cubes tessellation resolution used when the
// caller doesn't need a different tradeoff between triangle count and
// surface fidelity.
const DefaultCells = 200

// FromSDF3 renders s with uniform marching cubes at the given cell count,
// then fuses the resulting (unindexed, one-triangle-per-facet) soup into a
// proper indexed solid mesh: coincident corners across triangles collapse
// to shared vertices via maintain.FuseVertices, and maintain.Condense drops
// anything left unreferenced.
func FromSDF3(s sdf.SDF3, cells int, tol float64) (*bot.Mesh, error) {
	if cells <= 0 {
		cells = DefaultCells
	}

	renderer := render.NewMarchingCubesUniform(cells)
	triangles := render.ToTriangles(s, renderer)

	m := &bot.Mesh{
		Vertices:    make([]bot.Vec3, 0, len(triangles)*3),
		Faces:       make([]bot.Face, 0, len(triangles)),
		Orientation: bot.CCW,
		Mode:        bot.Solid,
	}

	for _, tri := range triangles {
		base := len(m.Vertices)
		for j := 0; j < 3; j++ {
			v := tri[j]
			m.Vertices = append(m.Vertices, bot.Vec3{X: v.X, Y: v.Y, Z: v.Z})
		}
		m.Faces = append(m.Faces, bot.Face{base, base + 1, base + 2})
	}

	maintain.FuseVertices(m, tol)

	return m, nil
}
