package bot

import "github.com/chazu/librt/pkg/bot/vec3"

// minDn is the grazing threshold BOT_MIN_DN: a ray whose direction is this
// close to perpendicular to a face's normal (in dot-product terms) is
// treated as parallel to the face and rejected rather than accepted.
const minDn = 1e-9

// Ray is an origin and direction in the mesh's linear units.
type Ray struct {
	Origin, Dir Vec3
}

// At returns the point along the ray at parameter t.
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Dir.Scale(t))
}

// triangle is the precomputed per-triangle record the kernel intersects
// against. It is never touched again after Prep builds it; the kernel only
// reads it.
type triangle struct {
	a, ab, ac Vec3
	unitNorm  Vec3
	wn        Vec3 // non-unitized normal: unitNorm scaled by |AB x AC|
	faceIdx   int  // index into the pre-reorder Mesh.Faces

	hasSmooth bool
	smooth    [3]Vec3 // per-vertex normals, in face-vertex order
}

// rawHit is the hit record produced by the kernel. It implements
// hitbuf.Distanced via Distance so it can be buffered and sorted without
// that package importing this one.
type rawHit struct {
	t      float64
	surfID int
	// dn is n̂·d (unit normal dotted with the ray direction) at the hit,
	// used for entrance/exit classification and as the true cosine of
	// incidence for plate-mode thickness division. This is distinct from
	// the kernel's internal, non-unit-scaled dn used for the tolerance and
	// barycentric math below — dividing by |AB×AC| only ever scales that
	// value by a positive factor, so its sign (and hence classification)
	// agrees with n̂·d, but its magnitude does not.
	dn    float64
	beta  float64 // β/|dn| (internal, non-unit dn)
	gamma float64 // γ/|dn| (internal, non-unit dn)
	tri   *triangle
	ray   *Ray
}

func (h rawHit) Distance() float64 { return h.t }

// intersectTriangle implements the exact kernel of §4.B: precomputed edge
// basis, tolerance-scaled barycentric rejection, non-unitized normal for
// the signed distance.
func intersectTriangle(tr *triangle, ray *Ray, tol float64) (rawHit, bool) {
	dn := ray.Dir.Dot(tr.wn)
	adn := absf(dn)
	if adn < minDn {
		return rawHit{}, false
	}

	tolScaled := tol / (1 + adn)

	wxb := tr.a.Sub(ray.Origin)
	xp := wxb.Cross(ray.Dir)
	beta := tr.ab.Dot(xp)
	gamma := tr.ac.Dot(xp)
	if dn > 0 {
		beta = -beta
	}
	if dn < 0 {
		gamma = -gamma
	}

	if beta < -tol || gamma < -tol || beta+gamma > adn+tolScaled {
		return rawHit{}, false
	}

	t := wxb.Dot(tr.wn) / dn
	return rawHit{
		t:      t,
		surfID: tr.faceIdx,
		dn:     ray.Dir.Dot(tr.unitNorm),
		beta:   beta / adn,
		gamma:  gamma / adn,
		tri:    tr,
		ray:    ray,
	}, true
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// buildTriangle precomputes the fields intersectTriangle needs from three
// mesh vertices and, when present, their smooth normals. ok is false for a
// degenerate triangle (near-zero edge or cross-product magnitude), which
// the caller warns on and drops smoothing for rather than failing Prep.
func buildTriangle(a, b, c Vec3, faceIdx int, tol float64, smooth *[3]Vec3) (triangle, bool) {
	ab := b.Sub(a)
	ac := c.Sub(a)
	n := ab.Cross(ac)
	mag2 := n.Dot(n)

	tol2 := tol * tol
	degenerate := ab.Dot(ab) < tol2 || ac.Dot(ac) < tol2 || mag2 < tol2

	tr := triangle{a: a, ab: ab, ac: ac, faceIdx: faceIdx}
	if mag2 > 0 {
		mag := vec3.Vec3{X: n.X, Y: n.Y, Z: n.Z}.Length()
		tr.unitNorm = n.Scale(1 / mag)
	}
	tr.wn = n // non-unitized: exactly AB x AC, never renormalized

	if !degenerate && smooth != nil {
		tr.hasSmooth = true
		tr.smooth = *smooth
	}
	return tr, !degenerate
}
