// Package maintain implements the out-of-band mesh maintenance operations:
// vertex/face fusing, condensation, face reordering, edge-collapse
// decimation, flipping, orientation sync, connected-component splitting,
// and inside-out detection. None of these run concurrently with a ray
// query against the same mesh (§5).
package maintain

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/chazu/librt/pkg/bot"
	"github.com/katalvlaran/lvlath/bfs"
	"github.com/katalvlaran/lvlath/core"
)

const spatialBuckets = 256

// edgeKey canonically identifies an undirected mesh edge by its two vertex
// indices, low index first.
type edgeKey struct{ a, b int }

func makeEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

func faceEdges(f bot.Face) [3]edgeKey {
	return [3]edgeKey{
		makeEdgeKey(f[0], f[1]),
		makeEdgeKey(f[1], f[2]),
		makeEdgeKey(f[2], f[0]),
	}
}

// FuseVertices bins vertices into spatialBuckets along the mesh's dominant
// axis and merges, within each bucket, any pair closer than tol. Merged
// vertices are marked with an infinity sentinel and every face index
// pointing at one is rewritten to its survivor; Condense then drops the
// now-unreferenced sentinel slots.
func FuseVertices(m *bot.Mesh, tol float64) {
	if len(m.Vertices) == 0 {
		return
	}
	axis, lo, hi := dominantAxis(m.Vertices)
	extent := hi - lo
	if extent <= 0 {
		extent = 1
	}

	buckets := make([][]int, spatialBuckets)
	for i, v := range m.Vertices {
		b := bucketOf(axisValue(v, axis), lo, extent)
		buckets[b] = append(buckets[b], i)
	}

	survivor := make([]int, len(m.Vertices))
	for i := range survivor {
		survivor[i] = i
	}

	tol2 := tol * tol
	for _, idxs := range buckets {
		for i := 0; i < len(idxs); i++ {
			vi := idxs[i]
			if survivor[vi] != vi {
				continue
			}
			for j := i + 1; j < len(idxs); j++ {
				vj := idxs[j]
				if survivor[vj] != vj {
					continue
				}
				if distance2(m.Vertices[vi], m.Vertices[vj]) < tol2 {
					survivor[vj] = vi
				}
			}
		}
	}

	for i := range m.Vertices {
		if survivor[i] != i {
			m.Vertices[i] = infinitySentinel()
		}
	}
	remapFaceIndices(m, survivor)
	Condense(m)
}

func dominantAxis(vs []bot.Vec3) (axis int, lo, hi float64) {
	min, max := vs[0], vs[0]
	for _, v := range vs[1:] {
		min = bot.Vec3{X: math.Min(min.X, v.X), Y: math.Min(min.Y, v.Y), Z: math.Min(min.Z, v.Z)}
		max = bot.Vec3{X: math.Max(max.X, v.X), Y: math.Max(max.Y, v.Y), Z: math.Max(max.Z, v.Z)}
	}
	ex, ey, ez := max.X-min.X, max.Y-min.Y, max.Z-min.Z
	switch {
	case ex >= ey && ex >= ez:
		return 0, min.X, max.X
	case ey >= ez:
		return 1, min.Y, max.Y
	default:
		return 2, min.Z, max.Z
	}
}

func axisValue(v bot.Vec3, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func bucketOf(v, lo, extent float64) int {
	b := int((v - lo) / extent * spatialBuckets)
	if b < 0 {
		b = 0
	}
	if b >= spatialBuckets {
		b = spatialBuckets - 1
	}
	return b
}

func distance2(a, b bot.Vec3) float64 {
	d := a.Sub(b)
	return d.Dot(d)
}

func infinitySentinel() bot.Vec3 {
	return bot.Vec3{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
}

func isSentinel(v bot.Vec3) bool {
	return math.IsInf(v.X, 1)
}

func remapFaceIndices(m *bot.Mesh, survivor []int) {
	for i, f := range m.Faces {
		for k, vi := range f {
			m.Faces[i][k] = survivor[vi]
		}
	}
}

// Condense drops every vertex no face references (including FuseVertices's
// sentinel-marked duplicates) and remaps face indices to match.
func Condense(m *bot.Mesh) {
	used := make([]bool, len(m.Vertices))
	for _, f := range m.Faces {
		for _, vi := range f {
			used[vi] = true
		}
	}
	for i, v := range m.Vertices {
		if isSentinel(v) {
			used[i] = false
		}
	}

	newIndex := make([]int, len(m.Vertices))
	out := make([]bot.Vec3, 0, len(m.Vertices))
	for i, v := range m.Vertices {
		if !used[i] {
			newIndex[i] = -1
			continue
		}
		newIndex[i] = len(out)
		out = append(out, v)
	}

	for i, f := range m.Faces {
		for k, vi := range f {
			m.Faces[i][k] = newIndex[vi]
		}
	}
	m.Vertices = out
}

// FuseFaces removes duplicate faces. Oriented meshes require identical
// winding; unoriented meshes treat any vertex permutation as a duplicate;
// plate meshes additionally require matching thickness and face mode.
func FuseFaces(m *bot.Mesh) {
	type key struct {
		v         [3]int
		thickness float64
		mode      bot.FaceMode
		isPlate   bool
	}
	seen := make(map[key]bool)

	keep := make([]bool, len(m.Faces))
	for i, f := range m.Faces {
		v := f
		if m.Orientation == bot.Unoriented {
			v = canonicalWinding(f)
		}
		k := key{v: v}
		if m.Mode == bot.Plate || m.Mode == bot.PlateNoCos {
			k.isPlate = true
			if i < len(m.Thickness) {
				k.thickness = m.Thickness[i]
			}
			if i < len(m.FaceModes) {
				k.mode = m.FaceModes[i]
			}
		}
		if seen[k] {
			keep[i] = false
			continue
		}
		seen[k] = true
		keep[i] = true
	}

	filterFaceSlices(m, keep)
}

// canonicalWinding returns the lexicographically smallest of the six
// orderings of f's vertices, treating {a,b,c} as equivalent regardless of
// starting vertex or direction — the "any permutation counts" rule for
// unoriented duplicate detection.
func canonicalWinding(f bot.Face) bot.Face {
	perms := [][3]int{
		{f[0], f[1], f[2]}, {f[1], f[2], f[0]}, {f[2], f[0], f[1]},
		{f[0], f[2], f[1]}, {f[2], f[1], f[0]}, {f[1], f[0], f[2]},
	}
	best := perms[0]
	for _, p := range perms[1:] {
		if less3(p, best) {
			best = p
		}
	}
	return bot.Face(best)
}

func less3(a, b [3]int) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func filterFaceSlices(m *bot.Mesh, keep []bool) {
	faces := m.Faces[:0]
	var thickness []float64
	var faceModes []bot.FaceMode
	var faceNormals []bot.Face
	var faceUVs []bot.Face
	hasThickness := len(m.Thickness) == len(keep)
	hasModes := len(m.FaceModes) == len(keep)
	hasNormals := len(m.FaceNormals) == len(keep)
	hasUVs := len(m.FaceUVs) == len(keep)

	for i, k := range keep {
		if !k {
			continue
		}
		faces = append(faces, m.Faces[i])
		if hasThickness {
			thickness = append(thickness, m.Thickness[i])
		}
		if hasModes {
			faceModes = append(faceModes, m.FaceModes[i])
		}
		if hasNormals {
			faceNormals = append(faceNormals, m.FaceNormals[i])
		}
		if hasUVs {
			faceUVs = append(faceUVs, m.FaceUVs[i])
		}
	}
	m.Faces = faces
	if hasThickness {
		m.Thickness = thickness
	}
	if hasModes {
		m.FaceModes = faceModes
	}
	if hasNormals {
		m.FaceNormals = faceNormals
	}
	if hasUVs {
		m.FaceUVs = faceUVs
	}
}

// ReorderFaces permutes m.Faces (and its parallel per-face arrays) for BVH
// locality: grow each piece of size k by repeatedly adding the face
// sharing the most vertices with the piece's current vertex set, falling
// back to nearest-centroid when nothing shares a vertex.
func ReorderFaces(m *bot.Mesh, k int) {
	n := len(m.Faces)
	if n == 0 || k <= 0 {
		return
	}

	centroids := make([]bot.Vec3, n)
	for i, f := range m.Faces {
		centroids[i] = vec3Centroid(m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]])
	}

	remaining := make([]bool, n)
	for i := range remaining {
		remaining[i] = true
	}

	order := make([]int, 0, n)
	for len(order) < n {
		seed := firstRemaining(remaining)
		piece := growPiece(m.Faces, centroids, remaining, seed, k)
		order = append(order, piece...)
	}

	applyFacePermutation(m, order)
}

func firstRemaining(remaining []bool) int {
	for i, r := range remaining {
		if r {
			return i
		}
	}
	return -1
}

func growPiece(faces []bot.Face, centroids []bot.Vec3, remaining []bool, seed, k int) []int {
	piece := []int{seed}
	remaining[seed] = false
	vertSet := map[int]bool{faces[seed][0]: true, faces[seed][1]: true, faces[seed][2]: true}

	for len(piece) < k {
		best, bestShared := -1, -1
		for i, f := range faces {
			if !remaining[i] {
				continue
			}
			shared := 0
			for _, vi := range f {
				if vertSet[vi] {
					shared++
				}
			}
			if shared > bestShared {
				best, bestShared = i, shared
			}
		}
		if best == -1 {
			break
		}
		if bestShared == 0 {
			best = nearestCentroid(centroids, remaining, centroids[seed])
			if best == -1 {
				break
			}
		}
		piece = append(piece, best)
		remaining[best] = false
		for _, vi := range faces[best] {
			vertSet[vi] = true
		}
	}
	return piece
}

func nearestCentroid(centroids []bot.Vec3, remaining []bool, from bot.Vec3) int {
	best, bestDist := -1, math.Inf(1)
	for i, c := range centroids {
		if !remaining[i] {
			continue
		}
		d := distance2(c, from)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func vec3Centroid(a, b, c bot.Vec3) bot.Vec3 {
	return bot.Vec3{X: (a.X + b.X + c.X) / 3, Y: (a.Y + b.Y + c.Y) / 3, Z: (a.Z + b.Z + c.Z) / 3}
}

func applyFacePermutation(m *bot.Mesh, order []int) {
	faces := make([]bot.Face, len(order))
	var thickness []float64
	var faceModes []bot.FaceMode
	var faceNormals []bot.Face
	var faceUVs []bot.Face
	if len(m.Thickness) == len(order) {
		thickness = make([]float64, len(order))
	}
	if len(m.FaceModes) == len(order) {
		faceModes = make([]bot.FaceMode, len(order))
	}
	if len(m.FaceNormals) == len(order) {
		faceNormals = make([]bot.Face, len(order))
	}
	if len(m.FaceUVs) == len(order) {
		faceUVs = make([]bot.Face, len(order))
	}

	for newIdx, oldIdx := range order {
		faces[newIdx] = m.Faces[oldIdx]
		if thickness != nil {
			thickness[newIdx] = m.Thickness[oldIdx]
		}
		if faceModes != nil {
			faceModes[newIdx] = m.FaceModes[oldIdx]
		}
		if faceNormals != nil {
			faceNormals[newIdx] = m.FaceNormals[oldIdx]
		}
		if faceUVs != nil {
			faceUVs[newIdx] = m.FaceUVs[oldIdx]
		}
	}
	m.Faces = faces
	if thickness != nil {
		m.Thickness = thickness
	}
	if faceModes != nil {
		m.FaceModes = faceModes
	}
	if faceNormals != nil {
		m.FaceNormals = faceNormals
	}
	if faceUVs != nil {
		m.FaceUVs = faceUVs
	}
}

// Flip swaps each face's 2nd and 3rd vertex index, reversing winding.
// flip ∘ flip is the identity.
func Flip(m *bot.Mesh) {
	for i := range m.Faces {
		m.Faces[i][1], m.Faces[i][2] = m.Faces[i][2], m.Faces[i][1]
	}
}

// EdgeEntry is one neighbor record in the per-vertex edge adjacency table
// buildEdgeTable returns: the neighbor vertex id and how many faces use
// that edge. Decimate and faceGraph use only the edge-to-face map that
// buildEdgeTable returns alongside it.
type EdgeEntry struct {
	Neighbor int
	UseCount int
}

// buildEdgeTable returns, per vertex, its incident edges with use counts,
// and a map from each edge to the faces that touch it.
func buildEdgeTable(m *bot.Mesh) ([][]EdgeEntry, map[edgeKey][]int) {
	table := make([][]EdgeEntry, len(m.Vertices))
	faceOf := make(map[edgeKey][]int)

	addEdge := func(a, b int) {
		for i := range table[a] {
			if table[a][i].Neighbor == b {
				table[a][i].UseCount++
				return
			}
		}
		table[a] = append(table[a], EdgeEntry{Neighbor: b, UseCount: 1})
	}

	for fi, f := range m.Faces {
		for _, e := range faceEdges(f) {
			faceOf[e] = append(faceOf[e], fi)
		}
		addEdge(f[0], f[1])
		addEdge(f[1], f[0])
		addEdge(f[1], f[2])
		addEdge(f[2], f[1])
		addEdge(f[2], f[0])
		addEdge(f[0], f[2])
	}
	return table, faceOf
}

// Decimate collapses edges that touch exactly two faces, keep every
// affected face's plane within maxChordError of the surviving vertex,
// keep every affected face's normal-change cosine at or above
// cos(maxNormalAngle), and whose length² is below minEdgeLen².
func Decimate(m *bot.Mesh, maxChordError, maxNormalAngle, minEdgeLen float64) {
	cosLimit := math.Cos(maxNormalAngle)
	minLen2 := minEdgeLen * minEdgeLen

	changed := true
	for changed {
		changed = false
		_, faceOf := buildEdgeTable(m)

		for key, faces := range faceOf {
			if len(faces) != 2 {
				continue
			}
			a, b := m.Vertices[key.a], m.Vertices[key.b]
			if distance2(a, b) >= minLen2 {
				continue
			}
			if !collapseIsSafe(m, faces, key, maxChordError, cosLimit) {
				continue
			}
			collapseEdge(m, key.b, key.a)
			changed = true
			break
		}
	}
	Condense(m)
}

func faceNormal(m *bot.Mesh, f bot.Face) bot.Vec3 {
	a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
	n := b.Sub(a).Cross(c.Sub(a))
	return n.Normalize()
}

func facePlaneDistance(m *bot.Mesh, f bot.Face, p bot.Vec3) float64 {
	n := faceNormal(m, f)
	a := m.Vertices[f[0]]
	return absf(n.Dot(p.Sub(a)))
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// collapseIsSafe checks the chord-error and normal-change bounds for every
// face touching the edge's surviving vertex after the hypothetical merge.
func collapseIsSafe(m *bot.Mesh, touchingFaces []int, key edgeKey, maxChordError, cosLimit float64) bool {
	survivor := m.Vertices[key.a]
	for _, f := range m.Faces {
		touchesB := f[0] == key.b || f[1] == key.b || f[2] == key.b
		if !touchesB {
			continue
		}
		before := faceNormal(m, f)
		if facePlaneDistance(m, f, survivor) > maxChordError {
			return false
		}
		after := f
		for k, vi := range after {
			if vi == key.b {
				after[k] = key.a
			}
		}
		if after[0] == after[1] || after[1] == after[2] || after[2] == after[0] {
			continue // this face degenerates away entirely, not a plane violation
		}
		afterNormal := faceNormal(m, after)
		if before.Dot(afterNormal) < cosLimit {
			return false
		}
	}
	return true
}

// collapseEdge merges vertex "from" into "into": every face index pointing
// at from is rewritten, and faces that degenerate (two equal indices) are
// dropped.
func collapseEdge(m *bot.Mesh, from, into int) {
	keep := make([]bool, len(m.Faces))
	for i, f := range m.Faces {
		for k, vi := range f {
			if vi == from {
				m.Faces[i][k] = into
			}
		}
		f = m.Faces[i]
		keep[i] = f[0] != f[1] && f[1] != f[2] && f[2] != f[0]
	}
	filterFaceSlices(m, keep)
}

// faceGraph builds an undirected core.Graph whose vertices are face
// indices (as strings) and whose edges connect faces sharing a mesh edge,
// the adjacency Sync and Split both walk with bfs.BFS.
func faceGraph(m *bot.Mesh) (*core.Graph, map[edgeKey][]int) {
	g := core.NewGraph()
	for i := range m.Faces {
		_ = g.AddVertex(strconv.Itoa(i))
	}
	_, faceOf := buildEdgeTable(m)
	for _, faces := range faceOf {
		if len(faces) != 2 {
			continue
		}
		a, b := strconv.Itoa(faces[0]), strconv.Itoa(faces[1])
		if !g.HasEdge(a, b) {
			_, _ = g.AddEdge(a, b, 0)
		}
	}
	return g, faceOf
}

// Sync walks the edge-sharing graph breadth-first from each unvisited
// face, flipping a neighbor whenever it is reached across an edge that the
// two faces traverse in the same direction (a winding disagreement).
func Sync(m *bot.Mesh) error {
	g, faceOf := faceGraph(m)
	visited := make([]bool, len(m.Faces))

	for start := range m.Faces {
		if visited[start] {
			continue
		}
		res, err := bfs.BFS(g, strconv.Itoa(start))
		if err != nil {
			return fmt.Errorf("maintain: sync: %w", err)
		}
		for _, id := range res.Order {
			idx, _ := strconv.Atoi(id)
			visited[idx] = true
		}
		for _, id := range res.Order {
			idx, _ := strconv.Atoi(id)
			parentID, ok := res.Parent[id]
			if !ok {
				continue
			}
			parentIdx, _ := strconv.Atoi(parentID)
			if sharedEdgeSameDirection(m, faceOf, parentIdx, idx) {
				m.Faces[idx][1], m.Faces[idx][2] = m.Faces[idx][2], m.Faces[idx][1]
			}
		}
	}
	return nil
}

// sharedEdgeSameDirection reports whether faces a and b traverse their
// shared edge in the same rather than opposite direction, which for a
// consistently wound mesh should never happen between neighbors.
func sharedEdgeSameDirection(m *bot.Mesh, faceOf map[edgeKey][]int, a, b int) bool {
	fa, fb := m.Faces[a], m.Faces[b]
	for _, e := range faceEdges(fa) {
		faces := faceOf[e]
		if !(len(faces) == 2 && ((faces[0] == a && faces[1] == b) || (faces[0] == b && faces[1] == a))) {
			continue
		}
		dirA := directedEdgeDirection(fa, e)
		dirB := directedEdgeDirection(fb, e)
		return dirA == dirB
	}
	return false
}

// directedEdgeDirection returns true if face f traverses edge e from its
// low-indexed vertex to its high-indexed vertex in winding order.
func directedEdgeDirection(f bot.Face, e edgeKey) bool {
	for i := 0; i < 3; i++ {
		a, b := f[i], f[(i+1)%3]
		if makeEdgeKey(a, b) == e {
			return a == e.a
		}
	}
	return false
}

// Split partitions faces into connected components under edge-sharing
// adjacency, returning one sub-mesh per component. Each sub-mesh keeps
// only the vertices its own faces reference (via Condense).
func Split(m *bot.Mesh) []*bot.Mesh {
	g, _ := faceGraph(m)
	visited := make([]bool, len(m.Faces))
	var out []*bot.Mesh

	for start := range m.Faces {
		if visited[start] {
			continue
		}
		res, err := bfs.BFS(g, strconv.Itoa(start))
		if err != nil {
			continue
		}
		comp := make([]int, 0, len(res.Order))
		for _, id := range res.Order {
			idx, _ := strconv.Atoi(id)
			if !visited[idx] {
				visited[idx] = true
				comp = append(comp, idx)
			}
		}
		sort.Ints(comp)
		out = append(out, extractSubMesh(m, comp))
	}
	return out
}

func extractSubMesh(m *bot.Mesh, faceIdxs []int) *bot.Mesh {
	sub := &bot.Mesh{
		Vertices:    append([]bot.Vec3(nil), m.Vertices...),
		Orientation: m.Orientation,
		Mode:        m.Mode,
		UseNormals:  m.UseNormals,
	}
	for _, fi := range faceIdxs {
		sub.Faces = append(sub.Faces, m.Faces[fi])
		if fi < len(m.Thickness) {
			sub.Thickness = append(sub.Thickness, m.Thickness[fi])
		}
		if fi < len(m.FaceModes) {
			sub.FaceModes = append(sub.FaceModes, m.FaceModes[fi])
		}
		if fi < len(m.FaceNormals) {
			sub.FaceNormals = append(sub.FaceNormals, m.FaceNormals[fi])
		}
	}
	sub.Normals = m.Normals
	Condense(sub)
	return sub
}

// Classification is the result of InsideOut.
type Classification int

const (
	Normal Classification = iota
	Flipped
	Undecided
)

// InsideOut shoots interrogation rays from a point outside the mesh's AABB
// toward each face's centroid in turn, stopping at the first ray whose
// closest hit is unambiguous (not grazing). The sign of that hit's raw
// n̂·d then tells us whether the mesh's normals point outward (Normal) or
// inward (Flipped) relative to its declared winding. The rays are shot
// against a Surface-mode copy of the mesh, so every raw hit comes back as
// its own segment in distance order and the first one is the closest hit.
func InsideOut(m *bot.Mesh, tol float64) (Classification, error) {
	probe := cloneMesh(m)
	probe.Mode = bot.Surface
	p, err := bot.Prep(probe, tol)
	if err != nil {
		return Undecided, err
	}
	min, max := bot.BBox(m, tol)
	outside := bot.Vec3{X: min.X - (max.X-min.X) - 1, Y: min.Y - (max.Y-min.Y) - 1, Z: min.Z - (max.Z-min.Z) - 1}

	for _, f := range m.Faces {
		c := vec3Centroid(m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]])
		dir := c.Sub(outside).Normalize()
		ray := bot.Ray{Origin: outside, Dir: dir}

		var segs bot.SegList
		n, err := bot.Shot(p, ray, &segs, bot.Application{ReverseNormalDisabled: true})
		if err != nil || n == 0 {
			continue
		}
		first := segs.Segments[0].In
		const grazingMargin = 1e-6
		if absf(first.Dn) < grazingMargin {
			continue
		}
		if first.Dn < 0 {
			return Normal, nil
		}
		return Flipped, nil
	}
	return Undecided, nil
}

func cloneMesh(m *bot.Mesh) *bot.Mesh {
	clone := *m
	clone.Vertices = append([]bot.Vec3(nil), m.Vertices...)
	clone.Faces = append([]bot.Face(nil), m.Faces...)
	return &clone
}
