// Package segment converts a sorted list of raw ray/triangle hits into
// ordered in/out segments according to surface mode and orientation
// policy. It is deliberately decoupled from the mesh and triangle types in
// pkg/bot: Hit carries only the scalars the policy needs, so this package
// can be tested with hand-built hit sequences without standing up a mesh.
package segment

// Mode tags the surface semantics used to convert raw hits into segments,
// replacing an integer mode code with a sum type the segmenter switches
// on directly.
type Mode interface {
	isMode()
}

// ModeSurface treats every hit as a zero-length segment.
type ModeSurface struct{}

// ModeSolidUnoriented pairs consecutive hits without regard to winding.
type ModeSolidUnoriented struct{}

// ModeSolidOriented applies the entrance/exit classification, coalescing,
// and repair pipeline for a consistently wound solid mesh.
type ModeSolidOriented struct{}

// ModePlate turns each hit into a single thickness-bound segment.
// Thickness is indexed per SurfID. When NoCos is false (Plate), thickness
// is divided by |n̂·d|; when true (PlateNoCos), it is used as-is.
type ModePlate struct {
	Thickness []float64
	Appended  []bool
	NoCos     bool
}

func (ModeSurface) isMode()         {}
func (ModeSolidUnoriented) isMode() {}
func (ModeSolidOriented) isMode()   {}
func (ModePlate) isMode()           {}

// Hit is the minimal raw-hit shape the segmenter needs. Callers adapt
// their own internal hit record to this before calling Build.
type Hit struct {
	T      float64
	SurfID int
	// Dn is n̂·d at the hit: negative classifies an entrance, positive an
	// exit. It is the caller's responsibility to have computed this at
	// intersection time; the segmenter never touches geometry directly.
	Dn        float64
	Normal    [3]float64
	Synthetic bool // true for fictitious hits manufactured during repair
	// Idx is an opaque index the caller can use to map a surviving Hit back
	// to its own richer hit record. The segmenter never interprets it; a
	// fictitious hit carries the Idx of the neighbor it was copied from.
	Idx int
}

// Segment is one in/out pair of the output segment list.
type Segment struct {
	In, Out             Hit
	InNormal, OutNormal [3]float64
}

// Build converts hits (already sorted ascending by T) into segments
// according to mode. It returns the segments and the number of hits
// dropped as unrepairable (the OddHits warning case).
func Build(hits []Hit, mode Mode, tol float64) ([]Segment, int) {
	switch m := mode.(type) {
	case ModeSurface:
		return buildSurface(hits), 0
	case ModeSolidUnoriented:
		return buildSolidUnoriented(hits, tol)
	case ModeSolidOriented:
		return buildSolidOriented(hits, tol)
	case ModePlate:
		return buildPlate(hits, m), 0
	default:
		return nil, 0
	}
}

func negate(n [3]float64) [3]float64 { return [3]float64{-n[0], -n[1], -n[2]} }

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func signOf(dn float64) int {
	switch {
	case dn < 0:
		return -1
	case dn > 0:
		return 1
	default:
		return 0
	}
}

func buildSurface(hits []Hit) []Segment {
	segs := make([]Segment, len(hits))
	for i, h := range hits {
		segs[i] = Segment{In: h, Out: h, InNormal: h.Normal, OutNormal: h.Normal}
	}
	return segs
}

func buildPlate(hits []Hit, m ModePlate) []Segment {
	segs := make([]Segment, 0, len(hits))
	for _, h := range hits {
		thick := 0.0
		if h.SurfID >= 0 && h.SurfID < len(m.Thickness) {
			thick = m.Thickness[h.SurfID]
		}
		if !m.NoCos {
			d := absf(h.Dn)
			if d > 1e-12 {
				thick /= d
			}
		}
		appended := h.SurfID >= 0 && h.SurfID < len(m.Appended) && m.Appended[h.SurfID]

		var tIn, tOut float64
		if appended {
			tIn, tOut = h.T, h.T+thick
		} else {
			tIn, tOut = h.T-thick/2, h.T+thick/2
		}

		nIn, nOut := h.Normal, h.Normal
		if h.Dn > 0 {
			nIn = negate(h.Normal)
		}
		if h.Dn < 0 {
			nOut = negate(h.Normal)
		}

		in, out := h, h
		in.T, out.T = tIn, tOut
		segs = append(segs, Segment{In: in, Out: out, InNormal: nIn, OutNormal: nOut})
	}
	return segs
}

func buildSolidUnoriented(hits []Hit, tol float64) ([]Segment, int) {
	if len(hits) == 0 {
		return nil, 0
	}
	if len(hits) == 1 {
		h := hits[0]
		return []Segment{{In: h, Out: h, InNormal: h.Normal, OutNormal: h.Normal}}, 0
	}

	dedup, lastRemovedT, removedAny := dedupWithinTol(hits, tol)
	if len(dedup)%2 != 0 && removedAny {
		dedup = dropAllAtDistance(dedup, lastRemovedT, tol)
	}

	dropped := 0
	if len(dedup)%2 != 0 {
		dedup = dedup[:len(dedup)-1]
		dropped = 1
	}

	segs := make([]Segment, 0, len(dedup)/2)
	for i := 0; i+1 < len(dedup); i += 2 {
		in, out := dedup[i], dedup[i+1]
		segs = append(segs, Segment{In: in, Out: out, InNormal: in.Normal, OutNormal: out.Normal})
	}
	return segs, dropped
}

func dedupWithinTol(hits []Hit, tol float64) (out []Hit, lastRemovedT float64, removedAny bool) {
	out = make([]Hit, 0, len(hits))
	for i, h := range hits {
		if i > 0 && h.T-out[len(out)-1].T < tol {
			lastRemovedT = h.T
			removedAny = true
			continue
		}
		out = append(out, h)
	}
	return out, lastRemovedT, removedAny
}

func dropAllAtDistance(hits []Hit, t, tol float64) []Hit {
	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if absf(h.T-t) < tol {
			continue
		}
		out = append(out, h)
	}
	return out
}

func buildSolidOriented(hits []Hit, tol float64) ([]Segment, int) {
	h := coalesceSameDistance(hits, tol)
	h = coalesceRunsFILO(h)
	h = stripLeadingExitsTrailingEntrances(h)

	dropped := 0
	if len(h)%2 != 0 {
		before := len(h)
		h = repairOddWithFictitious(h)
		if len(h) == before {
			h = appendFinalFictitious(h)
		}
		if len(h)%2 != 0 {
			h = h[:len(h)-1]
			dropped = 1
		}
	}

	segs := make([]Segment, 0, len(h)/2)
	for i := 0; i+1 < len(h); i += 2 {
		in, out := h[i], h[i+1]
		nIn, nOut := in.Normal, out.Normal
		if in.Dn > 0 {
			nIn = negate(nIn)
		}
		if out.Dn < 0 {
			nOut = negate(nOut)
		}
		segs = append(segs, Segment{In: in, Out: out, InNormal: nIn, OutNormal: nOut})
	}
	return segs, dropped
}

// coalesceSameDistance groups hits whose T values form a chain within tol
// of their neighbor and resolves each group to at most one entrance and
// one exit.
func coalesceSameDistance(hits []Hit, tol float64) []Hit {
	out := make([]Hit, 0, len(hits))
	i := 0
	for i < len(hits) {
		j := i + 1
		for j < len(hits) && hits[j].T-hits[j-1].T < tol {
			j++
		}
		out = append(out, resolveCluster(hits[i:j])...)
		i = j
	}
	return out
}

func resolveCluster(cluster []Hit) []Hit {
	if len(cluster) == 1 {
		return cluster
	}
	var entrance, exit *Hit
	for k := range cluster {
		h := &cluster[k]
		if h.Dn < 0 && entrance == nil {
			entrance = h
		}
		if h.Dn > 0 && exit == nil {
			exit = h
		}
	}
	switch {
	case entrance != nil && exit != nil:
		return []Hit{*entrance, *exit}
	case entrance != nil:
		return []Hit{*entrance}
	case exit != nil:
		return []Hit{*exit}
	default:
		return nil
	}
}

// coalesceRunsFILO collapses each run of consecutive same-sign hits to a
// single representative: a run of entrances keeps its first, a run of
// exits keeps its last. This is an intentional asymmetric policy, not a
// symmetric LIFO/FIFO choice — see the package's surrounding design notes.
func coalesceRunsFILO(hits []Hit) []Hit {
	out := make([]Hit, 0, len(hits))
	i := 0
	for i < len(hits) {
		j := i
		sign := signOf(hits[i].Dn)
		for j < len(hits) && signOf(hits[j].Dn) == sign {
			j++
		}
		run := hits[i:j]
		switch {
		case sign < 0:
			out = append(out, run[0])
		case sign > 0:
			out = append(out, run[len(run)-1])
		default:
			out = append(out, run...)
		}
		i = j
	}
	return out
}

func stripLeadingExitsTrailingEntrances(hits []Hit) []Hit {
	start := 0
	for start < len(hits) && hits[start].Dn > 0 {
		start++
	}
	end := len(hits)
	for end > start && hits[end-1].Dn < 0 {
		end--
	}
	return hits[start:end]
}

// repairOddWithFictitious manufactures an opposite-sign hit at the
// distance of the first same-sign adjacency it finds, producing a thin
// sliver segment at the site of a dropped grazing hit.
func repairOddWithFictitious(hits []Hit) []Hit {
	for i := 0; i+1 < len(hits); i++ {
		if signOf(hits[i].Dn) == signOf(hits[i+1].Dn) && hits[i].Dn != 0 {
			fict := hits[i]
			fict.Dn = -hits[i].Dn
			fict.Synthetic = true

			out := make([]Hit, 0, len(hits)+1)
			out = append(out, hits[:i+1]...)
			out = append(out, fict)
			out = append(out, hits[i+1:]...)
			return out
		}
	}
	return hits
}

func appendFinalFictitious(hits []Hit) []Hit {
	if len(hits) == 0 {
		return hits
	}
	last := hits[len(hits)-1]
	fict := last
	fict.Dn = -last.Dn
	fict.Synthetic = true
	return append(hits, fict)
}
