package bot

import (
	"log"
	"sync"

	"github.com/chazu/librt/pkg/bot/bvh"
	"github.com/chazu/librt/pkg/bot/hitbuf"
	"github.com/chazu/librt/pkg/bot/segment"
)

// hitBufPool holds one hitbuf.Buffer[rawHit] per goroutine that calls
// Shot, standing in for the thread-local scratch of §9: Get+Reset at the
// start of a shot, Put back when done, never shared concurrently.
var hitBufPool = sync.Pool{
	New: func() any { return hitbuf.New[rawHit]() },
}

// Hit is a single in- or out-hit of a synthesized segment. It carries
// enough of the raw intersection to support Norm, Curvature, and UV
// recovery without re-walking the BVH.
type Hit struct {
	T         float64
	SurfID    int
	Dn        float64
	Normal    Vec3
	Synthetic bool

	beta, gamma float64
	tri         *triangle
	ray         Ray
}

// Segment is one ordered in/out interval of a ray inside (or through, for
// Plate/Surface modes) the solid.
type Segment struct {
	In, Out Hit
}

// SegList accumulates the segments produced by one or more Shot calls,
// standing in for the caller-owned segment-allocation resource of §6.
type SegList struct {
	Segments []Segment
}

func (s *SegList) append(seg Segment) {
	s.Segments = append(s.Segments, seg)
}

// Application carries the per-call flags §6 groups under "application":
// whether the caller wants raw (unflipped) normals, and an optional
// distance tolerance override. A zero Tol falls back to the Prepped's
// own prep-time tolerance.
type Application struct {
	ReverseNormalDisabled bool
	Tol                   float64
}

func (p *Prepped) segmentMode() (segment.Mode, error) {
	switch p.mesh.Mode {
	case Surface:
		return segment.ModeSurface{}, nil
	case Solid:
		if p.mesh.Orientation == Unoriented {
			return segment.ModeSolidUnoriented{}, nil
		}
		return segment.ModeSolidOriented{}, nil
	case Plate, PlateNoCos:
		if len(p.mesh.Thickness) != len(p.mesh.Faces) || len(p.mesh.FaceModes) != len(p.mesh.Faces) {
			return nil, newError(Inconsistent, "plate mesh missing thickness or face-mode data")
		}
		appended := make([]bool, len(p.mesh.Faces))
		for i, fm := range p.mesh.FaceModes {
			appended[i] = fm == Appended
		}
		return segment.ModePlate{
			Thickness: p.mesh.Thickness,
			Appended:  appended,
			NoCos:     p.mesh.Mode == PlateNoCos,
		}, nil
	default:
		return nil, newError(Inconsistent, "unknown mesh mode %d", p.mesh.Mode)
	}
}

// Shot fires ray through p, appending every resulting segment to segs and
// returning the number of segments produced. It recovers from a BVH
// traversal stack overflow and reports it as a StackOverflow error rather
// than crashing the process, matching the fatal/value-returned half of the
// error policy in §7.
func Shot(p *Prepped, ray Ray, segs *SegList, app Application) (hitCount int, err error) {
	tol := app.Tol
	if tol <= 0 {
		tol = p.tol
	}

	mode, err := p.segmentMode()
	if err != nil {
		return 0, err
	}

	buf := hitBufPool.Get().(*hitbuf.Buffer[rawHit])
	buf.Reset()
	defer hitBufPool.Put(buf)

	if traversalErr := runTraversal(p, ray, tol, buf); traversalErr != nil {
		return 0, traversalErr
	}

	buf.SortByDistance()
	raw := buf.Items()

	segHits := make([]segment.Hit, len(raw))
	for i, rh := range raw {
		segHits[i] = segment.Hit{
			T:      rh.t,
			SurfID: rh.surfID,
			Dn:     rh.dn,
			Normal: [3]float64{rh.tri.unitNorm.X, rh.tri.unitNorm.Y, rh.tri.unitNorm.Z},
			Idx:    i,
		}
	}

	built, dropped := segment.Build(segHits, mode, tol)
	if dropped > 0 {
		log.Printf("bot: shot dropped %d odd hit(s) after repair", dropped)
	}

	for _, s := range built {
		inNormal, outNormal := s.In.Normal, s.Out.Normal
		if !app.ReverseNormalDisabled {
			// segment.Build already applied the mode-correct entrance/exit
			// flip (Plate and Solid+Oriented only; Surface and
			// Solid+Unoriented pass the raw normal through unchanged).
			inNormal, outNormal = s.InNormal, s.OutNormal
		}
		in := resolveHit(s.In, inNormal, raw, &ray)
		out := resolveHit(s.Out, outNormal, raw, &ray)
		segs.append(Segment{In: in, Out: out})
	}

	return len(built), nil
}

func runTraversal(p *Prepped, ray Ray, tol float64, buf *hitbuf.Buffer[rawHit]) (err *Error) {
	defer func() {
		if r := recover(); r != nil {
			if r == bvh.ErrStackOverflow {
				err = newError(StackOverflow, "traversal stack exceeded during shot")
				return
			}
			panic(r)
		}
	}()
	bvh.Traverse(p.flat, ray.Origin, ray.Dir, func(first, n int) {
		for i := 0; i < n; i++ {
			tr := &p.tris[first+i]
			if h, ok := intersectTriangle(tr, &ray, tol); ok {
				buf.Push(h)
			}
		}
	})
	return nil
}

// resolveHit rebuilds a public Hit from a segment.Hit, recovering the
// richer fields (triangle pointer, barycentrics) from the matching raw hit
// when one exists. Synthetic hits manufactured during repair carry Idx
// copied from the real neighbor they were derived from, so they still
// resolve to a triangle for normal/curvature purposes. normal is the
// caller-chosen (possibly entrance/exit-flipped) normal to report, since
// that flip is mode-dependent and already resolved by segment.Build.
func resolveHit(h segment.Hit, normal [3]float64, raw []rawHit, ray *Ray) Hit {
	out := Hit{
		T:         h.T,
		SurfID:    h.SurfID,
		Dn:        h.Dn,
		Normal:    Vec3{X: normal[0], Y: normal[1], Z: normal[2]},
		Synthetic: h.Synthetic,
		ray:       *ray,
	}
	if h.Idx >= 0 && h.Idx < len(raw) {
		rh := raw[h.Idx]
		out.beta = rh.beta
		out.gamma = rh.gamma
		out.tri = rh.tri
	}
	return out
}
