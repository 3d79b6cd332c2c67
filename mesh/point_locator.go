package mesh

import (
	"math"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/types"
)

/*
PointLocator bins the active elements of a mesh into a uniform grid laid over
their joint bounding box, so a point query only inverse-maps the elements
whose padded boxes overlap its bin. A locator is a snapshot: it goes stale on
the next change to the mesh, and Mesh.SubPointLocator rebuilds it then.
*/
type PointLocator struct {
	Tolerance float64
	mesh      *Mesh
	stamp     uint64
	lo, hi    elem.Point
	nb        [3]int
	width     [3]float64
	bins      [][]types.DofID
}

func NewPointLocator(m *Mesh) (pl *PointLocator) {
	pl = &PointLocator{
		Tolerance: types.TOLERANCE,
		mesh:      m,
		stamp:     m.stamp,
	}
	active := m.ActiveElements()
	if len(active) == 0 {
		return
	}
	pl.lo = elem.Point{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	pl.hi = elem.Point{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	boxes := make([][2]elem.Point, len(active))
	for i, e := range active {
		lo, hi := e.BoundingBox()
		pad := 10 * pl.Tolerance * e.HMax()
		lo = elem.Point{X: lo.X - pad, Y: lo.Y - pad, Z: lo.Z - pad}
		hi = elem.Point{X: hi.X + pad, Y: hi.Y + pad, Z: hi.Z + pad}
		boxes[i] = [2]elem.Point{lo, hi}
		pl.lo = elem.Point{X: math.Min(pl.lo.X, lo.X), Y: math.Min(pl.lo.Y, lo.Y), Z: math.Min(pl.lo.Z, lo.Z)}
		pl.hi = elem.Point{X: math.Max(pl.hi.X, hi.X), Y: math.Max(pl.hi.Y, hi.Y), Z: math.Max(pl.hi.Z, hi.Z)}
	}
	perDim := int(math.Ceil(math.Pow(float64(len(active)), 1./float64(m.Dim))))
	lo, hi := components(pl.lo), components(pl.hi)
	for d := 0; d < 3; d++ {
		pl.nb[d] = 1
		if d < m.Dim {
			pl.nb[d] = perDim
		}
		pl.width[d] = (hi[d] - lo[d]) / float64(pl.nb[d])
	}
	pl.bins = make([][]types.DofID, pl.nb[0]*pl.nb[1]*pl.nb[2])
	for i, e := range active {
		b0, b1 := pl.binRange(boxes[i][0]), pl.binRange(boxes[i][1])
		for k := b0[2]; k <= b1[2]; k++ {
			for j := b0[1]; j <= b1[1]; j++ {
				for ii := b0[0]; ii <= b1[0]; ii++ {
					b := pl.binIndex(ii, j, k)
					pl.bins[b] = append(pl.bins[b], e.ID())
				}
			}
		}
	}
	return
}

func components(p elem.Point) [3]float64 { return [3]float64{p.X, p.Y, p.Z} }

func (pl *PointLocator) binRange(p elem.Point) (b [3]int) {
	x, lo := components(p), components(pl.lo)
	for d := 0; d < 3; d++ {
		if pl.width[d] > 0 {
			b[d] = int(math.Floor((x[d] - lo[d]) / pl.width[d]))
		}
		b[d] = max(0, min(pl.nb[d]-1, b[d]))
	}
	return
}

func (pl *PointLocator) binIndex(i, j, k int) int { return i + pl.nb[0]*(j+pl.nb[1]*k) }

func (pl *PointLocator) inside(p elem.Point) bool {
	return p.X >= pl.lo.X && p.Y >= pl.lo.Y && p.Z >= pl.lo.Z &&
		p.X <= pl.hi.X && p.Y <= pl.hi.Y && p.Z <= pl.hi.Z
}

func (pl *PointLocator) candidates(p elem.Point) []types.DofID {
	if len(pl.bins) == 0 || !pl.inside(p) {
		return nil
	}
	b := pl.binRange(p)
	return pl.bins[pl.binIndex(b[0], b[1], b[2])]
}

// Locate returns the lowest id active element containing p, nil when p is outside the mesh.
func (pl *PointLocator) Locate(p elem.Point) *elem.Elem {
	for _, id := range pl.candidates(p) {
		if e := pl.mesh.Elem(id); e.ContainsPoint(p, pl.Tolerance) {
			return e
		}
	}
	return nil
}

// LocateAll returns every active element containing p in increasing id order.
func (pl *PointLocator) LocateAll(p elem.Point) (found []*elem.Elem) {
	for _, id := range pl.candidates(p) {
		if e := pl.mesh.Elem(id); e.ContainsPoint(p, pl.Tolerance) {
			found = append(found, e)
		}
	}
	return
}
