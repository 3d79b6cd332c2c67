package elem

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

func tripleProduct(a, b, c Point) float64 { return r3.Dot(a, r3.Cross(b, c)) }

// MasterCentroid is the centroid of the master element of type et.
func MasterCentroid(et ElemType) Point {
	switch et.Base() {
	case Tri3:
		return Point{X: 1. / 3, Y: 1. / 3}
	case Tet4:
		return Point{X: .25, Y: .25, Z: .25}
	case Prism6:
		return Point{X: 1. / 3, Y: 1. / 3}
	case Pyramid5:
		return Point{Z: .25}
	}
	return Point{}
}

// Map sends master coordinates xi to physical space.
func (e *Elem) Map(xi Point) (x Point) {
	phi, _ := Shape(e.Type, xi)
	for i, n := range e.Nodes {
		x = r3.Add(x, r3.Scale(phi[i], n.Point))
	}
	return
}

// Tangents returns dx/dxi_k for each master direction k < Dim.
func (e *Elem) Tangents(xi Point) (t []Point) {
	_, dphi := Shape(e.Type, xi)
	t = make([]Point, e.Dim())
	for i, n := range e.Nodes {
		d := [3]float64{dphi[i].X, dphi[i].Y, dphi[i].Z}
		for k := range t {
			t[k] = r3.Add(t[k], r3.Scale(d[k], n.Point))
		}
	}
	return
}

/*
JacobianDeterminant is the measure scaling of the map at xi: |t0| in 1D,
|t0 x t1| in 2D and the signed triple product in 3D.
*/
func (e *Elem) JacobianDeterminant(xi Point) float64 {
	t := e.Tangents(xi)
	switch len(t) {
	case 0:
		return 1
	case 1:
		return r3.Norm(t[0])
	case 2:
		return r3.Norm(r3.Cross(t[0], t[1]))
	}
	return tripleProduct(t[0], t[1], t[2])
}

/*
InverseMap finds master coordinates of p by Newton iteration on the least
squares system T^T T dxi = T^T (p - x(xi)). Points off a lower dimensional
element map to their projection. ok is false if the iteration stalls.
*/
func (e *Elem) InverseMap(p Point) (xi Point, ok bool) {
	dim := e.Dim()
	xi = MasterCentroid(e.Type)
	if dim == 0 {
		return xi, true
	}
	const (
		maxIter = 25
		tol     = 1.e-12
	)
	G := mat.NewDense(dim, dim, nil)
	rhs := mat.NewVecDense(dim, nil)
	var dxi mat.VecDense
	for it := 0; it < maxIter; it++ {
		r := r3.Sub(p, e.Map(xi))
		t := e.Tangents(xi)
		for a := 0; a < dim; a++ {
			rhs.SetVec(a, r3.Dot(t[a], r))
			for b := 0; b < dim; b++ {
				G.Set(a, b, r3.Dot(t[a], t[b]))
			}
		}
		if err := dxi.SolveVec(G, rhs); err != nil {
			return xi, false
		}
		step := [3]float64{}
		norm := 0.
		for a := 0; a < dim; a++ {
			step[a] = dxi.AtVec(a)
			norm += step[a] * step[a]
		}
		xi = Point{X: xi.X + step[0], Y: xi.Y + step[1], Z: xi.Z + step[2]}
		if math.Sqrt(norm) < tol {
			return xi, true
		}
		if math.IsNaN(norm) || norm > 1.e12 {
			return xi, false
		}
	}
	return xi, false
}

func (e *Elem) OnReferenceElement(xi Point, eps float64) bool {
	return e.Topology().OnReferenceElement(xi, eps)
}

/*
ContainsPoint reports whether p lies in the element within the relative
tolerance tol. Lower dimensional elements also require p to lie on the
element within tol*HMax.
*/
func (e *Elem) ContainsPoint(p Point, tol float64) bool {
	h := e.HMax()
	lo, hi := e.BoundingBox()
	pad := tol * h
	if p.X < lo.X-pad || p.Y < lo.Y-pad || p.Z < lo.Z-pad ||
		p.X > hi.X+pad || p.Y > hi.Y+pad || p.Z > hi.Z+pad {
		return false
	}
	xi, ok := e.InverseMap(p)
	if !ok || !e.OnReferenceElement(xi, tol) {
		return false
	}
	if e.Dim() < 3 {
		return r3.Norm(r3.Sub(e.Map(xi), p)) <= pad+1.e-14
	}
	return true
}

func (e *Elem) BoundingBox() (lo, hi Point) {
	inf := math.Inf(1)
	lo, hi = Point{X: inf, Y: inf, Z: inf}, Point{X: -inf, Y: -inf, Z: -inf}
	for _, n := range e.Nodes {
		lo = Point{X: math.Min(lo.X, n.X), Y: math.Min(lo.Y, n.Y), Z: math.Min(lo.Z, n.Z)}
		hi = Point{X: math.Max(hi.X, n.X), Y: math.Max(hi.Y, n.Y), Z: math.Max(hi.Z, n.Z)}
	}
	return
}

func (e *Elem) VertexAverage() (c Point) {
	for _, n := range e.Nodes {
		c = r3.Add(c, n.Point)
	}
	return r3.Scale(1/float64(len(e.Nodes)), c)
}

// Centroid is the image of the master element centroid.
func (e *Elem) Centroid() Point { return e.Map(MasterCentroid(e.Type)) }

// HMin is the smallest distance between two vertices.
func (e *Elem) HMin() float64 {
	h := math.Inf(1)
	for i := 0; i < len(e.Nodes); i++ {
		for j := i + 1; j < len(e.Nodes); j++ {
			h = math.Min(h, r3.Norm(r3.Sub(e.Point(i), e.Point(j))))
		}
	}
	return h
}

// HMax is the largest distance between two vertices.
func (e *Elem) HMax() float64 {
	h := 0.
	for i := 0; i < len(e.Nodes); i++ {
		for j := i + 1; j < len(e.Nodes); j++ {
			h = math.Max(h, r3.Norm(r3.Sub(e.Point(i), e.Point(j))))
		}
	}
	return h
}

/*
Volume is the length, area or volume of the element. Simplices, the quad and
the pyramid are split into simplices, which is exact for planar faces; the hex
and prism integrate the Jacobian determinant with a product Gauss rule.
*/
func (e *Elem) Volume() float64 {
	p := e.Point
	triArea := func(a, b, c Point) float64 { return 0.5 * r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a))) }
	tetVol := func(a, b, c, d Point) float64 {
		return math.Abs(tripleProduct(r3.Sub(b, a), r3.Sub(c, a), r3.Sub(d, a))) / 6
	}
	switch e.Type.Base() {
	case NodeElem:
		return 0
	case Edge2:
		return r3.Norm(r3.Sub(p(1), p(0)))
	case Tri3:
		return triArea(p(0), p(1), p(2))
	case Quad4:
		return triArea(p(0), p(1), p(2)) + triArea(p(0), p(2), p(3))
	case Tet4:
		return tetVol(p(0), p(1), p(2), p(3))
	case Pyramid5:
		return tetVol(p(0), p(1), p(2), p(4)) + tetVol(p(0), p(2), p(3), p(4))
	}
	g := 1 / math.Sqrt(3)
	vol := 0.
	switch e.Type {
	case Hex8:
		for _, x := range []float64{-g, g} {
			for _, y := range []float64{-g, g} {
				for _, z := range []float64{-g, g} {
					vol += e.JacobianDeterminant(Point{X: x, Y: y, Z: z})
				}
			}
		}
	case Prism6:
		for _, tp := range [][2]float64{{1. / 6, 1. / 6}, {2. / 3, 1. / 6}, {1. / 6, 2. / 3}} {
			for _, z := range []float64{-g, g} {
				vol += e.JacobianDeterminant(Point{X: tp[0], Y: tp[1], Z: z}) / 6
			}
		}
	}
	return math.Abs(vol)
}

/*
IsFlipped detects an inverted element from the sign of the orientation of its
first vertices: the triple product in 3D, the z component of the cross product
for planar 2D elements and the x order in 1D.
*/
func (e *Elem) IsFlipped() bool {
	p := e.Point
	d := func(i, j int) Point { return r3.Sub(p(i), p(j)) }
	switch e.Type.Base() {
	case Edge2:
		return p(1).X < p(0).X
	case Tri3:
		return r3.Cross(d(1, 0), d(2, 0)).Z < 0
	case Quad4:
		return r3.Cross(d(1, 0), d(3, 0)).Z < 0
	case Tet4, Prism6:
		return tripleProduct(d(1, 0), d(2, 0), d(3, 0)) < 0
	case Hex8, Pyramid5:
		return tripleProduct(d(1, 0), d(3, 0), d(4, 0)) < 0
	}
	return false
}
