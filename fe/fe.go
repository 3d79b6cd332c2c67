package fe

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mfkiwl/libmesh/elem"
)

/*
FE holds first order Lagrange shape values and physical gradients at a set
of points of one element: the points of a quadrature rule on the element or
on one of its sides, or arbitrary physical points. Index order is [qp][i].
*/
type FE struct {
	Elem    *elem.Elem
	Side    int // -1 unless reinitialized on a side
	QRule   *QRule
	Phi     [][]float64
	DPhi    [][]elem.Point
	JxW     []float64
	XYZ     []elem.Point
	Xi      []elem.Point
	Normals []elem.Point // Outward unit normals, side reinit only
}

func NewFE() *FE { return &FE{Side: -1} }

func (fe *FE) NPoints() int { return len(fe.Xi) }

func (fe *FE) reset(e *elem.Elem, side int, qr *QRule) {
	fe.Elem, fe.Side, fe.QRule = e, side, qr
	fe.Phi, fe.DPhi, fe.JxW, fe.XYZ, fe.Xi, fe.Normals = nil, nil, nil, nil, nil, nil
}

func (fe *FE) addPoint(xi elem.Point) (tangents []elem.Point) {
	phi, grads, tangents := ShapeGradients(fe.Elem, xi)
	fe.Xi = append(fe.Xi, xi)
	fe.XYZ = append(fe.XYZ, fe.Elem.Map(xi))
	fe.Phi = append(fe.Phi, phi)
	fe.DPhi = append(fe.DPhi, grads)
	return
}

// Reinit evaluates at the points of a rule of the given order on e.
func (fe *FE) Reinit(e *elem.Elem, order int) {
	qr := NewQRule(e.Type, order)
	fe.reset(e, -1, qr)
	for q, xi := range qr.Points {
		fe.addPoint(xi)
		fe.JxW = append(fe.JxW, qr.Weights[q]*math.Abs(e.JacobianDeterminant(xi)))
	}
}

/*
ReinitSide evaluates at the points of a rule of the given order on side s
of e. Weights carry the side's own Jacobian, so JxW integrates over the
side.
*/
func (fe *FE) ReinitSide(e *elem.Elem, s int, order int) {
	side := e.SidePtr(s)
	qr := NewQRule(side.Type, order)
	fe.reset(e, s, qr)
	centroid := e.Centroid()
	for q, xs := range qr.Points {
		x := side.Map(xs)
		xi, ok := e.InverseMap(x)
		if !ok {
			panic(fmt.Errorf("side %d point of element %d does not map back to the element", s, e.ID()))
		}
		tangents := fe.addPoint(xi)
		fe.JxW = append(fe.JxW, qr.Weights[q]*side.JacobianDeterminant(xs))
		fe.Normals = append(fe.Normals, outwardNormal(tangents, side.Tangents(xs), r3.Sub(x, centroid)))
	}
}

/*
ReinitPhysical evaluates at physical points xyz, which must lie in e. JxW is
left empty.
*/
func (fe *FE) ReinitPhysical(e *elem.Elem, xyz []elem.Point) {
	fe.reset(e, -1, nil)
	for _, x := range xyz {
		xi, ok := e.InverseMap(x)
		if !ok {
			panic(fmt.Errorf("point %v does not map into element %d", x, e.ID()))
		}
		fe.addPoint(xi)
	}
}

// Value interpolates the element nodal values u at point qp.
func (fe *FE) Value(qp int, u []float64) (v float64) {
	for i, phi := range fe.Phi[qp] {
		v += phi * u[i]
	}
	return
}

// Gradient interpolates the physical gradient of the element nodal values u at point qp.
func (fe *FE) Gradient(qp int, u []float64) (g elem.Point) {
	for i, d := range fe.DPhi[qp] {
		g = r3.Add(g, r3.Scale(u[i], d))
	}
	return
}

/*
ShapeGradients returns the shape values of e at master point xi, their
physical gradients and the tangents dx/dxi. Gradients live in the span of
the tangents, so they are correct for elements of lower dimension than the
space (edges in 2D, shells in 3D).
*/
func ShapeGradients(e *elem.Elem, xi elem.Point) (phi []float64, grads []elem.Point, tangents []elem.Point) {
	var dphi []elem.Point
	phi, dphi = elem.Shape(e.Type, xi)
	tangents = e.Tangents(xi)
	dim := len(tangents)
	grads = make([]elem.Point, len(phi))
	if dim == 0 {
		return
	}
	// Dual basis g^k = sum_l (T^T T)^-1_kl t_l
	G := mat.NewDense(dim, dim, nil)
	for a := 0; a < dim; a++ {
		for b := 0; b < dim; b++ {
			G.Set(a, b, r3.Dot(tangents[a], tangents[b]))
		}
	}
	var Ginv mat.Dense
	if err := Ginv.Inverse(G); err != nil {
		if _, ok := err.(mat.Condition); !ok {
			panic(fmt.Errorf("degenerate map in element %d at %v: %w", e.ID(), xi, err))
		}
	}
	dual := make([]elem.Point, dim)
	for k := 0; k < dim; k++ {
		for l := 0; l < dim; l++ {
			dual[k] = r3.Add(dual[k], r3.Scale(Ginv.At(k, l), tangents[l]))
		}
	}
	for i, d := range dphi {
		ref := [3]float64{d.X, d.Y, d.Z}
		for k := 0; k < dim; k++ {
			grads[i] = r3.Add(grads[i], r3.Scale(ref[k], dual[k]))
		}
	}
	return
}

/*
outwardNormal picks the element tangent with the largest part orthogonal to
the side tangents, and orients that part along out.
*/
func outwardNormal(elemTangents, sideTangents []elem.Point, out elem.Point) (n elem.Point) {
	var basis []elem.Point
	for _, s := range sideTangents {
		for _, b := range basis {
			s = r3.Sub(s, r3.Scale(r3.Dot(s, b), b))
		}
		if l := r3.Norm(s); l > 0 {
			basis = append(basis, r3.Scale(1/l, s))
		}
	}
	best := 0.
	for _, t := range elemTangents {
		for _, b := range basis {
			t = r3.Sub(t, r3.Scale(r3.Dot(t, b), b))
		}
		if l := r3.Norm(t); l > best {
			best, n = l, r3.Scale(1/l, t)
		}
	}
	if r3.Dot(n, out) < 0 {
		n = r3.Scale(-1, n)
	}
	return
}
