package fe

import (
	"fmt"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/mfkiwl/libmesh/elem"
)

/*
QRule is a quadrature rule on the master element of Type, exact for
polynomials of total degree Order. Tensor product Gauss rules cover lines,
quads and hexes; simplices and the pyramid use collapsed (Duffy) products of
Gauss rules, whose weights fold in the collapse Jacobian.
*/
type QRule struct {
	Type    elem.ElemType
	Order   int
	Points  []elem.Point
	Weights []float64
}

func (qr *QRule) NPoints() int { return len(qr.Points) }

// gauss returns the n point Gauss-Legendre rule on [lo,hi].
func gauss(n int, lo, hi float64) (x, w []float64) {
	x, w = make([]float64, n), make([]float64, n)
	quad.Legendre{}.FixedLocations(x, w, lo, hi)
	return
}

func NewQRule(et elem.ElemType, order int) (qr *QRule) {
	if order < 0 {
		panic(fmt.Errorf("negative quadrature order %d", order))
	}
	qr = &QRule{Type: et, Order: order}
	add := func(p elem.Point, w float64) {
		qr.Points = append(qr.Points, p)
		qr.Weights = append(qr.Weights, w)
	}
	gaussN := order/2 + 1
	switch et.Base() {
	case elem.NodeElem:
		add(elem.Point{}, 1)
	case elem.Edge2:
		x, w := gauss(gaussN, -1, 1)
		for i := range x {
			add(elem.Point{X: x[i]}, w[i])
		}
	case elem.Quad4:
		x, w := gauss(gaussN, -1, 1)
		for j := range x {
			for i := range x {
				add(elem.Point{X: x[i], Y: x[j]}, w[i]*w[j])
			}
		}
	case elem.Hex8:
		x, w := gauss(gaussN, -1, 1)
		for k := range x {
			for j := range x {
				for i := range x {
					add(elem.Point{X: x[i], Y: x[j], Z: x[k]}, w[i]*w[j]*w[k])
				}
			}
		}
	case elem.Tri3:
		for _, tp := range triangleRule(order) {
			add(elem.Point{X: tp[0], Y: tp[1]}, tp[2])
		}
	case elem.Prism6:
		z, wz := gauss(gaussN, -1, 1)
		for k := range z {
			for _, tp := range triangleRule(order) {
				add(elem.Point{X: tp[0], Y: tp[1], Z: z[k]}, tp[2]*wz[k])
			}
		}
	case elem.Tet4:
		// x = u, y = (1-u)v, z = (1-u)(1-v)w
		n := (order + 4) / 2
		u, wu := gauss(n, 0, 1)
		for i := range u {
			for j := range u {
				for k := range u {
					add(elem.Point{X: u[i], Y: (1 - u[i]) * u[j], Z: (1 - u[i]) * (1 - u[j]) * u[k]},
						wu[i]*wu[j]*wu[k]*(1-u[i])*(1-u[i])*(1-u[j]))
				}
			}
		}
	case elem.Pyramid5:
		// x = a(1-c), y = b(1-c), z = c
		a, wa := gauss(gaussN, -1, 1)
		c, wc := gauss((order+4)/2, 0, 1)
		for k := range c {
			s := 1 - c[k]
			for j := range a {
				for i := range a {
					add(elem.Point{X: a[i] * s, Y: a[j] * s, Z: c[k]}, wa[i]*wa[j]*wc[k]*s*s)
				}
			}
		}
	default:
		panic(fmt.Errorf("no quadrature rule for element type %v", et))
	}
	return
}

// triangleRule lists (x, y, weight) of the collapsed rule x = u, y = (1-u)v.
func triangleRule(order int) (pts [][3]float64) {
	n := (order + 3) / 2
	u, w := gauss(n, 0, 1)
	for i := range u {
		for j := range u {
			pts = append(pts, [3]float64{u[i], (1 - u[i]) * u[j], w[i] * w[j] * (1 - u[i])})
		}
	}
	return
}
