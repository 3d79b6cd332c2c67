package elem

import "fmt"

/*
Shape evaluates the first order Lagrange shape functions of type et at the
master point xi, and their master gradients. These also define the
geometric map of every element in this package.
*/
func Shape(et ElemType, xi Point) (phi []float64, dphi []Point) {
	x, y, z := xi.X, xi.Y, xi.Z
	switch et.Base() {
	case NodeElem:
		return []float64{1}, []Point{{}}
	case Edge2:
		phi = []float64{0.5 * (1 - x), 0.5 * (1 + x)}
		dphi = []Point{{X: -0.5}, {X: 0.5}}
	case Tri3:
		phi = []float64{1 - x - y, x, y}
		dphi = []Point{{X: -1, Y: -1}, {X: 1}, {Y: 1}}
	case Quad4:
		phi = make([]float64, 4)
		dphi = make([]Point, 4)
		for i, m := range topologies[Quad4].MasterPoints {
			phi[i] = 0.25 * (1 + m.X*x) * (1 + m.Y*y)
			dphi[i] = Point{X: 0.25 * m.X * (1 + m.Y*y), Y: 0.25 * m.Y * (1 + m.X*x)}
		}
	case Tet4:
		phi = []float64{1 - x - y - z, x, y, z}
		dphi = []Point{{X: -1, Y: -1, Z: -1}, {X: 1}, {Y: 1}, {Z: 1}}
	case Hex8:
		phi = make([]float64, 8)
		dphi = make([]Point, 8)
		for i, m := range topologies[Hex8].MasterPoints {
			fx, fy, fz := 1+m.X*x, 1+m.Y*y, 1+m.Z*z
			phi[i] = 0.125 * fx * fy * fz
			dphi[i] = Point{X: 0.125 * m.X * fy * fz, Y: 0.125 * m.Y * fx * fz, Z: 0.125 * m.Z * fx * fy}
		}
	case Prism6:
		tri := []float64{1 - x - y, x, y}
		dtri := []Point{{X: -1, Y: -1}, {X: 1}, {Y: 1}}
		lo, hi := 0.5*(1-z), 0.5*(1+z)
		phi = make([]float64, 6)
		dphi = make([]Point, 6)
		for i := 0; i < 3; i++ {
			phi[i] = tri[i] * lo
			phi[i+3] = tri[i] * hi
			dphi[i] = Point{X: dtri[i].X * lo, Y: dtri[i].Y * lo, Z: -0.5 * tri[i]}
			dphi[i+3] = Point{X: dtri[i].X * hi, Y: dtri[i].Y * hi, Z: 0.5 * tri[i]}
		}
	case Pyramid5:
		// Rational basis; singular at the apex where den vanishes
		den := 1 - z
		if den < 1.e-12 {
			den = 1.e-12
		}
		a, b := z+x-1, z+y-1
		c, e := z-x-1, z-y-1
		q, q2 := 0.25/den, 0.25/(den*den)
		phi = []float64{q * a * b, q * c * b, q * c * e, q * a * e, z}
		dphi = []Point{
			{X: q * b, Y: q * a, Z: q*(a+b) + q2*a*b},
			{X: -q * b, Y: q * c, Z: q*(c+b) + q2*c*b},
			{X: -q * e, Y: -q * c, Z: q*(c+e) + q2*c*e},
			{X: q * e, Y: -q * a, Z: q*(a+e) + q2*a*e},
			{Z: 1},
		}
	default:
		panic(fmt.Errorf("no shape functions for element type %v", et))
	}
	return
}
