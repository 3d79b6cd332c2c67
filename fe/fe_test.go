package fe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/mesh"
)

func factorial(n int) float64 {
	f := 1.
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}

func TestQuadratureExactness(t *testing.T) {
	integrate := func(qr *QRule, f func(p elem.Point) float64) (sum float64) {
		for q, p := range qr.Points {
			sum += qr.Weights[q] * f(p)
		}
		return
	}
	for order := 0; order <= 6; order++ {
		for a := 0; a <= order; a++ {
			b := order - a
			mono := func(p elem.Point) float64 { return math.Pow(p.X, float64(a)) * math.Pow(p.Y, float64(b)) }
			// Simplex moments a! b! / (a+b+2)!
			assert.InDelta(t, factorial(a)*factorial(b)/factorial(a+b+2),
				integrate(NewQRule(elem.Tri3, order), mono), 1.e-13, "tri x^%d y^%d", a, b)
			tet := func(p elem.Point) float64 { return mono(p) * p.Z }
			assert.InDelta(t, factorial(a)*factorial(b)/factorial(a+b+4),
				integrate(NewQRule(elem.Tet4, order+1), tet), 1.e-13, "tet x^%d y^%d z", a, b)
			ab := 0.
			if a%2 == 0 && b%2 == 0 {
				ab = 4 / float64((a+1)*(b+1))
			}
			assert.InDelta(t, ab, integrate(NewQRule(elem.Quad4, order), mono), 1.e-13)
		}
	}
	sums := map[elem.ElemType]float64{
		elem.NodeElem: 1, elem.Edge2: 2, elem.Tri3: 0.5, elem.Quad4: 4, elem.Tet4: 1. / 6,
		elem.Hex8: 8, elem.Prism6: 1, elem.Pyramid5: 4. / 3, elem.QuadShell4: 4}
	for et, want := range sums {
		for _, order := range []int{0, 3, 5} {
			assert.InDelta(t, want, integrate(NewQRule(et, order), func(elem.Point) float64 { return 1 }), 1.e-13, "%v", et)
		}
	}
	// First moment of the pyramid about its base
	assert.InDelta(t, 1./3, integrate(NewQRule(elem.Pyramid5, 1), func(p elem.Point) float64 { return p.Z }), 1.e-13)
	assert.Panics(t, func() { NewQRule(elem.InvalidElem, 1) })
}

func TestFEGradientsReproduceLinears(t *testing.T) {
	linear := func(p elem.Point) float64 { return 1 + 2*p.X - 3*p.Y + 0.5*p.Z }
	want := elem.Point{X: 2, Y: -3, Z: 0.5}
	for _, et := range []elem.ElemType{elem.Hex8, elem.Tet4, elem.Prism6, elem.Pyramid5} {
		m := mesh.BuildCube(1, 1, 1, 0, 2, -1, 1, 0, 3, et)
		for _, e := range m.ActiveElements() {
			fe := NewFE()
			fe.Reinit(e, 2)
			u := make([]float64, e.NNodes())
			for i := range u {
				u[i] = linear(e.Point(i))
			}
			vol := 0.
			for q := range fe.JxW {
				vol += fe.JxW[q]
				assert.InDelta(t, linear(fe.XYZ[q]), fe.Value(q, u), 1.e-12)
				assert.InDelta(t, 0, r3.Norm(r3.Sub(want, fe.Gradient(q, u))), 1.e-10, "%v", et)
			}
			assert.InDelta(t, e.Volume(), vol, 1.e-12, "%v", et)
		}
	}
	sq := mesh.BuildSquare(2, 1, 0, 1, 0, 1, elem.Tri3)
	want2 := elem.Point{X: 2, Y: -3}
	for _, e := range sq.ActiveElements() {
		fe := NewFE()
		fe.Reinit(e, 1)
		u := make([]float64, 3)
		for i := range u {
			u[i] = linear(e.Point(i))
		}
		assert.InDelta(t, 0, r3.Norm(r3.Sub(want2, fe.Gradient(0, u))), 1.e-12)
	}
}

func TestFESideNormals(t *testing.T) {
	m := mesh.BuildSquare(1, 1, 0, 2, 0, 1, elem.Quad4)
	e := m.Elem(0)
	normals := []elem.Point{{Y: -1}, {X: 1}, {Y: 1}, {X: -1}}
	lengths := []float64{2, 1, 2, 1}
	fe := NewFE()
	for s := 0; s < 4; s++ {
		fe.ReinitSide(e, s, 2)
		sum := 0.
		for q := range fe.JxW {
			sum += fe.JxW[q]
			assert.InDelta(t, 0, r3.Norm(r3.Sub(normals[s], fe.Normals[q])), 1.e-12)
			assert.True(t, e.SidePtr(s).ContainsPoint(fe.XYZ[q], 1.e-8))
		}
		assert.InDelta(t, lengths[s], sum, 1.e-12)
	}

	line := mesh.BuildLine(2, 0, 1)
	fe.ReinitSide(line.Elem(0), 0, 1)
	assert.Equal(t, elem.Point{X: -1}, fe.Normals[0])
	assert.Equal(t, 1., fe.JxW[0])
	fe.ReinitSide(line.Elem(0), 1, 1)
	assert.Equal(t, elem.Point{X: 1}, fe.Normals[0])

	cube := mesh.BuildCube(1, 1, 1, 0, 1, 0, 1, 0, 1, elem.Tet4)
	for _, e := range cube.ActiveElements() {
		for s := 0; s < e.NSides(); s++ {
			fe.ReinitSide(e, s, 1)
			// Outward: moving along the normal leaves the element
			out := r3.Add(fe.XYZ[0], r3.Scale(1.e-3, fe.Normals[0]))
			assert.False(t, e.ContainsPoint(out, 1.e-6))
			assert.InDelta(t, 1, r3.Norm(fe.Normals[0]), 1.e-12)
		}
	}

	fe.ReinitPhysical(e, []elem.Point{{X: 1, Y: 0.5}})
	assert.InDelta(t, 0, fe.Xi[0].X, 1.e-12)
	assert.InDelta(t, 1, fe.Phi[0][0]+fe.Phi[0][1]+fe.Phi[0][2]+fe.Phi[0][3], 1.e-12)
	assert.Nil(t, fe.JxW)
}
