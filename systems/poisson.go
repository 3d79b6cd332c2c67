package systems

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/fe"
)

/*
Poisson assembles -div(K grad u) = f for every variable independently, with
natural boundary conditions wherever no Dirichlet boundary is set.
Elements with a p level above zero are rejected, the shapes being first
order only.
*/
type Poisson struct {
	Source          func(p elem.Point) float64 // Nil is zero
	Conductivity    func(p elem.Point) float64 // Nil is one
	QuadratureOrder int
}

func (ps *Poisson) ElementMatrix(e *elem.Elem, nVars int) (Ke [][]float64, Fe []float64) {
	if e.PLevel > 0 {
		panic(fmt.Errorf("element %d has p level %d, the first order Poisson system does not support p refinement",
			e.ID(), e.PLevel))
	}
	order := ps.QuadratureOrder
	if order == 0 {
		order = 2
	}
	nn := e.NNodes()
	n := nn * nVars
	Ke = make([][]float64, n)
	for i := range Ke {
		Ke[i] = make([]float64, n)
	}
	Fe = make([]float64, n)
	f := fe.NewFE()
	f.Reinit(e, order)
	for q, jxw := range f.JxW {
		k, src := 1., 0.
		if ps.Conductivity != nil {
			k = ps.Conductivity(f.XYZ[q])
		}
		if ps.Source != nil {
			src = ps.Source(f.XYZ[q])
		}
		for i := 0; i < nn; i++ {
			for j := 0; j < nn; j++ {
				kij := jxw * k * r3.Dot(f.DPhi[q][i], f.DPhi[q][j])
				for v := 0; v < nVars; v++ {
					Ke[v*nn+i][v*nn+j] += kij
				}
			}
			for v := 0; v < nVars; v++ {
				Fe[v*nn+i] += jxw * src * f.Phi[q][i]
			}
		}
	}
	return
}

// NewPoissonSystem adds a one variable Poisson system named name to es.
func NewPoissonSystem(es *EquationSystems, name string, source func(p elem.Point) float64) (sys *System) {
	sys = es.AddSystem(name)
	sys.AddVariable("u")
	sys.Assembler = &Poisson{Source: source}
	return
}
