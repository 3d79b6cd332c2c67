package estimator

import (
	"fmt"
	"math"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/fe"
	"github.com/mfkiwl/libmesh/mesh"
	"github.com/mfkiwl/libmesh/systems"
	"github.com/mfkiwl/libmesh/types"
)

/*
SideContext carries one variable's data on a side shared by a fine and a
coarse element. Fine and Coarse are evaluated at the same physical points
XYZ; Normals point out of the fine element and Weights are the quadrature
weights of the fine side.
*/
type SideContext struct {
	Var            int
	Fine, Coarse   *fe.FE
	UFine, UCoarse []float64
	XYZ, Normals   []elem.Point
	Weights        []float64
}

/*
SideIntegrator computes the squared jump contributions of one variable.
InternalSideIntegration returns what the fine and the coarse element each
receive; BoundarySideIntegration uses only Fine and reports false when no
boundary data applies at the side.
*/
type SideIntegrator interface {
	InternalSideIntegration(sc *SideContext) (fineError, coarseError float64)
	BoundarySideIntegration(sc *SideContext) (fineError float64, ok bool)
}

/*
JumpErrorEstimator accumulates squared jumps across the sides of active
elements and reports their square roots. Each internal side is integrated
once, from its finer element, or from the lower id one at equal levels, and
credited to both elements.
*/
type JumpErrorEstimator struct {
	Integrator SideIntegrator

	ScaleByNFluxFaces      bool
	IntegrateBoundarySides bool
	IntegrateSlits         bool

	// Weights scales each variable's contribution, one where missing. Zero skips the variable.
	Weights         []float64
	QuadratureOrder int
	// SolutionVector replaces the system solution when set.
	SolutionVector []float64

	kind EstimatorType
}

func (je *JumpErrorEstimator) Type() EstimatorType { return je.kind }

func (je *JumpErrorEstimator) weight(v int) float64 {
	if v < len(je.Weights) {
		return je.Weights[v]
	}
	return 1
}

func (je *JumpErrorEstimator) order() int {
	if je.QuadratureOrder > 0 {
		return je.QuadratureOrder
	}
	return 2
}

type jumpState struct {
	*JumpErrorEstimator
	sys          *systems.System
	m            *mesh.Mesh
	u            []float64
	errs, nFlux  []float64
	fine, coarse *fe.FE
}

func (je *JumpErrorEstimator) EstimateError(sys *systems.System, errorPerCell *ErrorVector, estimateParentError bool) (err error) {
	if je.Integrator == nil {
		panic(fmt.Errorf("jump error estimator has no side integrator"))
	}
	if je.IntegrateSlits && je.IntegrateBoundarySides {
		panic(fmt.Errorf("slit integration cannot be combined with boundary side integration"))
	}
	es := sys.EquationSystems()
	m := es.Mesh
	u := sys.Solution
	if je.SolutionVector != nil {
		if len(je.SolutionVector) != sys.NDofs() {
			panic(fmt.Errorf("solution vector of length %d for system %q with %d dofs",
				len(je.SolutionVector), sys.Name, sys.NDofs()))
		}
		u = je.SolutionVector
	}
	errorPerCell.Reset(m)
	js := &jumpState{
		JumpErrorEstimator: je,
		sys:                sys,
		m:                  m,
		u:                  u,
		errs:               errorPerCell.Values,
		fine:               fe.NewFE(),
		coarse:             fe.NewFE(),
	}
	if je.ScaleByNFluxFaces {
		js.nFlux = make([]float64, len(js.errs))
	}
	for _, e := range m.ActiveLocalElements(localRank(es)) {
		if estimateParentError && e.HasParent() {
			if p := m.Elem(e.ParentID); js.errs[p.ID()] == 0 && js.completeFamily(p) {
				js.parentSides(p)
			}
		}
		for s, nbID := range e.NeighborIDs {
			f := m.QueryElem(nbID)
			switch {
			case f != nil:
				if (f.Active() && f.Level == e.Level && e.ID() < f.ID()) || f.Level < e.Level {
					js.internal(e, s, f)
				}
			case je.IntegrateSlits:
				js.slit(e, s)
			case je.IntegrateBoundarySides:
				js.boundary(e, s)
			}
		}
	}

	reduceError(es.Comm, js.errs)
	for i, v := range js.errs {
		if v != 0 {
			js.errs[i] = math.Sqrt(v)
		}
	}
	if je.ScaleByNFluxFaces {
		reduceError(es.Comm, js.nFlux)
		for i, n := range js.nFlux {
			if n != 0 {
				js.errs[i] /= n
			}
		}
	}
	return
}

func (js *jumpState) completeFamily(p *elem.Elem) bool {
	for _, c := range js.m.Children(p) {
		if !c.Active() {
			return false
		}
	}
	return true
}

/*
FaceJump integrates the jump across side s of the fine element e against
the coarse element f, summed over the weighted variables, and returns the
contributions credited to each.
*/
func (je *JumpErrorEstimator) FaceJump(sys *systems.System, u []float64, e *elem.Elem, s int, f *elem.Elem) (fineError, coarseError float64) {
	fine, coarse := fe.NewFE(), fe.NewFE()
	fine.ReinitSide(e, s, je.order())
	coarse.ReinitPhysical(f, fine.XYZ)
	return je.faceJump(sys, u, fine, coarse, fine.JxW)
}

func (je *JumpErrorEstimator) faceJump(sys *systems.System, u []float64, fine, coarse *fe.FE, weights []float64) (fineError, coarseError float64) {
	for v := 0; v < sys.NVars(); v++ {
		w := je.weight(v)
		if w == 0 {
			continue
		}
		sc := &SideContext{
			Var:     v,
			Fine:    fine,
			Coarse:  coarse,
			UFine:   sys.ElementSolution(fine.Elem, u, v),
			UCoarse: sys.ElementSolution(coarse.Elem, u, v),
			XYZ:     fine.XYZ,
			Normals: fine.Normals,
			Weights: weights,
		}
		fineErr, coarseErr := je.Integrator.InternalSideIntegration(sc)
		fineError += w * fineErr
		coarseError += w * coarseErr
	}
	return
}

// coarseFluxIncrement is the share of a coarse side covered by one fine side n levels down.
func coarseFluxIncrement(fine, coarse *elem.Elem) float64 {
	return 1 / float64(int(1)<<((coarse.Dim()-1)*(fine.Level-coarse.Level)))
}

func (js *jumpState) internal(e *elem.Elem, s int, f *elem.Elem) {
	js.fine.ReinitSide(e, s, js.order())
	js.coarse.ReinitPhysical(f, js.fine.XYZ)
	fineErr, coarseErr := js.faceJump(js.sys, js.u, js.fine, js.coarse, js.fine.JxW)
	js.errs[e.ID()] += fineErr
	js.errs[f.ID()] += coarseErr
	if js.nFlux != nil {
		js.nFlux[e.ID()]++
		js.nFlux[f.ID()] += coarseFluxIncrement(e, f)
	}
}

func (js *jumpState) boundary(e *elem.Elem, s int) {
	js.fine.ReinitSide(e, s, js.order())
	found := false
	for v := 0; v < js.sys.NVars(); v++ {
		w := js.weight(v)
		if w == 0 {
			continue
		}
		sc := &SideContext{
			Var:     v,
			Fine:    js.fine,
			UFine:   js.sys.ElementSolution(e, js.u, v),
			XYZ:     js.fine.XYZ,
			Normals: js.fine.Normals,
			Weights: js.fine.JxW,
		}
		if fineErr, ok := js.Integrator.BoundarySideIntegration(sc); ok {
			js.errs[e.ID()] += w * fineErr
			found = true
		}
	}
	if found && js.nFlux != nil {
		js.nFlux[e.ID()]++
	}
}

/*
parentSides integrates the sides of the parent p, whose children are all
active, with p's own nodal values as the coarsened solution. Across each
side the active elements of the neighbor's family that lie on it play the
fine role.
*/
func (js *jumpState) parentSides(p *elem.Elem) {
	for s, nbID := range p.NeighborIDs {
		nb := js.m.QueryElem(nbID)
		if nb == nil {
			if js.IntegrateBoundarySides {
				js.boundary(p, s)
			}
			continue
		}
		for _, f := range js.m.ActiveFamilyTree(nb) {
			if f.Level < p.Level {
				continue
			}
			if fs := sideOn(f, p); fs >= 0 {
				js.internal(f, fs, p)
			}
		}
	}
}

// sideOn finds the side of f lying on the boundary of p, -1 if none does.
func sideOn(f, p *elem.Elem) int {
	for s := 0; s < f.NSides(); s++ {
		on := true
		for k := range f.Topology().SideNodes[s] {
			if !p.ContainsPoint(f.Point(f.LocalSideNode(s, k)), types.TOLERANCE) {
				on = false
				break
			}
		}
		if on {
			return s
		}
	}
	return -1
}

/*
slit integrates side s of e against every other element found at its
quadrature points, for sides that have no neighbor link but touch another
element. Both sides of a slit integrate it, so each gets half weight.
*/
func (js *jumpState) slit(e *elem.Elem, s int) {
	pl := js.m.SubPointLocator()
	if len(pl.LocateAll(e.SidePtr(s).VertexAverage())) < 2 {
		return
	}
	js.fine.ReinitSide(e, s, js.order())
	fineQ, coarseQ := fe.NewFE(), fe.NewFE()
	for q, p := range js.fine.XYZ {
		var others []*elem.Elem
		for _, f := range pl.LocateAll(p) {
			if f != e {
				others = append(others, f)
			}
		}
		if len(others) == 0 {
			continue
		}
		pts := []elem.Point{p}
		weights := []float64{0.5 * js.fine.JxW[q] / float64(len(others))}
		fineQ.ReinitPhysical(e, pts)
		fineQ.Normals = []elem.Point{js.fine.Normals[q]}
		for _, f := range others {
			coarseQ.ReinitPhysical(f, pts)
			fineErr, coarseErr := js.faceJump(js.sys, js.u, fineQ, coarseQ, weights)
			js.errs[e.ID()] += fineErr
			js.errs[f.ID()] += coarseErr
		}
	}
}
