package systems

import (
	"fmt"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/fe"
	"github.com/mfkiwl/libmesh/types"
)

// MeshFunction evaluates one variable of a vector of sys anywhere in the mesh.
type MeshFunction struct {
	sys *System
	vec []float64
	v   int
	fe  *fe.FE
}

func NewMeshFunction(sys *System, vec []float64, v int) *MeshFunction {
	if len(vec) != sys.NDofs() {
		panic(fmt.Errorf("vector of length %d for system %q with %d dofs", len(vec), sys.Name, sys.NDofs()))
	}
	return &MeshFunction{sys: sys, vec: vec, v: v, fe: fe.NewFE()}
}

func (mf *MeshFunction) reinit(p elem.Point) (ue []float64, ok bool) {
	e := mf.sys.es.Mesh.SubPointLocator().Locate(p)
	if e == nil {
		return
	}
	mf.fe.ReinitPhysical(e, []elem.Point{p})
	return mf.sys.ElementSolution(e, mf.vec, mf.v), true
}

// Value is the interpolated value at p, false when p is outside the mesh.
func (mf *MeshFunction) Value(p elem.Point) (val float64, ok bool) {
	var ue []float64
	if ue, ok = mf.reinit(p); ok {
		val = mf.fe.Value(0, ue)
	}
	return
}

// Gradient is the gradient at p of the interpolant on the lowest id element holding p.
func (mf *MeshFunction) Gradient(p elem.Point) (g elem.Point, ok bool) {
	var ue []float64
	if ue, ok = mf.reinit(p); ok {
		g = mf.fe.Gradient(0, ue)
	}
	return
}

/*
TransferSolution interpolates variable fromVar of the solution of from onto
variable toVar of to, node by node. The meshes need not match; nodes of to
that lie outside the mesh of from are an error. The constraints of to are
enforced on the result.
*/
func TransferSolution(from *System, fromVar int, to *System, toVar int) (err error) {
	mf := NewMeshFunction(from, from.Solution, fromVar)
	var outside []types.DofID
	for _, n := range to.es.Mesh.Nodes() {
		d := to.DofMap.NodeDof(n, toVar)
		if d == types.InvalidID {
			continue
		}
		val, ok := mf.Value(n.Point)
		if !ok {
			outside = append(outside, n.ID())
			continue
		}
		to.Solution[d] = val
	}
	to.DofMap.PrimalConstraints().Enforce(to.Solution)
	if len(outside) > 0 {
		err = fmt.Errorf("%d target nodes lie outside the source mesh, first %d", len(outside), outside[0])
	}
	return
}
