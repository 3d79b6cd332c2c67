package estimator

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/mesh"
	"github.com/mfkiwl/libmesh/refinement"
	"github.com/mfkiwl/libmesh/systems"
	"github.com/mfkiwl/libmesh/types"
)

/*
AdjointRefinementEstimator is a dual weighted residual estimate of the QoI
errors. The residual of the coarse solution, projected onto a uniformly
refined space, is weighted by the adjoint solved on that space; the mesh is
then coarsened back and the system left as it was found, also when the fine
adjoint solve fails.
*/
type AdjointRefinementEstimator struct {
	NumberHRefinements int
	NumberPRefinements int
	QoISet             *systems.QoISet

	// ComputedGlobalQoIErrors holds the signed global estimate per QoI of the last run.
	ComputedGlobalQoIErrors []float64
}

func NewAdjointRefinementEstimator() *AdjointRefinementEstimator {
	return &AdjointRefinementEstimator{NumberHRefinements: 1, QoISet: systems.NewQoISet()}
}

func (are *AdjointRefinementEstimator) Type() EstimatorType { return AdjointRefinement }

func (are *AdjointRefinementEstimator) GlobalQoIErrorEstimate(q int) float64 {
	return are.ComputedGlobalQoIErrors[q]
}

func liftFunctionName(q int) string { return fmt.Sprintf("adjoint_lift_function%d", q) }

func copyOf(v []float64) []float64 { return append([]float64(nil), v...) }

func dofBearingNodes(m *mesh.Mesh, sys *systems.System, pid types.ProcessorID) (n int) {
	for _, nd := range m.Nodes() {
		if nd.ProcessorID() == pid && sys.DofMap.NodeDof(nd, 0) != types.InvalidID {
			n++
		}
	}
	return
}

func (are *AdjointRefinementEstimator) EstimateError(sys *systems.System, errorPerCell *ErrorVector, _ bool) (err error) {
	if are.NumberHRefinements <= 0 && are.NumberPRefinements <= 0 {
		panic(fmt.Errorf("adjoint refinement estimator needs h or p refinements, have %d and %d",
			are.NumberHRefinements, are.NumberPRefinements))
	}
	es := sys.EquationSystems()
	m := es.Mesh
	qs := are.QoISet
	inSet := func(q int) bool { return qs == nil || qs.HasIndex(q) }

	if !sys.AdjointAlreadySolved {
		if err = sys.AdjointSolve(qs); err != nil {
			return fmt.Errorf("coarse adjoint: %w", err)
		}
	}

	// Lift functions carry heterogeneous adjoint Dirichlet data onto the fine space
	for q := range sys.QoIs {
		if !inSet(q) || !sys.DofMap.HasAdjointDirichletBoundaries(q) {
			continue
		}
		coarseResidual := sys.AssembleResidual(sys.Solution)
		lift := copyOf(sys.GetAdjointSolution(q))
		sys.DofMap.AdjointConstraints(q).Enforce(lift)
		sys.AddVector(liftFunctionName(q), true)
		sys.SetVector(liftFunctionName(q), lift)
		if Verbose {
			log.Printf("flux QoI %d: %g", q, floats.Dot(coarseResidual, lift))
		}
	}

	coarseVectors := map[string][]float64{}
	for _, name := range sys.VectorNames() {
		coarseVectors[name] = copyOf(sys.GetVector(name))
	}
	coarseSolution := copyOf(sys.Solution)
	oldAdjointPreservation := map[int]bool{}
	for q := range sys.QoIs {
		if inSet(q) {
			name := systems.AdjointSolutionName(q)
			oldAdjointPreservation[q] = sys.VectorPreservation(name)
			sys.SetVectorPreservation(name, true)
		}
	}
	oldProjection, oldProjectWithConstraints := sys.ProjectSolutionOnReinit, sys.ProjectWithConstraints
	sys.ProjectSolutionOnReinit, sys.ProjectWithConstraints = true, false
	oldRenumbering := m.AllowRenumbering
	m.AllowRenumbering = false

	errorPerCell.Reset(m)
	rank := localRank(es)
	nCoarseElem := m.NActiveElem()
	nDofNodes := dofBearingNodes(m, sys, rank)

	mr := refinement.NewMeshRefinement(m)
	// Coarsen back and restore the system on every way out, a failed solve included
	defer func() {
		sys.ProjectSolutionOnReinit = false
		for i := 0; i < are.NumberHRefinements; i++ {
			mr.UniformlyCoarsen(1)
			es.Reinit()
		}
		for i := 0; i < are.NumberPRefinements; i++ {
			mr.UniformlyPCoarsen(1)
			es.Reinit()
		}
		if n := m.NActiveElem(); n != nCoarseElem {
			panic(fmt.Errorf("coarsening back left %d active elements, started from %d", n, nCoarseElem))
		}
		if n := dofBearingNodes(m, sys, rank); n != nDofNodes {
			panic(fmt.Errorf("coarsening back left %d dof bearing nodes, started from %d", n, nDofNodes))
		}

		sys.ProjectSolutionOnReinit, sys.ProjectWithConstraints = oldProjection, oldProjectWithConstraints
		for q, keep := range oldAdjointPreservation {
			sys.SetVectorPreservation(systems.AdjointSolutionName(q), keep)
		}
		sys.Solution = coarseSolution
		for _, name := range sys.VectorNames() {
			if v, ok := coarseVectors[name]; ok {
				sys.SetVector(name, v)
			}
		}
		for q := range sys.QoIs {
			if sys.HaveVector(liftFunctionName(q)) {
				sys.RemoveVector(liftFunctionName(q))
			}
		}
		m.AllowRenumbering = oldRenumbering
		if err == nil {
			reduceError(es.Comm, errorPerCell.Values)
		}
	}()

	for i := 0; i < are.NumberHRefinements; i++ {
		mr.UniformlyRefine(1)
		es.Reinit()
	}
	for i := 0; i < are.NumberPRefinements; i++ {
		mr.UniformlyPRefine(1)
		es.Reinit()
	}

	coarseAdjoints := map[int][]float64{}
	for q := range sys.QoIs {
		if inSet(q) {
			coarseAdjoints[q] = copyOf(sys.GetAdjointSolution(q))
		}
	}
	residual := sys.AssembleResidual(sys.Solution)
	if err = sys.AdjointSolve(qs); err != nil {
		return fmt.Errorf("fine adjoint: %w", err)
	}

	are.ComputedGlobalQoIErrors = make([]float64, sys.NQoIs())
	for q := range sys.QoIs {
		if !inSet(q) {
			continue
		}
		z := sys.GetAdjointSolution(q)
		if sys.DofMap.HasAdjointDirichletBoundaries(q) {
			lifted := copyOf(z)
			floats.Sub(lifted, sys.GetVector(liftFunctionName(q)))
			are.ComputedGlobalQoIErrors[q] = floats.Dot(residual, lifted)
		} else {
			are.ComputedGlobalQoIErrors[q] = floats.Dot(residual, z)
		}
		floats.Sub(z, coarseAdjoints[q])
	}

	coarseOf := func(e *elem.Elem) types.DofID { return m.Ancestor(e, are.NumberHRefinements).ID() }
	active := m.ActiveLocalElements(rank)

	// Number of distinct coarse elements around each fine node
	shared := map[types.DofID]int{}
	for _, e := range active {
		for _, n := range e.Nodes {
			if _, done := shared[n.ID()]; done {
				continue
			}
			coarse := map[types.DofID]bool{}
			for _, f := range m.FindPointNeighbors(n.Point) {
				coarse[coarseOf(f)] = true
			}
			shared[n.ID()] = max(1, len(coarse))
		}
	}

	fine := make([]fineElement, len(active))
	for i, e := range active {
		fine[i].coarse = coarseOf(e)
		for _, n := range e.Nodes {
			for v := 0; v < sys.NVars(); v++ {
				if d := sys.DofMap.NodeDof(n, v); d != types.InvalidID {
					fine[i].dofs = append(fine[i].dofs, d)
					fine[i].shared = append(fine[i].shared, shared[n.ID()])
				}
			}
		}
	}
	for q := range sys.QoIs {
		if !inSet(q) {
			continue
		}
		w := 1.
		if qs != nil {
			w = qs.Weight(q)
		}
		accumulateIndicators(errorPerCell.Values, fine, residual, sys.GetAdjointSolution(q), w)
	}
	return
}

// fineElement lists the dofs of one active fine element with the shared coarse element count of each.
type fineElement struct {
	coarse types.DofID
	dofs   []types.DofID
	shared []int
}

/*
accumulateIndicators adds, for every fine element, the weighted magnitude of
its own residual times adjoint sum to its coarse ancestor. A dof counts once
per fine element it belongs to, and the signs of different fine elements
under one coarse element never cancel.
*/
func accumulateIndicators(values []float64, fine []fineElement, residual, z []float64, w float64) {
	for _, fe := range fine {
		var local float64
		for i, d := range fe.dofs {
			local += residual[d] * z[d] / float64(fe.shared[i])
		}
		values[fe.coarse] += math.Abs(w * local)
	}
}
