package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/mesh"
	"github.com/mfkiwl/libmesh/refinement"
	"github.com/mfkiwl/libmesh/systems"
	"github.com/mfkiwl/libmesh/types"
)

// interpolated sets up a one variable system holding the nodal interpolant of f.
func interpolated(m *mesh.Mesh, f func(p elem.Point) float64) (es *systems.EquationSystems, sys *systems.System) {
	es = systems.NewEquationSystems(m)
	sys = systems.NewPoissonSystem(es, "u", nil)
	es.Init()
	for _, n := range m.Nodes() {
		if d := sys.DofMap.NodeDof(n, 0); d != types.InvalidID {
			sys.Solution[d] = f(n.Point)
		}
	}
	return
}

func TestErrorVectorStatistics(t *testing.T) {
	ev := &ErrorVector{Values: []float64{0, 1, 2, 3, 4}}
	assert.Equal(t, 1., ev.Minimum())
	assert.Equal(t, 4., ev.Maximum())
	assert.InDelta(t, 2.5, ev.Mean(), 1.e-15)
	assert.Equal(t, 2., ev.Median())
	assert.InDelta(t, 1.25, ev.Variance(), 1.e-15)
	assert.InDelta(t, math.Sqrt(1.25), ev.StdDev(), 1.e-15)
	assert.InDelta(t, math.Sqrt(30), ev.L2Norm(), 1.e-14)
	assert.Equal(t, []types.DofID{1, 2}, ev.CutBelow(2.5))
	assert.Equal(t, []types.DofID{3, 4}, ev.CutAbove(2.5))
	counts, dividers := ev.Histogram(3)
	assert.Equal(t, []float64{1, 1, 2}, counts)
	assert.Equal(t, []float64{1, 2, 3, 4}, dividers)
	assert.Panics(t, func() { ev.Histogram(0) })

	// With a mesh, zero errors of active elements count
	m := mesh.BuildLine(4, 0, 1)
	ev = NewErrorVector(m)
	copy(ev.Values, []float64{0, 2, 2, 4})
	assert.Equal(t, 0., ev.Minimum())
	assert.Equal(t, 2., ev.Mean())
	assert.Equal(t, []types.DofID{0}, ev.CutBelow(1))
	refinement.NewMeshRefinement(m).UniformlyRefine(1)
	ev.Values = make([]float64, m.MaxElemID())
	assert.Len(t, ev.Active(), 8)

	empty := &ErrorVector{}
	assert.Zero(t, empty.Mean())
	assert.Zero(t, empty.L2Norm())
}

func TestEstimatorType(t *testing.T) {
	for _, et := range []EstimatorType{Kelly, Discontinuity, AdjointRefinement} {
		parsed, err := NewEstimatorType(et.String())
		require.NoError(t, err)
		assert.Equal(t, et, parsed)
	}
	_, err := NewEstimatorType("patch_recovery")
	assert.Error(t, err)
	assert.Equal(t, Kelly, NewKellyErrorEstimator().Type())
	assert.Equal(t, Discontinuity, NewDiscontinuityMeasure().Type())
	assert.Equal(t, AdjointRefinement, NewAdjointRefinementEstimator().Type())
}

func TestKellyVanishesOnLinears(t *testing.T) {
	for _, et := range []elem.ElemType{elem.Quad4, elem.Tri3} {
		m := mesh.BuildSquare(3, 3, 0, 1, 0, 1, et)
		_, sys := interpolated(m, func(p elem.Point) float64 { return 1 + 2*p.X - p.Y })
		ev := &ErrorVector{}
		require.NoError(t, NewKellyErrorEstimator().EstimateError(sys, ev, false))
		require.Len(t, ev.Values, m.MaxElemID())
		for _, e := range m.ActiveElements() {
			assert.Greater(t, ev.Values[e.ID()], 0., "%v", et)
			assert.Less(t, ev.Values[e.ID()], 1.e-10, "%v", et)
		}
	}
}

func TestKelly1D(t *testing.T) {
	m := mesh.BuildLine(4, 0, 1)
	_, sys := interpolated(m, func(p elem.Point) float64 { return p.X * p.X })
	k := NewKellyErrorEstimator()
	ev := &ErrorVector{}
	require.NoError(t, k.EstimateError(sys, ev, false))
	// Gradient jumps of 2h = 0.5 at each interior node, weighted by h = 0.25
	single, double := math.Sqrt(0.0625), math.Sqrt(0.125)
	assert.InDeltaSlice(t, []float64{single, double, double, single}, ev.Values, 1.e-12)

	k.ScaleByNFluxFaces = true
	require.NoError(t, k.EstimateError(sys, ev, false))
	assert.InDeltaSlice(t, []float64{single, double / 2, double / 2, single}, ev.Values, 1.e-12)
}

func TestKellyBoundaryFlux(t *testing.T) {
	m := mesh.BuildLine(2, 0, 1)
	_, sys := interpolated(m, func(p elem.Point) float64 { return p.X * p.X })
	k := NewKellyErrorEstimator()
	ev := &ErrorVector{}
	require.NoError(t, k.EstimateError(sys, ev, false))
	assert.InDeltaSlice(t, []float64{math.Sqrt(0.5), math.Sqrt(0.5)}, ev.Values, 1.e-12)

	// Exact flux of x^2: 0 at the left end, 2 at the right end
	k.AttachFluxBCFunction(func(p elem.Point, _ int) (float64, bool) {
		if p.X < 0.5 {
			return 0, true
		}
		return 2, true
	})
	assert.True(t, k.IntegrateBoundarySides)
	require.NoError(t, k.EstimateError(sys, ev, false))
	assert.InDeltaSlice(t, []float64{math.Sqrt(0.625), math.Sqrt(0.625)}, ev.Values, 1.e-12)

	k.AttachFluxBCFunction(func(elem.Point, int) (float64, bool) { return 0, false })
	require.NoError(t, k.EstimateError(sys, ev, false))
	assert.InDeltaSlice(t, []float64{math.Sqrt(0.5), math.Sqrt(0.5)}, ev.Values, 1.e-12)
}

func TestFaceJumpSymmetry(t *testing.T) {
	m := mesh.BuildSquare(2, 2, 0, 1, 0, 1, elem.Quad4)
	mr := refinement.NewMeshRefinement(m)
	m.Elem(0).RefinementFlag = elem.Refine
	mr.RefineAndCoarsenElements()
	_, sys := interpolated(m, func(p elem.Point) float64 { return p.X*p.X + 3*p.Y*p.Y })
	k := NewKellyErrorEstimator()
	var checked, hanging int
	for _, e := range m.ActiveElements() {
		for s, nbID := range e.NeighborIDs {
			f := m.QueryElem(nbID)
			if f == nil {
				continue
			}
			fineErr, coarseErr := k.FaceJump(sys, sys.Solution, e, s, f)
			assert.Equal(t, fineErr, coarseErr)
			assert.Greater(t, fineErr, 0.)
			if f.Level < e.Level {
				hanging++
				continue
			}
			back := -1
			for fs, id := range f.NeighborIDs {
				if id == e.ID() {
					back = fs
				}
			}
			require.GreaterOrEqual(t, back, 0)
			reverse, _ := k.FaceJump(sys, sys.Solution, f, back, e)
			assert.InDelta(t, fineErr, reverse, 1.e-12*fineErr)
			checked++
		}
	}
	assert.Equal(t, 4, hanging)
	assert.Greater(t, checked, 0)
}

func TestDiscontinuityAcrossSlit(t *testing.T) {
	m := mesh.NewMesh(2)
	square := func(x0 float64) {
		e := elem.NewElem(elem.Quad4)
		for i, p := range []elem.Point{{X: x0}, {X: x0 + 1}, {X: x0 + 1, Y: 1}, {X: x0, Y: 1}} {
			e.Nodes[i] = m.AddPoint(p)
		}
		m.AddElem(e)
	}
	square(0)
	square(1)
	m.PrepareForUse()
	_, sys := interpolated(m, func(elem.Point) float64 { return 0 })
	for _, n := range m.Elem(1).Nodes {
		sys.Solution[sys.DofMap.NodeDof(n, 0)] = 1
	}
	dm := NewDiscontinuityMeasure()
	ev := &ErrorVector{}
	require.NoError(t, dm.EstimateError(sys, ev, false))
	assert.InDeltaSlice(t, []float64{0, 0}, ev.Values, 1.e-12)

	dm.IntegrateSlits = true
	require.NoError(t, dm.EstimateError(sys, ev, false))
	assert.InDeltaSlice(t, []float64{1, 1}, ev.Values, 1.e-9)

	dm.AttachEssentialBCFunction(func(elem.Point, int) (float64, bool) { return 0, true })
	assert.Panics(t, func() { dm.EstimateError(sys, ev, false) })
}

func TestDiscontinuityBoundaryValues(t *testing.T) {
	m := mesh.BuildLine(2, 0, 1)
	_, sys := interpolated(m, func(p elem.Point) float64 { return 1 + p.X })
	dm := NewDiscontinuityMeasure()
	dm.AttachEssentialBCFunction(func(p elem.Point, _ int) (float64, bool) { return 0, true })
	ev := &ErrorVector{}
	require.NoError(t, dm.EstimateError(sys, ev, false))
	// Continuous interior, boundary values 1 and 2 against zero data
	assert.InDeltaSlice(t, []float64{1, 2}, ev.Values, 1.e-12)
}

func TestParentErrors(t *testing.T) {
	m := mesh.BuildSquare(2, 2, 0, 1, 0, 1, elem.Quad4)
	refinement.NewMeshRefinement(m).UniformlyRefine(1)
	_, sys := interpolated(m, func(p elem.Point) float64 { return p.X*p.X + p.Y*p.Y })
	k := NewKellyErrorEstimator()
	ev := &ErrorVector{}
	require.NoError(t, k.EstimateError(sys, ev, false))
	for id := 0; id < 4; id++ {
		assert.Zero(t, ev.Values[id])
	}
	withParents := &ErrorVector{}
	require.NoError(t, k.EstimateError(sys, withParents, true))
	for _, e := range m.Elements() {
		assert.Greater(t, withParents.Values[e.ID()], 0.)
		if e.Active() {
			assert.GreaterOrEqual(t, withParents.Values[e.ID()], ev.Values[e.ID()])
		}
	}
	// Parents do not count in the statistics
	assert.Len(t, withParents.Active(), 16)
}

func TestEstimateErrorsWeighsSystems(t *testing.T) {
	m := mesh.BuildSquare(2, 2, 0, 1, 0, 1, elem.Tri3)
	es := systems.NewEquationSystems(m)
	a := systems.NewPoissonSystem(es, "a", nil)
	b := systems.NewPoissonSystem(es, "b", nil)
	es.Init()
	for _, n := range m.Nodes() {
		a.Solution[a.DofMap.NodeDof(n, 0)] = n.X * n.Y
		b.Solution[b.DofMap.NodeDof(n, 0)] = n.X * n.X
	}
	k := NewKellyErrorEstimator()
	single := &ErrorVector{}
	require.NoError(t, k.EstimateError(a, single, false))
	total := &ErrorVector{}
	require.NoError(t, EstimateErrors(k, es, total, map[string]float64{"a": 2, "b": 0}, false))
	for i, v := range single.Values {
		assert.InDelta(t, 2*v, total.Values[i], 1.e-14)
	}
}

func poissonWithQoI(n int) (m *mesh.Mesh, es *systems.EquationSystems, sys *systems.System) {
	m = mesh.BuildSquare(n, n, 0, 1, 0, 1, elem.Quad4)
	es = systems.NewEquationSystems(m)
	sys = systems.NewPoissonSystem(es, "p", func(elem.Point) float64 { return 1 })
	es.Init()
	sys.DofMap.AddDirichletBoundary(systems.NewDirichletBoundary([]types.BoundaryID{0, 1, 2, 3}, []int{0}, nil))
	sys.AddQoI(&systems.IntegralQoI{Region: func(c elem.Point) bool { return c.X < 0.5 && c.Y < 0.5 }})
	return
}

func TestAdjointRefinementEstimator(t *testing.T) {
	m, _, sys := poissonWithQoI(4)
	require.NoError(t, sys.Solve())
	coarseQ := sys.QoIValues[0]
	solution := append([]float64(nil), sys.Solution...)
	nElem, nActive, nNodes := m.MaxElemID(), m.NActiveElem(), m.NNodes()

	are := NewAdjointRefinementEstimator()
	ev := &ErrorVector{}
	require.NoError(t, are.EstimateError(sys, ev, false))

	// The system and mesh are as they were
	assert.Equal(t, nElem, m.MaxElemID())
	assert.Equal(t, nActive, m.NActiveElem())
	assert.Equal(t, nNodes, m.NNodes())
	assert.Equal(t, solution, sys.Solution)
	assert.True(t, sys.ProjectSolutionOnReinit)
	assert.True(t, sys.ProjectWithConstraints)
	assert.True(t, sys.VectorPreservation(systems.AdjointSolutionName(0)))
	assert.Len(t, sys.GetAdjointSolution(0), sys.NDofs())

	// The estimate is the QoI change under refinement
	_, _, fine := poissonWithQoI(8)
	require.NoError(t, fine.Solve())
	global := are.GlobalQoIErrorEstimate(0)
	assert.InDelta(t, fine.QoIValues[0]-coarseQ, global, 1.e-8)
	assert.NotZero(t, global)

	require.Len(t, ev.Values, m.MaxElemID())
	var sum float64
	for _, v := range ev.Values {
		assert.GreaterOrEqual(t, v, 0.)
		sum += v
	}
	assert.Greater(t, sum, 0.)

	are.NumberHRefinements = 0
	assert.Panics(t, func() { are.EstimateError(sys, ev, false) })
}

func TestAccumulateIndicators(t *testing.T) {
	fine := []fineElement{
		{coarse: 0, dofs: []types.DofID{0, 1}, shared: []int{1, 1}},
		{coarse: 0, dofs: []types.DofID{1, 2}, shared: []int{1, 1}},
		{coarse: 1, dofs: []types.DofID{2, 3}, shared: []int{1, 2}},
	}
	residual := []float64{1, 2, -3, 4}
	z := []float64{1, 1, 1, 0.5}
	values := make([]float64, 2)
	accumulateIndicators(values, fine, residual, z, 2)
	// |1+2| + |2-3| under the first coarse element, the shared dof 1 counted by both
	assert.InDelta(t, 2*(3+1), values[0], 1.e-14)
	// |-3 + 4*0.5/2|
	assert.InDelta(t, 2*2, values[1], 1.e-14)

	// Opposite signs under one coarse element add up instead of cancelling
	values = make([]float64, 2)
	accumulateIndicators(values, fine[:2], []float64{1, 0, -1, 0}, []float64{1, 1, 1, 1}, 1)
	assert.InDelta(t, 2, values[0], 1.e-14)
	assert.Zero(t, values[1])
}

func TestAdjointRefinementRestoresOnFailure(t *testing.T) {
	m, _, sys := poissonWithQoI(4)
	require.NoError(t, sys.Solve())
	require.NoError(t, sys.AdjointSolve(nil))
	solution := append([]float64(nil), sys.Solution...)
	adjoint := append([]float64(nil), sys.GetAdjointSolution(0)...)
	nElem, nActive, nNodes := m.MaxElemID(), m.NActiveElem(), m.NNodes()

	// One iteration is too few for the fine adjoint
	sys.MaxLinearIterations = 1
	ev := &ErrorVector{}
	err := NewAdjointRefinementEstimator().EstimateError(sys, ev, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fine adjoint")

	assert.Equal(t, nElem, m.MaxElemID())
	assert.Equal(t, nActive, m.NActiveElem())
	assert.Equal(t, nNodes, m.NNodes())
	assert.Equal(t, solution, sys.Solution)
	assert.Equal(t, adjoint, sys.GetAdjointSolution(0))
	assert.True(t, sys.ProjectSolutionOnReinit)
	assert.True(t, sys.ProjectWithConstraints)
	assert.True(t, m.AllowRenumbering)
	for _, e := range m.ActiveElements() {
		assert.Zero(t, e.Level)
	}
}

func TestAdjointRefinementWithLift(t *testing.T) {
	_, _, sys := poissonWithQoI(2)
	sys.DofMap.AddAdjointDirichletBoundary(systems.NewDirichletBoundary([]types.BoundaryID{1}, []int{0},
		func(elem.Point, int) float64 { return 1 }), 0)
	require.NoError(t, sys.Solve())
	require.NoError(t, sys.AdjointSolve(nil))
	before := sys.VectorNames()
	adjoint := append([]float64(nil), sys.GetAdjointSolution(0)...)
	are := NewAdjointRefinementEstimator()
	are.QoISet = systems.NewQoISet(0)
	ev := &ErrorVector{}
	require.NoError(t, are.EstimateError(sys, ev, false))
	assert.Equal(t, before, sys.VectorNames())
	assert.False(t, sys.HaveVector(liftFunctionName(0)))
	assert.Equal(t, adjoint, sys.GetAdjointSolution(0))
	assert.Greater(t, floats.Sum(ev.Values), 0.)
}
