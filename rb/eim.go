package rb

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/fe"
	"github.com/mfkiwl/libmesh/mesh"
	"github.com/mfkiwl/libmesh/types"
)

// ParametrizedFunction is the non affine function an EIM approximates.
type ParametrizedFunction func(mu *RBParameters, p elem.Point) float64

/*
RBEIMEvaluation is the online stage of the empirical interpolation method:
f(mu, x) ~ sum_j c_j(mu) B_j(x), where the coefficients interpolate f at
the interpolation points. The basis functions are held by value on the
nodes of the training mesh. Since B_j vanishes at the interpolation points
before j and is one at point j, the interpolation matrix is unit lower
triangular.
*/
type RBEIMEvaluation struct {
	RBParametrized
	Function ParametrizedFunction

	NodeIDs []types.DofID
	Points  []elem.Point
	Basis   [][]float64
	// InterpolationNodes index Points, one per basis function.
	InterpolationNodes  []int
	InterpolationMatrix *mat.TriDense

	Coefficients []float64

	indicatorNode int
	indicatorRow  []float64
	nodeIndex     map[types.DofID]int
}

func NewRBEIMEvaluation(f ParametrizedFunction) *RBEIMEvaluation {
	return &RBEIMEvaluation{Function: f, indicatorNode: -1}
}

func (ev *RBEIMEvaluation) NBasisFunctions() int { return len(ev.Basis) }

func (ev *RBEIMEvaluation) InterpolationPoint(j int) elem.Point {
	return ev.Points[ev.InterpolationNodes[j]]
}

// interpolate returns the coefficients of the first N basis functions matching rhs at the interpolation points.
func (ev *RBEIMEvaluation) interpolate(N int, rhs func(i int) float64) (c []float64) {
	c = make([]float64, N)
	for i := 0; i < N; i++ {
		c[i] = rhs(i)
		for j := 0; j < i; j++ {
			c[i] -= ev.InterpolationMatrix.At(i, j) * c[j]
		}
		c[i] /= ev.InterpolationMatrix.At(i, i)
	}
	return
}

// Solve computes the coefficients of the first N basis functions at the current parameters.
func (ev *RBEIMEvaluation) Solve(N int) []float64 {
	if N < 0 || N > len(ev.Basis) {
		panic(fmt.Errorf("cannot solve with %d EIM basis functions, have %d", N, len(ev.Basis)))
	}
	mu := ev.Parameters()
	ev.Coefficients = ev.interpolate(N, func(i int) float64 {
		return ev.Function(mu, ev.InterpolationPoint(i))
	})
	return ev.Coefficients
}

// Approximation is the node values of the last solve's interpolant.
func (ev *RBEIMEvaluation) Approximation() (v []float64) {
	v = make([]float64, len(ev.Points))
	for j, c := range ev.Coefficients {
		floats.AddScaled(v, c, ev.Basis[j])
	}
	return
}

/*
ErrorIndicator is the interpolation error of the last full size solve at
the point the greedy algorithm would have added next. It is not available,
and reported as false, when training met the absolute tolerance.
*/
func (ev *RBEIMEvaluation) ErrorIndicator() (err float64, ok bool) {
	if ev.indicatorNode < 0 || len(ev.Coefficients) != len(ev.Basis) {
		return
	}
	err = ev.Function(ev.Parameters(), ev.Points[ev.indicatorNode]) - floats.Dot(ev.Coefficients, ev.indicatorRow)
	return math.Abs(err), true
}

// Theta is the coefficient of basis function j as an affine expansion term.
func (ev *RBEIMEvaluation) Theta(j int) RBTheta {
	return func(mu *RBParameters) float64 {
		ev.SetParameters(mu)
		return ev.Solve(len(ev.Basis))[j]
	}
}

/*
BasisFunctionValue interpolates basis function j at p with the first order
shapes of the active element of m containing p. The mesh must be the one
the basis was sampled on.
*/
func (ev *RBEIMEvaluation) BasisFunctionValue(m *mesh.Mesh, j int, p elem.Point) (v float64, ok bool) {
	e := m.SubPointLocator().Locate(p)
	if e == nil {
		return
	}
	f := fe.NewFE()
	f.ReinitPhysical(e, []elem.Point{p})
	for i, n := range e.Nodes {
		k, found := ev.nodeIndex[n.ID()]
		if !found {
			panic(fmt.Errorf("node %d of element %d was not sampled", n.ID(), e.ID()))
		}
		v += f.Phi[0][i] * ev.Basis[j][k]
	}
	return v, true
}

/*
RBEIMConstruction builds the EIM basis greedily over a training set: each
step takes the training function worst approximated in the max norm over
the mesh nodes, and its interpolation residual, scaled to one at its
largest entry, becomes the next basis function.
*/
type RBEIMConstruction struct {
	*RBEIMEvaluation
	Mesh *mesh.Mesh

	Nmax                 int
	RelTrainingTolerance float64
	AbsTrainingTolerance float64
	Quiet                bool

	TrainingSet []*RBParameters
	// GreedyIndices are the training samples the basis functions came from.
	GreedyIndices []int

	snapshots [][]float64
}

func NewRBEIMConstruction(ev *RBEIMEvaluation, m *mesh.Mesh) *RBEIMConstruction {
	return &RBEIMConstruction{
		RBEIMEvaluation:      ev,
		Mesh:                 m,
		Nmax:                 20,
		RelTrainingTolerance: 1.e-4,
		AbsTrainingTolerance: 1.e-12,
	}
}

// InitializeEIMConstruction samples the function at the mesh nodes for every training parameter.
func (ec *RBEIMConstruction) InitializeEIMConstruction() {
	if len(ec.TrainingSet) == 0 {
		panic(fmt.Errorf("EIM training needs a training set"))
	}
	ec.NodeIDs, ec.Points = nil, nil
	ec.nodeIndex = make(map[types.DofID]int)
	for _, n := range ec.Mesh.Nodes() {
		ec.nodeIndex[n.ID()] = len(ec.Points)
		ec.NodeIDs = append(ec.NodeIDs, n.ID())
		ec.Points = append(ec.Points, n.Point)
	}
	ec.snapshots = make([][]float64, len(ec.TrainingSet))
	for i, mu := range ec.TrainingSet {
		ec.snapshots[i] = make([]float64, len(ec.Points))
		for k, p := range ec.Points {
			ec.snapshots[i][k] = ec.Function(mu, p)
		}
	}
	ec.Basis, ec.InterpolationNodes, ec.InterpolationMatrix = nil, nil, nil
	ec.GreedyIndices = nil
	ec.indicatorNode, ec.indicatorRow = -1, nil
}

// MaxAbsValueInTrainingSet is the largest magnitude of any training function at any node.
func (ec *RBEIMConstruction) MaxAbsValueInTrainingSet() (maxAbs float64) {
	for _, s := range ec.snapshots {
		maxAbs = math.Max(maxAbs, math.Max(floats.Max(s), -floats.Min(s)))
	}
	return
}

func (ec *RBEIMConstruction) residual(s []float64) (r []float64) {
	c := ec.interpolate(len(ec.Basis), func(i int) float64 { return s[ec.InterpolationNodes[i]] })
	r = append([]float64(nil), s...)
	for j, cj := range c {
		floats.AddScaled(r, -cj, ec.Basis[j])
	}
	return
}

// maxNode is the node of the largest residual magnitude.
func maxNode(r []float64) (k int, val float64) {
	for i, v := range r {
		if math.Abs(v) > math.Abs(val) {
			k, val = i, v
		}
	}
	return
}

func (ec *RBEIMConstruction) computeMaxEIMError() (maxErr float64, at int) {
	for i, s := range ec.snapshots {
		if _, v := maxNode(ec.residual(s)); math.Abs(v) > maxErr || i == 0 {
			maxErr, at = math.Abs(v), i
		}
	}
	return
}

// enrich adds the residual of training function i as the next basis function.
func (ec *RBEIMConstruction) enrich(i int) bool {
	r := ec.residual(ec.snapshots[i])
	k, val := maxNode(r)
	if val == 0 {
		return false
	}
	floats.Scale(1/val, r)
	ec.Basis = append(ec.Basis, r)
	ec.InterpolationNodes = append(ec.InterpolationNodes, k)
	ec.GreedyIndices = append(ec.GreedyIndices, i)
	N := len(ec.Basis)
	B := mat.NewTriDense(N, mat.Lower, nil)
	for row, node := range ec.InterpolationNodes {
		for j := 0; j <= row; j++ {
			B.SetTri(row, j, ec.Basis[j][node])
		}
	}
	ec.InterpolationMatrix = B
	return true
}

/*
TrainEIMApproximation runs the greedy algorithm until Nmax basis functions
are built or the largest training error in the max norm drops below the
absolute tolerance, or below the relative tolerance times the largest
training value. It sets up the error indicator and returns the final
largest training error.
*/
func (ec *RBEIMConstruction) TrainEIMApproximation() (maxErr float64) {
	if ec.snapshots == nil {
		ec.InitializeEIMConstruction()
	}
	scale := ec.MaxAbsValueInTrainingSet()
	for {
		var at int
		maxErr, at = ec.computeMaxEIMError()
		if !ec.Quiet {
			log.Printf("EIM basis size %d, max training error %g", len(ec.Basis), maxErr)
		}
		if len(ec.Basis) >= ec.Nmax || maxErr <= ec.AbsTrainingTolerance ||
			(scale > 0 && maxErr/scale <= ec.RelTrainingTolerance) {
			ec.indicatorNode, ec.indicatorRow = -1, nil
			if maxErr > ec.AbsTrainingTolerance {
				ec.setErrorIndicator(at)
			}
			return
		}
		if !ec.enrich(at) {
			return
		}
	}
}

func (ec *RBEIMConstruction) setErrorIndicator(i int) {
	k, val := maxNode(ec.residual(ec.snapshots[i]))
	if val == 0 {
		return
	}
	ec.indicatorNode = k
	ec.indicatorRow = make([]float64, len(ec.Basis))
	for j, b := range ec.Basis {
		ec.indicatorRow[j] = b[k]
	}
}
