package systems

import (
	"fmt"
	"log"
	"sort"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/types"
	"github.com/mfkiwl/libmesh/utils"
)

/*
ElementAssembler supplies the element matrix and load of the weak form,
indexed like DofMap.AllDofIndices of the element.
*/
type ElementAssembler interface {
	ElementMatrix(e *elem.Elem, nVars int) (Ke [][]float64, Fe []float64)
}

// QoI is a linear functional of the solution.
type QoI interface {
	// ElementDerivative is dQ/du over the element's dofs, ordered like DofMap.AllDofIndices.
	ElementDerivative(e *elem.Elem, nVars int) []float64
}

/*
System is a set of first order Lagrange variables on the mesh with its
solution vector, any number of named vectors and the forward and adjoint
linear solves. Vectors are plain slices over the global dof numbering.
*/
type System struct {
	Name   string
	Number int
	DofMap *DofMap

	Variables []string
	Solution  []float64

	Assembler ElementAssembler
	QoIs      []QoI
	QoIValues []float64

	ProjectSolutionOnReinit bool
	ProjectWithConstraints  bool
	AdjointAlreadySolved    bool

	LinearSolverTolerance float64
	MaxLinearIterations   int

	es            *EquationSystems
	vectors       map[string][]float64
	projectVector map[string]bool
	initialized   bool
}

func newSystem(es *EquationSystems, name string, number int) *System {
	return &System{
		Name:                    name,
		Number:                  number,
		ProjectSolutionOnReinit: true,
		ProjectWithConstraints:  true,
		LinearSolverTolerance:   1.e-12,
		es:                      es,
		vectors:                 make(map[string][]float64),
		projectVector:           make(map[string]bool),
	}
}

func (sys *System) EquationSystems() *EquationSystems { return sys.es }

// AddVariable must be called before the system is initialized.
func (sys *System) AddVariable(name string) int {
	if sys.initialized {
		panic(fmt.Errorf("cannot add variable %q to initialized system %q", name, sys.Name))
	}
	for v, existing := range sys.Variables {
		if existing == name {
			return v
		}
	}
	sys.Variables = append(sys.Variables, name)
	return len(sys.Variables) - 1
}

func (sys *System) NVars() int { return len(sys.Variables) }

func (sys *System) VariableNumber(name string) int {
	for v, existing := range sys.Variables {
		if existing == name {
			return v
		}
	}
	panic(fmt.Errorf("system %q has no variable %q", sys.Name, name))
}

func (sys *System) NDofs() int { return sys.DofMap.NDofs() }

func (sys *System) init() {
	if len(sys.Variables) == 0 {
		panic(fmt.Errorf("system %q has no variables", sys.Name))
	}
	sys.DofMap = NewDofMap(sys.es.Mesh, sys.Number, len(sys.Variables))
	sys.DofMap.DistributeDofs()
	n := sys.NDofs()
	sys.Solution = make([]float64, n)
	for name := range sys.vectors {
		sys.vectors[name] = make([]float64, n)
	}
	sys.initialized = true
}

// AddVector creates a zero vector unless one of that name exists. project marks it for projection on reinit.
func (sys *System) AddVector(name string, project bool) []float64 {
	if v, ok := sys.vectors[name]; ok {
		return v
	}
	n := 0
	if sys.initialized {
		n = sys.NDofs()
	}
	sys.vectors[name] = make([]float64, n)
	sys.projectVector[name] = project
	return sys.vectors[name]
}

func (sys *System) HaveVector(name string) bool {
	_, ok := sys.vectors[name]
	return ok
}

func (sys *System) GetVector(name string) []float64 {
	v, ok := sys.vectors[name]
	if !ok {
		panic(fmt.Errorf("system %q has no vector %q", sys.Name, name))
	}
	return v
}

// SetVector replaces the contents of a vector, which must have the system's size.
func (sys *System) SetVector(name string, v []float64) {
	if len(v) != sys.NDofs() {
		panic(fmt.Errorf("vector %q has length %d, system %q has %d dofs", name, len(v), sys.Name, sys.NDofs()))
	}
	if _, ok := sys.vectors[name]; !ok {
		sys.projectVector[name] = false
	}
	sys.vectors[name] = v
}

func (sys *System) RemoveVector(name string) {
	delete(sys.vectors, name)
	delete(sys.projectVector, name)
}

func (sys *System) VectorPreservation(name string) bool { return sys.projectVector[name] }

func (sys *System) SetVectorPreservation(name string, project bool) {
	sys.GetVector(name)
	sys.projectVector[name] = project
}

func (sys *System) VectorNames() (names []string) {
	for name := range sys.vectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func (sys *System) NVectors() int { return len(sys.vectors) }

func AdjointSolutionName(q int) string { return fmt.Sprintf("adjoint_solution%d", q) }

func (sys *System) AddAdjointSolution(q int) []float64 {
	return sys.AddVector(AdjointSolutionName(q), true)
}

func (sys *System) GetAdjointSolution(q int) []float64 { return sys.GetVector(AdjointSolutionName(q)) }

func (sys *System) AddQoI(q QoI) int {
	sys.QoIs = append(sys.QoIs, q)
	sys.QoIValues = append(sys.QoIValues, 0)
	return len(sys.QoIs) - 1
}

func (sys *System) NQoIs() int { return len(sys.QoIs) }

func (sys *System) elementData(e *elem.Elem) (dofs []types.DofID, Ke [][]float64, Fe []float64) {
	if sys.Assembler == nil {
		panic(fmt.Errorf("system %q has no assembler", sys.Name))
	}
	dofs = sys.DofMap.AllDofIndices(e)
	Ke, Fe = sys.Assembler.ElementMatrix(e, sys.NVars())
	if len(Ke) != len(dofs) || len(Fe) != len(dofs) {
		panic(fmt.Errorf("element %d: assembler returned %dx? matrix and %d load for %d dofs",
			e.ID(), len(Ke), len(Fe), len(dofs)))
	}
	return
}

/*
assemble builds the constrained global matrix and right hand side. With
transpose the element matrices are transposed, and load replaces the
assembler's element load when not nil. Constrained rows get a unit diagonal.
*/
func (sys *System) assemble(cs *ConstraintSet, transpose bool,
	load func(e *elem.Elem) []float64) (A utils.CSR, b []float64) {
	n := sys.NDofs()
	K := utils.NewDOK(n, n)
	b = make([]float64, n)
	for _, e := range sys.es.Mesh.ActiveElements() {
		dofs, Ke, Fe := sys.elementData(e)
		if transpose {
			Ke = transposed(Ke)
		}
		if load != nil {
			Fe = load(e)
		}
		cs.Constrain(dofs, Ke, Fe,
			func(i, j types.DofID, v float64) { K.AddTo(int(i), int(j), v) },
			func(i types.DofID, v float64) { b[i] += v })
	}
	for _, d := range cs.ConstrainedDofs() {
		K.Set(int(d), int(d), 1)
		b[d] = 0
	}
	return K.ToCSR(), b
}

func transposed(Ke [][]float64) (T [][]float64) {
	T = make([][]float64, len(Ke))
	for i := range T {
		T[i] = make([]float64, len(Ke))
		for j := range Ke {
			T[i][j] = Ke[j][i]
		}
	}
	return
}

// Assemble returns the constrained forward matrix and right hand side.
func (sys *System) Assemble() (A utils.CSR, b []float64) {
	return sys.assemble(sys.DofMap.PrimalConstraints(), false, nil)
}

func (sys *System) maxIterations() int {
	if sys.MaxLinearIterations > 0 {
		return sys.MaxLinearIterations
	}
	return 10*sys.NDofs() + 100
}

func (sys *System) linearSolve(A utils.CSR, b, x []float64, cs *ConstraintSet) (err error) {
	for _, d := range cs.ConstrainedDofs() {
		x[d] = 0
	}
	var res utils.CGResult
	if res, err = utils.ConjugateGradient(A, b, x, sys.LinearSolverTolerance, sys.maxIterations()); err != nil {
		return fmt.Errorf("system %q: %w", sys.Name, err)
	}
	cs.Enforce(x)
	if Verbose {
		log.Printf("system %q: %d dofs, %d iterations, residual %g", sys.Name, len(x), res.Iterations, res.Residual)
	}
	return
}

// Solve computes the forward solution with the current constraints.
func (sys *System) Solve() (err error) {
	if sys.NDofs() == 0 {
		return
	}
	cs := sys.DofMap.PrimalConstraints()
	A, b := sys.assemble(cs, false, nil)
	x := make([]float64, len(sys.Solution))
	copy(x, sys.Solution)
	if err = sys.linearSolve(A, b, x, cs); err != nil {
		return
	}
	sys.Solution = x
	sys.AssembleQoI(nil)
	return
}

/*
AdjointSolve solves the transposed problem once per QoI in qois with the
QoI derivative as load. Primal Dirichlet dofs are homogeneous for the
adjoint unless adjoint Dirichlet boundaries of that QoI say otherwise. The
results land in the adjoint_solution vectors.
*/
func (sys *System) AdjointSolve(qois *QoISet) (err error) {
	for q := range sys.QoIs {
		if !qois.HasIndex(q) {
			continue
		}
		z := sys.AddAdjointSolution(q)
		if sys.NDofs() == 0 {
			continue
		}
		cs := sys.DofMap.AdjointConstraints(q)
		A, b := sys.assemble(cs, true, func(e *elem.Elem) []float64 {
			return sys.QoIs[q].ElementDerivative(e, sys.NVars())
		})
		if err = sys.linearSolve(A, b, z, cs); err != nil {
			return fmt.Errorf("adjoint %d: %w", q, err)
		}
	}
	sys.AdjointAlreadySolved = true
	return
}

// AssembleQoI evaluates the QoIs in qois (all of them for nil) on the current solution.
func (sys *System) AssembleQoI(qois *QoISet) {
	for q, qoi := range sys.QoIs {
		if qois != nil && !qois.HasIndex(q) {
			continue
		}
		sys.QoIValues[q] = sys.evaluateQoI(qoi, sys.Solution)
	}
}

func (sys *System) evaluateQoI(qoi QoI, u []float64) (val float64) {
	for _, e := range sys.es.Mesh.ActiveElements() {
		dq := qoi.ElementDerivative(e, sys.NVars())
		for i, d := range sys.DofMap.AllDofIndices(e) {
			val += dq[i] * u[d]
		}
	}
	return
}

/*
AssembleResidual returns F - K u assembled element by element with no
constraints applied, the residual functional of u in the dof basis.
*/
func (sys *System) AssembleResidual(u []float64) (r []float64) {
	r = make([]float64, sys.NDofs())
	for _, e := range sys.es.Mesh.ActiveElements() {
		dofs, Ke, Fe := sys.elementData(e)
		for i, di := range dofs {
			v := Fe[i]
			for k, dk := range dofs {
				v -= Ke[i][k] * u[dk]
			}
			r[di] += v
		}
	}
	return
}

// ElementSolution gathers u over the dofs of variable v on e, in local node order.
func (sys *System) ElementSolution(e *elem.Elem, u []float64, v int) (ue []float64) {
	dofs := sys.DofMap.DofIndices(e, v)
	ue = make([]float64, len(dofs))
	for i, d := range dofs {
		ue[i] = u[d]
	}
	return
}

// PointValue interpolates variable v of the solution at p, false when p is outside the mesh.
func (sys *System) PointValue(v int, p elem.Point) (float64, bool) {
	return NewMeshFunction(sys, sys.Solution, v).Value(p)
}
