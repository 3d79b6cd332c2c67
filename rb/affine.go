package rb

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/mfkiwl/libmesh/systems"
	"github.com/mfkiwl/libmesh/types"
)

/*
AffineOperators are the parameter independent full order terms of an
affinely parametrized problem, dense over the unconstrained dofs of a
system.
*/
type AffineOperators struct {
	Aq      []*mat.Dense
	Fq      []*mat.VecDense
	Lq      [][]*mat.VecDense
	// FreeDofs maps each row to its system dof.
	FreeDofs []types.DofID
}

/*
AssembleAffineOperators assembles one matrix per aTerms assembler, one
load per fTerms assembler and one functional per output term over the
active elements of sys. Dofs under a Dirichlet constraint are dropped,
which takes their values as zero; heterogeneous Dirichlet data and hanging
nodes are contract violations.
*/
func AssembleAffineOperators(sys *systems.System, aTerms, fTerms []systems.ElementAssembler,
	outputs [][]systems.QoI) (ao *AffineOperators) {
	dm := sys.DofMap
	if n := dm.NHangingConstraints(); n > 0 {
		panic(fmt.Errorf("system %q has %d hanging constraints, affine operators need a conforming mesh", sys.Name, n))
	}
	cs := dm.PrimalConstraints()
	if cs.HasHeterogeneous() {
		panic(fmt.Errorf("system %q has heterogeneous Dirichlet data", sys.Name))
	}
	row := make([]int, sys.NDofs())
	ao = &AffineOperators{}
	for d := range row {
		row[d] = -1
		if !cs.IsConstrained(types.DofID(d)) {
			row[d] = len(ao.FreeDofs)
			ao.FreeDofs = append(ao.FreeDofs, types.DofID(d))
		}
	}
	n := len(ao.FreeDofs)
	if n == 0 {
		panic(fmt.Errorf("system %q has no unconstrained dofs", sys.Name))
	}
	elems := sys.EquationSystems().Mesh.ActiveElements()
	for _, term := range aTerms {
		A := mat.NewDense(n, n, nil)
		for _, e := range elems {
			dofs := dm.AllDofIndices(e)
			Ke, _ := term.ElementMatrix(e, sys.NVars())
			for i, di := range dofs {
				for j, dj := range dofs {
					if r, c := row[di], row[dj]; r >= 0 && c >= 0 {
						A.Set(r, c, A.At(r, c)+Ke[i][j])
					}
				}
			}
		}
		ao.Aq = append(ao.Aq, A)
	}
	load := func(elementLoad func(e int) []float64) *mat.VecDense {
		F := mat.NewVecDense(n, nil)
		for k, e := range elems {
			Fe := elementLoad(k)
			for i, d := range dm.AllDofIndices(e) {
				if r := row[d]; r >= 0 {
					F.SetVec(r, F.AtVec(r)+Fe[i])
				}
			}
		}
		return F
	}
	for _, term := range fTerms {
		ao.Fq = append(ao.Fq, load(func(k int) []float64 {
			_, Fe := term.ElementMatrix(elems[k], sys.NVars())
			return Fe
		}))
	}
	for _, terms := range outputs {
		var Lq []*mat.VecDense
		for _, qoi := range terms {
			Lq = append(Lq, load(func(k int) []float64 {
				return qoi.ElementDerivative(elems[k], sys.NVars())
			}))
		}
		ao.Lq = append(ao.Lq, Lq)
	}
	return
}

// ToSystemVector scatters x onto the system dofs, constrained dofs zero.
func (ao *AffineOperators) ToSystemVector(sys *systems.System, x mat.Vector) (u []float64) {
	if x.Len() != len(ao.FreeDofs) {
		panic(fmt.Errorf("vector of length %d for %d free dofs", x.Len(), len(ao.FreeDofs)))
	}
	u = make([]float64, sys.NDofs())
	for i, d := range ao.FreeDofs {
		u[d] = x.AtVec(i)
	}
	return
}

// Combine returns sum coeffs[q] * ops[q].
func Combine(ops []*mat.Dense, coeffs []float64) (A *mat.Dense) {
	if len(ops) == 0 || len(ops) != len(coeffs) {
		panic(fmt.Errorf("%d operators with %d coefficients", len(ops), len(coeffs)))
	}
	r, c := ops[0].Dims()
	A = mat.NewDense(r, c, nil)
	for q, op := range ops {
		var term mat.Dense
		term.Scale(coeffs[q], op)
		A.Add(A, &term)
	}
	return
}

func combineVec(vecs []*mat.VecDense, coeffs []float64) (v *mat.VecDense) {
	v = mat.NewVecDense(vecs[0].Len(), nil)
	for q, f := range vecs {
		v.AddScaledVec(v, coeffs[q], f)
	}
	return
}
