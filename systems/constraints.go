package systems

import (
	"fmt"
	"slices"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/types"
)

// DirichletBoundary fixes Variables on the nodes of the listed boundaries to Value.
type DirichletBoundary struct {
	BoundaryIDs []types.BoundaryID
	Variables   []int
	Value       func(p elem.Point, v int) float64 // Nil means homogeneous
}

func NewDirichletBoundary(ids []types.BoundaryID, vars []int, value func(p elem.Point, v int) float64) DirichletBoundary {
	if value == nil {
		value = func(elem.Point, int) float64 { return 0 }
	}
	return DirichletBoundary{BoundaryIDs: ids, Variables: vars, Value: value}
}

// resolvedRow expresses a hanging dof through free dofs and Dirichlet dofs only.
type resolvedRow []term

/*
ConstraintSet is one instance of the constraint equations: the dofs with
fixed values and the hanging dofs, each expanded down to unconstrained dofs
plus a constant. Constrained rows are assembled as identity rows with a zero
right hand side; Enforce then writes their values.
*/
type ConstraintSet struct {
	values map[types.DofID]float64
	rows   map[types.DofID]resolvedRow
}

const maxConstraintDepth = 64

func (cs *ConstraintSet) resolve(d types.DofID, hanging map[types.DofID][]term, depth int) resolvedRow {
	if row, ok := cs.rows[d]; ok {
		return row
	}
	if depth > maxConstraintDepth {
		panic(fmt.Errorf("constraint chain through dof %d is cyclic or deeper than %d", d, maxConstraintDepth))
	}
	acc := make(map[types.DofID]float64)
	for _, t := range hanging[d] {
		_, fixed := cs.values[t.dof]
		_, hangs := hanging[t.dof]
		if fixed || !hangs {
			acc[t.dof] += t.coeff
			continue
		}
		for _, st := range cs.resolve(t.dof, hanging, depth+1) {
			acc[st.dof] += t.coeff * st.coeff
		}
	}
	row := make(resolvedRow, 0, len(acc))
	for dof, c := range acc {
		row = append(row, term{dof, c})
	}
	slices.SortFunc(row, func(a, b term) int { return int(int64(a.dof) - int64(b.dof)) })
	cs.rows[d] = row
	return row
}

func (cs *ConstraintSet) IsConstrained(d types.DofID) bool {
	if _, ok := cs.values[d]; ok {
		return true
	}
	_, ok := cs.rows[d]
	return ok
}

func (cs *ConstraintSet) NConstrained() int { return len(cs.values) + len(cs.rows) }

// HasHeterogeneous reports a fixed value away from zero.
func (cs *ConstraintSet) HasHeterogeneous() bool {
	for _, v := range cs.values {
		if v != 0 {
			return true
		}
	}
	return false
}

// expand writes dof d as sum w_k u_{free_k} + c.
func (cs *ConstraintSet) expand(d types.DofID) (free []types.DofID, w []float64, c float64) {
	if v, ok := cs.values[d]; ok {
		return nil, nil, v
	}
	row, ok := cs.rows[d]
	if !ok {
		return []types.DofID{d}, []float64{1}, 0
	}
	for _, t := range row {
		if v, fixed := cs.values[t.dof]; fixed {
			c += t.coeff * v
			continue
		}
		free = append(free, t.dof)
		w = append(w, t.coeff)
	}
	return
}

/*
Constrain turns an element matrix and vector over dofs into contributions to
unconstrained dofs. add receives the reduced entries, addF the reduced right
hand side. A nil Fe asks for the matrix only, and a nil Ke for the vector
only, in which case no lift of fixed values is made.
*/
func (cs *ConstraintSet) Constrain(dofs []types.DofID, Ke [][]float64, Fe []float64,
	add func(i, j types.DofID, v float64), addF func(i types.DofID, v float64)) {
	n := len(dofs)
	free := make([][]types.DofID, n)
	w := make([][]float64, n)
	c := make([]float64, n)
	for i, d := range dofs {
		free[i], w[i], c[i] = cs.expand(d)
	}
	for i := 0; i < n; i++ {
		if Ke != nil && add != nil {
			for k := 0; k < n; k++ {
				if Ke[i][k] == 0 {
					continue
				}
				for a, fi := range free[i] {
					for b, fk := range free[k] {
						add(fi, fk, w[i][a]*Ke[i][k]*w[k][b])
					}
				}
			}
		}
		if Fe != nil && addF != nil {
			f := Fe[i]
			if Ke != nil {
				for k := 0; k < n; k++ {
					f -= Ke[i][k] * c[k]
				}
			}
			for a, fi := range free[i] {
				addF(fi, w[i][a]*f)
			}
		}
	}
}

// ConstrainedDofs lists every constrained dof in ascending order.
func (cs *ConstraintSet) ConstrainedDofs() (dofs []types.DofID) {
	for d := range cs.values {
		dofs = append(dofs, d)
	}
	for d := range cs.rows {
		if _, fixed := cs.values[d]; !fixed {
			dofs = append(dofs, d)
		}
	}
	slices.Sort(dofs)
	return
}

// Enforce overwrites the constrained entries of u with their constraint values.
func (cs *ConstraintSet) Enforce(u []float64) {
	for d, v := range cs.values {
		u[d] = v
	}
	for d := range cs.rows {
		free, w, c := cs.expand(d)
		val := c
		for k, f := range free {
			val += w[k] * u[f]
		}
		u[d] = val
	}
}

// EnforceHomogeneous is Enforce with every fixed value taken as zero.
func (cs *ConstraintSet) EnforceHomogeneous(u []float64) {
	for d := range cs.values {
		u[d] = 0
	}
	for d, row := range cs.rows {
		val := 0.
		for _, t := range row {
			if _, fixed := cs.values[t.dof]; !fixed {
				val += t.coeff * u[t.dof]
			}
		}
		u[d] = val
	}
}
