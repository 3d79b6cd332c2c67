package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

/*
DOK is the assembly form of a global matrix: entries are accumulated by
(row, col) in any order, then frozen into a CSR for solving.
*/
type DOK struct {
	M        *sparse.DOK
	readOnly bool
	name     string
}

func NewDOK(nr, nc int) (R DOK) {
	R = DOK{
		sparse.NewDOK(nr, nc),
		false,
		"unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m DOK) At(i, j int) float64 { return m.M.At(i, j) }
func (m DOK) T() mat.Matrix       { return m.M.T() }

func (m *DOK) SetReadOnly(name ...string) DOK {
	if len(name) != 0 {
		m.name = name[0]
	}
	m.readOnly = true
	return *m
}

func (m DOK) Set(i, j int, val float64) DOK { // Changes receiver
	m.checkWritable()
	m.M.Set(i, j, val)
	return m
}

// AddTo accumulates val into entry (i,j).
func (m DOK) AddTo(i, j int, val float64) DOK { // Changes receiver
	m.checkWritable()
	m.M.Set(i, j, m.M.At(i, j)+val)
	return m
}

// AddBlock accumulates the dense element matrix Ke into the rows and columns named by dofs.
func (m DOK) AddBlock(dofs []int, Ke mat.Matrix) DOK { // Changes receiver
	nr, nc := Ke.Dims()
	if nr != len(dofs) || nc != len(dofs) {
		panic(fmt.Errorf("element matrix is %dx%d, have %d dofs", nr, nc, len(dofs)))
	}
	for i, gi := range dofs {
		for j, gj := range dofs {
			if v := Ke.At(i, j); v != 0 {
				m.AddTo(gi, gj, v)
			}
		}
	}
	return m
}

// NNZ counts the stored entries.
func (m DOK) NNZ() int { return m.M.NNZ() }

func (m DOK) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name)
		panic(err)
	}
}

func (m DOK) ToCSR() CSR {
	return CSR{
		M:        m.M.ToCSR(),
		readOnly: m.readOnly,
		name:     m.name,
	}
}

// CSR is the frozen form of an assembled matrix, used for products.
type CSR struct {
	M        *sparse.CSR
	readOnly bool
	name     string
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m CSR) Dims() (r, c int)    { return m.M.Dims() }
func (m CSR) At(i, j int) float64 { return m.M.At(i, j) }
func (m CSR) T() mat.Matrix       { return m.M.T() }
func (m CSR) NNZ() int            { return m.M.NNZ() }

// MulVec returns A x, or A^T x when trans is set.
func (m CSR) MulVec(x []float64, trans bool) (y []float64) {
	nr, nc := m.Dims()
	if trans {
		nr, nc = nc, nr
	}
	if len(x) != nc {
		panic(fmt.Errorf("vector length %d does not match %d matrix columns", len(x), nc))
	}
	y = make([]float64, nr)
	m.M.MulVecTo(y, trans, x)
	return
}

// Diagonal returns the main diagonal.
func (m CSR) Diagonal() (d []float64) {
	nr, nc := m.Dims()
	d = make([]float64, min(nr, nc))
	m.M.DoNonZero(func(i, j int, v float64) {
		if i == j {
			d[i] = v
		}
	})
	return
}

// Symmetric reports whether A equals its transpose to within tol.
func (m CSR) Symmetric(tol float64) (sym bool) {
	nr, nc := m.Dims()
	if nr != nc {
		return false
	}
	sym = true
	m.M.DoNonZero(func(i, j int, v float64) {
		if d := v - m.M.At(j, i); d > tol || d < -tol {
			sym = false
		}
	})
	return
}
