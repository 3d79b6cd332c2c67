package utils

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SolveDense returns the solution of the square system A x = b.
func SolveDense(A mat.Matrix, b []float64) (x []float64, err error) {
	nr, nc := A.Dims()
	if nr != nc || nr != len(b) {
		panic(fmt.Errorf("need a square system, have %dx%d with len(b) = %d", nr, nc, len(b)))
	}
	var xv mat.VecDense
	if err = xv.SolveVec(A, mat.NewVecDense(len(b), b)); err != nil {
		if _, ok := err.(mat.Condition); !ok {
			return
		}
		// Ill conditioned but solved, report the condition through err
	}
	x = xv.RawVector().Data
	return
}
