package utils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// CGResult reports how a conjugate gradient solve ended.
type CGResult struct {
	Iterations int
	Residual   float64 // Final residual 2-norm relative to |b|
}

/*
ConjugateGradient solves A x = b for a symmetric positive definite A with a
Jacobi preconditioner, starting from the contents of x. It stops when the
residual norm falls under tol times |b| or after maxIter iterations, the
latter returning an error along with the best iterate.
*/
func ConjugateGradient(A CSR, b, x []float64, tol float64, maxIter int) (res CGResult, err error) {
	var (
		n, _ = A.Dims()
		diag = A.Diagonal()
		r    = make([]float64, n)
		z    = make([]float64, n)
		p    = make([]float64, n)
	)
	if len(b) != n || len(x) != n {
		panic(fmt.Errorf("system of size %d, have len(b) = %d, len(x) = %d", n, len(b), len(x)))
	}
	for i, d := range diag {
		if d <= 0 {
			panic(fmt.Errorf("non positive diagonal %g at row %d", d, i))
		}
	}
	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		for i := range x {
			x[i] = 0
		}
		return
	}
	precondition := func() {
		for i := range r {
			z[i] = r[i] / diag[i]
		}
	}
	// r = b - A x
	floats.SubTo(r, b, A.MulVec(x, false))
	precondition()
	copy(p, z)
	rz := floats.Dot(r, z)
	for res.Iterations = 0; res.Iterations < maxIter; res.Iterations++ {
		if res.Residual = floats.Norm(r, 2) / bnorm; res.Residual <= tol {
			return
		}
		Ap := A.MulVec(p, false)
		pAp := floats.Dot(p, Ap)
		if pAp <= 0 || math.IsNaN(pAp) {
			err = fmt.Errorf("matrix is not positive definite, p.Ap = %g at iteration %d", pAp, res.Iterations)
			return
		}
		alpha := rz / pAp
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, Ap)
		precondition()
		rzNew := floats.Dot(r, z)
		// p = z + beta p
		floats.AddScaledTo(p, z, rzNew/rz, p)
		rz = rzNew
	}
	if res.Residual = floats.Norm(r, 2) / bnorm; res.Residual > tol {
		err = fmt.Errorf("no convergence after %d iterations, relative residual %g", maxIter, res.Residual)
	}
	return
}
