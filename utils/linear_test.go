package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func laplacian1D(n int) DOK {
	A := NewDOK(n, n)
	Ke := mat.NewDense(2, 2, []float64{1, -1, -1, 1})
	for i := 0; i < n-1; i++ {
		A.AddBlock([]int{i, i + 1}, Ke)
	}
	// Pin both ends
	A.AddTo(0, 0, 1)
	A.AddTo(n-1, n-1, 1)
	return A
}

func TestDOKAssembly(t *testing.T) {
	A := laplacian1D(5)
	assert.Equal(t, 2., A.At(2, 2))
	assert.Equal(t, -1., A.At(2, 3))
	assert.Equal(t, 0., A.At(0, 4))
	assert.Equal(t, 13, A.NNZ())
	C := A.ToCSR()
	assert.Equal(t, []float64{2, 2, 2, 2, 2}, C.Diagonal())
	assert.True(t, C.Symmetric(0))
	assert.Equal(t, []float64{1, 0, 0, 0, 1}, C.MulVec([]float64{1, 1, 1, 1, 1}, false))

	B := NewDOK(2, 3)
	B.Set(0, 2, 4)
	assert.Equal(t, []float64{0, 0, 4}, B.ToCSR().MulVec([]float64{1, 0}, true))
	assert.False(t, B.ToCSR().Symmetric(0))

	B.SetReadOnly("B")
	assert.Panics(t, func() { B.AddTo(0, 0, 1) })
	assert.Panics(t, func() { A.AddBlock([]int{0}, mat.NewDense(2, 2, nil)) })
}

func TestConjugateGradient(t *testing.T) {
	n := 50
	A := laplacian1D(n).ToCSR()
	b := make([]float64, n)
	for i := range b {
		b[i] = 1
	}
	x := make([]float64, n)
	res, err := ConjugateGradient(A, b, x, 1.e-12, 2*n)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Residual, 1.e-12)
	assert.LessOrEqual(t, res.Iterations, n)
	for i, v := range A.MulVec(x, false) {
		assert.InDelta(t, b[i], v, 1.e-9)
	}
	// Symmetric solution
	assert.InDelta(t, x[0], x[n-1], 1.e-9)

	// A converged start returns at once
	res, err = ConjugateGradient(A, b, x, 1.e-8, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Iterations)

	y := []float64{3, 3}
	_, err = ConjugateGradient(laplacian1D(2).ToCSR(), []float64{0, 0}, y, 1.e-8, 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, y)

	_, err = ConjugateGradient(A, b, make([]float64, n), 1.e-14, 2)
	assert.Error(t, err)
}

func TestSolveDense(t *testing.T) {
	A := mat.NewDense(2, 2, []float64{4, 1, 1, 3})
	x, err := SolveDense(A, []float64{1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 1./11, x[0], 1.e-14)
	assert.InDelta(t, 7./11, x[1], 1.e-14)

	_, err = SolveDense(mat.NewDense(2, 2, []float64{1, 2, 2, 4}), []float64{1, 2})
	assert.Error(t, err)
	assert.Panics(t, func() { SolveDense(A, []float64{1}) })
}
