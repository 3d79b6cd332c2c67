package rb

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mfkiwl/libmesh/utils"
)

/*
RBEvaluation is the online stage of the reduced basis method. It holds the
reduced operators and the inner products of the residual representors
built by RBConstruction, and solves for any parameter at a cost independent
of the full order dimension.
*/
type RBEvaluation struct {
	RBParametrized
	Theta *RBThetaExpansion

	// StabilityLowerBound is a lower bound of the coercivity constant at mu, one when nil.
	StabilityLowerBound func(mu *RBParameters) float64

	Basis   []*mat.VecDense
	AqN     []*mat.Dense
	FqN     []*mat.VecDense
	OutputN [][]*mat.VecDense

	// Representor inner products: FqFq[q][q'], FqAq[qf][qa][i] and AqAq[qa][qa'](i,j).
	FqFq [][]float64
	FqAq [][][]float64
	AqAq [][]*mat.Dense
	// OutputDual[n][q][q'] are the inner products of the output representors.
	OutputDual [][][]float64

	Solution          *mat.VecDense
	Outputs           []float64
	OutputErrorBounds []float64
}

func NewRBEvaluation(theta *RBThetaExpansion) *RBEvaluation {
	return &RBEvaluation{Theta: theta}
}

func (ev *RBEvaluation) NBasisFunctions() int { return len(ev.Basis) }

func (ev *RBEvaluation) stability(mu *RBParameters) float64 {
	if ev.StabilityLowerBound == nil {
		return 1
	}
	return ev.StabilityLowerBound(mu)
}

/*
Solve computes the reduced solution with the first N basis functions at
the current parameters, along with the outputs, and returns the a
posteriori bound on the error in the inner product norm.
*/
func (ev *RBEvaluation) Solve(N int) (errorBound float64) {
	if N < 0 || N > len(ev.Basis) {
		panic(fmt.Errorf("cannot solve with %d basis functions, have %d", N, len(ev.Basis)))
	}
	mu := ev.Parameters()
	te := ev.Theta
	thetaA := make([]float64, te.NATerms())
	for q := range thetaA {
		thetaA[q] = te.EvalATheta(q, mu)
	}
	thetaF := make([]float64, te.NFTerms())
	for q := range thetaF {
		thetaF[q] = te.EvalFTheta(q, mu)
	}

	u := make([]float64, N)
	if N > 0 {
		AN := mat.NewDense(N, N, nil)
		for q, A := range ev.AqN {
			var term mat.Dense
			term.Scale(thetaA[q], A.Slice(0, N, 0, N))
			AN.Add(AN, &term)
		}
		FN := mat.NewVecDense(N, nil)
		for q, F := range ev.FqN {
			FN.AddScaledVec(FN, thetaF[q], F.SliceVec(0, N))
		}
		x, err := utils.SolveDense(AN, FN.RawVector().Data)
		if err != nil {
			panic(fmt.Errorf("reduced system of size %d at %v: %w", N, mu, err))
		}
		copy(u, x)
		ev.Solution = mat.NewVecDense(N, u)
	} else {
		ev.Solution = nil
	}

	errorBound = math.Sqrt(math.Abs(ev.residualDualNormSq(u, thetaA, thetaF))) / ev.stability(mu)

	ev.Outputs = make([]float64, te.NOutputs())
	ev.OutputErrorBounds = make([]float64, te.NOutputs())
	for n := range ev.Outputs {
		thetaL := make([]float64, te.NOutputTerms(n))
		for ql := range thetaL {
			thetaL[ql] = te.EvalOutputTheta(n, ql, mu)
			if n < len(ev.OutputN) {
				for i := 0; i < N; i++ {
					ev.Outputs[n] += thetaL[ql] * ev.OutputN[n][ql].AtVec(i) * u[i]
				}
			}
		}
		var dual float64
		if n < len(ev.OutputDual) {
			for q, tq := range thetaL {
				for qq, tqq := range thetaL {
					dual += tq * tqq * ev.OutputDual[n][q][qq]
				}
			}
		}
		ev.OutputErrorBounds[n] = errorBound * math.Sqrt(math.Abs(dual))
	}
	return
}

// residualDualNormSq is the squared dual norm of F(mu) - A(mu) u_N.
func (ev *RBEvaluation) residualDualNormSq(u, thetaA, thetaF []float64) (r2 float64) {
	N := len(u)
	for q, tq := range thetaF {
		for qq, tqq := range thetaF {
			r2 += tq * tqq * ev.FqFq[q][qq]
		}
	}
	if N == 0 {
		return
	}
	for qf, tf := range thetaF {
		for qa, ta := range thetaA {
			for i := 0; i < N; i++ {
				r2 -= 2 * tf * ta * u[i] * ev.FqAq[qf][qa][i]
			}
		}
	}
	uv := mat.NewVecDense(N, u)
	for qa, ta := range thetaA {
		for qq, tqq := range thetaA {
			r2 += ta * tqq * mat.Inner(uv, ev.AqAq[qa][qq].Slice(0, N, 0, N), uv)
		}
	}
	return
}

// Reconstruct expands the last reduced solution in the full order basis.
func (ev *RBEvaluation) Reconstruct() (x *mat.VecDense) {
	if len(ev.Basis) == 0 {
		panic(fmt.Errorf("no basis functions to reconstruct from"))
	}
	x = mat.NewVecDense(ev.Basis[0].Len(), nil)
	if ev.Solution == nil {
		return
	}
	for i := 0; i < ev.Solution.Len(); i++ {
		x.AddScaledVec(x, ev.Solution.AtVec(i), ev.Basis[i])
	}
	return
}
