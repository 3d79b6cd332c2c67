package rb

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mfkiwl/libmesh/utils"
)

/*
RBConstruction is the offline stage of the reduced basis method. It owns
the full order affine operators and the inner product matrix, computes
truth solutions, and builds the basis greedily: the next snapshot is
taken at the training parameter with the largest error bound.
*/
type RBConstruction struct {
	*RBEvaluation
	*AffineOperators
	// InnerProduct is the symmetric positive definite matrix of the norm the error bounds use.
	InnerProduct *mat.Dense

	Nmax                 int
	RelTrainingTolerance float64
	AbsTrainingTolerance float64
	Quiet                bool

	TrainingSet []*RBParameters
	// GreedyParams are the parameters of the snapshots, in basis order.
	GreedyParams []*RBParameters

	xChol mat.Cholesky
	fRepr []*mat.VecDense
	// aXi[q][i] = A_q xi_i, and aRepr[q][i] its representor.
	aXi, aRepr [][]*mat.VecDense
	lRepr      [][]*mat.VecDense
}

func NewRBConstruction(ev *RBEvaluation, ao *AffineOperators, innerProduct *mat.Dense) *RBConstruction {
	return &RBConstruction{
		RBEvaluation:         ev,
		AffineOperators:      ao,
		InnerProduct:         innerProduct,
		Nmax:                 20,
		RelTrainingTolerance: 1.e-4,
		AbsTrainingTolerance: 1.e-12,
	}
}

func (rc *RBConstruction) nTruth() int { return len(rc.FreeDofs) }

/*
Initialize checks the affine operators against the theta expansion,
factors the inner product matrix and computes the parameter independent
representor products of the loads and outputs. Any existing basis is
dropped.
*/
func (rc *RBConstruction) Initialize() {
	te := rc.Theta
	if len(rc.Aq) != te.NATerms() || len(rc.Fq) != te.NFTerms() || len(rc.Lq) != te.NOutputs() {
		panic(fmt.Errorf("affine operators (%d A, %d F, %d outputs) do not match the theta expansion (%d, %d, %d)",
			len(rc.Aq), len(rc.Fq), len(rc.Lq), te.NATerms(), te.NFTerms(), te.NOutputs()))
	}
	for n, terms := range rc.Lq {
		if len(terms) != te.NOutputTerms(n) {
			panic(fmt.Errorf("output %d has %d terms, the theta expansion %d", n, len(terms), te.NOutputTerms(n)))
		}
	}
	sym := mat.NewSymDense(rc.nTruth(), nil)
	for i := 0; i < rc.nTruth(); i++ {
		for j := i; j < rc.nTruth(); j++ {
			sym.SetSym(i, j, 0.5*(rc.InnerProduct.At(i, j)+rc.InnerProduct.At(j, i)))
		}
	}
	if ok := rc.xChol.Factorize(sym); !ok {
		panic(fmt.Errorf("inner product matrix is not positive definite"))
	}

	rc.fRepr = make([]*mat.VecDense, len(rc.Fq))
	for q, F := range rc.Fq {
		rc.fRepr[q] = rc.representor(F)
	}
	rc.FqFq = make([][]float64, len(rc.Fq))
	for q := range rc.FqFq {
		rc.FqFq[q] = make([]float64, len(rc.Fq))
		for qq, F := range rc.Fq {
			rc.FqFq[q][qq] = mat.Dot(rc.fRepr[q], F)
		}
	}
	rc.lRepr = make([][]*mat.VecDense, len(rc.Lq))
	rc.OutputDual = make([][][]float64, len(rc.Lq))
	for n, terms := range rc.Lq {
		rc.lRepr[n] = make([]*mat.VecDense, len(terms))
		for q, L := range terms {
			rc.lRepr[n][q] = rc.representor(L)
		}
		rc.OutputDual[n] = make([][]float64, len(terms))
		for q := range terms {
			rc.OutputDual[n][q] = make([]float64, len(terms))
			for qq, L := range terms {
				rc.OutputDual[n][q][qq] = mat.Dot(rc.lRepr[n][q], L)
			}
		}
	}
	rc.Basis, rc.GreedyParams = nil, nil
	rc.aXi = make([][]*mat.VecDense, len(rc.Aq))
	rc.aRepr = make([][]*mat.VecDense, len(rc.Aq))
}

// representor solves X r = v.
func (rc *RBConstruction) representor(v mat.Vector) (r *mat.VecDense) {
	r = mat.NewVecDense(rc.nTruth(), nil)
	if err := rc.xChol.SolveVecTo(r, v); err != nil {
		panic(fmt.Errorf("inner product solve: %w", err))
	}
	return
}

// TruthSolve solves the full order problem at the current parameters.
func (rc *RBConstruction) TruthSolve() (u *mat.VecDense) {
	mu := rc.Parameters()
	te := rc.Theta
	thetaA := make([]float64, te.NATerms())
	for q := range thetaA {
		thetaA[q] = te.EvalATheta(q, mu)
	}
	thetaF := make([]float64, te.NFTerms())
	for q := range thetaF {
		thetaF[q] = te.EvalFTheta(q, mu)
	}
	x, err := utils.SolveDense(Combine(rc.Aq, thetaA), combineVec(rc.Fq, thetaF).RawVector().Data)
	if err != nil {
		panic(fmt.Errorf("truth solve at %v: %w", mu, err))
	}
	return mat.NewVecDense(len(x), x)
}

// TruthOutputs evaluates the outputs of a truth solution at the current parameters.
func (rc *RBConstruction) TruthOutputs(u mat.Vector) (s []float64) {
	mu := rc.Parameters()
	s = make([]float64, rc.Theta.NOutputs())
	for n, terms := range rc.Lq {
		for q, L := range terms {
			s[n] += rc.Theta.EvalOutputTheta(n, q, mu) * mat.Dot(L, u)
		}
	}
	return
}

func (rc *RBConstruction) innerProduct(a, b mat.Vector) float64 {
	return mat.Inner(a, rc.InnerProduct, b)
}

/*
EnrichBasis orthonormalizes u against the basis in the inner product and
appends it. It reports false, leaving the basis alone, when u is
numerically in the span of the basis.
*/
func (rc *RBConstruction) EnrichBasis(u *mat.VecDense) bool {
	xi := mat.VecDenseCopyOf(u)
	norm0 := rc.innerProduct(xi, xi)
	// Twice is enough
	for pass := 0; pass < 2; pass++ {
		for _, b := range rc.Basis {
			xi.AddScaledVec(xi, -rc.innerProduct(xi, b), b)
		}
	}
	norm := rc.innerProduct(xi, xi)
	if norm <= 1.e-24*norm0 || norm == 0 {
		return false
	}
	xi.ScaleVec(1/math.Sqrt(norm), xi)
	rc.Basis = append(rc.Basis, xi)
	for q, A := range rc.Aq {
		ax := mat.NewVecDense(rc.nTruth(), nil)
		ax.MulVec(A, xi)
		rc.aXi[q] = append(rc.aXi[q], ax)
		rc.aRepr[q] = append(rc.aRepr[q], rc.representor(ax))
	}
	rc.updateReducedOperators()
	return true
}

// updateReducedOperators rebuilds the reduced operators and representor products for the current basis.
func (rc *RBConstruction) updateReducedOperators() {
	N := len(rc.Basis)
	rc.AqN = make([]*mat.Dense, len(rc.Aq))
	for q := range rc.Aq {
		AN := mat.NewDense(N, N, nil)
		for i, bi := range rc.Basis {
			for j := range rc.Basis {
				AN.Set(i, j, mat.Dot(bi, rc.aXi[q][j]))
			}
		}
		rc.AqN[q] = AN
	}
	rc.FqN = make([]*mat.VecDense, len(rc.Fq))
	rc.FqAq = make([][][]float64, len(rc.Fq))
	for q, F := range rc.Fq {
		FN := mat.NewVecDense(N, nil)
		for i, b := range rc.Basis {
			FN.SetVec(i, mat.Dot(F, b))
		}
		rc.FqN[q] = FN
		rc.FqAq[q] = make([][]float64, len(rc.Aq))
		for qa := range rc.Aq {
			rc.FqAq[q][qa] = make([]float64, N)
			for i := range rc.Basis {
				rc.FqAq[q][qa][i] = mat.Dot(rc.fRepr[q], rc.aXi[qa][i])
			}
		}
	}
	rc.AqAq = make([][]*mat.Dense, len(rc.Aq))
	for qa := range rc.Aq {
		rc.AqAq[qa] = make([]*mat.Dense, len(rc.Aq))
		for qq := range rc.Aq {
			M := mat.NewDense(N, N, nil)
			for i := 0; i < N; i++ {
				for j := 0; j < N; j++ {
					M.Set(i, j, mat.Dot(rc.aRepr[qa][i], rc.aXi[qq][j]))
				}
			}
			rc.AqAq[qa][qq] = M
		}
	}
	rc.OutputN = make([][]*mat.VecDense, len(rc.Lq))
	for n, terms := range rc.Lq {
		for _, L := range terms {
			LN := mat.NewVecDense(N, nil)
			for i, b := range rc.Basis {
				LN.SetVec(i, mat.Dot(L, b))
			}
			rc.OutputN[n] = append(rc.OutputN[n], LN)
		}
	}
}

// maxTrainingError solves at every training parameter and returns the largest error bound and where it occurs.
func (rc *RBConstruction) maxTrainingError() (maxErr float64, at int) {
	N := len(rc.Basis)
	at = -1
	for i, mu := range rc.TrainingSet {
		rc.SetParameters(mu)
		if e := rc.Solve(N); at < 0 || e > maxErr {
			maxErr, at = e, i
		}
	}
	return
}

/*
TrainReducedBasis runs the greedy algorithm from the current parameters
until Nmax basis functions are built, the largest training error bound
drops below the absolute tolerance or below the relative tolerance times
the bound of the empty basis, or a snapshot adds nothing new. It returns
the final largest training error bound.
*/
func (rc *RBConstruction) TrainReducedBasis() (maxErr float64) {
	if len(rc.TrainingSet) == 0 {
		panic(fmt.Errorf("reduced basis training needs a training set"))
	}
	if rc.fRepr == nil {
		rc.Initialize()
	}
	mu := rc.Parameters().Clone()
	basis := rc.Basis
	rc.Basis = nil
	initialErr, _ := rc.maxTrainingError()
	rc.Basis = basis
	if len(rc.Basis) > 0 {
		var at int
		maxErr, at = rc.maxTrainingError()
		mu = rc.TrainingSet[at]
	}
	for len(rc.Basis) < rc.Nmax {
		rc.SetParameters(mu)
		if !rc.EnrichBasis(rc.TruthSolve()) {
			if !rc.Quiet {
				log.Printf("snapshot at %v is in the span of the basis, stopping", mu)
			}
			break
		}
		rc.GreedyParams = append(rc.GreedyParams, mu.Clone())
		var at int
		maxErr, at = rc.maxTrainingError()
		if !rc.Quiet {
			log.Printf("reduced basis size %d, max training error bound %g", len(rc.Basis), maxErr)
		}
		if maxErr <= rc.AbsTrainingTolerance {
			break
		}
		if initialErr > 0 && maxErr/initialErr <= rc.RelTrainingTolerance {
			break
		}
		mu = rc.TrainingSet[at]
	}
	return
}
