package rb

import "fmt"

// RBTheta is one parameter dependent coefficient of an affine expansion.
type RBTheta func(mu *RBParameters) float64

/*
RBThetaExpansion is the parameter dependence of an affinely parametrized
problem: A(mu) = sum theta_q^a(mu) A_q, F(mu) = sum theta_q^f(mu) F_q, and
for each output n, L_n(mu) = sum theta_{n,q}^l(mu) L_{n,q}.
*/
type RBThetaExpansion struct {
	aTheta, fTheta []RBTheta
	outputTheta    [][]RBTheta
}

func (te *RBThetaExpansion) AttachATheta(thetas ...RBTheta) {
	te.aTheta = append(te.aTheta, thetas...)
}

func (te *RBThetaExpansion) AttachFTheta(thetas ...RBTheta) {
	te.fTheta = append(te.fTheta, thetas...)
}

// AttachOutputTheta adds one output whose affine terms are thetas.
func (te *RBThetaExpansion) AttachOutputTheta(thetas ...RBTheta) {
	if len(thetas) == 0 {
		panic(fmt.Errorf("an output needs at least one theta"))
	}
	te.outputTheta = append(te.outputTheta, append([]RBTheta(nil), thetas...))
}

func (te *RBThetaExpansion) NATerms() int { return len(te.aTheta) }
func (te *RBThetaExpansion) NFTerms() int { return len(te.fTheta) }
func (te *RBThetaExpansion) NOutputs() int { return len(te.outputTheta) }

func (te *RBThetaExpansion) NOutputTerms(n int) int {
	te.checkOutput(n)
	return len(te.outputTheta[n])
}

func (te *RBThetaExpansion) TotalNOutputTerms() (total int) {
	for _, terms := range te.outputTheta {
		total += len(terms)
	}
	return
}

/*
OutputIndex1D is the row major position of term ql of output n among all
output terms, the order in which pre-evaluated output thetas follow the A
and F thetas.
*/
func (te *RBThetaExpansion) OutputIndex1D(n, ql int) (index int) {
	te.checkOutputTerm(n, ql)
	for i := 0; i < n; i++ {
		index += len(te.outputTheta[i])
	}
	return index + ql
}

func (te *RBThetaExpansion) checkOutput(n int) {
	if n < 0 || n >= len(te.outputTheta) {
		panic(fmt.Errorf("output index %d out of range [0,%d)", n, len(te.outputTheta)))
	}
}

func (te *RBThetaExpansion) checkOutputTerm(n, ql int) {
	te.checkOutput(n)
	if ql < 0 || ql >= len(te.outputTheta[n]) {
		panic(fmt.Errorf("term %d of output %d out of range [0,%d)", ql, n, len(te.outputTheta[n])))
	}
}

func (te *RBThetaExpansion) EvalATheta(q int, mu *RBParameters) float64 {
	if q < 0 || q >= len(te.aTheta) {
		panic(fmt.Errorf("A theta index %d out of range [0,%d)", q, len(te.aTheta)))
	}
	return te.aTheta[q](mu)
}

func (te *RBThetaExpansion) EvalFTheta(q int, mu *RBParameters) float64 {
	if q < 0 || q >= len(te.fTheta) {
		panic(fmt.Errorf("F theta index %d out of range [0,%d)", q, len(te.fTheta)))
	}
	return te.fTheta[q](mu)
}

func (te *RBThetaExpansion) EvalOutputTheta(n, ql int, mu *RBParameters) float64 {
	te.checkOutputTerm(n, ql)
	return te.outputTheta[n][ql](mu)
}

// EvalAThetaSamples evaluates theta_q^a at each of mus.
func (te *RBThetaExpansion) EvalAThetaSamples(q int, mus []*RBParameters) (vals []float64) {
	vals = make([]float64, len(mus))
	for i, mu := range mus {
		vals[i] = te.EvalATheta(q, mu)
	}
	return
}

func (te *RBThetaExpansion) EvalFThetaSamples(q int, mus []*RBParameters) (vals []float64) {
	vals = make([]float64, len(mus))
	for i, mu := range mus {
		vals[i] = te.EvalFTheta(q, mu)
	}
	return
}

func (te *RBThetaExpansion) EvalOutputThetaSamples(n, ql int, mus []*RBParameters) (vals []float64) {
	vals = make([]float64, len(mus))
	for i, mu := range mus {
		vals[i] = te.EvalOutputTheta(n, ql, mu)
	}
	return
}
