package systems

import (
	"slices"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/fe"
)

/*
QoISet selects quantities of interest by index and weighs them. An empty
set selects every QoI of a system. Unset weights are 1.
*/
type QoISet struct {
	indices []int
	weights map[int]float64
}

func NewQoISet(indices ...int) (qs *QoISet) {
	qs = &QoISet{weights: make(map[int]float64)}
	for _, q := range indices {
		qs.AddIndex(q)
	}
	return
}

func (qs *QoISet) AddIndex(q int) {
	if !slices.Contains(qs.indices, q) {
		qs.indices = append(qs.indices, q)
		slices.Sort(qs.indices)
	}
}

func (qs *QoISet) RemoveIndex(q int) {
	qs.indices = slices.DeleteFunc(qs.indices, func(i int) bool { return i == q })
}

func (qs *QoISet) HasIndex(q int) bool {
	return qs == nil || len(qs.indices) == 0 || slices.Contains(qs.indices, q)
}

// Indices lists the selected QoIs of sys.
func (qs *QoISet) Indices(sys *System) (indices []int) {
	for q := range sys.QoIs {
		if qs.HasIndex(q) {
			indices = append(indices, q)
		}
	}
	return
}

func (qs *QoISet) Size(sys *System) int { return len(qs.Indices(sys)) }

func (qs *QoISet) SetWeight(q int, w float64) { qs.weights[q] = w }

func (qs *QoISet) Weight(q int) float64 {
	if qs != nil {
		if w, ok := qs.weights[q]; ok {
			return w
		}
	}
	return 1
}

/*
IntegralQoI is the integral of Weight times variable Var over the elements
whose centroid passes Region. A nil Weight is 1 and a nil Region takes
every element.
*/
type IntegralQoI struct {
	Var    int
	Weight func(p elem.Point) float64
	Region func(c elem.Point) bool
}

func (iq *IntegralQoI) ElementDerivative(e *elem.Elem, nVars int) (dq []float64) {
	nn := e.NNodes()
	dq = make([]float64, nn*nVars)
	if iq.Region != nil && !iq.Region(e.Centroid()) {
		return
	}
	f := fe.NewFE()
	f.Reinit(e, 2)
	for q, jxw := range f.JxW {
		w := jxw
		if iq.Weight != nil {
			w *= iq.Weight(f.XYZ[q])
		}
		for i, phi := range f.Phi[q] {
			dq[iq.Var*nn+i] += w * phi
		}
	}
	return
}
