package estimator

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/mfkiwl/libmesh/mesh"
	"github.com/mfkiwl/libmesh/types"
)

/*
ErrorVector holds one error indicator per element id. Statistics run over
the active elements of Mesh when it is set, otherwise over the nonzero
entries, which are the active ones for every estimator here.
*/
type ErrorVector struct {
	Values []float64
	Mesh   *mesh.Mesh
}

func NewErrorVector(m *mesh.Mesh) *ErrorVector {
	return &ErrorVector{Values: make([]float64, m.MaxElemID()), Mesh: m}
}

// Reset sizes the vector to the element ids of the mesh and zeroes it.
func (ev *ErrorVector) Reset(m *mesh.Mesh) {
	ev.Mesh = m
	ev.Values = make([]float64, m.MaxElemID())
}

func (ev *ErrorVector) Len() int { return len(ev.Values) }

func (ev *ErrorVector) isActive(i int) bool {
	if ev.Mesh != nil {
		e := ev.Mesh.QueryElem(types.DofID(i))
		return e != nil && e.Active()
	}
	return ev.Values[i] != 0
}

// Active returns the entries of the active elements in id order.
func (ev *ErrorVector) Active() (vals []float64) {
	for i, v := range ev.Values {
		if ev.isActive(i) {
			vals = append(vals, v)
		}
	}
	return
}

func (ev *ErrorVector) Minimum() float64 {
	vals := ev.Active()
	if len(vals) == 0 {
		return 0
	}
	return floats.Min(vals)
}

func (ev *ErrorVector) Maximum() float64 {
	vals := ev.Active()
	if len(vals) == 0 {
		return 0
	}
	return floats.Max(vals)
}

func (ev *ErrorVector) Mean() float64 {
	vals := ev.Active()
	if len(vals) == 0 {
		return 0
	}
	return stat.Mean(vals, nil)
}

func (ev *ErrorVector) Median() float64 {
	vals := ev.Active()
	if len(vals) == 0 {
		return 0
	}
	sort.Float64s(vals)
	return stat.Quantile(0.5, stat.Empirical, vals, nil)
}

// Variance is the population variance of the active entries.
func (ev *ErrorVector) Variance() float64 {
	vals := ev.Active()
	if len(vals) == 0 {
		return 0
	}
	_, variance := stat.PopMeanVariance(vals, nil)
	return variance
}

func (ev *ErrorVector) StdDev() float64 { return math.Sqrt(ev.Variance()) }

// L2Norm is the root sum of squares of the active entries, the global error of an energy type indicator.
func (ev *ErrorVector) L2Norm() float64 {
	vals := ev.Active()
	if len(vals) == 0 {
		return 0
	}
	return floats.Norm(vals, 2)
}

// CutBelow lists the active element ids whose error is under cut.
func (ev *ErrorVector) CutBelow(cut float64) (ids []types.DofID) {
	for i, v := range ev.Values {
		if ev.isActive(i) && v < cut {
			ids = append(ids, types.DofID(i))
		}
	}
	return
}

// CutAbove lists the active element ids whose error exceeds cut.
func (ev *ErrorVector) CutAbove(cut float64) (ids []types.DofID) {
	for i, v := range ev.Values {
		if ev.isActive(i) && v > cut {
			ids = append(ids, types.DofID(i))
		}
	}
	return
}

/*
Histogram bins the active entries into nBins equal bins spanning
[Minimum, Maximum]; the largest values fall in the last bin.
*/
func (ev *ErrorVector) Histogram(nBins int) (counts []float64, dividers []float64) {
	if nBins < 1 {
		panic(fmt.Errorf("histogram needs at least one bin, have %d", nBins))
	}
	vals := ev.Active()
	counts = make([]float64, nBins)
	dividers = make([]float64, nBins+1)
	if len(vals) == 0 {
		return
	}
	sort.Float64s(vals)
	lo, hi := vals[0], vals[len(vals)-1]
	if hi == lo {
		hi = lo + 1
	}
	floats.Span(dividers, lo, hi)
	// Widen the top so the maximum lands inside the last bin
	dividers[nBins] = math.Nextafter(hi, math.Inf(1))
	counts = stat.Histogram(counts, dividers, vals, nil)
	dividers[nBins] = hi
	return
}

func (ev *ErrorVector) PrintHistogram(nBins int) {
	counts, dividers := ev.Histogram(nBins)
	for i, c := range counts {
		fmt.Printf("[%12.5e, %12.5e) %6d\n", dividers[i], dividers[i+1], int(c))
	}
}
