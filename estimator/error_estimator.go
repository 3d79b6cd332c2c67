package estimator

import (
	"fmt"
	"strings"

	"github.com/mfkiwl/libmesh/parallel"
	"github.com/mfkiwl/libmesh/systems"
	"github.com/mfkiwl/libmesh/types"
)

var Verbose bool

type EstimatorType uint8

const (
	Kelly EstimatorType = iota
	Discontinuity
	AdjointRefinement
	InvalidEstimator
)

func (et EstimatorType) String() string {
	switch et {
	case Kelly:
		return "kelly"
	case Discontinuity:
		return "discontinuity"
	case AdjointRefinement:
		return "adjoint_refinement"
	}
	return "invalid"
}

func NewEstimatorType(name string) (et EstimatorType, err error) {
	for et = Kelly; et < InvalidEstimator; et++ {
		if strings.EqualFold(et.String(), name) {
			return
		}
	}
	return InvalidEstimator, fmt.Errorf("unknown error estimator %q", name)
}

/*
ErrorEstimator computes an error indicator per element of the system's
mesh. estimateParentError asks for indicators on the parents of complete
active families as well, for coarsening by parents.
*/
type ErrorEstimator interface {
	EstimateError(sys *systems.System, errorPerCell *ErrorVector, estimateParentError bool) error
	Type() EstimatorType
}

/*
EstimateErrors sums the indicators of every system of es into
errorPerCell, scaled by the per system weights (one where missing).
*/
func EstimateErrors(est ErrorEstimator, es *systems.EquationSystems, errorPerCell *ErrorVector,
	weights map[string]float64, estimateParentError bool) (err error) {
	errorPerCell.Reset(es.Mesh)
	sysErrors := &ErrorVector{}
	for i := 0; i < es.NSystems(); i++ {
		sys := es.System(i)
		w, ok := weights[sys.Name]
		if !ok {
			w = 1
		}
		if w == 0 {
			continue
		}
		if err = est.EstimateError(sys, sysErrors, estimateParentError); err != nil {
			return fmt.Errorf("system %q: %w", sys.Name, err)
		}
		for e, v := range sysErrors.Values {
			errorPerCell.Values[e] += w * v
		}
	}
	return
}

// reduceError sums the contributions of every rank.
func reduceError(c parallel.Communicator, values []float64) {
	if c.Size() > 1 {
		parallel.SumSlice(c, values)
	}
}

func localRank(es *systems.EquationSystems) types.ProcessorID {
	return types.ProcessorID(es.Comm.Rank())
}
