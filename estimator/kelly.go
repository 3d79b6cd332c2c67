package estimator

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mfkiwl/libmesh/elem"
)

// Seeds every side integral so that any element with a side holds a nonzero indicator.
const jumpSeed = 1.e-30

/*
KellyErrorEstimator measures the jump of the normal gradient across sides,
h * int jump^2 with h the largest edge of the coarse element. With a flux
function attached, boundary sides contribute the mismatch between the
prescribed flux and the normal gradient.
*/
type KellyErrorEstimator struct {
	JumpErrorEstimator
	boundaryFlux func(p elem.Point, v int) (flux float64, ok bool)
}

func NewKellyErrorEstimator() (k *KellyErrorEstimator) {
	k = &KellyErrorEstimator{}
	k.JumpErrorEstimator = JumpErrorEstimator{Integrator: k, kind: Kelly}
	return
}

// AttachFluxBCFunction sets the prescribed normal flux and turns on boundary side integration.
func (k *KellyErrorEstimator) AttachFluxBCFunction(flux func(p elem.Point, v int) (float64, bool)) {
	k.boundaryFlux = flux
	k.IntegrateBoundarySides = flux != nil
}

func (k *KellyErrorEstimator) InternalSideIntegration(sc *SideContext) (fineError, coarseError float64) {
	h := sc.Coarse.Elem.HMax()
	err := jumpSeed
	for q, w := range sc.Weights {
		jump := r3.Dot(r3.Sub(sc.Fine.Gradient(q, sc.UFine), sc.Coarse.Gradient(q, sc.UCoarse)), sc.Normals[q])
		err += w * jump * jump
	}
	return err * h, err * h
}

func (k *KellyErrorEstimator) BoundarySideIntegration(sc *SideContext) (fineError float64, ok bool) {
	if k.boundaryFlux == nil {
		return
	}
	h := sc.Fine.Elem.HMax()
	err := jumpSeed
	for q, w := range sc.Weights {
		var g float64
		if g, ok = k.boundaryFlux(sc.XYZ[q], sc.Var); !ok {
			return 0, false
		}
		jump := g - r3.Dot(sc.Fine.Gradient(q, sc.UFine), sc.Normals[q])
		err += w * jump * jump
	}
	return err * h, true
}

/*
DiscontinuityMeasure measures the jump of the solution value itself, for
discontinuous or nonconforming discretizations. With an essential boundary
function attached, boundary sides contribute the mismatch with the
prescribed value.
*/
type DiscontinuityMeasure struct {
	JumpErrorEstimator
	essential func(p elem.Point, v int) (value float64, ok bool)
}

func NewDiscontinuityMeasure() (dm *DiscontinuityMeasure) {
	dm = &DiscontinuityMeasure{}
	dm.JumpErrorEstimator = JumpErrorEstimator{Integrator: dm, kind: Discontinuity}
	return
}

func (dm *DiscontinuityMeasure) AttachEssentialBCFunction(value func(p elem.Point, v int) (float64, bool)) {
	dm.essential = value
	dm.IntegrateBoundarySides = value != nil
}

func (dm *DiscontinuityMeasure) InternalSideIntegration(sc *SideContext) (fineError, coarseError float64) {
	err := jumpSeed
	for q, w := range sc.Weights {
		jump := sc.Fine.Value(q, sc.UFine) - sc.Coarse.Value(q, sc.UCoarse)
		err += w * jump * jump
	}
	return err, err
}

func (dm *DiscontinuityMeasure) BoundarySideIntegration(sc *SideContext) (fineError float64, ok bool) {
	if dm.essential == nil {
		return
	}
	err := jumpSeed
	for q, w := range sc.Weights {
		var g float64
		if g, ok = dm.essential(sc.XYZ[q], sc.Var); !ok {
			return 0, false
		}
		jump := g - sc.Fine.Value(q, sc.UFine)
		err += w * jump * jump
	}
	return err, true
}
