package refinement

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/mfkiwl/libmesh/elem"
)

/*
The flagging policies read an error vector indexed by element id. Entries of
inactive elements are parent errors; they are used when coarsening by
parents and are rebuilt from the children when missing.
*/

func (mr *MeshRefinement) checkErrors(errors []float64) {
	if len(errors) < mr.Mesh.MaxElemID() {
		panic(fmt.Errorf("error vector of length %d for a mesh with %d element ids",
			len(errors), mr.Mesh.MaxElemID()))
	}
}

// parentError is the stored error of p, or the root sum of squares of its children's.
func (mr *MeshRefinement) parentError(errors []float64, p *elem.Elem) float64 {
	if errors[p.ID()] > 0 {
		return errors[p.ID()]
	}
	var sum float64
	for _, c := range mr.Mesh.Children(p) {
		sum += errors[c.ID()] * errors[c.ID()]
	}
	return math.Sqrt(sum)
}

func (mr *MeshRefinement) canRefine(e *elem.Elem) bool {
	return mr.MaxHLevel == 0 || e.Level < mr.MaxHLevel
}

// flagCoarsen marks e for coarsening when its error, or its parent's, lies under cutoff.
func (mr *MeshRefinement) flagCoarsen(errors []float64, e *elem.Elem, cutoff float64) {
	if !e.HasParent() {
		return
	}
	err := errors[e.ID()]
	if mr.CoarsenByParents {
		err = mr.parentError(errors, mr.Mesh.Elem(e.ParentID))
	}
	if err <= cutoff {
		e.RefinementFlag = elem.Coarsen
	}
}

/*
FlagElementsByErrorFraction refines the active elements whose error exceeds
(1 - refineFraction) times the largest error, and coarsens those under
coarsenFraction of the way from the smallest error to the largest. maxLevel
above zero caps refinement.
*/
func (mr *MeshRefinement) FlagElementsByErrorFraction(errors []float64, refineFraction, coarsenFraction float64, maxLevel int) {
	if refineFraction < 0 || refineFraction > 1 || coarsenFraction < 0 || coarsenFraction > 1 {
		panic(fmt.Errorf("refine fraction %g and coarsen fraction %g must lie in [0,1]", refineFraction, coarsenFraction))
	}
	mr.checkErrors(errors)
	if maxLevel > 0 {
		mr.MaxHLevel = maxLevel
	}
	mr.CleanRefinementFlags()
	active := mr.Mesh.ActiveElements()
	if len(active) == 0 {
		return
	}
	errMin, errMax := math.Inf(1), math.Inf(-1)
	for _, e := range active {
		errMin = math.Min(errMin, errors[e.ID()])
		errMax = math.Max(errMax, errors[e.ID()])
	}
	if mr.CoarsenByParents {
		for _, e := range active {
			if e.HasParent() {
				errMin = math.Min(errMin, mr.parentError(errors, mr.Mesh.Elem(e.ParentID)))
			}
		}
	}
	refineCutoff := (1 - refineFraction) * errMax
	coarsenCutoff := coarsenFraction*(errMax-errMin) + errMin
	for _, e := range active {
		if coarsenFraction > 0 {
			mr.flagCoarsen(errors, e, coarsenCutoff)
		}
		if refineFraction > 0 && errors[e.ID()] > refineCutoff && mr.canRefine(e) {
			e.RefinementFlag = elem.Refine
		}
	}
}

/*
FlagElementsByErrorTolerance aims at AbsoluteGlobalTolerance: with the
tolerance shared evenly, an element above its share is refined and one
under its share divided by CoarsenThreshold is coarsened.
*/
func (mr *MeshRefinement) FlagElementsByErrorTolerance(errors []float64) {
	if mr.AbsoluteGlobalTolerance <= 0 {
		panic(fmt.Errorf("flagging by error tolerance needs a positive tolerance, have %g", mr.AbsoluteGlobalTolerance))
	}
	mr.checkErrors(errors)
	mr.CleanRefinementFlags()
	active := mr.Mesh.ActiveElements()
	local := mr.AbsoluteGlobalTolerance / math.Sqrt(float64(len(active)))
	for _, e := range active {
		if mr.CoarsenThreshold > 0 {
			mr.flagCoarsen(errors, e, local/mr.CoarsenThreshold)
		}
		if errors[e.ID()] > local && mr.canRefine(e) {
			e.RefinementFlag = elem.Refine
		}
	}
}

/*
FlagElementsByNelemTarget flags the elements with the largest errors until
refining them would overshoot NelemTarget active elements, or coarsens the
smallest error families when the mesh is already above it. It reports
whether the mesh already had the target count, in which case nothing is
flagged.
*/
func (mr *MeshRefinement) FlagElementsByNelemTarget(errors []float64) (reached bool) {
	if mr.NelemTarget <= 0 {
		panic(fmt.Errorf("flagging by element target needs a positive target, have %d", mr.NelemTarget))
	}
	mr.checkErrors(errors)
	mr.CleanRefinementFlags()
	active := mr.Mesh.ActiveElements()
	n := len(active)
	if n == mr.NelemTarget {
		return true
	}
	sort.SliceStable(active, func(i, j int) bool { return errors[active[i].ID()] > errors[active[j].ID()] })
	if n < mr.NelemTarget {
		for _, e := range active {
			if !mr.canRefine(e) {
				continue
			}
			growth := e.NChildren() - 1
			if n+growth > mr.NelemTarget {
				break
			}
			e.RefinementFlag = elem.Refine
			n += growth
		}
		return
	}
	for i := len(active) - 1; i >= 0 && n > mr.NelemTarget; i-- {
		e := active[i]
		if !e.HasParent() {
			continue
		}
		p := mr.Mesh.Elem(e.ParentID)
		if p.RefinementFlag == elem.CoarsenInactive {
			continue
		}
		family := mr.Mesh.Children(p)
		whole := true
		for _, c := range family {
			if !c.Active() {
				whole = false
			}
		}
		if !whole {
			continue
		}
		for _, c := range family {
			c.RefinementFlag = elem.Coarsen
		}
		p.RefinementFlag = elem.CoarsenInactive
		n -= len(family) - 1
	}
	return
}

/*
FlagElementsByMeanStddev refines active elements whose error exceeds the
mean by refineSigma standard deviations and coarsens those under the mean by
coarsenSigma. A negative sigma disables that side.
*/
func (mr *MeshRefinement) FlagElementsByMeanStddev(errors []float64, refineSigma, coarsenSigma float64, maxLevel int) {
	mr.checkErrors(errors)
	if maxLevel > 0 {
		mr.MaxHLevel = maxLevel
	}
	mr.CleanRefinementFlags()
	active := mr.Mesh.ActiveElements()
	if len(active) == 0 {
		return
	}
	values := make([]float64, len(active))
	for i, e := range active {
		values[i] = errors[e.ID()]
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	for _, e := range active {
		err := errors[e.ID()]
		if coarsenSigma >= 0 && e.HasParent() && err < mean-coarsenSigma*std {
			e.RefinementFlag = elem.Coarsen
		}
		if refineSigma >= 0 && err > mean+refineSigma*std && mr.canRefine(e) {
			e.RefinementFlag = elem.Refine
		}
	}
}

// FlagElementsByElemFraction refines the refineFraction of active elements with the largest errors.
func (mr *MeshRefinement) FlagElementsByElemFraction(errors []float64, refineFraction, coarsenFraction float64) {
	mr.checkErrors(errors)
	mr.CleanRefinementFlags()
	active := mr.Mesh.ActiveElements()
	sort.SliceStable(active, func(i, j int) bool { return errors[active[i].ID()] > errors[active[j].ID()] })
	nRefine := int(refineFraction * float64(len(active)))
	nCoarsen := int(coarsenFraction * float64(len(active)))
	for i, e := range active {
		switch {
		case i < nRefine && mr.canRefine(e):
			e.RefinementFlag = elem.Refine
		case i >= len(active)-nCoarsen && e.HasParent():
			e.RefinementFlag = elem.Coarsen
		}
	}
}
