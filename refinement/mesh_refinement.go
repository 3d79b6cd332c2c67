package refinement

import (
	"fmt"
	"log"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/mesh"
)

var Verbose bool

/*
MeshRefinement applies the h and p refinement flags of a mesh's elements.
Refined elements stay in the arena as inactive parents of their children;
coarsening deletes a complete family of active siblings and reactivates the
parent. Flags are made compatible first, so siblings coarsen together and
neighboring active elements never differ by more than
FaceLevelMismatchLimit levels.
*/
type MeshRefinement struct {
	Mesh *mesh.Mesh

	FaceLevelMismatchLimit int // Zero disables the level rule
	MaxHLevel              int // Zero means unlimited
	MaxPLevel              int // Zero means unlimited

	RefineFraction          float64
	CoarsenFraction         float64
	CoarsenThreshold        float64
	NelemTarget             int
	AbsoluteGlobalTolerance float64
	CoarsenByParents        bool
}

func NewMeshRefinement(m *mesh.Mesh) *MeshRefinement {
	return &MeshRefinement{
		Mesh:                   m,
		FaceLevelMismatchLimit: 1,
		RefineFraction:         0.3,
		CoarsenFraction:        0,
		CoarsenThreshold:       10,
		CoarsenByParents:       true,
	}
}

// CleanRefinementFlags resets every flag: active elements to DoNothing, ancestors to Inactive.
func (mr *MeshRefinement) CleanRefinementFlags() {
	for _, e := range mr.Mesh.Elements() {
		if e.HasChildren() {
			e.RefinementFlag = elem.Inactive
		} else {
			e.RefinementFlag = elem.DoNothing
		}
		e.PRefinementFlag = elem.DoNothing
	}
}

/*
RefineAndCoarsenElements makes the flags compatible, then coarsens and
refines. It reports whether the mesh changed. Elements created or
reactivated by the previous pass are first returned to DoNothing.
*/
func (mr *MeshRefinement) RefineAndCoarsenElements() (changed bool) {
	mr.Mesh.Contract()
	mr.makeFlagsCompatible()
	coarsened := mr.coarsenElements()
	refined := mr.refineElements()
	pChanged := mr.applyPFlags()
	if changed = coarsened || refined || pChanged; changed {
		mr.Mesh.FindNeighbors()
	}
	return
}

// RefineElements acts on refinement flags only; coarsening flags are dropped.
func (mr *MeshRefinement) RefineElements() (changed bool) {
	mr.Mesh.Contract()
	for _, e := range mr.Mesh.Elements() {
		switch e.RefinementFlag {
		case elem.Coarsen:
			e.RefinementFlag = elem.DoNothing
		case elem.CoarsenInactive:
			e.RefinementFlag = elem.Inactive
		}
		if e.PRefinementFlag == elem.Coarsen {
			e.PRefinementFlag = elem.DoNothing
		}
	}
	mr.makeFlagsCompatible()
	refined := mr.refineElements()
	pChanged := mr.applyPFlags()
	if changed = refined || pChanged; changed {
		mr.Mesh.FindNeighbors()
	}
	return
}

// CoarsenElements acts on coarsening flags only; refinement flags are dropped.
func (mr *MeshRefinement) CoarsenElements() (changed bool) {
	mr.Mesh.Contract()
	for _, e := range mr.Mesh.Elements() {
		if e.RefinementFlag == elem.Refine {
			e.RefinementFlag = elem.DoNothing
		}
		if e.PRefinementFlag == elem.Refine {
			e.PRefinementFlag = elem.DoNothing
		}
	}
	mr.makeFlagsCompatible()
	coarsened := mr.coarsenElements()
	pChanged := mr.applyPFlags()
	if changed = coarsened || pChanged; changed {
		mr.Mesh.FindNeighbors()
	}
	return
}

// UniformlyRefine refines every active element n times.
func (mr *MeshRefinement) UniformlyRefine(n int) {
	for i := 0; i < n; i++ {
		mr.Mesh.Contract()
		for _, e := range mr.Mesh.ActiveElements() {
			e.RefinementFlag = elem.Refine
		}
		mr.refineElements()
		mr.Mesh.FindNeighbors()
	}
}

/*
UniformlyCoarsen coarsens every family whose children are all active, n
times. Families with a refined child stay as they are.
*/
func (mr *MeshRefinement) UniformlyCoarsen(n int) {
	for i := 0; i < n; i++ {
		mr.Mesh.Contract()
		for _, e := range mr.Mesh.ActiveElements() {
			if e.HasParent() {
				e.RefinementFlag = elem.Coarsen
			}
		}
		mr.siblingCompatibility()
		if mr.coarsenElements() {
			mr.Mesh.FindNeighbors()
		}
	}
}

// UniformlyPRefine raises the p level of every active element n times.
func (mr *MeshRefinement) UniformlyPRefine(n int) {
	for _, e := range mr.Mesh.ActiveElements() {
		e.PLevel += n
		e.PRefinementFlag = elem.JustRefined
	}
}

// UniformlyPCoarsen lowers the p level of every active element n times, stopping at zero.
func (mr *MeshRefinement) UniformlyPCoarsen(n int) {
	for _, e := range mr.Mesh.ActiveElements() {
		if e.PLevel > 0 {
			e.PLevel = max(0, e.PLevel-n)
			e.PRefinementFlag = elem.JustCoarsened
		}
	}
}

func (mr *MeshRefinement) applyPFlags() (changed bool) {
	for _, e := range mr.Mesh.ActiveElements() {
		switch e.PRefinementFlag {
		case elem.Refine:
			if mr.MaxPLevel == 0 || e.PLevel < mr.MaxPLevel {
				e.PLevel++
				e.PRefinementFlag = elem.JustRefined
				changed = true
			} else {
				e.PRefinementFlag = elem.DoNothing
			}
		case elem.Coarsen:
			if e.PLevel > 0 {
				e.PLevel--
				e.PRefinementFlag = elem.JustCoarsened
				changed = true
			} else {
				e.PRefinementFlag = elem.DoNothing
			}
		}
	}
	return
}

// refineElements splits every active element flagged Refine and reports whether any was.
func (mr *MeshRefinement) refineElements() (changed bool) {
	for _, e := range mr.Mesh.ActiveElements() {
		if e.RefinementFlag == elem.Refine {
			mr.refine(e)
			changed = true
		}
	}
	return
}

/*
refine builds e's children from its refinement embedding. Nodes are shared
through the mesh's parent key map, so neighbors refined earlier or later
reuse the same edge and face nodes. Children inherit the subdomain, p level,
processor id and extra integers of e.
*/
func (mr *MeshRefinement) refine(e *elem.Elem) {
	m := mr.Mesh
	emb := e.Topology().Embedding
	if len(emb.Children) == 0 {
		panic(fmt.Errorf("element type %v has no refinement embedding", e.Type))
	}
	nodes := make([]*elem.Node, len(emb.Specs))
	for i, spec := range emb.Specs {
		parents := make([]*elem.Node, len(spec))
		for k, ln := range spec {
			parents[k] = e.Nodes[ln]
		}
		var created bool
		if nodes[i], created = m.NodeFromParents(parents); created {
			nodes[i].SetProcessorID(e.ProcessorID())
		}
	}
	e.ChildIDs = e.ChildIDs[:0]
	for c, conn := range emb.Children {
		child := elem.NewElem(emb.ChildTypes[c])
		for i, spec := range conn {
			child.Nodes[i] = nodes[spec]
		}
		child.ParentID = e.ID()
		child.Level = e.Level + 1
		child.PLevel = e.PLevel
		child.SubdomainID = e.SubdomainID
		child.RefinementFlag = elem.JustRefined
		child.SetProcessorID(e.ProcessorID())
		m.AddElem(child)
		for i := 0; i < e.NExtraIntegers() && i < child.NExtraIntegers(); i++ {
			child.SetExtraInteger(i, e.GetExtraInteger(i))
		}
		e.ChildIDs = append(e.ChildIDs, child.ID())
	}
	e.RefinementFlag = elem.Inactive
}

/*
coarsenElements removes the children of every parent flagged
CoarsenInactive. Nodes left unused are freed and the arenas trimmed, so a
refinement undone this way leaves the id ranges as they were.
*/
func (mr *MeshRefinement) coarsenElements() (changed bool) {
	m := mr.Mesh
	for _, p := range m.Elements() {
		if p.RefinementFlag != elem.CoarsenInactive {
			continue
		}
		for _, c := range m.Children(p) {
			if !c.Active() {
				panic(fmt.Errorf("element %d is flagged for coarsening but child %d is not active", p.ID(), c.ID()))
			}
			m.DeleteElem(c)
		}
		p.ChildIDs = nil
		p.RefinementFlag = elem.JustCoarsened
		changed = true
	}
	if changed {
		freed := m.DeleteUnusedNodes()
		m.TrimArenas()
		if Verbose {
			log.Printf("coarsening freed %d nodes", freed)
		}
	}
	return
}

// level is the level of e once the current flags are applied.
func level(e *elem.Elem) int {
	switch e.RefinementFlag {
	case elem.Refine:
		return e.Level + 1
	case elem.Coarsen:
		return e.Level - 1
	}
	return e.Level
}

func (mr *MeshRefinement) makeFlagsCompatible() {
	for _, e := range mr.Mesh.ActiveElements() {
		if e.RefinementFlag == elem.Refine && mr.MaxHLevel > 0 && e.Level >= mr.MaxHLevel {
			e.RefinementFlag = elem.DoNothing
		}
		if e.RefinementFlag == elem.Coarsen && !e.HasParent() {
			e.RefinementFlag = elem.DoNothing
		}
	}
	for {
		changed := mr.MakeRefinementCompatible()
		changed = mr.MakeCoarseningCompatible() || changed
		if !changed {
			return
		}
	}
}

/*
MakeRefinementCompatible enforces the level rule around elements flagged for
refinement: an active neighbor that would end up more than
FaceLevelMismatchLimit levels coarser loses a coarsening flag or gains a
refinement flag. It reports whether any flag changed.
*/
func (mr *MeshRefinement) MakeRefinementCompatible() (changed bool) {
	if mr.FaceLevelMismatchLimit == 0 {
		return
	}
	m := mr.Mesh
	for again := true; again; {
		again = false
		for _, e := range m.ActiveElements() {
			if e.RefinementFlag != elem.Refine {
				continue
			}
			for _, nbID := range e.NeighborIDs {
				nb := m.QueryElem(nbID)
				if nb == nil || !nb.Active() {
					continue
				}
				if level(e)-level(nb) <= mr.FaceLevelMismatchLimit {
					continue
				}
				switch nb.RefinementFlag {
				case elem.Coarsen:
					nb.RefinementFlag = elem.DoNothing
				case elem.DoNothing, elem.JustRefined, elem.JustCoarsened:
					nb.RefinementFlag = elem.Refine
				default:
					continue
				}
				changed, again = true, true
			}
		}
	}
	return
}

/*
MakeCoarseningCompatible drops coarsening flags that would break the level
rule against a finer neighborhood, then makes sibling families atomic: a
parent whose children are all active and flagged Coarsen becomes
CoarsenInactive, every other child loses its flag. It reports whether any
flag changed.
*/
func (mr *MeshRefinement) MakeCoarseningCompatible() (changed bool) {
	m := mr.Mesh
	if mr.FaceLevelMismatchLimit > 0 {
		for _, e := range m.ActiveElements() {
			if e.RefinementFlag != elem.Coarsen {
				continue
			}
			if mr.coarseningBreaksLevelRule(e) {
				e.RefinementFlag = elem.DoNothing
				changed = true
			}
		}
	}
	return mr.siblingCompatibility() || changed
}

func (mr *MeshRefinement) coarseningBreaksLevelRule(e *elem.Elem) bool {
	m := mr.Mesh
	coarse := e.Level - 1
	for _, nbID := range e.NeighborIDs {
		nb := m.QueryElem(nbID)
		if nb == nil || nb.ParentID == e.ParentID {
			continue
		}
		for _, f := range m.ActiveFamilyTreeByNeighbor(nb, e) {
			if level(f)-coarse > mr.FaceLevelMismatchLimit {
				return true
			}
		}
	}
	return false
}

func (mr *MeshRefinement) siblingCompatibility() (changed bool) {
	m := mr.Mesh
	for _, p := range m.Elements() {
		if !p.HasChildren() {
			continue
		}
		children := m.Children(p)
		all := true
		for _, c := range children {
			if !c.Active() || c.RefinementFlag != elem.Coarsen {
				all = false
				break
			}
		}
		switch {
		case all && p.RefinementFlag != elem.CoarsenInactive:
			p.RefinementFlag = elem.CoarsenInactive
			changed = true
		case !all:
			if p.RefinementFlag == elem.CoarsenInactive {
				p.RefinementFlag = elem.Inactive
				changed = true
			}
			for _, c := range children {
				if c.RefinementFlag == elem.Coarsen {
					c.RefinementFlag = elem.DoNothing
					changed = true
				}
			}
		}
	}
	return
}

// ActiveLevelMismatch is the largest level difference between active face neighbors.
func ActiveLevelMismatch(m *mesh.Mesh) (worst int) {
	for _, e := range m.ActiveElements() {
		for _, nbID := range e.NeighborIDs {
			nb := m.QueryElem(nbID)
			if nb == nil {
				continue
			}
			for _, f := range m.ActiveFamilyTreeByNeighbor(nb, e) {
				worst = max(worst, abs(f.Level-e.Level))
			}
		}
	}
	return
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
