package mesh

import (
	"fmt"
	"slices"
	"sort"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/types"
)

type sideRef struct {
	elemID types.DofID
	side   int
}

/*
FindNeighbors rebuilds the neighbor links of every element, active or not.
Sides are matched exactly through their node sets. A side left unmatched on a
child inherits its parent's neighbor across the parent side that contains it,
which makes the neighbor of a refined element's child the coarser element on
the other side. Any other unmatched side is on the boundary.
*/
func (m *Mesh) FindNeighbors() {
	sides := make(map[types.SideKey][]sideRef)
	for _, e := range m.elems {
		if e == nil {
			continue
		}
		for s := range e.NeighborIDs {
			e.NeighborIDs[s] = types.InvalidID
			key := e.Key(s)
			sides[key] = append(sides[key], sideRef{e.ID(), s})
		}
	}
	for _, refs := range sides {
		for i := 0; i < len(refs); i++ {
			e := m.elems[refs[i].elemID]
			if e.NeighborIDs[refs[i].side] != types.InvalidID {
				continue
			}
			ids := e.SideNodeIDs(refs[i].side)
			for j := i + 1; j < len(refs); j++ {
				f := m.elems[refs[j].elemID]
				if f.NeighborIDs[refs[j].side] != types.InvalidID {
					continue
				}
				if slices.Equal(ids, f.SideNodeIDs(refs[j].side)) {
					e.NeighborIDs[refs[i].side] = f.ID()
					f.NeighborIDs[refs[j].side] = e.ID()
					break
				}
			}
		}
	}

	// Parents first, so inherited links are already final
	elems := m.Elements()
	sort.SliceStable(elems, func(i, j int) bool { return elems[i].Level < elems[j].Level })
	for _, e := range elems {
		if !e.HasParent() {
			continue
		}
		parent := m.Elem(e.ParentID)
		c := m.ChildIndex(e)
		for s, nb := range e.NeighborIDs {
			if nb != types.InvalidID {
				continue
			}
			if ps := parent.Topology().ChildSideParent(c, s); ps >= 0 {
				e.NeighborIDs[s] = parent.NeighborIDs[ps]
			}
		}
	}
	m.changed()
}

// ChildIndex is the position of e among its parent's children.
func (m *Mesh) ChildIndex(e *elem.Elem) int {
	parent := m.Elem(e.ParentID)
	c := slices.Index(parent.ChildIDs, e.ID())
	if c < 0 {
		panic(fmt.Errorf("element %d is not a child of its parent %d", e.ID(), parent.ID()))
	}
	return c
}

// TopParent walks parent links up to the level zero ancestor.
func (m *Mesh) TopParent(e *elem.Elem) *elem.Elem {
	for e.HasParent() {
		e = m.Elem(e.ParentID)
	}
	return e
}

// Ancestor returns e's ancestor n levels up.
func (m *Mesh) Ancestor(e *elem.Elem, n int) *elem.Elem {
	for i := 0; i < n; i++ {
		if !e.HasParent() {
			panic(fmt.Errorf("element %d at level %d has no ancestor %d levels up", e.ID(), e.Level, n))
		}
		e = m.Elem(e.ParentID)
	}
	return e
}

// Children resolves e's child ids.
func (m *Mesh) Children(e *elem.Elem) (children []*elem.Elem) {
	children = make([]*elem.Elem, len(e.ChildIDs))
	for i, id := range e.ChildIDs {
		children[i] = m.Elem(id)
	}
	return
}

// ActiveFamilyTree lists the active descendants of e, e itself when active.
func (m *Mesh) ActiveFamilyTree(e *elem.Elem) (family []*elem.Elem) {
	if e.Active() {
		return []*elem.Elem{e}
	}
	for _, c := range m.Children(e) {
		family = append(family, m.ActiveFamilyTree(c)...)
	}
	return
}

/*
ActiveFamilyTreeByNeighbor lists the active members of f's family that hold
a direct neighbor link to nb, descending only through children that do.
*/
func (m *Mesh) ActiveFamilyTreeByNeighbor(f, nb *elem.Elem) (family []*elem.Elem) {
	if f.Active() {
		return []*elem.Elem{f}
	}
	for _, c := range m.Children(f) {
		if slices.Contains(c.NeighborIDs, nb.ID()) {
			family = append(family, m.ActiveFamilyTreeByNeighbor(c, nb)...)
		}
	}
	return
}

// FindPointNeighbors lists the active elements that touch p, found through the point locator.
func (m *Mesh) FindPointNeighbors(p elem.Point) []*elem.Elem {
	return m.SubPointLocator().LocateAll(p)
}
