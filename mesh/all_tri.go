package mesh

import (
	"fmt"
	"slices"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/types"
)

// prismRotations maps each prism vertex to position 0 while keeping orientation.
var prismRotations = [6][6]int{
	{0, 1, 2, 3, 4, 5}, {1, 2, 0, 4, 5, 3}, {2, 0, 1, 5, 3, 4},
	{3, 5, 4, 0, 2, 1}, {4, 3, 5, 1, 0, 2}, {5, 4, 3, 2, 1, 0}}

/*
AllTri replaces every quad by two triangles, every hex by six tets, every
prism by three tets and every pyramid by two tets. Diagonals of quad faces
run through the face's smallest node id, except for hexes which split about
their 0-6 diagonal. Boundary ids, subdomains, processor ids and element
integers are copied to the pieces. Meshes with refined elements are refused.
*/
func AllTri(m *Mesh) {
	var targets []*elem.Elem
	for _, e := range m.Elements() {
		if e.HasChildren() || e.HasParent() {
			panic(fmt.Errorf("cannot split refined element %d into simplices", e.ID()))
		}
		switch e.Type.Base() {
		case elem.Quad4, elem.Hex8, elem.Prism6, elem.Pyramid5:
			targets = append(targets, e)
		}
	}
	if len(targets) == 0 {
		return
	}
	for _, e := range targets {
		splitElem(m, e)
	}
	m.PrepareForUse()
}

func splitElem(m *Mesh, e *elem.Elem) {
	id := func(ln int) types.DofID { return e.NodeID(ln) }
	var (
		subType elem.ElemType
		subs    [][]int
	)
	switch e.Type {
	case elem.Quad4, elem.QuadShell4:
		subType = elem.Tri3
		if e.Type == elem.QuadShell4 {
			subType = elem.TriShell3
		}
		if min(id(0), id(2)) < min(id(1), id(3)) {
			subs = [][]int{{0, 1, 2}, {0, 2, 3}}
		} else {
			subs = [][]int{{0, 1, 3}, {1, 2, 3}}
		}
	case elem.Hex8:
		subType = elem.Tet4
		for _, tet := range hexTets {
			subs = append(subs, tet[:])
		}
	case elem.Prism6:
		subType = elem.Tet4
		first := 0
		for v := 1; v < 6; v++ {
			if id(v) < id(first) {
				first = v
			}
		}
		r := prismRotations[first]
		if min(id(r[1]), id(r[5])) < min(id(r[2]), id(r[4])) {
			subs = [][]int{{r[0], r[1], r[2], r[5]}, {r[0], r[1], r[5], r[4]}, {r[0], r[4], r[5], r[3]}}
		} else {
			subs = [][]int{{r[0], r[1], r[2], r[4]}, {r[0], r[4], r[2], r[5]}, {r[0], r[4], r[5], r[3]}}
		}
	case elem.Pyramid5:
		subType = elem.Tet4
		if min(id(0), id(2)) < min(id(1), id(3)) {
			subs = [][]int{{0, 1, 2, 4}, {0, 2, 3, 4}}
		} else {
			subs = [][]int{{0, 1, 3, 4}, {1, 2, 3, 4}}
		}
	}

	tp := e.Topology()
	var bcs [][]types.BoundaryID
	for s := 0; s < e.NSides(); s++ {
		bcs = append(bcs, m.Boundary.RawBoundaryIDs(e.ID(), s))
	}
	pieces := make([]*elem.Elem, len(subs))
	for i, local := range subs {
		sub := newElemFrom(subType, e.Nodes, local)
		sub.SubdomainID = e.SubdomainID
		sub.SetProcessorID(e.ProcessorID())
		if n := e.NExtraIntegers(); n > 0 {
			sub.AddExtraIntegers(n)
			for k := 0; k < n; k++ {
				sub.SetExtraInteger(k, e.GetExtraInteger(k))
			}
		}
		pieces[i] = sub
	}
	m.DeleteElem(e)
	for i, sub := range pieces {
		m.AddElem(sub)
		local := subs[i]
		for s, sn := range sub.Topology().SideNodes {
			for ps := range bcs {
				if len(bcs[ps]) == 0 || !sideInside(sn, local, tp.SideNodes[ps]) {
					continue
				}
				for _, bid := range bcs[ps] {
					m.Boundary.Add(sub.ID(), s, bid)
				}
			}
		}
	}
}

// sideInside reports whether the sub element side sn, in sub local numbering, lies in the parent side psn.
func sideInside(sn, local, psn []int) bool {
	for _, k := range sn {
		if !slices.Contains(psn, local[k]) {
			return false
		}
	}
	return true
}
