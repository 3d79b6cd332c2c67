package mesh

import (
	"fmt"
	"slices"
	"sort"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/types"
)

// BCTriple is one side boundary condition record.
type BCTriple struct {
	Elem types.DofID
	Side int
	ID   types.BoundaryID
}

/*
BoundaryInfo stores side and node boundary ids. Side ids are attached to the
elements they were given to, normally level zero elements; children reach
them by walking up through the parent sides that contain their own.
*/
type BoundaryInfo struct {
	mesh  *Mesh
	sides map[types.DofID][]sideID
	nodes map[types.DofID][]types.BoundaryID
	Names map[types.BoundaryID]types.BCTAG
}

type sideID struct {
	side int
	id   types.BoundaryID
}

func NewBoundaryInfo(m *Mesh) *BoundaryInfo {
	return &BoundaryInfo{
		mesh:  m,
		sides: make(map[types.DofID][]sideID),
		nodes: make(map[types.DofID][]types.BoundaryID),
		Names: make(map[types.BoundaryID]types.BCTAG),
	}
}

// Add attaches id to side of element elemID; duplicates are ignored.
func (bi *BoundaryInfo) Add(elemID types.DofID, side int, id types.BoundaryID) {
	if id == types.InvalidBoundaryID {
		panic(fmt.Errorf("cannot add the invalid boundary id to element %d side %d", elemID, side))
	}
	e := bi.mesh.Elem(elemID)
	if side < 0 || side >= e.NSides() {
		panic(fmt.Errorf("side %d out of range [0,%d) for element %d", side, e.NSides(), elemID))
	}
	rec := sideID{side, id}
	if !slices.Contains(bi.sides[elemID], rec) {
		bi.sides[elemID] = append(bi.sides[elemID], rec)
	}
}

func (bi *BoundaryInfo) AddNode(nodeID types.DofID, id types.BoundaryID) {
	if !slices.Contains(bi.nodes[nodeID], id) {
		bi.nodes[nodeID] = append(bi.nodes[nodeID], id)
	}
}

// Remove drops id from one side.
func (bi *BoundaryInfo) Remove(elemID types.DofID, side int, id types.BoundaryID) {
	recs := slices.DeleteFunc(bi.sides[elemID], func(r sideID) bool { return r.side == side && r.id == id })
	if len(recs) == 0 {
		delete(bi.sides, elemID)
		return
	}
	bi.sides[elemID] = recs
}

func (bi *BoundaryInfo) RemoveElem(elemID types.DofID) { delete(bi.sides, elemID) }
func (bi *BoundaryInfo) RemoveNode(nodeID types.DofID) { delete(bi.nodes, nodeID) }

// RawBoundaryIDs lists the ids stored on exactly this element side.
func (bi *BoundaryInfo) RawBoundaryIDs(elemID types.DofID, side int) (ids []types.BoundaryID) {
	for _, r := range bi.sides[elemID] {
		if r.side == side {
			ids = append(ids, r.id)
		}
	}
	return
}

/*
BoundaryIDs lists the ids of side s of e, including those inherited from
ancestors whose sides contain it.
*/
func (bi *BoundaryInfo) BoundaryIDs(e *elem.Elem, s int) (ids []types.BoundaryID) {
	for {
		ids = append(ids, bi.RawBoundaryIDs(e.ID(), s)...)
		if !e.HasParent() {
			break
		}
		parent := bi.mesh.Elem(e.ParentID)
		s = parent.Topology().ChildSideParent(bi.mesh.ChildIndex(e), s)
		if s < 0 {
			break
		}
		e = parent
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func (bi *BoundaryInfo) HasBoundaryID(e *elem.Elem, s int, id types.BoundaryID) bool {
	return slices.Contains(bi.BoundaryIDs(e, s), id)
}

func (bi *BoundaryInfo) NodeBoundaryIDs(nodeID types.DofID) []types.BoundaryID {
	return bi.nodes[nodeID]
}

// NBoundaryConds counts the stored side records.
func (bi *BoundaryInfo) NBoundaryConds() (n int) {
	for _, recs := range bi.sides {
		n += len(recs)
	}
	return
}

// BuildSideList returns every side record sorted by element, side and id.
func (bi *BoundaryInfo) BuildSideList() (list []BCTriple) {
	for eid, recs := range bi.sides {
		for _, r := range recs {
			list = append(list, BCTriple{eid, r.side, r.id})
		}
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Elem != b.Elem {
			return a.Elem < b.Elem
		}
		if a.Side != b.Side {
			return a.Side < b.Side
		}
		return a.ID < b.ID
	})
	return
}

// BoundaryIDSet lists every distinct side boundary id in increasing order.
func (bi *BoundaryInfo) BoundaryIDSet() (ids []types.BoundaryID) {
	for _, recs := range bi.sides {
		for _, r := range recs {
			if !slices.Contains(ids, r.id) {
				ids = append(ids, r.id)
			}
		}
	}
	slices.Sort(ids)
	return
}

/*
ActiveBoundaryNodes maps every node on an active side carrying id, including
inherited ids, to true.
*/
func (bi *BoundaryInfo) ActiveBoundaryNodes(id types.BoundaryID) map[types.DofID]bool {
	nodes := make(map[types.DofID]bool)
	for _, e := range bi.mesh.ActiveElements() {
		for s := 0; s < e.NSides(); s++ {
			if e.NeighborIDs[s] != types.InvalidID || !bi.HasBoundaryID(e, s, id) {
				continue
			}
			for _, ln := range e.Topology().SideNodes[s] {
				nodes[e.NodeID(ln)] = true
			}
		}
	}
	for nid, ids := range bi.nodes {
		if slices.Contains(ids, id) {
			nodes[nid] = true
		}
	}
	return nodes
}

func (bi *BoundaryInfo) renumber(elemMap, nodeMap map[types.DofID]types.DofID) {
	sides := make(map[types.DofID][]sideID, len(bi.sides))
	for eid, recs := range bi.sides {
		if nid, ok := elemMap[eid]; ok {
			sides[nid] = recs
		}
	}
	nodes := make(map[types.DofID][]types.BoundaryID, len(bi.nodes))
	for id, ids := range bi.nodes {
		if nid, ok := nodeMap[id]; ok {
			nodes[nid] = ids
		}
	}
	bi.sides, bi.nodes = sides, nodes
}
