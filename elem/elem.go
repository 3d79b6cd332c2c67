package elem

import (
	"fmt"

	"github.com/mfkiwl/libmesh/dofobject"
	"github.com/mfkiwl/libmesh/types"
)

type RefinementState uint8

const (
	DoNothing RefinementState = iota
	Refine
	Coarsen
	CoarsenInactive
	Inactive
	JustRefined
	JustCoarsened
)

func (rs RefinementState) String() string {
	return [...]string{"DoNothing", "Refine", "Coarsen", "CoarsenInactive",
		"Inactive", "JustRefined", "JustCoarsened"}[rs]
}

/*
Elem is one cell of the mesh hierarchy. Nodes are shared pointers into the
mesh's node arena; parent, children and neighbors are element ids into the
mesh's element arena, InvalidID standing for "none".
*/
type Elem struct {
	dofobject.DofObject
	Type            ElemType
	Nodes           []*Node
	SubdomainID     types.SubdomainID
	ParentID        types.DofID
	ChildIDs        []types.DofID
	NeighborIDs     []types.DofID
	Level           int
	PLevel          int
	RefinementFlag  RefinementState
	PRefinementFlag RefinementState
}

func NewElem(et ElemType) (e *Elem) {
	tp := GetTopology(et)
	e = &Elem{
		Type:        et,
		Nodes:       make([]*Node, tp.NNodes),
		ParentID:    types.InvalidID,
		NeighborIDs: types.FillSlice(tp.NSides(), types.InvalidID),
	}
	e.DofObject.Init()
	return
}

func (e *Elem) Topology() *Topology { return GetTopology(e.Type) }
func (e *Elem) Dim() int            { return e.Topology().Dim }
func (e *Elem) NNodes() int         { return len(e.Nodes) }
func (e *Elem) NVertices() int      { return e.Topology().NNodes }
func (e *Elem) NSides() int         { return e.Topology().NSides() }
func (e *Elem) NEdges() int         { return e.Topology().NEdges() }
func (e *Elem) NChildren() int      { return e.Topology().NChildren() }
func (e *Elem) IsVertex(i int) bool { return i >= 0 && i < e.NVertices() }

func (e *Elem) Point(i int) Point { return e.Nodes[i].Point }

func (e *Elem) NodeID(i int) types.DofID { return e.Nodes[i].ID() }

func (e *Elem) NodeIDs() (ids []types.DofID) {
	ids = make([]types.DofID, len(e.Nodes))
	for i, n := range e.Nodes {
		ids[i] = n.ID()
	}
	return
}

// LocalNode returns the local index of the node with global id, or -1.
func (e *Elem) LocalNode(id types.DofID) int {
	for i, n := range e.Nodes {
		if n.ID() == id {
			return i
		}
	}
	return -1
}

func (e *Elem) Active() bool {
	return e.RefinementFlag != Inactive && e.RefinementFlag != CoarsenInactive
}

func (e *Elem) HasChildren() bool { return len(e.ChildIDs) > 0 }

// Ancestor is an inactive element whose children exist.
func (e *Elem) Ancestor() bool { return !e.Active() && e.HasChildren() }

func (e *Elem) HasParent() bool { return e.ParentID != types.InvalidID }

func (e *Elem) Neighbor(s int) types.DofID {
	e.Topology().checkSide(s)
	return e.NeighborIDs[s]
}

func (e *Elem) OnBoundary() bool {
	for _, nb := range e.NeighborIDs {
		if nb == types.InvalidID {
			return true
		}
	}
	return false
}

func (e *Elem) LocalSideNode(side, k int) int { return e.Topology().LocalSideNode(side, k) }
func (e *Elem) LocalEdgeNode(edge, k int) int { return e.Topology().LocalEdgeNode(edge, k) }
func (e *Elem) IsChildOnSide(c, s int) bool   { return e.Topology().IsChildOnSide(c, s) }
func (e *Elem) IsEdgeOnSide(ed, s int) bool   { return e.Topology().IsEdgeOnSide(ed, s) }
func (e *Elem) SidesOnEdge(ed int) []int      { return e.Topology().SidesOnEdge(ed) }
func (e *Elem) IsNodeOnSide(n, s int) bool    { return e.Topology().IsNodeOnSide(n, s) }
func (e *Elem) IsNodeOnEdge(n, ed int) bool   { return e.Topology().IsNodeOnEdge(n, ed) }

func (e *Elem) sideNodeIDs(s int) (ids []types.DofID) {
	sn := e.Topology().SideNodes[s]
	ids = make([]types.DofID, len(sn))
	for k, ln := range sn {
		ids[k] = e.Nodes[ln].ID()
	}
	return
}

// Key is the order independent key of side s, shared by both elements on it.
func (e *Elem) Key(s int) types.SideKey {
	e.Topology().checkSide(s)
	return types.NewSideKey(e.sideNodeIDs(s)...)
}

// LowOrderKey keys side s by its vertices only; identical to Key for first order elements.
func (e *Elem) LowOrderKey(s int) types.SideKey { return e.Key(s) }

// SideNodeIDs lists the sorted global node ids of side s for exact matching.
func (e *Elem) SideNodeIDs(s int) []types.DofID {
	e.Topology().checkSide(s)
	return types.SortedIDs(e.sideNodeIDs(s))
}

/*
SidePtr builds a free standing lower dimensional element for side s whose
nodes are the parent's node pointers in table order. The side has no id and
carries the parent's subdomain.
*/
func (e *Elem) SidePtr(s int) (side *Elem) {
	tp := e.Topology()
	tp.checkSide(s)
	side = NewElem(tp.SideTypes[s])
	for k, ln := range tp.SideNodes[s] {
		side.Nodes[k] = e.Nodes[ln]
	}
	side.SubdomainID = e.SubdomainID
	side.Level, side.PLevel = e.Level, e.PLevel
	return
}

// BuildEdgePtr builds an Edge2 aliasing the nodes of edge ed.
func (e *Elem) BuildEdgePtr(ed int) (edge *Elem) {
	tp := e.Topology()
	tp.checkEdge(ed)
	edge = NewElem(Edge2)
	edge.Nodes[0], edge.Nodes[1] = e.Nodes[tp.EdgeNodes[ed][0]], e.Nodes[tp.EdgeNodes[ed][1]]
	return
}

// LocalSingularNode is the index of the node at p where the map degenerates (the pyramid apex), or -1.
func (e *Elem) LocalSingularNode(p Point, tol float64) int {
	if e.Type == Pyramid5 && AbsoluteFuzzyEquals(e.Point(4), p, tol) {
		return 4
	}
	return -1
}

func (e *Elem) String() string {
	return fmt.Sprintf("%v id=%d level=%d nodes=%v flag=%v", e.Type, e.ID(), e.Level, e.NodeIDs(), e.RefinementFlag)
}
