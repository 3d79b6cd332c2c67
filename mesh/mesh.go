package mesh

import (
	"fmt"
	"slices"
	"sort"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/types"
)

/*
Mesh owns every node and element of a refinement hierarchy. Both live in
arenas indexed by id; a deleted entity leaves a nil hole until the arenas are
trimmed or renumbered. Elements refer to each other by id only.
*/
type Mesh struct {
	Dim              int
	Boundary         *BoundaryInfo
	AllowRenumbering bool

	nodes []*elem.Node
	elems []*elem.Elem

	// Nodes created by refinement, keyed by the parent nodes they average
	childNodes  map[types.ParentKey]types.DofID
	nodeParents map[types.DofID]types.ParentKey

	elemIntegerNames []string
	elemsets         *elemsetTable

	nextUniqueID types.UniqueID
	stamp        uint64
	locator      *PointLocator
}

func NewMesh(dim int) (m *Mesh) {
	if dim < 1 || dim > 3 {
		panic(fmt.Errorf("mesh dimension %d out of range [1,3]", dim))
	}
	m = &Mesh{
		Dim:              dim,
		AllowRenumbering: true,
		childNodes:       make(map[types.ParentKey]types.DofID),
		nodeParents:      make(map[types.DofID]types.ParentKey),
		elemsets:         newElemsetTable(),
	}
	m.Boundary = NewBoundaryInfo(m)
	return
}

func (m *Mesh) changed() { m.stamp++ }

// AddPoint creates a node at p with the next free id.
func (m *Mesh) AddPoint(p elem.Point) *elem.Node {
	return m.AddNode(elem.NewNode(p, types.InvalidID))
}

// AddNode inserts n at its id, or appends it when the id is invalid.
func (m *Mesh) AddNode(n *elem.Node) *elem.Node {
	if !n.ValidID() {
		n.SetID(types.DofID(len(m.nodes)))
	}
	id := int(n.ID())
	m.nodes = types.GrowSlice(m.nodes, id+1)
	if m.nodes[id] != nil && m.nodes[id] != n {
		panic(fmt.Errorf("node id %d is already in use", id))
	}
	m.nodes[id] = n
	if !n.ValidUniqueID() {
		n.SetUniqueID(m.nextUniqueID)
		m.nextUniqueID++
	}
	if !n.ValidProcessorID() {
		n.SetProcessorID(0)
	}
	m.changed()
	return n
}

/*
AddElem inserts e at its id, or appends it when the id is invalid. The element
is given the mesh's element integers, initialized to InvalidID.
*/
func (m *Mesh) AddElem(e *elem.Elem) *elem.Elem {
	for i, n := range e.Nodes {
		if n == nil {
			panic(fmt.Errorf("element of type %v has no node %d", e.Type, i))
		}
	}
	if !e.ValidID() {
		e.SetID(types.DofID(len(m.elems)))
	}
	id := int(e.ID())
	m.elems = types.GrowSlice(m.elems, id+1)
	if m.elems[id] != nil && m.elems[id] != e {
		panic(fmt.Errorf("element id %d is already in use", id))
	}
	m.elems[id] = e
	if !e.ValidUniqueID() {
		e.SetUniqueID(m.nextUniqueID)
		m.nextUniqueID++
	}
	if !e.ValidProcessorID() {
		e.SetProcessorID(0)
	}
	if e.NExtraIntegers() < len(m.elemIntegerNames) {
		e.AddExtraIntegers(len(m.elemIntegerNames))
	}
	m.changed()
	return e
}

/*
DeleteElem frees e's arena slot, drops its boundary conditions and clears
every neighbor link that points at it. Parent and child links are the
caller's business.
*/
func (m *Mesh) DeleteElem(e *elem.Elem) {
	id := e.ID()
	if m.QueryElem(id) != e {
		panic(fmt.Errorf("element %d is not in this mesh", id))
	}
	for _, nb := range e.NeighborIDs {
		if f := m.QueryElem(nb); f != nil {
			for s, back := range f.NeighborIDs {
				if back == id {
					f.NeighborIDs[s] = types.InvalidID
				}
			}
		}
	}
	m.Boundary.RemoveElem(id)
	m.elems[id] = nil
	m.changed()
}

func (m *Mesh) DeleteNode(n *elem.Node) {
	id := n.ID()
	if m.QueryNode(id) != n {
		panic(fmt.Errorf("node %d is not in this mesh", id))
	}
	if pk, ok := m.nodeParents[id]; ok {
		delete(m.childNodes, pk)
		delete(m.nodeParents, id)
	}
	m.Boundary.RemoveNode(id)
	m.nodes[id] = nil
	m.changed()
}

func (m *Mesh) QueryNode(id types.DofID) *elem.Node {
	if int(id) >= len(m.nodes) {
		return nil
	}
	return m.nodes[id]
}

// Node panics when id does not name a live node.
func (m *Mesh) Node(id types.DofID) *elem.Node {
	n := m.QueryNode(id)
	if n == nil {
		panic(fmt.Errorf("no node with id %d, max node id %d", id, len(m.nodes)))
	}
	return n
}

func (m *Mesh) QueryElem(id types.DofID) *elem.Elem {
	if int(id) >= len(m.elems) {
		return nil
	}
	return m.elems[id]
}

// Elem panics when id does not name a live element.
func (m *Mesh) Elem(id types.DofID) *elem.Elem {
	e := m.QueryElem(id)
	if e == nil {
		panic(fmt.Errorf("no element with id %d, max elem id %d", id, len(m.elems)))
	}
	return e
}

// Nodes lists the live nodes in id order.
func (m *Mesh) Nodes() (nodes []*elem.Node) {
	for _, n := range m.nodes {
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return
}

// Elements lists the live elements in id order.
func (m *Mesh) Elements() (elems []*elem.Elem) {
	for _, e := range m.elems {
		if e != nil {
			elems = append(elems, e)
		}
	}
	return
}

func (m *Mesh) ActiveElements() (elems []*elem.Elem) {
	for _, e := range m.elems {
		if e != nil && e.Active() {
			elems = append(elems, e)
		}
	}
	return
}

func (m *Mesh) ActiveLocalElements(pid types.ProcessorID) (elems []*elem.Elem) {
	for _, e := range m.elems {
		if e != nil && e.Active() && e.ProcessorID() == pid {
			elems = append(elems, e)
		}
	}
	return
}

func (m *Mesh) LevelElements(level int) (elems []*elem.Elem) {
	for _, e := range m.elems {
		if e != nil && e.Level == level {
			elems = append(elems, e)
		}
	}
	return
}

func (m *Mesh) MaxElemID() int { return len(m.elems) }
func (m *Mesh) MaxNodeID() int { return len(m.nodes) }

func (m *Mesh) NElem() (n int) {
	for _, e := range m.elems {
		if e != nil {
			n++
		}
	}
	return
}

func (m *Mesh) NActiveElem() (n int) {
	for _, e := range m.elems {
		if e != nil && e.Active() {
			n++
		}
	}
	return
}

func (m *Mesh) NNodes() (n int) {
	for _, nd := range m.nodes {
		if nd != nil {
			n++
		}
	}
	return
}

// NLevels is one more than the deepest refinement level present.
func (m *Mesh) NLevels() (n int) {
	for _, e := range m.elems {
		if e != nil && e.Level+1 > n {
			n = e.Level + 1
		}
	}
	return
}

/*
NodeFromParents returns the node placed at the average of parents, creating
it on first request. Nodes are shared through the exact parent id set, so
every element refined across a common edge or face gets the same node.
*/
func (m *Mesh) NodeFromParents(parents []*elem.Node) (n *elem.Node, created bool) {
	if len(parents) == 1 {
		return parents[0], false
	}
	ids := make([]types.DofID, len(parents))
	var p elem.Point
	for i, pn := range parents {
		ids[i] = pn.ID()
		p.X, p.Y, p.Z = p.X+pn.X, p.Y+pn.Y, p.Z+pn.Z
	}
	key := types.NewParentKey(ids...)
	if id, ok := m.childNodes[key]; ok {
		return m.Node(id), false
	}
	s := 1 / float64(len(parents))
	n = m.AddPoint(elem.Point{X: p.X * s, Y: p.Y * s, Z: p.Z * s})
	m.childNodes[key] = n.ID()
	m.nodeParents[n.ID()] = key
	return n, true
}

// NodeParents lists the nodes a refinement node was averaged from.
func (m *Mesh) NodeParents(id types.DofID) (parents []types.DofID, ok bool) {
	var pk types.ParentKey
	if pk, ok = m.nodeParents[id]; ok {
		parents = pk.IDs()
	}
	return
}

// DeleteUnusedNodes frees every node no element references and returns how many went.
func (m *Mesh) DeleteUnusedNodes() (count int) {
	used := make([]bool, len(m.nodes))
	for _, e := range m.elems {
		if e == nil {
			continue
		}
		for _, n := range e.Nodes {
			used[n.ID()] = true
		}
	}
	for id, n := range m.nodes {
		if n != nil && !used[id] {
			m.DeleteNode(n)
			count++
		}
	}
	return
}

// TrimArenas drops trailing free slots so that MaxElemID and MaxNodeID shrink back.
func (m *Mesh) TrimArenas() {
	for len(m.elems) > 0 && m.elems[len(m.elems)-1] == nil {
		m.elems = m.elems[:len(m.elems)-1]
	}
	for len(m.nodes) > 0 && m.nodes[len(m.nodes)-1] == nil {
		m.nodes = m.nodes[:len(m.nodes)-1]
	}
}

/*
RenumberNodesAndElements closes every hole in both arenas, keeping the
relative order of ids, and rewrites all id references held by elements, the
boundary info and the refinement node map.
*/
func (m *Mesh) RenumberNodesAndElements() {
	nodeMap := make(map[types.DofID]types.DofID, len(m.nodes))
	var nodes []*elem.Node
	for _, n := range m.nodes {
		if n != nil {
			nodeMap[n.ID()] = types.DofID(len(nodes))
			n.SetID(types.DofID(len(nodes)))
			nodes = append(nodes, n)
		}
	}
	elemMap := make(map[types.DofID]types.DofID, len(m.elems))
	var elems []*elem.Elem
	for _, e := range m.elems {
		if e != nil {
			elemMap[e.ID()] = types.DofID(len(elems))
			e.SetID(types.DofID(len(elems)))
			elems = append(elems, e)
		}
	}
	remap := func(id types.DofID) types.DofID {
		if nid, ok := elemMap[id]; ok {
			return nid
		}
		return types.InvalidID
	}
	for _, e := range elems {
		e.ParentID = remap(e.ParentID)
		for i := range e.ChildIDs {
			e.ChildIDs[i] = remap(e.ChildIDs[i])
		}
		for i := range e.NeighborIDs {
			e.NeighborIDs[i] = remap(e.NeighborIDs[i])
		}
	}
	childNodes := make(map[types.ParentKey]types.DofID, len(m.childNodes))
	nodeParents := make(map[types.DofID]types.ParentKey, len(m.nodeParents))
	for key, id := range m.childNodes {
		ids := key.IDs()
		complete := true
		for i := range ids {
			nid, ok := nodeMap[ids[i]]
			if !ok {
				complete = false
				break
			}
			ids[i] = nid
		}
		if !complete {
			continue
		}
		nk := types.NewParentKey(ids...)
		childNodes[nk] = nodeMap[id]
		nodeParents[nodeMap[id]] = nk
	}
	m.Boundary.renumber(elemMap, nodeMap)
	m.nodes, m.elems = nodes, elems
	m.childNodes, m.nodeParents = childNodes, nodeParents
	m.changed()
}

/*
Contract clears the JustRefined and JustCoarsened marks left by the last
refinement pass and drops trailing arena holes. It reports whether any mark
was cleared.
*/
func (m *Mesh) Contract() (changed bool) {
	for _, e := range m.elems {
		if e == nil {
			continue
		}
		if e.RefinementFlag == elem.JustRefined || e.RefinementFlag == elem.JustCoarsened {
			e.RefinementFlag = elem.DoNothing
			changed = true
		}
		if e.PRefinementFlag == elem.JustRefined || e.PRefinementFlag == elem.JustCoarsened {
			e.PRefinementFlag = elem.DoNothing
			changed = true
		}
	}
	m.TrimArenas()
	return
}

// PrepareForUse renumbers when allowed, then rebuilds neighbor links.
func (m *Mesh) PrepareForUse() {
	if m.AllowRenumbering {
		m.RenumberNodesAndElements()
	}
	m.FindNeighbors()
	m.changed()
}

// SubPointLocator returns a locator over the current active elements, rebuilt after any change.
func (m *Mesh) SubPointLocator() *PointLocator {
	if m.locator == nil || m.locator.stamp != m.stamp {
		m.locator = NewPointLocator(m)
	}
	return m.locator
}

// AddElemInteger registers a named extra integer on every element and returns its index.
func (m *Mesh) AddElemInteger(name string) int {
	if i, ok := m.ElemIntegerIndex(name); ok {
		return i
	}
	m.elemIntegerNames = append(m.elemIntegerNames, name)
	for _, e := range m.elems {
		if e != nil {
			e.AddExtraIntegers(len(m.elemIntegerNames))
		}
	}
	return len(m.elemIntegerNames) - 1
}

func (m *Mesh) ElemIntegerIndex(name string) (int, bool) {
	i := slices.Index(m.elemIntegerNames, name)
	return i, i >= 0
}

func (m *Mesh) ElemIntegerNames() []string { return m.elemIntegerNames }

func (m *Mesh) PrintStatistics() {
	fmt.Printf("Mesh Statistics:\n")
	fmt.Printf("  Dimension: %d\n", m.Dim)
	fmt.Printf("  Nodes: %d (max id %d)\n", m.NNodes(), m.MaxNodeID())
	fmt.Printf("  Elements: %d (max id %d), active: %d\n", m.NElem(), m.MaxElemID(), m.NActiveElem())
	fmt.Printf("  Levels: %d\n", m.NLevels())

	typeCounts := make(map[elem.ElemType]int)
	for _, e := range m.ActiveElements() {
		typeCounts[e.Type]++
	}
	var ets []elem.ElemType
	for et := range typeCounts {
		ets = append(ets, et)
	}
	sort.Slice(ets, func(i, j int) bool { return ets[i] < ets[j] })
	fmt.Printf("  Active element types:\n")
	for _, et := range ets {
		fmt.Printf("    %s: %d\n", et, typeCounts[et])
	}

	boundarySides := 0
	for _, e := range m.ActiveElements() {
		for _, nb := range e.NeighborIDs {
			if nb == types.InvalidID {
				boundarySides++
			}
		}
	}
	fmt.Printf("  Boundary sides: %d\n", boundarySides)
	fmt.Printf("  Boundary conditions: %d\n", m.Boundary.NBoundaryConds())
}
