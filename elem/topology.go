package elem

import (
	"fmt"
	"slices"
)

/*
Topology is the static description of one element type. Tables are filled
once at package init and never mutated afterwards.
*/
type Topology struct {
	Type         ElemType
	Dim          int
	NNodes       int
	SideNodes    [][]int
	SideTypes    []ElemType
	EdgeNodes    [][2]int
	MasterPoints []Point
	Embedding    Embedding
	onReference  func(p Point, eps float64) bool

	edgeSides       [][]int
	nodeEdges       [][]int
	childOnSide     [][]bool
	childSideParent [][]int
}

/*
Embedding describes uniform refinement of one element. Each entry of Specs
is the set of parent vertices whose average places a node, the first
NNodes specs being the parent's own vertices. Children list spec indices in
the child's local node order.
*/
type Embedding struct {
	Specs      [][]int
	Children   [][]int
	ChildTypes []ElemType
}

func (tp *Topology) NSides() int    { return len(tp.SideNodes) }
func (tp *Topology) NEdges() int    { return len(tp.EdgeNodes) }
func (tp *Topology) NChildren() int { return len(tp.Embedding.Children) }

var topologies [InvalidElem]*Topology

// GetTopology panics for InvalidElem and for types without a descriptor.
func GetTopology(et ElemType) *Topology {
	if !et.Valid() || topologies[et] == nil {
		panic(fmt.Errorf("no topology for element type %v", et))
	}
	return topologies[et]
}

func (tp *Topology) checkSide(s int) {
	if s < 0 || s >= tp.NSides() {
		panic(fmt.Errorf("side %d out of range [0,%d) for %v", s, tp.NSides(), tp.Type))
	}
}

func (tp *Topology) checkEdge(e int) {
	if e < 0 || e >= tp.NEdges() {
		panic(fmt.Errorf("edge %d out of range [0,%d) for %v", e, tp.NEdges(), tp.Type))
	}
}

func (tp *Topology) checkChild(c int) {
	if c < 0 || c >= tp.NChildren() {
		panic(fmt.Errorf("child %d out of range [0,%d) for %v", c, tp.NChildren(), tp.Type))
	}
}

func (tp *Topology) LocalSideNode(side, k int) int {
	tp.checkSide(side)
	if k < 0 || k >= len(tp.SideNodes[side]) {
		panic(fmt.Errorf("side node %d out of range [0,%d) on side %d of %v",
			k, len(tp.SideNodes[side]), side, tp.Type))
	}
	return tp.SideNodes[side][k]
}

func (tp *Topology) LocalEdgeNode(edge, k int) int {
	tp.checkEdge(edge)
	if k < 0 || k > 1 {
		panic(fmt.Errorf("edge node %d out of range [0,2) on edge %d of %v", k, edge, tp.Type))
	}
	return tp.EdgeNodes[edge][k]
}

func (tp *Topology) IsNodeOnSide(n, s int) bool {
	tp.checkSide(s)
	return slices.Contains(tp.SideNodes[s], n)
}

func (tp *Topology) IsNodeOnEdge(n, e int) bool {
	tp.checkEdge(e)
	return tp.EdgeNodes[e][0] == n || tp.EdgeNodes[e][1] == n
}

func (tp *Topology) IsEdgeOnSide(e, s int) bool {
	tp.checkEdge(e)
	tp.checkSide(s)
	return slices.Contains(tp.edgeSides[e], s)
}

// SidesOnEdge lists the sides that contain edge e.
func (tp *Topology) SidesOnEdge(e int) []int {
	tp.checkEdge(e)
	return tp.edgeSides[e]
}

// EdgesAdjacentToNode lists the edges that touch vertex n.
func (tp *Topology) EdgesAdjacentToNode(n int) []int {
	if n < 0 || n >= tp.NNodes {
		panic(fmt.Errorf("node %d out of range [0,%d) for %v", n, tp.NNodes, tp.Type))
	}
	return tp.nodeEdges[n]
}

/*
IsChildOnSide reports whether child c owns a full face lying in parent side
s. For corner children this is the same as asking whether the child's
parent vertex belongs to the side.
*/
func (tp *Topology) IsChildOnSide(c, s int) bool {
	tp.checkChild(c)
	tp.checkSide(s)
	return tp.childOnSide[c][s]
}

// ChildSideParent maps side cs of child c to the parent side containing it, or -1.
func (tp *Topology) ChildSideParent(c, cs int) int {
	tp.checkChild(c)
	return tp.childSideParent[c][cs]
}

// OnReferenceElement tests master coordinates against the element's faces widened by eps.
func (tp *Topology) OnReferenceElement(p Point, eps float64) bool {
	return tp.onReference(p, eps)
}

func mp(x, y, z float64) Point { return Point{X: x, Y: y, Z: z} }

func init() {
	nodeElem := &Topology{
		Type: NodeElem, Dim: 0, NNodes: 1,
		MasterPoints: []Point{mp(0, 0, 0)},
		onReference:  func(p Point, eps float64) bool { return true },
	}
	edge2 := &Topology{
		Type: Edge2, Dim: 1, NNodes: 2,
		SideNodes:    [][]int{{0}, {1}},
		SideTypes:    []ElemType{NodeElem, NodeElem},
		MasterPoints: []Point{mp(-1, 0, 0), mp(1, 0, 0)},
		Embedding: Embedding{
			Specs:      [][]int{{0}, {1}, {0, 1}},
			Children:   [][]int{{0, 2}, {2, 1}},
			ChildTypes: []ElemType{Edge2, Edge2},
		},
		onReference: func(p Point, eps float64) bool {
			return p.X >= -1-eps && p.X <= 1+eps
		},
	}
	tri3 := &Topology{
		Type: Tri3, Dim: 2, NNodes: 3,
		SideNodes:    [][]int{{0, 1}, {1, 2}, {2, 0}},
		SideTypes:    []ElemType{Edge2, Edge2, Edge2},
		EdgeNodes:    [][2]int{{0, 1}, {1, 2}, {2, 0}},
		MasterPoints: []Point{mp(0, 0, 0), mp(1, 0, 0), mp(0, 1, 0)},
		Embedding: Embedding{
			// 3:m01 4:m12 5:m20
			Specs:      [][]int{{0}, {1}, {2}, {0, 1}, {1, 2}, {0, 2}},
			Children:   [][]int{{0, 3, 5}, {3, 1, 4}, {5, 4, 2}, {3, 4, 5}},
			ChildTypes: []ElemType{Tri3, Tri3, Tri3, Tri3},
		},
		onReference: func(p Point, eps float64) bool {
			return p.X >= -eps && p.Y >= -eps && p.X+p.Y <= 1+eps
		},
	}
	quad4 := &Topology{
		Type: Quad4, Dim: 2, NNodes: 4,
		SideNodes: [][]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}},
		SideTypes: []ElemType{Edge2, Edge2, Edge2, Edge2},
		EdgeNodes: [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}},
		MasterPoints: []Point{
			mp(-1, -1, 0), mp(1, -1, 0), mp(1, 1, 0), mp(-1, 1, 0)},
		Embedding: Embedding{
			// 4:m01 5:m12 6:m23 7:m30 8:center
			Specs: [][]int{{0}, {1}, {2}, {3},
				{0, 1}, {1, 2}, {2, 3}, {0, 3}, {0, 1, 2, 3}},
			Children: [][]int{
				{0, 4, 8, 7}, {4, 1, 5, 8}, {8, 5, 2, 6}, {7, 8, 6, 3}},
			ChildTypes: []ElemType{Quad4, Quad4, Quad4, Quad4},
		},
		onReference: func(p Point, eps float64) bool {
			return p.X >= -1-eps && p.X <= 1+eps && p.Y >= -1-eps && p.Y <= 1+eps
		},
	}
	tet4 := &Topology{
		Type: Tet4, Dim: 3, NNodes: 4,
		SideNodes: [][]int{{0, 2, 1}, {0, 1, 3}, {1, 2, 3}, {2, 0, 3}},
		SideTypes: []ElemType{Tri3, Tri3, Tri3, Tri3},
		EdgeNodes: [][2]int{{0, 1}, {1, 2}, {0, 2}, {0, 3}, {1, 3}, {2, 3}},
		MasterPoints: []Point{
			mp(0, 0, 0), mp(1, 0, 0), mp(0, 1, 0), mp(0, 0, 1)},
		Embedding: Embedding{
			// 4:m01 5:m12 6:m02 7:m03 8:m13 9:m23
			Specs: [][]int{{0}, {1}, {2}, {3},
				{0, 1}, {1, 2}, {0, 2}, {0, 3}, {1, 3}, {2, 3}},
			Children: [][]int{
				{0, 4, 6, 7}, {4, 1, 5, 8}, {6, 5, 2, 9}, {7, 8, 9, 3},
				// the octahedron split along the m02-m13 diagonal
				{6, 8, 4, 5}, {6, 8, 5, 9}, {6, 8, 9, 7}, {6, 8, 7, 4}},
			ChildTypes: []ElemType{Tet4, Tet4, Tet4, Tet4, Tet4, Tet4, Tet4, Tet4},
		},
		onReference: func(p Point, eps float64) bool {
			return p.X >= -eps && p.Y >= -eps && p.Z >= -eps && p.X+p.Y+p.Z <= 1+eps
		},
	}
	hex8 := &Topology{
		Type: Hex8, Dim: 3, NNodes: 8,
		SideNodes: [][]int{
			{0, 3, 2, 1}, {0, 1, 5, 4}, {1, 2, 6, 5},
			{2, 3, 7, 6}, {3, 0, 4, 7}, {4, 5, 6, 7}},
		SideTypes: []ElemType{Quad4, Quad4, Quad4, Quad4, Quad4, Quad4},
		EdgeNodes: [][2]int{
			{0, 1}, {1, 2}, {2, 3}, {0, 3}, {0, 4}, {1, 5},
			{2, 6}, {3, 7}, {4, 5}, {5, 6}, {6, 7}, {4, 7}},
		MasterPoints: []Point{
			mp(-1, -1, -1), mp(1, -1, -1), mp(1, 1, -1), mp(-1, 1, -1),
			mp(-1, -1, 1), mp(1, -1, 1), mp(1, 1, 1), mp(-1, 1, 1)},
		Embedding: hexEmbedding(),
		onReference: func(p Point, eps float64) bool {
			return p.X >= -1-eps && p.X <= 1+eps && p.Y >= -1-eps && p.Y <= 1+eps &&
				p.Z >= -1-eps && p.Z <= 1+eps
		},
	}
	prism6 := &Topology{
		Type: Prism6, Dim: 3, NNodes: 6,
		SideNodes: [][]int{
			{0, 2, 1}, {0, 1, 4, 3}, {1, 2, 5, 4}, {2, 0, 3, 5}, {3, 4, 5}},
		SideTypes: []ElemType{Tri3, Quad4, Quad4, Quad4, Tri3},
		EdgeNodes: [][2]int{
			{0, 1}, {1, 2}, {0, 2}, {0, 3}, {1, 4}, {2, 5}, {3, 4}, {4, 5}, {3, 5}},
		MasterPoints: []Point{
			mp(0, 0, -1), mp(1, 0, -1), mp(0, 1, -1),
			mp(0, 0, 1), mp(1, 0, 1), mp(0, 1, 1)},
		Embedding: Embedding{
			// 6:m01 7:m12 8:m02 9:m03 10:m14 11:m25 12:m34 13:m45 14:m35
			// 15:q0143 16:q1254 17:q2035
			Specs: [][]int{{0}, {1}, {2}, {3}, {4}, {5},
				{0, 1}, {1, 2}, {0, 2}, {0, 3}, {1, 4}, {2, 5}, {3, 4}, {4, 5}, {3, 5},
				{0, 1, 3, 4}, {1, 2, 4, 5}, {0, 2, 3, 5}},
			Children: [][]int{
				{0, 6, 8, 9, 15, 17}, {6, 1, 7, 15, 10, 16},
				{8, 7, 2, 17, 16, 11}, {6, 7, 8, 15, 16, 17},
				{9, 15, 17, 3, 12, 14}, {15, 10, 16, 12, 4, 13},
				{17, 16, 11, 14, 13, 5}, {15, 16, 17, 12, 13, 14}},
			ChildTypes: []ElemType{Prism6, Prism6, Prism6, Prism6, Prism6, Prism6, Prism6, Prism6},
		},
		onReference: func(p Point, eps float64) bool {
			return p.X >= -eps && p.Y >= -eps && p.X+p.Y <= 1+eps &&
				p.Z >= -1-eps && p.Z <= 1+eps
		},
	}
	pyramid5 := &Topology{
		Type: Pyramid5, Dim: 3, NNodes: 5,
		SideNodes: [][]int{
			{0, 1, 4}, {1, 2, 4}, {2, 3, 4}, {3, 0, 4}, {0, 3, 2, 1}},
		SideTypes: []ElemType{Tri3, Tri3, Tri3, Tri3, Quad4},
		EdgeNodes: [][2]int{
			{0, 1}, {1, 2}, {2, 3}, {0, 3}, {0, 4}, {1, 4}, {2, 4}, {3, 4}},
		MasterPoints: []Point{
			mp(-1, -1, 0), mp(1, -1, 0), mp(1, 1, 0), mp(-1, 1, 0), mp(0, 0, 1)},
		Embedding: Embedding{
			// 5:m01 6:m12 7:m23 8:m30 9:m04 10:m14 11:m24 12:m34 13:base center
			Specs: [][]int{{0}, {1}, {2}, {3}, {4},
				{0, 1}, {1, 2}, {2, 3}, {0, 3}, {0, 4}, {1, 4}, {2, 4}, {3, 4},
				{0, 1, 2, 3}},
			Children: [][]int{
				{0, 5, 13, 8, 9}, {5, 1, 6, 13, 10},
				{13, 6, 2, 7, 11}, {8, 13, 7, 3, 12},
				{9, 10, 11, 12, 4},
				// upside down pyramid below the apex child
				{9, 12, 11, 10, 13},
				{5, 9, 10, 13}, {6, 10, 11, 13}, {7, 11, 12, 13}, {8, 12, 9, 13}},
			ChildTypes: []ElemType{Pyramid5, Pyramid5, Pyramid5, Pyramid5, Pyramid5,
				Pyramid5, Tet4, Tet4, Tet4, Tet4},
		},
		onReference: func(p Point, eps float64) bool {
			xi, eta, zeta := p.X, p.Y, p.Z
			return -eta-1+zeta <= eps &&
				xi-1+zeta <= eps &&
				eta-1+zeta <= eps &&
				-xi-1+zeta <= eps &&
				zeta >= -eps
		},
	}
	for _, tp := range []*Topology{nodeElem, edge2, tri3, quad4, tet4, hex8, prism6, pyramid5} {
		topologies[tp.Type] = tp
	}
	triShell := *tri3
	triShell.Type = TriShell3
	topologies[TriShell3] = &triShell
	quadShell := *quad4
	quadShell.Type = QuadShell4
	topologies[QuadShell4] = &quadShell

	for _, tp := range topologies {
		tp.derive()
	}
}

// hexVertex gives the lattice position of each Hex8 vertex.
var hexVertex = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}

// hexEmbedding builds the 27 point lattice refinement of the hex; child c contains vertex c.
func hexEmbedding() (emb Embedding) {
	specIndex := make(map[[3]int]int)
	addSpec := func(g [3]int) int {
		if idx, ok := specIndex[g]; ok {
			return idx
		}
		var spec []int
		for v, hv := range hexVertex {
			match := true
			for d := 0; d < 3; d++ {
				if g[d] != 1 && g[d] != 2*hv[d] {
					match = false
				}
			}
			if match {
				spec = append(spec, v)
			}
		}
		specIndex[g] = len(emb.Specs)
		emb.Specs = append(emb.Specs, spec)
		return specIndex[g]
	}
	for _, hv := range hexVertex {
		addSpec([3]int{2 * hv[0], 2 * hv[1], 2 * hv[2]})
	}
	for _, off := range hexVertex {
		child := make([]int, 8)
		for n, hv := range hexVertex {
			child[n] = addSpec([3]int{off[0] + hv[0], off[1] + hv[1], off[2] + hv[2]})
		}
		emb.Children = append(emb.Children, child)
		emb.ChildTypes = append(emb.ChildTypes, Hex8)
	}
	return
}

func (tp *Topology) derive() {
	tp.edgeSides = make([][]int, tp.NEdges())
	for e, en := range tp.EdgeNodes {
		for s, sn := range tp.SideNodes {
			if slices.Contains(sn, en[0]) && slices.Contains(sn, en[1]) {
				tp.edgeSides[e] = append(tp.edgeSides[e], s)
			}
		}
	}
	tp.nodeEdges = make([][]int, tp.NNodes)
	for e, en := range tp.EdgeNodes {
		tp.nodeEdges[en[0]] = append(tp.nodeEdges[en[0]], e)
		tp.nodeEdges[en[1]] = append(tp.nodeEdges[en[1]], e)
	}
	emb := tp.Embedding
	tp.childOnSide = make([][]bool, len(emb.Children))
	tp.childSideParent = make([][]int, len(emb.Children))
	for c, child := range emb.Children {
		ctp := topologies[emb.ChildTypes[c]]
		tp.childOnSide[c] = make([]bool, tp.NSides())
		tp.childSideParent[c] = make([]int, len(ctp.SideNodes))
		for cs, csn := range ctp.SideNodes {
			tp.childSideParent[c][cs] = -1
			var verts []int
			for _, ln := range csn {
				verts = append(verts, emb.Specs[child[ln]]...)
			}
			for s, sn := range tp.SideNodes {
				inside := true
				for _, v := range verts {
					if !slices.Contains(sn, v) {
						inside = false
						break
					}
				}
				if inside {
					tp.childOnSide[c][s] = true
					tp.childSideParent[c][cs] = s
					break
				}
			}
		}
	}
}
