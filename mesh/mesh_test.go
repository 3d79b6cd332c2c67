package mesh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/types"
)

// boundarySides counts active sides with no neighbor.
func boundarySides(m *Mesh) (n int) {
	for _, e := range m.ActiveElements() {
		for _, nb := range e.NeighborIDs {
			if nb == types.InvalidID {
				n++
			}
		}
	}
	return
}

func totalVolume(m *Mesh) (v float64) {
	for _, e := range m.ActiveElements() {
		v += e.Volume()
	}
	return
}

// checkNeighborsSymmetric asserts every neighbor link between same level elements points back.
func checkNeighborsSymmetric(t *testing.T, m *Mesh) {
	for _, e := range m.Elements() {
		for s, nb := range e.NeighborIDs {
			if nb == types.InvalidID {
				continue
			}
			f := m.Elem(nb)
			if f.Level != e.Level {
				continue
			}
			assert.Contains(t, f.NeighborIDs, e.ID(), "element %d side %d", e.ID(), s)
		}
	}
}

func TestGenerators(t *testing.T) {
	tests := []struct {
		name                string
		build               func() *Mesh
		nElem, nNodes, nBCs int
		volume              float64
	}{
		{"line", func() *Mesh { return BuildLine(5, 0, 2) }, 5, 6, 2, 2},
		{"quad4", func() *Mesh { return BuildSquare(3, 2, 0, 3, 0, 1, elem.Quad4) }, 6, 12, 10, 3},
		{"tri3", func() *Mesh { return BuildSquare(3, 2, 0, 3, 0, 1, elem.Tri3) }, 12, 12, 10, 3},
		{"hex8", func() *Mesh { return BuildCube(2, 2, 2, 0, 1, 0, 1, 0, 1, elem.Hex8) }, 8, 27, 24, 1},
		{"tet4", func() *Mesh { return BuildCube(2, 2, 2, 0, 1, 0, 1, 0, 1, elem.Tet4) }, 48, 27, 48, 1},
		{"prism6", func() *Mesh { return BuildCube(2, 2, 2, 0, 1, 0, 1, 0, 1, elem.Prism6) }, 16, 27, 32, 1},
		{"pyramid5", func() *Mesh { return BuildCube(2, 2, 2, 0, 1, 0, 1, 0, 1, elem.Pyramid5) }, 48, 35, 24, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.build()
			assert.Equal(t, tt.nElem, m.NElem())
			assert.Equal(t, tt.nElem, m.NActiveElem())
			assert.Equal(t, tt.nNodes, m.NNodes())
			assert.Equal(t, tt.nBCs, m.Boundary.NBoundaryConds())
			// Conforming meshes leave exactly the labelled sides unmatched
			assert.Equal(t, tt.nBCs, boundarySides(m))
			assert.InDelta(t, tt.volume, totalVolume(m), 1.e-12)
			for _, e := range m.Elements() {
				assert.False(t, e.IsFlipped(), "element %d", e.ID())
			}
			checkNeighborsSymmetric(t, m)
		})
	}
}

func TestSquareBoundaryIDs(t *testing.T) {
	m := BuildSquare(2, 2, 0, 1, 0, 1, elem.Quad4)
	assert.Equal(t, []types.BoundaryID{0, 1, 2, 3}, m.Boundary.BoundaryIDSet())
	// Element 1 is the bottom right cell
	e := m.Elem(1)
	assert.Equal(t, []types.BoundaryID{0}, m.Boundary.BoundaryIDs(e, 0))
	assert.Equal(t, []types.BoundaryID{1}, m.Boundary.BoundaryIDs(e, 1))
	assert.Empty(t, m.Boundary.BoundaryIDs(e, 2))
	assert.Equal(t, types.DofID(3), e.NeighborIDs[2])
	assert.Equal(t, types.DofID(0), e.NeighborIDs[3])

	left := m.Boundary.ActiveBoundaryNodes(3)
	assert.Len(t, left, 3)
	for id := range left {
		assert.InDelta(t, 0, m.Node(id).X, 1.e-14)
	}
}

func TestBoundaryInfo(t *testing.T) {
	m := BuildSquare(1, 1, 0, 1, 0, 1, elem.Quad4)
	bi := m.Boundary
	require.Equal(t, 4, bi.NBoundaryConds())
	bi.Add(0, 0, 0)
	assert.Equal(t, 4, bi.NBoundaryConds(), "duplicates are ignored")
	bi.Add(0, 0, 7)
	assert.Equal(t, []types.BoundaryID{0, 7}, bi.BoundaryIDs(m.Elem(0), 0))
	assert.True(t, bi.HasBoundaryID(m.Elem(0), 0, 7))
	bi.Remove(0, 0, 7)
	assert.False(t, bi.HasBoundaryID(m.Elem(0), 0, 7))
	assert.Equal(t, []BCTriple{{0, 0, 0}, {0, 1, 1}, {0, 2, 2}, {0, 3, 3}}, bi.BuildSideList())

	bi.AddNode(2, 9)
	bi.AddNode(2, 9)
	assert.Equal(t, []types.BoundaryID{9}, bi.NodeBoundaryIDs(2))
	assert.Equal(t, map[types.DofID]bool{2: true}, bi.ActiveBoundaryNodes(9))

	assert.Panics(t, func() { bi.Add(0, 0, types.InvalidBoundaryID) })
	assert.Panics(t, func() { bi.Add(0, 4, 1) })
	assert.Panics(t, func() { bi.Add(3, 0, 1) })
}

func TestAllTriQuads(t *testing.T) {
	m := BuildSquare(2, 1, 0, 2, 0, 1, elem.Quad4)
	require.Equal(t, 2, m.NElem())
	require.Equal(t, 6, m.Boundary.NBoundaryConds())
	AllTri(m)
	assert.Equal(t, 4, m.NElem())
	assert.Equal(t, 6, m.Boundary.NBoundaryConds())
	assert.Equal(t, 6, boundarySides(m))
	assert.Equal(t, 4, m.MaxElemID())
	for _, e := range m.Elements() {
		assert.Equal(t, elem.Tri3, e.Type)
		assert.False(t, e.IsFlipped())
	}
	assert.InDelta(t, 2, totalVolume(m), 1.e-14)
	assert.Equal(t, []types.BoundaryID{0, 1, 2, 3}, m.Boundary.BoundaryIDSet())
}

func TestAllTriNoOpOnTriangles(t *testing.T) {
	m := BuildSquare(2, 1, 0, 2, 0, 1, elem.Tri3)
	before := m.Boundary.BuildSideList()
	require.Equal(t, 4, m.NElem())
	require.Len(t, before, 6)
	AllTri(m)
	assert.Equal(t, 4, m.NElem())
	assert.Equal(t, before, m.Boundary.BuildSideList())
}

func TestAllTriSolids(t *testing.T) {
	tests := []struct {
		et         elem.ElemType
		nTet, nBCs int
	}{
		{elem.Hex8, 6, 12},
		{elem.Prism6, 6, 12},
		{elem.Pyramid5, 12, 12},
	}
	for _, tt := range tests {
		t.Run(tt.et.String(), func(t *testing.T) {
			m := BuildCube(1, 1, 1, 0, 1, 0, 1, 0, 1, tt.et)
			m.SetElemElemsets(m.Elem(0), []ElemsetID{4})
			m.Elem(0).SubdomainID = 3
			AllTri(m)
			assert.Equal(t, tt.nTet, m.NElem())
			assert.Equal(t, tt.nBCs, m.Boundary.NBoundaryConds())
			assert.Equal(t, tt.nBCs, boundarySides(m))
			assert.InDelta(t, 1, totalVolume(m), 1.e-12)
			sub3 := 0
			for _, e := range m.Elements() {
				assert.Equal(t, elem.Tet4, e.Type)
				assert.False(t, e.IsFlipped(), "tet %d", e.ID())
				if e.SubdomainID == 3 {
					sub3++
					assert.Equal(t, []ElemsetID{4}, m.ElemElemsets(e))
				}
			}
			assert.Equal(t, tt.nTet/len(BuildCube(1, 1, 1, 0, 1, 0, 1, 0, 1, tt.et).Elements()), sub3)
			// Every face of the cube keeps its label
			for bid := types.BoundaryID(0); bid < 6; bid++ {
				assert.Len(t, m.Boundary.ActiveBoundaryNodes(bid), 4, "boundary %d", bid)
			}
		})
	}
}

func TestAllTriRefusesRefinedMesh(t *testing.T) {
	m := BuildSquare(1, 1, 0, 1, 0, 1, elem.Quad4)
	child := newElemFrom(elem.Quad4, m.Elem(0).Nodes, []int{0, 1, 2, 3})
	child.ParentID = 0
	m.AddElem(child)
	m.Elem(0).ChildIDs = []types.DofID{child.ID()}
	assert.Panics(t, func() { AllTri(m) })
}

func TestRenumberNodesAndElements(t *testing.T) {
	m := BuildSquare(2, 2, 0, 1, 0, 1, elem.Quad4)
	m.DeleteElem(m.Elem(0))
	assert.Equal(t, 4, m.MaxElemID())
	assert.Nil(t, m.QueryElem(0))
	assert.Equal(t, 1, m.DeleteUnusedNodes())
	assert.Equal(t, 6, m.Boundary.NBoundaryConds())

	m.PrepareForUse()
	assert.Equal(t, 3, m.MaxElemID())
	assert.Equal(t, 8, m.MaxNodeID())
	for i, e := range m.Elements() {
		assert.Equal(t, types.DofID(i), e.ID())
	}
	for i, n := range m.Nodes() {
		assert.Equal(t, types.DofID(i), n.ID())
	}
	assert.Equal(t, 6, m.Boundary.NBoundaryConds())
	assert.Equal(t, 8, boundarySides(m))
	checkNeighborsSymmetric(t, m)
}

func TestNodeFromParents(t *testing.T) {
	m := BuildSquare(1, 1, 0, 1, 0, 1, elem.Quad4)
	a, b := m.Node(0), m.Node(1)
	n, created := m.NodeFromParents([]*elem.Node{a, b})
	require.True(t, created)
	assert.InDelta(t, .5, n.X, 1.e-15)
	again, created := m.NodeFromParents([]*elem.Node{b, a})
	assert.False(t, created)
	assert.Same(t, n, again)
	parents, ok := m.NodeParents(n.ID())
	assert.True(t, ok)
	assert.Equal(t, []types.DofID{0, 1}, parents)
	same, created := m.NodeFromParents([]*elem.Node{a})
	assert.False(t, created)
	assert.Same(t, a, same)

	assert.Equal(t, 1, m.DeleteUnusedNodes())
	_, ok = m.NodeParents(n.ID())
	assert.False(t, ok)
	m.TrimArenas()
	assert.Equal(t, 4, m.MaxNodeID())
}

func TestElemsets(t *testing.T) {
	m := BuildSquare(2, 1, 0, 2, 0, 1, elem.Quad4)
	m.SetElemElemsets(m.Elem(0), []ElemsetID{2, 1})
	m.SetElemElemsets(m.Elem(1), []ElemsetID{2})
	idx, ok := m.ElemIntegerIndex(ElemsetCodeName)
	require.True(t, ok)
	assert.Equal(t, types.DofID(0), m.Elem(0).GetExtraInteger(idx))
	assert.Equal(t, types.DofID(1), m.Elem(1).GetExtraInteger(idx))
	assert.Equal(t, []ElemsetID{1, 2}, m.ElemElemsets(m.Elem(0)))
	assert.Equal(t, []types.DofID{0, 1}, m.ElemsetCodes())
	assert.Equal(t, []ElemsetID{1, 2}, m.ElemsetIDs())
	assert.Equal(t, 2, m.NElemsets())
	assert.Equal(t, types.InvalidID, m.GetElemsetCode([]ElemsetID{3}))
	assert.Nil(t, m.GetElemsets(types.InvalidID))
	assert.Panics(t, func() { m.GetElemsets(9) })
	assert.Panics(t, func() { m.AddElemsetCode(0, []ElemsetID{3}) })
	assert.Panics(t, func() { m.AddElemsetCode(5, []ElemsetID{1, 2}) })

	// Elements added later get the integer too
	e := m.AddElem(newElemFrom(elem.Quad4, m.Elem(0).Nodes, []int{0, 1, 2, 3}))
	assert.Equal(t, 1, e.NExtraIntegers())
	assert.Nil(t, m.ElemElemsets(e))

	codes, ordered := CanonicalElemsetCodes([][]ElemsetID{{2}, {2, 1}, {1}, {}, {1, 2}})
	assert.Equal(t, [][]ElemsetID{{1}, {1, 2}, {2}}, ordered)
	assert.Equal(t, types.DofID(0), codes[elemsetKey([]ElemsetID{1})])
	assert.Equal(t, types.DofID(1), codes[elemsetKey([]ElemsetID{1, 2})])
	assert.Equal(t, types.DofID(2), codes[elemsetKey([]ElemsetID{2})])
}

func TestPointLocator(t *testing.T) {
	m := BuildSquare(4, 4, 0, 1, 0, 1, elem.Quad4)
	pl := m.SubPointLocator()
	assert.Same(t, pl, m.SubPointLocator())

	e := pl.Locate(elem.Point{X: .3, Y: .6})
	require.NotNil(t, e)
	assert.Equal(t, types.DofID(9), e.ID())
	assert.Nil(t, pl.Locate(elem.Point{X: 1.5, Y: .5}))

	corner := m.FindPointNeighbors(elem.Point{X: .5, Y: .5})
	require.Len(t, corner, 4)
	ids := []types.DofID{corner[0].ID(), corner[1].ID(), corner[2].ID(), corner[3].ID()}
	assert.Equal(t, []types.DofID{5, 6, 9, 10}, ids)
	assert.Len(t, m.FindPointNeighbors(elem.Point{X: .5, Y: 0}), 2)
	assert.Len(t, m.FindPointNeighbors(elem.Point{}), 1)

	m.AddPoint(elem.Point{X: 2})
	assert.NotSame(t, pl, m.SubPointLocator())

	cube := BuildCube(3, 3, 3, -1, 1, -1, 1, -1, 1, elem.Tet4)
	for _, p := range []elem.Point{{X: .1, Y: .2, Z: .3}, {X: -.9, Y: .95, Z: 0}, {X: .33, Y: -.33, Z: .5}} {
		found := cube.SubPointLocator().Locate(p)
		require.NotNil(t, found, "point %v", p)
		assert.True(t, found.ContainsPoint(p, 1.e-8))
	}
}

func TestPointLocatorLine(t *testing.T) {
	m := BuildLine(10, 0, 1)
	e := m.SubPointLocator().Locate(elem.Point{X: .55})
	require.NotNil(t, e)
	assert.Equal(t, types.DofID(5), e.ID())
	assert.Len(t, m.FindPointNeighbors(elem.Point{X: .5}), 2)
	assert.True(t, math.Abs(e.Volume()-.1) < 1.e-14)
}
