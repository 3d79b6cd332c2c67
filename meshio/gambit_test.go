package meshio

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/mesh"
	"github.com/mfkiwl/libmesh/types"
)

func elemsetSquare(t *testing.T) *mesh.Mesh {
	m := mesh.BuildSquare(5, 5, -1, 1, -1, 1, elem.Quad4)
	m.AllowRenumbering = false
	m.AddElemsetCode(1, []mesh.ElemsetID{1})
	m.AddElemsetCode(2, []mesh.ElemsetID{2})
	m.AddElemsetCode(3, []mesh.ElemsetID{1, 2})
	idx, ok := m.ElemIntegerIndex(mesh.ElemsetCodeName)
	require.True(t, ok)
	for id, code := range map[types.DofID]types.DofID{3: 3, 8: 1, 14: 1, 24: 3, 9: 2, 15: 2} {
		m.Elem(id).SetExtraInteger(idx, code)
	}
	return m
}

func elemsetVariables() (vars []ElemsetVariable) {
	set1 := []types.DofID{3, 8, 14, 24}
	set2 := []types.DofID{3, 9, 15, 24}
	fill := func(name string, val float64, sets []mesh.ElemsetID) {
		v := ElemsetVariable{Name: name, Elemsets: sets, Values: make(map[ElemsetKey]float64)}
		for _, set := range sets {
			members := set1
			if set == 2 {
				members = set2
			}
			for _, id := range members {
				v.Values[ElemsetKey{id, set}] = val
			}
		}
		vars = append(vars, v)
	}
	fill("var1", 1, []mesh.ElemsetID{1})
	fill("var2", 2, []mesh.ElemsetID{2})
	fill("var3", 3, []mesh.ElemsetID{1, 2})
	return
}

func TestElemsetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	meshFile, dataFile := filepath.Join(dir, "elemsets.neu"), filepath.Join(dir, "elemsets.yaml")
	m := elemsetSquare(t)
	vars := elemsetVariables()
	require.Len(t, vars[2].Values, 8)
	require.NoError(t, WriteGambit(m, meshFile))
	require.NoError(t, WriteElemsetData(dataFile, vars))

	read, err := ReadGambit(meshFile, false)
	require.NoError(t, err)
	assert.Equal(t, 25, read.NElem())
	assert.Equal(t, 36, read.NNodes())
	assert.Equal(t, 20, read.Boundary.NBoundaryConds())
	assert.Equal(t, m.Boundary.BuildSideList(), read.Boundary.BuildSideList())

	// Codes come back in lexicographic order of the set combinations
	assert.Equal(t, types.DofID(0), read.GetElemsetCode([]mesh.ElemsetID{1}))
	assert.Equal(t, types.DofID(1), read.GetElemsetCode([]mesh.ElemsetID{1, 2}))
	assert.Equal(t, types.DofID(2), read.GetElemsetCode([]mesh.ElemsetID{2}))

	idx, ok := read.ElemIntegerIndex(mesh.ElemsetCodeName)
	require.True(t, ok)
	pl := read.SubPointLocator()
	for _, tc := range []struct {
		x, y float64
		code types.DofID
	}{
		{0.4, -0.4, 0}, {0.8, 0, 0},
		{0.4, -0.8, 1}, {0.8, 0.8, 1},
		{0.8, -0.4, 2}, {-0.8, 0.4, 2},
	} {
		e := pl.Locate(elem.Point{X: tc.x, Y: tc.y})
		require.NotNil(t, e)
		assert.Equal(t, tc.code, e.GetExtraInteger(idx), "element at (%g,%g)", tc.x, tc.y)
	}
	assert.Equal(t, types.InvalidID, read.Elem(0).GetExtraInteger(idx))

	readVars, err := ReadElemsetData(dataFile)
	require.NoError(t, err)
	assert.Equal(t, vars, readVars)

	indices := ElemsetDataIndices(read)
	assert.Len(t, indices, 8)
	for i, id := range []types.DofID{3, 8, 14, 24} {
		assert.Equal(t, i, indices[ElemsetKey{id, 1}])
	}
	for i, id := range []types.DofID{3, 9, 15, 24} {
		assert.Equal(t, i, indices[ElemsetKey{id, 2}])
	}
}

func TestWriteElemsetDataRejectsForeignSet(t *testing.T) {
	v := ElemsetVariable{Name: "bad", Elemsets: []mesh.ElemsetID{1},
		Values: map[ElemsetKey]float64{{Elem: 0, Set: 2}: 1}}
	assert.Error(t, WriteElemsetData(filepath.Join(t.TempDir(), "bad.yaml"), []ElemsetVariable{v}))
}

func TestGambitRoundTripSolids(t *testing.T) {
	for _, et := range []elem.ElemType{elem.Hex8, elem.Tet4, elem.Prism6, elem.Pyramid5} {
		t.Run(et.String(), func(t *testing.T) {
			m := mesh.BuildCube(2, 1, 1, 0, 2, 0, 1, 0, 1, et)
			m.Boundary.Names[2] = "Dirichlet-outlet"
			m.Boundary.AddNode(0, 7)
			for _, e := range m.ActiveElements() {
				if e.Centroid().X > 1 {
					e.SubdomainID = 4
				}
			}
			file := filepath.Join(t.TempDir(), "cube.neu")
			require.NoError(t, WriteGambit(m, file))
			read, err := ReadGambit(file, true)
			require.NoError(t, err)

			assert.Equal(t, m.NElem(), read.NElem())
			assert.Equal(t, m.NNodes(), read.NNodes())
			assert.Equal(t, m.Boundary.BuildSideList(), read.Boundary.BuildSideList())
			assert.Equal(t, []types.BoundaryID{7}, read.Boundary.NodeBoundaryIDs(0))
			assert.Equal(t, types.BCTAG("Dirichlet-outlet"), read.Boundary.Names[2])
			assert.NotContains(t, read.Boundary.Names, types.BoundaryID(0))
			vol := 0.
			for _, e := range read.ActiveElements() {
				assert.False(t, e.IsFlipped())
				assert.Equal(t, m.Elem(e.ID()).SubdomainID, e.SubdomainID)
				vol += e.Volume()
			}
			assert.InDelta(t, 2., vol, 1.e-12)
			_, ok := read.ElemIntegerIndex(mesh.ElemsetCodeName)
			assert.False(t, ok)
		})
	}
}

func TestDecodeGambit(t *testing.T) {
	// Two triangles, the second one's connectivity continued on the next line
	src := `        CONTROL INFO 2.4.6
** GAMBIT NEUTRAL FILE
unit square
PROGRAM:                Gambit     VERSION:  2.4.6

     NUMNP     NELEM     NGRPS    NBSETS     NDFCD     NDFVL
         4         2         1         1         2         2
ENDOFSECTION
   NODAL COORDINATES 2.4.6
         1   0.0   0.0
         2   1.0   0.0
         3   1.0   1.0
         4   0.0   1.0
ENDOFSECTION
      ELEMENTS/CELLS 2.4.6
       1  3  3        1       2       3
       2  3  3        1       3
       4
ENDOFSECTION
       ELEMENT GROUP 2.4.6
GROUP:          2 ELEMENTS:          2 MATERIAL:          2 NFLAGS:          1
                           fluid
       0
       1       2
ENDOFSECTION
 BOUNDARY CONDITIONS 2.4.6
                            wall       1       2       0       6
         1    3    1
         2    3    3
ENDOFSECTION
`
	m, err := DecodeGambit(strings.NewReader(src))
	require.NoError(t, err)
	m.PrepareForUse()
	require.Equal(t, 2, m.NElem())
	assert.Equal(t, elem.Tri3, m.Elem(1).Type)
	assert.Equal(t, types.SubdomainID(2), m.Elem(1).SubdomainID)
	assert.Equal(t, types.BCTAG("wall"), m.Boundary.Names[6])
	assert.Equal(t, []mesh.BCTriple{{Elem: 0, Side: 0, ID: 6}, {Elem: 1, Side: 2, ID: 6}}, m.Boundary.BuildSideList())
	assert.InDelta(t, 1., m.Elem(0).Volume()+m.Elem(1).Volume(), 1.e-14)
	assert.Equal(t, types.DofID(1), m.Elem(0).Neighbor(2))

	_, err = DecodeGambit(strings.NewReader(strings.Replace(src, "1  3  3        1       2       3", "1  9  3        1       2       3", 1)))
	assert.ErrorContains(t, err, "unknown Gambit element type 9")
	_, err = DecodeGambit(strings.NewReader(src[:strings.Index(src, "   NODAL")]))
	assert.Error(t, err)
}
