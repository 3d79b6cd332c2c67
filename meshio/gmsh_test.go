package meshio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/types"
)

// Two triangles on the unit square, split along the 1-3 diagonal
const gmshSquare = `$MeshFormat
2.2 0 8
$EndMeshFormat
$PhysicalNames
3
1 1 "bottom"
1 2 "top"
2 7 "domain"
$EndPhysicalNames
$Nodes
4
1 0 0 0
2 1 0 0
3 1 1 0
4 0 1 0
$EndNodes
$Comments
anything here is skipped
$EndComments
$Elements
5
1 15 2 0 1 1
2 1 2 1 1 1 2
3 1 2 2 3 3 4
4 2 2 7 1 1 2 3
5 2 2 7 1 1 3 4
$EndElements
`

func TestDecodeGmsh(t *testing.T) {
	m, err := DecodeGmsh(strings.NewReader(gmshSquare))
	require.NoError(t, err)
	m.AllowRenumbering = false
	m.PrepareForUse()
	assert.Equal(t, 2, m.NElem())
	assert.Equal(t, 4, m.NNodes())
	for _, e := range m.Elements() {
		assert.Equal(t, elem.Tri3, e.Type)
		assert.Equal(t, types.SubdomainID(7), e.SubdomainID)
	}
	assert.Equal(t, elem.Point{X: 1, Y: 1}, m.Node(2).Point)

	ids := m.Boundary.BoundaryIDSet()
	assert.Equal(t, []types.BoundaryID{1, 2}, ids)
	assert.Equal(t, types.NewBCTAG("bottom"), m.Boundary.Names[1])
	assert.Equal(t, types.NewBCTAG("top"), m.Boundary.Names[2])
	// Edge 1-2 is side 0 of the first triangle, edge 3-4 side 1 of the second
	assert.Equal(t, []types.BoundaryID{1}, m.Boundary.RawBoundaryIDs(0, 0))
	assert.Equal(t, []types.BoundaryID{2}, m.Boundary.RawBoundaryIDs(1, 1))
	assert.Empty(t, m.Boundary.RawBoundaryIDs(0, 1))
}

func TestReadGmsh(t *testing.T) {
	file := filepath.Join(t.TempDir(), "square.msh")
	require.NoError(t, os.WriteFile(file, []byte(gmshSquare), 0644))
	m, err := ReadGmsh(file, false)
	require.NoError(t, err)
	assert.Equal(t, 2, m.NActiveElem())

	_, err = ReadGmsh(filepath.Join(t.TempDir(), "missing.msh"), false)
	assert.Error(t, err)
}

func TestDecodeGmshErrors(t *testing.T) {
	for name, input := range map[string]string{
		"binary":       strings.Replace(gmshSquare, "2.2 0 8", "2.2 1 8", 1),
		"version 4":    strings.Replace(gmshSquare, "2.2 0 8", "4.1 0 8", 1),
		"unknown node": strings.Replace(gmshSquare, "5 2 2 7 1 1 3 4", "5 2 2 7 1 1 3 9", 1),
		"node count":   strings.Replace(gmshSquare, "5 2 2 7 1 1 3 4", "5 2 2 7 1 1 3", 1),
		"second order": strings.Replace(gmshSquare, "5 2 2 7 1 1 3 4", "5 9 2 7 1 1 3 4 1 2 3", 1),
		"no format":    gmshSquare[strings.Index(gmshSquare, "$PhysicalNames"):],
		"truncated":    gmshSquare[:strings.Index(gmshSquare, "$EndNodes")],
		"stray edge":   strings.Replace(gmshSquare, "2 1 2 1 1 1 2", "2 1 2 1 1 1 3", 1),
	} {
		_, err := DecodeGmsh(strings.NewReader(input))
		assert.Error(t, err, name)
	}
}
