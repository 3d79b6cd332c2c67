package meshio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/mesh"
	"github.com/mfkiwl/libmesh/types"
)

// Gmsh 2.2 element type numbers of the first order elements
var gmshTypes = map[int]elem.ElemType{
	15: elem.NodeElem,
	1:  elem.Edge2,
	2:  elem.Tri3,
	3:  elem.Quad4,
	4:  elem.Tet4,
	5:  elem.Hex8,
	6:  elem.Prism6,
	7:  elem.Pyramid5,
}

type gmshElement struct {
	id       int
	et       elem.ElemType
	physical int
	nodes    []int
}

func ReadGmsh(filename string, allowRenumbering bool) (m *mesh.Mesh, err error) {
	var file *os.File
	if file, err = os.Open(filename); err != nil {
		return
	}
	defer file.Close()
	if m, err = DecodeGmsh(file); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	m.AllowRenumbering = allowRenumbering
	m.PrepareForUse()
	return
}

/*
DecodeGmsh parses an ASCII Gmsh 2.2 stream without preparing the mesh. The
elements of the highest dimension in the file make up the mesh, with their
physical tag as subdomain and ids in file order. Elements one dimension lower that match a side
of the mesh put their physical tag as boundary id on that side, named by
the PhysicalNames section when it has one. Node ids are taken one based,
as Gmsh writes them.
*/
func DecodeGmsh(r io.Reader) (m *mesh.Mesh, err error) {
	sc := &lineScanner{Scanner: bufio.NewScanner(r)}
	var (
		points   = make(map[int]elem.Point)
		elements []gmshElement
		names    = make(map[int]string)
		version  string
	)
	for sc.Scan() {
		sc.line++
		switch line := strings.TrimSpace(sc.Text()); line {
		case "$MeshFormat":
			var fields []string
			if fields, err = sc.next("mesh format"); err != nil {
				return
			}
			if len(fields) < 3 {
				return nil, fmt.Errorf("line %d: short mesh format", sc.line)
			}
			if version = fields[0]; !strings.HasPrefix(version, "2.") {
				return nil, fmt.Errorf("line %d: Gmsh format %s, only 2.x is read", sc.line, version)
			}
			if fields[1] != "0" {
				return nil, fmt.Errorf("line %d: binary Gmsh files are not read", sc.line)
			}
			err = skipTo(sc, "$EndMeshFormat")
		case "$PhysicalNames":
			err = readGmshPhysicalNames(sc, names)
		case "$Nodes":
			err = readGmshNodes(sc, points)
		case "$Elements":
			elements, err = readGmshElements(sc, points)
		default:
			if strings.HasPrefix(line, "$") && !strings.HasPrefix(line, "$End") {
				err = skipTo(sc, "$End"+line[1:])
			}
		}
		if err != nil {
			return nil, err
		}
	}
	if err = sc.Err(); err != nil {
		return nil, err
	}
	if len(version) == 0 {
		return nil, fmt.Errorf("no $MeshFormat section")
	}
	return buildGmshMesh(points, elements, names)
}

func skipTo(sc *lineScanner, end string) (err error) {
	for {
		var fields []string
		if fields, err = sc.next(end); err != nil {
			return
		}
		if len(fields) == 1 && fields[0] == end {
			return
		}
	}
}

func readGmshCount(sc *lineScanner, what string) (n int, err error) {
	var fields []string
	if fields, err = sc.next(what); err != nil {
		return
	}
	if len(fields) != 1 {
		return 0, fmt.Errorf("line %d: want the number of %s", sc.line, what)
	}
	return atoi(fields[0], sc.line)
}

func readGmshPhysicalNames(sc *lineScanner, names map[int]string) (err error) {
	var n int
	if n, err = readGmshCount(sc, "physical names"); err != nil {
		return
	}
	for i := 0; i < n; i++ {
		var fields []string
		if fields, err = sc.next("physical names"); err != nil {
			return
		}
		if len(fields) < 3 {
			return fmt.Errorf("line %d: short physical name", sc.line)
		}
		var tag int
		if tag, err = atoi(fields[1], sc.line); err != nil {
			return
		}
		names[tag] = strings.Trim(strings.Join(fields[2:], " "), "\"")
	}
	return skipTo(sc, "$EndPhysicalNames")
}

func readGmshNodes(sc *lineScanner, points map[int]elem.Point) (err error) {
	var n int
	if n, err = readGmshCount(sc, "nodes"); err != nil {
		return
	}
	for i := 0; i < n; i++ {
		var fields []string
		if fields, err = sc.next("nodes"); err != nil {
			return
		}
		if len(fields) < 4 {
			return fmt.Errorf("line %d: want id and 3 coordinates", sc.line)
		}
		var id int
		if id, err = atoi(fields[0], sc.line); err != nil {
			return
		}
		if id < 1 {
			return fmt.Errorf("line %d: node id %d is not one based", sc.line, id)
		}
		var x [3]float64
		for d := range x {
			if x[d], err = strconv.ParseFloat(fields[1+d], 64); err != nil {
				return fmt.Errorf("line %d: %w", sc.line, err)
			}
		}
		points[id] = elem.Point{X: x[0], Y: x[1], Z: x[2]}
	}
	return skipTo(sc, "$EndNodes")
}

func readGmshElements(sc *lineScanner, points map[int]elem.Point) (elements []gmshElement, err error) {
	var n int
	if n, err = readGmshCount(sc, "elements"); err != nil {
		return
	}
	for i := 0; i < n; i++ {
		var fields []string
		if fields, err = sc.next("elements"); err != nil {
			return
		}
		vals := make([]int, len(fields))
		for k, f := range fields {
			if vals[k], err = atoi(f, sc.line); err != nil {
				return
			}
		}
		if len(vals) < 3 || len(vals) < 3+vals[2] {
			return nil, fmt.Errorf("line %d: short element record", sc.line)
		}
		et, ok := gmshTypes[vals[1]]
		if !ok {
			return nil, fmt.Errorf("line %d: Gmsh element type %d is not a first order element", sc.line, vals[1])
		}
		ge := gmshElement{id: vals[0], et: et, nodes: vals[3+vals[2]:]}
		if vals[2] > 0 {
			ge.physical = vals[3]
		}
		if want := elem.GetTopology(et).NNodes; len(ge.nodes) != want {
			return nil, fmt.Errorf("line %d: %v needs %d nodes, record has %d", sc.line, et, want, len(ge.nodes))
		}
		for _, nid := range ge.nodes {
			if _, ok = points[nid]; !ok {
				return nil, fmt.Errorf("line %d: element %d uses unknown node %d", sc.line, ge.id, nid)
			}
		}
		elements = append(elements, ge)
	}
	err = skipTo(sc, "$EndElements")
	return
}

func buildGmshMesh(points map[int]elem.Point, elements []gmshElement, names map[int]string) (m *mesh.Mesh, err error) {
	dim := 0
	for _, ge := range elements {
		dim = max(dim, elem.GetTopology(ge.et).Dim)
	}
	if dim == 0 {
		return nil, fmt.Errorf("no elements of dimension one or more")
	}
	m = mesh.NewMesh(dim)
	ids := make([]int, 0, len(points))
	for id := range points {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		m.AddNode(elem.NewNode(points[id], types.DofID(id-1)))
	}

	sides := make(sideIndex)
	for _, ge := range elements {
		if elem.GetTopology(ge.et).Dim != dim {
			continue
		}
		e := elem.NewElem(ge.et)
		for k, nid := range ge.nodes {
			e.Nodes[k] = m.Node(types.DofID(nid - 1))
		}
		e.SubdomainID = types.SubdomainID(ge.physical)
		m.AddElem(e)
		sides.add(e)
	}
	for _, ge := range elements {
		if elem.GetTopology(ge.et).Dim != dim-1 || ge.physical <= 0 {
			continue
		}
		faceIDs := make([]types.DofID, len(ge.nodes))
		for k, nid := range ge.nodes {
			faceIDs[k] = types.DofID(nid - 1)
		}
		var es elemSide
		if es, err = sides.find(faceIDs); err != nil {
			return nil, fmt.Errorf("boundary element %d: %w", ge.id, err)
		}
		id := types.BoundaryID(ge.physical)
		m.Boundary.Add(es.e.ID(), es.s, id)
		if name, ok := names[ge.physical]; ok {
			m.Boundary.Names[id] = types.NewBCTAG(name)
		}
	}
	return
}
