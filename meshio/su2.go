package meshio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/mesh"
	"github.com/mfkiwl/libmesh/types"
)

// SU2 element types, the VTK numbering: https://su2code.github.io/docs_v7/Mesh-File/
var su2Types = map[int]elem.ElemType{
	1:  elem.NodeElem,
	3:  elem.Edge2,
	5:  elem.Tri3,
	9:  elem.Quad4,
	10: elem.Tet4,
	12: elem.Hex8,
	13: elem.Prism6,
	14: elem.Pyramid5,
}

type su2Marker struct {
	tag      string
	elements [][]types.DofID
}

func ReadSU2(filename string, allowRenumbering bool) (m *mesh.Mesh, err error) {
	var file *os.File
	if file, err = os.Open(filename); err != nil {
		return
	}
	defer file.Close()
	if m, err = DecodeSU2(file); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	m.AllowRenumbering = allowRenumbering
	m.PrepareForUse()
	return
}

/*
DecodeSU2 parses a single zone SU2 mesh without preparing it. Node ids are
the zero based point numbers of the file. Marker n becomes boundary id n,
named by its MARKER_TAG.
*/
func DecodeSU2(r io.Reader) (m *mesh.Mesh, err error) {
	sc := &lineScanner{Scanner: bufio.NewScanner(r)}
	var (
		dim      int
		elements [][]types.DofID
		ets      []elem.ElemType
		points   []elem.Point
		markers  []su2Marker
	)
	for {
		var key, val string
		if key, val, err = su2Keyword(sc); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return
		}
		switch key {
		case "NDIME":
			if dim, err = atoi(val, sc.line); err == nil && (dim < 1 || dim > 3) {
				err = fmt.Errorf("line %d: dimension %d", sc.line, dim)
			}
		case "NELEM":
			ets, elements, err = readSU2Elements(sc, val)
		case "NPOIN":
			points, err = readSU2Points(sc, val, dim)
		case "NMARK":
			markers, err = readSU2Markers(sc, val)
		default:
			err = fmt.Errorf("line %d: unknown keyword %s", sc.line, key)
		}
		if err != nil {
			return nil, err
		}
	}
	if dim == 0 {
		return nil, fmt.Errorf("no NDIME keyword")
	}

	m = mesh.NewMesh(dim)
	for i, p := range points {
		m.AddNode(elem.NewNode(p, types.DofID(i)))
	}
	sides := make(sideIndex)
	for k, ids := range elements {
		if d := elem.GetTopology(ets[k]).Dim; d != dim {
			return nil, fmt.Errorf("element %d is a %dD %v in a %dD mesh", k, d, ets[k], dim)
		}
		e := elem.NewElem(ets[k])
		for i, id := range ids {
			if e.Nodes[i] = m.QueryNode(id); e.Nodes[i] == nil {
				return nil, fmt.Errorf("element %d uses unknown point %d", k, id)
			}
		}
		m.AddElem(e)
		sides.add(e)
	}
	for n, mk := range markers {
		id := types.BoundaryID(n)
		m.Boundary.Names[id] = types.NewBCTAG(mk.tag)
		for _, ids := range mk.elements {
			var es elemSide
			if es, err = sides.find(ids); err != nil {
				return nil, fmt.Errorf("marker %s: %w", mk.tag, err)
			}
			m.Boundary.Add(es.e.ID(), es.s, id)
		}
	}
	return
}

// su2Line is the next line that is neither blank nor a '%' comment.
func su2Line(sc *lineScanner) (line string, err error) {
	for sc.Scan() {
		sc.line++
		if line = strings.TrimSpace(sc.Text()); len(line) != 0 && line[0] != '%' {
			return
		}
	}
	if err = sc.Err(); err == nil {
		err = io.EOF
	}
	return
}

func su2Keyword(sc *lineScanner) (key, val string, err error) {
	var line string
	if line, err = su2Line(sc); err != nil {
		return
	}
	var ok bool
	if key, val, ok = strings.Cut(line, "="); !ok {
		return "", "", fmt.Errorf("line %d: want KEYWORD= value, have %q", sc.line, line)
	}
	return strings.TrimSpace(key), strings.TrimSpace(val), nil
}

func su2Expect(sc *lineScanner, want string) (val string, err error) {
	var key string
	if key, val, err = su2Keyword(sc); errors.Is(err, io.EOF) {
		return "", fmt.Errorf("line %d, reading %s: %w", sc.line, want, io.ErrUnexpectedEOF)
	} else if err != nil {
		return
	}
	if key != want {
		return "", fmt.Errorf("line %d: want %s, have %s", sc.line, want, key)
	}
	return
}

// su2Count reads the first field of a keyword value, NPOIN may carry a second.
func su2Count(sc *lineScanner, val string) (n int, err error) {
	fields := strings.Fields(val)
	if len(fields) == 0 {
		return 0, fmt.Errorf("line %d: missing count", sc.line)
	}
	return atoi(fields[0], sc.line)
}

func su2Fields(sc *lineScanner, what string) (fields []string, err error) {
	var line string
	if line, err = su2Line(sc); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("line %d, reading %s: %w", sc.line, what, err)
	}
	return strings.Fields(line), nil
}

// readSU2Cell reads "type n0 n1 ..." with an optional trailing index.
func readSU2Cell(sc *lineScanner, what string) (et elem.ElemType, ids []types.DofID, err error) {
	var fields []string
	if fields, err = su2Fields(sc, what); err != nil {
		return
	}
	var vtk int
	if vtk, err = atoi(fields[0], sc.line); err != nil {
		return
	}
	var ok bool
	if et, ok = su2Types[vtk]; !ok {
		return et, nil, fmt.Errorf("line %d: unsupported SU2 element type %d", sc.line, vtk)
	}
	nn := elem.GetTopology(et).NNodes
	if len(fields) != 1+nn && len(fields) != 2+nn {
		return et, nil, fmt.Errorf("line %d: %v needs %d nodes", sc.line, et, nn)
	}
	ids = make([]types.DofID, nn)
	for i := range ids {
		var id int
		if id, err = atoi(fields[1+i], sc.line); err != nil {
			return
		}
		ids[i] = types.DofID(id)
	}
	return
}

func readSU2Elements(sc *lineScanner, val string) (ets []elem.ElemType, elements [][]types.DofID, err error) {
	var n int
	if n, err = su2Count(sc, val); err != nil {
		return
	}
	ets, elements = make([]elem.ElemType, n), make([][]types.DofID, n)
	for k := 0; k < n; k++ {
		if ets[k], elements[k], err = readSU2Cell(sc, "elements"); err != nil {
			return
		}
	}
	return
}

func readSU2Points(sc *lineScanner, val string, dim int) (points []elem.Point, err error) {
	if dim == 0 {
		return nil, fmt.Errorf("line %d: NPOIN before NDIME", sc.line)
	}
	var n int
	if n, err = su2Count(sc, val); err != nil {
		return
	}
	points = make([]elem.Point, n)
	for i := range points {
		var fields []string
		if fields, err = su2Fields(sc, "points"); err != nil {
			return
		}
		if len(fields) < dim {
			return nil, fmt.Errorf("line %d: want %d coordinates", sc.line, dim)
		}
		var x [3]float64
		for d := 0; d < dim; d++ {
			if x[d], err = strconv.ParseFloat(fields[d], 64); err != nil {
				return nil, fmt.Errorf("line %d: %w", sc.line, err)
			}
		}
		points[i] = elem.Point{X: x[0], Y: x[1], Z: x[2]}
	}
	return
}

func readSU2Markers(sc *lineScanner, val string) (markers []su2Marker, err error) {
	var n int
	if n, err = su2Count(sc, val); err != nil {
		return
	}
	markers = make([]su2Marker, n)
	for i := range markers {
		var tag, count string
		if tag, err = su2Expect(sc, "MARKER_TAG"); err != nil {
			return
		}
		markers[i].tag = tag
		if count, err = su2Expect(sc, "MARKER_ELEMS"); err != nil {
			return
		}
		var ne int
		if ne, err = su2Count(sc, count); err != nil {
			return
		}
		markers[i].elements = make([][]types.DofID, ne)
		for k := range markers[i].elements {
			if _, markers[i].elements[k], err = readSU2Cell(sc, "marker elements"); err != nil {
				return
			}
		}
	}
	return
}
