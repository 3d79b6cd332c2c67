package mesh

import (
	"fmt"
	"math"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/types"
)

// Hex8 local connectivity of the six tets sharing the 0-6 diagonal.
var hexTets = [6][4]int{{0, 1, 2, 6}, {0, 2, 3, 6}, {0, 3, 7, 6}, {0, 7, 4, 6}, {0, 4, 5, 6}, {0, 5, 1, 6}}

// Hex8 local connectivity of the two prisms split along the 0-2 diagonal.
var hexPrisms = [2][6]int{{0, 1, 2, 4, 5, 6}, {0, 2, 3, 4, 6, 7}}

/*
BuildLine meshes [xmin,xmax] with nx Edge2 elements. The left end gets
boundary id 0 and the right end 1.
*/
func BuildLine(nx int, xmin, xmax float64) (m *Mesh) {
	if nx < 1 {
		panic(fmt.Errorf("need at least one element, have nx = %d", nx))
	}
	m = NewMesh(1)
	dx := (xmax - xmin) / float64(nx)
	for i := 0; i <= nx; i++ {
		m.AddPoint(elem.Point{X: xmin + float64(i)*dx})
	}
	for i := 0; i < nx; i++ {
		e := elem.NewElem(elem.Edge2)
		e.Nodes[0], e.Nodes[1] = m.Node(types.DofID(i)), m.Node(types.DofID(i+1))
		m.AddElem(e)
	}
	m.FindNeighbors()
	m.Boundary.Add(0, 0, 0)
	m.Boundary.Add(types.DofID(nx-1), 1, 1)
	return
}

/*
BuildSquare meshes the rectangle with nx by ny cells of Quad4, or two Tri3
per cell. Element ids run fastest in x. Boundary ids are 0 bottom, 1 right,
2 top and 3 left.
*/
func BuildSquare(nx, ny int, xmin, xmax, ymin, ymax float64, et elem.ElemType) (m *Mesh) {
	if nx < 1 || ny < 1 {
		panic(fmt.Errorf("need at least one cell per direction, have %d x %d", nx, ny))
	}
	m = NewMesh(2)
	dx, dy := (xmax-xmin)/float64(nx), (ymax-ymin)/float64(ny)
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			m.AddPoint(elem.Point{X: xmin + float64(i)*dx, Y: ymin + float64(j)*dy})
		}
	}
	node := func(i, j int) *elem.Node { return m.Node(types.DofID(i + (nx+1)*j)) }
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			quad := []*elem.Node{node(i, j), node(i+1, j), node(i+1, j+1), node(i, j+1)}
			switch et.Base() {
			case elem.Quad4:
				m.AddElem(newElemFrom(et, quad, []int{0, 1, 2, 3}))
			case elem.Tri3:
				m.AddElem(newElemFrom(et, quad, []int{0, 1, 2}))
				m.AddElem(newElemFrom(et, quad, []int{0, 2, 3}))
			default:
				panic(fmt.Errorf("cannot build a square of %v elements", et))
			}
		}
	}
	m.FindNeighbors()
	m.markBoundary(func(c elem.Point, tol float64) types.BoundaryID {
		switch {
		case math.Abs(c.Y-ymin) < tol:
			return 0
		case math.Abs(c.X-xmax) < tol:
			return 1
		case math.Abs(c.Y-ymax) < tol:
			return 2
		case math.Abs(c.X-xmin) < tol:
			return 3
		}
		return types.InvalidBoundaryID
	}, math.Min(dx, dy))
	return
}

/*
BuildCube meshes the box with nx by ny by nz cells of Hex8, or the cell split
into six Tet4, two Prism6 or six Pyramid5 around an added center node.
Boundary ids are 0 back (zmin), 1 bottom (ymin), 2 right (xmax), 3 top
(ymax), 4 left (xmin) and 5 front (zmax).
*/
func BuildCube(nx, ny, nz int, xmin, xmax, ymin, ymax, zmin, zmax float64, et elem.ElemType) (m *Mesh) {
	if nx < 1 || ny < 1 || nz < 1 {
		panic(fmt.Errorf("need at least one cell per direction, have %d x %d x %d", nx, ny, nz))
	}
	m = NewMesh(3)
	dx, dy, dz := (xmax-xmin)/float64(nx), (ymax-ymin)/float64(ny), (zmax-zmin)/float64(nz)
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				m.AddPoint(elem.Point{X: xmin + float64(i)*dx, Y: ymin + float64(j)*dy, Z: zmin + float64(k)*dz})
			}
		}
	}
	node := func(i, j, k int) *elem.Node { return m.Node(types.DofID(i + (nx+1)*(j+(ny+1)*k))) }
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				hex := []*elem.Node{
					node(i, j, k), node(i+1, j, k), node(i+1, j+1, k), node(i, j+1, k),
					node(i, j, k+1), node(i+1, j, k+1), node(i+1, j+1, k+1), node(i, j+1, k+1)}
				switch et {
				case elem.Hex8:
					m.AddElem(newElemFrom(et, hex, []int{0, 1, 2, 3, 4, 5, 6, 7}))
				case elem.Tet4:
					for _, tet := range hexTets {
						m.AddElem(newElemFrom(et, hex, tet[:]))
					}
				case elem.Prism6:
					for _, prism := range hexPrisms {
						m.AddElem(newElemFrom(et, hex, prism[:]))
					}
				case elem.Pyramid5:
					center := m.AddPoint(elem.Point{
						X: xmin + (float64(i)+0.5)*dx, Y: ymin + (float64(j)+0.5)*dy, Z: zmin + (float64(k)+0.5)*dz})
					hex = append(hex, center)
					for _, sn := range elem.GetTopology(elem.Hex8).SideNodes {
						// The base runs against the outward hex face order
						m.AddElem(newElemFrom(et, hex, []int{sn[0], sn[3], sn[2], sn[1], 8}))
					}
				default:
					panic(fmt.Errorf("cannot build a cube of %v elements", et))
				}
			}
		}
	}
	m.FindNeighbors()
	m.markBoundary(func(c elem.Point, tol float64) types.BoundaryID {
		switch {
		case math.Abs(c.Z-zmin) < tol:
			return 0
		case math.Abs(c.Y-ymin) < tol:
			return 1
		case math.Abs(c.X-xmax) < tol:
			return 2
		case math.Abs(c.Y-ymax) < tol:
			return 3
		case math.Abs(c.X-xmin) < tol:
			return 4
		case math.Abs(c.Z-zmax) < tol:
			return 5
		}
		return types.InvalidBoundaryID
	}, math.Min(dx, math.Min(dy, dz)))
	return
}

func newElemFrom(et elem.ElemType, nodes []*elem.Node, local []int) (e *elem.Elem) {
	e = elem.NewElem(et)
	for i, ln := range local {
		e.Nodes[i] = nodes[ln]
	}
	return
}

// markBoundary labels every side without a neighbor by the bounding plane its vertex average lies on.
func (m *Mesh) markBoundary(classify func(c elem.Point, tol float64) types.BoundaryID, h float64) {
	tol := 1.e-3 * h
	for _, e := range m.ActiveElements() {
		for s, nb := range e.NeighborIDs {
			if nb != types.InvalidID {
				continue
			}
			if bid := classify(e.SidePtr(s).VertexAverage(), tol); bid != types.InvalidBoundaryID {
				m.Boundary.Add(e.ID(), s, bid)
			}
		}
	}
}
