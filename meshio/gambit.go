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

const gambitVersion = "2.4.6"

// Gambit neutral element type codes
var gambitTypes = map[elem.ElemType]int{
	elem.Edge2:    1,
	elem.Quad4:    2,
	elem.Tri3:     3,
	elem.Hex8:     4,
	elem.Prism6:   5,
	elem.Tet4:     6,
	elem.Pyramid5: 7,
}

func elemTypeFromGambit(code int) (et elem.ElemType, err error) {
	for et, c := range gambitTypes {
		if c == code {
			return et, nil
		}
	}
	return elem.InvalidElem, fmt.Errorf("unknown Gambit element type %d", code)
}

const elemsetGroupPrefix = "elemset_"

func defaultBoundaryName(id types.BoundaryID) string { return fmt.Sprintf("boundary_%d", id) }

/*
WriteGambit writes the active elements of m as a Gambit neutral file.

Node and element ids are written one based and read back in place, so a mesh
that is not renumbered round trips with its ids intact. Element connectivity
and side numbers follow this library's own local numbering. Subdomains become
ELEMENT GROUP sections numbered by subdomain id; each element set becomes a
group named "elemset_<id>". Boundary ids become BOUNDARY CONDITIONS sets,
side sets with itype 1 and node sets with itype 0, whose IBCODE1 field holds
the boundary id.
*/
func WriteGambit(m *mesh.Mesh, filename string) (err error) {
	var file *os.File
	if file, err = os.Create(filename); err != nil {
		return
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(file)
	if err = EncodeGambit(m, w, filename); err != nil {
		return
	}
	return w.Flush()
}

type gambitGroup struct {
	id    int
	name  string
	elems []types.DofID
}

type gambitBCSet struct {
	id      types.BoundaryID
	name    string
	sides   []mesh.BCTriple
	nodeIDs []types.DofID
}

func EncodeGambit(m *mesh.Mesh, w io.Writer, title string) (err error) {
	active := m.ActiveElements()
	for _, e := range active {
		if _, ok := gambitTypes[e.Type]; !ok {
			return fmt.Errorf("element %d: no Gambit type for %v", e.ID(), e.Type)
		}
	}

	var nodes []*elem.Node
	used := make(map[types.DofID]bool)
	for _, e := range active {
		for _, n := range e.Nodes {
			if !used[n.ID()] {
				used[n.ID()] = true
				nodes = append(nodes, n)
			}
		}
	}
	slices.SortFunc(nodes, func(a, b *elem.Node) int { return int(a.ID()) - int(b.ID()) })

	groups := buildGambitGroups(m, active)
	bcsets := buildGambitBCSets(m, active, used)

	pr := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}
	pr("        CONTROL INFO %s\n", gambitVersion)
	pr("** GAMBIT NEUTRAL FILE\n")
	pr("%s\n", title)
	pr("PROGRAM:               libmesh     VERSION:  %s\n", gambitVersion)
	pr("\n")
	pr("     NUMNP     NELEM     NGRPS    NBSETS     NDFCD     NDFVL\n")
	pr("%10d%10d%10d%10d%10d%10d\n", len(nodes), len(active), len(groups), len(bcsets), m.Dim, m.Dim)
	pr("ENDOFSECTION\n")

	pr("   NODAL COORDINATES %s\n", gambitVersion)
	for _, n := range nodes {
		pr("%10d", n.ID()+1)
		for _, x := range []float64{n.X, n.Y, n.Z}[:m.Dim] {
			pr("%20.11e", x)
		}
		pr("\n")
	}
	pr("ENDOFSECTION\n")

	pr("      ELEMENTS/CELLS %s\n", gambitVersion)
	for _, e := range active {
		pr("%8d %2d %2d ", e.ID()+1, gambitTypes[e.Type], e.NNodes())
		for _, n := range e.Nodes {
			pr("%8d", n.ID()+1)
		}
		pr("\n")
	}
	pr("ENDOFSECTION\n")

	for _, g := range groups {
		pr("       ELEMENT GROUP %s\n", gambitVersion)
		pr("GROUP: %10d ELEMENTS: %10d MATERIAL: %10d NFLAGS: %10d\n", g.id, len(g.elems), 0, 1)
		pr("%32s\n", g.name)
		pr("%8d\n", 0)
		for i, id := range g.elems {
			pr("%8d", id+1)
			if i%10 == 9 || i == len(g.elems)-1 {
				pr("\n")
			}
		}
		pr("ENDOFSECTION\n")
	}

	for _, bc := range bcsets {
		pr(" BOUNDARY CONDITIONS %s\n", gambitVersion)
		if bc.nodeIDs != nil {
			pr("%32s%8d%8d%8d%8d\n", bc.name, 0, len(bc.nodeIDs), 0, bc.id)
			for _, id := range bc.nodeIDs {
				pr("%10d\n", id+1)
			}
		} else {
			pr("%32s%8d%8d%8d%8d\n", bc.name, 1, len(bc.sides), 0, bc.id)
			for _, t := range bc.sides {
				pr("%10d%5d%5d\n", t.Elem+1, gambitTypes[m.Elem(t.Elem).Type], t.Side+1)
			}
		}
		pr("ENDOFSECTION\n")
	}
	return
}

func buildGambitGroups(m *mesh.Mesh, active []*elem.Elem) (groups []gambitGroup) {
	subdomains := make(map[int][]types.DofID)
	sets := make(map[mesh.ElemsetID][]types.DofID)
	for _, e := range active {
		sid := int(e.SubdomainID)
		subdomains[sid] = append(subdomains[sid], e.ID())
		for _, set := range m.ElemElemsets(e) {
			sets[set] = append(sets[set], e.ID())
		}
	}
	var sids []int
	for sid := range subdomains {
		sids = append(sids, sid)
	}
	slices.Sort(sids)
	for _, sid := range sids {
		groups = append(groups, gambitGroup{sid, fmt.Sprintf("subdomain_%d", sid), subdomains[sid]})
	}
	for _, set := range m.ElemsetIDs() {
		if len(sets[set]) > 0 {
			groups = append(groups, gambitGroup{int(set), fmt.Sprintf("%s%d", elemsetGroupPrefix, set), sets[set]})
		}
	}
	return
}

func buildGambitBCSets(m *mesh.Mesh, active []*elem.Elem, used map[types.DofID]bool) (bcsets []gambitBCSet) {
	sideSets := make(map[types.BoundaryID][]mesh.BCTriple)
	for _, e := range active {
		for s := 0; s < e.NSides(); s++ {
			for _, id := range m.Boundary.BoundaryIDs(e, s) {
				sideSets[id] = append(sideSets[id], mesh.BCTriple{Elem: e.ID(), Side: s, ID: id})
			}
		}
	}
	nodeSets := make(map[types.BoundaryID][]types.DofID)
	for _, n := range m.Nodes() {
		if !used[n.ID()] {
			continue
		}
		for _, id := range m.Boundary.NodeBoundaryIDs(n.ID()) {
			nodeSets[id] = append(nodeSets[id], n.ID())
		}
	}
	name := func(id types.BoundaryID) string {
		if tag, ok := m.Boundary.Names[id]; ok && tag != "" {
			return strings.Join(strings.Fields(string(tag)), "_")
		}
		return defaultBoundaryName(id)
	}
	for _, id := range sortedKeys(sideSets) {
		bcsets = append(bcsets, gambitBCSet{id: id, name: name(id), sides: sideSets[id]})
	}
	for _, id := range sortedKeys(nodeSets) {
		bcsets = append(bcsets, gambitBCSet{id: id, name: name(id), nodeIDs: nodeSets[id]})
	}
	return
}

func sortedKeys[V any](m map[types.BoundaryID]V) (keys []types.BoundaryID) {
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return
}

// ReadGambit reads a Gambit neutral file (.neu) into a new mesh and prepares it for use.
func ReadGambit(filename string, allowRenumbering bool) (m *mesh.Mesh, err error) {
	var file *os.File
	if file, err = os.Open(filename); err != nil {
		return
	}
	defer file.Close()
	if m, err = DecodeGambit(file); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	m.AllowRenumbering = allowRenumbering
	m.PrepareForUse()
	return
}

type lineScanner struct {
	*bufio.Scanner
	line int
}

func (sc *lineScanner) next(what string) (fields []string, err error) {
	if !sc.Scan() {
		if err = sc.Err(); err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("line %d, reading %s: %w", sc.line, what, err)
	}
	sc.line++
	return strings.Fields(sc.Text()), nil
}

func atoi(s string, line int) (i int, err error) {
	if i, err = strconv.Atoi(s); err != nil {
		err = fmt.Errorf("line %d: %w", line, err)
	}
	return
}

/*
DecodeGambit parses a Gambit neutral stream without preparing the mesh, so
neighbor links are not yet built. Element groups named "elemset_<id>" give
element set membership; any other group assigns its group number as the
subdomain of its elements. Elemset codes are assigned in lexicographic order
of the set combinations found.
*/
func DecodeGambit(r io.Reader) (m *mesh.Mesh, err error) {
	sc := &lineScanner{Scanner: bufio.NewScanner(r)}
	var numnp, nelem, ngrps, nbsets, ndfcd int

	// Control info
	for {
		var fields []string
		if fields, err = sc.next("control info"); err != nil {
			return
		}
		if slices.Contains(fields, "NUMNP") && slices.Contains(fields, "NELEM") {
			if fields, err = sc.next("control values"); err != nil {
				return
			}
			if len(fields) < 5 {
				return nil, fmt.Errorf("line %d: want 5 control values, have %d", sc.line, len(fields))
			}
			counts := []*int{&numnp, &nelem, &ngrps, &nbsets, &ndfcd}
			for i, p := range counts {
				if *p, err = atoi(fields[i], sc.line); err != nil {
					return
				}
			}
			break
		}
	}
	if ndfcd < 1 || ndfcd > 3 {
		return nil, fmt.Errorf("coordinate dimension %d out of range [1,3]", ndfcd)
	}
	m = mesh.NewMesh(ndfcd)

	memberships := make(map[types.DofID][]mesh.ElemsetID)
	for sc.Scan() {
		sc.line++
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "ENDOFSECTION" || line == "":
		case strings.Contains(line, "NODAL COORDINATES"):
			err = readGambitNodes(sc, m, numnp, ndfcd)
		case strings.Contains(line, "ELEMENTS/CELLS"):
			err = readGambitElements(sc, m, nelem)
		case strings.Contains(line, "ELEMENT GROUP"):
			err = readGambitGroup(sc, m, memberships)
		case strings.Contains(line, "BOUNDARY CONDITIONS"):
			err = readGambitBCs(sc, m)
		}
		if err != nil {
			return nil, err
		}
	}
	if err = sc.Err(); err != nil {
		return nil, err
	}
	if m.NElem() != nelem {
		return nil, fmt.Errorf("header promises %d elements, file has %d", nelem, m.NElem())
	}
	assignElemsetCodes(m, memberships)
	return
}

func readGambitNodes(sc *lineScanner, m *mesh.Mesh, numnp, ndfcd int) (err error) {
	for i := 0; i < numnp; i++ {
		var fields []string
		if fields, err = sc.next("nodes"); err != nil {
			return
		}
		if len(fields) < 1+ndfcd {
			return fmt.Errorf("line %d: want id and %d coordinates", sc.line, ndfcd)
		}
		var nodeID int
		if nodeID, err = atoi(fields[0], sc.line); err != nil {
			return
		}
		var x [3]float64
		for d := 0; d < ndfcd; d++ {
			if x[d], err = strconv.ParseFloat(fields[1+d], 64); err != nil {
				return fmt.Errorf("line %d: %w", sc.line, err)
			}
		}
		// Gambit uses 1-based node IDs
		m.AddNode(elem.NewNode(elem.Point{X: x[0], Y: x[1], Z: x[2]}, types.DofID(nodeID-1)))
	}
	return
}

func readGambitElements(sc *lineScanner, m *mesh.Mesh, nelem int) (err error) {
	for i := 0; i < nelem; i++ {
		var fields []string
		if fields, err = sc.next("elements"); err != nil {
			return
		}
		if len(fields) < 3 {
			return fmt.Errorf("line %d: short element record", sc.line)
		}
		var head [3]int
		for k := range head {
			if head[k], err = atoi(fields[k], sc.line); err != nil {
				return
			}
		}
		var et elem.ElemType
		if et, err = elemTypeFromGambit(head[1]); err != nil {
			return fmt.Errorf("line %d: %w", sc.line, err)
		}
		e := elem.NewElem(et)
		if head[2] != e.NNodes() {
			return fmt.Errorf("line %d: %v needs %d nodes, record has %d", sc.line, et, e.NNodes(), head[2])
		}
		// Long connectivity lists continue on the following lines
		conn := fields[3:]
		for len(conn) < head[2] {
			var more []string
			if more, err = sc.next("element connectivity"); err != nil {
				return
			}
			conn = append(conn, more...)
		}
		for k := range e.Nodes {
			var nid int
			if nid, err = atoi(conn[k], sc.line); err != nil {
				return
			}
			if e.Nodes[k] = m.QueryNode(types.DofID(nid - 1)); e.Nodes[k] == nil {
				return fmt.Errorf("line %d: element %d uses unknown node %d", sc.line, head[0], nid)
			}
		}
		e.SetID(types.DofID(head[0] - 1))
		m.AddElem(e)
	}
	return
}

func readGambitGroup(sc *lineScanner, m *mesh.Mesh, memberships map[types.DofID][]mesh.ElemsetID) (err error) {
	var fields []string
	if fields, err = sc.next("group header"); err != nil {
		return
	}
	var groupID, numElems, nflags int
	for i := 0; i < len(fields)-1; i++ {
		var p *int
		switch fields[i] {
		case "GROUP:":
			p = &groupID
		case "ELEMENTS:":
			p = &numElems
		case "NFLAGS:":
			p = &nflags
		default:
			continue
		}
		if *p, err = atoi(fields[i+1], sc.line); err != nil {
			return
		}
	}
	var name []string
	if name, err = sc.next("group name"); err != nil {
		return
	}
	if nflags > 0 {
		if _, err = sc.next("group flags"); err != nil {
			return
		}
	}
	setID, isSet := mesh.ElemsetID(0), false
	if len(name) == 1 && strings.HasPrefix(name[0], elemsetGroupPrefix) {
		var id int
		if id, err = strconv.Atoi(strings.TrimPrefix(name[0], elemsetGroupPrefix)); err == nil {
			setID, isSet = mesh.ElemsetID(id), true
		}
		err = nil
	}
	for read := 0; read < numElems; {
		if fields, err = sc.next("group elements"); err != nil {
			return
		}
		for _, f := range fields {
			var id int
			if id, err = atoi(f, sc.line); err != nil {
				return
			}
			e := m.QueryElem(types.DofID(id - 1))
			if e == nil {
				return fmt.Errorf("line %d: group %d lists unknown element %d", sc.line, groupID, id)
			}
			if isSet {
				memberships[e.ID()] = append(memberships[e.ID()], setID)
			} else {
				e.SubdomainID = types.SubdomainID(groupID)
			}
			read++
		}
	}
	return
}

func readGambitBCs(sc *lineScanner, m *mesh.Mesh) (err error) {
	var fields []string
	if fields, err = sc.next("boundary set header"); err != nil {
		return
	}
	// NAME ITYPE NENTRY NVALUES IBCODE1
	if len(fields) < 3 {
		return fmt.Errorf("line %d: short boundary set header", sc.line)
	}
	name := fields[0]
	var itype, nentry, code int
	if itype, err = atoi(fields[1], sc.line); err != nil {
		return
	}
	if nentry, err = atoi(fields[2], sc.line); err != nil {
		return
	}
	id := types.BoundaryID(len(m.Boundary.BoundaryIDSet()))
	if len(fields) >= 5 {
		if code, err = atoi(fields[4], sc.line); err != nil {
			return
		}
		id = types.BoundaryID(code)
	}
	if name != defaultBoundaryName(id) {
		m.Boundary.Names[id] = types.NewBCTAG(name)
	}
	for i := 0; i < nentry; i++ {
		if fields, err = sc.next("boundary entries"); err != nil {
			return
		}
		vals := make([]int, len(fields))
		for k, f := range fields {
			if vals[k], err = atoi(f, sc.line); err != nil {
				return
			}
		}
		switch {
		case itype == 0 && len(vals) >= 1:
			if m.QueryNode(types.DofID(vals[0]-1)) == nil {
				return fmt.Errorf("line %d: boundary set %s lists unknown node %d", sc.line, name, vals[0])
			}
			m.Boundary.AddNode(types.DofID(vals[0]-1), id)
		case itype == 1 && len(vals) >= 3:
			e := m.QueryElem(types.DofID(vals[0] - 1))
			if e == nil {
				return fmt.Errorf("line %d: boundary set %s lists unknown element %d", sc.line, name, vals[0])
			}
			if vals[2] < 1 || vals[2] > e.NSides() {
				return fmt.Errorf("line %d: side %d out of range [1,%d]", sc.line, vals[2], e.NSides())
			}
			m.Boundary.Add(e.ID(), vals[2]-1, id)
		default:
			return fmt.Errorf("line %d: bad boundary entry for itype %d", sc.line, itype)
		}
	}
	return
}

func assignElemsetCodes(m *mesh.Mesh, memberships map[types.DofID][]mesh.ElemsetID) {
	if len(memberships) == 0 {
		return
	}
	var combos [][]mesh.ElemsetID
	for _, sets := range memberships {
		combos = append(combos, sets)
	}
	_, ordered := mesh.CanonicalElemsetCodes(combos)
	for code, sets := range ordered {
		m.AddElemsetCode(types.DofID(code), sets)
	}
	for id, sets := range memberships {
		m.SetElemElemsets(m.Elem(id), sets)
	}
}
