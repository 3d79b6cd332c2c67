package systems

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/mesh"
	"github.com/mfkiwl/libmesh/types"
)

/*
DofMap numbers the degrees of freedom of one system. Every variable is first
order Lagrange, so dofs live on the nodes of active elements, one per
variable, numbered node-major: the variables of a node are consecutive.
Nodes are taken by processor id, then by node id, so each processor owns a
contiguous block.
*/
type DofMap struct {
	sysNum int
	nVars  int
	mesh   *mesh.Mesh

	nDofs    int
	firstDof []int // Per processor offsets, the last entry is nDofs

	Dirichlet        []DirichletBoundary
	AdjointDirichlet map[int][]DirichletBoundary

	hanging map[types.DofID][]term // Unresolved hanging node rows
	primal  *ConstraintSet
}

type term struct {
	dof   types.DofID
	coeff float64
}

func NewDofMap(m *mesh.Mesh, sysNum, nVars int) *DofMap {
	return &DofMap{
		sysNum:           sysNum,
		nVars:            nVars,
		mesh:             m,
		AdjointDirichlet: make(map[int][]DirichletBoundary),
	}
}

func (dm *DofMap) NDofs() int { return dm.nDofs }
func (dm *DofMap) NVars() int { return dm.nVars }

// FirstDof and EndDof bound the dofs owned by processor pid.
func (dm *DofMap) FirstDof(pid types.ProcessorID) int {
	if int(pid) >= len(dm.firstDof)-1 {
		return dm.nDofs
	}
	return dm.firstDof[pid]
}

func (dm *DofMap) EndDof(pid types.ProcessorID) int {
	if int(pid) >= len(dm.firstDof)-1 {
		return dm.nDofs
	}
	return dm.firstDof[pid+1]
}

func (dm *DofMap) NLocalDofs(pid types.ProcessorID) int { return dm.EndDof(pid) - dm.FirstDof(pid) }

func (dm *DofMap) AddDirichletBoundary(db DirichletBoundary) {
	dm.Dirichlet = append(dm.Dirichlet, db)
	dm.primal = nil
}

// AddAdjointDirichletBoundary adds Dirichlet data for the adjoint of QoI q.
func (dm *DofMap) AddAdjointDirichletBoundary(db DirichletBoundary, q int) {
	dm.AdjointDirichlet[q] = append(dm.AdjointDirichlet[q], db)
}

func (dm *DofMap) HasAdjointDirichletBoundaries(q int) bool { return len(dm.AdjointDirichlet[q]) > 0 }

func (dm *DofMap) setupNode(d *elem.Node) {
	s := dm.sysNum
	if d.NSystems() <= s {
		d.SetNSystems(s + 1)
	}
	if d.NVarGroups(s) != 1 || d.NVarsGroup(s, 0) != dm.nVars {
		d.SetNVarsPerGroup(s, []int{dm.nVars})
	}
	d.SetNCompGroup(s, 0, 1)
}

/*
DistributeDofs numbers the nodes of the active elements and invalidates the
dofs of every other node, then rebuilds the constraints. Elements join the
system with no components of their own.
*/
func (dm *DofMap) DistributeDofs() {
	s := dm.sysNum
	used := make(map[types.DofID]bool)
	var nodes []*elem.Node
	maxPID := 0
	for _, e := range dm.mesh.Elements() {
		if e.NSystems() <= s {
			e.SetNSystems(s + 1)
		}
		if e.NVarGroups(s) != 1 || e.NVarsGroup(s, 0) != dm.nVars {
			e.SetNVarsPerGroup(s, []int{dm.nVars})
		}
		if !e.Active() {
			continue
		}
		for _, n := range e.Nodes {
			if !used[n.ID()] {
				used[n.ID()] = true
				nodes = append(nodes, n)
				maxPID = max(maxPID, int(n.ProcessorID()))
			}
		}
	}
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.ProcessorID() != b.ProcessorID() {
			return a.ProcessorID() < b.ProcessorID()
		}
		return a.ID() < b.ID()
	})
	for _, n := range dm.mesh.Nodes() {
		if !used[n.ID()] && n.NSystems() > s {
			n.InvalidateDofs(s)
		}
	}
	dm.firstDof = make([]int, maxPID+2)
	next := 0
	pid := 0
	for _, n := range nodes {
		for ; pid < int(n.ProcessorID()); pid++ {
			dm.firstDof[pid+1] = next
		}
		dm.setupNode(n)
		n.SetVGDofBase(s, 0, types.DofID(next))
		next += dm.nVars
	}
	for ; pid <= maxPID; pid++ {
		dm.firstDof[pid+1] = next
	}
	dm.nDofs = next
	dm.computeHangingConstraints()
	dm.primal = nil
}

// NodeDof is the dof of variable v on node n, InvalidID when n carries none.
func (dm *DofMap) NodeDof(n *elem.Node, v int) types.DofID {
	s := dm.sysNum
	if n.NSystems() <= s || n.NVarGroups(s) == 0 || n.NCompGroup(s, 0) == 0 {
		return types.InvalidID
	}
	return n.DofNumber(s, v, 0)
}

// DofIndices lists the dofs of variable v on e's nodes, in local node order.
func (dm *DofMap) DofIndices(e *elem.Elem, v int) (dofs []types.DofID) {
	dofs = make([]types.DofID, e.NNodes())
	for i, n := range e.Nodes {
		dofs[i] = dm.NodeDof(n, v)
	}
	return
}

// AllDofIndices lists every variable's dofs on e, variable by variable.
func (dm *DofMap) AllDofIndices(e *elem.Elem) (dofs []types.DofID) {
	for v := 0; v < dm.nVars; v++ {
		dofs = append(dofs, dm.DofIndices(e, v)...)
	}
	return
}

// SparsityPattern lists for every dof the sorted dofs it couples to through some active element.
func (dm *DofMap) SparsityPattern() (rows [][]types.DofID) {
	sets := make([]map[types.DofID]bool, dm.nDofs)
	for _, e := range dm.mesh.ActiveElements() {
		dofs := dm.AllDofIndices(e)
		for _, i := range dofs {
			if sets[i] == nil {
				sets[i] = make(map[types.DofID]bool)
			}
			for _, j := range dofs {
				sets[i][j] = true
			}
		}
	}
	rows = make([][]types.DofID, dm.nDofs)
	for i, set := range sets {
		for j := range set {
			rows[i] = append(rows[i], j)
		}
		slices.Sort(rows[i])
	}
	return
}

/*
computeHangingConstraints finds every dof bearing node that lies inside an
active element without being one of its nodes. The node's values are tied
to that element's interpolant, taking the coarsest such element.
*/
func (dm *DofMap) computeHangingConstraints() {
	dm.hanging = make(map[types.DofID][]term)
	pl := dm.mesh.SubPointLocator()
	for _, n := range dm.mesh.Nodes() {
		if dm.NodeDof(n, 0) == types.InvalidID {
			continue
		}
		var host *elem.Elem
		for _, e := range pl.LocateAll(n.Point) {
			if e.LocalNode(n.ID()) >= 0 {
				continue
			}
			if host == nil || e.Level < host.Level {
				host = e
			}
		}
		if host == nil {
			continue
		}
		xi, ok := host.InverseMap(n.Point)
		if !ok {
			panic(fmt.Errorf("hanging node %d does not map into element %d", n.ID(), host.ID()))
		}
		phi, _ := elem.Shape(host.Type, xi)
		for v := 0; v < dm.nVars; v++ {
			var row []term
			for k, p := range phi {
				if math.Abs(p) > 1.e-10 {
					row = append(row, term{dm.NodeDof(host.Nodes[k], v), p})
				}
			}
			dm.hanging[dm.NodeDof(n, v)] = row
		}
	}
}

// NHangingConstraints counts the dofs tied to a coarser neighbor.
func (dm *DofMap) NHangingConstraints() int { return len(dm.hanging) }

// IsConstrainedNode reports whether the dofs of n hang on a coarser element.
func (dm *DofMap) IsConstrainedNode(n *elem.Node) bool {
	d := dm.NodeDof(n, 0)
	_, ok := dm.hanging[d]
	return d != types.InvalidID && ok
}

// PrimalConstraints are the hanging node and Dirichlet constraints of the forward problem.
func (dm *DofMap) PrimalConstraints() *ConstraintSet {
	if dm.primal == nil {
		dm.primal = dm.buildConstraints(dm.dirichletValues(dm.Dirichlet))
	}
	return dm.primal
}

/*
AdjointConstraints holds the constraints of the adjoint of QoI q: the
primal Dirichlet dofs become homogeneous, then any adjoint Dirichlet
boundaries of q impose their own values.
*/
func (dm *DofMap) AdjointConstraints(q int) *ConstraintSet {
	values := dm.dirichletValues(dm.Dirichlet)
	for d := range values {
		values[d] = 0
	}
	for d, v := range dm.dirichletValues(dm.AdjointDirichlet[q]) {
		values[d] = v
	}
	return dm.buildConstraints(values)
}

// HomogeneousConstraints is the primal constraint structure with zero Dirichlet values.
func (dm *DofMap) HomogeneousConstraints() *ConstraintSet {
	values := dm.dirichletValues(dm.Dirichlet)
	for d := range values {
		values[d] = 0
	}
	return dm.buildConstraints(values)
}

// HangingConstraints holds the hanging node rows alone, with no fixed values.
func (dm *DofMap) HangingConstraints() *ConstraintSet {
	return dm.buildConstraints(make(map[types.DofID]float64))
}

func (dm *DofMap) dirichletValues(bcs []DirichletBoundary) (values map[types.DofID]float64) {
	values = make(map[types.DofID]float64)
	for _, db := range bcs {
		nodes := make(map[types.DofID]bool)
		for _, id := range db.BoundaryIDs {
			for nid := range dm.mesh.Boundary.ActiveBoundaryNodes(id) {
				nodes[nid] = true
			}
		}
		for nid := range nodes {
			n := dm.mesh.Node(nid)
			for _, v := range db.Variables {
				if d := dm.NodeDof(n, v); d != types.InvalidID {
					values[d] = db.Value(n.Point, v)
				}
			}
		}
	}
	return
}

func (dm *DofMap) buildConstraints(values map[types.DofID]float64) (cs *ConstraintSet) {
	cs = &ConstraintSet{
		values: values,
		rows:   make(map[types.DofID]resolvedRow),
	}
	var ids []types.DofID
	for d := range dm.hanging {
		ids = append(ids, d)
	}
	slices.Sort(ids)
	for _, d := range ids {
		if _, fixed := values[d]; !fixed {
			cs.resolve(d, dm.hanging, 0)
		}
	}
	return
}
