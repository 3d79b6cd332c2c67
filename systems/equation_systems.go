package systems

import (
	"fmt"
	"log"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/mesh"
	"github.com/mfkiwl/libmesh/parallel"
	"github.com/mfkiwl/libmesh/types"
)

var Verbose bool

// EquationSystems groups the systems living on one mesh.
type EquationSystems struct {
	Mesh *mesh.Mesh
	Comm parallel.Communicator

	systems []*System
	byName  map[string]*System
}

func NewEquationSystems(m *mesh.Mesh) *EquationSystems {
	return &EquationSystems{
		Mesh:   m,
		Comm:   parallel.NewSerial(),
		byName: make(map[string]*System),
	}
}

// AddSystem returns the system named name, creating it when needed.
func (es *EquationSystems) AddSystem(name string) *System {
	if sys, ok := es.byName[name]; ok {
		return sys
	}
	sys := newSystem(es, name, len(es.systems))
	es.systems = append(es.systems, sys)
	es.byName[name] = sys
	return sys
}

func (es *EquationSystems) NSystems() int { return len(es.systems) }

func (es *EquationSystems) System(i int) *System { return es.systems[i] }

func (es *EquationSystems) HasSystem(name string) bool {
	_, ok := es.byName[name]
	return ok
}

func (es *EquationSystems) GetSystem(name string) *System {
	sys, ok := es.byName[name]
	if !ok {
		panic(fmt.Errorf("no system named %q", name))
	}
	return sys
}

// Init distributes the dofs of every system and allocates its vectors.
func (es *EquationSystems) Init() {
	for _, sys := range es.systems {
		sys.init()
	}
}

/*
Reinit follows a change of the mesh: dofs are redistributed and every vector
marked for projection is carried over. A node keeps the value of its old
dof; a node created by refinement takes the average of the nodes it was
placed between, which is the first order interpolant there. Vectors not
marked for projection come back zeroed. Hanging node constraints hold on
every projected vector afterwards, and the solution also meets its
Dirichlet values unless ProjectWithConstraints is off.
*/
func (es *EquationSystems) Reinit() {
	nodes := es.Mesh.Nodes()
	for _, n := range nodes {
		n.SetOldDofObject()
	}
	for _, sys := range es.systems {
		sys.reinit()
	}
	for _, n := range nodes {
		n.ClearOldDofObject()
	}
}

func (sys *System) reinit() {
	if !sys.initialized {
		sys.init()
		return
	}
	old := map[string][]float64{}
	if sys.ProjectSolutionOnReinit {
		old[""] = sys.Solution
	}
	for name, v := range sys.vectors {
		if sys.projectVector[name] {
			old[name] = v
		}
	}
	sys.DofMap.DistributeDofs()
	n := sys.NDofs()
	sys.Solution = make([]float64, n)
	for name := range sys.vectors {
		sys.vectors[name] = make([]float64, n)
	}
	if len(old) == 0 {
		return
	}
	hanging := sys.DofMap.HangingConstraints()
	for name, ov := range old {
		nv := sys.projectOld(ov)
		if name == "" {
			if sys.ProjectWithConstraints {
				sys.DofMap.PrimalConstraints().Enforce(nv)
			} else {
				hanging.Enforce(nv)
			}
			sys.Solution = nv
			continue
		}
		hanging.Enforce(nv)
		sys.vectors[name] = nv
	}
}

// projectOld interpolates a vector over the previous dof numbering onto the current one.
func (sys *System) projectOld(ov []float64) (nv []float64) {
	nv = make([]float64, sys.NDofs())
	var missing int
	for _, n := range sys.es.Mesh.Nodes() {
		if sys.DofMap.NodeDof(n, 0) == types.InvalidID {
			continue
		}
		for v := 0; v < sys.NVars(); v++ {
			val, ok := sys.oldNodeValue(n, v, ov, 0)
			if !ok {
				missing++
			}
			nv[sys.DofMap.NodeDof(n, v)] = val
		}
	}
	if missing > 0 {
		log.Printf("warning: system %q: %d values had no previous dof to project from and were zeroed",
			sys.Name, missing)
	}
	return
}

func (sys *System) oldNodeValue(n *elem.Node, v int, ov []float64, depth int) (val float64, ok bool) {
	s := sys.Number
	if od := n.OldDofObject(); od != nil && od.NSystems() > s && od.NVarGroups(s) > 0 && od.NCompGroup(s, 0) > 0 {
		if d := od.DofNumber(s, v, 0); d != types.InvalidID && int(d) < len(ov) {
			return ov[d], true
		}
	}
	parents, isChild := sys.es.Mesh.NodeParents(n.ID())
	if !isChild || depth > 8 {
		return
	}
	for _, pid := range parents {
		p := sys.es.Mesh.QueryNode(pid)
		if p == nil {
			return 0, false
		}
		pv, pok := sys.oldNodeValue(p, v, ov, depth+1)
		if !pok {
			return 0, false
		}
		val += pv
	}
	return val / float64(len(parents)), true
}

// PrintInfo reports the systems, their variables and dof counts.
func (es *EquationSystems) PrintInfo() {
	fmt.Printf("EquationSystems: %d systems\n", len(es.systems))
	for _, sys := range es.systems {
		fmt.Printf("  System %q (#%d): variables %v, %d dofs, %d hanging node constraints, vectors %v\n",
			sys.Name, sys.Number, sys.Variables, sys.NDofs(), sys.DofMap.NHangingConstraints(), sys.VectorNames())
	}
}
