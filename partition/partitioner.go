package partition

import (
	"fmt"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/mesh"
	"github.com/mfkiwl/libmesh/parallel"
	"github.com/mfkiwl/libmesh/types"
)

// Partitioner assigns a processor id to every element and node of a mesh.
type Partitioner interface {
	Partition(m *mesh.Mesh, nParts int) error
}

/*
assign stores the active element owners in parts, ordered like active, then
derives the rest: an ancestor belongs to the lowest owner among its children
and a node to the lowest owner among the elements using it.
*/
func assign(m *mesh.Mesh, active []*elem.Elem, parts []int) {
	if len(parts) != len(active) {
		panic(fmt.Errorf("%d owners for %d active elements", len(parts), len(active)))
	}
	for i, e := range active {
		e.SetProcessorID(types.ProcessorID(parts[i]))
	}
	elems := m.Elements()
	for level := m.NLevels() - 1; level >= 0; level-- {
		for _, e := range elems {
			if e.Level != level || e.Active() {
				continue
			}
			pid := types.InvalidProcessorID
			for _, c := range m.Children(e) {
				pid = min(pid, c.ProcessorID())
			}
			e.SetProcessorID(pid)
		}
	}
	for _, n := range m.Nodes() {
		n.InvalidateProcessorID()
	}
	for _, e := range elems {
		for _, n := range e.Nodes {
			if !n.ValidProcessorID() || e.ProcessorID() < n.ProcessorID() {
				n.SetProcessorID(e.ProcessorID())
			}
		}
	}
}

func checkParts(nParts int) {
	if nParts < 1 || nParts >= int(types.InvalidProcessorID) {
		panic(fmt.Errorf("number of partitions %d out of range [1,%d)", nParts, types.InvalidProcessorID))
	}
}

// LinearPartitioner hands out the active elements in id order as contiguous, even blocks.
type LinearPartitioner struct{}

func (LinearPartitioner) Partition(m *mesh.Mesh, nParts int) error {
	checkParts(nParts)
	active := m.ActiveElements()
	pm := parallel.NewPartitionMap(nParts, len(active))
	parts := make([]int, len(active))
	for i := range active {
		parts[i] = pm.Owner(i)
	}
	assign(m, active, parts)
	return nil
}
