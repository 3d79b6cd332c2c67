package meshio

import (
	"fmt"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/types"
)

type elemSide struct {
	e *elem.Elem
	s int
}

// sideIndex finds the element sides that boundary records of a mesh file name by their nodes.
type sideIndex map[string][]elemSide

// sideKey compares exact node sets, where types.SideKey may collide.
func sideKey(ids []types.DofID) string { return fmt.Sprint(types.SortedIDs(ids)) }

func (si sideIndex) add(e *elem.Elem) {
	for s, sn := range e.Topology().SideNodes {
		ids := make([]types.DofID, len(sn))
		for k, ln := range sn {
			ids[k] = e.NodeID(ln)
		}
		key := sideKey(ids)
		si[key] = append(si[key], elemSide{e, s})
	}
}

// find returns the one side with exactly the nodes ids.
func (si sideIndex) find(ids []types.DofID) (es elemSide, err error) {
	owners := si[sideKey(ids)]
	if len(owners) != 1 {
		return es, fmt.Errorf("nodes %v match %d element sides, want one", ids, len(owners))
	}
	return owners[0], nil
}
