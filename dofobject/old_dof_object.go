package dofobject

import (
	"fmt"

	"github.com/mfkiwl/libmesh/types"
)

// SetOldDofObject snapshots the current indexing so that solution values can
// be projected after the dofs are renumbered.
func (d *DofObject) SetOldDofObject() {
	old := New()
	old.id, old.uniqueID, old.processorID = d.id, d.uniqueID, d.processorID
	old.idxBuf = append([]types.DofID(nil), d.idxBuf...)
	d.oldDofObject = old
}

func (d *DofObject) OldDofObject() *DofObject { return d.oldDofObject }
func (d *DofObject) ClearOldDofObject()       { d.oldDofObject = nil }

/*
PackedIndexing serializes the processor id, the unique id and the buffer for
exchange between ranks: [len(buf), pid, uid_lo, uid_hi, buf...].
*/
func (d *DofObject) PackedIndexing() (packed []types.DofID) {
	packed = make([]types.DofID, 4, 4+len(d.idxBuf))
	packed[0] = types.DofID(len(d.idxBuf))
	packed[1] = types.DofID(d.processorID)
	packed[2] = types.DofID(uint32(d.uniqueID))
	packed[3] = types.DofID(uint32(d.uniqueID >> 32))
	return append(packed, d.idxBuf...)
}

// UnpackIndexing restores what PackedIndexing wrote and returns the number of entries consumed.
func (d *DofObject) UnpackIndexing(packed []types.DofID) (used int) {
	if len(packed) < 4 || len(packed) < 4+int(packed[0]) {
		panic(fmt.Errorf("packed indexing of length %d is truncated", len(packed)))
	}
	n := int(packed[0])
	d.processorID = types.ProcessorID(packed[1])
	d.uniqueID = types.UniqueID(packed[2]) | types.UniqueID(packed[3])<<32
	d.idxBuf = append([]types.DofID(nil), packed[4:4+n]...)
	return 4 + n
}
