package types

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"slices"
)

/*
EdgeKey is an always positive number that stores an edge's vertices as indices in a way that can be compared
An edge between vertices [4] and [0] will always be stored as [0,4], in the ascending order of the index values
*/
type EdgeKey uint64

func NewEdgeKey(verts [2]int) (packed EdgeKey) {
	var (
		limit = math.MaxUint32
	)
	for _, vert := range verts {
		if vert < 0 || vert > limit {
			panic(fmt.Errorf("unable to pack two ints into a uint64, have %d and %d as inputs",
				verts[0], verts[1]))
		}
	}
	var i1, i2 int
	if verts[0] <= verts[1] {
		i1, i2 = verts[0], verts[1]
	} else {
		i1, i2 = verts[1], verts[0]
	}
	packed = EdgeKey(i1 + i2<<32)
	return
}

func (ek EdgeKey) GetVertices(rev bool) (verts [2]int) {
	var (
		enTmp EdgeKey
	)
	enTmp = ek >> 32
	verts[1] = int(enTmp)
	verts[0] = int(ek - enTmp*(1<<32))
	if rev {
		verts[0], verts[1] = verts[1], verts[0]
	}
	return
}

/*
SideKey is an order independent hash of a set of node ids. Two elements that
share a side produce the same SideKey for it, no matter how each of them
numbers the side's nodes locally. Distinct node sets can collide, so callers
that need certainty compare the sorted ids as well.
*/
type SideKey uint64

func NewSideKey(ids ...DofID) SideKey {
	sorted := SortedIDs(ids)
	if len(sorted) == 2 {
		return SideKey(NewEdgeKey([2]int{int(sorted[0]), int(sorted[1])}))
	}
	h := fnv.New64a()
	var b [4]byte
	for _, id := range sorted {
		binary.LittleEndian.PutUint32(b[:], uint32(id))
		h.Write(b[:])
	}
	return SideKey(h.Sum64())
}

// SortedIDs returns a sorted copy of ids.
func SortedIDs(ids []DofID) []DofID {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return sorted
}

/*
ParentKey identifies a node created by refinement through the exact set of
parent nodes it was averaged from. Unlike SideKey it never collides.
*/
type ParentKey string

func NewParentKey(ids ...DofID) ParentKey {
	sorted := SortedIDs(ids)
	buf := make([]byte, 4*len(sorted))
	for i, id := range sorted {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(id))
	}
	return ParentKey(buf)
}

func (pk ParentKey) IDs() (ids []DofID) {
	ids = make([]DofID, len(pk)/4)
	for i := range ids {
		ids[i] = DofID(binary.LittleEndian.Uint32([]byte(pk[4*i : 4*i+4])))
	}
	return
}
