package dofobject

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/mfkiwl/libmesh/types"
)

// Datum lists the fixed size types that can be stored in extra integer slots.
type Datum interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 |
		~float32 | ~float64
}

const slotBytes = int(unsafe.Sizeof(types.DofID(0)))

// SlotsPerDatum is ceil(sizeof(T)/sizeof(DofID)).
func SlotsPerDatum[T Datum]() int {
	var v T
	return (int(unsafe.Sizeof(v)) + slotBytes - 1) / slotBytes
}

/*
SetExtraDatum copies the bytes of value into the extra integer slots starting
at i. A narrower type only overwrites the leading bytes of its slot, a wider
type spans SlotsPerDatum consecutive slots.
*/
func SetExtraDatum[T Datum](d *DofObject, i int, value T) {
	nslots := SlotsPerDatum[T]()
	start := d.checkExtra(i, nslots)
	raw := d.slotBytes(start, nslots)
	if _, err := binary.Encode(raw, binary.LittleEndian, value); err != nil {
		panic(fmt.Errorf("encoding extra datum at %d: %w", i, err))
	}
	for k := 0; k < nslots; k++ {
		d.idxBuf[start+k] = types.DofID(binary.LittleEndian.Uint32(raw[k*slotBytes:]))
	}
}

func GetExtraDatum[T Datum](d *DofObject, i int) (value T) {
	nslots := SlotsPerDatum[T]()
	start := d.checkExtra(i, nslots)
	if _, err := binary.Decode(d.slotBytes(start, nslots), binary.LittleEndian, &value); err != nil {
		panic(fmt.Errorf("decoding extra datum at %d: %w", i, err))
	}
	return
}

func (d *DofObject) slotBytes(start, nslots int) (raw []byte) {
	raw = make([]byte, nslots*slotBytes)
	for k := 0; k < nslots; k++ {
		binary.LittleEndian.PutUint32(raw[k*slotBytes:], uint32(d.idxBuf[start+k]))
	}
	return
}
