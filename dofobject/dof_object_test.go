package dofobject

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfkiwl/libmesh/types"
)

func TestIdentity(t *testing.T) {
	d := New()
	assert.False(t, d.ValidID())
	assert.False(t, d.ValidProcessorID())
	d.SetID(1)
	assert.Equal(t, types.DofID(1), d.ID())
	assert.True(t, d.ValidID())
	d.SetID(0)
	assert.True(t, d.ValidID(), "zero is a valid id")
	d.SetID(types.InvalidID)
	assert.False(t, d.ValidID())
	d.SetID(3)
	d.InvalidateID()
	assert.False(t, d.ValidID())

	d.SetProcessorID(0)
	assert.True(t, d.ValidProcessorID())
	assert.Equal(t, types.ProcessorID(0), d.ProcessorID())
	d.SetProcessorID(types.InvalidProcessorID)
	assert.False(t, d.ValidProcessorID())
	d.SetProcessorID(2)
	d.InvalidateProcessorID()
	assert.False(t, d.ValidProcessorID())
}

func TestSetNVariableGroups(t *testing.T) {
	d := New()
	d.SetNSystems(10)
	assert.Equal(t, 10, d.NSystems())

	d = New()
	d.SetNSystems(2)
	nvpg := []int{10, 20, 30}
	d.SetNVarsPerGroup(0, nvpg)
	d.SetNVarsPerGroup(1, nvpg)
	for s := 0; s < 2; s++ {
		assert.Equal(t, 60, d.NVars(s))
		assert.Equal(t, 3, d.NVarGroups(s))
		for vg := 0; vg < 3; vg++ {
			assert.Equal(t, nvpg[vg], d.NVarsGroup(s, vg))
		}
	}
}

func TestAddExtraData(t *testing.T) {
	d := New()
	d.AddExtraIntegers(9)
	assert.True(t, d.HasExtraIntegers())
	assert.Equal(t, 9, d.NExtraIntegers())

	intsPerReal := SlotsPerDatum[float64]()
	assert.Equal(t, 2, intsPerReal)
	assert.Equal(t, 1, SlotsPerDatum[int8]())

	for i := 0; i < 9; i++ {
		assert.Equal(t, types.InvalidID, d.GetExtraInteger(i))
	}
	for i := 0; i < 9; i++ {
		if i == 1 {
			SetExtraDatum[int8](d, i, '1')
		}
		if i == 2 {
			SetExtraDatum(d, i, math.Pi)
		}
		if i < 1 || i >= 2+intsPerReal {
			d.SetExtraInteger(i, types.DofID(i))
			assert.Equal(t, types.DofID(i), d.GetExtraInteger(i))
		}
	}

	d.AddExtraIntegers(6)
	assert.True(t, d.HasExtraIntegers())
	assert.Equal(t, 6, d.NExtraIntegers())
	for i := 0; i < 6; i++ {
		if i == 1 {
			assert.Equal(t, int8('1'), GetExtraDatum[int8](d, i))
		}
		if i == 2 {
			assert.Equal(t, math.Float64bits(math.Pi), math.Float64bits(GetExtraDatum[float64](d, i)))
		}
		if i < 1 || i >= 2+intsPerReal {
			assert.Equal(t, types.DofID(i), d.GetExtraInteger(i))
		}
	}
}

func TestExtraDatumRoundTrip(t *testing.T) {
	d := New()
	d.SetNSystems(1)
	d.SetNVarsPerGroup(0, []int{2})
	d.AddExtraIntegers(4)
	for _, x := range []float64{math.Pi, -0.0, math.Inf(1), math.SmallestNonzeroFloat64, 1e300} {
		SetExtraDatum(d, 1, x)
		assert.Equal(t, math.Float64bits(x), math.Float64bits(GetExtraDatum[float64](d, 1)))
	}
	SetExtraDatum(d, 0, float32(2.5))
	assert.Equal(t, float32(2.5), GetExtraDatum[float32](d, 0))
	SetExtraDatum(d, 3, uint16(65000))
	assert.Equal(t, uint16(65000), GetExtraDatum[uint16](d, 3))
	assert.Equal(t, 2, d.NVars(0), "extra data does not disturb the systems")

	assert.Panics(t, func() { SetExtraDatum(d, 3, math.Pi) }, "a Real needs two slots")
	assert.Panics(t, func() { d.GetExtraInteger(4) })
}

func TestAddSystemExtraInts(t *testing.T) {
	d := New()
	d.AddExtraIntegers(1)
	d.AddSystem()
	assert.True(t, d.HasExtraIntegers())
	assert.Equal(t, 1, d.NExtraIntegers())
	assert.Equal(t, 1, d.NSystems())
	assert.Equal(t, 0, d.NVars(0))

	d.AddExtraIntegers(4)
	d.AddSystem()
	assert.Equal(t, 4, d.NExtraIntegers())
	assert.Equal(t, 2, d.NSystems())
	assert.Equal(t, 0, d.NVars(0))
	assert.Equal(t, 0, d.NVars(1))
	for i := 0; i < 4; i++ {
		assert.Equal(t, types.InvalidID, d.GetExtraInteger(i))
		d.SetExtraInteger(i, types.DofID(i))
		assert.Equal(t, types.DofID(i), d.GetExtraInteger(i))
	}

	d.AddExtraIntegers(7)
	for i := 0; i < 4; i++ {
		assert.Equal(t, types.DofID(i), d.GetExtraInteger(i))
	}
	for i := 4; i < 7; i++ {
		assert.Equal(t, types.InvalidID, d.GetExtraInteger(i))
	}

	d.AddSystem()
	assert.Equal(t, 7, d.NExtraIntegers())
	for i := 4; i < 7; i++ {
		assert.Equal(t, types.InvalidID, d.GetExtraInteger(i))
		d.SetExtraInteger(i, types.DofID(i))
	}
	assert.Equal(t, 3, d.NSystems())
	for s := 0; s < 3; s++ {
		assert.Equal(t, 0, d.NVars(s))
	}
	for i := 0; i < 7; i++ {
		assert.Equal(t, types.DofID(i), d.GetExtraInteger(i))
	}
}

func TestSetNSystemsExtraInts(t *testing.T) {
	d := New()
	d.AddExtraIntegers(5)
	d.SetNSystems(10)
	assert.True(t, d.HasExtraIntegers())
	assert.Equal(t, 5, d.NExtraIntegers())
	assert.Equal(t, 10, d.NSystems())
	for i := 0; i < 5; i++ {
		assert.Equal(t, types.InvalidID, d.GetExtraInteger(i))
		d.SetExtraInteger(i, types.DofID(i))
	}

	d.AddExtraIntegers(9)
	for i := 0; i < 5; i++ {
		assert.Equal(t, types.DofID(i), d.GetExtraInteger(i))
	}
	for i := 5; i < 9; i++ {
		assert.Equal(t, types.InvalidID, d.GetExtraInteger(i))
	}

	d.SetNSystems(6)
	assert.Equal(t, 9, d.NExtraIntegers())
	for i := 5; i < 9; i++ {
		assert.Equal(t, types.InvalidID, d.GetExtraInteger(i))
		d.SetExtraInteger(i, types.DofID(i))
	}
	assert.Equal(t, 6, d.NSystems())
	for i := 0; i < 9; i++ {
		assert.Equal(t, types.DofID(i), d.GetExtraInteger(i))
	}
}

func TestSetNVariableGroupsExtraInts(t *testing.T) {
	d := New()
	d.SetNSystems(2)
	d.AddExtraIntegers(5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, types.InvalidID, d.GetExtraInteger(i))
		d.SetExtraInteger(i, types.DofID(i))
	}
	nvpg := []int{10, 20, 30}
	d.SetNVarsPerGroup(0, nvpg)
	d.SetNVarsPerGroup(1, nvpg)
	for s := 0; s < 2; s++ {
		assert.Equal(t, 60, d.NVars(s))
		assert.Equal(t, 3, d.NVarGroups(s))
		for vg := 0; vg < 3; vg++ {
			assert.Equal(t, nvpg[vg], d.NVarsGroup(s, vg))
		}
	}
	assert.Equal(t, 5, d.NExtraIntegers())
	for i := 0; i < 5; i++ {
		assert.Equal(t, types.DofID(i), d.GetExtraInteger(i))
	}
}

func manualObject() *DofObject {
	d := New()
	d.SetNSystems(2)
	nvpg := []int{2, 3}
	d.SetNVarsPerGroup(0, nvpg)
	d.SetNVarsPerGroup(1, nvpg)
	d.SetNCompGroup(0, 0, 1)
	d.SetNCompGroup(0, 1, 3)
	d.SetNCompGroup(1, 0, 2)
	d.SetNCompGroup(1, 1, 1)
	d.SetVGDofBase(0, 0, 0)
	d.SetVGDofBase(0, 1, 120)
	d.SetVGDofBase(1, 0, 20)
	d.SetVGDofBase(1, 1, 220)
	return d
}

func TestManualDofCalculation(t *testing.T) {
	d := manualObject()
	assert.Equal(t, types.DofID(0), d.DofNumber(0, 0, 0))
	assert.Equal(t, d.VGDofBase(0, 0)+1*1+0, d.DofNumber(0, 1, 0))
	assert.Equal(t, d.VGDofBase(0, 1)+2*3+2, d.DofNumber(0, 4, 2))
	assert.Equal(t, d.VGDofBase(1, 1)+0*1+0, d.DofNumber(1, 2, 0))
	assert.Equal(t, d.VGDofBase(1, 0)+1*2+1, d.DofNumber(1, 1, 1))

	assert.Equal(t, 2*1+3*3, d.NDofs(0))
	assert.Equal(t, 2*2+3*1, d.NDofs(1))
	assert.Equal(t, 18, d.NDofs(-1))
	assert.True(t, d.HasDofs(-1))

	assert.Panics(t, func() { d.DofNumber(0, 0, 1) }, "component out of range")
	assert.Panics(t, func() { d.DofNumber(0, 5, 0) }, "variable out of range")
	assert.Panics(t, func() { d.DofNumber(2, 0, 0) }, "system out of range")
}

func TestDofNumbersIncreaseWithinGroups(t *testing.T) {
	d := manualObject()
	for s := 0; s < d.NSystems(); s++ {
		v := 0
		for vg := 0; vg < d.NVarGroups(s); vg++ {
			prev := d.VGDofBase(s, vg)
			first := true
			for vig := 0; vig < d.NVarsGroup(s, vg); vig++ {
				for c := 0; c < d.NCompGroup(s, vg); c++ {
					dn := d.DofNumber(s, v, c)
					if first {
						assert.Equal(t, prev, dn)
						first = false
					} else {
						assert.Equal(t, prev+1, dn, "no gaps inside a group")
					}
					prev = dn
				}
				v++
			}
		}
	}
}

func TestSetDofNumber(t *testing.T) {
	d := New()
	d.SetNSystems(1)
	d.SetNVarsPerGroup(0, []int{2})
	d.SetNCompGroup(0, 0, 2)
	assert.Equal(t, types.InvalidID, d.DofNumber(0, 1, 1))
	d.SetDofNumber(0, 0, 0, 40)
	assert.Equal(t, types.DofID(43), d.DofNumber(0, 1, 1))
	assert.NotPanics(t, func() { d.SetDofNumber(0, 1, 0, 42) })
	assert.Panics(t, func() { d.SetDofNumber(0, 1, 0, 7) })

	d.InvalidateDofs(-1)
	assert.Equal(t, types.InvalidID, d.DofNumber(0, 1, 1))
	assert.True(t, d.HasDofs(0))

	d.AddExtraIntegers(2)
	d.SetExtraInteger(1, 5)
	d.ClearDofs()
	assert.Equal(t, 0, d.NSystems())
	assert.Equal(t, types.DofID(5), d.GetExtraInteger(1))
}

func TestSetNVarsPerGroupKeepsOtherSystems(t *testing.T) {
	d := manualObject()
	d.AddExtraIntegers(3)
	d.SetExtraInteger(2, 77)
	d.SetNVarsPerGroup(0, []int{1, 1, 1})
	assert.Equal(t, 3, d.NVarGroups(0))
	assert.Equal(t, 0, d.NCompGroup(0, 2))
	assert.Equal(t, types.DofID(220), d.DofNumber(1, 2, 0))
	assert.Equal(t, types.DofID(77), d.GetExtraInteger(2))

	// same group count: components reset, counts updated
	d.SetNVarsPerGroup(1, []int{4, 1})
	assert.Equal(t, 5, d.NVars(1))
	assert.Equal(t, 0, d.NCompGroup(1, 0))
	assert.False(t, d.HasDofs(1))

	// negative counts panic before anything is touched, whatever the group count
	assert.Panics(t, func() { d.SetNVarsPerGroup(1, []int{-1, 1}) })
	assert.Panics(t, func() { d.SetNVarsPerGroup(1, []int{2, 2, -3}) })
	assert.Equal(t, 2, d.NVarGroups(1))
	assert.Equal(t, 5, d.NVars(1))

	d.AddSystem()
	assert.Equal(t, 3, d.NSystems())
	assert.Equal(t, 5, d.NVars(1))
	assert.Equal(t, types.DofID(77), d.GetExtraInteger(2))
}

func TestJensEftangBug(t *testing.T) {
	// Buffer layouts of two nodes that once produced wrong dof numbers
	d1 := New()
	d1.SetBuffer([]types.DofID{2, 8, 257, 0, 257, 96, 257, 192, 257, 0})
	assert.Equal(t, types.DofID(0), d1.DofNumber(0, 0, 0))
	assert.Equal(t, types.DofID(96), d1.DofNumber(0, 1, 0))
	assert.Equal(t, types.DofID(192), d1.DofNumber(0, 2, 0))
	assert.Equal(t, types.DofID(0), d1.DofNumber(1, 0, 0))

	d2 := New()
	d2.SetBuffer([]types.DofID{2, 8, 257, 1, 257, 97, 257, 193, 257, 1})
	assert.Equal(t, types.DofID(1), d2.DofNumber(0, 0, 0))
	assert.Equal(t, types.DofID(97), d2.DofNumber(0, 1, 0))
	assert.Equal(t, types.DofID(193), d2.DofNumber(0, 2, 0))
	assert.Equal(t, types.DofID(1), d2.DofNumber(1, 0, 0))
}

func TestPackedIndexing(t *testing.T) {
	d := manualObject()
	d.SetProcessorID(3)
	d.SetUniqueID(1<<40 + 17)
	d.AddExtraIntegers(2)
	d.SetExtraInteger(0, 9)
	packed := append(d.PackedIndexing(), 1234)

	r := New()
	used := r.UnpackIndexing(packed)
	require.Equal(t, len(packed)-1, used)
	assert.Equal(t, types.ProcessorID(3), r.ProcessorID())
	assert.Equal(t, types.UniqueID(1<<40+17), r.UniqueID())
	assert.Equal(t, d.DofNumber(0, 4, 2), r.DofNumber(0, 4, 2))
	assert.Equal(t, types.DofID(9), r.GetExtraInteger(0))

	d.SetOldDofObject()
	d.SetVGDofBase(0, 1, 500)
	assert.Equal(t, types.DofID(120), d.OldDofObject().VGDofBase(0, 1))
	d.ClearOldDofObject()
	assert.Nil(t, d.OldDofObject())
}
