package dofobject

import (
	"fmt"
	"strings"

	"github.com/mfkiwl/libmesh/types"
)

/*
DofObject is the indexing record shared by nodes and elements. Everything
except the identity lives in one packed buffer:

	buf[0]                 header: n_systems, or -(n_systems+1) when extra
	                       integers are present
	buf[1 .. n_sys-1]      start index of systems 1 .. n_sys-1
	buf[n_sys]             start index of the extra integers (only when present)
	system data            per variable group a pair (ncv, base) where
	                       ncv = ncvMagic*n_vars + n_comp
	extra integers         opaque per entity data

System 0 always begins immediately after the header.
*/
type DofObject struct {
	id           types.DofID
	uniqueID     types.UniqueID
	processorID  types.ProcessorID
	idxBuf       []types.DofID
	oldDofObject *DofObject
}

const ncvMagic = 256

// MaxComponents is the largest number of components one variable group can carry.
const MaxComponents = ncvMagic - 1

func New() *DofObject {
	return &DofObject{
		id:          types.InvalidID,
		uniqueID:    types.InvalidUniqueID,
		processorID: types.InvalidProcessorID,
	}
}

// Init resets a DofObject embedded by value to the freshly constructed state.
func (d *DofObject) Init() {
	*d = DofObject{
		id:          types.InvalidID,
		uniqueID:    types.InvalidUniqueID,
		processorID: types.InvalidProcessorID,
	}
}

func (d *DofObject) ID() types.DofID      { return d.id }
func (d *DofObject) SetID(id types.DofID) { d.id = id }
func (d *DofObject) ValidID() bool        { return d.id != types.InvalidID }
func (d *DofObject) InvalidateID()        { d.id = types.InvalidID }

func (d *DofObject) UniqueID() types.UniqueID      { return d.uniqueID }
func (d *DofObject) SetUniqueID(id types.UniqueID) { d.uniqueID = id }
func (d *DofObject) ValidUniqueID() bool           { return d.uniqueID != types.InvalidUniqueID }

func (d *DofObject) ProcessorID() types.ProcessorID       { return d.processorID }
func (d *DofObject) SetProcessorID(pid types.ProcessorID) { d.processorID = pid }
func (d *DofObject) ValidProcessorID() bool               { return d.processorID != types.InvalidProcessorID }
func (d *DofObject) InvalidateProcessorID()               { d.processorID = types.InvalidProcessorID }

// Invalidate clears the id, the processor id and every dof base.
func (d *DofObject) Invalidate() {
	d.InvalidateDofs(-1)
	d.InvalidateID()
	d.InvalidateProcessorID()
}

func (d *DofObject) header() int32 { return int32(d.idxBuf[0]) }

func abs32(i int32) int {
	if i < 0 {
		return int(-i)
	}
	return int(i)
}

func (d *DofObject) NSystems() int {
	if len(d.idxBuf) == 0 {
		return 0
	}
	hdr := d.header()
	if hdr >= 0 {
		return int(hdr)
	}
	return int(-hdr - 1)
}

func (d *DofObject) HasExtraIntegers() bool {
	return len(d.idxBuf) != 0 && d.header() < 0
}

func (d *DofObject) startIdx(s int) int { return abs32(int32(d.idxBuf[s])) }

func (d *DofObject) startIdxInts() int { return abs32(int32(d.idxBuf[d.NSystems()])) }

func (d *DofObject) endIdx(s int) int {
	if s+1 == d.NSystems() {
		if d.HasExtraIntegers() {
			return d.startIdxInts()
		}
		return len(d.idxBuf)
	}
	return d.startIdx(s + 1)
}

func (d *DofObject) checkSystem(s int) {
	if ns := d.NSystems(); s < 0 || s >= ns {
		panic(fmt.Errorf("system %d out of range [0,%d)", s, ns))
	}
}

func (d *DofObject) checkGroup(s, vg int) {
	d.checkSystem(s)
	if nvg := d.NVarGroups(s); vg < 0 || vg >= nvg {
		panic(fmt.Errorf("variable group %d out of range [0,%d) in system %d", vg, nvg, s))
	}
}

// unpack splits the buffer into per system pair data and the extra integers.
func (d *DofObject) unpack() (sys [][]types.DofID, ints []types.DofID) {
	ns := d.NSystems()
	sys = make([][]types.DofID, ns)
	for s := 0; s < ns; s++ {
		sys[s] = append([]types.DofID(nil), d.idxBuf[d.startIdx(s):d.endIdx(s)]...)
	}
	if d.HasExtraIntegers() {
		ints = append([]types.DofID(nil), d.idxBuf[d.startIdxInts():]...)
	}
	return
}

// pack rebuilds the buffer from per system pair data and the extra integers.
func (d *DofObject) pack(sys [][]types.DofID, ints []types.DofID) {
	var (
		ns, nei = len(sys), len(ints)
		hs      = ns
	)
	if nei > 0 {
		hs++
	}
	if hs == 0 {
		d.idxBuf = nil
		return
	}
	size := hs + nei
	for _, sd := range sys {
		size += len(sd)
	}
	buf := make([]types.DofID, size)
	if nei > 0 {
		buf[0] = types.DofID(uint32(int32(-hs)))
	} else {
		buf[0] = types.DofID(ns)
	}
	pos := hs
	for s, sd := range sys {
		if s > 0 {
			buf[s] = types.DofID(pos)
		}
		pos += copy(buf[pos:], sd)
	}
	if nei > 0 {
		if ns > 0 {
			buf[ns] = types.DofID(pos)
		}
		copy(buf[pos:], ints)
	}
	d.idxBuf = buf
}

/*
SetNSystems sets the number of systems. Systems below min(old, new) keep their
variable group data, any new systems start empty, and the extra integers are
left untouched.
*/
func (d *DofObject) SetNSystems(ns int) {
	if ns < 0 {
		panic(fmt.Errorf("negative number of systems %d", ns))
	}
	if ns == d.NSystems() {
		return
	}
	sys, ints := d.unpack()
	sys = types.GrowSlice(sys, ns)[:ns]
	d.pack(sys, ints)
}

// AddSystem appends one empty system.
func (d *DofObject) AddSystem() { d.SetNSystems(d.NSystems() + 1) }

func (d *DofObject) NVarGroups(s int) int {
	d.checkSystem(s)
	return (d.endIdx(s) - d.startIdx(s)) / 2
}

// NVarsGroup is the number of variables in group vg of system s.
func (d *DofObject) NVarsGroup(s, vg int) int {
	d.checkGroup(s, vg)
	return int(d.idxBuf[d.startIdx(s)+2*vg] / ncvMagic)
}

// NVars is the total number of variables of system s.
func (d *DofObject) NVars(s int) (nv int) {
	nvg := d.NVarGroups(s)
	for vg := 0; vg < nvg; vg++ {
		nv += d.NVarsGroup(s, vg)
	}
	return
}

/*
SetNVarsPerGroup defines the variable groups of system s. When the group count
is unchanged only the component counts are reset; otherwise the system's pairs
are replaced. Other systems and the extra integers are preserved.
*/
func (d *DofObject) SetNVarsPerGroup(s int, nvpg []int) {
	d.checkSystem(s)
	for vg, nv := range nvpg {
		if nv < 0 {
			panic(fmt.Errorf("negative variable count %d in group %d", nv, vg))
		}
	}
	nvg := len(nvpg)
	if nvg == d.NVarGroups(s) {
		start := d.startIdx(s)
		for vg, nv := range nvpg {
			d.idxBuf[start+2*vg] = types.DofID(ncvMagic*nv) + d.idxBuf[start+2*vg]%ncvMagic
			d.SetNCompGroup(s, vg, 0)
		}
		return
	}
	sys, ints := d.unpack()
	pairs := make([]types.DofID, 2*nvg)
	for vg, nv := range nvpg {
		pairs[2*vg] = types.DofID(ncvMagic * nv)
		pairs[2*vg+1] = types.InvalidID - 1
	}
	sys[s] = pairs
	d.pack(sys, ints)
}

// VarToVG returns the variable group holding variable v and v's offset in it.
func (d *DofObject) VarToVG(s, v int) (vg, vig int) {
	nvg := d.NVarGroups(s)
	first := 0
	for vg = 0; vg < nvg; vg++ {
		nv := d.NVarsGroup(s, vg)
		if v < first+nv {
			return vg, v - first
		}
		first += nv
	}
	panic(fmt.Errorf("variable %d out of range [0,%d) in system %d", v, first, s))
}

func (d *DofObject) NCompGroup(s, vg int) int {
	d.checkGroup(s, vg)
	return int(d.idxBuf[d.startIdx(s)+2*vg] % ncvMagic)
}

func (d *DofObject) NComp(s, v int) int {
	vg, _ := d.VarToVG(s, v)
	return d.NCompGroup(s, vg)
}

/*
SetNCompGroup sets the component count of every variable in group vg. The
group's dof base is reset: invalid for ncomp > 0, or the "no components"
marker InvalidID-1 for ncomp == 0.
*/
func (d *DofObject) SetNCompGroup(s, vg, ncomp int) {
	d.checkGroup(s, vg)
	if ncomp < 0 || ncomp > MaxComponents {
		panic(fmt.Errorf("component count %d out of range [0,%d]", ncomp, MaxComponents))
	}
	if ncomp == d.NCompGroup(s, vg) {
		return
	}
	off := d.startIdx(s) + 2*vg
	d.idxBuf[off] = types.DofID(ncvMagic*d.NVarsGroup(s, vg) + ncomp)
	if ncomp == 0 {
		d.idxBuf[off+1] = types.InvalidID - 1
	} else {
		d.idxBuf[off+1] = types.InvalidID
	}
}

func (d *DofObject) VGDofBase(s, vg int) types.DofID {
	d.checkGroup(s, vg)
	return d.idxBuf[d.startIdx(s)+2*vg+1]
}

func (d *DofObject) SetVGDofBase(s, vg int, base types.DofID) {
	d.checkGroup(s, vg)
	d.idxBuf[d.startIdx(s)+2*vg+1] = base
}

/*
DofNumber is base + vig*n_comp + comp for the group holding variable v. An
invalid base makes every dof of the group invalid.
*/
func (d *DofObject) DofNumber(s, v, comp int) types.DofID {
	vg, vig := d.VarToVG(s, v)
	ncomp := d.NCompGroup(s, vg)
	if comp < 0 || comp >= ncomp {
		panic(fmt.Errorf("component %d out of range [0,%d) for variable %d of system %d",
			comp, ncomp, v, s))
	}
	base := d.idxBuf[d.startIdx(s)+2*vg+1]
	if base == types.InvalidID {
		return types.InvalidID
	}
	return base + types.DofID(vig*ncomp+comp)
}

/*
SetDofNumber stores dn for (s, v, comp). Only the first component of the
first variable of a group is stored; every other call must agree with it.
*/
func (d *DofObject) SetDofNumber(s, v, comp int, dn types.DofID) {
	vg, vig := d.VarToVG(s, v)
	ncomp := d.NCompGroup(s, vg)
	if comp < 0 || comp >= ncomp {
		panic(fmt.Errorf("component %d out of range [0,%d)", comp, ncomp))
	}
	off := d.startIdx(s) + 2*vg + 1
	if comp != 0 || vig != 0 {
		base := d.idxBuf[off]
		if !(dn == types.InvalidID && base == types.InvalidID) &&
			dn != base+types.DofID(vig*ncomp+comp) {
			panic(fmt.Errorf("dof %d for var %d comp %d disagrees with group base %d", dn, v, comp, base))
		}
		return
	}
	d.idxBuf[off] = dn
}

// NDofs counts the dofs of system s; s < 0 counts every system.
func (d *DofObject) NDofs(s int) (n int) {
	if s < 0 {
		for ss := 0; ss < d.NSystems(); ss++ {
			n += d.NDofs(ss)
		}
		return
	}
	for vg := 0; vg < d.NVarGroups(s); vg++ {
		n += d.NVarsGroup(s, vg) * d.NCompGroup(s, vg)
	}
	return
}

// HasDofs reports whether system s has any component; s < 0 asks about every system.
func (d *DofObject) HasDofs(s int) bool {
	if s < 0 {
		for ss := 0; ss < d.NSystems(); ss++ {
			if d.HasDofs(ss) {
				return true
			}
		}
		return false
	}
	for vg := 0; vg < d.NVarGroups(s); vg++ {
		if d.NVarsGroup(s, vg) > 0 && d.NCompGroup(s, vg) > 0 {
			return true
		}
	}
	return false
}

// InvalidateDofs invalidates the dof bases of system s; s < 0 or s >= NSystems covers all of them.
func (d *DofObject) InvalidateDofs(s int) {
	ns := d.NSystems()
	if s < 0 || s >= ns {
		for ss := 0; ss < ns; ss++ {
			d.InvalidateDofs(ss)
		}
		return
	}
	for vg := 0; vg < d.NVarGroups(s); vg++ {
		if d.NCompGroup(s, vg) > 0 {
			d.SetVGDofBase(s, vg, types.InvalidID)
		}
	}
}

// ClearDofs drops every system, preserving the extra integers.
func (d *DofObject) ClearDofs() {
	_, ints := d.unpack()
	d.pack(nil, ints)
}

func (d *DofObject) NExtraIntegers() int {
	if !d.HasExtraIntegers() {
		return 0
	}
	return len(d.idxBuf) - d.startIdxInts()
}

/*
AddExtraIntegers resizes the extra integers to exactly n slots. Existing values
below n are preserved and new slots hold InvalidID.
*/
func (d *DofObject) AddExtraIntegers(n int) {
	if n < 0 {
		panic(fmt.Errorf("negative extra integer count %d", n))
	}
	sys, ints := d.unpack()
	old := len(ints)
	if n <= old {
		ints = ints[:n]
	} else {
		ints = types.GrowSlice(ints, n)
		for i := old; i < n; i++ {
			ints[i] = types.InvalidID
		}
	}
	d.pack(sys, ints)
}

func (d *DofObject) checkExtra(i, nslots int) int {
	nei := d.NExtraIntegers()
	if i < 0 || i+nslots > nei {
		panic(fmt.Errorf("extra integer slots [%d,%d) out of range [0,%d)", i, i+nslots, nei))
	}
	return d.startIdxInts() + i
}

func (d *DofObject) SetExtraInteger(i int, v types.DofID) {
	d.idxBuf[d.checkExtra(i, 1)] = v
}

func (d *DofObject) GetExtraInteger(i int) types.DofID {
	return d.idxBuf[d.checkExtra(i, 1)]
}

// Buffer exposes the packed buffer for debugging and tests.
func (d *DofObject) Buffer() []types.DofID { return d.idxBuf }

// SetBuffer replaces the packed buffer wholesale.
func (d *DofObject) SetBuffer(buf []types.DofID) {
	d.idxBuf = append([]types.DofID(nil), buf...)
}

func (d *DofObject) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "id=%d pid=%d", d.id, d.processorID)
	for s := 0; s < d.NSystems(); s++ {
		fmt.Fprintf(&sb, " sys%d:[", s)
		for vg := 0; vg < d.NVarGroups(s); vg++ {
			if vg > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "(nv=%d nc=%d base=%d)",
				d.NVarsGroup(s, vg), d.NCompGroup(s, vg), d.VGDofBase(s, vg))
		}
		sb.WriteByte(']')
	}
	if d.HasExtraIntegers() {
		fmt.Fprintf(&sb, " extra=%v", d.idxBuf[d.startIdxInts():])
	}
	return sb.String()
}
