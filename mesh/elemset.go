package mesh

import (
	"fmt"
	"slices"
	"sort"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/types"
)

// ElemsetID names one element set.
type ElemsetID int32

// ElemsetCodeName is the element integer holding each element's elemset code.
const ElemsetCodeName = "elemset_code"

/*
An elemset code stands for one exact combination of element sets. Elements
store the code in the ElemsetCodeName integer; InvalidID means no set.
*/
type elemsetTable struct {
	sets  map[types.DofID][]ElemsetID
	codes map[string]types.DofID
}

func newElemsetTable() *elemsetTable {
	return &elemsetTable{
		sets:  make(map[types.DofID][]ElemsetID),
		codes: make(map[string]types.DofID),
	}
}

func elemsetKey(ids []ElemsetID) string { return fmt.Sprint(ids) }

func normalizeElemsets(ids []ElemsetID) []ElemsetID {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	return slices.Compact(ids)
}

// AddElemsetCode binds code to the set combination ids. Rebinding either side differently panics.
func (m *Mesh) AddElemsetCode(code types.DofID, ids []ElemsetID) {
	if code == types.InvalidID {
		panic(fmt.Errorf("the invalid id cannot be an elemset code"))
	}
	ids = normalizeElemsets(ids)
	key := elemsetKey(ids)
	if old, ok := m.elemsets.sets[code]; ok && elemsetKey(old) != key {
		panic(fmt.Errorf("elemset code %d already stands for %v, not %v", code, old, ids))
	}
	if old, ok := m.elemsets.codes[key]; ok && old != code {
		panic(fmt.Errorf("elemsets %v already have code %d, not %d", ids, old, code))
	}
	m.elemsets.sets[code] = ids
	m.elemsets.codes[key] = code
	m.AddElemInteger(ElemsetCodeName)
}

// GetElemsets returns the sets a code stands for, nil for InvalidID.
func (m *Mesh) GetElemsets(code types.DofID) []ElemsetID {
	if code == types.InvalidID {
		return nil
	}
	ids, ok := m.elemsets.sets[code]
	if !ok {
		panic(fmt.Errorf("unknown elemset code %d", code))
	}
	return ids
}

// GetElemsetCode returns the code of a set combination, InvalidID when it has none.
func (m *Mesh) GetElemsetCode(ids []ElemsetID) types.DofID {
	if code, ok := m.elemsets.codes[elemsetKey(normalizeElemsets(ids))]; ok {
		return code
	}
	return types.InvalidID
}

// ElemsetCodes lists the known codes in increasing order.
func (m *Mesh) ElemsetCodes() (codes []types.DofID) {
	for code := range m.elemsets.sets {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return
}

// ElemsetIDs lists every set id used by some code.
func (m *Mesh) ElemsetIDs() (ids []ElemsetID) {
	for _, set := range m.elemsets.sets {
		ids = append(ids, set...)
	}
	return normalizeElemsets(ids)
}

func (m *Mesh) NElemsets() int { return len(m.ElemsetIDs()) }

// ElemElemsets lists the sets e belongs to.
func (m *Mesh) ElemElemsets(e *elem.Elem) []ElemsetID {
	idx, ok := m.ElemIntegerIndex(ElemsetCodeName)
	if !ok {
		return nil
	}
	return m.GetElemsets(e.GetExtraInteger(idx))
}

/*
SetElemElemsets stores the code for ids on e, creating the next free code
when the combination is new.
*/
func (m *Mesh) SetElemElemsets(e *elem.Elem, ids []ElemsetID) {
	idx := m.AddElemInteger(ElemsetCodeName)
	if len(ids) == 0 {
		e.SetExtraInteger(idx, types.InvalidID)
		return
	}
	code := m.GetElemsetCode(ids)
	if code == types.InvalidID {
		code = 0
		for _, c := range m.ElemsetCodes() {
			if c >= code {
				code = c + 1
			}
		}
		m.AddElemsetCode(code, ids)
	}
	e.SetExtraInteger(idx, code)
}

/*
CanonicalElemsetCodes assigns codes 0,1,2,... to the set combinations in combos
ordered lexicographically, the way readers number them.
*/
func CanonicalElemsetCodes(combos [][]ElemsetID) (codes map[string]types.DofID, ordered [][]ElemsetID) {
	seen := make(map[string]bool)
	for _, c := range combos {
		c = normalizeElemsets(c)
		if len(c) == 0 || seen[elemsetKey(c)] {
			continue
		}
		seen[elemsetKey(c)] = true
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool { return slices.Compare(ordered[i], ordered[j]) < 0 })
	codes = make(map[string]types.DofID, len(ordered))
	for i, c := range ordered {
		codes[elemsetKey(c)] = types.DofID(i)
	}
	return
}
