package meshio

import (
	"fmt"
	"os"
	"slices"

	"github.com/ghodss/yaml"

	"github.com/mfkiwl/libmesh/mesh"
	"github.com/mfkiwl/libmesh/types"
)

// ElemsetKey addresses one element's value within one element set.
type ElemsetKey struct {
	Elem types.DofID
	Set  mesh.ElemsetID
}

/*
ElemsetVariable is a real valued field defined on the elements of some
element sets. Values holds one entry per (element, set) pair, so an element
in two of the variable's sets carries two values.
*/
type ElemsetVariable struct {
	Name     string
	Elemsets []mesh.ElemsetID
	Values   map[ElemsetKey]float64
}

type elemsetValueRecord struct {
	Elem  types.DofID    `json:"elem"`
	Set   mesh.ElemsetID `json:"elemset"`
	Value float64        `json:"value"`
}

type elemsetVariableRecord struct {
	Name     string               `json:"name"`
	Elemsets []mesh.ElemsetID     `json:"elemsets"`
	Values   []elemsetValueRecord `json:"values"`
}

type elemsetDataFile struct {
	Variables []elemsetVariableRecord `json:"variables"`
}

// WriteElemsetData stores vars as YAML, values sorted by set and then element.
func WriteElemsetData(filename string, vars []ElemsetVariable) (err error) {
	var file elemsetDataFile
	for _, v := range vars {
		rec := elemsetVariableRecord{Name: v.Name, Elemsets: slices.Sorted(slices.Values(v.Elemsets))}
		for key, val := range v.Values {
			if !slices.Contains(v.Elemsets, key.Set) {
				return fmt.Errorf("variable %s has a value on elemset %d outside its sets %v", v.Name, key.Set, v.Elemsets)
			}
			rec.Values = append(rec.Values, elemsetValueRecord{key.Elem, key.Set, val})
		}
		slices.SortFunc(rec.Values, func(a, b elemsetValueRecord) int {
			if a.Set != b.Set {
				return int(a.Set) - int(b.Set)
			}
			return int(a.Elem) - int(b.Elem)
		})
		file.Variables = append(file.Variables, rec)
	}
	var data []byte
	if data, err = yaml.Marshal(&file); err != nil {
		return
	}
	return os.WriteFile(filename, data, 0644)
}

func ReadElemsetData(filename string) (vars []ElemsetVariable, err error) {
	var data []byte
	if data, err = os.ReadFile(filename); err != nil {
		return
	}
	var file elemsetDataFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}
	for _, rec := range file.Variables {
		v := ElemsetVariable{
			Name:     rec.Name,
			Elemsets: rec.Elemsets,
			Values:   make(map[ElemsetKey]float64, len(rec.Values)),
		}
		for _, val := range rec.Values {
			v.Values[ElemsetKey{val.Elem, val.Set}] = val.Value
		}
		vars = append(vars, v)
	}
	return
}

/*
ElemsetDataIndices numbers the active elements of each element set 0,1,2,...
in increasing element id, the order the Gambit writer lists them in the set's
group. The result maps (element, set) to that position.
*/
func ElemsetDataIndices(m *mesh.Mesh) (indices map[ElemsetKey]int) {
	indices = make(map[ElemsetKey]int)
	next := make(map[mesh.ElemsetID]int)
	for _, e := range m.ActiveElements() {
		for _, set := range m.ElemElemsets(e) {
			indices[ElemsetKey{e.ID(), set}] = next[set]
			next[set]++
		}
	}
	return
}
