package elem

import (
	"fmt"
	"strings"
)

type ElemType uint8

const (
	NodeElem ElemType = iota
	Edge2
	Tri3
	TriShell3
	Quad4
	QuadShell4
	Tet4
	Hex8
	Prism6
	Pyramid5
	InvalidElem
)

func (et ElemType) String() string {
	switch et {
	case NodeElem:
		return "NodeElem"
	case Edge2:
		return "Edge2"
	case Tri3:
		return "Tri3"
	case TriShell3:
		return "TriShell3"
	case Quad4:
		return "Quad4"
	case QuadShell4:
		return "QuadShell4"
	case Tet4:
		return "Tet4"
	case Hex8:
		return "Hex8"
	case Prism6:
		return "Prism6"
	case Pyramid5:
		return "Pyramid5"
	default:
		return "InvalidElem"
	}
}

// NewElemType parses names like "QUAD4", "quad4" or "Tri3".
func NewElemType(name string) (et ElemType, err error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	for t := NodeElem; t < InvalidElem; t++ {
		if strings.ToUpper(t.String()) == key {
			return t, nil
		}
	}
	return InvalidElem, fmt.Errorf("unknown element type %q", name)
}

// Base maps shell variants onto the element they share topology with.
func (et ElemType) Base() ElemType {
	switch et {
	case TriShell3:
		return Tri3
	case QuadShell4:
		return Quad4
	}
	return et
}

func (et ElemType) Valid() bool { return et < InvalidElem }

// Simplex reports whether the master element is a unit simplex. The master
// edge is [-1,1] and does not count.
func (et ElemType) Simplex() bool {
	switch et.Base() {
	case Tri3, Tet4:
		return true
	}
	return false
}
