package types

import "strings"

type BCFLAG uint8

const (
	BC_None BCFLAG = iota
	BC_Dirichlet
	BC_Neuman
	BC_AdjointDirichlet
)

var BCNameMap = map[string]BCFLAG{
	"none":             BC_None,
	"dirichlet":        BC_Dirichlet,
	"neuman":           BC_Neuman,
	"neumann":          BC_Neuman,
	"adjointdirichlet": BC_AdjointDirichlet,
	"adjoint":          BC_AdjointDirichlet,
}

func (bf BCFLAG) String() string {
	switch bf {
	case BC_Dirichlet:
		return "Dirichlet"
	case BC_Neuman:
		return "Neuman"
	case BC_AdjointDirichlet:
		return "AdjointDirichlet"
	default:
		return "None"
	}
}

/*
BCTAG is a boundary label of the form "<kind>-<label>", e.g. "Dirichlet-inlet"
or "Neuman-10". The kind is matched case insensitively against BCNameMap.
*/
type BCTAG string

func NewBCTAG(label string) BCTAG { return BCTAG(strings.TrimSpace(label)) }

func (bt BCTAG) GetFLAG() (bf BCFLAG) {
	kind, _, _ := strings.Cut(string(bt), "-")
	return BCNameMap[strings.ToLower(kind)]
}

func (bt BCTAG) GetLabel() (label string) {
	_, label, _ = strings.Cut(string(bt), "-")
	return
}
