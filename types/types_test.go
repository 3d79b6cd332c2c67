package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypes(t *testing.T) {
	{ // Test packed int for edge labeling
		en := NewEdgeKey([2]int{1, 0})
		assert.Equal(t, EdgeKey(1<<32), en)
		assert.Equal(t, [2]int{0, 1}, en.GetVertices(false))

		en = NewEdgeKey([2]int{100, 1})
		assert.Equal(t, EdgeKey(100*(1<<32)+1), en)
		assert.Equal(t, [2]int{1, 100}, en.GetVertices(false))
		assert.Equal(t, [2]int{100, 1}, en.GetVertices(true))

		en = NewEdgeKey([2]int{1<<32 - 1, 1<<32 - 1})
		assert.Equal(t, EdgeKey(1<<64-1), en)
	}
	{ // Side keys do not depend on the local numbering of the side
		k1 := NewSideKey(4, 9, 2)
		assert.Equal(t, k1, NewSideKey(9, 2, 4))
		assert.Equal(t, k1, NewSideKey(2, 4, 9))
		assert.NotEqual(t, k1, NewSideKey(2, 4, 8))

		q := NewSideKey(0, 3, 2, 1)
		assert.Equal(t, q, NewSideKey(1, 2, 3, 0))
		assert.Equal(t, q, NewSideKey(3, 2, 1, 0))

		assert.Equal(t, SideKey(NewEdgeKey([2]int{7, 3})), NewSideKey(3, 7))
	}
	{
		pk := NewParentKey(12, 3, 7)
		assert.Equal(t, pk, NewParentKey(7, 12, 3))
		assert.Equal(t, []DofID{3, 7, 12}, pk.IDs())
	}
	{
		tokens := []string{"Dirichlet-inlet", "neuman-10", "Adjoint-qoi", "wall"}
		flags := []BCFLAG{BC_Dirichlet, BC_Neuman, BC_AdjointDirichlet, BC_None}
		labels := []string{"inlet", "10", "qoi", ""}
		for i, token := range tokens {
			bt := NewBCTAG(token)
			assert.Equal(t, flags[i], bt.GetFLAG())
			assert.Equal(t, labels[i], bt.GetLabel())
		}
	}
	{
		s := GrowSlice([]int{1, 2}, 4)
		assert.Equal(t, []int{1, 2, 0, 0}, s)
		assert.Equal(t, []DofID{InvalidID, InvalidID}, FillSlice(2, InvalidID))
	}
}
