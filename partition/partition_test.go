package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/mesh"
	"github.com/mfkiwl/libmesh/types"
)

func countParts(m *mesh.Mesh, nParts int) (counts []int) {
	counts = make([]int, nParts)
	for _, e := range m.ActiveElements() {
		counts[e.ProcessorID()]++
	}
	return
}

func checkNodeOwners(t *testing.T, m *mesh.Mesh) {
	lowest := make(map[types.DofID]types.ProcessorID)
	for _, e := range m.Elements() {
		for _, n := range e.Nodes {
			if pid, ok := lowest[n.ID()]; !ok || e.ProcessorID() < pid {
				lowest[n.ID()] = e.ProcessorID()
			}
		}
	}
	for _, n := range m.Nodes() {
		assert.Equal(t, lowest[n.ID()], n.ProcessorID(), "node %d", n.ID())
	}
}

func TestLinearPartitioner(t *testing.T) {
	m := mesh.BuildLine(10, 0, 1)
	require.NoError(t, LinearPartitioner{}.Partition(m, 3))
	assert.Equal(t, []int{4, 3, 3}, countParts(m, 3))
	for i, e := range m.ActiveElements() {
		want := types.ProcessorID(0)
		switch {
		case i >= 7:
			want = 2
		case i >= 4:
			want = 1
		}
		assert.Equal(t, want, e.ProcessorID())
	}
	checkNodeOwners(t, m)
	assert.Equal(t, types.ProcessorID(0), m.Node(4).ProcessorID())
	assert.Equal(t, types.ProcessorID(1), m.Node(5).ProcessorID())
	assert.Panics(t, func() { _ = LinearPartitioner{}.Partition(m, 0) })
}

func TestMetisGraph(t *testing.T) {
	m := mesh.BuildSquare(3, 3, 0, 1, 0, 1, elem.Quad4)
	mp := NewMetisPartitioner(nil)
	xadj, adjncy, vwgt, adjwgt := mp.buildMetisGraph(m, m.ActiveElements())
	require.Len(t, xadj, 10)
	assert.Equal(t, int32(0), xadj[0])
	// 12 interior sides, each stored from both ends
	assert.Equal(t, int32(24), xadj[9])
	assert.Len(t, adjwgt, 24)
	for _, w := range vwgt {
		assert.Equal(t, int32(4), w)
	}
	for _, w := range adjwgt {
		assert.Equal(t, int32(2), w)
	}
	// The center cell touches all four of its side neighbors
	assert.Equal(t, []int32{1, 3, 5, 7}, adjncy[xadj[4]:xadj[5]])
	for i := 0; i < 9; i++ {
		for _, j := range adjncy[xadj[i]:xadj[i+1]] {
			assert.Contains(t, adjncy[xadj[j]:xadj[j+1]], int32(i))
		}
	}
}

func TestMetisPartitioner(t *testing.T) {
	for _, objective := range []string{"vol", "cut"} {
		m := mesh.BuildSquare(4, 4, 0, 1, 0, 1, elem.Quad4)
		cfg := DefaultMetisConfig()
		cfg.Objective = objective
		require.NoError(t, NewMetisPartitioner(cfg).Partition(m, 2))
		counts := countParts(m, 2)
		assert.Equal(t, 16, counts[0]+counts[1])
		for _, c := range counts {
			assert.InDelta(t, 8, c, 2, "objective %s", objective)
		}
		checkNodeOwners(t, m)
	}

	m := mesh.BuildSquare(1, 2, 0, 1, 0, 1, elem.Quad4)
	require.NoError(t, NewMetisPartitioner(nil).Partition(m, 4))
	assert.Equal(t, []int{1, 1, 0, 0}, countParts(m, 4))
}
