package partition

import (
	"fmt"
	"log"
	"math"
	"slices"

	metis "github.com/notargets/go-metis"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/mesh"
	"github.com/mfkiwl/libmesh/types"
)

// MetisConfig holds the METIS k-way settings.
type MetisConfig struct {
	ImbalanceFactor  float32 // e.g., 1.05 for 5% imbalance
	UseEdgeWeights   bool
	UseVertexWeights bool
	Objective        string // "cut" or "vol"
	Verbose          bool
}

func DefaultMetisConfig() *MetisConfig {
	return &MetisConfig{
		ImbalanceFactor:  1.05,
		UseEdgeWeights:   true,
		UseVertexWeights: true,
		Objective:        "vol", // minimize communication volume
	}
}

/*
MetisPartitioner partitions the dual graph of the active elements: one graph
vertex per active element weighted by its compute cost, one graph edge per
pair of active elements sharing a side, weighted by the side's node count.
Elements across a refinement level mismatch are connected too.
*/
type MetisPartitioner struct {
	Config *MetisConfig

	ComputeCost func(et elem.ElemType) int32
	CommCost    func(sideNodes int) int32
}

func NewMetisPartitioner(config *MetisConfig) *MetisPartitioner {
	if config == nil {
		config = DefaultMetisConfig()
	}
	return &MetisPartitioner{
		Config: config,
		ComputeCost: func(et elem.ElemType) int32 {
			// Relative cost follows the vertex count of the linear element
			return int32(elem.GetTopology(et).NNodes)
		},
		CommCost: func(sideNodes int) int32 { return int32(sideNodes) },
	}
}

func (mp *MetisPartitioner) Partition(m *mesh.Mesh, nParts int) error {
	checkParts(nParts)
	active := m.ActiveElements()
	if nParts == 1 || len(active) <= nParts {
		// Nothing for METIS to balance
		return LinearPartitioner{}.Partition(m, nParts)
	}
	if mp.Config.Verbose {
		log.Printf("Partitioning mesh with %d active elements into %d parts", len(active), nParts)
	}
	xadj, adjncy, vwgt, adjwgt := mp.buildMetisGraph(m, active)

	opts := make([]int32, metis.NoOptions)
	if err := metis.SetDefaultOptions(opts); err != nil {
		return fmt.Errorf("failed to set METIS options: %w", err)
	}
	if mp.Config.Objective == "vol" {
		opts[metis.OptionObjType] = metis.ObjTypeVol
	} else {
		opts[metis.OptionObjType] = metis.ObjTypeCut
	}
	ubvec := []float32{mp.Config.ImbalanceFactor}
	var vwgtPtr, adjwgtPtr []int32
	if mp.Config.UseVertexWeights {
		vwgtPtr = vwgt
	}
	if mp.Config.UseEdgeWeights {
		adjwgtPtr = adjwgt
	}
	part, objval, err := metis.PartGraphKwayWeighted(
		xadj, adjncy, vwgtPtr, adjwgtPtr,
		int32(nParts), nil, ubvec, opts,
	)
	if err != nil {
		return fmt.Errorf("METIS partitioning failed: %w", err)
	}
	parts := make([]int, len(active))
	for i := range parts {
		parts[i] = int(part[i])
	}
	assign(m, active, parts)
	if mp.Config.Verbose {
		mp.analyzePartition(m, active, parts, nParts, objval)
	}
	return nil
}

// activeNeighbors lists the active elements across each side of active element e.
func activeNeighbors(m *mesh.Mesh, e *elem.Elem) (nbs [][]*elem.Elem) {
	nbs = make([][]*elem.Elem, e.NSides())
	for s, id := range e.NeighborIDs {
		if id == types.InvalidID {
			continue
		}
		f := m.Elem(id)
		if f.Active() {
			nbs[s] = []*elem.Elem{f}
			continue
		}
		nbs[s] = m.ActiveFamilyTreeByNeighbor(f, e)
	}
	return
}

// buildMetisGraph converts the active element connectivity to CSR form.
func (mp *MetisPartitioner) buildMetisGraph(m *mesh.Mesh, active []*elem.Elem) (xadj, adjncy, vwgt, adjwgt []int32) {
	index := make(map[types.DofID]int32, len(active))
	for i, e := range active {
		index[e.ID()] = int32(i)
	}
	// Links seen from the finer side only are added to the coarse side as well
	adj := make([]map[int32]int32, len(active))
	for i := range adj {
		adj[i] = make(map[int32]int32)
	}
	for i, e := range active {
		for s, nbs := range activeNeighbors(m, e) {
			cost := mp.CommCost(len(e.Topology().SideNodes[s]))
			for _, f := range nbs {
				j := index[f.ID()]
				adj[i][j] = max(adj[i][j], cost)
				adj[j][int32(i)] = max(adj[j][int32(i)], cost)
			}
		}
	}
	xadj = make([]int32, len(active)+1)
	vwgt = make([]int32, len(active))
	for i, e := range active {
		vwgt[i] = mp.ComputeCost(e.Type)
		nbrs := make([]int32, 0, len(adj[i]))
		for j := range adj[i] {
			nbrs = append(nbrs, j)
		}
		slices.Sort(nbrs)
		for _, j := range nbrs {
			adjncy = append(adjncy, j)
			adjwgt = append(adjwgt, adj[i][j])
		}
		xadj[i+1] = int32(len(adjncy))
	}
	return
}

// PartitionStats holds statistics for a single partition
type PartitionStats struct {
	ID           int
	NumElements  int
	ComputeLoad  int64
	ElementTypes map[elem.ElemType]int
	NumNeighbors map[int]int // neighbor partition -> shared sides
}

func (mp *MetisPartitioner) analyzePartition(m *mesh.Mesh, active []*elem.Elem, parts []int, nParts int, objval int32) {
	stats := make([]PartitionStats, nParts)
	for i := range stats {
		stats[i] = PartitionStats{ID: i, ElementTypes: make(map[elem.ElemType]int), NumNeighbors: make(map[int]int)}
	}
	partOf := make(map[types.DofID]int, len(active))
	for i, e := range active {
		partOf[e.ID()] = parts[i]
		st := &stats[parts[i]]
		st.NumElements++
		st.ElementTypes[e.Type]++
		st.ComputeLoad += int64(mp.ComputeCost(e.Type))
	}
	cutSides := 0
	for i, e := range active {
		for _, nbs := range activeNeighbors(m, e) {
			for _, f := range nbs {
				if p := partOf[f.ID()]; p != parts[i] {
					cutSides++
					stats[parts[i]].NumNeighbors[p]++
				}
			}
		}
	}
	var (
		avgLoad float64
		maxLoad int64
		minLoad = int64(math.MaxInt64)
	)
	for _, st := range stats {
		avgLoad += float64(st.ComputeLoad)
		maxLoad = max(maxLoad, st.ComputeLoad)
		minLoad = min(minLoad, st.ComputeLoad)
	}
	avgLoad /= float64(nParts)
	log.Printf("Partition Analysis:")
	log.Printf("  Objective value: %d", objval)
	log.Printf("  Cut sides: %d", cutSides)
	log.Printf("  Load imbalance: %.2f%%", (float64(maxLoad)/avgLoad-1)*100)
	log.Printf("  Load range: [%d, %d], avg: %.1f", minLoad, maxLoad, avgLoad)
	for _, st := range stats {
		log.Printf("  Partition %d: %d elements, load %d, types %v, %d neighbors",
			st.ID, st.NumElements, st.ComputeLoad, st.ElementTypes, len(st.NumNeighbors))
	}
}
