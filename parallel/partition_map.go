package parallel

import "fmt"

/*
PartitionMap splits the index range [0,MaxIndex) into NParts contiguous
blocks whose sizes differ by at most one, the first MaxIndex%NParts blocks
taking the extra index.
*/
type PartitionMap struct {
	MaxIndex int
	NParts   int
	Ranges   [][2]int // Beginning and end index of each block
}

func NewPartitionMap(nParts, maxIndex int) (pm *PartitionMap) {
	if nParts < 1 {
		panic(fmt.Errorf("need at least one partition, have %d", nParts))
	}
	pm = &PartitionMap{
		MaxIndex: maxIndex,
		NParts:   nParts,
		Ranges:   make([][2]int, nParts),
	}
	for n := 0; n < nParts; n++ {
		pm.Ranges[n] = pm.Split1D(n)
	}
	return
}

// Split1D returns the half open index range of block n.
func (pm *PartitionMap) Split1D(n int) (bucket [2]int) {
	var (
		size             = pm.MaxIndex / pm.NParts
		remainder        = pm.MaxIndex % pm.NParts
		startAdd, endAdd int
	)
	if remainder != 0 {
		if n+1 > remainder {
			startAdd = remainder
		} else {
			startAdd, endAdd = n, 1
		}
	}
	bucket[0] = n*size + startAdd
	bucket[1] = bucket[0] + size + endAdd
	return
}

// Owner returns the block holding index k, or -1 when k is out of range.
func (pm *PartitionMap) Owner(k int) int {
	n, _ := pm.ownerWithTryCount(k)
	return n
}

func (pm *PartitionMap) ownerWithTryCount(k int) (n, tryCount int) {
	if k < 0 || k >= pm.MaxIndex {
		return -1, 0
	}
	// The even split guess is off by at most one block
	n = int(float64(pm.NParts*k) / float64(pm.MaxIndex))
	for !(pm.Ranges[n][0] <= k && pm.Ranges[n][1] > k) {
		if pm.Ranges[n][0] > k {
			n--
		} else {
			n++
		}
		tryCount++
	}
	return
}

func (pm *PartitionMap) Range(n int) (kMin, kMax int) {
	return pm.Ranges[n][0], pm.Ranges[n][1]
}

func (pm *PartitionMap) Size(n int) int { return pm.Ranges[n][1] - pm.Ranges[n][0] }

// LocalIndex converts a global index into its block and the offset within it.
func (pm *PartitionMap) LocalIndex(k int) (local, n int) {
	n = pm.Owner(k)
	if n < 0 {
		panic(fmt.Errorf("index %d out of range [0,%d)", k, pm.MaxIndex))
	}
	return k - pm.Ranges[n][0], n
}

func (pm *PartitionMap) GlobalIndex(local, n int) int { return pm.Ranges[n][0] + local }
