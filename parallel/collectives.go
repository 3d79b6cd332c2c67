package parallel

import (
	"cmp"
	"fmt"
	"slices"

	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer | constraints.Float
}

// AllGather returns every rank's v, indexed by rank.
func AllGather[T any](c Communicator, v T) (all []T) {
	raw := c.AllGatherAny(v)
	all = make([]T, len(raw))
	for i, r := range raw {
		all[i] = r.(T)
	}
	return
}

// Broadcast returns root's v on every rank.
func Broadcast[T any](c Communicator, v T, root int) T {
	if root < 0 || root >= c.Size() {
		panic(fmt.Errorf("broadcast root %d out of range [0,%d)", root, c.Size()))
	}
	return c.AllGatherAny(v)[root].(T)
}

func Sum[T Number](c Communicator, v T) (sum T) {
	for _, x := range AllGather(c, v) {
		sum += x
	}
	return
}

// SumSlice adds every rank's v element-wise, in place. All ranks pass equal lengths.
func SumSlice[T Number](c Communicator, v []T) {
	all := AllGather(c, slices.Clone(v))
	clear(v)
	for rank, w := range all {
		if len(w) != len(v) {
			panic(fmt.Errorf("rank %d reduced %d values, expected %d", rank, len(w), len(v)))
		}
		for i := range v {
			v[i] += w[i]
		}
	}
}

func Max[T cmp.Ordered](c Communicator, v T) T { return slices.Max(AllGather(c, v)) }
func Min[T cmp.Ordered](c Communicator, v T) T { return slices.Min(AllGather(c, v)) }

// SetUnion returns the sorted union of every rank's values.
func SetUnion[T cmp.Ordered](c Communicator, v []T) (union []T) {
	for _, w := range AllGather(c, v) {
		union = append(union, w...)
	}
	slices.Sort(union)
	return slices.Compact(union)
}

/*
SetUnionMap merges every rank's entries into m. A key held by several ranks
keeps the value of the lowest of them.
*/
func SetUnionMap[K comparable, V any](c Communicator, m map[K]V) {
	all := AllGather(c, m)
	merged := make(map[K]V)
	for rank := len(all) - 1; rank >= 0; rank-- {
		for k, v := range all[rank] {
			merged[k] = v
		}
	}
	// Every rank has read all maps before any is modified
	c.Barrier()
	clear(m)
	for k, v := range merged {
		m[k] = v
	}
}

// Send blocks until the message is buffered, or received in synchronous mode.
func Send(c Communicator, dest, tag int, v any) { c.ISend(dest, tag, v).Wait() }

// Receive blocks for the next message from source with tag.
func Receive[T any](c Communicator, source, tag int) (v T, from int) {
	payload, from := c.IReceive(source, tag).Wait()
	return payload.(T), from
}
