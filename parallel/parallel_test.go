package parallel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestPartitionMap(t *testing.T) {
	getHisto := func(K, Np int) (histo map[int]int) {
		pm := NewPartitionMap(Np, K)
		histo = make(map[int]int)
		for np := 0; np < pm.NParts; np++ {
			histo[pm.Size(np)]++
		}
		return
	}
	getTotal := func(histo map[int]int) (total int) {
		for key, count := range histo {
			total += key * count
		}
		return
	}
	assert.Equal(t, map[int]int{0: 30, 1: 2}, getHisto(2, 32))
	assert.Equal(t, map[int]int{1: 32}, getHisto(32, 32))
	assert.Equal(t, map[int]int{8: 32}, getHisto(256, 32))
	assert.Equal(t, map[int]int{8: 1, 9: 31}, getHisto(287, 32))
	for n := 64; n < 2000; n++ {
		var sizes []float64
		histo := getHisto(n, 32)
		for key := range histo {
			sizes = append(sizes, float64(key))
		}
		if len(sizes) == 2 {
			assert.Equal(t, 1., math.Abs(sizes[0]-sizes[1]))
		}
		assert.Equal(t, n, getTotal(histo))
	}

	for maxIndex := 10; maxIndex < 500; maxIndex++ {
		pm := NewPartitionMap(5, maxIndex)
		for k := 0; k < maxIndex; k++ {
			n, tryCount := pm.ownerWithTryCount(k)
			lo, hi := pm.Range(n)
			assert.True(t, k >= lo && k < hi && tryCount <= 1)
			local, nn := pm.LocalIndex(k)
			assert.Equal(t, n, nn)
			assert.Equal(t, k, pm.GlobalIndex(local, nn))
		}
		assert.Equal(t, -1, pm.Owner(maxIndex))
	}
	assert.Panics(t, func() { NewPartitionMap(5, 10).LocalIndex(10) })
}

func TestWorldCollectives(t *testing.T) {
	for _, size := range []int{1, 2, 3, 5} {
		w := NewWorld(size)
		w.Run(func(c Communicator) {
			me := float64(c.Rank())
			points := AllGather(c, r3.Vec{X: me, Y: me + .25, Z: me + .5})
			assert.Len(t, points, size)
			for i, p := range points {
				assert.Equal(t, r3.Vec{X: float64(i), Y: float64(i) + .25, Z: float64(i) + .5}, p)
			}

			type pair struct {
				value float64
				p     r3.Vec
			}
			pairs := AllGather(c, pair{me + .75, r3.Vec{X: me}})
			for i, pr := range pairs {
				assert.Equal(t, float64(i)+.75, pr.value)
				assert.Equal(t, float64(i), pr.p.X)
			}

			assert.Equal(t, size*(size-1)/2, Sum(c, c.Rank()))
			assert.Equal(t, size-1, Max(c, c.Rank()))
			assert.Equal(t, 0., Min(c, me))

			v := []float64{1, me}
			SumSlice(c, v)
			assert.Equal(t, []float64{float64(size), float64(size*(size-1)) / 2}, v)

			assert.Equal(t, []int{0, 1, 2, 3}[:min(size+1, 4)],
				SetUnion(c, []int{c.Rank() % 4, (c.Rank() + 1) % 4}))

			vals := map[int]r3.Vec{2 * c.Rank(): {X: me + 1}}
			SetUnionMap(c, vals)
			assert.Len(t, vals, size)
			for p := 0; p < size; p++ {
				assert.Equal(t, float64(p+1), vals[2*p].X)
			}

			src := []r3.Vec{{X: 0, Y: 1, Z: 2}, {X: 3, Y: 4, Z: 5}, {X: 6, Y: 7, Z: 8}}
			var dest []r3.Vec
			if c.Rank() == 0 {
				dest = src
			}
			assert.Equal(t, src, Broadcast(c, dest, 0))
			assert.Equal(t, size-1, Broadcast(c, c.Rank(), size-1))
			c.Barrier()
		})
	}
}

func TestSetUnionMapKeepsLowestRank(t *testing.T) {
	NewWorld(3).Run(func(c Communicator) {
		m := map[string]int{"shared": c.Rank(), "own": 10 + c.Rank()}
		SetUnionMap(c, m)
		assert.Equal(t, map[string]int{"shared": 0, "own": 10}, m)
	})
}

// ring passes a message up the rank ring in each send mode, sending first or receiving first.
func ring(t *testing.T, c Communicator, receiveFirst bool) {
	up := (c.Rank() + 1) % c.Size()
	down := (c.Size() + c.Rank() - 1) % c.Size()
	src := []uint32{0, 1, 2}
	for _, mode := range []SendMode{DefaultSend, SynchronousSend} {
		c.SetSendMode(mode)
		var got any
		if receiveFirst {
			req := c.IReceive(down, 7)
			Send(c, up, 7, src)
			got, _ = req.Wait()
		} else {
			req := c.ISend(up, 7, src)
			got, _ = Receive[[]uint32](c, down, 7)
			req.Wait()
		}
		assert.Equal(t, src, got)
	}
	c.SetSendMode(DefaultSend)
}

func TestWorldPointToPoint(t *testing.T) {
	w := NewWorld(4)
	w.Run(func(c Communicator) { ring(t, c, false) })
	w.Run(func(c Communicator) { ring(t, c, true) })
}

func TestMessageOrderAndAnySource(t *testing.T) {
	NewWorld(3).Run(func(c Communicator) {
		if c.Rank() != 0 {
			for i := 0; i < 5; i++ {
				Send(c, 0, 1, 10*c.Rank()+i)
			}
			return
		}
		next := map[int]int{1: 10, 2: 20}
		for i := 0; i < 10; i++ {
			v, from := Receive[int](c, AnySource, 1)
			assert.Equal(t, next[from], v, "messages from %d arrive in order", from)
			next[from]++
		}
	})
}

func TestSerial(t *testing.T) {
	s := NewSerial()
	assert.Equal(t, 0, s.Rank())
	assert.Equal(t, 1, s.Size())
	assert.Equal(t, 3.5, Sum[float64](s, 3.5))
	assert.Equal(t, []int{1, 2}, SetUnion(s, []int{2, 1, 2}))

	req := s.IReceive(0, 3)
	assert.False(t, req.Test())
	Send(s, 0, 3, "hello")
	got, from := req.Wait()
	assert.Equal(t, "hello", got)
	assert.Equal(t, 0, from)

	s.SetSendMode(SynchronousSend)
	sreq := s.ISend(0, 4, 1.5)
	assert.False(t, sreq.Test())
	v, _ := Receive[float64](s, 0, 4)
	assert.Equal(t, 1.5, v)
	assert.True(t, sreq.Test())
	assert.Panics(t, func() { Broadcast(s, 1, 1) })
}

func TestWorldRunPropagatesPanic(t *testing.T) {
	assert.Panics(t, func() {
		NewWorld(2).Run(func(c Communicator) {
			if c.Rank() == 1 {
				panic("boom")
			}
		})
	})
}
