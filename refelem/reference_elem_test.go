package refelem

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfkiwl/libmesh/elem"
)

func TestGet(t *testing.T) {
	Reset()
	var (
		wg  sync.WaitGroup
		got = make([]*elem.Elem, 16)
	)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = Get(elem.Hex8)
		}(i)
	}
	wg.Wait()
	for _, re := range got {
		require.Same(t, got[0], re)
	}
	hex := got[0]
	assert.Equal(t, 8, hex.NNodes())
	assert.InDelta(t, 8, hex.Volume(), 1.e-12)
	assert.Equal(t, elem.Point{X: 1, Y: 1, Z: 1}, hex.Point(6))

	assert.Same(t, Get(elem.Tri3), Get(elem.TriShell3))
	assert.Same(t, Get(elem.Quad4), Get(elem.QuadShell4))
	assert.Equal(t, elem.Pyramid5, Get(elem.Pyramid5).Type)
	assert.Panics(t, func() { Get(elem.InvalidElem) })
	assert.Panics(t, func() { Get(elem.ElemType(200)) })

	Reset()
	assert.NotSame(t, hex, Get(elem.Hex8))
}

func TestResetWhileReading(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for k := 0; k < 100; k++ {
				assert.Equal(t, 4, Get(elem.Quad4).NNodes())
			}
		}()
		go func() {
			defer wg.Done()
			for k := 0; k < 10; k++ {
				Reset()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, elem.Tet4, Get(elem.Tet4).Type)
}
