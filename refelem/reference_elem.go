package refelem

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/types"
)

/*
The cache holds one canonical element per type, sitting on its master points
with node ids 0..n-1. A map is built as a whole on the first Get and never
written after it is published, so readers need no lock.
*/
var (
	mu      sync.Mutex
	cache   atomic.Pointer[map[elem.ElemType]*elem.Elem]
	Verbose bool
)

/*
Get returns the reference element for et. Shell types share the element of
their base type. The element is shared by every caller and must not be
modified.
*/
func Get(et elem.ElemType) *elem.Elem {
	c := cache.Load()
	if c == nil {
		mu.Lock()
		if c = cache.Load(); c == nil {
			c = build()
			cache.Store(c)
		}
		mu.Unlock()
	}
	re, ok := (*c)[et.Base()]
	if !ok {
		panic(fmt.Errorf("no reference element data for element type %v", et))
	}
	return re
}

func build() *map[elem.ElemType]*elem.Elem {
	c := make(map[elem.ElemType]*elem.Elem)
	for et := elem.NodeElem; et < elem.InvalidElem; et++ {
		if et != et.Base() {
			continue
		}
		tp := elem.GetTopology(et)
		re := elem.NewElem(et)
		re.SetID(0)
		for i, p := range tp.MasterPoints {
			re.Nodes[i] = elem.NewNode(p, types.DofID(i))
		}
		c[et] = re
	}
	if Verbose {
		log.Printf("built %d reference elements", len(c))
	}
	return &c
}

/*
Reset drops the cache so the next Get rebuilds it. Elements handed out
before stay valid; a Get running concurrently returns either the old or the
new element.
*/
func Reset() {
	cache.Store(nil)
}
