package parallel

import (
	"fmt"
	"sync"
)

type SendMode uint8

const (
	// DefaultSend completes as soon as the message is buffered
	DefaultSend SendMode = iota
	// SynchronousSend completes once the receiver has the message
	SynchronousSend
)

/*
Communicator is the message passing capability the mesh, dof and estimator
code runs over. Every rank of a set calls the collective methods in the same
order. Payloads are shared, not copied: a sender must not modify a value
after sending it.
*/
type Communicator interface {
	Rank() int
	Size() int
	Barrier()
	// AllGatherAny returns every rank's v, indexed by rank
	AllGatherAny(v any) []any
	ISend(dest, tag int, v any) *Request
	IReceive(source, tag int) *Request
	SetSendMode(mode SendMode)
	SendMode() SendMode
}

// Serial is the single rank communicator.
type Serial struct {
	mode SendMode
	mb   *MailBox
}

func NewSerial() *Serial { return &Serial{mb: NewMailBox(1)} }

func (s *Serial) Rank() int                 { return 0 }
func (s *Serial) Size() int                 { return 1 }
func (s *Serial) Barrier()                  {}
func (s *Serial) AllGatherAny(v any) []any  { return []any{v} }
func (s *Serial) SetSendMode(mode SendMode) { s.mode = mode }
func (s *Serial) SendMode() SendMode        { return s.mode }

func (s *Serial) ISend(dest, tag int, v any) *Request {
	return isend(s.mb, 0, dest, tag, v, s.mode)
}

func (s *Serial) IReceive(source, tag int) *Request {
	req := newRequest(source, tag)
	s.mb.PostReceive(0, req)
	return req
}

func isend(mb *MailBox, from, dest, tag int, v any, mode SendMode) *Request {
	env := &envelope{from: from, tag: tag, payload: v}
	if mode == SynchronousSend {
		env.ack = make(chan struct{})
		req := newRequest(dest, tag)
		req.done = env.ack
		mb.PostMessage(dest, env)
		return req
	}
	mb.PostMessage(dest, env)
	return completedRequest()
}

/*
World runs Size ranks as goroutines of one process. Collectives meet at a
cyclic barrier and exchange values through one slot per rank.
*/
type World struct {
	size  int
	mb    *MailBox
	slots []any

	mu         sync.Mutex
	cond       *sync.Cond
	arrived    int
	generation uint64
}

func NewWorld(size int) (w *World) {
	if size < 1 {
		panic(fmt.Errorf("a world needs at least one rank, have %d", size))
	}
	w = &World{size: size, mb: NewMailBox(size), slots: make([]any, size)}
	w.cond = sync.NewCond(&w.mu)
	return
}

func (w *World) Size() int { return w.size }

// Comm returns the communicator of one rank.
func (w *World) Comm(rank int) *Comm {
	w.mb.checkRank(rank)
	return &Comm{world: w, rank: rank}
}

/*
Run executes fn on every rank concurrently and returns once all of them
have. A panic on any rank is re-raised on the caller after the others finish
or block, so ranks must not wait on a collective a failed rank never reaches.
*/
func (w *World) Run(fn func(c Communicator)) {
	var (
		wg     = sync.WaitGroup{}
		errMu  sync.Mutex
		failed any
	)
	for rank := 0; rank < w.size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errMu.Lock()
					if failed == nil {
						failed = fmt.Errorf("rank %d: %v", rank, r)
					}
					errMu.Unlock()
				}
			}()
			fn(w.Comm(rank))
		}(rank)
	}
	wg.Wait()
	if failed != nil {
		panic(failed)
	}
}

func (w *World) barrier() {
	w.mu.Lock()
	defer w.mu.Unlock()
	gen := w.generation
	w.arrived++
	if w.arrived == w.size {
		w.arrived = 0
		w.generation++
		w.cond.Broadcast()
		return
	}
	for gen == w.generation {
		w.cond.Wait()
	}
}

// Comm is one rank of a World.
type Comm struct {
	world *World
	rank  int
	mode  SendMode
}

func (c *Comm) Rank() int                 { return c.rank }
func (c *Comm) Size() int                 { return c.world.size }
func (c *Comm) Barrier()                  { c.world.barrier() }
func (c *Comm) SetSendMode(mode SendMode) { c.mode = mode }
func (c *Comm) SendMode() SendMode        { return c.mode }

func (c *Comm) AllGatherAny(v any) (all []any) {
	w := c.world
	w.slots[c.rank] = v
	w.barrier()
	all = make([]any, w.size)
	copy(all, w.slots)
	// Nobody refills a slot before everyone has read it
	w.barrier()
	return
}

func (c *Comm) ISend(dest, tag int, v any) *Request {
	return isend(c.world.mb, c.rank, dest, tag, v, c.mode)
}

func (c *Comm) IReceive(source, tag int) *Request {
	if source != AnySource {
		c.world.mb.checkRank(source)
	}
	req := newRequest(source, tag)
	c.world.mb.PostReceive(c.rank, req)
	return req
}
