package parallel

import (
	"fmt"
	"sync"
)

// AnySource matches messages from every rank in a receive.
const AnySource = -1

type envelope struct {
	from, tag int
	payload   any
	ack       chan struct{} // closed on delivery for synchronous sends
}

/*
MailBox holds the point to point traffic of a set of ranks. Each rank owns
one inbox of delivered messages plus the receives it posted before a match
arrived. Messages between one pair of ranks with one tag are matched in the
order they were sent.
*/
type MailBox struct {
	NP      int
	inboxes []*inbox
}

type inbox struct {
	mu      sync.Mutex
	queue   []*envelope
	pending []*Request
}

func NewMailBox(np int) *MailBox {
	mb := &MailBox{NP: np, inboxes: make([]*inbox, np)}
	for n := range mb.inboxes {
		mb.inboxes[n] = &inbox{}
	}
	return mb
}

func (mb *MailBox) checkRank(rank int) {
	if rank < 0 || rank >= mb.NP {
		panic(fmt.Errorf("rank %d out of range [0,%d)", rank, mb.NP))
	}
}

func matches(req *Request, env *envelope) bool {
	return (req.source == AnySource || req.source == env.from) && req.tag == env.tag
}

// PostMessage delivers env to rank to, completing the oldest matching posted receive.
func (mb *MailBox) PostMessage(to int, env *envelope) {
	mb.checkRank(to)
	ib := mb.inboxes[to]
	ib.mu.Lock()
	defer ib.mu.Unlock()
	for i, req := range ib.pending {
		if matches(req, env) {
			ib.pending = append(ib.pending[:i], ib.pending[i+1:]...)
			req.complete(env)
			return
		}
	}
	ib.queue = append(ib.queue, env)
}

// PostReceive completes req from the oldest matching delivered message, or parks it.
func (mb *MailBox) PostReceive(rank int, req *Request) {
	mb.checkRank(rank)
	ib := mb.inboxes[rank]
	ib.mu.Lock()
	defer ib.mu.Unlock()
	for i, env := range ib.queue {
		if matches(req, env) {
			ib.queue = append(ib.queue[:i], ib.queue[i+1:]...)
			req.complete(env)
			return
		}
	}
	ib.pending = append(ib.pending, req)
}

// Pending counts the delivered messages nobody has received yet.
func (mb *MailBox) Pending(rank int) int {
	ib := mb.inboxes[rank]
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return len(ib.queue)
}

/*
Request tracks one non-blocking send or receive. Wait blocks until it is
complete; for a receive it returns the payload and the sending rank.
*/
type Request struct {
	source, tag int
	done        chan struct{}
	payload     any
	from        int
}

func newRequest(source, tag int) *Request {
	return &Request{source: source, tag: tag, done: make(chan struct{}), from: AnySource}
}

func completedRequest() *Request {
	req := newRequest(AnySource, 0)
	close(req.done)
	return req
}

func (req *Request) complete(env *envelope) {
	req.payload, req.from = env.payload, env.from
	if env.ack != nil {
		close(env.ack)
	}
	close(req.done)
}

func (req *Request) Wait() (payload any, from int) {
	<-req.done
	return req.payload, req.from
}

// Test reports whether the request has completed without blocking.
func (req *Request) Test() bool {
	select {
	case <-req.done:
		return true
	default:
		return false
	}
}
