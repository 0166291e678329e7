// Package mailbox is a tiny unbounded, multi-producer single-consumer
// queue. The dispatcher's shared executor-event stream and every unit's
// per-unit request stream are both "unbounded channels" per spec: traffic
// on each is single-digit messages per attempt, so Send must never block
// on capacity the way a fixed-size buffered chan would. Grounded on the
// teacher's eventloop/ingress.go, which pairs an internally growable queue
// with a small condition-variable pump feeding a bounded output channel,
// rather than trying to hand-roll a lock-free ring buffer.
package mailbox

import "sync"

// Unbounded is a FIFO queue of T with a channel-based receive side. Send
// never blocks; Out() delivers items in send order.
type Unbounded[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []T
	closed bool
	out    chan T
	once   sync.Once
}

// New returns a ready-to-use mailbox and starts its pump goroutine.
func New[T any]() *Unbounded[T] {
	m := &Unbounded[T]{out: make(chan T)}
	m.cond = sync.NewCond(&m.mu)
	go m.pump()
	return m
}

// Send enqueues v. Safe to call from any number of goroutines, including
// after Close (where it is silently dropped, matching a closed channel's
// send-panic being undesirable for a fire-and-forget event source).
func (m *Unbounded[T]) Send(v T) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, v)
	m.mu.Unlock()
	m.cond.Signal()
}

// Out returns the receive channel. Exactly one consumer should range over
// it; the channel is closed once Close has been called and the queue has
// drained.
func (m *Unbounded[T]) Out() <-chan T {
	return m.out
}

// Close stops accepting further sends and, once the queue drains, closes
// the output channel.
func (m *Unbounded[T]) Close() {
	m.once.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		m.cond.Signal()
	})
}

func (m *Unbounded[T]) pump() {
	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.closed {
			m.cond.Wait()
		}
		if len(m.queue) == 0 && m.closed {
			m.mu.Unlock()
			close(m.out)
			return
		}
		v := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		m.out <- v
	}
}
