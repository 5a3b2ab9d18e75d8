// Package dispatch implements the deferred-dispatch mechanism shared by the
// Timer and Profiler facades: an asynchronous OS-timer notification may only
// perform O(1) bookkeeping (increment an event counter, splice a node onto a
// pending list, set an interrupt flag). User callbacks never run from that
// context; they run later, on the host's own thread, when the host calls
// Drain at a safe point.
//
// The pending list is a mutex-guarded intrusive list; the interrupt flag is
// an atomic.Bool the host polls between operations.
package dispatch

import (
	"sync"
	"sync/atomic"
)

// Waker is signaled whenever a Dispatcher enqueues a node, for hosts that
// block in a syscall (poll/epoll/kevent) rather than busy-polling the
// interrupt flag. Satisfied by iofd.EventFD.
type Waker interface {
	Signal(val uint64) error
}

// Node is a pending-timer list node. A Timer/Profiler facade embeds one Node
// per OS-timer it owns. The zero Node is valid and not in any list.
//
// Deliver, if set, is the facade's own callback, invoked by DrainAll with
// the coalesced event count for this node. It is exported rather than
// threaded through Drain's fn parameter so a host can register one generic
// HandleInterrupt loop per Dispatcher instead of a closure per timer that
// would need to re-discover which node it received.
type Node struct {
	prev, next *Node
	inList     bool
	eventCount int64

	Deliver func(eventCount int64)
}

// Dispatcher holds the pending-timer list and interrupt flag for one host
// thread. A host normally owns exactly one Dispatcher for its whole
// lifetime, created once and shared by every Timer/Profiler running on that
// thread — per-thread state made explicit rather than relying on
// goroutine-local storage, which Go does not provide.
type Dispatcher struct {
	mu   sync.Mutex
	head *Node
	tail *Node

	interrupt *atomic.Bool
	waker     Waker

	chainMu sync.Mutex
	chained func()
}

// New creates a Dispatcher backed by the given interrupt flag. The host is
// expected to poll interrupt and call Drain when it observes true.
func New(interrupt *atomic.Bool) *Dispatcher {
	return &Dispatcher{interrupt: interrupt}
}

// SetWaker installs an optional Waker signaled on every Enqueue, letting a
// host that blocks in a syscall rather than busy-polling wake up promptly.
func (d *Dispatcher) SetWaker(w Waker) {
	d.mu.Lock()
	d.waker = w
	d.mu.Unlock()
}

// Chain installs prev as the previously-registered interrupt handler, to be
// invoked after Drain by HandleInterrupt. This preserves other interrupt
// consumers (request timeouts, other signal handlers) that were installed
// before this dispatcher took over the host's interrupt hook.
func (d *Dispatcher) Chain(prev func()) {
	d.chainMu.Lock()
	d.chained = prev
	d.chainMu.Unlock()
}

// Enqueue is called from the asynchronous OS-timer notify context (a signal
// handler or a dedicated handler goroutine), never from the host thread.
// added is overrun_count+1: the number of expirations this call represents.
func (d *Dispatcher) Enqueue(n *Node, added int64) {
	d.mu.Lock()
	n.eventCount += added
	if !n.inList {
		n.inList = true
		n.prev = d.tail
		n.next = nil
		if d.tail != nil {
			d.tail.next = n
		} else {
			d.head = n
		}
		d.tail = n
	}
	waker := d.waker
	d.mu.Unlock()

	if d.interrupt != nil {
		d.interrupt.Store(true)
	}
	if waker != nil {
		_ = waker.Signal(1)
	}
}

// Drain empties the pending list, invoking fn(n, eventCount) for each node
// with the lock released — callbacks must never run while the pending-list
// mutex is held, so a callback that starts/stops/destroys any timer on this
// dispatcher cannot deadlock.
//
// It is permitted, and expected, for a timer's own notify_fn to call Enqueue
// again for n between the moment Drain unlinks n and the moment fn(n, ...)
// returns; that re-enqueue starts a fresh pending entry, which this same
// Drain call picks up on a later iteration, since it loops until the list
// is empty.
func (d *Dispatcher) Drain(fn func(n *Node, eventCount int64)) {
	for {
		d.mu.Lock()
		n := d.head
		if n == nil {
			d.mu.Unlock()
			return
		}
		d.unlinkLocked(n)
		count := n.eventCount
		n.eventCount = 0
		d.mu.Unlock()

		fn(n, count)
	}
}

// HandleInterruptAll is HandleInterrupt wired to DrainAll's per-node routing.
func (d *Dispatcher) HandleInterruptAll() {
	d.DrainAll()
	d.chainMu.Lock()
	chained := d.chained
	d.chainMu.Unlock()
	if chained != nil {
		chained()
	}
}

// HandleInterrupt drains this dispatcher and then invokes the chained
// previously-installed interrupt handler, if any. This is the function a
// host registers as its single interrupt callback.
func (d *Dispatcher) HandleInterrupt(fn func(n *Node, eventCount int64)) {
	d.Drain(fn)
	d.chainMu.Lock()
	chained := d.chained
	d.chainMu.Unlock()
	if chained != nil {
		chained()
	}
}

// DrainAll is Drain wired to each node's own Deliver callback, the routing a
// host with multiple concurrent timers on one Dispatcher actually needs: it
// does not require the host to maintain its own node-to-timer lookup.
// Nodes with a nil Deliver are silently skipped (their event count is still
// reset by the drain).
func (d *Dispatcher) DrainAll() {
	d.Drain(func(n *Node, eventCount int64) {
		if n.Deliver != nil {
			n.Deliver(eventCount)
		}
	})
}

// Remove unlinks n from the pending list if present, without invoking its
// callback. Destroy-safety requires callers to stop the OS-timer backend —
// which blocks until any in-flight notify call has returned — strictly
// before calling Remove; Remove alone does not synchronize with a
// concurrent Enqueue.
func (d *Dispatcher) Remove(n *Node) {
	d.mu.Lock()
	if n.inList {
		d.unlinkLocked(n)
	}
	d.mu.Unlock()
}

func (d *Dispatcher) unlinkLocked(n *Node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		d.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		d.tail = n.prev
	}
	n.prev, n.next = nil, nil
	n.inList = false
}
