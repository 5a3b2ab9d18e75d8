package excimer

import (
	"math/rand"
	"sync"
	"time"

	"code.hybscloud.com/excimer/internal/dispatch"
	"code.hybscloud.com/excimer/internal/ostimer"
)

// ThreadChecker is an optional interface a Host may implement to reject
// destroying a timer from a thread other than the one that owns it. GoHost
// does not implement it: goroutines have no stable OS-thread identity, so
// the check is a no-op unless an embedding pins a real OS thread (e.g. via
// runtime.LockOSThread) and can attest to still being on it.
type ThreadChecker interface {
	// SameThread reports whether the calling goroutine is running on the
	// same OS thread that created the resource being checked.
	SameThread() bool
}

func checkThread(h Host) error {
	if tc, ok := h.(ThreadChecker); ok && !tc.SameThread() {
		return ErrWrongThread
	}
	return nil
}

// Timer is the user-facing periodic/one-shot timer: an ostimer.Backend
// plus a dispatch.Node registered on the host's Dispatcher, delivering
// coalesced overrun counts to a user-supplied callback on the host's own
// thread. Construction is through NewTimer; the zero Timer is not usable.
type Timer struct {
	host       Host
	dispatcher *dispatch.Dispatcher
	node       dispatch.Node

	mu        sync.Mutex
	eventType Event
	period    time.Duration
	initial   time.Duration
	callback  func(overrun int64)
	backend   ostimer.Backend
	running   bool
}

// NewTimer creates a stopped Timer bound to host and dispatcher. A host
// normally creates one Dispatcher for its lifetime and passes it to every
// Timer/Profiler it owns, per internal/dispatch's package doc.
func NewTimer(host Host, dispatcher *dispatch.Dispatcher) *Timer {
	t := &Timer{host: host, dispatcher: dispatcher}
	t.node.Deliver = t.deliver
	return t
}

// SetEventType selects Real or CPU clock measurement. Rejected with
// ErrInvalidEventType (and a warning) if the value is out of range; a change
// made while t is running takes effect at the next Start. The backend itself
// rejects CPU on platforms with no per-thread CPU clock when Start is next
// called.
func (t *Timer) SetEventType(e Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e != EventReal && e != EventCPU {
		warnf("excimer: timer: %v", ErrInvalidEventType)
		return ErrInvalidEventType
	}
	t.eventType = e
	return nil
}

// SetPeriod sets the recurring interval in seconds. Zero is legal: zero
// period with non-zero initial yields a one-shot timer, because the
// backend's repeat interval is the period.
func (t *Timer) SetPeriod(seconds float64) {
	t.mu.Lock()
	t.period = FromSeconds(seconds).Duration()
	t.mu.Unlock()
}

// SetInterval sets the initial delay before the first firing, in seconds.
// If zero at Start time, period is substituted.
func (t *Timer) SetInterval(seconds float64) {
	t.mu.Lock()
	t.initial = FromSeconds(seconds).Duration()
	t.mu.Unlock()
}

// SetCallback installs the function invoked (via Host.InvokeCallback, on
// the host's safe-point thread) with the coalesced overrun count each time
// Drain services this timer. Passing nil disables delivery without
// stopping the underlying OS timer.
func (t *Timer) SetCallback(fn func(overrun int64)) {
	t.mu.Lock()
	t.callback = fn
	t.mu.Unlock()
}

// Start arms the timer, stopping it first if already running. If initial is
// zero, period is substituted; if both are zero, Start fails with
// ErrNoPeriod and does not mutate running state.
func (t *Timer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startLocked()
}

func (t *Timer) startLocked() error {
	period, initial := t.period, t.initial
	if initial == 0 {
		initial = period
	}
	if period == 0 && initial == 0 {
		warnf("excimer: timer start: %v", ErrNoPeriod)
		return ErrNoPeriod
	}

	if t.running {
		t.stopLocked()
	}

	backend, err := ostimer.New(ostimer.EventType(t.eventType), t.notify)
	if err != nil {
		return wrapOSError("timer start", err)
	}
	if err := backend.Start(period, initial); err != nil {
		backend.Destroy()
		return wrapOSError("timer start", err)
	}
	t.backend = backend
	t.running = true
	return nil
}

// notify is the ostimer.NotifyFunc: called from the backend's asynchronous
// delivery context, never the host thread. Only O(1) dispatch-core
// bookkeeping may happen here.
func (t *Timer) notify(overrunCount int64) {
	t.dispatcher.Enqueue(&t.node, overrunCount+1)
}

// deliver is called by the host's drain loop (see Dispatcher.HandleInterruptAll)
// once per coalesced batch, on the host's own thread.
func (t *Timer) deliver(eventCount int64) {
	t.mu.Lock()
	cb := t.callback
	t.mu.Unlock()
	if cb == nil {
		return
	}
	// The callback receives the coalesced event count itself as the
	// overrun argument (not eventCount-1): a single uncoalesced firing
	// with no kernel-reported overrun delivers 1, so summing callback
	// arguments across a start/stop span equals raw expirations.
	t.host.InvokeCallback(cb, eventCount)
}

// Stop disarms the timer. It is synchronous with respect to new firings but
// not with respect to an in-flight callback already queued for drain.
func (t *Timer) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked()
}

func (t *Timer) stopLocked() error {
	if !t.running {
		return nil
	}
	err := t.backend.Destroy()
	t.dispatcher.Remove(&t.node)
	t.backend = nil
	t.running = false
	if err != nil {
		return wrapOSError("timer stop", err)
	}
	return nil
}

// Destroy stops the timer (if running) and releases it. No callback for
// this Timer is observed after Destroy returns. Rejected with
// ErrWrongThread if the Host reports this call is not on the thread that
// owns it.
func (t *Timer) Destroy() error {
	if err := checkThread(t.host); err != nil {
		return err
	}
	return t.Stop()
}

// Remaining reports the time until the next expiration, or zero if not
// running.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0
	}
	return t.backend.Remaining()
}

// SetTimeout creates a one-shot Timer that invokes fn once after d, then
// stops itself. Construction, callback installation, and Start happen
// atomically with respect to the caller (no intermediate state is
// observable).
func SetTimeout(host Host, dispatcher *dispatch.Dispatcher, fn func(overrun int64), d time.Duration) (*Timer, error) {
	t := NewTimer(host, dispatcher)
	t.SetInterval(d.Seconds())
	once := sync.Once{}
	t.SetCallback(func(overrun int64) {
		once.Do(func() {
			fn(overrun)
			t.Stop()
		})
	})
	if err := t.Start(); err != nil {
		return nil, err
	}
	return t, nil
}

// stagger returns a pseudo-random initial delay uniformly distributed over
// [0, period), used by Profiler.Start to decorrelate samplers across
// processes.
func stagger(period time.Duration) time.Duration {
	if period <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(period)))
}
