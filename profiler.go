package excimer

import (
	"sync"
	"time"

	"code.hybscloud.com/excimer/internal/dispatch"
	"code.hybscloud.com/excimer/internal/ostimer"
	"code.hybscloud.com/excimer/tracelog"
)

// defaultPeriod is the Profiler's default sampling period.
const defaultPeriod = 100 * time.Millisecond

// Profiler is the sampling profiler: an OS-timer registration that, on
// each expiration, walks the host's current stack and records a sample
// into its tracelog.Log, optionally flushing to a callback when the log
// reaches a configured size.
type Profiler struct {
	host       Host
	dispatcher *dispatch.Dispatcher
	node       dispatch.Node

	mu         sync.Mutex
	eventType  Event
	period     time.Duration
	maxDepth   uint32
	flushCB    func(*tracelog.Log)
	maxSamples int
	backend    ostimer.Backend
	running    bool
	log        *tracelog.Log
}

// NewProfiler creates a stopped Profiler with the defaults: period 100ms,
// EventReal, no flush callback, unlimited max depth.
func NewProfiler(host Host, dispatcher *dispatch.Dispatcher) *Profiler {
	p := &Profiler{
		host:       host,
		dispatcher: dispatcher,
		period:     defaultPeriod,
		log:        tracelog.New(0, time.Now().UnixNano(), int64(defaultPeriod)),
	}
	p.node.Deliver = p.deliver
	return p
}

// SetPeriod sets the sampling period in seconds.
func (p *Profiler) SetPeriod(seconds float64) {
	p.mu.Lock()
	p.period = FromSeconds(seconds).Duration()
	p.mu.Unlock()
}

// SetEventType selects Real or CPU clock sampling.
func (p *Profiler) SetEventType(e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e != EventReal && e != EventCPU {
		warnf("excimer: profiler: %v", ErrInvalidEventType)
		return ErrInvalidEventType
	}
	p.eventType = e
	return nil
}

// SetMaxDepth sets the stack-depth limit applied by the frame interner; 0
// means unlimited. Since Log.MaxDepth is fixed at Log-creation time, it takes
// effect at the next Start while the live log is still empty; Flush carries
// the outgoing log's depth forward, not this setting.
func (p *Profiler) SetMaxDepth(n uint32) {
	p.mu.Lock()
	p.maxDepth = n
	p.mu.Unlock()
}

// SetFlushCallback installs fn to be invoked with the outgoing Log whenever
// the live log reaches maxSamples entries or Flush is called explicitly.
// maxSamples <= 0 disables the automatic-flush-on-size trigger (manual
// Flush still works).
func (p *Profiler) SetFlushCallback(fn func(*tracelog.Log), maxSamples int) {
	p.mu.Lock()
	p.flushCB = fn
	p.maxSamples = maxSamples
	p.mu.Unlock()
}

// ClearFlushCallback removes any installed flush callback and disables the
// automatic-flush-on-size trigger.
func (p *Profiler) ClearFlushCallback() {
	p.mu.Lock()
	p.flushCB = nil
	p.maxSamples = 0
	p.mu.Unlock()
}

// Start arms the profiler's OS timer, staggering the first firing
// uniformly over [0, period) to decorrelate samplers across processes.
// Recreates the log if it is still empty and was created with a different
// max depth or period than the current ones; a non-empty log is kept as it
// is.
func (p *Profiler) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.stopLocked()
	}

	period := p.period
	if period <= 0 {
		warnf("excimer: profiler start: %v", ErrNoPeriod)
		return ErrNoPeriod
	}
	initial := stagger(period)

	if p.log.Len() == 0 && (p.log.MaxDepth() != p.maxDepth || p.log.PeriodNS() != int64(period)) {
		p.log = tracelog.New(p.maxDepth, time.Now().UnixNano(), int64(period))
	}

	backend, err := ostimer.New(ostimer.EventType(p.eventType), p.notify)
	if err != nil {
		return wrapOSError("profiler start", err)
	}
	if err := backend.Start(period, initial); err != nil {
		backend.Destroy()
		return wrapOSError("profiler start", err)
	}
	p.backend = backend
	p.running = true
	return nil
}

func (p *Profiler) notify(overrunCount int64) {
	p.dispatcher.Enqueue(&p.node, overrunCount+1)
}

func (p *Profiler) deliver(eventCount int64) {
	p.host.InvokeCallback(func(overrun int64) {
		now := time.Now().UnixNano()
		stack := p.host.CurrentStack()

		p.mu.Lock()
		p.log.Add(stack, overrun, now)
		shouldFlush := p.maxSamples > 0 && p.log.Len() >= p.maxSamples
		cb := p.flushCB
		p.mu.Unlock()

		if shouldFlush {
			if cb == nil {
				p.mu.Lock()
				p.stopLocked()
				p.mu.Unlock()
				warnf("excimer: profiler: automatic flush triggered with no flush callback registered; profiler stopped")
				return
			}
			p.swapLog(cb)
		}
	}, eventCount)
}

// Stop disarms the OS timer without touching the accumulated log.
func (p *Profiler) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *Profiler) stopLocked() error {
	if !p.running {
		return nil
	}
	err := p.backend.Destroy()
	p.dispatcher.Remove(&p.node)
	p.backend = nil
	p.running = false
	if err != nil {
		return wrapOSError("profiler stop", err)
	}
	return nil
}

// Destroy stops the profiler and, if the log is non-empty, performs one
// final flush.
func (p *Profiler) Destroy() error {
	if err := checkThread(p.host); err != nil {
		return err
	}
	p.mu.Lock()
	err := p.stopLocked()
	needFlush := p.log.Len() > 0
	p.mu.Unlock()

	if needFlush {
		p.Flush()
	}
	return err
}

// GetLog returns the live, currently-accumulating Log.
func (p *Profiler) GetLog() *tracelog.Log {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.log
}

// Flush atomically swaps in a fresh Log carrying this Profiler's options
// forward, handing the outgoing Log to the flush callback if one is
// registered, and returns the outgoing Log regardless (the explicit-Flush
// case does not require a callback the way the automatic-flush-on-size
// trigger does).
func (p *Profiler) Flush() *tracelog.Log {
	p.mu.Lock()
	cb := p.flushCB
	p.mu.Unlock()
	return p.swapLog(cb)
}

func (p *Profiler) swapLog(cb func(*tracelog.Log)) *tracelog.Log {
	p.mu.Lock()
	old := p.log
	p.log = old.FreshWithSameOptions()
	p.mu.Unlock()

	if cb != nil {
		cb(old)
	}
	return old
}
