package excimer_test

import (
	"sync"
	"sync/atomic"
	"time"

	"code.hybscloud.com/excimer"
	"code.hybscloud.com/excimer/internal/dispatch"
	"code.hybscloud.com/excimer/tracelog"
)

// stubFrame is a fixed call-stack fixture satisfying tracelog.StackFrame.
type stubFrame struct {
	file     string
	line     uint32
	function string
	parent   *stubFrame
}

func (f *stubFrame) File() string          { return f.file }
func (f *stubFrame) Line() uint32          { return f.line }
func (f *stubFrame) ClosureLine() uint32   { return 0 }
func (f *stubFrame) Class() (string, bool) { return "", false }
func (f *stubFrame) Function() (string, bool) {
	return f.function, f.function != ""
}
func (f *stubFrame) Builtin() bool { return false }
func (f *stubFrame) Parent() (tracelog.StackFrame, bool) {
	if f.parent == nil {
		return nil, false
	}
	return f.parent, true
}

// stack builds a chain from outermost to innermost function name and
// returns the innermost frame.
func stack(names ...string) *stubFrame {
	var cur *stubFrame
	for i, name := range names {
		cur = &stubFrame{file: "script.src", line: uint32(10 * (i + 1)), function: name, parent: cur}
	}
	return cur
}

// stubHost is a Host with a fixed current stack, for driving the facades
// without a real interpreter behind them.
type stubHost struct {
	interrupt atomic.Bool
	stack     *stubFrame
}

func (h *stubHost) CurrentStack() tracelog.StackFrame {
	if h.stack == nil {
		return nil
	}
	return h.stack
}

func (h *stubHost) Interrupt() *atomic.Bool { return &h.interrupt }

func (h *stubHost) InvokeCallback(fn func(overrun int64), overrun int64) { fn(overrun) }

// startDrainLoop polls the interrupt flag the way a hosting interpreter
// checks between operations, draining whenever it observes true. The
// returned func stops the loop and waits for any in-flight drain to
// finish; it is safe to call more than once. Tests that read a profiler's
// log must call it first, since a drained callback may still be running
// after Stop returns.
func startDrainLoop(h excimer.Host, d *dispatch.Dispatcher) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-done:
				return
			default:
			}
			if h.Interrupt().Swap(false) {
				d.HandleInterruptAll()
			}
			time.Sleep(200 * time.Microsecond)
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-finished
	}
}
