package excimer

import (
	"sync"
	"time"

	"code.hybscloud.com/excimer/internal/dispatch"
)

// platformWaker is a Waker a background goroutine can also block on,
// avoiding a busy-poll of the interrupt flag between expirations. Linux
// builds use a real iofd.EventFD (runtime_linux.go); other Unix targets
// (runtime_other.go) use a buffered channel, since eventfd has no portable
// equivalent there and the dispatch core's Waker contract only needs
// "something blockable that Signal can wake."
type platformWaker interface {
	dispatch.Waker
	// wait blocks until a Signal has occurred since the last wait, or
	// returns an error once closed.
	wait() error
	// close wakes any blocked wait and makes all subsequent waits fail.
	close() error
	// release frees the waker's resources; called only after the drain
	// loop blocked on wait has exited.
	release() error
}

// Runtime stands in for a hosting interpreter that polls an interrupt flag
// between operations and drains pending timers at a safe point. Since a
// plain Go program has no natural "interpreter safe point" to hook,
// Runtime supplies one itself: a
// dedicated goroutine that blocks on platformWaker and calls
// Dispatcher.HandleInterruptAll whenever any Timer/Profiler it owns has
// enqueued work. Embeddings with a real safe-point mechanism (an actual
// scripting VM) are expected to call dispatcher.HandleInterruptAll directly
// from that mechanism instead of using Runtime.
type Runtime struct {
	Host       Host
	Dispatcher *dispatch.Dispatcher

	waker    platformWaker
	stopOnce sync.Once
	done     chan struct{}
}

// NewRuntime creates a Runtime around a fresh GoHost and Dispatcher, starts
// its drain loop, and returns it ready to hand to NewTimer/NewProfiler.
func NewRuntime() (*Runtime, error) {
	host := NewGoHost()
	dispatcher := dispatch.New(host.Interrupt())

	waker, err := newPlatformWaker()
	if err != nil {
		return nil, wrapOSError("runtime init", err)
	}
	dispatcher.SetWaker(waker)

	rt := &Runtime{
		Host:       host,
		Dispatcher: dispatcher,
		waker:      waker,
		done:       make(chan struct{}),
	}
	go rt.loop()
	return rt, nil
}

func (rt *Runtime) loop() {
	defer close(rt.done)
	for {
		if err := rt.waker.wait(); err != nil {
			return
		}
		rt.Dispatcher.HandleInterruptAll()
	}
}

// NewTimer creates a Timer registered on this Runtime's Host and
// Dispatcher, the normal way to obtain one outside of tests that supply
// their own fixture Host.
func (rt *Runtime) NewTimer() *Timer {
	return NewTimer(rt.Host, rt.Dispatcher)
}

// NewProfiler creates a Profiler registered on this Runtime's Host and
// Dispatcher.
func (rt *Runtime) NewProfiler() *Profiler {
	return NewProfiler(rt.Host, rt.Dispatcher)
}

// SetTimeout creates and starts a one-shot Timer on this Runtime, the
// Runtime-bound form of the package-level SetTimeout convenience
// constructor.
func (rt *Runtime) SetTimeout(fn func(overrun int64), d time.Duration) (*Timer, error) {
	return SetTimeout(rt.Host, rt.Dispatcher, fn, d)
}

// Close stops the drain loop. Any Timer/Profiler still registered on this
// Runtime's Dispatcher should be stopped first; Close does not do that for
// them — destroy order stays under the caller's control.
func (rt *Runtime) Close() error {
	var err error
	rt.stopOnce.Do(func() {
		err = rt.waker.close()
		<-rt.done
		if rerr := rt.waker.release(); err == nil {
			err = rerr
		}
	})
	return err
}
