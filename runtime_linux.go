//go:build linux

package excimer

import (
	"sync/atomic"

	"code.hybscloud.com/excimer/iofd"
)

// eventFDWaker adapts iofd.EventFD to platformWaker, wiring the dispatch
// core's Waker contract to a real kernel primitive instead of a
// language-level channel wherever the platform supports it.
type eventFDWaker struct {
	fd     *iofd.EventFD
	closed atomic.Bool
}

func newPlatformWaker() (platformWaker, error) {
	fd, err := iofd.NewEventFD(0)
	if err != nil {
		return nil, err
	}
	if err := fd.SetBlocking(true); err != nil {
		fd.Close()
		return nil, err
	}
	return &eventFDWaker{fd: fd}, nil
}

func (w *eventFDWaker) Signal(val uint64) error {
	return w.fd.Signal(val)
}

func (w *eventFDWaker) wait() error {
	if _, err := w.fd.Wait(); err != nil {
		return err
	}
	if w.closed.Load() {
		return errWakerClosed
	}
	return nil
}

// close wakes the blocked waiter with a final Signal rather than closing
// the fd out from under it: a read(2) already parked in the kernel is not
// interrupted by a close from another thread.
func (w *eventFDWaker) close() error {
	w.closed.Store(true)
	return w.fd.Signal(1)
}

func (w *eventFDWaker) release() error {
	return w.fd.Close()
}
