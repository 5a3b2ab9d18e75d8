//go:build darwin || freebsd

package ostimer

import (
	"sync"
	"time"
	"unsafe"

	"code.hybscloud.com/zcall"
)

// New creates the kqueue-based backend. CPU event type has no kqueue
// equivalent of a per-thread CPU clock and is rejected at creation time.
func New(kind EventType, notify NotifyFunc) (Backend, error) {
	if kind == CPU {
		return nil, ErrCPUUnsupported
	}
	return &kqueueBackend{notify: notify, kq: -1}, nil
}

// NewWithSignal exists for API parity with the Linux backend; kqueue has no
// signal-number concept, so signo is ignored.
func NewWithSignal(kind EventType, notify NotifyFunc, signo int) (Backend, error) {
	return New(kind, notify)
}

type kevent struct {
	ident  uintptr
	filter int16
	flags  uint16
	fflags uint32
	data   int64
	udata  unsafe.Pointer
}

// kqueueBackend holds no kernel resources between Start/Stop cycles: each
// Start opens a fresh kqueue and each Stop closes it, which doubles as the
// handler thread's shutdown signal.
type kqueueBackend struct {
	notify NotifyFunc
	kq     int32

	period time.Duration
	rearm  bool

	mu       sync.Mutex
	lastFire time.Time

	done chan struct{}
}

func (b *kqueueBackend) Start(period, initial time.Duration) error {
	kqFd, errno := zcall.Syscall4(sysKqueue, 0, 0, 0, 0)
	if errno != 0 {
		return errFromErrno(errno)
	}
	b.kq = int32(kqFd)
	b.period = period
	b.mu.Lock()
	b.lastFire = time.Now()
	b.mu.Unlock()

	// When the initial delay differs from the period (or the timer is
	// one-shot), arm a one-shot for the first expiration; the handler
	// re-arms as periodic after it fires.
	b.rearm = initial != period || period == 0
	if b.rearm {
		if err := b.arm(evAdd|evEnable|evOneshot, initial); err != nil {
			b.closeQueue()
			return err
		}
	} else {
		if err := b.arm(evAdd|evEnable, period); err != nil {
			b.closeQueue()
			return err
		}
	}

	b.done = make(chan struct{})
	go b.handle()
	return nil
}

func (b *kqueueBackend) arm(flags uint16, d time.Duration) error {
	ev := kevent{
		ident:  1,
		filter: evfiltTimer,
		flags:  flags,
		fflags: noteNSeconds,
		data:   d.Nanoseconds(),
	}
	_, errno := zcall.Syscall6(sysKevent, uintptr(b.kq), uintptr(unsafe.Pointer(&ev)), 1, 0, 0, 0)
	if errno != 0 {
		return errFromErrno(errno)
	}
	return nil
}

// waitEvent blocks for the next kqueue event. ok is false once the kqueue
// has been closed (Stop/Destroy), which is this backend's shutdown signal.
func (b *kqueueBackend) waitEvent() (kevent, bool) {
	for {
		var ev kevent
		_, errno := zcall.Syscall6(sysKevent, uintptr(b.kq), 0, 0, uintptr(unsafe.Pointer(&ev)), 1, 0)
		if errno != 0 {
			if zcall.Errno(errno) == zcall.EINTR {
				continue
			}
			if zcall.Errno(errno) == zcall.EBADF {
				return kevent{}, false
			}
			panic("ostimer: kevent: " + errFromErrno(errno).Error())
		}
		return ev, true
	}
}

func (b *kqueueBackend) handle() {
	defer close(b.done)

	if b.rearm {
		ev, ok := b.waitEvent()
		if !ok {
			return
		}
		b.recordFire()
		b.notify(ev.data - 1)

		if b.period == 0 {
			return
		}
		if err := b.arm(evAdd|evEnable, b.period); err != nil {
			return
		}
	}

	for {
		ev, ok := b.waitEvent()
		if !ok {
			return
		}
		b.recordFire()
		b.notify(ev.data - 1)
	}
}

func (b *kqueueBackend) recordFire() {
	b.mu.Lock()
	b.lastFire = time.Now()
	b.mu.Unlock()
}

func (b *kqueueBackend) closeQueue() uintptr {
	if b.kq == -1 {
		return 0
	}
	errno := zcall.Close(uintptr(b.kq))
	b.kq = -1
	return errno
}

func (b *kqueueBackend) Stop() error {
	if b.kq == -1 {
		return nil
	}
	errno := b.closeQueue()
	if b.done != nil {
		<-b.done
		b.done = nil
	}
	if errno != 0 {
		return errFromErrno(errno)
	}
	return nil
}

func (b *kqueueBackend) Destroy() error {
	return b.Stop()
}

func (b *kqueueBackend) Remaining() time.Duration {
	b.mu.Lock()
	lastFire := b.lastFire
	b.mu.Unlock()
	remaining := time.Until(lastFire.Add(b.period))
	if remaining < 0 {
		return 0
	}
	return remaining
}

func errFromErrno(errno uintptr) error {
	if errno == 0 {
		return nil
	}
	return zcall.Errno(errno)
}
