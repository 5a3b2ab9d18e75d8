//go:build linux

package ostimer

import (
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"code.hybscloud.com/excimer/iofd"
	"code.hybscloud.com/zcall"
)

// New creates the Linux backend. Real-clock timers are delivered as fd
// readiness through iofd.TimerFD (CLOCK_MONOTONIC); CPU-clock timers have no
// timerfd equivalent and so use a directed POSIX per-thread timer
// (timer_create + SIGEV_THREAD_ID) received through an iofd.SignalFD on a
// dedicated handler goroutine.
func New(kind EventType, notify NotifyFunc) (Backend, error) {
	return NewWithSignal(kind, notify, DefaultRealtimeSignal)
}

// NewWithSignal is New with an explicit delivery signal number, for hosts
// whose real-time signal conventions differ from the default.
func NewWithSignal(kind EventType, notify NotifyFunc, signo int) (Backend, error) {
	if kind == Real {
		return newRealBackend(notify)
	}
	return newCPUBackend(notify, signo)
}

// realBackend delivers Real-clock expirations as iofd.TimerFD readiness,
// read by a dedicated goroutine in blocking mode.
type realBackend struct {
	tfd    *iofd.TimerFD
	notify NotifyFunc
	killed atomic.Bool
	done   chan struct{}
}

func newRealBackend(notify NotifyFunc) (*realBackend, error) {
	tfd, err := iofd.NewTimerFD()
	if err != nil {
		return nil, err
	}
	if err := tfd.SetBlocking(true); err != nil {
		tfd.Close()
		return nil, err
	}
	b := &realBackend{tfd: tfd, notify: notify, done: make(chan struct{})}
	go b.loop()
	return b, nil
}

func (b *realBackend) loop() {
	defer close(b.done)
	for {
		count, err := b.tfd.Read()
		if err != nil {
			// ErrClosed terminates the handler cleanly; any other failure
			// here indicates a kernel-level invariant violation and is not
			// retried.
			return
		}
		if b.killed.Load() {
			return
		}
		if count > 0 {
			b.notify(int64(count) - 1)
		}
	}
}

func (b *realBackend) Start(period, initial time.Duration) error {
	initialNS := initial.Nanoseconds()
	if initialNS == 0 {
		// A zero it_value would disarm the timer; 1ns arms it for an
		// immediate first expiration instead.
		initialNS = 1
	}
	return b.tfd.Arm(initialNS, period.Nanoseconds())
}

func (b *realBackend) Stop() error {
	return b.tfd.Disarm()
}

// Destroy wakes the handler goroutine with a 1ns one-shot expiration before
// closing the fd: a read(2) already blocked in the kernel is not interrupted
// by a close from another thread, so the timer itself is the wakeup.
func (b *realBackend) Destroy() error {
	b.killed.Store(true)
	_ = b.tfd.Arm(1, 0)
	<-b.done
	return b.tfd.Close()
}

func (b *realBackend) Remaining() time.Duration {
	remaining, _, err := b.tfd.GetTime()
	if err != nil {
		return 0
	}
	return time.Duration(remaining)
}

// cpuBackend delivers CPU-clock expirations via a raw timer_create(2) with
// SIGEV_THREAD_ID, received through an iofd.SignalFD on a dedicated,
// OS-thread-pinned handler goroutine.
//
// The measured clock is the CPU clock of the thread calling NewWithSignal
// (the handler thread only sleeps in read(2); its own CPU clock would never
// advance), while delivery is directed at the handler thread's tid. Callers
// that care which thread's CPU time is sampled must pin their goroutine
// with runtime.LockOSThread around the call.
type cpuBackend struct {
	notify  NotifyFunc
	signo   int
	sfd     *iofd.SignalFD
	timerID int32
	tid     int32
	killed  atomic.Bool
	done    chan struct{}
}

const sigevThreadID = 4

// siTimer is the siginfo si_code the kernel sets on POSIX-timer expiration
// signals; the directed wakeup signal sent during Destroy carries a
// different code and must not reach notify.
const siTimer = -2

type sigevent struct {
	sigevValue          uintptr
	sigevSigno          int32
	sigevNotify         int32
	sigevNotifyThreadID int32
	_                   [44]byte
}

type ktimespec struct {
	sec  int64
	nsec int64
}

type kitimerspec struct {
	interval ktimespec
	value    ktimespec
}

type handlerReady struct {
	tid int32
	err error
}

func newCPUBackend(notify NotifyFunc, signo int) (*cpuBackend, error) {
	clockID, err := cpuClockIDForCurrentThread()
	if err != nil {
		return nil, err
	}

	b := &cpuBackend{
		notify: notify,
		signo:  signo,
		done:   make(chan struct{}),
	}
	ready := make(chan handlerReady, 1)
	go b.handle(ready)
	r := <-ready
	if r.err != nil {
		<-b.done
		return nil, r.err
	}
	b.tid = r.tid

	// timer_create must run on this thread, not the handler thread: in CPU
	// mode the kernel silently fails to deliver events when the timer is
	// created from a thread other than the clock's owner.
	ev := sigevent{
		sigevSigno:          int32(signo),
		sigevNotify:         sigevThreadID,
		sigevNotifyThreadID: r.tid,
	}
	var timerID int32
	_, errno := zcall.Syscall4(sysTimerCreate, clockID, uintptr(unsafe.Pointer(&ev)), uintptr(unsafe.Pointer(&timerID)), 0)
	if errno != 0 {
		b.killed.Store(true)
		b.wakeHandler()
		<-b.done
		b.sfd.Close()
		return nil, errFromErrno(errno)
	}
	b.timerID = timerID
	return b, nil
}

// cpuClockIDForCurrentThread returns the dynamic clockid_t referring to the
// calling OS thread's CPU time, the same encoding pthread_getcpuclockid
// produces: (~tid << 3) | 4.
func cpuClockIDForCurrentThread() (uintptr, error) {
	tid, errno := zcall.Syscall4(sysGetTid, 0, 0, 0, 0)
	if errno != 0 {
		return 0, errFromErrno(errno)
	}
	return uintptr((^uint64(tid) << 3) | 4), nil
}

// handle is the dedicated handler thread: it blocks the delivery signal,
// publishes its tid, then loops on blocking signalfd reads until killed.
func (b *cpuBackend) handle(ready chan<- handlerReady) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(b.done)

	var mask iofd.SigSet
	mask.Add(b.signo)

	if errno := rtSigprocmaskBlock(mask); errno != 0 {
		ready <- handlerReady{err: errFromErrno(errno)}
		return
	}

	sfd, err := iofd.NewSignalFD(mask)
	if err != nil {
		ready <- handlerReady{err: err}
		return
	}
	if err := sfd.SetBlocking(true); err != nil {
		sfd.Close()
		ready <- handlerReady{err: err}
		return
	}
	b.sfd = sfd

	tid, errno := zcall.Syscall4(sysGetTid, 0, 0, 0, 0)
	if errno != 0 {
		sfd.Close()
		ready <- handlerReady{err: errFromErrno(errno)}
		return
	}
	ready <- handlerReady{tid: int32(tid)}

	for {
		info, err := sfd.Read()
		if err != nil {
			return
		}
		if b.killed.Load() {
			return
		}
		if info.Code != siTimer {
			continue
		}
		b.notify(int64(info.Overrun))
	}
}

func (b *cpuBackend) Start(period, initial time.Duration) error {
	its := kitimerspec{
		interval: durationToKtimespec(period),
		value:    durationToKtimespec(initial),
	}
	if its.value.sec == 0 && its.value.nsec == 0 {
		// A zero it_value would disarm; 1ns arms for immediate expiration.
		its.value.nsec = 1
	}
	_, errno := zcall.Syscall4(sysTimerSettime, uintptr(b.timerID), 0, uintptr(unsafe.Pointer(&its)), 0)
	if errno != 0 {
		return errFromErrno(errno)
	}
	return nil
}

func (b *cpuBackend) Stop() error {
	var its kitimerspec
	_, errno := zcall.Syscall4(sysTimerSettime, uintptr(b.timerID), 0, uintptr(unsafe.Pointer(&its)), 0)
	if errno != 0 {
		return errFromErrno(errno)
	}
	return nil
}

// wakeHandler sends the delivery signal directly at the handler thread.
// tgkill rather than kill: the signal is blocked only on the handler
// thread, so a process-directed signal could land on any other thread and
// terminate the process with the default action.
func (b *cpuBackend) wakeHandler() {
	pid, errno := zcall.Syscall4(sysGetPid, 0, 0, 0, 0)
	if errno != 0 {
		return
	}
	_, _ = zcall.Syscall4(sysTgkill, pid, uintptr(b.tid), uintptr(b.signo), 0)
}

// Destroy disarms the timer, wakes and joins the handler thread, then
// deletes the kernel timer and closes the signalfd.
func (b *cpuBackend) Destroy() error {
	_ = b.Stop()
	b.killed.Store(true)
	b.wakeHandler()
	<-b.done

	_, delErrno := zcall.Syscall4(sysTimerDelete, uintptr(b.timerID), 0, 0, 0)
	if b.sfd != nil {
		b.sfd.Close()
	}
	if delErrno != 0 {
		return errFromErrno(delErrno)
	}
	return nil
}

func (b *cpuBackend) Remaining() time.Duration {
	var its kitimerspec
	_, errno := zcall.Syscall4(sysTimerGettime, uintptr(b.timerID), uintptr(unsafe.Pointer(&its)), 0, 0)
	if errno != 0 {
		return 0
	}
	return time.Duration(its.value.sec)*time.Second + time.Duration(its.value.nsec)
}

func durationToKtimespec(d time.Duration) ktimespec {
	if d < 0 {
		d = 0
	}
	return ktimespec{sec: int64(d / time.Second), nsec: int64(d % time.Second)}
}

func rtSigprocmaskBlock(mask iofd.SigSet) uintptr {
	const sigBlock = 0
	_, errno := zcall.Syscall4(sysRtSigprocmask, sigBlock, uintptr(unsafe.Pointer(&mask)), 0, 8)
	return errno
}

func errFromErrno(errno uintptr) error {
	if errno == 0 {
		return nil
	}
	return zcall.Errno(errno)
}
