//go:build darwin

package ostimer

// kqueue/kevent syscall numbers and EVFILT_TIMER flags for Darwin,
// extending code.hybscloud.com/iofd's own const_darwin.go in the same
// per-platform style. Reference: /usr/include/sys/event.h, sys/syscall.h.
const (
	sysKqueue = 362
	sysKevent = 363

	evfiltTimer  = -7
	noteNSeconds = 0x00000008
	evAdd        = 0x0001
	evEnable     = 0x0004
	evOneshot    = 0x0010
)
