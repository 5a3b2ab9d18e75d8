//go:build linux && loong64

package ostimer

// Raw Linux loong64 syscall numbers (generic asm-generic unistd table,
// shared with arm64/riscv64), kept per-architecture the same way the iofd
// package keeps its own const_linux_loong64.go.
const (
	sysGetPid          = 172
	sysGetTid          = 178
	sysTgkill          = 131
	sysRtSigprocmask   = 135
	sysTimerCreate     = 107
	sysTimerSettime    = 110
	sysTimerGettime    = 108
	sysTimerDelete     = 111
	sysTimerGetoverrun = 109
)
