package excimer

import (
	"errors"
	"fmt"
)

// Warn receives non-fatal diagnostics: misuse (invalid event type, zero
// period and zero initial, a non-callable flush callback) and OS-level
// failures on the main thread. Hosts embedding this package may replace it
// to route into their own logging; the default is a no-op. Never called
// concurrently with itself by this package's own code (callers only ever
// invoke it from the script thread), but a replacement that itself needs
// concurrency safety must provide its own.
var Warn func(format string, args ...any) = func(string, ...any) {}

func warnf(format string, args ...any) {
	if Warn != nil {
		Warn(format, args...)
	}
}

// ErrInvalidEventType is reported when SetEventType is given a value other
// than EventReal/EventCPU. EventCPU on a backend with no per-thread CPU clock
// fails at Start instead, with an error wrapping ostimer.ErrCPUUnsupported.
var ErrInvalidEventType = errors.New("excimer: invalid event type")

// ErrNoPeriod is reported by Start when both period and initial are zero.
var ErrNoPeriod = errors.New("excimer: period and initial are both zero")

// ErrWrongThread is reported when a timer or profiler is destroyed from a
// thread other than the one that owns it.
var ErrWrongThread = errors.New("excimer: destroy called from a different thread than start")

// errWakerClosed is returned internally by a Runtime's platformWaker once
// Close has been called, terminating its drain loop.
var errWakerClosed = errors.New("excimer: runtime closed")

func wrapOSError(op string, err error) error {
	warnf("excimer: %s: %v", op, err)
	return fmt.Errorf("excimer: %s: %w", op, err)
}
