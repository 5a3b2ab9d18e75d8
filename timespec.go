package excimer

import "time"

// Timespec is a normalized (seconds, nanoseconds) duration, nanoseconds
// always in [0, 1e9).
type Timespec struct {
	Seconds uint64
	Nanos   uint32
}

// FromSeconds splits a non-negative floating-point seconds value into a
// normalized Timespec. Negative values normalize to zero rather than
// returning an error; callers that need to reject negative input do so
// before calling this.
func FromSeconds(f float64) Timespec {
	if f < 0 {
		return Timespec{}
	}
	sec := uint64(f)
	nsec := uint32((f - float64(sec)) * 1e9)
	if nsec >= 1e9 {
		nsec -= 1e9
		sec++
	}
	return Timespec{Seconds: sec, Nanos: nsec}
}

// FromDuration converts a time.Duration (always non-negative in this
// module's usage) to a Timespec.
func FromDuration(d time.Duration) Timespec {
	if d < 0 {
		return Timespec{}
	}
	return Timespec{Seconds: uint64(d / time.Second), Nanos: uint32(d % time.Second)}
}

// Duration converts back to a time.Duration, saturating at the maximum
// representable duration rather than overflowing. Practical timer values
// never approach the bound.
func (t Timespec) Duration() time.Duration {
	const maxDuration = time.Duration(1<<63 - 1)
	if t.Seconds > uint64(maxDuration/time.Second) {
		return maxDuration
	}
	d := time.Duration(t.Seconds)*time.Second + time.Duration(t.Nanos)
	if d < 0 {
		return maxDuration
	}
	return d
}

// ToSeconds returns the value as floating-point seconds.
func (t Timespec) ToSeconds() float64 {
	return float64(t.Seconds) + float64(t.Nanos)/1e9
}
