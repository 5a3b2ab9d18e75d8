package tracelog

import "time"

// Entry is one recorded sample: the frame id of the innermost frame at
// sample time, the coalesced event count delivered with it, and the
// monotonic timestamp it was recorded at.
type Entry struct {
	FrameID     uint32
	EventCount  int64
	TimestampNS int64
}

// Timestamp returns the entry's recording time as a time.Time.
func (e Entry) Timestamp() time.Time {
	return time.Unix(0, e.TimestampNS)
}

// Log is an append-only sequence of Entry plus the Interner that owns the
// frame graph behind it. Frames and entries only grow: existing ids and
// indices never change.
//
// Logs are built with New, which gives each Log its own Interner. All fields
// are unexported; a zero Log has no Interner and Add on it panics.
type Log struct {
	interner *Interner
	entries  []Entry

	maxDepth uint32
	epochNS  int64
	periodNS int64

	totalEventCount int64
}

// New creates an empty Log. epochNS/periodNS are carried forward verbatim
// by FreshWithSameOptions on flush/rotation; they are not interpreted here.
func New(maxDepth uint32, epochNS, periodNS int64) *Log {
	return &Log{
		interner: NewInterner(maxDepth),
		maxDepth: maxDepth,
		epochNS:  epochNS,
		periodNS: periodNS,
	}
}

// FreshWithSameOptions returns a new, empty Log carrying this Log's
// maxDepth/epochNS/periodNS forward, used when a Profiler flushes: the old
// Log is handed to the flush callback while a fresh one takes over.
func (l *Log) FreshWithSameOptions() *Log {
	return New(l.maxDepth, l.epochNS, l.periodNS)
}

// Add interns leaf's full call chain and appends a new Entry recording it.
func (l *Log) Add(leaf StackFrame, eventCount int64, timestampNS int64) {
	frameID := l.interner.WalkStack(leaf)
	l.entries = append(l.entries, Entry{FrameID: frameID, EventCount: eventCount, TimestampNS: timestampNS})
	l.totalEventCount += eventCount
}

// Len returns the number of recorded samples.
func (l *Log) Len() int {
	return len(l.entries)
}

// At returns the i-th sample entry, or ok=false if i is out of range. Out of
// range access never mutates the log.
func (l *Log) At(i int) (Entry, bool) {
	if i < 0 || i >= len(l.entries) {
		return Entry{}, false
	}
	return l.entries[i], true
}

// GetFrame returns the frame record for id.
func (l *Log) GetFrame(id uint32) (Frame, bool) {
	return l.interner.Frame(id)
}

// EventCount returns the sum of event counts across all recorded samples.
func (l *Log) EventCount() int64 {
	return l.totalEventCount
}

// PeriodNS returns the sampling period this log was created with, in
// nanoseconds (used by SpeedscopeData's weight computation).
func (l *Log) PeriodNS() int64 {
	return l.periodNS
}

// EpochNS returns the wall-clock epoch recorded when this log (or the
// first log in its flush chain) was created, in nanoseconds.
func (l *Log) EpochNS() int64 {
	return l.epochNS
}

// MaxDepth returns the depth limit this log was created with.
func (l *Log) MaxDepth() uint32 {
	return l.maxDepth
}

// Trace returns the full call chain for a recorded frame id,
// innermost-frame-first — the opposite order from the exporters, for
// compatibility with conventional stack-trace formatting.
func (l *Log) Trace(frameID uint32) []Frame {
	var chain []Frame
	for id := frameID; id != 0; {
		f, ok := l.interner.Frame(id)
		if !ok {
			break
		}
		chain = append(chain, f)
		id = f.ParentID
	}
	return chain
}
