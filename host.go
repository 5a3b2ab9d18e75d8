package excimer

import (
	"runtime"
	"strings"
	"sync/atomic"

	"code.hybscloud.com/excimer/tracelog"
)

// Host abstracts the services a hosting interpreter supplies to the timer
// and profiler facades: the current execution stack on demand, an
// interrupt flag the core may set and the host polls between operations,
// and a callback invoker able to call user code at interrupt time. Facades
// in this package are constructed against a Host rather than reaching for
// globals, so a real embedding can supply its own (e.g. one bound to a
// scripting VM's own stack-walking primitive) while tests use a fixed
// fixture.
type Host interface {
	// CurrentStack returns the innermost frame of the calling goroutine's
	// current logical stack, walkable outward via StackFrame.Parent.
	CurrentStack() tracelog.StackFrame
	// Interrupt returns the flag this Host polls between operations; Start
	// sets it via the dispatcher whenever a timer has pending work.
	Interrupt() *atomic.Bool
	// InvokeCallback runs fn(overrun) at a point the Host considers safe —
	// for GoHost this is simply "on the calling goroutine", since Go has no
	// async-signal-unsafe callback boundary the way a VM's interrupt check
	// does; embeddings with a real script thread boundary enforce it here.
	InvokeCallback(fn func(overrun int64), overrun int64)
}

// GoHost is the default Host: it walks the calling goroutine's stack with
// runtime.Callers/runtime.CallersFrames and calls back inline.
type GoHost struct {
	interrupt atomic.Bool
}

// NewGoHost creates a GoHost ready to use.
func NewGoHost() *GoHost {
	return &GoHost{}
}

func (h *GoHost) Interrupt() *atomic.Bool {
	return &h.interrupt
}

func (h *GoHost) InvokeCallback(fn func(overrun int64), overrun int64) {
	fn(overrun)
}

// CurrentStack walks the calling goroutine's stack starting one frame above
// CurrentStack itself, so the caller of CurrentStack is the innermost
// recorded frame.
func (h *GoHost) CurrentStack() tracelog.StackFrame {
	const maxFrames = 128
	pc := make([]uintptr, maxFrames)
	// Skip runtime.Callers and CurrentStack itself.
	n := runtime.Callers(2, pc)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pc[:n])

	var chain []*goFrame
	for {
		f, more := frames.Next()
		chain = append(chain, newGoFrame(f))
		if !more {
			break
		}
	}
	for i := 0; i < len(chain)-1; i++ {
		chain[i].parent = chain[i+1]
	}
	if len(chain) == 0 {
		return nil
	}
	return chain[0]
}

// goFrame adapts a runtime.Frame to tracelog.StackFrame. Go has no
// class/method distinction at the runtime.Frame level, so Function is split
// on the last '.' into an optional "class" (the receiver/package-qualified
// prefix) and the trailing method/function name, and closures are detected
// by Go's "funcN"/".func" anonymous-function naming convention.
type goFrame struct {
	file     string
	line     uint32
	class    string
	hasClass bool
	function string
	parent   *goFrame
}

func newGoFrame(f runtime.Frame) *goFrame {
	name := f.Function
	gf := &goFrame{file: f.File, line: uint32(f.Line), function: name}
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		gf.class = name[:idx]
		gf.hasClass = true
		gf.function = name[idx+1:]
	}
	return gf
}

func (f *goFrame) File() string { return f.file }
func (f *goFrame) Line() uint32 { return f.line }

// ClosureLine reports this frame's own line when its name carries Go's
// anonymous-closure marker (a trailing "funcN" segment), since Go does not
// expose the line a closure literal was defined on separately from its
// current line.
func (f *goFrame) ClosureLine() uint32 {
	if isClosureName(f.function) {
		return f.line
	}
	return 0
}

// isClosureName matches the trailing "funcN" segment the runtime gives
// anonymous functions, including nested ones ("func1.func2"). The name seen
// here is the part after the last '.' of the full symbol, so a top-level
// closure arrives as a bare "funcN".
func isClosureName(name string) bool {
	if !strings.HasPrefix(name, "func") {
		return false
	}
	rest := name[len("func"):]
	if rest == "" {
		return false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (f *goFrame) Class() (string, bool) { return f.class, f.hasClass }

func (f *goFrame) Function() (string, bool) {
	if f.function == "" {
		return "", false
	}
	return f.function, true
}

// Builtin always reports false: runtime.CallersFrames already omits
// inlined/elided machinery below the Go level, so every frame reaching this
// point is attributable user (or stdlib) Go code.
func (f *goFrame) Builtin() bool { return false }

func (f *goFrame) Parent() (tracelog.StackFrame, bool) {
	if f.parent == nil {
		return nil, false
	}
	return f.parent, true
}
