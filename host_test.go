package excimer_test

import (
	"strings"
	"testing"

	"code.hybscloud.com/excimer"
	"code.hybscloud.com/excimer/tracelog"
)

func TestGoHost_CurrentStackLeafIsCaller(t *testing.T) {
	h := excimer.NewGoHost()
	leaf := currentStackHelper(h)
	if leaf == nil {
		t.Fatal("CurrentStack returned nil")
	}
	name, ok := leaf.Function()
	if !ok {
		t.Fatal("leaf frame has no function name")
	}
	if name != "currentStackHelper" {
		t.Fatalf("leaf function = %q, want currentStackHelper", name)
	}
	if !strings.HasSuffix(leaf.File(), "host_test.go") {
		t.Errorf("leaf file = %q, want host_test.go", leaf.File())
	}
}

//go:noinline
func currentStackHelper(h *excimer.GoHost) tracelog.StackFrame {
	return h.CurrentStack()
}

func TestGoHost_StackWalksOutwardToRoot(t *testing.T) {
	h := excimer.NewGoHost()
	leaf := h.CurrentStack()
	if leaf == nil {
		t.Fatal("CurrentStack returned nil")
	}
	depth := 0
	for cur := leaf; ; depth++ {
		if depth > 256 {
			t.Fatal("parent chain did not terminate")
		}
		parent, ok := cur.Parent()
		if !ok {
			break
		}
		cur = parent
	}
	if depth < 1 {
		t.Errorf("expected at least the test and its caller on the stack, got depth %d", depth)
	}
}

func TestGoHost_ClosureFrameHasClosureLine(t *testing.T) {
	h := excimer.NewGoHost()
	var leaf tracelog.StackFrame
	func() {
		leaf = currentStackHelper(h)
	}()
	// The helper's caller is the anonymous func literal above; its frame
	// must carry a closure line.
	parent, ok := leaf.Parent()
	if !ok {
		t.Fatal("leaf has no parent")
	}
	if parent.ClosureLine() == 0 {
		name, _ := parent.Function()
		t.Errorf("expected closure line on anonymous function frame %q", name)
	}
}

func TestGoHost_InterruptFlagIsStable(t *testing.T) {
	h := excimer.NewGoHost()
	if h.Interrupt() != h.Interrupt() {
		t.Fatal("Interrupt must return the same flag every call")
	}
	h.Interrupt().Store(true)
	if !h.Interrupt().Load() {
		t.Fatal("flag write not observed through second Interrupt() call")
	}
}
