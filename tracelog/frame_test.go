package tracelog

import "testing"

// testFrame is a fixed fixture chain satisfying StackFrame, standing in for
// a real Host adapter's call stack.
type testFrame struct {
	file        string
	line        uint32
	closureLine uint32
	class       string
	hasClass    bool
	function    string
	hasFunction bool
	builtin     bool
	parent      *testFrame
}

func (f *testFrame) File() string             { return f.file }
func (f *testFrame) Line() uint32             { return f.line }
func (f *testFrame) ClosureLine() uint32      { return f.closureLine }
func (f *testFrame) Class() (string, bool)    { return f.class, f.hasClass }
func (f *testFrame) Function() (string, bool) { return f.function, f.hasFunction }
func (f *testFrame) Builtin() bool            { return f.builtin }
func (f *testFrame) Parent() (StackFrame, bool) {
	if f.parent == nil {
		return nil, false
	}
	return f.parent, true
}

func fn(name string, line uint32, parent *testFrame) *testFrame {
	return &testFrame{file: "script.php", line: line, function: name, hasFunction: true, parent: parent}
}

func TestInterner_IdenticalChainsDedupe(t *testing.T) {
	in := NewInterner(0)

	a1 := fn("a", 10, nil)
	b1 := fn("b", 20, a1)
	id1 := in.WalkStack(b1)

	a2 := fn("a", 10, nil)
	b2 := fn("b", 20, a2)
	id2 := in.WalkStack(b2)

	if id1 != id2 {
		t.Fatalf("identical chains should dedupe to the same frame id: got %d and %d", id1, id2)
	}
	if len(in.frames) != 3 { // sentinel root + a + b
		t.Fatalf("expected 3 frame records (root+a+b), got %d", len(in.frames))
	}
}

func TestInterner_DifferingLineIsDistinctFrame(t *testing.T) {
	in := NewInterner(0)

	id1 := in.WalkStack(fn("a", 10, nil))
	id2 := in.WalkStack(fn("a", 11, nil))

	if id1 == id2 {
		t.Fatalf("frames at different lines must not dedupe")
	}
}

func TestInterner_BuiltinFrameIsSkipped(t *testing.T) {
	in := NewInterner(0)

	a := fn("a", 10, nil)
	builtin := &testFrame{file: "<builtin>", line: 0, function: "array_map", hasFunction: true, builtin: true, parent: a}
	b := fn("b", 20, builtin)

	id := in.WalkStack(b)
	f, ok := in.Frame(id)
	if !ok {
		t.Fatalf("expected frame to exist")
	}
	parent, ok := in.Frame(f.ParentID)
	if !ok {
		t.Fatalf("expected parent frame to exist")
	}
	if parent.Function != "a" {
		t.Fatalf("builtin frame should have been skipped, parent should be 'a', got %q", parent.Function)
	}
}

func TestInterner_TruncationAtMaxDepth(t *testing.T) {
	in := NewInterner(2)

	// depth-5 chain: a -> b -> c -> d -> e (e innermost)
	a := fn("a", 1, nil)
	b := fn("b", 2, a)
	c := fn("c", 3, b)
	d := fn("d", 4, c)
	e := fn("e", 5, d)

	id := in.WalkStack(e)
	leaf, ok := in.Frame(id)
	if !ok {
		t.Fatalf("expected leaf frame")
	}
	if leaf.Function != "e" {
		t.Fatalf("expected innermost frame 'e', got %q", leaf.Function)
	}
	mid, ok := in.Frame(leaf.ParentID)
	if !ok || mid.Function != "d" {
		t.Fatalf("expected 'd' as e's parent")
	}
	truncated, ok := in.Frame(mid.ParentID)
	if !ok {
		t.Fatalf("expected truncation marker frame to exist")
	}
	if truncated.Function != truncatedFunctionName {
		t.Fatalf("expected truncation marker, got function %q", truncated.Function)
	}
	if mid.ParentID != in.TruncationMarker() {
		t.Fatalf("expected all truncated chains to share one marker id")
	}
}

func TestInterner_TwoTruncatedChainsShareOneMarker(t *testing.T) {
	in := NewInterner(1)

	chain1 := fn("b", 2, fn("a", 1, nil))
	chain2 := fn("y", 2, fn("x", 1, nil))

	in.WalkStack(chain1)
	in.WalkStack(chain2)

	// Both chains clip down to their single innermost frame with the shared
	// truncation marker as parent — only one marker frame should ever exist.
	count := 0
	for _, f := range in.frames {
		if f.Function == truncatedFunctionName {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 truncation marker frame, got %d", count)
	}
}
