package tracelog

import "sort"

// FunctionAggregate is one row of a per-function aggregation: how many
// events were recorded while this function was anywhere on the stack
// (Inclusive) versus at the very top of it (Self), keyed by rendered name,
// carrying the originating Frame's fields along for
// hosts that want to re-render or locate the source.
type FunctionAggregate struct {
	Name        string
	File        string
	Line        uint32
	Class       string
	HasClass    bool
	Function    string
	HasFunction bool
	ClosureLine uint32
	Inclusive   int64
	Self        int64
}

// AggregateByFunction walks every sample's chain once, crediting each
// distinct rendered name appearing in it with the sample's event count
// toward Inclusive (counted once per sample regardless of recursion depth),
// and crediting the innermost frame's rendered name with the same count
// toward Self. Rows are sorted descending by Inclusive.
func (l *Log) AggregateByFunction() []FunctionAggregate {
	type acc struct {
		row       FunctionAggregate
		inclusive int64
		self      int64
	}
	agg := make(map[string]*acc)
	var order []string

	get := func(name string, f Frame) *acc {
		a, ok := agg[name]
		if !ok {
			a = &acc{row: FunctionAggregate{
				Name:        name,
				File:        f.File,
				Line:        f.Line,
				Class:       f.Class,
				HasClass:    f.HasClass,
				Function:    f.Function,
				HasFunction: f.HasFunction,
				ClosureLine: f.ClosureLine,
			}}
			agg[name] = a
			order = append(order, name)
		}
		return a
	}

	for _, e := range l.entries {
		chain := l.Trace(e.FrameID) // innermost-first
		seen := make(map[string]bool, len(chain))
		for i, f := range chain {
			name := RenderName(f)
			if !seen[name] {
				seen[name] = true
				get(name, f).inclusive += e.EventCount
			}
			if i == 0 {
				get(name, f).self += e.EventCount
			}
		}
	}

	result := make([]FunctionAggregate, 0, len(order))
	for _, name := range order {
		a := agg[name]
		row := a.row
		row.Inclusive = a.inclusive
		row.Self = a.self
		result = append(result, row)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Inclusive > result[j].Inclusive })
	return result
}
