package tracelog

// SpeedscopeFrame is one entry of the speedscope "shared.frames" array.
// Frames here are deduplicated by (rendered name, file) — a coarser key
// than the Interner's own (file, line, parent_id), since speedscope has no
// notion of call-chain-sensitive frame identity.
type SpeedscopeFrame struct {
	Name string `json:"name"`
	File string `json:"file"`
}

// SpeedscopeProfile is the single "sampled" profile speedscope expects.
type SpeedscopeProfile struct {
	Type       string  `json:"type"`
	Name       string  `json:"name"`
	Unit       string  `json:"unit"`
	StartValue int64   `json:"startValue"`
	EndValue   int64   `json:"endValue"`
	Samples    [][]int `json:"samples"`
	Weights    []int64 `json:"weights"`
}

// Speedscope is the top-level document written out for speedscope.app.
type Speedscope struct {
	Schema string `json:"$schema"`
	Shared struct {
		Frames []SpeedscopeFrame `json:"frames"`
	} `json:"shared"`
	Profiles []SpeedscopeProfile `json:"profiles"`
	Exporter string              `json:"exporter"`
}

// SpeedscopeData builds the speedscope-compatible structured profile for
// this log. Each sample's chain is emitted outermost-to-innermost as an
// array of shared-frame indices; weight is the event count scaled by the
// sampling period.
func (l *Log) SpeedscopeData() Speedscope {
	frameIndex := make(map[string]int)
	var frames []SpeedscopeFrame

	indexOf := func(f Frame) int {
		name := RenderName(f)
		key := name + "\x00" + f.File
		if idx, ok := frameIndex[key]; ok {
			return idx
		}
		idx := len(frames)
		frames = append(frames, SpeedscopeFrame{Name: name, File: f.File})
		frameIndex[key] = idx
		return idx
	}

	samples := make([][]int, 0, len(l.entries))
	weights := make([]int64, 0, len(l.entries))
	for _, e := range l.entries {
		chain := l.Trace(e.FrameID) // innermost-first
		idxs := make([]int, len(chain))
		for i, f := range chain {
			idxs[len(chain)-1-i] = indexOf(f)
		}
		samples = append(samples, idxs)
		weights = append(weights, e.EventCount*l.periodNS)
	}

	var endValue int64
	if n := len(l.entries); n > 0 {
		endValue = l.entries[n-1].TimestampNS - l.entries[0].TimestampNS
	}

	var doc Speedscope
	doc.Schema = "https://www.speedscope.app/file-format-schema.json"
	doc.Exporter = "Excimer"
	doc.Shared.Frames = frames
	doc.Profiles = []SpeedscopeProfile{{
		Type:       "sampled",
		Name:       "",
		Unit:       "nanoseconds",
		StartValue: 0,
		EndValue:   endValue,
		Samples:    samples,
		Weights:    weights,
	}}
	return doc
}
