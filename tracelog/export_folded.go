package tracelog

import (
	"sort"
	"strconv"
	"strings"
)

// FormatCollapsed renders the folded-stack text format: for each sample,
// the chain outermost-to-innermost joined by ';', counts summed per
// identical rendered chain text (not per frame id — two distinct chains
// that render identically, e.g. differing only by excluded detail, still
// merge). Lines are `<chain> <count>\n`, sorted by chain text for a
// deterministic iteration order.
func (l *Log) FormatCollapsed() string {
	countsByFrame := make(map[uint32]int64)
	for _, e := range l.entries {
		countsByFrame[e.FrameID] += e.EventCount
	}

	textCounts := make(map[string]int64, len(countsByFrame))
	for frameID, count := range countsByFrame {
		textCounts[l.renderChainText(frameID)] += count
	}

	keys := make([]string, 0, len(textCounts))
	for k := range textCounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatInt(textCounts[k], 10))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// renderChainText renders the full chain for frameID outermost-to-innermost.
func (l *Log) renderChainText(frameID uint32) string {
	chain := l.Trace(frameID) // innermost-first
	parts := make([]string, len(chain))
	for i, f := range chain {
		parts[len(chain)-1-i] = RenderName(f)
	}
	return strings.Join(parts, ";")
}
