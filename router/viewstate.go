package router

import (
	"strings"
	"time"

	"wandb-canvas/pane/tmux"
	"wandb-canvas/protocol"

	"github.com/mattn/go-runewidth"
)

func (r *Router) buildViewState() *protocol.ViewState {
	snapshot, capturedAt := r.manager.LastCapture()

	vs := &protocol.ViewState{
		TerminalSnapshot: snapshot,
	}

	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	vs.LastUpdated = protocol.Timestamp(capturedAt)

	if id := r.manager.PaneID(); id != "" {
		vs.LeetPaneID = &id
	}

	cols, rows, err := r.manager.Dimensions()
	if err != nil {
		// Fall back to measuring the snapshot itself
		cols, rows = measureSnapshot(snapshot)
		vs.Errors = append(vs.Errors, "pane size query failed, dimensions measured from snapshot")
	}
	vs.TerminalDimensions = protocol.Dimensions{Cols: cols, Rows: rows}

	return vs
}

// measureSnapshot derives terminal dimensions from captured text: the widest
// line in display cells by the line count. Used when the multiplexer cannot
// be queried for the real pane size.
func measureSnapshot(snapshot string) (cols, rows int) {
	if snapshot == "" {
		return 80, 24
	}

	lines := strings.Split(strings.TrimRight(snapshot, "\n"), "\n")
	for _, line := range lines {
		if w := runewidth.StringWidth(tmux.StripEscapes(line)); w > cols {
			cols = w
		}
	}
	return cols, len(lines)
}
