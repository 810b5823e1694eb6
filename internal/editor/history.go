package editor

// History is a linear list of snapshots with a cursor. Recording a new
// snapshot discards anything that was redoable.
type History struct {
	snapshots []EditorState
	cursor    int
	limit     int
}

// NewHistory starts a history at initial. limit caps the number of kept
// snapshots; zero or less keeps everything.
func NewHistory(initial EditorState, limit int) *History {
	return &History{
		snapshots: []EditorState{initial},
		limit:     limit,
	}
}

func (h *History) Current() EditorState {
	return h.snapshots[h.cursor]
}

func (h *History) Len() int    { return len(h.snapshots) }
func (h *History) Cursor() int { return h.cursor }

func (h *History) CanUndo() bool { return h.cursor > 0 }

func (h *History) CanRedo() bool { return h.cursor < len(h.snapshots)-1 }

// Push truncates the history after the cursor and appends state.
func (h *History) Push(state EditorState) {
	h.snapshots = append(h.snapshots[:h.cursor+1], state)
	h.cursor = len(h.snapshots) - 1
	if h.limit > 0 && len(h.snapshots) > h.limit {
		drop := len(h.snapshots) - h.limit
		kept := make([]EditorState, h.limit)
		copy(kept, h.snapshots[drop:])
		h.snapshots = kept
		h.cursor -= drop
	}
}

// Replace overwrites the snapshot under the cursor without touching the
// rest of the history.
func (h *History) Replace(state EditorState) {
	h.snapshots[h.cursor] = state
}

// Undo moves the cursor back one snapshot. It reports false at the start
// of the history.
func (h *History) Undo() bool {
	if !h.CanUndo() {
		return false
	}
	h.cursor--
	return true
}

// Redo moves the cursor forward one snapshot. It reports false at the end
// of the history.
func (h *History) Redo() bool {
	if !h.CanRedo() {
		return false
	}
	h.cursor++
	return true
}

// Reset discards every snapshot and starts over from state.
func (h *History) Reset(state EditorState) {
	h.snapshots = []EditorState{state}
	h.cursor = 0
}

// HistoryStats summarizes the history for clients.
type HistoryStats struct {
	Length  int  `json:"length"`
	Cursor  int  `json:"cursor"`
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

func (h *History) Stats() HistoryStats {
	return HistoryStats{
		Length:  len(h.snapshots),
		Cursor:  h.cursor,
		CanUndo: h.CanUndo(),
		CanRedo: h.CanRedo(),
	}
}
