package editor

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/util"
)

// HistoryPolicy decides which commands produce undoable snapshots.
type HistoryPolicy struct {
	// RecordViewChanges makes selection, device and preview/live switches
	// undoable like tree edits. When false they overwrite the current
	// snapshot and leave redo intact.
	RecordViewChanges bool
	// Limit caps the number of kept snapshots; zero keeps everything.
	Limit int
}

type Options struct {
	Policy HistoryPolicy
	IDs    util.Generator
	Logger *zap.Logger
}

// LoadTicket identifies one asynchronous load request. Only the most
// recently issued ticket may replace the document.
type LoadTicket struct {
	generation uint64
}

// Editor is the action channel of one editing session. Every command goes
// through it and is applied to completion before the next one starts.
type Editor struct {
	mu         sync.Mutex
	history    *History
	policy     HistoryPolicy
	ids        util.Generator
	logger     *zap.Logger
	generation uint64
	saved      string
}

// New starts a session for pageID at doc. doc is treated as the persisted
// version of the page for dirty tracking.
func New(pageID string, doc Document, opts Options) *Editor {
	if opts.IDs == nil {
		opts.IDs = util.UUIDv7()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	state := NewState(pageID, doc)
	e := &Editor{
		history: NewHistory(state, opts.Policy.Limit),
		policy:  opts.Policy,
		ids:     opts.IDs,
		logger:  opts.Logger.With(zap.String("page_id", pageID)),
	}
	e.saved = e.fingerprintOf(state.Document)
	return e
}

// Dispatch applies one command and returns the resulting visible state.
// On error the state is unchanged.
func (e *Editor) Dispatch(action Action) (EditorState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatch(action)
}

func (e *Editor) dispatch(action Action) (EditorState, error) {
	if action == nil {
		return e.history.Current(), fmt.Errorf("%w: nil action", ErrMalformedAction)
	}
	action = deref(action)

	switch action.(type) {
	case Undo:
		e.history.Undo()
		return e.history.Current(), nil
	case Redo:
		e.history.Redo()
		return e.history.Current(), nil
	}

	current := e.history.Current()
	next, err := Reduce(current, action, e.ids)
	if err != nil {
		e.logger.Debug("action rejected", zap.String("action", string(action.Type())), zap.Error(err))
		return current, err
	}

	switch t := action.Type(); {
	case t == ActionLoadData:
		e.generation++
		e.history.Reset(next)
	case IsTreeMutation(t):
		if next.Document.Root == current.Document.Root {
			return current, nil
		}
		e.history.Push(next)
	case IsViewChange(t) && e.policy.RecordViewChanges:
		e.history.Push(next)
	default:
		e.history.Replace(next)
	}
	return next, nil
}

// State returns the visible snapshot.
func (e *Editor) State() EditorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Current()
}

func (e *Editor) Stats() HistoryStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Stats()
}

// BeginLoad registers a new load request and invalidates older ones.
func (e *Editor) BeginLoad() LoadTicket {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	return LoadTicket{generation: e.generation}
}

// CompleteLoad applies content fetched for ticket as a LOAD_DATA command.
// It reports false without touching the session when a newer load was
// issued in the meantime. Unparsable content fails closed to a root-only
// document; the decode error is returned alongside the applied state.
func (e *Editor) CompleteLoad(ticket LoadTicket, content string, withLive bool) (EditorState, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ticket.generation != e.generation {
		e.logger.Info("stale load discarded",
			zap.Uint64("ticket", ticket.generation),
			zap.Uint64("latest", e.generation),
		)
		return e.history.Current(), false, nil
	}
	doc, decodeErr := DecodeOrEmpty(content)
	state, err := e.dispatch(LoadData{Elements: doc, WithLive: withLive})
	if err != nil {
		return state, false, err
	}
	if decodeErr != nil {
		e.logger.Warn("stored content unreadable, starting from an empty page", zap.Error(decodeErr))
		e.saved = ""
	} else {
		e.saved = e.fingerprintOf(doc)
	}
	return state, true, decodeErr
}

// Snapshot returns the visible state together with its serialized document,
// ready to hand to a save collaborator.
func (e *Editor) Snapshot() (EditorState, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state := e.history.Current()
	content, err := Encode(state.Document)
	if err != nil {
		return state, "", err
	}
	return state, content, nil
}

// MarkSaved records content as the persisted version of the page.
func (e *Editor) MarkSaved(content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.saved = Fingerprint(content)
}

// Dirty reports whether the visible document differs from the last saved
// or loaded one.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fingerprintOf(e.history.Current().Document) != e.saved
}

func (e *Editor) fingerprintOf(doc Document) string {
	content, err := Encode(doc)
	if err != nil {
		return ""
	}
	return Fingerprint(content)
}
