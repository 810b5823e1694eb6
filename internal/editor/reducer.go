package editor

import (
	"errors"
	"fmt"

	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/util"
)

var ErrDuplicateID = errors.New("element id already in use")

// errHistoryAction is returned when Reduce is handed a command that only
// makes sense against a History.
var errHistoryAction = errors.New("history action cannot be reduced against a single state")

// Reduce is the pure state transition of the engine: it applies one
// command to state and returns the next state. state is never modified.
// ids supplies fresh element ids for duplication and for new elements that
// arrive without one.
func Reduce(state EditorState, action Action, ids util.Generator) (EditorState, error) {
	if action == nil {
		return state, fmt.Errorf("%w: nil action", ErrMalformedAction)
	}
	action = deref(action)
	if err := action.validate(); err != nil {
		return state, fmt.Errorf("%w: %s: %v", ErrMalformedAction, action.Type(), err)
	}
	next := state
	switch a := action.(type) {
	case AddElement:
		el, err := prepareNewElement(state.Document, a.Element, ids)
		if err != nil {
			return state, err
		}
		var index int
		if a.Index != nil {
			index = *a.Index
		} else if container, ok := Find(state.Document, a.ContainerID); ok {
			index = len(container.Children)
		}
		next.Document = Insert(state.Document, a.ContainerID, el, index)

	case UpdateElement:
		next.Document = Update(state.Document, a.ElementID, a.patch())

	case DeleteElement:
		next.Document = Remove(state.Document, a.ElementID)

	case MoveElement:
		doc, err := Relocate(state.Document, a.ElementID, a.ContainerID, a.Index)
		if err != nil {
			return state, fmt.Errorf("move %s into %s: %w", a.ElementID, a.ContainerID, err)
		}
		next.Document = doc

	case DuplicateElement:
		if state.Document.Root != nil && a.ElementID == state.Document.Root.ID {
			return state, ErrRootImmutable
		}
		parent, index, ok := FindParent(state.Document, a.ElementID)
		if !ok {
			return state, nil
		}
		copied, err := NewDuplicator(ids).Duplicate(state.Document, parent.Children[index])
		if err != nil {
			return state, err
		}
		next.Document = Insert(state.Document, parent.ID, copied, index+1)

	case ChangeClickedElement:
		next.SelectedID = a.ElementID

	case ChangeDevice:
		next.Device = a.Device

	case TogglePreviewMode:
		next.Preview = !state.Preview
		next.Live = next.Preview

	case ToggleLiveMode:
		if a.Value != nil {
			next.Live = *a.Value
		} else {
			next.Live = !state.Live
		}

	case LoadData:
		next = NewState(state.PageID, a.Elements)
		next.Live = a.WithLive

	case SetPageID:
		next.PageID = a.PageID

	case Undo, Redo:
		return state, fmt.Errorf("%w: %s: %v", ErrMalformedAction, action.Type(), errHistoryAction)

	default:
		return state, fmt.Errorf("%w: unsupported action %T", ErrMalformedAction, action)
	}
	return next, nil
}

// prepareNewElement fills in missing ids and checks that the incoming
// subtree cannot break id uniqueness or the single-root rule.
func prepareNewElement(doc Document, el *Element, ids util.Generator) (*Element, error) {
	taken := IDs(doc)
	needsIDs := false
	var failure error
	seen := make(map[string]struct{})
	walk(el, func(node *Element, depth int) bool {
		switch {
		case node == nil:
			failure = fmt.Errorf("%w: null element", ErrMalformedAction)
		case node.Kind == KindRoot:
			failure = fmt.Errorf("%w: nested %s element", ErrMalformedAction, KindRoot)
		case !node.Kind.Valid():
			failure = fmt.Errorf("%w: unknown element type %q", ErrMalformedAction, node.Kind)
		case depth > MaxDepth:
			failure = fmt.Errorf("%w: nesting deeper than %d", ErrMalformedAction, MaxDepth)
		case node.ID == "":
			needsIDs = true
		default:
			if _, dup := taken[node.ID]; dup {
				failure = fmt.Errorf("%w: %q", ErrDuplicateID, node.ID)
			} else if _, dup := seen[node.ID]; dup {
				failure = fmt.Errorf("%w: %q", ErrDuplicateID, node.ID)
			}
			seen[node.ID] = struct{}{}
		}
		return failure == nil
	})
	if failure != nil {
		return nil, failure
	}
	if !needsIDs {
		return el, nil
	}
	for id := range seen {
		taken[id] = struct{}{}
	}
	return assignMissingIDs(el, taken, NewDuplicator(ids))
}

func assignMissingIDs(el *Element, taken map[string]struct{}, dup *Duplicator) (*Element, error) {
	cp := el.shallowCopy()
	if cp.ID == "" {
		id, err := dup.freshID(taken)
		if err != nil {
			return nil, err
		}
		cp.ID = id
	}
	if cp.Styles == nil {
		cp.Styles = map[string]any{}
	}
	if cp.Kind.IsContainer() {
		children := make([]*Element, 0, len(el.Children))
		for _, child := range el.Children {
			childCopy, err := assignMissingIDs(child, taken, dup)
			if err != nil {
				return nil, err
			}
			children = append(children, childCopy)
		}
		cp.Children = children
	} else if cp.Content == nil {
		cp.Content = &Content{}
	}
	return cp, nil
}
