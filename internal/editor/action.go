package editor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedAction marks a command the engine does not understand. It is a
// contract violation by the caller, never a user-facing condition.
var ErrMalformedAction = errors.New("malformed action")

type ActionType string

const (
	ActionAddElement       ActionType = "ADD_ELEMENT"
	ActionUpdateElement    ActionType = "UPDATE_ELEMENT"
	ActionDeleteElement    ActionType = "DELETE_ELEMENT"
	ActionMoveElement      ActionType = "MOVE_ELEMENT"
	ActionDuplicateElement ActionType = "DUPLICATE_ELEMENT"
	ActionChangeClicked    ActionType = "CHANGE_CLICKED_ELEMENT"
	ActionChangeDevice     ActionType = "CHANGE_DEVICE"
	ActionTogglePreview    ActionType = "TOGGLE_PREVIEW_MODE"
	ActionToggleLive       ActionType = "TOGGLE_LIVE_MODE"
	ActionUndo             ActionType = "UNDO"
	ActionRedo             ActionType = "REDO"
	ActionLoadData         ActionType = "LOAD_DATA"
	ActionSetPageID        ActionType = "SET_PAGE_ID"
)

// Action is a typed command accepted by the action channel.
type Action interface {
	Type() ActionType
	validate() error
}

// AddElement inserts a new element into a container. A nil Index appends.
type AddElement struct {
	ContainerID string   `json:"containerId"`
	Index       *int     `json:"index,omitempty"`
	Element     *Element `json:"elementDetails"`
}

type UpdateElement struct {
	ElementID string         `json:"elementId"`
	Label     *string        `json:"name,omitempty"`
	Styles    map[string]any `json:"styles,omitempty"`
	Content   *Content       `json:"content,omitempty"`
}

type DeleteElement struct {
	ElementID string `json:"elementId"`
}

type MoveElement struct {
	ElementID   string `json:"elementId"`
	ContainerID string `json:"containerId"`
	Index       int    `json:"index"`
}

// DuplicateElement copies an element next to the original.
type DuplicateElement struct {
	ElementID string `json:"elementId"`
}

// ChangeClickedElement selects an element; an empty id clears the selection.
type ChangeClickedElement struct {
	ElementID string `json:"elementId"`
}

type ChangeDevice struct {
	Device Device `json:"device"`
}

// TogglePreviewMode enters or leaves preview. Preview and live mode always
// switch together.
type TogglePreviewMode struct{}

// ToggleLiveMode sets live mode to Value, or flips it when Value is nil.
type ToggleLiveMode struct {
	Value *bool `json:"value,omitempty"`
}

type Undo struct{}

type Redo struct{}

// LoadData replaces the document and resets the history.
type LoadData struct {
	Elements Document `json:"elements"`
	WithLive bool     `json:"withLive"`
}

type SetPageID struct {
	PageID string `json:"pageId"`
}

func (AddElement) Type() ActionType           { return ActionAddElement }
func (UpdateElement) Type() ActionType        { return ActionUpdateElement }
func (DeleteElement) Type() ActionType        { return ActionDeleteElement }
func (MoveElement) Type() ActionType          { return ActionMoveElement }
func (DuplicateElement) Type() ActionType     { return ActionDuplicateElement }
func (ChangeClickedElement) Type() ActionType { return ActionChangeClicked }
func (ChangeDevice) Type() ActionType         { return ActionChangeDevice }
func (TogglePreviewMode) Type() ActionType    { return ActionTogglePreview }
func (ToggleLiveMode) Type() ActionType       { return ActionToggleLive }
func (Undo) Type() ActionType                 { return ActionUndo }
func (Redo) Type() ActionType                 { return ActionRedo }
func (LoadData) Type() ActionType             { return ActionLoadData }
func (SetPageID) Type() ActionType            { return ActionSetPageID }

func (a AddElement) validate() error {
	if a.ContainerID == "" {
		return errors.New("containerId is required")
	}
	if a.Element == nil {
		return errors.New("elementDetails is required")
	}
	if a.Element.Kind == KindRoot {
		return fmt.Errorf("cannot add a %s element", KindRoot)
	}
	return nil
}

func (a UpdateElement) validate() error {
	if a.ElementID == "" {
		return errors.New("elementId is required")
	}
	return nil
}

func (a DeleteElement) validate() error {
	if a.ElementID == "" {
		return errors.New("elementId is required")
	}
	return nil
}

func (a MoveElement) validate() error {
	if a.ElementID == "" || a.ContainerID == "" {
		return errors.New("elementId and containerId are required")
	}
	return nil
}

func (a DuplicateElement) validate() error {
	if a.ElementID == "" {
		return errors.New("elementId is required")
	}
	return nil
}

func (ChangeClickedElement) validate() error { return nil }

func (a ChangeDevice) validate() error {
	_, err := ParseDevice(string(a.Device))
	return err
}

func (TogglePreviewMode) validate() error { return nil }
func (ToggleLiveMode) validate() error    { return nil }
func (Undo) validate() error              { return nil }
func (Redo) validate() error              { return nil }

func (a LoadData) validate() error {
	if a.Elements.Root == nil {
		return errors.New("elements are required")
	}
	return nil
}

func (a SetPageID) validate() error {
	if a.PageID == "" {
		return errors.New("pageId is required")
	}
	return nil
}

// patch converts the update command into the mutator's merge attributes.
func (a UpdateElement) patch() Patch {
	return Patch{Label: a.Label, Styles: a.Styles, Content: a.Content}
}

// IsTreeMutation reports whether the action changes the document.
func IsTreeMutation(t ActionType) bool {
	switch t {
	case ActionAddElement, ActionUpdateElement, ActionDeleteElement, ActionMoveElement, ActionDuplicateElement:
		return true
	default:
		return false
	}
}

// IsViewChange reports whether the action only touches selection or
// view-mode flags.
func IsViewChange(t ActionType) bool {
	switch t {
	case ActionChangeClicked, ActionChangeDevice, ActionTogglePreview, ActionToggleLive:
		return true
	default:
		return false
	}
}

var actionFactories = map[ActionType]func() Action{
	ActionAddElement:       func() Action { return &AddElement{} },
	ActionUpdateElement:    func() Action { return &UpdateElement{} },
	ActionDeleteElement:    func() Action { return &DeleteElement{} },
	ActionMoveElement:      func() Action { return &MoveElement{} },
	ActionDuplicateElement: func() Action { return &DuplicateElement{} },
	ActionChangeClicked:    func() Action { return &ChangeClickedElement{} },
	ActionChangeDevice:     func() Action { return &ChangeDevice{} },
	ActionTogglePreview:    func() Action { return &TogglePreviewMode{} },
	ActionToggleLive:       func() Action { return &ToggleLiveMode{} },
	ActionUndo:             func() Action { return &Undo{} },
	ActionRedo:             func() Action { return &Redo{} },
	ActionLoadData:         func() Action { return &LoadData{} },
	ActionSetPageID:        func() Action { return &SetPageID{} },
}

type envelope struct {
	Type    ActionType      `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeAction parses a {"type": ..., "payload": ...} command envelope.
// Unknown types, unknown payload fields and missing required fields all
// yield ErrMalformedAction.
func DecodeAction(data []byte) (Action, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}
	factory, ok := actionFactories[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedAction, env.Type)
	}
	target := factory()
	payload := bytes.TrimSpace(env.Payload)
	if len(payload) > 0 && !bytes.Equal(payload, []byte("null")) {
		decoder := json.NewDecoder(bytes.NewReader(payload))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(target); err != nil {
			return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformedAction, env.Type, err)
		}
	}
	action := deref(target)
	if err := action.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedAction, env.Type, err)
	}
	return action, nil
}

// EncodeAction writes the wire envelope for an action.
func EncodeAction(action Action) ([]byte, error) {
	payload, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", action.Type(), err)
	}
	return json.Marshal(envelope{Type: action.Type(), Payload: payload})
}

// deref turns the pointer produced by a factory back into the value type
// the reducer switches on.
func deref(action Action) Action {
	switch a := action.(type) {
	case *AddElement:
		return *a
	case *UpdateElement:
		return *a
	case *DeleteElement:
		return *a
	case *MoveElement:
		return *a
	case *DuplicateElement:
		return *a
	case *ChangeClickedElement:
		return *a
	case *ChangeDevice:
		return *a
	case *TogglePreviewMode:
		return *a
	case *ToggleLiveMode:
		return *a
	case *Undo:
		return *a
	case *Redo:
		return *a
	case *LoadData:
		return *a
	case *SetPageID:
		return *a
	default:
		return action
	}
}
