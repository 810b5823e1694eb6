// Package editor implements the page-builder document engine: the element
// tree, the pure transitions that mutate it, and the linear undo/redo
// history driven through a single action channel.
package editor

import (
	"encoding/json"
	"fmt"
)

// Kind is the closed set of element types the builder knows about.
type Kind string

const (
	KindRoot        Kind = "__body"
	KindContainer   Kind = "container"
	KindTwoColumn   Kind = "2Col"
	KindText        Kind = "text"
	KindLink        Kind = "link"
	KindVideo       Kind = "video"
	KindIcon        Kind = "icon"
	KindContactForm Kind = "contactForm"
	KindPaymentForm Kind = "paymentForm"
)

var knownKinds = map[Kind]struct{}{
	KindRoot:        {},
	KindContainer:   {},
	KindTwoColumn:   {},
	KindText:        {},
	KindLink:        {},
	KindVideo:       {},
	KindIcon:        {},
	KindContactForm: {},
	KindPaymentForm: {},
}

// Valid reports whether k is one of the known element kinds.
func (k Kind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

// IsContainer reports whether elements of this kind hold an ordered child
// list instead of a leaf value.
func (k Kind) IsContainer() bool {
	return k == KindRoot || k == KindContainer || k == KindTwoColumn
}

// Content is the leaf payload of a non-container element.
type Content struct {
	InnerText string `json:"innerText,omitempty"`
	Href      string `json:"href,omitempty"`
	Src       string `json:"src,omitempty"`
}

// Element is a node of the page tree. Elements reachable from a Document
// are shared between snapshots and must be treated as immutable; every
// transition in this package copies the nodes it changes.
type Element struct {
	ID     string
	Kind   Kind
	Label  string
	Styles map[string]any
	// Children is set for container kinds only.
	Children []*Element
	// Content is set for leaf kinds only.
	Content *Content
}

// NewContainer builds a container-like element with the given children.
func NewContainer(id string, kind Kind, label string, children ...*Element) *Element {
	if children == nil {
		children = []*Element{}
	}
	return &Element{
		ID:       id,
		Kind:     kind,
		Label:    label,
		Styles:   map[string]any{},
		Children: children,
	}
}

// NewLeaf builds a leaf element carrying content.
func NewLeaf(id string, kind Kind, label string, content Content) *Element {
	return &Element{
		ID:      id,
		Kind:    kind,
		Label:   label,
		Styles:  map[string]any{},
		Content: &content,
	}
}

// shallowCopy copies the node itself; children and styles are shared.
func (e *Element) shallowCopy() *Element {
	cp := *e
	return &cp
}

type wireElement struct {
	ID      string          `json:"id"`
	Label   string          `json:"name"`
	Kind    Kind            `json:"type"`
	Styles  map[string]any  `json:"styles"`
	Content json.RawMessage `json:"content"`
}

func (e *Element) MarshalJSON() ([]byte, error) {
	styles := e.Styles
	if styles == nil {
		styles = map[string]any{}
	}
	var content []byte
	var err error
	if e.Kind.IsContainer() {
		children := e.Children
		if children == nil {
			children = []*Element{}
		}
		content, err = json.Marshal(children)
	} else {
		leaf := e.Content
		if leaf == nil {
			leaf = &Content{}
		}
		content, err = json.Marshal(leaf)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal content of %s: %w", e.ID, err)
	}
	return json.Marshal(wireElement{
		ID:      e.ID,
		Label:   e.Label,
		Kind:    e.Kind,
		Styles:  styles,
		Content: content,
	})
}

// UnmarshalJSON decodes an element and its whole subtree. The input is
// scanned once into generic values and the tree is built from those, so
// nesting deeper than MaxDepth is refused before any element is kept.
func (e *Element) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	el, err := elementFromWire(raw, 0)
	if err != nil {
		return err
	}
	*e = *el
	return nil
}

func elementFromWire(raw any, depth int) (*Element, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("element must be an object, got %T", raw)
	}
	id, err := wireString(obj, "id")
	if err != nil {
		return nil, err
	}
	if depth > MaxDepth {
		return nil, fmt.Errorf("element %q: nesting deeper than %d", id, MaxDepth)
	}
	label, err := wireString(obj, "name")
	if err != nil {
		return nil, err
	}
	kindName, err := wireString(obj, "type")
	if err != nil {
		return nil, err
	}
	kind := Kind(kindName)
	if !kind.Valid() {
		return nil, fmt.Errorf("element %q: unknown type %q", id, kind)
	}

	styles := map[string]any{}
	switch v := obj["styles"].(type) {
	case nil:
	case map[string]any:
		styles = v
	default:
		return nil, fmt.Errorf("element %q: styles must be an object", id)
	}
	el := &Element{ID: id, Kind: kind, Label: label, Styles: styles}

	content := obj["content"]
	if kind.IsContainer() {
		el.Children = []*Element{}
		if content == nil {
			return el, nil
		}
		list, ok := content.([]any)
		if !ok {
			return nil, fmt.Errorf("element %q: %s content must be a list", id, kind)
		}
		for _, item := range list {
			child, err := elementFromWire(item, depth+1)
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, child)
		}
		return el, nil
	}

	el.Content = &Content{}
	if content == nil {
		return el, nil
	}
	fields, ok := content.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("element %q: %s content must be an object", id, kind)
	}
	if el.Content.InnerText, err = wireString(fields, "innerText"); err != nil {
		return nil, err
	}
	if el.Content.Href, err = wireString(fields, "href"); err != nil {
		return nil, err
	}
	if el.Content.Src, err = wireString(fields, "src"); err != nil {
		return nil, err
	}
	return el, nil
}

func wireString(obj map[string]any, key string) (string, error) {
	switch v := obj[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("field %q must be a string", key)
	}
}
