package editor

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// RootID is the id given to the body element of a freshly created page.
const RootID = "__body"

// MaxDepth bounds how deeply elements may nest in a persisted document.
const MaxDepth = 256

var ErrCorruptContent = errors.New("corrupt page content")

// Document is a page tree rooted at a single element of kind KindRoot.
type Document struct {
	Root *Element
}

// NewDocument returns a root-only document.
func NewDocument() Document {
	root := NewContainer(RootID, KindRoot, "Body")
	root.Styles = map[string]any{"backgroundColor": "white"}
	return Document{Root: root}
}

// MarshalJSON writes the wire format: an array holding the root element.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.Root == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]*Element{d.Root})
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var elements []*Element
	if err := json.Unmarshal(data, &elements); err != nil {
		return err
	}
	if len(elements) == 0 {
		*d = NewDocument()
		return nil
	}
	if len(elements) != 1 || elements[0] == nil || elements[0].Kind != KindRoot {
		return fmt.Errorf("%w: expected exactly one %s element", ErrCorruptContent, KindRoot)
	}
	doc := Document{Root: elements[0]}
	if err := Validate(doc); err != nil {
		return err
	}
	*d = doc
	return nil
}

// Encode serializes the document to its persisted text form.
func Encode(doc Document) (string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(payload), nil
}

// Decode parses persisted content. The empty string is the sentinel for a
// page nobody has authored yet and yields a root-only document.
func Decode(content string) (Document, error) {
	if strings.TrimSpace(content) == "" {
		return NewDocument(), nil
	}
	var doc Document
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		if errors.Is(err, ErrCorruptContent) {
			return Document{}, err
		}
		return Document{}, fmt.Errorf("%w: %v", ErrCorruptContent, err)
	}
	return doc, nil
}

// DecodeOrEmpty is Decode that fails closed: unparsable content yields a
// root-only document together with the decode error.
func DecodeOrEmpty(content string) (Document, error) {
	doc, err := Decode(content)
	if err != nil {
		return NewDocument(), err
	}
	return doc, nil
}

// Validate checks the structure of a document: one root, unique ids across
// the tree, leaf content never mixed with children, and bounded depth.
func Validate(doc Document) error {
	if doc.Root == nil {
		return fmt.Errorf("%w: missing root", ErrCorruptContent)
	}
	if doc.Root.Kind != KindRoot {
		return fmt.Errorf("%w: root has type %q", ErrCorruptContent, doc.Root.Kind)
	}
	seen := make(map[string]struct{})
	var failure error
	walk(doc.Root, func(el *Element, depth int) bool {
		switch {
		case el == nil:
			failure = fmt.Errorf("%w: null element", ErrCorruptContent)
		case el.ID == "":
			failure = fmt.Errorf("%w: element without id", ErrCorruptContent)
		case depth > MaxDepth:
			failure = fmt.Errorf("%w: nesting deeper than %d", ErrCorruptContent, MaxDepth)
		case depth > 0 && el.Kind == KindRoot:
			failure = fmt.Errorf("%w: nested %s element %q", ErrCorruptContent, KindRoot, el.ID)
		case el.Kind.IsContainer() && el.Content != nil, !el.Kind.IsContainer() && len(el.Children) > 0:
			failure = fmt.Errorf("%w: element %q mixes children and content", ErrCorruptContent, el.ID)
		}
		if failure != nil {
			return false
		}
		if _, dup := seen[el.ID]; dup {
			failure = fmt.Errorf("%w: duplicate id %q", ErrCorruptContent, el.ID)
			return false
		}
		seen[el.ID] = struct{}{}
		return true
	})
	return failure
}

// Fingerprint is a stable digest of persisted content, used to tell whether
// an editing session diverged from what was last saved.
func Fingerprint(content string) string {
	sum := blake2b.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// PlainText joins the inner text of every leaf in document order.
func PlainText(doc Document) string {
	var parts []string
	Walk(doc, func(el *Element, _ int) bool {
		if el.Content != nil && strings.TrimSpace(el.Content.InnerText) != "" {
			parts = append(parts, strings.TrimSpace(el.Content.InnerText))
		}
		return true
	})
	return strings.Join(parts, " ")
}
