package editor

import "errors"

var (
	ErrElementNotFound   = errors.New("element not found")
	ErrContainerNotFound = errors.New("container not found")
	ErrRootImmutable     = errors.New("root element cannot be moved or removed")
	ErrInvalidMove       = errors.New("invalid move")
)

// step is one hop of a root-to-node path: the node and its index within
// the parent's child list (-1 for the root).
type step struct {
	node  *Element
	index int
}

// walk visits root and its descendants depth-first in document order
// using an explicit stack. Returning false from fn stops the walk.
func walk(root *Element, fn func(el *Element, depth int) bool) {
	type frame struct {
		el    *Element
		depth int
	}
	stack := []frame{{el: root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(top.el, top.depth) {
			return
		}
		if top.el == nil {
			continue
		}
		for i := len(top.el.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{el: top.el.Children[i], depth: top.depth + 1})
		}
	}
}

// Walk visits every element of doc in document order.
func Walk(doc Document, fn func(el *Element, depth int) bool) {
	if doc.Root == nil {
		return
	}
	walk(doc.Root, fn)
}

// pathTo returns the chain of nodes from the root down to the element with
// the given id, or nil when the id is absent.
func pathTo(root *Element, id string) []step {
	type frame struct {
		el    *Element
		depth int
		index int
	}
	if root == nil {
		return nil
	}
	var trail []step
	stack := []frame{{el: root, index: -1}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		trail = append(trail[:top.depth], step{node: top.el, index: top.index})
		if top.el.ID == id {
			return trail
		}
		for i := len(top.el.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{el: top.el.Children[i], depth: top.depth + 1, index: i})
		}
	}
	return nil
}

// rebuild replaces the last node of trail with replacement and copies every
// ancestor so the original tree is left untouched. Siblings off the path are
// shared with the original.
func rebuild(trail []step, replacement *Element) *Element {
	current := replacement
	for i := len(trail) - 2; i >= 0; i-- {
		parent := trail[i].node.shallowCopy()
		children := make([]*Element, len(parent.Children))
		copy(children, parent.Children)
		children[trail[i+1].index] = current
		parent.Children = children
		current = parent
	}
	return current
}

// Find returns the element with the given id.
func Find(doc Document, id string) (*Element, bool) {
	trail := pathTo(doc.Root, id)
	if trail == nil {
		return nil, false
	}
	return trail[len(trail)-1].node, true
}

// FindParent returns the container holding id and the index of id within it.
func FindParent(doc Document, id string) (*Element, int, bool) {
	trail := pathTo(doc.Root, id)
	if len(trail) < 2 {
		return nil, -1, false
	}
	return trail[len(trail)-2].node, trail[len(trail)-1].index, true
}

// Contains reports whether id is present anywhere in the subtree of el.
func Contains(el *Element, id string) bool {
	return pathTo(el, id) != nil
}

// Count returns the number of elements in doc, root included.
func Count(doc Document) int {
	n := 0
	Walk(doc, func(*Element, int) bool {
		n++
		return true
	})
	return n
}

// IDs returns the set of element ids in doc.
func IDs(doc Document) map[string]struct{} {
	ids := make(map[string]struct{})
	Walk(doc, func(el *Element, _ int) bool {
		ids[el.ID] = struct{}{}
		return true
	})
	return ids
}

// Insert splices el into the child list of containerID at index, clamped to
// the list bounds. A missing or non-container target leaves doc unchanged.
func Insert(doc Document, containerID string, el *Element, index int) Document {
	trail := pathTo(doc.Root, containerID)
	if trail == nil {
		return doc
	}
	target := trail[len(trail)-1].node
	if !target.Kind.IsContainer() {
		return doc
	}
	if index < 0 {
		index = 0
	}
	if index > len(target.Children) {
		index = len(target.Children)
	}
	children := make([]*Element, 0, len(target.Children)+1)
	children = append(children, target.Children[:index]...)
	children = append(children, el)
	children = append(children, target.Children[index:]...)

	updated := target.shallowCopy()
	updated.Children = children
	return Document{Root: rebuild(trail, updated)}
}

// Patch carries the attributes an update merges into an element. Nil fields
// are left alone. Styles merge key by key; a nil value removes the key.
type Patch struct {
	Label   *string
	Styles  map[string]any
	Content *Content
}

func (p Patch) empty() bool {
	return p.Label == nil && p.Styles == nil && p.Content == nil
}

func (p Patch) apply(el *Element) *Element {
	updated := el.shallowCopy()
	if p.Label != nil {
		updated.Label = *p.Label
	}
	if p.Styles != nil {
		styles := make(map[string]any, len(el.Styles)+len(p.Styles))
		for key, value := range el.Styles {
			styles[key] = value
		}
		for key, value := range p.Styles {
			if value == nil {
				delete(styles, key)
				continue
			}
			styles[key] = value
		}
		updated.Styles = styles
	}
	if p.Content != nil && !el.Kind.IsContainer() {
		content := *p.Content
		updated.Content = &content
	}
	return updated
}

// Update merges patch into the element with the given id. A missing id
// leaves doc unchanged.
func Update(doc Document, id string, patch Patch) Document {
	if patch.empty() {
		return doc
	}
	trail := pathTo(doc.Root, id)
	if trail == nil {
		return doc
	}
	return Document{Root: rebuild(trail, patch.apply(trail[len(trail)-1].node))}
}

// Remove drops the element with the given id from its parent's child list.
// The root and missing ids leave doc unchanged.
func Remove(doc Document, id string) Document {
	trail := pathTo(doc.Root, id)
	if len(trail) < 2 {
		return doc
	}
	parent := trail[len(trail)-2].node
	index := trail[len(trail)-1].index
	children := make([]*Element, 0, len(parent.Children)-1)
	children = append(children, parent.Children[:index]...)
	children = append(children, parent.Children[index+1:]...)

	updated := parent.shallowCopy()
	updated.Children = children
	return Document{Root: rebuild(trail[:len(trail)-1], updated)}
}

// Relocate moves the element with the given id into containerID at index.
// The moved node keeps its identity. index is interpreted against the
// destination list after the element has been detached. On any error doc
// is returned unchanged.
func Relocate(doc Document, id, containerID string, index int) (Document, error) {
	if doc.Root != nil && id == doc.Root.ID {
		return doc, ErrRootImmutable
	}
	node, ok := Find(doc, id)
	if !ok {
		return doc, ErrElementNotFound
	}
	dest, ok := Find(doc, containerID)
	if !ok {
		return doc, ErrContainerNotFound
	}
	if !dest.Kind.IsContainer() {
		return doc, ErrInvalidMove
	}
	if Contains(node, containerID) {
		// moving an element into itself or one of its descendants
		return doc, ErrInvalidMove
	}
	return Insert(Remove(doc, id), containerID, node, index), nil
}
