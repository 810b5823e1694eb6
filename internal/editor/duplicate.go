package editor

import (
	"fmt"

	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/util"
)

// maxIDAttempts bounds retries when a generator keeps returning ids that
// are already taken.
const maxIDAttempts = 16

// Duplicator deep-copies subtrees, giving every copied node a fresh id.
type Duplicator struct {
	ids util.Generator
}

func NewDuplicator(ids util.Generator) *Duplicator {
	if ids == nil {
		ids = util.UUIDv7()
	}
	return &Duplicator{ids: ids}
}

// Duplicate copies el and all of its descendants. No id in the copy
// collides with an id already present in doc or with another id of the
// copy; the parent/child structure mirrors the original exactly.
func (d *Duplicator) Duplicate(doc Document, el *Element) (*Element, error) {
	taken := IDs(doc)
	// ids of the source subtree are reserved too, in case el is detached.
	walk(el, func(node *Element, _ int) bool {
		taken[node.ID] = struct{}{}
		return true
	})
	return d.copyNode(el, taken, 0)
}

func (d *Duplicator) copyNode(el *Element, taken map[string]struct{}, depth int) (*Element, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("duplicate %s: nesting deeper than %d", el.ID, MaxDepth)
	}
	id, err := d.freshID(taken)
	if err != nil {
		return nil, err
	}
	cp := el.shallowCopy()
	cp.ID = id
	cp.Styles = make(map[string]any, len(el.Styles))
	for key, value := range el.Styles {
		cp.Styles[key] = value
	}
	if el.Content != nil {
		content := *el.Content
		cp.Content = &content
	}
	if el.Kind.IsContainer() {
		cp.Children = make([]*Element, 0, len(el.Children))
		for _, child := range el.Children {
			childCopy, err := d.copyNode(child, taken, depth+1)
			if err != nil {
				return nil, err
			}
			cp.Children = append(cp.Children, childCopy)
		}
	}
	return cp, nil
}

func (d *Duplicator) freshID(taken map[string]struct{}) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := d.ids()
		if id == "" {
			continue
		}
		if _, exists := taken[id]; exists {
			continue
		}
		taken[id] = struct{}{}
		return id, nil
	}
	return "", fmt.Errorf("no unused element id after %d attempts", maxIDAttempts)
}
