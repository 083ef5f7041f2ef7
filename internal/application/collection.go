package application

import (
	"fmt"

	"github.com/jobrunner/leafsync/internal/domain"
)

// changeKind is the kind of structural change applied to a collection.
type changeKind int

const (
	changeAdd changeKind = iota
	changeRemove
	changeReplace
	changeMove
)

func (k changeKind) String() string {
	switch k {
	case changeAdd:
		return "add"
	case changeRemove:
		return "remove"
	case changeReplace:
		return "replace"
	case changeMove:
		return "move"
	default:
		return "unknown"
	}
}

// change describes one mutation of a collection: the entries that left it
// and the entries that entered it.
type change struct {
	kind     changeKind
	oldItems []domain.Layer
	newItems []domain.Layer
}

// collection is an ordered list of layers. Entries are not unique by id.
type collection struct {
	items []domain.Layer
}

func (c *collection) add(l domain.Layer) change {
	c.items = append(c.items, l)
	return change{kind: changeAdd, newItems: []domain.Layer{l}}
}

// removeFirst removes the first entry with the given id.
func (c *collection) removeFirst(id string) (change, bool) {
	for i, l := range c.items {
		if l.LayerID() == id {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			return change{kind: changeRemove, oldItems: []domain.Layer{l}}, true
		}
	}
	return change{}, false
}

func (c *collection) replaceAt(i int, l domain.Layer) (change, error) {
	if err := c.checkIndex(i); err != nil {
		return change{}, err
	}
	old := c.items[i]
	c.items[i] = l
	return change{kind: changeReplace, oldItems: []domain.Layer{old}, newItems: []domain.Layer{l}}, nil
}

func (c *collection) move(from, to int) (change, error) {
	if err := c.checkIndex(from); err != nil {
		return change{}, err
	}
	if err := c.checkIndex(to); err != nil {
		return change{}, err
	}
	l := c.items[from]
	if from != to {
		rest := append(c.items[:from:from], c.items[from+1:]...)
		c.items = append(rest[:to:to], append([]domain.Layer{l}, rest[to:]...)...)
	}
	return change{kind: changeMove, oldItems: []domain.Layer{l}, newItems: []domain.Layer{l}}, nil
}

// clear empties the collection. The removed entries are reported as one
// remove change, in order.
func (c *collection) clear() change {
	old := c.items
	c.items = nil
	return change{kind: changeRemove, oldItems: old}
}

func (c *collection) find(id string) (domain.Layer, bool) {
	for _, l := range c.items {
		if l.LayerID() == id {
			return l, true
		}
	}
	return nil, false
}

func (c *collection) snapshot() []domain.Layer {
	out := make([]domain.Layer, len(c.items))
	copy(out, c.items)
	return out
}

func (c *collection) len() int {
	return len(c.items)
}

func (c *collection) checkIndex(i int) error {
	if i < 0 || i >= len(c.items) {
		return &domain.ValidationError{
			Field:      "index",
			Value:      i,
			Constraint: fmt.Sprintf("[0, %d)", len(c.items)),
			Message:    "index out of range",
		}
	}
	return nil
}
