package scene

import (
	"image"
	"image/color"
)

// Node is a rectangular element of the scene. Position is relative to the
// parent node.
type Node struct {
	ID        string
	Pos       image.Point
	Size      image.Point
	Color     color.NRGBA
	Sensitive bool

	parent   *Node
	children []*Node
	handlers map[EventID]Handler
}

// NewNode creates a sensitive node.
func NewNode(id string, pos, size image.Point, c color.NRGBA) *Node {
	return &Node{
		ID:        id,
		Pos:       pos,
		Size:      size,
		Color:     c,
		Sensitive: true,
		handlers:  make(map[EventID]Handler),
	}
}

// AppendChild adds a child on top of the existing children.
func (n *Node) AppendChild(child *Node) {
	if child.parent != nil {
		child.parent.RemoveChild(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

// RemoveChild detaches a child. It reports whether the child was found.
func (n *Node) RemoveChild(child *Node) bool {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// Parent returns the parent node or nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the child nodes in paint order.
func (n *Node) Children() []*Node {
	return n.children
}

// Find returns the first node in the subtree with the given id.
func (n *Node) Find(id string) *Node {
	if n.ID == id {
		return n
	}
	for _, c := range n.children {
		if found := c.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// AbsRect returns the node's rectangle in canvas coordinates.
func (n *Node) AbsRect() image.Rectangle {
	origin := n.Pos
	for p := n.parent; p != nil; p = p.parent {
		origin = origin.Add(p.Pos)
	}
	return image.Rectangle{Min: origin, Max: origin.Add(n.Size)}
}

// SetEventHandler sets or, with a nil handler, removes the handler for the
// given type and every source bit in sources.
func (n *Node) SetEventHandler(t EventType, sources Source, h Handler) {
	if n.handlers == nil {
		n.handlers = make(map[EventID]Handler)
	}
	for _, s := range []Source{Mouse, Touch} {
		if sources&s == 0 {
			continue
		}
		id := EventID{Type: t, Source: s}
		if h == nil {
			delete(n.handlers, id)
			continue
		}
		n.handlers[id] = h
	}
}

// EventHandler returns the handler registered for id, or nil.
func (n *Node) EventHandler(id EventID) Handler {
	return n.handlers[id]
}

// HandlerCount returns the number of registered handlers.
func (n *Node) HandlerCount() int {
	return len(n.handlers)
}

// HandleEvent invokes the handler registered for the event, if any.
func (n *Node) HandleEvent(ev *Event) bool {
	h := n.handlers[EventID{Type: ev.Type, Source: ev.Source}]
	if h == nil {
		return false
	}
	ev.Node = n
	h(ev)
	return true
}
