// Package scene provides the node tree that receives pointer events, the
// cursor dispatcher and the synthetic input queue used by tests.
package scene

import (
	"fmt"
	"image"
)

// EventType is the kind of cursor event.
type EventType int

const (
	CursorDown EventType = iota
	CursorUp
	CursorMotion
	CursorOver
	CursorOut
)

// String returns the string representation of an EventType
func (t EventType) String() string {
	switch t {
	case CursorDown:
		return "CURSORDOWN"
	case CursorUp:
		return "CURSORUP"
	case CursorMotion:
		return "CURSORMOTION"
	case CursorOver:
		return "CURSOROVER"
	case CursorOut:
		return "CURSOROUT"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// ParseEventType converts a script name ("down", "CURSORUP", ...) to an EventType.
func ParseEventType(name string) (EventType, error) {
	switch name {
	case "down", "CURSORDOWN":
		return CursorDown, nil
	case "up", "CURSORUP":
		return CursorUp, nil
	case "motion", "move", "CURSORMOTION":
		return CursorMotion, nil
	case "over", "CURSOROVER":
		return CursorOver, nil
	case "out", "CURSOROUT":
		return CursorOut, nil
	default:
		return 0, fmt.Errorf("unknown event type: %q", name)
	}
}

// Source is the device class an event originates from. Sources are bit
// flags so a handler can be registered for several at once.
type Source int

const (
	Mouse Source = 1 << iota
	Touch
)

// String returns the string representation of a Source
func (s Source) String() string {
	switch s {
	case Mouse:
		return "MOUSE"
	case Touch:
		return "TOUCH"
	case Mouse | Touch:
		return "MOUSE|TOUCH"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// EventID keys the handler table of a node.
type EventID struct {
	Type   EventType
	Source Source
}

// MouseCursorID is the cursor id used for all mouse events.
const MouseCursorID = -1

// Event is a cursor event delivered to node handlers.
type Event struct {
	Type     EventType
	Source   Source
	Pos      image.Point
	CursorID int

	// Mouse only
	Button       int
	LeftButton   bool
	MiddleButton bool
	RightButton  bool

	// Node is the node currently handling the event.
	Node *Node
}

// Handler receives events delivered to a node.
type Handler func(ev *Event)
