package scene

import (
	"fmt"
	"image"
)

// TestHelper queues synthetic input. Queued events are delivered by the
// player at the start of the next frame.
type TestHelper struct {
	events []Event
}

// NewTestHelper creates an empty input queue.
func NewTestHelper() *TestHelper {
	return &TestHelper{}
}

// FakeMouseEvent queues a mouse event. Only down, up and motion can be
// injected; over and out are generated by the dispatcher.
func (h *TestHelper) FakeMouseEvent(t EventType, left, middle, right bool, x, y, button int) error {
	if err := checkEventType(t); err != nil {
		return err
	}
	h.events = append(h.events, Event{
		Type:         t,
		Source:       Mouse,
		Pos:          image.Pt(x, y),
		CursorID:     MouseCursorID,
		Button:       button,
		LeftButton:   left,
		MiddleButton: middle,
		RightButton:  right,
	})
	return nil
}

// FakeTouchEvent queues a touch event for the given cursor id.
func (h *TestHelper) FakeTouchEvent(id int, t EventType, source Source, pos image.Point) error {
	if err := checkEventType(t); err != nil {
		return err
	}
	if source != Touch && source != Mouse {
		return fmt.Errorf("invalid touch source: %s", source)
	}
	h.events = append(h.events, Event{
		Type:     t,
		Source:   source,
		Pos:      pos,
		CursorID: id,
	})
	return nil
}

// PollEvents drains the queue.
func (h *TestHelper) PollEvents() []Event {
	events := h.events
	h.events = nil
	return events
}

// Pending returns the number of queued events.
func (h *TestHelper) Pending() int {
	return len(h.events)
}

// Reset discards queued events.
func (h *TestHelper) Reset() {
	h.events = nil
}

func checkEventType(t EventType) error {
	switch t {
	case CursorDown, CursorUp, CursorMotion:
		return nil
	default:
		return fmt.Errorf("cannot inject %s events", t)
	}
}
