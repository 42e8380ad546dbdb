package handlertest

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/zurustar/framecase/pkg/scene"
)

type recorder struct {
	errors []string
}

func (r *recorder) Helper() {}
func (r *recorder) Fatalf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func setup() (*scene.Canvas, *scene.Node) {
	c := scene.NewCanvas(100, 100)
	n := scene.NewNode("button", image.Pt(10, 10), image.Pt(20, 20), color.NRGBA{255, 0, 0, 255})
	c.Root().AppendChild(n)
	return c, n
}

func mouse(t scene.EventType, x, y int) scene.Event {
	return scene.Event{Type: t, Source: scene.Mouse, Pos: image.Pt(x, y), CursorID: scene.MouseCursorID, LeftButton: t != scene.CursorUp}
}

func TestNew_RegistersSixHandlers(t *testing.T) {
	_, n := setup()
	h := New(t, n)

	if n.HandlerCount() != 6 {
		t.Fatalf("expected 6 handlers, got %d", n.HandlerCount())
	}
	if h.Node() != n {
		t.Error("Node should return the watched node")
	}

	h.ClearHandlers()
	if n.HandlerCount() != 0 {
		t.Errorf("expected handlers to be cleared, got %d", n.HandlerCount())
	}
}

func TestAssertState_ClickSequence(t *testing.T) {
	c, n := setup()
	h := New(t, n)

	c.Dispatch(mouse(scene.CursorMotion, 15, 15))
	h.AssertState(false, false, true, false, true)

	c.Dispatch(mouse(scene.CursorDown, 15, 15))
	h.AssertState(true, false, false, false, false)

	c.Dispatch(mouse(scene.CursorUp, 15, 15))
	h.AssertState(false, true, false, false, false)

	c.Dispatch(mouse(scene.CursorMotion, 50, 50))
	h.AssertState(false, false, false, true, false)
}

func TestAssertState_ReportsMismatch(t *testing.T) {
	c, n := setup()
	rec := &recorder{}
	h := New(rec, n)

	c.Dispatch(mouse(scene.CursorDown, 15, 15))
	h.AssertState(false, false, true, false, false)

	// down は余分、over は届いていない。1回の Fatalf にまとめられる
	if len(rec.errors) != 1 {
		t.Fatalf("expected 1 fatal report, got %v", rec.errors)
	}
	for _, want := range []string{"down: expected false, got true", "over: expected true, got false"} {
		if !strings.Contains(rec.errors[0], want) {
			t.Errorf("report %q should contain %q", rec.errors[0], want)
		}
	}

	// AssertState resets the flags
	down, up, over, out, move, touch := h.State()
	if down || up || over || out || move || touch {
		t.Error("flags should be reset after AssertState")
	}
}

func TestAssertState_TouchBleed(t *testing.T) {
	c, n := setup()
	rec := &recorder{}
	h := New(rec, n)

	c.Dispatch(scene.Event{Type: scene.CursorDown, Source: scene.Touch, Pos: image.Pt(15, 15), CursorID: 1})
	h.AssertState(false, false, false, false, false)

	if len(rec.errors) != 1 || !strings.Contains(rec.errors[0], "touch down: expected false, got true") {
		t.Fatalf("expected touch down to be reported, got %v", rec.errors)
	}
	_, _, _, _, _, touch := h.State()
	if touch {
		t.Error("flags should be reset before failing")
	}
}

func TestMouseHandler_ChecksEventType(t *testing.T) {
	_, n := setup()
	rec := &recorder{}
	New(rec, n)

	handler := n.EventHandler(scene.EventID{Type: scene.CursorDown, Source: scene.Mouse})
	handler(&scene.Event{Type: scene.CursorUp, Source: scene.Mouse})

	if len(rec.errors) != 1 {
		t.Fatalf("expected type mismatch error, got %v", rec.errors)
	}
}

func TestClearHandlers_StopsRecording(t *testing.T) {
	c, n := setup()
	h := New(t, n)
	h.ClearHandlers()

	c.Dispatch(mouse(scene.CursorDown, 15, 15))
	h.AssertState(false, false, false, false, false)
}

func TestReset(t *testing.T) {
	c, n := setup()
	h := New(t, n)

	c.Dispatch(mouse(scene.CursorDown, 15, 15))
	h.Reset()
	h.AssertState(false, false, false, false, false)
}
