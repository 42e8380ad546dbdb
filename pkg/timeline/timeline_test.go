package timeline

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/zurustar/framecase/pkg/player"
)

func newClock(t *testing.T) *player.Headless {
	t.Helper()
	return player.NewHeadless(player.WithMaxFrames(100000))
}

func TestStart_RunsOneActionPerFrame(t *testing.T) {
	clock := newClock(t)
	tl := New(clock)

	var frames []int
	record := func() { frames = append(frames, clock.FrameCount()) }

	if err := tl.Start(Each(record, record, record)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	want := []int{0, 1, 2}
	if len(frames) != len(want) {
		t.Fatalf("frames = %v, want %v", frames, want)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("action %d ran in frame %d, want %d", i, frames[i], want[i])
		}
	}
	// 3 actions + 1 stopping frame
	if clock.FrameCount() != 4 {
		t.Errorf("expected 4 frames, got %d", clock.FrameCount())
	}
	if !tl.Done() || tl.Cursor() != 3 || tl.Len() != 3 {
		t.Errorf("unexpected state cursor=%d len=%d", tl.Cursor(), tl.Len())
	}
	if clock.IsPlaying() {
		t.Error("clock should be stopped")
	}
}

func TestStart_EmptyStopsOnFirstFrame(t *testing.T) {
	clock := newClock(t)
	tl := New(clock)

	if err := tl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if clock.FrameCount() != 1 {
		t.Errorf("expected 1 frame, got %d", clock.FrameCount())
	}
}

func TestStart_NestedAndNoop(t *testing.T) {
	clock := newClock(t)
	tl := New(clock)

	var order []string
	add := func(s string) Action { return func() { order = append(order, s) } }

	err := tl.Start(
		Do(add("a")),
		Seq(Noop(), Seq(), Seq(Do(add("b")), Do(nil))),
		Repeat(2, Do(add("c"))),
	)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := strings.Join(order, ""); got != "abcc" {
		t.Errorf("order = %q, want %q", got, "abcc")
	}
	// a, noop, b, nil, c, c
	if tl.Len() != 6 {
		t.Errorf("Len = %d, want 6", tl.Len())
	}
	if clock.FrameCount() != 7 {
		t.Errorf("frames = %d, want 7", clock.FrameCount())
	}
}

func TestStart_SetsFramerate(t *testing.T) {
	clock := newClock(t)
	if err := New(clock).Start(); err != nil {
		t.Fatal(err)
	}
	if clock.Framerate() != DefaultFramerate {
		t.Errorf("framerate = %v, want %v", clock.Framerate(), DefaultFramerate)
	}

	clock = newClock(t)
	if err := New(clock, WithFramerate(30)).Start(); err != nil {
		t.Fatal(err)
	}
	if clock.Framerate() != 30 {
		t.Errorf("framerate = %v, want 30", clock.Framerate())
	}
}

func TestStart_CursorAdvancesBeforeAction(t *testing.T) {
	clock := newClock(t)
	tl := New(clock)

	var seen []int
	probe := func() { seen = append(seen, tl.Cursor()) }
	if err := tl.Start(Each(probe, probe)); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("cursor seen by actions = %v, want [1 2]", seen)
	}
}

func TestStart_PanicPropagates(t *testing.T) {
	clock := newClock(t)
	tl := New(clock)

	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("expected panic boom, got %v", r)
		}
		if tl.Cursor() != 1 {
			t.Errorf("cursor should have advanced before the action, got %d", tl.Cursor())
		}
	}()
	_ = tl.Start(Do(func() { panic("boom") }))
	t.Fatal("Start should not return")
}

func TestDelay_SuppressesActions(t *testing.T) {
	clock := newClock(t)
	tl := New(clock)

	var at []time.Duration
	mark := func() { at = append(at, clock.FrameTime()) }

	// 10000fps なので 1ms は 10 フレーム
	err := tl.Start(Each(
		mark,
		func() { tl.Delay(time.Millisecond) },
		mark,
	))
	if err != nil {
		t.Fatal(err)
	}
	if len(at) != 2 {
		t.Fatalf("expected 2 marks, got %v", at)
	}
	if gap := at[1] - at[0]; gap < time.Millisecond {
		t.Errorf("delay not honored, gap=%v", gap)
	}
	if tl.Delaying() {
		t.Error("delay should have ended")
	}
}

func TestDelay_LastScheduledWins(t *testing.T) {
	clock := newClock(t)
	tl := New(clock)

	var start, end time.Duration
	err := tl.Start(Each(
		func() {
			start = clock.FrameTime()
			tl.Delay(5 * time.Millisecond)
			tl.Delay(time.Millisecond)
		},
		func() { end = clock.FrameTime() },
	))
	if err != nil {
		t.Fatal(err)
	}
	gap := end - start
	if gap < time.Millisecond || gap >= 5*time.Millisecond {
		t.Errorf("gap = %v, want the later 1ms delay to win", gap)
	}
	if clock.PendingTimers() != 0 {
		t.Errorf("replaced delay timer still pending: %d", clock.PendingTimers())
	}
}

func TestDumpFrames(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	clock := newClock(t)
	if err := New(clock, WithLogger(log), WithDumpFrames(true)).Start(Noop()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Frame 0") || !strings.Contains(out, "Frame 1") {
		t.Errorf("expected frame traces, got %q", out)
	}
	if !strings.Contains(out, "category=APP") {
		t.Errorf("expected APP category, got %q", out)
	}
}

// fakeClock は再生状態を操作できるクロック
type fakeClock struct {
	playing     bool
	stayPlaying bool
	handlers    map[int]func()
	nextID      int
	fps         float64
}

func (c *fakeClock) SetOnFrameHandler(fn func()) int {
	if c.handlers == nil {
		c.handlers = map[int]func(){}
	}
	c.nextID++
	c.handlers[c.nextID] = fn
	return c.nextID
}
func (c *fakeClock) SetTimeout(time.Duration, func()) int { c.nextID++; return c.nextID }
func (c *fakeClock) ClearInterval(id int) bool {
	_, ok := c.handlers[id]
	delete(c.handlers, id)
	return ok
}
func (c *fakeClock) SetFramerate(fps float64) { c.fps = fps }
func (c *fakeClock) Stop()                    { c.playing = false }
func (c *fakeClock) IsPlaying() bool          { return c.playing }
func (c *fakeClock) Play() error {
	c.playing = c.stayPlaying
	return nil
}

func TestStart_AlreadyPlaying(t *testing.T) {
	clock := &fakeClock{playing: true}
	err := New(clock).Start(Noop())
	if !errors.Is(err, ErrAlreadyPlaying) {
		t.Errorf("expected ErrAlreadyPlaying, got %v", err)
	}
	if len(clock.handlers) != 0 {
		t.Error("no handler should be registered")
	}
}

func TestStart_StillPlaying(t *testing.T) {
	clock := &fakeClock{stayPlaying: true}
	err := New(clock).Start(Noop())
	if !errors.Is(err, ErrStillPlaying) {
		t.Errorf("expected ErrStillPlaying, got %v", err)
	}
	if len(clock.handlers) != 0 {
		t.Error("frame handler should be removed after Start")
	}
}

func TestStart_PlayError(t *testing.T) {
	clock := player.NewHeadless(player.WithMaxFrames(2))
	tl := New(clock)

	err := tl.Start(Each(nil, nil, nil, nil))
	if !errors.Is(err, player.ErrFrameLimit) {
		t.Errorf("expected ErrFrameLimit, got %v", err)
	}
}

// Property: N 個のアクションは N+1 フレームで完了し、各アクションは1回ずつ呼ばれる
func TestProperty_ActionsRunOnce(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("n actions run once in n+1 frames", prop.ForAll(
		func(n int) bool {
			clock := player.NewHeadless(player.WithMaxFrames(1000))
			tl := New(clock)

			counts := make([]int, n)
			actions := make([]Action, n)
			for i := range actions {
				i := i
				actions[i] = func() { counts[i]++ }
			}
			if err := tl.Start(Each(actions...)); err != nil {
				return false
			}
			for _, c := range counts {
				if c != 1 {
					return false
				}
			}
			return clock.FrameCount() == n+1
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}
