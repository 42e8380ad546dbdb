package testcase

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zurustar/framecase/pkg/compare"
	"github.com/zurustar/framecase/pkg/player"
	"github.com/zurustar/framecase/pkg/scene"
	"github.com/zurustar/framecase/pkg/timeline"
)

func newPlayer() player.Player {
	return player.NewHeadless(player.WithMaxFrames(10000))
}

// runRecorded は recorder を使って fn を実行し、Fatal による中断を吸収する
func runRecorded(fn func(c *Case), env Env) *recorder {
	rec := &recorder{name: "recorded"}
	func() {
		defer func() {
			if v := recover(); v != nil && v != errFailNow {
				panic(v)
			}
		}()
		fn(New(rec, newPlayer(), env))
	}()
	return rec
}

func addButton(root *scene.Node) *scene.Node {
	n := scene.NewNode("button", image.Pt(10, 10), image.Pt(40, 40), color.NRGBA{200, 0, 0, 255})
	root.AppendChild(n)
	return n
}

func TestStart_RunsActions(t *testing.T) {
	c := New(t, newPlayer(), Env{})
	ran := 0
	c.Start(false, timeline.Each(func() { ran++ }, nil, func() { ran++ }))

	assert.Equal(t, 2, ran)
	assert.True(t, c.Timeline().Done())
	assert.False(t, c.Player().IsPlaying())
}

func TestStart_TimelineErrorIsFatal(t *testing.T) {
	rec := runRecorded(func(c *Case) {
		c.p = player.NewHeadless(player.WithMaxFrames(1))
		c.Start(false, timeline.Each(nil, nil, nil))
	}, Env{})

	assert.True(t, rec.failed)
	require.Len(t, rec.messages, 1)
	assert.Contains(t, rec.messages[0], "frame limit")
}

// panicPlayer はゲームループ越しの panic を PanicError として返すプレイヤー
type panicPlayer struct {
	*player.Headless
}

func (p panicPlayer) Play() error {
	return &player.PanicError{Value: "from update", Frame: 3}
}

func TestStart_RepanicsPanicError(t *testing.T) {
	c := New(t, panicPlayer{player.NewHeadless()}, Env{})
	assert.PanicsWithValue(t, "from update", func() {
		c.Start(false, timeline.Noop())
	})
}

func TestDelay(t *testing.T) {
	p := player.NewHeadless(player.WithMaxFrames(10000))
	c := New(t, p, Env{})

	var before, after time.Duration
	c.Start(false, timeline.Each(
		func() { before = p.FrameTime(); c.Delay(2 * time.Millisecond) },
		func() { after = p.FrameTime() },
	))
	assert.GreaterOrEqual(t, after-before, 2*time.Millisecond)
}

func TestEnvFramerate(t *testing.T) {
	p := player.NewHeadless(player.WithMaxFrames(10))
	c := New(t, p, Env{Framerate: 25})
	c.Start(false, timeline.Noop())
	assert.Equal(t, 25.0, p.Framerate())
}

func TestLoadEmptyScene(t *testing.T) {
	c := New(t, newPlayer(), Env{})
	root := c.LoadEmptyScene(0, 0)
	assert.Equal(t, image.Pt(160, 120), root.Size)

	root = c.LoadEmptyScene(320, 200)
	assert.Equal(t, image.Pt(320, 200), root.Size)

	c = New(t, newPlayer(), Env{Resolution: image.Pt(64, 48)})
	assert.Equal(t, image.Pt(64, 48), c.LoadEmptyScene(-1, 10).Size)
}

func TestFakeClickAndWatch(t *testing.T) {
	c := New(t, newPlayer(), Env{})
	button := addButton(c.LoadEmptyScene(0, 0))
	w := c.Watch(button)

	c.Start(false, timeline.Each(
		func() { c.FakeClick(20, 20) },
		func() { w.AssertState(true, true, true, false, false) },
		func() { c.SendMouseEvent(scene.CursorMotion, 100, 100) },
		func() { w.AssertState(false, false, false, true, false) },
		func() { w.ClearHandlers() },
	))
	assert.Zero(t, button.HandlerCount())
}

func TestSendMouseEvent_ButtonState(t *testing.T) {
	c := New(t, newPlayer(), Env{})
	button := addButton(c.LoadEmptyScene(0, 0))

	var pressed []bool
	for _, et := range []scene.EventType{scene.CursorDown, scene.CursorMotion, scene.CursorUp} {
		button.SetEventHandler(et, scene.Mouse, func(ev *scene.Event) { pressed = append(pressed, ev.LeftButton) })
	}

	c.SendMouseEvent(scene.CursorDown, 20, 20)
	c.SendMouseEvent(scene.CursorMotion, 21, 21)
	c.SendMouseEvent(scene.CursorUp, 21, 21)
	c.Start(false, timeline.Noop())

	assert.Equal(t, []bool{true, true, false}, pressed)
}

func TestSendTouchEvents(t *testing.T) {
	c := New(t, newPlayer(), Env{})
	button := addButton(c.LoadEmptyScene(0, 0))

	var ids []int
	button.SetEventHandler(scene.CursorDown, scene.Touch, func(ev *scene.Event) { ids = append(ids, ev.CursorID) })

	c.Start(false, timeline.Each(
		func() { c.SendTouchEvent(1, scene.CursorDown, 20, 20) },
		func() {
			c.SendTouchEvents([]TouchData{
				{ID: 2, Type: scene.CursorDown, X: 15, Y: 15},
				{ID: 3, Type: scene.CursorDown, X: 30, Y: 30},
			})
		},
		nil,
	))
	assert.Equal(t, []int{1, 2, 3}, ids)
}

func TestSendEvent_InvalidTypeIsFatal(t *testing.T) {
	rec := runRecorded(func(c *Case) {
		c.SendMouseEvent(scene.CursorOver, 1, 1)
	}, Env{})
	assert.True(t, rec.failed)
}

func TestAssertApproxEqual(t *testing.T) {
	c := New(t, newPlayer(), Env{})
	c.AssertApproxEqual(1.0, 1.000001)
	c.AssertApproxEqual([]float64{1, 2}, []float64{1.05, 2}, 0.1)
	c.AssertApproxEqual(image.Pt(3, 4), []int{3, 4})

	rec := runRecorded(func(c *Case) { c.AssertApproxEqual(1.0, 1.1) }, Env{})
	require.True(t, rec.failed)
	assert.Equal(t, "almostEqual: 1 != 1.1", rec.messages[0])

	rec = runRecorded(func(c *Case) { c.AssertApproxEqual([]float64{1}, []float64{1, 2}) }, Env{})
	assert.True(t, rec.failed)
}

func TestAssertPanics(t *testing.T) {
	c := New(t, newPlayer(), Env{})
	c.AssertPanics(func() { panic("x") })

	rec := runRecorded(func(c *Case) { c.AssertPanics(func() {}) }, Env{})
	assert.True(t, rec.failed)
}

func TestSkip(t *testing.T) {
	var stderr bytes.Buffer
	c := New(t, newPlayer(), Env{Stderr: &stderr})

	assert.False(t, c.SkipIf(false, "never"))
	assert.False(t, c.Skipped())

	assert.True(t, c.SkipIf(true, "no GPU"))
	assert.True(t, c.Skipped())
	assert.Equal(t, "skipping: no GPU ... ", stderr.String())
}

func TestCompareImage(t *testing.T) {
	root := t.TempDir()
	baseline := filepath.Join(root, "baseline")
	results := filepath.Join(root, "results")
	require.NoError(t, os.MkdirAll(baseline, 0o755))

	cmp := compare.New(compare.Config{BaselineDir: baseline, ResultsDir: results},
		compare.WithRecorder(compare.NewRecorder(results, compare.WithWorkDir(root))))
	env := Env{Comparator: cmp}

	// ベースラインを作成
	p := newPlayer()
	c := New(t, p, env)
	button := addButton(c.LoadEmptyScene(0, 0))
	c.Start(false, timeline.Noop())
	shot, err := p.Screenshot()
	require.NoError(t, err)
	require.NoError(t, shot.Save(filepath.Join(baseline, "button.png")))

	assert.True(t, c.HasBaseline("button"))
	assert.False(t, c.HasBaseline("unknown"))
	assert.False(t, New(t, p, Env{}).HasBaseline("button"))

	// 同じ画面なら成功
	c.Start(false, timeline.Do(func() { c.CompareImage("button") }))

	// 色を変えると失敗
	button.Color = color.NRGBA{0, 200, 0, 255}
	rec := runRecorded(func(rc *Case) {
		rc.p = p
		rc.Start(false, timeline.Do(func() { rc.CompareImage("button") }))
	}, env)
	require.True(t, rec.failed)
	assert.Contains(t, rec.messages[0], "button: Difference image has avg=")
	assert.FileExists(t, filepath.Join(results, "button_diff.png"))

	// 警告モードではログだけ
	rec = runRecorded(func(rc *Case) {
		rc.p = p
		rc.Start(true, timeline.Do(func() { rc.CompareImage("button") }))
	}, env)
	assert.False(t, rec.failed)
	require.Len(t, rec.messages, 1)

	// スイート全体の警告モードはテスト側の指定より優先される
	warnEnv := env
	warnEnv.WarnOnDiff = true
	rec = runRecorded(func(rc *Case) {
		rc.p = p
		rc.Start(false, timeline.Do(func() { rc.CompareImage("button") }))
	}, warnEnv)
	assert.False(t, rec.failed)
	require.Len(t, rec.messages, 1)
	assert.Contains(t, rec.messages[0], "button: Difference image has avg=")

	// ベースラインが無い
	rec = runRecorded(func(rc *Case) {
		rc.p = p
		rc.Start(true, timeline.Do(func() { rc.CompareImage("unknown") }))
	}, env)
	assert.True(t, rec.failed)
	assert.FileExists(t, filepath.Join(results, "unknown.png"))
}

func TestCompareImage_WithoutComparator(t *testing.T) {
	rec := runRecorded(func(c *Case) {
		c.LoadEmptyScene(0, 0)
		c.CompareImage("x")
	}, Env{})
	require.True(t, rec.failed)
	assert.True(t, strings.HasPrefix(rec.messages[0], "no comparator"))
}

func TestAreSimilarBmps(t *testing.T) {
	p := newPlayer()
	c := New(t, p, Env{})
	c.LoadEmptyScene(0, 0)
	a, err := p.Screenshot()
	require.NoError(t, err)
	addButton(p.Canvas().Root())
	b, err := p.Screenshot()
	require.NoError(t, err)

	assert.True(t, c.AreSimilarBmps(a, a, 0, 0))
	assert.False(t, c.AreSimilarBmps(a, b, 1, 1))
}
