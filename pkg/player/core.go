package player

import (
	"log/slog"
	"sort"
	"time"

	"github.com/zurustar/framecase/pkg/scene"
)

type timer struct {
	id       int
	due      time.Duration
	interval time.Duration
	repeat   bool
	fn       func()
}

type frameHandler struct {
	id int
	fn func()
}

// Core はフレームループの共通部分
// 1フレームは「仮想時間を進める → 期限の来たタイマーを発火 → キューに溜まった
// 合成入力をシーンへ配送 → フレームハンドラを登録順に呼ぶ」の順で処理される。
// タイマーは仮想時間で管理するため、結果は実時間に依存しない。
type Core struct {
	canvas    *scene.Canvas
	helper    *scene.TestHelper
	framerate float64

	now    time.Duration
	frame  int
	nextID int

	timers        []*timer
	frameHandlers []frameHandler

	playing       bool
	stopRequested bool

	log *slog.Logger
}

// NewCore は新しい Core を作成する
func NewCore(log *slog.Logger) *Core {
	if log == nil {
		log = slog.Default()
	}
	return &Core{
		helper:    scene.NewTestHelper(),
		framerate: DefaultFramerate,
		log:       log,
	}
}

// Stop は現在のフレームの処理が終わった時点で再生を止める
func (c *Core) Stop() {
	c.stopRequested = true
}

// IsPlaying は再生中かどうかを返す
func (c *Core) IsPlaying() bool {
	return c.playing
}

// StopRequested は Stop が呼ばれたかどうかを返す
func (c *Core) StopRequested() bool {
	return c.stopRequested
}

// SetFramerate はフレームレートを設定する（0以下は無視）
func (c *Core) SetFramerate(fps float64) {
	if fps <= 0 {
		c.log.Warn("ignoring non-positive framerate", "fps", fps)
		return
	}
	c.framerate = fps
}

// Framerate は現在のフレームレートを返す
func (c *Core) Framerate() float64 {
	return c.framerate
}

// FrameDuration は1フレームあたりの仮想時間を返す
func (c *Core) FrameDuration() time.Duration {
	return time.Duration(float64(time.Second) / c.framerate)
}

func (c *Core) allocID() int {
	c.nextID++
	return c.nextID
}

// SetOnFrameHandler は毎フレーム呼ばれる関数を登録する
func (c *Core) SetOnFrameHandler(fn func()) int {
	id := c.allocID()
	c.frameHandlers = append(c.frameHandlers, frameHandler{id: id, fn: fn})
	return id
}

// SetTimeout は一度だけ発火するタイマーを登録する
func (c *Core) SetTimeout(d time.Duration, fn func()) int {
	return c.addTimer(d, fn, false)
}

// SetInterval は繰り返し発火するタイマーを登録する
func (c *Core) SetInterval(d time.Duration, fn func()) int {
	if d <= 0 {
		d = c.FrameDuration()
	}
	return c.addTimer(d, fn, true)
}

func (c *Core) addTimer(d time.Duration, fn func(), repeat bool) int {
	id := c.allocID()
	c.timers = append(c.timers, &timer{
		id:       id,
		due:      c.now + d,
		interval: d,
		repeat:   repeat,
		fn:       fn,
	})
	return id
}

// ClearInterval はタイマーまたはフレームハンドラを解除する
func (c *Core) ClearInterval(id int) bool {
	for i, t := range c.timers {
		if t.id == id {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	for i, h := range c.frameHandlers {
		if h.id == id {
			c.frameHandlers = append(c.frameHandlers[:i], c.frameHandlers[i+1:]...)
			return true
		}
	}
	return false
}

// PendingTimers は未発火のタイマー数を返す
func (c *Core) PendingTimers() int {
	return len(c.timers)
}

// CreateMainCanvas はメインキャンバスを作成して置き換える
func (c *Core) CreateMainCanvas(width, height int) *scene.Canvas {
	c.canvas = scene.NewCanvas(width, height)
	c.log.Debug("main canvas created", "width", width, "height", height)
	return c.canvas
}

// Canvas は現在のメインキャンバスを返す
func (c *Core) Canvas() *scene.Canvas {
	return c.canvas
}

// TestHelper は合成入力のキューを返す
func (c *Core) TestHelper() *scene.TestHelper {
	return c.helper
}

// FrameTime は仮想時間を返す
func (c *Core) FrameTime() time.Duration {
	return c.now
}

// FrameCount は処理済みフレーム数を返す
func (c *Core) FrameCount() int {
	return c.frame
}

// Begin は再生開始時の状態を設定する
func (c *Core) Begin() error {
	if c.playing {
		return ErrAlreadyPlaying
	}
	c.playing = true
	c.stopRequested = false
	return nil
}

// End は再生終了時の状態を設定する
func (c *Core) End() {
	c.playing = false
}

// Step は1フレームを処理する
func (c *Core) Step() {
	c.now += c.FrameDuration()

	c.fireTimers()

	for _, ev := range c.helper.PollEvents() {
		if c.canvas == nil {
			c.log.Debug("dropping event without canvas", "type", ev.Type.String())
			continue
		}
		c.canvas.Dispatch(ev)
	}

	handlers := make([]frameHandler, len(c.frameHandlers))
	copy(handlers, c.frameHandlers)
	for _, h := range handlers {
		h.fn()
	}

	c.frame++
}

func (c *Core) fireTimers() {
	var due []*timer
	for _, t := range c.timers {
		if t.due <= c.now {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].id < due[j].id
	})

	for _, t := range due {
		// 先に発火したタイマーが解除した場合は呼ばない
		if !c.hasTimer(t) {
			continue
		}
		if t.repeat {
			t.due += t.interval
		} else {
			c.ClearInterval(t.id)
		}
		t.fn()
	}
}

func (c *Core) hasTimer(t *timer) bool {
	for _, other := range c.timers {
		if other == t {
			return true
		}
	}
	return false
}
