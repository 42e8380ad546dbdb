// Package testcase は、プレイヤーのフレームに同期してシーンを操作・検証するテストケースを提供する
//
// Case は1つのテストの実行環境で、タイムラインの開始、合成入力の送信、
// スクリーンショットとベースライン画像の比較などを行う。失敗は T を通して報告する。
package testcase

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/zurustar/framecase/pkg/approx"
	"github.com/zurustar/framecase/pkg/bitmap"
	"github.com/zurustar/framecase/pkg/compare"
	"github.com/zurustar/framecase/pkg/handlertest"
	"github.com/zurustar/framecase/pkg/player"
	"github.com/zurustar/framecase/pkg/scene"
	"github.com/zurustar/framecase/pkg/timeline"
)

// DefaultEpsilon は AssertApproxEqual の許容誤差
const DefaultEpsilon = 0.00001

// DefaultResolution は LoadEmptyScene のデフォルトサイズ
var DefaultResolution = image.Pt(160, 120)

// T はテストの失敗を報告する先
// *testing.T はこれを満たす
type T interface {
	Helper()
	Name() string
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
	Log(args ...any)
}

// Env は全テストで共有する環境
type Env struct {
	Context    context.Context
	Comparator *compare.Comparator
	Log        *slog.Logger
	DumpFrames bool
	// WarnOnDiff が true なら、全てのテストで画像差分を警告として扱う
	WarnOnDiff bool
	// Framerate はタイムライン実行時のフレームレート（0 なら timeline.DefaultFramerate）
	Framerate float64
	// Resolution は LoadEmptyScene のデフォルトサイズ（ゼロ値なら 160x120）
	Resolution image.Point
	// Stderr は Skip の出力先（nil なら os.Stderr）
	Stderr io.Writer
}

// TouchData は SendTouchEvents の1イベント分
type TouchData struct {
	ID   int
	Type scene.EventType
	X, Y int
}

// Case は1つのテストの実行状態
type Case struct {
	t   T
	p   player.Player
	env Env
	log *slog.Logger

	tl      *timeline.Timeline
	warn    bool
	skipped bool
}

// New は新しい Case を作成する
func New(t T, p player.Player, env Env) *Case {
	if env.Context == nil {
		env.Context = context.Background()
	}
	if env.Log == nil {
		env.Log = slog.Default()
	}
	if env.Stderr == nil {
		env.Stderr = os.Stderr
	}
	if env.Resolution == (image.Point{}) {
		env.Resolution = DefaultResolution
	}
	return &Case{
		t:   t,
		p:   p,
		env: env,
		log: env.Log.With("test", t.Name()),
	}
}

// T はテストの報告先を返す
func (c *Case) T() T { return c.t }

// Player はテスト対象のプレイヤーを返す
func (c *Case) Player() player.Player { return c.p }

// Timeline は実行中（または最後に実行した）タイムラインを返す
func (c *Case) Timeline() *timeline.Timeline { return c.tl }

// Start はステップを1フレームに1アクションずつ実行し、全て終わるまでブロックする
// warn または Env.WarnOnDiff が true の場合、画像比較の差分は失敗ではなく警告になる
func (c *Case) Start(warn bool, steps ...timeline.Step) {
	c.t.Helper()
	c.warn = warn || c.env.WarnOnDiff

	opts := []timeline.Option{
		timeline.WithLogger(c.log),
		timeline.WithDumpFrames(c.env.DumpFrames),
	}
	if c.env.Framerate > 0 {
		opts = append(opts, timeline.WithFramerate(c.env.Framerate))
	}
	c.tl = timeline.New(c.p, opts...)

	err := c.tl.Start(steps...)
	var pe *player.PanicError
	if errors.As(err, &pe) {
		// ゲームループ越しに運ばれた panic を呼び出し元に戻す
		panic(pe.Value)
	}
	if err != nil {
		c.t.Fatalf("timeline failed: %v", err)
	}
}

// Delay は d の間、次のアクションの実行を止める
func (c *Case) Delay(d time.Duration) {
	if c.tl == nil {
		c.t.Fatalf("Delay called outside of Start")
		return
	}
	c.tl.Delay(d)
}

// CompareImage は現在の画面をベースライン画像 key と比較する
func (c *Case) CompareImage(key string) {
	c.t.Helper()
	bmp, err := c.p.Screenshot()
	if err != nil {
		c.t.Fatalf("screenshot failed: %v", err)
		return
	}
	c.CompareBitmapToFile(bmp, key)
}

// CompareBitmapToFile は bmp をベースライン画像 key と比較する
func (c *Case) CompareBitmapToFile(bmp *bitmap.Bitmap, key string) {
	c.t.Helper()
	if c.env.Comparator == nil {
		c.t.Fatalf("no comparator configured for %s", key)
		return
	}
	c.env.Comparator.CompareNamed(c.env.Context, c.t, c.t.Name(), bmp, key, c.warn)
}

// HasBaseline はベースライン画像 key が存在するかを返す
// 比較器が無い場合は false
func (c *Case) HasBaseline(key string) bool {
	return c.env.Comparator != nil && c.env.Comparator.HasBaseline(key)
}

// AreSimilarBmps は2枚の画像の差分が上限以下かを返す
func (c *Case) AreSimilarBmps(a, b *bitmap.Bitmap, maxAverage, maxStdDev float64) bool {
	c.t.Helper()
	ok, err := compare.IsSimilar(a, b, maxAverage, maxStdDev)
	if err != nil {
		c.t.Fatalf("cannot compare bitmaps: %v", err)
		return false
	}
	return ok
}

// AssertPanics は fn が panic することを確認する
func (c *Case) AssertPanics(fn func()) {
	c.t.Helper()
	if !panics(fn) {
		c.t.Fatalf("expected a panic")
	}
}

func panics(fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
		}
	}()
	fn()
	return false
}

// AssertApproxEqual は a と b がほぼ等しいことを確認する
// 数値同士、または同じ構造の数値の列を比較できる
func (c *Case) AssertApproxEqual(a, b any, epsilon ...float64) {
	c.t.Helper()
	eps := DefaultEpsilon
	if len(epsilon) > 0 {
		eps = epsilon[0]
	}
	if !approx.EqualAny(a, b, eps) {
		c.t.Fatalf("almostEqual: %v != %v", a, b)
	}
}

// LoadEmptyScene は空のメインキャンバスを作成してルートノードを返す
// サイズが正でない場合は環境のデフォルトサイズを使う
func (c *Case) LoadEmptyScene(width, height int) *scene.Node {
	if width <= 0 || height <= 0 {
		width, height = c.env.Resolution.X, c.env.Resolution.Y
	}
	return c.p.CreateMainCanvas(width, height).Root()
}

// Watch は node に届くイベントを記録する Tester を作成する
func (c *Case) Watch(node *scene.Node) *handlertest.Tester {
	return handlertest.New(c.t, node)
}

// FakeClick は (x, y) での左クリック（押下と解放）を送る
func (c *Case) FakeClick(x, y int) {
	c.t.Helper()
	helper := c.p.TestHelper()
	c.check(helper.FakeMouseEvent(scene.CursorDown, true, false, false, x, y, 1))
	c.check(helper.FakeMouseEvent(scene.CursorUp, false, false, false, x, y, 1))
}

// SendMouseEvent はマウスイベントを送る
// CursorUp 以外では左ボタンが押された状態になる
func (c *Case) SendMouseEvent(t scene.EventType, x, y int) {
	c.t.Helper()
	c.check(c.p.TestHelper().FakeMouseEvent(t, t != scene.CursorUp, false, false, x, y, 1))
}

// SendTouchEvent はタッチイベントを送る
func (c *Case) SendTouchEvent(id int, t scene.EventType, x, y int) {
	c.t.Helper()
	c.check(c.p.TestHelper().FakeTouchEvent(id, t, scene.Touch, image.Pt(x, y)))
}

// SendTouchEvents は複数のタッチイベントを同じフレームに送る
func (c *Case) SendTouchEvents(events []TouchData) {
	c.t.Helper()
	helper := c.p.TestHelper()
	for _, ev := range events {
		c.check(helper.FakeTouchEvent(ev.ID, ev.Type, scene.Touch, image.Pt(ev.X, ev.Y)))
	}
}

func (c *Case) check(err error) {
	if err != nil {
		c.t.Helper()
		c.t.Fatalf("cannot send event: %v", err)
	}
}

// Skip はテストをスキップしたことを記録する
// テストの実行自体は止めないので、呼び出し側で return すること
func (c *Case) Skip(msg string) {
	fmt.Fprintf(c.env.Stderr, "skipping: %s ... ", msg)
	c.skipped = true
}

// Skipped は Skip が呼ばれたかを返す
func (c *Case) Skipped() bool {
	return c.skipped
}

// SkipIf は cond が真なら Skip して true を返す
//
//	if c.SkipIf(!hasShaders, "no shader support") {
//		return
//	}
func (c *Case) SkipIf(cond bool, msg string) bool {
	if cond {
		c.Skip(msg)
	}
	return cond
}
