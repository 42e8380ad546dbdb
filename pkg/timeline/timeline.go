// Package timeline はフレームクロックに同期してアクションを1フレームに1つずつ実行する
//
// タイムラインはアクションの入れ子リストを平坦化し、プレイヤーのフレームハンドラから
// 毎フレーム1つずつ呼び出す。全アクションを実行した次のフレームでクロックを止める。
// Delay で一定時間アクションの実行を止めることができる。
package timeline

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zurustar/framecase/pkg/logger"
	"github.com/zurustar/framecase/pkg/nested"
)

var (
	// ErrAlreadyPlaying は Start 時にクロックが既に再生中の場合のエラー
	ErrAlreadyPlaying = errors.New("timeline: clock is already playing")

	// ErrStillPlaying は Play から戻った後もクロックが再生中の場合のエラー
	ErrStillPlaying = errors.New("timeline: clock still playing after stop")
)

// DefaultFramerate はタイムライン実行時のフレームレート
// 実時間に縛られずにできるだけ速くフレームを回すため大きな値にしている
const DefaultFramerate = 10000.0

// Action は1フレームで実行される処理
// nil は何もしないフレームを表す
type Action func()

// Step はアクションの入れ子グループ
type Step = nested.Item[Action]

// Clock はタイムラインが駆動するフレームクロック
// player.Player はこれを満たす
type Clock interface {
	SetOnFrameHandler(fn func()) int
	SetTimeout(d time.Duration, fn func()) int
	ClearInterval(id int) bool
	SetFramerate(fps float64)
	Play() error
	Stop()
	IsPlaying() bool
}

// Do は1つのアクションからなるステップを作成する
func Do(a Action) Step {
	return nested.Leaf(a)
}

// Noop は何もしない1フレームを作成する
func Noop() Step {
	return nested.Leaf[Action](nil)
}

// Seq はステップを順に並べたグループを作成する
func Seq(steps ...Step) Step {
	return nested.Group(steps...)
}

// Each はアクションを1フレームずつ順に実行するグループを作成する
func Each(actions ...Action) Step {
	steps := make([]Step, len(actions))
	for i, a := range actions {
		steps[i] = nested.Leaf(a)
	}
	return nested.Group(steps...)
}

// Repeat は step を n 回繰り返すグループを作成する
func Repeat(n int, step Step) Step {
	if n < 0 {
		n = 0
	}
	steps := make([]Step, n)
	for i := range steps {
		steps[i] = step
	}
	return nested.Group(steps...)
}

// Timeline はアクションリストとカーソルを持つ
type Timeline struct {
	clock      Clock
	log        *slog.Logger
	dumpFrames bool
	framerate  float64

	actions  []Action
	cursor   int
	delaying bool
	frames   int

	// 未発火の Delay 解除タイマー（0 はなし）
	pendingDelay int
}

// Option は Timeline のオプションを設定する関数型
type Option func(*Timeline)

// WithLogger はロガーを設定する
func WithLogger(log *slog.Logger) Option {
	return func(t *Timeline) {
		t.log = log
	}
}

// WithDumpFrames はフレームごとのトレース出力を有効にする
func WithDumpFrames(enabled bool) Option {
	return func(t *Timeline) {
		t.dumpFrames = enabled
	}
}

// WithFramerate は Start 時に設定するフレームレートを変更する
func WithFramerate(fps float64) Option {
	return func(t *Timeline) {
		if fps > 0 {
			t.framerate = fps
		}
	}
}

// New は新しい Timeline を作成する
func New(clock Clock, opts ...Option) *Timeline {
	t := &Timeline{
		clock:     clock,
		log:       slog.Default(),
		framerate: DefaultFramerate,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start はステップを平坦化し、クロックが止まるまでブロックして実行する
func (t *Timeline) Start(steps ...Step) error {
	if t.clock.IsPlaying() {
		return ErrAlreadyPlaying
	}

	t.actions = nested.Flatten(steps...)
	t.cursor = 0
	t.delaying = false
	t.frames = 0
	t.pendingDelay = 0

	t.log.Debug("Timeline starting", "actions", len(t.actions), "framerate", t.framerate)

	id := t.clock.SetOnFrameHandler(t.onFrame)
	defer t.clock.ClearInterval(id)

	t.clock.SetFramerate(t.framerate)
	if err := t.clock.Play(); err != nil {
		return err
	}

	if t.clock.IsPlaying() {
		return ErrStillPlaying
	}
	t.log.Debug("Timeline finished", "frames", t.frames)
	return nil
}

// onFrame は毎フレーム呼ばれる
// カーソルはアクションを呼ぶ前に進めるため、アクションが失敗しても進み方は変わらない
func (t *Timeline) onFrame() {
	if t.delaying {
		return
	}
	if t.dumpFrames {
		logger.Trace(t.log, logger.CategoryApp, fmt.Sprintf("Frame %d", t.frames))
	}
	t.frames++
	if t.cursor == len(t.actions) {
		t.clock.Stop()
		return
	}
	a := t.actions[t.cursor]
	t.cursor++
	if a != nil {
		a()
	}
}

// Delay は d の間アクションの実行を止める
// 既に Delay 中の場合は、解除予定を新しいものに置き換える
func (t *Timeline) Delay(d time.Duration) {
	t.delaying = true
	if t.pendingDelay != 0 {
		t.clock.ClearInterval(t.pendingDelay)
	}
	var id int
	id = t.clock.SetTimeout(d, func() {
		if t.pendingDelay == id {
			t.pendingDelay = 0
		}
		t.delaying = false
	})
	t.pendingDelay = id
}

// Cursor は次に実行するアクションの位置を返す
func (t *Timeline) Cursor() int { return t.cursor }

// Len は平坦化されたアクション数を返す
func (t *Timeline) Len() int { return len(t.actions) }

// Delaying は Delay 中かどうかを返す
func (t *Timeline) Delaying() bool { return t.delaying }

// Done は全アクションを実行済みかどうかを返す
func (t *Timeline) Done() bool { return t.cursor == len(t.actions) }
