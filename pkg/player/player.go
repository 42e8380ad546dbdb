// Package player はテストが駆動するエンジンの契約と、その共通フレームループを提供する
//
// Player はフレームクロック・タイマー・シーン・合成入力・スクリーンショットを
// まとめたインターフェースで、ヘッドレス実装（Headless）と Ebitengine 実装
// （ebitenplayer パッケージ）がある。
package player

import (
	"errors"
	"fmt"
	"time"

	"github.com/zurustar/framecase/pkg/bitmap"
	"github.com/zurustar/framecase/pkg/scene"
)

var (
	// ErrAlreadyPlaying は再生中に Play が呼ばれた場合のエラー
	ErrAlreadyPlaying = errors.New("player is already playing")

	// ErrFrameLimit はフレーム数の上限に達した場合のエラー
	ErrFrameLimit = errors.New("frame limit reached")

	// ErrTimeout は実時間のタイムアウトに達した場合のエラー
	ErrTimeout = errors.New("playback timed out")

	// ErrNoCanvas はメインキャンバスが作成されていない場合のエラー
	ErrNoCanvas = errors.New("no main canvas")
)

// DefaultFramerate は SetFramerate が呼ばれていない場合のフレームレート
const DefaultFramerate = 60.0

// Player はテストハーネスが利用するエンジンの操作面
type Player interface {
	// Play は Stop が呼ばれるまでフレームを回し続ける
	Play() error
	Stop()
	IsPlaying() bool
	SetFramerate(fps float64)

	// SetOnFrameHandler は毎フレーム呼ばれる関数を登録し、そのIDを返す
	SetOnFrameHandler(fn func()) int
	// SetTimeout は d 経過後に一度だけ fn を呼ぶ
	SetTimeout(d time.Duration, fn func()) int
	// SetInterval は d ごとに fn を呼ぶ
	SetInterval(d time.Duration, fn func()) int
	// ClearInterval はタイマーまたはフレームハンドラを解除する
	ClearInterval(id int) bool

	Screenshot() (*bitmap.Bitmap, error)
	CreateMainCanvas(width, height int) *scene.Canvas
	Canvas() *scene.Canvas
	TestHelper() *scene.TestHelper

	// FrameTime は再生開始からの仮想時間を返す
	FrameTime() time.Duration
	FrameCount() int
}

// PanicError はフレーム処理中に発生した panic を運ぶ
// ゲームループが panic を呼び出し元へ伝えられない実装で使われる
type PanicError struct {
	Value any
	Frame int
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in frame %d: %v", e.Frame, e.Value)
}
