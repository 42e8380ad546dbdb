package player

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/zurustar/framecase/pkg/bitmap"
)

// Headless はウィンドウを持たない Player
// Play は呼び出し元のゴルーチンでフレームを回す
type Headless struct {
	*Core

	maxFrames int
	timeout   time.Duration
	log       *slog.Logger
}

// HeadlessOption は Headless のオプションを設定する関数型
type HeadlessOption func(*Headless)

// WithLogger はロガーを設定する
func WithLogger(log *slog.Logger) HeadlessOption {
	return func(h *Headless) {
		h.log = log
	}
}

// WithMaxFrames は1回の Play で処理するフレーム数の上限を設定する（0は無制限）
func WithMaxFrames(n int) HeadlessOption {
	return func(h *Headless) {
		h.maxFrames = n
	}
}

// WithTimeout は1回の Play の実時間の上限を設定する（0は無制限）
func WithTimeout(d time.Duration) HeadlessOption {
	return func(h *Headless) {
		h.timeout = d
	}
}

// NewHeadless は新しいヘッドレス Player を作成する
func NewHeadless(opts ...HeadlessOption) *Headless {
	h := &Headless{
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.Core = NewCore(h.log)
	return h
}

// Play は Stop が呼ばれるまでフレームを処理する
func (h *Headless) Play() error {
	if err := h.Begin(); err != nil {
		return err
	}
	defer h.End()

	start := time.Now()
	played := 0
	h.log.Debug("headless playback started", "framerate", h.Framerate())

	for !h.StopRequested() {
		if h.maxFrames > 0 && played >= h.maxFrames {
			return fmt.Errorf("%w: %d frames", ErrFrameLimit, played)
		}
		if h.timeout > 0 && time.Since(start) >= h.timeout {
			return fmt.Errorf("%w after %v", ErrTimeout, h.timeout)
		}
		h.Step()
		played++
	}

	h.log.Debug("headless playback stopped", "frames", played, "frameTime", h.FrameTime())
	return nil
}

// Screenshot はキャンバスをソフトウェア描画して返す
func (h *Headless) Screenshot() (*bitmap.Bitmap, error) {
	if h.Canvas() == nil {
		return nil, ErrNoCanvas
	}
	return bitmap.FromImage(h.Canvas().Render()), nil
}

var _ Player = (*Headless)(nil)
