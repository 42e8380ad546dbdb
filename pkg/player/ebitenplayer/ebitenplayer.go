// Package ebitenplayer は Ebitengine のゲームループで動く Player を提供する
package ebitenplayer

import (
	"fmt"
	"image/color"
	"log/slog"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"github.com/zurustar/framecase/pkg/bitmap"
	"github.com/zurustar/framecase/pkg/player"
	"github.com/zurustar/framecase/pkg/scene"
)

var (
	// フレーム番号表示の文字色
	overlayColor = color.RGBA{0xFF, 0xFF, 0x00, 0xFF}
	// デフォルトフォント
	defaultFace = text.NewGoXFace(basicfont.Face7x13)
)

// デフォルトのキャンバスサイズ
const (
	defaultWidth  = 160
	defaultHeight = 120
)

// Player は Ebitengine のウィンドウ上でフレームを回す Player
// Update ごとに Core.Step を1回呼び、Draw でキャンバスを描画して
// スクリーンショット用に画素を読み出す
type Player struct {
	*player.Core

	title      string
	scale      int
	dumpFrames bool
	log        *slog.Logger

	lastFrame *bitmap.Bitmap
	failure   *player.PanicError

	lastCursorX int
	lastCursorY int
}

// Option は Player のオプションを設定する関数型
type Option func(*Player)

// WithLogger はロガーを設定する
func WithLogger(log *slog.Logger) Option {
	return func(p *Player) {
		p.log = log
	}
}

// WithTitle はウィンドウタイトルを設定する
func WithTitle(title string) Option {
	return func(p *Player) {
		p.title = title
	}
}

// WithScale はウィンドウの拡大率を設定する
func WithScale(scale int) Option {
	return func(p *Player) {
		if scale > 0 {
			p.scale = scale
		}
	}
}

// WithFrameOverlay はフレーム番号を画面に表示する
// スクリーンショットには含まれない
func WithFrameOverlay(enabled bool) Option {
	return func(p *Player) {
		p.dumpFrames = enabled
	}
}

// New は新しい Player を作成する
func New(opts ...Option) *Player {
	p := &Player{
		title: "framecase",
		scale: 4,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.Core = player.NewCore(p.log)
	return p
}

// SetFramerate はフレームレートと Ebitengine の TPS を設定する
func (p *Player) SetFramerate(fps float64) {
	p.Core.SetFramerate(fps)
	if fps > 0 {
		ebiten.SetTPS(int(math.Max(1, math.Round(fps))))
	}
}

// Play は Ebitengine のゲームループを開始し、Stop されるまで戻らない
// フレーム処理中の panic は *player.PanicError として返す
func (p *Player) Play() error {
	if err := p.Begin(); err != nil {
		return err
	}
	defer p.End()
	p.failure = nil

	w, h := p.canvasSize()
	ebiten.SetWindowSize(w*p.scale, h*p.scale)
	ebiten.SetWindowTitle(p.title)

	p.log.Info("Starting ebiten playback", "width", w, "height", h, "framerate", p.Framerate())
	if err := ebiten.RunGame(&game{p: p}); err != nil {
		if p.failure != nil {
			return p.failure
		}
		return fmt.Errorf("failed to run game: %w", err)
	}
	return nil
}

// Screenshot は最後に描画されたフレームを返す
// まだ描画されていない場合はソフトウェア描画にフォールバックする
func (p *Player) Screenshot() (*bitmap.Bitmap, error) {
	if p.lastFrame != nil {
		return p.lastFrame, nil
	}
	if p.Canvas() == nil {
		return nil, player.ErrNoCanvas
	}
	return bitmap.FromImage(p.Canvas().Render()), nil
}

func (p *Player) canvasSize() (int, int) {
	if c := p.Canvas(); c != nil {
		size := c.Size()
		return size.X, size.Y
	}
	return defaultWidth, defaultHeight
}

// step は1フレームを処理し、panic を PanicError に変換する
func (p *Player) step() (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.failure = &player.PanicError{Value: r, Frame: p.FrameCount()}
			err = p.failure
		}
	}()
	p.Step()
	return nil
}

// forwardInput は実マウスの左ボタン操作をシーンへの入力として積む
func (p *Player) forwardInput(x, y int, pressed, released bool) {
	helper := p.TestHelper()
	if x != p.lastCursorX || y != p.lastCursorY {
		_ = helper.FakeMouseEvent(scene.CursorMotion, ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft), false, false, x, y, 1)
		p.lastCursorX, p.lastCursorY = x, y
	}
	if pressed {
		_ = helper.FakeMouseEvent(scene.CursorDown, true, false, false, x, y, 1)
	}
	if released {
		_ = helper.FakeMouseEvent(scene.CursorUp, false, false, false, x, y, 1)
	}
}

// game は ebiten.Game を実装する
type game struct {
	p      *Player
	canvas *ebiten.Image
}

// Update ゲームロジックの更新（Ebitengineが毎フレーム呼び出す）
func (g *game) Update() error {
	if g.p.StopRequested() {
		return ebiten.Termination
	}

	x, y := ebiten.CursorPosition()
	g.p.forwardInput(x, y,
		inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft),
		inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft))

	if err := g.p.step(); err != nil {
		return err
	}

	if g.p.StopRequested() {
		return ebiten.Termination
	}
	return nil
}

// Draw 画面描画（Ebitengineが毎フレーム呼び出す）
func (g *game) Draw(screen *ebiten.Image) {
	c := g.p.Canvas()
	if c == nil {
		screen.Fill(color.Black)
		return
	}

	img := c.Render()
	if g.canvas == nil || g.canvas.Bounds() != img.Bounds() {
		g.canvas = ebiten.NewImage(img.Bounds().Dx(), img.Bounds().Dy())
	}
	g.canvas.WritePixels(premultiply(img.Pix))
	screen.DrawImage(g.canvas, nil)

	b := screen.Bounds()
	pix := make([]byte, 4*b.Dx()*b.Dy())
	screen.ReadPixels(pix)
	if frame, err := bitmap.FromPixels(b.Dx(), b.Dy(), pix); err == nil {
		g.p.lastFrame = frame
	} else {
		g.p.log.Warn("failed to capture frame", "error", err)
	}

	if g.p.dumpFrames {
		op := &text.DrawOptions{}
		op.GeoM.Translate(2, 2)
		op.ColorScale.ScaleWithColor(overlayColor)
		text.Draw(screen, fmt.Sprintf("Frame %d", g.p.FrameCount()), defaultFace, op)
	}
}

// Layout 画面サイズを返す
func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.p.canvasSize()
}

// premultiply は NRGBA の画素列を乗算済みアルファに変換する
func premultiply(pix []byte) []byte {
	out := make([]byte, len(pix))
	for i := 0; i < len(pix); i += 4 {
		a := uint32(pix[i+3])
		out[i+0] = byte(uint32(pix[i+0]) * a / 0xff)
		out[i+1] = byte(uint32(pix[i+1]) * a / 0xff)
		out[i+2] = byte(uint32(pix[i+2]) * a / 0xff)
		out[i+3] = pix[i+3]
	}
	return out
}

var _ player.Player = (*Player)(nil)
