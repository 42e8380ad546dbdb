// Package bitmap はスクリーンショットとベースライン画像を表すラスター画像型を提供する
//
// 差分画像の統計値（平均・標準偏差）は RGB の各チャンネル値（0-255）を
// 標本として計算する。アルファチャンネルは統計に含めない。
package bitmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp" // BMP デコーダを登録
	"golang.org/x/image/draw"
)

// ErrSizeMismatch はサイズの異なる画像同士を比較しようとした場合のエラー
var ErrSizeMismatch = errors.New("bitmap size mismatch")

// Bitmap は NRGBA 形式のラスター画像
type Bitmap struct {
	img *image.NRGBA
}

// New は指定サイズの透明な Bitmap を作成する
func New(width, height int) *Bitmap {
	return &Bitmap{img: image.NewNRGBA(image.Rect(0, 0, width, height))}
}

// FromImage は任意の image.Image を NRGBA に正規化して Bitmap を作成する
func FromImage(src image.Image) *Bitmap {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return &Bitmap{img: dst}
}

// FromPixels は RGBA（乗算済みアルファ）のバイト列から Bitmap を作成する
// ebiten.Image.ReadPixels の出力をそのまま受け取れる
func FromPixels(width, height int, pix []byte) (*Bitmap, error) {
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("pixel buffer has %d bytes, want %d", len(pix), width*height*4)
	}
	src := &image.RGBA{Pix: pix, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}
	return FromImage(src), nil
}

// Load は PNG または BMP ファイルを読み込む
func Load(path string) (*Bitmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return FromImage(img), nil
}

// Save は PNG 形式で保存する
func (b *Bitmap) Save(path string) error {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".png" {
		return fmt.Errorf("unsupported image format %q: only .png can be written", ext)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image %s: %w", path, err)
	}
	if err := png.Encode(f, b.img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode image %s: %w", path, err)
	}
	return f.Close()
}

// Image は内部の画像を返す
func (b *Bitmap) Image() *image.NRGBA {
	return b.img
}

// Size は幅と高さを返す
func (b *Bitmap) Size() (int, int) {
	return b.img.Rect.Dx(), b.img.Rect.Dy()
}

// At は指定座標の色を返す
func (b *Bitmap) At(x, y int) color.NRGBA {
	return b.img.NRGBAAt(x, y)
}

// Set は指定座標の色を設定する
func (b *Bitmap) Set(x, y int, c color.NRGBA) {
	b.img.SetNRGBA(x, y, c)
}

// Fill は画像全体を単色で塗りつぶす
func (b *Bitmap) Fill(c color.NRGBA) {
	draw.Draw(b.img, b.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// Subtract は各チャンネルの差の絶対値からなる差分画像を返す
// 差分画像は常に不透明で、値は 0-255 に収まる
func (b *Bitmap) Subtract(other *Bitmap) (*Bitmap, error) {
	w, h := b.Size()
	ow, oh := other.Size()
	if w != ow || h != oh {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch, w, h, ow, oh)
	}

	diff := New(w, h)
	for i := 0; i < len(b.img.Pix); i += 4 {
		diff.img.Pix[i+0] = absDiff(b.img.Pix[i+0], other.img.Pix[i+0])
		diff.img.Pix[i+1] = absDiff(b.img.Pix[i+1], other.img.Pix[i+1])
		diff.img.Pix[i+2] = absDiff(b.img.Pix[i+2], other.img.Pix[i+2])
		diff.img.Pix[i+3] = 0xff
	}
	return diff, nil
}

// Avg は RGB チャンネル値の平均を返す
func (b *Bitmap) Avg() float64 {
	n := b.samples()
	if n == 0 {
		return 0
	}
	var sum float64
	b.eachChannel(func(v uint8) { sum += float64(v) })
	return sum / float64(n)
}

// StdDev は RGB チャンネル値の標準偏差（母標準偏差）を返す
func (b *Bitmap) StdDev() float64 {
	n := b.samples()
	if n == 0 {
		return 0
	}
	avg := b.Avg()
	var sum float64
	b.eachChannel(func(v uint8) {
		d := float64(v) - avg
		sum += d * d
	})
	return math.Sqrt(sum / float64(n))
}

func (b *Bitmap) samples() int {
	w, h := b.Size()
	return w * h * 3
}

func (b *Bitmap) eachChannel(fn func(v uint8)) {
	for i := 0; i < len(b.img.Pix); i += 4 {
		fn(b.img.Pix[i+0])
		fn(b.img.Pix[i+1])
		fn(b.img.Pix[i+2])
	}
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
