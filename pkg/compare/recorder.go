package compare

import (
	"fmt"
	"path/filepath"

	"github.com/zurustar/framecase/pkg/bitmap"
	"github.com/zurustar/framecase/pkg/fileutil"
)

// Recorder は診断画像を結果ディレクトリに保存する
type Recorder struct {
	dir     string
	workDir string
}

// RecorderOption は Recorder のオプション
type RecorderOption func(*Recorder)

// WithWorkDir は書き込み可否を確認する作業ディレクトリを設定する
func WithWorkDir(dir string) RecorderOption {
	return func(r *Recorder) {
		r.workDir = dir
	}
}

// NewRecorder は dir に画像を保存する Recorder を作成する
func NewRecorder(dir string, opts ...RecorderOption) *Recorder {
	r := &Recorder{dir: dir, workDir: "."}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir は保存先ディレクトリを返す
func (r *Recorder) Dir() string {
	return r.dir
}

// Writable は作業ディレクトリに書き込めるかを返す
func (r *Recorder) Writable() bool {
	return fileutil.IsWritable(r.workDir)
}

// Path は key と接尾辞から保存先のパスを作る
func (r *Recorder) Path(key, suffix string) string {
	return filepath.Join(r.dir, key+suffix+".png")
}

// SaveArtifacts は候補・ベースライン・差分の3枚を保存する
// 作業ディレクトリに書き込めない場合は何もしない
func (r *Recorder) SaveArtifacts(key string, candidate, baseline, diff *bitmap.Bitmap) (bool, error) {
	if !r.Writable() {
		return false, nil
	}
	if err := fileutil.EnsureDir(r.dir); err != nil {
		return false, err
	}
	for _, a := range []struct {
		suffix string
		bmp    *bitmap.Bitmap
	}{
		{"", candidate},
		{"_baseline", baseline},
		{"_diff", diff},
	} {
		if err := a.bmp.Save(r.Path(key, a.suffix)); err != nil {
			return false, fmt.Errorf("failed to save artifact %s%s: %w", key, a.suffix, err)
		}
	}
	return true, nil
}

// SaveCandidate は候補画像だけを保存する（ベースラインが無い場合）
func (r *Recorder) SaveCandidate(key string, candidate *bitmap.Bitmap) error {
	if err := fileutil.EnsureDir(r.dir); err != nil {
		return err
	}
	return candidate.Save(r.Path(key, ""))
}
