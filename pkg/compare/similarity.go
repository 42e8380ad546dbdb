// Package compare はスクリーンショットとベースライン画像の類似度判定を行う
//
// 類似度は2枚の画像の差分画像の平均値と標準偏差で表す。判定には2段階の閾値
// があり、artifact 段階を超えると診断画像を保存し、failure 段階を超えると
// テストを失敗（または警告）とする。2つの段階は独立に評価される。
package compare

import (
	"fmt"

	"github.com/zurustar/framecase/pkg/bitmap"
)

// Result は差分画像の統計値
type Result struct {
	Average float64
	StdDev  float64
}

// Thresholds は1段階分の閾値
type Thresholds struct {
	MaxAverage float64 `yaml:"average"`
	MaxStdDev  float64 `yaml:"stddev"`
}

// Exceeded はどちらかの統計値が閾値を超えているかを返す
func (t Thresholds) Exceeded(r Result) bool {
	return r.Average > t.MaxAverage || r.StdDev > t.MaxStdDev
}

// Policy は artifact 段階と failure 段階の閾値
type Policy struct {
	Artifact Thresholds `yaml:"artifact"`
	Failure  Thresholds `yaml:"failure"`
}

// DefaultPolicy はデフォルトの閾値を返す
func DefaultPolicy() Policy {
	return Policy{
		Artifact: Thresholds{MaxAverage: 0.1, MaxStdDev: 0.5},
		Failure:  Thresholds{MaxAverage: 2.0, MaxStdDev: 6.0},
	}
}

// Validate は閾値が負でなく、failure 段階が artifact 段階以上であることを確認する
func (p Policy) Validate() error {
	for _, v := range []float64{p.Artifact.MaxAverage, p.Artifact.MaxStdDev, p.Failure.MaxAverage, p.Failure.MaxStdDev} {
		if v < 0 {
			return fmt.Errorf("thresholds must be non-negative: %+v", p)
		}
	}
	if p.Failure.MaxAverage < p.Artifact.MaxAverage || p.Failure.MaxStdDev < p.Artifact.MaxStdDev {
		return fmt.Errorf("failure thresholds (%.2f, %.2f) must not be below artifact thresholds (%.2f, %.2f)",
			p.Failure.MaxAverage, p.Failure.MaxStdDev, p.Artifact.MaxAverage, p.Artifact.MaxStdDev)
	}
	return nil
}

// Similarity は a と b の差分画像の平均値と標準偏差を返す
func Similarity(a, b *bitmap.Bitmap) (Result, error) {
	diff, err := a.Subtract(b)
	if err != nil {
		return Result{}, err
	}
	return Result{Average: diff.Avg(), StdDev: diff.StdDev()}, nil
}

// IsSimilar は差分の統計値が両方とも上限以下かを返す
func IsSimilar(a, b *bitmap.Bitmap, maxAverage, maxStdDev float64) (bool, error) {
	r, err := Similarity(a, b)
	if err != nil {
		return false, err
	}
	return r.Average <= maxAverage && r.StdDev <= maxStdDev, nil
}
