package compare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zurustar/framecase/pkg/bitmap"
	"github.com/zurustar/framecase/pkg/fileutil"
	"github.com/zurustar/framecase/pkg/history"
	"github.com/zurustar/framecase/pkg/logger"
)

// ErrBaselineMissing はベースライン画像を読み込めなかった場合のエラー
var ErrBaselineMissing = errors.New("baseline image could not be loaded")

// Verdict は比較結果の判定
type Verdict int

const (
	// VerdictPass はどちらの段階も超えていない
	VerdictPass Verdict = iota
	// VerdictArtifact は artifact 段階のみ超えた（診断画像を保存）
	VerdictArtifact
	// VerdictWarn は failure 段階を超えたが警告モード
	VerdictWarn
	// VerdictFail は failure 段階を超えた
	VerdictFail
)

func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "pass"
	case VerdictArtifact:
		return "artifact"
	case VerdictWarn:
		return "warn"
	case VerdictFail:
		return "fail"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// Outcome は1回の比較の結果
type Outcome struct {
	Verdict Verdict
	Result  Result
	// Message は failure 段階を超えた場合のメッセージ
	Message string
	// Saved は診断画像を保存したかどうか
	Saved bool
}

// Ledger は比較結果の記録先
// *history.Store はこれを満たす
type Ledger interface {
	Append(ctx context.Context, e history.Entry) error
}

// TB は比較結果をテストに伝えるための最小インターフェース
// *testing.T はこれを満たす
type TB interface {
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Log(args ...any)
}

// Config は Comparator の設定
type Config struct {
	BaselineDir string
	ResultsDir  string
	Policy      Policy
}

// Comparator はベースライン画像との比較を行う
type Comparator struct {
	cfg      Config
	log      *slog.Logger
	ledger   Ledger
	recorder *Recorder
}

// Option は Comparator のオプション
type Option func(*Comparator)

// WithLogger はロガーを設定する
func WithLogger(log *slog.Logger) Option {
	return func(c *Comparator) {
		c.log = log
	}
}

// WithHistory は比較結果の記録先を設定する
func WithHistory(l Ledger) Option {
	return func(c *Comparator) {
		c.ledger = l
	}
}

// WithRecorder は診断画像の保存先を設定する
func WithRecorder(r *Recorder) Option {
	return func(c *Comparator) {
		c.recorder = r
	}
}

// New は新しい Comparator を作成する
// 閾値が設定されていない場合は DefaultPolicy を使う
func New(cfg Config, opts ...Option) *Comparator {
	if cfg.Policy == (Policy{}) {
		cfg.Policy = DefaultPolicy()
	}
	c := &Comparator{
		cfg: cfg,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.recorder == nil {
		c.recorder = NewRecorder(cfg.ResultsDir)
	}
	return c
}

// Policy は使用中の閾値を返す
func (c *Comparator) Policy() Policy {
	return c.cfg.Policy
}

// LoadBaseline は key に対応するベースライン画像を読み込む
func (c *Comparator) LoadBaseline(key string) (*bitmap.Bitmap, error) {
	path, err := fileutil.FindFileCaseInsensitive(c.cfg.BaselineDir, key+".png")
	if err != nil {
		return nil, err
	}
	return bitmap.Load(path)
}

// HasBaseline は key のベースライン画像が存在するかを返す
func (c *Comparator) HasBaseline(key string) bool {
	_, err := fileutil.FindFileCaseInsensitive(c.cfg.BaselineDir, key+".png")
	return err == nil
}

// Compare は候補画像をベースラインと比較する
// name はテスト名で、履歴の記録にのみ使われる
func (c *Comparator) Compare(ctx context.Context, name string, candidate *bitmap.Bitmap, key string, warn bool) (Outcome, error) {
	baseline, err := c.LoadBaseline(key)
	if err != nil {
		if saveErr := c.recorder.SaveCandidate(key, candidate); saveErr != nil {
			c.log.Error("failed to save candidate image", "key", key, "error", saveErr)
		}
		logger.Trace(c.log, logger.CategoryWarning, fmt.Sprintf("Could not load image %s.png", key), "error", err)
		c.record(ctx, name, key, Outcome{Verdict: VerdictFail}, false)
		return Outcome{Verdict: VerdictFail}, fmt.Errorf("%w: %s.png: %v", ErrBaselineMissing, key, err)
	}

	diff, err := candidate.Subtract(baseline)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to compare %s: %w", key, err)
	}
	out := Outcome{
		Verdict: VerdictPass,
		Result:  Result{Average: diff.Avg(), StdDev: diff.StdDev()},
	}

	if c.cfg.Policy.Artifact.Exceeded(out.Result) {
		out.Verdict = VerdictArtifact
		saved, err := c.recorder.SaveArtifacts(key, candidate, baseline, diff)
		if err != nil {
			c.log.Error("failed to save diagnostic images", "key", key, "error", err)
		}
		out.Saved = saved
	}

	if c.cfg.Policy.Failure.Exceeded(out.Result) {
		out.Message = fmt.Sprintf("  %s: Difference image has avg=%.2f, std dev=%.2f", key, out.Result.Average, out.Result.StdDev)
		if warn {
			out.Verdict = VerdictWarn
		} else {
			out.Verdict = VerdictFail
		}
	}

	c.log.Debug("Image compared", "key", key, "avg", out.Result.Average, "stddev", out.Result.StdDev, "verdict", out.Verdict.String())
	c.record(ctx, name, key, out, true)
	return out, nil
}

func (c *Comparator) record(ctx context.Context, name, key string, out Outcome, hasBaseline bool) {
	if c.ledger == nil {
		return
	}
	verdict := out.Verdict.String()
	if !hasBaseline {
		verdict = "missing"
	}
	err := c.ledger.Append(ctx, history.Entry{
		Test:     name,
		Key:      key,
		Average:  out.Result.Average,
		StdDev:   out.Result.StdDev,
		Verdict:  verdict,
		Baseline: hasBaseline,
	})
	if err != nil {
		c.log.Warn("failed to record comparison history", "key", key, "error", err)
	}
}

// CompareToBaseline は比較結果をテストに反映する
// ベースラインが無い場合と failure 段階を超えた場合はテストを失敗させる
// 警告モードではメッセージを出力するだけで失敗させない
func (c *Comparator) CompareToBaseline(t TB, candidate *bitmap.Bitmap, key string, warn bool) Outcome {
	return c.CompareNamed(context.Background(), t, "", candidate, key, warn)
}

// CompareNamed は CompareToBaseline にテスト名とコンテキストを付けたもの
func (c *Comparator) CompareNamed(ctx context.Context, t TB, name string, candidate *bitmap.Bitmap, key string, warn bool) Outcome {
	out, err := c.Compare(ctx, name, candidate, key, warn)
	if err != nil {
		t.Fatalf("%v", err)
		return out
	}
	switch out.Verdict {
	case VerdictFail:
		t.Fatal(out.Message)
	case VerdictWarn:
		t.Log(out.Message)
		c.log.Warn("image differs from baseline", "key", key, "avg", out.Result.Average, "stddev", out.Result.StdDev)
	}
	return out
}
