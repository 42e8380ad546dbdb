package testcase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/zurustar/framecase/pkg/player"
)

// ErrUnknownTest は存在しないテスト名が指定された場合のエラー
var ErrUnknownTest = errors.New("unknown test")

// exit はプロセスを終了する（テストで差し替える）
var exit = os.Exit

// Test は名前付きのテスト
type Test struct {
	Name string
	Run  func(c *Case)
}

// Catalog は登録順を保つテストの一覧
type Catalog []Test

// Names はテスト名を登録順に返す
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name
	}
	return names
}

// Lookup は名前でテストを探す
func (c Catalog) Lookup(name string) (Test, bool) {
	for _, t := range c {
		if t.Name == name {
			return t, true
		}
	}
	return Test{}, false
}

// Suite は実行するテストの並び
type Suite struct {
	tests []Test
}

// NewSuite は subset に含まれるテストからスイートを作る
// subset が空なら全てのテストを含める
func NewSuite(catalog Catalog, subset []string) (*Suite, error) {
	if len(subset) == 0 {
		return &Suite{tests: append([]Test(nil), catalog...)}, nil
	}
	s := &Suite{}
	for _, name := range subset {
		t, ok := catalog.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: no test named %s", ErrUnknownTest, name)
		}
		s.tests = append(s.tests, t)
	}
	return s, nil
}

// MustSuite は NewSuite と同じだが、存在しない名前があればテストを実行せずに終了する
func MustSuite(catalog Catalog, subset []string, log *slog.Logger) *Suite {
	s, err := NewSuite(catalog, subset)
	if err != nil {
		if log == nil {
			log = slog.Default()
		}
		name := strings.TrimPrefix(err.Error(), ErrUnknownTest.Error()+": ")
		log.Error(name)
		exit(1)
		return nil
	}
	return s
}

// Tests はスイートに含まれるテストを返す
func (s *Suite) Tests() []Test {
	return s.tests
}

// Len はテスト数を返す
func (s *Suite) Len() int {
	return len(s.tests)
}

// Run は各テストを go test のサブテストとして実行する
func (s *Suite) Run(t *testing.T, newPlayer func() player.Player, env Env) {
	for _, test := range s.tests {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			c := New(t, newPlayer(), env)
			test.Run(c)
			if c.Skipped() {
				t.SkipNow()
			}
		})
	}
}

// Report は RunAll の1テスト分の結果
type Report struct {
	Name     string
	Passed   bool
	Skipped  bool
	Messages []string
	Duration time.Duration
}

// RunAll はテストを順に実行して結果を返す（go test を使わない実行用）
// ctx がキャンセルされた場合、残りのテストはスキップ扱いになる
func (s *Suite) RunAll(ctx context.Context, newPlayer func() player.Player, env Env) []Report {
	if env.Context == nil {
		env.Context = ctx
	}
	if env.Log == nil {
		env.Log = slog.Default()
	}
	reports := make([]Report, 0, len(s.tests))
	for _, test := range s.tests {
		if err := ctx.Err(); err != nil {
			reports = append(reports, Report{Name: test.Name, Skipped: true, Messages: []string{err.Error()}})
			continue
		}
		r := runOne(test, newPlayer, env)
		env.Log.Info("Test finished", "name", r.Name, "passed", r.Passed, "skipped", r.Skipped, "duration", r.Duration)
		reports = append(reports, r)
	}
	return reports
}

func runOne(test Test, newPlayer func() player.Player, env Env) (r Report) {
	rec := &recorder{name: test.Name}
	start := time.Now()
	var c *Case

	defer func() {
		if v := recover(); v != nil && v != errFailNow {
			rec.failed = true
			rec.messages = append(rec.messages, fmt.Sprintf("panic: %v", v))
		}
		r = Report{
			Name:     test.Name,
			Passed:   !rec.failed,
			Skipped:  c != nil && c.Skipped() && !rec.failed,
			Messages: rec.messages,
			Duration: time.Since(start),
		}
	}()

	c = New(rec, newPlayer(), env)
	test.Run(c)
	return r
}

// errFailNow は Fatal でテストを中断するための panic 値
var errFailNow = errors.New("test failed")

// recorder は testing.T の代わりに結果を記録する T
type recorder struct {
	name     string
	failed   bool
	messages []string
}

func (r *recorder) Helper()      {}
func (r *recorder) Name() string { return r.name }

func (r *recorder) Log(args ...any) {
	r.messages = append(r.messages, fmt.Sprint(args...))
}

func (r *recorder) Errorf(format string, args ...any) {
	r.failed = true
	r.messages = append(r.messages, fmt.Sprintf(format, args...))
}

func (r *recorder) Fatal(args ...any) {
	r.failed = true
	r.messages = append(r.messages, fmt.Sprint(args...))
	panic(errFailNow)
}

func (r *recorder) Fatalf(format string, args ...any) {
	r.failed = true
	r.messages = append(r.messages, fmt.Sprintf(format, args...))
	panic(errFailNow)
}

// Summarize は成功・失敗・スキップの件数を数える
func Summarize(reports []Report) (passed, failed, skipped int) {
	for _, r := range reports {
		switch {
		case r.Skipped:
			skipped++
		case r.Passed:
			passed++
		default:
			failed++
		}
	}
	return passed, failed, skipped
}
