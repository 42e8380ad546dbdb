package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zurustar/framecase/pkg/cli"
	"github.com/zurustar/framecase/pkg/compare"
	"github.com/zurustar/framecase/pkg/config"
	"github.com/zurustar/framecase/pkg/fileutil"
	"github.com/zurustar/framecase/pkg/history"
	"github.com/zurustar/framecase/pkg/logger"
	"github.com/zurustar/framecase/pkg/player"
	"github.com/zurustar/framecase/pkg/testcase"
)

// ErrTestsFailed は1つ以上のテストが失敗した場合のエラー
var ErrTestsFailed = errors.New("tests failed")

// stopSignals を受け取ると、実行中のテストの後に残りをスキップして終了する
var stopSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// PlayerFactory はテストごとにプレイヤーを作成する
type PlayerFactory func(cfg *config.Config, log *slog.Logger) player.Player

// HeadlessFactory はヘッドレスプレイヤーを作成する
// タイムアウトは1テストあたりの実時間
func HeadlessFactory(cfg *config.Config, log *slog.Logger) player.Player {
	return player.NewHeadless(
		player.WithLogger(log),
		player.WithTimeout(cfg.Timeout),
	)
}

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	catalog   testcase.Catalog
	embedFS   fs.FS
	config    *config.Config
	args      *cli.Config
	log       *slog.Logger
	stdout    io.Writer
	logWriter io.Writer
	windowed  PlayerFactory
}

// Option は Application のオプション
type Option func(*Application)

// WithWindowedPlayer は GUI モードで使うプレイヤーを設定する
// 設定しない場合は常にヘッドレスで実行する
func WithWindowedPlayer(f PlayerFactory) Option {
	return func(app *Application) {
		app.windowed = f
	}
}

// WithOutput はレポートとログの出力先を設定する
func WithOutput(w io.Writer) Option {
	return func(app *Application) {
		app.stdout = w
		app.logWriter = w
	}
}

// New Applicationを作成
// catalog は組み込みのテスト、embedFS は組み込みスクリプト（scripts/ 以下、nil 可）
func New(catalog testcase.Catalog, embedFS fs.FS, opts ...Option) *Application {
	app := &Application{
		catalog:   catalog,
		embedFS:   embedFS,
		stdout:    os.Stdout,
		logWriter: os.Stdout,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.args.ShowHelp {
		cli.PrintHelp()
		return nil
	}

	// 2. ロガーの初期化
	if err := app.initLogger(app.args.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// 3. 設定ファイルの読み込み
	if err := app.loadConfig(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if app.args.HistoryList {
		return app.listHistory()
	}

	// 4. テストの収集
	catalog, err := app.collectTests()
	if err != nil {
		return fmt.Errorf("failed to collect tests: %w", err)
	}

	if app.args.List {
		for _, name := range catalog.Names() {
			fmt.Fprintln(app.stdout, name)
		}
		return nil
	}

	// 5. 実行するテストの選択（存在しない名前があれば何も実行せずに終了する）
	suite := testcase.MustSuite(catalog, app.config.Tests, app.log)

	app.log.Info("Application started", "tests", suite.Len(), "headless", app.config.Headless)

	// 6. テストの実行
	reports, err := app.runSuite(suite)
	if err != nil {
		return err
	}

	// 7. 結果の表示
	return app.printReports(reports)
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	c, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.args = c
	return nil
}

// initLogger ロガーを初期化
func (app *Application) initLogger(level string) error {
	if err := logger.InitLoggerTo(app.logWriter, level); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

// loadConfig 設定ファイルを読み込み、コマンドライン引数で上書きする
func (app *Application) loadConfig() error {
	cfg := config.Default()
	if app.args.ConfigPath != "" {
		loaded, err := config.Load(app.args.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.Merge(app.args)
	if err := cfg.Validate(); err != nil {
		return err
	}
	app.config = cfg
	return nil
}

// runSuite 結果ディレクトリを準備してテストを実行する
func (app *Application) runSuite(suite *testcase.Suite) ([]testcase.Report, error) {
	cfg := app.config

	if err := fileutil.CleanDir(cfg.ResultsDir); err != nil {
		return nil, fmt.Errorf("failed to prepare results dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), stopSignals...)
	defer stop()

	opts := []compare.Option{
		compare.WithLogger(app.log),
		compare.WithRecorder(compare.NewRecorder(cfg.ResultsDir)),
	}
	if cfg.History != "" {
		store, err := history.Open(ctx, cfg.History)
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		defer store.Close()
		if cfg.HistoryKeep > 0 {
			removed, err := store.Prune(ctx, time.Now().Add(-cfg.HistoryKeep))
			if err != nil {
				app.log.Warn("Failed to prune history", "error", err)
			} else if removed > 0 {
				app.log.Info("Pruned comparison history", "removed", removed, "keep", cfg.HistoryKeep)
			}
		}
		opts = append(opts, compare.WithHistory(store))
		app.log.Info("Recording comparison history", "path", cfg.History)
	}
	comparator := compare.New(compare.Config{
		BaselineDir: cfg.BaselineDir,
		ResultsDir:  cfg.ResultsDir,
		Policy:      cfg.Thresholds,
	}, opts...)

	env := testcase.Env{
		Context:    ctx,
		Comparator: comparator,
		Log:        app.log,
		DumpFrames: cfg.DumpFrames,
		WarnOnDiff: cfg.WarnOnDiff,
		Framerate:  cfg.Framerate,
		Resolution: resolution(cfg),
	}

	// Ebitengine の RunGame は1プロセスで1回しか呼べないので、
	// ウィンドウで実行できるのは1テストだけ
	factory := PlayerFactory(HeadlessFactory)
	if !cfg.Headless {
		switch {
		case app.windowed == nil:
			app.log.Warn("No windowed player available, running headless")
		case suite.Len() > 1:
			app.log.Warn("Windowed mode runs a single test, running headless", "tests", suite.Len())
		default:
			factory = app.windowed
		}
	}

	start := time.Now()
	reports := suite.RunAll(ctx, func() player.Player { return factory(cfg, app.log) }, env)
	app.log.Info("Suite finished", "duration", time.Since(start))
	return reports, nil
}

// listHistory 最近の比較結果を表示する
func (app *Application) listHistory() error {
	if app.config.History == "" {
		return fmt.Errorf("--history-list requires a history database (--history)")
	}
	store, err := history.Open(context.Background(), app.config.History)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	entries, err := store.Recent(context.Background(), 0)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	for _, e := range entries {
		fmt.Fprintf(app.stdout, "%s %-8s %s/%s avg=%.2f std=%.2f\n",
			e.At.Format(time.RFC3339), e.Verdict, e.Test, e.Key, e.Average, e.StdDev)
	}
	return nil
}

// printReports テストごとの結果と集計を表示する
func (app *Application) printReports(reports []testcase.Report) error {
	for _, r := range reports {
		status := "PASS"
		switch {
		case r.Skipped:
			status = "SKIP"
		case !r.Passed:
			status = "FAIL"
		}
		fmt.Fprintf(app.stdout, "%s %s (%s)\n", status, r.Name, r.Duration.Round(time.Millisecond))
		for _, m := range r.Messages {
			fmt.Fprintf(app.stdout, "    %s\n", m)
		}
	}

	passed, failed, skipped := testcase.Summarize(reports)
	fmt.Fprintf(app.stdout, "%d passed, %d failed, %d skipped\n", passed, failed, skipped)
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrTestsFailed, failed, len(reports))
	}
	return nil
}
