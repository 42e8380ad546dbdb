package cli

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// デフォルトのディレクトリ
const (
	DefaultResultsDir  = "resultimages"
	DefaultBaselineDir = "baseline"
)

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	ConfigPath  string        // スイート設定ファイル（YAML）
	ResultsDir  string        // 結果画像の出力先
	BaselineDir string        // ベースライン画像のディレクトリ
	ScriptsDir  string        // テストスクリプトのディレクトリ
	HistoryPath string        // 比較履歴のSQLiteファイル（空なら記録しない）
	HistoryKeep time.Duration // これより古い履歴を実行前に削除する（0は削除しない）
	HistoryList bool          // 最近の比較履歴を表示して終了
	Timeout     time.Duration // 1テストあたりのタイムアウト（0は無制限）
	LogLevel    string        // ログレベル（debug, info, warn, error）
	Headless    bool          // ヘッドレスモード
	WarnOnDiff  bool          // 画像差分を失敗でなく警告にする
	DumpFrames  bool          // フレームごとのトレースを出力する
	List        bool          // テスト一覧を表示して終了
	ShowHelp    bool          // ヘルプ表示フラグ
	Tests       []string      // 実行するテスト名（空なら全て）

	// 明示的に指定されたフラグ（長い名前）
	set map[string]bool
}

// IsSet はフラグまたは環境変数で明示的に指定されたかを返す
// name は長い形式のフラグ名
func (c *Config) IsSet(name string) bool {
	return c.set[name]
}

// 短縮形と長い形式の対応
var shortNames = map[string]string{
	"c": "config",
	"r": "results-dir",
	"b": "baseline-dir",
	"s": "scripts",
	"t": "timeout",
	"l": "log-level",
	"h": "help",
}

// 値を取らないフラグ
var boolFlags = map[string]bool{
	"headless":     true,
	"warn-on-diff": true,
	"list":         true,
	"history-list": true,
	"help":         true,
	"h":            true,
}

// ParseArgs コマンドライン引数を解析してConfigを返す
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("framecase", flag.ContinueOnError)

	config := &Config{set: make(map[string]bool)}

	var timeoutSec, keepDays int
	fs.StringVar(&config.ConfigPath, "config", "", "スイート設定ファイル")
	fs.StringVar(&config.ConfigPath, "c", "", "スイート設定ファイル（短縮形）")
	fs.StringVar(&config.ResultsDir, "results-dir", DefaultResultsDir, "結果画像の出力先")
	fs.StringVar(&config.ResultsDir, "r", DefaultResultsDir, "結果画像の出力先（短縮形）")
	fs.StringVar(&config.BaselineDir, "baseline-dir", DefaultBaselineDir, "ベースライン画像のディレクトリ")
	fs.StringVar(&config.BaselineDir, "b", DefaultBaselineDir, "ベースライン画像のディレクトリ（短縮形）")
	fs.StringVar(&config.ScriptsDir, "scripts", "", "テストスクリプトのディレクトリ")
	fs.StringVar(&config.ScriptsDir, "s", "", "テストスクリプトのディレクトリ（短縮形）")
	fs.StringVar(&config.HistoryPath, "history", "", "比較履歴のデータベース")
	fs.IntVar(&keepDays, "history-keep", 0, "履歴の保存日数")
	fs.BoolVar(&config.HistoryList, "history-list", false, "最近の比較履歴を表示")
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.BoolVar(&config.Headless, "headless", false, "ヘッドレスモード")
	fs.BoolVar(&config.WarnOnDiff, "warn-on-diff", false, "画像差分を警告として扱う")
	fs.BoolVar(&config.List, "list", false, "テスト一覧を表示")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		name := f.Name
		if long, ok := shortNames[name]; ok {
			name = long
		}
		config.set[name] = true
	})

	// 環境変数からの設定（コマンドラインフラグが優先）
	if !config.Headless {
		if headlessEnv := os.Getenv("HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}

	// 環境変数からタイムアウトを取得（コマンドラインフラグが優先）
	if timeoutSec == 0 {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
				config.set["timeout"] = true
			}
		}
	}

	// 環境変数からログレベルを取得（コマンドラインフラグが優先）
	if !config.set["log-level"] {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	// 環境変数から結果ディレクトリを取得（コマンドラインフラグが優先）
	if !config.set["results-dir"] {
		if dir := os.Getenv("FRAMECASE_RESULT_DIR"); dir != "" {
			config.ResultsDir = dir
			config.set["results-dir"] = true
		}
	}

	// 値に関係なく、設定されていればフレームダンプを有効にする
	if _, ok := os.LookupEnv("FRAMECASE_DUMP_TEST_FRAMES"); ok {
		config.DumpFrames = true
	}

	// タイムアウトの検証
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	if keepDays < 0 {
		return nil, fmt.Errorf("history-keep must be non-negative, got %d", keepDays)
	}
	config.HistoryKeep = time.Duration(keepDays) * 24 * time.Hour

	// ログレベルの検証
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	// 位置引数（実行するテスト名）
	config.Tests = fs.Args()

	return config, nil
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "--" 以降は全て位置引数
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 1 && arg[0] == '-' {
			flags = append(flags, arg)

			name := strings.TrimLeft(arg, "-")
			if strings.Contains(name, "=") || boolFlags[name] {
				continue
			}
			// 次の引数を値として取る（-t 5 のような場合）
			if i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置
	return append(flags, positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `framecase - frame-synchronized scene test runner

Usage:
  framecase [options] [test-name...]

Arguments:
  test-name     実行するテスト名（省略時は全てのテストを実行）
                存在しない名前を指定するとテストを実行せずに終了する

Options:
  -c, --config <file>         スイート設定ファイル（YAML）
  -r, --results-dir <dir>     結果画像の出力先（デフォルト: resultimages）
  -b, --baseline-dir <dir>    ベースライン画像のディレクトリ（デフォルト: baseline）
  -s, --scripts <dir>         テストスクリプト（JSON/YAML）のディレクトリ
  --history <file>            比較結果を記録するSQLiteファイル
  --history-keep <days>       指定日数より古い履歴を実行前に削除
  --history-list              最近の比較履歴を表示して終了
  -t, --timeout <seconds>     1テストあたりのタイムアウト（デフォルト: 無制限）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  --headless                  ヘッドレスモード（GUIなし）
  --warn-on-diff              画像差分を失敗ではなく警告として扱う
  --list                      テスト一覧を表示
  -h, --help                  このヘルプを表示

Environment Variables:
  HEADLESS=1                  ヘッドレスモードを有効化
  TIMEOUT=<seconds>           タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル
  FRAMECASE_RESULT_DIR=<dir>  結果画像の出力先
  FRAMECASE_DUMP_TEST_FRAMES  設定されていればフレームごとにトレースを出力

Examples:
  framecase --headless                       全てのテストをヘッドレスで実行
  framecase --headless button_click          指定したテストだけ実行
  framecase -s ./scripts -b ./baseline       スクリプトのテストも実行
  framecase --warn-on-diff --log-level debug 差分を警告にしてデバッグログを有効化
  HEADLESS=1 framecase                       環境変数でヘッドレスモード
`)
}
