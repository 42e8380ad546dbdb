// Package config はテストスイートの設定ファイル（YAML）を扱う
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zurustar/framecase/pkg/cli"
	"github.com/zurustar/framecase/pkg/compare"
)

// Resolution は空シーンのデフォルトサイズ
type Resolution struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Config はスイート全体の設定
type Config struct {
	Framerate   float64        `yaml:"framerate"`
	Resolution  Resolution     `yaml:"resolution"`
	ResultsDir  string         `yaml:"results_dir"`
	BaselineDir string         `yaml:"baseline_dir"`
	ScriptsDir  string         `yaml:"scripts_dir"`
	History     string         `yaml:"history"`
	HistoryKeep time.Duration  `yaml:"history_keep"`
	WarnOnDiff  bool           `yaml:"warn_on_diff"`
	Timeout     time.Duration  `yaml:"timeout"`
	Tests       []string       `yaml:"tests"`
	Thresholds  compare.Policy `yaml:"thresholds"`

	// コマンドラインと環境変数からのみ設定される
	LogLevel   string `yaml:"-"`
	Headless   bool   `yaml:"-"`
	DumpFrames bool   `yaml:"-"`
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Framerate:   10000,
		Resolution:  Resolution{Width: 160, Height: 120},
		ResultsDir:  cli.DefaultResultsDir,
		BaselineDir: cli.DefaultBaselineDir,
		Thresholds:  compare.DefaultPolicy(),
		LogLevel:    "info",
	}
}

// Load は設定ファイルを読み込む
// ファイルに書かれていない項目はデフォルト値のまま
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Merge はコマンドライン引数の設定を上書きする
// 明示的に指定されたフラグだけが設定ファイルより優先される
func (c *Config) Merge(args *cli.Config) {
	if args == nil {
		return
	}
	if args.IsSet("results-dir") || c.ResultsDir == "" {
		c.ResultsDir = args.ResultsDir
	}
	if args.IsSet("baseline-dir") || c.BaselineDir == "" {
		c.BaselineDir = args.BaselineDir
	}
	if args.IsSet("scripts") {
		c.ScriptsDir = args.ScriptsDir
	}
	if args.IsSet("history") {
		c.History = args.HistoryPath
	}
	if args.IsSet("history-keep") {
		c.HistoryKeep = args.HistoryKeep
	}
	if args.IsSet("timeout") {
		c.Timeout = args.Timeout
	}
	if args.WarnOnDiff {
		c.WarnOnDiff = true
	}
	if len(args.Tests) > 0 {
		c.Tests = args.Tests
	}
	if args.LogLevel != "" {
		c.LogLevel = args.LogLevel
	}
	c.Headless = args.Headless
	c.DumpFrames = args.DumpFrames
}

// Validate は設定値を検証する
func (c *Config) Validate() error {
	if c.Framerate <= 0 {
		return fmt.Errorf("framerate must be positive, got %v", c.Framerate)
	}
	if c.Resolution.Width <= 0 || c.Resolution.Height <= 0 {
		return fmt.Errorf("resolution must be positive, got %dx%d", c.Resolution.Width, c.Resolution.Height)
	}
	if c.HistoryKeep < 0 {
		return fmt.Errorf("history_keep must be non-negative, got %v", c.HistoryKeep)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %v", c.Timeout)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}
	return nil
}
