package app

import (
	"fmt"
	"image"
	"io/fs"

	"github.com/zurustar/framecase/pkg/config"
	"github.com/zurustar/framecase/pkg/script"
	"github.com/zurustar/framecase/pkg/testcase"
)

// EmbeddedScriptsDir は組み込みFS内のスクリプトディレクトリ
const EmbeddedScriptsDir = "scripts"

// collectTests は実行可能なテストを次の順に集める
// 1. 組み込みのテスト（Go で書かれたもの）
// 2. 組み込みFSのスクリプト
// 3. --scripts または scripts_dir で指定されたディレクトリのスクリプト
// 同じ名前のテストが複数ある場合はエラー
func (app *Application) collectTests() (testcase.Catalog, error) {
	catalog := append(testcase.Catalog(nil), app.catalog...)
	seen := make(map[string]string, len(catalog))
	for _, t := range catalog {
		seen[t.Name] = "builtin"
	}

	add := func(scripts []*script.Script, origin string) error {
		for _, s := range scripts {
			if prev, ok := seen[s.Name]; ok {
				return fmt.Errorf("duplicate test %q in %s (already defined in %s)", s.Name, origin, prev)
			}
			seen[s.Name] = origin
			catalog = append(catalog, s.Test())
		}
		return nil
	}

	if app.embedFS != nil {
		if _, err := fs.Stat(app.embedFS, EmbeddedScriptsDir); err == nil {
			scripts, err := script.LoadFS(app.embedFS, EmbeddedScriptsDir)
			if err != nil {
				return nil, fmt.Errorf("failed to load embedded scripts: %w", err)
			}
			app.log.Debug("Embedded scripts loaded", "count", len(scripts))
			if err := add(scripts, "embedded scripts"); err != nil {
				return nil, err
			}
		}
	}

	if dir := app.config.ScriptsDir; dir != "" {
		scripts, err := script.LoadDir(dir)
		if err != nil {
			return nil, err
		}
		app.log.Info("Scripts loaded", "dir", dir, "count", len(scripts))
		for _, s := range scripts {
			app.log.Debug("Script file", "name", s.Name, "file", s.FileName, "steps", len(s.Steps))
		}
		if err := add(scripts, dir); err != nil {
			return nil, err
		}
	}

	return catalog, nil
}

// resolution は空シーンのデフォルトサイズを返す
func resolution(cfg *config.Config) image.Point {
	return image.Pt(cfg.Resolution.Width, cfg.Resolution.Height)
}
