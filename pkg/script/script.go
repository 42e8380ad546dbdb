// Package script は JSON/YAML で書かれた宣言的なテストスクリプトを読み込み、テストケースに変換する
package script

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"
)

// Script はテストスクリプト1本分
type Script struct {
	Name       string `json:"name" yaml:"name"`
	WarnOnDiff bool   `json:"warn_on_diff" yaml:"warn_on_diff"`
	Scene      Scene  `json:"scene" yaml:"scene"`
	Steps      []Step `json:"steps" yaml:"steps"`

	FileName string `json:"-" yaml:"-"` // 読み込んだファイル名
}

// Scene はテスト開始時に作るシーン
// サイズが 0 の場合はデフォルトの解像度になる
type Scene struct {
	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`
	Nodes  []Node `json:"nodes" yaml:"nodes"`
}

// Node は矩形ノードの定義
type Node struct {
	ID        string `json:"id" yaml:"id"`
	Parent    string `json:"parent" yaml:"parent"` // 空ならルート
	X         int    `json:"x" yaml:"x"`
	Y         int    `json:"y" yaml:"y"`
	Width     int    `json:"width" yaml:"width"`
	Height    int    `json:"height" yaml:"height"`
	Color     string `json:"color" yaml:"color"` // #RRGGBB または #RRGGBBAA
	Sensitive *bool  `json:"sensitive" yaml:"sensitive"`
}

// Step は1つの操作
// Action によって使うフィールドが異なる
type Step struct {
	Action string `json:"action" yaml:"action"`

	N     int    `json:"n" yaml:"n"`         // frames
	Ms    int    `json:"ms" yaml:"ms"`       // delay
	X     int    `json:"x" yaml:"x"`         // click, mouse, touch
	Y     int    `json:"y" yaml:"y"`         // click, mouse, touch
	Type  string `json:"type" yaml:"type"`   // mouse, touch
	ID    int    `json:"id" yaml:"id"`       // touch
	Image string `json:"image" yaml:"image"` // compare
	Node  string `json:"node" yaml:"node"`   // watch, expect, unwatch

	// expect
	Down bool `json:"down" yaml:"down"`
	Up   bool `json:"up" yaml:"up"`
	Over bool `json:"over" yaml:"over"`
	Out  bool `json:"out" yaml:"out"`
	Move bool `json:"move" yaml:"move"`
}

// スクリプトとして扱う拡張子
var extensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

// IsScriptFile はスクリプトファイルの拡張子かどうかを返す（大文字小文字を区別しない）
func IsScriptFile(name string) bool {
	return extensions[strings.ToLower(path.Ext(name))]
}

// Load は1つのスクリプトファイルを読み込む
func Load(filePath string) (*Script, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(filepath.Base(filePath), data)
}

// LoadDir はディレクトリ以下の全てのスクリプトを読み込む
func LoadDir(dir string) ([]*Script, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("failed to open script dir: %w", err)
	}
	return LoadFS(os.DirFS(dir), ".")
}

// LoadFS は fsys の root 以下の全てのスクリプトをパス順に読み込む
func LoadFS(fsys fs.FS, root string) ([]*Script, error) {
	var scripts []*Script
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsScriptFile(p) {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		s, err := Parse(path.Base(p), data)
		if err != nil {
			return fmt.Errorf("failed to load script %s: %w", p, err)
		}
		scripts = append(scripts, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scripts, nil
}

// Parse はスクリプトの内容を解析する
// 拡張子 .json は JSON として、それ以外は YAML として読む
// UTF-8 として不正なバイト列は Shift-JIS とみなして変換する
func Parse(fileName string, data []byte) (*Script, error) {
	content, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	s := &Script{}
	if strings.EqualFold(path.Ext(fileName), ".json") {
		dec := json.NewDecoder(strings.NewReader(content))
		dec.DisallowUnknownFields()
		if err := dec.Decode(s); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(strings.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(s); err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	s.FileName = fileName
	if s.Name == "" {
		s.Name = strings.TrimSuffix(fileName, path.Ext(fileName))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// decodeText は UTF-8 ならそのまま、そうでなければ Shift-JIS から変換する
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), nil
	}
	return convertShiftJISToUTF8(data)
}

// convertShiftJISToUTF8 Shift-JISからUTF-8に変換
func convertShiftJISToUTF8(data []byte) (string, error) {
	decoder := japanese.ShiftJIS.NewDecoder()
	reader := transform.NewReader(bytes.NewReader(data), decoder)

	utf8Data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to decode Shift-JIS: %w", err)
	}

	return string(utf8Data), nil
}
