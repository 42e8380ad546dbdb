// Package fileutil は結果ディレクトリの管理とファイル検索のユーティリティを提供する
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FindFileCaseInsensitive はディレクトリ内のファイルを大文字小文字を区別せずに検索する
// 完全一致するファイルがあればそれを優先する
//
//	path, err := FindFileCaseInsensitive("baseline", "Button_Down.png")
//	// "button_down.png", "BUTTON_DOWN.PNG" なども見つかる
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	exact := filepath.Join(dir, filename)
	if info, err := os.Stat(exact); err == nil && !info.IsDir() {
		return exact, nil
	}

	searchName := strings.ToLower(filename)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(entry.Name()) == searchName {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("file not found: %s (searched in %s): %w", filename, dir, os.ErrNotExist)
}

// EnsureDir はディレクトリが存在しなければ作成する
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// CleanDir はディレクトリ直下のファイルを削除する
// ディレクトリが存在しない場合は作成する。サブディレクトリには触れない
func CleanDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return EnsureDir(dir)
	}
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// IsWritable はディレクトリに書き込めるかどうかを一時ファイルの作成で確認する
// 判定できない場合は false を返す
func IsWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	_ = os.Remove(name)
	return true
}
