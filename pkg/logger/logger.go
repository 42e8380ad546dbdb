// Package logger はハーネス全体で共有する slog ロガーとトレースカテゴリを提供する
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

var globalLogger *slog.Logger

// Category はエンジンのトレースカテゴリ
type Category string

const (
	// CategoryWarning は警告トレース（ベースライン読み込み失敗など）
	CategoryWarning Category = "WARNING"
	// CategoryApp はアプリケーショントレース（フレームダンプなど）
	CategoryApp Category = "APP"
)

// ParseLevel はログレベル文字列を slog.Level に変換する
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// InitLogger ログレベルに応じてslogを初期化
func InitLogger(level string) error {
	return InitLoggerTo(os.Stdout, level)
}

// InitLoggerTo 出力先を指定してslogを初期化
func InitLoggerTo(w io.Writer, level string) error {
	slogLevel, err := ParseLevel(level)
	if err != nil {
		return err
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slogLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	return nil
}

// GetLogger グローバルロガーを取得
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		// デフォルトロガーを返す
		return slog.Default()
	}
	return globalLogger
}

// Trace はカテゴリ付きでトレースを出力する
// WARNING は Warn レベル、それ以外は Info レベルで記録される
func Trace(log *slog.Logger, cat Category, msg string, args ...any) {
	if log == nil {
		log = GetLogger()
	}
	level := slog.LevelInfo
	if cat == CategoryWarning {
		level = slog.LevelWarn
	}
	log.Log(context.Background(), level, msg, append([]any{"category", string(cat)}, args...)...)
}
