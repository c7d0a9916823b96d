// Package logger はslogの構造化ログ出力を設定する。
// 本番はJSON、ローカル開発ではtintによる色付きテキストを使う。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// 出力形式。
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Options はログ出力の設定。
type Options struct {
	Level  slog.Level
	Format string
}

// OptionsFromEnv は LOG_LEVEL と LOG_FORMAT からOptionsを組み立てる。
// 設定読み込み前にログを使えるよう、configパッケージを介さず直接読む。
func OptionsFromEnv() Options {
	return Options{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: ParseFormat(os.Getenv("LOG_FORMAT")),
	}
}

// ParseLevel はログレベル名を解釈する。不明な値はINFO。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat は出力形式名を解釈する。text以外はJSON。
func ParseFormat(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), FormatText) {
		return FormatText
	}
	return FormatJSON
}

// Setup はOptionsに従ったslog.Loggerを生成して返す。
func Setup(w io.Writer, opts Options) *slog.Logger {
	var handler slog.Handler
	if opts.Format == FormatText {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      opts.Level,
			TimeFormat: "2006-01-02 15:04:05",
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: opts.Level,
		})
	}
	return slog.New(handler)
}

// SetupDefault はロガーをグローバルロガーとして設定する。
// writerがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer, opts Options) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w, opts))
}
