package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New は指定されたレベルと出力形式でルートロガーを生成する。
// prettyがtrueの場合は人間向けのコンソール形式、falseの場合はJSON形式で出力する。
// wがnilの場合は標準エラー出力を使用する。
func New(level string, pretty bool, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("ログレベルの解析に失敗: %w", err)
	}
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Component はコンポーネント名を付与した子ロガーを返す。
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
