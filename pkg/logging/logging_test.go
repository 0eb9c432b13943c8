package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew はNew関数を検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("JSON形式でレベル以上のログが出力されること", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger, err := New("info", false, &buf)
		require.NoError(t, err)

		logger.Debug().Msg("出力されない")
		logger.Info().Str("key", "value").Msg("出力される")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "info", entry["level"])
		assert.Equal(t, "value", entry["key"])
		assert.Equal(t, "出力される", entry["message"])
		assert.Contains(t, entry, "time")
	})

	t.Run("不正なレベルでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		_, err := New("verbose", false, &bytes.Buffer{})
		require.Error(t, err)
	})

	t.Run("Componentで子ロガーにcomponentフィールドが付与されること", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger, err := New("debug", false, &buf)
		require.NoError(t, err)

		child := Component(logger, "registry")
		child.Info().Msg("hello")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "registry", entry["component"])
	})
}
