package observability

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/namelens/repolens/internal/config"
)

func TestNewLogger(t *testing.T) {
	t.Run("ConsoleDefaults", func(t *testing.T) {
		logger, err := NewLogger(config.LoggingConfig{}, false)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("VerboseForcesDebug", func(t *testing.T) {
		logger, err := NewLogger(config.LoggingConfig{Level: "error", Format: "json"}, true)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("WarnLevel", func(t *testing.T) {
		logger, err := NewLogger(config.LoggingConfig{Level: "warning"}, false)
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("InvalidSettings", func(t *testing.T) {
		_, err := NewLogger(config.LoggingConfig{Level: "loud"}, false)
		require.Error(t, err)

		_, err = NewLogger(config.LoggingConfig{Format: "xml"}, false)
		require.Error(t, err)
	})
}

func TestNewFailureLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "failed.log")

	logger, closeFn, err := NewFailureLogger(path)
	require.NoError(t, err)

	logger.Error("repository extraction failed",
		zap.String("owner", "psf"),
		zap.String("name", "requests"),
		zap.Error(errors.New("boom")))
	logger.Error("repository extraction failed", zap.String("owner", "ghost"))
	require.NoError(t, closeFn())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close() // nolint:errcheck // test cleanup

	var lines []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		lines = append(lines, entry)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)
	assert.Equal(t, "psf", lines[0]["owner"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, "repository extraction failed", lines[0]["msg"])
	assert.NotContains(t, lines[0], "stacktrace")
}

func TestNewFailureLoggerEmptyPathIsNoop(t *testing.T) {
	logger, closeFn, err := NewFailureLogger("")
	require.NoError(t, err)
	logger.Error("ignored")
	require.NoError(t, closeFn())
}
