package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("renderer", &buf, WARN)

	logger.Debug("не должно попасть %d", 1)
	logger.Info("тоже не должно")
	logger.Warn("сцена отсутствует: %s", "shutdown")
	logger.Error("ошибка %d", 42)

	out := buf.String()
	assert.NotContains(t, out, "не должно")
	assert.Contains(t, out, "[WARN] [renderer] сцена отсутствует: shutdown")
	assert.Contains(t, out, "[ERROR] [renderer] ошибка 42")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" warning "))
	assert.Equal(t, TRACE, ParseLevel("TRACE"))
	assert.Equal(t, INFO, ParseLevel("что-то"), "неизвестный уровень должен давать INFO")
}

func TestLoggerManager_ConsoleOnlyByDefault(t *testing.T) {
	lm := &LoggerManager{loggers: make(map[string]*Logger), level: INFO}

	first, err := lm.GetLogger("tree")
	require.NoError(t, err)
	assert.Nil(t, first.file, "без EnableFileLogging файл не создаётся")

	second, err := lm.GetLogger("tree")
	require.NoError(t, err)
	assert.Same(t, first, second, "повторный запрос возвращает тот же логгер")

	_, err = lm.GetLogger("renderer")
	require.NoError(t, err)
	assert.Equal(t, []string{"renderer", "tree"}, lm.ListComponents())

	require.NoError(t, lm.SetLogLevel("tree", ERROR, ERROR))
	assert.Error(t, lm.SetLogLevel("missing", ERROR, ERROR))
	assert.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.ListComponents())
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() { logger.Warn("ничего %d", 1) })
}
