package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNew_WritesSessionFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	logger, err := New(Config{Dir: dir, SessionID: "sess-1"})
	require.NoError(t, err)

	logger.Info(CategoryStorage, "document.saved", "saved", map[string]any{"bytes": 12})
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "sessions", "sess-1.jsonl"))
	require.NoError(t, err)

	lines := decodeLines(t, data)
	require.Len(t, lines, 1)
	assert.Equal(t, "storage", lines[0]["category"])
	assert.Equal(t, "document.saved", lines[0]["type"])
	assert.Equal(t, "saved", lines[0]["message"])
	assert.Equal(t, "sess-1", lines[0]["session_id"])
	assert.EqualValues(t, 12, lines[0]["bytes"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: LevelWarn, Output: &buf})
	require.NoError(t, err)

	logger.Debug(CategoryStream, "chunk", "skipped", nil)
	logger.Info(CategoryStream, "chunk", "skipped", nil)
	logger.Warn(CategoryStream, "chunk.malformed", "kept", nil)
	logger.Error(CategoryStream, "stream.failed", "kept", nil)

	lines := decodeLines(t, buf.Bytes())
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "error", lines[1]["level"])
}

func TestLog_DocID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: LevelDebug, Output: &buf})
	require.NoError(t, err)

	logger.Log(Event{Level: LevelDebug, Category: CategoryAutosave, EventType: "status", DocID: "01ABC", Message: "unsaved"})

	lines := decodeLines(t, buf.Bytes())
	require.Len(t, lines, 1)
	assert.Equal(t, "01ABC", lines[0]["doc_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestNilAndNopLoggersAreSafe(t *testing.T) {
	var nilLogger *Logger
	nilLogger.Info(CategorySession, "noop", "nothing", nil)
	assert.NoError(t, nilLogger.Close())
	assert.NotNil(t, nilLogger.Zerolog())

	nop := Nop()
	nop.Error(CategorySession, "noop", "nothing", nil)
	assert.NoError(t, nop.Close())
}
