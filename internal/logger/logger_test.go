package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel).With("component", "router")

	l.Info("处理消息", "type", "PING", "tab", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "处理消息", line["message"])
	assert.Equal(t, "router", line["component"])
	assert.Equal(t, "PING", line["type"])
	assert.EqualValues(t, 3, line["tab"])
}

func TestErrIncludesError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel)

	l.Err(errors.New("disk full"), "写入失败", "key", "theme")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "disk full", line["error"])
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "theme", line["key"])
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.WarnLevel)

	l.Debug("不可见")
	l.Info("不可见")
	assert.Zero(t, buf.Len())

	l.Warn("可见")
	assert.NotZero(t, buf.Len())
}

func TestOddKeyValues(t *testing.T) {
	out := fields([]any{"a", 1, "dangling"})
	assert.Equal(t, 1, out["a"])
	assert.Equal(t, "dangling", out["!BADKEY"])
}

func TestNewRejectsUnknownWriter(t *testing.T) {
	_, err := New(Options{Level: "info", Writer: []string{"syslog"}})
	assert.Error(t, err)

	_, err = New(Options{Level: "info", Writer: []string{"file"}})
	assert.Error(t, err)
}

func TestNopDiscards(t *testing.T) {
	l := NewNop()
	l.Info("nothing")
	l.With("k", "v").Err(errors.New("x"), "nothing")
}
