package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriter_JSONRenamesError(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, slog.LevelInfo, FormatJSON)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Warn("reparent rejected", "instance_id", "A", "error", errors.New("cycle"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "reparent rejected", line["msg"])
	assert.Equal(t, "A", line["instance_id"])
	assert.Equal(t, "cycle", line["err"])
	assert.NotContains(t, line, "error")
}

func TestNewWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, slog.LevelDebug, "")
	require.NoError(t, err)
	logger.Debug("drag over", "index", 2)
	assert.Contains(t, buf.String(), "msg=\"drag over\" index=2")
}

func TestNewWriter_UnknownFormat(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, slog.LevelInfo, "xml")
	assert.Error(t, err)
}
