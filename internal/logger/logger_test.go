package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, false, "")

	slog.Debug("hidden")
	slog.Info("image uploaded", "image_id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "image uploaded", entry["msg"])
	assert.Equal(t, "abc", entry["image_id"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestInitDevelopmentLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, true, "")

	slog.Debug("thumbnail generated", "width", 128)

	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "width=128")
	assert.Same(t, Log, slog.Default())
}
