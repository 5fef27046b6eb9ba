package slogger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)

	l.WithComponent("engine").Info(context.Background(), "search done", Fields2("matches", 7, "files", 3))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "search done", rec["msg"])
	assert.Equal(t, "engine", rec["component"])
	assert.EqualValues(t, 7, rec["matches"])
	assert.EqualValues(t, 3, rec["files"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Output: &buf})
	require.NoError(t, err)

	l.Info(context.Background(), "hidden", nil)
	assert.Empty(t, buf.String())
	assert.False(t, l.Enabled(context.Background(), slog.LevelDebug))

	l.ErrorWithError(context.Background(), errors.New("boom"), "failed", Field("path", "a.js"))
	assert.Contains(t, buf.String(), "error=boom")
	assert.Contains(t, buf.String(), "path=a.js")
}

func TestNew_RejectsUnknown(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
	_, err = New(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestSetGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Output: &buf})
	require.NoError(t, err)
	SetGlobalLogger(l)
	t.Cleanup(func() { SetGlobalLogger(nil) })

	Warn(context.Background(), "careful", nil)
	assert.Contains(t, buf.String(), "careful")
}
