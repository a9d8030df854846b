package roomlog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToInfoLevelOnUnknownLevel(t *testing.T) {
	logger := New(Config{Level: "not-a-level", Format: "json"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	_ = logger
}

func TestErrorIncludesMessageErrorAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	Error(logger, errors.New("boom"), "failed to flush", map[string]any{"room_id": "r1"})

	out := buf.String()
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "failed to flush")
	assert.Contains(t, out, "r1")
}

func TestErrorWithStackIncludesStackTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ErrorWithStack(logger, errors.New("boom"), "panic recovered", nil)

	assert.Contains(t, buf.String(), "stack_trace")
}

func TestPanicIncludesPanicValueAndStackTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	Panic(logger, "unexpected nil room", "worker goroutine panic", map[string]any{"worker_id": 3})

	out := buf.String()
	assert.Contains(t, out, "unexpected nil room")
	assert.Contains(t, out, "stack_trace")
	require.NotEmpty(t, out)
}
