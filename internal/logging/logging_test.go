package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(Config{Level: "warn"}, &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")
	require.NoError(t, logger.Sync())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "warn", entry["level"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(Config{Encoding: "json"}, &buf)
	require.NoError(t, err)

	ctx := ContextWithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", RequestID(ctx))

	WithRequestID(ctx, logger).Info("hello")
	require.NoError(t, logger.Sync())
	assert.Contains(t, buf.String(), `"request_id":"req-123"`)

	assert.Equal(t, "", RequestID(context.Background()))
	assert.Same(t, logger, WithRequestID(context.Background(), logger))
}
