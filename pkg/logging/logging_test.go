package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoggerFromContextWithOp(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := MakeContextWithLogger(context.Background(), logger)
	ctx = MakeContextWithRequestID(ctx, "req-1")

	GetLoggerFromContextWithOp(ctx, "service.test").Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "service.test", record["op"])
	assert.Equal(t, "req-1", record["request_id"])
}

func TestMakeContextWithNewRequestID(t *testing.T) {
	ctx := MakeContextWithNewRequestID(context.Background())
	first := GetRequestIDFromCtx(ctx)
	assert.Len(t, first, 36)

	ctx = MakeContextWithNewRequestID(ctx)
	assert.NotEqual(t, first, GetRequestIDFromCtx(ctx))
}

func TestGetRequestIDFromEmptyCtx(t *testing.T) {
	assert.Empty(t, GetRequestIDFromCtx(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
