package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewWithWriter_TagsService(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("identity-service", "info", &buf)

	l.Info("started", "port", 8001)

	entry := logLine(t, &buf)
	assert.Equal(t, "identity-service", entry["service"])
	assert.Equal(t, "started", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, float64(8001), entry["port"])
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("identity-service", "warn", &buf)

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	entry := logLine(t, &buf)
	assert.Equal(t, "kept", entry["msg"])
}

func TestNewWithWriter_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("identity-service", "verbose", &buf)

	l.Debug("dropped")
	assert.Zero(t, buf.Len())

	l.Info("kept")
	assert.NotZero(t, buf.Len())
}

func TestCorrelationID_RoundTrip(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "corr-123")
	assert.Equal(t, "corr-123", CorrelationIDFromContext(ctx))
	assert.Empty(t, CorrelationIDFromContext(context.Background()))
}

func TestAccountID_RoundTrip(t *testing.T) {
	ctx := WithAccountID(context.Background(), "acc-1")
	assert.Equal(t, "acc-1", AccountIDFromContext(ctx))
	assert.Empty(t, AccountIDFromContext(context.Background()))
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	var buf bytes.Buffer
	l := NewWithWriter("identity-service", "info", &buf)
	ctx := NewContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}

func TestWithContext_EnrichesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("identity-service", "info", &buf)

	ctx := WithCorrelationID(context.Background(), "corr-123")
	ctx = WithAccountID(ctx, "acc-1")

	WithContext(ctx, l).Info("enriched")

	entry := logLine(t, &buf)
	assert.Equal(t, "corr-123", entry["correlation_id"])
	assert.Equal(t, "acc-1", entry["account_id"])
}

func TestWithContext_NoFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("identity-service", "info", &buf)

	WithContext(context.Background(), l).Info("plain")

	entry := logLine(t, &buf)
	assert.NotContains(t, entry, "correlation_id")
	assert.NotContains(t, entry, "account_id")
	assert.NotContains(t, entry, "trace_id")
}
