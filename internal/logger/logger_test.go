package logger

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
	log := NewWithWriter(&buf)

	log.Info().Str("run_id", "run-1").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Contains(t, entry, "time")
}

func TestNewWithOptions_Level(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOptions(Options{Level: "warn", Format: FormatJSON, Out: &buf})
	require.NoError(t, err)

	log.Info().Msg("dropped")
	assert.Empty(t, buf.String())

	log.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewWithOptions_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOptions(Options{Out: &buf})
	require.NoError(t, err)

	log.Info().Msg("console line")
	assert.Contains(t, buf.String(), "console line")
	assert.False(t, json.Valid(buf.Bytes()), "console output should not be JSON")
}

func TestNewWithOptions_Invalid(t *testing.T) {
	_, err := NewWithOptions(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = NewWithOptions(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	ctx := WithContext(context.Background(), log)
	ctxLog := FromContext(ctx)
	ctxLog.Info().Msg("from context")
	assert.Contains(t, buf.String(), "from context")
}

func TestFromContext_Missing(t *testing.T) {
	// Must not panic and must not write anywhere.
	ctxLog := FromContext(context.Background())
	ctxLog.Info().Msg("ignored")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := WithFields(NewWithWriter(&buf), map[string]interface{}{
		"stage":          "stitch",
		"consumer_count": 3,
	})
	log.Info().Msg("done")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "stitch", entry["stage"])
	assert.EqualValues(t, 3, entry["consumer_count"])
}
