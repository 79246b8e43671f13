package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, Config{Format: "json", Level: "info"})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("order paid", zap.Int64("order_id", 7))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "order paid", entry["msg"])
	assert.Equal(t, float64(7), entry["order_id"])
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(&bytes.Buffer{}, Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(&bytes.Buffer{}, Config{Format: "xml"})
	assert.Error(t, err)
}
