package main

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_ServiceAttribute(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
	})

	var buf bytes.Buffer
	logger, err := newLogger(&buf, "tipping-server", "warn")
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", "post_id", "p1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "tipping-server", line["service"])
	assert.Equal(t, "p1", line["post_id"])
}

func TestNewLogger_BridgesStdLog(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
	})

	var buf bytes.Buffer
	_, err := newLogger(&buf, "tipping-server", "info")
	require.NoError(t, err)

	log.Print("from std log")
	assert.Contains(t, buf.String(), `"service":"tipping-server"`)
	assert.Contains(t, buf.String(), "from std log")
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := newLogger(&bytes.Buffer{}, "tipping-server", "trace")
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
}
