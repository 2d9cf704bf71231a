package log_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/dukex/autograph/pkg/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, log.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, log.ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, log.ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, log.ParseLevel("verbose"))
}

func TestWithModule(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	log.SetupWriter(&buf, "info")

	log.WithModule("synthesis").Info("generated", "workflow_id", "wf-1")
	log.WithModule("synthesis").Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "module=synthesis")
	assert.Contains(t, out, "workflow_id=wf-1")
	assert.NotContains(t, out, "hidden")
}
