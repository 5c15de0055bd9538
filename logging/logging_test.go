package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesConsoleAndJSON(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "bot.json.log")

	log, cleanup, err := New(Options{Level: "info", File: path, Console: &console})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("order placed", zap.String("ticket", "T1"))
	cleanup()

	assert.Contains(t, console.String(), "order placed")
	assert.NotContains(t, console.String(), "hidden")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "order placed", rec["msg"])
	assert.Equal(t, "T1", rec["ticket"])
	assert.Equal(t, "info", rec["level"])
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}
