package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Level(t *testing.T) {
	require.NoError(t, Init("debug", ""))
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())

	require.NoError(t, Init("not-a-level", ""))
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dash.log")
	require.NoError(t, Init("info", path))

	Log.Info("hello from test")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
}

func TestLevel(t *testing.T) {
	assert.Equal(t, "warning", Level(true, true, "debug"))
	assert.Equal(t, "debug", Level(true, false, "error"))
	assert.Equal(t, "error", Level(false, false, "error"))
	assert.Equal(t, "info", Level(false, false, ""))
}

func TestInit_ClosesFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")

	require.NoError(t, Init("info", first))
	prev := file
	require.NotNil(t, prev)

	// Re-initialising releases the earlier file
	require.NoError(t, Init("info", second))
	assert.ErrorIs(t, prev.Close(), os.ErrClosed)

	require.NoError(t, Close())
	assert.Nil(t, file)
	require.NoError(t, Close())

	// Logging after Close still works and no longer reaches the file
	Log.Info("after close")
	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "after close")
}
