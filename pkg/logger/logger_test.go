package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func resetLogger(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		SetLogger(nil)
		SetLevel("info")
	})
}

func TestInitConfiguresGlobalLogger(t *testing.T) {
	resetLogger(t)

	require.NoError(t, Init("debug", "json"))
	require.True(t, Logger().Core().Enabled(zap.DebugLevel))
}

func TestSetLevelAdjustsBuiltLogger(t *testing.T) {
	resetLogger(t)

	require.NoError(t, Init("debug", "json"))
	SetLevel("warn")
	require.False(t, Logger().Core().Enabled(zap.InfoLevel))
	require.True(t, Logger().Core().Enabled(zap.WarnLevel))
}

func TestInitConsoleFormatAndFallbackLevel(t *testing.T) {
	resetLogger(t)

	require.NoError(t, Init("not-a-level", "console"))
	require.False(t, Logger().Core().Enabled(zap.DebugLevel))
	require.True(t, Logger().Core().Enabled(zap.InfoLevel))
}

func TestWithModuleAttachesModuleField(t *testing.T) {
	resetLogger(t)
	core, recorded := observer.New(zap.InfoLevel)
	SetLogger(zap.New(core))

	WithModule("reader").Info("table loaded", zap.String("table", "dst_index"))

	entries := recorded.All()
	require.Len(t, entries, 1)
	require.Equal(t, "reader", entries[0].ContextMap()["module"])
	require.Equal(t, "dst_index", entries[0].ContextMap()["table"])
}

func TestSetLoggerNilInstallsNop(t *testing.T) {
	resetLogger(t)

	SetLogger(nil)
	require.NotNil(t, Logger())
	require.NoError(t, Sync())
}
