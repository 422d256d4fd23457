package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()
	m.IncrTurn("GREETING")
	m.IncrTurn("DOCUMENT_CHOICE")
	m.IncrDocument("single", true)
	m.IncrDocument("multi", false)
	m.IncrExternalError("google")
	m.IncrCacheHit()
	m.IncrCacheHit()
	m.IncrCacheHit()
	m.IncrCacheMiss()

	s := m.Snapshot()
	require.Equal(t, 2.0, s.Turns)
	require.Equal(t, 1.0, s.DocumentsOK)
	require.Equal(t, 1.0, s.DocumentsFailed)
	require.Equal(t, 1.0, s.ExternalErrors)
	require.InDelta(t, 0.75, s.SessionCacheHitRt, 1e-9)

	require.Equal(t, 1.0, testutil.ToFloat64(m.turnsTotal.WithLabelValues("GREETING")))
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	a.IncrTransition("FOLLOW_UP")
	require.Equal(t, 1.0, testutil.ToFloat64(a.transitionsTotal.WithLabelValues("FOLLOW_UP")))
	require.Equal(t, 0.0, testutil.ToFloat64(b.transitionsTotal.WithLabelValues("FOLLOW_UP")))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", Truncate("abc", 5))
	require.Equal(t, "ab...", Truncate("abcdef", 2))
}

func TestNewLogger_Levels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", ""} {
		l, err := NewLogger(LogConfig{Level: lvl})
		require.NoError(t, err)
		require.NotNil(t, l)
	}
}

func TestNewLogger_FileOnly(t *testing.T) {
	_, err := NewLogger(LogConfig{FileOnly: true})
	require.Error(t, err)

	dir := t.TempDir()
	l, err := NewLogger(LogConfig{Level: "info", File: filepath.Join(dir, "logs", "bot.log"), FileOnly: true})
	require.NoError(t, err)
	l.Info("hello")
	_ = l.Sync()

	entries, err := os.ReadDir(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}
