package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvents(t *testing.T, dir string) []Event {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, TraceFileName))
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev), "line %q", sc.Text())
		events = append(events, ev)
	}
	require.NoError(t, sc.Err())
	return events
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"info", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{"Debug", slog.LevelDebug},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLogger_FiltersAndLabelsTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("debug", &buf)
	logger.Log(context.Background(), LevelTrace, "per-trial detail")
	logger.Debug("round skipped")
	assert.NotContains(t, buf.String(), "per-trial detail")
	assert.Contains(t, buf.String(), "round skipped")

	buf.Reset()
	logger = NewLogger("trace", &buf)
	logger.Log(context.Background(), LevelTrace, "per-trial detail")
	assert.Contains(t, buf.String(), "level=TRACE")

	buf.Reset()
	logger = NewLogger("info", &buf)
	logger.Debug("hidden")
	logger.Info("simulating")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "simulating")
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))
}

func TestOpenTraceLogger_OffAtInfo(t *testing.T) {
	dir := t.TempDir()
	tl, err := OpenTraceLogger(dir, "info")
	require.NoError(t, err)
	assert.Nil(t, tl)

	// Every method is usable on the nil logger.
	tl.PoissonCapHit(20)
	tl.RoundExcluded("soft", 1, 10, 2267)
	assert.Empty(t, tl.Counts())
	assert.NoError(t, tl.Close())

	_, err = os.Stat(filepath.Join(dir, TraceFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestTraceLogger_Events(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	tl, err := OpenTraceLogger(dir, "debug")
	require.NoError(t, err)
	require.NotNil(t, tl)

	tl.PoissonCapHit(12.5)
	tl.RoundExcluded("cert", 42, 900, 1112)
	tl.TrialUnreached("soft", 17, 2100, true)
	tl.OvershootNegative("cert", -3.5)
	require.NoError(t, tl.Close())

	events := readEvents(t, dir)
	require.Len(t, events, 4)

	assert.Equal(t, EventPoissonCapHit, events[0].Kind)
	assert.Empty(t, events[0].Step)
	assert.Equal(t, 12.5, events[0].Attrs["expected"])

	assert.Equal(t, EventRoundExcluded, events[1].Kind)
	assert.Equal(t, "cert", events[1].Step)
	assert.Equal(t, float64(42), events[1].Attrs["round"])
	assert.Equal(t, float64(1112), events[1].Attrs["threshold"])

	assert.Equal(t, EventTrialUnreached, events[2].Kind)
	assert.Equal(t, true, events[2].Attrs["retained"])

	assert.Equal(t, EventOvershootNegative, events[3].Kind)
	assert.Equal(t, -3.5, events[3].Attrs["overshoot"])

	for _, ev := range events {
		assert.False(t, ev.Time.IsZero())
	}

	info, err := os.Stat(filepath.Join(dir, TraceFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestTraceLogger_AppendsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		tl, err := OpenTraceLogger(dir, "trace")
		require.NoError(t, err)
		tl.RoundExcluded("soft", uint64(i), 1, 2)
		require.NoError(t, tl.Close())
	}
	assert.Len(t, readEvents(t, dir), 2)
}

func TestTraceLogger_CountsAndClose(t *testing.T) {
	dir := t.TempDir()
	tl, err := OpenTraceLogger(dir, "debug")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tl.PoissonCapHit(25)
		}()
	}
	wg.Wait()
	tl.RoundExcluded("cert", 1, 5, 1112)

	assert.Equal(t, map[string]int{EventPoissonCapHit: 8, EventRoundExcluded: 1}, tl.Counts())

	require.NoError(t, tl.Close())
	tl.PoissonCapHit(25)
	assert.NoError(t, tl.Close())
	assert.Len(t, readEvents(t, dir), 9)
}
