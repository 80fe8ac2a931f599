// Package logging sets up quorumlab's leveled stderr logger and the JSONL
// trace of analysis events kept in <data_dir>/trace.jsonl.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace sits below Debug and enables per-trial and per-round output.
const LevelTrace = slog.LevelDebug - 4

// TraceFileName is the trace file inside the data directory.
const TraceFileName = "trace.jsonl"

// Trace event kinds.
const (
	EventPoissonCapHit     = "poisson_cap_hit"
	EventRoundExcluded     = "round_excluded"
	EventTrialUnreached    = "trial_unreached"
	EventOvershootNegative = "overshoot_negative"
)

// ParseLevel maps "info", "debug" or "trace" (any case) to a slog.Level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a text slog.Logger on w that labels LevelTrace as TRACE.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if l, ok := a.Value.Any().(slog.Level); ok && l == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Event is one line of the trace file.
type Event struct {
	Time  time.Time      `json:"time"`
	Kind  string         `json:"event"`
	Step  string         `json:"step,omitempty"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// TraceLogger appends Events to the trace file. Methods are safe for
// concurrent use and are no-ops on a nil receiver, so callers never check
// whether tracing is enabled.
type TraceLogger struct {
	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	counts map[string]int
}

// OpenTraceLogger opens dir/trace.jsonl for append. It returns nil, nil at
// info level, where tracing is off.
func OpenTraceLogger(dir string, level string) (*TraceLogger, error) {
	if ParseLevel(level) > slog.LevelDebug {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating trace directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, TraceFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}
	return &TraceLogger{file: f, enc: json.NewEncoder(f), counts: make(map[string]int)}, nil
}

func (tl *TraceLogger) emit(kind, step string, attrs map[string]any) {
	if tl == nil {
		return
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.file == nil {
		return
	}
	ev := Event{Time: time.Now().UTC(), Kind: kind, Step: step, Attrs: attrs}
	if tl.enc.Encode(ev) == nil {
		tl.counts[kind]++
	}
}

// PoissonCapHit records a clamped Poisson draw. It implements sampler.CapObserver.
func (tl *TraceLogger) PoissonCapHit(expected float64) {
	tl.emit(EventPoissonCapHit, "", map[string]any{"expected": expected})
}

// RoundExcluded records a round whose total weight stayed below the threshold.
func (tl *TraceLogger) RoundExcluded(step string, round uint64, totalWeight uint64, threshold int) {
	tl.emit(EventRoundExcluded, step, map[string]any{
		"round":        round,
		"total_weight": totalWeight,
		"threshold":    threshold,
	})
}

// TrialUnreached records a simulated trial that never reached the threshold.
func (tl *TraceLogger) TrialUnreached(step string, selected int, weight uint64, retained bool) {
	tl.emit(EventTrialUnreached, step, map[string]any{
		"selected": selected,
		"weight":   weight,
		"retained": retained,
	})
}

// OvershootNegative records a decomposition whose observed voters fell below
// the whale-first count.
func (tl *TraceLogger) OvershootNegative(step string, overshoot float64) {
	tl.emit(EventOvershootNegative, step, map[string]any{"overshoot": overshoot})
}

// Counts returns how many events of each kind were written.
func (tl *TraceLogger) Counts() map[string]int {
	out := make(map[string]int)
	if tl == nil {
		return out
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	for k, v := range tl.counts {
		out[k] = v
	}
	return out
}

// Close closes the trace file. Later events are dropped.
func (tl *TraceLogger) Close() error {
	if tl == nil {
		return nil
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.file == nil {
		return nil
	}
	err := tl.file.Close()
	tl.file = nil
	return err
}
