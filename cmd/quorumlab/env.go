package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/nvandessel/quorumlab/internal/config"
	"github.com/nvandessel/quorumlab/internal/constants"
	"github.com/nvandessel/quorumlab/internal/logging"
	"github.com/nvandessel/quorumlab/internal/metrics"
	"github.com/nvandessel/quorumlab/internal/pathutil"
	"github.com/nvandessel/quorumlab/internal/store"
)

// appEnv is the per-invocation runtime shared by the analysis commands.
type appEnv struct {
	cfg     *config.Config
	logger  *slog.Logger
	trace   *logging.TraceLogger
	metrics *metrics.Registry
	runs    store.RunStore
	jsonOut bool
}

// loadConfig reads the config selected by --config and applies --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newAppEnv builds the logger, trace log, metrics and run store from config.
// Runs go to an in-memory store when recording is disabled.
func newAppEnv(cmd *cobra.Command) (*appEnv, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	jsonOut, _ := cmd.Flags().GetBool("json")

	env := &appEnv{
		cfg:     cfg,
		logger:  logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
		metrics: metrics.NewRegistry(),
		jsonOut: jsonOut,
	}
	env.trace, err = logging.OpenTraceLogger(cfg.Storage.DataDir, cfg.Logging.Level)
	if err != nil {
		env.logger.Warn("tracing disabled", "error", err)
	}

	if cfg.Storage.RecordRuns {
		s, err := store.NewSQLiteRunStore(cfg.Storage.DataDir)
		if err != nil {
			env.trace.Close()
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		env.logger.Debug("run store opened", "path", pathutil.RedactPath(s.Path()))
		env.runs = s
	} else {
		env.runs = store.NewInMemoryRunStore()
	}
	return env, nil
}

// record saves a run and logs its ID. Failures are logged, not returned.
func (e *appEnv) record(ctx context.Context, kind string, step constants.Step, params, result any) {
	run, err := store.NewRun(kind, step, params, result)
	if err != nil {
		e.logger.Warn("failed to encode run", "kind", kind, "error", err)
		return
	}
	id, err := e.runs.SaveRun(ctx, run)
	if err != nil {
		e.logger.Warn("failed to record run", "kind", kind, "error", err)
		return
	}
	e.logger.Debug("run recorded", "kind", kind, "id", id)
}

// writeMetrics dumps the metrics registry when path is set.
func (e *appEnv) writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	out, err := pathutil.OutputPath(path)
	if err != nil {
		return err
	}
	if err := e.metrics.WriteTextfile(out); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	e.logger.Info("metrics written", "path", pathutil.RedactPath(out))
	return nil
}

func (e *appEnv) Close() {
	if err := e.runs.Close(); err != nil {
		e.logger.Warn("failed to close run store", "error", err)
	}
	if counts := e.trace.Counts(); len(counts) > 0 {
		e.logger.Debug("trace events written", "counts", counts)
	}
	if err := e.trace.Close(); err != nil {
		e.logger.Warn("failed to close trace log", "error", err)
	}
}

// signalContext returns a context canceled on interrupt.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	notifySignals(ch)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(ch)
	}()
	return ctx, cancel
}
