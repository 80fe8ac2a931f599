// Package store defines the RunStore interface for recording derive, analyze
// and profile results.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/quorumlab/internal/constants"
)

// Run kinds.
const (
	KindDerive  = "derive"
	KindAnalyze = "analyze"
	KindProfile = "profile"
)

var (
	// ErrNotFound is returned when no run matches an ID.
	ErrNotFound = errors.New("run not found")

	// ErrAmbiguousID is returned when an ID prefix matches several runs.
	ErrAmbiguousID = errors.New("ambiguous run id")
)

// Run is one recorded command result.
type Run struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Step      constants.Step  `json:"step,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Params    json.RawMessage `json:"params"`
	Result    json.RawMessage `json:"result"`
}

// NewRun builds a run with a fresh ID, marshaling params and result to JSON.
func NewRun(kind string, step constants.Step, params, result any) (Run, error) {
	p, err := json.Marshal(params)
	if err != nil {
		return Run{}, fmt.Errorf("marshaling run params: %w", err)
	}
	r, err := json.Marshal(result)
	if err != nil {
		return Run{}, fmt.Errorf("marshaling run result: %w", err)
	}
	return Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Step:      step,
		CreatedAt: time.Now().UTC(),
		Params:    p,
		Result:    r,
	}, nil
}

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Kind  string
	Step  constants.Step
	Limit int
}

func (f RunFilter) match(r Run) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Step != "" && r.Step != f.Step {
		return false
	}
	return true
}

// RunStore persists runs.
type RunStore interface {
	// SaveRun stores a run, assigning an ID and timestamp if missing.
	SaveRun(ctx context.Context, run Run) (string, error)

	// GetRun returns the run whose ID equals or uniquely starts with id.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns matching runs, newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// DeleteRun removes a run by full ID.
	DeleteRun(ctx context.Context, id string) error

	Close() error
}

// prepare fills in a missing ID and timestamp.
func prepare(run Run) (Run, error) {
	if run.Kind == "" {
		return run, fmt.Errorf("run kind is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	} else if _, err := uuid.Parse(run.ID); err != nil {
		return run, fmt.Errorf("invalid run id %q: %w", run.ID, err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if len(run.Params) == 0 {
		run.Params = json.RawMessage("null")
	}
	if len(run.Result) == 0 {
		run.Result = json.RawMessage("null")
	}
	return run, nil
}
