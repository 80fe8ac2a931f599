package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ExportJSONL writes every matching run as one JSON object per line, oldest
// first. It returns the number of runs written.
func ExportJSONL(ctx context.Context, s RunStore, w io.Writer, filter RunFilter) (int, error) {
	runs, err := s.ListRuns(ctx, filter)
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	n := 0
	for i := len(runs) - 1; i >= 0; i-- {
		if err := enc.Encode(runs[i]); err != nil {
			return n, fmt.Errorf("failed to encode run %s: %w", runs[i].ID, err)
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("failed to write runs: %w", err)
	}
	return n, nil
}

// ImportJSONL reads runs written by ExportJSONL into s, replacing runs with the
// same ID. Blank lines are skipped; a malformed line aborts the import.
func ImportJSONL(ctx context.Context, s RunStore, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	// Results can carry large sample lists
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	lineNum, n := 0, 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var run Run
		if err := json.Unmarshal(line, &run); err != nil {
			return n, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if _, err := s.SaveRun(ctx, run); err != nil {
			return n, fmt.Errorf("line %d: %w", lineNum, err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("scanner error: %w", err)
	}
	return n, nil
}
