// Package ingest loads stake distributions and consensus vote logs from CSV.
//
// Loading is all-or-nothing: the first malformed row aborts the file with a
// *models.FormatError naming the file, row and field. Row numbers are 1-based
// and count the header as row 1.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nvandessel/quorumlab/internal/models"
)

// header maps column names to indexes.
type header map[string]int

// csvFile wraps a csv.Reader with row tracking and required-column lookup.
type csvFile struct {
	name string
	r    *csv.Reader
	cols header
	row  int
}

func openCSV(r io.Reader, name string, required ...string) (*csvFile, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	f := &csvFile{name: name, r: cr}
	rec, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &models.FormatError{File: name, Row: 1, Err: errors.New("missing header")}
	}
	if err != nil {
		return nil, f.wrap(err)
	}
	f.row = 1

	f.cols = make(header, len(rec))
	for i, c := range rec {
		c = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
		f.cols[c] = i
	}
	for _, c := range required {
		if _, ok := f.cols[c]; !ok {
			return nil, &models.FormatError{File: name, Row: 1, Field: c, Err: errors.New("missing column")}
		}
	}
	return f, nil
}

// next returns the next record, or io.EOF.
func (f *csvFile) next() ([]string, error) {
	rec, err := f.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, f.wrap(err)
	}
	f.row++
	return rec, nil
}

// has reports whether the header contains column c.
func (f *csvFile) has(c string) bool {
	_, ok := f.cols[c]
	return ok
}

// field returns the trimmed value of column c in rec.
func (f *csvFile) field(rec []string, c string) (string, error) {
	i, ok := f.cols[c]
	if !ok || i >= len(rec) {
		return "", f.fail(c, errors.New("missing value"))
	}
	return strings.TrimSpace(rec[i]), nil
}

func (f *csvFile) fail(field string, err error) error {
	return &models.FormatError{File: f.name, Row: f.row, Field: field, Err: err}
}

func (f *csvFile) wrap(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &models.FormatError{File: f.name, Row: perr.Line, Err: perr.Err}
	}
	return &models.FormatError{File: f.name, Row: f.row + 1, Err: err}
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}
