package models

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat marks a missing or malformed field in an input row.
	ErrFormat = errors.New("format error")

	// ErrDomain marks an invalid parameter combination.
	ErrDomain = errors.New("domain error")

	// ErrInsufficientData is returned when no round reaches the threshold.
	ErrInsufficientData = errors.New("insufficient data")
)

// FormatError describes a bad input row. Row is 1-indexed and counts the header.
type FormatError struct {
	File  string
	Row   int
	Field string
	Err   error
}

func (e *FormatError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: row %d: %v", e.File, e.Row, e.Err)
	}
	return fmt.Sprintf("%s: row %d: field %q: %v", e.File, e.Row, e.Field, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is reports ErrFormat so callers can match the category.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// DomainError describes an invalid model parameter.
type DomainError struct {
	Param  string
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

// Is reports ErrDomain so callers can match the category.
func (e *DomainError) Is(target error) bool {
	return target == ErrDomain
}
