package storage

import "errors"

var (
	// ErrMissingTable is returned when a source has no listings table.
	ErrMissingTable = errors.New("missing listings table")
	// ErrUnsupportedFormat is returned for file types no loader handles.
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
)
