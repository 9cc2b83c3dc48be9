package redact

import "errors"

var (
	// ErrInvalidInput reports a missing, unreadable or wrongly typed input,
	// or an output path that would overwrite the input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrOpen wraps failures to open or parse the input document.
	ErrOpen = errors.New("failed to open document")
	// ErrSave wraps failures to persist the redacted document.
	ErrSave = errors.New("failed to save document")
)
