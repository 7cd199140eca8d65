package factory

import "errors"

// File-boundary errors. Like the tool errors, these are converted into
// per-file results at the processor boundary and never stop a batch.
var (
	ErrInputNotFound = errors.New("input file not found")

	// ErrInputInvalid covers zero-byte and unreadable inputs.
	ErrInputInvalid = errors.New("input file invalid")

	// ErrOutputMissing means the tool exited 0 but the output file is
	// absent or empty. A zero exit alone is not proof of success.
	ErrOutputMissing = errors.New("output file missing or empty")
)
