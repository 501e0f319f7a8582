package store

import "errors"

var (
	// ErrNotFound reports a missing metadata key.
	ErrNotFound = errors.New("store: not found")

	// ErrSizeUnknown reports that the backend cannot measure its storage
	// footprint (hosted backends without a size API).
	ErrSizeUnknown = errors.New("store: size unknown")
)
