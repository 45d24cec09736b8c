package taintflow

import "errors"

var (
	// ErrNilStore is returned when Analyze receives no fact store.
	ErrNilStore = errors.New("taintflow: nil fact store")
	// ErrNilRegistry is returned when an analyzer is built without a
	// pattern registry.
	ErrNilRegistry = errors.New("taintflow: nil pattern registry")
)
