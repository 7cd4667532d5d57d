package npy

import "errors"

var (
	// ErrFormat is returned for a malformed signature, version, header dict
	// or payload.
	ErrFormat = errors.New("npy: malformed file")

	// ErrShape is returned when data does not fit the declared shape.
	ErrShape = errors.New("npy: shape mismatch")
)
