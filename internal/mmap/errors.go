package mmap

import "errors"

var (
	// ErrClosed is returned by a mapping that was already unmapped.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrTooLarge is returned for files that do not fit the address space.
	ErrTooLarge = errors.New("mmap: file too large to map")
	// ErrOutOfBounds is returned for sections that extend past the file.
	ErrOutOfBounds = errors.New("mmap: section out of bounds")
)

// Advice is a hint about how a mapped section will be read.
type Advice int

const (
	// Normal leaves the kernel default read-ahead in place.
	Normal Advice = iota
	// Sequential announces a single front-to-back pass, as when decoding
	// an array payload.
	Sequential
	// Random disables read-ahead for scattered lookups.
	Random
	// WillNeed asks the kernel to start paging the section in.
	WillNeed
)
