package phyalf

import (
	"errors"
	"fmt"

	"github.com/hupe1980/phyalf/internal/cluster"
	"github.com/hupe1980/phyalf/internal/depth"
	"github.com/hupe1980/phyalf/internal/waveform"
	"github.com/hupe1980/phyalf/npy"
	"github.com/hupe1980/phyalf/sparse"
)

var (
	// ErrConfiguration is returned when the source and destination
	// directories resolve to the same path.
	ErrConfiguration = errors.New("source and destination directories are the same")

	// ErrFormat is returned for malformed .npy files.
	ErrFormat = npy.ErrFormat

	// ErrNotSupported is returned for sparse layouts and channel requests
	// that have no unambiguous decode.
	ErrNotSupported = sparse.ErrNotSupported

	// ErrInvalidInput is returned when the sorting result is internally
	// inconsistent, e.g. a spike refers to a cluster without a depth.
	ErrInvalidInput = errors.New("invalid sorting result")

	// ErrChecksum is returned by Fetch when a blob does not match its
	// manifest entry.
	ErrChecksum = errors.New("checksum mismatch")
)

// ErrShapeMismatch indicates arrays whose lengths disagree.
type ErrShapeMismatch struct {
	Name     string
	Expected []int
	Actual   []int
}

func (e *ErrShapeMismatch) Error() string {
	return fmt.Sprintf("shape mismatch for %s: expected %v, got %v", e.Name, e.Expected, e.Actual)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var sm *ErrShapeMismatch
	if errors.As(err, &sm) {
		return err
	}
	if errors.Is(err, sparse.ErrInvalidTensor) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if errors.Is(err, depth.ErrIndex) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if errors.Is(err, cluster.ErrNegativeID) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if errors.Is(err, waveform.ErrLayout) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	return err
}
