// Package sparse decodes row-wise sparse {data, cols} tensors into dense
// arrays over a requested set of global channel ids.
//
// A tensor's data has shape [rows, ..., nLocal]. Its optional cols array has
// shape [colRows, nLocal] and maps each local slot to a global channel id.
// Negative ids mark unused slots. Without cols the tensor is dense and the
// local axis is the global channel id.
package sparse

import (
	"errors"
	"fmt"

	"github.com/hupe1980/phyalf/npy"
)

var (
	// ErrNotSupported is returned for requests that have no unambiguous
	// decode, such as duplicate requested channel ids.
	ErrNotSupported = errors.New("sparse: not supported")

	// ErrInvalidTensor is returned by the constructors when data and cols
	// are inconsistent.
	ErrInvalidTensor = errors.New("sparse: invalid tensor")
)

// Tensor is an immutable sparse tensor. The arrays passed to the
// constructors must not be modified afterwards.
type Tensor struct {
	data    *npy.Array[float64]
	cols    *npy.Array[int64]
	grouped bool
}

// New builds a row-wise tensor: cols, when present, has one row per data row.
func New(data *npy.Array[float64], cols *npy.Array[int64]) (*Tensor, error) {
	if err := validate(data, cols); err != nil {
		return nil, err
	}
	if cols != nil && cols.Shape[0] != data.Shape[0] {
		return nil, fmt.Errorf("%w: cols has %d rows, data has %d", ErrInvalidTensor, cols.Shape[0], data.Shape[0])
	}
	return &Tensor{data: data, cols: cols}, nil
}

// NewGrouped builds a tensor whose cols rows are indexed by a group id
// rather than by data row, as for per-spike features keyed by cluster.
func NewGrouped(data *npy.Array[float64], cols *npy.Array[int64]) (*Tensor, error) {
	if cols == nil {
		return nil, fmt.Errorf("%w: grouped tensor requires cols", ErrInvalidTensor)
	}
	if err := validate(data, cols); err != nil {
		return nil, err
	}
	return &Tensor{data: data, cols: cols, grouped: true}, nil
}

func validate(data *npy.Array[float64], cols *npy.Array[int64]) error {
	if data == nil || data.NDim() < 2 {
		return fmt.Errorf("%w: data must have at least 2 dimensions", ErrInvalidTensor)
	}
	if cols == nil {
		return nil
	}
	if cols.NDim() != 2 {
		return fmt.Errorf("%w: cols must be 2-dimensional, got shape %v", ErrInvalidTensor, cols.Shape)
	}
	local := data.Shape[data.NDim()-1]
	if cols.Shape[1] != local {
		return fmt.Errorf("%w: cols has %d local slots, data has %d", ErrInvalidTensor, cols.Shape[1], local)
	}
	seen := make(map[int64]struct{}, local)
	for r := 0; r < cols.Shape[0]; r++ {
		clear(seen)
		for _, id := range cols.Row(r) {
			if id < 0 {
				continue
			}
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: channel %d appears twice in cols row %d", ErrInvalidTensor, id, r)
			}
			seen[id] = struct{}{}
		}
	}
	return nil
}

// Shape returns a copy of the data shape.
func (t *Tensor) Shape() []int { return append([]int(nil), t.data.Shape...) }

// Rows returns the length of the first data axis.
func (t *Tensor) Rows() int { return t.data.Shape[0] }

// Local returns the number of local channel slots.
func (t *Tensor) Local() int { return t.data.Shape[t.data.NDim()-1] }

// InnerSize returns the number of elements between the row and local axes.
func (t *Tensor) InnerSize() int {
	n := 1
	for _, d := range t.data.Shape[1 : t.data.NDim()-1] {
		n *= d
	}
	return n
}

// IsDense reports whether the tensor has no cols map.
func (t *Tensor) IsDense() bool { return t.cols == nil }

// IsGrouped reports whether cols rows are indexed by group.
func (t *Tensor) IsGrouped() bool { return t.grouped }

// ColRows returns the number of cols rows, or 0 for a dense tensor.
func (t *Tensor) ColRows() int {
	if t.cols == nil {
		return 0
	}
	return t.cols.Shape[0]
}

// ColsRow returns a copy of cols row r.
func (t *Tensor) ColsRow(r int) []int64 {
	return append([]int64(nil), t.cols.Row(r)...)
}

// Col returns the global id of local slot j in cols row r. For a dense
// tensor it returns j.
func (t *Tensor) Col(r, j int) int64 {
	if t.cols == nil {
		return int64(j)
	}
	return t.cols.Data[r*t.cols.Shape[1]+j]
}

// Value returns the data element at a flat row-major index.
func (t *Tensor) Value(i int) float64 { return t.data.Data[i] }
