package sparse

import (
	"fmt"

	"github.com/hupe1980/phyalf/npy"
)

// Project decodes t into a dense array of shape [rows, ..., len(ids)] where
// column j holds the values stored for channel ids[j]. Channels a row does
// not store decode to zero.
func Project(t *Tensor, ids []int64) (*npy.Array[float64], error) {
	return t.Project(ids)
}

// Project is the method form of the package level Project.
func (t *Tensor) Project(ids []int64) (*npy.Array[float64], error) {
	if t.grouped && t.ColRows() != t.Rows() {
		return nil, fmt.Errorf("%w: grouped tensor cannot be projected row-wise", ErrNotSupported)
	}
	if err := checkUnique(ids); err != nil {
		return nil, err
	}

	shape := t.Shape()
	shape[len(shape)-1] = len(ids)
	out := npy.NewArray[float64](shape...)

	stride := t.InnerSize() * len(ids)
	for r := 0; r < t.Rows(); r++ {
		t.projectRow(r, ids, out.Data[r*stride:(r+1)*stride])
	}
	return out, nil
}

// ProjectRow decodes a single row into a fresh slice of length
// InnerSize()*len(ids).
func (t *Tensor) ProjectRow(r int, ids []int64) ([]float64, error) {
	if r < 0 || r >= t.Rows() {
		return nil, fmt.Errorf("%w: row %d out of range [0, %d)", ErrInvalidTensor, r, t.Rows())
	}
	if t.grouped && t.ColRows() != t.Rows() {
		return nil, fmt.Errorf("%w: grouped tensor cannot be projected row-wise", ErrNotSupported)
	}
	if err := checkUnique(ids); err != nil {
		return nil, err
	}
	out := make([]float64, t.InnerSize()*len(ids))
	t.projectRow(r, ids, out)
	return out, nil
}

func (t *Tensor) projectRow(r int, ids []int64, dst []float64) {
	local, inner := t.Local(), t.InnerSize()
	slots := t.slots(r, ids)
	src := t.data.Data[r*inner*local : (r+1)*inner*local]
	for i := 0; i < inner; i++ {
		row := src[i*local : (i+1)*local]
		out := dst[i*len(ids) : (i+1)*len(ids)]
		for j, s := range slots {
			if s >= 0 {
				out[j] = row[s]
			}
		}
	}
}

// slots maps each requested id to its local slot in row r, or -1.
func (t *Tensor) slots(r int, ids []int64) []int {
	local := t.Local()
	slots := make([]int, len(ids))
	if t.cols == nil {
		for j, id := range ids {
			slots[j] = -1
			if id >= 0 && id < int64(local) {
				slots[j] = int(id)
			}
		}
		return slots
	}

	index := make(map[int64]int, local)
	for s, id := range t.cols.Row(r) {
		if id >= 0 {
			index[id] = s
		}
	}
	for j, id := range ids {
		s, ok := index[id]
		if !ok || id < 0 {
			s = -1
		}
		slots[j] = s
	}
	return slots
}

func checkUnique(ids []int64) error {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: channel id %d requested twice", ErrNotSupported, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
