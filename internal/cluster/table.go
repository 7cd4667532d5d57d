// Package cluster builds per-cluster arrays over the contiguous id range
// spanned by the observed cluster ids.
package cluster

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"

	"github.com/hupe1980/phyalf/internal/conv"
)

// ErrNegativeID is returned for negative cluster ids.
var ErrNegativeID = errors.New("cluster: negative cluster id")

// Table is the set of cluster ids that own at least one spike.
type Table struct {
	rb *roaring.Bitmap
}

// NewTable collects the distinct ids in spikeClusters.
func NewTable(spikeClusters []int64) (*Table, error) {
	rb := roaring.New()
	for s, c := range spikeClusters {
		if c < 0 {
			return nil, fmt.Errorf("%w: spike %d has cluster %d", ErrNegativeID, s, c)
		}
		id, err := conv.Int64ToUint32(c)
		if err != nil {
			return nil, fmt.Errorf("cluster: spike %d: %w", s, err)
		}
		rb.Add(id)
	}
	rb.RunOptimize()
	return &Table{rb: rb}, nil
}

// Len returns the number of observed clusters.
func (t *Table) Len() int { return int(t.rb.GetCardinality()) }

// Min returns the smallest observed id. It is 0 for an empty table.
func (t *Table) Min() int64 {
	if t.rb.IsEmpty() {
		return 0
	}
	return int64(t.rb.Minimum())
}

// Max returns the largest observed id. It is -1 for an empty table.
func (t *Table) Max() int64 {
	if t.rb.IsEmpty() {
		return -1
	}
	return int64(t.rb.Maximum())
}

// Slots returns the size of the range [Min, Max].
func (t *Table) Slots() int { return int(t.Max() - t.Min() + 1) }

// Observed reports whether id owns at least one spike.
func (t *Table) Observed(id int64) bool {
	u, err := conv.Int64ToUint32(id)
	return err == nil && t.rb.Contains(u)
}

// Scalars spreads per-cluster values over the slot range. Slot i holds
// values[Min()+i]*scale when that cluster was observed and has a value, and
// NaN otherwise.
func (t *Table) Scalars(values []float64, scale float64) []float64 {
	out := make([]float64, t.Slots())
	lo := t.Min()
	for i := range out {
		id := lo + int64(i)
		if !t.Observed(id) || id >= int64(len(values)) {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[id] * scale
	}
	return out
}

// UUIDs returns one fresh identifier per slot, observed or not. A nil gen
// uses random (version 4) UUIDs.
func (t *Table) UUIDs(gen func() (uuid.UUID, error)) ([]string, error) {
	if gen == nil {
		gen = uuid.NewRandom
	}
	out := make([]string, t.Slots())
	for i := range out {
		id, err := gen()
		if err != nil {
			return nil, fmt.Errorf("cluster: generate uuid: %w", err)
		}
		out[i] = id.String()
	}
	return out, nil
}

// WriteUUIDs writes ids as a one column CSV with header "uuids". Lines are
// newline separated with no trailing newline.
func WriteUUIDs(w io.Writer, ids []string) error {
	_, err := io.WriteString(w, strings.Join(append([]string{"uuids"}, ids...), "\n"))
	return err
}
