// Package depth computes the vertical position of clusters and spikes.
package depth

import (
	"errors"
	"fmt"
	"math"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/hupe1980/phyalf/npy"
	"github.com/hupe1980/phyalf/sparse"
)

// DefaultBatchSize is the number of spikes processed per feature batch.
const DefaultBatchSize = 50000

// ErrIndex is returned when a channel or cluster index is out of range.
var ErrIndex = errors.New("depth: index out of range")

// Clusters returns the y coordinate of each cluster's peak channel.
func Clusters(positions *npy.Array[float64], channels []int64) ([]float64, error) {
	if err := checkPositions(positions); err != nil {
		return nil, err
	}
	out := make([]float64, len(channels))
	for i, c := range channels {
		if c < 0 || int(c) >= positions.Len() {
			return nil, fmt.Errorf("%w: cluster %d peak channel %d, %d channels", ErrIndex, i, c, positions.Len())
		}
		out[i] = positions.At(int(c), 1)
	}
	return out, nil
}

// SpikeInput holds what Spikes needs.
type SpikeInput struct {
	Positions     *npy.Array[float64] // [nChannels, 2]
	SpikeClusters []int64
	ClusterDepths []float64
	// Features is [nSpikes, nComponents, nLocal] with cols indexed by
	// cluster. Nil means every spike takes its cluster's depth.
	Features *sparse.Tensor
}

// Spikes returns one depth per spike. With features the depth is the
// centroid of the local channels' y coordinates weighted by the squared
// first principal component; a spike with zero total weight gets NaN.
//
// Spikes are processed batch at a time. Every spike is computed
// independently, so the result does not depend on the batch size.
func Spikes(in SpikeInput, batch int) ([]float64, error) {
	if err := checkPositions(in.Positions); err != nil {
		return nil, err
	}
	n := len(in.SpikeClusters)
	out := make([]float64, n)

	if in.Features == nil {
		for s, c := range in.SpikeClusters {
			if c < 0 || int(c) >= len(in.ClusterDepths) {
				return nil, fmt.Errorf("%w: spike %d cluster %d, %d cluster depths", ErrIndex, s, c, len(in.ClusterDepths))
			}
			out[s] = in.ClusterDepths[c]
		}
		return out, nil
	}

	f := in.Features
	shape := f.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("depth: features must be [spike, component, local], got %v", shape)
	}
	if shape[0] != n {
		return nil, fmt.Errorf("depth: features hold %d spikes, spike clusters %d", shape[0], n)
	}
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	local := f.Local()
	spikeStride := shape[1] * local
	size := min(batch, n) * local
	amp := make([]float64, size)
	ys := make([]float64, size)
	w := make([]float64, size)
	wy := make([]float64, size)

	for start := 0; start < n; start += batch {
		end := min(start+batch, n)
		m := (end - start) * local

		for s := start; s < end; s++ {
			g := in.SpikeClusters[s]
			if !f.IsDense() && (g < 0 || int(g) >= f.ColRows()) {
				return nil, fmt.Errorf("%w: spike %d feature group %d, %d groups", ErrIndex, s, g, f.ColRows())
			}
			base := (s - start) * local
			for j := range local {
				ch := f.Col(int(g), j)
				if ch < 0 {
					amp[base+j], ys[base+j] = 0, 0
					continue
				}
				if int(ch) >= in.Positions.Len() {
					return nil, fmt.Errorf("%w: spike %d feature channel %d", ErrIndex, s, ch)
				}
				amp[base+j] = f.Value(s*spikeStride + j)
				ys[base+j] = in.Positions.At(int(ch), 1)
			}
		}

		vecmath.MulBlock(w[:m], amp[:m], amp[:m])
		vecmath.MulBlock(wy[:m], w[:m], ys[:m])

		for s := start; s < end; s++ {
			base := (s - start) * local
			var sw, swy float64
			for j := range local {
				sw += w[base+j]
				swy += wy[base+j]
			}
			if sw == 0 {
				out[s] = math.NaN()
				continue
			}
			out[s] = swy / sw
		}
	}
	return out, nil
}

func checkPositions(p *npy.Array[float64]) error {
	if p == nil || p.NDim() != 2 || p.Shape[1] < 2 {
		var shape []int
		if p != nil {
			shape = p.Shape
		}
		return fmt.Errorf("depth: channel positions must be [n, 2], got %v", shape)
	}
	return nil
}
