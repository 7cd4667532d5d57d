// Package waveform selects the channels nearest to a template's peak channel
// and extracts the template waveform restricted to them.
package waveform

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/phyalf/npy"
	"github.com/hupe1980/phyalf/sparse"
)

// DefaultChannels is the number of channels kept per template.
const DefaultChannels = 32

// ErrLayout is returned when channel positions, probes or peak channels do
// not agree with each other.
var ErrLayout = errors.New("waveform: inconsistent channel layout")

// Layout describes the recording channels.
type Layout struct {
	Positions *npy.Array[float64] // [nChannels, 2]
	Probes    []int64             // [nChannels]
}

// Validate checks that positions and probes describe the same channels.
func (l Layout) Validate() error {
	if l.Positions == nil || l.Positions.NDim() != 2 || l.Positions.Shape[1] < 2 {
		return fmt.Errorf("%w: channel positions must be [n, 2], got %v", ErrLayout, shapeOf(l.Positions))
	}
	if len(l.Probes) != l.Positions.Len() {
		return fmt.Errorf("%w: %d probe entries for %d channels", ErrLayout, len(l.Probes), l.Positions.Len())
	}
	return nil
}

// Channels returns the number of channels.
func (l Layout) Channels() int { return l.Positions.Len() }

// Nearest returns up to limit channel indices ordered by L1 distance from the
// peak channel. Channels on another probe are never returned. Ties keep
// ascending channel order.
func Nearest(l Layout, peak, limit int) ([]int, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	n := l.Channels()
	if peak < 0 || peak >= n {
		return nil, fmt.Errorf("%w: peak channel %d out of range [0, %d)", ErrLayout, peak, n)
	}

	probe := l.Probes[peak]
	px, py := l.Positions.At(peak, 0), l.Positions.At(peak, 1)

	dist := make([]float64, n)
	order := make([]int, n)
	onProbe := 0
	for i := range n {
		order[i] = i
		if l.Probes[i] != probe {
			dist[i] = math.Inf(1)
			continue
		}
		onProbe++
		dist[i] = math.Abs(l.Positions.At(i, 0)-px) + math.Abs(l.Positions.At(i, 1)-py)
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case dist[a] < dist[b]:
			return -1
		case dist[a] > dist[b]:
			return 1
		}
		return 0
	})

	return order[:min(limit, onProbe)], nil
}

// Waveforms is the channel-restricted template set.
type Waveforms struct {
	Data     *npy.Array[float32] // [nTemplates, nSamples, W]
	Channels *npy.Array[int32]   // [nTemplates, W], -1 marks padding
}

// Extract restricts every template to its nearest channels. W is the
// largest number of channels selected for any template; shorter rows are
// padded with channel -1 and zero samples. Samples are multiplied by scale.
func Extract(templates *sparse.Tensor, peaks []int64, l Layout, limit int, scale float64) (*Waveforms, error) {
	shape := templates.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("%w: templates must be [template, sample, local], got %v", sparse.ErrNotSupported, shape)
	}
	if templates.IsGrouped() || (!templates.IsDense() && templates.ColRows() != shape[0]) {
		return nil, fmt.Errorf("%w: template cols must be [template, local]", sparse.ErrNotSupported)
	}
	nT, nS := shape[0], shape[1]
	if len(peaks) != nT {
		return nil, fmt.Errorf("%w: %d peak channels for %d templates", ErrLayout, len(peaks), nT)
	}

	selected := make([][]int64, nT)
	width := 0
	for t, p := range peaks {
		idx, err := Nearest(l, int(p), limit)
		if err != nil {
			return nil, fmt.Errorf("template %d: %w", t, err)
		}
		ids := make([]int64, len(idx))
		for j, c := range idx {
			ids[j] = int64(c)
		}
		selected[t] = ids
		width = max(width, len(ids))
	}

	out := &Waveforms{
		Data:     npy.NewArray[float32](nT, nS, width),
		Channels: npy.NewArray[int32](nT, width),
	}
	for t, ids := range selected {
		ch := out.Channels.Row(t)
		for j := range ch {
			ch[j] = -1
		}
		for j, id := range ids {
			ch[j] = int32(id)
		}

		row, err := templates.ProjectRow(t, ids)
		if err != nil {
			return nil, fmt.Errorf("template %d: %w", t, err)
		}
		dst := out.Data.Row(t)
		for s := range nS {
			for j := range ids {
				dst[s*width+j] = float32(row[s*len(ids)+j] * scale)
			}
		}
	}
	return out, nil
}

func shapeOf[T npy.Number](a *npy.Array[T]) []int {
	if a == nil {
		return nil
	}
	return a.Shape
}
