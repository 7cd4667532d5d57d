package depth

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/phyalf/npy"
	"github.com/hupe1980/phyalf/sparse"
)

func positions(t *testing.T, n int) *npy.Array[float64] {
	t.Helper()
	p := npy.NewArray[float64](n, 2)
	for i := range n {
		p.Data[2*i] = float64(i % 2 * 16)
		p.Data[2*i+1] = float64(i * 20)
	}
	return p
}

func TestClusters(t *testing.T) {
	got, err := Clusters(positions(t, 4), []int64{3, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{60, 0, 20}, got)

	_, err = Clusters(positions(t, 4), []int64{4})
	assert.ErrorIs(t, err, ErrIndex)
}

func TestSpikesWithoutFeatures(t *testing.T) {
	got, err := Spikes(SpikeInput{
		Positions:     positions(t, 4),
		SpikeClusters: []int64{1, 0, 1},
		ClusterDepths: []float64{5, 7},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 5, 7}, got)
}

func TestSpikesWeightedCentroid(t *testing.T) {
	// Two spikes, two components, two local channels. Only component 0 counts.
	data, err := npy.FromSlice([]float64{
		1, 2, 100, 100,
		0, 0, 3, 3,
	}, 2, 2, 2)
	require.NoError(t, err)
	cols, err := npy.FromSlice([]int64{1, 2}, 1, 2)
	require.NoError(t, err)
	features, err := sparse.NewGrouped(data, cols)
	require.NoError(t, err)

	got, err := Spikes(SpikeInput{
		Positions:     positions(t, 4),
		SpikeClusters: []int64{0, 0},
		Features:      features,
	}, 1)
	require.NoError(t, err)
	// weights 1 and 4 on y=20 and y=40
	assert.InDelta(t, 36.0, got[0], 1e-12)
	assert.True(t, math.IsNaN(got[1]))
}

func TestSpikesSkipsEmptySlots(t *testing.T) {
	data, err := npy.FromSlice([]float64{2, 5}, 1, 1, 2)
	require.NoError(t, err)
	cols, err := npy.FromSlice([]int64{3, -1}, 1, 2)
	require.NoError(t, err)
	features, err := sparse.NewGrouped(data, cols)
	require.NoError(t, err)

	got, err := Spikes(SpikeInput{Positions: positions(t, 4), SpikeClusters: []int64{0}, Features: features}, 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{60}, got)
}

func TestSpikesBatchInvariance(t *testing.T) {
	const (
		nSpikes   = 1000
		nComp     = 3
		nLocal    = 8
		nClusters = 5
		nChannels = 32
	)
	rng := rand.New(rand.NewPCG(4711, 1))

	data := npy.NewArray[float64](nSpikes, nComp, nLocal)
	for i := range data.Data {
		data.Data[i] = rng.NormFloat64()
	}
	cols := npy.NewArray[int64](nClusters, nLocal)
	for c := range nClusters {
		for j, ch := range rng.Perm(nChannels)[:nLocal] {
			cols.Row(c)[j] = int64(ch)
		}
	}
	features, err := sparse.NewGrouped(data, cols)
	require.NoError(t, err)

	spikeClusters := make([]int64, nSpikes)
	for i := range spikeClusters {
		spikeClusters[i] = int64(rng.IntN(nClusters))
	}
	in := SpikeInput{Positions: positions(t, nChannels), SpikeClusters: spikeClusters, Features: features}

	want, err := Spikes(in, DefaultBatchSize)
	require.NoError(t, err)
	for _, batch := range []int{1, 7, nSpikes - 1} {
		got, err := Spikes(in, batch)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
			t.Errorf("batch %d mismatch (-want +got):\n%s", batch, diff)
		}
	}
}

func TestSpikesRejectsBadGroup(t *testing.T) {
	data := npy.NewArray[float64](1, 1, 2)
	cols, err := npy.FromSlice([]int64{0, 1}, 1, 2)
	require.NoError(t, err)
	features, err := sparse.NewGrouped(data, cols)
	require.NoError(t, err)

	_, err = Spikes(SpikeInput{Positions: positions(t, 4), SpikeClusters: []int64{3}, Features: features}, 0)
	assert.ErrorIs(t, err, ErrIndex)
}
