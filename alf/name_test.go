package alf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	n, err := Parse("spikes.times.npy")
	require.NoError(t, err)
	assert.Equal(t, Name{Object: "spikes", Attribute: "times", Extension: "npy"}, n)
	assert.Equal(t, "spikes.times.npy", n.String())

	n, err = Parse("clusters.uuids.ks2.csv")
	require.NoError(t, err)
	assert.Equal(t, "ks2", n.Label)
	assert.Equal(t, "clusters.uuids.ks2.csv", n.String())

	for _, bad := range []string{"params.py", "a.b.c.d.e", "spikes..npy", ""} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrInvalidName, bad)
	}
}

func TestLabelled(t *testing.T) {
	assert.Equal(t, "templates.waveforms.probe00.npy", Labelled(TemplatesWaveforms, "probe00"))
	assert.Equal(t, TemplatesWaveforms, Labelled(TemplatesWaveforms, ""))
	assert.Equal(t, "params.py", Labelled("params.py", "probe00"))
	assert.Equal(t, "spikes.times.a.npy", Labelled("spikes.times.a.npy", "b"))
}

func TestIsObjectFile(t *testing.T) {
	assert.True(t, IsObjectFile(ChannelsRawInd))
	assert.True(t, IsObjectFile("clusters.metrics.ks2.csv"))
	assert.False(t, IsObjectFile("params.py"))
	assert.False(t, IsObjectFile("whitening.mat.npy"))
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("temp_wh.dat") })
	assert.Equal(t, "clusters", MustParse(ClustersAmps).Object)
}
