package model

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/phyalf/npy"
)

const sampleRate = 30000.0

func save[T npy.Number](t *testing.T, dir, name string, data []T, shape ...int) {
	t.Helper()
	a, err := npy.FromSlice(data, shape...)
	require.NoError(t, err)
	require.NoError(t, npy.Save(filepath.Join(dir, name), a))
}

func writeParams(t *testing.T, dir string, sr float64) {
	t.Helper()
	src := "dat_path = 'raw.dat'\nn_channels_dat = 4\ndtype = 'int16'\noffset = 0\n" +
		"sample_rate = " + strconv.FormatFloat(sr, 'f', -1, 64) + "\nhp_filtered = True\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "params.py"), []byte(src), 0o644))
}

// phyFixture writes a dense Kilosort-style directory with three templates.
// Template k peaks on channel k+1 with a trough of -2(k+1) at sample 1 and
// a peak of 1 at sample 3.
func phyFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeParams(t, dir, sampleRate)

	save(t, dir, "spike_times.npy", []uint64{30, 60, 90, 120}, 4)
	save(t, dir, "spike_templates.npy", []uint32{0, 1, 2, 1}, 4)
	save(t, dir, "amplitudes.npy", []float32{1, 2, 3, 4}, 4, 1)
	save(t, dir, "channel_positions.npy", []float64{0, 0, 0, 10, 0, 20, 0, 30}, 4, 2)

	const nT, nS, nC = 3, 5, 4
	tpl := make([]float32, nT*nS*nC)
	for k := range nT {
		c := k + 1
		tpl[k*nS*nC+1*nC+c] = float32(-2 * (k + 1))
		tpl[k*nS*nC+3*nC+c] = 1
	}
	save(t, dir, "templates.npy", tpl, nT, nS, nC)
	return dir
}

func TestLoadPhyDirectory(t *testing.T) {
	m, err := Load(phyFixture(t))
	require.NoError(t, err)

	assert.Equal(t, 4, m.NSpikes())
	assert.Equal(t, []int64{30, 60, 90, 120}, m.SpikeSamples())
	assert.InDeltaSlice(t, []float64{0.001, 0.002, 0.003, 0.004}, m.SpikeTimes(), 1e-12)
	assert.Equal(t, []int64{0, 1, 2, 1}, m.SpikeClusters())
	assert.Equal(t, m.SpikeTemplates(), m.SpikeClusters())
	assert.Equal(t, []float64{1, 2, 3, 4}, m.Amplitudes())

	assert.Equal(t, 4, m.NChannels())
	assert.Equal(t, []int64{0, 1, 2, 3}, m.ChannelMapping())
	assert.Equal(t, []int64{0, 0, 0, 0}, m.ChannelProbes())
	assert.Equal(t, 20.0, m.ChannelPositions().At(2, 1))

	assert.Equal(t, 3, m.NTemplates())
	assert.True(t, m.SparseTemplates().IsDense())
	assert.Equal(t, []int64{1, 2, 3}, m.TemplatesChannels())
	assert.Equal(t, []float64{3, 5, 7}, m.TemplatesAmplitudes())
	for _, d := range m.TemplatesWaveformsDurations() {
		assert.InDelta(t, 2/sampleRate, d, 1e-12)
	}
	assert.Nil(t, m.SparseFeatures())

	assert.Equal(t, []string{"raw.dat"}, m.Params().DatPath)
	assert.Equal(t, sampleRate, m.SampleRate())
}

func TestLoadAcceptsParamsPath(t *testing.T) {
	dir := phyFixture(t)
	m, err := Load(filepath.Join(dir, "params.py"))
	require.NoError(t, err)
	assert.Equal(t, dir, m.Dir())
}

func TestLoadSpikeClustersOverrideTemplates(t *testing.T) {
	dir := phyFixture(t)
	save(t, dir, "spike_clusters.npy", []int32{5, 5, 7, 9}, 4)

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 5, 7, 9}, m.SpikeClusters())
	assert.Equal(t, []int64{0, 1, 2, 1}, m.SpikeTemplates())
}

func TestLoadUnwhitensDenseTemplates(t *testing.T) {
	dir := phyFixture(t)
	winv := make([]float64, 16)
	for i := range 4 {
		winv[i*4+i] = 2
	}
	save(t, dir, "whitening_mat_inv.npy", winv, 4, 4)

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 10, 14}, m.TemplatesAmplitudes())
	assert.Equal(t, []int64{1, 2, 3}, m.TemplatesChannels())
}

func TestLoadSparseTemplatesAndFeatures(t *testing.T) {
	dir := phyFixture(t)
	// Two local slots per template. Template 1 only uses one slot.
	tpl := []float64{
		0, 0, 0, -1, 0, 0, 0, 4, 0, 0,
		0, 0, -3, 0, 0, 0, 1, 0, 0, 0,
		0, 0, 0, -1, 0, 0, 0, 1, 0, 0,
	}
	save(t, dir, "templates.npy", tpl, 3, 5, 2)
	save(t, dir, "template_ind.npy", []int64{3, 1, 0, -1, 2, 3}, 3, 2)
	save(t, dir, "pc_features.npy", make([]float32, 4*3*2), 4, 3, 2)
	save(t, dir, "pc_feature_ind.npy", []int64{1, 2, 2, 3, 3, 0}, 3, 2)

	m, err := Load(dir)
	require.NoError(t, err)

	assert.False(t, m.SparseTemplates().IsDense())
	assert.Equal(t, []int64{1, 0, 3}, m.TemplatesChannels())
	assert.Equal(t, []float64{5, 4, 2}, m.TemplatesAmplitudes())

	f := m.SparseFeatures()
	require.NotNil(t, f)
	assert.True(t, f.IsGrouped())
	assert.Equal(t, []int{4, 3, 2}, f.Shape())
}

func TestLoadFeaturesRequireIndex(t *testing.T) {
	dir := phyFixture(t)
	save(t, dir, "pc_features.npy", make([]float32, 4*3*2), 4, 3, 2)

	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrMissing)
}

func TestLoadALFDirectory(t *testing.T) {
	dir := t.TempDir()
	writeParams(t, dir, 1000)

	save(t, dir, "spikes.times.npy", []float64{0.5, 1.0}, 2)
	save(t, dir, "spikes.templates.probe00.npy", []int64{0, 0}, 2)
	save(t, dir, "spikes.amps.npy", []float64{1e-4, 2e-4}, 2)
	save(t, dir, "channels.localCoordinates.npy", []float64{0, 0, 16, 20}, 2, 2)
	save(t, dir, "channels.probes.npy", []int64{1, 1}, 2)
	save(t, dir, "templates.waveforms.npy", []float32{0, 0, -1, 2, 0, 0}, 1, 3, 2)
	save(t, dir, "templates.waveformsChannels.npy", []int32{5, 7}, 1, 2)

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []int64{500, 1000}, m.SpikeSamples())
	assert.Equal(t, []float64{0.5, 1.0}, m.SpikeTimes())
	assert.Equal(t, []int64{0, 0}, m.SpikeClusters())
	assert.Equal(t, []int64{1, 1}, m.ChannelProbes())
	assert.Equal(t, []int64{7}, m.TemplatesChannels())
	assert.Equal(t, []float64{2}, m.TemplatesAmplitudes())
}

func TestLoadMissingArrays(t *testing.T) {
	dir := phyFixture(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "amplitudes.npy")))

	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrMissing)
}

func TestLoadRejectsLengthMismatch(t *testing.T) {
	dir := phyFixture(t)
	save(t, dir, "amplitudes.npy", []float32{1, 2}, 2)

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoadRejectsTruncatedPayload(t *testing.T) {
	dir := phyFixture(t)
	path := filepath.Join(dir, "spike_times.npy")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-8], 0o644))

	_, err = Load(dir)
	assert.ErrorIs(t, err, npy.ErrFormat)
}

func TestLoadRejectsOversizedShape(t *testing.T) {
	dir := phyFixture(t)
	var buf bytes.Buffer
	_, err := npy.WriteHeader(&buf, npy.Header{Descr: "<i8", Shape: []int{1 << 62}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spike_times.npy"), buf.Bytes(), 0o644))

	_, err = Load(dir)
	assert.ErrorIs(t, err, npy.ErrFormat)

	buf.Reset()
	_, err = npy.WriteHeader(&buf, npy.Header{Descr: "<i8", Shape: []int{1 << 20}})
	require.NoError(t, err)
	buf.Write(make([]byte, 64))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spike_times.npy"), buf.Bytes(), 0o644))

	_, err = Load(dir)
	assert.ErrorIs(t, err, npy.ErrFormat)
}

func TestDescribe(t *testing.T) {
	m, err := Load(phyFixture(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Describe(&buf))
	out := buf.String()
	assert.Contains(t, out, "raw.dat")
	assert.Regexp(t, `# spikes\s+4\n`, out)
	assert.Regexp(t, `# templates\s+3\n`, out)
	assert.Regexp(t, `templates\s+dense\n`, out)
}
