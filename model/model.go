// Package model loads a spike sorting output directory, in phy/Kilosort
// or ALF layout, into a read-only TemplateModel.
//
// Every array is looked up under its phy file name first and its ALF name
// second; labelled ALF names (spikes.times.probe00.npy) are accepted.
// Quantities the directory does not store are derived:
//
//   - spike times from spike samples and the sample rate
//   - spike clusters from spike templates
//   - the channel map as 0..n-1 and every channel on probe 0
//   - template peak channels, amplitudes and waveform durations from the
//     (unwhitened) template waveforms
package model

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/hupe1980/phyalf/internal/mmap"
	"github.com/hupe1980/phyalf/npy"
	"github.com/hupe1980/phyalf/sparse"
)

// ErrMissing is returned when a required array is absent.
var ErrMissing = errors.New("model: required array not found")

// TemplateModel is a loaded sorting result. It is never modified after Load.
type TemplateModel struct {
	dir    string
	params *Params

	spikeSamples   []int64
	spikeTimes     []float64
	spikeTemplates []int64
	spikeClusters  []int64
	amplitudes     []float64

	channelPositions *npy.Array[float64]
	channelMapping   []int64
	channelProbes    []int64

	templates *sparse.Tensor
	features  *sparse.Tensor

	templatesChannels  []int64
	templatesAmps      []float64
	templatesDurations []float64
}

// Load reads the sorting result stored in dir. dir may also be the path of
// its params.py.
func Load(dir string) (*TemplateModel, error) {
	if filepath.Base(dir) == "params.py" {
		dir = filepath.Dir(dir)
	}
	m := &TemplateModel{dir: dir}
	l := loader{dir: dir}

	params, err := LoadParams(filepath.Join(dir, "params.py"))
	if err != nil {
		return nil, err
	}
	m.params = params

	if err := m.loadSpikes(&l); err != nil {
		return nil, err
	}
	if err := m.loadChannels(&l); err != nil {
		return nil, err
	}
	if err := m.loadTemplates(&l); err != nil {
		return nil, err
	}
	if err := m.loadFeatures(&l); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *TemplateModel) loadSpikes(l *loader) error {
	sr := m.params.SampleRate

	samples, err := loadVector[int64](l, "spike_times.npy", "spikes.samples")
	if err != nil {
		return err
	}
	times, err := loadVector[float64](l, "", "spikes.times")
	if err != nil {
		return err
	}
	switch {
	case samples != nil:
		m.spikeSamples = samples.Data
		if times != nil {
			m.spikeTimes = times.Data
		} else {
			if sr <= 0 {
				return fmt.Errorf("%w: sample_rate is required to convert samples to seconds", ErrParams)
			}
			m.spikeTimes = make([]float64, len(samples.Data))
			for i, s := range samples.Data {
				m.spikeTimes[i] = float64(s) / sr
			}
		}
	case times != nil:
		m.spikeTimes = times.Data
		m.spikeSamples = make([]int64, len(times.Data))
		for i, t := range times.Data {
			m.spikeSamples[i] = int64(math.Round(t * sr))
		}
	default:
		return fmt.Errorf("%w: spike_times.npy", ErrMissing)
	}
	n := len(m.spikeTimes)

	tpl, err := loadVector[int64](l, "spike_templates.npy", "spikes.templates")
	if err != nil {
		return err
	}
	clu, err := loadVector[int64](l, "spike_clusters.npy", "spikes.clusters")
	if err != nil {
		return err
	}
	switch {
	case tpl != nil:
		m.spikeTemplates = tpl.Data
	case clu != nil:
		m.spikeTemplates = clu.Data
	default:
		return fmt.Errorf("%w: spike_templates.npy", ErrMissing)
	}
	m.spikeClusters = m.spikeTemplates
	if clu != nil {
		m.spikeClusters = clu.Data
	}

	amps, err := loadVector[float64](l, "amplitudes.npy", "spikes.amps")
	if err != nil {
		return err
	}
	if amps == nil {
		return fmt.Errorf("%w: amplitudes.npy", ErrMissing)
	}
	m.amplitudes = amps.Data

	for name, got := range map[string]int{
		"spike templates": len(m.spikeTemplates),
		"spike clusters":  len(m.spikeClusters),
		"amplitudes":      len(m.amplitudes),
	} {
		if got != n {
			return fmt.Errorf("model: %s has %d entries for %d spikes", name, got, n)
		}
	}
	return nil
}

func (m *TemplateModel) loadChannels(l *loader) error {
	pos, err := load[float64](l, "channel_positions.npy", "channels.localCoordinates")
	if err != nil {
		return err
	}
	if pos == nil {
		return fmt.Errorf("%w: channel_positions.npy", ErrMissing)
	}
	if pos.NDim() != 2 || pos.Shape[1] != 2 {
		return fmt.Errorf("model: channel positions must be [n, 2], got %v", pos.Shape)
	}
	m.channelPositions = pos
	n := pos.Len()

	mapping, err := loadVector[int64](l, "channel_map.npy", "")
	if err != nil {
		return err
	}
	if mapping != nil {
		m.channelMapping = mapping.Data
	} else {
		m.channelMapping = make([]int64, n)
		for i := range m.channelMapping {
			m.channelMapping[i] = int64(i)
		}
	}

	probes, err := loadVector[int64](l, "channel_probe.npy", "channels.probes")
	if err != nil {
		return err
	}
	if probes != nil {
		m.channelProbes = probes.Data
	} else {
		m.channelProbes = make([]int64, n)
	}

	if len(m.channelMapping) != n || len(m.channelProbes) != n {
		return fmt.Errorf("model: channel map (%d) and probes (%d) must match %d positions",
			len(m.channelMapping), len(m.channelProbes), n)
	}
	return nil
}

func (m *TemplateModel) loadTemplates(l *loader) error {
	data, err := load[float64](l, "templates.npy", "templates.waveforms")
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("%w: templates.npy", ErrMissing)
	}
	if data.NDim() != 3 {
		return fmt.Errorf("model: templates must be [template, sample, channel], got %v", data.Shape)
	}
	cols, err := load[int64](l, "template_ind.npy", "templates.waveformsChannels")
	if err != nil {
		return err
	}

	if cols == nil {
		winv, err := load[float64](l, "whitening_mat_inv.npy", "")
		if err != nil {
			return err
		}
		if winv != nil {
			if data, err = unwhiten(data, winv); err != nil {
				return err
			}
		}
	}

	t, err := sparse.New(data, cols)
	if err != nil {
		return err
	}
	m.templates = t
	m.templatesChannels, m.templatesAmps, m.templatesDurations = templateStats(t, m.params.SampleRate)
	return nil
}

func (m *TemplateModel) loadFeatures(l *loader) error {
	data, err := load[float64](l, "pc_features.npy", "")
	if err != nil || data == nil {
		return err
	}
	ind, err := load[int64](l, "pc_feature_ind.npy", "")
	if err != nil {
		return err
	}
	if ind == nil {
		return fmt.Errorf("%w: pc_feature_ind.npy", ErrMissing)
	}
	f, err := sparse.NewGrouped(data, ind)
	if err != nil {
		return err
	}
	m.features = f
	return nil
}

// unwhiten multiplies every template's [sample, channel] matrix by the
// inverse whitening matrix.
func unwhiten(data, winv *npy.Array[float64]) (*npy.Array[float64], error) {
	nT, nS, nC := data.Shape[0], data.Shape[1], data.Shape[2]
	if winv.NDim() != 2 || winv.Shape[0] != nC || winv.Shape[1] != nC {
		return nil, fmt.Errorf("model: whitening matrix must be [%d, %d], got %v", nC, nC, winv.Shape)
	}
	out := npy.NewArray[float64](nT, nS, nC)
	for r := range nT * nS {
		src := data.Data[r*nC : (r+1)*nC]
		dst := out.Data[r*nC : (r+1)*nC]
		for k, v := range src {
			if v == 0 {
				continue
			}
			row := winv.Data[k*nC : (k+1)*nC]
			for j := range dst {
				dst[j] += v * row[j]
			}
		}
	}
	return out, nil
}

// templateStats derives the peak channel (largest peak-to-peak), its
// peak-to-peak amplitude, and the trough-to-peak duration in seconds.
func templateStats(t *sparse.Tensor, sampleRate float64) (channels []int64, amps, durations []float64) {
	shape := t.Shape()
	nT, nS, nL := shape[0], shape[1], shape[2]
	channels = make([]int64, nT)
	amps = make([]float64, nT)
	durations = make([]float64, nT)

	for tpl := range nT {
		base := tpl * nS * nL
		best, bestPtp := -1, math.Inf(-1)
		for j := range nL {
			if t.Col(tpl, j) < 0 {
				continue
			}
			lo, hi := math.Inf(1), math.Inf(-1)
			for s := range nS {
				v := t.Value(base + s*nL + j)
				lo, hi = min(lo, v), max(hi, v)
			}
			if hi-lo > bestPtp {
				best, bestPtp = j, hi-lo
			}
		}
		if best < 0 {
			continue
		}
		channels[tpl] = t.Col(tpl, best)
		amps[tpl] = bestPtp

		argMin, argMax := 0, 0
		for s := range nS {
			v := t.Value(base + s*nL + best)
			if v < t.Value(base+argMin*nL+best) {
				argMin = s
			}
			if v > t.Value(base+argMax*nL+best) {
				argMax = s
			}
		}
		if sampleRate > 0 {
			d := argMax - argMin
			if d < 0 {
				d = -d
			}
			durations[tpl] = float64(d) / sampleRate
		}
	}
	return channels, amps, durations
}

// loader resolves array names inside one directory.
type loader struct {
	dir string
}

// path returns the first existing file among the phy name and the ALF
// object.attribute name, plain or labelled.
func (l *loader) path(phy, alfName string) (string, bool) {
	if phy != "" {
		p := filepath.Join(l.dir, phy)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	if alfName == "" {
		return "", false
	}
	p := filepath.Join(l.dir, alfName+".npy")
	if _, err := os.Stat(p); err == nil {
		return p, true
	}
	matches, _ := filepath.Glob(filepath.Join(l.dir, alfName+".*.npy"))
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}

// load maps and decodes an array. A missing file yields (nil, nil).
func load[T npy.Number](l *loader, phy, alfName string) (*npy.Array[T], error) {
	p, ok := l.path(phy, alfName)
	if !ok {
		return nil, nil
	}
	a, err := loadMapped[T](p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return a, nil
}

// loadVector is load for per-spike and per-channel arrays, which Kilosort
// sometimes stores as [n, 1] columns.
func loadVector[T npy.Number](l *loader, phy, alfName string) (*npy.Array[T], error) {
	a, err := load[T](l, phy, alfName)
	if err != nil || a == nil {
		return a, err
	}
	if a.NDim() == 2 && a.Shape[1] == 1 {
		return a.Reshape(a.Shape[0])
	}
	if a.NDim() != 1 {
		return nil, fmt.Errorf("model: %s must be a vector, got shape %v", phy+alfName, a.Shape)
	}
	return a, nil
}

func loadMapped[T npy.Number](path string) (*npy.Array[T], error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	h, off, err := npy.ReadHeader(bytes.NewReader(m.Bytes()))
	if err != nil {
		return nil, err
	}
	size, err := h.PayloadSize()
	if err != nil {
		return nil, err
	}
	payload, err := m.Section(off, size, mmap.Sequential)
	if err != nil {
		return nil, fmt.Errorf("%w: payload of %d bytes at offset %d exceeds file", npy.ErrFormat, size, off)
	}
	return npy.Decode[T](h, payload)
}

// Dir returns the directory the model was loaded from.
func (m *TemplateModel) Dir() string { return m.dir }

// Params returns the parsed params.py.
func (m *TemplateModel) Params() *Params { return m.params }

// SampleRate returns the recording sample rate in Hz.
func (m *TemplateModel) SampleRate() float64 { return m.params.SampleRate }

// NSpikes returns the number of spikes.
func (m *TemplateModel) NSpikes() int { return len(m.spikeTimes) }

// NChannels returns the number of channels with a known position.
func (m *TemplateModel) NChannels() int { return m.channelPositions.Len() }

func (m *TemplateModel) SpikeTimes() []float64      { return m.spikeTimes }
func (m *TemplateModel) SpikeSamples() []int64      { return m.spikeSamples }
func (m *TemplateModel) SpikeTemplates() []int64    { return m.spikeTemplates }
func (m *TemplateModel) SpikeClusters() []int64     { return m.spikeClusters }
func (m *TemplateModel) Amplitudes() []float64      { return m.amplitudes }
func (m *TemplateModel) ChannelProbes() []int64     { return m.channelProbes }
func (m *TemplateModel) ChannelMapping() []int64    { return m.channelMapping }
func (m *TemplateModel) TemplatesChannels() []int64 { return m.templatesChannels }

// ChannelPositions returns the [channel, 2] probe coordinates.
func (m *TemplateModel) ChannelPositions() *npy.Array[float64] { return m.channelPositions }

// TemplatesAmplitudes returns each template's peak-to-peak amplitude on its
// peak channel.
func (m *TemplateModel) TemplatesAmplitudes() []float64 { return m.templatesAmps }

// TemplatesWaveformsDurations returns each template's trough-to-peak time in
// seconds.
func (m *TemplateModel) TemplatesWaveformsDurations() []float64 { return m.templatesDurations }

// SparseTemplates returns the template waveforms.
func (m *TemplateModel) SparseTemplates() *sparse.Tensor { return m.templates }

// SparseFeatures returns the principal component features, or nil when the
// directory has none.
func (m *TemplateModel) SparseFeatures() *sparse.Tensor { return m.features }

// NTemplates returns the number of templates.
func (m *TemplateModel) NTemplates() int { return m.templates.Rows() }

// Describe writes a short human-readable summary of the model.
func (m *TemplateModel) Describe(w io.Writer) error {
	shape := m.templates.Shape()
	var duration float64
	if n := len(m.spikeTimes); n > 0 {
		duration = m.spikeTimes[n-1]
	}
	features := "no"
	if m.features != nil {
		features = fmt.Sprintf("%v", m.features.Shape())
	}
	layout := "dense"
	if !m.templates.IsDense() {
		layout = "sparse"
	}

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	rows := [][2]string{
		{"data files", strings.Join(m.params.DatPath, ", ")},
		{"sample rate", fmt.Sprintf("%g Hz", m.params.SampleRate)},
		{"duration", fmt.Sprintf("%.3f s", duration)},
		{"dtype", m.params.DType},
		{"# channels (dat)", strconv.Itoa(m.params.NChannelsDat)},
		{"# channels", strconv.Itoa(m.NChannels())},
		{"# probes", strconv.Itoa(countDistinct(m.channelProbes))},
		{"# spikes", strconv.Itoa(m.NSpikes())},
		{"# clusters", strconv.Itoa(countDistinct(m.spikeClusters))},
		{"# templates", strconv.Itoa(m.NTemplates())},
		{"template samples", strconv.Itoa(shape[1])},
		{"templates", layout},
		{"features", features},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func countDistinct(ids []int64) int {
	seen := make(map[int64]struct{}, 64)
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
