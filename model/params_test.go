package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParamsKilosort(t *testing.T) {
	src := `dat_path = 'continuous.dat'
n_channels_dat = 385
dtype = 'int16'
offset = 0
sample_rate = 30000.
hp_filtered = False  # set by kilosort
`
	p, err := ParseParams(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"continuous.dat"}, p.DatPath)
	assert.Equal(t, 385, p.NChannelsDat)
	assert.Equal(t, "int16", p.DType)
	assert.Equal(t, 0, p.Offset)
	assert.Equal(t, 30000.0, p.SampleRate)
	assert.False(t, p.HPFiltered)
	assert.Len(t, p.Raw, 6)
}

func TestParseParamsLiterals(t *testing.T) {
	src := `# header comment
dat_path = [r'C:\data\a.bin', "b#1.bin"]
sample_rate = 25000
hp_filtered = True
extra = None
tag = 'it\'s'
pair = (1, 2.5)
`
	p, err := ParseParams(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []string{`C:\data\a.bin`, "b#1.bin"}, p.DatPath)
	assert.Equal(t, 25000.0, p.SampleRate)
	assert.True(t, p.HPFiltered)
	assert.Nil(t, p.Raw["extra"])
	assert.Equal(t, "it's", p.Raw["tag"])
	assert.Equal(t, []any{int64(1), 2.5}, p.Raw["pair"])
}

func TestParseParamsRejects(t *testing.T) {
	for _, src := range []string{
		"import os",
		"1x = 3",
		"a = ",
		"a = [1, 2",
		"a = 'open",
		"a = os.path.join('x')",
		"n_channels_dat = 'many'",
		"sample_rate = 'fast'",
		"dat_path = [1, 2]",
		"hp_filtered = 1",
	} {
		_, err := ParseParams(strings.NewReader(src))
		assert.ErrorIs(t, err, ErrParams, src)
	}
}

func TestLoadParamsMissing(t *testing.T) {
	_, err := LoadParams("does-not-exist/params.py")
	assert.Error(t, err)
}
