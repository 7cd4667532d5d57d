package compress

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	for _, typ := range []Type{TypeNone, TypeLZ4, TypeZstd} {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	got, err := ParseType("")
	require.NoError(t, err)
	assert.Equal(t, TypeNone, got)

	_, err = ParseType("gzip")
	assert.Error(t, err)
	assert.Equal(t, "Type(9)", Type(9).String())
}

func TestRoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("spikes.times "), 50000)
	random := make([]byte, 100000)
	r := rand.New(rand.NewPCG(1, 2))
	for i := range random {
		random[i] = byte(r.UintN(256))
	}

	for _, typ := range []Type{TypeNone, TypeLZ4, TypeZstd} {
		for name, data := range map[string][]byte{
			"empty":        nil,
			"compressible": compressible,
			"random":       random,
			"tiny":         []byte("x"),
		} {
			t.Run(typ.String()+"/"+name, func(t *testing.T) {
				framed, err := EncodeBlocks(data, typ, 64*1024)
				require.NoError(t, err)
				got, err := Decode(framed, typ)
				require.NoError(t, err)
				assert.Equal(t, len(data), len(got))
				assert.True(t, bytes.Equal(data, got))
			})
		}
	}
}

func TestCompressibleDataShrinks(t *testing.T) {
	data := bytes.Repeat([]byte{0, 0, 0, 0, 1, 0, 0, 0}, 1<<16)
	for _, typ := range []Type{TypeLZ4, TypeZstd} {
		framed, err := Encode(data, typ)
		require.NoError(t, err)
		assert.Less(t, len(framed), len(data)/4, typ.String())
	}
}

func TestIncompressibleBlocksAreStoredRaw(t *testing.T) {
	data := []byte("abc")
	framed, err := Encode(data, TypeLZ4)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 0, 0, 0, 0, 0, 0, 0, 'a', 'b', 'c'}, framed)
}

func TestDecodeCorrupt(t *testing.T) {
	framed, err := Encode(bytes.Repeat([]byte("abcd"), 4096), TypeZstd)
	require.NoError(t, err)

	for name, data := range map[string][]byte{
		"short header": framed[:4],
		"short block":  framed[:len(framed)-1],
		"garbage":      append(append([]byte{}, framed[:8]...), bytes.Repeat([]byte{0xff}, len(framed)-8)...),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data, TypeZstd)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}
