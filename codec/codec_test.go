package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	CRC32C uint32 `json:"crc32c"`
}

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		c, err := Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
	assert.Equal(t, Default.Name(), Names()[0])

	_, err := Lookup("msgpack")
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestCodecsInteroperate(t *testing.T) {
	in := []entry{{Name: "spikes.times.npy", Size: 1024, CRC32C: 0xdeadbeef}}

	for _, enc := range []Codec{JSON{}, GoJSON{}} {
		for _, dec := range []Codec{JSON{}, GoJSON{}} {
			data, err := enc.Marshal(in)
			require.NoError(t, err)

			var out []entry
			require.NoError(t, dec.Unmarshal(data, &out), "%s -> %s", enc.Name(), dec.Name())
			assert.Equal(t, in, out)
		}
	}
}

func TestCodecsAgree(t *testing.T) {
	v := entry{Name: "a", Size: 1, CRC32C: 2}
	a, err := JSON{}.Marshal(v)
	require.NoError(t, err)
	b, err := GoJSON{}.Marshal(v)
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), "\n  \"name\": \"a\"")
}

func TestMarshalError(t *testing.T) {
	for _, c := range []Codec{JSON{}, GoJSON{}} {
		_, err := c.Marshal(func() {})
		assert.Error(t, err, c.Name())
	}
}
