package npy

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawFile(t *testing.T, dict string, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(Magic)
	buf.Write([]byte{1, 0})
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(len(dict)+1)))
	buf.WriteString(dict)
	buf.WriteByte('\n')
	buf.Write(payload)
	return buf.Bytes()
}

func TestWriteHeaderAlignment(t *testing.T) {
	for _, shape := range [][]int{{}, {3}, {10, 32}, {1000000, 3, 32}} {
		var buf bytes.Buffer
		n, err := WriteHeader(&buf, Header{Descr: "<f8", Shape: shape})
		require.NoError(t, err)
		assert.Equal(t, n, buf.Len())
		assert.Zero(t, n%alignment, "shape %v", shape)
		assert.Equal(t, byte('\n'), buf.Bytes()[n-1])

		h, off, err := ReadHeader(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, n, off)
		assert.Equal(t, shape, h.Shape)
		assert.Equal(t, "<f8", h.Descr)
		assert.False(t, h.FortranOrder)
	}
}

func TestWriteHeaderOneDimensional(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteHeader(&buf, Header{Descr: "<i4", Shape: []int{7}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "'shape': (7,)")
}

func TestWriteHeaderVersion2(t *testing.T) {
	shape := make([]int, 30000)
	for i := range shape {
		shape[i] = 1
	}
	var buf bytes.Buffer
	n, err := WriteHeader(&buf, Header{Descr: "|u1", Shape: shape})
	require.NoError(t, err)
	assert.Equal(t, byte(2), buf.Bytes()[6])
	assert.Zero(t, n%alignment)

	h, off, err := ReadHeader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, n, off)
	assert.Len(t, h.Shape, 30000)
}

func TestReadHeaderRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"bad magic", []byte("\x93NUMPX\x01\x00\x00\x00")},
		{"short", []byte("\x93NUM")},
		{"bad version", append([]byte(Magic), 4, 0, 0, 0)},
		{"unknown key", rawFile(t, "{'descr': '<f8', 'fortran_order': False, 'shape': (1,), 'extra': 1}", nil)},
		{"missing key", rawFile(t, "{'descr': '<f8', 'shape': (1,)}", nil)},
		{"duplicate key", rawFile(t, "{'descr': '<f8', 'descr': '<f8', 'fortran_order': False, 'shape': (1,)}", nil)},
		{"paren int", rawFile(t, "{'descr': '<f8', 'fortran_order': False, 'shape': (3)}", nil)},
		{"structured dtype", rawFile(t, "{'descr': [('a', '<f8')], 'fortran_order': False, 'shape': (1,)}", nil)},
		{"object dtype", rawFile(t, "{'descr': '|O', 'fortran_order': False, 'shape': (1,)}", nil)},
		{"bad bool", rawFile(t, "{'descr': '<f8', 'fortran_order': false, 'shape': (1,)}", nil)},
		{"trailing", rawFile(t, "{'descr': '<f8', 'fortran_order': False, 'shape': (1,)} x", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadHeader(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestReadHeaderAcceptsNumpyVariants(t *testing.T) {
	data := rawFile(t, `{"descr": ">i2", "fortran_order": True, "shape": (2, 3)}`, nil)
	h, _, err := ReadHeader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, ">i2", h.Descr)
	assert.True(t, h.FortranOrder)
	assert.Equal(t, []int{2, 3}, h.Shape)
}

func TestParseDType(t *testing.T) {
	dt, err := ParseDType("=u4")
	require.NoError(t, err)
	assert.Equal(t, DType{Order: '<', Kind: 'u', Size: 4}, dt)
	assert.Equal(t, "<u4", dt.String())

	for _, bad := range []string{"", "<f2", "<c16", "<U8", "xf8", "<i3", "<fx"} {
		_, err := ParseDType(bad)
		assert.ErrorIs(t, err, ErrFormat, bad)
	}
}

func TestArrayRoundTrip(t *testing.T) {
	a, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := Write(&buf, a)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	got, err := Read[float32](&buf)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestDecodeConvertsElementType(t *testing.T) {
	payload := make([]byte, 16)
	binary.LittleEndian.PutUint64(payload, 3)
	binary.LittleEndian.PutUint64(payload[8:], 1<<40)

	got, err := Decode[float64](Header{Descr: "<u8", Shape: []int{2}}, payload)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1 << 40}, got.Data)

	be := []byte{0xff, 0xfe}
	got16, err := Decode[int64](Header{Descr: ">i2", Shape: []int{1}}, be)
	require.NoError(t, err)
	assert.Equal(t, []int64{-2}, got16.Data)

	gotBool, err := Decode[int8](Header{Descr: "|b1", Shape: []int{3}}, []byte{0, 1, 7})
	require.NoError(t, err)
	assert.Equal(t, []int8{0, 1, 1}, gotBool.Data)
}

func TestDecodeFortranOrder(t *testing.T) {
	payload := make([]byte, 6*8)
	for i, v := range []float64{0, 3, 1, 4, 2, 5} {
		binary.LittleEndian.PutUint64(payload[8*i:], math.Float64bits(v))
	}
	got, err := Decode[float64](Header{Descr: "<f8", FortranOrder: true, Shape: []int{2, 3}}, payload)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, got.Data)
	assert.Equal(t, 5.0, got.At(1, 2))
}

func TestDecodeShortPayload(t *testing.T) {
	_, err := Decode[float64](Header{Descr: "<f8", Shape: []int{4}}, make([]byte, 8))
	assert.ErrorIs(t, err, ErrFormat)
}

func TestReadRejectsOverflowingShape(t *testing.T) {
	for _, tc := range []struct {
		descr string
		shape []int
	}{
		{"<i8", []int{1 << 62}},
		{"<f4", []int{1 << 40, 1 << 40}},
		{"|u1", []int{math.MaxInt, 2}},
		{"<f8", []int{3, -1}},
	} {
		var buf bytes.Buffer
		_, err := WriteHeader(&buf, Header{Descr: tc.descr, Shape: tc.shape})
		require.NoError(t, err)

		assert.NotPanics(t, func() {
			_, err = Read[int64](bytes.NewReader(buf.Bytes()))
		})
		assert.ErrorIs(t, err, ErrFormat, "%s %v", tc.descr, tc.shape)

		_, err = Decode[int64](Header{Descr: tc.descr, Shape: tc.shape}, nil)
		assert.ErrorIs(t, err, ErrFormat, "%s %v", tc.descr, tc.shape)
	}
}

func TestReadTruncatedLargeClaim(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteHeader(&buf, Header{Descr: "<f8", Shape: []int{1 << 40}})
	require.NoError(t, err)
	buf.Write(make([]byte, 16))

	_, err = Read[float64](&buf)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestFromSliceShapeMismatch(t *testing.T) {
	_, err := FromSlice([]int32{1, 2, 3}, 2, 2)
	assert.ErrorIs(t, err, ErrShape)
}

func TestArrayAccessors(t *testing.T) {
	a := NewArray[int64](3, 2)
	assert.Equal(t, 2, a.NDim())
	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 6, a.Size())
	assert.Equal(t, 2, a.RowSize())

	a.Row(1)[0] = 9
	assert.Equal(t, int64(9), a.At(1, 0))

	c := a.Clone()
	c.Data[2] = 0
	assert.Equal(t, int64(9), a.Data[2])

	r, err := a.Reshape(6)
	require.NoError(t, err)
	assert.Equal(t, []int{6}, r.Shape)

	f := Cast[float64](a)
	assert.Equal(t, 9.0, f.Data[2])
	assert.Equal(t, "<f8", f.Header().Descr)
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spikes.times.npy")
	a := Vector([]float64{0.1, 0.25, 1.5})
	require.NoError(t, Save(path, a))

	got, err := Load[float64](path)
	require.NoError(t, err)
	assert.Equal(t, a.Data, got.Data)

	h, err := ReadHeaderFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, h.Shape)
}

func TestSqueeze(t *testing.T) {
	a, err := FromSlice([]int32{4, 5, 6}, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, a.Squeeze().Shape)

	s := NewArray[float64](1, 1)
	assert.Equal(t, []int{}, s.Squeeze().Shape)
}
