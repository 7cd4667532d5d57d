package npy

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Decode converts a raw payload into an Array[T], whatever the on-disk
// element type. Fortran-ordered payloads are transposed into C order.
func Decode[T Number](h Header, payload []byte) (*Array[T], error) {
	dt, err := ParseDType(h.Descr)
	if err != nil {
		return nil, err
	}
	size, err := h.PayloadSize()
	if err != nil {
		return nil, err
	}
	if len(payload) < size {
		return nil, fmt.Errorf("%w: payload has %d bytes, shape %v needs %d", ErrFormat, len(payload), h.Shape, size)
	}
	n := size / dt.Size

	get, err := reader[T](dt)
	if err != nil {
		return nil, err
	}
	data := make([]T, n)
	for i := range data {
		data[i] = get(payload[i*dt.Size:])
	}

	if h.FortranOrder && len(h.Shape) > 1 {
		data = fortranToC(data, h.Shape)
	}
	return &Array[T]{Shape: append([]int(nil), h.Shape...), Data: data}, nil
}

func reader[T Number](dt DType) (func([]byte) T, error) {
	bo := dt.byteOrder()
	switch dt.Kind {
	case 'b':
		return func(b []byte) T {
			if b[0] != 0 {
				return 1
			}
			return 0
		}, nil
	case 'i':
		switch dt.Size {
		case 1:
			return func(b []byte) T { return T(int8(b[0])) }, nil
		case 2:
			return func(b []byte) T { return T(int16(bo.Uint16(b))) }, nil
		case 4:
			return func(b []byte) T { return T(int32(bo.Uint32(b))) }, nil
		case 8:
			return func(b []byte) T { return T(int64(bo.Uint64(b))) }, nil
		}
	case 'u':
		switch dt.Size {
		case 1:
			return func(b []byte) T { return T(b[0]) }, nil
		case 2:
			return func(b []byte) T { return T(bo.Uint16(b)) }, nil
		case 4:
			return func(b []byte) T { return T(bo.Uint32(b)) }, nil
		case 8:
			return func(b []byte) T { return T(bo.Uint64(b)) }, nil
		}
	case 'f':
		switch dt.Size {
		case 4:
			return func(b []byte) T { return T(math.Float32frombits(bo.Uint32(b))) }, nil
		case 8:
			return func(b []byte) T { return T(math.Float64frombits(bo.Uint64(b))) }, nil
		}
	}
	return nil, fmt.Errorf("%w: unsupported dtype %s", ErrFormat, dt)
}

func fortranToC[T Number](data []T, shape []int) []T {
	out := make([]T, len(data))
	idx := make([]int, len(shape))
	for c := range out {
		f, stride := 0, 1
		for k, d := range shape {
			f += idx[k] * stride
			stride *= d
		}
		out[c] = data[f]
		for k := len(shape) - 1; k >= 0; k-- {
			idx[k]++
			if idx[k] < shape[k] {
				break
			}
			idx[k] = 0
		}
	}
	return out
}

// Encode returns the little-endian payload bytes of a.
func Encode[T Number](a *Array[T]) []byte {
	switch d := any(a.Data).(type) {
	case []int8:
		out := make([]byte, len(d))
		for i, v := range d {
			out[i] = byte(v)
		}
		return out
	case []uint8:
		return append([]byte(nil), d...)
	case []int16:
		out := make([]byte, 2*len(d))
		for i, v := range d {
			binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
		}
		return out
	case []uint16:
		out := make([]byte, 2*len(d))
		for i, v := range d {
			binary.LittleEndian.PutUint16(out[2*i:], v)
		}
		return out
	case []int32:
		out := make([]byte, 4*len(d))
		for i, v := range d {
			binary.LittleEndian.PutUint32(out[4*i:], uint32(v))
		}
		return out
	case []uint32:
		out := make([]byte, 4*len(d))
		for i, v := range d {
			binary.LittleEndian.PutUint32(out[4*i:], v)
		}
		return out
	case []int64:
		out := make([]byte, 8*len(d))
		for i, v := range d {
			binary.LittleEndian.PutUint64(out[8*i:], uint64(v))
		}
		return out
	case []uint64:
		out := make([]byte, 8*len(d))
		for i, v := range d {
			binary.LittleEndian.PutUint64(out[8*i:], v)
		}
		return out
	case []float32:
		out := make([]byte, 4*len(d))
		for i, v := range d {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out
	case []float64:
		out := make([]byte, 8*len(d))
		for i, v := range d {
			binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
		}
		return out
	}
	return nil
}

// Read decodes a complete .npy stream.
func Read[T Number](r io.Reader) (*Array[T], error) {
	h, _, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	size, err := h.PayloadSize()
	if err != nil {
		return nil, err
	}
	// The buffer grows with the bytes actually present, not the header's claim.
	var payload bytes.Buffer
	if n, err := io.CopyN(&payload, r, int64(size)); err != nil {
		return nil, fmt.Errorf("%w: truncated payload: %d of %d bytes: %v", ErrFormat, n, size, err)
	}
	return Decode[T](h, payload.Bytes())
}

// Write encodes a as a .npy stream and returns the number of bytes written.
func Write[T Number](w io.Writer, a *Array[T]) (int64, error) {
	if len(a.Data) != a.Header().Size() {
		return 0, fmt.Errorf("%w: %d elements do not fit shape %v", ErrShape, len(a.Data), a.Shape)
	}
	n, err := WriteHeader(w, a.Header())
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(Encode(a))
	return int64(n + m), err
}

// Load reads the .npy file at path.
func Load[T Number](path string) (*Array[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	a, err := Read[T](bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Save writes a to path, replacing any existing file.
func Save[T Number](path string, a *Array[T]) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if _, err := Write(w, a); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
