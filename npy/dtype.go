package npy

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// DType is a parsed numpy type descriptor such as "<f8" or "|u1".
type DType struct {
	Order byte // '<', '>' or '|'
	Kind  byte // 'b', 'i', 'u' or 'f'
	Size  int  // item size in bytes
}

// ParseDType parses a simple (non-structured) numpy descriptor.
func ParseDType(descr string) (DType, error) {
	if len(descr) < 3 {
		return DType{}, fmt.Errorf("%w: invalid dtype %q", ErrFormat, descr)
	}
	dt := DType{Order: descr[0], Kind: descr[1]}
	if dt.Order == '=' {
		dt.Order = '<'
	}
	size, err := strconv.Atoi(descr[2:])
	if err != nil {
		return DType{}, fmt.Errorf("%w: invalid dtype %q", ErrFormat, descr)
	}
	dt.Size = size

	switch dt.Order {
	case '<', '>', '|':
	default:
		return DType{}, fmt.Errorf("%w: invalid byte order in dtype %q", ErrFormat, descr)
	}

	switch {
	case dt.Kind == 'b' && size == 1:
	case (dt.Kind == 'i' || dt.Kind == 'u') && (size == 1 || size == 2 || size == 4 || size == 8):
	case dt.Kind == 'f' && (size == 4 || size == 8):
	default:
		return DType{}, fmt.Errorf("%w: unsupported dtype %q", ErrFormat, descr)
	}
	return dt, nil
}

// String returns the descriptor form.
func (d DType) String() string {
	return string([]byte{d.Order, d.Kind}) + strconv.Itoa(d.Size)
}

func (d DType) byteOrder() binary.ByteOrder {
	if d.Order == '>' {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Number is the set of element types an Array can hold.
type Number interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// DescrOf returns the little-endian descriptor used when writing []T.
func DescrOf[T Number]() string {
	switch any(*new(T)).(type) {
	case int8:
		return "|i1"
	case int16:
		return "<i2"
	case int32:
		return "<i4"
	case int64:
		return "<i8"
	case uint8:
		return "|u1"
	case uint16:
		return "<u2"
	case uint32:
		return "<u4"
	case uint64:
		return "<u8"
	case float32:
		return "<f4"
	default:
		return "<f8"
	}
}
