package compress

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/phyalf/internal/conv"
)

// Type selects the block compression algorithm.
type Type uint8

const (
	// TypeNone stores blobs as is.
	TypeNone Type = iota
	// TypeLZ4 uses LZ4 block compression.
	TypeLZ4
	// TypeZstd uses zstd at the default level.
	TypeZstd
)

// DefaultBlockSize is the uncompressed size of every block but the last.
const DefaultBlockSize = 256 * 1024

const headerSize = 8

// ErrCorrupt is returned for frames that cannot be decoded.
var ErrCorrupt = errors.New("compress: corrupt frame")

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeLZ4:
		return "lz4"
	case TypeZstd:
		return "zstd"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// ParseType is the inverse of Type.String. The empty string means none.
func ParseType(s string) (Type, error) {
	switch s {
	case "", "none":
		return TypeNone, nil
	case "lz4":
		return TypeLZ4, nil
	case "zstd":
		return TypeZstd, nil
	}
	return TypeNone, fmt.Errorf("compress: unknown compression %q", s)
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
}

// Encode frames data with t using blocks of DefaultBlockSize.
func Encode(data []byte, t Type) ([]byte, error) {
	return EncodeBlocks(data, t, DefaultBlockSize)
}

// EncodeBlocks frames data with t using blocks of blockSize bytes.
func EncodeBlocks(data []byte, t Type, blockSize int) ([]byte, error) {
	if t == TypeNone {
		return data, nil
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	var out bytes.Buffer
	out.Grow(len(data)/2 + headerSize)
	for start := 0; start < len(data); start += blockSize {
		block := data[start:min(start+blockSize, len(data))]
		if err := writeBlock(&out, block, t); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

func writeBlock(out *bytes.Buffer, block []byte, t Type) error {
	compressed, err := compressBlock(block, t)
	if err != nil {
		return err
	}
	raw, err := conv.IntToUint32(len(block))
	if err != nil {
		return err
	}
	var stored uint32
	if len(compressed) > 0 && len(compressed) < len(block)*9/10 {
		if stored, err = conv.IntToUint32(len(compressed)); err != nil {
			return err
		}
	} else {
		compressed = block
	}

	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], raw)
	binary.LittleEndian.PutUint32(hdr[4:], stored)
	out.Write(hdr[:])
	out.Write(compressed)
	return nil
}

func compressBlock(block []byte, t Type) ([]byte, error) {
	switch t {
	case TypeLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(block)))
		n, err := lz4.CompressBlock(block, dst, nil)
		if err != nil {
			return nil, err
		}
		return dst[:n], nil
	case TypeZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(block, nil), nil
	}
	return nil, fmt.Errorf("compress: unsupported type %s", t)
}

// Decode reverses Encode.
func Decode(data []byte, t Type) ([]byte, error) {
	if t == TypeNone {
		return data, nil
	}

	var out []byte
	for len(data) > 0 {
		if len(data) < headerSize {
			return nil, fmt.Errorf("%w: truncated block header", ErrCorrupt)
		}
		raw := int64(binary.LittleEndian.Uint32(data[0:]))
		stored := int64(binary.LittleEndian.Uint32(data[4:]))
		data = data[headerSize:]

		if stored == 0 {
			if int64(len(data)) < raw {
				return nil, fmt.Errorf("%w: block of %d bytes, %d left", ErrCorrupt, raw, len(data))
			}
			out = append(out, data[:raw]...)
			data = data[raw:]
			continue
		}
		if int64(len(data)) < stored {
			return nil, fmt.Errorf("%w: block of %d bytes, %d left", ErrCorrupt, stored, len(data))
		}
		block, err := decompressBlock(data[:stored], int(raw), t)
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
		data = data[stored:]
	}
	return out, nil
}

func decompressBlock(src []byte, raw int, t Type) ([]byte, error) {
	switch t {
	case TypeLZ4:
		dst := make([]byte, raw)
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if n != raw {
			return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrCorrupt, n, raw)
		}
		return dst, nil
	case TypeZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(src, make([]byte, 0, raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if len(out) != raw {
			return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrCorrupt, len(out), raw)
		}
		return out, nil
	}
	return nil, fmt.Errorf("compress: unsupported type %s", t)
}
