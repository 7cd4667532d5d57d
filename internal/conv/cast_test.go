//go:build amd64 || arm64

package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntToUint16(t *testing.T) {
	t.Run("valid header length", func(t *testing.T) {
		got, err := IntToUint16(118)
		assert.NoError(t, err)
		assert.Equal(t, uint16(118), got)
	})

	t.Run("valid max", func(t *testing.T) {
		got, err := IntToUint16(math.MaxUint16)
		assert.NoError(t, err)
		assert.Equal(t, uint16(math.MaxUint16), got)
	})

	t.Run("invalid too large", func(t *testing.T) {
		_, err := IntToUint16(math.MaxUint16 + 1)
		assert.Error(t, err)
	})

	t.Run("invalid negative", func(t *testing.T) {
		_, err := IntToUint16(-1)
		assert.Error(t, err)
	})
}

func TestIntToUint32(t *testing.T) {
	t.Run("valid zero", func(t *testing.T) {
		got, err := IntToUint32(0)
		assert.NoError(t, err)
		assert.Equal(t, uint32(0), got)
	})

	t.Run("invalid negative", func(t *testing.T) {
		_, err := IntToUint32(-1)
		assert.Error(t, err)
	})

	t.Run("invalid too large", func(t *testing.T) {
		_, err := IntToUint32(math.MaxUint32 + 1)
		assert.Error(t, err)
	})
}

func TestUint32ToInt(t *testing.T) {
	got, err := Uint32ToInt(math.MaxUint32)
	// On 64-bit (amd64/arm64), MaxUint32 fits in int
	assert.NoError(t, err)
	assert.Equal(t, int(math.MaxUint32), got)
}

func TestInt64ToInt(t *testing.T) {
	got, err := Int64ToInt(-42)
	assert.NoError(t, err)
	assert.Equal(t, -42, got)
}

func TestInt64ToUint32(t *testing.T) {
	t.Run("cluster id", func(t *testing.T) {
		got, err := Int64ToUint32(291)
		assert.NoError(t, err)
		assert.Equal(t, uint32(291), got)
	})

	t.Run("negative slot", func(t *testing.T) {
		_, err := Int64ToUint32(-1)
		assert.Error(t, err)
	})

	t.Run("too large", func(t *testing.T) {
		_, err := Int64ToUint32(math.MaxUint32 + 1)
		assert.Error(t, err)
	})
}

func TestMulInt(t *testing.T) {
	got, err := MulInt(1<<20, 8)
	assert.NoError(t, err)
	assert.Equal(t, 8<<20, got)

	got, err = MulInt(0, math.MaxInt)
	assert.NoError(t, err)
	assert.Equal(t, 0, got)

	_, err = MulInt(1<<62, 8)
	assert.Error(t, err)

	_, err = MulInt(math.MaxInt, 2)
	assert.Error(t, err)

	_, err = MulInt(-1, 4)
	assert.Error(t, err)
}
