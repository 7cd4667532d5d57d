package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32C(t *testing.T) {
	// RFC 3720 B.4 test vector.
	assert.Equal(t, uint32(0xe3069283), CRC32C([]byte("123456789")))
	assert.Equal(t, uint32(0), CRC32C(nil))

	h := NewCRC32C()
	_, _ = h.Write([]byte("12345"))
	_, _ = h.Write([]byte("6789"))
	assert.Equal(t, uint32(0xe3069283), h.Sum32())
}

func TestBase64(t *testing.T) {
	assert.Equal(t, "4waSgw==", Base64(0xe3069283))
	assert.Equal(t, "AAAAAA==", Base64(0))
}
