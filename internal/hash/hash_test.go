package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC16_CheckValue(t *testing.T) {
	// Catalogue check value for CRC-16/CCITT-FALSE.
	assert.Equal(t, uint16(0x29B1), CRC16([]byte("123456789")))
}

func TestCRC16_ZeroBlockIsNotZero(t *testing.T) {
	assert.NotZero(t, CRC16(make([]byte, 2048)))
}

func TestCRC16_OrderSensitive(t *testing.T) {
	assert.NotEqual(t, CRC16([]byte("ab")), CRC16([]byte("ba")))
}

func TestCRC16_Streaming(t *testing.T) {
	data := []byte("superblock|map|inodes")

	h := NewCRC16()
	_, _ = h.Write(data[:5])
	_, _ = h.Write(data[5:])

	assert.Equal(t, CRC16(data), h.Sum16())
}

func TestCRC32C_Streaming(t *testing.T) {
	data := []byte("0123456789abcdef")

	h := NewCRC32C()
	_, _ = h.Write(data[:3])
	_, _ = h.Write(data[3:])

	assert.Equal(t, CRC32C(data), h.Sum32())
	assert.Equal(t, uint32(0xE3069283), CRC32C([]byte("123456789")))
}
