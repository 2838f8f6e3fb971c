package mmwave

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		version  uint32
		platform uint32
		want     int
	}{
		{"SDK 1.1 on xWR1642", 0x01010005, 0x000A1642, 32},
		{"SDK 2.0 on xWR1642", 0x02000001, 0x000A1642, 32},
		{"xWR1443 always short", 0x01010005, 0x000A1443, 28},
		{"SDK major 0", 0x00090005, 0x000A1642, 28},
		{"SDK minor 0", 0x01000005, 0x000A1642, 28},
		{"platform high bits ignored", 0x01010005, 0xFFFF1443, 28},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, headerSize(tt.version, tt.platform))
		})
	}
}

func TestLei16(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int16(1), lei16([]byte{0x01, 0x00}, 0))
	assert.Equal(t, int16(-1), lei16([]byte{0xFF, 0xFF}, 0))
	// raw 0x8000 = 32768 wraps to -32768
	assert.Equal(t, int16(-32768), lei16([]byte{0x00, 0x80}, 0))
	assert.Equal(t, int16(256), lei16([]byte{0x00, 0x01}, 0))
}

func TestIsMagicWord(t *testing.T) {
	t.Parallel()

	assert.True(t, isMagicWord(magicWord))
	assert.False(t, isMagicWord([8]byte{}))
	almost := magicWord
	almost[7] = 0x00
	assert.False(t, isMagicWord(almost))
}

func TestNextPow2(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want int }{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{200, 256},
		{256, 256},
		{257, 512},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextPow2(tt.in), "nextPow2(%d)", tt.in)
	}
}
