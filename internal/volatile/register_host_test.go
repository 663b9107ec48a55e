//go:build !tinygo

package volatile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitHelpers(t *testing.T) {
	var r Register32
	r.Set(0x0000_00f0)
	r.SetBits(0x1)
	assert.Equal(t, uint32(0xf1), r.Get())
	r.ClearBits(0x10)
	assert.Equal(t, uint32(0xe1), r.Get())
	assert.True(t, r.HasBits(0x80))
	assert.False(t, r.HasBits(0x10))

	r.ReplaceBits(0b101, 0b111, 8)
	assert.Equal(t, uint32(0x5e1), r.Get())
}

func TestWriteOneToClearHook(t *testing.T) {
	var r Register32
	Hook(&r, func(old, v uint32) uint32 { return old &^ v })
	defer Unhook(&r)

	PokeBits(&r, 0b1011, 0)
	r.Set(0b0001)
	assert.Equal(t, uint32(0b1010), r.Get())

	Poke(&r, 0xff)
	assert.Equal(t, uint32(0xff), r.Get(), "Poke bypasses the hook")

	Unhook(&r)
	r.Set(0x3)
	assert.Equal(t, uint32(0x3), r.Get())
}
