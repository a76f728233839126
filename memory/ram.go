package memory

import (
	"encoding/binary"
)

// Ram is the main memory block.
type Ram struct {
	Data [RAM_SIZE]byte
}

// NewRam creates a zeroed RAM block.
func NewRam() *Ram {
	return &Ram{}
}

// Reset zeroes the RAM contents.
func (ram *Ram) Reset() {
	clear(ram.Data[:])
}

// Load32 reads a little-endian word. The offset is wrapped into the
// block and forced to word alignment.
func (ram *Ram) Load32(offset uint32) uint32 {
	offset &= RAM_MASK &^ 3
	return binary.LittleEndian.Uint32(ram.Data[offset:])
}

// Load16 reads a little-endian halfword.
func (ram *Ram) Load16(offset uint32) uint16 {
	offset &= RAM_MASK &^ 1
	return binary.LittleEndian.Uint16(ram.Data[offset:])
}

// Load8 reads a byte.
func (ram *Ram) Load8(offset uint32) uint8 {
	return ram.Data[offset&RAM_MASK]
}

// Store32 writes a little-endian word.
func (ram *Ram) Store32(offset uint32, value uint32) {
	offset &= RAM_MASK &^ 3
	binary.LittleEndian.PutUint32(ram.Data[offset:], value)
}
