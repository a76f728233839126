// Package memory implements the PlayStation address map: virtual to
// physical translation, physical region classification, and the main RAM
// block.
package memory

import (
	"fmt"
	"iter"
	"maps"
)

// Region is a physical memory region tag.
type Region int

const (
	REGION_UNMAPPED      = Region(iota) // unmapped
	REGION_MAIN                         // main
	REGION_EXPANSION1                   // expansion1
	REGION_SCRATCHPAD                   // scratchpad
	REGION_HARDWARE_REGS                // hwregs
	REGION_BIOS                         // bios
	REGION_IO                           // io
)

var regionName = [...]string{
	REGION_UNMAPPED:      "unmapped",
	REGION_MAIN:          "main",
	REGION_EXPANSION1:    "expansion1",
	REGION_SCRATCHPAD:    "scratchpad",
	REGION_HARDWARE_REGS: "hwregs",
	REGION_BIOS:          "bios",
	REGION_IO:            "io",
}

func (r Region) String() string {
	if r < 0 || int(r) >= len(regionName) {
		return fmt.Sprintf("Region(%d)", int(r))
	}
	return regionName[r]
}

// Physical base addresses and sizes.
const (
	RAM_SIZE  = 2 * 1024 * 1024 // Main RAM size in bytes.
	BIOS_SIZE = 512 * 1024      // BIOS ROM size in bytes.

	RAM_MASK  = uint32(RAM_SIZE - 1)  // Offset mask into main RAM.
	BIOS_MASK = uint32(BIOS_SIZE - 1) // Offset mask into the BIOS ROM.

	BIOS_BASE  = uint32(0x1fc0_0000) // Physical BIOS base.
	RESET_ADDR = uint32(0xbfc0_0000) // Virtual reset vector (KSEG1 BIOS).
)

var _memory_defines = map[string]string{
	"RAM_SIZE":   fmt.Sprintf("%#x", RAM_SIZE),
	"BIOS_SIZE":  fmt.Sprintf("%#x", BIOS_SIZE),
	"BIOS_BASE":  fmt.Sprintf("%#x", BIOS_BASE),
	"RESET_ADDR": fmt.Sprintf("%#x", RESET_ADDR),
	"KSEG0":      "0x80000000",
	"KSEG1":      "0xa0000000",
}

// Defines returns the assembler equates for the memory map.
func Defines() iter.Seq2[string, string] {
	return maps.All(_memory_defines)
}

// regionMask is indexed by the top 3 bits of a virtual address.
var regionMask = [8]uint32{
	// KUSEG: 2048MB
	0xffff_ffff, 0xffff_ffff, 0xffff_ffff, 0xffff_ffff,
	// KSEG0: 512MB
	0x7fff_ffff,
	// KSEG1: 512MB
	0x1fff_ffff,
	// KSEG2: 1024MB
	0xffff_ffff, 0xffff_ffff,
}

// Translate maps a virtual address to a physical address.
func Translate(vaddr uint32) (paddr uint32) {
	return vaddr & regionMask[vaddr>>29]
}

// regionRange is one entry of the classification table. An address
// matches when it is in [low, high). The entries are tested in order.
type regionRange struct {
	low    uint32
	high   uint32
	region Region
}

var regionTable = [...]regionRange{
	{0x0000_0000, 0x0080_0000, REGION_MAIN},
	{0x1f00_0000, 0x1f80_0000, REGION_EXPANSION1},
	{0x0000_0000, 0x1f80_1000, REGION_SCRATCHPAD},
	{0x0000_0000, 0x1f80_3000, REGION_HARDWARE_REGS},
	{0x1fc0_0000, 0x1fc8_0000, REGION_BIOS},
	{0xfffe_0000, 0xfffe_1000, REGION_IO},
}

// Classify returns the region a physical address belongs to.
// First match in the table wins; the order must not change.
func Classify(paddr uint32) Region {
	for _, entry := range regionTable {
		if paddr >= entry.low && paddr < entry.high {
			return entry.region
		}
	}

	return REGION_UNMAPPED
}

// Lookup translates a virtual address and classifies the result.
func Lookup(vaddr uint32) (paddr uint32, region Region) {
	paddr = Translate(vaddr)
	region = Classify(paddr)
	return
}
