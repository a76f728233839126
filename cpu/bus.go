package cpu

import (
	"github.com/ezrec/prosur/memory"
)

// read performs an aligned read of 1, 2 or 4 bytes.
func (cpu *Cpu) read(vaddr uint32, width uint32) (value uint32, err error) {
	if vaddr&(width-1) != 0 {
		err = &ErrAccess{Addr: vaddr, Region: memory.Classify(memory.Translate(vaddr)), Err: ErrUnaligned}
		return
	}

	paddr, region := memory.Lookup(vaddr)

	switch region {
	case memory.REGION_MAIN:
		offset := paddr & memory.RAM_MASK
		switch width {
		case 4:
			value = cpu.Ram.Load32(offset)
		case 2:
			value = uint32(cpu.Ram.Load16(offset))
		default:
			value = uint32(cpu.Ram.Load8(offset))
		}
	case memory.REGION_BIOS:
		offset := paddr & memory.BIOS_MASK
		switch width {
		case 4:
			value = cpu.Bios.Load32(offset)
		case 2:
			value = uint32(cpu.Bios.Load16(offset))
		default:
			value = uint32(cpu.Bios.Load8(offset))
		}
	default:
		err = &ErrAccess{Addr: vaddr, Region: region, Err: ErrUnmapped}
		return
	}

	return
}

// Load32 reads a little-endian word from a virtual address.
func (cpu *Cpu) Load32(vaddr uint32) (value uint32, err error) {
	return cpu.read(vaddr, 4)
}

// Load16 reads a little-endian halfword from a virtual address.
func (cpu *Cpu) Load16(vaddr uint32) (value uint16, err error) {
	v, err := cpu.read(vaddr, 2)
	return uint16(v), err
}

// Load8 reads a byte from a virtual address.
func (cpu *Cpu) Load8(vaddr uint32) (value uint8, err error) {
	v, err := cpu.read(vaddr, 1)
	return uint8(v), err
}

// write performs an aligned write of 1, 2 or 4 bytes.
// Only word writes to main RAM change any state.
func (cpu *Cpu) write(vaddr uint32, value uint32, width uint32) (err error) {
	if vaddr&(width-1) != 0 {
		err = &ErrAccess{Addr: vaddr, Region: memory.Classify(memory.Translate(vaddr)), Write: true, Err: ErrUnaligned}
		return
	}

	paddr, region := memory.Lookup(vaddr)

	switch region {
	case memory.REGION_MAIN:
		if width != 4 {
			// Byte and halfword stores to RAM are accepted, not applied.
			cpu.Log.Debugf("cpu: ignoring %v-byte store of %x to ram %08x", width, value, paddr)
			return
		}
		cpu.Ram.Store32(paddr&memory.RAM_MASK, value)
	case memory.REGION_HARDWARE_REGS, memory.REGION_IO:
		cpu.Log.Debugf("cpu: ignoring store of %x to %v %08x", value, region, paddr)
	case memory.REGION_BIOS:
		cpu.Log.Infof("cpu: rejected store of %x to bios %08x", value, paddr)
	default:
		err = &ErrAccess{Addr: vaddr, Region: region, Write: true, Err: ErrUnmapped}
		return
	}

	return
}

// Store32 writes a little-endian word to a virtual address.
func (cpu *Cpu) Store32(vaddr uint32, value uint32) (err error) {
	return cpu.write(vaddr, value, 4)
}

// Store16 writes a little-endian halfword to a virtual address.
func (cpu *Cpu) Store16(vaddr uint32, value uint16) (err error) {
	return cpu.write(vaddr, uint32(value), 2)
}

// Store8 writes a byte to a virtual address.
func (cpu *Cpu) Store8(vaddr uint32, value uint8) (err error) {
	return cpu.write(vaddr, uint32(value), 1)
}
