package cpu

import (
	"encoding/binary"
	"iter"

	"github.com/ezrec/prosur/memory"
)

// Opcode is a single assembled source line.
type Opcode struct {
	LineNo    int           // Source line number.
	Addr      uint32        // Address of the first code.
	Words     []string      // Source words, after expansion.
	Codes     []Instruction // Generated instructions.
	LinkLabel string        // Label resolved at link time.
}

type Program struct {
	Opcodes []Opcode
}

type Debug struct {
	*Opcode
	Index int
}

// Debug finds the source line that generated the code at addr.
func (prog *Program) Debug(addr uint32) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if addr >= op.Addr && addr < op.Addr+uint32(4*len(op.Codes)) {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  int(addr-op.Addr) / 4,
			}
			break
		}
	}

	return
}

// Codes iterates over every instruction, by address.
func (prog *Program) Codes() iter.Seq2[uint32, Instruction] {
	return func(yield func(addr uint32, code Instruction) bool) {
		for _, op := range prog.Opcodes {
			for n, code := range op.Codes {
				if !yield(op.Addr+uint32(4*n), code) {
					return
				}
			}
		}
	}
}

// Image returns a firmware image with the program placed at the reset vector.
func (prog *Program) Image() (image []byte, err error) {
	image = make([]byte, memory.BIOS_SIZE)

	for addr, code := range prog.Codes() {
		offset := addr - memory.RESET_ADDR
		if offset > memory.BIOS_SIZE-4 {
			image = nil
			err = ErrProgramSize
			return
		}
		binary.LittleEndian.PutUint32(image[offset:], uint32(code))
	}

	return
}
