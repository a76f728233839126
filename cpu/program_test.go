package cpu

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/prosur/memory"
)

func TestProgram_Debug(t *testing.T) {
	assert := assert.New(t)

	_, prog, err := assemble(t,
		"li $t0, 0x12345678",
		"nop",
		".org 0xbfc00100",
		"jr $ra",
	)
	if !assert.NoError(err) {
		return
	}

	dbg := prog.Debug(memory.RESET_ADDR)
	if assert.NotNil(dbg.Opcode) {
		assert.Equal(1, dbg.LineNo)
		assert.Equal(0, dbg.Index)
	}

	dbg = prog.Debug(memory.RESET_ADDR + 4)
	if assert.NotNil(dbg.Opcode) {
		assert.Equal(1, dbg.LineNo)
		assert.Equal(1, dbg.Index)
		assert.Equal(MakeI(OP_ORI, R_T0, R_T0, 0x5678), dbg.Codes[dbg.Index])
	}

	dbg = prog.Debug(memory.RESET_ADDR + 8)
	if assert.NotNil(dbg.Opcode) {
		assert.Equal(2, dbg.LineNo)
		assert.Equal(0, dbg.Index)
	}

	dbg = prog.Debug(memory.RESET_ADDR + 0x100)
	if assert.NotNil(dbg.Opcode) {
		assert.Equal(4, dbg.LineNo)
		assert.Equal([]string{"jr", "$ra"}, dbg.Words)
	}
}

func TestProgram_Debug_NotFound(t *testing.T) {
	assert := assert.New(t)

	_, prog, err := assemble(t, "nop")
	assert.NoError(err)

	assert.Nil(prog.Debug(0).Opcode)
	assert.Nil(prog.Debug(memory.RESET_ADDR + 4).Opcode)
}

func TestProgram_Codes(t *testing.T) {
	assert := assert.New(t)

	_, prog, err := assemble(t, "li $t0, 0x12345678", "nop", "nop")
	assert.NoError(err)

	var addrs []uint32
	for addr := range prog.Codes() {
		addrs = append(addrs, addr)
		if len(addrs) == 3 {
			break
		}
	}
	assert.Equal([]uint32{memory.RESET_ADDR, memory.RESET_ADDR + 4, memory.RESET_ADDR + 8}, addrs)
}

func TestProgram_Image(t *testing.T) {
	assert := assert.New(t)

	_, prog, err := assemble(t,
		"lui $t0, 0x1234",
		".org 0xbfc00100",
		".word 0xcafef00d",
		".org $(RESET_ADDR + BIOS_SIZE - 4)",
		".word 1",
	)
	if !assert.NoError(err) {
		return
	}

	image, err := prog.Image()
	assert.NoError(err)
	assert.Len(image, memory.BIOS_SIZE)
	assert.Equal([]byte{0x34, 0x12, 0x08, 0x3c}, image[0:4])
	assert.Equal(uint32(0xcafe_f00d), binary.LittleEndian.Uint32(image[0x100:]))
	assert.Equal(uint32(1), binary.LittleEndian.Uint32(image[memory.BIOS_SIZE-4:]))
	assert.Equal(uint32(0), binary.LittleEndian.Uint32(image[0x104:]))
}

func TestProgram_ImageSize(t *testing.T) {
	assert := assert.New(t)

	_, prog, err := assemble(t, ".org $(RESET_ADDR + BIOS_SIZE)", "nop")
	if !assert.NoError(err) {
		return
	}

	image, err := prog.Image()
	assert.ErrorIs(err, ErrProgramSize)
	assert.Nil(image)

	// Code below the reset vector has nowhere to go either.
	prog = &Program{Opcodes: []Opcode{{LineNo: 1, Addr: 0x8000_0000, Codes: []Instruction{0}}}}
	_, err = prog.Image()
	assert.ErrorIs(err, ErrProgramSize)
}
