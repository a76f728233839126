// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"fmt"
	"iter"
	"maps"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ezrec/prosur/internal"
	"github.com/ezrec/prosur/memory"
)

// REGISTER_JUNK is the power-on value of every register except $zero.
const REGISTER_JUNK = uint32(0xdeadbeef)

var _cpu_defines = map[string]string{
	"COP0_SR":          fmt.Sprintf("%v", COP0_SR),
	"COP0_CAUSE":       fmt.Sprintf("%v", COP0_CAUSE),
	"COP0_EPC":         fmt.Sprintf("%v", COP0_EPC),
	"SR_ISOLATE_CACHE": fmt.Sprintf("%#x", SR_ISOLATE_CACHE),
}

// CodeSource is read-only memory the CPU can fetch from, such as the BIOS.
// Offsets are relative to the start of the source.
type CodeSource interface {
	Load32(offset uint32) uint32
	Load16(offset uint32) uint16
	Load8(offset uint32) uint8
}

// PendingLoad is a load waiting out its delay slot.
// The zero value targets $zero, and so is a no-op.
type PendingLoad struct {
	Reg   Register
	Value uint32
}

// Cpu is the simulation context for the R3000A-class processor.
type Cpu struct {
	Log logrus.FieldLogger // Diagnostic output.

	Pc              uint32      // Address of the next instruction to fetch.
	CurrentPc       uint32      // Address of the instruction being executed.
	NextInstruction Instruction // Prefetched instruction, for the branch delay slot.
	nextPc          uint32      // Address of NextInstruction.

	Regs    [32]uint32  // Registers, as seen by the executing instruction.
	OutRegs [32]uint32  // Registers, as written by the executing instruction.
	Load    PendingLoad // Load issued by the previous instruction.

	Hi uint32 // Multiply high / divide remainder.
	Lo uint32 // Multiply low / divide quotient.

	Cop0 Cop0 // System control coprocessor.

	Ram  *memory.Ram // Main memory.
	Bios CodeSource  // Firmware.

	Halted bool  // Set on a fatal error. Only Reset clears it.
	Err    error // Error that halted the CPU.

	Ticks int // Instructions retired since reset.
}

// NewCpu creates a new CPU booting from the code source.
func NewCpu(bios CodeSource, log logrus.FieldLogger) (cpu *Cpu) {
	cpu = &Cpu{
		Log:  internal.Logger(log),
		Ram:  memory.NewRam(),
		Bios: bios,
	}

	cpu.Reset()

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// Reset the CPU state.
//   - Sets PC to the BIOS reset vector, with a NOP in the delay slot.
//   - Fills the registers with junk, except $zero.
//   - Clears COP0, RAM, any pending load, and the halted state.
func (cpu *Cpu) Reset() {
	cpu.Log.Debugf("cpu: reset")

	cpu.Pc = memory.RESET_ADDR
	cpu.CurrentPc = 0
	cpu.NextInstruction = 0
	cpu.nextPc = 0

	for n := range cpu.Regs {
		cpu.Regs[n] = REGISTER_JUNK
	}
	cpu.Regs[R_ZERO] = 0
	cpu.OutRegs = cpu.Regs
	cpu.Load = PendingLoad{}

	cpu.Hi = REGISTER_JUNK
	cpu.Lo = REGISTER_JUNK

	cpu.Cop0.Reset()
	cpu.Ram.Reset()

	cpu.Halted = false
	cpu.Err = nil
	cpu.Ticks = 0
}

// Reg returns the visible value of a register.
func (cpu *Cpu) Reg(r Register) uint32 {
	return cpu.Regs[r&0x1f]
}

// setReg stages a register write for the end of the cycle.
// Writes to $zero are discarded.
func (cpu *Cpu) setReg(r Register, value uint32) {
	cpu.OutRegs[r&0x1f] = value
	cpu.OutRegs[R_ZERO] = 0
}

// SetRegister immediately sets a register, bypassing the delay slot.
// Used by debuggers and test harnesses.
func (cpu *Cpu) SetRegister(r Register, value uint32) {
	if r&0x1f == R_ZERO {
		return
	}
	cpu.Regs[r&0x1f] = value
	cpu.OutRegs[r&0x1f] = value
}

// halt stops the CPU.
func (cpu *Cpu) halt(err error) {
	cpu.Halted = true
	cpu.Err = err
	cpu.Log.Infof("cpu: halted at %08x: %v", cpu.CurrentPc, err)
}

// Tick executes a single CPU instruction cycle.
//  1. Take the prefetched instruction.
//  2. Prefetch the instruction at PC (the delay slot of any branch).
//  3. Advance PC.
//  4. Commit the pending load from the previous instruction.
//  5. Execute.
//  6. Publish this cycle's register writes.
//
// A fatal error halts the CPU, and is returned. A failed prefetch latches
// a NOP and still completes the cycle, so the instruction in the latch
// executes; the first error of the cycle is the one returned. A halted CPU
// does nothing and returns ErrHalted.
func (cpu *Cpu) Tick() (err error) {
	if cpu.Halted {
		return ErrHalted
	}

	defer func() {
		if err != nil {
			cpu.halt(err)
		}
	}()

	instruction := cpu.NextInstruction
	cpu.CurrentPc = cpu.nextPc

	word, err := cpu.Load32(cpu.Pc)
	cpu.NextInstruction = Instruction(word)
	cpu.nextPc = cpu.Pc

	cpu.Pc += 4

	cpu.setReg(cpu.Load.Reg, cpu.Load.Value)
	cpu.Load = PendingLoad{}

	execErr := cpu.Execute(instruction)

	cpu.Regs = cpu.OutRegs

	if execErr != nil {
		if err == nil {
			err = execErr
		}
		return
	}

	cpu.Ticks++

	return
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() string {
	var text strings.Builder

	fmt.Fprintf(&text, "   pc: %08x  next: %08x %v\n", cpu.Pc, uint32(cpu.NextInstruction), cpu.NextInstruction)
	fmt.Fprintf(&text, "   hi: %08x    lo: %08x    sr: %08x\n", cpu.Hi, cpu.Lo, cpu.Cop0.SR())
	if cpu.Load.Reg != R_ZERO {
		fmt.Fprintf(&text, " load: %v <- %08x\n", cpu.Load.Reg, cpu.Load.Value)
	}
	for n := range 32 {
		reg := Register(n)
		fmt.Fprintf(&text, "% 5s: %08x", reg.String(), cpu.Regs[n])
		if n%4 == 3 {
			text.WriteString("\n")
		} else {
			text.WriteString("  ")
		}
	}

	return text.String()
}
