// Package cpu implements the MIPS R3000A-class processor of the prosur
// system, and an assembler for its instruction set.
//
// The CPU consists of a program counter, 32 general-purpose 32-bit
// registers (r0 always reads as zero), the HI/LO multiply/divide pair,
// and a small system control coprocessor (COP0). Instructions execute one
// per Tick with the architectural delay slots: the instruction after a
// jump or branch always executes, and a loaded value is not visible to
// the instruction immediately after the load.
//
// The assembler accepts conventional MIPS assembly with labels, equates,
// macros, and compile-time $(...) expression evaluation.
package cpu
