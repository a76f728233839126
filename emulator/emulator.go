// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"maps"

	"github.com/sirupsen/logrus"

	"github.com/ezrec/prosur/bios"
	"github.com/ezrec/prosur/cpu"
	"github.com/ezrec/prosur/internal"
	"github.com/ezrec/prosur/memory"
)

const (
	STACK_TOP = uint32(0x801f_fff0) // Conventional initial $sp, top of KSEG0 RAM.
)

var _emulator_defines = map[string]string{
	"STACK_TOP": fmt.Sprintf("%#x", STACK_TOP),
}

// Emulator state. CPU + firmware.
type Emulator struct {
	Verbose  bool           // If set, enables debug diagnostics.
	*cpu.Cpu                // Reference to the CPU simulation.
	Bios     *bios.Bios     // Firmware image the CPU boots from.
	Program  *cpu.Program   // Listing of the firmware, if it was assembled.
	Log      *logrus.Logger // Diagnostic output.
}

// NewEmulator creates a new emulator booting from the firmware image.
// A nil image boots from an all-zero firmware.
// The emulator sets the level of log on Reset; a nil log gets a private
// logger writing to stderr.
func NewEmulator(rom *bios.Bios, log *logrus.Logger) (emu *Emulator) {
	if log == nil {
		log = logrus.New()
	}

	if rom == nil {
		rom, _ = bios.New(make([]byte, bios.SIZE), log)
	}

	emu = &Emulator{
		Cpu:     cpu.NewCpu(rom, log),
		Bios:    rom,
		Program: &cpu.Program{},
		Log:     log,
	}

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
		memory.Defines(),
	)
}

// Assemble assembles source text into the firmware image, and resets.
func (emu *Emulator) Assemble(input io.Reader) (err error) {
	asm := &cpu.Assembler{Verbose: emu.Verbose, Log: emu.Log}
	for equ, value := range emu.Defines() {
		asm.Predefine(equ, value)
	}

	prog, err := asm.Parse(input)
	if err != nil {
		return
	}

	image, err := prog.Image()
	if err != nil {
		return
	}

	rom, err := bios.New(image, emu.Log)
	if err != nil {
		return
	}

	emu.Program = prog
	emu.Bios = rom
	emu.Cpu.Bios = rom

	emu.Reset()

	return
}

// Reset the CPU, and apply the verbosity.
func (emu *Emulator) Reset() {
	if emu.Verbose {
		emu.Log.SetLevel(logrus.DebugLevel)
	} else {
		emu.Log.SetLevel(logrus.InfoLevel)
	}

	emu.Cpu.Reset()
}

// LineNo returns the source line number of the last executed instruction,
// or 0 if it did not come from the program listing.
func (emu *Emulator) LineNo() int {
	dbg := emu.Program.Debug(emu.Cpu.CurrentPc)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.LineNo
}

// Tick performs a single tick of the emulator.
// done is set once the CPU has halted.
func (emu *Emulator) Tick() (done bool, err error) {
	defer func() {
		if err != nil {
			err = &ErrRuntime{Pc: emu.Cpu.CurrentPc, LineNo: emu.LineNo(), Err: err}
		}
	}()

	err = emu.Cpu.Tick()
	if errors.Is(err, cpu.ErrHalted) {
		err = nil
		done = true
		return
	}

	done = emu.Cpu.Halted

	return
}

// Run ticks the emulator until the CPU halts, the context is done, or
// limit cycles have run. A limit of 0 runs without limit.
func (emu *Emulator) Run(ctx context.Context, limit int) (err error) {
	for n := 0; limit == 0 || n < limit; n++ {
		err = ctx.Err()
		if err != nil {
			return
		}

		var done bool
		done, err = emu.Tick()
		if err != nil || done {
			return
		}
	}

	return
}
