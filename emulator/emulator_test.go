package emulator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/prosur/bios"
	"github.com/ezrec/prosur/cpu"
	"github.com/ezrec/prosur/memory"
)

func newEmulator(t *testing.T, program ...string) (emu *Emulator, hook *test.Hook) {
	t.Helper()

	log, hook := test.NewNullLogger()
	emu = NewEmulator(nil, log)

	err := emu.Assemble(strings.NewReader(strings.Join(program, "\n")))
	require.NoError(t, err)

	return
}

func TestEmulator(t *testing.T) {
	assert := assert.New(t)

	log, _ := test.NewNullLogger()
	emu := NewEmulator(nil, log)

	assert.False(emu.Verbose)
	assert.NotNil(emu.Cpu)
	assert.NotNil(emu.Bios)
	assert.NotNil(emu.Program)
	assert.Equal(memory.RESET_ADDR, emu.Cpu.Pc)
	assert.Equal(make([]byte, bios.SIZE), emu.Bios.Bytes())
}

func TestEmulatorDefines(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator(nil, nil)

	defines := map[string]string{}
	for key, value := range emu.Defines() {
		defines[key] = value
	}

	assert.Equal("0x801ffff0", defines["STACK_TOP"])
	assert.Equal("12", defines["COP0_SR"])
	assert.Equal("0xbfc00000", defines["RESET_ADDR"])

	// Iteration can be stopped early.
	count := 0
	for range emu.Defines() {
		count++
		break
	}
	assert.Equal(1, count)
}

func TestEmulatorPrivateLogger(t *testing.T) {
	assert := assert.New(t)

	level := logrus.GetLevel()
	t.Cleanup(func() { logrus.SetLevel(level) })
	logrus.SetLevel(logrus.TraceLevel)

	emu := NewEmulator(nil, nil)
	assert.NotSame(logrus.StandardLogger(), emu.Log)

	emu.Verbose = true
	emu.Reset()
	emu.Verbose = false
	emu.Reset()

	assert.Equal(logrus.TraceLevel, logrus.GetLevel())
	assert.Equal(logrus.InfoLevel, emu.Log.GetLevel())
}

func TestEmulatorRun(t *testing.T) {
	assert := assert.New(t)

	emu, _ := newEmulator(t,
		".macro PUSH reg",
		"  addiu $sp, $sp, -4",
		"  sw reg, 0($sp)",
		".endm",
		"  la $sp, STACK_TOP",
		"  li $t0, 10",
		"  move $v0, $zero",
		"loop:",
		"  addu $v0, $v0, $t0",
		"  addiu $t0, $t0, -1",
		"  bgtz $t0, loop",
		"  nop",
		"  PUSH $v0",
		"  lw $v1, 0($sp)",
		"  nop",
		"done:",
		"  b done",
		"  nop",
	)

	err := emu.Run(context.Background(), 200)
	assert.NoError(err)
	assert.Equal(200, emu.Cpu.Ticks)
	assert.False(emu.Cpu.Halted)

	assert.Equal(uint32(55), emu.Cpu.Reg(cpu.R_V0))
	assert.Equal(uint32(55), emu.Cpu.Reg(cpu.R_V1))
	assert.Equal(STACK_TOP-4, emu.Cpu.Reg(cpu.R_SP))
	assert.Equal(uint32(55), emu.Cpu.Ram.Load32((STACK_TOP-4)&memory.RAM_MASK))
	assert.Equal(17, emu.LineNo())
}

func TestEmulatorHalt(t *testing.T) {
	assert := assert.New(t)

	emu, hook := newEmulator(t,
		"nop",
		"lui $t0, 0x1f00",
		"lw $t1, 0($t0)",
	)

	err := emu.Run(context.Background(), 0)
	assert.ErrorIs(err, cpu.ErrUnmapped)

	var runtime *ErrRuntime
	if assert.ErrorAs(err, &runtime) {
		assert.Equal(3, runtime.LineNo)
		assert.Equal(memory.RESET_ADDR+8, runtime.Pc)
		assert.Contains(runtime.Error(), "line 3")
	}
	assert.True(emu.Cpu.Halted)
	assert.Equal(logrus.InfoLevel, hook.LastEntry().Level)

	done, err := emu.Tick()
	assert.True(done)
	assert.NoError(err)

	emu.Reset()
	assert.False(emu.Cpu.Halted)
	done, err = emu.Tick()
	assert.False(done)
	assert.NoError(err)
}

func TestEmulatorOpcode(t *testing.T) {
	assert := assert.New(t)

	emu, _ := newEmulator(t, "syscall_here: .word 0x0000000c")

	err := emu.Run(context.Background(), 0)
	assert.ErrorIs(err, cpu.ErrOpcode(0))
	assert.Equal(1, emu.Cpu.Ticks)
	assert.Equal(1, emu.LineNo())
}

func TestEmulatorCancel(t *testing.T) {
	assert := assert.New(t)

	emu, _ := newEmulator(t,
		"spin: b spin",
		"nop",
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := emu.Run(ctx, 0)
	assert.True(errors.Is(err, context.Canceled))
	assert.Equal(0, emu.Cpu.Ticks)
}

func TestEmulatorVerbose(t *testing.T) {
	assert := assert.New(t)

	log, hook := test.NewNullLogger()
	emu := NewEmulator(nil, log)
	emu.Verbose = true

	err := emu.Assemble(strings.NewReader("lui $t0, 0x1234"))
	assert.NoError(err)
	assert.Equal(logrus.DebugLevel, log.GetLevel())

	hook.Reset()
	_, err = emu.Tick()
	assert.NoError(err)
	_, err = emu.Tick()
	assert.NoError(err)

	found := false
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.DebugLevel && strings.Contains(entry.Message, "lui $t0, 0x1234") {
			found = true
		}
	}
	assert.True(found)

	emu.Verbose = false
	emu.Reset()
	assert.Equal(logrus.InfoLevel, log.GetLevel())
}

func TestEmulatorAssembleError(t *testing.T) {
	assert := assert.New(t)

	log, _ := test.NewNullLogger()
	emu := NewEmulator(nil, log)
	before := emu.Bios

	err := emu.Assemble(strings.NewReader("nop\nbogus"))
	var syntax *cpu.ErrSyntax
	if assert.ErrorAs(err, &syntax) {
		assert.Equal(2, syntax.LineNo)
	}
	assert.Same(before, emu.Bios)

	err = emu.Assemble(strings.NewReader(".org $(RESET_ADDR + BIOS_SIZE)\nnop"))
	assert.ErrorIs(err, cpu.ErrProgramSize)
}
