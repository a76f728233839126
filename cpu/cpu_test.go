package cpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/prosur/bios"
	"github.com/ezrec/prosur/memory"
)

// bootCpu assembles the source into a firmware image and boots a CPU from it.
func bootCpu(t *testing.T, source ...string) (cpu *Cpu, rom *bios.Bios, hook *test.Hook) {
	t.Helper()

	asm := &Assembler{}
	prog, err := asm.Parse(strings.NewReader(strings.Join(source, "\n")))
	require.NoError(t, err)

	image, err := prog.Image()
	require.NoError(t, err)

	log, hook := test.NewNullLogger()

	rom, err = bios.New(image, log)
	require.NoError(t, err)

	cpu = NewCpu(rom, log)

	return
}

// tickN runs the CPU for n cycles, which must not fail.
func tickN(t *testing.T, cpu *Cpu, n int) {
	t.Helper()

	for range n {
		err := cpu.Tick()
		require.NoError(t, err, cpu.String())
	}
}

// hasEntry is true if a log entry at the level contains the text.
func hasEntry(hook *test.Hook, level logrus.Level, text string) bool {
	for _, entry := range hook.AllEntries() {
		if entry.Level == level && strings.Contains(entry.Message, text) {
			return true
		}
	}
	return false
}

func TestCpuReset(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := bootCpu(t)

	assert.Equal(memory.RESET_ADDR, cpu.Pc)
	assert.Equal(Instruction(0), cpu.NextInstruction)
	assert.Equal(uint32(0), cpu.Regs[R_ZERO])
	for n := 1; n < 32; n++ {
		assert.Equal(REGISTER_JUNK, cpu.Regs[n])
	}
	assert.Equal(cpu.Regs, cpu.OutRegs)
	assert.Equal(REGISTER_JUNK, cpu.Hi)
	assert.Equal(REGISTER_JUNK, cpu.Lo)
	assert.Equal(PendingLoad{}, cpu.Load)
	assert.False(cpu.Halted)
	assert.Equal(0, cpu.Ticks)

	cpu.SetRegister(R_T0, 5)
	cpu.Ram.Store32(0, 1)
	cpu.Cop0.Register[COP0_SR] = SR_ISOLATE_CACHE
	cpu.Reset()
	assert.Equal(REGISTER_JUNK, cpu.Reg(R_T0))
	assert.Equal(uint32(0), cpu.Ram.Load32(0))
	assert.False(cpu.Cop0.CacheIsolated())
}

func TestCpuZeroRegister(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := bootCpu(t,
		"ori $zero, $zero, 5",
		"lui $zero, 0x1234",
		"addiu $zero, $zero, 1",
	)

	for range 4 {
		tickN(t, cpu, 1)
		assert.Equal(uint32(0), cpu.Reg(R_ZERO))
		assert.Equal(uint32(0), cpu.OutRegs[R_ZERO])
	}

	cpu.SetRegister(R_ZERO, 5)
	assert.Equal(uint32(0), cpu.Reg(R_ZERO))

	// A load into $zero is discarded too.
	cpu.Load = PendingLoad{Reg: R_ZERO, Value: 7}
	tickN(t, cpu, 1)
	assert.Equal(uint32(0), cpu.Reg(R_ZERO))
}

func TestCpuEndToEnd(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := bootCpu(t,
		"lui $t0, 0x1234",
		"ori $t0, $t0, 0x5678",
		"sw $t0, 0($zero)",
	)

	tickN(t, cpu, 4)

	assert.Equal(uint32(0x1234_5678), cpu.Reg(R_T0))
	assert.Equal([]byte{0x78, 0x56, 0x34, 0x12}, cpu.Ram.Data[0:4])
	assert.Equal(4, cpu.Ticks)
	assert.Equal(memory.RESET_ADDR+16, cpu.Pc)
}

func TestCpuLoadDelay(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := bootCpu(t,
		"lui $t1, 0x8000",
		"ori $t0, $zero, 0x1234",
		"sw $t0, 0($t1)",
		"lw $t2, 0($t1)",
		"addu $t3, $t2, $zero", // Delay slot sees the old value.
		"addu $t4, $t2, $zero",
	)

	tickN(t, cpu, 5)
	assert.Equal(PendingLoad{Reg: R_T2, Value: 0x1234}, cpu.Load)
	assert.Equal(REGISTER_JUNK, cpu.Reg(R_T2))

	tickN(t, cpu, 2)
	assert.Equal(uint32(0x1234), cpu.Reg(R_T2))
	assert.Equal(REGISTER_JUNK, cpu.Reg(R_T3))
	assert.Equal(uint32(0x1234), cpu.Reg(R_T4))
	assert.Equal(PendingLoad{}, cpu.Load)
}

func TestCpuBranchDelay(t *testing.T) {
	table := map[string]struct {
		source []string
		ticks  int
		ra     uint32
	}{
		"j": {
			source: []string{
				"j target",
				"ori $t1, $zero, 1",
				"ori $t2, $zero, 1",
				"target:",
				"ori $t3, $zero, 1",
			},
			ticks: 4,
			ra:    REGISTER_JUNK,
		},
		"jal": {
			source: []string{
				"jal target",
				"ori $t1, $zero, 1",
				"ori $t2, $zero, 1",
				"target:",
				"ori $t3, $zero, 1",
			},
			ticks: 4,
			ra:    memory.RESET_ADDR + 8,
		},
		"jr": {
			source: []string{
				"la $t0, target",
				"jr $t0",
				"ori $t1, $zero, 1",
				"ori $t2, $zero, 1",
				"target:",
				"ori $t3, $zero, 1",
			},
			ticks: 6,
			ra:    REGISTER_JUNK,
		},
		"bne": {
			source: []string{
				"ori $t0, $zero, 1",
				"bne $t0, $zero, target",
				"ori $t1, $zero, 1",
				"ori $t2, $zero, 1",
				"target:",
				"ori $t3, $zero, 1",
			},
			ticks: 5,
			ra:    REGISTER_JUNK,
		},
	}

	for name, entry := range table {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			cpu, _, _ := bootCpu(t, entry.source...)
			tickN(t, cpu, entry.ticks)

			assert.Equal(uint32(1), cpu.Reg(R_T1), "delay slot executes")
			assert.Equal(REGISTER_JUNK, cpu.Reg(R_T2), "skipped")
			assert.Equal(uint32(1), cpu.Reg(R_T3), "target")
			assert.Equal(entry.ra, cpu.Reg(R_RA))
		})
	}
}

func TestCpuBranchNotTaken(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := bootCpu(t,
		"bne $zero, $zero, target",
		"ori $t1, $zero, 1",
		"ori $t2, $zero, 1",
		"target:",
		"ori $t3, $zero, 1",
	)

	tickN(t, cpu, 5)
	assert.Equal(uint32(1), cpu.Reg(R_T1))
	assert.Equal(uint32(1), cpu.Reg(R_T2))
	assert.Equal(uint32(1), cpu.Reg(R_T3))
}

func TestCpuBiosStore(t *testing.T) {
	assert := assert.New(t)

	cpu, rom, hook := bootCpu(t,
		"lui $t0, 0xbfc0",
		"ori $t1, $zero, 0x55",
		"sw $t1, 0x100($t0)",
	)

	before := rom.Bytes()

	tickN(t, cpu, 4)

	assert.False(cpu.Halted)
	assert.Equal(before, rom.Bytes())
	assert.Equal(uint32(0), rom.Load32(0x100))
	assert.True(hasEntry(hook, logrus.InfoLevel, "rejected"))
}

func TestCpuCacheIsolated(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := bootCpu(t,
		"lui $t0, $(SR_ISOLATE_CACHE >> 16)",
		"mtc0 $t0, COP0_SR",
		"lw $t1, 0($zero)",
		"sw $t0, 0($zero)",
	)

	cpu.Ram.Store32(0, 0xcafe)

	tickN(t, cpu, 4)
	assert.True(cpu.Cop0.CacheIsolated())
	assert.Equal(PendingLoad{}, cpu.Load)

	tickN(t, cpu, 2)
	assert.Equal(REGISTER_JUNK, cpu.Reg(R_T1))
	assert.Equal(uint32(0xcafe), cpu.Ram.Load32(0))
	assert.False(cpu.Halted)
}

func TestCpuHalt(t *testing.T) {
	table := map[string]struct {
		source []string
		ticks  int
		err    error
		region memory.Region
	}{
		"unaligned": {
			source: []string{"lw $t0, 1($zero)"},
			ticks:  2,
			err:    ErrUnaligned,
			region: memory.REGION_MAIN,
		},
		"unmapped": {
			source: []string{"lui $t0, 0x1f00", "lw $t1, 0($t0)"},
			ticks:  3,
			err:    ErrUnmapped,
			region: memory.REGION_EXPANSION1,
		},
		"scratchpad": {
			source: []string{"lui $t0, 0x1f80", "sw $t1, 0($t0)"},
			ticks:  3,
			err:    ErrUnmapped,
			region: memory.REGION_SCRATCHPAD,
		},
		"opcode": {
			source: []string{".word 0x0000000c"},
			ticks:  2,
			err:    ErrOpcode(0),
		},
		"overflow": {
			source: []string{"li $t0, 0x7fffffff", "addi $t1, $t0, 1"},
			ticks:  4,
			err:    ErrOverflow,
		},
		"prefetch": {
			source: []string{"lui $t0, 0x1f00", "jr $t0", "nop"},
			ticks:  4,
			err:    ErrUnmapped,
			region: memory.REGION_EXPANSION1,
		},
	}

	for name, entry := range table {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			cpu, _, hook := bootCpu(t, entry.source...)
			tickN(t, cpu, entry.ticks-1)

			err := cpu.Tick()
			assert.ErrorIs(err, entry.err)
			assert.True(cpu.Halted)
			assert.ErrorIs(cpu.Err, entry.err)
			assert.True(hasEntry(hook, logrus.InfoLevel, "halted"))

			var access *ErrAccess
			if errors.As(err, &access) {
				assert.Equal(entry.region, access.Region)
			}

			ticks := cpu.Ticks
			pc := cpu.Pc
			err = cpu.Tick()
			assert.ErrorIs(err, ErrHalted)
			assert.Equal(ticks, cpu.Ticks)
			assert.Equal(pc, cpu.Pc)

			cpu.Reset()
			assert.False(cpu.Halted)
			assert.NoError(cpu.Err)
		})
	}
}

func TestCpuPrefetchHalt(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := bootCpu(t,
		"lui $t0, 0x1f00",
		"jr $t0",
		"ori $t1, $zero, 1",
	)

	tickN(t, cpu, 3)
	assert.Equal(uint32(0x1f00_0000), cpu.Pc)

	// The delay slot still executes when the fetch after it fails.
	err := cpu.Tick()
	assert.ErrorIs(err, ErrUnmapped)
	assert.True(cpu.Halted)
	assert.Equal(uint32(1), cpu.Reg(R_T1))
	assert.Equal(memory.RESET_ADDR+8, cpu.CurrentPc)
	assert.Equal(4, cpu.Ticks)
	assert.Equal(Instruction(0), cpu.NextInstruction)

	var access *ErrAccess
	if assert.ErrorAs(err, &access) {
		assert.Equal(uint32(0x1f00_0000), access.Addr)
		assert.False(access.Write)
	}
}

func TestCpuPrefetchAndExecuteHalt(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := bootCpu(t,
		"lui $t0, 0x1f00",
		"jr $t0",
		"lw $t1, 4($t0)",
	)

	tickN(t, cpu, 3)

	// Both the fetch and the delay slot fail; the fetch is reported.
	err := cpu.Tick()
	assert.ErrorIs(err, ErrUnmapped)
	assert.True(cpu.Halted)
	assert.Equal(3, cpu.Ticks)

	var access *ErrAccess
	if assert.ErrorAs(err, &access) {
		assert.Equal(uint32(0x1f00_0000), access.Addr)
	}
}

func TestCpuOverflowNoWrite(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := bootCpu(t,
		"li $t0, 0x7fffffff",
		"addi $t1, $t0, 1",
	)

	tickN(t, cpu, 3)
	err := cpu.Tick()
	assert.ErrorIs(err, ErrOverflow)
	assert.Equal(REGISTER_JUNK, cpu.Reg(R_T1))
}

func TestCpuString(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := bootCpu(t)

	text := cpu.String()
	assert.Contains(text, "pc: bfc00000")
	assert.Contains(text, "$t0: deadbeef")
	assert.Contains(text, "$zero: 00000000")
}

func TestCpuDefines(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := bootCpu(t)

	defines := map[string]string{}
	for key, value := range cpu.Defines() {
		defines[key] = value
	}
	assert.Equal("12", defines["COP0_SR"])
	assert.Equal("0x10000", defines["SR_ISOLATE_CACHE"])
}
