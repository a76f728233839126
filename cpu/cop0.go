package cpu

// COP0 register indices.
const (
	COP0_BPC      = 3  // Breakpoint on execute.
	COP0_BDA      = 5  // Breakpoint on data access.
	COP0_JUMPDEST = 6  // Randomly memorized jump address.
	COP0_DCIC     = 7  // Breakpoint control.
	COP0_BADVADDR = 8  // Bad virtual address.
	COP0_BDAM     = 9  // Data access breakpoint mask.
	COP0_BPCM     = 11 // Execute breakpoint mask.
	COP0_SR       = 12 // Status register.
	COP0_CAUSE    = 13 // Exception cause.
	COP0_EPC      = 14 // Exception return address.
	COP0_PRID     = 15 // Processor ID.
)

// SR_ISOLATE_CACHE is the status register "isolate cache" bit.
const SR_ISOLATE_CACHE = uint32(1 << 16)

// Cop0 is the system control coprocessor register bank.
// Only the status register has any effect on execution.
type Cop0 struct {
	Register [16]uint32
}

// SR returns the status register.
func (cop *Cop0) SR() uint32 {
	return cop.Register[COP0_SR]
}

// CacheIsolated is true when loads and stores are cut off from memory.
func (cop *Cop0) CacheIsolated() bool {
	return cop.SR()&SR_ISOLATE_CACHE != 0
}

// Reset clears the register bank.
func (cop *Cop0) Reset() {
	clear(cop.Register[:])
}
