package cpu

import (
	"math"
)

// Execute executes a single decoded instruction.
// Register writes are staged in OutRegs; loads are staged in Load.
func (cpu *Cpu) Execute(in Instruction) (err error) {
	cpu.Log.Debugf("%08x: %v", cpu.CurrentPc, in)

	switch in.Opcode() {
	case OP_SPECIAL:
		err = cpu.executeSpecial(in)
	case OP_BCONDZ:
		cpu.opBCONDZ(in)
	case OP_J:
		cpu.opJ(in)
	case OP_JAL:
		cpu.opJAL(in)
	case OP_BEQ:
		if cpu.Reg(in.Rs()) == cpu.Reg(in.Rt()) {
			cpu.branch(in.ImmediateSE())
		}
	case OP_BNE:
		if cpu.Reg(in.Rs()) != cpu.Reg(in.Rt()) {
			cpu.branch(in.ImmediateSE())
		}
	case OP_BLEZ:
		if int32(cpu.Reg(in.Rs())) <= 0 {
			cpu.branch(in.ImmediateSE())
		}
	case OP_BGTZ:
		if int32(cpu.Reg(in.Rs())) > 0 {
			cpu.branch(in.ImmediateSE())
		}
	case OP_ADDI:
		err = cpu.opADDI(in)
	case OP_ADDIU:
		cpu.setReg(in.Rt(), cpu.Reg(in.Rs())+in.ImmediateSE())
	case OP_SLTI:
		cpu.setReg(in.Rt(), oneIfTrue(int32(cpu.Reg(in.Rs())) < in.Offset()))
	case OP_SLTIU:
		cpu.setReg(in.Rt(), oneIfTrue(cpu.Reg(in.Rs()) < in.ImmediateSE()))
	case OP_ANDI:
		cpu.setReg(in.Rt(), cpu.Reg(in.Rs())&in.Immediate())
	case OP_ORI:
		cpu.setReg(in.Rt(), cpu.Reg(in.Rs())|in.Immediate())
	case OP_XORI:
		cpu.setReg(in.Rt(), cpu.Reg(in.Rs())^in.Immediate())
	case OP_LUI:
		cpu.setReg(in.Rt(), in.Immediate()<<16)
	case OP_COP0:
		err = cpu.executeCop0(in)
	case OP_LB, OP_LH, OP_LW, OP_LBU, OP_LHU:
		err = cpu.opLoad(in)
	case OP_SB, OP_SH, OP_SW:
		err = cpu.opStore(in)
	default:
		err = ErrOpcode(in)
	}

	return
}

// executeSpecial executes the OP_SPECIAL function group.
func (cpu *Cpu) executeSpecial(in Instruction) (err error) {
	rs := cpu.Reg(in.Rs())
	rt := cpu.Reg(in.Rt())
	rd := in.Rd()

	switch in.Funct() {
	case FUNCT_SLL:
		cpu.setReg(rd, rt<<in.Shamt())
	case FUNCT_SRL:
		cpu.setReg(rd, rt>>in.Shamt())
	case FUNCT_SRA:
		cpu.setReg(rd, uint32(int32(rt)>>in.Shamt()))
	case FUNCT_SLLV:
		cpu.setReg(rd, rt<<(rs&0x1f))
	case FUNCT_SRLV:
		cpu.setReg(rd, rt>>(rs&0x1f))
	case FUNCT_SRAV:
		cpu.setReg(rd, uint32(int32(rt)>>(rs&0x1f)))
	case FUNCT_JR:
		cpu.Pc = rs
	case FUNCT_JALR:
		cpu.setReg(rd, cpu.Pc)
		cpu.Pc = rs
	case FUNCT_MFHI:
		cpu.setReg(rd, cpu.Hi)
	case FUNCT_MTHI:
		cpu.Hi = rs
	case FUNCT_MFLO:
		cpu.setReg(rd, cpu.Lo)
	case FUNCT_MTLO:
		cpu.Lo = rs
	case FUNCT_MULT:
		v := uint64(int64(int32(rs)) * int64(int32(rt)))
		cpu.Hi = uint32(v >> 32)
		cpu.Lo = uint32(v)
	case FUNCT_MULTU:
		v := uint64(rs) * uint64(rt)
		cpu.Hi = uint32(v >> 32)
		cpu.Lo = uint32(v)
	case FUNCT_DIV:
		cpu.opDIV(int32(rs), int32(rt))
	case FUNCT_DIVU:
		cpu.opDIVU(rs, rt)
	case FUNCT_ADD:
		var v int32
		v, err = add32Overflow(int32(rs), int32(rt))
		if err != nil {
			return
		}
		cpu.setReg(rd, uint32(v))
	case FUNCT_ADDU:
		cpu.setReg(rd, rs+rt)
	case FUNCT_SUB:
		var v int32
		v, err = sub32Overflow(int32(rs), int32(rt))
		if err != nil {
			return
		}
		cpu.setReg(rd, uint32(v))
	case FUNCT_SUBU:
		cpu.setReg(rd, rs-rt)
	case FUNCT_AND:
		cpu.setReg(rd, rs&rt)
	case FUNCT_OR:
		cpu.setReg(rd, rs|rt)
	case FUNCT_XOR:
		cpu.setReg(rd, rs^rt)
	case FUNCT_NOR:
		cpu.setReg(rd, ^(rs | rt))
	case FUNCT_SLT:
		cpu.setReg(rd, oneIfTrue(int32(rs) < int32(rt)))
	case FUNCT_SLTU:
		cpu.setReg(rd, oneIfTrue(rs < rt))
	default:
		err = ErrOpcode(in)
	}

	return
}

// executeCop0 executes the system control coprocessor group.
func (cpu *Cpu) executeCop0(in Instruction) (err error) {
	copR := uint32(in.Rd())

	switch in.CopOp() {
	case COP_MF:
		// Coprocessor reads are delayed like memory loads.
		// cop0r16 and up do not exist, and read as 0.
		var v uint32
		if copR < uint32(len(cpu.Cop0.Register)) {
			v = cpu.Cop0.Register[copR]
		}
		cpu.Load = PendingLoad{Reg: in.Rt(), Value: v}
	case COP_MT:
		v := cpu.Reg(in.Rt())
		switch copR {
		case COP0_SR:
			cpu.Cop0.Register[COP0_SR] = v
		default:
			cpu.Log.Infof("cpu: ignoring write of %x to cop0r%v", v, copR)
		}
	default:
		err = ErrOpcode(in)
	}

	return
}

// branch moves PC by a word offset relative to the delay slot.
// PC already points past the delay slot, so compensate by 4.
func (cpu *Cpu) branch(offset uint32) {
	cpu.Pc += (offset << 2) - 4
}

// opBCONDZ handles BLTZ, BGEZ, BLTZAL, and BGEZAL. Bit 16 selects the
// comparison, and bits [20:17] == 0b1000 select linking. Any other rt
// value decodes as plain BLTZ or BGEZ, as the hardware does.
func (cpu *Cpu) opBCONDZ(in Instruction) {
	rt := uint32(in.Rt())
	isBGEZ := rt&1 != 0
	isLink := rt>>1 == 0b1000

	test := int32(cpu.Reg(in.Rs())) < 0
	if isBGEZ {
		test = !test
	}

	if isLink {
		cpu.setReg(R_RA, cpu.Pc)
	}

	if test {
		cpu.branch(in.ImmediateSE())
	}
}

// opJ jumps within the current 256MB region.
func (cpu *Cpu) opJ(in Instruction) {
	cpu.Pc = (cpu.Pc & 0xf000_0000) | (in.Target() << 2)
}

// opJAL jumps, saving the address after the delay slot in $ra.
func (cpu *Cpu) opJAL(in Instruction) {
	cpu.setReg(R_RA, cpu.Pc)
	cpu.opJ(in)
}

// opADDI adds a signed immediate, halting on signed overflow.
func (cpu *Cpu) opADDI(in Instruction) (err error) {
	v, err := add32Overflow(int32(cpu.Reg(in.Rs())), in.Offset())
	if err != nil {
		return
	}

	cpu.setReg(in.Rt(), uint32(v))
	return
}

// opDIV divides, with the R3000A results for the undefined cases.
func (cpu *Cpu) opDIV(n, d int32) {
	switch {
	case d == 0:
		cpu.Hi = uint32(n)
		if n >= 0 {
			cpu.Lo = 0xffff_ffff
		} else {
			cpu.Lo = 1
		}
	case n == math.MinInt32 && d == -1:
		cpu.Hi = 0
		cpu.Lo = 0x8000_0000
	default:
		cpu.Hi = uint32(n % d)
		cpu.Lo = uint32(n / d)
	}
}

// opDIVU divides unsigned; division by zero gives all-ones.
func (cpu *Cpu) opDIVU(n, d uint32) {
	if d == 0 {
		cpu.Hi = n
		cpu.Lo = 0xffff_ffff
		return
	}

	cpu.Hi = n % d
	cpu.Lo = n / d
}

// opLoad issues a memory load into the delay slot.
func (cpu *Cpu) opLoad(in Instruction) (err error) {
	op := in.Opcode()

	if cpu.Cop0.CacheIsolated() {
		cpu.Log.Debugf("cpu: ignoring %v while cache is isolated", op)
		return
	}

	addr := cpu.Reg(in.Base()) + in.ImmediateSE()

	var v uint32
	switch op {
	case OP_LB:
		var b uint8
		b, err = cpu.Load8(addr)
		v = uint32(int8(b))
	case OP_LBU:
		var b uint8
		b, err = cpu.Load8(addr)
		v = uint32(b)
	case OP_LH:
		var h uint16
		h, err = cpu.Load16(addr)
		v = uint32(int16(h))
	case OP_LHU:
		var h uint16
		h, err = cpu.Load16(addr)
		v = uint32(h)
	default:
		v, err = cpu.Load32(addr)
	}
	if err != nil {
		return
	}

	cpu.Load = PendingLoad{Reg: in.Rt(), Value: v}

	return
}

// opStore issues a memory store.
func (cpu *Cpu) opStore(in Instruction) (err error) {
	op := in.Opcode()

	if cpu.Cop0.CacheIsolated() {
		cpu.Log.Debugf("cpu: ignoring %v while cache is isolated", op)
		return
	}

	addr := cpu.Reg(in.Base()) + in.ImmediateSE()
	v := cpu.Reg(in.Rt())

	switch op {
	case OP_SB:
		err = cpu.Store8(addr, uint8(v))
	case OP_SH:
		err = cpu.Store16(addr, uint16(v))
	default:
		err = cpu.Store32(addr, v)
	}

	return
}

// add32Overflow adds, returning ErrOverflow if the sum does not fit.
func add32Overflow(a, b int32) (sum int32, err error) {
	v := int64(a) + int64(b)
	if v > math.MaxInt32 || v < math.MinInt32 {
		err = ErrOverflow
		return
	}
	sum = int32(v)
	return
}

// sub32Overflow subtracts, returning ErrOverflow if the result does not fit.
func sub32Overflow(a, b int32) (diff int32, err error) {
	v := int64(a) - int64(b)
	if v > math.MaxInt32 || v < math.MinInt32 {
		err = ErrOverflow
		return
	}
	diff = int32(v)
	return
}

func oneIfTrue(cond bool) uint32 {
	if cond {
		return 1
	}
	return 0
}
