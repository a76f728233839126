package cpu

import (
	"fmt"
	"strings"
)

// Op is the primary opcode, bits [31:26].
type Op uint32

const (
	OP_SPECIAL = Op(0x00) // special
	OP_BCONDZ  = Op(0x01) // bcondz
	OP_J       = Op(0x02) // j
	OP_JAL     = Op(0x03) // jal
	OP_BEQ     = Op(0x04) // beq
	OP_BNE     = Op(0x05) // bne
	OP_BLEZ    = Op(0x06) // blez
	OP_BGTZ    = Op(0x07) // bgtz
	OP_ADDI    = Op(0x08) // addi
	OP_ADDIU   = Op(0x09) // addiu
	OP_SLTI    = Op(0x0a) // slti
	OP_SLTIU   = Op(0x0b) // sltiu
	OP_ANDI    = Op(0x0c) // andi
	OP_ORI     = Op(0x0d) // ori
	OP_XORI    = Op(0x0e) // xori
	OP_LUI     = Op(0x0f) // lui
	OP_COP0    = Op(0x10) // cop0
	OP_COP1    = Op(0x11) // cop1
	OP_COP2    = Op(0x12) // cop2
	OP_COP3    = Op(0x13) // cop3
	OP_LB      = Op(0x20) // lb
	OP_LH      = Op(0x21) // lh
	OP_LWL     = Op(0x22) // lwl
	OP_LW      = Op(0x23) // lw
	OP_LBU     = Op(0x24) // lbu
	OP_LHU     = Op(0x25) // lhu
	OP_LWR     = Op(0x26) // lwr
	OP_SB      = Op(0x28) // sb
	OP_SH      = Op(0x29) // sh
	OP_SWL     = Op(0x2a) // swl
	OP_SW      = Op(0x2b) // sw
	OP_SWR     = Op(0x2e) // swr
)

var opName = map[Op]string{
	OP_SPECIAL: "special",
	OP_BCONDZ:  "bcondz",
	OP_J:       "j",
	OP_JAL:     "jal",
	OP_BEQ:     "beq",
	OP_BNE:     "bne",
	OP_BLEZ:    "blez",
	OP_BGTZ:    "bgtz",
	OP_ADDI:    "addi",
	OP_ADDIU:   "addiu",
	OP_SLTI:    "slti",
	OP_SLTIU:   "sltiu",
	OP_ANDI:    "andi",
	OP_ORI:     "ori",
	OP_XORI:    "xori",
	OP_LUI:     "lui",
	OP_COP0:    "cop0",
	OP_COP1:    "cop1",
	OP_COP2:    "cop2",
	OP_COP3:    "cop3",
	OP_LB:      "lb",
	OP_LH:      "lh",
	OP_LWL:     "lwl",
	OP_LW:      "lw",
	OP_LBU:     "lbu",
	OP_LHU:     "lhu",
	OP_LWR:     "lwr",
	OP_SB:      "sb",
	OP_SH:      "sh",
	OP_SWL:     "swl",
	OP_SW:      "sw",
	OP_SWR:     "swr",
}

func (op Op) String() string {
	name, ok := opName[op]
	if !ok {
		return fmt.Sprintf("op(0x%02x)", uint32(op))
	}
	return name
}

// Funct is the SPECIAL function code, bits [5:0].
type Funct uint32

const (
	FUNCT_SLL     = Funct(0x00) // sll
	FUNCT_SRL     = Funct(0x02) // srl
	FUNCT_SRA     = Funct(0x03) // sra
	FUNCT_SLLV    = Funct(0x04) // sllv
	FUNCT_SRLV    = Funct(0x06) // srlv
	FUNCT_SRAV    = Funct(0x07) // srav
	FUNCT_JR      = Funct(0x08) // jr
	FUNCT_JALR    = Funct(0x09) // jalr
	FUNCT_SYSCALL = Funct(0x0c) // syscall
	FUNCT_BREAK   = Funct(0x0d) // break
	FUNCT_MFHI    = Funct(0x10) // mfhi
	FUNCT_MTHI    = Funct(0x11) // mthi
	FUNCT_MFLO    = Funct(0x12) // mflo
	FUNCT_MTLO    = Funct(0x13) // mtlo
	FUNCT_MULT    = Funct(0x18) // mult
	FUNCT_MULTU   = Funct(0x19) // multu
	FUNCT_DIV     = Funct(0x1a) // div
	FUNCT_DIVU    = Funct(0x1b) // divu
	FUNCT_ADD     = Funct(0x20) // add
	FUNCT_ADDU    = Funct(0x21) // addu
	FUNCT_SUB     = Funct(0x22) // sub
	FUNCT_SUBU    = Funct(0x23) // subu
	FUNCT_AND     = Funct(0x24) // and
	FUNCT_OR      = Funct(0x25) // or
	FUNCT_XOR     = Funct(0x26) // xor
	FUNCT_NOR     = Funct(0x27) // nor
	FUNCT_SLT     = Funct(0x2a) // slt
	FUNCT_SLTU    = Funct(0x2b) // sltu
)

var functName = map[Funct]string{
	FUNCT_SLL:     "sll",
	FUNCT_SRL:     "srl",
	FUNCT_SRA:     "sra",
	FUNCT_SLLV:    "sllv",
	FUNCT_SRLV:    "srlv",
	FUNCT_SRAV:    "srav",
	FUNCT_JR:      "jr",
	FUNCT_JALR:    "jalr",
	FUNCT_SYSCALL: "syscall",
	FUNCT_BREAK:   "break",
	FUNCT_MFHI:    "mfhi",
	FUNCT_MTHI:    "mthi",
	FUNCT_MFLO:    "mflo",
	FUNCT_MTLO:    "mtlo",
	FUNCT_MULT:    "mult",
	FUNCT_MULTU:   "multu",
	FUNCT_DIV:     "div",
	FUNCT_DIVU:    "divu",
	FUNCT_ADD:     "add",
	FUNCT_ADDU:    "addu",
	FUNCT_SUB:     "sub",
	FUNCT_SUBU:    "subu",
	FUNCT_AND:     "and",
	FUNCT_OR:      "or",
	FUNCT_XOR:     "xor",
	FUNCT_NOR:     "nor",
	FUNCT_SLT:     "slt",
	FUNCT_SLTU:    "sltu",
}

func (fn Funct) String() string {
	name, ok := functName[fn]
	if !ok {
		return fmt.Sprintf("funct(0x%02x)", uint32(fn))
	}
	return name
}

// CopOp is the coprocessor sub-opcode, bits [25:21].
type CopOp uint32

const (
	COP_MF = CopOp(0x00) // mf
	COP_CF = CopOp(0x02) // cf
	COP_MT = CopOp(0x04) // mt
	COP_CT = CopOp(0x06) // ct
	COP_CO = CopOp(0x10) // co
)

var copOpName = map[CopOp]string{
	COP_MF: "mf",
	COP_CF: "cf",
	COP_MT: "mt",
	COP_CT: "ct",
	COP_CO: "co",
}

func (cop CopOp) String() string {
	name, ok := copOpName[cop]
	if !ok {
		return fmt.Sprintf("copop(0x%02x)", uint32(cop))
	}
	return name
}

// Instruction is a single 32-bit instruction word.
type Instruction uint32

// MakeInstruction composes an instruction from four bytes in
// little-endian order.
func MakeInstruction(a, b, c, d uint8) Instruction {
	return Instruction(uint32(d)<<24 | uint32(c)<<16 | uint32(b)<<8 | uint32(a))
}

// MakeR encodes a register-format (SPECIAL) instruction.
func MakeR(fn Funct, rd, rs, rt Register, shamt uint32) Instruction {
	return Instruction(uint32(OP_SPECIAL)<<26 |
		(uint32(rs)&0x1f)<<21 |
		(uint32(rt)&0x1f)<<16 |
		(uint32(rd)&0x1f)<<11 |
		(shamt&0x1f)<<6 |
		uint32(fn)&0x3f)
}

// MakeI encodes an immediate-format instruction.
func MakeI(op Op, rt, rs Register, imm uint16) Instruction {
	return Instruction((uint32(op)&0x3f)<<26 |
		(uint32(rs)&0x1f)<<21 |
		(uint32(rt)&0x1f)<<16 |
		uint32(imm))
}

// MakeJ encodes a jump-format instruction.
func MakeJ(op Op, target uint32) Instruction {
	return Instruction((uint32(op)&0x3f)<<26 | target&0x3ff_ffff)
}

// MakeCop encodes a coprocessor register move.
func MakeCop(op Op, cop CopOp, rt Register, rd uint32) Instruction {
	return Instruction((uint32(op)&0x3f)<<26 |
		(uint32(cop)&0x1f)<<21 |
		(uint32(rt)&0x1f)<<16 |
		(rd&0x1f)<<11)
}

// Opcode returns bits [31:26].
func (in Instruction) Opcode() Op {
	return Op((uint32(in) >> 26) & 0x3f)
}

// Rs returns bits [25:21].
func (in Instruction) Rs() Register {
	return Register((uint32(in) >> 21) & 0x1f)
}

// Base is Rs, named for load/store addressing.
func (in Instruction) Base() Register {
	return in.Rs()
}

// CopOp is Rs, named for coprocessor instructions.
func (in Instruction) CopOp() CopOp {
	return CopOp(in.Rs())
}

// Rt returns bits [20:16].
func (in Instruction) Rt() Register {
	return Register((uint32(in) >> 16) & 0x1f)
}

// Rd returns bits [15:11].
func (in Instruction) Rd() Register {
	return Register((uint32(in) >> 11) & 0x1f)
}

// Shamt returns the shift amount in bits [10:6].
func (in Instruction) Shamt() uint32 {
	return (uint32(in) >> 6) & 0x1f
}

// Funct returns bits [5:0].
func (in Instruction) Funct() Funct {
	return Funct(uint32(in) & 0x3f)
}

// Immediate returns bits [15:0], zero extended.
func (in Instruction) Immediate() uint32 {
	return uint32(in) & 0xffff
}

// Offset returns bits [15:0], sign extended.
func (in Instruction) Offset() int32 {
	return int32(int16(uint16(in)))
}

// ImmediateSE returns bits [15:0] sign extended to 32 bits.
func (in Instruction) ImmediateSE() uint32 {
	return uint32(in.Offset())
}

// Target returns the jump target in bits [25:0].
func (in Instruction) Target() uint32 {
	return uint32(in) & 0x3ff_ffff
}

// Format is the operand layout of an instruction, shared by the
// disassembler and the assembler.
type Format int

const (
	FMT_NONE           = Format(iota) // no operands
	FMT_RD_RS_RT                      // rd, rs, rt
	FMT_RD_RT_SHAMT                   // rd, rt, shamt
	FMT_RD_RT_RS                      // rd, rt, rs
	FMT_RS                            // rs
	FMT_RD_RS                         // rd, rs
	FMT_RD                            // rd
	FMT_RS_RT                         // rs, rt
	FMT_RT_RS_IMM                     // rt, rs, imm
	FMT_RT_RS_SIMM                    // rt, rs, simm
	FMT_RT_IMM                        // rt, imm
	FMT_RT_OFFSET_BASE                // rt, offset(base)
	FMT_RS_RT_BRANCH                  // rs, rt, offset
	FMT_RS_BRANCH                     // rs, offset
	FMT_TARGET                        // target
	FMT_RT_COPREG                     // rt, copreg
)

// Mnemonic describes the encoding of one assembler mnemonic.
type Mnemonic struct {
	Name   string
	Op     Op
	Funct  Funct  // For OP_SPECIAL.
	Rt     uint32 // For OP_BCONDZ.
	CopOp  CopOp  // For OP_COPn.
	Format Format
}

// Mnemonics is the instruction table. Every entry here is executable.
// The CPU decodes OP_BCONDZ loosely: rt values other than those listed
// still execute, as bltz or bgez by bit 16, but have no mnemonic and
// disassemble as .word.
var Mnemonics = []Mnemonic{
	{Name: "sll", Funct: FUNCT_SLL, Format: FMT_RD_RT_SHAMT},
	{Name: "srl", Funct: FUNCT_SRL, Format: FMT_RD_RT_SHAMT},
	{Name: "sra", Funct: FUNCT_SRA, Format: FMT_RD_RT_SHAMT},
	{Name: "sllv", Funct: FUNCT_SLLV, Format: FMT_RD_RT_RS},
	{Name: "srlv", Funct: FUNCT_SRLV, Format: FMT_RD_RT_RS},
	{Name: "srav", Funct: FUNCT_SRAV, Format: FMT_RD_RT_RS},
	{Name: "jr", Funct: FUNCT_JR, Format: FMT_RS},
	{Name: "jalr", Funct: FUNCT_JALR, Format: FMT_RD_RS},
	{Name: "mfhi", Funct: FUNCT_MFHI, Format: FMT_RD},
	{Name: "mthi", Funct: FUNCT_MTHI, Format: FMT_RS},
	{Name: "mflo", Funct: FUNCT_MFLO, Format: FMT_RD},
	{Name: "mtlo", Funct: FUNCT_MTLO, Format: FMT_RS},
	{Name: "mult", Funct: FUNCT_MULT, Format: FMT_RS_RT},
	{Name: "multu", Funct: FUNCT_MULTU, Format: FMT_RS_RT},
	{Name: "div", Funct: FUNCT_DIV, Format: FMT_RS_RT},
	{Name: "divu", Funct: FUNCT_DIVU, Format: FMT_RS_RT},
	{Name: "add", Funct: FUNCT_ADD, Format: FMT_RD_RS_RT},
	{Name: "addu", Funct: FUNCT_ADDU, Format: FMT_RD_RS_RT},
	{Name: "sub", Funct: FUNCT_SUB, Format: FMT_RD_RS_RT},
	{Name: "subu", Funct: FUNCT_SUBU, Format: FMT_RD_RS_RT},
	{Name: "and", Funct: FUNCT_AND, Format: FMT_RD_RS_RT},
	{Name: "or", Funct: FUNCT_OR, Format: FMT_RD_RS_RT},
	{Name: "xor", Funct: FUNCT_XOR, Format: FMT_RD_RS_RT},
	{Name: "nor", Funct: FUNCT_NOR, Format: FMT_RD_RS_RT},
	{Name: "slt", Funct: FUNCT_SLT, Format: FMT_RD_RS_RT},
	{Name: "sltu", Funct: FUNCT_SLTU, Format: FMT_RD_RS_RT},
	{Name: "bltz", Op: OP_BCONDZ, Rt: 0x00, Format: FMT_RS_BRANCH},
	{Name: "bgez", Op: OP_BCONDZ, Rt: 0x01, Format: FMT_RS_BRANCH},
	{Name: "bltzal", Op: OP_BCONDZ, Rt: 0x10, Format: FMT_RS_BRANCH},
	{Name: "bgezal", Op: OP_BCONDZ, Rt: 0x11, Format: FMT_RS_BRANCH},
	{Name: "j", Op: OP_J, Format: FMT_TARGET},
	{Name: "jal", Op: OP_JAL, Format: FMT_TARGET},
	{Name: "beq", Op: OP_BEQ, Format: FMT_RS_RT_BRANCH},
	{Name: "bne", Op: OP_BNE, Format: FMT_RS_RT_BRANCH},
	{Name: "blez", Op: OP_BLEZ, Format: FMT_RS_BRANCH},
	{Name: "bgtz", Op: OP_BGTZ, Format: FMT_RS_BRANCH},
	{Name: "addi", Op: OP_ADDI, Format: FMT_RT_RS_SIMM},
	{Name: "addiu", Op: OP_ADDIU, Format: FMT_RT_RS_SIMM},
	{Name: "slti", Op: OP_SLTI, Format: FMT_RT_RS_SIMM},
	{Name: "sltiu", Op: OP_SLTIU, Format: FMT_RT_RS_SIMM},
	{Name: "andi", Op: OP_ANDI, Format: FMT_RT_RS_IMM},
	{Name: "ori", Op: OP_ORI, Format: FMT_RT_RS_IMM},
	{Name: "xori", Op: OP_XORI, Format: FMT_RT_RS_IMM},
	{Name: "lui", Op: OP_LUI, Format: FMT_RT_IMM},
	{Name: "mfc0", Op: OP_COP0, CopOp: COP_MF, Format: FMT_RT_COPREG},
	{Name: "mtc0", Op: OP_COP0, CopOp: COP_MT, Format: FMT_RT_COPREG},
	{Name: "lb", Op: OP_LB, Format: FMT_RT_OFFSET_BASE},
	{Name: "lh", Op: OP_LH, Format: FMT_RT_OFFSET_BASE},
	{Name: "lw", Op: OP_LW, Format: FMT_RT_OFFSET_BASE},
	{Name: "lbu", Op: OP_LBU, Format: FMT_RT_OFFSET_BASE},
	{Name: "lhu", Op: OP_LHU, Format: FMT_RT_OFFSET_BASE},
	{Name: "sb", Op: OP_SB, Format: FMT_RT_OFFSET_BASE},
	{Name: "sh", Op: OP_SH, Format: FMT_RT_OFFSET_BASE},
	{Name: "sw", Op: OP_SW, Format: FMT_RT_OFFSET_BASE},
}

var mnemonicByName = func() map[string]*Mnemonic {
	names := make(map[string]*Mnemonic, len(Mnemonics))
	for n := range Mnemonics {
		names[Mnemonics[n].Name] = &Mnemonics[n]
	}
	return names
}()

// LookupMnemonic finds the table entry for an assembler mnemonic.
func LookupMnemonic(name string) (mn *Mnemonic, ok bool) {
	mn, ok = mnemonicByName[strings.ToLower(name)]
	return
}

// Mnemonic returns the table entry matching the instruction, if any.
func (in Instruction) Mnemonic() (mn *Mnemonic, ok bool) {
	op := in.Opcode()
	for n := range Mnemonics {
		entry := &Mnemonics[n]
		if entry.Op != op {
			continue
		}
		switch op {
		case OP_SPECIAL:
			if entry.Funct != in.Funct() {
				continue
			}
		case OP_BCONDZ:
			if entry.Rt != uint32(in.Rt()) {
				continue
			}
		case OP_COP0:
			if entry.CopOp != in.CopOp() {
				continue
			}
		}
		return entry, true
	}
	return
}

// Encode builds an instruction from the mnemonic and its operands.
// Operands not used by the format are ignored.
func (mn *Mnemonic) Encode(rd, rs, rt Register, shamt uint32, imm uint16, target uint32) Instruction {
	switch mn.Op {
	case OP_SPECIAL:
		return MakeR(mn.Funct, rd, rs, rt, shamt)
	case OP_BCONDZ:
		return MakeI(mn.Op, Register(mn.Rt), rs, imm)
	case OP_J, OP_JAL:
		return MakeJ(mn.Op, target)
	case OP_COP0:
		return MakeCop(mn.Op, mn.CopOp, rt, uint32(rd))
	default:
		return MakeI(mn.Op, rt, rs, imm)
	}
}

// String disassembles the instruction.
func (in Instruction) String() string {
	if in == 0 {
		return "nop"
	}

	mn, ok := in.Mnemonic()
	if !ok {
		return fmt.Sprintf(".word 0x%08x", uint32(in))
	}

	var args string
	switch mn.Format {
	case FMT_RD_RS_RT:
		args = fmt.Sprintf("%v, %v, %v", in.Rd(), in.Rs(), in.Rt())
	case FMT_RD_RT_SHAMT:
		args = fmt.Sprintf("%v, %v, %d", in.Rd(), in.Rt(), in.Shamt())
	case FMT_RD_RT_RS:
		args = fmt.Sprintf("%v, %v, %v", in.Rd(), in.Rt(), in.Rs())
	case FMT_RS:
		args = in.Rs().String()
	case FMT_RD_RS:
		args = fmt.Sprintf("%v, %v", in.Rd(), in.Rs())
	case FMT_RD:
		args = in.Rd().String()
	case FMT_RS_RT:
		args = fmt.Sprintf("%v, %v", in.Rs(), in.Rt())
	case FMT_RT_RS_IMM:
		args = fmt.Sprintf("%v, %v, 0x%x", in.Rt(), in.Rs(), in.Immediate())
	case FMT_RT_RS_SIMM:
		args = fmt.Sprintf("%v, %v, %d", in.Rt(), in.Rs(), in.Offset())
	case FMT_RT_IMM:
		args = fmt.Sprintf("%v, 0x%x", in.Rt(), in.Immediate())
	case FMT_RT_OFFSET_BASE:
		args = fmt.Sprintf("%v, %d(%v)", in.Rt(), in.Offset(), in.Base())
	case FMT_RS_RT_BRANCH:
		args = fmt.Sprintf("%v, %v, %d", in.Rs(), in.Rt(), in.Offset())
	case FMT_RS_BRANCH:
		args = fmt.Sprintf("%v, %d", in.Rs(), in.Offset())
	case FMT_TARGET:
		args = fmt.Sprintf("0x%07x", in.Target()<<2)
	case FMT_RT_COPREG:
		args = fmt.Sprintf("%v, $%d", in.Rt(), uint32(in.Rd()))
	}

	return mn.Name + " " + args
}
