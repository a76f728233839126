package cpu

import (
	"errors"

	"github.com/ezrec/prosur/memory"
	"github.com/ezrec/prosur/translate"
)

var f = translate.From

var (
	// Cpu errors
	ErrHalted    = errors.New(f("halted"))
	ErrUnaligned = errors.New(f("unaligned access"))
	ErrUnmapped  = errors.New(f("unhandled region"))
	ErrOverflow  = errors.New(f("integer overflow"))

	// Assembler errors
	ErrEquateSyntax       = errors.New(f(".equ syntax"))
	ErrEquateDuplicate    = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrMacroSyntax        = errors.New(f(".macro syntax"))
	ErrMacroNesting       = errors.New(f(".macro in .macro prohibited"))
	ErrMacroDuplicate     = errors.New(f(".macro duplicated"))
	ErrMacroLonely        = errors.New(f(".macro without .endm"))
	ErrMacroLonelyEndm    = errors.New(f(".endm without .macro"))
	ErrOrgBackwards       = errors.New(f(".org moves backwards"))
	ErrOperandCount       = errors.New(f("wrong number of operands"))
	ErrInstructionInvalid = errors.New(f("instruction invalid"))
	ErrRegisterInvalid    = errors.New(f("register invalid"))
	ErrImmediateRange     = errors.New(f("immediate out of range"))
	ErrBranchRange        = errors.New(f("branch target out of range"))
	ErrBranchAlign        = errors.New(f("branch target unaligned"))
	ErrJumpRegion         = errors.New(f("jump target outside 256MB region"))
	ErrProgramSize        = errors.New(f("program too large"))
)

// ErrOpcode is an instruction the CPU does not implement.
type ErrOpcode Instruction

func (eo ErrOpcode) Error() string {
	in := Instruction(eo)
	return f("unhandled instruction 0x%08x, opcode 0x%02x, funct 0x%02x, cop 0x%02x",
		uint32(in), uint32(in.Opcode()), uint32(in.Funct()), uint32(in.CopOp()))
}

func (eo ErrOpcode) Is(err error) (ok bool) {
	_, ok = err.(ErrOpcode)
	return
}

// ErrAccess describes a failed memory access.
type ErrAccess struct {
	Addr   uint32        // Virtual address.
	Region memory.Region // Region of the translated address.
	Write  bool          // Set for stores.
	Err    error
}

func (err *ErrAccess) Error() string {
	kind := "read"
	if err.Write {
		kind = "write"
	}
	return f("%v %#08x (%v): %v", kind, err.Addr, err.Region, err.Err)
}

func (err *ErrAccess) Unwrap() error {
	return err.Err
}

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

type ErrMacro struct {
	Macro string
	Line  int
	Err   error
}

func (err ErrMacro) Error() string {
	return f("macro %v line %v %v", err.Macro, err.Line, err.Err.Error())
}

func (err ErrMacro) Unwrap() error {
	return err.Err
}
