// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/prosur/internal"
	"github.com/ezrec/prosur/memory"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = func() map[string]string {
	equ := maps.Collect(internal.IterSeq2Concat(maps.All(_cpu_defines), memory.Defines()))
	equ["LINENO"] = "0"
	return equ
}()

var (
	reCharacter  = regexp.MustCompile(`'\\?[^']'`)
	reParen      = regexp.MustCompile(`\$\([^\$]*\)`)
	reOffsetBase = regexp.MustCompile(`^(.*)\(([^()]+)\)$`)
)

// Assembler is a single pass macro assembler for R3000A code.
// Code is placed from the reset vector onwards.
type Assembler struct {
	Verbose bool               // If set, verbosely logs the assembler actions.
	Log     logrus.FieldLogger // Destination for verbose output.
	Opcode  []Opcode           // List of generated opcodes.

	predefine map[string]string   // Predefines
	Label     map[string]uint32   // Map of labels to addresses.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.

	addr uint32 // Address of the next instruction.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// fields splits a line on whitespace and commas.
func fields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// stripComment removes a ';' or '#' comment, leaving character
// constants such as '#' in place.
func stripComment(text string) string {
	quoted := reCharacter.FindAllStringIndex(text, -1)

	for n, c := range text {
		if c != ';' && c != '#' {
			continue
		}
		if !slices.ContainsFunc(quoted, func(span []int) bool {
			return n >= span[0] && n < span[1]
		}) {
			return text[:n]
		}
	}

	return text
}

// valueOf returns the value of a simple word.
func (asm *Assembler) valueOf(word string) (value uint32, err error) {
	equate, ok := asm.Equate[word]
	if ok {
		word = equate
	}

	invert := false
	if len(word) > 1 && word[0] == '~' {
		invert = true
		word = word[1:]
	}

	v64, err := strconv.ParseInt(word, 0, 64)
	if err != nil || v64 > 0xffffffff || v64 < -int64(0x80000000) {
		err = ErrParseNumber(word)
		return
	}

	value = uint32(v64)
	if invert {
		value = ^value
	}

	return
}

// parenHalf builds the hi() and lo() expression helpers.
func parenHalf(shift int) *starlark.Builtin {
	name := "lo"
	if shift != 0 {
		name = "hi"
	}
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) != 1 || len(kwargs) != 0 {
			return nil, fmt.Errorf("%s: expected one argument", fn.Name())
		}
		v, ok := args[0].(starlark.Int)
		if !ok {
			return nil, fmt.Errorf("%s: expected an int, got %s", fn.Name(), args[0].Type())
		}
		v64, ok := v.Int64()
		if !ok {
			return nil, fmt.Errorf("%s: value out of range", fn.Name())
		}
		return starlark.MakeInt64((v64 >> shift) & 0xffff), nil
	})
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value uint32, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{
		"hi": parenHalf(16),
		"lo": parenHalf(0),
	}
	for key, str := range asm.Equate {
		var value32 uint32
		value32, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			err = nil
			continue
		}
		pred[key] = starlark.MakeInt64(int64(value32))
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = uint32(st_int64)
	return
}

// parseLine parses a single line as an opcode.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do 'x' evaluations
	line = reCharacter.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "0":
				str = "\000"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	line = reParen.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%#x", value)
	})
	if err != nil {
		return
	}

	words = fields(line)

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		asm.Label[label] = asm.addr
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = words[1+n]
		}
		defer func() { asm.Equate = old_equate }()

		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", fmt.Sprintf("%v_%v_", name, lineno))
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}

			err = asm.parseWords(words, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// Parse parses an input stream into a Program containing opcodes.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	asm.addr = memory.RESET_ADDR
	asm.Label = make(map[string]uint32, 16)
	asm.Opcode = asm.Opcode[:0]
	if asm.Macro == nil {
		asm.Macro = make(map[string](*Macro))
	}
	clear(asm.Macro)
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			internal.Logger(asm.Log).Infof("%v: %v", lineno, text)
		}

		line = strings.TrimSpace(stripComment(text))
		words := fields(line)

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Final linking of labels.
	for n := range asm.Opcode {
		op := &asm.Opcode[n]

		if len(op.LinkLabel) == 0 {
			continue
		}

		lineno = op.LineNo
		line = strings.Join(op.Words, " ")

		target, ok := asm.Label[op.LinkLabel]
		if !ok {
			err = ErrLabelMissing(op.LinkLabel)
			return
		}

		for c := range op.Codes {
			op.Codes[c], err = link(op.Codes[c], op.Addr+uint32(4*c), target)
			if err != nil {
				return
			}
		}
	}

	prog = &Program{
		Opcodes: slices.Clone(asm.Opcode),
	}

	return
}

// link resolves the target address of an instruction at addr.
func link(code Instruction, addr uint32, target uint32) (linked Instruction, err error) {
	mn, ok := code.Mnemonic()
	if !ok {
		err = ErrInstructionInvalid
		return
	}

	switch mn.Format {
	case FMT_RS_RT_BRANCH, FMT_RS_BRANCH:
		if target&3 != 0 {
			err = ErrBranchAlign
			return
		}
		delta := (int64(target) - int64(addr+4)) >> 2
		if delta < -0x8000 || delta > 0x7fff {
			err = ErrBranchRange
			return
		}
		linked = code&^0xffff | Instruction(uint16(delta))
	case FMT_TARGET:
		if target&3 != 0 {
			err = ErrBranchAlign
			return
		}
		if target&0xf000_0000 != (addr+4)&0xf000_0000 {
			err = ErrJumpRegion
			return
		}
		linked = code&^0x3ff_ffff | Instruction((target>>2)&0x3ff_ffff)
	case FMT_RT_IMM:
		linked = code&^0xffff | Instruction(target>>16)
	case FMT_RT_RS_IMM:
		linked = code&^0xffff | Instruction(target&0xffff)
	default:
		err = ErrInstructionInvalid
	}

	return
}

// register decodes a register operand.
func (asm *Assembler) register(word string) (reg Register, err error) {
	reg, ok := RegisterByName(word)
	if !ok {
		err = ErrRegisterInvalid
	}
	return
}

// immediate decodes a 16-bit immediate operand, either zero or sign extended.
func (asm *Assembler) immediate(word string, signed bool) (imm uint16, err error) {
	value, err := asm.valueOf(word)
	if err != nil {
		return
	}

	if signed {
		if int32(value) < -0x8000 || int32(value) > 0x7fff {
			err = ErrImmediateRange
			return
		}
	} else if value > 0xffff {
		err = ErrImmediateRange
		return
	}

	imm = uint16(value)
	return
}

// small decodes a shift amount or coprocessor register index.
func (asm *Assembler) small(word string) (value uint32, err error) {
	value, err = asm.valueOf(strings.TrimPrefix(word, "$"))
	if err != nil {
		return
	}
	if value >= 32 {
		err = ErrImmediateRange
	}
	return
}

// offsetBase decodes an `offset(base)` operand.
func (asm *Assembler) offsetBase(word string) (offset uint16, base Register, err error) {
	match := reOffsetBase.FindStringSubmatch(word)
	if match == nil {
		err = ErrOperandCount
		return
	}

	if len(match[1]) != 0 {
		offset, err = asm.immediate(match[1], true)
		if err != nil {
			return
		}
	}

	base, err = asm.register(match[2])
	return
}

// target decodes a branch or jump operand, either an address or a label.
func (asm *Assembler) target(word string) (addr uint32, label string) {
	addr, err := asm.valueOf(word)
	if err != nil {
		label = word
	}
	return
}

// operandCount is the number of operands for each format.
var operandCount = map[Format]int{
	FMT_NONE:           0,
	FMT_RD_RS_RT:       3,
	FMT_RD_RT_SHAMT:    3,
	FMT_RD_RT_RS:       3,
	FMT_RS:             1,
	FMT_RD_RS:          2,
	FMT_RD:             1,
	FMT_RS_RT:          2,
	FMT_RT_RS_IMM:      3,
	FMT_RT_RS_SIMM:     3,
	FMT_RT_IMM:         2,
	FMT_RT_OFFSET_BASE: 2,
	FMT_RS_RT_BRANCH:   3,
	FMT_RS_BRANCH:      2,
	FMT_TARGET:         1,
	FMT_RT_COPREG:      2,
}

// loadImmediate encodes `li`, using a single instruction when possible.
func (asm *Assembler) loadImmediate(rt Register, value uint32) (codes []Instruction) {
	switch {
	case value <= 0xffff:
		codes = append(codes, MakeI(OP_ORI, rt, R_ZERO, uint16(value)))
	case int32(value) < 0 && int32(value) >= -0x8000:
		codes = append(codes, MakeI(OP_ADDIU, rt, R_ZERO, uint16(value)))
	case value&0xffff == 0:
		codes = append(codes, MakeI(OP_LUI, rt, R_ZERO, uint16(value>>16)))
	default:
		codes = append(codes,
			MakeI(OP_LUI, rt, R_ZERO, uint16(value>>16)),
			MakeI(OP_ORI, rt, rt, uint16(value)),
		)
	}
	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	var codes []Instruction
	var label string

	// no-op
	if len(words) == 0 {
		return
	}

	initial_words := words

	defer func() {
		if err != nil || len(codes) == 0 {
			return
		}
		opcode := Opcode{LineNo: lineno, Addr: asm.addr, Words: initial_words, Codes: codes, LinkLabel: label}
		asm.Opcode = append(asm.Opcode, opcode)
		asm.addr += uint32(4 * len(codes))
	}()

	// Alternate syntax substitutions
	switch {
	case len(words) == 3 && words[0] == "move":
		// move rd rs => addu rd rs $zero
		words = []string{"addu", words[1], words[2], "$zero"}
	case len(words) == 2 && words[0] == "b":
		// b target => beq $zero $zero target
		words = []string{"beq", "$zero", "$zero", words[1]}
	case len(words) == 2 && words[0] == "jalr":
		// jalr rs => jalr $ra rs
		words = []string{"jalr", "$ra", words[1]}
	default:
		// unchanged
	}

	switch words[0] {
	case "nop":
		if len(words) != 1 {
			err = ErrOperandCount
			return
		}
		codes = append(codes, 0)
		return
	case ".word":
		if len(words) < 2 {
			err = ErrOperandCount
			return
		}
		for _, word := range words[1:] {
			var value uint32
			value, err = asm.valueOf(word)
			if err != nil {
				return
			}
			codes = append(codes, Instruction(value))
		}
		return
	case ".org":
		if len(words) != 2 {
			err = ErrOperandCount
			return
		}
		var addr uint32
		addr, err = asm.valueOf(words[1])
		if err != nil {
			return
		}
		if addr < asm.addr {
			err = ErrOrgBackwards
			return
		}
		asm.addr = addr
		return
	case "li", "la":
		if len(words) != 3 {
			err = ErrOperandCount
			return
		}
		var rt Register
		rt, err = asm.register(words[1])
		if err != nil {
			return
		}
		value, perr := asm.valueOf(words[2])
		if perr != nil || words[0] == "la" {
			if perr != nil {
				label = words[2]
			}
			codes = append(codes,
				MakeI(OP_LUI, rt, R_ZERO, uint16(value>>16)),
				MakeI(OP_ORI, rt, rt, uint16(value)),
			)
			return
		}
		codes = asm.loadImmediate(rt, value)
		return
	}

	mn, ok := LookupMnemonic(words[0])
	if !ok {
		err = ErrInstructionInvalid
		return
	}

	args := words[1:]
	if len(args) != operandCount[mn.Format] {
		err = ErrOperandCount
		return
	}

	var rd, rs, rt Register
	var shamt uint32
	var imm uint16
	var target uint32

	// Registers go in operand order, as named by the format.
	regs := func(dst ...*Register) (err error) {
		for n, reg := range dst {
			*reg, err = asm.register(args[n])
			if err != nil {
				return
			}
		}
		return
	}

	switch mn.Format {
	case FMT_NONE:
	case FMT_RD_RS_RT:
		err = regs(&rd, &rs, &rt)
	case FMT_RD_RT_SHAMT:
		err = regs(&rd, &rt)
		if err == nil {
			shamt, err = asm.small(args[2])
		}
	case FMT_RD_RT_RS:
		err = regs(&rd, &rt, &rs)
	case FMT_RS:
		err = regs(&rs)
	case FMT_RD_RS:
		err = regs(&rd, &rs)
	case FMT_RD:
		err = regs(&rd)
	case FMT_RS_RT:
		err = regs(&rs, &rt)
	case FMT_RT_RS_IMM:
		err = regs(&rt, &rs)
		if err == nil {
			imm, err = asm.immediate(args[2], false)
		}
	case FMT_RT_RS_SIMM:
		err = regs(&rt, &rs)
		if err == nil {
			imm, err = asm.immediate(args[2], true)
		}
	case FMT_RT_IMM:
		err = regs(&rt)
		if err == nil {
			imm, err = asm.immediate(args[1], false)
		}
	case FMT_RT_OFFSET_BASE:
		err = regs(&rt)
		if err == nil {
			imm, rs, err = asm.offsetBase(args[1])
		}
	case FMT_RS_RT_BRANCH:
		err = regs(&rs, &rt)
		target, label = asm.target(args[2])
	case FMT_RS_BRANCH:
		err = regs(&rs)
		target, label = asm.target(args[1])
	case FMT_TARGET:
		target, label = asm.target(args[0])
	case FMT_RT_COPREG:
		err = regs(&rt)
		if err == nil {
			var copr uint32
			copr, err = asm.small(args[1])
			rd = Register(copr)
		}
	}
	if err != nil {
		return
	}

	code := mn.Encode(rd, rs, rt, shamt, imm, 0)

	switch mn.Format {
	case FMT_RS_RT_BRANCH, FMT_RS_BRANCH, FMT_TARGET:
		if len(label) == 0 {
			code, err = link(code, asm.addr, target)
			if err != nil {
				return
			}
		}
	}

	codes = append(codes, code)

	return
}
