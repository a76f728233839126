package cpu

import (
	"fmt"
	"strconv"
	"strings"
)

// Register is a general purpose register index, 0 to 31.
type Register uint32

// Conventional register names.
const (
	R_ZERO = Register(0)  // $zero
	R_AT   = Register(1)  // $at
	R_V0   = Register(2)  // $v0
	R_V1   = Register(3)  // $v1
	R_A0   = Register(4)  // $a0
	R_A1   = Register(5)  // $a1
	R_A2   = Register(6)  // $a2
	R_A3   = Register(7)  // $a3
	R_T0   = Register(8)  // $t0
	R_T1   = Register(9)  // $t1
	R_T2   = Register(10) // $t2
	R_T3   = Register(11) // $t3
	R_T4   = Register(12) // $t4
	R_T5   = Register(13) // $t5
	R_T6   = Register(14) // $t6
	R_T7   = Register(15) // $t7
	R_S0   = Register(16) // $s0
	R_S1   = Register(17) // $s1
	R_S2   = Register(18) // $s2
	R_S3   = Register(19) // $s3
	R_S4   = Register(20) // $s4
	R_S5   = Register(21) // $s5
	R_S6   = Register(22) // $s6
	R_S7   = Register(23) // $s7
	R_T8   = Register(24) // $t8
	R_T9   = Register(25) // $t9
	R_K0   = Register(26) // $k0
	R_K1   = Register(27) // $k1
	R_GP   = Register(28) // $gp
	R_SP   = Register(29) // $sp
	R_FP   = Register(30) // $fp
	R_S8   = Register(30) // $s8
	R_RA   = Register(31) // $ra
)

var registerName = [32]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

var registerByName = func() map[string]Register {
	names := make(map[string]Register, 33)
	for n, name := range registerName {
		names[name] = Register(n)
	}
	names["s8"] = R_S8
	return names
}()

// String returns the conventional name, with a '$' prefix.
func (r Register) String() string {
	if r >= 32 {
		return fmt.Sprintf("$r%d", uint32(r))
	}
	return "$" + registerName[r]
}

// RegisterByName looks up a register by conventional name ("t0", "$t0")
// or by number ("8", "$8", "r8").
func RegisterByName(name string) (r Register, ok bool) {
	name = strings.TrimPrefix(strings.ToLower(name), "$")

	r, ok = registerByName[name]
	if ok {
		return
	}

	num := strings.TrimPrefix(name, "r")
	index, err := strconv.ParseUint(num, 10, 8)
	if err != nil || index >= 32 {
		return 0, false
	}

	return Register(index), true
}
