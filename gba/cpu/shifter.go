package cpu

// shiftOp names one of the four ARM barrel-shifter operations (LSL, LSR,
// ASR, ROR). shiftImmediate and shiftRegister apply one to a value,
// returning the shifted result and the carry bit the shifter produced
// (spec §4.3 "Data processing": "carry out of the barrel shifter feeds C
// when S=1").
//
// The immediate-shift special cases (LSL #0 passes C through unchanged;
// LSR/ASR #0 mean #32; ROR #0 means RRX) are resolved by shiftImmediate;
// shiftRegister handles register-specified amounts, including 0 and
// amounts of 32 or more.
type shiftOp uint8

const (
	shiftLSL shiftOp = iota
	shiftLSR
	shiftASR
	shiftROR
)

// shiftImmediate computes operand2 for an immediate-shift data-processing
// operand, following the #0 special cases from the ARM7TDMI reference:
// LSL#0 is a no-op (carry unchanged), LSR#0/ASR#0 mean a shift of 32, and
// ROR#0 means RRX (rotate through carry by one).
func shiftImmediate(op shiftOp, value uint32, amount uint, carryIn bool) (uint32, bool) {
	switch op {
	case shiftLSL:
		if amount == 0 {
			return value, carryIn
		}
		return lsl(value, amount)
	case shiftLSR:
		if amount == 0 {
			amount = 32
		}
		return lsr(value, amount)
	case shiftASR:
		if amount == 0 {
			amount = 32
		}
		return asr(value, amount)
	default: // shiftROR
		if amount == 0 {
			return rrx(value, carryIn)
		}
		return ror(value, amount)
	}
}

// shiftRegister computes operand2 when the shift amount comes from the
// bottom byte of a register: amount 0 always passes the value through
// unchanged with carry unchanged, regardless of which shift type.
func shiftRegister(op shiftOp, value uint32, amount uint, carryIn bool) (uint32, bool) {
	if amount == 0 {
		return value, carryIn
	}
	switch op {
	case shiftLSL:
		if amount >= 32 {
			if amount == 32 {
				return 0, value&1 != 0
			}
			return 0, false
		}
		return lsl(value, amount)
	case shiftLSR:
		if amount >= 32 {
			if amount == 32 {
				return 0, value>>31 != 0
			}
			return 0, false
		}
		return lsr(value, amount)
	case shiftASR:
		if amount >= 32 {
			if int32(value) < 0 {
				return 0xFFFFFFFF, true
			}
			return 0, false
		}
		return asr(value, amount)
	default: // shiftROR
		amount &= 31
		if amount == 0 {
			return value, value>>31 != 0
		}
		return ror(value, amount)
	}
}

func lsl(value uint32, amount uint) (uint32, bool) {
	if amount >= 32 {
		return 0, amount == 32 && value&1 != 0
	}
	return value << amount, (value>>(32-amount))&1 != 0
}

func lsr(value uint32, amount uint) (uint32, bool) {
	if amount >= 32 {
		return 0, amount == 32 && value>>31 != 0
	}
	return value >> amount, (value>>(amount-1))&1 != 0
}

func asr(value uint32, amount uint) (uint32, bool) {
	if amount >= 32 {
		if int32(value) < 0 {
			return 0xFFFFFFFF, true
		}
		return 0, false
	}
	return uint32(int32(value) >> amount), (value>>(amount-1))&1 != 0
}

func ror(value uint32, amount uint) (uint32, bool) {
	amount &= 31
	if amount == 0 {
		return value, value>>31 != 0
	}
	return value<<(32-amount) | value>>amount, (value>>(amount-1))&1 != 0
}

func rrx(value uint32, carryIn bool) (uint32, bool) {
	var c uint32
	if carryIn {
		c = 1
	}
	return value>>1 | c<<31, value&1 != 0
}
