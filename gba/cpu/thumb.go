package cpu

// thumbHandler executes one decoded THUMB instruction and returns the
// extra cycles it consumed beyond the pipeline's own fetch cost.
type thumbHandler func(c *CPU, instr uint16) uint64

// thumbTable is a 1024-entry dispatch table indexed by bits 15..6 (spec
// §4.3 "Decoding"), built at init time the same way armTable is.
var thumbTable [1024]thumbHandler

func init() {
	for idx := 0; idx < 1024; idx++ {
		thumbTable[idx] = classifyThumb(uint16(idx << 6))
	}
}

func classifyThumb(hi uint16) thumbHandler {
	switch {
	case hi&0xF800 == 0x1800: // 00011xx: add/subtract
		return thumbAddSubtract
	case hi&0xE000 == 0x0000: // 000xx: move shifted register
		return thumbMoveShifted
	case hi&0xE000 == 0x2000: // 001xx: move/compare/add/subtract immediate
		return thumbImmediateOp
	case hi&0xFC00 == 0x4000: // 010000: ALU operations
		return thumbALU
	case hi&0xFC00 == 0x4400: // 010001: hi register ops / BX
		return thumbHiRegister
	case hi&0xF800 == 0x4800: // 01001: PC-relative load
		return thumbPCRelativeLoad
	case hi&0xF200 == 0x5000: // 0101, bit9=0: load/store register offset
		return thumbLoadStoreRegOffset
	case hi&0xF200 == 0x5200: // 0101, bit9=1: load/store sign-extended
		return thumbLoadStoreSignExtended
	case hi&0xE000 == 0x6000: // 011xx: load/store immediate offset
		return thumbLoadStoreImmOffset
	case hi&0xF000 == 0x8000: // 1000: load/store halfword
		return thumbLoadStoreHalfword
	case hi&0xF000 == 0x9000: // 1001: SP-relative load/store
		return thumbSPRelative
	case hi&0xF000 == 0xA000: // 1010: load address
		return thumbLoadAddress
	case hi&0xFF00 == 0xB000: // 10110000: add offset to SP
		return thumbAddOffsetSP
	case hi&0xF600 == 0xB400: // 1011x10: push/pop
		return thumbPushPop
	case hi&0xF000 == 0xC000: // 1100: multiple load/store
		return thumbMultipleLoadStore
	case hi&0xFF00 == 0xDF00: // 11011111: SWI
		return thumbSWI
	case hi&0xF000 == 0xD000: // 1101: conditional branch
		return thumbConditionalBranch
	case hi&0xF800 == 0xE000: // 11100: unconditional branch
		return thumbUnconditionalBranch
	case hi&0xF000 == 0xF000: // 1111: long branch with link
		return thumbLongBranchLink
	default:
		return thumbUndefined
	}
}

func (c *CPU) executeThumb(instr uint16) uint64 {
	idx := instr >> 6
	return thumbTable[idx](c, instr)
}

func thumbMoveShifted(c *CPU, instr uint16) uint64 {
	op := shiftOp((instr >> 11) & 0x3)
	amount := uint((instr >> 6) & 0x1F)
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	_, _, carryIn, v := c.Regs.Flags()
	result, carryOut := shiftImmediate(op, c.Regs.R(rs), amount, carryIn)
	c.Regs.SetR(rd, result)
	c.Regs.SetFlags(result&(1<<31) != 0, result == 0, carryOut, v)
	return 0
}

func thumbAddSubtract(c *CPU, instr uint16) uint64 {
	immediate := instr&(1<<10) != 0
	subtract := instr&(1<<9) != 0
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	rnOrImm := uint32((instr >> 6) & 0x7)

	var operand uint32
	if immediate {
		operand = rnOrImm
	} else {
		operand = c.Regs.R(int(rnOrImm))
	}

	var result uint32
	var carry, overflow bool
	if subtract {
		result, carry, overflow = subWithFlags(c.Regs.R(rs), operand)
	} else {
		result, carry, overflow = addWithFlags(c.Regs.R(rs), operand)
	}
	c.Regs.SetR(rd, result)
	c.Regs.SetFlags(result&(1<<31) != 0, result == 0, carry, overflow)
	return 0
}

func thumbImmediateOp(c *CPU, instr uint16) uint64 {
	opcode := (instr >> 11) & 0x3
	rd := int((instr >> 8) & 0x7)
	imm := uint32(instr & 0xFF)

	rdVal := c.Regs.R(rd)
	var result uint32
	_, _, carry, overflow := c.Regs.Flags()

	switch opcode {
	case 0: // MOV
		result = imm
	case 1: // CMP
		result, carry, overflow = subWithFlags(rdVal, imm)
	case 2: // ADD
		result, carry, overflow = addWithFlags(rdVal, imm)
		c.Regs.SetR(rd, result)
	case 3: // SUB
		result, carry, overflow = subWithFlags(rdVal, imm)
		c.Regs.SetR(rd, result)
	}
	if opcode == 0 {
		c.Regs.SetR(rd, result)
	}
	c.Regs.SetFlags(result&(1<<31) != 0, result == 0, carry, overflow)
	return 0
}

func thumbALU(c *CPU, instr uint16) uint64 {
	opcode := (instr >> 6) & 0xF
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	rdVal := c.Regs.R(rd)
	rsVal := c.Regs.R(rs)
	n, z, carry, overflow := c.Regs.Flags()
	_ = n
	_ = z
	var result uint32
	writeResult := true

	switch opcode {
	case 0x0: // AND
		result = rdVal & rsVal
	case 0x1: // EOR
		result = rdVal ^ rsVal
	case 0x2: // LSL
		result, carry = shiftRegister(shiftLSL, rdVal, uint(rsVal&0xFF), carry)
	case 0x3: // LSR
		result, carry = shiftRegister(shiftLSR, rdVal, uint(rsVal&0xFF), carry)
	case 0x4: // ASR
		result, carry = shiftRegister(shiftASR, rdVal, uint(rsVal&0xFF), carry)
	case 0x5: // ADC
		result, carry, overflow = addWithFlags(rdVal, rsVal)
		result2, c2, v2 := addWithFlags(result, b2u32(carry))
		result, carry, overflow = result2, carry || c2, overflow != v2
	case 0x6: // SBC
		result, carry, overflow = subWithFlags(rdVal, rsVal)
		result2, c2, v2 := subWithFlags(result, 1-b2u32(carry))
		result, carry, overflow = result2, carry && c2, overflow != v2
	case 0x7: // ROR
		result, carry = shiftRegister(shiftROR, rdVal, uint(rsVal&0xFF), carry)
	case 0x8: // TST
		result = rdVal & rsVal
		writeResult = false
	case 0x9: // NEG
		result, carry, overflow = subWithFlags(0, rsVal)
	case 0xA: // CMP
		result, carry, overflow = subWithFlags(rdVal, rsVal)
		writeResult = false
	case 0xB: // CMN
		result, carry, overflow = addWithFlags(rdVal, rsVal)
		writeResult = false
	case 0xC: // ORR
		result = rdVal | rsVal
	case 0xD: // MUL
		result = rdVal * rsVal
	case 0xE: // BIC
		result = rdVal &^ rsVal
	case 0xF: // MVN
		result = ^rsVal
	}

	if writeResult {
		c.Regs.SetR(rd, result)
	}
	c.Regs.SetFlags(result&(1<<31) != 0, result == 0, carry, overflow)
	return 0
}

func thumbHiRegister(c *CPU, instr uint16) uint64 {
	opcode := (instr >> 8) & 0x3
	h1 := instr&(1<<7) != 0
	h2 := instr&(1<<6) != 0
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	if h1 {
		rd += 8
	}
	if h2 {
		rs += 8
	}

	switch opcode {
	case 0: // ADD
		c.Regs.SetR(rd, c.Regs.R(rd)+c.Regs.R(rs))
		if rd == 15 {
			c.flush()
		}
	case 1: // CMP
		result, carry, overflow := subWithFlags(c.Regs.R(rd), c.Regs.R(rs))
		c.Regs.SetFlags(result&(1<<31) != 0, result == 0, carry, overflow)
	case 2: // MOV
		c.Regs.SetR(rd, c.Regs.R(rs))
		if rd == 15 {
			c.flush()
		}
	case 3: // BX
		target := c.Regs.R(rs)
		thumb := target&1 != 0
		cpsr := c.Regs.CPSR()
		if thumb {
			cpsr |= 1 << flagT
		} else {
			cpsr &^= 1 << flagT
		}
		c.Regs.SetCPSR(cpsr)
		c.Regs.SetPC(target &^ 1)
		c.flush()
	}
	return 0
}

func thumbPCRelativeLoad(c *CPU, instr uint16) uint64 {
	rd := int((instr >> 8) & 0x7)
	imm := uint32(instr&0xFF) << 2
	addrUsed := (c.Regs.PC() &^ 3) + imm
	v, cyc := c.bus.Read32(addrUsed, false)
	c.Regs.SetR(rd, v)
	return uint64(cyc) + 1
}

func thumbLoadStoreRegOffset(c *CPU, instr uint16) uint64 {
	load := instr&(1<<11) != 0
	byteAccess := instr&(1<<10) != 0
	ro := int((instr >> 6) & 0x7)
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	addrUsed := c.Regs.R(rb) + c.Regs.R(ro)
	if load {
		var v uint32
		var cyc uint32
		if byteAccess {
			var b uint8
			b, cyc = c.bus.Read8(addrUsed, false)
			v = uint32(b)
		} else {
			v, cyc = c.bus.Read32(addrUsed, false)
		}
		c.Regs.SetR(rd, v)
		return uint64(cyc) + 1
	}
	var cyc uint32
	if byteAccess {
		cyc = c.bus.Write8(addrUsed, uint8(c.Regs.R(rd)), false)
	} else {
		cyc = c.bus.Write32(addrUsed, c.Regs.R(rd), false)
	}
	return uint64(cyc)
}

func thumbLoadStoreSignExtended(c *CPU, instr uint16) uint64 {
	hFlag := instr&(1<<11) != 0
	signExtend := instr&(1<<10) != 0
	ro := int((instr >> 6) & 0x7)
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	addrUsed := c.Regs.R(rb) + c.Regs.R(ro)
	if !signExtend && !hFlag { // STRH
		cyc := c.bus.Write16(addrUsed, uint16(c.Regs.R(rd)), false)
		return uint64(cyc)
	}
	if !signExtend && hFlag { // LDRH
		v, cyc := c.bus.Read16(addrUsed, false)
		c.Regs.SetR(rd, uint32(v))
		return uint64(cyc) + 1
	}
	if signExtend && !hFlag { // LDSB
		b, cyc := c.bus.Read8(addrUsed, false)
		c.Regs.SetR(rd, uint32(int32(int8(b))))
		return uint64(cyc) + 1
	}
	// LDSH
	v, cyc := c.bus.Read16(addrUsed, false)
	c.Regs.SetR(rd, uint32(int32(int16(v))))
	return uint64(cyc) + 1
}

func thumbLoadStoreImmOffset(c *CPU, instr uint16) uint64 {
	byteAccess := instr&(1<<12) != 0
	load := instr&(1<<11) != 0
	imm := uint32((instr >> 6) & 0x1F)
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	if !byteAccess {
		imm <<= 2
	}

	addrUsed := c.Regs.R(rb) + imm
	if load {
		var v uint32
		var cyc uint32
		if byteAccess {
			var b uint8
			b, cyc = c.bus.Read8(addrUsed, false)
			v = uint32(b)
		} else {
			v, cyc = c.bus.Read32(addrUsed, false)
		}
		c.Regs.SetR(rd, v)
		return uint64(cyc) + 1
	}
	var cyc uint32
	if byteAccess {
		cyc = c.bus.Write8(addrUsed, uint8(c.Regs.R(rd)), false)
	} else {
		cyc = c.bus.Write32(addrUsed, c.Regs.R(rd), false)
	}
	return uint64(cyc)
}

func thumbLoadStoreHalfword(c *CPU, instr uint16) uint64 {
	load := instr&(1<<11) != 0
	imm := uint32((instr>>6)&0x1F) << 1
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	addrUsed := c.Regs.R(rb) + imm
	if load {
		v, cyc := c.bus.Read16(addrUsed, false)
		c.Regs.SetR(rd, uint32(v))
		return uint64(cyc) + 1
	}
	cyc := c.bus.Write16(addrUsed, uint16(c.Regs.R(rd)), false)
	return uint64(cyc)
}

func thumbSPRelative(c *CPU, instr uint16) uint64 {
	load := instr&(1<<11) != 0
	rd := int((instr >> 8) & 0x7)
	imm := uint32(instr&0xFF) << 2

	addrUsed := c.Regs.R(13) + imm
	if load {
		v, cyc := c.bus.Read32(addrUsed, false)
		c.Regs.SetR(rd, v)
		return uint64(cyc) + 1
	}
	cyc := c.bus.Write32(addrUsed, c.Regs.R(rd), false)
	return uint64(cyc)
}

func thumbLoadAddress(c *CPU, instr uint16) uint64 {
	sp := instr&(1<<11) != 0
	rd := int((instr >> 8) & 0x7)
	imm := uint32(instr&0xFF) << 2

	var base uint32
	if sp {
		base = c.Regs.R(13)
	} else {
		base = c.Regs.PC() &^ 3
	}
	c.Regs.SetR(rd, base+imm)
	return 0
}

func thumbAddOffsetSP(c *CPU, instr uint16) uint64 {
	negative := instr&(1<<7) != 0
	imm := uint32(instr&0x7F) << 2
	if negative {
		c.Regs.SetR(13, c.Regs.R(13)-imm)
	} else {
		c.Regs.SetR(13, c.Regs.R(13)+imm)
	}
	return 0
}

func thumbPushPop(c *CPU, instr uint16) uint64 {
	pop := instr&(1<<11) != 0
	includePCLR := instr&(1<<8) != 0
	list := instr & 0xFF

	var cycles uint64
	sp := c.Regs.R(13)
	if pop {
		addrUsed := sp
		for i := 0; i < 8; i++ {
			if list&(1<<uint(i)) != 0 {
				v, cyc := c.bus.Read32(addrUsed, addrUsed != sp)
				c.Regs.SetR(i, v)
				cycles += uint64(cyc)
				addrUsed += 4
			}
		}
		if includePCLR {
			v, cyc := c.bus.Read32(addrUsed, true)
			c.Regs.SetPC(v &^ 1)
			c.flush()
			cycles += uint64(cyc) + 1
			addrUsed += 4
		}
		c.Regs.SetR(13, addrUsed)
		return cycles
	}

	count := 0
	for i := 0; i < 8; i++ {
		if list&(1<<uint(i)) != 0 {
			count++
		}
	}
	if includePCLR {
		count++
	}
	addrUsed := sp - uint32(count)*4
	c.Regs.SetR(13, addrUsed)
	start := addrUsed
	for i := 0; i < 8; i++ {
		if list&(1<<uint(i)) != 0 {
			cyc := c.bus.Write32(addrUsed, c.Regs.R(i), addrUsed != start)
			cycles += uint64(cyc)
			addrUsed += 4
		}
	}
	if includePCLR {
		cyc := c.bus.Write32(addrUsed, c.Regs.R(14), addrUsed != start)
		cycles += uint64(cyc)
	}
	return cycles
}

func thumbMultipleLoadStore(c *CPU, instr uint16) uint64 {
	load := instr&(1<<11) != 0
	rb := int((instr >> 8) & 0x7)
	list := instr & 0xFF

	addrUsed := c.Regs.R(rb)
	start := addrUsed
	var cycles uint64
	for i := 0; i < 8; i++ {
		if list&(1<<uint(i)) == 0 {
			continue
		}
		if load {
			v, cyc := c.bus.Read32(addrUsed, addrUsed != start)
			c.Regs.SetR(i, v)
			cycles += uint64(cyc)
		} else {
			cyc := c.bus.Write32(addrUsed, c.Regs.R(i), addrUsed != start)
			cycles += uint64(cyc)
		}
		addrUsed += 4
	}
	c.Regs.SetR(rb, addrUsed)
	return cycles
}

func thumbConditionalBranch(c *CPU, instr uint16) uint64 {
	cond := uint32((instr >> 8) & 0xF)
	n, z, cf, v := c.Regs.Flags()
	if !evalCondition(cond, n, z, cf, v) {
		return 0
	}
	offset := int32(int8(instr & 0xFF))
	target := uint32(int32(c.Regs.PC()) + offset*2)
	c.Regs.SetPC(target)
	c.flush()
	return 1
}

func thumbSWI(c *CPU, instr uint16) uint64 {
	c.LastSWIComment = uint32(instr & 0xFF)
	returnAddr := c.Regs.PC() - 2
	savedCPSR := c.Regs.CPSR()
	c.Regs.EnterMode(ModeSupervisor, savedCPSR)
	c.Regs.SetR(14, returnAddr)
	c.Regs.SetCPSR(c.Regs.CPSR()&^(1<<flagT) | 1<<flagI)
	c.Regs.SetPC(0x08)
	c.flush()
	return 2
}

func thumbUnconditionalBranch(c *CPU, instr uint16) uint64 {
	offset := int32(instr&0x7FF) << 21 >> 20 // sign-extend 11-bit, then x2
	target := uint32(int32(c.Regs.PC()) + offset)
	c.Regs.SetPC(target)
	c.flush()
	return 1
}

func thumbLongBranchLink(c *CPU, instr uint16) uint64 {
	low := instr&(1<<11) != 0
	offset11 := uint32(instr & 0x7FF)

	if !low {
		signExtended := int32(offset11<<21) >> 9 // sign-extend 11 bits, shift left 12
		c.Regs.SetR(14, uint32(int32(c.Regs.PC())+signExtended))
		return 0
	}

	nextInstr := c.Regs.PC() - 2
	target := c.Regs.R(14) + offset11<<1
	c.Regs.SetPC(target)
	c.Regs.SetR(14, nextInstr|1)
	c.flush()
	return 1
}

func thumbUndefined(c *CPU, instr uint16) uint64 {
	returnAddr := c.Regs.PC() - 2
	savedCPSR := c.Regs.CPSR()
	c.Regs.EnterMode(ModeUndefined, savedCPSR)
	c.Regs.SetR(14, returnAddr)
	c.Regs.SetCPSR(c.Regs.CPSR()&^(1<<flagT) | 1<<flagI)
	c.Regs.SetPC(0x04)
	c.flush()
	return 2
}
