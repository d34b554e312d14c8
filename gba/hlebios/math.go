package hlebios

import "math"

// div reproduces GBABIOS::Div: signed division truncating toward zero,
// with the documented zero-denominator quirk (quotient/abs-quotient
// pinned to 1, signed as if denominator were +1, remainder the
// numerator unchanged).
func (b *BIOS) div(numerator, denominator int32) (quotient, remainder, absQuotient uint32) {
	numeratorSign := numerator < 0
	resultSign := (denominator < 0) != numeratorSign

	n := abs32(numerator)
	d := abs32(denominator)

	var q, r int32
	if d == 0 {
		r = n
		q = 1
	} else {
		r = n % d
		q = n / d
	}

	if resultSign {
		q = -q
	}
	if numeratorSign {
		r = -r
	}
	return uint32(q), uint32(r), uint32(abs32(q))
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func (b *BIOS) sqrt(operand uint32) uint32 {
	return uint32(math.Sqrt(float64(operand)))
}

// arcTan reproduces GBABIOS::ArcTan's fixed-point polynomial
// approximation (spec §4.4), operating on Q14 tangent input and
// returning a Q16-scaled-to-0x10000-per-turn angle.
func (b *BIOS) arcTan(tan int32) uint32 {
	a := -(tan * tan >> 0xE)
	res := int32(0xA9)
	res = a*res>>0xE + 0x390
	res = a*res>>0xE + 0x91C
	res = a*res>>0xE + 0xFB6
	res = a*res>>0xE + 0x16AA
	res = a*res>>0xE + 0x2081
	res = a*res>>0xE + 0x3651
	res = a*res>>0xE + 0xA2F9
	out := res * tan >> 0x10
	return uint32(out)
}

// arcTan2 reproduces GBABIOS::ArcTan2's quadrant selection, delegating
// the actual arctangent evaluation to div+arcTan exactly as the
// original routine chains the two SWIs together. angleXY/angleYX pick
// which of (x«14)/y or (y«14)/x feeds arcTan, matching the two
// divide-then-arctan call sites the original's goto-laden decision tree
// collapses to.
func (b *BIOS) arcTan2(x, y int32) uint32 {
	if y == 0 {
		if x < 0 {
			return 0x8000
		}
		return 0
	}
	if x == 0 {
		if y < 0 {
			return 0xC000
		}
		return 0x4000
	}

	angleXY := func() int32 { q, _, _ := b.div(x<<0xE, y); return int32(b.arcTan(int32(q))) }
	angleYX := func() int32 { q, _, _ := b.div(y<<0xE, x); return int32(b.arcTan(int32(q))) }
	negX, negY := -x, -y
	const quarter = 0x4000
	const half = 0x8000

	var result int32
	switch {
	case y < 0 && x > 0 && x >= negY:
		result = half + half + angleYX()
	case y < 0 && !(x > 0 && x >= negY) && negX > negY:
		result = angleYX() + half
	case y < 0:
		result = (quarter + half) - angleXY()
	case x < 0 && negX < y:
		result = quarter - angleXY()
	case x < 0:
		result = angleYX() + half
	case x < y:
		result = quarter - angleXY()
	default:
		result = angleYX()
	}
	return uint32(result)
}

// cpuSet reproduces GBABIOS::CpuSet: word/halfword block copy or fixed-
// source fill, length and width/fixed-source flags packed into
// lengthMode per spec §4.4.
func (b *BIOS) cpuSet(src, dst, lengthMode uint32) (outSrc, outDst uint32) {
	size := (lengthMode << 11) >> 9
	if size == 0 {
		return src, dst
	}

	bs := b.cpu.Bus()
	wide := (lengthMode>>26)&1 != 0
	fixedSrc := (lengthMode>>24)&1 != 0

	if wide {
		end := dst + size
		if fixedSrc {
			value, _ := bs.Read32(src, false)
			src += 4
			for ; dst < end; dst += 4 {
				bs.Write32(dst, value, false)
			}
		} else {
			for ; dst < end; src, dst = src+4, dst+4 {
				value, _ := bs.Read32(src, false)
				bs.Write32(dst, value, false)
			}
		}
	} else {
		var offset uint32
		if fixedSrc {
			value, _ := bs.Read16(src, false)
			for ; offset < size; offset += 2 {
				bs.Write16(dst+offset, value, false)
			}
		} else {
			for ; offset < size; offset += 2 {
				value, _ := bs.Read16(src+offset, false)
				bs.Write16(dst+offset, value, false)
			}
		}
		dst += offset
	}

	return src, dst
}

// cpuFastSet reproduces GBABIOS::CpuFastSet: the same copy/fill as
// CpuSet but always 32-bit and always rounded up to 32-byte chunks.
func (b *BIOS) cpuFastSet(src, dst, lengthMode uint32) (outSrc, outDst uint32) {
	size := (lengthMode << 11) >> 9
	if size == 0 {
		return src, dst
	}

	bs := b.cpu.Bus()
	fixedSrc := (lengthMode>>24)&1 != 0
	end := dst + size

	if fixedSrc {
		value, _ := bs.Read32(src, false)
		for ; dst < end; dst += 32 {
			for i := uint32(0); i < 32; i += 4 {
				bs.Write32(dst+i, value, i != 0)
			}
		}
	} else {
		for ; dst < end; src, dst = src+32, dst+32 {
			for i := uint32(0); i < 32; i += 4 {
				value, _ := bs.Read32(src+i, i != 0)
				bs.Write32(dst+i, value, i != 0)
			}
		}
	}

	return src, dst
}

func (b *BIOS) cosSin(rotateAngle uint16) (cos, sin int16) {
	angle := rotateAngle >> 8
	cos = b.sine[(angle+0x40)&0xFF]
	sin = b.sine[angle]
	return
}

// bgAffineSet reproduces GBABIOS::BgAffineSet: builds BG rotation/scale
// parameters (PA-PD plus the reference point) from per-entry center,
// scale and angle records.
func (b *BIOS) bgAffineSet(src, dst, count uint32) (outSrc, outDst uint32) {
	bs := b.cpu.Bus()
	for i := uint32(0); i < count; i++ {
		rotateRaw, _ := bs.Read16(src+16, false)
		cos, sin := b.cosSin(rotateRaw)
		scaleX, _ := bs.Read16(src+12, false)
		scaleY, _ := bs.Read16(src+14, false)

		pa := int16(int32(cos) * int32(int16(scaleX)) >> 0xE)
		pb := int16(int32(sin) * int32(int16(scaleX)) >> 0xE)
		pc := int16(int32(sin) * int32(int16(scaleY)) >> 0xE)
		pd := int16(int32(cos) * int32(int16(scaleY)) >> 0xE)

		cx, _ := bs.Read32(src, false)
		cy, _ := bs.Read32(src+4, false)
		center, _ := bs.Read32(src+8, false)
		dcx := int16(int32(center) << 16 >> 16)
		dcy := int16(int32(center) >> 16)

		startX := int32(pb)*int32(dcy) + int32(pa)*(-int32(dcx)) + int32(cx)
		startY := int32(pd)*(-int32(dcy)) + int32(pc)*(-int32(dcx)) + int32(cy)

		bs.Write32(dst+8, uint32(startX), false)
		bs.Write32(dst+12, uint32(startY), false)
		bs.Write16(dst, uint16(pa), false)
		bs.Write16(dst+2, uint16(-pb), false)
		bs.Write16(dst+4, uint16(pc), false)
		bs.Write16(dst+6, uint16(pd), false)

		src += 20
		dst += 16
	}
	return src, dst
}

// objAffineSet reproduces GBABIOS::ObjAffineSet: the sprite-oriented
// variant, writing PA-PD as separate strided halfwords (offset lets the
// caller pack them into an OAM rotation/scale group).
func (b *BIOS) objAffineSet(src, dst, count, offset uint32) (outSrc, outDst uint32) {
	bs := b.cpu.Bus()
	for i := uint32(0); i < count; i++ {
		rotateRaw, _ := bs.Read16(src+4, false)
		cos, sin := b.cosSin(rotateRaw)
		scaleX, _ := bs.Read16(src, false)
		scaleY, _ := bs.Read16(src+2, false)

		pa := int16(int32(cos) * int32(int16(scaleX)) >> 0xE)
		bs.Write16(dst, uint16(pa), false)
		dst += offset
		pb := int16(-(int32(sin) * int32(int16(scaleX)) >> 0xE))
		bs.Write16(dst, uint16(pb), false)
		dst += offset
		pc := int16(int32(sin) * int32(int16(scaleY)) >> 0xE)
		bs.Write16(dst, uint16(pc), false)
		dst += offset
		pd := int16(int32(cos) * int32(int16(scaleY)) >> 0xE)
		bs.Write16(dst, uint16(pd), false)
		dst += offset

		src += 8
	}
	return src, dst
}
