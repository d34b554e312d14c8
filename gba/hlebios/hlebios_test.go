package hlebios

import (
	"testing"

	"github.com/valerio/go-gba/gba/addr"
	"github.com/valerio/go-gba/gba/bus"
	"github.com/valerio/go-gba/gba/cpu"
	"github.com/valerio/go-gba/gba/irq"
)

func newTestBIOS() (*BIOS, *bus.Bus, *cpu.CPU, *irq.Controller) {
	bs := bus.New()
	bs.LoadBIOS(make([]byte, 16*1024))
	ic := irq.New()
	c := cpu.New(bs, ic)
	b := New(c)
	return b, bs, c, ic
}

func TestSoftReset(t *testing.T) {
	b, bs, c, _ := newTestBIOS()
	bs.Write8(addr.IOStart-6, 0, false) // not a multiboot cart

	b.softReset()

	if got, want := c.Regs.R(13), uint32(0x03007F00); got != want {
		t.Errorf("System SP = %#x, want %#x", got, want)
	}
	if got, want := c.Regs.PC(), uint32(0x08000000); got != want {
		t.Errorf("PC after softReset = %#x, want %#x", got, want)
	}
	if got := c.Regs.Mode(); got != cpu.ModeSystem {
		t.Errorf("mode after softReset = %#x, want System", got)
	}
}

func TestRegisterRamReset(t *testing.T) {
	b, bs, _, _ := newTestBIOS()
	bs.Write32(addr.EWRAMStart, 0xDEADBEEF, false)
	bs.Write32(addr.IWRAMStart, 0xDEADBEEF, false)

	b.registerRamReset(0x01 | 0x02)

	if v, _ := bs.Read32(addr.EWRAMStart, false); v != 0 {
		t.Errorf("EWRAM not cleared: %#x", v)
	}
	if v, _ := bs.Read32(addr.IWRAMStart, false); v != 0 {
		t.Errorf("IWRAM not cleared: %#x", v)
	}
}

func TestRegisterRamResetPreservesCallerStack(t *testing.T) {
	b, bs, _, _ := newTestBIOS()
	top := addr.IWRAMEnd - 3
	bs.Write32(top, 0xCAFEF00D, false)

	b.registerRamReset(0x02)

	if v, _ := bs.Read32(top, false); v != 0xCAFEF00D {
		t.Errorf("top-of-IWRAM stack clobbered by RegisterRamReset: %#x", v)
	}
}

func TestDiv(t *testing.T) {
	tests := []struct {
		name               string
		num, den           int32
		wantQ, wantR, wantA uint32
	}{
		{"positive/positive", 10, 3, 3, 1, 3},
		{"negative numerator", -10, 3, 0xFFFFFFFD, 0xFFFFFFFF, 3},          // -3, -1
		{"negative denominator", 10, -3, 0xFFFFFFFD, 1, 3},                // -3
		{"both negative", -10, -3, 3, 0xFFFFFFFF, 3},                      // r = -1
		{"exact division", 12, 4, 3, 0, 3},
		{"zero denominator positive numerator", 7, 0, 1, 7, 1},
		{"zero denominator negative numerator", -7, 0, 0xFFFFFFFF, 0xFFFFFFF9, 1}, // -1, -7
	}
	b := &BIOS{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, r, a := b.div(tt.num, tt.den)
			if q != tt.wantQ || r != tt.wantR || a != tt.wantA {
				t.Errorf("div(%d,%d) = (%#x,%#x,%#x), want (%#x,%#x,%#x)",
					tt.num, tt.den, q, r, a, tt.wantQ, tt.wantR, tt.wantA)
			}
		})
	}
}

func TestSqrt(t *testing.T) {
	tests := []struct {
		operand uint32
		want    uint32
	}{
		{0, 0},
		{4, 2},
		{144, 12},
		{2, 1},
		{0xFFFFFFFF, 0xFFFF},
	}
	b := &BIOS{}
	for _, tt := range tests {
		if got := b.sqrt(tt.operand); got != tt.want {
			t.Errorf("sqrt(%#x) = %#x, want %#x", tt.operand, got, tt.want)
		}
	}
}

func TestArcTanQuadrantBoundaries(t *testing.T) {
	b := &BIOS{}
	for i := range b.sine {
		b.sine[i] = 0
	}

	if got := b.arcTan2(1, 0); got != 0 {
		t.Errorf("arcTan2(1,0) = %#x, want 0", got)
	}
	if got := b.arcTan2(-1, 0); got != 0x8000 {
		t.Errorf("arcTan2(-1,0) = %#x, want 0x8000", got)
	}
	if got := b.arcTan2(0, 1); got != 0x4000 {
		t.Errorf("arcTan2(0,1) = %#x, want 0x4000", got)
	}
	if got := b.arcTan2(0, -1); got != 0xC000 {
		t.Errorf("arcTan2(0,-1) = %#x, want 0xC000", got)
	}
}

func TestCosSinIdentityAngle(t *testing.T) {
	b, _, _, _ := newTestBIOS()
	cos, sin := b.cosSin(0)
	if cos != 0x4000 || sin != 0 {
		t.Errorf("cosSin(0) = (%#x,%#x), want (0x4000,0)", cos, sin)
	}
}

func TestCpuSetWordFill(t *testing.T) {
	b, bs, _, _ := newTestBIOS()
	bs.Write32(addr.EWRAMStart, 0x11223344, false)
	dst := addr.EWRAMStart + 0x100

	lengthMode := uint32(4) | (1 << 26) | (1 << 24) // 4 words, 32-bit, fixed source
	outSrc, outDst := b.cpuSet(addr.EWRAMStart, dst, lengthMode)

	if outSrc != addr.EWRAMStart+4 {
		t.Errorf("outSrc = %#x, want src+4 (fixed-source advances by one word)", outSrc)
	}
	if outDst != dst+16 {
		t.Errorf("outDst = %#x, want dst+16", outDst)
	}
	for i := uint32(0); i < 4; i++ {
		if v, _ := bs.Read32(dst+i*4, false); v != 0x11223344 {
			t.Errorf("word %d = %#x, want 0x11223344", i, v)
		}
	}
}

func TestCpuSetHalfwordCopy(t *testing.T) {
	b, bs, _, _ := newTestBIOS()
	src := addr.EWRAMStart
	dst := addr.EWRAMStart + 0x200
	bs.Write16(src, 0xAAAA, false)
	bs.Write16(src+2, 0xBBBB, false)

	lengthMode := uint32(1) // 16-bit, copy; the GBA's count-to-byte-size
	// shift trick doubles the halfword count, so this copies 2 halfwords.
	b.cpuSet(src, dst, lengthMode)

	if v, _ := bs.Read16(dst, false); v != 0xAAAA {
		t.Errorf("dst[0] = %#x, want 0xAAAA", v)
	}
	if v, _ := bs.Read16(dst+2, false); v != 0xBBBB {
		t.Errorf("dst[1] = %#x, want 0xBBBB", v)
	}
}

func TestCpuFastSetRoundsToChunk(t *testing.T) {
	b, bs, _, _ := newTestBIOS()
	src := addr.EWRAMStart
	dst := addr.EWRAMStart + 0x300
	bs.Write32(src, 0x5, false)

	lengthMode := uint32(1) | (1 << 24) // 1 word requested, fixed source
	_, outDst := b.cpuFastSet(src, dst, lengthMode)

	if outDst != dst+32 {
		t.Errorf("outDst = %#x, want dst+32 (rounded to one 32-byte chunk)", outDst)
	}
	for i := uint32(0); i < 32; i += 4 {
		if v, _ := bs.Read32(dst+i, false); v != 0x5 {
			t.Errorf("word at +%d = %#x, want 5", i, v)
		}
	}
}

func TestBgAffineSetIdentity(t *testing.T) {
	b, bs, _, _ := newTestBIOS()
	src := addr.EWRAMStart
	dst := addr.EWRAMStart + 0x400

	bs.Write32(src, 0, false)     // center X
	bs.Write32(src+4, 0, false)   // center Y
	bs.Write32(src+8, 0, false)   // display X/Y (both zero)
	bs.Write16(src+12, 0x100, false) // scale X = 1.0
	bs.Write16(src+14, 0x100, false) // scale Y = 1.0
	bs.Write16(src+16, 0, false)     // rotation = 0

	b.bgAffineSet(src, dst, 1)

	pa, _ := bs.Read16(dst, false)
	pb, _ := bs.Read16(dst+2, false)
	pc, _ := bs.Read16(dst+4, false)
	pd, _ := bs.Read16(dst+6, false)
	if pa != 0x100 || pb != 0 || pc != 0 || pd != 0x100 {
		t.Errorf("identity affine params = (%#x,%#x,%#x,%#x), want (0x100,0,0,0x100)", pa, pb, pc, pd)
	}
}

func TestGetBiosChecksumViaSWI(t *testing.T) {
	b, bs, c, _ := newTestBIOS()
	c.Regs.SetR(14, addr.BiosPostSWI)
	c.LastSWIComment = 0x0D

	b.enterSWI()

	if got := c.Regs.R(0); got != biosChecksum {
		t.Errorf("r0 after GetBiosChecksum SWI = %#x, want %#x", got, biosChecksum)
	}
	_ = bs
}

func TestHaltSWIThenVBlankResolvesViaIRQVector(t *testing.T) {
	b, bs, c, ic := newTestBIOS()

	// Guest interrupt handler: a 2-instruction ARM routine in EWRAM
	// (nop; bx lr) reached through the pointer the game's startup code
	// conventionally leaves at the top of IWRAM.
	handlerAddr := addr.EWRAMStart + 0x1000
	bs.Write32(addr.IWRAMEnd-3, handlerAddr, false)
	bs.Write32(handlerAddr, 0xE1A00000, false)   // mov r0, r0 (nop)
	bs.Write32(handlerAddr+4, 0xE12FFF1E, false) // bx lr

	b.softReset()

	testAddr := addr.EWRAMStart
	bs.Write32(testAddr, 0xEF020000, false) // swi 0x020000 (Halt; ARM SWIs carry the function in bits 16-23)
	c.Regs.SetPC(testAddr)
	c.PipelineFlush()

	c.Step() // drains the stale pipeline slot, refills from testAddr
	c.Step() // executes "swi 0x02", dispatching into haltCPU

	if !bs.Halted() {
		t.Fatal("swi Halt did not halt the bus")
	}
	if !b.pendingHalt {
		t.Fatal("swi Halt did not set pendingHalt")
	}

	ic.IME = true
	ic.IE = uint16(addr.IRQVBlank)
	ic.Raise(addr.IRQVBlank)

	resolved := false
	for i := 0; i < 16 && !resolved; i++ {
		c.Step()
		if !bs.Halted() && !b.pendingHalt {
			resolved = true
		}
	}
	if !resolved {
		t.Fatal("halt never resolved after the IRQ vector fired")
	}
}
