package ppu

import (
	"testing"

	"github.com/valerio/go-gba/gba/addr"
	"github.com/valerio/go-gba/gba/irq"
	"github.com/valerio/go-gba/gba/scheduler"
)

func newTestPPU() (*PPU, *scheduler.Scheduler, *irq.Controller) {
	s := scheduler.New()
	ic := irq.New()
	vram := make([]byte, 0x18000)
	pal := make([]byte, 0x400)
	oam := make([]byte, 0x400)
	p := New(ic, vram, pal, oam, nil, nil)
	p.Reset(s)
	return p, s, ic
}

// runCycles advances the scheduler in whatever steps it reports as the
// next due event, draining each, until at least n total cycles have
// elapsed.
func runCycles(s *scheduler.Scheduler, n uint64) {
	var elapsed uint64
	for elapsed < n {
		step := s.CyclesUntilNext()
		s.Advance(step)
		s.DrainDue()
		elapsed += step
	}
}

func TestVBlankAtLine160(t *testing.T) {
	p, s, _ := newTestPPU()

	runCycles(s, 160*cyclesPerLine)

	if int(p.vcount) != 160 {
		t.Fatalf("vcount = %d, want 160", p.vcount)
	}
	if p.dispstat&(1<<dispstatVBlankBit) == 0 {
		t.Fatalf("expected DISPSTAT vblank flag set at line 160")
	}
}

func TestVBlankIRQRequiresEnable(t *testing.T) {
	p, s, ic := newTestPPU()
	p.WriteIO(addr.DISPSTAT, 1<<dispstatVBlankIRQ)

	runCycles(s, 160*cyclesPerLine)

	if ic.IF&uint16(addr.IRQVBlank) == 0 {
		t.Fatalf("expected vblank IRQ to fire once enabled")
	}
}

func TestWrapAt228(t *testing.T) {
	p, s, _ := newTestPPU()

	runCycles(s, 228*cyclesPerLine)

	if p.vcount != 0 {
		t.Fatalf("vcount = %d, want wrap to 0 at line 228", p.vcount)
	}
}

func TestMode3BitmapComposite(t *testing.T) {
	p, s, _ := newTestPPU()
	p.WriteIO(addr.DISPCNT, 3) // mode 3

	// Paint the first pixel of line 0 with a known 15-bit color.
	p.vram[0] = 0x1F
	p.vram[1] = 0x00

	// Advance to the H-blank point of line 0 (960 cycles), where
	// drawScanline() runs.
	s.Advance(hblankOffset)
	s.DrainDue()

	fb := p.Framebuffer()
	want := bgr555(0x001F)
	if fb[0] != want {
		t.Fatalf("framebuffer[0] = %#x, want %#x", fb[0], want)
	}
}

func TestHBlankFlagAndTrigger(t *testing.T) {
	p, s, ic := newTestPPU()
	p.WriteIO(addr.DISPSTAT, 1<<dispstatHBlankIRQ)

	s.Advance(hblankOffset)
	s.DrainDue()

	if ic.IF&uint16(addr.IRQHBlank) == 0 {
		t.Fatalf("expected hblank IRQ to fire")
	}
}
