package timer

import (
	"testing"

	"github.com/valerio/go-gba/gba/addr"
	"github.com/valerio/go-gba/gba/irq"
	"github.com/valerio/go-gba/gba/scheduler"
)

func TestFreeRunningCounterFormula(t *testing.T) {
	s := scheduler.New()
	ic := irq.New()
	a := New(s, ic, nil)

	a.WriteReloadLow(0, 0)
	a.WriteReloadHigh(0, 0)
	a.WriteControl(0, 0x80) // enable, prescaler 1

	s.Advance(100)
	if got := a.Read16(0); got != 100 {
		t.Fatalf("counter = %d, want 100", got)
	}
}

func TestOverflowRaisesIRQAndReloads(t *testing.T) {
	s := scheduler.New()
	ic := irq.New()
	a := New(s, ic, nil)

	a.WriteReloadLow(0, 0xFE)
	a.WriteReloadHigh(0, 0xFF) // reload = 0xFFFE
	a.WriteControl(0, 0xC0)    // enable + irq, prescaler 1

	s.Advance(s.CyclesUntilNext())
	s.DrainDue()

	if ic.IF&uint16(addr.IRQTimer0) == 0 {
		t.Fatalf("expected timer0 IRQ flag set")
	}
	if got := a.Read16(0); got != 0xFFFE {
		t.Fatalf("counter after overflow = %#x, want reload 0xFFFE", got)
	}
}

func TestCascade(t *testing.T) {
	s := scheduler.New()
	ic := irq.New()
	a := New(s, ic, nil)

	// Timer 0: reload 0xFFFE, prescaler 1, enabled.
	a.WriteReloadLow(0, 0xFE)
	a.WriteReloadHigh(0, 0xFF)
	a.WriteControl(0, 0x80)

	// Timer 1: reload 0xFFFE, cascade, enabled. Two increments (one per
	// timer-0 overflow) are needed to wrap 0xFFFE -> 0x0000.
	a.WriteReloadLow(1, 0xFE)
	a.WriteReloadHigh(1, 0xFF)
	a.WriteControl(1, 0xC4)

	for i := 0; i < 2; i++ {
		s.Advance(s.CyclesUntilNext())
		s.DrainDue()
	}

	if ic.IF&uint16(addr.IRQTimer1) == 0 {
		t.Fatalf("expected timer1 to have overflowed via cascade")
	}
}
