package cpu

import (
	"testing"

	"github.com/valerio/go-gba/gba/bus"
	"github.com/valerio/go-gba/gba/irq"
)

func newTestCPU() (*CPU, *bus.Bus, *irq.Controller) {
	bs := bus.New()
	bs.LoadBIOS(make([]byte, 16*1024))
	ic := irq.New()
	return New(bs, ic), bs, ic
}

func TestEvalCondition(t *testing.T) {
	tests := []struct {
		name       string
		cond       uint32
		n, z, c, v bool
		want       bool
	}{
		{"EQ taken", 0x0, false, true, false, false, true},
		{"EQ not taken", 0x0, false, false, false, false, false},
		{"NE", 0x1, false, false, false, false, true},
		{"CS", 0x2, false, false, true, false, true},
		{"CC", 0x3, false, false, false, false, true},
		{"MI", 0x4, true, false, false, false, true},
		{"PL", 0x5, false, false, false, false, true},
		{"VS", 0x6, false, false, false, true, true},
		{"VC", 0x7, false, false, false, false, true},
		{"HI", 0x8, false, false, true, false, true},
		{"HI blocked by Z", 0x8, false, true, true, false, false},
		{"LS", 0x9, false, true, true, false, true},
		{"GE N==V", 0xA, true, false, false, true, true},
		{"GE N!=V fails", 0xA, true, false, false, false, false},
		{"LT N!=V", 0xB, true, false, false, false, true},
		{"GT", 0xC, false, false, false, false, true},
		{"GT blocked by Z", 0xC, false, true, false, false, false},
		{"LE via Z", 0xD, false, true, false, false, true},
		{"AL always", 0xE, false, false, false, false, true},
		{"reserved always fails", 0xF, true, true, true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evalCondition(tt.cond, tt.n, tt.z, tt.c, tt.v); got != tt.want {
				t.Errorf("evalCondition(%#x, %v,%v,%v,%v) = %v, want %v",
					tt.cond, tt.n, tt.z, tt.c, tt.v, got, tt.want)
			}
		})
	}
}

func TestModeBankingRoundTrip(t *testing.T) {
	c, _, _ := newTestCPU()
	r := c.Regs

	r.SetCPSR(uint32(ModeUser))
	r.SetR(13, 0x03007F00)
	r.SetR(14, 0x08000123)

	r.EnterMode(ModeIRQ, uint32(ModeUser))
	r.SetR(13, 0x03007FA0)
	r.SetR(14, 0xDEADBEEF)

	if got := r.SPSR(); got != uint32(ModeUser) {
		t.Errorf("SPSR_irq = %#x, want saved CPSR %#x", got, uint32(ModeUser))
	}

	r.SetCPSR(uint32(ModeUser))
	if got := r.R(13); got != 0x03007F00 {
		t.Errorf("R13 after returning to User mode = %#x, want 0x03007F00 (IRQ write must not clobber User's bank)", got)
	}
	if got := r.R(14); got != 0x08000123 {
		t.Errorf("R14 after returning to User mode = %#x, want 0x08000123", got)
	}

	r.SetCPSR(uint32(ModeIRQ))
	if got := r.R(13); got != 0x03007FA0 {
		t.Errorf("R13_irq = %#x, want 0x03007FA0 (banked write lost on mode switch)", got)
	}
	if got := r.R(14); got != 0xDEADBEEF {
		t.Errorf("R14_irq = %#x, want 0xDEADBEEF", got)
	}
}

func TestResetEntersSupervisorWithInterruptsMasked(t *testing.T) {
	c, _, _ := newTestCPU()
	c.Reset()

	if got := c.Regs.Mode(); got != ModeSupervisor {
		t.Errorf("mode after Reset = %#x, want Supervisor", got)
	}
	if !c.Regs.IRQDisabled() {
		t.Error("IRQDisabled() false after Reset, want interrupts masked at power-on")
	}
	if c.Regs.Thumb() {
		t.Error("Thumb() true after Reset, want ARM state at power-on")
	}
}

func TestPipelineStaysTwoAheadAcrossSteps(t *testing.T) {
	c, bs, _ := newTestCPU()
	base := uint32(0x02000000)
	for i := uint32(0); i < 8; i++ {
		bs.Write32(base+i*4, 0xE1A00000, false) // mov r0, r0 (nop), always executes
	}
	c.Regs.SetCPSR(uint32(ModeSystem))
	c.Regs.SetPC(base)
	c.PipelineFlush()

	c.Step() // drains stale pipeline slot, refills from base
	if got, want := c.Regs.PC(), base+8; got != want {
		t.Fatalf("PC after refill = %#x, want %#x (pipeline two instructions ahead)", got, want)
	}

	c.Step()
	if got, want := c.Regs.PC(), base+12; got != want {
		t.Errorf("PC after one normal step = %#x, want %#x", got, want)
	}
}

func TestIRQEntryVectorsAndMasksInterrupts(t *testing.T) {
	c, _, ic := newTestCPU()
	c.Regs.SetCPSR(uint32(ModeSystem))
	c.Regs.SetR(13, 0x03007FA0) // SP_irq, banked before the entry
	c.Regs.SetPC(0x02000100)

	ic.IME = true
	ic.IE = 1
	ic.Raise(1)

	if !ic.Pending() {
		t.Fatal("controller not reporting pending with IME/IE/IF all set")
	}

	cycles := c.enterIRQAndRefill()

	if cycles == 0 {
		t.Error("enterIRQAndRefill reported zero cycles")
	}
	if got := c.Regs.Mode(); got != ModeIRQ {
		t.Errorf("mode after IRQ entry = %#x, want IRQ", got)
	}
	if !c.Regs.IRQDisabled() {
		t.Error("IRQDisabled() false after IRQ entry, want CPSR.I forced on")
	}
	if got, want := c.Regs.SPSR(), uint32(ModeSystem); got != want {
		t.Errorf("SPSR_irq = %#x, want saved caller CPSR %#x", got, want)
	}
}
