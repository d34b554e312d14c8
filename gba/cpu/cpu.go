// Package cpu implements the GBA's ARM7TDMI core (spec §3/§4.3): the
// banked register file, the three-stage pipeline, ARM/THUMB decode and
// execution, and condition evaluation. Grounded on
// jeebie/cpu/{cpu,registers,mapping}.go for the overall CPU-struct /
// decode-table shape, generalized from the GB's 8/16-bit Z80 register
// pairs to the ARM7TDMI's 32-bit general registers and mode-banked
// register sets.
package cpu

import (
	"github.com/valerio/go-gba/gba/addr"
	"github.com/valerio/go-gba/gba/bus"
	"github.com/valerio/go-gba/gba/irq"
)

// CPU drives the ARM7TDMI's fetch-decode-execute loop against the
// shared bus, checking for interrupt entry at every instruction
// boundary (spec §4.3 "Interrupt entry").
type CPU struct {
	Regs *Registers
	bus  *bus.Bus
	irqc *irq.Controller

	// pipeline[0] is the opcode about to execute (the "decode" slot one
	// cycle ago, now ready); pipeline[1] is the freshly fetched opcode
	// one step behind it. Regs.PC() always points two pipeline stages
	// past pipeline[0]'s address (spec §3 "Pipeline state").
	pipeline [2]uint32
	flushed  bool
	seq      bool

	// OnTrampoline, when non-nil, is consulted every time control flow
	// lands at a new PC (spec §4.4: "any branch into canonical BIOS
	// addresses ... dispatches into host-language handlers"). If it
	// returns true it has already mutated registers/PC to reproduce the
	// BIOS side effects and the pipeline refills from the (possibly
	// rewritten) PC instead of fetching real BIOS bytes.
	OnTrampoline func(pc uint32) bool

	// LastSWIComment holds the comment field of the most recently
	// executed SWI instruction, read by the HLE BIOS dispatcher once
	// control lands at the SWI trampoline address (spec §4.4).
	LastSWIComment uint32

	// OnFatal, when non-nil, is invoked for the three documented
	// unrecoverable conditions (spec §7): an undefined opcode, an
	// unknown SWI under HLE, and an unknown BIOS branch target under
	// HLE. The installed hook is expected to log the reason and stop
	// the emulation worker; the CPU itself has no notion of "the
	// worker" and only reports the condition.
	OnFatal func(reason string)
}

// Fatal reports one of the documented unrecoverable conditions (spec
// §7) to the installed OnFatal hook, if any. A nil hook makes this a
// no-op, which keeps the CPU usable standalone in tests that don't
// care about fatal-condition reporting.
func (c *CPU) Fatal(reason string) {
	if c.OnFatal != nil {
		c.OnFatal(reason)
	}
}

// Bus exposes the CPU's wired bus, for HLE BIOS handlers that need to
// perform raw reads/writes as part of reproducing BIOS side effects.
func (c *CPU) Bus() *bus.Bus { return c.bus }

// IRQController exposes the CPU's wired interrupt controller, for HLE
// BIOS handlers implementing IntrWait/Halt/Stop (spec §4.4).
func (c *CPU) IRQController() *irq.Controller { return c.irqc }

// PipelineFlush marks the pipeline dirty and forces SetPC's target to
// take effect on the next refill; used by HLE BIOS handlers that set PC
// directly rather than through an ARM/THUMB branch handler.
func (c *CPU) PipelineFlush() { c.flush() }

// New wires a CPU to its register file, bus, and interrupt controller.
func New(b *bus.Bus, ic *irq.Controller) *CPU {
	return &CPU{Regs: NewRegisters(), bus: b, irqc: ic}
}

// Reset puts the CPU at the BIOS reset vector with a freshly filled
// pipeline, mirroring power-on state.
func (c *CPU) Reset() {
	c.Regs = NewRegisters()
	c.Regs.SetCPSR(uint32(ModeSupervisor) | 1<<flagI | 1<<flagF)
	c.Regs.SetPC(0)
	c.flushed = false
	c.seq = false
	c.refillPipeline()
}

func pcStep(thumb bool) uint32 {
	if thumb {
		return 2
	}
	return 4
}

// fetch reads one instruction word (ARM) or halfword (THUMB) at address,
// charging bus cycles for the access.
func (c *CPU) fetch(address uint32) (uint32, uint64) {
	c.bus.InBIOS = address <= 0x3FFF
	if c.Regs.Thumb() {
		v, cyc := c.bus.Read16(address, c.seq)
		c.seq = true
		return uint32(v), uint64(cyc)
	}
	v, cyc := c.bus.Read32(address, c.seq)
	c.seq = true
	return v, uint64(cyc)
}

// refillPipeline re-fetches both pipeline slots starting at the current
// PC (the branch/mode-change target a handler just wrote), restoring
// the two-ahead invariant once the refill completes.
func (c *CPU) refillPipeline() uint64 {
	step := pcStep(c.Regs.Thumb())
	target := c.Regs.PC()
	c.seq = false
	op0, cyc0 := c.fetch(target)
	op1, cyc1 := c.fetch(target + step)
	c.pipeline[0], c.pipeline[1] = op0, op1
	c.Regs.SetPC(target + 2*step)
	return cyc0 + cyc1
}

func (c *CPU) advancePipeline() uint64 {
	step := pcStep(c.Regs.Thumb())
	pc := c.Regs.PC()
	op, cyc := c.fetch(pc)
	c.pipeline[0] = c.pipeline[1]
	c.pipeline[1] = op
	c.Regs.SetPC(pc + step)
	return cyc
}

// flush marks that the instruction just executed changed control flow
// (branch, mode change, or a PC-destination write); Step refills the
// pipeline from the new PC instead of advancing it normally.
func (c *CPU) flush() { c.flushed = true }

// Step executes one instruction (or one halted/stopped cycle) and
// returns the number of CPU cycles it consumed.
func (c *CPU) Step() uint64 {
	if c.bus.Halted() || c.bus.Stopped() {
		if c.irqc.Asserted() == 0 {
			return 1
		}
		// The clock only resumes once the interrupt is actually
		// serviceable; a pending-but-masked source (IME off, or CPSR.I
		// still set from an HLE BIOS call) leaves the core halted, same
		// as real hardware halting with interrupts disabled.
		if !c.irqc.Pending() || c.Regs.IRQDisabled() {
			return 1
		}
		c.bus.Unhalt()
		return c.enterIRQAndRefill()
	}

	instr := c.pipeline[0]
	var cycles uint64
	if c.Regs.Thumb() {
		cycles = c.executeThumb(uint16(instr))
	} else {
		cond := instr >> 28
		n, z, cf, v := c.Regs.Flags()
		if cond == 0xF {
			// Condition 1111 is architecturally undefined (spec §7
			// "Undefined opcode"); unlike a normal unmet condition, this
			// is a programming error in the guest, not a no-op.
			c.Fatal("undefined ARM condition code 1111")
		} else if evalCondition(cond, n, z, cf, v) {
			cycles += c.executeARM(instr)
		}
	}

	if c.flushed {
		c.flushed = false
		pc := c.Regs.PC()
		if c.OnTrampoline != nil && !c.OnTrampoline(pc) && pc >= addr.BIOSStart && pc <= addr.BIOSEnd {
			// The branch landed inside the BIOS region but not on one of
			// the canonical addresses HLE recognizes (spec §7 "Unknown
			// BIOS branch target under HLE"); nothing rewrote PC/registers
			// to stand in for it, and there are no real BIOS bytes to
			// fall back to execute.
			c.Fatal("unknown BIOS branch target")
		}
		cycles += c.refillPipeline()
	} else {
		cycles += c.advancePipeline()
	}

	if c.irqc.Pending() && !c.Regs.IRQDisabled() {
		cycles += c.enterIRQAndRefill()
	}

	return cycles
}

// enterIRQAndRefill performs the hardware IRQ entry, lets OnTrampoline
// intercept the new PC (always 0x18, the IRQ vector), and refills the
// pipeline from wherever it left PC.
func (c *CPU) enterIRQAndRefill() uint64 {
	c.enterIRQ()
	if c.OnTrampoline != nil {
		c.OnTrampoline(c.Regs.PC())
	}
	cycles := c.refillPipeline()
	c.flushed = false
	return cycles
}

// enterIRQ performs the hardware IRQ entry sequence (spec §4.3):
// SPSR_irq <- CPSR, R14_irq <- return address, mode <- IRQ, T <- 0,
// I <- 1, PC <- 0x18, pipeline refilled.
func (c *CPU) enterIRQ() {
	offset := uint32(8)
	if c.Regs.Thumb() {
		offset = 4
	}
	returnAddr := c.Regs.PC() - offset + 4
	savedCPSR := c.Regs.CPSR()

	c.Regs.EnterMode(ModeIRQ, savedCPSR)
	c.Regs.SetR(14, returnAddr)
	c.Regs.SetCPSR(c.Regs.CPSR() &^ (1 << flagT) | 1<<flagI)
	c.Regs.SetPC(0x18)
	c.flush()
}
