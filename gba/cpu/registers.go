// Package cpu implements the GBA's ARM7TDMI core (spec §3/§4.3): the
// banked register file, the three-stage pipeline, ARM/THUMB decode and
// execution, and condition evaluation. Grounded on
// jeebie/cpu/{cpu,registers,mapping}.go for the overall CPU-struct /
// decode-table shape, generalized from the GB's 8/16-bit Z80 register
// pairs to the ARM7TDMI's 32-bit general registers and mode-banked
// register sets.
package cpu

// Mode is one of the ARM7TDMI's seven operating modes (spec §4.3).
type Mode uint32

const (
	ModeUser       Mode = 0x10
	ModeFIQ        Mode = 0x11
	ModeIRQ        Mode = 0x12
	ModeSupervisor Mode = 0x13
	ModeAbort      Mode = 0x17
	ModeUndefined  Mode = 0x1B
	ModeSystem     Mode = 0x1F
)

// CPSR flag bit positions.
const (
	flagN = 31
	flagZ = 30
	flagC = 29
	flagV = 28
	flagI = 7
	flagF = 6
	flagT = 5
)

// Registers holds the ARM7TDMI's full banked register file: R0-R15,
// CPSR, and the per-mode shadow copies of R8-R14 and SPSR (spec §4.3
// "Mode banking").
type Registers struct {
	r    [16]uint32
	cpsr uint32

	// Banked R8-R12, FIQ only; accessed lazily by mode in R/SetR, the
	// same way R13/R14 are (no copy needed on a mode transition).
	fiqR8_12 [5]uint32

	// Banked R13 (SP), R14 (LR) per privileged mode, plus User/System
	// (which share a bank).
	bankedR13 map[Mode]uint32
	bankedR14 map[Mode]uint32
	spsr      map[Mode]uint32
}

// NewRegisters returns a zeroed register file in System mode.
func NewRegisters() *Registers {
	r := &Registers{
		bankedR13: make(map[Mode]uint32),
		bankedR14: make(map[Mode]uint32),
		spsr:      make(map[Mode]uint32),
	}
	r.cpsr = uint32(ModeSystem)
	return r
}

// Mode returns the current CPSR mode bits.
func (r *Registers) Mode() Mode { return Mode(r.cpsr & 0x1F) }

// Thumb reports CPSR.T.
func (r *Registers) Thumb() bool { return r.cpsr&(1<<flagT) != 0 }

// IRQDisabled reports CPSR.I.
func (r *Registers) IRQDisabled() bool { return r.cpsr&(1<<flagI) != 0 }

// R reads general register n (0-15) as banked for the current mode.
func (r *Registers) R(n int) uint32 {
	if n == 15 {
		return r.r[15]
	}
	if n >= 8 && n <= 12 && r.Mode() == ModeFIQ {
		return r.fiqR8_12[n-8]
	}
	if n == 13 {
		if v, ok := r.bankedR13[r.Mode()]; ok {
			return v
		}
		return r.r[13]
	}
	if n == 14 {
		if v, ok := r.bankedR14[r.Mode()]; ok {
			return v
		}
		return r.r[14]
	}
	return r.r[n]
}

// SetR writes general register n as banked for the current mode.
func (r *Registers) SetR(n int, v uint32) {
	if n == 15 {
		r.r[15] = v
		return
	}
	if n >= 8 && n <= 12 && r.Mode() == ModeFIQ {
		r.fiqR8_12[n-8] = v
		return
	}
	if n == 13 {
		if r.Mode() == ModeUser || r.Mode() == ModeSystem {
			r.r[13] = v
		} else {
			r.bankedR13[r.Mode()] = v
		}
		return
	}
	if n == 14 {
		if r.Mode() == ModeUser || r.Mode() == ModeSystem {
			r.r[14] = v
		} else {
			r.bankedR14[r.Mode()] = v
		}
		return
	}
	r.r[n] = v
}

// PC returns R15.
func (r *Registers) PC() uint32 { return r.r[15] }

// SetPC writes R15 directly, bypassing the pipeline-advance logic (used
// for branches and exception entry).
func (r *Registers) SetPC(v uint32) { r.r[15] = v }

// CPSR returns the full current program status register.
func (r *Registers) CPSR() uint32 { return r.cpsr }

// SetCPSR writes the full CPSR. R8-R14 and SPSR are banked lazily by
// mode in R/SetR/SPSR, so no bank-copy is needed here (spec §4.3 "Mode
// banking").
func (r *Registers) SetCPSR(v uint32) {
	r.cpsr = v
}

// SetFlags writes only the condition flag bits (N,Z,C,V); the control
// and mode bits are left unchanged.
func (r *Registers) SetFlags(n, z, c, v bool) {
	r.cpsr = setBit(r.cpsr, flagN, n)
	r.cpsr = setBit(r.cpsr, flagZ, z)
	r.cpsr = setBit(r.cpsr, flagC, c)
	r.cpsr = setBit(r.cpsr, flagV, v)
}

func (r *Registers) Flags() (n, z, c, v bool) {
	return r.cpsr&(1<<flagN) != 0, r.cpsr&(1<<flagZ) != 0, r.cpsr&(1<<flagC) != 0, r.cpsr&(1<<flagV) != 0
}

func setBit(v uint32, bit uint, set bool) uint32 {
	if set {
		return v | 1<<bit
	}
	return v &^ (1 << bit)
}

// EnterMode switches to mode m, saving the caller's CPSR into m's SPSR.
// Used for exception entry (spec §4.3 "Interrupt entry").
func (r *Registers) EnterMode(m Mode, savedCPSR uint32) {
	r.SetCPSR(uint32(m) | (r.cpsr &^ 0x1F))
	r.spsr[m] = savedCPSR
}

// SPSR returns the current mode's saved program status register.
func (r *Registers) SPSR() uint32 { return r.spsr[r.Mode()] }

// SetSPSR writes the current mode's SPSR.
func (r *Registers) SetSPSR(v uint32) { r.spsr[r.Mode()] = v }

// RestoreFromSPSR copies the current mode's SPSR back into CPSR,
// switching banks as needed (used by data-processing writes to R15
// with S=1, and by the BIOS return-from-exception sequence).
func (r *Registers) RestoreFromSPSR() {
	r.SetCPSR(r.spsr[r.Mode()])
}
