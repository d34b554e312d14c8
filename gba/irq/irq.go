// Package irq implements the interrupt controller described in spec §3/§4:
// IE (enable mask), IF (pending, write-1-to-clear), and IME (master
// enable). Grounded on jeebie/memory's RequestInterrupt, widened from 5
// GB interrupt sources to the GBA's 14.
package irq

import "github.com/valerio/go-gba/gba/addr"

// Controller holds IE/IF/IME state.
type Controller struct {
	IE  uint16
	IF  uint16
	IME bool
}

// New returns a freshly reset interrupt controller.
func New() *Controller {
	return &Controller{}
}

// Reset clears all interrupt state.
func (c *Controller) Reset() {
	c.IE, c.IF, c.IME = 0, 0, false
}

// Raise sets the IF bit for the given interrupt source.
func (c *Controller) Raise(i addr.Interrupt) {
	c.IF |= uint16(i)
}

// Acknowledge clears the IF bits present in mask (write-1-to-clear).
func (c *Controller) Acknowledge(mask uint16) {
	c.IF &^= mask
}

// Pending reports whether IME, the enable mask and the pending mask
// together select at least one interrupt (spec §3: IME ∧ (IE ∧ IF)).
func (c *Controller) Pending() bool {
	return c.IME && (c.IE&c.IF) != 0
}

// Asserted returns the raw (IE & IF) bits, regardless of IME — used by
// the CPU's halt/stop check, which stays parked while no enabled source
// is pending.
func (c *Controller) Asserted() uint16 {
	return c.IE & c.IF
}
