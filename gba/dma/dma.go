// Package dma implements the GBA's four DMA channels (spec §3/§4.5):
// four trigger sources, 16/32-bit transfers, repeat, IRQ, FIFO refill.
// Grounded on original_source/include/dma.hpp + src/dma.cpp for the
// queued-flag-per-channel priority scan and the currentDma reentrancy
// guard, since spec.md names the behavior but the bookkeeping mechanics
// are only implicit.
package dma

import (
	"github.com/valerio/go-gba/gba/addr"
	"github.com/valerio/go-gba/gba/bus"
	"github.com/valerio/go-gba/gba/irq"
)

// Control field values.
const (
	ctrlIncrement = 0
	ctrlDecrement = 1
	ctrlFixed     = 2
	ctrlIncReload = 3 // destination only
)

const (
	timingImmediate = 0
	timingVBlank    = 1
	timingHBlank    = 2
	timingFIFO      = 3 // channels 1/2 only
)

// Channel is one of the four DMA channels' visible + shadow register
// state (spec §3).
type Channel struct {
	sad, dad uint32
	numTransfers uint16
	srcControl, dstControl uint8
	repeat       bool
	transferSize uint8 // 0 = 16-bit, 1 = 32-bit
	timing       uint8
	irqEnable    bool
	enable       bool

	// shadow, latched on rising edge of enable (spec §3).
	iSAD, iDAD uint32
	iCNT       uint16 // shadow of numTransfers

	queued bool
}

// Engine owns all four channels and the bus/interrupt controller they
// transfer through.
type Engine struct {
	ch      [4]Channel
	b       *bus.Bus
	irqc    *irq.Controller
	current int // index of channel currently transferring, -1 if none

	interrupts [4]addr.Interrupt
}

// New wires a DMA engine to its bus and interrupt controller.
func New(b *bus.Bus, ic *irq.Controller) *Engine {
	return &Engine{
		b: b, irqc: ic, current: -1,
		interrupts: [4]addr.Interrupt{addr.IRQDMA0, addr.IRQDMA1, addr.IRQDMA2, addr.IRQDMA3},
	}
}

// Reset clears all four channels.
func (e *Engine) Reset() {
	for i := range e.ch {
		e.ch[i] = Channel{}
	}
	e.current = -1
}

// OnVBlank/OnHBlank queue channels armed for that trigger timing and
// immediately attempt to run the highest-priority queued channel (spec
// §4.5 "Priority": lowest-numbered runs first).
func (e *Engine) OnVBlank() { e.onTrigger(timingVBlank) }
func (e *Engine) OnHBlank() { e.onTrigger(timingHBlank) }

// OnFIFORequest is invoked by the APU when FIFO A (channel 1) or FIFO B
// (channel 2) drops to <=16 bytes (spec §4.8).
func (e *Engine) OnFIFORequest(fifoChannel int) {
	ch := fifoChannel // 1 or 2
	c := &e.ch[ch]
	if e.current != ch && c.enable && c.timing == timingFIFO {
		c.queued = true
	}
	e.check()
}

func (e *Engine) onTrigger(timing uint8) {
	for i := range e.ch {
		c := &e.ch[i]
		if e.current != i && c.enable && c.timing == timing {
			c.queued = true
		}
	}
	e.check()
}

// check runs the lowest-numbered queued+enabled channel to completion,
// if no channel is currently mid-transfer (spec §4.5 reentrancy guard).
func (e *Engine) check() {
	if e.current != -1 {
		return
	}
	for i := range e.ch {
		if e.ch[i].enable && e.ch[i].queued {
			e.run(i)
			return
		}
	}
}

func (e *Engine) run(channel int) {
	e.current = channel
	c := &e.ch[channel]
	c.queued = false

	length := int(c.iCNT)
	if length == 0 {
		if channel == 3 {
			length = 0x10000
		} else {
			length = 0x4000
		}
	}

	srcCtrl, dstCtrl := c.srcControl, c.dstControl
	size := c.transferSize

	// Sound FIFO timing (channels 1/2): force length 4, size 32-bit,
	// destination fixed (spec §3/§4.5).
	if channel == 1 || channel == 2 {
		if c.timing == timingFIFO {
			length = 4
			size = 1
			dstCtrl = ctrlFixed
		}
	}

	// Channel 0 cannot target SRAM (spec §3); nothing to enforce here
	// beyond documentation since the bus itself ignores SRAM writes for
	// addresses outside 0x0E000000-0x0E00FFFF.

	// Source-control "increment and reload" is invalid; treated as
	// increment (spec §4.5 step 1).
	if srcCtrl == ctrlIncReload {
		srcCtrl = ctrlIncrement
	}

	src, dst := c.iSAD, c.iDAD
	sequential := false
	unitSize := uint32(2)
	if size == 1 {
		unitSize = 4
	}

	for n := 0; n < length; n++ {
		if size == 1 {
			v, _ := e.b.Read32(src, sequential)
			e.b.Write32(dst, v, sequential)
		} else {
			v, _ := e.b.Read16(src, sequential)
			e.b.Write16(dst, v, sequential)
		}
		sequential = true

		src = adjust(src, srcCtrl, unitSize)
		dst = adjust(dst, dstCtrl, unitSize)
	}

	c.iSAD, c.iDAD = src, dst

	if dstCtrl == ctrlIncReload {
		c.iDAD = c.dad
	}

	if c.irqEnable {
		e.irqc.Raise(e.interrupts[channel])
	}
	if !c.repeat {
		c.enable = false
	}
	c.iCNT = c.numTransfers

	e.current = -1
	e.check() // another channel may be queued behind this one
}

func adjust(addrVal uint32, ctrl uint8, unit uint32) uint32 {
	switch ctrl {
	case ctrlIncrement, ctrlIncReload:
		return addrVal + unit
	case ctrlDecrement:
		return addrVal - unit
	default: // fixed
		return addrVal
	}
}

// ReadIO/WriteIO implement bus.IOHandler over the 12-byte-per-channel
// DMA register window: SAD (4 bytes), DAD (4 bytes), CNT_L (2 bytes,
// numTransfers), CNT_H (2 bytes, control bits), matching the real
// GBA's DMACNT_H layout (bits 5-6 dst control, 7-8 src control, 9
// repeat, 10 size, 12-13 timing, 14 irq enable, 15 enable — here
// expressed relative to the CNT_H halfword rather than the full 32-bit
// register).
func (e *Engine) ReadIO(address uint32) uint8 {
	channel := int((address - addr.DMA0SAD) / 12)
	off := (address - addr.DMA0SAD) % 12
	c := &e.ch[channel]
	switch {
	case off < 4:
		return byteOf(c.sad, int(off))
	case off < 8:
		return byteOf(c.dad, int(off-4))
	case off == 8:
		return uint8(c.numTransfers)
	case off == 9:
		return uint8(c.numTransfers >> 8)
	case off == 10:
		return c.cntHLow()
	default:
		return c.cntHHigh()
	}
}

func (e *Engine) WriteIO(address uint32, value uint8) {
	channel := int((address - addr.DMA0SAD) / 12)
	off := (address - addr.DMA0SAD) % 12
	c := &e.ch[channel]
	switch {
	case off < 4:
		c.sad = setByte(c.sad, int(off), value)
	case off < 8:
		c.dad = setByte(c.dad, int(off-4), value)
	case off == 8:
		c.numTransfers = c.numTransfers&0xFF00 | uint16(value)
	case off == 9:
		c.numTransfers = c.numTransfers&0x00FF | uint16(value)<<8
	case off == 10:
		c.writeCNTHLow(value)
	default:
		wasEnabled := c.enable
		c.writeCNTHHigh(value)
		if c.enable && !wasEnabled && c.timing == timingImmediate {
			c.queued = true
			e.check()
		}
	}
}

func (c *Channel) cntHLow() uint8 {
	v := (c.dstControl & 0x3) << 5
	v |= (c.srcControl & 0x1) << 7
	return v
}

func (c *Channel) cntHHigh() uint8 {
	v := (c.srcControl >> 1) & 0x1
	if c.repeat {
		v |= 1 << 1
	}
	v |= (c.transferSize & 0x1) << 2
	v |= (c.timing & 0x3) << 4
	if c.irqEnable {
		v |= 1 << 6
	}
	if c.enable {
		v |= 1 << 7
	}
	return v
}

func (c *Channel) writeCNTHLow(value uint8) {
	c.dstControl = (value >> 5) & 0x3
	c.srcControl = c.srcControl&0x2 | (value>>7)&0x1
}

// writeCNTHHigh applies the CNT_H high byte: src-control high bit,
// repeat, transfer size, timing, irq enable and enable. A rising edge
// on enable latches the shadow SAD/DAD/count registers (spec §3).
func (c *Channel) writeCNTHHigh(value uint8) {
	c.srcControl = c.srcControl&0x1 | (value&0x1)<<1
	c.repeat = value&0x2 != 0
	c.transferSize = (value >> 2) & 0x1
	c.timing = (value >> 4) & 0x3
	c.irqEnable = value&0x40 != 0

	newEnable := value&0x80 != 0
	if newEnable && !c.enable {
		c.latchOnEnable()
	}
	c.enable = newEnable
}

// latchOnEnable copies the visible registers into the shadow registers
// on the rising edge of enable (spec §3 "Shadow ... latched copies").
func (c *Channel) latchOnEnable() {
	c.iSAD, c.iDAD = c.sad, c.dad
	c.iCNT = c.numTransfers
}

func byteOf(v uint32, n int) uint8 { return uint8(v >> (8 * uint(n))) }
func setByte(v uint32, n int, b uint8) uint32 {
	shift := 8 * uint(n)
	return v&^(0xFF<<shift) | uint32(b)<<shift
}
