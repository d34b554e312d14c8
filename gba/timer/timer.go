// Package timer implements the GBA's four up-counter timer channels
// (spec §3/§4.6): prescaler + cascade, IRQ on overflow, APU tick source.
// Grounded on original_source/include/timer.hpp + src/timer.cpp for the
// exact write-time side effects (sample-before-reconfigure, anchor reset
// conditions) that spec.md states only as a formula.
package timer

import (
	"github.com/valerio/go-gba/gba/addr"
	"github.com/valerio/go-gba/gba/irq"
	"github.com/valerio/go-gba/gba/scheduler"
)

var prescalerShift = [4]uint{0, 6, 8, 10} // 1,64,256,1024

// FIFODrainFunc is invoked when a timer overflows and is selected as the
// tick source for one of the APU's two PCM FIFOs.
type FIFODrainFunc func(timerIndex int)

// Channel is one of the four timer instances.
type Channel struct {
	reload    uint16
	counter   uint16 // counter value as of anchor
	prescaler uint8  // 0..3 index into prescalerShift
	cascade   bool
	enable    bool
	irqEnable bool
	anchor    uint64

	event *scheduler.Event
}

// Array owns all four channels plus the shared wiring to the scheduler,
// interrupt controller and APU FIFO drain callback.
type Array struct {
	ch     [4]Channel
	sched  *scheduler.Scheduler
	irqc   *irq.Controller
	onFifo FIFODrainFunc

	interrupts [4]addr.Interrupt
}

// New wires a fresh timer array to its scheduler and interrupt
// controller. onFifo is called with the timer index whenever that timer
// overflows, letting the APU drain a matching FIFO byte (spec §4.8).
func New(s *scheduler.Scheduler, ic *irq.Controller, onFifo FIFODrainFunc) *Array {
	a := &Array{
		sched:  s,
		irqc:   ic,
		onFifo: onFifo,
		interrupts: [4]addr.Interrupt{addr.IRQTimer0, addr.IRQTimer1, addr.IRQTimer2, addr.IRQTimer3},
	}
	return a
}

// Reset clears all four channels.
func (a *Array) Reset() {
	for i := range a.ch {
		a.ch[i] = Channel{}
	}
}

// counterAt computes the live counter value for a free-running (i.e. not
// cascading) enabled channel, per spec §4.6's anchor formula.
func (a *Array) counterAt(i int) uint16 {
	c := &a.ch[i]
	if !c.enable || c.cascade {
		return c.counter
	}
	elapsed := (a.sched.Now() - c.anchor) >> prescalerShift[c.prescaler]
	return uint16(uint64(c.counter) + elapsed)
}

// Read16 returns the live counter value of channel i.
func (a *Array) Read16(i int) uint16 {
	return a.counterAt(i)
}

// cntValue reassembles the visible TMxCNT byte for channel i.
func (a *Array) cntValue(i int) uint8 {
	c := &a.ch[i]
	v := c.prescaler
	if c.cascade {
		v |= 1 << 2
	}
	if c.irqEnable {
		v |= 1 << 6
	}
	if c.enable {
		v |= 1 << 7
	}
	return v
}

// scheduleOverflow arms (or re-arms) the scheduler event for channel i's
// next overflow, per spec §4.1: "timer overflow (prescaler ×
// (0x10000 − counter))".
func (a *Array) scheduleOverflow(i int) {
	c := &a.ch[i]
	if c.event != nil {
		a.sched.Cancel(c.event)
		c.event = nil
	}
	if !c.enable || c.cascade {
		return
	}
	remaining := uint64(0x10000-uint32(c.counter)) << prescalerShift[c.prescaler]
	idx := i
	c.event = a.sched.Add(remaining, scheduler.EventTimerOverflow, func(any) { a.overflow(idx) }, nil, false)
}

func (a *Array) overflow(i int) {
	c := &a.ch[i]
	if c.irqEnable {
		a.irqc.Raise(a.interrupts[i])
	}
	c.counter = c.reload
	c.anchor = a.sched.Now()
	if a.onFifo != nil {
		a.onFifo(i)
	}
	a.scheduleOverflow(i)

	// Cascade: advance the next channel by one tick (spec §4.6), which
	// may itself overflow. Channel 0 cannot cascade (spec §3), so chains
	// are at most three deep (1←0, 2←1, 3←2).
	if i+1 < 4 && a.ch[i+1].enable && a.ch[i+1].cascade {
		a.ch[i+1].counter++
		if a.ch[i+1].counter == 0 {
			a.overflow(i + 1)
		}
	}
}

// WriteReloadLow/WriteReloadHigh write the low/high byte of the visible
// reload register; this does not affect the running counter until the
// timer is (re-)enabled (spec §4.6: "Enabling a timer latches the
// visible reload register").
func (a *Array) WriteReloadLow(i int, value uint8) {
	a.ch[i].reload = a.ch[i].reload&0xFF00 | uint16(value)
}

func (a *Array) WriteReloadHigh(i int, value uint8) {
	a.ch[i].reload = a.ch[i].reload&0x00FF | uint16(value)<<8
}

// WriteControl handles a write to TMxCNT, implementing the
// sample-then-reconfigure rule from original_source/src/timer.cpp: any
// write that changes enable, cascade or frequency first samples the
// live counter into c.counter, resets the anchor, then re-schedules.
func (a *Array) WriteControl(i int, value uint8) {
	c := &a.ch[i]
	newPrescaler := value & 0x3
	newCascade := value&0x4 != 0 && i != 0 // channel 0 cannot cascade
	newIrq := value&0x40 != 0
	newEnable := value&0x80 != 0

	wasEnabled := c.enable

	if newEnable && !wasEnabled {
		// Enabling: latch the visible reload register.
		c.counter = c.reload
		c.anchor = a.sched.Now()
	} else if (!newEnable && wasEnabled) || (newCascade && !c.cascade) {
		// Disabling, or turning cascade on: sample the live counter.
		c.counter = a.counterAt(i)
	} else if newPrescaler != c.prescaler && !newCascade {
		// Changing frequency with cascade off: sample then re-anchor.
		c.counter = a.counterAt(i)
		c.anchor = a.sched.Now()
	}
	if !newCascade && c.cascade {
		// Disabling cascade: re-anchor from current time.
		c.anchor = a.sched.Now()
	}

	c.prescaler = newPrescaler
	c.cascade = newCascade
	c.irqEnable = newIrq
	c.enable = newEnable

	a.scheduleOverflow(i)
}

// ReadIO/WriteIO implement bus.IOHandler over the TM0D..TM3CNT window.
func (a *Array) ReadIO(address uint32) uint8 {
	i, hi, isCnt := timerField(address)
	if isCnt {
		return a.cntValue(i)
	}
	v := a.counterAt(i)
	if hi {
		return uint8(v >> 8)
	}
	return uint8(v)
}

func (a *Array) WriteIO(address uint32, value uint8) {
	i, hi, isCnt := timerField(address)
	if isCnt {
		a.WriteControl(i, value)
		return
	}
	if hi {
		a.WriteReloadHigh(i, value)
	} else {
		a.WriteReloadLow(i, value)
	}
}

func timerField(address uint32) (index int, high bool, isCNT bool) {
	base := address - addr.TM0D
	index = int(base / 4)
	off := base % 4
	switch off {
	case 0:
		return index, false, false
	case 1:
		return index, true, false
	default:
		return index, false, true
	}
}
