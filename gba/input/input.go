// Package input maps host key events onto the GBA's KEYINPUT/KEYCNT
// registers (spec §6 "Key input mapping"). Grounded on
// jeebie/input/action/action.go's Action enum and
// jeebie/input/default_keys.go's name->action table, narrowed from the
// GB's 8 buttons to the GBA's 10 and retargeted from push/release
// callbacks onto a flat bitmask a bus.IOHandler can serve directly.
package input

import (
	"github.com/valerio/go-gba/gba/addr"
	"github.com/valerio/go-gba/gba/irq"
)

// Button identifies one of the GBA's 10 physical keys, ordered to match
// KEYINPUT's bit layout (spec §6).
type Button int

const (
	ButtonA Button = iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonRight
	ButtonLeft
	ButtonUp
	ButtonDown
	ButtonR
	ButtonL
)

// DefaultKeyMap mirrors jeebie/input/default_keys.go's shape: host key
// names the frontends already know how to read (tcell key names, SDL
// scancodes normalized to the same strings) mapped onto GBA buttons.
var DefaultKeyMap = map[string]Button{
	"z":      ButtonA,
	"x":      ButtonB,
	"Backspace": ButtonSelect,
	"Enter":  ButtonStart,
	"Right":  ButtonRight,
	"Left":   ButtonLeft,
	"Up":     ButtonUp,
	"Down":   ButtonDown,
	"s":      ButtonR,
	"a":      ButtonL,
}

// Keypad owns KEYINPUT (read-only, active-low) and KEYCNT (IRQ
// condition) and raises IRQKeypad through ic when the condition is met
// (spec §6: "KEYINPUT register... 0=pressed").
type Keypad struct {
	ic *irq.Controller

	// pressed holds the live key state, one bit per Button, 1 = held.
	pressed uint16

	keycnt uint16
}

func New(ic *irq.Controller) *Keypad {
	return &Keypad{ic: ic}
}

func (k *Keypad) Reset() {
	k.pressed = 0
	k.keycnt = 0
}

// SetPressed replaces the full button state from a host-side bitmask
// (bit i = Button(i) held) and evaluates the KEYCNT IRQ condition.
func (k *Keypad) SetPressed(mask uint16) {
	k.pressed = mask & 0x3FF
	k.checkIRQ()
}

func (k *Keypad) checkIRQ() {
	if k.keycnt&(1<<14) == 0 {
		return
	}
	selected := k.keycnt & 0x3FF
	if selected == 0 {
		return
	}
	held := k.pressed & selected
	var fire bool
	if k.keycnt&(1<<15) != 0 {
		fire = held == selected // AND: every selected key held
	} else {
		fire = held != 0 // OR: any selected key held
	}
	if fire {
		k.ic.Raise(addr.IRQKeypad)
	}
}

func (k *Keypad) ReadIO(address uint32) uint8 {
	switch address & ^uint32(1) {
	case addr.KEYINPUT:
		if address&1 == 0 {
			return uint8(^k.pressed & 0x3FF)
		}
		return uint8(^k.pressed>>8) & 0x3
	case addr.KEYCNT:
		if address&1 == 0 {
			return uint8(k.keycnt)
		}
		return uint8(k.keycnt >> 8)
	}
	return 0
}

func (k *Keypad) WriteIO(address uint32, value uint8) {
	switch address & ^uint32(1) {
	case addr.KEYCNT:
		if address&1 == 0 {
			k.keycnt = k.keycnt&0xFF00 | uint16(value)
		} else {
			k.keycnt = k.keycnt&0x00FF | uint16(value)<<8
		}
	}
}
