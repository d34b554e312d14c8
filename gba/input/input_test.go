package input

import (
	"testing"

	"github.com/valerio/go-gba/gba/addr"
	"github.com/valerio/go-gba/gba/irq"
)

func TestKeyInputIsActiveLow(t *testing.T) {
	k := New(irq.New())
	k.SetPressed(1 << ButtonA)

	lo := k.ReadIO(addr.KEYINPUT)
	hi := k.ReadIO(addr.KEYINPUT + 1)
	got := uint16(lo) | uint16(hi)<<8

	if got&(1<<ButtonA) != 0 {
		t.Errorf("KEYINPUT bit for held A = 1, want 0 (active-low)")
	}
	if got&(1<<ButtonB) == 0 {
		t.Errorf("KEYINPUT bit for unheld B = 0, want 1 (active-low)")
	}
}

func TestKeypadIRQRequiresEnableAndMatchesOrCondition(t *testing.T) {
	ic := irq.New()
	ic.IME = true
	ic.IE = uint16(addr.IRQKeypad)
	k := New(ic)

	k.WriteIO(addr.KEYCNT, uint8(1<<ButtonA|1<<ButtonB))
	k.WriteIO(addr.KEYCNT+1, 1<<6) // bit14 (IRQ enable), OR condition

	k.SetPressed(1 << ButtonB)

	if !ic.Pending() {
		t.Error("keypad IRQ not raised, want OR-condition match to raise IRQKeypad")
	}
}

func TestKeypadIRQAndConditionNeedsAllSelectedKeys(t *testing.T) {
	ic := irq.New()
	ic.IME = true
	ic.IE = uint16(addr.IRQKeypad)
	k := New(ic)

	k.WriteIO(addr.KEYCNT, uint8(1<<ButtonA|1<<ButtonB))
	k.WriteIO(addr.KEYCNT+1, 1<<6|1<<7) // bit14 enable, bit15 AND condition

	k.SetPressed(1 << ButtonB)
	if ic.Pending() {
		t.Error("AND-condition fired with only one of two selected keys held")
	}

	k.SetPressed(1<<ButtonA | 1<<ButtonB)
	if !ic.Pending() {
		t.Error("AND-condition did not fire with both selected keys held")
	}
}
