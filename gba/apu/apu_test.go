package apu

import (
	"testing"

	"github.com/valerio/go-gba/gba/addr"
	"github.com/valerio/go-gba/gba/scheduler"
)

func TestFIFOPushAndDrainTriggersRequest(t *testing.T) {
	var requested []int
	a := New(func(ch int) { requested = append(requested, ch) })
	s := scheduler.New()
	a.Reset(s)

	for i := 0; i < 32; i++ {
		a.WriteIO(addr.FIFO_A, uint8(i))
	}
	if a.fifoA.count != 32 {
		t.Fatalf("fifoA count = %d, want 32", a.fifoA.count)
	}

	// chATimer defaults to 0: every OnTimerOverflow(0) pops one byte.
	for i := 0; i < 16; i++ {
		a.OnTimerOverflow(0)
	}

	if a.fifoA.count != 16 {
		t.Fatalf("fifoA count after 16 overflows = %d, want 16", a.fifoA.count)
	}
	if len(requested) == 0 {
		t.Fatalf("expected a DMA refill request once FIFO A reached 16 bytes")
	}
}

func TestFIFOResetOnWriteBit(t *testing.T) {
	a := New(nil)
	s := scheduler.New()
	a.Reset(s)

	a.WriteIO(addr.FIFO_A, 5)
	a.WriteIO(addr.SOUNDCNT_H+1, 0x08) // chAReset bit

	if a.fifoA.count != 0 {
		t.Fatalf("expected FIFO A cleared by reset bit, count = %d", a.fifoA.count)
	}
}

func TestSquareChannelTriggerEnablesOutput(t *testing.T) {
	a := New(nil)
	s := scheduler.New()
	a.Reset(s)

	a.WriteIO(addr.SOUND1CNT_H+1, 0xF0) // dacOn (envelope start volume bits set)
	a.WriteIO(addr.SOUND1CNT_X+1, 0x80) // trigger

	if !a.ch1.enabled {
		t.Fatalf("expected channel 1 to be enabled after trigger with dacOn")
	}
}

func TestSampleTickAdvancesFrequencyTimer(t *testing.T) {
	a := New(nil)
	s := scheduler.New()
	a.Reset(s)

	a.ch1.frequency = 0
	a.ch1.frequencyTimer = 1
	before := a.ch1.waveIndex

	s.Advance(s.CyclesUntilNext())
	s.DrainDue()

	if a.ch1.waveIndex == before && a.ch1.frequencyTimer == 1 {
		t.Fatalf("expected channel 1 wave index or timer to advance after a sample tick")
	}
}

func TestMasterDisableProducesBiasOnlySample(t *testing.T) {
	a := New(nil)
	s := scheduler.New()
	a.Reset(s)
	a.masterEnable = false

	a.mixAndPush()
	samples := a.DrainSamples()
	if len(samples) != 2 {
		t.Fatalf("expected one stereo pair, got %d samples", len(samples))
	}
	if samples[0] != samples[1] {
		t.Fatalf("expected L/R to match when master disabled (bias only)")
	}
}
