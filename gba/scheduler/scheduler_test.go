package scheduler

import "testing"

func TestOrderingAndTieBreak(t *testing.T) {
	s := New()
	var fired []string

	record := func(name string) Callback {
		return func(payload any) { fired = append(fired, name) }
	}

	s.Add(10, EventCustom, record("b"), nil, false)
	s.Add(10, EventCustom, record("a"), nil, false) // same timestamp, later insertion
	s.Add(5, EventCustom, record("first"), nil, false)

	s.Advance(s.CyclesUntilNext())
	s.DrainDue()
	if len(fired) != 1 || fired[0] != "first" {
		t.Fatalf("expected only 'first' to fire, got %v", fired)
	}

	s.Advance(s.CyclesUntilNext())
	s.DrainDue()
	if len(fired) != 3 || fired[1] != "b" || fired[2] != "a" {
		t.Fatalf("expected FIFO tie-break order [first b a], got %v", fired)
	}
}

func TestMonotonicity(t *testing.T) {
	s := New()
	var timestamps []uint64
	cb := func(payload any) { timestamps = append(timestamps, s.Now()) }

	s.Add(100, EventCustom, cb, nil, false)
	s.Add(30, EventCustom, cb, nil, false)
	s.Add(60, EventCustom, cb, nil, false)

	for s.Pending() > 0 {
		s.Advance(s.CyclesUntilNext())
		s.DrainDue()
	}

	for i := 1; i < len(timestamps); i++ {
		if timestamps[i] < timestamps[i-1] {
			t.Fatalf("non-monotonic fire order: %v", timestamps)
		}
	}
}

func TestRecalculateOnImmediateSchedule(t *testing.T) {
	s := New()
	s.Add(0, EventCustom, func(any) {}, nil, false)
	if !s.Recalculate {
		t.Fatalf("expected Recalculate to be set for a zero-delay event")
	}
}

func TestCancel(t *testing.T) {
	s := New()
	fired := false
	e := s.Add(5, EventCustom, func(any) { fired = true }, nil, false)
	s.Cancel(e)
	s.Advance(1000)
	s.DrainDue()
	if fired {
		t.Fatalf("cancelled event should not fire")
	}
}

func TestCyclesUntilNextEmpty(t *testing.T) {
	s := New()
	if s.CyclesUntilNext() == 0 {
		t.Fatalf("empty scheduler should not report 0 cycles until next")
	}
}
