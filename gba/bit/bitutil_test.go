package bit

import "testing"

func TestSetReset(t *testing.T) {
	v := uint32(0)
	v = Set(3, v)
	if !IsSet(3, v) {
		t.Fatalf("expected bit 3 set")
	}
	v = Reset(3, v)
	if IsSet(3, v) {
		t.Fatalf("expected bit 3 clear")
	}
}

func TestRotateRight32(t *testing.T) {
	got := RotateRight32(0x12345678, 8)
	want := uint32(0x78123456)
	if got != want {
		t.Fatalf("RotateRight32 = %#x, want %#x", got, want)
	}
	if RotateRight32(0xABCD, 0) != 0xABCD {
		t.Fatalf("rotate by 0 should be identity")
	}
}

func TestRotateRight16(t *testing.T) {
	got := RotateRight16(0x1234, 8)
	want := uint16(0x3412)
	if got != want {
		t.Fatalf("RotateRight16 = %#x, want %#x", got, want)
	}
}

func TestSignExtend(t *testing.T) {
	if SignExtend(0xFFFFFF, 24) != -1 {
		t.Fatalf("expected -1")
	}
	if SignExtend(0x7FFFFF, 24) != 0x7FFFFF {
		t.Fatalf("expected positive passthrough")
	}
}

func TestSignExtend8To32(t *testing.T) {
	if SignExtend8To32(0x80) != -128 {
		t.Fatalf("expected -128")
	}
}
