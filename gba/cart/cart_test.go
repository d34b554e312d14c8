package cart

import "testing"

func makeROM(size int, marker string) []byte {
	data := make([]byte, size)
	copy(data[0x100:], []byte(marker))
	return data
}

func TestNewRoundsSizeToPowerOfTwo(t *testing.T) {
	c, err := New(make([]byte, 0x300000)) // 3 MiB
	if err != nil {
		t.Fatal(err)
	}
	if c.Size() != 0x400000 {
		t.Fatalf("expected rounded size 4 MiB, got %#x", c.Size())
	}
}

func TestSaveTypeDetection(t *testing.T) {
	cases := []struct {
		marker string
		want   SaveType
	}{
		{"SRAM_V110", SaveSRAM32K},
		{"FLASH1M_V102", SaveFlash128K},
		{"FLASH_V120", SaveFlash64K},
		{"EEPROM_V111", SaveEEPROM8K},
		{"NOTHING", SaveNone},
	}
	for _, tc := range cases {
		c, err := New(makeROM(0x8000, tc.marker))
		if err != nil {
			t.Fatal(err)
		}
		if c.SaveType != tc.want {
			t.Errorf("marker %q: got save type %v, want %v", tc.marker, c.SaveType, tc.want)
		}
	}
}

func TestFlashProgramAndErase(t *testing.T) {
	f := NewFlash(64 * 1024)
	// unlock + program byte
	f.WriteByte(0x5555, 0xAA)
	f.WriteByte(0x2AAA, 0x55)
	f.WriteByte(0x5555, 0xA0)
	f.WriteByte(0x1234, 0x42)
	if got := f.ReadByte(0x1234); got != 0x42 {
		t.Fatalf("expected programmed byte 0x42, got %#x", got)
	}

	// chip erase sequence
	f.WriteByte(0x5555, 0xAA)
	f.WriteByte(0x2AAA, 0x55)
	f.WriteByte(0x5555, 0x80)
	f.WriteByte(0x5555, 0xAA)
	f.WriteByte(0x2AAA, 0x55)
	f.WriteByte(0x5555, 0x10)
	if got := f.ReadByte(0x1234); got != 0xFF {
		t.Fatalf("expected erased byte 0xFF, got %#x", got)
	}
}

func TestSRAMWrapsAtCapacity(t *testing.T) {
	s := NewSRAM(32 * 1024)
	s.WriteByte(0, 0x11)
	s.WriteByte(32*1024, 0x22) // wraps to index 0
	if s.ReadByte(0) != 0x22 {
		t.Fatalf("expected wrapped write to overwrite index 0")
	}
}

func TestEEPROMWriteThenRead(t *testing.T) {
	e := NewEEPROM(512)

	writeBits := func(v uint64, n int) {
		for i := n - 1; i >= 0; i-- {
			e.WriteBit(uint8((v >> uint(i)) & 1))
		}
	}

	// write request (10), 6-bit address, 64-bit data
	writeBits(0b10, 2)
	writeBits(3, 6)
	writeBits(0x1122334455667788, 64)
	// drain busy
	for i := 0; i < 1; i++ {
		e.ReadBit()
	}

	// read request (11), 6-bit address
	writeBits(0b11, 2)
	writeBits(3, 6)

	var got uint64
	for i := 0; i < 68; i++ {
		b := e.ReadBit()
		if i >= 4 {
			got = got<<1 | uint64(b)
		}
	}
	if got != 0x1122334455667788 {
		t.Fatalf("EEPROM readback = %#x, want %#x", got, uint64(0x1122334455667788))
	}
}
