// Package addr centralizes the memory-map and MMIO register addresses
// described in spec §3, mirroring the role jeebie/addr plays for the GB
// address space.
package addr

// Memory regions (28-bit logical address space, spec §3).
const (
	BIOSStart   uint32 = 0x00000000
	BIOSEnd     uint32 = 0x00003FFF
	EWRAMStart  uint32 = 0x02000000
	EWRAMEnd    uint32 = 0x0203FFFF
	IWRAMStart  uint32 = 0x03000000
	IWRAMEnd    uint32 = 0x03007FFF
	IOStart     uint32 = 0x04000000
	IOEnd       uint32 = 0x040003FE
	PaletteStart uint32 = 0x05000000
	PaletteEnd   uint32 = 0x050003FF
	VRAMStart   uint32 = 0x06000000
	VRAMEnd     uint32 = 0x06017FFF
	OAMStart    uint32 = 0x07000000
	OAMEnd      uint32 = 0x070003FF
	ROMStart    uint32 = 0x08000000
	ROMEnd      uint32 = 0x0DFFFFFF
	SRAMStart   uint32 = 0x0E000000
	SRAMEnd     uint32 = 0x0E00FFFF
)

// PPU I/O registers.
const (
	DISPCNT  uint32 = 0x04000000
	DISPSTAT uint32 = 0x04000004
	VCOUNT   uint32 = 0x04000006
	BG0CNT   uint32 = 0x04000008
	BG1CNT   uint32 = 0x0400000A
	BG2CNT   uint32 = 0x0400000C
	BG3CNT   uint32 = 0x0400000E
)

// DMA I/O registers, channel 0..3. Each channel's block is 0xC bytes
// (SAD, DAD, CNT), so DMA0SAD + channel*0xC gives that channel's SAD.
const (
	DMA0SAD  uint32 = 0x040000B0
	DMA0DAD  uint32 = 0x040000B4
	DMA0CNT  uint32 = 0x040000B8
	DMA1SAD  uint32 = 0x040000BC
	DMA1DAD  uint32 = 0x040000C0
	DMA1CNT  uint32 = 0x040000C4
	DMA2SAD  uint32 = 0x040000C8
	DMA2DAD  uint32 = 0x040000CC
	DMA2CNT  uint32 = 0x040000D0
	DMA3SAD  uint32 = 0x040000D4
	DMA3DAD  uint32 = 0x040000D8
	DMA3CNT  uint32 = 0x040000DC
)

// Timer I/O registers.
const (
	TM0D   uint32 = 0x04000100
	TM0CNT uint32 = 0x04000102
	TM1D   uint32 = 0x04000104
	TM1CNT uint32 = 0x04000106
	TM2D   uint32 = 0x04000108
	TM2CNT uint32 = 0x0400010A
	TM3D   uint32 = 0x0400010C
	TM3CNT uint32 = 0x0400010E
)

// Keypad / serial / interrupt / system registers.
const (
	KEYINPUT uint32 = 0x04000130
	KEYCNT   uint32 = 0x04000132
	IE       uint32 = 0x04000200
	IF       uint32 = 0x04000202
	WAITCNT  uint32 = 0x04000204
	IME      uint32 = 0x04000208
	HALTCNT  uint32 = 0x04000301
)

// Sound registers.
const (
	SOUND1CNT_L uint32 = 0x04000060
	SOUND1CNT_H uint32 = 0x04000062
	SOUND1CNT_X uint32 = 0x04000064
	SOUND2CNT_L uint32 = 0x04000068
	SOUND2CNT_H uint32 = 0x0400006C
	SOUND3CNT_L uint32 = 0x04000070
	SOUND3CNT_H uint32 = 0x04000072
	SOUND3CNT_X uint32 = 0x04000074
	SOUND4CNT_L uint32 = 0x04000078
	SOUND4CNT_H uint32 = 0x0400007C
	SOUNDCNT_L  uint32 = 0x04000080
	SOUNDCNT_H  uint32 = 0x04000082
	SOUNDCNT_X  uint32 = 0x04000084
	SOUNDBIAS   uint32 = 0x04000088
	WAVE_RAM    uint32 = 0x04000090
	FIFO_A      uint32 = 0x040000A0
	FIFO_B      uint32 = 0x040000A4
)

// Interrupt represents one of the 14 IRQ source bits in IE/IF.
type Interrupt uint16

const (
	IRQVBlank Interrupt = 1 << iota
	IRQHBlank
	IRQVCount
	IRQTimer0
	IRQTimer1
	IRQTimer2
	IRQTimer3
	IRQSerial
	IRQDMA0
	IRQDMA1
	IRQDMA2
	IRQDMA3
	IRQKeypad
	IRQGamepak
)

// BIOS HLE trampoline addresses (spec §4.4).
const (
	BiosReset       uint32 = 0x00000000
	BiosSWI         uint32 = 0x00000008
	BiosIRQ         uint32 = 0x00000018
	BiosPostIRQ     uint32 = 0x00000138
	BiosPostHalt    uint32 = 0x000001B4
	BiosPostSWI     uint32 = 0x00000170
	BiosIntrWaitLoop uint32 = 0x00000348
)
