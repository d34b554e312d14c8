package apu

import "github.com/valerio/go-gba/gba/addr"

// ReadIO/WriteIO implement bus.IOHandler over the sound register window
// (spec §4.8), grounded on original_source/src/apu.cpp's readIO/writeIO
// switch.
func (a *APU) ReadIO(address uint32) uint8 {
	switch address {
	case addr.SOUND1CNT_L:
		return a.ch1.sweepShift | a.ch1.sweepDecrease8()<<3 | a.ch1.sweepTime<<4
	case addr.SOUND1CNT_L + 1:
		return 0
	case addr.SOUND1CNT_H:
		return a.ch1.soundLength&0x3F | a.ch1.waveDuty<<6
	case addr.SOUND1CNT_H + 1:
		return a.ch1.envelopeSweepNum | boolByte(a.ch1.envelopeIncrease)<<3 | a.ch1.envelopeStartVol<<4
	case addr.SOUND2CNT_L:
		return a.ch2.soundLength&0x3F | a.ch2.waveDuty<<6
	case addr.SOUND2CNT_L + 1:
		return a.ch2.envelopeSweepNum | boolByte(a.ch2.envelopeIncrease)<<3 | a.ch2.envelopeStartVol<<4
	case addr.SOUND3CNT_L:
		return boolByte(a.ch3.dacOn) << 7
	case addr.SOUND3CNT_H:
		return a.ch3.soundLength
	case addr.SOUND3CNT_H + 1:
		return a.ch3.volume<<5 | boolByte(a.ch3.forceVolume)<<7
	case addr.SOUND4CNT_L:
		return a.ch4.soundLength & 0x3F
	case addr.SOUND4CNT_L + 1:
		return a.ch4.envelopeSweepNum | boolByte(a.ch4.envelopeIncrease)<<3 | a.ch4.envelopeStartVol<<4
	case addr.SOUND4CNT_H:
		return a.ch4.divideRatio | boolByte(a.ch4.counterWidth7)<<3 | a.ch4.shiftFrequency<<4
	case addr.SOUNDCNT_L:
		return a.outRVol | a.outLVol<<4
	case addr.SOUNDCNT_L + 1:
		return packEnables(a.ch1OutR, a.ch2OutR, a.ch3OutR, a.ch4OutR) |
			packEnables(a.ch1OutL, a.ch2OutL, a.ch3OutL, a.ch4OutL)<<4
	case addr.SOUNDCNT_H:
		return a.psgVolume | a.chAVolume<<2 | a.chBVolume<<3
	case addr.SOUNDCNT_H + 1:
		v := boolByte(a.chAOutR) | boolByte(a.chAOutL)<<1 | uint8(a.chATimer)<<2
		v |= boolByte(a.chBOutR)<<4 | boolByte(a.chBOutL)<<5 | uint8(a.chBTimer)<<6
		return v
	case addr.SOUNDCNT_X:
		return packEnables(a.ch1.enabled, a.ch2.enabled, a.ch3.enabled, a.ch4.enabled)
	case addr.SOUNDCNT_X + 1:
		return boolByte(a.masterEnable) << 7
	default:
		if address >= addr.WAVE_RAM && address < addr.WAVE_RAM+16 {
			return a.ch3.ram[address-addr.WAVE_RAM]
		}
		return 0
	}
}

func (a *APU) WriteIO(address uint32, value uint8) {
	switch address {
	case addr.SOUND1CNT_L:
		a.ch1.sweepShift = value & 0x7
		a.ch1.sweepDecrease = value&0x8 != 0
		a.ch1.sweepTime = (value >> 4) & 0x7
	case addr.SOUND1CNT_H:
		a.ch1.soundLength = value & 0x3F
		a.ch1.waveDuty = (value >> 6) & 0x3
	case addr.SOUND1CNT_H + 1:
		a.ch1.envelopeSweepNum = value & 0x7
		a.ch1.envelopeIncrease = value&0x8 != 0
		a.ch1.envelopeStartVol = (value >> 4) & 0xF
		a.ch1.dacOn = value&0xF8 != 0
		if !a.ch1.dacOn {
			a.ch1.enabled = false
		}
	case addr.SOUND1CNT_X:
		a.ch1.frequency = a.ch1.frequency&0x0700 | uint16(value)
	case addr.SOUND1CNT_X + 1:
		a.ch1.frequency = a.ch1.frequency&0x00FF | uint16(value&0x7)<<8
		a.ch1.consecutive = value&0x40 != 0
		if value&0x80 != 0 {
			a.ch1.trigger(true)
		}

	case addr.SOUND2CNT_L:
		a.ch2.soundLength = value & 0x3F
		a.ch2.waveDuty = (value >> 6) & 0x3
	case addr.SOUND2CNT_L + 1:
		a.ch2.envelopeSweepNum = value & 0x7
		a.ch2.envelopeIncrease = value&0x8 != 0
		a.ch2.envelopeStartVol = (value >> 4) & 0xF
		a.ch2.dacOn = value&0xF8 != 0
		if !a.ch2.dacOn {
			a.ch2.enabled = false
		}
	case addr.SOUND2CNT_H:
		a.ch2.frequency = a.ch2.frequency&0x0700 | uint16(value)
	case addr.SOUND2CNT_H + 1:
		a.ch2.frequency = a.ch2.frequency&0x00FF | uint16(value&0x7)<<8
		a.ch2.consecutive = value&0x40 != 0
		if value&0x80 != 0 {
			a.ch2.trigger(false)
		}

	case addr.SOUND3CNT_L:
		a.ch3.dacOn = value&0x80 != 0
		if !a.ch3.dacOn {
			a.ch3.enabled = false
		}
	case addr.SOUND3CNT_H:
		a.ch3.soundLength = value
	case addr.SOUND3CNT_H + 1:
		a.ch3.volume = (value >> 5) & 0x3
		a.ch3.forceVolume = value&0x80 != 0
	case addr.SOUND3CNT_X:
		a.ch3.frequency = a.ch3.frequency&0x0700 | uint16(value)
	case addr.SOUND3CNT_X + 1:
		a.ch3.frequency = a.ch3.frequency&0x00FF | uint16(value&0x7)<<8
		a.ch3.consecutive = value&0x40 != 0
		if value&0x80 != 0 {
			a.ch3.trigger()
		}

	case addr.SOUND4CNT_L:
		a.ch4.soundLength = value & 0x3F
	case addr.SOUND4CNT_L + 1:
		a.ch4.envelopeSweepNum = value & 0x7
		a.ch4.envelopeIncrease = value&0x8 != 0
		a.ch4.envelopeStartVol = (value >> 4) & 0xF
		a.ch4.dacOn = value&0xF8 != 0
		if !a.ch4.dacOn {
			a.ch4.enabled = false
		}
	case addr.SOUND4CNT_H:
		a.ch4.divideRatio = value & 0x7
		a.ch4.counterWidth7 = value&0x8 != 0
		a.ch4.shiftFrequency = (value >> 4) & 0xF
	case addr.SOUND4CNT_H + 1:
		a.ch4.consecutive = value&0x40 != 0
		if value&0x80 != 0 {
			a.ch4.trigger()
		}

	case addr.SOUNDCNT_L:
		a.outRVol = value & 0x7
		a.outLVol = (value >> 4) & 0x7
	case addr.SOUNDCNT_L + 1:
		a.ch1OutR, a.ch2OutR, a.ch3OutR, a.ch4OutR = unpackEnables(value)
		a.ch1OutL, a.ch2OutL, a.ch3OutL, a.ch4OutL = unpackEnables(value >> 4)
	case addr.SOUNDCNT_H:
		a.psgVolume = value & 0x3
		a.chAVolume = (value >> 2) & 0x1
		a.chBVolume = (value >> 3) & 0x1
	case addr.SOUNDCNT_H + 1:
		a.chAOutR = value&0x1 != 0
		a.chAOutL = value&0x2 != 0
		a.chATimer = int((value >> 2) & 0x1)
		a.chBOutR = value&0x10 != 0
		a.chBOutL = value&0x20 != 0
		a.chBTimer = int((value >> 6) & 0x1)
		if value&0x08 != 0 {
			a.fifoA.reset()
		}
		if value&0x80 != 0 {
			a.fifoB.reset()
		}
	case addr.SOUNDCNT_X + 1:
		a.masterEnable = value&0x80 != 0

	case addr.FIFO_A, addr.FIFO_A + 1, addr.FIFO_A + 2, addr.FIFO_A + 3:
		a.fifoA.push(int8(value))
	case addr.FIFO_B, addr.FIFO_B + 1, addr.FIFO_B + 2, addr.FIFO_B + 3:
		a.fifoB.push(int8(value))

	default:
		if address >= addr.WAVE_RAM && address < addr.WAVE_RAM+16 {
			a.ch3.ram[address-addr.WAVE_RAM] = value
		}
	}
}

func (c *square) sweepDecrease8() uint8 {
	if c.sweepDecrease {
		return 1
	}
	return 0
}

func boolByte(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

func packEnables(a, b, c, d bool) uint8 {
	return boolByte(a) | boolByte(b)<<1 | boolByte(c)<<2 | boolByte(d)<<3
}

func unpackEnables(v uint8) (a, b, c, d bool) {
	return v&0x1 != 0, v&0x2 != 0, v&0x4 != 0, v&0x8 != 0
}
