package irq

import "github.com/valerio/go-gba/gba/addr"

// ReadIO/WriteIO implement bus.IOHandler over IE/IF/IME (spec §3). IF is
// write-1-to-clear; writing to IME only ever touches bit 0.
func (c *Controller) ReadIO(address uint32) uint8 {
	switch address {
	case addr.IE:
		return uint8(c.IE)
	case addr.IE + 1:
		return uint8(c.IE >> 8)
	case addr.IF:
		return uint8(c.IF)
	case addr.IF + 1:
		return uint8(c.IF >> 8)
	case addr.IME:
		if c.IME {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func (c *Controller) WriteIO(address uint32, value uint8) {
	switch address {
	case addr.IE:
		c.IE = c.IE&0xFF00 | uint16(value)
	case addr.IE + 1:
		c.IE = c.IE&0x00FF | uint16(value)<<8
	case addr.IF:
		c.Acknowledge(uint16(value))
	case addr.IF + 1:
		c.Acknowledge(uint16(value) << 8)
	case addr.IME:
		c.IME = value&1 != 0
	}
}
