package cpu

import "github.com/kestrelgb/dmgcore/core/bit"

// Flag bit positions within the F register, per spec.md §4.3's
// F = (Z<<7)|(N<<6)|(H<<5)|(C<<4) layout.
const (
	flagZ uint8 = 7
	flagN uint8 = 6
	flagH uint8 = 5
	flagC uint8 = 4
)

// af returns the combined A/F register pair.
func (c *CPU) af() uint16 { return bit.Combine(c.a, c.f) }

func (c *CPU) setAF(v uint16) {
	c.a = bit.High(v)
	c.f = bit.Low(v) & 0xF0
}

func (c *CPU) bc() uint16   { return bit.Combine(c.b, c.c) }
func (c *CPU) setBC(v uint16) { c.b, c.c = bit.High(v), bit.Low(v) }

func (c *CPU) de() uint16   { return bit.Combine(c.d, c.e) }
func (c *CPU) setDE(v uint16) { c.d, c.e = bit.High(v), bit.Low(v) }

func (c *CPU) hl() uint16   { return bit.Combine(c.h, c.l) }
func (c *CPU) setHL(v uint16) { c.h, c.l = bit.High(v), bit.Low(v) }

func (c *CPU) setFlag(f uint8)             { c.f = bit.Set(f, c.f) }
func (c *CPU) resetFlag(f uint8)           { c.f = bit.Reset(f, c.f) }
func (c *CPU) setFlagTo(f uint8, on bool)  { c.f = bit.SetTo(f, c.f, on) }
func (c *CPU) isFlagSet(f uint8) bool      { return bit.IsSet(f, c.f) }

func (c *CPU) flagBit(f uint8) uint8 {
	if c.isFlagSet(f) {
		return 1
	}
	return 0
}
