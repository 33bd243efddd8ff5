// Package cart decodes a DMG cartridge image: header validation and the
// bank-switching mapper (MBC) that routes ROM/RAM accesses in 0x0000-0x7FFF
// and 0xA000-0xBFFF.
package cart

// Cartridge pairs a validated header with its mapper instance.
type Cartridge struct {
	Header Header
	mbc    MBC
}

// New parses rom's header and constructs the matching mapper. It fails with
// one of the Err* sentinels in header.go if the header is invalid or the
// cartridge type/size codes aren't supported.
func New(rom []byte) (*Cartridge, error) {
	header, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}

	romImage := make([]byte, len(rom))
	copy(romImage, rom)

	var mbc MBC
	switch header.Kind {
	case KindNoMBC:
		mbc = NewNoMBC(romImage)
	case KindMBC1:
		mbc = NewMBC1(romImage, header.RAMBytes, header.HasBattery)
	case KindMBC5:
		mbc = NewMBC5(romImage, header.RAMBytes, header.HasBattery)
	default:
		mbc = NewNoMBC(romImage)
	}

	return &Cartridge{Header: header, mbc: mbc}, nil
}

func (c *Cartridge) ReadROM(address uint16) uint8    { return c.mbc.ReadROM(address) }
func (c *Cartridge) ReadRAM(address uint16) uint8    { return c.mbc.ReadRAM(address) }
func (c *Cartridge) WriteROM(address uint16, v uint8) { c.mbc.WriteROM(address, v) }
func (c *Cartridge) WriteRAM(address uint16, v uint8) { c.mbc.WriteRAM(address, v) }

// Save returns a flat byte image of external RAM, suitable for persisting
// to a host save file, or nil if the cartridge has no battery.
func (c *Cartridge) Save() []byte { return c.mbc.Save() }

// LoadSave restores external RAM from a previously-saved byte image.
func (c *Cartridge) LoadSave(data []byte) error { return c.mbc.LoadSave(data) }

// HasBattery reports whether the cartridge persists RAM across power cycles.
func (c *Cartridge) HasBattery() bool { return c.Header.HasBattery }
