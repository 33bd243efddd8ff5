package video

// sprite is one OAM entry selected for the current scanline.
type sprite struct {
	oamIndex int
	y, x     int
	tile     uint8
	flags    uint8
}

func (s sprite) flipX() bool     { return s.flags&0x20 != 0 }
func (s sprite) flipY() bool     { return s.flags&0x40 != 0 }
func (s sprite) aboveBG() bool   { return s.flags&0x80 == 0 }
func (s sprite) useOBP1() bool   { return s.flags&0x10 != 0 }

// scanOAM selects up to 10 sprites visible on scanline ly, in OAM order,
// per spec.md §4.4's "ly+16 >= sprite.y" selection rule.
func (p *PPU) scanOAM(ly int, spriteHeight int) []sprite {
	var selected []sprite
	for i := 0; i < 40; i++ {
		base := i * 4
		y := int(p.oam[base]) - 16
		x := int(p.oam[base+1]) - 8
		if x <= -8 {
			continue
		}
		if ly < y || ly >= y+spriteHeight {
			continue
		}
		selected = append(selected, sprite{
			oamIndex: i,
			y:        y,
			x:        x,
			tile:     p.oam[base+2],
			flags:    p.oam[base+3],
		})
		if len(selected) == 10 {
			break
		}
	}
	return selected
}
