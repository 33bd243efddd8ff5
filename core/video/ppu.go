package video

import (
	"github.com/kestrelgb/dmgcore/core/addr"
	"github.com/kestrelgb/dmgcore/core/bit"
)

// Mode is the PPU's current rendering stage; values match STAT bits 1-0.
type Mode uint8

const (
	ModeHBlank Mode = 0
	ModeVBlank Mode = 1
	ModeOAM    Mode = 2
	ModeDraw   Mode = 3
)

const (
	oamCycles      = 80
	drawCycles     = 172
	scanlineCycles = 456
	vblankLines    = 10
	lastLine       = 153
)

// InterruptRequester is the single point through which the PPU raises
// VBlank and STAT interrupts; satisfied by the bus.
type InterruptRequester interface {
	RequestInterrupt(i addr.Interrupt)
}

// PPU renders background, window and sprites into a FrameBuffer one
// scanline at a time from Tick, merging the three pixel sources per their
// priority rule once a line's mode reaches HBlank.
type PPU struct {
	irq InterruptRequester

	vram [0x2000]uint8
	oam  [0xA0]uint8

	lcdc, stat      uint8
	scy, scx        uint8
	ly, lyc         uint8
	bgp, obp0, obp1 uint8
	wy, wx          uint8

	mode   Mode
	cycles int

	windowLine   int
	windowDrawn  bool
	frame        FrameBuffer
	lastFrame    FrameBuffer
	frameReady   bool
}

// New creates a PPU wired to irq for VBlank/STAT interrupt delivery.
func New(irq InterruptRequester) *PPU {
	return &PPU{irq: irq, mode: ModeVBlank, ly: 144}
}

// Frame returns the most recently completed frame's raw color-index buffer.
func (p *PPU) Frame() *FrameBuffer { return &p.lastFrame }

// Tick advances the PPU state machine by cycles T-cycles.
func (p *PPU) Tick(cycles int) {
	if !p.lcdEnabled() {
		return
	}

	p.cycles += cycles
	for {
		switch p.mode {
		case ModeOAM:
			if p.cycles < oamCycles {
				return
			}
			p.cycles -= oamCycles
			p.setMode(ModeDraw)
		case ModeDraw:
			if p.cycles < drawCycles {
				return
			}
			p.cycles -= drawCycles
			p.renderScanline()
			p.setMode(ModeHBlank)
		case ModeHBlank:
			if p.cycles < scanlineCycles-oamCycles-drawCycles {
				return
			}
			p.cycles -= scanlineCycles - oamCycles - drawCycles
			p.advanceLine()
		case ModeVBlank:
			if p.cycles < scanlineCycles {
				return
			}
			p.cycles -= scanlineCycles
			p.advanceVBlankLine()
		}
	}
}

func (p *PPU) lcdEnabled() bool { return bit.IsSet(7, p.lcdc) }

func (p *PPU) advanceLine() {
	p.setLY(int(p.ly) + 1)
	if int(p.ly) == Height {
		p.lastFrame = p.frame
		p.frameReady = true
		p.windowLine = 0
		p.setMode(ModeVBlank)
		p.irq.RequestInterrupt(addr.VBlankInterrupt)
		if bit.IsSet(4, p.stat) {
			p.irq.RequestInterrupt(addr.LCDSTATInterrupt)
		}
		return
	}
	p.setMode(ModeOAM)
	if bit.IsSet(5, p.stat) {
		p.irq.RequestInterrupt(addr.LCDSTATInterrupt)
	}
}

func (p *PPU) advanceVBlankLine() {
	if int(p.ly) == lastLine {
		p.setLY(0)
		p.setMode(ModeOAM)
		if bit.IsSet(5, p.stat) {
			p.irq.RequestInterrupt(addr.LCDSTATInterrupt)
		}
		return
	}
	p.setLY(int(p.ly) + 1)
}

func (p *PPU) setMode(m Mode) {
	p.mode = m
	p.stat = (p.stat &^ 0x03) | uint8(m)
	if m == ModeHBlank && bit.IsSet(3, p.stat) {
		p.irq.RequestInterrupt(addr.LCDSTATInterrupt)
	}
}

func (p *PPU) setLY(line int) {
	p.ly = uint8(line)
	if p.ly == p.lyc {
		p.stat = bit.Set(2, p.stat)
		if bit.IsSet(6, p.stat) {
			p.irq.RequestInterrupt(addr.LCDSTATInterrupt)
		}
	} else {
		p.stat = bit.Reset(2, p.stat)
	}
}

// renderScanline fetches background, window and sprite pixels for the
// current LY and merges them through the priority rule of spec.md §4.4.
func (p *PPU) renderScanline() {
	line := int(p.ly)
	p.windowDrawn = false

	bgColors, bgPrio := p.fetchBackgroundAndWindow(line)
	spriteHeight := 8
	if bit.IsSet(2, p.lcdc) {
		spriteHeight = 16
	}

	var sprites []sprite
	if bit.IsSet(1, p.lcdc) {
		sprites = p.scanOAM(line, spriteHeight)
	}
	spriteColors, spritePalette, spriteAbove := p.fetchSprites(line, sprites, spriteHeight)

	for x := 0; x < Width; x++ {
		bgColor := bgColors[x]
		spriteColor := spriteColors[x]

		final := bgColor
		finalIsSprite := false
		if spriteColor != 0 {
			if spriteAbove[x] || bgColor == 0 || !bgPrio[x] {
				final = spriteColor
				finalIsSprite = true
			}
		}

		if !bit.IsSet(0, p.lcdc) {
			final = bgColors[x]
			finalIsSprite = false
		}

		var colorIndex uint8
		if finalIsSprite {
			pal := p.obp0
			if spritePalette[x] {
				pal = p.obp1
			}
			colorIndex = (pal >> (final * 2)) & 0x03
		} else {
			colorIndex = (p.bgp >> (final * 2)) & 0x03
		}
		p.frame.set(x, line, colorIndex)
	}

	if p.windowDrawn {
		p.windowLine++
	}
}

func (p *PPU) fetchBackgroundAndWindow(line int) (colors [Width]uint8, priority [Width]bool) {
	bgEnabled := bit.IsSet(0, p.lcdc)
	if !bgEnabled {
		return colors, priority
	}

	windowEnabled := bit.IsSet(5, p.lcdc)
	windowX := int(p.wx) - 7

	for x := 0; x < Width; x++ {
		useWindow := windowEnabled && int(p.wy) <= line && x >= windowX && windowX < Width

		var tileMapBase uint16
		var tileY, tileXSource int
		if useWindow {
			p.windowDrawn = true
			if bit.IsSet(6, p.lcdc) {
				tileMapBase = 0x1C00
			} else {
				tileMapBase = 0x1800
			}
			tileY = p.windowLine
			tileXSource = x - windowX
		} else {
			if bit.IsSet(3, p.lcdc) {
				tileMapBase = 0x1C00
			} else {
				tileMapBase = 0x1800
			}
			tileY = (line + int(p.scy)) & 0xFF
			tileXSource = (x + int(p.scx)) & 0xFF
		}

		mapX := (tileXSource / 8) % 32
		mapY := (tileY / 8) % 32
		tileIndex := p.vram[tileMapBase+uint16(mapY*32+mapX)]

		rowOffset := (tileY % 8) * 2
		tileAddr := p.tileDataAddr(tileIndex) + uint16(rowOffset)
		low := p.vram[tileAddr]
		high := p.vram[tileAddr+1]

		bitIndex := uint8(7 - (tileXSource % 8))
		color := uint8(0)
		if bit.IsSet(bitIndex, low) {
			color |= 1
		}
		if bit.IsSet(bitIndex, high) {
			color |= 2
		}
		colors[x] = color
		priority[x] = color != 0
	}
	return colors, priority
}

func (p *PPU) tileDataAddr(tileIndex uint8) uint16 {
	if bit.IsSet(4, p.lcdc) {
		return uint16(tileIndex) * 16
	}
	return uint16(0x1000 + int(int8(tileIndex))*16)
}

func (p *PPU) fetchSprites(line int, sprites []sprite, spriteHeight int) (colors [Width]uint8, useOBP1 [Width]bool, above [Width]bool) {
	// Lower OAM index wins ties; draw in reverse so earlier sprites
	// overwrite later ones when both claim the same x.
	for i := len(sprites) - 1; i >= 0; i-- {
		s := sprites[i]
		rowInSprite := line - s.y
		if s.flipY() {
			rowInSprite = spriteHeight - 1 - rowInSprite
		}

		tile := s.tile
		if spriteHeight == 16 {
			tile &^= 1
			if rowInSprite >= 8 {
				tile |= 1
				rowInSprite -= 8
			}
		}

		tileAddr := uint16(tile)*16 + uint16(rowInSprite*2)
		low := p.vram[tileAddr]
		high := p.vram[tileAddr+1]

		for px := 0; px < 8; px++ {
			screenX := s.x + px
			if screenX < 0 || screenX >= Width {
				continue
			}
			bitIndex := uint8(px)
			if !s.flipX() {
				bitIndex = uint8(7 - px)
			}
			color := uint8(0)
			if bit.IsSet(bitIndex, low) {
				color |= 1
			}
			if bit.IsSet(bitIndex, high) {
				color |= 2
			}
			if color == 0 {
				continue
			}
			colors[screenX] = color
			useOBP1[screenX] = s.useOBP1()
			above[screenX] = s.aboveBG()
		}
	}
	return colors, useOBP1, above
}

// ReadVRAM/WriteVRAM/ReadOAM/WriteOAM are exposed for the bus to route
// 0x8000-0x9FFF and 0xFE00-0xFE9F accesses through.
func (p *PPU) ReadVRAM(addr uint16) uint8     { return p.vram[addr] }
func (p *PPU) WriteVRAM(addr uint16, v uint8) { p.vram[addr] = v }
func (p *PPU) ReadOAM(addr uint16) uint8      { return p.oam[addr] }
func (p *PPU) WriteOAM(addr uint16, v uint8)  { p.oam[addr] = v }

// ReadRegister/WriteRegister implement the LCDC/STAT/SCY.../WX register file.
func (p *PPU) ReadRegister(a uint16) uint8 {
	switch a {
	case addr.LCDC:
		return p.lcdc
	case addr.STAT:
		return p.stat | 0x80
	case addr.SCY:
		return p.scy
	case addr.SCX:
		return p.scx
	case addr.LY:
		return p.ly
	case addr.LYC:
		return p.lyc
	case addr.BGP:
		return p.bgp
	case addr.OBP0:
		return p.obp0
	case addr.OBP1:
		return p.obp1
	case addr.WY:
		return p.wy
	case addr.WX:
		return p.wx
	}
	return 0xFF
}

func (p *PPU) WriteRegister(a uint16, v uint8) {
	switch a {
	case addr.LCDC:
		wasEnabled := p.lcdEnabled()
		p.lcdc = v
		if wasEnabled && !p.lcdEnabled() {
			p.setMode(ModeHBlank)
			p.setLY(0)
			p.cycles = 0
		}
	case addr.STAT:
		p.stat = (p.stat & 0x07) | (v &^ 0x07)
	case addr.SCY:
		p.scy = v
	case addr.SCX:
		p.scx = v
	case addr.LY:
		// LY is read-only on real hardware.
	case addr.LYC:
		p.lyc = v
		p.setLY(int(p.ly))
	case addr.BGP:
		p.bgp = v
	case addr.OBP0:
		p.obp0 = v
	case addr.OBP1:
		p.obp1 = v
	case addr.WY:
		p.wy = v
	case addr.WX:
		p.wx = v
	}
}
