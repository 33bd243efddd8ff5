// Package bus routes CPU memory accesses to the cartridge, VRAM/OAM (owned
// by the PPU), work RAM, HRAM, and the timer/APU/joypad/PPU register files,
// per spec.md §4.1. Grounded on the teacher (valerio/go-jeebie)'s
// jeebie/memory/mem.go region-table dispatch.
package bus

import (
	"github.com/kestrelgb/dmgcore/core/addr"
	"github.com/kestrelgb/dmgcore/core/apu"
	"github.com/kestrelgb/dmgcore/core/bit"
	"github.com/kestrelgb/dmgcore/core/cart"
	"github.com/kestrelgb/dmgcore/core/joypad"
	"github.com/kestrelgb/dmgcore/core/timer"
	"github.com/kestrelgb/dmgcore/core/video"
)

type region uint8

const (
	regionROM region = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionUnused
	regionIO
	regionHRAM
)

// Bus is the shared memory map tying every subsystem together. CPU, PPU,
// Timer and APU all reach each other only through it, per spec.md §9's
// sibling-substructure design note.
type Bus struct {
	Cart   *cart.Cartridge
	PPU    *video.PPU
	APU    *apu.APU
	Timer  *timer.Timer
	Joypad *joypad.Joypad

	wram [0x2000]uint8
	hram [0x7F]uint8

	ifReg uint8
	ieReg uint8

	serialByte uint8
	serialCtrl uint8

	regionMap [256]region
}

// New creates a bus wired to cart/APU/timer/joypad. The PPU is constructed
// afterward since it takes the bus itself as its InterruptRequester; set
// the returned Bus's PPU field before calling Read/Write against VRAM/OAM
// or the LCD register range.
func New(c *cart.Cartridge, a *apu.APU, t *timer.Timer, pad *joypad.Joypad) *Bus {
	b := &Bus{Cart: c, APU: a, Timer: t, Joypad: pad}
	for i := 0x00; i <= 0x7F; i++ {
		b.regionMap[i] = regionROM
	}
	for i := 0x80; i <= 0x9F; i++ {
		b.regionMap[i] = regionVRAM
	}
	for i := 0xA0; i <= 0xBF; i++ {
		b.regionMap[i] = regionExtRAM
	}
	for i := 0xC0; i <= 0xDF; i++ {
		b.regionMap[i] = regionWRAM
	}
	for i := 0xE0; i <= 0xFD; i++ {
		b.regionMap[i] = regionEcho
	}
	b.regionMap[0xFE] = regionOAM
	b.regionMap[0xFF] = regionIO
	return b
}

// RequestInterrupt sets the IF bit for interrupt i; satisfies
// video.InterruptRequester.
func (b *Bus) RequestInterrupt(i addr.Interrupt) {
	b.ifReg = bit.Set(uint8(i), b.ifReg)
}

// SyncDeviceInterrupts folds the edge-triggered InterruptRequested flags
// that Timer and Joypad set during their own Tick/Press calls into IF. The
// frame driver calls this once per instruction after ticking peripherals.
func (b *Bus) SyncDeviceInterrupts() {
	if b.Timer.InterruptRequested {
		b.RequestInterrupt(addr.TimerInterrupt)
	}
	if b.Joypad.InterruptRequested {
		b.RequestInterrupt(addr.JoypadInterrupt)
		b.Joypad.InterruptRequested = false
	}
}

func (b *Bus) Read(a uint16) uint8 {
	switch b.regionMap[a>>8] {
	case regionROM:
		return b.Cart.ReadROM(a)
	case regionExtRAM:
		return b.Cart.ReadRAM(a)
	case regionVRAM:
		return b.PPU.ReadVRAM(a - addr.VRAMStart)
	case regionWRAM:
		return b.wram[a-addr.WRAMStart]
	case regionEcho:
		return b.wram[a-addr.EchoStart]
	case regionOAM:
		if a <= addr.OAMEnd {
			return b.PPU.ReadOAM(a - addr.OAMStart)
		}
		// 0xFEA0-0xFEFF is unmapped; real hardware returns 0 here rather
		// than the open-bus 0xFF used elsewhere.
		return 0x00
	case regionIO:
		return b.readIO(a)
	default:
		return 0xFF
	}
}

func (b *Bus) Write(a uint16, v uint8) {
	switch b.regionMap[a>>8] {
	case regionROM:
		b.Cart.WriteROM(a, v)
	case regionExtRAM:
		b.Cart.WriteRAM(a, v)
	case regionVRAM:
		b.PPU.WriteVRAM(a-addr.VRAMStart, v)
	case regionWRAM:
		b.wram[a-addr.WRAMStart] = v
	case regionEcho:
		b.wram[a-addr.EchoStart] = v
	case regionOAM:
		if a <= addr.OAMEnd {
			b.PPU.WriteOAM(a-addr.OAMStart, v)
		}
	case regionIO:
		b.writeIO(a, v)
	}
}

func (b *Bus) readIO(a uint16) uint8 {
	switch {
	case a == addr.P1:
		return b.Joypad.ReadP1()
	case a == addr.SB:
		return b.serialByte
	case a == addr.SC:
		return b.serialCtrl | 0x7E
	case a == addr.DIV || a == addr.TIMA || a == addr.TMA || a == addr.TAC:
		return b.Timer.Read(a)
	case a == addr.IF:
		return b.ifReg | 0xE0
	case a == addr.IE:
		return b.ieReg
	case a >= addr.NR10 && a <= addr.WaveRAMEnd:
		return b.APU.ReadRegister(a)
	case a >= addr.LCDC && a <= addr.WX:
		return b.PPU.ReadRegister(a)
	case a >= addr.HRAMStart && a <= addr.HRAMEnd:
		return b.hram[a-addr.HRAMStart]
	default:
		return 0xFF
	}
}

func (b *Bus) writeIO(a uint16, v uint8) {
	switch {
	case a == addr.P1:
		b.Joypad.WriteP1(v)
	case a == addr.SB:
		b.serialByte = v
	case a == addr.SC:
		b.serialCtrl = v
	case a == addr.DIV || a == addr.TIMA || a == addr.TMA || a == addr.TAC:
		b.Timer.Write(a, v)
	case a == addr.IF:
		b.ifReg = v & 0x1F
	case a == addr.IE:
		b.ieReg = v
	case a >= addr.NR10 && a <= addr.WaveRAMEnd:
		b.APU.WriteRegister(a, v)
	case a == addr.DMA:
		b.runOAMDMA(v)
	case a >= addr.LCDC && a <= addr.WX:
		b.PPU.WriteRegister(a, v)
	case a >= addr.HRAMStart && a <= addr.HRAMEnd:
		b.hram[a-addr.HRAMStart] = v
	}
}

// runOAMDMA performs the first-order atomic copy spec.md §4.1 allows: 160
// bytes from (v<<8)..+0xA0 into OAM.
func (b *Bus) runOAMDMA(v uint8) {
	src := uint16(v) << 8
	for i := uint16(0); i < 0xA0; i++ {
		b.PPU.WriteOAM(i, b.Read(src+i))
	}
}
