// Package machine assembles the CPU, bus, PPU, timer, APU and joypad into
// the runnable core and drives the per-frame fetch/execute/tick loop
// described in spec.md §5, grounded on the teacher (valerio/go-jeebie)'s
// top-level jeebie.Gameboy driver.
package machine

import (
	"log/slog"

	"github.com/kestrelgb/dmgcore/core/apu"
	"github.com/kestrelgb/dmgcore/core/bus"
	"github.com/kestrelgb/dmgcore/core/cart"
	"github.com/kestrelgb/dmgcore/core/cpu"
	"github.com/kestrelgb/dmgcore/core/joypad"
	"github.com/kestrelgb/dmgcore/core/timer"
	"github.com/kestrelgb/dmgcore/core/video"
)

// CyclesPerFrame is the fixed T-cycle budget of one DMG frame.
const CyclesPerFrame = 70224

// Machine is the complete emulator core: one CPU driving a shared bus, with
// the PPU/Timer/APU/Joypad ticked in lock-step after every instruction.
type Machine struct {
	cpu   *cpu.CPU
	bus   *bus.Bus
	ppu   *video.PPU
	apu   *apu.APU
	timer *timer.Timer
	pad   *joypad.Joypad

	log *slog.Logger
}

// New builds a Machine from a raw cartridge image. sampleRate is the host
// audio sample rate the APU resamples into; audioRingCapacity bounds the
// stereo sample ring's backlog before it starts dropping samples.
func New(cartBytes []byte, sampleRate int, audioRingCapacity int) (*Machine, error) {
	c, err := cart.New(cartBytes)
	if err != nil {
		return nil, err
	}

	a := apu.New(sampleRate, audioRingCapacity)
	t := timer.New()
	pad := joypad.New()

	b := bus.New(c, a, t, pad)
	p := video.New(b)
	b.PPU = p

	m := &Machine{
		cpu:   cpu.New(b),
		bus:   b,
		ppu:   p,
		apu:   a,
		timer: t,
		pad:   pad,
		log:   slog.Default().With("component", "machine", "title", c.Header.Title),
	}
	m.log.Info("cartridge loaded", "kind", c.Header.Kind, "ram_bytes", c.Header.RAMBytes, "battery", c.Header.HasBattery)
	return m, nil
}

// RunFrame runs spec.md §5's driver loop until at least CyclesPerFrame
// T-cycles have elapsed: fetch-execute an instruction, then tick every
// peripheral by that instruction's cycle count. The last instruction may
// run past the budget; that excess is not carried into the next frame, so
// a frame is CyclesPerFrame T-cycles plus up to one instruction's length.
func (m *Machine) RunFrame() {
	elapsed := 0
	for elapsed < CyclesPerFrame {
		cycles := m.cpu.Step()
		m.ppu.Tick(cycles)
		m.timer.Tick(cycles)
		m.apu.Tick(cycles, m.timer.ConsumeDivBit4Edges())
		m.bus.SyncDeviceInterrupts()
		elapsed += cycles
	}
}

// Frame returns the most recently completed frame as 160*144*4 row-major
// RGBA8 bytes.
func (m *Machine) Frame() []byte {
	return m.ppu.Frame().RGBA(video.DefaultPalette)
}

// Audio returns the stereo sample ring the APU writes into.
func (m *Machine) Audio() *apu.Ring {
	return m.apu.Ring()
}

// Press marks a button held, raising the joypad interrupt on a fresh press.
func (m *Machine) Press(b joypad.Button) {
	m.pad.Press(b)
}

// Release marks a button as no longer held.
func (m *Machine) Release(b joypad.Button) {
	m.pad.Release(b)
}

// SaveRAM returns a snapshot of battery-backed cartridge RAM, or nil if the
// cartridge has none.
func (m *Machine) SaveRAM() []byte {
	return m.bus.Cart.Save()
}

// LoadRAM restores cartridge RAM from a previous SaveRAM snapshot. It
// returns cart.ErrSaveSizeMismatch without mutating RAM if data's length
// doesn't match the cartridge's RAM size.
func (m *Machine) LoadRAM(data []byte) error {
	return m.bus.Cart.LoadSave(data)
}
