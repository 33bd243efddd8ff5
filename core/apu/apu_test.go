package apu

import (
	"testing"

	"github.com/kestrelgb/dmgcore/core/addr"
)

// divBit4Period is the T-cycle count between DIV-bit-4 falling edges
// (4194304Hz / 512Hz), mirroring what core/timer reports to Tick.
const divBit4Period = 8192

func powerOn(a *APU) {
	a.WriteRegister(addr.NR52, 0x80)
}

func TestPowerOnRequiredForRegisterWrites(t *testing.T) {
	a := New(44100, 256)
	a.WriteRegister(addr.NR11, 0xFF) // ignored, APU is off
	if a.NR11 != 0 {
		t.Fatalf("NR11 = %#x, want 0 while APU is powered off", a.NR11)
	}

	powerOn(a)
	a.WriteRegister(addr.NR11, 0xFF)
	if a.NR11 != 0xFF {
		t.Fatalf("NR11 = %#x, want 0xFF once powered on", a.NR11)
	}
}

func TestPowerOffClearsRegistersButNotWaveRAM(t *testing.T) {
	a := New(44100, 256)
	powerOn(a)
	a.WriteRegister(addr.NR11, 0x3F)
	a.WriteRegister(addr.WaveRAMStart, 0xAB)

	a.WriteRegister(addr.NR52, 0x00)
	if a.NR11 != 0 {
		t.Fatalf("NR11 = %#x after power-off, want 0", a.NR11)
	}
	if a.waveRAM[0] != 0xAB {
		t.Fatalf("wave RAM byte 0 = %#x after power-off, want 0xAB preserved", a.waveRAM[0])
	}
}

func TestSquareChannelTriggerEnablesWithDAC(t *testing.T) {
	a := New(44100, 256)
	powerOn(a)
	a.WriteRegister(addr.NR12, 0xF0) // volume 15, envelope up -> DAC enabled
	a.WriteRegister(addr.NR14, 0x80) // trigger

	if !a.ch[0].enabled {
		t.Fatal("channel 1 should be enabled after trigger with DAC on")
	}
}

func TestTriggerWithDACOffLeavesChannelDisabled(t *testing.T) {
	a := New(44100, 256)
	powerOn(a)
	a.WriteRegister(addr.NR12, 0x00) // volume 0, envelope down -> DAC disabled
	a.WriteRegister(addr.NR14, 0x80)

	if a.ch[0].enabled {
		t.Fatal("channel 1 should stay disabled when the DAC is off at trigger time")
	}
}

func TestLengthCounterDisablesChannelAtZero(t *testing.T) {
	a := New(44100, 256)
	powerOn(a)
	a.WriteRegister(addr.NR12, 0xF0)
	a.WriteRegister(addr.NR11, 0x3F) // length = 64 - 63 = 1
	a.WriteRegister(addr.NR14, 0xC0) // trigger + length enable

	if !a.ch[0].enabled {
		t.Fatal("channel 1 should start enabled")
	}

	// Drive exactly one length-clocking frame-sequencer step.
	a.Tick(divBit4Period, 1)
	if a.ch[0].enabled {
		t.Fatal("channel 1 should disable once its length counter reaches 0")
	}
}

func TestWaveChannelVolumeShift(t *testing.T) {
	a := New(44100, 256)
	powerOn(a)
	for i := range a.waveRAM {
		a.waveRAM[i] = 0xFF
	}
	a.WriteRegister(addr.NR30, 0x80) // DAC on
	a.WriteRegister(addr.NR32, 0x20) // volume code 1 (100%)
	a.WriteRegister(addr.NR34, 0x80) // trigger

	if !a.ch[2].enabled {
		t.Fatal("wave channel should be enabled after trigger with DAC on")
	}
	// Sample 0xF, centered to 7, is passed through unshifted at volume code 1.
	if got := a.ch[2].waveLevel(0, &a.waveRAM); got != 7 {
		t.Fatalf("wave level at volume code 1 = %d, want 7", got)
	}
}

func TestNoiseChannelLFSRReseedsOnTrigger(t *testing.T) {
	a := New(44100, 256)
	powerOn(a)
	a.WriteRegister(addr.NR42, 0xF0)
	a.WriteRegister(addr.NR44, 0x80)

	if a.ch[3].lfsr != 0x7FFF {
		t.Fatalf("LFSR = %#x after trigger, want 0x7FFF", a.ch[3].lfsr)
	}
}

func TestRingFillsWhileTicking(t *testing.T) {
	a := New(44100, 4096)
	powerOn(a)
	a.WriteRegister(addr.NR12, 0xF0)
	a.WriteRegister(addr.NR11, 0x80)
	a.WriteRegister(addr.NR13, 0x00)
	a.WriteRegister(addr.NR14, 0xC7) // trigger, length enable, high freq bits

	a.Tick(divBit4Period*4, 4)

	if a.Ring().Len() == 0 {
		t.Fatal("expected the ring to accumulate samples after ticking with an active channel")
	}
}

func TestRingDropsSamplesWhenFull(t *testing.T) {
	r := NewRing(4)
	for i := 0; i < 10; i++ {
		r.Push(int16(i), int16(-i))
	}
	if r.Len() != 4 {
		t.Fatalf("Len() = %d, want 4 (capacity, oldest retained, newest dropped)", r.Len())
	}
	got := r.Pop(4)
	if got[0] != 0 || got[1] != 0 {
		t.Fatalf("first pair = (%d,%d), want (0,0): full ring should drop new pushes, not evict old ones", got[0], got[1])
	}
}

func TestSweepOverflowDisablesChannel(t *testing.T) {
	a := New(44100, 256)
	powerOn(a)
	a.WriteRegister(addr.NR10, 0b0000_0111) // period irrelevant, sweep up, shift=7
	a.WriteRegister(addr.NR12, 0xF0)
	a.WriteRegister(addr.NR13, 0xFF)
	a.WriteRegister(addr.NR14, 0x87) // trigger, freq high bits = 0b111 -> frequency 2047

	// A shift of 7 against frequency 2047 gives 2047+15 = 2062, which
	// overflows immediately on the trigger-time overflow check.
	if a.ch[0].enabled {
		t.Fatal("channel should be disabled by the trigger-time sweep overflow")
	}
}
