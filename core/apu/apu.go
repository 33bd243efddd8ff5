// Package apu implements the DMG's 4-channel audio synthesis unit: two
// square generators (one with frequency sweep), a 32-sample wave channel,
// and a noise channel with a 15-bit LFSR, all gated by a shared 512Hz frame
// sequencer, per spec.md §4.7. The generator math (duty cycles, sweep
// overflow, envelope pacing, LFSR width) is hardware-fixed and follows the
// teacher (valerio/go-jeebie)'s jeebie/audio/apu.go; the file layout here
// splits that single file into this register/mixing layer, channel.go's
// per-generator stepping, and sequencer.go's 512Hz clocking, and the
// sequencer itself is driven by the timer's real DIV-bit-4 edge count
// rather than a free-running cycle counter, so a mid-frame DIV write
// perturbs it exactly as it would on real hardware.
package apu

import (
	"github.com/kestrelgb/dmgcore/core/addr"
	"github.com/kestrelgb/dmgcore/core/bit"
)

const waveRAMSize = 16

const cpuFrequency = 4194304

// APU is the audio processing unit.
type APU struct {
	enabled           bool
	ch                [4]channel
	vinLeft, vinRight bool
	volLeft, volRight uint8
	vinSample         int16

	mixLeftAcc, mixRightAcc int64
	mixAccumCycles          int
	pcmCycleAcc             float64
	pcmCyclesPerSample      float64
	hostSampleRate          int

	step int // 3-bit frame-sequencer phase, 0..7

	NR10, NR11, NR12, NR13, NR14 uint8
	NR21, NR22, NR23, NR24       uint8
	NR30, NR31, NR32, NR33, NR34 uint8
	NR41, NR42, NR43, NR44       uint8
	NR50, NR51, NR52             uint8
	waveRAM                      [waveRAMSize]uint8

	ring *Ring
}

// New creates an APU that pushes mixed stereo samples into a ring of the
// given capacity, resampled to hostSampleRate.
func New(hostSampleRate, ringCapacity int) *APU {
	if hostSampleRate <= 0 {
		hostSampleRate = 44100
	}
	a := &APU{
		hostSampleRate: hostSampleRate,
		ring:           NewRing(ringCapacity),
	}
	a.pcmCyclesPerSample = float64(cpuFrequency) / float64(hostSampleRate)
	return a
}

// Ring returns the bounded sample ring the host audio callback consumes from.
func (a *APU) Ring() *Ring { return a.ring }

// Tick advances the APU by cycles T-cycles and clocks the frame sequencer
// once per DIV-bit-4 falling edge the caller reports (normally via
// timer.Timer.ConsumeDivBit4Edges, per spec.md §5's apu.tick(t, timer.div)
// driver contract).
func (a *APU) Tick(cycles, sequencerEdges int) {
	if !a.enabled {
		return
	}

	a.mixChannels(cycles)
	a.runSequencer(sequencerEdges)
}

// mixChannels advances every enabled generator by cycles T-cycles, sums
// their output per the NR51 panning mask plus any VIN input, and folds the
// result into the running mix accumulator that flushMix later resamples.
func (a *APU) mixChannels(cycles int) {
	if cycles <= 0 {
		return
	}

	var leftLevel, rightLevel int64
	for i := range a.ch {
		ch := &a.ch[i]
		if !ch.enabled || !ch.dacEnabled || ch.muted {
			continue
		}

		var level int64
		switch i {
		case 0, 1:
			level = ch.squareLevel(cycles)
		case 2:
			level = ch.waveLevel(cycles, &a.waveRAM)
		case 3:
			level = ch.noiseLevel(cycles)
		}
		if level == 0 {
			continue
		}
		if ch.left {
			leftLevel += level
		}
		if ch.right {
			rightLevel += level
		}
	}
	if a.vinLeft {
		leftLevel += int64(a.vinSample)
	}
	if a.vinRight {
		rightLevel += int64(a.vinSample)
	}

	a.mixLeftAcc += leftLevel * int64(cycles)
	a.mixRightAcc += rightLevel * int64(cycles)
	a.mixAccumCycles += cycles
	a.flushMix(cycles)
}

// flushMix resamples the cycle-weighted mix accumulator down to the host
// sample rate, pushing one stereo frame into the ring each time enough
// T-cycles have accumulated.
func (a *APU) flushMix(cycles int) {
	if a.hostSampleRate <= 0 || a.pcmCyclesPerSample == 0 {
		return
	}
	a.pcmCycleAcc += float64(cycles)
	if a.pcmCycleAcc < a.pcmCyclesPerSample {
		return
	}
	a.pcmCycleAcc -= a.pcmCyclesPerSample

	left, right := a.exportMixedSample()
	a.ring.Push(left, right)
}

func (a *APU) exportMixedSample() (int16, int16) {
	if a.mixAccumCycles == 0 {
		return 0, 0
	}
	leftAvg := float64(a.mixLeftAcc) / float64(a.mixAccumCycles)
	rightAvg := float64(a.mixRightAcc) / float64(a.mixAccumCycles)
	left, right := scaleToPCM(leftAvg, a.volLeft), scaleToPCM(rightAvg, a.volRight)
	a.mixLeftAcc, a.mixRightAcc, a.mixAccumCycles = 0, 0, 0
	return left, right
}

const sampleScale = 32767.0 / 15.0

func scaleToPCM(avg float64, masterVol uint8) int16 {
	gain := float64(masterVol+1) / 8.0
	value := avg * gain * sampleScale
	if value > 32767 {
		value = 32767
	} else if value < -32768 {
		value = -32768
	}
	return int16(value)
}

func (a *APU) waveRAMLocked() bool {
	return a.enabled && a.ch[2].enabled && a.ch[2].dacEnabled
}

// ReadRegister returns the masked value of an APU I/O register.
func (a *APU) ReadRegister(address uint16) uint8 {
	switch address {
	case addr.NR10:
		return a.NR10 | 0b1000_0000
	case addr.NR11:
		return a.NR11 | 0b0011_1111
	case addr.NR12:
		return a.NR12
	case addr.NR13:
		return 0xFF
	case addr.NR14:
		return a.NR14 | 0b1011_1111
	case addr.NR21:
		return a.NR21 | 0b0011_1111
	case addr.NR22:
		return a.NR22
	case addr.NR23:
		return 0xFF
	case addr.NR24:
		return a.NR24 | 0b1011_1111
	case addr.NR30:
		return a.NR30 | 0b0111_1111
	case addr.NR31:
		return 0xFF
	case addr.NR32:
		return a.NR32 | 0b1001_1111
	case addr.NR33:
		return 0xFF
	case addr.NR34:
		return a.NR34 | 0b1011_1111
	case addr.NR41:
		return 0xFF
	case addr.NR42:
		return a.NR42
	case addr.NR43:
		return a.NR43
	case addr.NR44:
		return a.NR44 | 0b1011_1111
	case addr.NR50:
		return a.NR50
	case addr.NR51:
		return a.NR51
	case addr.NR52:
		status := uint8(0b0111_0000)
		if a.enabled {
			status = bit.Set(7, status)
		}
		for i := range a.ch {
			if a.ch[i].enabled {
				status = bit.Set(uint8(i), status)
			}
		}
		return status
	}
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		if a.waveRAMLocked() {
			return a.ch[2].waveSample
		}
		return a.waveRAM[address-addr.WaveRAMStart]
	}
	return 0xFF
}

// WriteRegister implements the register side effects of a write to an APU
// I/O register, including the power-off register clear of §4.7.
func (a *APU) WriteRegister(address uint16, value uint8) {
	isWaveRAM := address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd

	if !a.enabled && address != addr.NR52 && !isWaveRAM {
		return
	}

	switch address {
	case addr.NR10:
		a.NR10 = value
	case addr.NR11:
		a.NR11 = value
		a.ch[0].length = 64 - uint16(bit.ExtractBits(value, 6, 0))
	case addr.NR12:
		a.NR12 = value
		a.primeEnvelope(&a.ch[0], value)
	case addr.NR13:
		a.NR13 = value
	case addr.NR14:
		a.NR14 = value
	case addr.NR21:
		a.NR21 = value
		a.ch[1].length = 64 - uint16(bit.ExtractBits(value, 6, 0))
	case addr.NR22:
		a.NR22 = value
		a.primeEnvelope(&a.ch[1], value)
	case addr.NR23:
		a.NR23 = value
	case addr.NR24:
		a.NR24 = value
	case addr.NR30:
		a.NR30 = value
	case addr.NR31:
		a.NR31 = value
		a.ch[2].length = 256 - uint16(value)
	case addr.NR32:
		a.NR32 = value
	case addr.NR33:
		a.NR33 = value
	case addr.NR34:
		a.NR34 = value
	case addr.NR41:
		a.NR41 = value
		a.ch[3].length = 64 - uint16(bit.ExtractBits(value, 6, 0))
	case addr.NR42:
		a.NR42 = value
		a.primeEnvelope(&a.ch[3], value)
	case addr.NR43:
		a.NR43 = value
	case addr.NR44:
		a.NR44 = value
	case addr.NR50:
		a.NR50 = value
	case addr.NR51:
		a.NR51 = value
	case addr.NR52:
		a.NR52 = value
	}

	if isWaveRAM {
		offset := address - addr.WaveRAMStart
		if a.waveRAMLocked() {
			idx := a.ch[2].waveIndex >> 1
			a.waveRAM[idx] = value
			a.ch[2].waveSample = value
		} else {
			a.waveRAM[offset] = value
		}
	}

	a.mapRegistersToState()
}

func (a *APU) primeEnvelope(ch *channel, nrx2 uint8) {
	pace := bit.ExtractBits(nrx2, 3, 0)
	if pace == 0 {
		ch.envelopeCounter = 8
	} else {
		ch.envelopeCounter = pace
	}
	ch.envelopeLatched = false
}

// handleLengthEnableTransition implements the documented obscure-behavior
// extra length clock that happens on enabling length mid-sequencer-period,
// and on trigger-while-zero reloads. See Pan Docs: Audio details.
func (a *APU) handleLengthEnableTransition(prevEnabled bool, lengthBefore uint16, triggered bool, maxLength uint16, chIdx int) {
	ch := &a.ch[chIdx]
	lengthWasZero := lengthBefore == 0
	clockOnEnable := !prevEnabled && ch.lengthEnable && a.step%2 == 1 && lengthBefore > 0

	if triggered && (lengthWasZero || (clockOnEnable && lengthBefore == 1)) {
		ch.length = maxLength
	}

	if !ch.lengthEnable {
		return
	}

	forceClock := lengthWasZero && triggered && ch.length > 0
	if !forceClock && prevEnabled {
		return
	}

	if a.step%2 == 1 && ch.length > 0 {
		ch.length--
		if ch.length == 0 {
			ch.enabled = false
		}
	}
}

func (a *APU) mapRegistersToState() {
	a.enabled = bit.IsSet(7, a.NR52)

	if !a.enabled {
		// Powering off clears all registers except NR52 (wave RAM is kept)
		// and parks the frame sequencer at step 7, so after re-enabling the
		// first edge clocks the envelope and the first length clock comes
		// one edge later.
		a.NR10, a.NR11, a.NR12, a.NR13, a.NR14 = 0, 0, 0, 0, 0
		a.NR21, a.NR22, a.NR23, a.NR24 = 0, 0, 0, 0
		a.NR30, a.NR31, a.NR32, a.NR33, a.NR34 = 0, 0, 0, 0, 0
		a.NR41, a.NR42, a.NR43, a.NR44 = 0, 0, 0, 0
		a.NR50, a.NR51 = 0, 0
		for i := range a.ch {
			a.ch[i].enabled = false
		}
		a.step = 7
		return
	}

	for i := range a.ch {
		a.ch[i].right = bit.IsSet(uint8(i), a.NR51)
		a.ch[i].left = bit.IsSet(uint8(i+4), a.NR51)
	}

	a.vinLeft, a.vinRight = bit.IsSet(7, a.NR50), bit.IsSet(3, a.NR50)
	a.volLeft, a.volRight = bit.ExtractBits(a.NR50, 3, 4), bit.ExtractBits(a.NR50, 3, 0)

	a.mapChannel1()
	a.mapChannel2()
	a.mapChannel3()
	a.mapChannel4()

	for i := range a.ch {
		if !a.ch[i].dacEnabled {
			a.ch[i].enabled = false
		}
	}
}

func (a *APU) mapChannel1() {
	ch := &a.ch[0]
	prevSweepDown := ch.sweepDown
	ch.sweepPeriod = bit.ExtractBits(a.NR10, 3, 4)
	ch.sweepDown = bit.IsSet(3, a.NR10)
	ch.sweepStep = bit.ExtractBits(a.NR10, 3, 0)
	if !ch.sweepDown && prevSweepDown && ch.sweepNegUsed && (ch.sweepPeriod > 0 || ch.sweepStep > 0) {
		ch.enabled = false
	}

	ch.duty = bit.ExtractBits(a.NR11, 2, 6)

	ch.volume = bit.ExtractBits(a.NR12, 4, 4)
	ch.envelopeUp = bit.IsSet(3, a.NR12)
	ch.envelopePace = bit.ExtractBits(a.NR12, 3, 0)
	ch.dacEnabled = ch.volume > 0 || ch.envelopeUp

	ch.period = bit.Combine(a.NR14&0b111, a.NR13)

	prevLenEnable := ch.lengthEnable
	lengthBefore := ch.length
	triggered := bit.IsSet(7, a.NR14)
	ch.lengthEnable = bit.IsSet(6, a.NR14)
	if triggered {
		if ch.dacEnabled {
			ch.enabled = true
		}
		ch.envelopeLatched = false
		if ch.envelopePace == 0 {
			ch.envelopeCounter = 8
		} else {
			ch.envelopeCounter = ch.envelopePace
		}
		ch.dutyStep = 0
		ch.freqTimer = ch.squarePeriod()
		ch.sweepEnabled = ch.sweepPeriod > 0 || ch.sweepStep > 0
		ch.sweepTimer = ch.sweepPeriod
		if ch.sweepTimer == 0 {
			ch.sweepTimer = 8
		}
		ch.shadowFreq = ch.period
		ch.sweepNegUsed = false

		if ch.sweepStep != 0 {
			if ch.sweepDown {
				ch.sweepNegUsed = true
			}
			if _, overflow := ch.calculateSweepFrequency(); overflow {
				ch.enabled = false
			}
		}
		a.NR14 = bit.Reset(7, a.NR14)
	}
	a.handleLengthEnableTransition(prevLenEnable, lengthBefore, triggered, 64, 0)
}

func (a *APU) mapChannel2() {
	ch := &a.ch[1]
	ch.duty = bit.ExtractBits(a.NR21, 2, 6)

	ch.volume = bit.ExtractBits(a.NR22, 4, 4)
	ch.envelopeUp = bit.IsSet(3, a.NR22)
	ch.envelopePace = bit.ExtractBits(a.NR22, 3, 0)
	ch.dacEnabled = ch.volume > 0 || ch.envelopeUp

	ch.period = bit.Combine(a.NR24&0b111, a.NR23)

	prevLenEnable := ch.lengthEnable
	lengthBefore := ch.length
	triggered := bit.IsSet(7, a.NR24)
	ch.lengthEnable = bit.IsSet(6, a.NR24)
	if triggered {
		if ch.dacEnabled {
			ch.enabled = true
		}
		ch.envelopeLatched = false
		if ch.envelopePace == 0 {
			ch.envelopeCounter = 8
		} else {
			ch.envelopeCounter = ch.envelopePace
		}
		ch.dutyStep = 0
		ch.freqTimer = ch.squarePeriod()
		a.NR24 = bit.Reset(7, a.NR24)
	}
	a.handleLengthEnableTransition(prevLenEnable, lengthBefore, triggered, 64, 1)
}

func (a *APU) mapChannel3() {
	ch := &a.ch[2]
	ch.dacEnabled = bit.IsSet(7, a.NR30)
	ch.volume = bit.ExtractBits(a.NR32, 2, 5)
	ch.period = bit.Combine(a.NR34&0b111, a.NR33)

	prevLenEnable := ch.lengthEnable
	lengthBefore := ch.length
	triggered := bit.IsSet(7, a.NR34)
	ch.lengthEnable = bit.IsSet(6, a.NR34)
	if triggered {
		if ch.dacEnabled {
			ch.enabled = true
		}
		ch.freqTimer = ch.wavePeriod()
		ch.waveIndex = 0
		ch.waveSample = a.waveRAM[0]
		a.NR34 = bit.Reset(7, a.NR34)
	}
	a.handleLengthEnableTransition(prevLenEnable, lengthBefore, triggered, 256, 2)
}

func (a *APU) mapChannel4() {
	ch := &a.ch[3]
	ch.volume = bit.ExtractBits(a.NR42, 4, 4)
	ch.envelopeUp = bit.IsSet(3, a.NR42)
	ch.envelopePace = bit.ExtractBits(a.NR42, 3, 0)

	ch.shift = bit.ExtractBits(a.NR43, 4, 4)
	ch.use7bitLFSR = bit.IsSet(3, a.NR43)
	ch.divider = bit.ExtractBits(a.NR43, 3, 0)
	ch.dacEnabled = ch.volume > 0 || ch.envelopeUp

	prevLenEnable := ch.lengthEnable
	lengthBefore := ch.length
	triggered := bit.IsSet(7, a.NR44)
	ch.lengthEnable = bit.IsSet(6, a.NR44)
	if triggered {
		if ch.dacEnabled {
			ch.enabled = true
		}
		ch.envelopeLatched = false
		if ch.envelopePace == 0 {
			ch.envelopeCounter = 8
		} else {
			ch.envelopeCounter = ch.envelopePace
		}
		ch.lfsr = 0x7FFF
		ch.noiseTimer = ch.noisePeriod()
		a.NR44 = bit.Reset(7, a.NR44)
	}
	a.handleLengthEnableTransition(prevLenEnable, lengthBefore, triggered, 64, 3)
}

// ToggleChannel mutes/unmutes a channel for debugging.
func (a *APU) ToggleChannel(idx int) {
	if idx < 0 || idx >= 4 {
		return
	}
	a.ch[idx].muted = !a.ch[idx].muted
}

// SoloChannel isolates a single channel; calling it again for the same
// channel restores all channels.
func (a *APU) SoloChannel(channel int) {
	if channel < 0 || channel >= 4 {
		return
	}
	soloed := true
	for i := range a.ch {
		if a.ch[i].muted != (i != channel) {
			soloed = false
		}
	}
	for i := range a.ch {
		a.ch[i].muted = !soloed && i != channel
	}
}

// ChannelStatus reports whether each of the 4 channels is currently active.
func (a *APU) ChannelStatus() (ch1, ch2, ch3, ch4 bool) {
	return a.ch[0].enabled, a.ch[1].enabled, a.ch[2].enabled, a.ch[3].enabled
}
