// Package joypad maintains the 8 DMG button states and the matrixed P1
// register read by the CPU, per spec.md §4.6.
package joypad

// Button identifies one of the 8 physical buttons.
type Button uint8

const (
	Right Button = iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

// Joypad holds button state and the P1 selection bits written by the CPU.
type Joypad struct {
	buttons uint8 // active-low: A,B,Select,Start in bits 0-3
	dpad    uint8 // active-low: Right,Left,Up,Down in bits 0-3
	select_ uint8 // raw P1 bits 4-5 as last written

	// InterruptRequested is set for one Press call when a press
	// causes a 1->0 transition on any of the matrixed lines.
	InterruptRequested bool
}

// New returns a Joypad with no buttons pressed.
func New() *Joypad {
	return &Joypad{buttons: 0x0F, dpad: 0x0F, select_: 0x30}
}

// Press marks a button as held and raises the joypad interrupt if this is a
// new press (active-low 1->0 transition), whichever P1 line is selected.
func (j *Joypad) Press(b Button) {
	var before uint8
	switch {
	case isDpad(b):
		before = j.dpad
		j.dpad = clearBit(j.dpad, dpadBit(b))
	default:
		before = j.buttons
		j.buttons = clearBit(j.buttons, buttonBit(b))
	}

	after := j.buttons
	if isDpad(b) {
		after = j.dpad
	}
	j.InterruptRequested = before != after
}

// Release marks a button as not held.
func (j *Joypad) Release(b Button) {
	switch {
	case isDpad(b):
		j.dpad = setBit(j.dpad, dpadBit(b))
	default:
		j.buttons = setBit(j.buttons, buttonBit(b))
	}
}

// ReadP1 returns the matrixed P1 register value given the selection bits
// currently latched from a prior WriteP1 call.
func (j *Joypad) ReadP1() uint8 {
	result := uint8(0b1100_0000) | j.select_

	selectDpad := j.select_&0x10 == 0
	selectButtons := j.select_&0x20 == 0

	switch {
	case selectDpad && selectButtons:
		result |= j.dpad & j.buttons & 0x0F
	case selectDpad:
		result |= j.dpad & 0x0F
	case selectButtons:
		result |= j.buttons & 0x0F
	default:
		result |= 0x0F
	}
	return result
}

// WriteP1 latches the CPU-writable selection bits (4-5) of P1.
func (j *Joypad) WriteP1(v uint8) {
	j.select_ = v & 0b0011_0000
}

func isDpad(b Button) bool { return b == Right || b == Left || b == Up || b == Down }

func dpadBit(b Button) uint8 {
	switch b {
	case Right:
		return 0
	case Left:
		return 1
	case Up:
		return 2
	default: // Down
		return 3
	}
}

func buttonBit(b Button) uint8 {
	switch b {
	case A:
		return 0
	case B:
		return 1
	case Select:
		return 2
	default: // Start
		return 3
	}
}

func clearBit(v, i uint8) uint8 { return v &^ (1 << i) }
func setBit(v, i uint8) uint8   { return v | (1 << i) }
