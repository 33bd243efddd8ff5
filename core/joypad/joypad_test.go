package joypad

import "testing"

func TestDpadSelection(t *testing.T) {
	j := New()
	j.WriteP1(0b0010_0000) // select dpad (bit4 low)
	j.Press(Right)

	got := j.ReadP1()
	if got&0x01 != 0 {
		t.Fatalf("Right bit = 1, want 0 (pressed, active-low)")
	}
	if got&0x02 == 0 {
		t.Fatalf("Left bit = 0, want 1 (not pressed)")
	}
}

func TestButtonSelection(t *testing.T) {
	j := New()
	j.WriteP1(0b0001_0000) // select buttons (bit5 low)
	j.Press(A)

	got := j.ReadP1()
	if got&0x01 != 0 {
		t.Fatalf("A bit = 1, want 0 (pressed)")
	}
}

func TestPressRaisesInterruptOnTransition(t *testing.T) {
	j := New()
	j.Press(Start)
	if !j.InterruptRequested {
		t.Fatal("InterruptRequested = false after a fresh press, want true")
	}

	j.InterruptRequested = false
	j.Press(Start) // already pressed, no transition
	if j.InterruptRequested {
		t.Fatal("InterruptRequested = true on a repeated press, want false")
	}
}

func TestReleaseClearsButton(t *testing.T) {
	j := New()
	j.WriteP1(0b0001_0000)
	j.Press(B)
	j.Release(B)
	got := j.ReadP1()
	if got&0x02 == 0 {
		t.Fatalf("B bit after release = 0, want 1")
	}
}
