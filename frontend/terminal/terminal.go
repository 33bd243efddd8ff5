// Package terminal renders a machine.Machine to a text terminal using
// tcell, shading each pixel to one of four block characters. Grounded on
// the teacher (valerio/go-jeebie)'s root main.go TerminalRenderer and
// jeebie/backend/terminal's key-timeout press/release emulation (terminals
// report key-down events only, never key-up).
package terminal

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/kestrelgb/dmgcore/core/joypad"
	"github.com/kestrelgb/dmgcore/core/machine"
	"github.com/kestrelgb/dmgcore/core/video"
)

// keyTimeout is how long a button stays "held" after its last key-down
// event, since a terminal never reports key-up.
const keyTimeout = 150 * time.Millisecond

var shadeChars = [4]rune{'█', '▓', '▒', '░'}

var keyToButton = map[tcell.Key]joypad.Button{
	tcell.KeyUp:    joypad.Up,
	tcell.KeyDown:  joypad.Down,
	tcell.KeyLeft:  joypad.Left,
	tcell.KeyRight: joypad.Right,
	tcell.KeyEnter: joypad.Start,
}

var runeToButton = map[rune]joypad.Button{
	'z': joypad.A,
	'x': joypad.B,
	'q': joypad.Select,
}

// Backend implements frontend.Backend using a tcell terminal screen.
type Backend struct {
	screen  tcell.Screen
	lastKey map[joypad.Button]time.Time
	held    map[joypad.Button]bool
	quit    bool
}

// New creates an uninitialized terminal backend.
func New() *Backend {
	return &Backend{
		lastKey: make(map[joypad.Button]time.Time),
		held:    make(map[joypad.Button]bool),
	}
}

func (b *Backend) Init(title string) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("terminal: init screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("terminal: init screen: %w", err)
	}
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()
	b.screen = screen
	return nil
}

func (b *Backend) Update(m *machine.Machine) (bool, error) {
	now := time.Now()
	for b.screen.HasPendingEvent() {
		switch ev := b.screen.PollEvent().(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
				b.quit = true
				continue
			}
			if btn, ok := keyToButton[ev.Key()]; ok {
				b.lastKey[btn] = now
			} else if btn, ok := runeToButton[ev.Rune()]; ok {
				b.lastKey[btn] = now
			}
		case *tcell.EventResize:
			b.screen.Sync()
		}
	}

	for btn, seenAt := range b.lastKey {
		active := now.Sub(seenAt) < keyTimeout
		if active && !b.held[btn] {
			m.Press(btn)
			b.held[btn] = true
		} else if !active && b.held[btn] {
			m.Release(btn)
			b.held[btn] = false
		}
	}

	b.render(m)
	b.screen.Show()
	return !b.quit, nil
}

func (b *Backend) render(m *machine.Machine) {
	frame := m.Frame()
	b.screen.Clear()
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	for y := 0; y < video.Height; y++ {
		for x := 0; x < video.Width; x++ {
			offset := (y*video.Width + x) * 4
			// Luminance-ish average of the RGBA8 pixel selects a shade.
			lum := (uint16(frame[offset]) + uint16(frame[offset+1]) + uint16(frame[offset+2])) / 3
			shade := 3 - lum/64
			if shade > 3 {
				shade = 3
			}
			b.screen.SetContent(x, y, shadeChars[shade], nil, style)
		}
	}
}

func (b *Backend) Close() error {
	if b.screen != nil {
		b.screen.Fini()
	}
	return nil
}
