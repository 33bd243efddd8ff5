//go:build sdl2

// Package sdlfrontend renders a machine.Machine to a windowed SDL2 surface
// and plays its audio ring through an SDL2 audio device. Building this
// requires SDL2 development libraries; default builds use the stub in
// sdl_stub.go. Grounded on the teacher (valerio/go-jeebie)'s
// jeebie/backend/sdl2/sdl2.go.
package sdlfrontend

import (
	"fmt"
	"log/slog"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/kestrelgb/dmgcore/core/joypad"
	"github.com/kestrelgb/dmgcore/core/machine"
	"github.com/kestrelgb/dmgcore/core/video"
)

const (
	pixelScale  = 3
	audioFreq   = 44100
	audioSample = 512
)

var keyToButton = map[sdl.Keycode]joypad.Button{
	sdl.K_UP:     joypad.Up,
	sdl.K_DOWN:   joypad.Down,
	sdl.K_LEFT:   joypad.Left,
	sdl.K_RIGHT:  joypad.Right,
	sdl.K_RETURN: joypad.Start,
	sdl.K_a:      joypad.A,
	sdl.K_s:      joypad.B,
	sdl.K_q:      joypad.Select,
}

// Backend implements frontend.Backend using go-sdl2 bindings.
type Backend struct {
	window      *sdl.Window
	renderer    *sdl.Renderer
	texture     *sdl.Texture
	audioDevice sdl.AudioDeviceID
	quit        bool
}

// New creates an uninitialized SDL2 backend.
func New() *Backend { return &Backend{} }

func (b *Backend) Init(title string) error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS | sdl.INIT_AUDIO); err != nil {
		return fmt.Errorf("sdlfrontend: init: %w", err)
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		video.Width*pixelScale, video.Height*pixelScale, sdl.WINDOW_SHOWN)
	if err != nil {
		sdl.Quit()
		return fmt.Errorf("sdlfrontend: create window: %w", err)
	}
	b.window = window

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return fmt.Errorf("sdlfrontend: create renderer: %w", err)
	}
	b.renderer = renderer

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_RGBA8888, sdl.TEXTUREACCESS_STREAMING,
		video.Width, video.Height)
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		sdl.Quit()
		return fmt.Errorf("sdlfrontend: create texture: %w", err)
	}
	b.texture = texture

	if err := b.initAudio(); err != nil {
		slog.Warn("sdlfrontend: audio unavailable", "error", err)
	}

	return nil
}

func (b *Backend) initAudio() error {
	spec := &sdl.AudioSpec{Freq: audioFreq, Format: sdl.AUDIO_S16LSB, Channels: 2, Samples: audioSample}
	obtained := &sdl.AudioSpec{}
	dev, err := sdl.OpenAudioDevice("", false, spec, obtained, 0)
	if err != nil {
		return err
	}
	b.audioDevice = dev
	sdl.PauseAudioDevice(b.audioDevice, false)
	return nil
}

func (b *Backend) Update(m *machine.Machine) (bool, error) {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			b.quit = true
		case *sdl.KeyboardEvent:
			btn, ok := keyToButton[e.Keysym.Sym]
			if !ok {
				if e.Type == sdl.KEYDOWN && e.Keysym.Sym == sdl.K_ESCAPE {
					b.quit = true
				}
				continue
			}
			if e.Type == sdl.KEYDOWN {
				m.Press(btn)
			} else if e.Type == sdl.KEYUP {
				m.Release(btn)
			}
		}
	}

	pixels := m.Frame()
	if err := b.texture.Update(nil, pixels, video.Width*4); err != nil {
		return !b.quit, fmt.Errorf("sdlfrontend: update texture: %w", err)
	}
	b.renderer.Clear()
	b.renderer.Copy(b.texture, nil, nil)
	b.renderer.Present()

	if b.audioDevice != 0 {
		samples := m.Audio().Pop(audioSample)
		if len(samples) > 0 {
			sdl.QueueAudio(b.audioDevice, int16SliceToBytes(samples))
		}
	}

	return !b.quit, nil
}

func int16SliceToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func (b *Backend) Close() error {
	if b.audioDevice != 0 {
		sdl.CloseAudioDevice(b.audioDevice)
	}
	if b.texture != nil {
		b.texture.Destroy()
	}
	if b.renderer != nil {
		b.renderer.Destroy()
	}
	if b.window != nil {
		b.window.Destroy()
	}
	sdl.Quit()
	return nil
}
