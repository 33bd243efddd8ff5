// Package video implements the PPU: the mode state machine, OAM scan,
// per-scanline background/window/sprite compositing, and the 160x144
// framebuffer it renders into. Grounded on the teacher (valerio/go-jeebie)'s
// jeebie/video/gpu.go and framebuffer.go.
package video

const (
	Width  = 160
	Height = 144
	Size   = Width * Height
)

// Palette maps a 2-bit color index to an RGBA8 color.
type Palette [4]uint32

// DefaultPalette is the classic DMG four-shade green palette, packed as
// 0xRRGGBBAA.
var DefaultPalette = Palette{
	0xE0F8D0FF,
	0x88C070FF,
	0x346856FF,
	0x081820FF,
}

// FrameBuffer stores one rendered frame as raw 2-bit color indices (0-3),
// deferring RGBA8 conversion to RGBA so tests can assert on palette-
// independent color indices.
type FrameBuffer struct {
	pixels [Size]uint8
}

func (fb *FrameBuffer) set(x, y int, colorIndex uint8) {
	fb.pixels[y*Width+x] = colorIndex
}

// ColorIndexAt returns the raw 2-bit color index written at (x, y).
func (fb *FrameBuffer) ColorIndexAt(x, y int) uint8 {
	return fb.pixels[y*Width+x]
}

// RGBA renders the buffer as row-major RGBA8 bytes using the given palette.
func (fb *FrameBuffer) RGBA(p Palette) []byte {
	out := make([]byte, Size*4)
	for i, idx := range fb.pixels {
		c := p[idx&0x03]
		out[i*4+0] = byte(c >> 24)
		out[i*4+1] = byte(c >> 16)
		out[i*4+2] = byte(c >> 8)
		out[i*4+3] = byte(c)
	}
	return out
}
