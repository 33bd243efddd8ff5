//go:build !sdl2

package sdlfrontend

import (
	"fmt"

	"github.com/kestrelgb/dmgcore/core/machine"
)

// Backend stubs the SDL2 frontend when built without the sdl2 tag or SDL2
// development libraries.
type Backend struct{}

// New creates a stub backend that always fails Init.
func New() *Backend { return &Backend{} }

func (b *Backend) Init(title string) error {
	return fmt.Errorf("sdlfrontend: built without -tags sdl2; SDL2 support unavailable")
}

func (b *Backend) Update(m *machine.Machine) (bool, error) {
	return false, fmt.Errorf("sdlfrontend: not available")
}

func (b *Backend) Close() error { return nil }
