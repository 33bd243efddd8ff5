// Package frontend defines the contract a host renderer implements to
// drive a machine.Machine: pump input, blit the completed frame, and play
// back queued audio samples. The core never imports this package; it is
// out of scope per spec.md §6 ("host windowing/event loop ... are external
// collaborators"). Grounded on the teacher (valerio/go-jeebie)'s
// jeebie/backend.Backend interface, trimmed to what this core exposes.
package frontend

import "github.com/kestrelgb/dmgcore/core/machine"

// Backend is a complete host platform: rendering plus input capture for one
// machine.Machine.
type Backend interface {
	// Init prepares the backend (opens a window, terminal screen, audio
	// device, etc) before the first Update call.
	Init(title string) error

	// Update polls input, applies Press/Release to m, renders m's most
	// recent frame, and plays back any buffered audio. It returns false
	// once the host has asked to quit.
	Update(m *machine.Machine) (keepRunning bool, err error)

	// Close releases backend resources.
	Close() error
}
