// Command dmgcore runs a ROM against the core, rendering through a
// selectable frontend. Grounded on the teacher (valerio/go-jeebie)'s root
// main.go: urfave/cli flag parsing, a 60Hz ticker loop, and signal-driven
// shutdown.
package main

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/kestrelgb/dmgcore/core/machine"
	"github.com/kestrelgb/dmgcore/frontend"
	"github.com/kestrelgb/dmgcore/frontend/sdlfrontend"
	"github.com/kestrelgb/dmgcore/frontend/terminal"
)

const frameInterval = time.Second / 60

func main() {
	app := cli.NewApp()
	app.Name = "dmgcore"
	app.Usage = "dmgcore [options] <ROM file>"
	app.Description = "A DMG-class emulator core with terminal and SDL2 frontends"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "rom", Usage: "path to the ROM file"},
		cli.StringFlag{Name: "backend", Value: "terminal", Usage: "rendering backend: terminal or sdl2"},
		cli.IntFlag{Name: "sample-rate", Value: 44100, Usage: "host audio sample rate"},
		cli.IntFlag{Name: "audio-ring", Value: 4096, Usage: "audio sample ring capacity"},
		cli.StringFlag{Name: "save", Usage: "battery save path (defaults to <rom>.sav)"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("dmgcore exited with error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() > 0 {
			romPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
	}

	romBytes, err := os.ReadFile(romPath)
	if err != nil {
		return err
	}

	m, err := machine.New(romBytes, c.Int("sample-rate"), c.Int("audio-ring"))
	if err != nil {
		return err
	}

	savePath := c.String("save")
	if savePath == "" {
		savePath = romPath + ".sav"
	}
	if saved, err := os.ReadFile(savePath); err == nil {
		if err := m.LoadRAM(saved); err != nil {
			slog.Warn("failed to load save RAM", "path", savePath, "error", err)
		} else {
			slog.Info("loaded save RAM", "path", savePath)
		}
	}

	var backend frontend.Backend
	switch c.String("backend") {
	case "sdl2":
		backend = sdlfrontend.New()
	default:
		backend = terminal.New()
	}

	if err := backend.Init("dmgcore"); err != nil {
		return err
	}
	defer backend.Close()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.RunFrame()
			keepRunning, err := backend.Update(m)
			if err != nil {
				return err
			}
			if !keepRunning {
				return persistSave(m, savePath)
			}
		case <-signals:
			slog.Info("received shutdown signal")
			return persistSave(m, savePath)
		}
	}
}

func persistSave(m *machine.Machine, path string) error {
	data := m.SaveRAM()
	if data == nil {
		return nil
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	slog.Info("saved cartridge RAM", "path", path)
	return nil
}
