// Command goba runs the Game Boy Advance core headless or with a
// frontend (terminal, or SDL2 behind -tags sdl2). Grounded on
// cmd/jeebie/main.go's urfave/cli flag set and headless/interactive
// split.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli"
	"github.com/valerio/go-gba/gba"
	"github.com/valerio/go-gba/gba/backend"
	"github.com/valerio/go-gba/gba/backend/terminal"
	"github.com/valerio/go-gba/gba/timing"
)

func main() {
	app := cli.NewApp()
	app.Name = "goba"
	app.Description = "A Game Boy Advance emulator core"
	app.Usage = "goba [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "rom", Usage: "Path to the ROM file"},
		cli.StringFlag{Name: "bios", Usage: "Path to a 16KiB GBA BIOS image (optional; HLE runs regardless)"},
		cli.BoolFlag{Name: "hle", Usage: "Run the BIOS in high-level emulation (the only mode supported)"},
		cli.BoolFlag{Name: "headless", Usage: "Run without a frontend"},
		cli.IntFlag{Name: "frames", Usage: "Number of frames to run in headless mode (required for headless)"},
		cli.IntFlag{Name: "snapshot-interval", Usage: "Save framebuffer PNGs every N frames in headless mode (0 = disabled)"},
		cli.StringFlag{Name: "snapshot-dir", Usage: "Directory to save snapshots (default: temp directory)"},
		cli.StringFlag{Name: "save", Usage: "Path to a save-memory sidecar file, loaded at start and written at exit"},
		cli.BoolFlag{Name: "sdl2", Usage: "Use the SDL2 frontend instead of the terminal one (requires a build with -tags sdl2)"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("goba exited with an error", "error", err)
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

	if c.IsSet("hle") && !c.Bool("hle") {
		slog.Warn("this build only implements the BIOS in HLE; --hle=false has no effect")
	}

	g := gba.New()
	if err := g.LoadRom(romPath); err != nil {
		return err
	}
	if biosPath := c.String("bios"); biosPath != "" {
		if err := g.LoadBios(biosPath); err != nil {
			return err
		}
	}

	savePath := c.String("save")
	if savePath != "" {
		if err := loadSave(g, savePath); err != nil {
			slog.Warn("failed to load save file, starting with a blank one", "path", savePath, "error", err)
		}
		defer func() {
			if err := writeSave(g, savePath); err != nil {
				slog.Error("failed to write save file", "path", savePath, "error", err)
			}
		}()
	}

	g.Reset()
	g.Start()

	if c.Bool("headless") {
		frames := c.Int("frames")
		if frames <= 0 {
			return errors.New("headless mode requires --frames with a positive value")
		}

		snapshotInterval := c.Int("snapshot-interval")
		snapshot, err := backend.CreateSnapshotConfig(snapshotInterval, c.String("snapshot-dir"), romPath)
		if err != nil {
			return err
		}

		// HeadlessBackend.Update drives g.StepFrame() itself, so a single
		// goroutine suffices: there's no independent UI worker to pace
		// separately from emulation.
		return runBackend(g, backend.NewHeadlessBackend(frames, snapshot), backend.BackendConfig{Title: "goba"}, false)
	}

	// Interactive frontends only poll input and render; the emulation
	// worker runs on its own goroutine, paced to the GBA's real frame
	// rate, per the two-worker model the command queue and audio ring
	// exist to support.
	var frontend backend.Backend = terminal.New()
	if c.Bool("sdl2") {
		frontend = backend.NewSDL2Backend()
	}
	return runBackend(g, frontend, backend.BackendConfig{Title: "goba", ShowDebug: true}, true)
}

func runBackend(g *gba.GBA, b backend.Backend, config backend.BackendConfig, driveEmulation bool) error {
	quit := make(chan struct{})
	config.Callbacks.OnQuit = func() {
		select {
		case <-quit:
		default:
			close(quit)
		}
	}

	if err := b.Init(config); err != nil {
		return err
	}
	defer b.Cleanup()

	if driveEmulation {
		go runEmulationWorker(g, quit)
	}

	uiLimiter := timing.NewAdaptiveLimiter()
	for {
		select {
		case <-quit:
			g.StopImmediate()
			return nil
		default:
		}
		if err := b.Update(g); err != nil {
			return err
		}
		if driveEmulation {
			uiLimiter.WaitForNextFrame()
		}
	}
}

// runEmulationWorker paces g.StepFrame() to the GBA's real-time frame
// rate, standing in for the emulation worker goroutine spec §5
// describes; the UI-side Backend.Update loop only ever polls input
// and renders, never steps the CPU itself.
func runEmulationWorker(g *gba.GBA, quit <-chan struct{}) {
	limiter := timing.NewAdaptiveLimiter()
	for g.Running() {
		select {
		case <-quit:
			return
		default:
		}
		limiter.WaitForNextFrame()
		g.StepFrame()
	}
}

func loadSave(g *gba.GBA, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	c := g.Bus.Cart()
	if c == nil || c.Save == nil {
		return fmt.Errorf("no save-memory backing for the loaded cart")
	}
	c.Save.Restore(data)
	return nil
}

func writeSave(g *gba.GBA, path string) error {
	c := g.Bus.Cart()
	if c == nil || c.Save == nil {
		return nil
	}
	return os.WriteFile(path, c.Save.Snapshot(), 0o644)
}
