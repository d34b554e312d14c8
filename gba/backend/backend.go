// Package backend defines the UI-side contract a frontend (headless,
// terminal, SDL2) implements against a running *gba.GBA: poll input,
// render or report status, and signal quit. Grounded on
// jeebie/backend/backend.go's Backend interface, narrowed from
// jeebie's frame-in/events-out shape to one where a backend talks to
// the emulator's own command queue directly (§6), since every input
// and lifecycle action the GBA accepts is already a Command rather
// than a callback the core must expose bespoke hooks for.
package backend

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/valerio/go-gba/gba"
)

// BackendCallbacks lets a backend notify its host of lifecycle events
// it cannot express through the command queue alone.
type BackendCallbacks struct {
	OnQuit func()
}

// BackendConfig holds configuration shared by every backend
// implementation. Backends may ignore fields they don't support.
type BackendConfig struct {
	Title     string
	ShowDebug bool
	Callbacks BackendCallbacks
}

// Backend represents a complete frontend driving a *gba.GBA: polling
// platform input and feeding it to the command queue, and presenting
// (or reporting on) the emulator's state.
type Backend interface {
	// Init configures the backend. Required before calling Update.
	Init(config BackendConfig) error

	// Update runs one iteration against the running emulator: poll
	// input, translate it into commands pushed onto g, and render or
	// report status.
	Update(g *gba.GBA) error

	// Cleanup releases backend resources on shutdown.
	Cleanup() error
}

// SnapshotConfig configures periodic PNG framebuffer dumps, used by
// backends that support it (headless, sdl2).
type SnapshotConfig struct {
	Enabled   bool
	Interval  int // save a snapshot every Interval frames
	Directory string
	ROMName   string
}

// CreateSnapshotConfig builds a SnapshotConfig from CLI parameters,
// creating the target directory (a temp one if none is given).
// Grounded on jeebie/backend/headless.go's CreateSnapshotConfig.
func CreateSnapshotConfig(interval int, directory, romPath string) (SnapshotConfig, error) {
	config := SnapshotConfig{Enabled: interval > 0, Interval: interval}
	if !config.Enabled {
		return config, nil
	}

	if directory == "" {
		tempDir, err := os.MkdirTemp("", "goba-snapshots-*")
		if err != nil {
			return config, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		config.Directory = tempDir
	} else {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return config, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		config.Directory = directory
	}

	config.ROMName = filepath.Base(romPath)
	config.ROMName = strings.TrimSuffix(config.ROMName, filepath.Ext(config.ROMName))

	return config, nil
}

const (
	framebufferWidth  = 240
	framebufferHeight = 160
)

// SaveFramebufferPNG encodes a BGR555 framebuffer (as returned by
// ppu.PPU.Framebuffer) as an RGBA PNG under directory, timestamped.
// Grounded on jeebie/debug/snapshot.go's SaveFramePNGToDir, retargeted
// from the GB's 2-bit grayscale palette to the GBA's 15-bit BGR555
// pixel format.
func SaveFramebufferPNG(pixels []uint16, baseName, directory string) error {
	img := image.NewRGBA(image.Rect(0, 0, framebufferWidth, framebufferHeight))
	for i, px := range pixels {
		r, g, b := bgr555ToRGB8(px)
		idx := i * 4
		img.Pix[idx] = r
		img.Pix[idx+1] = g
		img.Pix[idx+2] = b
		img.Pix[idx+3] = 0xFF
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s.png", baseName, timestamp)
	filePath := filepath.Join(directory, filename)

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", filePath, err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

// bgr555ToRGB8 expands a 5-bit-per-channel BGR555 pixel to 8-bit RGB by
// replicating the top 3 bits into the low 3 (the standard GBA-to-RGB888
// upconversion: channel*8 + channel/4).
func bgr555ToRGB8(px uint16) (r, g, b uint8) {
	r5 := uint8(px & 0x1F)
	g5 := uint8((px >> 5) & 0x1F)
	b5 := uint8((px >> 10) & 0x1F)
	r = r5<<3 | r5>>2
	g = g5<<3 | g5>>2
	b = b5<<3 | b5>>2
	return
}
