package backend

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/valerio/go-gba/gba"
)

// HeadlessBackend drives the emulator frame-by-frame with no platform
// window, for batch processing and test-ROM automation. Grounded on
// jeebie/backend/headless.go.
type HeadlessBackend struct {
	config     BackendConfig
	maxFrames  int
	frameCount int
	snapshot   SnapshotConfig
}

func NewHeadlessBackend(maxFrames int, snapshot SnapshotConfig) *HeadlessBackend {
	return &HeadlessBackend{maxFrames: maxFrames, snapshot: snapshot}
}

func (h *HeadlessBackend) Init(config BackendConfig) error {
	h.config = config

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(handler))

	slog.Info("running headless",
		"frames", h.maxFrames,
		"snapshot_interval", h.snapshot.Interval,
		"snapshot_dir", h.snapshot.Directory)
	return nil
}

// Update runs exactly one frame to completion (StepFrame blocks until
// the PPU's V-blank hook marks a frame ready, or the worker stops) and
// reports progress / saves the periodic snapshot.
func (h *HeadlessBackend) Update(g *gba.GBA) error {
	g.StepFrame()
	h.frameCount++

	if h.snapshot.Enabled && h.frameCount%h.snapshot.Interval == 0 {
		h.saveSnapshot(g)
	}

	if h.frameCount%10 == 0 {
		slog.Info("frame progress", "completed", h.frameCount, "total", h.maxFrames)
	}

	if h.frameCount >= h.maxFrames {
		if h.snapshot.Enabled && h.frameCount%h.snapshot.Interval != 0 {
			h.saveSnapshot(g)
		}
		slog.Info("headless run complete", "frames", h.frameCount)
		if h.config.Callbacks.OnQuit != nil {
			h.config.Callbacks.OnQuit()
		}
	}

	return nil
}

func (h *HeadlessBackend) Cleanup() error { return nil }

func (h *HeadlessBackend) saveSnapshot(g *gba.GBA) {
	baseName := fmt.Sprintf("%s_frame_%d", h.snapshot.ROMName, h.frameCount)
	if err := SaveFramebufferPNG(g.PPU.Framebuffer(), baseName, h.snapshot.Directory); err != nil {
		slog.Error("failed to save snapshot", "frame", h.frameCount, "error", err)
	}
}
