// Package terminal implements a tcell-based Backend that renders
// status text only (running/halted, frame counter, FPS) and turns key
// events into UpdateKeyInput commands (spec §6). Pixel rendering is
// explicitly out of scope; grounded on jeebie/backend/terminal/
// terminal.go's Init/Update/event-polling shape, stripped of its
// framebuffer and debug-panel rendering.
package terminal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/valerio/go-gba/gba"
	"github.com/valerio/go-gba/gba/backend"
	"github.com/valerio/go-gba/gba/input"
)

// keyTimeout governs how long a held key is considered pressed after
// its last keydown event, since tcell (like the teacher's terminal
// backend) only delivers keydown repeats, never keyup for held keys.
const keyTimeout = 100 * time.Millisecond

// Backend implements backend.Backend using tcell for keyboard input
// and a status line, never the 240x160 framebuffer itself.
type Backend struct {
	screen tcell.Screen
	config backend.BackendConfig

	keyStates map[input.Button]time.Time

	frameCount  int
	lastFPSTime time.Time
	lastFrames  int
	fps         float64
}

func New() *Backend {
	return &Backend{keyStates: make(map[input.Button]time.Time)}
}

func (t *Backend) Init(config backend.BackendConfig) error {
	t.config = config

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	t.screen = screen
	t.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	t.screen.Clear()

	t.lastFPSTime = time.Now()
	slog.Info("terminal backend initialized")
	return nil
}

// Update polls tcell events, folds held keys into a single
// UpdateKeyInput command, and redraws the status line.
func (t *Backend) Update(g *gba.GBA) error {
	now := time.Now()

	for t.screen.HasPendingEvent() {
		ev := t.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			t.processKeyEvent(ev, now)
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}

	var mask uint16
	for btn, last := range t.keyStates {
		if now.Sub(last) < keyTimeout {
			mask |= 1 << uint(btn)
		} else {
			delete(t.keyStates, btn)
		}
	}
	// UpdateKeyInput takes "1 = released" (spec §6); mask here is
	// "1 = held", so invert before pushing.
	g.Push(gba.Command{Kind: gba.CmdUpdateKeyInput, KeyMask: ^mask & 0x3FF})

	t.frameCount++
	if now.Sub(t.lastFPSTime) >= time.Second {
		t.fps = float64(t.frameCount-t.lastFrames) / now.Sub(t.lastFPSTime).Seconds()
		t.lastFrames = t.frameCount
		t.lastFPSTime = now
	}

	t.render(g)
	t.screen.Show()
	return nil
}

func (t *Backend) Cleanup() error {
	if t.screen != nil {
		t.screen.Fini()
	}
	return nil
}

func (t *Backend) processKeyEvent(ev *tcell.EventKey, now time.Time) {
	name := tcellKeyName(ev)
	if name == "" {
		return
	}
	if name == "Escape" || ev.Key() == tcell.KeyCtrlC {
		if t.config.Callbacks.OnQuit != nil {
			t.config.Callbacks.OnQuit()
		}
		return
	}
	if btn, ok := input.DefaultKeyMap[name]; ok {
		t.keyStates[btn] = now
	}
}

var tcellSpecialKeyNames = map[tcell.Key]string{
	tcell.KeyEnter:     "Enter",
	tcell.KeyBackspace: "Backspace",
	tcell.KeyBackspace2: "Backspace",
	tcell.KeyUp:        "Up",
	tcell.KeyDown:      "Down",
	tcell.KeyLeft:      "Left",
	tcell.KeyRight:     "Right",
	tcell.KeyEscape:    "Escape",
}

func tcellKeyName(ev *tcell.EventKey) string {
	if name, ok := tcellSpecialKeyNames[ev.Key()]; ok {
		return name
	}
	if ev.Key() == tcell.KeyRune {
		return string(ev.Rune())
	}
	return ""
}

func (t *Backend) render(g *gba.GBA) {
	t.screen.Clear()
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)

	status := "RUNNING"
	if !g.Running() {
		status = "STOPPED"
	}

	lines := []string{
		fmt.Sprintf(" %s ", t.config.Title),
		fmt.Sprintf("Status: %s", status),
		fmt.Sprintf("Frame:  %d", t.frameCount),
		fmt.Sprintf("FPS:    %.1f", t.fps),
	}
	for y, line := range lines {
		for x, ch := range line {
			t.screen.SetContent(x, y, ch, nil, style)
		}
	}
}
