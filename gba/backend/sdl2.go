//go:build sdl2

package backend

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/valerio/go-gba/gba"
	"github.com/valerio/go-gba/gba/input"
	"github.com/veandco/go-sdl2/sdl"
)

const (
	windowScale = 3
	audioFreq   = gba.AudioSampleRate
)

// SDL2Backend implements Backend with real pixel rendering and audio
// playback. Building it requires SDL2 development libraries; default
// builds use the stub in sdl2_stub.go instead. Grounded on
// jeebie/backend/sdl2.go, retargeted from the GB's 160x144 2-bit
// grayscale framebuffer to the GBA's 240x160 BGR555 one and from
// jeebie's push/release callback pair to a held-key bitmask pushed as
// a single UpdateKeyInput command per frame, matching the command
// queue's external interface (spec §6).
type SDL2Backend struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	audioDev sdl.AudioDeviceID

	config    BackendConfig
	running   bool
	keyStates map[input.Button]bool
}

func NewSDL2Backend() *SDL2Backend {
	return &SDL2Backend{keyStates: make(map[input.Button]bool)}
}

func (s *SDL2Backend) Init(config BackendConfig) error {
	s.config = config

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS | sdl.INIT_AUDIO); err != nil {
		return fmt.Errorf("failed to initialize SDL2: %w", err)
	}

	window, err := sdl.CreateWindow(
		config.Title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		framebufferWidth*windowScale, framebufferHeight*windowScale,
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		sdl.Quit()
		return fmt.Errorf("failed to create window: %w", err)
	}
	s.window = window

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	s.renderer = renderer

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_RGBA8888, sdl.TEXTUREACCESS_STREAMING, framebufferWidth, framebufferHeight)
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		sdl.Quit()
		return fmt.Errorf("failed to create texture: %w", err)
	}
	s.texture = texture

	dev, err := sdl.OpenAudioDevice("", false, &sdl.AudioSpec{
		Freq:     audioFreq,
		Format:   sdl.AUDIO_S16SYS,
		Channels: 2,
		Samples:  1024,
	}, nil, 0)
	if err != nil {
		slog.Warn("failed to open SDL2 audio device, running without sound", "error", err)
	} else {
		s.audioDev = dev
		sdl.PauseAudioDevice(dev, false)
	}

	s.running = true
	slog.Info("SDL2 backend initialized")
	return nil
}

func (s *SDL2Backend) Update(g *gba.GBA) error {
	if !s.running {
		return nil
	}

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		s.handleEvent(event)
	}
	if !s.running {
		return nil
	}

	var mask uint16
	for btn, held := range s.keyStates {
		if held {
			mask |= 1 << uint(btn)
		}
	}
	g.Push(gba.Command{Kind: gba.CmdUpdateKeyInput, KeyMask: ^mask & 0x3FF})

	s.renderFrame(g.PPU.Framebuffer())

	if s.audioDev != 0 {
		samples := g.ReadSamples(2048)
		if len(samples) > 0 {
			sdl.QueueAudio(s.audioDev, int16SliceToBytes(samples))
		}
	}

	return nil
}

func (s *SDL2Backend) Cleanup() error {
	slog.Info("cleaning up SDL2 backend")
	if s.audioDev != 0 {
		sdl.CloseAudioDevice(s.audioDev)
	}
	if s.texture != nil {
		s.texture.Destroy()
	}
	if s.renderer != nil {
		s.renderer.Destroy()
	}
	if s.window != nil {
		s.window.Destroy()
	}
	sdl.Quit()
	return nil
}

func (s *SDL2Backend) handleEvent(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		s.quit()
	case *sdl.KeyboardEvent:
		name, ok := sdlKeyName(e.Keysym.Sym)
		if !ok {
			return
		}
		if name == "Escape" {
			if e.Type == sdl.KEYDOWN {
				s.quit()
			}
			return
		}
		if btn, ok := input.DefaultKeyMap[name]; ok {
			s.keyStates[btn] = e.Type == sdl.KEYDOWN
		}
	}
}

func (s *SDL2Backend) quit() {
	s.running = false
	if s.config.Callbacks.OnQuit != nil {
		s.config.Callbacks.OnQuit()
	}
}

var sdlKeyNames = map[sdl.Keycode]string{
	sdl.K_RETURN:    "Enter",
	sdl.K_BACKSPACE: "Backspace",
	sdl.K_UP:        "Up",
	sdl.K_DOWN:      "Down",
	sdl.K_LEFT:      "Left",
	sdl.K_RIGHT:     "Right",
	sdl.K_ESCAPE:    "Escape",
	sdl.K_z:         "z",
	sdl.K_x:         "x",
	sdl.K_s:         "s",
	sdl.K_a:         "a",
}

func sdlKeyName(key sdl.Keycode) (string, bool) {
	name, ok := sdlKeyNames[key]
	return name, ok
}

func (s *SDL2Backend) renderFrame(pixels []uint16) {
	rgba := make([]byte, framebufferWidth*framebufferHeight*4)
	for i, px := range pixels {
		r, g, b := bgr555ToRGB8(px)
		idx := i * 4
		rgba[idx] = 0xFF
		rgba[idx+1] = b
		rgba[idx+2] = g
		rgba[idx+3] = r
	}

	s.texture.Update(nil, unsafe.Pointer(&rgba[0]), framebufferWidth*4)
	s.renderer.Clear()
	s.renderer.Copy(s.texture, nil, nil)
	s.renderer.Present()
}

func int16SliceToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}
