// Package gba wires the scheduler, bus and every device into the
// single owned emulator state (spec §9 "single owned state") and
// implements the two-worker concurrency model spec §5 describes: an
// emulation worker that owns the CPU/bus/scheduler/devices, and a
// command queue + audio ring through which a UI worker talks to it.
// Grounded on jeebie/core.go's Emulator (RunUntilFrame loop shape,
// sync.RWMutex-guarded cross-thread state) and jeebie/events/events.go
// (buffered-channel cross-thread handoff), generalized from a single
// debugger-state-machine mutex to the three synchronization primitives
// spec §5 names: command queue, audio ring, frame-ready flag.
package gba

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/valerio/go-gba/gba/addr"
	"github.com/valerio/go-gba/gba/apu"
	"github.com/valerio/go-gba/gba/bus"
	"github.com/valerio/go-gba/gba/cart"
	"github.com/valerio/go-gba/gba/cpu"
	"github.com/valerio/go-gba/gba/dma"
	"github.com/valerio/go-gba/gba/hlebios"
	"github.com/valerio/go-gba/gba/input"
	"github.com/valerio/go-gba/gba/irq"
	"github.com/valerio/go-gba/gba/ppu"
	"github.com/valerio/go-gba/gba/scheduler"
	"github.com/valerio/go-gba/gba/timer"
)

// AudioSampleRate is the external audio stream's fixed rate (spec §6).
const AudioSampleRate = 32768

// audioRingCapacity is the shared audio ring's fixed size, in stereo
// sample pairs (spec §5).
const audioRingCapacity = 2048

// CommandKind identifies one entry of the UI->emulation command queue
// (spec §5/§6).
type CommandKind int

const (
	CmdStart CommandKind = iota
	CmdStop
	CmdReset
	CmdLoadRom
	CmdLoadBios
	CmdUpdateKeyInput
	CmdClearLog
)

// Command is one entry of the single-producer command queue. Only the
// fields relevant to Kind are read.
type Command struct {
	Kind CommandKind

	Path string // LoadRom, LoadBios

	// KeyMask is the inverted 10-bit KEYINPUT-shaped mask UpdateKeyInput
	// carries (spec §6: "16-bit mask, inverted — 1 = released").
	KeyMask uint16

	// Delay optionally defers a Stop by this many scheduler cycles
	// instead of honoring it immediately (spec §6 "Stop (with optional
	// delay cycles)").
	Delay uint64
}

// GBA is the single owned emulator instance: scheduler, bus and every
// device, mutated only by the emulation worker (spec §9). The command
// queue and audio ring are the only state the UI worker touches
// directly, both mutex-guarded.
type GBA struct {
	Scheduler *scheduler.Scheduler
	Bus       *bus.Bus
	CPU       *cpu.CPU
	BIOS      *hlebios.BIOS
	DMA       *dma.Engine
	Timers    *timer.Array
	PPU       *ppu.PPU
	APU       *apu.APU
	IRQ       *irq.Controller
	Keypad    *input.Keypad

	// running tracks whether the emulation worker is currently executing.
	// It is only ever written by the emulation worker itself (applying a
	// drained command); an atomic lets other goroutines read it (e.g. a
	// backend's status display) without a dedicated mutex.
	running atomic.Bool

	commandMu   sync.Mutex
	commandCond *sync.Cond
	commands    []Command

	screenMu     sync.Mutex
	updateScreen bool

	audioMu   sync.Mutex
	audioCond *sync.Cond
	audioBuf  [audioRingCapacity * 2]int16 // interleaved L/R
	audioHead int
	audioLen  int // samples (not pairs) currently buffered

	log *slog.Logger
}

// New wires a fresh GBA: every device constructed, registered onto the
// bus's I/O dispatch table over its register window, and the scheduler
// armed for the PPU's and APU's first events.
func New() *GBA {
	g := &GBA{Scheduler: scheduler.New(), log: slog.Default()}
	g.commandCond = sync.NewCond(&g.commandMu)
	g.audioCond = sync.NewCond(&g.audioMu)

	g.Bus = bus.New()
	// HLE replaces every canonical BIOS address with a trampoline (spec
	// §4.4); the backing bytes are never executed, only fetched as
	// pipeline filler, so a zeroed image is sufficient until/unless a
	// real BIOS file is loaded for its size-contract side effects.
	g.Bus.LoadBIOS(make([]byte, 16*1024))

	g.IRQ = irq.New()
	g.CPU = cpu.New(g.Bus, g.IRQ)
	g.BIOS = hlebios.New(g.CPU)
	// spec §7's three documented fatal conditions (undefined opcode,
	// unknown SWI, unknown BIOS branch target) are reported here, not
	// inside gba/cpu or gba/hlebios: logging and stopping the worker are
	// both properties of the running emulator, not of the CPU core
	// itself, which stays usable standalone (e.g. in tests) without a
	// hook installed.
	g.CPU.OnFatal = func(reason string) {
		g.log.Error("fatal CPU condition, halting emulation", "reason", reason, "pc", g.CPU.Regs.PC())
		g.running.Store(false)
	}
	g.DMA = dma.New(g.Bus, g.IRQ)
	g.Keypad = input.New(g.IRQ)
	g.Timers = timer.New(g.Scheduler, g.IRQ, g.onTimerOverflow)
	g.APU = apu.New(g.onAPUFIFORequest)
	g.PPU = ppu.New(g.IRQ, g.Bus.PeekVRAM(), g.Bus.PeekPalette(), g.Bus.PeekOAM(), g.onVBlank, g.onHBlank)

	g.Bus.RegisterIO(addr.DISPCNT, addr.BG3CNT+2, g.PPU)
	g.Bus.RegisterIO(addr.SOUND1CNT_L, addr.FIFO_B+4, g.APU)
	g.Bus.RegisterIO(addr.DMA0SAD, addr.DMA3CNT+4, g.DMA)
	g.Bus.RegisterIO(addr.TM0D, addr.TM3CNT+2, g.Timers)
	g.Bus.RegisterIO(addr.IE, addr.WAITCNT, g.IRQ) // covers IE (0x200) and IF (0x202)
	g.Bus.RegisterIO(addr.IME, addr.IME+1, g.IRQ)
	g.Bus.RegisterIO(addr.KEYINPUT, addr.KEYCNT+2, g.Keypad)

	g.PPU.Reset(g.Scheduler)
	g.APU.Reset(g.Scheduler)
	g.CPU.Reset()

	return g
}

func (g *GBA) onVBlank() {
	g.DMA.OnVBlank()
	g.screenMu.Lock()
	g.updateScreen = true
	g.screenMu.Unlock()
}

func (g *GBA) onHBlank() { g.DMA.OnHBlank() }

func (g *GBA) onTimerOverflow(timerIndex int) { g.APU.OnTimerOverflow(timerIndex) }

func (g *GBA) onAPUFIFORequest(fifoChannel int) { g.DMA.OnFIFORequest(fifoChannel) }

// ConsumeFrameReady reports whether a new frame has been composited
// since the last call and clears the flag (spec §5 "updateScreen").
func (g *GBA) ConsumeFrameReady() bool {
	g.screenMu.Lock()
	defer g.screenMu.Unlock()
	ready := g.updateScreen
	g.updateScreen = false
	return ready
}

// Reset resets all device state atomically from the emulation worker
// (spec §5: "never from UI") and drives the HLE reset trampoline so
// execution resumes at the cart's entry point exactly as spec §8
// scenario 1 describes.
func (g *GBA) Reset() {
	g.Scheduler.Reset()
	g.Bus.Reset()
	g.IRQ.Reset()
	g.DMA.Reset()
	g.Timers.Reset()
	g.PPU.Reset(g.Scheduler)
	g.APU.Reset(g.Scheduler)
	g.Keypad.Reset()

	g.CPU.Reset()
	g.CPU.OnTrampoline(addr.BiosReset)

	g.screenMu.Lock()
	g.updateScreen = false
	g.screenMu.Unlock()

	g.audioMu.Lock()
	g.audioHead, g.audioLen = 0, 0
	g.audioMu.Unlock()
}

// Push enqueues a command from the UI worker. Safe to call from any
// goroutine; Push is the queue's only producer-side entry point (spec
// §5: "single-producer command queue").
func (g *GBA) Push(c Command) {
	g.commandMu.Lock()
	g.commands = append(g.commands, c)
	g.commandMu.Unlock()
	g.commandCond.Broadcast()
}

// Start and Stop are thin sugar over Push for the two commands that
// need no payload in the common case.
func (g *GBA) Start()         { g.Push(Command{Kind: CmdStart}) }
func (g *GBA) StopImmediate() { g.Push(Command{Kind: CmdStop}) }

// drainCommands pulls every queued command and applies it, in order,
// on the emulation worker. When block is true and nothing is queued
// while stopped, it parks on the queue's condition variable instead of
// busy-spinning (spec §5 suspension point (a)).
func (g *GBA) drainCommands(block bool) {
	g.commandMu.Lock()
	for block && len(g.commands) == 0 && !g.running.Load() {
		g.commandCond.Wait()
	}
	pending := g.commands
	g.commands = nil
	g.commandMu.Unlock()

	for _, c := range pending {
		g.applyCommand(c)
	}
}

func (g *GBA) applyCommand(c Command) {
	switch c.Kind {
	case CmdStart:
		g.running.Store(true)
	case CmdStop:
		if c.Delay == 0 {
			g.running.Store(false)
		} else {
			g.Scheduler.Add(c.Delay, scheduler.EventCustom, func(any) { g.running.Store(false) }, nil, false)
		}
	case CmdReset:
		g.Reset()
	case CmdLoadRom:
		if err := g.LoadRom(c.Path); err != nil {
			g.log.Error("failed to load ROM", "path", c.Path, "err", err)
			g.running.Store(false)
		}
	case CmdLoadBios:
		if err := g.LoadBios(c.Path); err != nil {
			g.log.Error("failed to load BIOS", "path", c.Path, "err", err)
		}
	case CmdUpdateKeyInput:
		g.Keypad.SetPressed(^c.KeyMask & 0x3FF)
	case CmdClearLog:
		g.log.Info("log cleared")
	}
}

// LoadRom reads a raw cartridge image, rounds its size up to the next
// power of two (spec §6), and attaches it as the active cart.
func (g *GBA) LoadRom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rom: %w", err)
	}
	if len(data) > 32*1024*1024 {
		return fmt.Errorf("rom %q exceeds the 32MiB limit", path)
	}

	padded := make([]byte, nextPowerOfTwo(len(data)))
	copy(padded, data)

	c, err := cart.New(padded)
	if err != nil {
		return fmt.Errorf("parse cart: %w", err)
	}
	g.Bus.LoadCart(c)
	g.log.Info("loaded ROM", "path", path, "size", len(data), "padded", len(padded), "save_type", c.SaveType)
	return nil
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// LoadBios reads a BIOS image and validates its size against spec §6's
// external-interface contract. Real BIOS bytes are never interpreted
// (HLE covers every canonical BIOS address, spec §4.4): a mismatched
// size is logged, not a fallback, since there is no non-HLE mode to
// fall back to.
func (g *GBA) LoadBios(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read bios: %w", err)
	}
	if len(data) != 16*1024 {
		g.log.Warn("BIOS file is not 16384 bytes; running HLE regardless", "path", path, "size", len(data))
	}
	g.Bus.LoadBIOS(data)
	return nil
}

// tick is the emulation worker's inner-loop body: drain one command
// batch, then either fast-forward through a halted CPU's next
// scheduled event (suspension point (c)) or execute exactly one
// instruction, advancing the scheduler and draining due events by the
// ordering spec §5 describes (CPU effects, then events due at the
// post-cycle `now`, in insertion order).
func (g *GBA) tick(block bool) {
	g.drainCommands(block)
	if !g.running.Load() {
		return
	}

	for g.Bus.Halted() || g.Bus.Stopped() {
		if g.IRQ.Pending() && !g.CPU.Regs.IRQDisabled() {
			break
		}
		skip := g.Scheduler.CyclesUntilNext()
		if skip == 0 {
			skip = 1
		}
		g.Scheduler.Advance(skip)
		g.Scheduler.DrainDue()
		g.pumpAudio()
		if !g.running.Load() {
			return
		}
	}

	cycles := g.CPU.Step()
	g.Scheduler.Advance(cycles)
	g.Scheduler.DrainDue()
	g.pumpAudio()
}

func (g *GBA) pumpAudio() {
	if samples := g.APU.DrainSamples(); len(samples) > 0 {
		g.pushAudioSamples(samples)
	}
}

// pushAudioSamples writes freshly produced samples into the shared
// ring, blocking on the ring's condition variable when full (spec §5
// suspension point (b): "the emulation worker pauses until the UI
// drains").
func (g *GBA) pushAudioSamples(samples []int16) {
	g.audioMu.Lock()
	defer g.audioMu.Unlock()

	for _, s := range samples {
		for g.audioLen == len(g.audioBuf) && g.running.Load() {
			g.audioCond.Wait()
		}
		if !g.running.Load() {
			return
		}
		idx := (g.audioHead + g.audioLen) % len(g.audioBuf)
		g.audioBuf[idx] = s
		g.audioLen++
	}
	g.audioCond.Broadcast()
}

// ReadSamples is called from the UI worker's audio callback: it pops up
// to max samples currently buffered (fewer if the ring isn't full) and
// wakes any write blocked on back-pressure.
func (g *GBA) ReadSamples(max int) []int16 {
	g.audioMu.Lock()
	defer g.audioMu.Unlock()

	n := max
	if n > g.audioLen {
		n = g.audioLen
	}
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = g.audioBuf[(g.audioHead+i)%len(g.audioBuf)]
	}
	g.audioHead = (g.audioHead + n) % len(g.audioBuf)
	g.audioLen -= n
	g.audioCond.Broadcast()
	return out
}

// Run is the emulation worker's entry point: meant to be launched in
// its own goroutine, it loops forever, parking on the command queue
// whenever stopped (spec §5: a Stop "parks" the worker, it does not
// terminate it).
func (g *GBA) Run() {
	for {
		g.tick(true)
	}
}

// StepInstruction drains pending commands without blocking and, if
// running, executes one inner-loop iteration. Used by headless/test
// callers that drive the emulator synchronously rather than running
// Run in its own goroutine.
func (g *GBA) StepInstruction() {
	g.tick(false)
}

// StepFrame runs StepInstruction until a new frame is ready or the
// worker stops running, whichever happens first.
func (g *GBA) StepFrame() {
	for g.running.Load() {
		g.StepInstruction()
		if g.ConsumeFrameReady() {
			return
		}
	}
}

// Running reports whether the emulation worker is currently executing
// (as opposed to parked after Stop or before the first Start).
func (g *GBA) Running() bool {
	return g.running.Load()
}
