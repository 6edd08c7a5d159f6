// Package ps2 implements the keyboard side of the PS/2 protocol on top of
// the bus driver: power-on self test, host command handling and scan code
// transmission.
package ps2

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/bus"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/logging"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/queue"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/typematic"
)

// DefaultBATDelay is the pause between power-on and the BAT success code.
// Hosts expect 500..750ms.
const DefaultBATDelay = 550 * time.Millisecond

// Bus is the part of bus.Driver the engine uses.
type Bus interface {
	SendByte(b byte)
	IsIdle() bool
	SendStatus() bus.Status
	ReceiveStatus() bus.Status
	ClearReceiveStatus()
	ReceivedByte() (byte, bool)
	Snapshot() bus.Snapshot
}

// LEDSink receives the keyboard LED state in PS/2 bit order (bit 0 Scroll
// Lock, bit 1 Num Lock, bit 2 Caps Lock).
type LEDSink interface {
	SetLEDs(leds uint8)
}

// Monitor observes bus traffic. Both methods run in the polling loop.
type Monitor interface {
	// HostByte is called for every byte received from the host.
	HostByte(b byte)
	// DeviceByte is called for every byte handed to the bus driver.
	DeviceByte(b byte)
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	BATDelay time.Duration
	LEDs     LEDSink
	Monitor  Monitor
	Now      func() time.Time
}

// Status is a summary of the engine published after every Step.
type Status struct {
	State     State
	Enabled   bool
	Busy      bool
	LEDs      uint8
	Typematic uint8
	// Commands counts bytes received from the host.
	Commands uint32
	// Failures counts received bytes rejected for parity or framing.
	Failures uint32
	// Frames counts scan code frames fully transmitted.
	Frames uint32
	// Retransmits counts sends restarted after the host inhibited the bus.
	Retransmits uint32
}

type scheduler struct {
	waiting bool
	sent    int
}

// Engine is the keyboard protocol state machine. Step must be called
// repeatedly from a single polling loop; Status may be called from anywhere.
type Engine struct {
	bus    Bus
	frames *queue.Frames
	timer  *typematic.Timer

	ledSink  LEDSink
	monitor  Monitor
	now      func() time.Time
	batDelay time.Duration

	state       State
	afterAck    State
	lastCommand byte
	saveCommand byte
	ledArg      byte
	leds        uint8
	batStart    time.Time

	enabled bool
	busy    bool

	sched scheduler

	commands    uint32
	failures    uint32
	sentFrames  uint32
	retransmits uint32

	mu        sync.Mutex
	published Status
}

// New returns an engine in the Initialization state. frames is drained by
// the engine and filled by the caller; timer receives Set Typematic Rate
// arguments.
func New(b Bus, frames *queue.Frames, timer *typematic.Timer, opts Options) *Engine {
	e := &Engine{
		bus:      b,
		frames:   frames,
		timer:    timer,
		ledSink:  opts.LEDs,
		monitor:  opts.Monitor,
		now:      opts.Now,
		batDelay: opts.BATDelay,
		state:    StateInitialization,
		afterAck: StateWaitingForCommands,
		// Key events are refused until the first pass through
		// WaitingForCommands.
		busy: true,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.batDelay == 0 {
		e.batDelay = DefaultBATDelay
	}
	e.publish()
	return e
}

// Step advances the state machine by one transition at most.
func (e *Engine) Step() {
	handlers[e.state](e)
	e.publish()
}

// Enabled reports whether the host allows scan codes to be sent.
func (e *Engine) Enabled() bool { return e.enabled }

// Busy reports whether a host command is being processed.
func (e *Engine) Busy() bool { return e.busy }

// Accepting reports whether new key events may be queued.
func (e *Engine) Accepting() bool { return e.enabled && !e.busy }

// Status returns the summary published by the last Step.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.published
}

func (e *Engine) publish() {
	s := Status{
		State:       e.state,
		Enabled:     e.enabled,
		Busy:        e.busy,
		LEDs:        e.leds,
		Typematic:   e.timer.Arg(),
		Commands:    e.commands,
		Failures:    e.failures,
		Frames:      e.sentFrames,
		Retransmits: e.retransmits,
	}
	e.mu.Lock()
	e.published = s
	e.mu.Unlock()
}

func (e *Engine) send(b byte) {
	if e.monitor != nil {
		e.monitor.DeviceByte(b)
	}
	e.bus.SendByte(b)
}

func (e *Engine) setLEDs(leds uint8) {
	e.leds = leds
	if e.ledSink != nil {
		e.ledSink.SetLEDs(leds)
	}
}

// clearFrames drops every queued scan code, including a frame that was
// partly transmitted.
func (e *Engine) clearFrames() {
	e.frames.Clear()
	e.sched = scheduler{}
}

// typeNextScanCode sends the first queued frame one byte per call. A frame
// is removed only after every byte went out; an interrupted byte restarts
// the whole frame.
func (e *Engine) typeNextScanCode() {
	count, ready := e.frames.Head()
	if !ready {
		return
	}
	if !e.bus.IsIdle() {
		return
	}

	if e.sched.sent < count {
		if !e.sched.waiting {
			e.send(e.frames.Payload(e.sched.sent))
			e.sched.waiting = true
			return
		}

		e.sched.waiting = false
		switch e.bus.SendStatus() {
		case bus.Complete:
			e.sched.sent++
		case bus.Interrupted:
			e.retransmits++
			e.sched.sent = 0
		}
		if e.sched.sent != count {
			return
		}
	}

	e.sched.sent = 0
	e.frames.RemoveHead()
	e.sentFrames++
	if logging.Enabled(slog.LevelDebug) {
		logging.Debug(logging.ComponentEngine, "frame sent", "len", count)
	}
}
