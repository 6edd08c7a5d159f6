package main

import (
	"errors"
	"time"

	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/bridge"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/bus"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/critical"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/hid"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/ps2"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/queue"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/sim"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/typematic"
)

const (
	// settleSteps is how many consecutive quiet polling iterations end a
	// settle.
	settleSteps = 20
	// settleLimit bounds every settle and boot in virtual time.
	settleLimit = 2 * time.Second
)

var errNoSettle = errors.New("bus did not settle")

type rigConfig struct {
	TickRate   uint32
	BATDelay   time.Duration
	Typematic  uint8
	Autorepeat bool
}

// rig wires the converter to a simulated PS/2 host on a virtual clock. Each
// polling iteration follows four bus ticks, one PS/2 clock period.
type rig struct {
	wire    *sim.Bus
	host    *sim.Host
	driver  *bus.Driver
	frames  *queue.Frames
	timer   *typematic.Timer
	engine  *ps2.Engine
	bridge  *bridge.Bridge
	tracker hid.Tracker

	clock time.Time
	tick  time.Duration
	// seen is how many received bytes drain already returned.
	seen int
	// usbLEDs is the last LED state forwarded to the keyboard.
	usbLEDs uint8
}

func newRig(c rigConfig) *rig {
	r := &rig{
		wire:  &sim.Bus{},
		clock: time.Unix(0, 0),
		tick:  time.Second / time.Duration(c.TickRate),
	}
	sec := &critical.Mutex{}
	r.host = sim.NewHost(r.wire)
	r.driver = bus.NewDriver(r.wire.Clock.Device(), r.wire.Data.Device(), sec, c.TickRate)
	r.frames = queue.NewFrames(sec)
	r.timer = typematic.New(c.TickRate)
	r.timer.SetPowerOn(c.Typematic)

	opts := bridge.Options{USB: r}
	if c.Autorepeat {
		opts.Timer = r.timer
	}
	r.bridge = bridge.New(r.frames, nil, opts)
	r.engine = ps2.New(r.driver, r.frames, r.timer, ps2.Options{
		BATDelay: c.BATDelay,
		LEDs:     r.bridge,
		Now:      func() time.Time { return r.clock },
	})
	r.bridge.SetGate(r.engine)
	return r
}

// Tick advances every tick interrupt consumer.
func (r *rig) Tick() {
	r.driver.Tick()
	r.timer.Tick()
}

func (r *rig) SetKeyboardLEDs(leds uint8) { r.usbLEDs = leds }

func (r *rig) step() {
	r.host.Run(r, 4)
	r.clock = r.clock.Add(4 * r.tick)
	r.engine.Step()
	r.bridge.Poll()
}

func (r *rig) stepsFor(d time.Duration) int {
	return int(d / (4 * r.tick))
}

// run advances virtual time by d.
func (r *rig) run(d time.Duration) {
	for n := r.stepsFor(d); n > 0; n-- {
		r.step()
	}
}

func (r *rig) quiet() bool {
	s := r.engine.Status()
	return r.host.Pending() == 0 && !r.host.Receiving() &&
		r.driver.IsIdle() && r.frames.Empty() &&
		s.State == ps2.StateWaitingForCommands && !s.Busy
}

// settle runs until nothing moves on the bus.
func (r *rig) settle() error {
	calm := 0
	for n := r.stepsFor(settleLimit); n > 0; n-- {
		r.step()
		if !r.quiet() {
			calm = 0
			continue
		}
		if calm++; calm == settleSteps {
			return nil
		}
	}
	return errNoSettle
}

// boot runs until the keyboard has sent BAT and accepts key events.
func (r *rig) boot() error {
	for n := r.stepsFor(settleLimit); n > 0; n-- {
		r.step()
		if s := r.engine.Status(); s.Enabled && s.State == ps2.StateWaitingForCommands {
			return r.settle()
		}
	}
	return errNoSettle
}

// sendHost transmits command bytes one at a time, letting the keyboard
// answer each before the next.
func (r *rig) sendHost(bs ...byte) error {
	for _, b := range bs {
		r.host.Send(b)
		if err := r.settle(); err != nil {
			return err
		}
	}
	return nil
}

func (r *rig) key(kind hid.EventKind, key uint8) error {
	hid.Event{Kind: kind, Key: key}.Deliver(r.bridge)
	return r.settle()
}

func (r *rig) report(rep *hid.Report) error {
	r.tracker.Update(rep, r.bridge)
	return r.settle()
}

// drain returns the bytes the host received since the last call.
func (r *rig) drain() []byte {
	out := r.host.Received[r.seen:]
	r.seen = len(r.host.Received)
	return out
}
