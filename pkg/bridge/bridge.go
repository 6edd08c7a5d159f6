// Package bridge feeds USB keyboard events into the PS/2 scan code queue.
package bridge

import (
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/hid"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/logging"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/queue"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/scancode"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/typematic"
)

// Gate tells whether the PS/2 side takes key events right now.
type Gate interface {
	Accepting() bool
}

// KeyboardLEDs is the USB side of the LED path. leds is in HID output
// report bit order.
type KeyboardLEDs interface {
	SetKeyboardLEDs(leds uint8)
}

// Options configures a Bridge.
type Options struct {
	// USB receives LED changes requested by the PS/2 host. May be nil.
	USB KeyboardLEDs
	// Timer enables autorepeat generation when non-nil.
	Timer *typematic.Timer
}

type repeat struct {
	key   uint8
	start uint32
	wait  uint32
}

// Bridge implements hid.Sink. All methods run in the polling loop.
type Bridge struct {
	frames *queue.Frames
	gate   Gate
	usb    KeyboardLEDs
	timer  *typematic.Timer

	mods scancode.Modifiers
	leds uint8

	rep repeat
}

// New returns a bridge writing to frames, gated by g.
func New(frames *queue.Frames, g Gate, opts Options) *Bridge {
	return &Bridge{
		frames: frames,
		gate:   g,
		usb:    opts.USB,
		timer:  opts.Timer,
	}
}

// SetGate replaces the gate. The engine takes the bridge as its LED sink, so
// the engine is usually attached here after both exist.
func (b *Bridge) SetGate(g Gate) { b.gate = g }

// KeyPressed queues the make code of key.
func (b *Bridge) KeyPressed(key uint8) {
	b.setModifier(key, true)
	b.emit(scancode.Make(key, b.mods, false))

	if b.timer != nil && !hid.IsModifier(key) && key != hid.KeyPause {
		b.rep = repeat{key: key, start: b.timer.Now(), wait: b.timer.Delay()}
	}
}

// KeyRepeated queues the autorepeat make code of key.
func (b *Bridge) KeyRepeated(key uint8) {
	b.setModifier(key, true)
	b.emit(scancode.Make(key, b.mods, true))
}

// KeyReleased queues the break code of key. Modifier state is updated
// first, so releasing Shift before an arrow key yields the plain break.
func (b *Bridge) KeyReleased(key uint8) {
	b.setModifier(key, false)
	b.emit(scancode.Break(key, b.mods))

	if key == b.rep.key {
		b.rep = repeat{}
	}
}

// Poll generates autorepeat events for the most recently pressed key at the
// typematic delay and rate. It must be called from the polling loop.
func (b *Bridge) Poll() {
	if b.timer == nil || b.rep.key == 0 {
		return
	}
	if b.timer.Since(b.rep.start) < b.rep.wait {
		return
	}
	b.rep.start = b.timer.Now()
	b.rep.wait = b.timer.Period()
	b.KeyRepeated(b.rep.key)
}

// SetLEDs latches the PS/2 LED bitmap and forwards it to the USB keyboard.
func (b *Bridge) SetLEDs(leds uint8) {
	b.leds = leds
	b.mods.NumLock = leds&hid.PS2NumLock != 0
	if b.usb != nil {
		b.usb.SetKeyboardLEDs(hid.LEDsFromPS2(leds))
	}
	logging.Debug(logging.ComponentBridge, "leds", "ps2", leds)
}

// LEDs returns the last PS/2 LED bitmap.
func (b *Bridge) LEDs() uint8 { return b.leds }

// Modifiers returns the modifier state used for the next lookup.
func (b *Bridge) Modifiers() scancode.Modifiers { return b.mods }

// Reset forgets held modifiers and stops autorepeat, for example after the
// USB keyboard was unplugged.
func (b *Bridge) Reset() {
	numLock := b.mods.NumLock
	b.mods = scancode.Modifiers{NumLock: numLock}
	b.rep = repeat{}
}

func (b *Bridge) setModifier(key uint8, down bool) {
	switch key {
	case hid.KeyLeftCtrl, hid.KeyRightCtrl:
		b.mods.Ctrl = down
	case hid.KeyLeftShift, hid.KeyRightShift:
		b.mods.Shift = down
	case hid.KeyLeftAlt, hid.KeyRightAlt:
		b.mods.Alt = down
	}
}

func (b *Bridge) emit(code []byte) {
	if len(code) == 0 {
		return
	}
	b.frames.Emit(code, b.gate.Accepting())
}
